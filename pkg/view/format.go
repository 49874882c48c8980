// Package view turns backend records into display-ready values and composes
// cached reads into page-level views.
package view

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/docshelf/docshelf/pkg/protocol"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count with binary scaling: 0 gives "0 Bytes",
// 1536 gives "1.5 KB". Sizes beyond the GB range stay in GB.
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	i := 0
	for i < len(sizeUnits)-1 && n >= int64(1)<<(10*(i+1)) {
		i++
	}
	v := float64(n) / float64(int64(1)<<(10*i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// InvalidDate is returned for timestamps that cannot be parsed.
const InvalidDate = "Invalid Date"

var frMonths = [...]string{
	"janv.", "févr.", "mars", "avr.", "mai", "juin",
	"juil.", "août", "sept.", "oct.", "nov.", "déc.",
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Formatter renders dates in a fixed location.
type Formatter struct {
	Location *time.Location
}

func (f Formatter) loc() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

// Date renders an ISO timestamp as a short French date, "15 janv. 2024".
func (f Formatter) Date(iso string) string {
	t, ok := parseTime(iso)
	if !ok {
		return InvalidDate
	}
	t = t.In(f.loc())
	return fmt.Sprintf("%d %s %d", t.Day(), frMonths[t.Month()-1], t.Year())
}

// DateTime is Date followed by ", HH:MM".
func (f Formatter) DateTime(iso string) string {
	t, ok := parseTime(iso)
	if !ok {
		return InvalidDate
	}
	t = t.In(f.loc())
	return fmt.Sprintf("%d %s %d, %02d:%02d", t.Day(), frMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// FormatDate renders iso with the local time zone.
func FormatDate(iso string) string {
	return Formatter{}.Date(iso)
}

// FormatDateTime renders iso with the local time zone.
func FormatDateTime(iso string) string {
	return Formatter{}.DateTime(iso)
}

// Badge is a label with its color classes.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// Casers are stateful and not safe for concurrent use.
func fold(s string) string  { return cases.Fold().String(s) }
func upper(s string) string { return cases.Upper(language.Und).String(s) }

// StatusInfo maps a processing status to the badge shown in document lists.
// Matching ignores case; unknown values give "Inconnu".
func StatusInfo(status string) Badge {
	switch fold(status) {
	case "processing":
		return Badge{"En cours", "bg-yellow-100 text-yellow-800"}
	case "completed", "processed":
		return Badge{"Terminé", "bg-green-100 text-green-800"}
	case "failed", "error":
		return Badge{"Échec", "bg-red-100 text-red-800"}
	case "uploaded":
		return Badge{"Téléversé", "bg-blue-100 text-blue-800"}
	default:
		return Badge{"Inconnu", "bg-gray-100 text-gray-800"}
	}
}

// StatusDot maps a processing status to the compact indicator color used
// on document cards. Unlike StatusInfo it matches case-sensitively, so
// "PROCESSED" is unknown.
func StatusDot(status string) Badge {
	switch status {
	case "transformed", "processed":
		return Badge{"Transformé", "bg-emerald-500"}
	case "processing":
		return Badge{"En cours", "bg-cyan-500"}
	case "uploaded":
		return Badge{"Téléversé", "bg-cyan-500"}
	case "error", "failed":
		return Badge{"Erreur", "bg-red-500"}
	default:
		return Badge{"Inconnu", "bg-gray-500"}
	}
}

// FormattedDocument is a document row.
type FormattedDocument struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	Size         string `json:"size"`
	LastModified string `json:"lastModified"`
	Status       Badge  `json:"status"`
	Collection   string `json:"collection"`
	Preview      string `json:"preview"`
}

// FormattedCollection is a collection entry of the dashboard sidebar.
type FormattedCollection struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// FormattedCollectionDetail is a row of the collections page.
type FormattedCollectionDetail struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Count        int    `json:"count"`
	Color        string `json:"color"`
	Icon         string `json:"icon"`
	IsPublic     bool   `json:"isPublic"`
	Owner        string `json:"owner"`
	Members      int    `json:"members"`
	LastActivity string `json:"lastActivity"`
	TotalSize    string `json:"totalSize"`
	CreatedAt    string `json:"createdAt"`
}

// Document formats a document. Missing fields get placeholder text.
func (f Formatter) Document(d protocol.Document) FormattedDocument {
	title := d.Title
	if title == "" {
		title = "Sans titre"
	}
	typ := "PDF"
	if d.FileType != "" {
		typ = upper(d.FileType)
	}
	updated := d.UpdatedAt
	if updated == "" {
		updated = time.Now().UTC().Format(time.RFC3339)
	}
	col := "Sans collection"
	if d.Collection.Kind == protocol.RefExpanded && d.Collection.Value.Name != "" {
		col = d.Collection.Value.Name
	}
	preview := d.Description
	if preview == "" {
		preview = "Aucune description disponible"
	}
	return FormattedDocument{
		ID:           d.ID,
		Title:        title,
		Type:         typ,
		Size:         FormatSize(d.Bytes()),
		LastModified: f.Date(updated),
		Status:       StatusInfo(string(d.State())),
		Collection:   col,
		Preview:      preview,
	}
}

// Collection formats a sidebar collection entry.
func (f Formatter) Collection(c protocol.Collection) FormattedCollection {
	return FormattedCollection{
		ID:    c.ID,
		Name:  c.Name,
		Count: c.Count(),
		Color: colorClass(c.Color),
	}
}

func colorClass(color string) string {
	if color == "" {
		color = "blue"
	}
	return "bg-" + color + "-500"
}

// CollectionDetail formats a collections page row.
func (f Formatter) CollectionDetail(c protocol.Collection) FormattedCollectionDetail {
	owner := ""
	if c.CreatedBy.Kind == protocol.RefExpanded {
		u := c.CreatedBy.Value
		owner = u.FirstName + " " + u.LastName
	}
	lastActivity := c.UpdatedAt
	totalSize := "0 Bytes"
	if c.Stats != nil {
		if c.Stats.LastActivity != "" {
			lastActivity = c.Stats.LastActivity
		}
		if c.Stats.TotalSize > 0 {
			totalSize = FormatSize(c.Stats.TotalSize)
		}
	}
	return FormattedCollectionDetail{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		Count:        c.Count(),
		Color:        c.Color,
		Icon:         c.Icon,
		IsPublic:     c.IsPublic,
		Owner:        owner,
		Members:      len(c.Members),
		LastActivity: f.DateTime(lastActivity),
		TotalSize:    totalSize,
		CreatedAt:    f.DateTime(c.CreatedAt),
	}
}

// FormatDocument formats d with the local time zone.
func FormatDocument(d protocol.Document) FormattedDocument {
	return Formatter{}.Document(d)
}

// FormatCollection formats c for the dashboard sidebar.
func FormatCollection(c protocol.Collection) FormattedCollection {
	return Formatter{}.Collection(c)
}

// FormatCollectionDetail formats c with the local time zone.
func FormatCollectionDetail(c protocol.Collection) FormattedCollectionDetail {
	return Formatter{}.CollectionDetail(c)
}
