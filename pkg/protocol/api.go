// Package protocol defines the API request/response types.
package protocol

import (
	"bytes"
	"encoding/json"
	"time"
)

// ErrorResponse is returned on API errors. The backend sets Error; some
// deployments use Message instead.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Text returns the first non-empty error text.
func (e ErrorResponse) Text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// MessageResponse is returned by endpoints that only acknowledge an action.
type MessageResponse struct {
	Message string `json:"message"`
}

// ProcessingStatus is the document pipeline state reported by the backend.
type ProcessingStatus string

const (
	StatusPending     ProcessingStatus = "pending"
	StatusUploaded    ProcessingStatus = "uploaded"
	StatusProcessing  ProcessingStatus = "processing"
	StatusProcessed   ProcessingStatus = "processed"
	StatusCompleted   ProcessingStatus = "completed"
	StatusTransformed ProcessingStatus = "transformed"
	StatusFailed      ProcessingStatus = "failed"
	StatusError       ProcessingStatus = "error"
)

// UserSummary is a user as embedded in other records.
type UserSummary struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Identity implements identified.
func (u UserSummary) Identity() string { return u.ID }

// FullName returns "First Last", falling back to the email.
func (u UserSummary) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// CollectionSummary is a collection as embedded in a document.
type CollectionSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Identity implements identified.
func (c CollectionSummary) Identity() string { return c.ID }

// DocumentMetadata holds extracted PDF metadata.
type DocumentMetadata struct {
	Author    string   `json:"author,omitempty"`
	Subject   string   `json:"subject,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	Pages     int      `json:"pages,omitempty"`
	PageCount int      `json:"pageCount,omitempty"`
	Language  string   `json:"language,omitempty"`
}

// Document is a stored PDF.
type Document struct {
	ID               string                 `json:"_id"`
	Title            string                 `json:"title"`
	FileType         string                 `json:"fileType,omitempty"`
	OriginalFileName string                 `json:"originalFileName,omitempty"`
	MimeType         string                 `json:"mimeType,omitempty"`
	Size             int64                  `json:"size,omitempty"`
	FileSize         int64                  `json:"fileSize,omitempty"`
	ProcessingStatus ProcessingStatus       `json:"processingStatus,omitempty"`
	Status           ProcessingStatus       `json:"status,omitempty"`
	ProcessingError  string                 `json:"processingError,omitempty"`
	Collection       Ref[CollectionSummary] `json:"collection"`
	UploadedBy       Ref[UserSummary]       `json:"uploadedBy"`
	Description      string                 `json:"description,omitempty"`
	Preview          string                 `json:"preview,omitempty"`
	Tags             []string               `json:"tags,omitempty"`
	IsPublic         bool                   `json:"isPublic,omitempty"`
	Metadata         *DocumentMetadata      `json:"metadata,omitempty"`
	CreatedAt        string                 `json:"createdAt,omitempty"`
	UpdatedAt        string                 `json:"updatedAt,omitempty"`
}

// Bytes returns the document size whichever field the backend filled.
func (d Document) Bytes() int64 {
	if d.Size > 0 {
		return d.Size
	}
	return d.FileSize
}

// State returns the processing status whichever field the backend filled.
func (d Document) State() ProcessingStatus {
	if d.ProcessingStatus != "" {
		return d.ProcessingStatus
	}
	return d.Status
}

// DocumentQuery filters GET /documents.
type DocumentQuery struct {
	Page       int
	Limit      int
	Collection string
	Status     string
	Search     string
}

// Pagination is the nested pagination block of GET /documents.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// DocumentPage is one page of GET /documents.
type DocumentPage struct {
	Documents  []Document `json:"data"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
}

// UnmarshalJSON accepts both the flat {data,total,page,limit,totalPages}
// shape and the {documents,pagination} shape.
func (p *DocumentPage) UnmarshalJSON(b []byte) error {
	var raw struct {
		Data       []Document  `json:"data"`
		Documents  []Document  `json:"documents"`
		Total      int         `json:"total"`
		Page       int         `json:"page"`
		Limit      int         `json:"limit"`
		TotalPages int         `json:"totalPages"`
		Pagination *Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = DocumentPage{
		Documents:  raw.Data,
		Total:      raw.Total,
		Page:       raw.Page,
		Limit:      raw.Limit,
		TotalPages: raw.TotalPages,
	}
	if p.Documents == nil {
		p.Documents = raw.Documents
	}
	if raw.Pagination != nil {
		p.Total = raw.Pagination.Total
		p.Page = raw.Pagination.Page
		p.Limit = raw.Pagination.Limit
		p.TotalPages = raw.Pagination.Pages
	}
	if p.Documents == nil {
		p.Documents = []Document{}
	}
	return nil
}

// DocumentDetail is returned by GET /documents/{id}.
type DocumentDetail struct {
	Document        Document `json:"document"`
	MarkdownContent string   `json:"markdownContent,omitempty"`
}

// UploadedDocument is the short record returned after an upload.
type UploadedDocument struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Status     ProcessingStatus `json:"status"`
	UploadedAt string           `json:"uploadedAt"`
}

// UploadResponse is returned by POST /documents/upload.
type UploadResponse struct {
	Message  string           `json:"message"`
	Document UploadedDocument `json:"document"`
}

// DashboardStats is returned by GET /documents/stats.
type DashboardStats struct {
	TotalDocuments         int    `json:"totalDocuments"`
	DocumentsThisMonth     int    `json:"documentsThisMonth"`
	TotalConversations     int    `json:"totalConversations"`
	ConversationsThisMonth int    `json:"conversationsThisMonth"`
	TotalCollections       int    `json:"totalCollections"`
	CollectionsThisMonth   int    `json:"collectionsThisMonth"`
	ProcessingDocuments    int    `json:"processingDocuments"`
	RecentActivity         int    `json:"recentActivity"`
	StorageUsed            string `json:"storageUsed,omitempty"`
	StorageLimit           string `json:"storageLimit,omitempty"`
}

// DefaultDashboardStats is shown before stats are available.
func DefaultDashboardStats() DashboardStats {
	return DashboardStats{StorageUsed: "0 MB", StorageLimit: "0 MB"}
}

// MemberRole is a collection access level.
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleEditor MemberRole = "editor"
	RoleViewer MemberRole = "viewer"
)

// Valid reports whether the role can be assigned to a member.
func (r MemberRole) Valid() bool {
	return r == RoleEditor || r == RoleViewer
}

// CollectionSettings are the per-collection options.
type CollectionSettings struct {
	AllowPublicDocuments bool `json:"allowPublicDocuments"`
	RequireApproval      bool `json:"requireApproval"`
	AutoTagging          bool `json:"autoTagging"`
}

// CollectionSettingsPatch is a partial settings update; nil fields are left
// unchanged by the backend.
type CollectionSettingsPatch struct {
	AllowPublicDocuments *bool `json:"allowPublicDocuments,omitempty"`
	RequireApproval      *bool `json:"requireApproval,omitempty"`
	AutoTagging          *bool `json:"autoTagging,omitempty"`
}

// CollectionActivity summarizes a collection's content.
type CollectionActivity struct {
	DocumentCount int    `json:"documentCount"`
	TotalSize     int64  `json:"totalSize"`
	LastActivity  string `json:"lastActivity,omitempty"`
}

// Member is a collection member.
type Member struct {
	User    Ref[UserSummary] `json:"user"`
	Role    MemberRole       `json:"role"`
	AddedAt string           `json:"addedAt,omitempty"`
	IsOwner bool             `json:"isOwner,omitempty"`
}

// Collection groups documents.
type Collection struct {
	ID                  string              `json:"_id"`
	Name                string              `json:"name"`
	Description         string              `json:"description,omitempty"`
	Color               string              `json:"color,omitempty"`
	Icon                string              `json:"icon,omitempty"`
	IsPublic            bool                `json:"isPublic"`
	CreatedBy           Ref[UserSummary]    `json:"createdBy"`
	Members             []Member            `json:"members,omitempty"`
	Settings            *CollectionSettings `json:"settings,omitempty"`
	Stats               *CollectionActivity `json:"stats,omitempty"`
	ShareToken          string              `json:"shareToken,omitempty"`
	ShareTokenExpiresAt *time.Time          `json:"shareTokenExpiresAt,omitempty"`
	DocumentCount       int                 `json:"documentCount,omitempty"`
	RecentDocuments     []Document          `json:"recentDocuments,omitempty"`
	CreatedAt           string              `json:"createdAt,omitempty"`
	UpdatedAt           string              `json:"updatedAt,omitempty"`
}

// Count returns documentCount, falling back to stats.documentCount.
func (c Collection) Count() int {
	if c.DocumentCount > 0 {
		return c.DocumentCount
	}
	if c.Stats != nil {
		return c.Stats.DocumentCount
	}
	return 0
}

// CollectionList is returned by GET /collections.
type CollectionList struct {
	Collections []Collection `json:"collections"`
}

// CollectionEnvelope wraps a single collection (GET/POST/PUT).
type CollectionEnvelope struct {
	Collection Collection `json:"collection"`
	Message    string     `json:"message,omitempty"`
}

// CollectionInput is the body for POST /collections and PUT /collections/{id}.
type CollectionInput struct {
	Name        string                   `json:"name,omitempty"`
	Description *string                  `json:"description,omitempty"`
	Color       string                   `json:"color,omitempty"`
	Icon        string                   `json:"icon,omitempty"`
	IsPublic    *bool                    `json:"isPublic,omitempty"`
	Settings    *CollectionSettingsPatch `json:"settings,omitempty"`
}

// MemberList is returned by GET /collections/{id}/members.
type MemberList struct {
	Members      []Member `json:"members"`
	TotalMembers int      `json:"totalMembers"`
}

// MemberInput is the body for POST /collections/{id}/members.
type MemberInput struct {
	Email string     `json:"email"`
	Role  MemberRole `json:"role"`
}

// MemberEnvelope is returned when a member is added or updated.
type MemberEnvelope struct {
	Member  Member `json:"member"`
	Message string `json:"message,omitempty"`
}

// StatsOverview is the headline block of collection stats.
type StatsOverview struct {
	TotalDocuments      int   `json:"totalDocuments"`
	TotalSize           int64 `json:"totalSize"`
	AvgSize             int64 `json:"avgSize"`
	TotalMembers        int   `json:"totalMembers"`
	ChatSessions        int   `json:"chatSessions"`
	StorageUsagePercent int   `json:"storageUsagePercent"`
}

// StatusDistribution counts documents per processing state.
type StatusDistribution struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Error      int `json:"error"`
}

// DatedCount is one point of a time series.
type DatedCount struct {
	Date  string `json:"_id"`
	Count int    `json:"count"`
}

// Contributor is a top uploader of a collection.
type Contributor struct {
	User          UserSummary `json:"user"`
	DocumentCount int         `json:"documentCount"`
	TotalSize     int64       `json:"totalSize"`
}

// ActivityItem is a recently added document in a collection.
type ActivityItem struct {
	ID         string           `json:"_id"`
	Title      string           `json:"title"`
	Filename   string           `json:"filename,omitempty"`
	Status     ProcessingStatus `json:"status,omitempty"`
	CreatedAt  string           `json:"createdAt"`
	UploadedBy Ref[UserSummary] `json:"uploadedBy"`
}

// CollectionInfo carries collection-level facts in the stats payload.
type CollectionInfo struct {
	CreatedAt string             `json:"createdAt"`
	IsPublic  bool               `json:"isPublic"`
	Settings  CollectionSettings `json:"settings"`
}

// CollectionStats is returned (wrapped in "stats") by GET /collections/{id}/stats.
type CollectionStats struct {
	Overview           StatsOverview      `json:"overview"`
	StatusDistribution StatusDistribution `json:"statusDistribution"`
	DocumentsOverTime  []DatedCount       `json:"documentsOverTime"`
	TopContributors    []Contributor      `json:"topContributors"`
	RecentActivity     []ActivityItem     `json:"recentActivity"`
	CollectionInfo     CollectionInfo     `json:"collectionInfo"`
}

// CollectionStatsEnvelope wraps CollectionStats.
type CollectionStatsEnvelope struct {
	Stats CollectionStats `json:"stats"`
}

// ShareInfo describes how a collection is shared.
type ShareInfo struct {
	IsPublic     bool               `json:"isPublic"`
	ShareToken   *string            `json:"shareToken"`
	ShareURL     *string            `json:"shareUrl"`
	TotalMembers int                `json:"totalMembers,omitempty"`
	Settings     CollectionSettings `json:"settings"`
}

// ShareInfoEnvelope wraps ShareInfo.
type ShareInfoEnvelope struct {
	ShareInfo ShareInfo `json:"shareInfo"`
	Message   string    `json:"message,omitempty"`
}

// ShareAction selects what POST /collections/{id}/share does.
type ShareAction string

const (
	ShareGenerate   ShareAction = "generate"
	ShareRegenerate ShareAction = "regenerate"
	ShareRevoke     ShareAction = "revoke"
)

// Valid reports whether the action is understood by the backend.
func (a ShareAction) Valid() bool {
	switch a {
	case ShareGenerate, ShareRegenerate, ShareRevoke:
		return true
	}
	return false
}

// ShareExpiry is a share link lifetime; empty means no expiry.
type ShareExpiry string

const (
	ExpiresNever ShareExpiry = ""
	Expires1h    ShareExpiry = "1h"
	Expires24h   ShareExpiry = "24h"
	Expires7d    ShareExpiry = "7d"
	Expires30d   ShareExpiry = "30d"
)

// ShareRequest is the body for POST /collections/{id}/share.
type ShareRequest struct {
	Action    ShareAction `json:"action"`
	ExpiresIn ShareExpiry `json:"expiresIn,omitempty"`
}

// ShareActionResponse is returned by POST /collections/{id}/share. Revoke
// only carries Message.
type ShareActionResponse struct {
	ShareToken string     `json:"shareToken,omitempty"`
	ShareURL   string     `json:"shareUrl,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	Message    string     `json:"message"`
}

// SharingUpdate is the body for PUT /collections/{id}/share.
type SharingUpdate struct {
	IsPublic *bool                    `json:"isPublic,omitempty"`
	Settings *CollectionSettingsPatch `json:"settings,omitempty"`
}

// User is the authenticated account.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      string `json:"role,omitempty"`
}

// UnmarshalJSON accepts both "id" and "_id".
func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	var raw struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*u = User(raw.plain)
	if u.ID == "" {
		u.ID = raw.MongoID
	}
	if u.Name == "" {
		u.Name = UserSummary{FirstName: u.FirstName, LastName: u.LastName}.FullName()
	}
	return nil
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Message      string `json:"message,omitempty"`
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// VerifyResponse is returned by GET /auth/verify.
type VerifyResponse struct {
	Success bool   `json:"success"`
	User    User   `json:"user"`
	Error   string `json:"error,omitempty"`
}

// ChatRequest is the body for POST /chat/{documentId}.
type ChatRequest struct {
	Message    string `json:"message"`
	DocumentID string `json:"documentId"`
}

// ChatSource points at the passage an answer was drawn from.
type ChatSource struct {
	DocumentID string  `json:"documentId,omitempty"`
	Title      string  `json:"title,omitempty"`
	Page       int     `json:"page,omitempty"`
	Excerpt    string  `json:"excerpt,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// ChatReply is returned by POST /chat/{documentId}.
type ChatReply struct {
	Response  string       `json:"response"`
	Sources   []ChatSource `json:"sources"`
	MessageID string       `json:"messageId"`
}

// ChatMessage is one turn of a document conversation.
type ChatMessage struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"` // "user" or "assistant"
	Content   string       `json:"content"`
	Timestamp string       `json:"timestamp"`
	Sources   []ChatSource `json:"sources"`
}

// ChatHistory is returned by GET /chat/{documentId}/history.
type ChatHistory struct {
	Messages []ChatMessage `json:"messages"`
}

// RefKind discriminates the shapes a reference field can take.
type RefKind int

const (
	// RefNone: the field was absent or null.
	RefNone RefKind = iota
	// RefID: the field held a bare id string.
	RefID
	// RefExpanded: the field held the populated record.
	RefExpanded
)

// identified is implemented by records that can appear expanded in a Ref.
type identified interface {
	Identity() string
}

// Ref is a reference the backend either leaves as an id or populates with
// the referenced record.
type Ref[T any] struct {
	Kind  RefKind
	ID    string
	Value *T
}

// RefTo builds an id-only reference.
func RefTo[T any](id string) Ref[T] {
	if id == "" {
		return Ref[T]{}
	}
	return Ref[T]{Kind: RefID, ID: id}
}

// Expanded builds a populated reference.
func Expanded[T any](v T) Ref[T] {
	r := Ref[T]{Kind: RefExpanded, Value: &v}
	if idv, ok := any(v).(identified); ok {
		r.ID = idv.Identity()
	}
	return r
}

// UnmarshalJSON decodes null, a string id, or an object.
func (r *Ref[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = Ref[T]{}
		return nil
	}
	if b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*r = RefTo[T](id)
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Expanded(v)
	return nil
}

// MarshalJSON encodes the reference back in its original shape.
func (r Ref[T]) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RefID:
		return json.Marshal(r.ID)
	case RefExpanded:
		return json.Marshal(r.Value)
	default:
		return []byte("null"), nil
	}
}
