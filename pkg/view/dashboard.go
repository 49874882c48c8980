package view

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/query"
)

// Dashboard documents are always the first page of this size.
const dashboardPageSize = 10

// DashboardSource provides the cached reads behind the dashboard.
type DashboardSource interface {
	Documents(ctx context.Context, q protocol.DocumentQuery) query.Snapshot[protocol.DocumentPage]
	PrefetchDocuments(q protocol.DocumentQuery) query.Snapshot[protocol.DocumentPage]
	Collections(ctx context.Context) query.Snapshot[[]protocol.Collection]
	PrefetchCollections() query.Snapshot[[]protocol.Collection]
	Stats(ctx context.Context) query.Snapshot[protocol.DashboardStats]
	PrefetchStats() query.Snapshot[protocol.DashboardStats]
	PeekDocuments(q protocol.DocumentQuery) query.Snapshot[protocol.DocumentPage]
	PeekCollections() query.Snapshot[[]protocol.Collection]
	PeekStats() query.Snapshot[protocol.DashboardStats]
}

// DashboardView is everything the dashboard page renders.
type DashboardView struct {
	Search             string                  `json:"search"`
	SelectedCollection string                  `json:"selectedCollection,omitempty"`
	Documents          []FormattedDocument     `json:"documents"`
	Collections        []FormattedCollection   `json:"collections"`
	Stats              protocol.DashboardStats `json:"stats"`

	IsLoading            bool `json:"isLoading"`
	IsLoadingDocuments   bool `json:"isLoadingDocuments"`
	IsLoadingCollections bool `json:"isLoadingCollections"`
	IsLoadingStats       bool `json:"isLoadingStats"`

	// Err is the first of DocumentsErr, CollectionsErr, StatsErr that is set.
	Err            error `json:"-"`
	DocumentsErr   error `json:"-"`
	CollectionsErr error `json:"-"`
	StatsErr       error `json:"-"`
}

// MarshalJSON adds the error messages as strings next to the data.
func (v DashboardView) MarshalJSON() ([]byte, error) {
	type plain DashboardView
	return json.Marshal(struct {
		plain
		Error            string `json:"error,omitempty"`
		DocumentsError   string `json:"documentsError,omitempty"`
		CollectionsError string `json:"collectionsError,omitempty"`
		StatsError       string `json:"statsError,omitempty"`
	}{
		plain:            plain(v),
		Error:            errText(v.Err),
		DocumentsError:   errText(v.DocumentsErr),
		CollectionsError: errText(v.CollectionsErr),
		StatsError:       errText(v.StatsErr),
	})
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Dashboard composes documents, collections, and stats under the current
// search and collection filter.
type Dashboard struct {
	src DashboardSource
	fmt Formatter

	mu         sync.Mutex
	search     string
	collection string
}

// NewDashboard creates a dashboard over src.
func NewDashboard(src DashboardSource, f Formatter) *Dashboard {
	return &Dashboard{src: src, fmt: f}
}

// SetSearch changes the search text. Only the documents read is affected.
func (d *Dashboard) SetSearch(q string) {
	d.mu.Lock()
	d.search = q
	d.mu.Unlock()
}

// SelectCollection filters documents by collection; "" clears the filter.
func (d *Dashboard) SelectCollection(id string) {
	d.mu.Lock()
	d.collection = id
	d.mu.Unlock()
}

// Filters returns the current search text and selected collection.
func (d *Dashboard) Filters() (search, collection string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.search, d.collection
}

// DocumentQuery is the documents read issued for the current filters.
func (d *Dashboard) DocumentQuery() protocol.DocumentQuery {
	search, collection := d.Filters()
	return protocol.DocumentQuery{
		Search:     search,
		Collection: collection,
		Page:       1,
		Limit:      dashboardPageSize,
	}
}

// Load issues the three reads in parallel and waits for all of them.
func (d *Dashboard) Load(ctx context.Context) DashboardView {
	q := d.DocumentQuery()

	var (
		g     errgroup.Group
		docs  query.Snapshot[protocol.DocumentPage]
		cols  query.Snapshot[[]protocol.Collection]
		stats query.Snapshot[protocol.DashboardStats]
	)
	g.Go(func() error {
		docs = d.src.Documents(ctx, q)
		return nil
	})
	g.Go(func() error {
		cols = d.src.Collections(ctx)
		return nil
	})
	g.Go(func() error {
		stats = d.src.Stats(ctx)
		return nil
	})
	g.Wait()

	return d.compose(q, docs, cols, stats)
}

// Snapshot builds the view from what is cached, starting fetches for
// anything missing or stale without waiting for them.
func (d *Dashboard) Snapshot() DashboardView {
	q := d.DocumentQuery()
	return d.compose(q, d.src.PrefetchDocuments(q), d.src.PrefetchCollections(), d.src.PrefetchStats())
}

// Cached builds the view from cached entries only; nothing is fetched.
func (d *Dashboard) Cached() DashboardView {
	q := d.DocumentQuery()
	return d.compose(q, d.src.PeekDocuments(q), d.src.PeekCollections(), d.src.PeekStats())
}

func (d *Dashboard) compose(
	q protocol.DocumentQuery,
	docs query.Snapshot[protocol.DocumentPage],
	cols query.Snapshot[[]protocol.Collection],
	stats query.Snapshot[protocol.DashboardStats],
) DashboardView {
	v := DashboardView{
		Search:               q.Search,
		SelectedCollection:   q.Collection,
		Documents:            []FormattedDocument{},
		Collections:          []FormattedCollection{},
		Stats:                protocol.DefaultDashboardStats(),
		IsLoadingDocuments:   docs.IsLoading(),
		IsLoadingCollections: cols.IsLoading(),
		IsLoadingStats:       stats.IsLoading(),
		DocumentsErr:         docs.Err,
		CollectionsErr:       cols.Err,
		StatsErr:             stats.Err,
	}
	v.IsLoading = v.IsLoadingDocuments || v.IsLoadingCollections || v.IsLoadingStats

	switch {
	case v.DocumentsErr != nil:
		v.Err = v.DocumentsErr
	case v.CollectionsErr != nil:
		v.Err = v.CollectionsErr
	case v.StatsErr != nil:
		v.Err = v.StatsErr
	}

	if docs.HasData {
		for _, doc := range docs.Data.Documents {
			v.Documents = append(v.Documents, d.fmt.Document(doc))
		}
	}
	if cols.HasData {
		for _, c := range cols.Data {
			v.Collections = append(v.Collections, d.fmt.Collection(c))
		}
	}
	if stats.HasData {
		v.Stats = stats.Data
	}
	return v
}
