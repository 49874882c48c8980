package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docshelf/docshelf/pkg/client"
	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/query"
	"github.com/docshelf/docshelf/pkg/retry"
)

// backend is a fake API server that counts requests per "METHOD path".
type backend struct {
	mu    sync.Mutex
	hits  map[string]int
	fail  map[string]int // status to answer with
	extra http.HandlerFunc
}

func (b *backend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func (b *backend) setFail(key string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[key] = status
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	b.mu.Lock()
	b.hits[key]++
	status := b.fail[key]
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": "failed: " + key})
		return
	}

	switch {
	case key == "GET /documents":
		page := r.URL.Query().Get("page")
		json.NewEncoder(w).Encode(map[string]any{
			"data":  []map[string]any{{"_id": "doc-p" + page, "title": "Page " + page}},
			"total": 20, "page": 1, "limit": 10, "totalPages": 2,
		})
	case key == "GET /documents/stats":
		json.NewEncoder(w).Encode(map[string]any{"totalDocuments": 20, "totalCollections": 2})
	case key == "GET /collections":
		json.NewEncoder(w).Encode(map[string]any{"collections": []map[string]any{{"_id": "c1", "name": "Invoices"}}})
	case key == "POST /collections":
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"collection": map[string]any{"_id": "c2", "name": "New"}, "message": "created"})
	case strings.HasPrefix(key, "GET /collections/") && strings.HasSuffix(key, "/members"):
		json.NewEncoder(w).Encode(map[string]any{"members": []any{}, "totalMembers": 1})
	case strings.HasPrefix(key, "POST /collections/") && strings.HasSuffix(key, "/members"):
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"member": map[string]any{"user": "u2", "role": "viewer"}})
	case strings.HasPrefix(key, "GET /collections/") && strings.HasSuffix(key, "/stats"):
		json.NewEncoder(w).Encode(map[string]any{"stats": map[string]any{"overview": map[string]any{"totalDocuments": 3}}})
	case strings.HasPrefix(key, "GET /collections/"):
		json.NewEncoder(w).Encode(map[string]any{"collection": map[string]any{"_id": "c1", "name": "Invoices"}})
	case key == "POST /documents/upload":
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"document": map[string]any{"id": "d9"}})
	case strings.HasPrefix(key, "DELETE /documents/"):
		json.NewEncoder(w).Encode(map[string]any{"message": "deleted"})
	default:
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no route " + key})
	}
}

func testStore(t *testing.T) (*Store, *backend) {
	t.Helper()
	b := &backend{hits: map[string]int{}, fail: map[string]int{}}
	ts := httptest.NewServer(b)
	t.Cleanup(ts.Close)

	api := client.New(client.Config{
		BaseURL:     ts.URL,
		RetryConfig: retry.Config{MaxAttempts: 1},
	})
	cache := query.New(query.Options{KindStaleTime: StaleTimes(5*time.Minute, 0)})
	t.Cleanup(cache.Close)
	return New(api, cache), b
}

func TestDocumentsKeyIncludesEveryParameter(t *testing.T) {
	base := protocol.DocumentQuery{Search: "invoice", Page: 1, Limit: 10}
	p2 := base
	p2.Page = 2
	col := base
	col.Collection = "c1"

	if DocumentsKey(base) == DocumentsKey(p2) {
		t.Error("page must be part of the key")
	}
	if DocumentsKey(base) == DocumentsKey(col) {
		t.Error("collection must be part of the key")
	}
	if DocumentsKey(base) != DocumentsKey(protocol.DocumentQuery{Limit: 10, Page: 1, Search: "invoice"}) {
		t.Error("equal queries must share a key")
	}
}

func TestDocumentsPagesAreSeparate(t *testing.T) {
	s, b := testStore(t)
	ctx := context.Background()

	p1 := s.Documents(ctx, protocol.DocumentQuery{Search: "invoice", Page: 1, Limit: 10})
	p2 := s.Documents(ctx, protocol.DocumentQuery{Search: "invoice", Page: 2, Limit: 10})
	if p1.Err != nil || p2.Err != nil {
		t.Fatalf("errors: %v %v", p1.Err, p2.Err)
	}
	if p1.Data.Documents[0].ID != "doc-p1" || p2.Data.Documents[0].ID != "doc-p2" {
		t.Errorf("page 2 reused page 1 data: %v / %v", p1.Data.Documents, p2.Data.Documents)
	}
	if b.count("GET /documents") != 2 {
		t.Errorf("GET /documents = %d, want 2", b.count("GET /documents"))
	}
}

func TestCollectionsCachedUntilMutation(t *testing.T) {
	s, b := testStore(t)
	ctx := context.Background()

	s.Collections(ctx)
	s.Stats(ctx)
	s.Collections(ctx)
	if got := b.count("GET /collections"); got != 1 {
		t.Fatalf("GET /collections = %d before mutation, want 1", got)
	}

	col, err := s.CreateCollection(ctx, protocol.CollectionInput{Name: "New"})
	if err != nil || col.ID != "c2" {
		t.Fatalf("CreateCollection = %+v, %v", col, err)
	}

	s.Collections(ctx)
	s.Collections(ctx)
	s.Stats(ctx)
	if got := b.count("GET /collections"); got != 2 {
		t.Errorf("GET /collections = %d after mutation, want 2", got)
	}
	if got := b.count("GET /documents/stats"); got != 2 {
		t.Errorf("GET /documents/stats = %d after mutation, want 2", got)
	}
}

func TestFailedMutationLeavesCache(t *testing.T) {
	s, b := testStore(t)
	ctx := context.Background()

	s.Collections(ctx)
	b.setFail("POST /collections", http.StatusBadRequest)

	_, err := s.CreateCollection(ctx, protocol.CollectionInput{Name: "Dup"})
	if err == nil || !client.IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("err = %v, want 400", err)
	}
	if err.Error() != "failed: POST /collections" {
		t.Errorf("message = %q", err.Error())
	}

	s.Collections(ctx)
	if got := b.count("GET /collections"); got != 1 {
		t.Errorf("GET /collections = %d, failed mutation must not invalidate", got)
	}
}

func TestMutationInvalidationSets(t *testing.T) {
	tests := []struct {
		name        string
		run         func(ctx context.Context, s *Store) error
		invalidated []query.Key
		kept        []query.Key
	}{
		{
			name: "add member",
			run: func(ctx context.Context, s *Store) error {
				_, err := s.AddMember(ctx, "c1", protocol.MemberInput{Email: "bo@example.com"})
				return err
			},
			invalidated: []query.Key{MembersKey("c1"), CollectionKey("c1")},
			kept:        []query.Key{CollectionsKey(), MembersKey("c2")},
		},
		{
			name: "upload into collection",
			run: func(ctx context.Context, s *Store) error {
				up := client.Upload{Name: "a.pdf", ContentType: "application/pdf", Size: 5, Body: strings.NewReader("%PDF-")}
				_, err := s.UploadDocument(ctx, up, "c1")
				return err
			},
			invalidated: []query.Key{CollectionsKey(), StatsKey(), CollectionStatsKey("c1")},
			kept:        []query.Key{CollectionKey("c1"), CollectionStatsKey("c2")},
		},
		{
			name: "delete document",
			run: func(ctx context.Context, s *Store) error {
				_, err := s.DeleteDocument(ctx, "d1")
				return err
			},
			invalidated: []query.Key{CollectionsKey(), StatsKey()},
			kept:        []query.Key{CollectionKey("c1"), MembersKey("c1")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := testStore(t)
			ctx := context.Background()

			s.Collections(ctx)
			s.Stats(ctx)
			s.Collection(ctx, "c1")
			s.Members(ctx, "c1")
			s.Members(ctx, "c2")
			s.CollectionStats(ctx, "c1")
			s.CollectionStats(ctx, "c2")

			if err := tt.run(ctx, s); err != nil {
				t.Fatalf("mutation: %v", err)
			}
			for _, k := range tt.invalidated {
				if st, ok := s.Cache().Peek(k); !ok || !st.Invalidated {
					t.Errorf("%s should be invalidated", k)
				}
			}
			for _, k := range tt.kept {
				if st, _ := s.Cache().Peek(k); st.Invalidated {
					t.Errorf("%s should not be invalidated", k)
				}
			}
		})
	}
}

func TestUploadValidationNeverInvalidates(t *testing.T) {
	s, b := testStore(t)
	ctx := context.Background()
	s.Collections(ctx)

	up := client.Upload{Name: "notes.txt", Size: 5, Body: strings.NewReader("hello")}
	if _, err := s.UploadDocument(ctx, up, ""); err == nil {
		t.Fatal("expected validation error")
	}
	if b.count("POST /documents/upload") != 0 {
		t.Error("rejected upload reached the server")
	}
	if st, _ := s.Cache().Peek(CollectionsKey()); st.Invalidated {
		t.Error("rejected upload must not invalidate")
	}
}
