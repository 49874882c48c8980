package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/retry"
)

type staticTokens struct {
	token string
	saved *protocol.AuthResponse
}

func (s *staticTokens) AccessToken() string { return s.token }

func (s *staticTokens) SaveAuth(resp protocol.AuthResponse) error {
	s.saved = &resp
	s.token = resp.AccessToken
	return nil
}

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{
		BaseURL: ts.URL,
		RetryConfig: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
		Tokens: &staticTokens{token: "tok-123"},
	})
	return c, ts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestGetDocuments_QueryAndAuth(t *testing.T) {
	var gotQuery, gotAuth, gotRequestID string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, map[string]any{
			"documents":  []map[string]any{{"_id": "d1", "title": "Invoice", "size": 2048}},
			"pagination": map[string]int{"page": 2, "limit": 10, "total": 11, "pages": 2},
		})
	}))
	defer ts.Close()

	res := c.GetDocuments(context.Background(), protocol.DocumentQuery{Page: 2, Limit: 10, Search: "invoice"})
	if !res.OK() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if gotQuery != "limit=10&page=2&search=invoice" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("expected X-Request-ID header")
	}
	if len(res.Data.Documents) != 1 || res.Data.Documents[0].ID != "d1" {
		t.Fatalf("documents = %+v", res.Data.Documents)
	}
	if res.Data.Page != 2 || res.Data.TotalPages != 2 || res.Data.Total != 11 {
		t.Errorf("pagination = %+v", res.Data)
	}
}

func TestGetDocuments_FlatShape(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{{"_id": "d1"}, {"_id": "d2"}},
			"total": 2, "page": 1, "limit": 10, "totalPages": 1,
		})
	}))
	defer ts.Close()

	page, err := c.GetDocuments(context.Background(), protocol.DocumentQuery{}).Unwrap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Documents) != 2 || page.TotalPages != 1 {
		t.Errorf("page = %+v", page)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   Kind
		wantMsg    string
		wantStatus int
	}{
		{"error field", 404, `{"error":"Document not found"}`, KindStatus, "Document not found", 404},
		{"message field", 400, `{"message":"Invalid action"}`, KindStatus, "Invalid action", 400},
		{"html body", 400, `<html>bad</html>`, KindUnparseable, MsgGeneric, 400},
		{"empty object", 403, `{}`, KindUnparseable, MsgGeneric, 403},
		{"bad success body", 200, `{"collections": 5}`, KindDecode, "unexpected response from server", 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			res := c.GetCollections(context.Background())
			if res.OK() {
				t.Fatal("expected error")
			}
			if res.Err.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", res.Err.Kind, tt.wantKind)
			}
			if res.Message() != tt.wantMsg {
				t.Errorf("Message = %q, want %q", res.Message(), tt.wantMsg)
			}
			if res.Err.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", res.Err.Status, tt.wantStatus)
			}
			if len(res.Data.Collections) != 0 {
				t.Error("result must not carry data and error together")
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(Config{BaseURL: url, RetryConfig: retry.Config{MaxAttempts: 1}})
	res := c.GetStats(context.Background())
	if res.OK() {
		t.Fatal("expected error")
	}
	if res.Err.Kind != KindNetwork || res.Message() != MsgNetwork {
		t.Errorf("err = %+v", res.Err)
	}
	if !IsNetwork(res.Err) {
		t.Error("IsNetwork should report true")
	}
}

func TestRetryOnServerError_GetOnly(t *testing.T) {
	var gets, posts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if gets.Add(1) < 3 {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "busy"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"collections": []any{}})
			return
		}
		posts.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	}))
	defer ts.Close()

	if res := c.GetCollections(context.Background()); !res.OK() {
		t.Fatalf("GET should succeed after retries: %v", res.Err)
	}
	if gets.Load() != 3 {
		t.Errorf("GET attempts = %d, want 3", gets.Load())
	}

	res := c.CreateCollection(context.Background(), protocol.CollectionInput{Name: "Invoices"})
	if res.OK() || res.Message() != "boom" || res.Err.Status != 500 {
		t.Fatalf("unexpected result: %+v", res.Err)
	}
	if posts.Load() != 1 {
		t.Errorf("POST attempts = %d, want 1 (mutations are not retried)", posts.Load())
	}
}

func TestRetryExhaustedReportsStatus(t *testing.T) {
	var calls atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream down"})
	}))
	defer ts.Close()

	res := c.GetStats(context.Background())
	if res.OK() {
		t.Fatal("expected error")
	}
	if res.Err.Kind != KindStatus || res.Err.Status != http.StatusBadGateway || res.Message() != "upstream down" {
		t.Errorf("err = %+v", res.Err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestUploadValidation_NoNetworkCall(t *testing.T) {
	var calls atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	tests := []struct {
		name   string
		upload Upload
		want   string
	}{
		{"missing body", Upload{Name: "a.pdf", ContentType: "application/pdf"}, "no file provided"},
		{"txt by extension", Upload{Name: "notes.txt", Size: 10, Body: strings.NewReader("hello")}, "only PDF"},
		{"txt by type", Upload{Name: "notes.pdf", ContentType: "text/plain", Size: 10, Body: strings.NewReader("hello")}, "only PDF"},
		{"60MB pdf", Upload{Name: "big.pdf", ContentType: "application/pdf", Size: 60 * 1024 * 1024, Body: strings.NewReader("%PDF-")}, "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.UploadDocument(context.Background(), tt.upload, "")
			if res.OK() {
				t.Fatal("expected validation error")
			}
			if res.Err.Kind != KindValidation {
				t.Errorf("Kind = %v, want validation", res.Err.Kind)
			}
			if !strings.Contains(res.Message(), tt.want) {
				t.Errorf("Message = %q, want it to contain %q", res.Message(), tt.want)
			}
		})
	}
	if calls.Load() != 0 {
		t.Errorf("server saw %d requests, want 0", calls.Load())
	}
}

func TestUploadDocument_Multipart(t *testing.T) {
	var gotName, gotCollection, gotContent string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			data, _ := io.ReadAll(f)
			gotContent = string(data)
			gotName = hdr.Filename
		}
		gotCollection = r.FormValue("collectionId")
		writeJSON(w, http.StatusCreated, map[string]any{
			"message":  "Document uploaded successfully",
			"document": map[string]any{"id": "d9", "title": "report", "status": "pending"},
		})
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n%test document\n"), 0644); err != nil {
		t.Fatal(err)
	}
	up, closer, err := OpenUpload(path)
	if err != nil {
		t.Fatalf("OpenUpload: %v", err)
	}
	defer closer.Close()
	if up.ContentType != "application/pdf" {
		t.Errorf("sniffed ContentType = %q", up.ContentType)
	}

	res := c.UploadDocument(context.Background(), up, "c1")
	if !res.OK() {
		t.Fatalf("upload: %v", res.Err)
	}
	if res.Data.Document.ID != "d9" {
		t.Errorf("document id = %q", res.Data.Document.ID)
	}
	if gotName != "report.pdf" || gotCollection != "c1" {
		t.Errorf("name=%q collection=%q", gotName, gotCollection)
	}
	if !strings.HasPrefix(gotContent, "%PDF-1.4") {
		t.Errorf("content = %q", gotContent)
	}
}

func TestUploadDocument_Errors(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		io.WriteString(w, "too big")
	}))
	defer ts.Close()

	up := Upload{Name: "a.pdf", ContentType: "application/pdf", Size: 5, Body: strings.NewReader("%PDF-")}
	res := c.UploadDocument(context.Background(), up, "")
	if res.OK() || res.Message() != MsgUploadFailed {
		t.Fatalf("err = %+v, want %q", res.Err, MsgUploadFailed)
	}
}

func TestLoginPersistsToken(t *testing.T) {
	tokens := &staticTokens{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body protocol.LoginRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.Email != "ana@example.com" || body.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":      "Login successful",
			"user":         map[string]string{"_id": "u1", "email": "ana@example.com", "firstName": "Ana", "lastName": "Lima"},
			"accessToken":  "access-1",
			"refreshToken": "refresh-1",
		})
	}))
	defer ts.Close()
	c := New(Config{BaseURL: ts.URL, Tokens: tokens})

	res := c.Login(context.Background(), "ana@example.com", "wrong")
	if res.OK() || res.Message() != "Invalid credentials" {
		t.Fatalf("bad login: %+v", res.Err)
	}
	if tokens.saved != nil {
		t.Fatal("failed login must not persist a token")
	}

	res = c.Login(context.Background(), "ana@example.com", "secret")
	if !res.OK() {
		t.Fatalf("login: %v", res.Err)
	}
	if tokens.AccessToken() != "access-1" {
		t.Errorf("token = %q", tokens.AccessToken())
	}
	if res.Data.User.ID != "u1" || res.Data.User.Name != "Ana Lima" {
		t.Errorf("user = %+v", res.Data.User)
	}
}

func TestShareCollection_RejectsUnknownAction(t *testing.T) {
	var calls atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	res := c.ShareCollection(context.Background(), "c1", protocol.ShareRequest{Action: "publish"})
	if res.OK() || res.Err.Kind != KindValidation {
		t.Fatalf("err = %+v", res.Err)
	}
	if calls.Load() != 0 {
		t.Error("invalid action must not reach the server")
	}
}

func TestCollectionSubresources(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/c1/stats":
			writeJSON(w, http.StatusOK, map[string]any{"stats": map[string]any{
				"overview":           map[string]any{"totalDocuments": 4, "totalSize": 4096},
				"statusDistribution": map[string]int{"completed": 3, "error": 1},
			}})
		case "/collections/c1/share":
			writeJSON(w, http.StatusOK, map[string]any{"shareInfo": map[string]any{
				"isPublic": true, "shareToken": "abc", "shareUrl": "http://x/shared/abc",
			}})
		case "/collections/c1/members/u2":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			writeJSON(w, http.StatusOK, map[string]any{"member": map[string]any{"user": "u2", "role": body["role"]}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	ctx := context.Background()

	stats, err := c.GetCollectionStats(ctx, "c1").Unwrap()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Overview.TotalDocuments != 4 || stats.StatusDistribution.Error != 1 {
		t.Errorf("stats = %+v", stats)
	}

	share, err := c.GetCollectionSharing(ctx, "c1").Unwrap()
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if !share.IsPublic || share.ShareToken == nil || *share.ShareToken != "abc" {
		t.Errorf("share = %+v", share)
	}

	member, err := c.UpdateCollectionMember(ctx, "c1", "u2", protocol.RoleEditor).Unwrap()
	if err != nil {
		t.Fatalf("update member: %v", err)
	}
	if member.Member.Role != protocol.RoleEditor || member.Member.User.Kind != protocol.RefID {
		t.Errorf("member = %+v", member.Member)
	}
}

func TestBreakerOpensAfterTransportFailures(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(Config{
		BaseURL:     url,
		RetryConfig: retry.Config{MaxAttempts: 1},
		Breaker:     BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute},
	})
	for i := 0; i < 2; i++ {
		c.GetStats(context.Background())
	}
	if c.IsOnline() {
		t.Fatal("expected client to be offline after breaker tripped")
	}
	res := c.GetStats(context.Background())
	if res.OK() || res.Err.Kind != KindNetwork {
		t.Errorf("open breaker should fail fast with a network error, got %+v", res.Err)
	}
}

func TestDownloadDocument(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents/d1/download" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="contract.pdf"`)
		io.WriteString(w, "%PDF-data")
	}))
	defer ts.Close()

	dl, err := c.DownloadDocument(context.Background(), "d1").Unwrap()
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	var sb strings.Builder
	if _, err := dl.WriteTo(&sb); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if dl.FileName != "contract.pdf" || sb.String() != "%PDF-data" {
		t.Errorf("name=%q body=%q", dl.FileName, sb.String())
	}

	res := c.DownloadDocument(context.Background(), "missing")
	if res.OK() || res.Err.Status != http.StatusNotFound {
		t.Errorf("missing download: %+v", res.Err)
	}
}

func TestConcurrentCallsShareLogger(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"collections": []map[string]any{{"_id": "c1", "name": "A"}}})
	}))
	defer ts.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := c.GetCollections(context.Background()); !res.OK() {
				t.Errorf("GetCollections: %v", res.Err)
			}
		}()
	}
	wg.Wait()
}

type failFirst struct {
	n     int32
	calls atomic.Int32
}

func (f *failFirst) RoundTrip(r *http.Request) (*http.Response, error) {
	if f.calls.Add(1) <= f.n {
		return nil, io.ErrUnexpectedEOF
	}
	return http.DefaultTransport.RoundTrip(r)
}

func TestPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	defer ts.Close()

	tests := []struct {
		name     string
		failures int32
		attempts int
		wantErr  bool
		wantKind Kind
	}{
		{"healthy", 0, 3, false, 0},
		{"transport failure retried", 2, 3, false, 0},
		{"unreachable", 3, 3, true, KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &failFirst{n: tt.failures}
			c := New(Config{
				BaseURL:     ts.URL,
				Transport:   tr,
				RetryConfig: retry.Config{MaxAttempts: tt.attempts, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
			})
			err := c.Ping(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Ping() = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if e, ok := AsError(err); !ok || e.Kind != tt.wantKind {
					t.Errorf("Ping() error = %#v, want kind %s", err, tt.wantKind)
				}
			}
		})
	}
}
