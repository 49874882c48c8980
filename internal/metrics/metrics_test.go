package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTransportRecordsRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer ts.Close()

	client := &http.Client{Transport: NewTransport(nil)}
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	body := scrape(t)
	if !strings.Contains(body, `docshelf_client_requests_total{method="GET",status="418"}`) {
		t.Errorf("expected request counter for 418 in metrics output")
	}
}

func TestRecordHelpersExposeSeries(t *testing.T) {
	RecordCacheLookup("documents", "hit")
	RecordCacheInvalidation("collections", 2)
	RecordUploadRejected("type")
	RecordMutation("create_collection", true)
	SetBackendOnline(false)

	body := scrape(t)
	for _, want := range []string{
		`docshelf_cache_lookups_total{kind="documents",outcome="hit"}`,
		`docshelf_cache_invalidations_total{kind="collections"} 2`,
		`docshelf_upload_rejections_total{reason="type"}`,
		`docshelf_mutations_total{name="create_collection",status="success"}`,
		`docshelf_backend_online 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	data, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(data)
}
