package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chunkquery/internal/domain"
	"github.com/kailas-cloud/chunkquery/internal/domain/filter"
	"github.com/kailas-cloud/chunkquery/internal/usecase/health"
	"github.com/kailas-cloud/chunkquery/internal/usecase/status"
)

// --- Mocks ---

type mockSearcher struct {
	matches []domain.Match
	err     error
	lastK   int
	lastF   filter.Filter
}

func (m *mockSearcher) Search(
	_ context.Context, _ string, k int, f filter.Filter,
) ([]domain.Match, error) {
	m.lastK = k
	m.lastF = f
	return m.matches, m.err
}

type mockStatus struct{ report status.Report }

func (m *mockStatus) Check(_ context.Context) status.Report { return m.report }

type mockHealth struct{ st health.Status }

func (m *mockHealth) Check(_ context.Context) (health.Status, map[string]bool) {
	return m.st, map[string]bool{"pgvector-1": m.st == health.Healthy}
}

type mockCollections struct {
	cols []domain.Collection
	err  error
}

func (m *mockCollections) Collections(_ context.Context) ([]domain.Collection, error) {
	return m.cols, m.err
}

func newTestServer(search *mockSearcher, collections CollectionLister) *httptest.Server {
	srv := NewServer(Config{
		Backends: []domain.Backend{
			{ID: "pgvector-1", Name: "PostgreSQL Vector DB", Kind: domain.KindSQLVector},
		},
		Search: search,
		Status: &mockStatus{report: status.Report{
			Status: domain.StatusOK,
			Backends: map[string]domain.BackendStatus{
				"pgvector-1": {Name: "PostgreSQL Vector DB", Status: domain.StatusOK, DocumentCount: 12},
			},
		}},
		Health:      &mockHealth{st: health.Healthy},
		Collections: collections,
		DefaultK:    5,
		MaxK:        50,
		Logger:      zap.NewNop(),
	})

	r := chi.NewRouter()
	srv.Routes(r)
	return httptest.NewServer(r)
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

// --- Tests ---

func TestListBackends(t *testing.T) {
	ts := newTestServer(&mockSearcher{}, nil)
	defer ts.Close()

	resp, body := get(t, ts.URL+"/vector-stores")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var backends []domain.Backend
	if err := json.Unmarshal(body, &backends); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(backends) != 1 || backends[0].ID != "pgvector-1" {
		t.Errorf("backends = %+v", backends)
	}
}

func TestBackendStatus(t *testing.T) {
	ts := newTestServer(&mockSearcher{}, nil)
	defer ts.Close()

	resp, body := get(t, ts.URL+"/vector-stores/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var report struct {
		Status   string                          `json:"status"`
		Backends map[string]domain.BackendStatus `json:"vector_stores"`
	}
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.Status != "ok" || report.Backends["pgvector-1"].DocumentCount != 12 {
		t.Errorf("report = %+v", report)
	}
}

func TestListCollections(t *testing.T) {
	cols := &mockCollections{cols: []domain.Collection{
		{ID: "apollo", Name: "Apollo Program", Tags: []string{"nasa"}},
	}}
	ts := newTestServer(&mockSearcher{}, cols)
	defer ts.Close()

	resp, body := get(t, ts.URL+"/collections")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got []domain.Collection
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].ID != "apollo" {
		t.Errorf("collections = %+v", got)
	}
}

func TestListCollections_NoReader(t *testing.T) {
	ts := newTestServer(&mockSearcher{}, nil)
	defer ts.Close()

	resp, body := get(t, ts.URL+"/collections")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(body) != "[]\n" {
		t.Errorf("body = %q, want empty JSON list", body)
	}
}

func TestSearch(t *testing.T) {
	search := &mockSearcher{matches: []domain.Match{
		{Content: "chunk", DocumentID: "d1", ChunkID: "c1", Similarity: 0.91, Tags: []string{}},
	}}
	ts := newTestServer(search, nil)
	defer ts.Close()

	resp, body := get(t, ts.URL+"/search?query=apollo+guidance&k=2&backend_id=pgvector-1&tag=nasa")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}

	var got []domain.Match
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Similarity != 0.91 {
		t.Errorf("matches = %+v", got)
	}
	if search.lastK != 2 {
		t.Errorf("k = %d, want 2", search.lastK)
	}
	if len(search.lastF.BackendIDs) != 1 || search.lastF.BackendIDs[0] != "pgvector-1" {
		t.Errorf("backend filter = %v", search.lastF.BackendIDs)
	}
	if len(search.lastF.Tags) != 1 || search.lastF.Tags[0] != "nasa" {
		t.Errorf("tag filter = %v", search.lastF.Tags)
	}
}

func TestSearch_DefaultK(t *testing.T) {
	search := &mockSearcher{matches: []domain.Match{}}
	ts := newTestServer(search, nil)
	defer ts.Close()

	resp, _ := get(t, ts.URL+"/search?query=hello")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if search.lastK != 5 {
		t.Errorf("k = %d, want default 5", search.lastK)
	}
}

func TestSearch_KCappedAtMax(t *testing.T) {
	search := &mockSearcher{matches: []domain.Match{}}
	ts := newTestServer(search, nil)
	defer ts.Close()

	resp, _ := get(t, ts.URL+"/search?query=hello&k=9999")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if search.lastK != 50 {
		t.Errorf("k = %d, want capped at 50", search.lastK)
	}
}

func TestSearch_BadRequests(t *testing.T) {
	ts := newTestServer(&mockSearcher{}, nil)
	defer ts.Close()

	for _, url := range []string{
		ts.URL + "/search",                 // missing query
		ts.URL + "/search?query=x&k=nope", // non-numeric k
	} {
		resp, _ := get(t, url)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s: status = %d, want 400", url, resp.StatusCode)
		}
	}
}

func TestSearch_EmbeddingFailureIs502(t *testing.T) {
	search := &mockSearcher{err: fmt.Errorf("embed query: %w", domain.ErrEmbedding)}
	ts := newTestServer(search, nil)
	defer ts.Close()

	resp, _ := get(t, ts.URL+"/search?query=x")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(&mockSearcher{}, nil)
	defer ts.Close()

	resp, body := get(t, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["status"] != "ok" {
		t.Errorf("health status = %q", got["status"])
	}
	if got["version"] == "" {
		t.Error("health response must carry the build version")
	}
}
