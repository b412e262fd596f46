package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"startuplens/internal/db/vecstore"
	"startuplens/internal/domain/catalog"
	"startuplens/internal/domain/rag"
	"startuplens/internal/provider"
)

type stubSnapshots struct {
	snap *vecstore.Snapshot
	err  error
}

func (s *stubSnapshots) LoadSnapshot() (*vecstore.Snapshot, error) { return s.snap, s.err }

type stubEmbedder struct{ vec []float32 }

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.vec
	}
	return out, nil
}

func (s *stubEmbedder) EmbedWithFallback(ctx context.Context, texts []string) ([][]float32, int) {
	out, _ := s.Embed(ctx, texts)
	return out, 0
}

func (s *stubEmbedder) Dims() int { return len(s.vec) }

type stubProvider struct {
	name   string
	answer string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Complete(context.Context, *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	return &provider.CompletionResponse{Content: p.answer, FinishReason: "stop"}, nil
}

func testServer(t *testing.T, snapshots rag.SnapshotSource) *Server {
	t.Helper()
	provider.RegisterProvider(&stubProvider{name: "stub-api", answer: "TechFlow自动化企业流程。"})

	cfg := rag.DefaultConfig()
	cfg.ChatProvider = "stub-api"
	retriever := rag.NewRetriever(snapshots, &stubEmbedder{vec: []float32{1, 0, 0, 0}}, nil, cfg)
	answerer := rag.NewAnswerer(retriever, cfg)
	return NewServer(DefaultServerConfig(), retriever, answerer, snapshots)
}

func loadedSnapshots(t *testing.T) *stubSnapshots {
	t.Helper()
	ix, err := vecstore.NewIndex(4)
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Add([][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}); err != nil {
		t.Fatal(err)
	}
	entries := []vecstore.IndexEntry{
		{ID: 0, StartupRecord: catalog.StartupRecord{Name: "TechFlow", Description: "workflow automation", Industry: "Enterprise Software", Location: "San Francisco, CA", Funding: "$15M Series A", Founded: 2021, TeamSize: 45}},
		{ID: 1, StartupRecord: catalog.StartupRecord{Name: "HealthAI", Description: "disease detection", Industry: "Healthcare", Location: "Boston, MA", Funding: "$25M Series B", Founded: 2020, TeamSize: 67}},
	}
	return &stubSnapshots{snap: &vecstore.Snapshot{Index: ix, Entries: entries}}
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestSearchEndpoint(t *testing.T) {
	handler := testServer(t, loadedSnapshots(t)).Handler()

	t.Run("missing q", func(t *testing.T) {
		rr := get(t, handler, "/search")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rr.Code)
		}
		var e errorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || e.Detail == "" {
			t.Errorf("error body = %s", rr.Body.String())
		}
	})

	t.Run("bad top_k", func(t *testing.T) {
		for _, path := range []string{"/search?q=x&top_k=abc", "/search?q=x&top_k=-1"} {
			if rr := get(t, handler, path); rr.Code != http.StatusBadRequest {
				t.Errorf("%s: status = %d, want 400", path, rr.Code)
			}
		}
	})

	t.Run("results", func(t *testing.T) {
		rr := get(t, handler, "/search?q=workflow+automation")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
		}
		var items []rag.SearchResultItem
		if err := json.Unmarshal(rr.Body.Bytes(), &items); err != nil {
			t.Fatal(err)
		}
		if len(items) != 2 {
			t.Fatalf("got %d items", len(items))
		}
		if items[0].Name != "TechFlow" || items[0].Rank != 1 {
			t.Errorf("top hit = %+v", items[0])
		}
	})

	t.Run("top_k bound", func(t *testing.T) {
		rr := get(t, handler, "/search?q=workflow&top_k=1")
		var items []rag.SearchResultItem
		if err := json.Unmarshal(rr.Body.Bytes(), &items); err != nil {
			t.Fatal(err)
		}
		if len(items) != 1 {
			t.Errorf("got %d items, want 1", len(items))
		}
	})

	t.Run("index not ready", func(t *testing.T) {
		h := testServer(t, &stubSnapshots{err: vecstore.ErrNotReady}).Handler()
		rr := get(t, h, "/search?q=x")
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rr.Code)
		}
	})
}

func TestAskEndpoint(t *testing.T) {
	t.Run("missing q", func(t *testing.T) {
		handler := testServer(t, loadedSnapshots(t)).Handler()
		if rr := get(t, handler, "/ask"); rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("answer", func(t *testing.T) {
		handler := testServer(t, loadedSnapshots(t)).Handler()
		rr := get(t, handler, "/ask?q=which+startup+automates+workflows%3F")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
		}
		var resp AskResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Question != "which startup automates workflows?" || resp.Answer == "" {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("empty index yields fixed message", func(t *testing.T) {
		ix, _ := vecstore.NewIndex(4)
		handler := testServer(t, &stubSnapshots{snap: &vecstore.Snapshot{Index: ix}}).Handler()
		rr := get(t, handler, "/ask?q=anything")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var resp AskResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Answer != rag.NoAnswerMessage {
			t.Errorf("answer = %q", resp.Answer)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("index loaded", func(t *testing.T) {
		handler := testServer(t, loadedSnapshots(t)).Handler()
		rr := get(t, handler, "/health")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var resp HealthResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != "healthy" || !resp.IndexLoaded {
			t.Errorf("resp = %+v", resp)
		}
		if resp.StartupCount == nil || *resp.StartupCount != 2 {
			t.Errorf("startup_count = %v, want 2", resp.StartupCount)
		}
	})

	t.Run("index not ready", func(t *testing.T) {
		handler := testServer(t, &stubSnapshots{err: vecstore.ErrNotReady}).Handler()
		rr := get(t, handler, "/health")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var resp HealthResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != "healthy" || resp.IndexLoaded || resp.StartupCount != nil {
			t.Errorf("resp = %+v", resp)
		}
	})
}

func TestRootAndCORS(t *testing.T) {
	handler := testServer(t, loadedSnapshots(t)).Handler()

	rr := get(t, handler, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["message"] == "" {
		t.Error("banner message missing")
	}

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	pre := httptest.NewRecorder()
	handler.ServeHTTP(pre, req)
	if pre.Code != http.StatusOK {
		t.Errorf("preflight status = %d", pre.Code)
	}
	if pre.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing on preflight")
	}
}
