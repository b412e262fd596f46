package crunchbase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"startuplens/internal/domain/catalog"
)

func orgEntity(uuid, name, industry string) entity {
	return entity{
		UUID: uuid,
		Properties: properties{
			Identifier:       identifier{UUID: uuid, Value: name},
			ShortDescription: name + " builds things",
			Categories:       []category{{Value: industry}},
			LocationIdentifiers: []location{
				{Value: "Berlin", LocationType: "city"},
				{Value: "Berlin", LocationType: "region"},
				{Value: "Germany", LocationType: "country"},
			},
			FundingTotal:     &money{ValueUSD: 15_000_000},
			FoundedOn:        &dateValue{Value: "2021-06-01"},
			NumEmployeesEnum: "c_00011_00050",
			WebsiteURL:       "https://" + name + ".example",
		},
	}
}

func newSearchServer(t *testing.T, pages map[string][]entity) (*httptest.Server, *int64) {
	t.Helper()
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		if r.URL.Path != "/searches/organizations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-cb-user-key"); got != "cb-test-key" {
			t.Errorf("X-cb-user-key = %q", got)
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Limit <= 0 || req.Limit > 50 {
			t.Errorf("page limit = %d", req.Limit)
		}
		if len(req.Query) < 2 {
			t.Errorf("query predicates missing: %+v", req.Query)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchResponse{Entities: pages[req.AfterID]})
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		APIKey:         "cb-test-key",
		BaseURL:        url,
		PageSize:       50,
		Cooldown:       time.Millisecond,
		MinFoundedYear: 2015,
	})
}

func TestFetchPaginates(t *testing.T) {
	srv, requests := newSearchServer(t, map[string][]entity{
		"":   {orgEntity("u1", "Alpha", "SaaS"), orgEntity("u2", "Beta", "Fintech")},
		"u2": {orgEntity("u3", "Gamma", "Health")},
		"u3": {},
	})
	c := newTestClient(srv.URL)

	records, err := c.Fetch(context.Background(), 10, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if got := atomic.LoadInt64(requests); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}

	first := records[0]
	if first.Name != "Alpha" || first.Industry != "SaaS" || first.Source != catalog.SourceCrunchbase {
		t.Errorf("record mapped wrong: %+v", first)
	}
	if first.Location != "Berlin, Berlin" {
		t.Errorf("location = %q", first.Location)
	}
	if first.Funding != "$15M" {
		t.Errorf("funding = %q", first.Funding)
	}
	if first.Founded != 2021 || first.TeamSize != 30 {
		t.Errorf("founded/team = %d/%d", first.Founded, first.TeamSize)
	}
	if first.SourceID != "u1" || first.ContentHash == "" {
		t.Errorf("provenance not set: %+v", first)
	}
}

func TestFetchHonorsLimit(t *testing.T) {
	srv, _ := newSearchServer(t, map[string][]entity{
		"": {orgEntity("u1", "Alpha", "SaaS"), orgEntity("u2", "Beta", "Fintech")},
	})
	c := newTestClient(srv.URL)

	records, err := c.Fetch(context.Background(), 2, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestFetchRetriesOnRateLimit(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&requests, 1)
		if n == 1 {
			http.Error(w, `{"message":"rate limit"}`, http.StatusTooManyRequests)
			return
		}
		var req searchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		ents := []entity{}
		if req.AfterID == "" {
			ents = []entity{orgEntity("u1", "Alpha", "SaaS")}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchResponse{Entities: ents})
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(srv.URL)
	records, err := c.Fetch(context.Background(), 5, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if got := atomic.LoadInt64(&requests); got < 3 {
		t.Errorf("server saw %d requests, want first page retried after 429", got)
	}
}

func TestFetchReturnsPartialOnServerError(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&requests, 1) > 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchResponse{
			Entities: []entity{orgEntity("u1", "Alpha", "SaaS"), orgEntity("u2", "Beta", "Fintech")},
		})
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(srv.URL)
	records, err := c.Fetch(context.Background(), 10, time.Time{})
	if err != nil {
		t.Fatalf("partial result must not be an error, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want the 2 collected before the failure", len(records))
	}
}

func TestFetchSkipsUnparseableEntries(t *testing.T) {
	nameless := entity{UUID: "u2", Properties: properties{ShortDescription: "no name"}}
	srv, _ := newSearchServer(t, map[string][]entity{
		"":   {orgEntity("u1", "Alpha", "SaaS"), nameless},
		"u2": {},
	})
	c := newTestClient(srv.URL)

	records, err := c.Fetch(context.Background(), 10, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Name != "Alpha" {
		t.Fatalf("records = %+v, want only Alpha", records)
	}
}

func TestFetchSendsUpdatedSincePredicate(t *testing.T) {
	since := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var sawUpdatedAt atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, p := range req.Query {
			if p.FieldID == "updated_at" && len(p.Values) == 1 && p.Values[0] == "2024-03-01" {
				sawUpdatedAt.Store(true)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchResponse{})
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(srv.URL)
	if _, err := c.Fetch(context.Background(), 5, since); err != nil {
		t.Fatal(err)
	}
	if !sawUpdatedAt.Load() {
		t.Error("updated_at predicate not sent")
	}
}

func TestFieldNormalization(t *testing.T) {
	t.Run("funding", func(t *testing.T) {
		tests := []struct {
			usd  float64
			want string
		}{
			{15_000_000, "$15M"},
			{1_500_000, "$1.5M"},
			{800_000, "$800K"},
			{2_100_000_000, "$2.1B"},
			{500, "$500"},
			{0, ""},
		}
		for _, tt := range tests {
			if got := formatFunding(tt.usd); got != tt.want {
				t.Errorf("formatFunding(%v) = %q, want %q", tt.usd, got, tt.want)
			}
		}
	})

	t.Run("location degrades", func(t *testing.T) {
		full := []location{{Value: "Austin", LocationType: "city"}, {Value: "Texas", LocationType: "region"}}
		if got := formatLocation(full); got != "Austin, Texas" {
			t.Errorf("city+region = %q", got)
		}
		if got := formatLocation(full[:1]); got != "Austin" {
			t.Errorf("city only = %q", got)
		}
		if got := formatLocation([]location{{Value: "Germany", LocationType: "country"}}); got != "Germany" {
			t.Errorf("country only = %q", got)
		}
		if got := formatLocation(nil); got != "" {
			t.Errorf("missing = %q, want empty for sentinel fill", got)
		}
	})

	t.Run("employee bands", func(t *testing.T) {
		if employeeBands["c_00011_00050"] != 30 || employeeBands["11-50"] != 30 {
			t.Error("11-50 band must map to 30")
		}
		if employeeBands["c_10001_max"] != 10001 {
			t.Error("top band mapping wrong")
		}
	})

	t.Run("founded year", func(t *testing.T) {
		if got := foundedYear(&dateValue{Value: "2019-11-02"}); got != 2019 {
			t.Errorf("foundedYear = %d", got)
		}
		if got := foundedYear(nil); got != 0 {
			t.Errorf("nil founded = %d", got)
		}
		if got := foundedYear(&dateValue{Value: "n/a"}); got != 0 {
			t.Errorf("bad founded = %d", got)
		}
	})

	t.Run("sentinels after normalize", func(t *testing.T) {
		rec, err := normalizeEntity(entity{
			UUID:       "u9",
			Properties: properties{Identifier: identifier{Value: "Bare"}},
		})
		if err != nil {
			t.Fatal(err)
		}
		rec.Normalize(time.Now())
		if rec.Industry != catalog.IndustryUnknown || rec.Funding != catalog.FundingUnknown || rec.Location != catalog.LocationUnknown {
			t.Errorf("sentinels not applied: %+v", rec)
		}
	})
}
