package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vigil/internal/config"
	"vigil/internal/store"
)

type esHit struct {
	Source map[string]any `json:"_source"`
	Sort   []any          `json:"sort"`
}

func esPage(hits []esHit) string {
	body, _ := json.Marshal(map[string]any{
		"hits": map[string]any{"hits": hits},
	})
	return string(body)
}

func esEventHit(i int) esHit {
	return esHit{
		Source: map[string]any{
			"userIdentity": "AIDAEXAMPLE:session",
			"eventTime":    "2026-08-01T12:00:00Z",
			"eventName":    "RunInstances",
			"resourceType": "ec2",
			"region":       "eu-west-1",
		},
		Sort: []any{"2026-08-01T12:00:00Z", fmt.Sprintf("doc-%d", i)},
	}
}

func newElasticStore(t *testing.T, handler http.HandlerFunc, fetchSize int) *store.ElasticEventStore {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := store.NewElasticEventStore(config.ElasticsearchConfig{
		Addresses: []string{srv.URL},
		Index:     "resource-events",
		FetchSize: fetchSize,
	})
	if err != nil {
		t.Fatalf("NewElasticEventStore error: %v", err)
	}
	return es
}

// A window with more matching events than one page must be walked to
// exhaustion, not truncated at the page size.
func TestFetchEventsPaginatesPastPageSize(t *testing.T) {
	var bodies []string

	es := newElasticStore(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(raw))

		w.Header().Set("Content-Type", "application/json")
		switch len(bodies) {
		case 1:
			io.WriteString(w, esPage([]esHit{esEventHit(1), esEventHit(2)}))
		case 2:
			io.WriteString(w, esPage([]esHit{esEventHit(3)}))
		default:
			t.Errorf("unexpected extra search request %d", len(bodies))
			io.WriteString(w, esPage(nil))
		}
	}, 2)

	start := time.Date(2026, 8, 1, 11, 55, 0, 0, time.UTC)
	end := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	events, err := es.FetchEvents(context.Background(), start, end)
	if err != nil {
		t.Fatalf("FetchEvents error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("fetched %d events, want 3 across pages", len(events))
	}
	if len(bodies) != 2 {
		t.Fatalf("made %d search requests, want 2", len(bodies))
	}
	if strings.Contains(bodies[0], "search_after") {
		t.Error("first page request carries search_after")
	}
	if !strings.Contains(bodies[1], `"search_after":["2026-08-01T12:00:00Z","doc-2"]`) {
		t.Errorf("second page request missing cursor, body: %s", bodies[1])
	}
}

func TestFetchEventsSinglePage(t *testing.T) {
	requests := 0
	es := newElasticStore(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, esPage([]esHit{esEventHit(1)}))
	}, 10)

	events, err := es.FetchEvents(context.Background(), time.Now().UTC().Add(-time.Hour), time.Now().UTC())
	if err != nil {
		t.Fatalf("FetchEvents error: %v", err)
	}
	if len(events) != 1 || requests != 1 {
		t.Errorf("got %d events over %d requests, want 1 over 1", len(events), requests)
	}
}

func TestFetchEventsSkipsBrokenTimestamps(t *testing.T) {
	broken := esEventHit(1)
	broken.Source["eventTime"] = "not-a-timestamp"

	es := newElasticStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, esPage([]esHit{broken, esEventHit(2)}))
	}, 10)

	events, err := es.FetchEvents(context.Background(), time.Now().UTC().Add(-time.Hour), time.Now().UTC())
	if err != nil {
		t.Fatalf("FetchEvents error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("fetched %d events, want the single parseable one", len(events))
	}
	if events[0].Name != "RunInstances" {
		t.Errorf("event name = %q", events[0].Name)
	}
}

func TestFetchEventsSearchError(t *testing.T) {
	es := newElasticStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"index_not_found_exception"}`, http.StatusNotFound)
	}, 10)

	_, err := es.FetchEvents(context.Background(), time.Now().UTC().Add(-time.Hour), time.Now().UTC())
	if err == nil {
		t.Fatal("FetchEvents accepted an error response")
	}
	if !errors.Is(err, store.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}
