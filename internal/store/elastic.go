package store

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"vigil/internal/config"
	"vigil/internal/models"
)

// ElasticEventStore serves the event collection from an Elasticsearch index.
// Timestamps are stored as ISO-8601 UTC strings with second precision and a
// trailing Z; the range filter is applied by the store itself.
type ElasticEventStore struct {
	client    *es.Client
	index     string
	fetchSize int
}

// NewElasticEventStore builds an Elasticsearch-backed event store.
func NewElasticEventStore(cfg config.ElasticsearchConfig) (*ElasticEventStore, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		},
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}

	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("init elasticsearch client: %w", err)
	}

	fetchSize := cfg.FetchSize
	if fetchSize <= 0 {
		fetchSize = 10000
	}

	return &ElasticEventStore{
		client:    client,
		index:     cfg.Index,
		fetchSize: fetchSize,
	}, nil
}

// Close exists to satisfy EventStore; the underlying HTTP transport needs no
// explicit teardown.
func (s *ElasticEventStore) Close() {}

type eventDoc struct {
	Actor             string `json:"userIdentity"`
	EventTime         string `json:"eventTime"`
	EventName         string `json:"eventName"`
	ResourceType      string `json:"resourceType"`
	Region            string `json:"region"`
	RequestParameters string `json:"requestParameters,omitempty"`
}

func (s *ElasticEventStore) AppendEvent(ctx context.Context, event models.Event) error {
	doc := eventDoc{
		Actor:             event.Actor,
		EventTime:         models.FormatEventTime(event.Time),
		EventName:         event.Name,
		ResourceType:      event.ResourceType,
		Region:            event.Region,
		RequestParameters: event.RequestParameters,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode event: %v", ErrStoreUnavailable, err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: append event: %v", ErrStoreUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: append event: %s", ErrStoreUnavailable, res.String())
	}
	return nil
}

// FetchEvents returns every event in [start, end]. Result sets larger than
// one page are walked with search_after until the index is exhausted, so a
// busy window never gets truncated at the page size.
func (s *ElasticEventStore) FetchEvents(ctx context.Context, start, end time.Time) ([]models.Event, error) {
	var (
		events      []models.Event
		searchAfter []any
	)

	for {
		query := map[string]any{
			"size": s.fetchSize,
			"sort": []any{
				map[string]any{"eventTime": "asc"},
				map[string]any{"_id": "asc"},
			},
			"query": map[string]any{
				"bool": map[string]any{
					"filter": []any{
						map[string]any{
							"range": map[string]any{
								"eventTime": map[string]any{
									"gte": models.FormatEventTime(start),
									"lte": models.FormatEventTime(end),
								},
							},
						},
					},
				},
			},
		}
		if searchAfter != nil {
			query["search_after"] = searchAfter
		}

		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(query); err != nil {
			return nil, fmt.Errorf("%w: encode query: %v", ErrStoreUnavailable, err)
		}

		res, err := s.client.Search(
			s.client.Search.WithContext(ctx),
			s.client.Search.WithIndex(s.index),
			s.client.Search.WithBody(&buf),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch events: %v", ErrStoreUnavailable, err)
		}
		if res.IsError() {
			msg := res.String()
			res.Body.Close()
			return nil, fmt.Errorf("%w: fetch events: %s", ErrStoreUnavailable, msg)
		}

		var parsed struct {
			Hits struct {
				Hits []struct {
					Source eventDoc `json:"_source"`
					Sort   []any    `json:"sort"`
				} `json:"hits"`
			} `json:"hits"`
		}
		err = json.NewDecoder(res.Body).Decode(&parsed)
		res.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrStoreUnavailable, err)
		}

		for _, hit := range parsed.Hits.Hits {
			ts, err := models.ParseEventTime(hit.Source.EventTime)
			if err != nil {
				// A document with a broken timestamp cannot be window-filtered;
				// skip it rather than fail the whole fetch.
				continue
			}
			events = append(events, models.Event{
				Actor:             hit.Source.Actor,
				Time:              ts,
				Name:              hit.Source.EventName,
				ResourceType:      hit.Source.ResourceType,
				Region:            hit.Source.Region,
				RequestParameters: hit.Source.RequestParameters,
			})
		}

		if len(parsed.Hits.Hits) < s.fetchSize {
			return events, nil
		}
		last := parsed.Hits.Hits[len(parsed.Hits.Hits)-1]
		if last.Sort == nil {
			return events, nil
		}
		searchAfter = last.Sort
	}
}
