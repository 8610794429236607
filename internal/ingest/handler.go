package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vigil/internal/logger"
	"vigil/internal/metrics"
	"vigil/internal/models"
)

// EventAppender persists a parsed activity event.
type EventAppender interface {
	AppendEvent(ctx context.Context, event models.Event) error
}

// Handler ingests raw resource-activity notifications over HTTP and appends
// them to the event store.
type Handler struct {
	events      EventAppender
	maxBodySize int64
	timeout     time.Duration
}

// Config holds configuration for the ingest handler
type Config struct {
	Events      EventAppender
	MaxBodySize int64
	Timeout     time.Duration
}

// NewHandler creates a new ingest handler
func NewHandler(cfg Config) *Handler {
	maxBodySize := cfg.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = 1 * 1024 * 1024 // 1MB default
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Handler{
		events:      cfg.Events,
		maxBodySize: maxBodySize,
		timeout:     timeout,
	}
}

// activityNotification is the incoming payload: an event-bus notification
// carrying the recorded activity under "detail".
type activityNotification struct {
	Detail activityDetail `json:"detail"`
}

type activityDetail struct {
	UserIdentity struct {
		PrincipalID string `json:"principalId"`
	} `json:"userIdentity"`
	EventTime         string          `json:"eventTime"`
	EventName         string          `json:"eventName"`
	EventSource       string          `json:"eventSource"`
	AWSRegion         string          `json:"awsRegion"`
	RequestParameters json.RawMessage `json:"requestParameters"`
}

// ParseActivity converts a raw activity notification into an Event. The
// resource type is the first dotted segment of the event source.
func ParseActivity(body []byte) (models.Event, error) {
	var notif activityNotification
	if err := json.Unmarshal(body, &notif); err != nil {
		return models.Event{}, fmt.Errorf("decode notification: %w", err)
	}

	detail := notif.Detail
	if detail.EventName == "" && detail.EventTime == "" {
		return models.Event{}, errors.New("notification has no detail payload")
	}

	ts, err := models.ParseEventTime(detail.EventTime)
	if err != nil {
		return models.Event{}, fmt.Errorf("event time: %w", err)
	}

	resourceType := detail.EventSource
	if i := strings.IndexByte(resourceType, '.'); i >= 0 {
		resourceType = resourceType[:i]
	}

	params := ""
	if len(detail.RequestParameters) > 0 && string(detail.RequestParameters) != "null" {
		params = string(detail.RequestParameters)
	}

	event := models.Event{
		Actor:             detail.UserIdentity.PrincipalID,
		Time:              ts,
		Name:              detail.EventName,
		ResourceType:      resourceType,
		Region:            detail.AWSRegion,
		RequestParameters: params,
	}

	if err := event.Validate(); err != nil {
		return models.Event{}, err
	}
	return event, nil
}

// ServeHTTP handles the ingest HTTP request
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("ingest")

	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		log.Warn().Err(err).Msg("failed to read request body")
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	event, err := ParseActivity(body)
	if err != nil {
		log.Warn().Err(err).Msg("rejected activity notification")
		metrics.EventsIngestedTotal.WithLabelValues("rejected").Inc()
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.events.AppendEvent(ctx, event); err != nil {
		log.Error().Err(err).
			Str("event_name", event.Name).
			Str("actor", event.Actor).
			Msg("failed to persist event")
		metrics.EventsIngestedTotal.WithLabelValues("rejected").Inc()
		h.writeError(w, http.StatusInternalServerError, "failed to persist event")
		return
	}

	log.Debug().
		Str("event_name", event.Name).
		Str("actor", event.Actor).
		Time("event_time", event.Time).
		Msg("event ingested")
	metrics.EventsIngestedTotal.WithLabelValues("accepted").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
