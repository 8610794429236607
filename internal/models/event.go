package models

import (
	"errors"
	"strings"
	"time"
)

// EventTimeFormat is the storage contract for event timestamps: ISO-8601 UTC
// with second precision and a trailing Z, no fractional seconds.
const EventTimeFormat = "2006-01-02T15:04:05Z"

// Event is a single recorded occurrence of a named activity. Events are
// appended once by the ingestion layer and never mutated.
type Event struct {
	// Principal that performed the activity
	Actor string `json:"userIdentity"`

	// When the activity occurred, second precision, UTC
	Time time.Time `json:"eventTime"`

	// Activity name matched against Rule.Metric
	Name string `json:"eventName"`

	// Kind of resource the activity touched
	ResourceType string `json:"resourceType"`

	// Deployment region the activity was recorded in
	Region string `json:"region"`

	// Raw request parameters, opaque JSON
	RequestParameters string `json:"requestParameters,omitempty"`
}

// Validation errors
var (
	ErrEmptyActor     = errors.New("event actor cannot be empty")
	ErrEmptyEventName = errors.New("event name cannot be empty")
	ErrZeroEventTime  = errors.New("event time cannot be zero")
)

// Validate checks the fields the detection core depends on.
func (e *Event) Validate() error {
	if e.Actor == "" {
		return ErrEmptyActor
	}

	if e.Name == "" {
		return ErrEmptyEventName
	}

	if e.Time.IsZero() {
		return ErrZeroEventTime
	}

	return nil
}

// eventTimeFormats lists the formats ingestion attempts to parse, strictest first
var eventTimeFormats = []string{
	EventTimeFormat,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseEventTime parses an event timestamp string, normalizing it to UTC and
// truncating to whole seconds per the storage contract.
func ParseEventTime(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)

	for _, format := range eventTimeFormats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}

	return time.Time{}, errors.New("unrecognized event timestamp: " + ts)
}

// FormatEventTime renders a timestamp in the storage contract format.
func FormatEventTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(EventTimeFormat)
}
