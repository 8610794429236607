package models_test

import (
	"testing"
	"time"

	"vigil/internal/models"
)

func TestParseEventTime(t *testing.T) {
	want := time.Date(2026, 8, 1, 12, 30, 45, 0, time.UTC)

	tests := []struct {
		name  string
		input string
	}{
		{"storage format", "2026-08-01T12:30:45Z"},
		{"rfc3339 with offset", "2026-08-01T14:30:45+02:00"},
		{"fractional seconds truncated", "2026-08-01T12:30:45.987Z"},
		{"no zone suffix", "2026-08-01T12:30:45"},
		{"space separator", "2026-08-01 12:30:45"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := models.ParseEventTime(tt.input)
			if err != nil {
				t.Fatalf("ParseEventTime(%q) error: %v", tt.input, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseEventTime(%q) = %v, want %v", tt.input, got, want)
			}
			if got.Location() != time.UTC {
				t.Errorf("ParseEventTime(%q) location = %v, want UTC", tt.input, got.Location())
			}
		})
	}

	if _, err := models.ParseEventTime("not-a-timestamp"); err == nil {
		t.Error("ParseEventTime accepted garbage input")
	}
}

func TestFormatEventTime(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 30, 45, 123456789, time.FixedZone("CEST", 2*3600))
	if got := models.FormatEventTime(ts); got != "2026-08-01T10:30:45Z" {
		t.Errorf("FormatEventTime() = %q, want %q", got, "2026-08-01T10:30:45Z")
	}
}

func TestEventValidate(t *testing.T) {
	validEvent := func() models.Event {
		return models.Event{
			Actor: "AIDAEXAMPLE:session",
			Time:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			Name:  "RunInstances",
		}
	}

	tests := []struct {
		name    string
		modify  func(*models.Event)
		wantErr error
	}{
		{"valid event", func(e *models.Event) {}, nil},
		{"empty actor", func(e *models.Event) { e.Actor = "" }, models.ErrEmptyActor},
		{"empty name", func(e *models.Event) { e.Name = "" }, models.ErrEmptyEventName},
		{"zero time", func(e *models.Event) { e.Time = time.Time{} }, models.ErrZeroEventTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			tt.modify(&e)
			if err := e.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
