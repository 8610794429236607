package store

import (
	"context"
	"errors"
	"time"

	"vigil/internal/models"
)

// Store errors
var (
	// ErrStoreUnavailable wraps any rule or event read/write that could not
	// complete against the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrRuleNotFound is returned by single-rule lookups and deletes.
	ErrRuleNotFound = errors.New("rule not found")
)

// RuleStore is a durable collection of rule definitions keyed by rule ID.
type RuleStore interface {
	CreateRule(ctx context.Context, rule models.Rule) error
	GetRule(ctx context.Context, id string) (models.Rule, error)
	ListRules(ctx context.Context) ([]models.Rule, error)
	DeleteRule(ctx context.Context, id string) error
	Close()
}

// EventStore is a durable, time-ordered collection of activity records.
// FetchEvents returns all events whose timestamp lies within [start, end],
// inclusive of both bounds. No ordering is guaranteed.
type EventStore interface {
	AppendEvent(ctx context.Context, event models.Event) error
	FetchEvents(ctx context.Context, start, end time.Time) ([]models.Event, error)
	Close()
}
