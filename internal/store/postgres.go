package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vigil/internal/models"
)

// PostgresStore implements RuleStore and EventStore on a pgx connection pool.
// The event range query runs against an index on event_time, preserving the
// logical contract of the reference full-collection scan.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CreateRule(ctx context.Context, rule models.Rule) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rules (rule_id, rule_name, rule_type, metric, threshold, time_window_minutes, target)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rule.ID, rule.Name, string(rule.Type), rule.Metric, rule.Threshold, rule.TimeWindowMinutes, rule.Target)
	if err != nil {
		return fmt.Errorf("%w: create rule: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) GetRule(ctx context.Context, id string) (models.Rule, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT rule_id, rule_name, rule_type, metric, threshold, time_window_minutes, target
		FROM rules WHERE rule_id = $1`, id)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Rule{}, ErrRuleNotFound
		}
		return models.Rule{}, fmt.Errorf("%w: get rule: %v", ErrStoreUnavailable, err)
	}
	return rule, nil
}

func (s *PostgresStore) ListRules(ctx context.Context) ([]models.Rule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT rule_id, rule_name, rule_type, metric, threshold, time_window_minutes, target
		FROM rules`)
	if err != nil {
		return nil, fmt.Errorf("%w: list rules: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	rules := []models.Rule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan rule: %v", ErrStoreUnavailable, err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list rules: %v", ErrStoreUnavailable, err)
	}
	return rules, nil
}

func (s *PostgresStore) DeleteRule(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rules WHERE rule_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete rule: %v", ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event models.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (actor, event_time, event_name, resource_type, region, request_parameters)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.Actor, event.Time.UTC(), event.Name, event.ResourceType, event.Region, event.RequestParameters)
	if err != nil {
		return fmt.Errorf("%w: append event: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) FetchEvents(ctx context.Context, start, end time.Time) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT actor, event_time, event_name, resource_type, region, request_parameters
		FROM events WHERE event_time BETWEEN $1 AND $2`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: fetch events: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.Actor, &e.Time, &e.Name, &e.ResourceType, &e.Region, &e.RequestParameters); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", ErrStoreUnavailable, err)
		}
		e.Time = e.Time.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: fetch events: %v", ErrStoreUnavailable, err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (models.Rule, error) {
	var rule models.Rule
	var ruleType string
	if err := row.Scan(&rule.ID, &rule.Name, &ruleType, &rule.Metric, &rule.Threshold, &rule.TimeWindowMinutes, &rule.Target); err != nil {
		return models.Rule{}, err
	}
	rule.Type = models.RuleType(ruleType)
	return rule, nil
}
