package detector

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"vigil/internal/logger"
	"vigil/internal/metrics"
	"vigil/internal/models"
)

// RuleSource lists all currently defined rules.
type RuleSource interface {
	ListRules(ctx context.Context) ([]models.Rule, error)
}

// EventSource fetches all events whose timestamp lies within [start, end],
// inclusive of both bounds. The returned set is a candidate set: the
// evaluator counts by exact metric match and trusts the time bound at the
// source's contract boundary.
type EventSource interface {
	FetchEvents(ctx context.Context, start, end time.Time) ([]models.Event, error)
}

// AlertDispatcher formats and delivers an alert for a detected anomaly.
// Delivery is best-effort; failures are logged by the sweep, never propagated.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, rule models.Rule, matchedCount int) error
}

// Summary reports the outcome of one sweep.
type Summary struct {
	RulesEvaluated int
	AnomaliesFound int
}

// Sweeper runs one full evaluation pass over all rules per invocation. It
// does not manage its own trigger; an external scheduler calls Run.
type Sweeper struct {
	rules        RuleSource
	events       EventSource
	dispatcher   AlertDispatcher
	concurrency  int
	fetchTimeout time.Duration
}

// SweeperConfig holds sweep coordinator configuration.
type SweeperConfig struct {
	Rules        RuleSource
	Events       EventSource
	Dispatcher   AlertDispatcher
	Concurrency  int
	FetchTimeout time.Duration
}

// NewSweeper creates a sweep coordinator with injected collaborators.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}

	return &Sweeper{
		rules:        cfg.Rules,
		events:       cfg.Events,
		dispatcher:   cfg.Dispatcher,
		concurrency:  cfg.Concurrency,
		fetchTimeout: cfg.FetchTimeout,
	}
}

// Run executes one sweep. The reference time is captured once, truncated to
// whole seconds UTC, so every rule in the sweep shares the same window end.
//
// A rule-list failure aborts the sweep; any per-rule failure (event fetch,
// malformed rule, alert delivery) is logged and isolated so the remaining
// rules still get evaluated.
func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	log := logger.WithComponent("sweeper")
	start := time.Now()

	rules, err := s.rules.ListRules(ctx)
	if err != nil {
		metrics.SweepsTotal.WithLabelValues("failed").Inc()
		return Summary{}, fmt.Errorf("list rules: %w", err)
	}

	if len(rules) == 0 {
		log.Info().Msg("no anomaly rules defined, nothing to sweep")
		metrics.SweepsTotal.WithLabelValues("success").Inc()
		return Summary{}, nil
	}

	now := time.Now().UTC().Truncate(time.Second)

	var evaluated, anomalies atomic.Int64
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for _, rule := range rules {
		wg.Add(1)
		sem <- struct{}{}
		go func(rule models.Rule) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					log := logger.WithRule(rule.ID, rule.DisplayName())
					log.Error().
						Interface("panic", r).
						Bytes("stack", debug.Stack()).
						Msg("panic recovered while evaluating rule")
					metrics.PanicsRecovered.WithLabelValues("sweeper").Inc()
				}
			}()
			s.sweepRule(ctx, rule, now, &evaluated, &anomalies)
		}(rule)
	}
	wg.Wait()

	summary := Summary{
		RulesEvaluated: int(evaluated.Load()),
		AnomaliesFound: int(anomalies.Load()),
	}

	metrics.SweepsTotal.WithLabelValues("success").Inc()
	metrics.SweepDuration.Observe(time.Since(start).Seconds())

	log.Info().
		Int("rules_listed", len(rules)).
		Int("rules_evaluated", summary.RulesEvaluated).
		Int("anomalies_found", summary.AnomaliesFound).
		Dur("duration", time.Since(start)).
		Msg("sweep complete")

	return summary, nil
}

// sweepRule evaluates a single rule: compute window, fetch, count, dispatch.
func (s *Sweeper) sweepRule(ctx context.Context, rule models.Rule, now time.Time, evaluated, anomalies *atomic.Int64) {
	log := logger.WithRule(rule.ID, rule.DisplayName())

	// Re-validate before trusting TimeWindowMinutes for window arithmetic.
	if rule.Type.Supported() {
		if err := rule.Validate(); err != nil {
			log.Warn().Err(err).Msg("skipping malformed rule")
			metrics.RuleFailuresTotal.WithLabelValues("malformed").Inc()
			return
		}
	}

	windowStart := now.Add(-time.Duration(rule.TimeWindowMinutes) * time.Minute)

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	events, err := s.events.FetchEvents(fetchCtx, windowStart, now)
	if err != nil {
		log.Warn().Err(err).
			Time("window_start", windowStart).
			Time("window_end", now).
			Msg("event fetch failed, skipping rule")
		metrics.RuleFailuresTotal.WithLabelValues("fetch").Inc()
		return
	}

	result, err := Evaluate(rule, events)
	if err != nil {
		log.Warn().Err(err).Msg("skipping malformed rule")
		metrics.RuleFailuresTotal.WithLabelValues("malformed").Inc()
		return
	}

	evaluated.Add(1)
	metrics.RulesEvaluatedTotal.Inc()

	log.Debug().
		Str("metric", rule.Metric).
		Int("matched", result.MatchedCount).
		Int("threshold", rule.Threshold).
		Bool("anomaly", result.Anomaly).
		Msg("rule evaluated")

	if !result.Anomaly {
		return
	}

	anomalies.Add(1)
	metrics.AnomaliesDetectedTotal.Inc()

	if err := s.dispatcher.Dispatch(ctx, rule, result.MatchedCount); err != nil {
		log.Error().Err(err).Msg("alert dispatch failed")
		metrics.AlertsPublishedTotal.WithLabelValues("failed").Inc()
		return
	}

	log.Info().
		Int("matched", result.MatchedCount).
		Int("threshold", rule.Threshold).
		Msg("anomaly detected, alert dispatched")
	metrics.AlertsPublishedTotal.WithLabelValues("success").Inc()
}
