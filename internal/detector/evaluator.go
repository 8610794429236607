package detector

import (
	"errors"
	"fmt"

	"vigil/internal/models"
)

// ErrMalformedRule marks a rule whose stored fields violate the invariants
// every rule must satisfy. Such rules are skipped, not evaluated.
var ErrMalformedRule = errors.New("malformed rule")

// Result is the outcome of evaluating one rule against a fetched event set.
type Result struct {
	// Number of events whose name exactly equals the rule's metric
	MatchedCount int

	// Whether the count strictly exceeds the rule's threshold
	Anomaly bool
}

// Evaluate computes the matching-event count for one rule and applies its
// threshold policy. It is a pure function of its inputs.
//
// Rules of an unsupported type are inert: they evaluate to no anomaly
// regardless of event content. Count-based rules are re-validated defensively
// since a malformed rule could have been written out-of-band; equality with
// the threshold is not an anomaly, only a strictly greater count is.
func Evaluate(rule models.Rule, events []models.Event) (Result, error) {
	if !rule.Type.Supported() {
		return Result{}, nil
	}

	if err := rule.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}

	matched := 0
	for _, event := range events {
		if event.Name == rule.Metric {
			matched++
		}
	}

	return Result{
		MatchedCount: matched,
		Anomaly:      matched > rule.Threshold,
	}, nil
}
