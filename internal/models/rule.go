package models

import "errors"

// RuleType enumerates the supported kinds of anomaly rules
type RuleType string

const (
	// RuleTypeCountBased triggers when the matching-event count in the
	// trailing window strictly exceeds the threshold.
	RuleTypeCountBased RuleType = "count-based"
)

// Supported reports whether the rule type is one the evaluator understands.
// Unknown types are evaluated as inert rather than rejected.
func (t RuleType) Supported() bool {
	return t == RuleTypeCountBased
}

// DefaultRuleName is used when a rule was stored without a display label
const DefaultRuleName = "Unnamed Rule"

// Rule is a persisted definition of what to count, over what window, and at
// what threshold, to decide an anomaly. Rules are immutable once created.
type Rule struct {
	// Unique identifier, assigned at creation
	ID string `json:"ruleId"`

	// Optional display label
	Name string `json:"ruleName,omitempty"`

	// Kind of check this rule performs
	Type RuleType `json:"ruleType"`

	// Event name whose occurrences are counted
	Metric string `json:"metric"`

	// Anomaly triggers when the observed count strictly exceeds this value
	Threshold int `json:"threshold"`

	// Length of the trailing window, in minutes, ending at evaluation time
	TimeWindowMinutes int `json:"timeWindow"`

	// Subject the rule applies to; stored, not used in matching
	Target string `json:"target"`
}

// Validation errors
var (
	ErrUnsupportedRuleType   = errors.New("unsupported rule type")
	ErrEmptyMetric           = errors.New("metric cannot be empty")
	ErrNonPositiveThreshold  = errors.New("threshold must be a positive integer")
	ErrNonPositiveTimeWindow = errors.New("time window must be a positive number of minutes")
	ErrEmptyTarget           = errors.New("target cannot be empty")
)

// Validate checks the invariants every stored rule must satisfy. It is the
// single validation path shared by the rule management API at creation time
// and by the evaluator, which re-checks defensively since a malformed rule
// could have been written out-of-band.
func (r Rule) Validate() error {
	if !r.Type.Supported() {
		return ErrUnsupportedRuleType
	}

	if r.Metric == "" {
		return ErrEmptyMetric
	}

	if r.Threshold <= 0 {
		return ErrNonPositiveThreshold
	}

	if r.TimeWindowMinutes <= 0 {
		return ErrNonPositiveTimeWindow
	}

	if r.Target == "" {
		return ErrEmptyTarget
	}

	return nil
}

// DisplayName returns the rule's label, falling back to a default for rules
// stored without one.
func (r Rule) DisplayName() string {
	if r.Name == "" {
		return DefaultRuleName
	}
	return r.Name
}
