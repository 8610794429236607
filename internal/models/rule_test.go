package models_test

import (
	"testing"

	"vigil/internal/models"
)

func TestRuleValidate(t *testing.T) {
	validRule := func() models.Rule {
		return models.Rule{
			ID:                "6c1d9a44-9e35-4c57-9a30-5be1a8d1a4a0",
			Name:              "run instances burst",
			Type:              models.RuleTypeCountBased,
			Metric:            "RunInstances",
			Threshold:         5,
			TimeWindowMinutes: 10,
			Target:            "ec2",
		}
	}

	tests := []struct {
		name    string
		modify  func(*models.Rule)
		wantErr error
	}{
		{"valid rule", func(r *models.Rule) {}, nil},
		{"unsupported type", func(r *models.Rule) { r.Type = "rate-based" }, models.ErrUnsupportedRuleType},
		{"empty type", func(r *models.Rule) { r.Type = "" }, models.ErrUnsupportedRuleType},
		{"empty metric", func(r *models.Rule) { r.Metric = "" }, models.ErrEmptyMetric},
		{"zero threshold", func(r *models.Rule) { r.Threshold = 0 }, models.ErrNonPositiveThreshold},
		{"negative threshold", func(r *models.Rule) { r.Threshold = -3 }, models.ErrNonPositiveThreshold},
		{"zero time window", func(r *models.Rule) { r.TimeWindowMinutes = 0 }, models.ErrNonPositiveTimeWindow},
		{"negative time window", func(r *models.Rule) { r.TimeWindowMinutes = -1 }, models.ErrNonPositiveTimeWindow},
		{"empty target", func(r *models.Rule) { r.Target = "" }, models.ErrEmptyTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.modify(&r)
			if err := r.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRuleDisplayName(t *testing.T) {
	named := models.Rule{Name: "suspicious deletes"}
	if got := named.DisplayName(); got != "suspicious deletes" {
		t.Errorf("DisplayName() = %q, want %q", got, "suspicious deletes")
	}

	unnamed := models.Rule{}
	if got := unnamed.DisplayName(); got != models.DefaultRuleName {
		t.Errorf("DisplayName() = %q, want %q", got, models.DefaultRuleName)
	}
}
