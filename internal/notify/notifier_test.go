package notify_test

import (
	"context"
	"errors"
	"testing"

	"vigil/internal/config"
	"vigil/internal/models"
	"vigil/internal/notify"
)

func TestFormatAlert(t *testing.T) {
	rule := models.Rule{
		ID:                "c0ffee00-1111-2222-3333-444455556666",
		Name:              "run instances burst",
		Type:              models.RuleTypeCountBased,
		Metric:            "RunInstances",
		Threshold:         1,
		TimeWindowMinutes: 5,
		Target:            "ec2",
	}

	want := "ANOMALY DETECTED: run instances burst\n" +
		"Rule ID: c0ffee00-1111-2222-3333-444455556666\n" +
		"Metric: RunInstances\n" +
		"Count: 2, Threshold: 1 in last 5 mins."

	if got := notify.FormatAlert(rule, 2); got != want {
		t.Errorf("FormatAlert() =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatAlertUnnamedRule(t *testing.T) {
	rule := models.Rule{
		ID:                "rule-1",
		Type:              models.RuleTypeCountBased,
		Metric:            "DeleteBucket",
		Threshold:         3,
		TimeWindowMinutes: 60,
	}

	got := notify.FormatAlert(rule, 4)
	if want := "ANOMALY DETECTED: " + models.DefaultRuleName; got[:len(want)] != want {
		t.Errorf("FormatAlert() first line = %q, want prefix %q", got, want)
	}
}

type failingPublisher struct{}

func (f *failingPublisher) Name() string { return "failing" }
func (f *failingPublisher) Publish(ctx context.Context, subject, message string) error {
	return errors.New("sink rejected publish")
}
func (f *failingPublisher) Close() error { return nil }

func TestDispatchWrapsDeliveryFailure(t *testing.T) {
	dispatcher := notify.NewDispatcher(&failingPublisher{})
	err := dispatcher.Dispatch(context.Background(), models.Rule{ID: "r"}, 2)
	if !errors.Is(err, notify.ErrDeliveryFailed) {
		t.Errorf("Dispatch error = %v, want ErrDeliveryFailed", err)
	}
}

type recordingPublisher struct {
	subject string
	message string
}

func (r *recordingPublisher) Name() string { return "recording" }
func (r *recordingPublisher) Publish(ctx context.Context, subject, message string) error {
	r.subject = subject
	r.message = message
	return nil
}
func (r *recordingPublisher) Close() error { return nil }

func TestDispatchUsesFixedSubject(t *testing.T) {
	pub := &recordingPublisher{}
	dispatcher := notify.NewDispatcher(pub)

	if err := dispatcher.Dispatch(context.Background(), models.Rule{ID: "r", Metric: "RunInstances"}, 3); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if pub.subject != notify.AlertSubject {
		t.Errorf("subject = %q, want %q", pub.subject, notify.AlertSubject)
	}
	if pub.message == "" {
		t.Error("published message is empty")
	}
}

func TestResolveSubject(t *testing.T) {
	t.Setenv("VIGIL_REGION", "eu-west-1")
	t.Setenv("VIGIL_ACCOUNT", "123456789012")

	got := notify.ResolveSubject("resource-anomaly-alerts")
	if want := "alerts.eu-west-1.123456789012.resource-anomaly-alerts"; got != want {
		t.Errorf("ResolveSubject() = %q, want %q", got, want)
	}
}

func TestResolveSubjectDefaults(t *testing.T) {
	t.Setenv("VIGIL_REGION", "")
	t.Setenv("VIGIL_ACCOUNT", "")

	if got := notify.ResolveSubject("ops"); got != "alerts.local.default.ops" {
		t.Errorf("ResolveSubject() = %q, want local defaults", got)
	}
}

func TestBuildPublisher(t *testing.T) {
	pub, err := notify.BuildPublisher(config.NotifyConfig{Backend: "console"})
	if err != nil {
		t.Fatalf("BuildPublisher(console) error: %v", err)
	}
	if pub.Name() != "console" {
		t.Errorf("publisher name = %q, want console", pub.Name())
	}

	if _, err := notify.BuildPublisher(config.NotifyConfig{Backend: "carrier-pigeon"}); err == nil {
		t.Error("BuildPublisher accepted unknown backend")
	}
}
