package notify

import (
	"context"
	"errors"
	"fmt"

	"vigil/internal/config"
	"vigil/internal/logger"
	"vigil/internal/models"
)

// ErrDeliveryFailed wraps any alert publish the sink rejected. Callers treat
// delivery as best-effort: the error is logged, never propagated.
var ErrDeliveryFailed = errors.New("alert delivery failed")

// AlertSubject is the fixed label identifying resource-anomaly alerts to
// downstream consumers.
const AlertSubject = "Cloud Resource Anomaly Detected!"

// Publisher delivers a text message to all subscribers of a destination the
// publisher resolves itself from its configuration and deployment context.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, subject, message string) error
	Close() error
}

// BuildPublisher constructs the configured alert sink.
func BuildPublisher(cfg config.NotifyConfig) (Publisher, error) {
	switch cfg.Backend {
	case "nats":
		return NewNATSPublisher(cfg.NATS, cfg.Channel)
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka, cfg.Channel), nil
	case "console":
		return &ConsolePublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Backend)
	}
}

// Dispatcher formats anomaly alerts and hands them to the publisher.
type Dispatcher struct {
	publisher Publisher
}

// NewDispatcher creates an alert dispatcher over the given publisher.
func NewDispatcher(publisher Publisher) *Dispatcher {
	return &Dispatcher{publisher: publisher}
}

// FormatAlert renders the alert message. The format is a contract with
// downstream consumers; do not reorder or reword the lines.
func FormatAlert(rule models.Rule, matchedCount int) string {
	return fmt.Sprintf(
		"ANOMALY DETECTED: %s\n"+
			"Rule ID: %s\n"+
			"Metric: %s\n"+
			"Count: %d, Threshold: %d in last %d mins.",
		rule.DisplayName(), rule.ID, rule.Metric,
		matchedCount, rule.Threshold, rule.TimeWindowMinutes)
}

// Dispatch publishes an alert for a detected anomaly.
func (d *Dispatcher) Dispatch(ctx context.Context, rule models.Rule, matchedCount int) error {
	message := FormatAlert(rule, matchedCount)
	if err := d.publisher.Publish(ctx, AlertSubject, message); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeliveryFailed, d.publisher.Name(), err)
	}
	return nil
}

// ConsolePublisher logs alerts instead of delivering them; the default sink
// for local development.
type ConsolePublisher struct{}

func (c *ConsolePublisher) Name() string { return "console" }

func (c *ConsolePublisher) Publish(ctx context.Context, subject, message string) error {
	log := logger.WithComponent("notify")
	log.Info().
		Str("subject", subject).
		Str("message", message).
		Msg("alert")
	return nil
}

func (c *ConsolePublisher) Close() error { return nil }
