package notify

import (
	"context"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"

	"vigil/internal/config"
)

// NATSPublisher publishes alerts to a NATS subject. The subject is assembled
// at construction from the channel name plus the deployment region and
// account identity discovered from the environment, mirroring how the
// reference deployment resolved its topic from the caller's own runtime
// context.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to NATS and resolves the alert subject.
func NewNATSPublisher(cfg config.NATSConfig, channel string) (*NATSPublisher, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{
		conn:    conn,
		subject: ResolveSubject(channel),
	}, nil
}

// ResolveSubject builds the fully qualified subject from the channel plus the
// publisher's own deployment region (VIGIL_REGION) and account identity
// (VIGIL_ACCOUNT).
func ResolveSubject(channel string) string {
	region := os.Getenv("VIGIL_REGION")
	if region == "" {
		region = "local"
	}
	account := os.Getenv("VIGIL_ACCOUNT")
	if account == "" {
		account = "default"
	}
	return fmt.Sprintf("alerts.%s.%s.%s", region, account, channel)
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Publish(ctx context.Context, subject, message string) error {
	msg := nats.NewMsg(p.subject)
	msg.Header.Set("Alert-Subject", subject)
	msg.Data = []byte(message)
	return p.conn.PublishMsg(msg)
}

func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		_ = p.conn.Drain()
		p.conn.Close()
	}
	return nil
}
