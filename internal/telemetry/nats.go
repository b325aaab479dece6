package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/zeuslawyer/remix-simulator/internal/config"
)

// Publisher is the subset of a NATS connection used by NATSRecorder.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type natsEvent struct {
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSRecorder mirrors telemetry and provider data events onto NATS subjects.
type NATSRecorder struct {
	publisher Publisher
	prefix    string
}

func Connect(config *config.Config) (*nats.Conn, error) {
	conn, err := nats.Connect(config.NATS.URL,
		nats.Name("remix-simulator"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			slog.Info("NATS reconnected", "url", conn.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func NewNATSRecorder(publisher Publisher, prefix string) *NATSRecorder {
	return &NATSRecorder{publisher: publisher, prefix: prefix}
}

func (r *NATSRecorder) RecordEvent(category, action, label string) {
	data, err := json.Marshal(natsEvent{
		Category:  category,
		Action:    action,
		Label:     label,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Error("Failed to encode telemetry event", "error", err)
		return
	}
	r.publish(r.prefix+".telemetry."+category, data)
}

// PublishData mirrors a provider data event. It has the shape expected by
// provider.Provider.OnData.
func (r *NATSRecorder) PublishData(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to encode data event", "error", err)
		return
	}
	r.publish(r.prefix+".data", data)
}

func (r *NATSRecorder) publish(subject string, data []byte) {
	if err := r.publisher.Publish(subject, data); err != nil {
		slog.Warn("Failed to publish to NATS", "subject", subject, "error", err)
	}
}
