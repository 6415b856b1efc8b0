package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/chicrime/internal/core/domain"
)

// Subjects published by the services.
const (
	SubjectHotspots    = "crime.hotspots.detected"
	SubjectExperiments = "crime.experiments."
	SubjectIngest      = "crime.ingest.completed"
)

// Streams returns the JetStream streams the publisher maintains.
func Streams() []nats.StreamConfig {
	return []nats.StreamConfig{
		{
			Name:      "CRIME_HOTSPOTS",
			Subjects:  []string{"crime.hotspots.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			MaxMsgs:   1000,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "CRIME_EXPERIMENTS",
			Subjects:  []string{"crime.experiments.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    30 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "CRIME_INGEST",
			Subjects:  []string{"crime.ingest.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	for _, cfg := range Streams() {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishHotspots announces a detection run.
func (p *Publisher) PublishHotspots(ctx context.Context, report *domain.HotspotReport) error {
	return p.publish(ctx, SubjectHotspots, report, report.RunID)
}

// PublishExperiment announces a stored sweep on crime.experiments.<id>.
func (p *Publisher) PublishExperiment(ctx context.Context, run *domain.ExperimentRun) error {
	return p.publish(ctx, SubjectExperiments+run.ID, run, run.ID)
}

// PublishIngest announces that new crimes were loaded.
func (p *Publisher) PublishIngest(ctx context.Context, run *domain.IngestRun) error {
	return p.publish(ctx, SubjectIngest, run, "")
}

func (p *Publisher) publish(ctx context.Context, subject string, v any, msgID string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	opts := []nats.PubOpt{nats.Context(ctx)}
	if msgID != "" {
		opts = append(opts, nats.MsgId(msgID))
	}
	_, err = p.js.Publish(subject, data, opts...)
	return err
}

// Conn returns the underlying connection.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("chicrime"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
