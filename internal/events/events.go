// Package events publishes build lifecycle events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"

	"github.com/compulim/remotebuild/internal/logfields"
	"github.com/compulim/remotebuild/internal/remote"
)

// Event types, appended to the configured subject.
const (
	TypeSubmitted = "submitted"
	TypeStatus    = "status"
	TypeCompleted = "completed"
	TypeFailed    = "failed"
)

// Event is the JSON payload published for each lifecycle notification.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Handle    string    `json:"handle,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoopPublisher drops every event (default when no NATS URL is configured).
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSPublisher publishes events on "<subject>.<type>".
type NATSPublisher struct {
	conn    conn
	subject string
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("remotebuild"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS publisher connected", "url", url, "subject", subject)
	return &NATSPublisher{conn: nc, subject: subject}, nil
}

// Publish marshals e and publishes it.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject+"."+e.Type, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() error {
	err := p.conn.FlushTimeout(2 * time.Second)
	p.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	return nil
}

// Observer publishes remote build notifications. Publish failures are logged
// and never fail the build.
type Observer struct {
	pub    Publisher
	runID  string
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewObserver returns a remote.Observer that publishes through pub.
func NewObserver(pub Publisher, runID string, clock clockwork.Clock, logger *slog.Logger) *Observer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{pub: pub, runID: runID, clock: clock, logger: logger}
}

func (o *Observer) publish(e Event) {
	e.RunID = o.runID
	e.Timestamp = o.clock.Now().UTC()
	if err := o.pub.Publish(context.Background(), e); err != nil {
		o.logger.Warn("Failed to publish build event", "type", e.Type, logfields.Error(err))
	}
}

func (o *Observer) OnSubmitted(h remote.Handle) {
	o.publish(Event{Type: TypeSubmitted, Handle: string(h)})
}

func (o *Observer) OnStatus(h remote.Handle, info remote.BuildInfo) {
	o.publish(Event{Type: TypeStatus, Handle: string(h), Status: string(info.Status), Message: info.Message})
}

func (o *Observer) OnCompleted(h remote.Handle, _ *remote.Outcome) {
	o.publish(Event{Type: TypeCompleted, Handle: string(h), Outcome: string(remote.OutcomeOf(nil))})
}

func (o *Observer) OnFailed(h remote.Handle, err error) {
	o.publish(Event{Type: TypeFailed, Handle: string(h), Outcome: string(remote.OutcomeOf(err)), Error: err.Error()})
}

var _ remote.Observer = (*Observer)(nil)
