// Package notify publishes domain events for the notification/email service.
// Delivery is fire-and-forget: a publish failure is logged and never surfaced
// to the caller, because notifications are not part of the core's
// correctness.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event subjects.
const (
	SubjectAccountActivated     = "account.activated"
	SubjectAccountDeactivated   = "account.deactivated"
	SubjectReactivationSubmit   = "reactivation.submitted"
	SubjectReactivationReviewed = "reactivation.reviewed"
	SubjectPropositionCreated   = "proposition.created"
	SubjectPropositionResponded = "proposition.responded"
	SubjectPropRequestCreated   = "proposition_request.created"
	SubjectPropRequestResponded = "proposition_request.responded"
)

// Event is the JSON payload put on the wire.
type Event struct {
	Subject   string         `json:"subject"`
	ActorID   uint64         `json:"actor_id"`
	TargetID  uint64         `json:"target_id"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Notifier is implemented by the NATS publisher and the test Noop.
type Notifier interface {
	Publish(ctx context.Context, subject string, actorID, targetID uint64, data map[string]any)
}

// NATSNotifier publishes events onto a NATS connection.
type NATSNotifier struct {
	conn *nats.Conn
	log  *slog.Logger
}

// NewNATS connects to the broker at url.
func NewNATS(url string, log *slog.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("agency-backoffice"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &NATSNotifier{conn: conn, log: log}, nil
}

// Publish sends the event. Errors are logged, never returned.
func (n *NATSNotifier) Publish(_ context.Context, subject string, actorID, targetID uint64, data map[string]any) {
	ev := Event{
		Subject:   subject,
		ActorID:   actorID,
		TargetID:  targetID,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		n.log.Error("failed to marshal event", "subject", subject, "err", err)
		return
	}
	if err := n.conn.Publish(subject, payload); err != nil {
		n.log.Warn("failed to publish event", "subject", subject, "err", err)
	}
}

// Close drains the connection.
func (n *NATSNotifier) Close() {
	_ = n.conn.Drain()
}

// Noop is used in tests and when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, uint64, uint64, map[string]any) {}
