// Package events publishes lead lifecycle events for the reports pipeline.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/model"
	"github.com/jmehdipour/leadsite/internal/util"
)

type Publisher interface {
	Publish(ctx context.Context, e model.LeadEvent) error
}

// Writer is satisfied by *kafka.Producer.
type Writer interface {
	Write(ctx context.Context, key, value []byte) error
}

const DefaultPublishTimeout = 2 * time.Second

// KafkaPublisher encodes events as JSON keyed by the lead email. Each write is
// bounded by timeout so an unreachable broker cannot hold up the caller.
type KafkaPublisher struct {
	w       Writer
	timeout time.Duration
	log     *zap.Logger
}

func NewKafkaPublisher(w Writer, timeout time.Duration, log *zap.Logger) *KafkaPublisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{w: w, timeout: timeout, log: log.Named("events")}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e model.LeadEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.w.Write(ctx, []byte(e.Email), b); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	p.log.Debug("event published", zap.String("type", e.Type.String()), zap.String("id", e.ID))
	return nil
}

// NopPublisher drops every event; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.LeadEvent) error { return nil }

// NewEvent snapshots l into an event of type t.
func NewEvent(t model.EventType, l model.Lead, at time.Time) model.LeadEvent {
	return model.LeadEvent{
		ID:           util.NewIDAt(at),
		Type:         t,
		Email:        strings.ToLower(l.Email),
		Service:      l.Service,
		BusinessType: l.BusinessType,
		Status:       l.Status.String(),
		OccurredAt:   at.UTC(),
	}
}

// Decode parses a published event and checks the fields the reports store needs.
func Decode(b []byte) (model.LeadEvent, error) {
	var e model.LeadEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return e, fmt.Errorf("decode event: %w", err)
	}
	if e.ID == "" || e.Type == "" || e.OccurredAt.IsZero() {
		return e, fmt.Errorf("decode event: missing id, type or occurred_at")
	}
	return e, nil
}
