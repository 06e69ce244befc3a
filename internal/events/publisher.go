// Package events reports throttling decisions to the external observability
// pipeline. Publishing is best-effort; a failed publish never affects the
// request that triggered it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"authgate/internal/client"
	"authgate/internal/util"
)

const (
	// EventLockout is emitted when an identity first crosses the failure
	// threshold and becomes blocked.
	EventLockout = "login_lockout"
	// EventRejected is emitted for each attempt turned away while blocked.
	EventRejected = "login_rejected"
)

type SecurityEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Identity   string    `json:"identity"`
	IPAddress  string    `json:"ip_address"`
	Failures   int       `json:"failures"`
	RetryAfter string    `json:"retry_after,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event SecurityEvent)
}

// KafkaPublisher writes security events as JSON records keyed by identity,
// so events for one client land on one partition in order.
type KafkaPublisher struct {
	producer *client.KafkaProducer
	topic    string
	logger   *zap.Logger
}

func NewKafkaPublisher(producer *client.KafkaProducer, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event SecurityEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode security event", util.ErrorField(err))
		return
	}

	if err := p.producer.ProduceMessage(ctx, p.topic, []byte(event.Identity), value); err != nil {
		p.logger.Error("failed to publish security event",
			util.String("event_type", event.EventType),
			util.String("identity", event.Identity),
			util.ErrorField(err),
		)
	}
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, SecurityEvent) {}
