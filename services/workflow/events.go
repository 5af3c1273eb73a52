package workflow

import (
	"context"
	"time"

	"campaign_workflow/models"
)

// RevisionCommitted is published after a revision has been persisted.
type RevisionCommitted struct {
	EventID     string              `json:"event_id"`
	TenantID    string              `json:"tenant_id"`
	CampaignID  string              `json:"campaign_id"`
	Revision    int                 `json:"revision"`
	Kind        string              `json:"kind"`
	ChangedBy   string              `json:"changed_by"`
	ChangedAt   time.Time           `json:"changed_at"`
	Status      string              `json:"status"`
	Transitions []models.Transition `json:"transitions,omitempty"`
}

// RoutingKey is the topic routing key a revision of the given kind is
// published under.
func RoutingKey(kind string) string {
	return "campaign.revision." + kind
}

// EventPublisher announces committed revisions. A failed publish never undoes
// the committed write.
type EventPublisher interface {
	PublishRevision(ctx context.Context, ev RevisionCommitted) error
}

// Broker is the subset of utils.ExchangePublisher the service publishes with.
type Broker interface {
	Publish(ctx context.Context, routingKey, messageID string, payload interface{}) error
}

// BrokerEvents publishes revision events to a topic exchange.
type BrokerEvents struct {
	broker Broker
}

func NewBrokerEvents(broker Broker) *BrokerEvents {
	return &BrokerEvents{broker: broker}
}

func (e *BrokerEvents) PublishRevision(ctx context.Context, ev RevisionCommitted) error {
	return e.broker.Publish(ctx, RoutingKey(ev.Kind), ev.EventID, ev)
}

type noopEvents struct{}

func (noopEvents) PublishRevision(context.Context, RevisionCommitted) error { return nil }
