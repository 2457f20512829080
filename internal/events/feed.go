package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Channel carrying request and delivery change events. Consumers treat
// events as at-least-once, unordered signals to re-fetch authoritative
// state; payloads carry identifiers only, never full rows.
const Channel = "dispatch:events"

// Event types
const (
	TypeRequestCreated   = "request.created"
	TypeRequestAccepted  = "request.accepted"
	TypeRequestExpired   = "request.expired"
	TypeRequestCancelled = "request.cancelled"
	TypeDeliveryUpdated  = "delivery.updated"
	TypeDropOffDelivered = "dropoff.delivered"
)

type Event struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
	DropOffID  string `json:"drop_off_id,omitempty"`
	RiderID    string `json:"rider_id,omitempty"`
}

// Publisher pushes change events onto the Redis feed.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type redisPublisher struct {
	redis *redis.Client
}

func NewPublisher(redisClient *redis.Client) Publisher {
	return &redisPublisher{redis: redisClient}
}

// Publish is best-effort; a dropped event only delays a client re-fetch
// until the next poll, so failures are logged and swallowed.
func (p *redisPublisher) Publish(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal event %s: %v", event.Type, err)
		return
	}
	if err := p.redis.Publish(ctx, Channel, data).Err(); err != nil {
		log.Printf("failed to publish event %s: %v", event.Type, err)
	}
}

// NopPublisher discards all events. Used in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) {}
