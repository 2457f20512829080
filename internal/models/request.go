package models

import (
	"time"
)

// Delivery request status constants. A request has at most one terminal
// transition; accepted, expired and cancelled are final.
const (
	RequestStatusPending   = "pending_acceptance"
	RequestStatusAccepted  = "accepted"
	RequestStatusExpired   = "expired"
	RequestStatusCancelled = "cancelled"
)

// Rider response actions
const (
	ResponseActionAccepted = "accepted"
	ResponseActionRejected = "rejected"
)

// DeliveryRequest is a broadcastable offer for riders to claim a booked
// delivery. Requests are never deleted; they form the claim audit trail.
type DeliveryRequest struct {
	ID                string     `db:"id" json:"id"`
	DeliveryID        string     `db:"delivery_id" json:"delivery_id"`
	Status            string     `db:"status" json:"status"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	AcceptedAt        *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	AcceptedByRiderID *string    `db:"accepted_by_rider_id" json:"accepted_by_rider_id,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// RiderResponse is the immutable record of one rider's accept/reject
// attempt. Exactly one row may exist per (request, rider) pair; the
// response timestamp is assigned by the database, not the client, and
// seq breaks same-instant timestamp ties in insertion order.
type RiderResponse struct {
	ID                string    `db:"id" json:"id"`
	DeliveryRequestID string    `db:"delivery_request_id" json:"delivery_request_id"`
	RiderID           string    `db:"rider_id" json:"rider_id"`
	Action            string    `db:"action" json:"action"`
	ResponseTimestamp time.Time `db:"response_timestamp" json:"response_timestamp"`
	Seq               int64     `db:"seq" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

type RequestResponse struct {
	ID           string            `json:"id"`
	DeliveryID   string            `json:"delivery_id"`
	Status       string            `json:"status"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	AcceptedAt   *time.Time        `json:"accepted_at,omitempty"`
	AcceptedBy   *string           `json:"accepted_by_rider_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Delivery     *DeliveryResponse `json:"delivery,omitempty"`
	DropOffCount int               `json:"drop_off_count,omitempty"`
}

func (r *DeliveryRequest) ToResponse() *RequestResponse {
	return &RequestResponse{
		ID:         r.ID,
		DeliveryID: r.DeliveryID,
		Status:     r.Status,
		ExpiresAt:  r.ExpiresAt,
		AcceptedAt: r.AcceptedAt,
		AcceptedBy: r.AcceptedByRiderID,
		CreatedAt:  r.CreatedAt,
	}
}

// IsExpired reports whether the request's expiry time has passed.
// Requests without an expiry never expire.
func (r *DeliveryRequest) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// IsPending reports whether the request is still open for claims.
func (r *DeliveryRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}
