package models

import (
	"time"
)

// Delivery status constants
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusAssigned  = "assigned"
	DeliveryStatusPickedUp  = "picked_up"
	DeliveryStatusInTransit = "in_transit"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusCancelled = "cancelled"
)

// Valid delivery state transitions
var ValidDeliveryTransitions = map[string][]string{
	DeliveryStatusPending:   {DeliveryStatusAssigned, DeliveryStatusPickedUp, DeliveryStatusCancelled},
	DeliveryStatusAssigned:  {DeliveryStatusPickedUp, DeliveryStatusCancelled},
	DeliveryStatusPickedUp:  {DeliveryStatusInTransit, DeliveryStatusDelivered, DeliveryStatusCancelled},
	DeliveryStatusInTransit: {DeliveryStatusDelivered, DeliveryStatusCancelled},
	DeliveryStatusDelivered: {},
	DeliveryStatusCancelled: {},
}

// Drop-off status constants
const (
	DropOffStatusPending   = "pending"
	DropOffStatusPickedUp  = "picked_up"
	DropOffStatusInTransit = "in_transit"
	DropOffStatusDelivered = "delivered"
)

type Delivery struct {
	ID            string     `db:"id" json:"id"`
	BusinessID    string     `db:"business_id" json:"business_id"`
	BusinessName  string     `db:"business_name" json:"business_name"`
	PickupAddress string     `db:"pickup_address" json:"pickup_address"`
	PickupLat     *float64   `db:"pickup_lat" json:"pickup_lat,omitempty"`
	PickupLng     *float64   `db:"pickup_lng" json:"pickup_lng,omitempty"`
	RiderID       *string    `db:"rider_id" json:"rider_id,omitempty"`
	RiderName     *string    `db:"rider_name" json:"rider_name,omitempty"`
	Status        string     `db:"status" json:"status"`
	ScheduledFor  *time.Time `db:"scheduled_for" json:"scheduled_for,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

type DropOff struct {
	ID             string     `db:"id" json:"id"`
	DeliveryID     string     `db:"delivery_id" json:"delivery_id"`
	CustomerName   string     `db:"customer_name" json:"customer_name"`
	CustomerPhone  string     `db:"customer_phone" json:"customer_phone"`
	CustomerEmail  *string    `db:"customer_email" json:"customer_email,omitempty"`
	Address        string     `db:"address" json:"address"`
	Lat            *float64   `db:"lat" json:"lat,omitempty"`
	Lng            *float64   `db:"lng" json:"lng,omitempty"`
	Status         string     `db:"status" json:"status"`
	Sequence       int        `db:"sequence" json:"sequence"`
	TrackingNumber *string    `db:"tracking_number" json:"tracking_number,omitempty"`
	DeliveredAt    *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type CreateDropOffRequest struct {
	CustomerName  string `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone string `json:"customer_phone" validate:"required,min=10,max=15"`
	CustomerEmail string `json:"customer_email,omitempty" validate:"omitempty,email"`
	Address       string `json:"address" validate:"required"`
}

type CreateDeliveryRequest struct {
	BusinessID    string                 `json:"business_id" validate:"required,uuid"`
	PickupAddress string                 `json:"pickup_address" validate:"required"`
	DropOffs      []CreateDropOffRequest `json:"drop_offs" validate:"required,min=1,dive"`
	ScheduledFor  *time.Time             `json:"scheduled_for,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
}

type UpdateDeliveryStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending assigned picked_up in_transit delivered cancelled"`
}

type AssignRiderRequest struct {
	RiderID string `json:"rider_id" validate:"required,uuid"`
}

type DeliveryResponse struct {
	ID            string     `json:"id"`
	BusinessID    string     `json:"business_id"`
	BusinessName  string     `json:"business_name"`
	PickupAddress string     `json:"pickup_address"`
	RiderID       *string    `json:"rider_id,omitempty"`
	RiderName     *string    `json:"rider_name,omitempty"`
	Status        string     `json:"status"`
	ScheduledFor  *time.Time `json:"scheduled_for,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	DropOffs      []*DropOff `json:"drop_offs,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (d *Delivery) ToResponse() *DeliveryResponse {
	return &DeliveryResponse{
		ID:            d.ID,
		BusinessID:    d.BusinessID,
		BusinessName:  d.BusinessName,
		PickupAddress: d.PickupAddress,
		RiderID:       d.RiderID,
		RiderName:     d.RiderName,
		Status:        d.Status,
		ScheduledFor:  d.ScheduledFor,
		Notes:         d.Notes,
		CreatedAt:     d.CreatedAt,
		CompletedAt:   d.CompletedAt,
	}
}

// CanTransitionTo checks if a delivery can transition to a new status
func (d *Delivery) CanTransitionTo(newStatus string) bool {
	validNextStates, exists := ValidDeliveryTransitions[d.Status]
	if !exists {
		return false
	}

	for _, state := range validNextStates {
		if state == newStatus {
			return true
		}
	}
	return false
}

// IsActive returns true if the delivery is not in a terminal state
func (d *Delivery) IsActive() bool {
	return d.Status != DeliveryStatusDelivered && d.Status != DeliveryStatusCancelled
}
