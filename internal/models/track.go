package models

// TrackingResponse is the customer-facing view of one drop-off and its
// parent delivery, looked up by tracking number or phone.
type TrackingResponse struct {
	DropOff      *DropOff          `json:"drop_off"`
	Delivery     *DeliveryResponse `json:"delivery"`
	BusinessName string            `json:"business_name"`
	RiderName    *string           `json:"rider_name,omitempty"`
}
