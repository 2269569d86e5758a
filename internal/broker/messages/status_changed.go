package messages

import "time"

// StatusChanged is emitted after a committed status change. Note-only ledger
// entries do not produce it.
type StatusChanged struct {
	RepairID       string    `json:"repair_id"`
	TrackingCode   string    `json:"tracking_code"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	OccurredAt     time.Time `json:"occurred_at"`
	Correction     bool      `json:"correction,omitempty"`

	CustomerContact CustomerContact `json:"customer_contact"`
	VehiclePlate    string          `json:"vehicle_plate,omitempty"`
}

type CustomerContact struct {
	Name  string  `json:"name,omitempty"`
	Phone string  `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}
