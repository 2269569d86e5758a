package models

import "time"

type Repair struct {
	ID           string     `json:"id"`
	TrackingCode string     `json:"trackingCode"`
	CustomerID   string     `json:"customerId"`
	VehicleID    string     `json:"vehicleId"`
	Kind         RepairKind `json:"kind"`
	Status       Status     `json:"status"`

	Description      *string    `json:"description,omitempty"`
	InsuranceCompany *string    `json:"insuranceCompany,omitempty"`
	PolicyNumber     *string    `json:"policyNumber,omitempty"`
	PreferredDate    *time.Time `json:"preferredDate,omitempty"`

	ExpectedCompletionAt *time.Time `json:"expectedCompletionAt,omitempty"`
	ActualCompletionAt   *time.Time `json:"actualCompletionAt,omitempty"`

	// Version равен seq последней записи журнала; используется для optimistic locking.
	Version     int64     `json:"version"`
	LastEventAt time.Time `json:"lastEventAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LedgerEntry is one append-only status history row.
type LedgerEntry struct {
	ID         string    `json:"id"`
	RepairID   string    `json:"repairId"`
	Seq        int64     `json:"seq"`
	Status     Status    `json:"status"`
	Kind       EntryKind `json:"kind"`
	OccurredAt time.Time `json:"occurredAt"`
	Note       *string   `json:"note,omitempty"`
	Actor      *string   `json:"actor,omitempty"`
}

type Customer struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Email *string `json:"email,omitempty"`
}

type Vehicle struct {
	ID    string  `json:"id"`
	Plate string  `json:"plate"`
	Brand *string `json:"brand,omitempty"`
	Model *string `json:"model,omitempty"`
	Year  *int    `json:"year,omitempty"`
	Color *string `json:"color,omitempty"`
}

// RepairDetail is a repair together with its customer and vehicle.
type RepairDetail struct {
	Repair   *Repair   `json:"repair"`
	Customer *Customer `json:"customer"`
	Vehicle  *Vehicle  `json:"vehicle"`
}

// Snapshot is a record and its ledger read in one consistent view.
type Snapshot struct {
	RepairDetail
	Ledger []*LedgerEntry `json:"ledger"`
}

type CustomerInput struct {
	Name  string
	Phone string
	Email *string
}

type VehicleInput struct {
	Plate string
	Brand *string
	Model *string
	Year  *int
	Color *string
}

type RepairCreateInput struct {
	Customer         CustomerInput
	Vehicle          VehicleInput
	Kind             RepairKind
	Description      *string
	InsuranceCompany *string
	PolicyNumber     *string
	PreferredDate    *time.Time
	Note             *string
	Actor            *string
}

// TransitionUpdate is what the state machine asks the store to apply atomically:
// one ledger append plus one record update, guarded by ExpectedVersion.
type TransitionUpdate struct {
	RepairID        string
	ExpectedVersion int64
	Now             time.Time

	Status Status
	Kind   EntryKind
	Note   *string
	Actor  *string

	ExpectedCompletionAt *time.Time

	// SetActualCompletion stamps actual_completion_at with the entry time when
	// it is still empty. ClearActualCompletion wins over it.
	SetActualCompletion   bool
	ClearActualCompletion bool
}

type RepairFilter struct {
	Status *Status
	Search string
	Limit  int
	Offset int
}

type RepairListItem struct {
	Repair   *Repair   `json:"repair"`
	Customer *Customer `json:"customer"`
	Vehicle  *Vehicle  `json:"vehicle"`
}
