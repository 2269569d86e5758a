package models

import "strings"

// Status это статус ремонта. Порядок значений является контрактом.
type Status string

const (
	StatusIntake        Status = "INTAKE"
	StatusAccepted      Status = "ACCEPTED"
	StatusAwaitingParts Status = "AWAITING_PARTS"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusPainting      Status = "PAINTING"
	StatusQualityCheck  Status = "QUALITY_CHECK"
	StatusReady         Status = "READY"
	StatusDelivered     Status = "DELIVERED"
)

// StatusOrder is the canonical order used for rank checks. AWAITING_PARTS sits
// between ACCEPTED and IN_PROGRESS.
var StatusOrder = []Status{
	StatusIntake,
	StatusAccepted,
	StatusAwaitingParts,
	StatusInProgress,
	StatusPainting,
	StatusQualityCheck,
	StatusReady,
	StatusDelivered,
}

// BaselineStatuses is the display order without the optional AWAITING_PARTS step.
var BaselineStatuses = []Status{
	StatusIntake,
	StatusAccepted,
	StatusInProgress,
	StatusPainting,
	StatusQualityCheck,
	StatusReady,
	StatusDelivered,
}

// Rank returns the position of s in StatusOrder, or -1 for unknown values.
func (s Status) Rank() int {
	for i, v := range StatusOrder {
		if v == s {
			return i
		}
	}
	return -1
}

func (s Status) Valid() bool {
	return s.Rank() >= 0
}

func (s Status) Terminal() bool {
	return s == StatusDelivered
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus accepts any letter case and surrounding whitespace.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", NewValidationError("status", "unknown status "+quote(raw))
	}
	return s, nil
}

// RepairKind is fixed at intake.
type RepairKind string

const (
	RepairKindAccident   RepairKind = "ACCIDENT"
	RepairKindCosmetic   RepairKind = "COSMETIC"
	RepairKindMechanical RepairKind = "MECHANICAL"
)

func (k RepairKind) Valid() bool {
	switch k {
	case RepairKindAccident, RepairKindCosmetic, RepairKindMechanical:
		return true
	}
	return false
}

func ParseRepairKind(raw string) (RepairKind, error) {
	k := RepairKind(strings.ToUpper(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", NewValidationError("repairKind", "unknown repair kind "+quote(raw))
	}
	return k, nil
}

// EntryKind marks why a ledger entry was written.
type EntryKind string

const (
	EntryKindGenesis    EntryKind = "GENESIS"
	EntryKindTransition EntryKind = "TRANSITION"
	EntryKindNote       EntryKind = "NOTE"
	EntryKindCorrection EntryKind = "CORRECTION"
)

func quote(s string) string {
	return "\"" + s + "\""
}
