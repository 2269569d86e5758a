// Package timeline rebuilds the customer-facing progress view of a repair from
// its record and ledger. Build has no side effects: the same input always gives
// the same output.
package timeline

import (
	"time"

	"github.com/BearBump/RepairBox/internal/models"
)

type Step struct {
	Status      models.Status `json:"status"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Completed   bool          `json:"completed"`
	Current     bool          `json:"current"`
	Pending     bool          `json:"pending"`
	OccurredAt  *time.Time    `json:"occurredAt,omitempty"`
}

type Timeline struct {
	Steps []Step `json:"steps"`

	// Reconciled is set when the current status was not part of the display
	// sequence and the highest completed step was promoted to current.
	Reconciled bool `json:"-"`
}

// DisplaySequence is the baseline order with AWAITING_PARTS spliced in after
// ACCEPTED when any ledger entry carries it.
func DisplaySequence(entries []*models.LedgerEntry) []models.Status {
	awaited := false
	for _, e := range entries {
		if e != nil && e.Status == models.StatusAwaitingParts {
			awaited = true
			break
		}
	}

	seq := make([]models.Status, 0, len(models.StatusOrder))
	for _, s := range models.BaselineStatuses {
		if s == models.StatusInProgress && awaited {
			seq = append(seq, models.StatusAwaitingParts)
		}
		seq = append(seq, s)
	}
	return seq
}

// Build assumes entries are in ledger order (ascending seq).
func Build(rec *models.Repair, entries []*models.LedgerEntry) Timeline {
	seq := DisplaySequence(entries)

	first := make(map[models.Status]time.Time, len(seq))
	for _, e := range entries {
		if e == nil {
			continue
		}
		if _, ok := first[e.Status]; !ok {
			first[e.Status] = e.OccurredAt
		}
	}

	var current models.Status
	if rec != nil {
		current = rec.Status
	}
	curRank := current.Rank()

	steps := make([]Step, 0, len(seq))
	found := false
	for _, s := range seq {
		txt := stepTexts[s]
		st := Step{
			Status:      s,
			Label:       txt.Label,
			Description: txt.Description,
		}
		r := s.Rank()
		switch {
		case s == current:
			st.Current = true
			found = true
		case curRank >= 0 && r < curRank:
			st.Completed = true
		default:
			st.Pending = true
		}
		if at, ok := first[s]; ok {
			st.OccurredAt = &at
		}
		steps = append(steps, st)
	}

	tl := Timeline{Steps: steps}
	if found || len(steps) == 0 {
		return tl
	}

	// Current status is outside the display sequence: promote the highest
	// completed step (or the first one when nothing is completed).
	tl.Reconciled = true
	idx := 0
	for i := range steps {
		if steps[i].Completed {
			idx = i
		}
	}
	steps[idx].Completed = false
	steps[idx].Pending = false
	steps[idx].Current = true
	return tl
}

// Current returns the step marked current, if any.
func (t Timeline) Current() (Step, bool) {
	for _, s := range t.Steps {
		if s.Current {
			return s, true
		}
	}
	return Step{}, false
}
