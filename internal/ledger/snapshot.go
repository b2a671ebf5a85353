package ledger

import (
	"time"

	"github.com/sakif/fitai/internal/model"
)

// MealSummary is one meal slot's entries with their rounded totals.
type MealSummary struct {
	Slot    model.MealSlot      `json:"slot"`
	Entries []model.LoggedEntry `json:"entries"`
	Totals  model.Macros        `json:"totals"`
}

// Snapshot is everything the dashboard draws, computed in one pass under the
// ledger lock so the parts agree with each other.
type Snapshot struct {
	Day      time.Time         `json:"day"`
	Meals    []MealSummary     `json:"meals"`
	Totals   model.Macros      `json:"totals"`
	Progress []model.Progress  `json:"progress"`
	Water    model.WaterIntake `json:"water"`
}

// Snapshot builds the dashboard view against targets. Nutrients whose target
// is not positive are left out of Progress rather than failing the snapshot.
func (l *Ledger) Snapshot(targets model.DailyTargets) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Day:   l.day,
		Meals: make([]MealSummary, 0, len(model.MealSlots())),
		Water: l.waterLocked(),
	}

	for _, slot := range model.MealSlots() {
		totals, err := l.totalsForMealLocked(slot)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Meals = append(snap.Meals, MealSummary{
			Slot:    slot,
			Entries: l.entriesForMealLocked(slot),
			Totals:  totals.Rounded(),
		})
	}

	day, err := l.dayTotalsLocked()
	if err != nil {
		return Snapshot{}, err
	}
	snap.Totals = day.Rounded()

	for _, n := range model.Nutrients() {
		p, err := progressFor(n, snap.Totals.Get(n), targets.Get(n))
		if err != nil {
			continue
		}
		snap.Progress = append(snap.Progress, p)
	}

	return snap, nil
}
