// Package ledger keeps the food entries logged for one day and derives the
// per-meal and whole-day totals from them.
//
// Totals are never stored. Every query recomputes them from the entry list,
// so there is no running sum that can drift from the entries it describes.
// A day holds a handful of entries, which keeps the linear rescan trivial.
//
// A Ledger has no I/O and no suspension points. It carries a mutex only
// because HTTP requests for the same signed-in user may overlap.
package ledger

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/fitai/internal/apperror"
	"github.com/sakif/fitai/internal/model"
)

// DefaultQuantity replaces a missing, non-positive or non-finite quantity.
const DefaultQuantity = 1.0

// DefaultWaterTarget is the daily water goal in glasses.
const DefaultWaterTarget = 8

// Ledger is the list of entries logged for a single day.
// Create one with New; the zero value is not usable.
type Ledger struct {
	mu          sync.Mutex
	day         time.Time
	entries     []model.LoggedEntry
	water       int
	waterTarget int
	now         func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now, for LoggedAt stamps and the ledger day.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithWaterTarget sets the daily water goal. Values below 1 are ignored.
func WithWaterTarget(glasses int) Option {
	return func(l *Ledger) {
		if glasses > 0 {
			l.waterTarget = glasses
		}
	}
}

// New returns an empty ledger for today.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		waterTarget: DefaultWaterTarget,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.day = StartOfDay(l.now())
	return l
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Day is the calendar day this ledger covers.
func (l *Ledger) Day() time.Time {
	return l.day
}

// AddEntry logs quantity servings of food into slot and returns the new
// entry's id.
//
// A quantity that is not a positive finite number is replaced by
// DefaultQuantity instead of being rejected. An unknown slot or a food with
// negative or non-finite nutrition fails with apperror.ErrValidation and
// leaves the ledger unchanged, as does a quantity large enough that the
// entry or today's totals would overflow float64.
func (l *Ledger) AddEntry(food model.FoodItem, quantity float64, slot model.MealSlot) (string, error) {
	if !slot.Valid() {
		return "", apperror.ValidationFailed("mealSlot",
			fmt.Sprintf("meal slot %q must be one of breakfast, lunch, dinner, snacks", slot))
	}
	if err := food.Validate(); err != nil {
		return "", err
	}
	quantity = NormalizeQuantity(quantity)

	entry := model.LoggedEntry{
		ID:       xid.New().String(),
		Food:     food,
		Quantity: quantity,
		MealSlot: slot,
		LoggedAt: l.now(),
	}
	if !entry.Nutrition().Finite() {
		return "", apperror.ValidationFailed("quantity",
			fmt.Sprintf("%g servings of %s is out of range", quantity, food.Name))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	day, err := l.dayTotalsLocked()
	if err != nil {
		return "", err
	}
	if !day.Add(entry.Nutrition()).Finite() {
		return "", apperror.ValidationFailed("quantity",
			fmt.Sprintf("%g servings of %s would push today's totals out of range", quantity, food.Name))
	}
	l.entries = append(l.entries, entry)

	return entry.ID, nil
}

// NormalizeQuantity applies the permissive quantity rule used by AddEntry.
func NormalizeQuantity(q float64) float64 {
	if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
		return DefaultQuantity
	}
	return q
}

// RemoveEntry deletes the entry with the given id. Removing an id that is
// not present is a no-op, so calling it twice is the same as calling it once.
// It reports whether anything was removed.
func (l *Ledger) RemoveEntry(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := slices.IndexFunc(l.entries, func(e model.LoggedEntry) bool { return e.ID == id })
	if i < 0 {
		return false
	}
	l.entries = slices.Delete(l.entries, i, i+1)
	return true
}

// Entry returns the entry with the given id.
func (l *Ledger) Entry(id string) (model.LoggedEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return model.LoggedEntry{}, false
}

// Entries returns a copy of every entry in insertion order.
func (l *Ledger) Entries() []model.LoggedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Len is the number of logged entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// EntriesForMeal returns the entries logged into slot, in insertion order.
// The result is a fresh slice; the ledger is not modified.
func (l *Ledger) EntriesForMeal(slot model.MealSlot) []model.LoggedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entriesForMealLocked(slot)
}

func (l *Ledger) entriesForMealLocked(slot model.MealSlot) []model.LoggedEntry {
	out := make([]model.LoggedEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.MealSlot == slot {
			out = append(out, e)
		}
	}
	return out
}

// TotalsForMeal sums quantity × per-serving over the entries in slot.
// The result is full precision; call Rounded on it for display.
func (l *Ledger) TotalsForMeal(slot model.MealSlot) (model.Macros, error) {
	if !slot.Valid() {
		return model.Macros{}, apperror.ValidationFailed("mealSlot",
			fmt.Sprintf("meal slot %q must be one of breakfast, lunch, dinner, snacks", slot))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalsForMealLocked(slot)
}

func (l *Ledger) totalsForMealLocked(slot model.MealSlot) (model.Macros, error) {
	var total model.Macros
	for _, e := range l.entriesForMealLocked(slot) {
		total = total.Add(e.Nutrition())
	}
	if total.Negative() {
		return model.Macros{}, apperror.InvariantViolation(
			fmt.Sprintf("negative %s totals computed: %+v", slot, total))
	}
	if !total.Finite() {
		return model.Macros{}, apperror.InvariantViolation(
			fmt.Sprintf("%s totals out of range: %+v", slot, total))
	}
	return total, nil
}

// DayTotals is the sum of TotalsForMeal over all four slots.
func (l *Ledger) DayTotals() (model.Macros, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dayTotalsLocked()
}

func (l *Ledger) dayTotalsLocked() (model.Macros, error) {
	var day model.Macros
	for _, slot := range model.MealSlots() {
		meal, err := l.totalsForMealLocked(slot)
		if err != nil {
			return model.Macros{}, err
		}
		day = day.Add(meal)
	}
	if !day.Finite() {
		return model.Macros{}, apperror.InvariantViolation(fmt.Sprintf("day totals out of range: %+v", day))
	}
	return day, nil
}

// Progress reports today's rounded total for nutrient against its target.
//
// The percentage is capped at 100. Above target, OverTarget is set and
// Remaining is zero; otherwise Remaining is target minus current.
// A target that is not positive has no meaningful percentage and fails with
// apperror.ErrValidation.
func (l *Ledger) Progress(nutrient model.Nutrient, targets model.DailyTargets) (model.Progress, error) {
	if _, err := model.ParseNutrient(string(nutrient)); err != nil {
		return model.Progress{}, err
	}

	day, err := l.DayTotals()
	if err != nil {
		return model.Progress{}, err
	}
	return progressFor(nutrient, day.Rounded().Get(nutrient), targets.Get(nutrient))
}

func progressFor(nutrient model.Nutrient, current, target float64) (model.Progress, error) {
	if math.IsNaN(target) || target <= 0 {
		return model.Progress{}, apperror.ValidationFailed("target",
			fmt.Sprintf("%s target must be greater than zero", nutrient))
	}

	p := model.Progress{
		Nutrient:   nutrient,
		Unit:       nutrient.Unit(),
		Current:    current,
		Target:     target,
		Percentage: math.Min(100, current/target*100),
	}
	if current > target {
		p.OverTarget = true
	} else {
		p.Remaining = target - current
		if nutrient == model.Calories {
			p.Remaining = model.RoundCalories(p.Remaining)
		}
	}
	return p, nil
}

// AdjustWater adds delta glasses (negative to undo) and returns the new state.
// The count never drops below zero.
func (l *Ledger) AdjustWater(delta int) model.WaterIntake {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.water = max(0, l.water+delta)
	return l.waterLocked()
}

// Water returns today's water intake.
func (l *Ledger) Water() model.WaterIntake {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waterLocked()
}

func (l *Ledger) waterLocked() model.WaterIntake {
	return model.WaterIntake{
		Glasses:    l.water,
		Target:     l.waterTarget,
		Percentage: math.Min(100, float64(l.water)/float64(l.waterTarget)*100),
	}
}
