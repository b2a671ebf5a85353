package model

import (
	"fmt"
	"math"
	"time"

	"github.com/sakif/fitai/internal/apperror"
)

// MealSlot is one of the four fixed daily categories a logged food belongs to.
type MealSlot string

const (
	Breakfast MealSlot = "breakfast"
	Lunch     MealSlot = "lunch"
	Dinner    MealSlot = "dinner"
	Snacks    MealSlot = "snacks"
)

// MealSlots returns the slots in the order the dashboard shows them.
func MealSlots() []MealSlot {
	return []MealSlot{Breakfast, Lunch, Dinner, Snacks}
}

// Valid reports whether s is one of the four known slots.
func (s MealSlot) Valid() bool {
	switch s {
	case Breakfast, Lunch, Dinner, Snacks:
		return true
	}
	return false
}

// ParseMealSlot converts raw input into a MealSlot.
func ParseMealSlot(raw string) (MealSlot, error) {
	s := MealSlot(raw)
	if !s.Valid() {
		return "", apperror.ValidationFailed("mealSlot",
			fmt.Sprintf("meal slot %q must be one of breakfast, lunch, dinner, snacks", raw))
	}
	return s, nil
}

// Nutrient names one of the four tracked values.
type Nutrient string

const (
	Calories Nutrient = "calories"
	Protein  Nutrient = "protein"
	Carbs    Nutrient = "carbs"
	Fats     Nutrient = "fats"
)

// Nutrients returns the tracked nutrients in display order.
func Nutrients() []Nutrient {
	return []Nutrient{Calories, Protein, Carbs, Fats}
}

// ParseNutrient converts raw input into a Nutrient.
func ParseNutrient(raw string) (Nutrient, error) {
	switch n := Nutrient(raw); n {
	case Calories, Protein, Carbs, Fats:
		return n, nil
	}
	return "", apperror.ValidationFailed("nutrient",
		fmt.Sprintf("nutrient %q must be one of calories, protein, carbs, fats", raw))
}

// Unit is the display unit for the nutrient.
func (n Nutrient) Unit() string {
	if n == Calories {
		return "kcal"
	}
	return "g"
}

// FoodItem is the reference nutrition for one serving, as supplied by the
// catalog. ServingSize is carried as-is ("1 cup (170g)") and never parsed.
type FoodItem struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	ServingSize        string  `json:"servingSize"`
	CaloriesPerServing float64 `json:"calories"`
	ProteinPerServing  float64 `json:"protein"`
	CarbsPerServing    float64 `json:"carbs"`
	FatsPerServing     float64 `json:"fats"`
}

// Validate checks that every per-serving value is a finite, non-negative number.
func (f FoodItem) Validate() error {
	values := []struct {
		field string
		v     float64
	}{
		{"calories", f.CaloriesPerServing},
		{"protein", f.ProteinPerServing},
		{"carbs", f.CarbsPerServing},
		{"fats", f.FatsPerServing},
	}
	for _, fv := range values {
		if math.IsNaN(fv.v) || math.IsInf(fv.v, 0) || fv.v < 0 {
			return apperror.ValidationFailed(fv.field,
				fmt.Sprintf("%s per serving must be a non-negative number", fv.field))
		}
	}
	return nil
}

// PerServing returns the food's nutrition for a quantity of 1.
func (f FoodItem) PerServing() Macros {
	return Macros{
		Calories: f.CaloriesPerServing,
		Protein:  f.ProteinPerServing,
		Carbs:    f.CarbsPerServing,
		Fats:     f.FatsPerServing,
	}
}

// LoggedEntry is one line item logged against the day. Food is a copy taken
// at logging time, so later catalog edits never change historical totals.
// Entries are never mutated; a quantity change is a remove followed by an add.
type LoggedEntry struct {
	ID       string    `json:"id"`
	Food     FoodItem  `json:"food"`
	Quantity float64   `json:"quantity"`
	MealSlot MealSlot  `json:"mealSlot"`
	LoggedAt time.Time `json:"loggedAt"`
}

// Nutrition is quantity × per-serving for each nutrient, at full precision.
func (e LoggedEntry) Nutrition() Macros {
	return e.Food.PerServing().Scale(e.Quantity)
}

// Macros holds calories (kcal) and protein/carbs/fats (g).
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

// DailyTargets are the per-day goals; they come from configuration.
type DailyTargets = Macros

// Add returns the component-wise sum of m and o.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Carbs:    m.Carbs + o.Carbs,
		Fats:     m.Fats + o.Fats,
	}
}

// Scale multiplies every component by k.
func (m Macros) Scale(k float64) Macros {
	return Macros{
		Calories: m.Calories * k,
		Protein:  m.Protein * k,
		Carbs:    m.Carbs * k,
		Fats:     m.Fats * k,
	}
}

// Rounded returns display values: calories to one decimal place, the
// macros to whole grams. Both use round-half-away-from-zero (math.Round).
// The receiver keeps its full precision.
func (m Macros) Rounded() Macros {
	return Macros{
		Calories: RoundCalories(m.Calories),
		Protein:  math.Round(m.Protein),
		Carbs:    math.Round(m.Carbs),
		Fats:     math.Round(m.Fats),
	}
}

// Get returns the value for one nutrient.
func (m Macros) Get(n Nutrient) float64 {
	switch n {
	case Calories:
		return m.Calories
	case Protein:
		return m.Protein
	case Carbs:
		return m.Carbs
	case Fats:
		return m.Fats
	}
	return 0
}

// Negative reports whether any component is below zero.
func (m Macros) Negative() bool {
	return m.Calories < 0 || m.Protein < 0 || m.Carbs < 0 || m.Fats < 0
}

// Finite reports whether every component is a real number, neither NaN
// nor ±Inf. Totals that overflow float64 are not finite and cannot be
// encoded as JSON.
func (m Macros) Finite() bool {
	for _, v := range []float64{m.Calories, m.Protein, m.Carbs, m.Fats} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// RoundCalories rounds to one decimal place. Values of 2^52 and above
// have no fractional part and are returned as is.
func RoundCalories(kcal float64) float64 {
	if math.Abs(kcal) >= 1<<52 {
		return kcal
	}
	return math.Round(kcal*10) / 10
}

// Progress is one nutrient's standing against its target.
// When OverTarget is true, Remaining is zero.
type Progress struct {
	Nutrient   Nutrient `json:"nutrient"`
	Unit       string   `json:"unit"`
	Current    float64  `json:"current"`
	Target     float64  `json:"target"`
	Percentage float64  `json:"percentage"`
	Remaining  float64  `json:"remaining"`
	OverTarget bool     `json:"overTarget"`
}

// WaterIntake counts glasses of water logged today.
type WaterIntake struct {
	Glasses    int     `json:"glasses"`
	Target     int     `json:"target"`
	Percentage float64 `json:"percentage"`
}
