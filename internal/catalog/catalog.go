// Package catalog is the built-in food database the add-meal dialog searches.
//
// The list is fixed at build time. Lookups hand out copies, so a caller that
// edits a returned FoodItem cannot change what the next caller sees.
package catalog

import (
	"strings"

	"github.com/sakif/fitai/internal/apperror"
	"github.com/sakif/fitai/internal/model"
)

var sampleFoods = []model.FoodItem{
	{ID: "1", Name: "Greek Yogurt", ServingSize: "1 cup (170g)", CaloriesPerServing: 100, ProteinPerServing: 17, CarbsPerServing: 6, FatsPerServing: 0},
	{ID: "2", Name: "Banana", ServingSize: "1 medium (118g)", CaloriesPerServing: 105, ProteinPerServing: 1, CarbsPerServing: 27, FatsPerServing: 0},
	{ID: "3", Name: "Chicken Breast", ServingSize: "100g", CaloriesPerServing: 165, ProteinPerServing: 31, CarbsPerServing: 0, FatsPerServing: 4},
	{ID: "4", Name: "Brown Rice", ServingSize: "1/2 cup cooked (98g)", CaloriesPerServing: 112, ProteinPerServing: 3, CarbsPerServing: 23, FatsPerServing: 1},
	{ID: "5", Name: "Almonds", ServingSize: "1 oz (28g)", CaloriesPerServing: 164, ProteinPerServing: 6, CarbsPerServing: 6, FatsPerServing: 14},
	{ID: "6", Name: "Salmon Fillet", ServingSize: "100g", CaloriesPerServing: 206, ProteinPerServing: 22, CarbsPerServing: 0, FatsPerServing: 12},
	{ID: "7", Name: "Avocado", ServingSize: "1/2 medium (100g)", CaloriesPerServing: 160, ProteinPerServing: 2, CarbsPerServing: 9, FatsPerServing: 15},
	{ID: "8", Name: "Oats", ServingSize: "1/2 cup dry (40g)", CaloriesPerServing: 154, ProteinPerServing: 5, CarbsPerServing: 28, FatsPerServing: 3},
}

// Catalog looks foods up by id or name.
type Catalog struct {
	foods []model.FoodItem
	byID  map[string]int
}

// New returns the sample catalog.
func New() *Catalog {
	return NewWithFoods(sampleFoods)
}

// NewWithFoods builds a catalog over foods. Later duplicates of an id are
// ignored.
func NewWithFoods(foods []model.FoodItem) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(foods))}
	for _, f := range foods {
		if _, dup := c.byID[f.ID]; dup {
			continue
		}
		c.byID[f.ID] = len(c.foods)
		c.foods = append(c.foods, f)
	}
	return c
}

// All returns every food in catalog order.
func (c *Catalog) All() []model.FoodItem {
	out := make([]model.FoodItem, len(c.foods))
	copy(out, c.foods)
	return out
}

// Search returns foods whose name contains term, ignoring case.
// A blank term matches everything.
func (c *Catalog) Search(term string) []model.FoodItem {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return c.All()
	}

	out := make([]model.FoodItem, 0)
	for _, f := range c.foods {
		if strings.Contains(strings.ToLower(f.Name), term) {
			out = append(out, f)
		}
	}
	return out
}

// Get returns the food with the given id, or apperror.ErrNotFound.
func (c *Catalog) Get(id string) (model.FoodItem, error) {
	i, ok := c.byID[id]
	if !ok {
		return model.FoodItem{}, apperror.NotFound("food", id)
	}
	return c.foods[i], nil
}
