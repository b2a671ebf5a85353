// Package handler contains the HTTP handlers.
//
// An HTTP handler in Go is anything with ServeHTTP(w, r). Each handler struct
// here owns one area of the API, holds its dependencies as fields, and
// exposes HandleXxx methods that chi routes to. Handlers decode input, call
// into the session or service layer, and write JSON; they hold no business
// rules.
package handler

import (
	"net/http"

	"github.com/sakif/fitai/internal/catalog"
)

// FoodHandler serves the food catalog.
type FoodHandler struct {
	catalog *catalog.Catalog
}

func NewFoodHandler(c *catalog.Catalog) *FoodHandler {
	return &FoodHandler{catalog: c}
}

// HandleSearch lists foods whose name contains ?q=, ignoring case. An empty
// query lists everything.
//
// HTTP: GET /api/foods?q=rice
func (h *FoodHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Search(r.URL.Query().Get("q")))
}
