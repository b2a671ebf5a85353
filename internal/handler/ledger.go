package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/sakif/fitai/internal/apperror"
	"github.com/sakif/fitai/internal/catalog"
	"github.com/sakif/fitai/internal/model"
	"github.com/sakif/fitai/internal/realtime"
	"github.com/sakif/fitai/internal/session"
)

// pingInterval keeps idle websocket connections alive through proxies.
const pingInterval = 25 * time.Second

// LedgerHandler exposes today's nutrition ledger of the signed-in user.
// Every change is pushed to the user's open dashboards as a fresh snapshot.
type LedgerHandler struct {
	sessions *session.Manager
	catalog  *catalog.Catalog
	targets  model.DailyTargets
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler. allowedOrigins is checked on
// websocket upgrades; "*" allows any origin.
func NewLedgerHandler(
	sessions *session.Manager,
	c *catalog.Catalog,
	targets model.DailyTargets,
	hub *realtime.Hub,
	allowedOrigins []string,
	logger *slog.Logger,
) *LedgerHandler {
	return &LedgerHandler{
		sessions: sessions,
		catalog:  c,
		targets:  targets,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// HandleSnapshot returns meals, totals, progress and water in one response.
//
// HTTP: GET /api/ledger
func (h *LedgerHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	snap, err := h.sessions.Get(uid).Ledger().Snapshot(h.targets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// quantity accepts a JSON number or a numeric string. Anything it cannot
// read becomes 0, which the ledger replaces with one serving.
type quantity float64

func (q *quantity) UnmarshalJSON(data []byte) error {
	raw := string(bytes.TrimSpace(data))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		v = 0
	}
	*q = quantity(v)
	return nil
}

type addEntryRequest struct {
	FoodID   string          `json:"foodId"`
	Food     *model.FoodItem `json:"food"`
	Quantity quantity        `json:"quantity"`
	MealSlot string          `json:"mealSlot"`
}

// HandleAddEntry logs a food into a meal slot. The food is either a catalog
// id or an inline item. A missing or unreadable quantity counts as one
// serving.
//
// HTTP: POST /api/ledger/entries
// REQUEST BODY: {"foodId": "1", "quantity": 1.5, "mealSlot": "breakfast"}
func (h *LedgerHandler) HandleAddEntry(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req addEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	slot, err := model.ParseMealSlot(req.MealSlot)
	if err != nil {
		writeError(w, err)
		return
	}

	var food model.FoodItem
	switch {
	case req.FoodID != "":
		if food, err = h.catalog.Get(req.FoodID); err != nil {
			writeError(w, err)
			return
		}
	case req.Food != nil:
		food = *req.Food
	default:
		writeError(w, apperror.ValidationFailed("foodId", "either foodId or food is required"))
		return
	}

	led := h.sessions.Get(uid).Ledger()
	id, err := led.AddEntry(food, float64(req.Quantity), slot)
	if err != nil {
		writeError(w, err)
		return
	}
	entry, _ := led.Entry(id)

	h.logger.Debug("entry logged",
		slog.String("userID", uid),
		slog.String("food", food.Name),
		slog.String("mealSlot", string(slot)),
	)
	h.broadcast(uid)
	writeJSON(w, http.StatusCreated, entry)
}

// HandleRemoveEntry deletes an entry. Removing an id that is not there is
// not an error; "removed" tells the caller whether anything changed.
//
// HTTP: DELETE /api/ledger/entries/{id}
func (h *LedgerHandler) HandleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	removed := h.sessions.Get(uid).Ledger().RemoveEntry(chi.URLParam(r, "id"))
	if removed {
		h.broadcast(uid)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

type mealResponse struct {
	Slot    model.MealSlot      `json:"slot"`
	Entries []model.LoggedEntry `json:"entries"`
	Totals  model.Macros        `json:"totals"`
}

// HandleMeal returns one meal slot's entries and rounded totals.
//
// HTTP: GET /api/ledger/meals/{slot}
func (h *LedgerHandler) HandleMeal(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	slot, err := model.ParseMealSlot(chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, err)
		return
	}

	led := h.sessions.Get(uid).Ledger()
	totals, err := led.TotalsForMeal(slot)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mealResponse{
		Slot:    slot,
		Entries: led.EntriesForMeal(slot),
		Totals:  totals.Rounded(),
	})
}

// HandleProgress returns one nutrient's standing against its daily target.
//
// HTTP: GET /api/ledger/progress/{nutrient}
func (h *LedgerHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	n, err := model.ParseNutrient(chi.URLParam(r, "nutrient"))
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.sessions.Get(uid).Ledger().Progress(n, h.targets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type waterRequest struct {
	Delta *int `json:"delta"`
}

// HandleWater adds (or with a negative delta removes) glasses of water.
// Without a delta one glass is added.
//
// HTTP: POST /api/ledger/water
func (h *LedgerHandler) HandleWater(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req waterRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	delta := 1
	if req.Delta != nil {
		delta = *req.Delta
	}

	water := h.sessions.Get(uid).Ledger().AdjustWater(delta)
	h.broadcast(uid)
	writeJSON(w, http.StatusOK, water)
}

// HandleStream upgrades to a websocket, sends the current snapshot, then a
// new snapshot after every change from any tab.
//
// HTTP: GET /api/ledger/stream
func (h *LedgerHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := h.hub.Register(uid, conn)
	defer h.hub.Unregister(client)

	if msg, err := h.snapshotEvent(uid); err == nil {
		if err := client.Send(msg); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := client.Ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	// Clients only listen; reading surfaces the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// broadcast pushes the user's current snapshot to their open streams.
func (h *LedgerHandler) broadcast(uid string) {
	snap, err := h.sessions.Get(uid).Ledger().Snapshot(h.targets)
	if err != nil {
		h.logger.Error("building snapshot for broadcast",
			slog.String("userID", uid),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := h.hub.Broadcast(uid, "snapshot", snap); err != nil {
		h.logger.Error("broadcasting snapshot", slog.String("error", err.Error()))
	}
}

func (h *LedgerHandler) snapshotEvent(uid string) ([]byte, error) {
	snap, err := h.sessions.Get(uid).Ledger().Snapshot(h.targets)
	if err != nil {
		return nil, err
	}
	return json.Marshal(realtime.Event{Type: "snapshot", Data: snap})
}
