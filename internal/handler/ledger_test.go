package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fitai/internal/catalog"
	"github.com/sakif/fitai/internal/handler"
	"github.com/sakif/fitai/internal/ledger"
	"github.com/sakif/fitai/internal/model"
	"github.com/sakif/fitai/internal/realtime"
)

func newLedgerRouter(t *testing.T) http.Handler {
	t.Helper()
	h := handler.NewLedgerHandler(
		newTestSessions(newFakeProfiles()),
		catalog.New(),
		testTargets,
		realtime.NewHub(quietLogger()),
		[]string{"*"},
		quietLogger(),
	)
	return newRouter(func(r chi.Router) {
		r.Get("/api/ledger", h.HandleSnapshot)
		r.Post("/api/ledger/entries", h.HandleAddEntry)
		r.Delete("/api/ledger/entries/{id}", h.HandleRemoveEntry)
		r.Get("/api/ledger/meals/{slot}", h.HandleMeal)
		r.Get("/api/ledger/progress/{nutrient}", h.HandleProgress)
		r.Post("/api/ledger/water", h.HandleWater)
		r.Get("/api/ledger/stream", h.HandleStream)
	})
}

func TestAddEntry(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		quantity float64
		field    string
	}{
		{"catalog food", `{"foodId":"1","quantity":1.5,"mealSlot":"breakfast"}`, http.StatusCreated, 1.5, ""},
		{"quantity as string", `{"foodId":"2","quantity":" 2 ","mealSlot":"lunch"}`, http.StatusCreated, 2, ""},
		{"unreadable quantity", `{"foodId":"2","quantity":"abc","mealSlot":"lunch"}`, http.StatusCreated, 1, ""},
		{"missing quantity", `{"foodId":"2","mealSlot":"lunch"}`, http.StatusCreated, 1, ""},
		{"negative quantity", `{"foodId":"2","quantity":-3,"mealSlot":"lunch"}`, http.StatusCreated, 1, ""},
		{"inline food", `{"food":{"name":"Toast","servingSize":"1 slice","calories":80,"protein":3,"carbs":14,"fats":1},"quantity":2,"mealSlot":"snacks"}`, http.StatusCreated, 2, ""},
		{"bad slot", `{"foodId":"1","mealSlot":"brunch"}`, http.StatusBadRequest, 0, "mealSlot"},
		{"no food", `{"mealSlot":"dinner"}`, http.StatusBadRequest, 0, "foodId"},
		{"negative inline food", `{"food":{"name":"X","calories":-1},"mealSlot":"dinner"}`, http.StatusBadRequest, 0, "calories"},
		{"overflowing quantity", `{"foodId":"1","quantity":1e307,"mealSlot":"breakfast"}`, http.StatusBadRequest, 0, "quantity"},
		{"malformed body", `{"foodId":`, http.StatusBadRequest, 0, "body"},
		{"unknown field", `{"foodId":"1","mealSlot":"dinner","extra":true}`, http.StatusBadRequest, 0, "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newLedgerRouter(t)

			rr := do(t, router, http.MethodPost, "/api/ledger/entries", tt.body)

			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.status == http.StatusCreated {
				entry := decode[model.LoggedEntry](t, rr)
				assert.NotEmpty(t, entry.ID)
				assert.Equal(t, tt.quantity, entry.Quantity)
				return
			}
			assert.Equal(t, tt.field, decode[errorBody](t, rr).Field)
		})
	}
}

func TestAddEntry_UnknownFoodID(t *testing.T) {
	rr := do(t, newLedgerRouter(t), http.MethodPost, "/api/ledger/entries", `{"foodId":"99","mealSlot":"dinner"}`)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSnapshot_AfterBreakfast(t *testing.T) {
	router := newLedgerRouter(t)
	do(t, router, http.MethodPost, "/api/ledger/entries", `{"foodId":"1","quantity":1,"mealSlot":"breakfast"}`)
	do(t, router, http.MethodPost, "/api/ledger/entries", `{"foodId":"2","quantity":1,"mealSlot":"breakfast"}`)

	rr := do(t, router, http.MethodGet, "/api/ledger", "")

	require.Equal(t, http.StatusOK, rr.Code)
	snap := decode[ledger.Snapshot](t, rr)
	assert.Equal(t, model.Macros{Calories: 205, Protein: 18, Carbs: 33, Fats: 0}, snap.Totals)
	require.Len(t, snap.Meals, 4)
	assert.Len(t, snap.Meals[0].Entries, 2)
	assert.Len(t, snap.Progress, 4)
	assert.Equal(t, 8, snap.Water.Target)
}

func TestSnapshot_StaysEncodableAfterHugeQuantity(t *testing.T) {
	router := newLedgerRouter(t)
	do(t, router, http.MethodPost, "/api/ledger/entries", `{"foodId":"1","quantity":1e306,"mealSlot":"breakfast"}`)
	second := do(t, router, http.MethodPost, "/api/ledger/entries", `{"foodId":"1","quantity":1e306,"mealSlot":"lunch"}`)
	require.Equal(t, http.StatusBadRequest, second.Code, second.Body.String())

	rr := do(t, router, http.MethodGet, "/api/ledger", "")

	require.Equal(t, http.StatusOK, rr.Code)
	snap := decode[ledger.Snapshot](t, rr)
	assert.InEpsilon(t, 1e308, snap.Totals.Calories, 1e-9)
	assert.Len(t, snap.Meals[1].Entries, 0)
}

func TestSnapshot_UsersAreIsolated(t *testing.T) {
	router := newLedgerRouter(t)
	do(t, router, http.MethodPost, "/api/ledger/entries", `{"foodId":"3","mealSlot":"dinner"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/ledger", nil)
	req.Header.Set("X-Test-User", "u2")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	snap := decode[ledger.Snapshot](t, rr)
	assert.Zero(t, snap.Totals)
}

func TestRemoveEntry_Idempotent(t *testing.T) {
	router := newLedgerRouter(t)
	entry := decode[model.LoggedEntry](t, do(t, router, http.MethodPost, "/api/ledger/entries", `{"foodId":"5","mealSlot":"snacks"}`))

	first := do(t, router, http.MethodDelete, "/api/ledger/entries/"+entry.ID, "")
	second := do(t, router, http.MethodDelete, "/api/ledger/entries/"+entry.ID, "")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, map[string]bool{"removed": true}, decode[map[string]bool](t, first))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, map[string]bool{"removed": false}, decode[map[string]bool](t, second))

	snap := decode[ledger.Snapshot](t, do(t, router, http.MethodGet, "/api/ledger", ""))
	assert.Zero(t, snap.Totals)
}

func TestMeal(t *testing.T) {
	router := newLedgerRouter(t)
	do(t, router, http.MethodPost, "/api/ledger/entries", `{"foodId":"5","quantity":"0.5","mealSlot":"snacks"}`)

	rr := do(t, router, http.MethodGet, "/api/ledger/meals/snacks", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var meal struct {
		Slot    model.MealSlot      `json:"slot"`
		Entries []model.LoggedEntry `json:"entries"`
		Totals  model.Macros        `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &meal))
	assert.Equal(t, model.Snacks, meal.Slot)
	assert.Len(t, meal.Entries, 1)
	assert.Equal(t, model.Macros{Calories: 82, Protein: 3, Carbs: 3, Fats: 7}, meal.Totals)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/ledger/meals/supper", "").Code)
}

func TestProgress(t *testing.T) {
	router := newLedgerRouter(t)
	do(t, router, http.MethodPost, "/api/ledger/entries", `{"foodId":"3","quantity":3,"mealSlot":"dinner"}`)

	rr := do(t, router, http.MethodGet, "/api/ledger/progress/protein", "")

	require.Equal(t, http.StatusOK, rr.Code)
	p := decode[model.Progress](t, rr)
	assert.Equal(t, model.Protein, p.Nutrient)
	assert.Equal(t, 93.0, p.Current)
	assert.InDelta(t, 62.0, p.Percentage, 1e-9)
	assert.Equal(t, 57.0, p.Remaining)
	assert.False(t, p.OverTarget)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/ledger/progress/sugar", "").Code)
}

func TestWater(t *testing.T) {
	router := newLedgerRouter(t)

	w1 := decode[model.WaterIntake](t, do(t, router, http.MethodPost, "/api/ledger/water", ""))
	w2 := decode[model.WaterIntake](t, do(t, router, http.MethodPost, "/api/ledger/water", `{"delta":3}`))
	w3 := decode[model.WaterIntake](t, do(t, router, http.MethodPost, "/api/ledger/water", `{"delta":-10}`))

	assert.Equal(t, 1, w1.Glasses)
	assert.Equal(t, 4, w2.Glasses)
	assert.Equal(t, 50.0, w2.Percentage)
	assert.Equal(t, 0, w3.Glasses)
}

func TestStream_PushesSnapshots(t *testing.T) {
	srv := httptest.NewServer(newLedgerRouter(t))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ledger/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() realtime.Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev realtime.Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	initial := read()
	assert.Equal(t, "snapshot", initial.Type)

	resp, err := http.Post(srv.URL+"/api/ledger/entries", "application/json",
		strings.NewReader(`{"foodId":"2","quantity":1,"mealSlot":"breakfast"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	update := read()
	assert.Equal(t, "snapshot", update.Type)
	data, ok := update.Data.(map[string]any)
	require.True(t, ok)
	totals := data["totals"].(map[string]any)
	assert.Equal(t, 105.0, totals["calories"])
}
