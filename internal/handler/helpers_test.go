package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fitai/internal/apperror"
	"github.com/sakif/fitai/internal/auth"
	"github.com/sakif/fitai/internal/model"
	"github.com/sakif/fitai/internal/session"
)

var testTargets = model.DailyTargets{Calories: 2500, Protein: 150, Carbs: 300, Fats: 80}

var repoEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeProfiles is an in-memory repository.ProfileRepository. Setting err
// makes every call fail as if storage were down.
type fakeProfiles struct {
	mu     sync.Mutex
	byUser map[string]*model.UserProfile
	err    error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byUser: make(map[string]*model.UserProfile)}
}

func (f *fakeProfiles) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeProfiles) GetByUserID(_ context.Context, userID string) (*model.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byUser[userID]
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	c := *p
	return &c, nil
}

func (f *fakeProfiles) Insert(_ context.Context, userID string, in model.UserProfileInput) (*model.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.byUser[userID]; ok {
		return nil, apperror.Conflict("profile", userID)
	}
	return f.write(userID, in, repoEpoch), nil
}

func (f *fakeProfiles) UpdateByUserID(_ context.Context, userID string, patch model.UserProfilePatch, at time.Time) (*model.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byUser[userID]
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	in := p.Input()
	patch.ApplyTo(&in)
	return f.write(userID, in, at), nil
}

func (f *fakeProfiles) UpsertByUserID(_ context.Context, userID string, in model.UserProfileInput, at time.Time) (*model.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.write(userID, in, at), nil
}

// seed stores a profile without going through the handlers.
func (f *fakeProfiles) seed(userID string, in model.UserProfileInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.write(userID, in, repoEpoch)
}

func (f *fakeProfiles) write(userID string, in model.UserProfileInput, at time.Time) *model.UserProfile {
	p := &model.UserProfile{
		ID:             "profile-" + userID,
		UserID:         userID,
		Age:            in.Age,
		HeightCm:       in.HeightCm,
		WeightKg:       in.WeightKg,
		Gender:         in.Gender,
		ActivityLevel:  in.ActivityLevel,
		PrimaryGoal:    in.PrimaryGoal,
		DietPreference: in.DietPreference,
		Allergies:      in.Allergies,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	if old, ok := f.byUser[userID]; ok {
		p.ID, p.CreatedAt = old.ID, old.CreatedAt
	}
	f.byUser[userID] = p
	c := *p
	return &c
}

func newTestSessions(repo *fakeProfiles) *session.Manager {
	return session.NewManager(repo, model.NewValidator(), quietLogger())
}

// asUser stands in for auth.RequireAuth: it signs every request in as the
// user named in X-Test-User, or "u1".
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Test-User")
		if id == "" {
			id = "u1"
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), id)))
	})
}

func newRouter(mount func(r chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(asUser)
	mount(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Field     string `json:"field"`
	Retryable bool   `json:"retryable"`
}
