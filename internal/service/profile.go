// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, caches, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services take repository interfaces, not *sqlite.DB, so tests pass
// in-memory fakes and the service never imports a driver.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/fitai/internal/apperror"
	"github.com/sakif/fitai/internal/model"
	"github.com/sakif/fitai/internal/repository"
)

// ProfileStore fronts the user_profiles table for one signed-in user and
// keeps the last profile it saw in a single cache slot.
//
// CACHE RULES:
//   - Every successful Load, Create, Update and Upsert replaces the slot
//     with the record the repository returned.
//   - Load that finds no row stores "absent" (nil).
//   - Invalidate empties the slot and bumps a generation counter. A call
//     that started before an Invalidate never writes its result into the
//     slot, so a slow response cannot resurrect a profile after sign-out.
//
// Calls are not serialized against each other. Two overlapping updates
// both reach the repository and whichever response arrives last ends up in
// the cache.
type ProfileStore struct {
	repo     repository.ProfileRepository
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	cached     *model.UserProfile
	loaded     bool
	generation uint64
}

// ProfileStoreOption configures a ProfileStore.
type ProfileStoreOption func(*ProfileStore)

// WithProfileClock overrides the clock used to stamp UpdatedAt.
func WithProfileClock(now func() time.Time) ProfileStoreOption {
	return func(s *ProfileStore) { s.now = now }
}

// NewProfileStore creates a ProfileStore. validate should come from
// model.NewValidator so errors name fields by their JSON names.
func NewProfileStore(
	repo repository.ProfileRepository,
	validate *validator.Validate,
	logger *slog.Logger,
	opts ...ProfileStoreOption,
) *ProfileStore {
	s := &ProfileStore{
		repo:     repo,
		validate: validate,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the profile for userID. A missing row is not an error: it
// returns (nil, nil) and caches the absence.
func (s *ProfileStore) Load(ctx context.Context, userID string) (*model.UserProfile, error) {
	gen := s.currentGeneration()

	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.store(gen, nil)
			return nil, nil
		}
		return nil, s.persistenceError("load profile", userID, err)
	}

	s.store(gen, p)
	return cloneProfile(p), nil
}

// Create inserts a first profile for userID. The whole input is validated
// before the repository is touched. An existing profile is ErrConflict.
func (s *ProfileStore) Create(ctx context.Context, userID string, in model.UserProfileInput) (*model.UserProfile, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperror.FromValidation(err)
	}
	gen := s.currentGeneration()

	p, err := s.repo.Insert(ctx, userID, in)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, s.persistenceError("create profile", userID, err)
	}

	s.store(gen, p)
	s.logger.Info("profile created",
		slog.String("userID", userID),
		slog.String("profileID", p.ID),
	)
	return cloneProfile(p), nil
}

// Update writes the fields present in patch and stamps UpdatedAt with the
// store's clock. Only present fields are validated. The cache takes the
// record the repository returned, including its UpdatedAt.
func (s *ProfileStore) Update(ctx context.Context, userID string, patch model.UserProfilePatch) (*model.UserProfile, error) {
	if err := s.validate.Struct(patch); err != nil {
		return nil, apperror.FromValidation(err)
	}
	gen := s.currentGeneration()

	p, err := s.repo.UpdateByUserID(ctx, userID, patch, s.now())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, s.persistenceError("update profile", userID, err)
	}

	s.store(gen, p)
	s.logger.Info("profile updated", slog.String("userID", userID))
	return cloneProfile(p), nil
}

// Upsert creates the profile or overwrites every editable field of the
// existing one. Onboarding uses it so a retried submit cannot hit a
// duplicate-key error.
func (s *ProfileStore) Upsert(ctx context.Context, userID string, in model.UserProfileInput) (*model.UserProfile, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperror.FromValidation(err)
	}
	gen := s.currentGeneration()

	p, err := s.repo.UpsertByUserID(ctx, userID, in, s.now())
	if err != nil {
		return nil, s.persistenceError("save profile", userID, err)
	}

	s.store(gen, p)
	s.logger.Info("profile saved", slog.String("userID", userID))
	return cloneProfile(p), nil
}

// Invalidate empties the cache slot. Results of calls already in flight are
// discarded when they return.
func (s *ProfileStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	s.loaded = false
	s.generation++
}

// Cached returns the slot contents without I/O. loaded is false when nothing
// has been fetched since construction or the last Invalidate; a loaded slot
// with a nil profile means the user has none.
func (s *ProfileStore) Cached() (p *model.UserProfile, loaded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProfile(s.cached), s.loaded
}

func (s *ProfileStore) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// store writes p into the slot unless an Invalidate happened since gen was read.
func (s *ProfileStore) store(gen uint64, p *model.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}
	s.cached = cloneProfile(p)
	s.loaded = true
}

func (s *ProfileStore) persistenceError(op, userID string, err error) error {
	s.logger.Error("profile store failure",
		slog.String("op", op),
		slog.String("userID", userID),
		slog.String("error", err.Error()),
	)
	return apperror.PersistenceFailure(op, err)
}

func cloneProfile(p *model.UserProfile) *model.UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Allergies != nil {
		a := *p.Allergies
		c.Allergies = &a
	}
	return &c
}
