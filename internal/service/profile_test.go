package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fitai/internal/apperror"
	"github.com/sakif/fitai/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeProfileRepo is an in-memory repository.ProfileRepository. It counts
// calls so tests can assert that validation failures never reach it.
type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.UserProfile
	calls    int
	nextID   int

	// err, when set, is returned by every method.
	err error
	// beforeReturn, when set, runs after the write and before the result is
	// returned; tests use it to reorder overlapping calls.
	beforeReturn func(call int)
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*model.UserProfile)}
}

func (f *fakeProfileRepo) begin() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.calls, f.err
}

func (f *fakeProfileRepo) finish(call int, p *model.UserProfile) (*model.UserProfile, error) {
	if f.beforeReturn != nil {
		f.beforeReturn(call)
	}
	return p, nil
}

func (f *fakeProfileRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProfileRepo) GetByUserID(_ context.Context, userID string) (*model.UserProfile, error) {
	call, err := f.begin()
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	p, ok := f.profiles[userID]
	f.mu.Unlock()
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	return f.finish(call, cloneProfile(p))
}

func (f *fakeProfileRepo) Insert(_ context.Context, userID string, in model.UserProfileInput) (*model.UserProfile, error) {
	call, err := f.begin()
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	if _, exists := f.profiles[userID]; exists {
		f.mu.Unlock()
		return nil, apperror.Conflict("profile", userID)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.nextID++
	p := profileFromInput(userID, in)
	p.ID = "profile-" + string(rune('0'+f.nextID))
	p.CreatedAt, p.UpdatedAt = now, now
	f.profiles[userID] = p
	out := cloneProfile(p)
	f.mu.Unlock()
	return f.finish(call, out)
}

func (f *fakeProfileRepo) UpdateByUserID(_ context.Context, userID string, patch model.UserProfilePatch, at time.Time) (*model.UserProfile, error) {
	call, err := f.begin()
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	p, ok := f.profiles[userID]
	if !ok {
		f.mu.Unlock()
		return nil, apperror.NotFound("profile", userID)
	}
	in := p.Input()
	patch.ApplyTo(&in)
	updated := profileFromInput(userID, in)
	updated.ID, updated.CreatedAt, updated.UpdatedAt = p.ID, p.CreatedAt, at
	f.profiles[userID] = updated
	out := cloneProfile(updated)
	f.mu.Unlock()
	return f.finish(call, out)
}

func (f *fakeProfileRepo) UpsertByUserID(_ context.Context, userID string, in model.UserProfileInput, at time.Time) (*model.UserProfile, error) {
	call, err := f.begin()
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	p := profileFromInput(userID, in)
	p.UpdatedAt = at
	if existing, ok := f.profiles[userID]; ok {
		p.ID, p.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		f.nextID++
		p.ID = "profile-" + string(rune('0'+f.nextID))
		p.CreatedAt = at
	}
	f.profiles[userID] = p
	out := cloneProfile(p)
	f.mu.Unlock()
	return f.finish(call, out)
}

func profileFromInput(userID string, in model.UserProfileInput) *model.UserProfile {
	return &model.UserProfile{
		UserID:         userID,
		Age:            in.Age,
		HeightCm:       in.HeightCm,
		WeightKg:       in.WeightKg,
		Gender:         in.Gender,
		ActivityLevel:  in.ActivityLevel,
		PrimaryGoal:    in.PrimaryGoal,
		DietPreference: in.DietPreference,
		Allergies:      in.Allergies,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var fixedNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestProfileStore(t *testing.T) (*ProfileStore, *fakeProfileRepo) {
	t.Helper()
	repo := newFakeProfileRepo()
	store := NewProfileStore(repo, model.NewValidator(), testLogger(),
		WithProfileClock(func() time.Time { return fixedNow }))
	return store, repo
}

func validInput() model.UserProfileInput {
	return model.UserProfileInput{
		Age:            34,
		HeightCm:       182,
		WeightKg:       80,
		Gender:         model.GenderMale,
		ActivityLevel:  model.VeryActive,
		PrimaryGoal:    model.LoseFat,
		DietPreference: model.Omnivore,
	}
}

// =========================================================================
// LOAD
// =========================================================================

func TestLoad_NotFoundIsAbsent(t *testing.T) {
	store, _ := newTestProfileStore(t)

	p, err := store.Load(context.Background(), "u1")

	require.NoError(t, err)
	assert.Nil(t, p)
	cached, loaded := store.Cached()
	assert.True(t, loaded)
	assert.Nil(t, cached)
}

func TestLoad_PopulatesCache(t *testing.T) {
	store, repo := newTestProfileStore(t)
	_, err := repo.Insert(context.Background(), "u1", validInput())
	require.NoError(t, err)

	p, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, p)

	cached, loaded := store.Cached()
	assert.True(t, loaded)
	assert.Equal(t, p, cached)
}

func TestLoad_RepositoryFailureIsPersistenceFailure(t *testing.T) {
	store, repo := newTestProfileStore(t)
	cause := errors.New("disk I/O error")
	repo.err = cause

	_, err := store.Load(context.Background(), "u1")

	assert.True(t, errors.Is(err, apperror.ErrPersistence))
	assert.True(t, errors.Is(err, cause))
	_, loaded := store.Cached()
	assert.False(t, loaded)
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreate_Success(t *testing.T) {
	store, _ := newTestProfileStore(t)

	p, err := store.Create(context.Background(), "u1", validInput())

	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	cached, _ := store.Cached()
	assert.Equal(t, p, cached)
}

func TestCreate_MissingAgeNeverCallsRepository(t *testing.T) {
	store, repo := newTestProfileStore(t)
	in := validInput()
	in.Age = 0

	_, err := store.Create(context.Background(), "u1", in)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "age", appErr.Field)
	assert.Zero(t, repo.callCount())
}

func TestCreate_InvalidEnumNeverCallsRepository(t *testing.T) {
	store, repo := newTestProfileStore(t)
	in := validInput()
	in.ActivityLevel = "couch"

	_, err := store.Create(context.Background(), "u1", in)

	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Zero(t, repo.callCount())
}

func TestCreate_DuplicateIsConflict(t *testing.T) {
	store, _ := newTestProfileStore(t)
	_, err := store.Create(context.Background(), "u1", validInput())
	require.NoError(t, err)

	_, err = store.Create(context.Background(), "u1", validInput())

	assert.True(t, errors.Is(err, apperror.ErrConflict))
	assert.False(t, errors.Is(err, apperror.ErrPersistence))
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdate_AfterLoadCachesRepositoryRecord(t *testing.T) {
	store, repo := newTestProfileStore(t)
	_, err := repo.Insert(context.Background(), "u1", validInput())
	require.NoError(t, err)

	loaded, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)

	weight := 78
	updated, err := store.Update(context.Background(), "u1", model.UserProfilePatch{WeightKg: &weight})
	require.NoError(t, err)

	assert.Equal(t, fixedNow, updated.UpdatedAt)
	cached, _ := store.Cached()
	assert.Equal(t, fixedNow, cached.UpdatedAt)
	assert.NotEqual(t, loaded.UpdatedAt, cached.UpdatedAt)
	assert.Equal(t, 78, cached.WeightKg)
	assert.Equal(t, loaded.Age, cached.Age)
}

func TestUpdate_ValidatesOnlyPresentFields(t *testing.T) {
	store, repo := newTestProfileStore(t)
	_, err := repo.Insert(context.Background(), "u1", validInput())
	require.NoError(t, err)
	before := repo.callCount()

	bad := 0
	_, err = store.Update(context.Background(), "u1", model.UserProfilePatch{HeightCm: &bad})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Equal(t, before, repo.callCount())

	goal := model.GainMuscle
	_, err = store.Update(context.Background(), "u1", model.UserProfilePatch{PrimaryGoal: &goal})
	assert.NoError(t, err)
}

func TestUpdate_NotFound(t *testing.T) {
	store, _ := newTestProfileStore(t)
	age := 40

	_, err := store.Update(context.Background(), "ghost", model.UserProfilePatch{Age: &age})

	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestUpdate_TwoUnserializedUpdatesLastResponseWins(t *testing.T) {
	store, repo := newTestProfileStore(t)
	_, err := repo.Insert(context.Background(), "u1", validInput())
	require.NoError(t, err)

	// Call 2 (weight=70) is written first; call 3 (weight=90) returns
	// first. Call 2's response arrives last and must own the cache.
	firstReturned := make(chan struct{})
	repo.beforeReturn = func(call int) {
		if call == 2 {
			<-firstReturned
		}
	}

	w70, w90 := 70, 90
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := store.Update(context.Background(), "u1", model.UserProfilePatch{WeightKg: &w70})
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return repo.callCount() == 2 }, time.Second, time.Millisecond)
	_, err = store.Update(context.Background(), "u1", model.UserProfilePatch{WeightKg: &w90})
	require.NoError(t, err)
	close(firstReturned)
	wg.Wait()

	cached, _ := store.Cached()
	assert.Equal(t, 70, cached.WeightKg)
}

// =========================================================================
// UPSERT AND INVALIDATE
// =========================================================================

func TestUpsert_CreatesThenOverwrites(t *testing.T) {
	store, _ := newTestProfileStore(t)

	first, err := store.Upsert(context.Background(), "u1", validInput())
	require.NoError(t, err)

	in := validInput()
	in.Age = 35
	second, err := store.Upsert(context.Background(), "u1", in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 35, second.Age)
	cached, _ := store.Cached()
	assert.Equal(t, 35, cached.Age)
}

func TestUpsert_RequiresFullInput(t *testing.T) {
	store, repo := newTestProfileStore(t)

	_, err := store.Upsert(context.Background(), "u1", model.UserProfileInput{Age: 20})

	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Zero(t, repo.callCount())
}

func TestInvalidate_ClearsCache(t *testing.T) {
	store, _ := newTestProfileStore(t)
	_, err := store.Create(context.Background(), "u1", validInput())
	require.NoError(t, err)

	store.Invalidate()

	cached, loaded := store.Cached()
	assert.Nil(t, cached)
	assert.False(t, loaded)
}

func TestInvalidate_DiscardsInFlightResult(t *testing.T) {
	store, repo := newTestProfileStore(t)
	_, err := repo.Insert(context.Background(), "u1", validInput())
	require.NoError(t, err)

	release := make(chan struct{})
	repo.beforeReturn = func(int) { <-release }

	done := make(chan struct{})
	go func() {
		defer close(done)
		p, err := store.Load(context.Background(), "u1")
		assert.NoError(t, err)
		assert.NotNil(t, p, "the caller still gets its result")
	}()

	require.Eventually(t, func() bool { return repo.callCount() == 2 }, time.Second, time.Millisecond)
	store.Invalidate()
	close(release)
	<-done

	cached, loaded := store.Cached()
	assert.Nil(t, cached)
	assert.False(t, loaded)
}

func TestCachedReturnsCopy(t *testing.T) {
	store, _ := newTestProfileStore(t)
	_, err := store.Create(context.Background(), "u1", validInput())
	require.NoError(t, err)

	cached, _ := store.Cached()
	cached.Age = 99

	again, _ := store.Cached()
	assert.Equal(t, 34, again.Age)
}
