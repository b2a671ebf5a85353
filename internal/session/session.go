// Package session holds the per-user state that lives only while a user is
// signed in: today's nutrition ledger, the profile cache and the profile
// editor. Nothing here is persisted; sign-out or a restart drops it.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/fitai/internal/ledger"
	"github.com/sakif/fitai/internal/repository"
	"github.com/sakif/fitai/internal/service"
)

// Session is one signed-in user's state.
type Session struct {
	UserID   string
	Profiles *service.ProfileStore
	Editor   *service.ProfileEditor

	now       func() time.Time
	newLedger func() *ledger.Ledger
	logger    *slog.Logger

	mu     sync.Mutex
	ledger *ledger.Ledger
}

// Ledger returns today's ledger, replacing it first if the calendar day has
// changed since it was created.
func (s *Session) Ledger() *ledger.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()

	if today := ledger.StartOfDay(s.now()); !s.ledger.Day().Equal(today) {
		s.ledger = s.newLedger()
		s.logger.Info("ledger rolled over",
			slog.String("userID", s.UserID),
			slog.Time("day", today),
		)
	}
	return s.ledger
}

// Manager creates sessions on first use and hands out the same one until
// End. When the calendar day changes, the session's next Ledger call starts
// a fresh ledger; the profile cache carries over.
type Manager struct {
	profiles    repository.ProfileRepository
	validate    *validator.Validate
	logger      *slog.Logger
	now         func() time.Time
	waterTarget int

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now for ledger days and profile timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithWaterTarget sets the daily water goal given to new ledgers.
func WithWaterTarget(glasses int) Option {
	return func(m *Manager) { m.waterTarget = glasses }
}

// NewManager returns an empty Manager.
func NewManager(profiles repository.ProfileRepository, validate *validator.Validate, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		profiles:    profiles,
		validate:    validate,
		logger:      logger,
		now:         time.Now,
		waterTarget: ledger.DefaultWaterTarget,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the session for userID, creating it if needed.
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}

	store := service.NewProfileStore(m.profiles, m.validate, m.logger, service.WithProfileClock(m.now))
	s := &Session{
		UserID:    userID,
		Profiles:  store,
		Editor:    service.NewProfileEditor(store),
		now:       m.now,
		newLedger: m.newLedger,
		logger:    m.logger,
		ledger:    m.newLedger(),
	}
	m.sessions[userID] = s
	m.logger.Debug("session started", slog.String("userID", userID))
	return s
}

// End drops the user's session and invalidates its profile cache, so a
// save still in flight cannot repopulate it. Ending an unknown user is a
// no-op.
func (m *Manager) End(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.Profiles.Invalidate()
		m.logger.Debug("session ended", slog.String("userID", userID))
	}
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) newLedger() *ledger.Ledger {
	return ledger.New(ledger.WithClock(m.now), ledger.WithWaterTarget(m.waterTarget))
}
