// Package repository declares the persistence contracts the services depend
// on. Implementations live in subpackages (see repository/sqlite).
//
// Every single-record method returns exactly one record or an error; a
// missing row is apperror.ErrNotFound and a unique-key clash is
// apperror.ErrConflict. Anything else is a driver failure.
package repository

import (
	"context"
	"time"

	"github.com/sakif/fitai/internal/model"
)

// ProfileRepository stores one UserProfile per account, keyed by user id.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*model.UserProfile, error)

	// Insert fails with ErrConflict when the account already has a profile.
	Insert(ctx context.Context, userID string, in model.UserProfileInput) (*model.UserProfile, error)

	// UpdateByUserID writes only the non-nil fields of patch and sets
	// updated_at to at.
	UpdateByUserID(ctx context.Context, userID string, patch model.UserProfilePatch, at time.Time) (*model.UserProfile, error)

	// UpsertByUserID inserts, or overwrites every editable field of the
	// existing row. The record id and created_at survive an overwrite.
	UpsertByUserID(ctx context.Context, userID string, in model.UserProfileInput, at time.Time) (*model.UserProfile, error)
}

// UserRepository stores accounts.
type UserRepository interface {
	// Upsert creates or refreshes a GitHub account, matched on GitHubID.
	Upsert(ctx context.Context, user *model.User) error
	// Create inserts a password account. A taken email is ErrConflict.
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
}
