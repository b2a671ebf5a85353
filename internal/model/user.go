// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a signed-in account, owned by the identity side of the app.
// A profile (UserProfile) hangs off User.ID.
//
// Accounts come from two places: GitHub OAuth (GitHubID set, no password)
// and email/password sign-up (PasswordHash set, GitHubID nil). The UNIQUE
// constraint on github_id allows many NULLs, so password accounts coexist.
//
// PasswordHash is never serialised; the json:"-" tag keeps bcrypt hashes
// out of every API response.
type User struct {
	ID           string    `json:"id"        db:"id"`
	GitHubID     *int64    `json:"githubId"  db:"github_id"` // nil for password accounts
	Login        string    `json:"login"     db:"login"`
	Email        string    `json:"email"     db:"email"`      // may be empty for GitHub users who hide it
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
