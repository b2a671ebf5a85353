package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/fitai/internal/apperror"
	"github.com/sakif/fitai/internal/model"
	"github.com/sakif/fitai/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

const profileColumns = `id, user_id, age, height_cm, weight_kg, gender, activity_level,
	primary_goal, diet_preference, allergies, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*model.UserProfile, error) {
	var (
		p         model.UserProfile
		allergies sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Age,
		&p.HeightCm,
		&p.WeightKg,
		&p.Gender,
		&p.ActivityLevel,
		&p.PrimaryGoal,
		&p.DietPreference,
		&allergies,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if allergies.Valid {
		p.Allergies = &allergies.String
	}
	return &p, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// GetByUserID returns the profile owned by userID, or apperror.ErrNotFound.
func (db *DB) GetByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	p, err := scanProfile(db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`,
		userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("sqlite: getting profile for user %s: %w", userID, err)
	}
	return p, nil
}

// Insert creates the profile for userID with a fresh UUID record id.
// A second profile for the same account fails with apperror.ErrConflict.
func (db *DB) Insert(ctx context.Context, userID string, in model.UserProfileInput) (*model.UserProfile, error) {
	now := time.Now().UTC()
	p := &model.UserProfile{
		ID:             uuid.NewString(),
		UserID:         userID,
		Age:            in.Age,
		HeightCm:       in.HeightCm,
		WeightKg:       in.WeightKg,
		Gender:         in.Gender,
		ActivityLevel:  in.ActivityLevel,
		PrimaryGoal:    in.PrimaryGoal,
		DietPreference: in.DietPreference,
		Allergies:      in.Allergies,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.UserID,
		p.Age,
		p.HeightCm,
		p.WeightKg,
		p.Gender,
		p.ActivityLevel,
		p.PrimaryGoal,
		p.DietPreference,
		nullableString(p.Allergies),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("profile", userID)
		}
		return nil, fmt.Errorf("sqlite: inserting profile for user %s: %w", userID, err)
	}
	return p, nil
}

// profileSetters maps patch fields to their columns. Only these columns can
// ever appear in an UPDATE built from a patch.
func profileSetters(patch model.UserProfilePatch) ([]string, []any) {
	var (
		cols []string
		args []any
	)
	add := func(col string, v any) {
		cols = append(cols, col+" = ?")
		args = append(args, v)
	}
	if patch.Age != nil {
		add("age", *patch.Age)
	}
	if patch.HeightCm != nil {
		add("height_cm", *patch.HeightCm)
	}
	if patch.WeightKg != nil {
		add("weight_kg", *patch.WeightKg)
	}
	if patch.Gender != nil {
		add("gender", *patch.Gender)
	}
	if patch.ActivityLevel != nil {
		add("activity_level", *patch.ActivityLevel)
	}
	if patch.PrimaryGoal != nil {
		add("primary_goal", *patch.PrimaryGoal)
	}
	if patch.DietPreference != nil {
		add("diet_preference", *patch.DietPreference)
	}
	if patch.Allergies != nil {
		add("allergies", *patch.Allergies)
	}
	return cols, args
}

// UpdateByUserID writes the non-nil fields of patch plus updated_at = at and
// returns the row as stored. An empty patch still stamps updated_at.
func (db *DB) UpdateByUserID(ctx context.Context, userID string, patch model.UserProfilePatch, at time.Time) (*model.UserProfile, error) {
	cols, args := profileSetters(patch)
	cols = append(cols, "updated_at = ?")
	args = append(args, at.UTC(), userID)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning profile update for user %s: %w", userID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE user_profiles SET `+strings.Join(cols, ", ")+` WHERE user_id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating profile for user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return nil, apperror.NotFound("profile", userID)
	}

	p, err := scanProfile(tx.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`,
		userID,
	))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading back profile for user %s: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing profile update for user %s: %w", userID, err)
	}
	return p, nil
}

// UpsertByUserID inserts the profile, or overwrites every editable field of
// the existing one. On overwrite the record id and created_at are kept.
func (db *DB) UpsertByUserID(ctx context.Context, userID string, in model.UserProfileInput, at time.Time) (*model.UserProfile, error) {
	at = at.UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning profile upsert for user %s: %w", userID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			age             = excluded.age,
			height_cm       = excluded.height_cm,
			weight_kg       = excluded.weight_kg,
			gender          = excluded.gender,
			activity_level  = excluded.activity_level,
			primary_goal    = excluded.primary_goal,
			diet_preference = excluded.diet_preference,
			allergies       = excluded.allergies,
			updated_at      = excluded.updated_at`,
		uuid.NewString(),
		userID,
		in.Age,
		in.HeightCm,
		in.WeightKg,
		in.Gender,
		in.ActivityLevel,
		in.PrimaryGoal,
		in.DietPreference,
		nullableString(in.Allergies),
		at,
		at,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting profile for user %s: %w", userID, err)
	}

	p, err := scanProfile(tx.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`,
		userID,
	))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading back profile for user %s: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing profile upsert for user %s: %w", userID, err)
	}
	return p, nil
}
