package model

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Gender is the profile's sex/gender option.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ActivityLevel is how active the user is day to day.
type ActivityLevel string

const (
	Sedentary        ActivityLevel = "sedentary"
	LightlyActive    ActivityLevel = "lightly-active"
	ModeratelyActive ActivityLevel = "moderately-active"
	VeryActive       ActivityLevel = "very-active"
	ExtremelyActive  ActivityLevel = "extremely-active"
)

// PrimaryGoal is what the user is training or eating for.
type PrimaryGoal string

const (
	LoseFat        PrimaryGoal = "lose-fat"
	GainMuscle     PrimaryGoal = "gain-muscle"
	MaintainWeight PrimaryGoal = "maintain-weight"
)

// DietPreference is the eating pattern meals should respect.
type DietPreference string

const (
	Omnivore    DietPreference = "omnivore"
	Vegetarian  DietPreference = "vegetarian"
	Vegan       DietPreference = "vegan"
	Pescatarian DietPreference = "pescatarian"
	Keto        DietPreference = "keto"
	Paleo       DietPreference = "paleo"
)

// UserProfile is the single row a user owns in user_profiles.
//
// ID is the record id; UserID is the owning account. The store enforces one
// profile per account (UNIQUE user_id), not this package.
type UserProfile struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Age            int            `json:"age"`
	HeightCm       int            `json:"heightCm"`
	WeightKg       int            `json:"weightKg"`
	Gender         Gender         `json:"gender"`
	ActivityLevel  ActivityLevel  `json:"activityLevel"`
	PrimaryGoal    PrimaryGoal    `json:"primaryGoal"`
	DietPreference DietPreference `json:"dietPreference"`
	Allergies      *string        `json:"allergies"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Input returns the editable fields of p.
func (p *UserProfile) Input() UserProfileInput {
	in := UserProfileInput{
		Age:            p.Age,
		HeightCm:       p.HeightCm,
		WeightKg:       p.WeightKg,
		Gender:         p.Gender,
		ActivityLevel:  p.ActivityLevel,
		PrimaryGoal:    p.PrimaryGoal,
		DietPreference: p.DietPreference,
	}
	if p.Allergies != nil {
		a := *p.Allergies
		in.Allergies = &a
	}
	return in
}

// UserProfileInput is the full editable field set, as submitted by
// onboarding and by create/upsert. All fields except Allergies are required.
type UserProfileInput struct {
	Age            int            `json:"age"            validate:"required,gte=1"`
	HeightCm       int            `json:"heightCm"       validate:"required,gte=1"`
	WeightKg       int            `json:"weightKg"       validate:"required,gte=1"`
	Gender         Gender         `json:"gender"         validate:"required,oneof=male female other"`
	ActivityLevel  ActivityLevel  `json:"activityLevel"  validate:"required,oneof=sedentary lightly-active moderately-active very-active extremely-active"`
	PrimaryGoal    PrimaryGoal    `json:"primaryGoal"    validate:"required,oneof=lose-fat gain-muscle maintain-weight"`
	DietPreference DietPreference `json:"dietPreference" validate:"required,oneof=omnivore vegetarian vegan pescatarian keto paleo"`
	Allergies      *string        `json:"allergies"      validate:"omitempty,max=500"`
}

// Patch converts the full input into a patch that sets every field.
func (in UserProfileInput) Patch() UserProfilePatch {
	p := UserProfilePatch{
		Age:            &in.Age,
		HeightCm:       &in.HeightCm,
		WeightKg:       &in.WeightKg,
		Gender:         &in.Gender,
		ActivityLevel:  &in.ActivityLevel,
		PrimaryGoal:    &in.PrimaryGoal,
		DietPreference: &in.DietPreference,
	}
	if in.Allergies != nil {
		a := *in.Allergies
		p.Allergies = &a
	}
	return p
}

// UserProfilePatch is a partial update. Nil fields are left untouched; only
// non-nil fields are validated and written.
type UserProfilePatch struct {
	Age            *int            `json:"age,omitempty"            validate:"omitempty,gte=1"`
	HeightCm       *int            `json:"heightCm,omitempty"       validate:"omitempty,gte=1"`
	WeightKg       *int            `json:"weightKg,omitempty"       validate:"omitempty,gte=1"`
	Gender         *Gender         `json:"gender,omitempty"         validate:"omitempty,oneof=male female other"`
	ActivityLevel  *ActivityLevel  `json:"activityLevel,omitempty"  validate:"omitempty,oneof=sedentary lightly-active moderately-active very-active extremely-active"`
	PrimaryGoal    *PrimaryGoal    `json:"primaryGoal,omitempty"    validate:"omitempty,oneof=lose-fat gain-muscle maintain-weight"`
	DietPreference *DietPreference `json:"dietPreference,omitempty" validate:"omitempty,oneof=omnivore vegetarian vegan pescatarian keto paleo"`
	Allergies      *string         `json:"allergies,omitempty"      validate:"omitempty,max=500"`
}

// Empty reports whether the patch sets no field at all.
func (p UserProfilePatch) Empty() bool {
	return p.Age == nil && p.HeightCm == nil && p.WeightKg == nil &&
		p.Gender == nil && p.ActivityLevel == nil && p.PrimaryGoal == nil &&
		p.DietPreference == nil && p.Allergies == nil
}

// ApplyTo copies every non-nil field of p onto in.
func (p UserProfilePatch) ApplyTo(in *UserProfileInput) {
	if p.Age != nil {
		in.Age = *p.Age
	}
	if p.HeightCm != nil {
		in.HeightCm = *p.HeightCm
	}
	if p.WeightKg != nil {
		in.WeightKg = *p.WeightKg
	}
	if p.Gender != nil {
		in.Gender = *p.Gender
	}
	if p.ActivityLevel != nil {
		in.ActivityLevel = *p.ActivityLevel
	}
	if p.PrimaryGoal != nil {
		in.PrimaryGoal = *p.PrimaryGoal
	}
	if p.DietPreference != nil {
		in.DietPreference = *p.DietPreference
	}
	if p.Allergies != nil {
		a := *p.Allergies
		in.Allergies = &a
	}
}

// NewValidator returns a validator that reports fields by their JSON names,
// so error messages match what clients sent.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}
