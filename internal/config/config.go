// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first if present. Variables
// already set in the real environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sakif/fitai/internal/model"
)

// Config holds every configurable value for the server.
type Config struct {
	Port   int
	DBPath string

	JWTSecret          string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	// AllowedOrigins is checked on websocket upgrades. "*" allows any.
	AllowedOrigins []string

	LogLevel slog.Level

	Targets            model.DailyTargets
	WaterTargetGlasses int
}

// Load reads .env (optional) and the environment. A malformed number or log
// level is an error; missing values fall back to defaults.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var errs []error
	port := getInt("PORT", 8080, &errs)

	cfg := &Config{
		Port:               port,
		DBPath:             getEnv("DB_PATH", "data/fitai.db"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubCallbackURL:  getEnv("GITHUB_CALLBACK_URL", fmt.Sprintf("http://localhost:%d/auth/github/callback", port)),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "*")),
		Targets: model.DailyTargets{
			Calories: getFloat("TARGET_CALORIES", 2500, &errs),
			Protein:  getFloat("TARGET_PROTEIN", 150, &errs),
			Carbs:    getFloat("TARGET_CARBS", 300, &errs),
			Fats:     getFloat("TARGET_FATS", 80, &errs),
		},
		WaterTargetGlasses: getInt("WATER_TARGET_GLASSES", 8, &errs),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d is out of range", cfg.Port))
	}
	for _, n := range model.Nutrients() {
		if !(cfg.Targets.Get(n) > 0) {
			errs = append(errs, fmt.Errorf("TARGET_%s: must be greater than zero", strings.ToUpper(string(n))))
		}
	}
	if cfg.WaterTargetGlasses < 1 {
		errs = append(errs, fmt.Errorf("WATER_TARGET_GLASSES: must be at least 1"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// AuthEnabled reports whether a signing secret was configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a whole number", key, raw))
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64, errs *[]error) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a number", key, raw))
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
