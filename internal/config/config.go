package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL          string
	MigrationsDir        string
	AutoMigrate          bool
	DefaultStudentSecret string
	MaxWorkbookBytes     int64
}

func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MigrationsDir:        getEnv("MIGRATIONS_DIR", "./migrations"),
		AutoMigrate:          getBoolEnv("AUTO_MIGRATE", true),
		DefaultStudentSecret: getEnv("DEFAULT_STUDENT_PASSWORD", "student123"),
		MaxWorkbookBytes:     int64(getIntEnv("MAX_WORKBOOK_BYTES", 20*1024*1024)),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.MaxWorkbookBytes <= 0 {
		cfg.MaxWorkbookBytes = 20 * 1024 * 1024
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getBoolEnv(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getIntEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
