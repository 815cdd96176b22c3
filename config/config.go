package config

import (
	"fmt"
	"time"

	"backend/models"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Settings is the environment-driven configuration surface.
type Settings struct {
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:""`
	DBName     string `envconfig:"DB_NAME" default:"nutrition"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`

	// Sliding expiry window for resolved-food cache records.
	CacheTTLDays int `envconfig:"CACHE_TTL_DAYS" default:"30"`
	// Minimum oracle confidence for a result to be admitted to the cache.
	CacheMinConfidence float64 `envconfig:"CACHE_MIN_CONFIDENCE" default:"0.7"`
	// Reserved for promotion tiering; read but not acted on yet.
	CacheMinFrequency int `envconfig:"CACHE_MIN_FREQUENCY" default:"3"`
	// Minimum text-similarity score for an approximate cache hit.
	CacheSimilarityThreshold float64 `envconfig:"CACHE_SIMILARITY_THRESHOLD" default:"0.72"`

	OpenAIAPIKey         string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL        string `envconfig:"OPENAI_BASE_URL" default:""`
	OracleModel          string `envconfig:"ORACLE_MODEL" default:"gpt-4o"`
	OracleTimeoutSeconds int    `envconfig:"ORACLE_TIMEOUT_SECONDS" default:"8"`
}

// Load reads .env when present, then the process environment.
func Load() (*Settings, error) {
	_ = godotenv.Load() // a missing .env file is fine outside dev

	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if s.CacheMinConfidence < 0 || s.CacheMinConfidence > 1 {
		return nil, fmt.Errorf("CACHE_MIN_CONFIDENCE must be in [0,1], got %v", s.CacheMinConfidence)
	}
	if s.CacheTTLDays <= 0 {
		return nil, fmt.Errorf("CACHE_TTL_DAYS must be positive, got %d", s.CacheTTLDays)
	}
	return &s, nil
}

func (s *Settings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLDays) * 24 * time.Hour
}

func (s *Settings) OracleTimeout() time.Duration {
	return time.Duration(s.OracleTimeoutSeconds) * time.Second
}

// InitDB opens the postgres connection and migrates the core schemas.
func InitDB(s *Settings) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		s.DBHost, s.DBUser, s.DBPassword, s.DBName, s.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.FoodCacheRecord{},
		&models.LedgerEntry{},
		&models.LegacyAiAnalysis{},
		&models.LegacyManualMeal{},
	); err != nil {
		return nil, fmt.Errorf("auto-migrating schemas: %w", err)
	}
	return db, nil
}
