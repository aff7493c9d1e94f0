package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything the binaries need to wire the service together.
// Values come from the environment, optionally seeded from a .env file.
type Config struct {
	Port         string
	ProjectID    string
	AppID        string
	GeminiAPIKey string
	GeminiModel  string
	BlobDBPath   string
	JWTSecret    string
	BackupBucket string
}

// Load reads configuration from the environment. When envFile is non-empty
// it is loaded first; a missing file is not an error so deployments without
// one keep working.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}

	cfg := &Config{
		Port:         getenv("PORT", "8080"),
		ProjectID:    os.Getenv("GOOGLE_CLOUD_PROJECT"),
		AppID:        getenv("APP_ID", "irorganiza"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		BlobDBPath:   getenv("BLOB_DB_PATH", "data/attachments.db"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		BackupBucket: os.Getenv("BACKUP_BUCKET"),
	}

	return cfg, nil
}

// Validate checks the fields every server deployment needs. CLI tools that
// only touch a subset of the stack validate the relevant fields themselves.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
