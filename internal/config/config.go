// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for raw/processed data and databases (always absolute)
	ReportsDir string // Output directory for tables and figures (always absolute)
	StudyPath  string // Path to the YAML study file
	LogLevel   string
	Port       int // Artifact server port
	DevMode    bool

	// Optional source files imported by the fetch stage
	RatesSourcePath  string
	EquitySourcePath string

	Archive *ArchiveConfig
}

// ArchiveConfig holds settings for offsite archive uploads.
// Uploads are disabled unless Bucket is set.
type ArchiveConfig struct {
	Bucket    string
	Endpoint  string // S3-compatible endpoint override (empty = AWS)
	Region    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether archive uploads are configured.
func (a *ArchiveConfig) Enabled() bool {
	return a != nil && a.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("RATELENS_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	reportsDir := getEnv("RATELENS_REPORTS_DIR", "reports")
	absReportsDir, err := filepath.Abs(reportsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reports directory path: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		ReportsDir:       absReportsDir,
		StudyPath:        getEnv("RATELENS_STUDY", "study.yaml"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Port:             getEnvAsInt("RATELENS_PORT", 8080),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		RatesSourcePath:  getEnv("RATES_SOURCE_PATH", ""),
		EquitySourcePath: getEnv("EQUITY_SOURCE_PATH", ""),
		Archive: &ArchiveConfig{
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			Region:    getEnv("ARCHIVE_REGION", "auto"),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
		},
	}

	return cfg, nil
}

// RawDir returns the directory holding user-supplied input files.
func (c *Config) RawDir() string {
	return filepath.Join(c.DataDir, "raw")
}

// ProcessedDir returns the directory holding built datasets.
func (c *Config) ProcessedDir() string {
	return filepath.Join(c.DataDir, "processed")
}

// HistoryDBPath returns the path of the series history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// ResultsDBPath returns the path of the regression results database.
func (c *Config) ResultsDBPath() string {
	return filepath.Join(c.DataDir, "results.db")
}

// TablesDir returns the directory for report tables.
func (c *Config) TablesDir() string {
	return filepath.Join(c.ReportsDir, "tables")
}

// FiguresDir returns the directory for report figures.
func (c *Config) FiguresDir() string {
	return filepath.Join(c.ReportsDir, "figures")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
