package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type config struct {
	HTTPAddr    string `toml:"http_addr"`
	DatabaseURL string `toml:"database_url"`
	DataDir     string `toml:"data_dir"`
	RatesPath   string `toml:"rates_path"`

	BucketMinutes int `toml:"bucket_minutes"`
}

func (c config) bucketWidth() time.Duration {
	return time.Duration(c.BucketMinutes) * time.Minute
}

// loadConfig reads the optional toml file named by METERBILL_CONFIG,
// then lets individual env vars override it. When database_url is empty
// the per-meter local store under data_dir is used instead of postgres.
func loadConfig() config {
	cfg := config{
		HTTPAddr:      ":8080",
		DataDir:       "var/data",
		RatesPath:     "config/rates.yaml",
		BucketMinutes: 5,
	}

	if path := os.Getenv("METERBILL_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			log.Fatalf("config %s: %v", path, err)
		}
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.DataDir = getenvDefault("DATA_DIR", cfg.DataDir)
	cfg.RatesPath = getenvDefault("RATES_PATH", cfg.RatesPath)
	cfg.BucketMinutes = getenvIntDefault("BUCKET_MINUTES", cfg.BucketMinutes)

	if cfg.BucketMinutes <= 0 || 60%cfg.BucketMinutes != 0 {
		log.Fatalf("bucket_minutes must divide an hour, got %d", cfg.BucketMinutes)
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
