package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port                  string `yaml:"port"`
	AllowedOrigin         string `yaml:"allowed_origin"`
	DatabaseURL           string `yaml:"database_url"`
	RedisAddr             string `yaml:"redis_addr"`
	RedisPassword         string `yaml:"redis_password"`
	RedisDB               int    `yaml:"redis_db"`
	AuthSecret            string `yaml:"auth_secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`
	LowStockThreshold     int    `yaml:"low_stock_threshold"`
	RecommendationLimit   int    `yaml:"recommendation_limit"`
	RecommendationTTLSecs int    `yaml:"recommendation_ttl_seconds"`
	StoreName             string `yaml:"store_name"`
	SeedAdminEmail        string `yaml:"seed_admin_email"`
	SeedAdminPassword     string `yaml:"-"`
}

func defaults() Config {
	return Config{
		Port:                  "8080",
		AllowedOrigin:         "http://127.0.0.1:3000",
		AccessTokenTTLMinutes: 480,
		LowStockThreshold:     50,
		RecommendationLimit:   6,
		RecommendationTTLSecs: 20,
		StoreName:             "Metro Storefront",
		SeedAdminEmail:        "admin@metro.local",
	}
}

// Load reads STOREFRONT_CONFIG (YAML) when set, then applies environment overrides.
func Load() Config {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("STOREFRONT_CONFIG")); path != "" {
		fromFile, err := LoadFile(path)
		if err != nil {
			log.Printf("[config] WARN: ignoring %s: %v", path, err)
		} else {
			cfg = fromFile
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.AllowedOrigin = getEnv("ALLOWED_ORIGIN", cfg.AllowedOrigin)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB, 0)
	cfg.AuthSecret = strings.TrimSpace(getEnv("AUTH_SECRET", cfg.AuthSecret))
	cfg.AccessTokenTTLMinutes = getEnvInt("ACCESS_TOKEN_TTL_MINUTES", cfg.AccessTokenTTLMinutes, 1)
	cfg.LowStockThreshold = getEnvInt("LOW_STOCK_THRESHOLD", cfg.LowStockThreshold, 0)
	cfg.RecommendationLimit = getEnvInt("RECOMMENDATION_LIMIT", cfg.RecommendationLimit, 1)
	cfg.RecommendationTTLSecs = getEnvInt("RECOMMENDATION_TTL_SECONDS", cfg.RecommendationTTLSecs, 1)
	cfg.StoreName = getEnv("STORE_NAME", cfg.StoreName)
	cfg.SeedAdminEmail = getEnv("SEED_ADMIN_EMAIL", cfg.SeedAdminEmail)
	cfg.SeedAdminPassword = strings.TrimSpace(os.Getenv("SEED_ADMIN_PASSWORD"))

	return cfg
}

// LoadFile decodes a YAML config on top of the defaults.
func LoadFile(path string) (Config, error) {
	cfg := defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return defaults(), fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int, min int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < min {
		return fallback
	}
	return val
}
