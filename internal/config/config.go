package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// CORSOrigins lists allowed browser origins; empty allows all.
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Auth struct {
		Secret string `yaml:"secret"`
	} `yaml:"auth"`
	Certificates struct {
		VerifyBaseURL string `yaml:"verifyBaseUrl"`
	} `yaml:"certificates"`
	RateLimit struct {
		VerifyPerMinute int `yaml:"verifyPerMinute"`
	} `yaml:"rateLimit"`
	Lock struct {
		TTL string `yaml:"ttl"`
	} `yaml:"lock"`
	Enrollment struct {
		BulkConcurrency int `yaml:"bulkConcurrency"`
	} `yaml:"enrollment"`
	Worker struct {
		InviteExpirySchedule string `yaml:"inviteExpirySchedule"`
	} `yaml:"worker"`
	// SeedDemo loads the demo catalog on start.
	SeedDemo bool `yaml:"seedDemo"`
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error; the service then runs on env and defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Postgres.URL, "DATABASE_URL")
	setString(&cfg.Auth.Secret, "JWT_SECRET")
	setString(&cfg.Certificates.VerifyBaseURL, "CERTIFICATE_VERIFY_BASE_URL")
	setString(&cfg.Worker.InviteExpirySchedule, "INVITE_EXPIRY_SCHEDULE")
	if v := os.Getenv("VERIFY_RATE_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.VerifyPerMinute = n
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
