package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Port          string
	WorkerCount   int
	SessionTTL    time.Duration
	SweepInterval time.Duration
	DragThreshold float64
	CORSOrigins   []string
	LogLevel      string
}

// fileConfig - формат TOML файла, длительности записываются строкой ("90m")
type fileConfig struct {
	Port          *string  `toml:"port"`
	WorkerCount   *int     `toml:"worker_count"`
	SessionTTL    *string  `toml:"session_ttl"`
	SweepInterval *string  `toml:"sweep_interval"`
	DragThreshold *float64 `toml:"drag_threshold"`
	CORSOrigins   []string `toml:"cors_origins"`
	LogLevel      *string  `toml:"log_level"`
}

func Default() Config {
	return Config{
		Port:          "8080",
		WorkerCount:   3,
		SessionTTL:    2 * time.Hour,
		SweepInterval: time.Minute,
		DragThreshold: 3,
		CORSOrigins:   []string{"*"},
		LogLevel:      "info",
	}
}

// Load собирает конфиг: значения по умолчанию, затем файл (если указан), затем переменные окружения
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.WorkerCount = getEnvInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.DragThreshold = getEnvFloat("DRAG_THRESHOLD", cfg.DragThreshold)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	return cfg, cfg.validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if f.Port != nil {
		c.Port = *f.Port
	}
	if f.WorkerCount != nil {
		c.WorkerCount = *f.WorkerCount
	}
	if f.DragThreshold != nil {
		c.DragThreshold = *f.DragThreshold
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.CORSOrigins != nil {
		c.CORSOrigins = f.CORSOrigins
	}
	if f.SessionTTL != nil {
		if c.SessionTTL, err = time.ParseDuration(*f.SessionTTL); err != nil {
			return fmt.Errorf("parse session_ttl: %w", err)
		}
	}
	if f.SweepInterval != nil {
		if c.SweepInterval, err = time.ParseDuration(*f.SweepInterval); err != nil {
			return fmt.Errorf("parse sweep_interval: %w", err)
		}
	}
	return nil
}

// TOML кодирует конфиг в формат файла конфигурации
func (c Config) TOML() ([]byte, error) {
	ttl, sweep := c.SessionTTL.String(), c.SweepInterval.String()
	return toml.Marshal(fileConfig{
		Port:          &c.Port,
		WorkerCount:   &c.WorkerCount,
		SessionTTL:    &ttl,
		SweepInterval: &sweep,
		DragThreshold: &c.DragThreshold,
		CORSOrigins:   c.CORSOrigins,
		LogLevel:      &c.LogLevel,
	})
}

func (c Config) validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be positive, got %d", c.WorkerCount)
	}
	if c.SessionTTL <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("session_ttl and sweep_interval must be positive")
	}
	if c.DragThreshold < 0 {
		return fmt.Errorf("drag_threshold must not be negative")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
