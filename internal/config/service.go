// Package config loads the service configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/risk.report/internal/features"
	"github.com/banshee-data/risk.report/internal/timeutil"
)

// Sink names accepted by the sink setting.
const (
	SinkCSV    = "csv"
	SinkSQLite = "sqlite"
	SinkRedis  = "redis"
)

// Defaults applied when a setting is absent.
const (
	DefaultListen          = ":8080"
	DefaultArtifactsDir    = "artifacts"
	DefaultLogPath         = "predictions_log.csv"
	DefaultDBPath          = "predictions.db"
	DefaultRedisKey        = "risk:predictions"
	DefaultRedisChannel    = "risk:predictions"
	DefaultHistoryLimit    = 10
	DefaultPreviewLimit    = 10
	DefaultWriteBuffer     = 64
	DefaultShutdownTimeout = 10 * time.Second
)

// ServiceConfig is the optional JSON config file. Every field is a pointer
// so an omitted setting falls back to its Get* default and command-line
// flags can tell "unset" from "zero".
type ServiceConfig struct {
	Listen       *string `json:"listen,omitempty"`
	ArtifactsDir *string `json:"artifacts_dir,omitempty"`

	// Prediction log
	Sink         *string `json:"sink,omitempty"` // csv, sqlite or redis
	LogPath      *string `json:"log_path,omitempty"`
	DBPath       *string `json:"db_path,omitempty"`
	RedisURL     *string `json:"redis_url,omitempty"`
	RedisKey     *string `json:"redis_key,omitempty"`
	RedisChannel *string `json:"redis_channel,omitempty"`
	WriteBuffer  *int    `json:"write_buffer,omitempty"`

	// Inference and views
	Encoding     *string `json:"encoding,omitempty"` // full_domain or single_row
	HistoryLimit *int    `json:"history_limit,omitempty"`
	PreviewLimit *int    `json:"preview_limit,omitempty"`

	// Timezone for log timestamps, a tz database name; empty means the
	// host's local zone.
	Timezone *string `json:"timezone,omitempty"`

	ShutdownTimeout *string `json:"shutdown_timeout,omitempty"` // duration string like "10s"
}

// LoadServiceConfig reads a .json config of at most 1MB and validates it.
// Omitted fields keep their defaults.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ServiceConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that are present.
func (c *ServiceConfig) Validate() error {
	switch c.GetSink() {
	case SinkCSV, SinkSQLite:
	case SinkRedis:
		if c.GetRedisURL() == "" {
			return fmt.Errorf("sink %q requires redis_url", SinkRedis)
		}
	default:
		return fmt.Errorf("sink must be one of csv, sqlite, redis, got %q", c.GetSink())
	}

	if c.Encoding != nil {
		if _, err := features.ParseEncodingMode(*c.Encoding); err != nil {
			return err
		}
	}
	if c.HistoryLimit != nil && *c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be positive, got %d", *c.HistoryLimit)
	}
	if c.PreviewLimit != nil && *c.PreviewLimit < 1 {
		return fmt.Errorf("preview_limit must be positive, got %d", *c.PreviewLimit)
	}
	if c.WriteBuffer != nil && *c.WriteBuffer < 0 {
		return fmt.Errorf("write_buffer must be non-negative, got %d", *c.WriteBuffer)
	}
	if c.Timezone != nil {
		if _, err := timeutil.LoadZone(*c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}
	if c.ShutdownTimeout != nil && *c.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(*c.ShutdownTimeout); err != nil {
			return fmt.Errorf("invalid shutdown_timeout '%s': %w", *c.ShutdownTimeout, err)
		}
	}
	return nil
}

func str(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func num(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// GetListen returns the HTTP listen address.
func (c *ServiceConfig) GetListen() string { return str(c.Listen, DefaultListen) }

// GetArtifactsDir returns the model artifact directory.
func (c *ServiceConfig) GetArtifactsDir() string { return str(c.ArtifactsDir, DefaultArtifactsDir) }

// GetSink returns the configured sink name.
func (c *ServiceConfig) GetSink() string { return str(c.Sink, SinkCSV) }

// GetLogPath returns the CSV log path.
func (c *ServiceConfig) GetLogPath() string { return str(c.LogPath, DefaultLogPath) }

// GetDBPath returns the SQLite database path.
func (c *ServiceConfig) GetDBPath() string { return str(c.DBPath, DefaultDBPath) }

// GetRedisURL returns the Redis URL, empty if unset.
func (c *ServiceConfig) GetRedisURL() string { return str(c.RedisURL, "") }

// GetRedisKey returns the Redis list key.
func (c *ServiceConfig) GetRedisKey() string { return str(c.RedisKey, DefaultRedisKey) }

// GetRedisChannel returns the Redis publish channel.
func (c *ServiceConfig) GetRedisChannel() string { return str(c.RedisChannel, DefaultRedisChannel) }

// GetWriteBuffer returns the log writer queue length.
func (c *ServiceConfig) GetWriteBuffer() int { return num(c.WriteBuffer, DefaultWriteBuffer) }

// GetHistoryLimit returns how many predictions the history chart shows.
func (c *ServiceConfig) GetHistoryLimit() int { return num(c.HistoryLimit, DefaultHistoryLimit) }

// GetPreviewLimit returns how many rows the result page previews.
func (c *ServiceConfig) GetPreviewLimit() int { return num(c.PreviewLimit, DefaultPreviewLimit) }

// GetEncoding returns the encoding mode, falling back to full-domain on an
// unset or unparseable value.
func (c *ServiceConfig) GetEncoding() features.EncodingMode {
	if c.Encoding == nil {
		return features.EncodeFullDomain
	}
	mode, err := features.ParseEncodingMode(*c.Encoding)
	if err != nil {
		return features.EncodeFullDomain
	}
	return mode
}

// GetTimezone loads the configured zone, falling back to time.Local.
func (c *ServiceConfig) GetTimezone() *time.Location {
	loc, err := timeutil.LoadZone(str(c.Timezone, ""))
	if err != nil {
		return time.Local
	}
	return loc
}

// GetShutdownTimeout parses ShutdownTimeout.
func (c *ServiceConfig) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == nil || *c.ShutdownTimeout == "" {
		return DefaultShutdownTimeout
	}
	d, err := time.ParseDuration(*c.ShutdownTimeout)
	if err != nil {
		return DefaultShutdownTimeout
	}
	return d
}
