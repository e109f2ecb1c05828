package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Geocoder   GeocoderConfig   `yaml:"geocoder"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Cache      CacheConfig      `yaml:"cache"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// TrackerConfig holds the vehicle location / alert polling configuration.
type TrackerConfig struct {
	Enabled                bool              `yaml:"enabled"`
	VehicleIntervalSeconds int               `yaml:"vehicle_interval_seconds"`
	AlertIntervalSeconds   int               `yaml:"alert_interval_seconds"`
	VehicleInterval        time.Duration     `yaml:"-"` // Ignored by YAML parser
	AlertInterval          time.Duration     `yaml:"-"`
	VehiclesURL            string            `yaml:"vehicles_url"`
	AlertsURL              string            `yaml:"alerts_url"`
	Headers                map[string]string `yaml:"headers"`
	HTTPProxy              string            `yaml:"http_proxy"`
}

// GeocoderConfig points at the external address resolution service.
type GeocoderConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DispatchConfig tunes automatic vehicle assignment.
type DispatchConfig struct {
	Candidates             int     `yaml:"candidates"`
	ServiceDurationMinutes int     `yaml:"service_duration_minutes"`
	AverageSpeedKmh        float64 `yaml:"average_speed_kmh"`
}

// CacheConfig sizes the request read cache.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Tracker.VehicleIntervalSeconds <= 0 {
		cfg.Tracker.VehicleIntervalSeconds = 15
	}
	if cfg.Tracker.AlertIntervalSeconds <= 0 {
		cfg.Tracker.AlertIntervalSeconds = 10
	}
	cfg.Tracker.VehicleInterval = time.Duration(cfg.Tracker.VehicleIntervalSeconds) * time.Second
	cfg.Tracker.AlertInterval = time.Duration(cfg.Tracker.AlertIntervalSeconds) * time.Second

	if cfg.Geocoder.TimeoutSeconds <= 0 {
		cfg.Geocoder.TimeoutSeconds = 10
	}

	if cfg.Dispatch.Candidates <= 0 {
		cfg.Dispatch.Candidates = 3
	}
	if cfg.Dispatch.ServiceDurationMinutes <= 0 {
		cfg.Dispatch.ServiceDurationMinutes = 60
	}
	if cfg.Dispatch.AverageSpeedKmh <= 0 {
		cfg.Dispatch.AverageSpeedKmh = 40
	}

	if cfg.Cache.TTLSeconds <= 0 {
		cfg.Cache.TTLSeconds = 300
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
