// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int   `yaml:"port"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
	ShutdownTimeout int   `yaml:"shutdown_timeout_seconds"`
}

type AdminConfig struct {
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	QueueKey string        `yaml:"queue_key"`
	TTL      time.Duration `yaml:"ttl"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"` // job directories live under <data_dir>/<job_id>/{in,out,tmp}
	Catalog string `yaml:"catalog"`  // path to catalog_map.csv; optional
}

type ConverterConfig struct {
	Kind       string        `yaml:"kind"` // libredwg | oda
	Bin        string        `yaml:"bin"`  // explicit binary path; auto-detected when empty
	DXFVersion string        `yaml:"dxf_version"`
	Timeout    time.Duration `yaml:"timeout"`
}

type WorkerConfig struct {
	Count           int           `yaml:"count"`
	MaxRetries      int           `yaml:"max_retries"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	DequeueTimeout  time.Duration `yaml:"dequeue_timeout"`
	StaleDeadline   time.Duration `yaml:"stale_deadline"`
	RequeueInterval time.Duration `yaml:"requeue_interval"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Admin     AdminConfig     `yaml:"admin"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Converter ConverterConfig `yaml:"converter"`
	Worker    WorkerConfig    `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Storage.DataDir == "" {
		return nil, errors.New("storage.data_dir is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 64 << 20
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 15
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Redis.QueueKey == "" {
		cfg.Redis.QueueKey = "boq:jobs"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Converter.Kind == "" {
		cfg.Converter.Kind = "libredwg"
	}
	if cfg.Converter.DXFVersion == "" {
		cfg.Converter.DXFVersion = "ACAD2018"
	}
	if cfg.Converter.Timeout <= 0 {
		cfg.Converter.Timeout = 5 * time.Minute
	}
	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 4
	}
	if cfg.Worker.MaxRetries <= 0 {
		cfg.Worker.MaxRetries = 2
	}
	if cfg.Worker.BackoffBase <= 0 {
		cfg.Worker.BackoffBase = 2 * time.Second
	}
	if cfg.Worker.DequeueTimeout <= 0 {
		cfg.Worker.DequeueTimeout = 2 * time.Second
	}
	if cfg.Worker.StaleDeadline <= 0 {
		cfg.Worker.StaleDeadline = 15 * time.Minute
	}
	if cfg.Worker.RequeueInterval <= 0 {
		cfg.Worker.RequeueInterval = time.Minute
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
}
