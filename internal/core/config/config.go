package config

import (
	"time"

	redisclient "github.com/terrylica/gapless-network-data/internal/infra/redis"
	"github.com/terrylica/gapless-network-data/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Source   SourceConfig       `yaml:"source"`
	Store    StoreConfig        `yaml:"store"`
	Buffer   BufferConfig       `yaml:"buffer"`
	Consumer ConsumerConfig     `yaml:"consumer"`
	GapScan  GapScanConfig      `yaml:"gapscan"`
	Backfill BackfillConfig     `yaml:"backfill"`
	Redis    redisclient.Config `yaml:"redis"`
	Alerts   AlertConfig        `yaml:"alerts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SourceConfig holds upstream endpoint settings.
type SourceConfig struct {
	WSURL        string        `yaml:"ws_url"`
	RPCURL       string        `yaml:"rpc_url"`
	ArchiveURL   string        `yaml:"archive_url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// StoreConfig holds the primary and optional secondary store settings.
// Secondary is the legacy store kept in sync during migration.
type StoreConfig struct {
	Primary     postgres.Config `yaml:"primary"`
	Secondary   postgres.Config `yaml:"secondary"`
	PrimaryOnly bool            `yaml:"primary_only"`
}

// BufferConfig holds ingest buffering settings.
type BufferConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxBatch      int           `yaml:"max_batch"`
}

// ConsumerConfig holds stream consumer settings.
type ConsumerConfig struct {
	SmallGapThreshold uint64 `yaml:"small_gap_threshold"`
}

// GapScanConfig holds sequence scanner settings.
type GapScanConfig struct {
	TopN               int           `yaml:"top_n"`
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`
	GracePeriod        time.Duration `yaml:"grace_period"`
	Interval           time.Duration `yaml:"interval"` // 0 = run once and exit
}

// BackfillConfig holds archive backfill settings.
type BackfillConfig struct {
	ChunkSize uint64 `yaml:"chunk_size"`
}

// AlertConfig holds notification settings. Empty values disable the
// corresponding sink.
type AlertConfig struct {
	PushoverToken   string `yaml:"pushover_token"`
	PushoverUser    string `yaml:"pushover_user"`
	HealthchecksURL string `yaml:"healthchecks_url"`
}
