package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Source.FetchTimeout == 0 {
		cfg.Source.FetchTimeout = 30 * time.Second
	}
	if cfg.Source.MaxAttempts == 0 {
		cfg.Source.MaxAttempts = 5
	}
	if cfg.Buffer.FlushInterval == 0 {
		cfg.Buffer.FlushInterval = 5 * time.Minute
	}
	if cfg.Buffer.MaxBatch == 0 {
		cfg.Buffer.MaxBatch = 25
	}
	if cfg.Consumer.SmallGapThreshold == 0 {
		cfg.Consumer.SmallGapThreshold = 5
	}
	if cfg.GapScan.TopN == 0 {
		cfg.GapScan.TopN = 20
	}
	if cfg.GapScan.StalenessThreshold == 0 {
		cfg.GapScan.StalenessThreshold = 16 * time.Minute
	}
	if cfg.GapScan.GracePeriod == 0 {
		cfg.GapScan.GracePeriod = 30 * time.Minute
	}
	if cfg.Backfill.ChunkSize == 0 {
		cfg.Backfill.ChunkSize = 10000
	}

	return &cfg, nil
}
