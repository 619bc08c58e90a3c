// Package config loads the knobs a rolling-storage deployment needs:
// where the substrate keeps its blobs, the default rolling policy new
// segments are created with, and the exporter/log-level ambient
// settings every package in this repo shares. Layered as flag
// defaults, then an optional YAML/JSON override file, then an
// explicit-flag override, then Normalize.
package config

import (
	"encoding/json"
	"flag"
	"os"
	"strings"

	"github.com/downfa11-org/rollstore/util"
	"gopkg.in/yaml.v3"
)

// Config is the rolling-storage service's configuration.
type Config struct {
	// SubstrateRoot is the directory fsubstrate roots its blobs under.
	SubstrateRoot string `yaml:"substrate_root" json:"substrate_root"`

	// DefaultMaxSubSegmentLength is the RollingPolicy.MaxSubSegmentLength
	// applied by RollingStore.CreateDefault. Normalize replaces 0 or a
	// negative value with the 1 MiB default.
	DefaultMaxSubSegmentLength int64 `yaml:"default_max_sub_segment_length" json:"default_max_sub_segment_length"`

	EnableExporter bool          `yaml:"enable_exporter" json:"enable_exporter"`
	ExporterPort   int           `yaml:"exporter_port" json:"exporter_port"`
	LogLevel       util.LogLevel `yaml:"log_level" json:"log_level"`
}

// LoadConfig builds a Config from flag defaults, an optional YAML/JSON
// file (via -config or the CONFIG_PATH env var), then explicit
// command-line flags, in that precedence order.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	configPath := flag.String("config", "", "Path to YAML/JSON config file")
	rootStr := flag.String("substrate-root", "rollstore-data", "Directory fsubstrate stores blobs under")
	maxSubSegStr := flag.String("max-sub-segment-length", "1048576", "Default rolling policy max sub-segment length in bytes (default: 1MB)")
	exporterStr := flag.String("exporter", "true", "Enable Prometheus exporter")
	exporterPortStr := flag.String("exporter-port", "9100", "Exporter port")
	logLevelStr := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" && *configPath == "" {
		*configPath = envPath
	}

	flag.Parse()

	applyDefaults(cfg, rootStr, maxSubSegStr, exporterStr, exporterPortStr, logLevelStr)

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(*configPath, ".json") {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyExplicitFlags(cfg, rootStr, maxSubSegStr, exporterStr, exporterPortStr, logLevelStr)

	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func applyDefaults(cfg *Config, rootStr, maxSubSegStr, exporterStr, exporterPortStr, logLevelStr *string) {
	cfg.SubstrateRoot = *rootStr
	cfg.DefaultMaxSubSegmentLength = util.ParseInt64(*maxSubSegStr, 1<<20)
	cfg.EnableExporter = util.ParseBool(*exporterStr, true)
	cfg.ExporterPort = util.ParseInt(*exporterPortStr, 9100)
	cfg.LogLevel = parseLogLevel(*logLevelStr)
}

func applyExplicitFlags(cfg *Config, rootStr, maxSubSegStr, exporterStr, exporterPortStr, logLevelStr *string) {
	if *rootStr != "rollstore-data" {
		cfg.SubstrateRoot = *rootStr
	}
	if *maxSubSegStr != "1048576" {
		cfg.DefaultMaxSubSegmentLength = util.ParseInt64(*maxSubSegStr, cfg.DefaultMaxSubSegmentLength)
	}
	if *exporterStr != "true" {
		cfg.EnableExporter = util.ParseBool(*exporterStr, cfg.EnableExporter)
	}
	if *exporterPortStr != "9100" {
		cfg.ExporterPort = util.ParseInt(*exporterPortStr, cfg.ExporterPort)
	}
	if *logLevelStr != "info" {
		cfg.LogLevel = parseLogLevel(*logLevelStr)
	}
}

func parseLogLevel(s string) util.LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return util.LogLevelDebug
	case "warn", "warning":
		return util.LogLevelWarn
	case "error":
		return util.LogLevelError
	default:
		return util.LogLevelInfo
	}
}

// Normalize fills in defaults for zero-valued or out-of-range fields
// after flags and any config file have been applied.
func (cfg *Config) Normalize() {
	if strings.TrimSpace(cfg.SubstrateRoot) == "" {
		cfg.SubstrateRoot = "rollstore-data"
	}
	if cfg.DefaultMaxSubSegmentLength <= 0 {
		cfg.DefaultMaxSubSegmentLength = 1 << 20
	}
	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9100
	}
}
