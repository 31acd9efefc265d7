package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Detection DetectionConfig `koanf:"detection"`
	Notifier  NotifierConfig  `koanf:"notifier"`
	Ledger    LedgerConfig    `koanf:"ledger"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// DetectionConfig carries the detectors' sensitivity settings and the cycle
// scheduling/resource model.
type DetectionConfig struct {
	Interval      time.Duration `koanf:"interval"`
	FetchTimeout  time.Duration `koanf:"fetch_timeout"`
	CycleBudget   time.Duration `koanf:"cycle_budget"`
	DedupEnabled  bool          `koanf:"dedup_enabled"`
	DedupCooldown time.Duration `koanf:"dedup_cooldown"`

	IsolationTrees          int     `koanf:"isolation_trees"`
	IsolationSampleSize     int     `koanf:"isolation_sample_size"`
	IsolationScoreThreshold float64 `koanf:"isolation_score_threshold"`
	IsolationSeed           int64   `koanf:"isolation_seed"`
	ModifiedZScoreThreshold float64 `koanf:"modified_z_score_threshold"`
	PriceChangeThreshold    float64 `koanf:"price_change_threshold"`
	SentimentWindow         int     `koanf:"sentiment_window"`
	SentimentMinSamples     int     `koanf:"sentiment_min_samples"`
	SentimentDriftThreshold float64 `koanf:"sentiment_drift_threshold"`
	FactorySigma            float64 `koanf:"factory_sigma"`
	FactoryFlatLowFactor    float64 `koanf:"factory_flat_low_factor"`
	FactoryFlatHighFactor   float64 `koanf:"factory_flat_high_factor"`
	TukeyMultiplier         float64 `koanf:"tukey_multiplier"`
	MarketShareSigma        float64 `koanf:"market_share_sigma"`
}

type NotifierConfig struct {
	SMTPHost           string   `koanf:"smtp_host"`
	SMTPPort           int      `koanf:"smtp_port"`
	SMTPUsername       string   `koanf:"smtp_username"`
	SMTPPassword       string   `koanf:"smtp_password"`
	FromAddress        string   `koanf:"from_address"`
	AdminRecipients    []string `koanf:"admin_recipients"`
	CustomerRecipients []string `koanf:"customer_recipients"`

	SendsPerSecond float64       `koanf:"sends_per_second"`
	SendBurst      int           `koanf:"send_burst"`
	SendTimeout    time.Duration `koanf:"send_timeout"`
}

type LedgerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SampleRate   float64 `koanf:"sample_rate"`
	Enabled      bool    `koanf:"enabled"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB: 0,
		},
		Detection: DetectionConfig{
			Interval:                15 * time.Minute,
			FetchTimeout:            10 * time.Second,
			CycleBudget:             2 * time.Minute,
			DedupCooldown:           6 * time.Hour,
			IsolationTrees:          100,
			IsolationSampleSize:     256,
			IsolationScoreThreshold: 0.6,
			IsolationSeed:           42,
			ModifiedZScoreThreshold: 3.5,
			PriceChangeThreshold:    0.35,
			SentimentWindow:         10,
			SentimentMinSamples:     10,
			SentimentDriftThreshold: 0.25,
			FactorySigma:            2.0,
			FactoryFlatLowFactor:    0.9,
			FactoryFlatHighFactor:   1.1,
			TukeyMultiplier:         1.5,
			MarketShareSigma:        2.0,
		},
		Notifier: NotifierConfig{
			SMTPPort:       587,
			SendsPerSecond: 5,
			SendBurst:      10,
			SendTimeout:    15 * time.Second,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "data/audit_chain.json",
		},
		Telemetry: TelemetryConfig{
			SampleRate: 0.1,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Load from config file if exists
	if err := k.Load(file.Provider("configs/config.yaml"), yaml.Parser()); err != nil {
		// Config file is optional, only log if it's not a "file not found" error
	}

	if err := k.Load(env.Provider("SENTINEL_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SENTINEL_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
