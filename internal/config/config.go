package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	DataDir   string
	OutputDir string
	DocsDir   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Analysis policy.
	DecadeSplitYear   int
	BaselineStartYear int
	BaselineEndYear   int
	VolatilityTopN    int
	HeatmapTopN       int

	// Optional artifacts.
	ChartEnabled    bool
	XLSXEnabled     bool
	MetricsTextfile string

	// SQL trend store; disabled when StoreDSN is empty.
	StoreDriver string
	StoreDSN    string

	KafkaBrokers []string
	KafkaTopic   string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is read first; values
// already present in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s")
	mapboxTimeout, err := time.ParseDuration(mapboxTimeoutStr)
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	cfg := &Config{
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "dataset"),
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "public/data"),
		DocsDir:         sharedcfg.EnvOrDefault("DOCS_DIR", "docs"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
		StoreDriver:     sharedcfg.EnvOrDefault("STORE_DRIVER", "sqlite3"),
		StoreDSN:        os.Getenv("STORE_DSN"),
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "climate-trends"),

		MapboxToken:     os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parsePositiveInt("MAPBOX_CACHE_SIZE", 1000),
	}
	policy := []struct {
		key string
		def int
		dst *int
	}{
		{"DECADE_SPLIT_YEAR", 2010, &cfg.DecadeSplitYear},
		{"BASELINE_START_YEAR", 2000, &cfg.BaselineStartYear},
		{"BASELINE_END_YEAR", 2010, &cfg.BaselineEndYear},
		{"VOLATILITY_TOP_N", 5, &cfg.VolatilityTopN},
		{"HEATMAP_TOP_N", 10, &cfg.HeatmapTopN},
	}
	for _, p := range policy {
		if *p.dst, err = parseInt(p.key, p.def); err != nil {
			return nil, err
		}
	}

	if cfg.ChartEnabled, err = parseBool("CHART_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.XLSXEnabled, err = parseBool("XLSX_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.MapboxEnabled, err = parseBool("MAPBOX_ENABLED", cfg.MapboxToken != ""); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return errors.New("DATA_DIR is required")
	}
	if c.OutputDir == "" {
		return errors.New("OUTPUT_DIR is required")
	}
	if c.DocsDir == "" {
		return errors.New("DOCS_DIR is required")
	}
	if c.VolatilityTopN <= 0 {
		return errors.New("VOLATILITY_TOP_N must be positive")
	}
	if c.HeatmapTopN <= 0 {
		return errors.New("HEATMAP_TOP_N must be positive")
	}
	if c.BaselineStartYear > c.BaselineEndYear {
		return errors.New("BASELINE_START_YEAR must not be after BASELINE_END_YEAR")
	}
	switch c.StoreDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
