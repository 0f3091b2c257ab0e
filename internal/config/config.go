package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// DefaultConfigPath is read by Get when IDBADGE_CONFIG is not set
const DefaultConfigPath = "config.yaml"

// Config is the complete application configuration
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Capture    CaptureConfig    `yaml:"capture"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Store      StoreConfig      `yaml:"store"`
	Server     ServerConfig     `yaml:"server"`
	Watch      WatchConfig      `yaml:"watch"`
	ScanAreas  []string         `yaml:"scan_areas"`
}

// CaptureConfig tunes the live capture loop and the frame evaluator
type CaptureConfig struct {
	// UpdateInterval is the evaluation tick in seconds (one frame per tick)
	UpdateInterval float64 `yaml:"update_interval"`
	DisplayIndex   int     `yaml:"display_index"`
	// Region restricts screen capture; zero width or height means the full display
	Region Region `yaml:"region"`

	MinLuminance    float64 `yaml:"min_luminance"`
	MaxLuminance    float64 `yaml:"max_luminance"`
	NoiseThreshold  float64 `yaml:"noise_threshold"`
	StabilityTarget int     `yaml:"stability_target"`
	PresenceStride  int     `yaml:"presence_stride"`
	DiffStride      int     `yaml:"diff_stride"`
}

// Region is a capture rectangle in display coordinates
type Region struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RecognizerConfig configures the Tesseract engine
type RecognizerConfig struct {
	Languages      []string          `yaml:"languages"`
	PageSegMode    int               `yaml:"page_seg_mode"`
	Whitelist      string            `yaml:"whitelist"`
	TessdataPrefix string            `yaml:"tessdata_prefix"`
	Variables      map[string]string `yaml:"variables"`
	// MaxDimension downscales larger photos before normalization; 0 disables
	MaxDimension int `yaml:"max_dimension"`
}

// StoreConfig selects and configures the scan history back-end
type StoreConfig struct {
	Driver      string `yaml:"driver"` // file, memory, redis or postgres
	DataDir     string `yaml:"data_dir"`
	RedisURL    string `yaml:"redis_url"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Listen         string `yaml:"listen"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// WatchConfig configures the inbox directory watcher
type WatchConfig struct {
	Dir      string  `yaml:"dir"`
	Area     string  `yaml:"area"`
	Debounce float64 `yaml:"debounce"` // seconds
}

// DefaultScanAreas are the checkpoints an operator can scan at
var DefaultScanAreas = []string{
	"Terminal 1 - Keberangkatan",
	"Terminal 1 - Kedatangan",
	"Terminal 2 - Keberangkatan",
	"Terminal 2 - Kedatangan",
	"Terminal 3 - Internasional",
	"Area Kargo",
	"Sisi Udara (Airside)",
}

// Default returns the built-in configuration tuned for the badge template family
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Capture: CaptureConfig{
			UpdateInterval:  1.0 / 30.0,
			MinLuminance:    100,
			MaxLuminance:    240,
			NoiseThreshold:  5,
			StabilityTarget: 15,
			PresenceStride:  2,
			DiffStride:      10,
		},
		Recognizer: RecognizerConfig{
			Languages:   []string{"eng"},
			PageSegMode: 4,
			Whitelist:   "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789. -",
		},
		Store: StoreConfig{
			Driver: "file",
		},
		Server: ServerConfig{
			Listen:         ":8081",
			MaxUploadBytes: 16 << 20,
		},
		Watch: WatchConfig{
			Debounce: 0.3,
		},
		ScanAreas: append([]string(nil), DefaultScanAreas...),
	}
}

// Validate rejects inconsistent values
func (c *Config) Validate() error {
	cp := c.Capture
	if cp.UpdateInterval <= 0 {
		return fmt.Errorf("capture.update_interval must be positive, got %v", cp.UpdateInterval)
	}
	if cp.MinLuminance >= cp.MaxLuminance {
		return fmt.Errorf("capture.min_luminance (%v) must be below capture.max_luminance (%v)", cp.MinLuminance, cp.MaxLuminance)
	}
	if cp.StabilityTarget < 1 {
		return fmt.Errorf("capture.stability_target must be at least 1, got %d", cp.StabilityTarget)
	}
	if cp.PresenceStride < 1 || cp.DiffStride < 1 {
		return fmt.Errorf("capture strides must be at least 1")
	}
	if len(c.Recognizer.Languages) == 0 {
		return fmt.Errorf("recognizer.languages must not be empty")
	}
	if c.Recognizer.MaxDimension < 0 {
		return fmt.Errorf("recognizer.max_dimension must not be negative")
	}
	switch c.Store.Driver {
	case "file", "memory":
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis driver")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if len(c.ScanAreas) == 0 {
		return fmt.Errorf("scan_areas must not be empty")
	}
	return nil
}

// HasScanArea reports whether area is one of the configured scan areas
func (c *Config) HasScanArea(area string) bool {
	for _, a := range c.ScanAreas {
		if a == area {
			return true
		}
	}
	return false
}

// applyEnv overrides file values with IDBADGE_* environment variables
func (c *Config) applyEnv() {
	if v := os.Getenv("IDBADGE_STORE"); v != "" {
		c.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("IDBADGE_DATA_DIR"); v != "" {
		c.Store.DataDir = v
	}
	if v := os.Getenv("IDBADGE_REDIS_URL"); v != "" {
		c.Store.RedisURL = v
	}
	if v := os.Getenv("IDBADGE_POSTGRES_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("IDBADGE_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("IDBADGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("IDBADGE_TESSDATA_PREFIX"); v != "" {
		c.Recognizer.TessdataPrefix = v
	}
}

var (
	current   *Config
	currentMu sync.Mutex
)

// Get returns the process-wide configuration, loading it on first use.
// The file named by IDBADGE_CONFIG (or config.yaml) is optional.
func Get() (*Config, error) {
	currentMu.Lock()
	defer currentMu.Unlock()

	if current != nil {
		return current, nil
	}

	path := os.Getenv("IDBADGE_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	cfg, err := Load(path)
	if err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = Default()
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	current = cfg
	return current, nil
}

// Set replaces the process-wide configuration
func Set(cfg *Config) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = cfg
}
