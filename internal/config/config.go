package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"isosandbox/internal/logging"
	"isosandbox/pkg/grid"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid config")

// EnvPath names an explicit config file
const EnvPath = "ISOSANDBOX_CONFIG"

// MaxGridAxis bounds the samples per axis. At 64^3 the vertex buffer of one
// geometry slot is 86 MiB, inside the default 128 MiB storage binding limit.
const MaxGridAxis = 64

// Config holds application configuration and feature flags
type Config struct {
	Window   Window   `json:"window" toml:"window"`
	Grid     Grid     `json:"grid" toml:"grid"`
	Field    Field    `json:"field" toml:"field"`
	Extract  Extract  `json:"extract" toml:"extract"`
	Features Features `json:"features" toml:"features"`
	Inspect  Inspect  `json:"inspect" toml:"inspect"`
	Log      Log      `json:"log" toml:"log"`
}

// Window describes the presentation surface
type Window struct {
	Title  string `json:"title" toml:"title"`
	Width  int    `json:"width" toml:"width"`
	Height int    `json:"height" toml:"height"`
	VSync  bool   `json:"vsync" toml:"vsync"`
}

// Grid is the sample resolution of the scalar volume, fixed for the process lifetime
type Grid struct {
	X int `json:"x" toml:"x"`
	Y int `json:"y" toml:"y"`
	Z int `json:"z" toml:"z"`
}

// Field selects the density function and its parameters
type Field struct {
	// Kind is one of the density catalogue names (sphere, torus, gyroid, blobs, waves, constant)
	Kind      string  `json:"kind" toml:"kind"`
	Radius    float64 `json:"radius" toml:"radius"`
	Offset    float64 `json:"offset" toml:"offset"`
	Frequency float64 `json:"frequency" toml:"frequency"`
}

// Extract configures iso-surface extraction
type Extract struct {
	Threshold float64 `json:"threshold" toml:"threshold"`
	// Backend is "gpu" (compute passes) or "cpu"
	Backend string `json:"backend" toml:"backend"`
	// Workers bounds the CPU density goroutines; 0 means one per CPU
	Workers int `json:"workers" toml:"workers"`
}

// Features contains feature flags
type Features struct {
	ShowOverlay bool `json:"show_overlay" toml:"show_overlay"`
	AutoRotate  bool `json:"auto_rotate" toml:"auto_rotate"`
}

// Inspect configures the optional statistics endpoint
type Inspect struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	Addr    string `json:"addr" toml:"addr"`
}

// Log configures the stderr logger
type Log struct {
	Level string `json:"level" toml:"level"`
}

const (
	BackendGPU = "gpu"
	BackendCPU = "cpu"
)

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Window: Window{
			Title:  "isosandbox",
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Grid: Grid{X: 48, Y: 48, Z: 48},
		Field: Field{
			Kind:      "sphere",
			Radius:    0.6,
			Offset:    0,
			Frequency: 2,
		},
		Extract: Extract{
			Threshold: 0,
			Backend:   BackendGPU,
		},
		Features: Features{
			ShowOverlay: true,
			AutoRotate:  true,
		},
		Inspect: Inspect{
			Enabled: false,
			Addr:    "127.0.0.1:7070",
		},
		Log: Log{Level: "info"},
	}
}

// Extent returns the grid resolution as a lattice extent
func (c *Config) Extent() grid.Extent {
	return grid.Extent{X: c.Grid.X, Y: c.Grid.Y, Z: c.Grid.Z}
}

// WorkerCount resolves Extract.Workers
func (c *Config) WorkerCount() int {
	if c.Extract.Workers > 0 {
		return c.Extract.Workers
	}
	return runtime.NumCPU()
}

// Validate rejects configurations the renderer cannot honour
func (c *Config) Validate() error {
	if err := c.Extent().Validate(); err != nil {
		return fmt.Errorf("%w: grid: %w", ErrInvalid, err)
	}
	for _, n := range []int{c.Grid.X, c.Grid.Y, c.Grid.Z} {
		if n > MaxGridAxis {
			return fmt.Errorf("%w: grid axis %d exceeds %d", ErrInvalid, n, MaxGridAxis)
		}
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	switch c.Extract.Backend {
	case BackendGPU, BackendCPU:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Extract.Backend)
	}
	if c.Extract.Workers < 0 {
		return fmt.Errorf("%w: negative worker count", ErrInvalid)
	}
	if c.Field.Frequency <= 0 {
		return fmt.Errorf("%w: field frequency must be positive", ErrInvalid)
	}
	return nil
}

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		instance = discover(candidatePaths())
	})
	return instance
}

// discover decodes the first readable candidate over the defaults. Files that
// exist but fail to parse are logged and skipped.
func discover(paths []string) *Config {
	for _, path := range paths {
		cfg := DefaultConfig()
		err := decodeFile(path, cfg)
		if err == nil {
			return cfg
		}
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Logger().Warn("config file ignored", "path", path, "err", err)
		}
	}
	return DefaultConfig()
}

func candidatePaths() []string {
	if p := os.Getenv(EnvPath); p != "" {
		return []string{p}
	}
	return []string{"config.toml", "config.json"}
}

// Load loads configuration from a file and validates the result
func Load(path string) error {
	cfg := DefaultConfig()
	if err := decodeFile(path, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	Get()
	mu.Lock()
	defer mu.Unlock()
	*instance = *cfg
	return nil
}

// Parse decodes a configuration over the defaults. Format is "json" or "toml".
func Parse(data []byte, format string) (*Config, error) {
	cfg := DefaultConfig()
	if err := decode(data, format, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	format := "json"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	if err := decode(data, format, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func decode(data []byte, format string, cfg *Config) error {
	switch format {
	case "toml":
		return toml.Unmarshal(data, cfg)
	case "json":
		return json.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}

// Snapshot returns a copy of the current configuration
func Snapshot() Config {
	cfg := Get()
	mu.RLock()
	defer mu.RUnlock()
	return *cfg
}
