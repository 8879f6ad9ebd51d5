package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/ini.v1"

	"github.com/rescale/interlink-transfers/internal/constants"
)

// Display modes.
const (
	DisplayBars    = "bars"    // One bar per transfer
	DisplaySummary = "summary" // A single aggregate bar
)

// SimConfig is the simulator configuration.
//
// Config file location:
//   - Windows: %APPDATA%\Rescale\Interlink\transfers.conf
//   - Unix: ~/.config/rescale/transfers.conf
//
// INI format:
//
//	[engine]
//	chunk_size = 256000
//	poll_interval_ms = 100
//	rate_bytes_per_sec = 4000000
//	total_rate_bytes_per_sec = 0
//	max_concurrent = 0
//
//	[display]
//	locale = en
//	refresh_ms = 250
//	mode = bars
//
//	[simulation]
//	uploads = 3
//	downloads = 2
//	min_size = 1000000
//	max_size = 50000000
//	failure_rate = 0
type SimConfig struct {
	Engine     EngineConfig
	Display    DisplayConfig
	Simulation SimulationConfig
}

// EngineConfig paces the simulated transfers.
type EngineConfig struct {
	// ChunkSize is the number of bytes moved between two state polls.
	ChunkSize uint64 `ini:"chunk_size"`

	// PollIntervalMs is how long a paused transfer sleeps between polls.
	// Minimum: 1, Maximum: 10000
	PollIntervalMs int `ini:"poll_interval_ms"`

	// RateBytesPerSec throttles each transfer. 0 disables throttling.
	RateBytesPerSec uint64 `ini:"rate_bytes_per_sec"`

	// TotalRateBytesPerSec caps all transfers together. 0 disables the cap.
	TotalRateBytesPerSec uint64 `ini:"total_rate_bytes_per_sec"`

	// MaxConcurrent bounds how many transfers run at once. 0 runs them all.
	// Minimum: 0, Maximum: 200
	MaxConcurrent int `ini:"max_concurrent"`
}

// DisplayConfig controls rendering.
type DisplayConfig struct {
	// Locale selects the message catalog (BCP 47 tag).
	Locale string `ini:"locale"`

	// RefreshMs is the redraw interval.
	// Minimum: 50, Maximum: 10000
	RefreshMs int `ini:"refresh_ms"`

	// Mode is "bars" or "summary".
	Mode string `ini:"mode"`
}

// SimulationConfig describes the generated workload.
type SimulationConfig struct {
	Uploads   int    `ini:"uploads"`
	Downloads int    `ini:"downloads"`
	MinSize   uint64 `ini:"min_size"`
	MaxSize   uint64 `ini:"max_size"`

	// FailureRate is the probability that a transfer fails part way.
	FailureRate float64 `ini:"failure_rate"`
}

// SimConfig validation errors
var (
	ErrInvalidChunkSize     = errors.New("chunk_size must be greater than 0")
	ErrInvalidPollInterval  = errors.New("poll_interval_ms must be between 1 and 10000")
	ErrInvalidConcurrency   = errors.New("max_concurrent must be between 0 and 200")
	ErrInvalidRefresh       = errors.New("refresh_ms must be between 50 and 10000")
	ErrInvalidDisplayMode   = errors.New("mode must be \"bars\" or \"summary\"")
	ErrInvalidLocale        = errors.New("locale is not a valid language tag")
	ErrInvalidTransferCount = errors.New("uploads and downloads must be between 0 and 100, with at least one transfer")
	ErrInvalidSizeRange     = errors.New("min_size must be greater than 0 and not exceed max_size")
	ErrInvalidFailureRate   = errors.New("failure_rate must be between 0 and 1")
)

// NewSimConfig creates a SimConfig with default values.
func NewSimConfig() *SimConfig {
	return &SimConfig{
		Engine: EngineConfig{
			ChunkSize:       constants.DefaultChunkSize,
			PollIntervalMs:  int(constants.DefaultPollInterval / time.Millisecond),
			RateBytesPerSec: constants.DefaultRateBytesPerSec,
		},
		Display: DisplayConfig{
			Locale:    constants.DefaultLocale,
			RefreshMs: int(constants.ProgressUpdateInterval / time.Millisecond),
			Mode:      DisplayBars,
		},
		Simulation: SimulationConfig{
			Uploads:     constants.DefaultSimUploads,
			Downloads:   constants.DefaultSimDownloads,
			MinSize:     constants.DefaultSimMinSize,
			MaxSize:     constants.DefaultSimMaxSize,
			FailureRate: 0,
		},
	}
}

// LoadSimConfig loads configuration from transfers.conf.
// If path is empty, uses the default path.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but cannot be parsed, returns an error.
// Values are not validated; call Validate.
func LoadSimConfig(path string) (*SimConfig, error) {
	cfg := NewSimConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", ConfigFileName, err)
	}

	engineSection := iniFile.Section("engine")
	cfg.Engine.ChunkSize = engineSection.Key("chunk_size").MustUint64(cfg.Engine.ChunkSize)
	cfg.Engine.PollIntervalMs = engineSection.Key("poll_interval_ms").MustInt(cfg.Engine.PollIntervalMs)
	cfg.Engine.RateBytesPerSec = engineSection.Key("rate_bytes_per_sec").MustUint64(cfg.Engine.RateBytesPerSec)
	cfg.Engine.TotalRateBytesPerSec = engineSection.Key("total_rate_bytes_per_sec").MustUint64(cfg.Engine.TotalRateBytesPerSec)
	cfg.Engine.MaxConcurrent = engineSection.Key("max_concurrent").MustInt(cfg.Engine.MaxConcurrent)

	displaySection := iniFile.Section("display")
	cfg.Display.Locale = displaySection.Key("locale").MustString(cfg.Display.Locale)
	cfg.Display.RefreshMs = displaySection.Key("refresh_ms").MustInt(cfg.Display.RefreshMs)
	cfg.Display.Mode = displaySection.Key("mode").MustString(cfg.Display.Mode)

	simSection := iniFile.Section("simulation")
	cfg.Simulation.Uploads = simSection.Key("uploads").MustInt(cfg.Simulation.Uploads)
	cfg.Simulation.Downloads = simSection.Key("downloads").MustInt(cfg.Simulation.Downloads)
	cfg.Simulation.MinSize = simSection.Key("min_size").MustUint64(cfg.Simulation.MinSize)
	cfg.Simulation.MaxSize = simSection.Key("max_size").MustUint64(cfg.Simulation.MaxSize)
	cfg.Simulation.FailureRate = simSection.Key("failure_rate").MustFloat64(cfg.Simulation.FailureRate)

	return cfg, nil
}

// SaveSimConfig saves configuration to transfers.conf.
// If path is empty, uses the default path.
// Creates parent directories if they don't exist.
func SaveSimConfig(cfg *SimConfig, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	engineSection, err := iniFile.NewSection("engine")
	if err != nil {
		return fmt.Errorf("failed to create engine section: %w", err)
	}
	engineSection.Key("chunk_size").SetValue(strconv.FormatUint(cfg.Engine.ChunkSize, 10))
	engineSection.Key("poll_interval_ms").SetValue(strconv.Itoa(cfg.Engine.PollIntervalMs))
	engineSection.Key("rate_bytes_per_sec").SetValue(strconv.FormatUint(cfg.Engine.RateBytesPerSec, 10))
	engineSection.Key("total_rate_bytes_per_sec").SetValue(strconv.FormatUint(cfg.Engine.TotalRateBytesPerSec, 10))
	engineSection.Key("max_concurrent").SetValue(strconv.Itoa(cfg.Engine.MaxConcurrent))

	displaySection, err := iniFile.NewSection("display")
	if err != nil {
		return fmt.Errorf("failed to create display section: %w", err)
	}
	displaySection.Key("locale").SetValue(cfg.Display.Locale)
	displaySection.Key("refresh_ms").SetValue(strconv.Itoa(cfg.Display.RefreshMs))
	displaySection.Key("mode").SetValue(cfg.Display.Mode)

	simSection, err := iniFile.NewSection("simulation")
	if err != nil {
		return fmt.Errorf("failed to create simulation section: %w", err)
	}
	simSection.Key("uploads").SetValue(strconv.Itoa(cfg.Simulation.Uploads))
	simSection.Key("downloads").SetValue(strconv.Itoa(cfg.Simulation.Downloads))
	simSection.Key("min_size").SetValue(strconv.FormatUint(cfg.Simulation.MinSize, 10))
	simSection.Key("max_size").SetValue(strconv.FormatUint(cfg.Simulation.MaxSize, 10))
	simSection.Key("failure_rate").SetValue(strconv.FormatFloat(cfg.Simulation.FailureRate, 'g', -1, 64))

	// Temporary file + rename so a crash never leaves a half-written config.
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is usable.
// Returns nil if valid, or the first sentinel error found.
func (cfg *SimConfig) Validate() error {
	if cfg.Engine.ChunkSize == 0 {
		return ErrInvalidChunkSize
	}
	if cfg.Engine.PollIntervalMs < 1 || cfg.Engine.PollIntervalMs > 10000 {
		return ErrInvalidPollInterval
	}
	if cfg.Engine.MaxConcurrent < 0 || cfg.Engine.MaxConcurrent > 200 {
		return ErrInvalidConcurrency
	}

	if cfg.Display.RefreshMs < int(constants.MinRefreshInterval/time.Millisecond) || cfg.Display.RefreshMs > 10000 {
		return ErrInvalidRefresh
	}
	if cfg.Display.Mode != DisplayBars && cfg.Display.Mode != DisplaySummary {
		return ErrInvalidDisplayMode
	}
	if _, err := language.Parse(cfg.Display.Locale); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLocale, cfg.Display.Locale)
	}

	sim := cfg.Simulation
	if sim.Uploads < 0 || sim.Uploads > 100 || sim.Downloads < 0 || sim.Downloads > 100 || sim.Uploads+sim.Downloads == 0 {
		return ErrInvalidTransferCount
	}
	if sim.MinSize == 0 || sim.MinSize > sim.MaxSize {
		return ErrInvalidSizeRange
	}
	if math.IsNaN(sim.FailureRate) || sim.FailureRate < 0 || sim.FailureRate > 1 {
		return ErrInvalidFailureRate
	}

	return nil
}

// PollInterval returns the engine poll interval as a duration.
func (cfg *SimConfig) PollInterval() time.Duration {
	return time.Duration(cfg.Engine.PollIntervalMs) * time.Millisecond
}

// RefreshInterval returns the display refresh interval as a duration.
func (cfg *SimConfig) RefreshInterval() time.Duration {
	return time.Duration(cfg.Display.RefreshMs) * time.Millisecond
}
