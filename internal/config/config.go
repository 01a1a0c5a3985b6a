// Package config resolves hydra's process configuration from the
// environment. Every bridge process is configured through HYDRA_* variables
// so a supervisor can launch many of them without argument plumbing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names recognized by the bridge and pool commands.
const (
	EnvProfileDir     = "HYDRA_PROFILE_DIR"
	EnvHeadless       = "HYDRA_HEADLESS"
	EnvProxy          = "HYDRA_PROXY"
	EnvWindowSize     = "HYDRA_WINDOW_SIZE"
	EnvWindowPosition = "HYDRA_WINDOW_POSITION"
	EnvPoolDir        = "HYDRA_POOL_DIR"
	EnvReplicas       = "HYDRA_REPLICAS"
)

// Defaults applied when the environment is silent.
const (
	DefaultWindowWidth  = 1280
	DefaultWindowHeight = 720
	DefaultReplicas     = 9
)

// WindowSize is a browser window geometry.
type WindowSize struct {
	Width  int
	Height int
}

// WindowPosition is a browser window screen position.
type WindowPosition struct {
	X int
	Y int
}

// Config is the fully resolved process configuration.
type Config struct {
	ProfileDir     string
	Headless       bool
	Proxy          string
	WindowSize     WindowSize
	WindowPosition *WindowPosition // nil when unset
	PoolDir        string
	Replicas       int
}

// Load resolves configuration from a .env file (if present) and the
// process environment. Environment variables win over the .env file,
// which is godotenv's default behavior.
func Load() (*Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := &Config{
		ProfileDir: os.Getenv(EnvProfileDir),
		Headless:   parseBool(os.Getenv(EnvHeadless)),
		Proxy:      os.Getenv(EnvProxy),
		PoolDir:    os.Getenv(EnvPoolDir),
		Replicas:   DefaultReplicas,
	}

	size, err := ParseWindowSize(os.Getenv(EnvWindowSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvWindowSize, err)
	}
	cfg.WindowSize = size

	if raw := os.Getenv(EnvWindowPosition); raw != "" {
		pos, err := ParseWindowPosition(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvWindowPosition, err)
		}
		cfg.WindowPosition = &pos
	}

	if raw := os.Getenv(EnvReplicas); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%s: invalid replica count %q", EnvReplicas, raw)
		}
		cfg.Replicas = n
	}

	if cfg.PoolDir == "" {
		cfg.PoolDir = DefaultPoolDir()
	}

	return cfg, nil
}

// DefaultPoolDir is the profile-pool root used when HYDRA_POOL_DIR is unset.
func DefaultPoolDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".hydraspecter", "profiles")
	}
	return filepath.Join(home, ".hydraspecter", "profiles")
}

// ParseWindowSize parses "<width>,<height>". Empty input yields the default
// 1280x720 geometry.
func ParseWindowSize(raw string) (WindowSize, error) {
	if raw == "" {
		return WindowSize{Width: DefaultWindowWidth, Height: DefaultWindowHeight}, nil
	}
	w, h, err := parsePair(raw)
	if err != nil {
		return WindowSize{}, err
	}
	if w <= 0 || h <= 0 {
		return WindowSize{}, fmt.Errorf("window size must be positive: %q", raw)
	}
	return WindowSize{Width: w, Height: h}, nil
}

// ParseWindowPosition parses "<x>,<y>". Negative coordinates are allowed
// for multi-monitor setups.
func ParseWindowPosition(raw string) (WindowPosition, error) {
	x, y, err := parsePair(raw)
	if err != nil {
		return WindowPosition{}, err
	}
	return WindowPosition{X: x, Y: y}, nil
}

func parsePair(raw string) (int, int, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected \"<a>,<b>\", got %q", raw)
	}
	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errA != nil || errB != nil {
		return 0, 0, fmt.Errorf("expected \"<a>,<b>\", got %q", raw)
	}
	return a, b, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
