package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"momentkey/internal/discovery"
	"momentkey/internal/logging"
	"momentkey/internal/privacy"
	"momentkey/internal/protocol/moment"
	momentsvc "momentkey/internal/services/moment"
	"momentkey/internal/services/session"
)

// Environment overrides, applied after the config file.
const (
	EnvHome      = "MOMENTKEY_HOME"
	EnvLedgerURL = "MOMENTKEY_LEDGER_URL"
	EnvLogLevel  = "MOMENTKEY_LOG_LEVEL"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home      string `yaml:"home"`       // data directory, e.g. $HOME/.momentkey
	LedgerURL string `yaml:"ledger_url"` // empty means an in-process ledger

	Log            LogConfig            `yaml:"log"`
	Discovery      DiscoveryConfig      `yaml:"discovery"`
	Agreement      AgreementConfig      `yaml:"agreement"`
	Reconstruction ReconstructionConfig `yaml:"reconstruction"`
	Moment         MomentConfig         `yaml:"moment"`
	Privacy        PrivacyConfig        `yaml:"privacy"`

	HTTP *http.Client `yaml:"-"` // optional; defaults to http.DefaultClient
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DiscoveryConfig struct {
	Window        time.Duration `yaml:"window"`
	CandidateTTL  time.Duration `yaml:"candidate_ttl"`
	AnnounceRate  float64       `yaml:"announce_rate"`
	AnnounceBurst int           `yaml:"announce_burst"`
}

type AgreementConfig struct {
	StepTimeout time.Duration `yaml:"step_timeout"`
}

type ReconstructionConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type MomentConfig struct {
	TimestampGranularity time.Duration `yaml:"timestamp_granularity"`
}

type PrivacyConfig struct {
	TimestampGranularity time.Duration `yaml:"timestamp_granularity"`
	MinRegionRadiusM     float64       `yaml:"min_region_radius_m"`
}

// DefaultConfig returns the built-in settings. Home is left empty and
// resolved by LoadConfig.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Discovery: DiscoveryConfig{
			Window:        session.DefaultDiscoveryWindow,
			CandidateTTL:  discovery.DefaultTTL,
			AnnounceRate:  discovery.DefaultRate,
			AnnounceBurst: discovery.DefaultBurst,
		},
		Agreement:      AgreementConfig{StepTimeout: session.DefaultStepTimeout},
		Reconstruction: ReconstructionConfig{Timeout: momentsvc.DefaultReconstructionTimeout},
		Moment:         MomentConfig{TimestampGranularity: moment.DefaultGranularity},
		Privacy: PrivacyConfig{
			TimestampGranularity: privacy.DefaultTimestampGranularity,
			MinRegionRadiusM:     privacy.DefaultMinRegionRadius,
		},
	}
}

// DefaultHome is $HOME/.momentkey.
func DefaultHome() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".momentkey"), nil
}

// LoadConfig reads path over the defaults and applies environment
// overrides. An empty path means config.yaml in the home directory, which
// may be absent; an explicit path must exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	envHome := os.Getenv(EnvHome)

	explicit := path != ""
	if !explicit {
		home := envHome
		if home == "" {
			h, err := DefaultHome()
			if err != nil {
				return Config{}, err
			}
			home = h
		}
		cfg.Home = home
		path = filepath.Join(home, "config.yaml")
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	if envHome != "" {
		cfg.Home = envHome
	}
	if u, ok := os.LookupEnv(EnvLedgerURL); ok {
		cfg.LedgerURL = u
	}
	if l := os.Getenv(EnvLogLevel); l != "" {
		cfg.Log.Level = l
	}
	if cfg.Home == "" {
		h, err := DefaultHome()
		if err != nil {
			return Config{}, err
		}
		cfg.Home = h
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	if c.Home == "" {
		return errors.New("config: home is empty")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Log.Format != "" && c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	for name, d := range map[string]time.Duration{
		"discovery.window":              c.Discovery.Window,
		"agreement.step_timeout":        c.Agreement.StepTimeout,
		"reconstruction.timeout":        c.Reconstruction.Timeout,
		"moment.timestamp_granularity":  c.Moment.TimestampGranularity,
		"privacy.timestamp_granularity": c.Privacy.TimestampGranularity,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", name, d)
		}
	}
	if c.Privacy.MinRegionRadiusM <= 0 {
		return fmt.Errorf("config: privacy.min_region_radius_m must be positive")
	}
	return nil
}

// PrivacyPolicy is the commitment policy described by c.
func (c Config) PrivacyPolicy() privacy.Policy {
	return privacy.Policy{
		TimestampGranularity:  c.Privacy.TimestampGranularity,
		MinRegionRadiusMeters: c.Privacy.MinRegionRadiusM,
	}
}
