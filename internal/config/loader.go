package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the directory name under ~/.config
	ConfigDir = "kelvin"
	// ConfigFile is the config file name. Comments are allowed.
	ConfigFile = "config.json"
	// ConfigFileYAML is consulted when ConfigFile does not exist.
	ConfigFileYAML = "config.yaml"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvToken    = "KELVIN_API_TOKEN"
	EnvURL      = "KELVIN_URL"
	EnvNoOpen   = "KELVIN_NO_OPEN"
	EnvLogLevel = "KELVIN_LOG"
)

// FileSystem abstracts file operations for testability
type FileSystem interface {
	UserHomeDir() (string, error)
	ReadFile(path string) ([]byte, error)
}

// ConfigFileReader implements FileSystem using the real OS for config loading
type ConfigFileReader struct{}

func (ConfigFileReader) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

func (ConfigFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader handles configuration loading with injected dependencies
type Loader struct {
	fs FileSystem
}

// NewLoader creates a production Loader using the real filesystem
func NewLoader() *Loader {
	return &Loader{fs: ConfigFileReader{}}
}

// NewLoaderWithFS creates a Loader with a custom filesystem (for testing)
func NewLoaderWithFS(fs FileSystem) *Loader {
	return &Loader{fs: fs}
}

// Load reads configuration from ~/.config/kelvin/config.json (or config.yaml)
// and merges it with defaults. Dotfile values override defaults.
// Returns default config if no dotfile exists.
// Returns error only for parse errors, permission issues, or validation failures.
//
// NOTE: The dotfile is decoded directly over the default configuration, so
// explicit zero values (e.g., 0, false, "") in the file override defaults.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := l.fs.UserHomeDir()
	if err != nil {
		return cfg, nil // Use defaults if can't get home dir
	}

	dir := filepath.Join(homeDir, ".config", ConfigDir)

	loaded, err := l.decodeFile(filepath.Join(dir, ConfigFile), cfg, decodeJSONC)
	if err != nil {
		return nil, err
	}
	if !loaded {
		if _, err := l.decodeFile(filepath.Join(dir, ConfigFileYAML), cfg, yaml.Unmarshal); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decodeFile reports false without error when the file does not exist.
func (l *Loader) decodeFile(path string, cfg *Config, decode func([]byte, any) error) (bool, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &FileError{Path: path, Cause: err}
	}

	if err := decode(data, cfg); err != nil {
		return false, &FileError{Path: path, Cause: err}
	}
	return true, nil
}

func decodeJSONC(data []byte, v any) error {
	return json.Unmarshal(jsonc.ToJSON(data), v)
}

// ApplyEnv overrides cfg with the KELVIN_* environment variables found by lookup.
// Values are weakly typed, so KELVIN_NO_OPEN accepts 1/true/false/0.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	overrides := map[string]any{}

	if v, ok := lookup(EnvToken); ok {
		overrides["token"] = v
	}
	if v, ok := lookup(EnvNoOpen); ok && v != "" {
		overrides["no_open"] = v
	}
	if v, ok := lookup(EnvURL); ok && v != "" {
		overrides["kelvin"] = map[string]any{"url": v}
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		overrides["log"] = map[string]any{"level": v}
	}

	if len(overrides) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(overrides); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}

	return cfg.Validate()
}

// Load is a convenience function using the default loader
func Load() (*Config, error) {
	return NewLoader().Load()
}
