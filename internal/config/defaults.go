package config

// Config holds all application configuration values.
// Defaults are set in DefaultConfig() and can be overridden via dotfile,
// environment variables and finally command-line flags.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	// Token is the Kelvin API token. Normally supplied via KELVIN_API_TOKEN.
	Token string `json:"token" yaml:"token" mapstructure:"token"`
	// NoOpen disables opening the submit in a browser.
	NoOpen bool `json:"no_open" yaml:"no_open" mapstructure:"no_open"`

	Kelvin   KelvinConfig   `json:"kelvin" yaml:"kelvin" mapstructure:"kelvin"`
	Archive  ArchiveConfig  `json:"archive" yaml:"archive" mapstructure:"archive"`
	Executor ExecutorConfig `json:"executor" yaml:"executor" mapstructure:"executor"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
}

type KelvinConfig struct {
	URL string `json:"url" yaml:"url" mapstructure:"url"` // Default: https://kelvin.cs.vsb.cz
}

type ArchiveConfig struct {
	MaxFileSize  int64    `json:"max_file_size" yaml:"max_file_size" mapstructure:"max_file_size"` // Default: 1 MiB
	Extensions   []string `json:"extensions" yaml:"extensions" mapstructure:"extensions"`          // Default: toml, lock, rs, md, txt
	ExcludedDirs []string `json:"excluded_dirs" yaml:"excluded_dirs" mapstructure:"excluded_dirs"` // Default: target
}

type ExecutorConfig struct {
	MaxOutputSize int64 `json:"max_output_size" yaml:"max_output_size" mapstructure:"max_output_size"` // Default: 64 KiB
}

type LogConfig struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"` // Default: info
}

// DefaultKelvinURL is the public Kelvin instance.
const DefaultKelvinURL = "https://kelvin.cs.vsb.cz"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Kelvin: KelvinConfig{
			URL: DefaultKelvinURL,
		},
		Archive: ArchiveConfig{
			MaxFileSize:  1024 * 1024,
			Extensions:   []string{"toml", "lock", "rs", "md", "txt"},
			ExcludedDirs: []string{"target"},
		},
		Executor: ExecutorConfig{
			MaxOutputSize: 64 * 1024,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
