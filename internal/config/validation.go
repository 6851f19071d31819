package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks config values for correctness.
// Returns an error listing every invalid value.
func (c *Config) Validate() error {
	var errs []string

	u, err := url.Parse(c.Kelvin.URL)
	if c.Kelvin.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "kelvin.url must be an absolute http(s) URL")
	}

	if c.Archive.MaxFileSize < 1 {
		errs = append(errs, "archive.max_file_size must be >= 1")
	}
	if len(c.Archive.Extensions) == 0 {
		errs = append(errs, "archive.extensions must not be empty")
	}
	for _, ext := range c.Archive.Extensions {
		if ext == "" || strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Sprintf("archive.extensions entry %q must be non-empty and without a leading dot", ext))
		}
	}
	for _, dir := range c.Archive.ExcludedDirs {
		if dir == "" || strings.ContainsAny(dir, `/\`) {
			errs = append(errs, fmt.Sprintf("archive.excluded_dirs entry %q must be a single path component", dir))
		}
	}

	if c.Executor.MaxOutputSize < 1 {
		errs = append(errs, "executor.max_output_size must be >= 1")
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q must be one of trace, debug, info, warn, error", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
