package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. Keys missing from the file keep
// their Default values.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no usable default.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.API.Endpoint == "" {
		errs = append(errs, errors.New("api.endpoint is required"))
	}
	if c.RateLimit.MaxRequestsPerHour < 0 || c.RateLimit.MaxRequestsPerMinute < 0 {
		errs = append(errs, errors.New("rate_limit: limits must not be negative"))
	}
	if c.RateLimit.SafetyMargin < 0 || c.RateLimit.SafetyMargin > 1 {
		errs = append(errs, fmt.Errorf("rate_limit.safety_margin %v out of range (0,1]", c.RateLimit.SafetyMargin))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		errs = append(errs, fmt.Errorf("retry.jitter_factor %v out of range [0,1]", c.Retry.JitterFactor))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
