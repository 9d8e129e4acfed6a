// Package config loads the orchestrator's YAML configuration file with
// viper, per the external configuration contract (see SPEC_FULL.md §6).
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// DefaultResourceLimits mirrors the reference implementation's fallback
// fractions, applied when a config file has no resource_limits section.
var DefaultResourceLimits = map[string]float64{
	"cpu":     0.8,
	"memory":  0.7,
	"network": 0.5,
}

// DefaultPMax is used when memory information is unavailable to compute an
// absolute byte limit from the resource_limits.memory fraction.
const DefaultPMax = 8.0

// Config holds the parsed orchestrator configuration.
type Config struct {
	Alpha           float64
	Beta            float64
	ResourceLimits  map[string]float64
	hasAlpha        bool
	hasBeta         bool
	hasResourceLims bool
}

// Load reads the YAML config file at path, if it exists. A missing path is
// not an error (config-file is optional); a malformed file is a
// configuration error and is returned to the caller to fail fast.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Alpha:          0.5,
		Beta:           0.5,
		ResourceLimits: DefaultResourceLimits,
	}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if v.IsSet("alpha") {
		cfg.Alpha = v.GetFloat64("alpha")
		cfg.hasAlpha = true
	}
	if v.IsSet("beta") {
		cfg.Beta = v.GetFloat64("beta")
		cfg.hasBeta = true
	}
	if v.IsSet("resource_limits") {
		limits := map[string]float64{}
		raw := v.GetStringMap("resource_limits")
		for k, val := range raw {
			f, ok := toFloat(val)
			if !ok {
				return nil, fmt.Errorf("config: resource_limits.%s is not numeric", k)
			}
			if f < 0 || f > 1 {
				return nil, fmt.Errorf("config: resource_limits.%s must be in [0,1], got %g", k, f)
			}
			limits[k] = f
		}
		cfg.ResourceLimits = limits
		cfg.hasResourceLims = true
	}
	return cfg, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// HasResourceLimits reports whether resource_limits was explicitly set in
// the config file, as opposed to falling back to DefaultResourceLimits.
func (c *Config) HasResourceLimits() bool { return c.hasResourceLims }
