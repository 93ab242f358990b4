// Package config manages deltafix configuration using koanf/v2.
//
// Supports YAML files and environment variables layered over defaults.
// The four positional generation parameters are not configuration; they are
// always given on the command line.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dantte-lp/deltafix/internal/fixture"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete deltafix configuration.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Output    OutputConfig    `koanf:"output"`
	Generator GeneratorConfig `koanf:"generator"`
	Network   NetworkConfig   `koanf:"network"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// OutputConfig holds stream rendering settings.
type OutputConfig struct {
	// Label is the device label echoed in oracle lines.
	Label string `koanf:"label"`
}

// GeneratorConfig holds the delta distribution parameters.
type GeneratorConfig struct {
	// MaxAttempts bounds the attempts per accepted step before the run
	// fails with a configuration error.
	MaxAttempts int `koanf:"max_attempts"`

	// AbsoluteProbability is the chance a step after the first is Absolute.
	AbsoluteProbability float64 `koanf:"absolute_probability"`

	// ReselectProbability is the re-selection chance for Absolute and
	// Additive candidates.
	ReselectProbability float64 `koanf:"reselect_probability"`

	// SubtractReselectProbability is the re-selection chance for
	// Subtractive candidates.
	SubtractReselectProbability float64 `koanf:"subtract_reselect_probability"`
}

// NetworkConfig holds the base networks and mutation densities.
type NetworkConfig struct {
	// IPv4Base is the IPv4 base network in CIDR form.
	IPv4Base string `koanf:"ipv4_base"`
	// IPv6Base is the IPv6 base network in CIDR form.
	IPv6Base string `koanf:"ipv6_base"`
	// IPv4Density is the per-bit mutation density for IPv4.
	IPv4Density float64 `koanf:"ipv4_density"`
	// IPv6Density is the per-bit mutation density for IPv6.
	IPv6Density float64 `koanf:"ipv6_density"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with the reference generator
// parameters. The default log level is "warn" because the oracle stream
// goes to stderr by default and must not be interleaved with info logs.
func DefaultConfig() *Config {
	s := fixture.DefaultSettings()
	return &Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Output: OutputConfig{
			Label: s.Label,
		},
		Generator: GeneratorConfig{
			MaxAttempts:                 s.MaxAttempts,
			AbsoluteProbability:         s.AbsoluteProbability,
			ReselectProbability:         s.ReselectProbability,
			SubtractReselectProbability: s.SubtractReselectProbability,
		},
		Network: NetworkConfig{
			IPv4Base:    s.IPv4.Prefix.String(),
			IPv6Base:    s.IPv6.Prefix.String(),
			IPv4Density: s.IPv4.Density,
			IPv6Density: s.IPv6.Density,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for deltafix configuration.
// Variables are named DELTAFIX_<section>__<key>, e.g.
// DELTAFIX_GENERATOR__MAX_ATTEMPTS. The double underscore separates the
// section because keys themselves contain underscores.
const envPrefix = "DELTAFIX_"

// Load overlays an optional YAML file at path (skipped when path is empty)
// and DELTAFIX_ environment variables on top of DefaultConfig().
//
// Environment variable mapping:
//
//	DELTAFIX_LOG__LEVEL                  -> log.level
//	DELTAFIX_OUTPUT__LABEL               -> output.label
//	DELTAFIX_GENERATOR__MAX_ATTEMPTS     -> generator.max_attempts
//	DELTAFIX_NETWORK__IPV4_BASE          -> network.ipv4_base
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// envKeyMapper transforms DELTAFIX_GENERATOR__MAX_ATTEMPTS ->
// generator.max_attempts.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// loadDefaults sets the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"log.level":                               defaults.Log.Level,
		"log.format":                              defaults.Log.Format,
		"output.label":                            defaults.Output.Label,
		"generator.max_attempts":                  defaults.Generator.MaxAttempts,
		"generator.absolute_probability":          defaults.Generator.AbsoluteProbability,
		"generator.reselect_probability":          defaults.Generator.ReselectProbability,
		"generator.subtract_reselect_probability": defaults.Generator.SubtractReselectProbability,
		"network.ipv4_base":                       defaults.Network.IPv4Base,
		"network.ipv6_base":                       defaults.Network.IPv6Base,
		"network.ipv4_density":                    defaults.Network.IPv4Density,
		"network.ipv6_density":                    defaults.Network.IPv6Density,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyLabel indicates the oracle label is empty.
	ErrEmptyLabel = errors.New("output.label must not be empty")

	// ErrInvalidMaxAttempts indicates a non-positive attempt bound.
	ErrInvalidMaxAttempts = errors.New("generator.max_attempts must be >= 1")

	// ErrInvalidProbability indicates a probability outside [0, 1].
	ErrInvalidProbability = errors.New("probability must be in [0, 1]")

	// ErrInvalidBase indicates an unparsable base network or one of the
	// wrong address family.
	ErrInvalidBase = errors.New("invalid base network")

	// ErrInvalidLogFormat indicates an unrecognized log format.
	ErrInvalidLogFormat = errors.New("log.format must be text or json")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("%q: %w", cfg.Log.Format, ErrInvalidLogFormat)
	}

	if cfg.Output.Label == "" {
		return ErrEmptyLabel
	}

	if cfg.Generator.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	probs := []struct {
		key string
		val float64
	}{
		{"generator.absolute_probability", cfg.Generator.AbsoluteProbability},
		{"generator.reselect_probability", cfg.Generator.ReselectProbability},
		{"generator.subtract_reselect_probability", cfg.Generator.SubtractReselectProbability},
	}
	for _, p := range probs {
		if p.val < 0 || p.val > 1 {
			return fmt.Errorf("%s %v: %w", p.key, p.val, ErrInvalidProbability)
		}
	}

	if _, err := cfg.Settings(); err != nil {
		return err
	}

	return nil
}

// Settings converts the configuration into generator settings.
func (cfg *Config) Settings() (fixture.Settings, error) {
	v4, err := parseNetwork("network.ipv4_base", cfg.Network.IPv4Base, cfg.Network.IPv4Density, 4)
	if err != nil {
		return fixture.Settings{}, err
	}
	v6, err := parseNetwork("network.ipv6_base", cfg.Network.IPv6Base, cfg.Network.IPv6Density, 6)
	if err != nil {
		return fixture.Settings{}, err
	}

	return fixture.Settings{
		MaxAttempts:                 cfg.Generator.MaxAttempts,
		AbsoluteProbability:         cfg.Generator.AbsoluteProbability,
		ReselectProbability:         cfg.Generator.ReselectProbability,
		SubtractReselectProbability: cfg.Generator.SubtractReselectProbability,
		IPv4:                        v4,
		IPv6:                        v6,
		Label:                       cfg.Output.Label,
	}, nil
}

// parseNetwork parses and validates one base network.
func parseNetwork(key, cidr string, density float64, ipver int) (fixture.Network, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fixture.Network{}, fmt.Errorf("%s %q: %w: %w", key, cidr, ErrInvalidBase, err)
	}

	n := fixture.Network{Prefix: prefix.Masked(), Density: density}
	if n.Version() != ipver {
		return fixture.Network{}, fmt.Errorf("%s %q: %w: not IPv%d", key, cidr, ErrInvalidBase, ipver)
	}
	if err := n.Validate(); err != nil {
		return fixture.Network{}, fmt.Errorf("%s %q: %w", key, cidr, err)
	}
	return n, nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelWarn.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
