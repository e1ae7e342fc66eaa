// Package config provides YAML configuration parsing for WorldSync.
//
// This package enables running WorldSync as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Lobby
//	port: ${PORT:-8080}
//	log_level: info
//	write_timeout: 5s
//	allowed_origins:
//	  - https://lobby.example.com
//
//	entities:
//	  beacon:
//	    x: 10
//	    y: 20
//	    colour: red
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
	defaultWriteTimeout   = 5 * time.Second
	defaultMaxMessageSize = 1 << 20

	// maxWriteTimeout is the largest accepted write_timeout.
	maxWriteTimeout = time.Minute
)

// Config is the root configuration structure for WorldSync.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the page title. Defaults to "WorldSync" if not set.
	Title string `yaml:"title" validate:"max=120"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat is json or text. Defaults to json.
	LogFormat string `yaml:"log_format" validate:"oneof=json text"`

	// WriteTimeout bounds each frame written to a stream client.
	// Accepts duration strings like "5s", "500ms". Defaults to 5s.
	WriteTimeout Duration `yaml:"write_timeout"`

	// MaxMessageSize caps HTTP bodies and inbound WebSocket frames in bytes.
	// Defaults to 1 MiB.
	MaxMessageSize int64 `yaml:"max_message_size" validate:"min=1"`

	// QueueLimit bounds each subscriber's pending frames. 0 means unbounded.
	QueueLimit int `yaml:"queue_limit" validate:"min=0"`

	// AllowedOrigins restricts WebSocket upgrades. Empty accepts any origin.
	AllowedOrigins []string `yaml:"allowed_origins" validate:"dive,required"`

	// Entities seeds the world at startup.
	Entities map[string]map[string]any `yaml:"entities" validate:"dive,keys,required,endkeys"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// SlogLevel maps LogLevel to a [slog.Level]. Unknown values map to Info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// expandDocument expands environment variables in every line of a YAML
// document except comment lines.
func expandDocument(data []byte) ([]byte, error) {
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		expanded, err := expandEnvVars(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		lines[i] = expanded
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded throughout the document, so numeric
// fields such as port may come from the environment too. Defaults are
// applied before validation.
func Parse(data []byte) (*Config, error) {
	expanded, err := expandDocument(data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills zero-valued fields.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = Duration(defaultWriteTimeout)
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
}

// validate checks struct tags, then the rules tags cannot express.
func (c *Config) validate() error {
	if err := newValidator().Struct(c); err != nil {
		return describeValidation(err)
	}

	wt := c.WriteTimeout.Duration()
	if wt < 0 {
		return fmt.Errorf("write_timeout cannot be negative, got %s", wt)
	}
	if wt > maxWriteTimeout {
		return fmt.Errorf("write_timeout must not exceed %s, got %s", maxWriteTimeout, wt)
	}

	// every seeded entity is broadcast as JSON, so it has to encode
	for name, attrs := range c.Entities {
		if _, err := json.Marshal(attrs); err != nil {
			return fmt.Errorf("entities[%s]: attributes are not JSON-compatible: %w", name, err)
		}
	}

	return nil
}

// newValidator returns a validator that reports fields by their YAML names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// describeValidation turns the first validator failure into a readable error.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("invalid config: %w", err)
	}

	fe := verrs[0]
	// strip the root struct name from "Config.port"
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	switch fe.Tag() {
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "min":
		return fmt.Errorf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "max":
		return fmt.Errorf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	case "required":
		return fmt.Errorf("%s cannot be empty", field)
	default:
		return fmt.Errorf("%s failed %q validation", field, fe.Tag())
	}
}
