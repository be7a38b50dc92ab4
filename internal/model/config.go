package model

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/CZERTAINLY/piperepro/internal/redirect"
)

// Log destinations, any other value is a file path.
const (
	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"
)

var ErrUnsupportedVersion = errors.New("unsupported config version")

// Config of piperepro, loaded from piperepro.yaml.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version int    `yaml:"version"`           // fixed 0 for now
	With    string `yaml:"with,omitempty"`    // redirection policy name, default "default"
	Verbose bool   `yaml:"verbose,omitempty"` // debug logging
	Log     string `yaml:"log,omitempty"`     // "stderr"|"stdout"|"discard"|path
}

// DefaultConfig inherits the parent streams and logs at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		With:    redirect.Inherit.String(),
		Log:     LogStderr,
	}
}

// LoadConfig decodes YAML from r on top of DefaultConfig and validates it.
// An empty document yields the defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the version and the policy name.
func (c Config) Validate() error {
	if c.Version != 0 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, c.Version)
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("with: %w", err)
	}
	return nil
}

// Policy returns the configured redirection policy.
func (c Config) Policy() (redirect.Policy, error) {
	if c.With == "" {
		return redirect.Inherit, nil
	}
	return redirect.ParsePolicy(c.With)
}

// LogDestination returns the configured log destination, stderr when unset.
func (c Config) LogDestination() string {
	if c.Log == "" {
		return LogStderr
	}
	return c.Log
}
