// Package config assembles the controller's settings.  Values are layered,
// lowest precedence first: built-in defaults, the YAML file, then QUICKBOT_*
// environment variables.  Command-line flags are applied on top by the
// binary.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/tigerbot-team/quickbot/pkg/encoder"
	"github.com/tigerbot-team/quickbot/pkg/hardware"
	"github.com/tigerbot-team/quickbot/pkg/link"
	"github.com/tigerbot-team/quickbot/pkg/motor"
	"github.com/tigerbot-team/quickbot/pkg/robot"
	"github.com/tigerbot-team/quickbot/pkg/telemetry"
)

const (
	DefaultPath = "/cfg/quickbot.yaml"
	EnvPrefix   = "QUICKBOT_"
)

type Config struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	Link      link.Config      `yaml:"link" envPrefix:"LINK_"`
	Motor     motor.Config     `yaml:"motor" envPrefix:"MOTOR_"`
	Encoder   encoder.Config   `yaml:"encoder" envPrefix:"ENCODER_"`
	Robot     robot.Config     `yaml:"robot" envPrefix:"ROBOT_"`
	Hardware  hardware.Config  `yaml:"hardware" envPrefix:"HARDWARE_"`
	Telemetry telemetry.Config `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

func Default() Config {
	return Config{
		LogLevel:  "info",
		Link:      link.DefaultConfig(),
		Motor:     motor.DefaultConfig(),
		Encoder:   encoder.DefaultConfig(),
		Robot:     robot.DefaultConfig(),
		Hardware:  hardware.DefaultConfig(),
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load returns the defaults overlaid with the file at path (if it exists)
// and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path.  Keys missing from the file keep
// their current values.  A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info().Str("path", path).Msg("No config file, using defaults")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "failed to parse config %s", path)
	}
	log.Info().Str("path", path).Msg("Loaded config")
	return nil
}

func (c *Config) ApplyEnv() error {
	err := env.Parse(c, env.Options{Prefix: EnvPrefix})
	return errors.Wrap(err, "bad environment config")
}

// InUsePath is where the effective config is written for reference, e.g.
// /cfg/quickbot-in-use.yaml.
func InUsePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-in-use" + ext
}

// WriteInUse records the effective config next to the file it was loaded
// from.
func (c Config) WriteInUse(path string) error {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	out := InUsePath(path)
	if err := os.WriteFile(out, data, 0666); err != nil {
		return errors.Wrapf(err, "failed to write %s", out)
	}
	return nil
}

func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "bad log_level %q", c.LogLevel)
	}
	if err := c.Link.Validate(); err != nil {
		return errors.Wrap(err, "link")
	}
	if err := c.Motor.Validate(); err != nil {
		return errors.Wrap(err, "motor")
	}
	if c.Encoder.TicksPerRevolution <= 0 {
		return errors.Errorf("encoder ticks_per_revolution must be positive, not %d", c.Encoder.TicksPerRevolution)
	}
	if c.Encoder.SampleInterval < 0 {
		return errors.New("encoder sample_interval must not be negative")
	}
	if c.Encoder.RecordSamples > 0 && c.Encoder.RecordPath == "" {
		return errors.New("encoder record_samples needs a record_path")
	}
	if err := c.Robot.Validate(); err != nil {
		return errors.Wrap(err, "robot")
	}
	if err := c.Hardware.Validate(); err != nil {
		return errors.Wrap(err, "hardware")
	}
	if err := c.Telemetry.Validate(); err != nil {
		return errors.Wrap(err, "telemetry")
	}
	return nil
}
