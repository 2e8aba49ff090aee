package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"omnisched/internal/appointment"
)

// Environment variables that override file settings.
const (
	EnvLogLevel  = "OMNISCHED_LOG_LEVEL"
	EnvLogFormat = "OMNISCHED_LOG_FORMAT"
)

// AppointmentConfig describes one appointment entry. Which fields matter
// depends on Kind:
//   - onetime: year, month, day, hour, minute
//   - daily:   hour, minute
//   - weekly:  weekday, hour, minute
//   - monthly: day, hour, minute
type AppointmentConfig struct {
	Kind        string `yaml:"kind" json:"kind" validate:"required,oneof=onetime daily weekly monthly"`
	Description string `yaml:"description" json:"description" validate:"required"`

	Year  int `yaml:"year,omitempty" json:"year,omitempty"`
	Month int `yaml:"month,omitempty" json:"month,omitempty" validate:"required_if=Kind onetime,gte=0,lte=12"`
	Day   int `yaml:"day,omitempty" json:"day,omitempty" validate:"required_if=Kind onetime,required_if=Kind monthly,gte=0,lte=31"`

	Weekday int `yaml:"weekday,omitempty" json:"weekday,omitempty" validate:"gte=0,lte=6"`

	Hour   int `yaml:"hour" json:"hour" validate:"gte=0,lte=23"`
	Minute int `yaml:"minute" json:"minute" validate:"gte=0,lte=59"`
}

// Config is the top-level application configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format" json:"log_format" validate:"oneof=text json"`

	// Appointments are kept in file order; report lines follow this order.
	Appointments []AppointmentConfig `yaml:"appointments" json:"appointments" validate:"dive"`
}

// DemoAppointments is the built-in list used when no config file is given.
func DemoAppointments() []AppointmentConfig {
	return []AppointmentConfig{
		{Kind: "onetime", Description: "Orthodontist appointment", Year: 2024, Month: 12, Day: 3, Hour: 9, Minute: 0},
		{Kind: "daily", Description: "Chest day", Hour: 6, Minute: 0},
		{Kind: "weekly", Description: "COMP-200-1201: Object Oriented Prog. C++", Weekday: 1, Hour: 17, Minute: 20},
		{Kind: "monthly", Description: "Pay credit card", Day: 30, Hour: 8, Minute: 45},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "error",
		LogFormat:    "text",
		Appointments: DemoAppointments(),
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "error"
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	for i := range c.Appointments {
		e := &c.Appointments[i]
		if k, err := appointment.ParseKind(e.Kind); err == nil {
			e.Kind = string(k)
		} else {
			e.Kind = strings.ToLower(strings.TrimSpace(e.Kind))
		}
	}
	if c.Appointments == nil {
		c.Appointments = []AppointmentConfig{}
	}
}

var validate = validator.New()

// Validate checks value ranges of the normalized config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		params := strings.Fields(fe.Param())
		return field + " is required for kind " + params[len(params)-1]
	case "oneof":
		return field + " must be one of [" + fe.Param() + "]"
	case "gte":
		return field + " must be greater than or equal to " + fe.Param()
	case "lte":
		return field + " must be less than or equal to " + fe.Param()
	default:
		return field + " is invalid"
	}
}

// Load reads, normalizes and validates the YAML config at path. A missing
// file yields DefaultConfig and is not created.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: load: empty path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyEnv overrides log settings from the process environment, reading a
// .env file in the working directory first when one exists. Variables
// already set in the environment win over .env entries.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	c.Normalize()
}

// Save validates cfg and writes it to path as YAML. The file is replaced
// atomically with mode 0600; missing parent directories are created 0700.
func Save(path string, cfg *Config) error {
	switch {
	case path == "":
		return errors.New("config: save: empty path")
	case cfg == nil:
		return errors.New("config: save: nil config")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".omnisched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// No-op once the rename has happened.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save writes c to path; see the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
