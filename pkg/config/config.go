// Package config materializes the run settings from viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/offalexp/ceSSHar/pkg/portstats"
)

const (
	EnvPrefix         = "CESSHAR"
	DefaultConfigName = ".cesshar"
	DefaultAuthFile   = "~/.cesshar"
)

// Defaults, overridable by config file, environment and flags in that order of precedence.
const (
	DefaultBailTimeout    = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultDevicePause    = 1 * time.Second
	DefaultWorkers        = 1
	DefaultDialRetries    = 1
	DefaultPortTimeout    = 30 * time.Second
)

type Config struct {
	SwitchesFile  string
	CommandsFile  string
	InventoryFile string
	OutputDir     string

	AuthFile             string
	Username             string
	Password             string
	Enable               bool
	EnablePassword       string
	BackupUsername       string
	BackupPassword       string
	BackupEnablePassword string

	BailTimeout    time.Duration
	ConnectTimeout time.Duration
	Delay          time.Duration
	DevicePause    time.Duration
	Workers        int
	DialRetries    int

	ExitOnFailure bool
	WriteOutput   bool
	PrintOutput   bool
	Quiet         bool
	Safety        bool
	StrictSafety  bool

	LogLevel  string
	LogPath   string
	LogFormat string

	Ports       portstats.Thresholds
	PortTimeout time.Duration
}

// NewViper returns a viper instance with defaults and CESSHAR_ environment binding in place.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_path", "")
	v.SetDefault("general.log_format", "json")
	v.SetDefault("general.dial_retries", DefaultDialRetries)

	v.SetDefault("auth.file", DefaultAuthFile)
	v.SetDefault("auth.enable", false)

	v.SetDefault("run.timeout", int(DefaultBailTimeout.Seconds()))
	v.SetDefault("run.connect_timeout", int(DefaultConnectTimeout.Seconds()))
	v.SetDefault("run.delay", 0)
	v.SetDefault("run.device_pause", DefaultDevicePause.String())
	v.SetDefault("run.workers", DefaultWorkers)
	v.SetDefault("run.output_dir", ".")
	v.SetDefault("run.exit_on_failure", true)
	v.SetDefault("run.write", true)
	v.SetDefault("run.print", false)
	v.SetDefault("run.quiet", false)
	v.SetDefault("run.safety", true)
	v.SetDefault("run.strict_safety", false)

	v.SetDefault("ports.timeout", int(DefaultPortTimeout.Seconds()))
	t := portstats.DefaultThresholds()
	v.SetDefault("ports.min_reliability", t.MinReliability)
	v.SetDefault("ports.max_crc", t.MaxCRC)
	v.SetDefault("ports.max_input_errors", t.MaxInputErrors)
	v.SetDefault("ports.max_collisions", t.MaxCollisions)
	v.SetDefault("ports.max_load", t.MaxLoad)
}

// ReadFile loads path, or ~/.cesshar.yaml when path is empty. A missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return err
		}
		v.SetConfigFile(expanded)
		if filepath.Ext(expanded) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", expanded, err)
		}
		return nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return err
	}
	v.AddConfigPath(home)
	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetFloat64(key) * float64(time.Second))
}

// FromViper builds and validates a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		SwitchesFile:  v.GetString("run.switches"),
		CommandsFile:  v.GetString("run.commands"),
		InventoryFile: v.GetString("ports.inventory"),
		OutputDir:     v.GetString("run.output_dir"),

		AuthFile:             v.GetString("auth.file"),
		Username:             v.GetString("auth.username"),
		Password:             v.GetString("auth.password"),
		Enable:               v.GetBool("auth.enable"),
		EnablePassword:       v.GetString("auth.enable_password"),
		BackupUsername:       v.GetString("auth.backup_username"),
		BackupPassword:       v.GetString("auth.backup_password"),
		BackupEnablePassword: v.GetString("auth.backup_enable_password"),

		BailTimeout:    seconds(v, "run.timeout"),
		ConnectTimeout: seconds(v, "run.connect_timeout"),
		Delay:          seconds(v, "run.delay"),
		DevicePause:    v.GetDuration("run.device_pause"),
		Workers:        v.GetInt("run.workers"),
		DialRetries:    v.GetInt("general.dial_retries"),

		ExitOnFailure: v.GetBool("run.exit_on_failure"),
		WriteOutput:   v.GetBool("run.write"),
		PrintOutput:   v.GetBool("run.print"),
		Quiet:         v.GetBool("run.quiet"),
		Safety:        v.GetBool("run.safety"),
		StrictSafety:  v.GetBool("run.strict_safety"),

		LogLevel:  v.GetString("general.log_level"),
		LogPath:   v.GetString("general.log_path"),
		LogFormat: v.GetString("general.log_format"),

		Ports: portstats.Thresholds{
			MinReliability: v.GetInt("ports.min_reliability"),
			MaxCRC:         v.GetInt64("ports.max_crc"),
			MaxInputErrors: v.GetInt64("ports.max_input_errors"),
			MaxCollisions:  v.GetInt64("ports.max_collisions"),
			MaxLoad:        v.GetInt("ports.max_load"),
		},
		PortTimeout: seconds(v, "ports.timeout"),
	}

	if c.OutputDir != "" {
		dir, err := homedir.Expand(c.OutputDir)
		if err != nil {
			return nil, err
		}
		c.OutputDir = filepath.Clean(dir)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.BailTimeout <= 0 {
		errs = append(errs, "run.timeout must be positive")
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, "run.connect_timeout must be positive")
	}
	if c.Delay < 0 {
		errs = append(errs, "run.delay cannot be negative")
	}
	if c.PortTimeout <= 0 {
		errs = append(errs, "ports.timeout must be positive")
	}
	if c.DevicePause < 0 {
		errs = append(errs, "run.device_pause cannot be negative")
	}
	if c.Workers < 1 {
		errs = append(errs, "run.workers must be at least 1")
	}
	if c.DialRetries < 0 {
		errs = append(errs, "general.dial_retries cannot be negative")
	}
	if c.BackupPassword != "" && c.BackupUsername == "" {
		errs = append(errs, "a backup password needs a backup username")
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// HasBackup reports whether backup credentials were configured.
func (c *Config) HasBackup() bool {
	return c.BackupUsername != ""
}

// BackupEnable returns the enable secret for a backup attempt: the backup secret when set,
// otherwise the primary one.
func (c *Config) BackupEnable() string {
	if c.BackupEnablePassword != "" {
		return c.BackupEnablePassword
	}
	return c.EnablePassword
}
