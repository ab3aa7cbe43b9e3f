package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	// DefaultIdentifier names the app data and config directories.
	DefaultIdentifier = "com.toshik-babe.engine"

	configName = "sidecar"
	envPrefix  = "sidecar"
)

// Config is the effective configuration of the sidecar CLI.
type Config struct {
	Identifier string          `mapstructure:"identifier" yaml:"identifier"`
	DataDir    string          `mapstructure:"data_dir" yaml:"data_dir"` // Optional, defaults to the OS app data dir
	LogFile    string          `mapstructure:"log_file" yaml:"log_file"`
	Ports      PortsConfig     `mapstructure:"ports" yaml:"ports"`
	Backend    BackendConfig   `mapstructure:"backend" yaml:"backend"`
	Audit      AuditConfig     `mapstructure:"audit" yaml:"audit"`
	Token      TokenConfig     `mapstructure:"token" yaml:"token"`
	Readiness  ReadinessConfig `mapstructure:"readiness" yaml:"readiness"`
	Logging    LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

type PortsConfig struct {
	Min int `mapstructure:"min" yaml:"min"`
	Max int `mapstructure:"max" yaml:"max"`
}

type BackendConfig struct {
	Runtime     string   `mapstructure:"runtime" yaml:"runtime"`
	RuntimeArgs []string `mapstructure:"runtime_args" yaml:"runtime_args"`
	EntryPoint  string   `mapstructure:"entry_point" yaml:"entry_point"`
	Ascents     []int    `mapstructure:"ascents" yaml:"ascents"`
	EnvFile     string   `mapstructure:"env_file" yaml:"env_file"`
	EnvFileMode string   `mapstructure:"env_file_mode" yaml:"env_file_mode"` // flag, inject or ignore
	Env         []string `mapstructure:"env" yaml:"env"`
}

type AuditConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Database  string `mapstructure:"database" yaml:"database"`   // Relative paths live in the data dir
	Retention string `mapstructure:"retention" yaml:"retention"` // Events older than this are pruned on run
}

type TokenConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	TTL        string `mapstructure:"ttl" yaml:"ttl"`
	SecretFile string `mapstructure:"secret_file" yaml:"secret_file"`
}

type ReadinessConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// Defaults returns the viper defaults keyed by their dotted config paths.
func Defaults() map[string]any {
	return map[string]any{
		"identifier":            DefaultIdentifier,
		"data_dir":              "",
		"log_file":              "backend.log",
		"ports.min":             3001,
		"ports.max":             3010,
		"backend.runtime":       "bun",
		"backend.runtime_args":  []string{"run"},
		"backend.entry_point":   "packages/backend/src/index.ts",
		"backend.ascents":       []int{3, 4, 5},
		"backend.env_file":      ".env",
		"backend.env_file_mode": "flag",
		"backend.env":           []string{},
		"audit.enabled":         true,
		"audit.database":        "sidecar.db",
		"audit.retention":       "720h",
		"token.enabled":         false,
		"token.ttl":             "24h",
		"token.secret_file":     "launch.key",
		"readiness.enabled":     false,
		"readiness.path":        "/",
		"readiness.timeout":     "30s",
		"logging.level":         "info",
		"logging.format":        "text",
	}
}

// flagKeys maps CLI flag names to config keys. Only flags present on the
// command are bound.
var flagKeys = map[string]string{
	"data-dir":      "data_dir",
	"min-port":      "ports.min",
	"max-port":      "ports.max",
	"runtime":       "backend.runtime",
	"entry-point":   "backend.entry_point",
	"env-file-mode": "backend.env_file_mode",
	"token":         "token.enabled",
	"wait-ready":    "readiness.enabled",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
}

// UserConfigPath returns the per-user location of sidecar.yaml.
func UserConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get user config directory: %w", err)
	}
	return filepath.Join(dir, configName, configName+".yaml"), nil
}

// Load reads configuration from defaults, sidecar.yaml, SIDECAR_* environment
// variables and the command's flags, in increasing order of precedence.
// configFile, when non-empty, replaces the config file search.
func Load(cmd *cobra.Command, configFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if userConfigPath, err := UserConfigPath(); err == nil {
			v.AddConfigPath(filepath.Dir(userConfigPath))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		flags := cmd.Flags()
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return c, err
			}
		}
		// --no-audit is a negation, so it cannot be bound directly.
		if f := flags.Lookup("no-audit"); f != nil && f.Changed && f.Value.String() == "true" {
			v.Set("audit.enabled", false)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to decode config: %w", err)
	}
	return c, nil
}

// Validate checks ranges and parses the duration fields.
func (c Config) Validate() error {
	if c.Identifier == "" && c.DataDir == "" {
		return errors.New("identifier or data_dir must be set")
	}
	if c.Ports.Min <= 0 || c.Ports.Max > 65535 || c.Ports.Min > c.Ports.Max {
		return fmt.Errorf("invalid port range %d-%d", c.Ports.Min, c.Ports.Max)
	}
	if c.Backend.Runtime == "" {
		return errors.New("backend.runtime must be set")
	}
	if c.Backend.EntryPoint == "" {
		return errors.New("backend.entry_point must be set")
	}
	if filepath.IsAbs(c.Backend.EntryPoint) || strings.HasPrefix(c.Backend.EntryPoint, "/") {
		return fmt.Errorf("backend.entry_point %q must be relative to the workspace root", c.Backend.EntryPoint)
	}
	for _, n := range c.Backend.Ascents {
		if n < 0 {
			return fmt.Errorf("backend.ascents must not be negative, got %d", n)
		}
	}
	switch c.Backend.EnvFileMode {
	case "", "flag", "inject", "ignore":
	default:
		return fmt.Errorf("unknown backend.env_file_mode %q", c.Backend.EnvFileMode)
	}
	for _, kv := range c.Backend.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("backend.env entry %q is not KEY=VALUE", kv)
		}
	}
	for key, value := range map[string]string{
		"audit.retention":   c.Audit.Retention,
		"token.ttl":         c.Token.TTL,
		"readiness.timeout": c.Readiness.Timeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// AuditRetention returns audit.retention; zero disables pruning.
func (c Config) AuditRetention() time.Duration { return parseDuration(c.Audit.Retention) }

// TokenTTL returns token.ttl.
func (c Config) TokenTTL() time.Duration { return parseDuration(c.Token.TTL) }

// ReadinessTimeout returns readiness.timeout.
func (c Config) ReadinessTimeout() time.Duration { return parseDuration(c.Readiness.Timeout) }

// ResolveDataDir returns data_dir if set, otherwise the platform's app data
// directory for Identifier: $XDG_DATA_HOME (or ~/.local/share) on Linux and
// the user config directory on macOS and Windows.
func (c Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return filepath.Abs(c.DataDir)
	}
	if c.Identifier == "" {
		return "", errors.New("no identifier to derive the app data dir from")
	}

	var base string
	switch runtime.GOOS {
	case "darwin", "windows":
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		base = dir
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); filepath.IsAbs(xdg) {
			base = xdg
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".local", "share")
		}
	}
	return filepath.Join(base, c.Identifier), nil
}

// InDataDir resolves p against the data dir unless it is already absolute.
func (c Config) InDataDir(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := c.ResolveDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// Dump renders the configuration as YAML.
func (c Config) Dump() ([]byte, error) {
	return yamlv3.Marshal(c)
}

// WriteConfigFile writes c to path, creating its directory.
func WriteConfigFile(c Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}
	return os.WriteFile(path, data, 0644)
}
