// Package config loads sqlshift settings from config.yaml, SQLSHIFT_* env vars and flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/modoterra/sqlshift/pkg/core"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "SQLSHIFT"

	KeyAPIURL             = "api_url"
	KeyTimeout            = "timeout"
	KeyStateDir           = "state_dir"
	KeyExpiryInterval     = "expiry.check_interval"
	KeyExpiryWarnBefore   = "expiry.warn_before"
	KeyConvertMinDuration = "convert.min_duration"
	KeyDialectsEnabled    = "dialects.enabled"
	KeyLogsPageSize       = "logs.page_size"
	KeyLogLevel           = "log.level"
	KeyLogSink            = "log.sink"
	KeyLogFile            = "log.file"
)

const defaultConfigYAML = `# sqlshift configuration

# Base URL of the SQL migration service (env: SQLSHIFT_API_URL)
api_url: http://localhost:8080

# Fixed per-request timeout
timeout: 10s

expiry:
  check_interval: 1m
  warn_before: 10m

dialects:
  enabled: [sqlserver]

logs:
  page_size: 10

log:
  level: info
  sink: file
`

// Config is the resolved client configuration.
type Config struct {
	APIURL             string
	Timeout            time.Duration
	ConfigDir          string
	StateDir           string
	ExpiryInterval     time.Duration
	ExpiryWarnBefore   time.Duration
	ConvertMinDuration time.Duration
	EnabledDialects    []core.Dialect
	LogsPageSize       int
	LogLevel           string
	LogSink            string
	LogFile            string
}

// StatePath is the persisted session/theme file.
func (c *Config) StatePath() string {
	return filepath.Join(c.StateDir, "state.yaml")
}

// Load reads config.yaml from configDir, creating a default one on first run.
// A missing config.yaml is not an error. v may carry flag bindings; nil means a fresh instance.
func Load(v *viper.Viper, configDir string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	if configDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	// expiry.warn_before is read from SQLSHIFT_EXPIRY_WARN_BEFORE.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyAPIURL, envPrefix+"_API_URL")
	_ = v.BindEnv(KeyStateDir, envPrefix+"_STATE_DIR")

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		APIURL:             v.GetString(KeyAPIURL),
		Timeout:            v.GetDuration(KeyTimeout),
		ConfigDir:          configDir,
		StateDir:           v.GetString(KeyStateDir),
		ExpiryInterval:     v.GetDuration(KeyExpiryInterval),
		ExpiryWarnBefore:   v.GetDuration(KeyExpiryWarnBefore),
		ConvertMinDuration: v.GetDuration(KeyConvertMinDuration),
		LogsPageSize:       v.GetInt(KeyLogsPageSize),
		LogLevel:           v.GetString(KeyLogLevel),
		LogSink:            v.GetString(KeyLogSink),
		LogFile:            v.GetString(KeyLogFile),
	}
	if cfg.StateDir == "" {
		dir, err := DefaultStateDir()
		if err != nil {
			return nil, err
		}
		cfg.StateDir = dir
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.StateDir, "sqlshift.log")
	}

	for _, name := range v.GetStringSlice(KeyDialectsEnabled) {
		d, err := core.ParseDialect(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyDialectsEnabled, err)
		}
		cfg.EnabledDialects = append(cfg.EnabledDialects, d)
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, "http://localhost:8080")
	v.SetDefault(KeyTimeout, 10*time.Second)
	v.SetDefault(KeyExpiryInterval, time.Minute)
	v.SetDefault(KeyExpiryWarnBefore, 10*time.Minute)
	v.SetDefault(KeyConvertMinDuration, 750*time.Millisecond)
	v.SetDefault(KeyDialectsEnabled, []string{string(core.DialectSQLServer)})
	v.SetDefault(KeyLogsPageSize, 10)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogSink, "file")
}

// Validate checks the configuration for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", KeyAPIURL, c.APIURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("%s: unsupported scheme %q", KeyAPIURL, u.Scheme))
	}

	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyTimeout))
	}
	if c.ExpiryInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyExpiryInterval))
	}
	if c.ExpiryWarnBefore < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyExpiryWarnBefore))
	}
	if c.ConvertMinDuration < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyConvertMinDuration))
	}
	if len(c.EnabledDialects) == 0 {
		errs = append(errs, fmt.Errorf("%s must list at least one dialect", KeyDialectsEnabled))
	}
	if c.LogsPageSize < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyLogsPageSize))
	}

	switch c.LogSink {
	case "file", "journal", "stderr":
	default:
		errs = append(errs, fmt.Errorf("%s must be file, journal, or stderr; got %q", KeyLogSink, c.LogSink))
	}

	return errs
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/sqlshift (or the platform equivalent).
func DefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config directory: %w", err)
	}
	return filepath.Join(dir, "sqlshift"), nil
}

// DefaultStateDir returns $XDG_STATE_HOME/sqlshift, falling back to ~/.local/state/sqlshift.
func DefaultStateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "sqlshift"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "sqlshift"), nil
}

func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// DialectEnabled reports whether d is selectable under this configuration.
func (c *Config) DialectEnabled(d core.Dialect) bool {
	for _, e := range c.EnabledDialects {
		if e == d {
			return true
		}
	}
	return false
}
