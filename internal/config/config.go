package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dshills/diffsum/internal/ratelimit"
)

// Config represents the diffsum configuration.
type Config struct {
	Provider        string          `mapstructure:"provider" yaml:"provider"`
	Model           string          `mapstructure:"model" yaml:"model"`
	MaxOutputTokens int             `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	LogLevel        string          `mapstructure:"log_level" yaml:"log_level"`
	TestMode        bool            `mapstructure:"test_mode" yaml:"test_mode"`
	RateLimit       RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Retry           RetryConfig     `mapstructure:"retry" yaml:"retry"`
	Privacy         PrivacyConfig   `mapstructure:"privacy" yaml:"privacy"`
}

// RateLimitConfig controls the token budget and where its state lives.
type RateLimitConfig struct {
	TPMLimit        int    `mapstructure:"tpm_limit" yaml:"tpm_limit"`
	Reserve         int    `mapstructure:"reserve" yaml:"reserve"`
	WindowSeconds   int    `mapstructure:"window_seconds" yaml:"window_seconds"`
	MaxSleepSeconds int    `mapstructure:"max_sleep_seconds" yaml:"max_sleep_seconds"`
	Backend         string `mapstructure:"backend" yaml:"backend"`
	StateFile       string `mapstructure:"state_file" yaml:"state_file,omitempty"`
	RedisAddr       string `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	RedisKey        string `mapstructure:"redis_key" yaml:"redis_key,omitempty"`
	LibSQLPath      string `mapstructure:"libsql_path" yaml:"libsql_path,omitempty"`
}

// RetryConfig controls the shrinking retry sequence.
type RetryConfig struct {
	Sizes          []int   `mapstructure:"sizes" yaml:"sizes"`
	BackoffSeconds float64 `mapstructure:"backoff_seconds" yaml:"backoff_seconds"`
}

// PrivacyConfig controls redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `mapstructure:"redact_secrets" yaml:"redact_secrets"`
	RedactPaths   []string `mapstructure:"redact_paths" yaml:"redact_paths,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:        "openai",
		Model:           "gpt-4o",
		MaxOutputTokens: 500,
		LogLevel:        "warn",
		RateLimit: RateLimitConfig{
			TPMLimit:        30000,
			Reserve:         2000,
			WindowSeconds:   60,
			MaxSleepSeconds: 90,
			Backend:         ratelimit.BackendFile,
			RedisKey:        ratelimit.DefaultRedisKey,
		},
		Retry: RetryConfig{
			Sizes:          []int{60000, 30000, 15000},
			BackoffSeconds: 1.0,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/.env.*", "**/*secrets*", "**/*.pem", "**/*.key"},
		},
	}
}

// envBindings maps config keys to environment variables, highest priority first.
var envBindings = map[string][]string{
	"provider":                    {"DIFFSUM_PROVIDER"},
	"model":                       {"DIFFSUM_MODEL", "OPENAI_MODEL"},
	"max_output_tokens":           {"DIFFSUM_MAX_OUTPUT_TOKENS", "OPENAI_MAX_OUTPUT_TOKENS"},
	"log_level":                   {"DIFFSUM_LOG_LEVEL"},
	"test_mode":                   {"DIFFSUM_TEST_MODE", "UNIT_TEST_MODE"},
	"ratelimit.tpm_limit":         {"DIFFSUM_TPM_LIMIT", "OPENAI_TPM_LIMIT"},
	"ratelimit.reserve":           {"DIFFSUM_TPM_RESERVE", "OPENAI_TPM_RESERVE"},
	"ratelimit.window_seconds":    {"DIFFSUM_TPM_WINDOW_SECONDS", "OPENAI_TPM_WINDOW_SECONDS"},
	"ratelimit.max_sleep_seconds": {"DIFFSUM_TPM_MAX_SLEEP_SECONDS", "OPENAI_TPM_MAX_SLEEP_SECONDS"},
	"ratelimit.backend":           {"DIFFSUM_TPM_BACKEND"},
	"ratelimit.state_file":        {"DIFFSUM_TPM_STATE_FILE", "OPENAI_TPM_STATE_FILE"},
	"ratelimit.redis_addr":        {"DIFFSUM_REDIS_ADDR"},
	"ratelimit.redis_key":         {"DIFFSUM_REDIS_KEY"},
	"ratelimit.libsql_path":       {"DIFFSUM_LIBSQL_PATH"},
	"retry.sizes":                 {"DIFFSUM_RETRY_SIZES", "OPENAI_RETRY_DIFF_CHAR_SIZES"},
	"retry.backoff_seconds":       {"DIFFSUM_RETRY_BACKOFF_SECONDS", "OPENAI_RETRY_BACKOFF_SECONDS"},
	"privacy.redact_secrets":      {"DIFFSUM_REDACT_SECRETS"},
	"privacy.redact_paths":        {"DIFFSUM_REDACT_PATHS"},
}

// Keys returns every settable config key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(envBindings))
	for k := range envBindings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// EnvNames returns the environment variables read for key.
func EnvNames(key string) []string {
	return slices.Clone(envBindings[key])
}

// ConfigDir returns the platform-appropriate config directory for diffsum.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "diffsum"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "diffsum"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "diffsum"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "diffsum"), nil
	default:
		return filepath.Join(home, ".config", "diffsum"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// An empty path uses ConfigPath and tolerates a missing file; an explicit path
// must exist. The overrides map comes from CLI flags and is keyed by config
// key (only non-empty values are applied).
func Load(path string, overrides map[string]string) (Config, error) {
	v := newViper()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	if err := readFile(v, path, explicit); err != nil {
		return Config{}, err
	}

	for key, value := range overrides {
		if value == "" {
			continue
		}
		if _, ok := envBindings[key]; !ok {
			return Config{}, fmt.Errorf("unknown config key: %s", key)
		}
		v.Set(key, value)
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile loads only defaults and the config file at path, ignoring the
// environment. A missing file yields the defaults.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := readFile(v, path, false); err != nil {
		return Config{}, err
	}
	return decode(v)
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// SetField sets a single config field by key name. Returns error if the key is
// unknown or the value does not fit the field.
func SetField(cfg *Config, key, value string) error {
	if _, ok := envBindings[key]; !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}

	v := viper.New()
	for k, val := range toMap(*cfg) {
		v.SetDefault(k, val)
	}
	v.Set(key, value)

	updated, err := decode(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	*cfg = updated
	return nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("provider must be openai or anthropic, got %q", c.Provider)
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("model must not be empty")
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("max_output_tokens must be positive, got %d", c.MaxOutputTokens)
	}
	if c.RateLimit.TPMLimit <= 0 {
		return fmt.Errorf("ratelimit.tpm_limit must be positive, got %d", c.RateLimit.TPMLimit)
	}
	if c.RateLimit.Reserve < 0 {
		return fmt.Errorf("ratelimit.reserve must not be negative, got %d", c.RateLimit.Reserve)
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("ratelimit.window_seconds must be positive, got %d", c.RateLimit.WindowSeconds)
	}
	if c.RateLimit.MaxSleepSeconds < 0 {
		return fmt.Errorf("ratelimit.max_sleep_seconds must not be negative, got %d", c.RateLimit.MaxSleepSeconds)
	}
	switch strings.ToLower(c.RateLimit.Backend) {
	case "", ratelimit.BackendFile, ratelimit.BackendRedis, ratelimit.BackendLibSQL:
	default:
		return fmt.Errorf("unknown rate limit backend: %s", c.RateLimit.Backend)
	}
	if c.Retry.BackoffSeconds < 0 {
		return fmt.Errorf("retry.backoff_seconds must not be negative, got %g", c.Retry.BackoffSeconds)
	}
	return nil
}

// Limits returns the limiter budget.
func (c Config) Limits() ratelimit.Config {
	return ratelimit.Config{
		TPMLimit: c.RateLimit.TPMLimit,
		Reserve:  c.RateLimit.Reserve,
		Window:   time.Duration(c.RateLimit.WindowSeconds) * time.Second,
		MaxSleep: time.Duration(c.RateLimit.MaxSleepSeconds) * time.Second,
	}
}

// Store returns the state backend settings.
func (c Config) Store() ratelimit.StoreConfig {
	return ratelimit.StoreConfig{
		Backend:    c.RateLimit.Backend,
		StateFile:  c.RateLimit.StateFile,
		RedisAddr:  c.RateLimit.RedisAddr,
		RedisKey:   c.RateLimit.RedisKey,
		LibSQLPath: c.RateLimit.LibSQLPath,
	}
}

// Backoff returns the pause between retryable attempts.
func (c Config) Backoff() time.Duration {
	return time.Duration(c.Retry.BackoffSeconds * float64(time.Second))
}

// ParseSizes parses a comma-separated list of integers, skipping empty and
// malformed parts.
func ParseSizes(s string) []int {
	sizes := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		sizes = append(sizes, n)
	}
	return sizes
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	return v
}

func setDefaults(v *viper.Viper) {
	for key, value := range toMap(Default()) {
		v.SetDefault(key, value)
	}
}

func readFile(v *viper.Viper, path string, mustExist bool) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !mustExist {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func decode(v *viper.Viper) (Config, error) {
	if raw, ok := v.Get("test_mode").(string); ok {
		v.Set("test_mode", lenientBool(raw))
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		lenientIntSliceHook(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// lenientBool reports whether s spells true; unrecognized values are false.
func lenientBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

// lenientIntSliceHook decodes "60000, 30000,x" style strings into []int.
func lenientIntSliceHook() mapstructure.DecodeHookFuncType {
	intSlice := reflect.TypeOf([]int(nil))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != intSlice {
			return data, nil
		}
		return ParseSizes(data.(string)), nil
	}
}

// toMap flattens cfg into dotted viper keys.
func toMap(cfg Config) map[string]any {
	return map[string]any{
		"provider":                    cfg.Provider,
		"model":                       cfg.Model,
		"max_output_tokens":           cfg.MaxOutputTokens,
		"log_level":                   cfg.LogLevel,
		"test_mode":                   cfg.TestMode,
		"ratelimit.tpm_limit":         cfg.RateLimit.TPMLimit,
		"ratelimit.reserve":           cfg.RateLimit.Reserve,
		"ratelimit.window_seconds":    cfg.RateLimit.WindowSeconds,
		"ratelimit.max_sleep_seconds": cfg.RateLimit.MaxSleepSeconds,
		"ratelimit.backend":           cfg.RateLimit.Backend,
		"ratelimit.state_file":        cfg.RateLimit.StateFile,
		"ratelimit.redis_addr":        cfg.RateLimit.RedisAddr,
		"ratelimit.redis_key":         cfg.RateLimit.RedisKey,
		"ratelimit.libsql_path":       cfg.RateLimit.LibSQLPath,
		"retry.sizes":                 slices.Clone(cfg.Retry.Sizes),
		"retry.backoff_seconds":       cfg.Retry.BackoffSeconds,
		"privacy.redact_secrets":      cfg.Privacy.RedactSecrets,
		"privacy.redact_paths":        slices.Clone(cfg.Privacy.RedactPaths),
	}
}
