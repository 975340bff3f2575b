// Package config provides centralized configuration loading for resourcectl using spf13/viper.
// All config access must go through this package.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Exported configuration keys shared by more than one package.
// Package-specific keys live next to the code that reads them.
const (
	LogLevelKey = "log_level"
	LogJSONKey  = "log_json"

	APIBaseURLKey = "api_base_url"
	CDNBaseURLKey = "cdn_base_url"
	APITokenKey   = "api.token"
)

// Config holds the configuration state and provides thread-safe access
type Config struct {
	viper       *viper.Viper
	initialized bool
	initOnce    sync.Once
	mu          sync.RWMutex
	configPath  string
	searchPaths []string
}

var (
	instance          *Config
	instanceOnce      sync.Once
	requiredKeys      []string
	requiredKeysMutex sync.Mutex
	// MissingKeys holds the keys reported missing by the last CheckRequiredKeys call.
	MissingKeys []string
)

// defaults is applied to every freshly loaded viper instance.
var defaults = map[string]interface{}{
	LogLevelKey:   "INFO",
	LogJSONKey:    false,
	APIBaseURLKey: "http://localhost:3000",
	CDNBaseURLKey: "",
	APITokenKey:   "",

	"probe.timeout":           "10s",
	"probe.concurrency":       10,
	"probe.consistency_delay": "2s",
	"probe.retries":           0,

	"scoring.availability_weight": 0.3,
	"scoring.consistency_weight":  0.2,
	"scoring.cache_weight":        0.2,
	"scoring.broken_weight":       0.3,

	"report.dir":          "reports",
	"report.save":         true,
	"report.backup_count": 5,
	"report.no_color":     false,

	"storage.backend":         "",
	"storage.public_base_url": "",
	"storage.fs.root":         "data/objects",
	"storage.s3.use_ssl":      true,

	"cdn.provider":      "",
	"cdn.dns_resolvers": []string{"8.8.8.8:53", "1.1.1.1:53"},

	"registry.path": "data/resources.db",

	"server.host":          "0.0.0.0",
	"server.port":          8080,
	"server.read_timeout":  "15s",
	"server.write_timeout": "60s",
	"server.idle_timeout":  "60s",

	"schedule.enabled":  false,
	"schedule.interval": "1h",
}

// getInstance returns the singleton config instance
func getInstance() *Config {
	instanceOnce.Do(func() {
		instance = &Config{
			searchPaths: []string{"./configs", os.ExpandEnv("$HOME/.resourcectl")},
		}
	})
	return instance
}

// InitConfig explicitly initializes the configuration with optional parameters
func InitConfig(opts ...ConfigOption) error {
	cfg := getInstance()
	return cfg.init(opts...)
}

// FirstTimeInit loads configuration from configFile when given, otherwise from
// the default search paths, and validates registered required keys.
func FirstTimeInit(configFile string) error {
	var opts []ConfigOption
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return fmt.Errorf("config file %s: %w", configFile, err)
		}
		opts = append(opts, WithConfigPath(configFile))
	}

	if err := InitConfig(opts...); err != nil {
		return err
	}
	return CheckRequiredKeys()
}

// ConfigOption allows for functional options pattern
type ConfigOption func(*Config)

// WithConfigPath sets a specific config file path
// This will override any search paths - use either this OR search paths, not both
func WithConfigPath(path string) ConfigOption {
	return func(c *Config) {
		c.configPath = path
		c.searchPaths = nil
	}
}

// WithOnlySearchPaths replaces the default search paths entirely
// Only used if no explicit config path is set
func WithOnlySearchPaths(paths ...string) ConfigOption {
	return func(c *Config) {
		if c.configPath == "" {
			c.searchPaths = paths
		}
	}
}

// init initializes the config instance with the provided options
func (c *Config) init(opts ...ConfigOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	c.initOnce.Do(func() {
		for _, opt := range opts {
			opt(c)
		}

		c.viper, err = c.loadConfig()
		if err == nil {
			c.initialized = true
		}
	})
	return err
}

// loadConfig initializes viper and loads config from file and env.
// Environment variables override file values; nested keys map to
// upper-case names with dots replaced by underscores (probe.timeout -> PROBE_TIMEOUT).
func (c *Config) loadConfig() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("config")

	if c.configPath != "" {
		v.SetConfigFile(c.configPath)
	} else {
		for _, path := range c.searchPaths {
			v.AddConfigPath(path)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		if os.IsNotExist(err) {
			return v, nil
		}
		return v, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

// ensureInitialized ensures config is initialized (lazy loading fallback)
func (c *Config) ensureInitialized() error {
	c.mu.RLock()
	if c.initialized {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	return c.init()
}

// read loads the config on first use and applies get to the current viper
// instance, returning the zero value when loading failed.
func read[T any](key string, get func(*viper.Viper, string) T) T {
	cfg := getInstance()
	_ = cfg.ensureInitialized()
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	var zero T
	if cfg.viper == nil {
		return zero
	}
	return get(cfg.viper, key)
}

func GetString(key string) string { return read(key, (*viper.Viper).GetString) }

func GetInt(key string) int { return read(key, (*viper.Viper).GetInt) }

func GetFloat64(key string) float64 { return read(key, (*viper.Viper).GetFloat64) }

func GetBool(key string) bool { return read(key, (*viper.Viper).GetBool) }

func GetStringSlice(key string) []string { return read(key, (*viper.Viper).GetStringSlice) }

func GetDuration(key string) time.Duration { return read(key, (*viper.Viper).GetDuration) }

// RegisterRequiredKey adds a key to the list of required configuration items.
// This should be called during the init() phase of packages that require specific configurations.
// It only registers the key without loading config - use CheckRequiredKeys() to validate.
func RegisterRequiredKey(key string) {
	requiredKeysMutex.Lock()
	defer requiredKeysMutex.Unlock()
	for _, k := range requiredKeys {
		if k == key {
			return
		}
	}
	requiredKeys = append(requiredKeys, key)
}

// CheckRequiredKeys validates that all registered required keys are present in the configuration.
func CheckRequiredKeys() error {
	requiredKeysMutex.Lock()
	defer requiredKeysMutex.Unlock()

	MissingKeys = nil
	for _, key := range requiredKeys {
		if !HasKey(key) {
			MissingKeys = append(MissingKeys, key)
		}
	}

	if len(MissingKeys) > 0 {
		return fmt.Errorf("missing required configuration keys: %s", strings.Join(MissingKeys, ", "))
	}
	return nil
}

// HasKey reports whether key is set explicitly, by environment or by default.
func HasKey(key string) bool { return read(key, (*viper.Viper).IsSet) }

// SetForTest sets a configuration value for testing purposes only.
func SetForTest(key string, value interface{}) {
	cfg := getInstance()
	_ = cfg.ensureInitialized()
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	if cfg.viper != nil {
		cfg.viper.Set(key, value)
	}
}

// ResetForTest resets the config singleton for test use only.
func ResetForTest() {
	instanceOnce = sync.Once{}
	instance = nil
	requiredKeysMutex.Lock()
	requiredKeys = nil
	MissingKeys = nil
	requiredKeysMutex.Unlock()
}
