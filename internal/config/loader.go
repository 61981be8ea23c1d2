package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/harun/iattom/pkg/delegate"
)

const (
	envPrefix      = "IATTOM"
	configDirName  = ".iattom"
	configFileName = "iattom.json"
)

// Loader handles configuration loading
type Loader struct {
	configPath string

	mu sync.Mutex
	v  *viper.Viper
}

// NewLoader creates a new config loader. An empty path selects
// $HOME/.iattom/iattom.json.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load resolves the configuration: defaults, then the config file if it
// exists, then IATTOM_* variables, then the legacy unprefixed variables.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.path()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := setDefaults(v, DefaultConfig()); err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	l.mu.Lock()
	l.v = v
	l.mu.Unlock()

	return decode(v)
}

// setDefaults registers every field of cfg as a viper default so nested keys
// are known to AutomaticEnv and merge with partial files.
func setDefaults(v *viper.Viper, cfg *Config) error {
	tree, err := toTree(cfg)
	if err != nil {
		return err
	}
	for key, value := range tree {
		v.SetDefault(key, value)
	}
	return nil
}

// toTree converts cfg to the generic map viper stores, keyed by json tags
func toTree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return tree, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnv(cfg, os.LookupEnv)

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, configDirName)
	}
	if cfg.Session.Path == "" {
		cfg.Session.Path = filepath.Join(cfg.DataDir, "sessions.db")
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = filepath.Join(cfg.DataDir, "files")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "iattom.log")
	}

	return cfg, nil
}

// applyEnv applies the unprefixed variables the bot has always accepted.
// Malformed numbers are ignored and the previous value kept.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if val, ok := lookup(name); ok && val != "" {
			*dst = val
		}
	}
	num := func(name string, dst *int) {
		if val, ok := lookup(name); ok && val != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				*dst = n
			}
		}
	}

	str("ACCESS_TOKEN", &cfg.WhatsApp.AccessToken)
	str("PHONE_NUMBER_ID", &cfg.WhatsApp.PhoneNumberID)
	str("VERIFY_TOKEN", &cfg.WhatsApp.VerifyToken)
	str("APP_SECRET", &cfg.WhatsApp.AppSecret)
	str("PUBLIC_BASE_URL", &cfg.Artifacts.PublicBaseURL)
	str("SESSION_STORE", &cfg.Session.Backend)
	str("SESSION_DB_PATH", &cfg.Session.Path)
	num("EMO_CHECKIN_HOURS", &cfg.Dispatch.CheckinHours)
	num("PORT", &cfg.Server.Port)

	if key, ok := lookup("OPENAI_API_KEY"); ok && key != "" {
		setProfileKey(cfg, delegate.ProviderOpenAI, key, "gpt-4o-mini", 1)
		if cfg.Images.APIKey == "" {
			cfg.Images.APIKey = key
		}
	}
	if key, ok := lookup("ANTHROPIC_API_KEY"); ok && key != "" {
		setProfileKey(cfg, delegate.ProviderAnthropic, key, "claude-3-5-haiku-latest", 2)
	}
}

// setProfileKey overrides the key of every profile for provider, adding one
// when the file declares none.
func setProfileKey(cfg *Config, provider, key, model string, priority int) {
	found := false
	for i := range cfg.AI.Profiles {
		if cfg.AI.Profiles[i].Provider == provider {
			cfg.AI.Profiles[i].APIKey = key
			found = true
		}
	}
	if found {
		return
	}
	cfg.AI.Profiles = append(cfg.AI.Profiles, delegate.Profile{
		ID:          provider,
		Provider:    provider,
		APIKey:      key,
		Model:       model,
		MaxTokens:   600,
		Temperature: 0.7,
		Priority:    priority,
	})
}

// Watch re-reads the file on every change and hands the new config to fn.
// Load must have succeeded first and the file must exist. Configs that fail
// to decode or validate are logged and skipped.
func (l *Loader) Watch(logger zerolog.Logger, fn func(*Config)) error {
	l.mu.Lock()
	v := l.v
	l.mu.Unlock()
	if v == nil {
		return fmt.Errorf("config not loaded")
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err != nil {
		return fmt.Errorf("cannot watch config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Error().Err(err).Str("file", e.Name).Msg("Failed to reload config")
			return
		}
		if err := cfg.Validate(); err != nil {
			logger.Error().Err(err).Str("file", e.Name).Msg("Ignoring invalid config")
			return
		}
		logger.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("Config reloaded")
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}

// Save writes cfg to the config file
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	tree, err := toTree(cfg)
	if err != nil {
		return err
	}
	for key, value := range tree {
		v.Set(key, value)
	}

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	// the file holds credentials
	if err := os.Chmod(configPath, 0600); err != nil {
		return fmt.Errorf("failed to restrict config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	path, err := l.path()
	if err != nil {
		return ""
	}
	return path
}

func (l *Loader) path() (string, error) {
	if l.configPath != "" {
		return l.configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
