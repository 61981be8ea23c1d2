package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/iattom/internal/logger"
	"github.com/harun/iattom/pkg/delegate"
	"github.com/harun/iattom/pkg/dispatch"
	"github.com/harun/iattom/pkg/session"
	"github.com/harun/iattom/pkg/trigger"
)

// Config represents the main IAttom configuration
type Config struct {
	// WhatsApp Cloud API
	WhatsApp WhatsAppConfig `json:"whatsapp" mapstructure:"whatsapp"`

	// Webhook HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Session persistence
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Dialogue behaviour
	Dispatch DispatchConfig `json:"dispatch" mapstructure:"dispatch"`

	// Trigger categories, order and keywords
	Triggers trigger.Policy `json:"triggers" mapstructure:"triggers"`

	// Delegate providers
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Image generation
	Images ImagesConfig `json:"images" mapstructure:"images"`

	// Generated documents
	Artifacts ArtifactsConfig `json:"artifacts" mapstructure:"artifacts"`

	// Knowledge, search and link summaries
	Research ResearchConfig `json:"research" mapstructure:"research"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// WhatsAppConfig holds Cloud API credentials
type WhatsAppConfig struct {
	AccessToken   string `json:"access_token" mapstructure:"access_token"`
	PhoneNumberID string `json:"phone_number_id" mapstructure:"phone_number_id"`
	VerifyToken   string `json:"verify_token" mapstructure:"verify_token"`
	AppSecret     string `json:"app_secret" mapstructure:"app_secret"` // enables payload signature checks
	APIVersion    string `json:"api_version" mapstructure:"api_version"`
	BaseURL       string `json:"base_url,omitempty" mapstructure:"base_url"`
}

// ServerConfig holds webhook server settings
type ServerConfig struct {
	Host                   string `json:"host" mapstructure:"host"`
	Port                   int    `json:"port" mapstructure:"port"`
	RateLimitPerMinute     int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	MaxBodyBytes           int64  `json:"max_body_bytes" mapstructure:"max_body_bytes"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
	MaxConcurrentLanes     int    `json:"max_concurrent_lanes" mapstructure:"max_concurrent_lanes"`
}

// SessionConfig selects the session store
type SessionConfig struct {
	Backend   string `json:"backend" mapstructure:"backend"` // memory, sqlite
	Path      string `json:"path" mapstructure:"path"`
	TTLDays   int    `json:"ttl_days" mapstructure:"ttl_days"`
	SweepSpec string `json:"sweep_spec" mapstructure:"sweep_spec"`
}

// DispatchConfig tunes the dialogue controller
type DispatchConfig struct {
	CheckinHours    int    `json:"checkin_hours" mapstructure:"checkin_hours"`
	FirstContact    string `json:"first_contact" mapstructure:"first_contact"` // short_circuit, continue
	Persona         string `json:"persona" mapstructure:"persona"`
	SignOff         string `json:"sign_off" mapstructure:"sign_off"`
	DedupTTLHours   int    `json:"dedup_ttl_hours" mapstructure:"dedup_ttl_hours"`
	DedupMaxEntries int    `json:"dedup_max_entries" mapstructure:"dedup_max_entries"`
}

// AIConfig holds delegate provider profiles, tried in priority order
type AIConfig struct {
	Profiles       []delegate.Profile `json:"profiles" mapstructure:"profiles"`
	TimeoutSeconds int                `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ImagesConfig configures the OpenAI Images API
type ImagesConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	Model   string `json:"model" mapstructure:"model"`
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url"`
}

// ArtifactsConfig configures where generated files live and how they are reached
type ArtifactsConfig struct {
	Dir           string `json:"dir" mapstructure:"dir"`
	PublicBaseURL string `json:"public_base_url" mapstructure:"public_base_url"`
}

// ResearchConfig configures the research commands
type ResearchConfig struct {
	Enabled           bool   `json:"enabled" mapstructure:"enabled"`
	WikipediaLanguage string `json:"wikipedia_language" mapstructure:"wikipedia_language"`
	SearchResults     int    `json:"search_results" mapstructure:"search_results"`
	TimeoutSeconds    int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"`
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`
	Compress  bool   `json:"compress" mapstructure:"compress"`
}

// TracingConfig toggles OpenTelemetry spans
type TracingConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		WhatsApp: WhatsAppConfig{
			APIVersion: "v20.0",
		},
		Server: ServerConfig{
			Port:                   8080,
			RateLimitPerMinute:     600,
			MaxBodyBytes:           1 << 20,
			ShutdownTimeoutSeconds: 30,
			MaxConcurrentLanes:     32,
		},
		Session: SessionConfig{
			Backend:   session.BackendMemory,
			TTLDays:   30,
			SweepSpec: "@hourly",
		},
		Dispatch: DispatchConfig{
			CheckinHours:    6,
			FirstContact:    string(dispatch.FirstContactShortCircuit),
			Persona:         dispatch.DefaultPersona,
			SignOff:         dispatch.DefaultSignOff,
			DedupTTLHours:   24,
			DedupMaxEntries: 10000,
		},
		Triggers: trigger.DefaultPolicy(),
		AI: AIConfig{
			Profiles:       []delegate.Profile{},
			TimeoutSeconds: 20,
		},
		Images: ImagesConfig{
			Model: "dall-e-3",
		},
		Research: ResearchConfig{
			Enabled:           true,
			WikipediaLanguage: "pt",
			SearchResults:     3,
			TimeoutSeconds:    15,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
		},
	}
}

// LoggerConfig converts the logging section for logger.New
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:     c.Logging.Level,
		File:      c.Logging.File,
		Console:   c.Logging.Console,
		Pretty:    c.Logging.Pretty,
		Redaction: c.Logging.Redaction,
		MaxSize:   c.Logging.MaxSize,
		MaxAge:    c.Logging.MaxAge,
		Compress:  c.Logging.Compress,
	}
}

// CheckinInterval is the periodic check-in spacing
func (c *Config) CheckinInterval() time.Duration {
	return time.Duration(c.Dispatch.CheckinHours) * time.Hour
}

// Redacted returns a copy with every credential masked
func (c *Config) Redacted() *Config {
	out := *c
	out.WhatsApp.AccessToken = mask(c.WhatsApp.AccessToken)
	out.WhatsApp.VerifyToken = mask(c.WhatsApp.VerifyToken)
	out.WhatsApp.AppSecret = mask(c.WhatsApp.AppSecret)
	out.Images.APIKey = mask(c.Images.APIKey)

	out.AI.Profiles = make([]delegate.Profile, len(c.AI.Profiles))
	for i, p := range c.AI.Profiles {
		p.APIKey = mask(p.APIKey)
		out.AI.Profiles[i] = p
	}
	return &out
}

func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "****"
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// Validate checks the settings the server cannot start without. Missing
// credentials are not errors: the affected features answer with an
// explanation instead. Use Validator for those warnings.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate_limit_per_minute must be positive")
	}
	if c.Server.MaxConcurrentLanes <= 0 {
		return fmt.Errorf("max_concurrent_lanes must be positive")
	}

	switch c.Session.Backend {
	case "", session.BackendMemory:
	case session.BackendSQLite:
		if c.Session.Path == "" {
			return fmt.Errorf("session path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid session backend: %s (must be: memory, sqlite)", c.Session.Backend)
	}
	if c.Session.TTLDays <= 0 {
		return fmt.Errorf("session ttl_days must be positive")
	}

	if c.Dispatch.CheckinHours <= 0 {
		return fmt.Errorf("checkin_hours must be positive")
	}
	switch dispatch.FirstContactPolicy(c.Dispatch.FirstContact) {
	case dispatch.FirstContactShortCircuit, dispatch.FirstContactContinue:
	default:
		return fmt.Errorf("invalid first_contact policy: %s (must be: short_circuit, continue)", c.Dispatch.FirstContact)
	}

	if err := c.Triggers.Validate(); err != nil {
		return fmt.Errorf("invalid triggers: %w", err)
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider != delegate.ProviderOpenAI && profile.Provider != delegate.ProviderAnthropic {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: openai, anthropic)", profile.ID, profile.Provider)
		}
	}

	return nil
}
