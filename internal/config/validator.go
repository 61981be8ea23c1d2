package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/harun/iattom/pkg/delegate"
)

var (
	graphTokenPattern    = regexp.MustCompile(`^EAA[A-Za-z0-9]+$`)
	phoneNumberIDPattern = regexp.MustCompile(`^\d{6,20}$`)
)

// Validator checks individual values and reports configuration that will
// leave features degraded. Its findings are warnings, not fatal errors.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case delegate.ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case delegate.ProviderOpenAI:
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateAccessToken validates a Graph API access token
func (v *Validator) ValidateAccessToken(token string) error {
	if token == "" {
		return fmt.Errorf("WhatsApp access token cannot be empty")
	}
	if !graphTokenPattern.MatchString(token) {
		return fmt.Errorf("invalid WhatsApp access token format (should start with EAA)")
	}
	return nil
}

// ValidatePhoneNumberID validates a Cloud API phone number id
func (v *Validator) ValidatePhoneNumberID(id string) error {
	if id == "" {
		return fmt.Errorf("phone number ID cannot be empty")
	}
	if !phoneNumberIDPattern.MatchString(id) {
		return fmt.Errorf("invalid phone number ID %q (digits only)", id)
	}
	return nil
}

// ValidateBaseURL validates the public base URL documents are served from
func (v *Validator) ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid public base URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("public base URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("public base URL has no host")
	}
	return nil
}

// ValidateLogLevel validates a log level
func (v *Validator) ValidateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level: %s (must be: debug, info, warn, error)", level)
	}
}

// ValidateConfig reports every degraded feature in cfg
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if cfg.WhatsApp.AccessToken == "" || cfg.WhatsApp.PhoneNumberID == "" {
		errs = append(errs, fmt.Errorf("WhatsApp credentials missing: replies will not be sent"))
	} else {
		if err := v.ValidateAccessToken(cfg.WhatsApp.AccessToken); err != nil {
			errs = append(errs, err)
		}
		if err := v.ValidatePhoneNumberID(cfg.WhatsApp.PhoneNumberID); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.WhatsApp.VerifyToken == "" {
		errs = append(errs, fmt.Errorf("verify token missing: webhook verification will be refused"))
	}
	if cfg.WhatsApp.AppSecret == "" {
		errs = append(errs, fmt.Errorf("app secret missing: payload signatures will not be checked"))
	}

	usable := 0
	for _, p := range cfg.AI.Profiles {
		if p.APIKey == "" {
			continue
		}
		if err := v.ValidateAPIKey(p.APIKey, p.Provider); err != nil {
			errs = append(errs, fmt.Errorf("AI profile %s: %w", p.ID, err))
			continue
		}
		usable++
	}
	if usable == 0 {
		errs = append(errs, fmt.Errorf("no AI profile configured: open questions get the fallback reply"))
	}
	if cfg.Images.APIKey == "" {
		errs = append(errs, fmt.Errorf("images API key missing: img: is unavailable"))
	}

	if cfg.Artifacts.PublicBaseURL == "" {
		errs = append(errs, fmt.Errorf("public base URL missing: pdf: and docx: are unavailable"))
	} else if err := v.ValidateBaseURL(cfg.Artifacts.PublicBaseURL); err != nil {
		errs = append(errs, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errs
}
