package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/harun/iattom/pkg/delegate"
	"github.com/harun/iattom/pkg/session"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard on stdin and stdout
func NewWizard() *Wizard {
	return NewWizardIO(os.Stdin, os.Stdout)
}

// NewWizardIO creates a wizard on the given streams
func NewWizardIO(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run asks for every credential, starting from base (or the defaults when
// base is nil). Pressing Enter keeps the current value.
func (w *Wizard) Run(base *Config) (*Config, error) {
	cfg := DefaultConfig()
	if base != nil {
		copied := *base
		copied.AI.Profiles = append([]delegate.Profile(nil), base.AI.Profiles...)
		cfg = &copied
	}
	validator := NewValidator()

	fmt.Fprintln(w.out, "=== IAttom Configuration Wizard ===")
	fmt.Fprintln(w.out)

	fmt.Fprintln(w.out, "WhatsApp Cloud API:")
	var err error
	if cfg.WhatsApp.AccessToken, err = w.ask("Access token", cfg.WhatsApp.AccessToken, true, validator.ValidateAccessToken); err != nil {
		return nil, err
	}
	if cfg.WhatsApp.PhoneNumberID, err = w.ask("Phone number ID", cfg.WhatsApp.PhoneNumberID, false, validator.ValidatePhoneNumberID); err != nil {
		return nil, err
	}
	if cfg.WhatsApp.VerifyToken, err = w.ask("Webhook verify token", cfg.WhatsApp.VerifyToken, true, nil); err != nil {
		return nil, err
	}
	if cfg.WhatsApp.AppSecret, err = w.ask("App secret (signature check)", cfg.WhatsApp.AppSecret, true, nil); err != nil {
		return nil, err
	}
	fmt.Fprintln(w.out)

	fmt.Fprintln(w.out, "AI providers (press Enter to skip):")
	openaiKey, err := w.ask("OpenAI API key", profileKey(cfg, delegate.ProviderOpenAI), true, func(s string) error {
		return validator.ValidateAPIKey(s, delegate.ProviderOpenAI)
	})
	if err != nil {
		return nil, err
	}
	if openaiKey != "" {
		setProfileKey(cfg, delegate.ProviderOpenAI, openaiKey, "gpt-4o-mini", 1)
		if cfg.Images.APIKey == "" {
			cfg.Images.APIKey = openaiKey
		}
	}
	anthropicKey, err := w.ask("Anthropic API key", profileKey(cfg, delegate.ProviderAnthropic), true, func(s string) error {
		return validator.ValidateAPIKey(s, delegate.ProviderAnthropic)
	})
	if err != nil {
		return nil, err
	}
	if anthropicKey != "" {
		setProfileKey(cfg, delegate.ProviderAnthropic, anthropicKey, "claude-3-5-haiku-latest", 2)
	}
	fmt.Fprintln(w.out)

	fmt.Fprintln(w.out, "Documents:")
	if cfg.Artifacts.PublicBaseURL, err = w.ask("Public base URL", cfg.Artifacts.PublicBaseURL, false, validator.ValidateBaseURL); err != nil {
		return nil, err
	}
	fmt.Fprintln(w.out)

	fmt.Fprintln(w.out, "Sessions:")
	backend, err := w.ask("Store (memory/sqlite)", cfg.Session.Backend, false, func(s string) error {
		if s != session.BackendMemory && s != session.BackendSQLite {
			return fmt.Errorf("store must be memory or sqlite")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cfg.Session.Backend = backend
	fmt.Fprintln(w.out)

	fmt.Fprintln(w.out, "Logging:")
	level, err := w.ask("Log level (debug/info/warn/error)", cfg.Logging.Level, false, validator.ValidateLogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Logging.Level = strings.ToLower(level)

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")
	return cfg, nil
}

// ask prompts until the answer passes validate. An empty answer keeps
// current, which is not validated.
func (w *Wizard) ask(label, current string, secret bool, validate func(string) error) (string, error) {
	for {
		shown := current
		if secret {
			shown = mask(current)
		}
		if shown != "" {
			fmt.Fprintf(w.out, "%s [%s]: ", label, shown)
		} else {
			fmt.Fprintf(w.out, "%s: ", label)
		}

		answer, err := w.readLine()
		if err != nil {
			return "", err
		}
		if answer == "" {
			return current, nil
		}
		if validate != nil {
			if err := validate(answer); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}
		}
		return answer, nil
	}
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func profileKey(cfg *Config, provider string) string {
	for _, p := range cfg.AI.Profiles {
		if p.Provider == provider {
			return p.APIKey
		}
	}
	return ""
}
