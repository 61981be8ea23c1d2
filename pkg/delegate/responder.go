package delegate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/iattom/internal/observability"
	"github.com/harun/iattom/internal/tracing"
	"github.com/rs/zerolog"
)

// ErrUnsupportedProvider is returned by New for an unknown provider name
var ErrUnsupportedProvider = errors.New("unsupported provider")

// Provider names
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Request is one delegated turn
type Request struct {
	Persona     string // system prompt
	ContactName string // empty when unknown
	Text        string
}

// Responder generates a free-form reply
type Responder interface {
	// Generate returns the reply text; "" means nothing usable
	Generate(ctx context.Context, req Request) (string, error)

	// Name returns the provider name
	Name() string
}

// Profile configures one provider
type Profile struct {
	ID          string  `json:"id" mapstructure:"id"`
	Provider    string  `json:"provider" mapstructure:"provider"`
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Model       string  `json:"model" mapstructure:"model"`
	BaseURL     string  `json:"base_url,omitempty" mapstructure:"base_url"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	Priority    int     `json:"priority" mapstructure:"priority"`
}

// NewResponder builds the Responder for a single profile
func NewResponder(p Profile) (Responder, error) {
	switch p.Provider {
	case ProviderOpenAI:
		return NewOpenAIResponder(p), nil
	case ProviderAnthropic:
		return NewAnthropicResponder(p), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, p.Provider)
	}
}

// ChainOptions tunes failover
type ChainOptions struct {
	Timeout      time.Duration // per provider call (default: 20s)
	BaseCooldown time.Duration // multiplied by consecutive failures (default: 1m)
	Now          func() time.Time
}

// New builds a Chain over profiles sorted by priority (lower first).
// Profiles without an API key are skipped. It returns a nil Responder and no
// error when nothing usable is configured.
func New(profiles []Profile, opts ChainOptions, logger zerolog.Logger) (Responder, error) {
	sorted := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		if strings.TrimSpace(p.APIKey) == "" {
			logger.Warn().Str("profile_id", p.ID).Str("provider", p.Provider).Msg("Skipping delegate profile without API key")
			continue
		}
		sorted = append(sorted, p)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	responders := make([]Responder, 0, len(sorted))
	for _, p := range sorted {
		r, err := NewResponder(p)
		if err != nil {
			return nil, fmt.Errorf("failed to create delegate for profile %s: %w", p.ID, err)
		}
		responders = append(responders, r)
	}
	if len(responders) == 0 {
		return nil, nil
	}
	return NewChain(responders, opts, logger), nil
}

type link struct {
	responder     Responder
	failures      int
	cooldownUntil time.Time
}

// Chain tries responders in order until one returns a non-empty answer
type Chain struct {
	links        []*link
	timeout      time.Duration
	baseCooldown time.Duration
	now          func() time.Time
	logger       zerolog.Logger
	mu           sync.Mutex
}

// NewChain wraps responders, keeping their order
func NewChain(responders []Responder, opts ChainOptions, logger zerolog.Logger) *Chain {
	observability.EnsureRegistered()

	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.BaseCooldown <= 0 {
		opts.BaseCooldown = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Chain{
		timeout:      opts.Timeout,
		baseCooldown: opts.BaseCooldown,
		now:          opts.Now,
		logger:       logger,
	}
	for _, r := range responders {
		c.links = append(c.links, &link{responder: r})
	}
	return c
}

// Name lists the chained providers
func (c *Chain) Name() string {
	names := make([]string, len(c.links))
	for i, l := range c.links {
		names[i] = l.responder.Name()
	}
	return strings.Join(names, ",")
}

// Generate returns the first non-empty answer. When every provider failed the
// last error is returned alongside "".
func (c *Chain) Generate(ctx context.Context, req Request) (string, error) {
	logger := tracing.LoggerFromContext(ctx, c.logger)
	var lastErr error

	for _, l := range c.links {
		name := l.responder.Name()
		if c.inCooldown(l) {
			logger.Debug().Str("provider", name).Msg("Skipping delegate in cooldown")
			continue
		}

		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := l.responder.Generate(callCtx, req)
		cancel()
		text = strings.TrimSpace(text)

		if err != nil {
			observability.RecordDelegateCall(name, time.Since(start), false)
			c.recordFailure(l)
			logger.Warn().Err(err).Str("provider", name).Msg("Delegate call failed")
			lastErr = err
			continue
		}

		observability.RecordDelegateCall(name, time.Since(start), true)
		c.recordSuccess(l)
		if text == "" {
			logger.Debug().Str("provider", name).Msg("Delegate returned empty answer")
			continue
		}
		return text, nil
	}

	return "", lastErr
}

func (c *Chain) inCooldown(l *link) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(l.cooldownUntil)
}

func (c *Chain) recordFailure(l *link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l.failures++
	l.cooldownUntil = c.now().Add(time.Duration(l.failures) * c.baseCooldown)
}

func (c *Chain) recordSuccess(l *link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l.failures = 0
	l.cooldownUntil = time.Time{}
}

// systemPrompt adds the contact's name to the persona
func systemPrompt(req Request) string {
	persona := strings.TrimSpace(req.Persona)
	name := strings.TrimSpace(req.ContactName)
	if name == "" {
		return persona
	}
	if persona == "" {
		return fmt.Sprintf("O nome da pessoa com quem você conversa é %s.", name)
	}
	return fmt.Sprintf("%s\n\nO nome da pessoa com quem você conversa é %s.", persona, name)
}
