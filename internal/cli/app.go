package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/iattom/internal/config"
	"github.com/harun/iattom/pkg/artifact"
	"github.com/harun/iattom/pkg/dedup"
	"github.com/harun/iattom/pkg/delegate"
	"github.com/harun/iattom/pkg/dispatch"
	"github.com/harun/iattom/pkg/research"
	"github.com/harun/iattom/pkg/session"
	"github.com/harun/iattom/pkg/trigger"
	"github.com/harun/iattom/pkg/whatsapp"
)

// app is the dispatch pipeline built from a Config
type app struct {
	store      session.Store
	seen       *dedup.Cache
	documents  *artifact.DocumentStore
	dispatcher *dispatch.Dispatcher
	logger     zerolog.Logger
}

type appOptions struct {
	// sender replaces the WhatsApp client when set
	sender dispatch.Sender
	// memoryStore ignores the configured session backend
	memoryStore bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions, logger zerolog.Logger) (*app, error) {
	classifier, err := trigger.New(cfg.Triggers)
	if err != nil {
		return nil, err
	}

	storeOpts := session.Options{
		Backend:   cfg.Session.Backend,
		Path:      cfg.Session.Path,
		TTL:       time.Duration(cfg.Session.TTLDays) * 24 * time.Hour,
		SweepSpec: cfg.Session.SweepSpec,
		Logger:    logger,
	}
	if opts.memoryStore {
		storeOpts.Backend = session.BackendMemory
	}
	store, err := session.Open(ctx, storeOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	responder, err := delegate.New(cfg.AI.Profiles, delegate.ChainOptions{
		Timeout: time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		store: store,
		seen: dedup.New(ctx, dedup.Options{
			TTL:        time.Duration(cfg.Dispatch.DedupTTLHours) * time.Hour,
			MaxEntries: cfg.Dispatch.DedupMaxEntries,
		}),
		logger: logger,
	}

	deps := dispatch.Deps{
		Store:      store,
		Seen:       a.seen,
		Classifier: classifier,
		Delegate:   responder,
	}

	// nil pointers stay out of the interface fields so features report
	// themselves unavailable
	documents, err := artifact.NewDocumentStore(artifact.StoreOptions{
		Dir:           cfg.Artifacts.Dir,
		PublicBaseURL: cfg.Artifacts.PublicBaseURL,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Documents disabled")
	} else {
		a.documents = documents
		deps.Documents = documents
	}
	if images := artifact.NewImageGenerator(artifact.ImageOptions{
		APIKey:  cfg.Images.APIKey,
		Model:   cfg.Images.Model,
		BaseURL: cfg.Images.BaseURL,
	}, a.documents, logger); images != nil {
		deps.Images = images
	}

	if cfg.Research.Enabled {
		timeout := time.Duration(cfg.Research.TimeoutSeconds) * time.Second
		deps.Knowledge = research.NewWikipedia(research.WikipediaOptions{
			Language: cfg.Research.WikipediaLanguage,
			Timeout:  timeout,
		})
		deps.Search = research.NewDuckDuckGo(research.SearchOptions{Timeout: timeout})
		deps.Summarizer = research.NewSummarizer(research.NewFetcher(research.FetcherOptions{Timeout: timeout}), responder, logger)
	}

	if opts.sender != nil {
		deps.Sender = opts.sender
	} else {
		deps.Sender = whatsapp.NewClient(whatsapp.ClientOptions{
			AccessToken:   cfg.WhatsApp.AccessToken,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			APIVersion:    cfg.WhatsApp.APIVersion,
			BaseURL:       cfg.WhatsApp.BaseURL,
		}, logger)
	}

	a.dispatcher = dispatch.New(dispatch.Options{
		CheckinInterval: cfg.CheckinInterval(),
		FirstContact:    dispatch.FirstContactPolicy(cfg.Dispatch.FirstContact),
		Persona:         cfg.Dispatch.Persona,
		SignOff:         cfg.Dispatch.SignOff,
		SearchResults:   cfg.Research.SearchResults,
	}, deps, logger)

	return a, nil
}

// files serves generated documents, or nil when documents are disabled
func (a *app) files() http.Handler {
	if a.documents == nil {
		return nil
	}
	return a.documents.Handler()
}

// reload applies the settings that can change without a restart
func (a *app) reload(cfg *config.Config) {
	classifier, err := trigger.New(cfg.Triggers)
	if err != nil {
		a.logger.Error().Err(err).Msg("Keeping previous trigger policy")
		return
	}
	a.dispatcher.SetClassifier(classifier)
	a.logger.Info().Int("categories", len(cfg.Triggers.Order)).Msg("Trigger policy updated")
}

func (a *app) Close() error {
	a.seen.Stop()
	return a.store.Close()
}

// loadConfig resolves the config for cmd, applying --log-level when given
func loadConfig(cmd *cobra.Command) (*config.Loader, *config.Config, error) {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return loader, cfg, nil
}
