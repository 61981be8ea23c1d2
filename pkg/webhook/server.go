package webhook

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/harun/iattom/internal/observability"
	"github.com/harun/iattom/pkg/commandqueue"
	"github.com/harun/iattom/pkg/dispatch"
	"github.com/rs/zerolog"
)

const (
	DefaultPort               = 8080
	DefaultRateLimitPerMinute = 600
	DefaultMaxBodyBytes       = 1 << 20
	DefaultShutdownTimeout    = 30 * time.Second
)

// ServerOptions configures the webhook server
type ServerOptions struct {
	Host               string // default "0.0.0.0"
	Port               int    // default 8080
	VerifyToken        string // hub.verify_token expected by GET /webhook
	AppSecret          string // enables X-Hub-Signature-256 checks when set
	RateLimitPerMinute int
	MaxBodyBytes       int64
	ShutdownTimeout    time.Duration
}

// EventHandler answers one inbound event
type EventHandler interface {
	Handle(ctx context.Context, ev dispatch.Event) dispatch.Result
}

// Deps are the collaborators of a Server
type Deps struct {
	Dispatcher EventHandler
	Queue      *commandqueue.Queue // created when nil
	Files      http.Handler        // serves /files/{name} when set
}

// Server is the webhook HTTP server
type Server struct {
	options     ServerOptions
	server      *http.Server
	router      chi.Router
	dispatcher  EventHandler
	queue       *commandqueue.Queue
	files       http.Handler
	rateLimiter *RateLimiter
	logger      zerolog.Logger
	startTime   time.Time
	stopOnce    sync.Once
	stopErr     error
}

// NewServer creates a new webhook server
func NewServer(options ServerOptions, deps Deps, logger zerolog.Logger) (*Server, error) {
	observability.EnsureRegistered()

	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.Port == 0 {
		options.Port = DefaultPort
	}
	if options.Port < 0 || options.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", options.Port)
	}
	if options.RateLimitPerMinute <= 0 {
		options.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if options.MaxBodyBytes <= 0 {
		options.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = DefaultShutdownTimeout
	}

	logger = logger.With().Str("component", "webhook").Logger()
	queue := deps.Queue
	if queue == nil {
		queue = commandqueue.New(commandqueue.Options{}, logger)
	}

	s := &Server{
		options:     options,
		dispatcher:  deps.Dispatcher,
		queue:       queue,
		files:       deps.Files,
		rateLimiter: NewRateLimiter(options.RateLimitPerMinute, time.Minute),
		logger:      logger,
		startTime:   time.Now(),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())
	if s.files != nil {
		r.Method(http.MethodGet, "/files/{name}", s.files)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/webhook", s.handleVerify)
		r.Post("/webhook", s.handleEvents)
	})
	return r
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.options.Host, strconv.Itoa(s.options.Port))
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Bool("signature_check", s.options.AppSecret != "").
		Msg("Starting webhook server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start webhook server: %w", err)
	}
	return nil
}

// Stop stops accepting requests, then waits for queued dispatches up to the
// shutdown timeout
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop(ctx)
	})
	return s.stopErr
}

func (s *Server) stop(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down webhook server")

	ctx, cancel := context.WithTimeout(ctx, s.options.ShutdownTimeout)
	defer cancel()

	var errs []error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown webhook server: %w", err))
		}
	}
	if err := s.queue.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to drain dispatch lanes: %w", err))
	}
	s.rateLimiter.Stop()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info().Msg("Webhook server stopped")
	return nil
}

// rateLimit rejects clients above the per-IP limit
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ok, retryAfter := s.rateLimiter.Allow(ip); !ok {
			seconds := int((retryAfter + time.Second - 1) / time.Second)
			s.logger.Warn().
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retry_after", seconds).
				Msg("Rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr, which RealIP already rewrote
// from X-Forwarded-For or X-Real-IP
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
