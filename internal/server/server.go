package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/notifyrelay/relay/internal/config"
	"github.com/notifyrelay/relay/internal/httputil"
	"github.com/notifyrelay/relay/internal/sms"
)

// Server is the relay's HTTP server.
type Server struct {
	cfg    *config.Config
	router *chi.Mux
	http   *http.Server
	logger *slog.Logger
	sender sms.Provider
	rl     *RateLimiter // nil when rate limiting is disabled
}

// New creates a Server with middleware and routes configured. cfg must
// already be validated and is never modified.
func New(cfg *config.Config, logger *slog.Logger, sender sms.Provider) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:    cfg,
		router: r,
		logger: logger,
		sender: sender,
	}

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if cfg.Server.RateLimit > 0 {
			s.rl = NewRateLimiter(cfg.Server.RateLimit, time.Minute)
			r.Use(s.rl.Middleware)
		}

		r.With(
			requireNotifyKey(cfg.Notify.APIKey),
			middleware.AllowContentType("application/json"),
		).Post("/notify", s.handleNotify)

		r.Post("/twilio/status", s.handleTwilioStatus)
	})

	if !cfg.CallbackEnabled() {
		logger.Info("status callback disabled, /twilio/status will answer 404")
	}
	return s
}

// NewTwilioDispatcher builds the carrier client described by cfg.
func NewTwilioDispatcher(cfg *config.Config, logger *slog.Logger) *sms.TwilioDispatcher {
	return sms.NewTwilioDispatcher(sms.TwilioConfig{
		AccountSID:        cfg.Twilio.AccountSID,
		AuthToken:         cfg.Twilio.AuthToken,
		FromNumber:        cfg.Twilio.FromNumber,
		BaseURL:           cfg.Twilio.APIBaseURL,
		StatusCallbackURL: cfg.Twilio.StatusCallbackURL,
		Timeout:           cfg.TwilioTimeout(),
	}, nil, logger)
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	ready := make(chan struct{})
	return s.StartWithReady(ready)
}

// StartWithReady begins listening. It closes the ready channel once the
// listener is bound, then blocks serving requests.
func (s *Server) StartWithReady(ready chan<- struct{}) error {
	s.http = &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.logger.Info("server starting", "address", ln.Addr().String())
	close(ready)

	if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server. In-flight carrier requests finish or
// hit their own timeout first.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := time.Duration(s.cfg.Server.ShutdownTimeout) * time.Second
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("shutting down server", "timeout", timeout)
	if s.rl != nil {
		s.rl.Stop()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
