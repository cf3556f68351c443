// Package httpapi is the HTTP transport of the account service: routes,
// session cookies, the JSON envelope and request middleware.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/logging"
	"github.com/dmitrijs2005/vidkeeper/internal/server/config"
	"github.com/dmitrijs2005/vidkeeper/internal/server/models"
	"github.com/dmitrijs2005/vidkeeper/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type accountService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicAccount, error)
	Authenticate(ctx context.Context, in services.LoginInput) (*services.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*services.Session, error)
	Terminate(ctx context.Context, accountID string) error
	CurrentAccount(ctx context.Context, accountID string) (*models.PublicAccount, error)
	VerifyAccessToken(token string) (*models.Identity, error)
}

type Server struct {
	address        string
	accounts       accountService
	logger         logging.Logger
	metrics        http.Handler
	uploadDir      string
	maxUploadBytes int64
	secureCookies  bool
}

// NewServer builds the HTTP server. metricsHandler may be nil, in which
// case /metrics is not exposed.
func NewServer(cfg *config.Config, l logging.Logger, accounts accountService, metricsHandler http.Handler) *Server {
	return &Server{
		address:        cfg.EndpointAddrHTTP,
		accounts:       accounts,
		logger:         l.With("module", "http_server"),
		metrics:        metricsHandler,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		secureCookies:  cfg.SecureCookies,
	}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/users/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/users/login", s.handleLogin)
	mux.HandleFunc("POST /api/v1/users/logout", s.requireAuth(s.handleLogout))
	mux.HandleFunc("POST /api/v1/users/refresh-token", s.handleRefresh)
	mux.HandleFunc("GET /api/v1/users/current-user", s.requireAuth(s.handleCurrentUser))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.withRequestLogging(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
