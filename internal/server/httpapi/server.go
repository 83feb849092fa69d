// Package httpapi exposes the authentication services over a JSON REST
// surface built on chi.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sbelyakov/authkeeper/internal/logging"
	"github.com/sbelyakov/authkeeper/internal/server/models"
)

// UserAuthenticator is the password-based half of the API surface, plus
// account lookup for token-authenticated requests.
type UserAuthenticator interface {
	Register(ctx context.Context, username, password, displayName string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	Profile(ctx context.Context, userID string) (*models.User, error)
}

// CeremonyService is the WebAuthn half of the API surface.
type CeremonyService interface {
	StartRegistration(ctx context.Context, username, attachment string) (string, error)
	FinishRegistration(ctx context.Context, username, responseJSON string) error
	StartLogin(ctx context.Context, username string) (string, error)
	FinishLogin(ctx context.Context, username, responseJSON string) (string, error)
}

type HTTPServer struct {
	address    string
	users      UserAuthenticator
	ceremonies CeremonyService
	logger     logging.Logger
	jwtSecret  []byte
}

func NewHTTPServer(a string, l logging.Logger, us UserAuthenticator, cs CeremonyService, secretKey string) *HTTPServer {
	return &HTTPServer{
		address:    a,
		logger:     l.With("module", "http_server"),
		users:      us,
		ceremonies: cs,
		jwtSecret:  []byte(secretKey),
	}
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Get("/auth/me", s.handleMe)

	r.Route("/webauthn", func(r chi.Router) {
		r.Post("/register/start", s.handleWebAuthnRegisterStart)
		r.Post("/register/finish", s.handleWebAuthnRegisterFinish)
		r.Post("/login/start", s.handleWebAuthnLoginStart)
		r.Post("/login/finish", s.handleWebAuthnLoginFinish)
	})

	return r
}

func (s *HTTPServer) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "error shutting down HTTP server", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
