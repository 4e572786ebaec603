// Package httpapi is the boundary layer: it dispatches HTTP requests to the
// user, vault, resolver, and streaming components and maps their errors to
// status codes. All domain logic lives behind the small interfaces below so
// handlers can be tested with fakes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/chatvault/chatvault/internal/logging"
	"github.com/chatvault/chatvault/internal/server/keys"
	"github.com/chatvault/chatvault/internal/server/llm"
	"github.com/chatvault/chatvault/internal/server/resolver"
	"github.com/chatvault/chatvault/internal/server/users"
)

// UserService is the subset of the user service the boundary uses.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*users.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Get(ctx context.Context, username string) (*users.User, error)
}

// KeyService is the subset of the credential vault the boundary uses.
// Resolution goes through CredentialResolver, never directly through here.
type KeyService interface {
	Store(ctx context.Context, userID, plaintextSecret, label string) (*keys.Metadata, error)
	List(ctx context.Context, userID string) ([]*keys.Metadata, error)
	Revoke(ctx context.Context, userID, id string) error
}

// CredentialResolver picks exactly one plaintext credential per request.
type CredentialResolver interface {
	Resolve(ctx context.Context, req resolver.Request) (string, error)
}

// CompletionStreamer opens the upstream streaming completion.
type CompletionStreamer interface {
	StreamCompletion(ctx context.Context, apiKey, model, systemMessage, userMessage string) (<-chan llm.Fragment, error)
}

// Options carries the boundary's process-start configuration.
type Options struct {
	SecretKey     string
	DefaultModel  string
	DemoAvailable bool

	// DegradedEncryption marks that the server runs on an ephemeral
	// encryption key; surfaced through the health endpoint.
	DegradedEncryption bool
}

type Server struct {
	address     string
	logger      logging.Logger
	users       UserService
	keys        KeyService
	resolver    CredentialResolver
	completions CompletionStreamer

	jwtSecret          []byte
	defaultModel       string
	demoAvailable      bool
	degradedEncryption bool
}

func NewServer(address string, l logging.Logger, us UserService, ks KeyService,
	cr CredentialResolver, cs CompletionStreamer, opts Options) *Server {
	return &Server{
		address:            address,
		logger:             l.With("module", "http_server"),
		users:              us,
		keys:               ks,
		resolver:           cr,
		completions:        cs,
		jwtSecret:          []byte(opts.SecretKey),
		defaultModel:       opts.DefaultModel,
		demoAvailable:      opts.DemoAvailable,
		degradedEncryption: opts.DegradedEncryption,
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/me", s.requireAuth(s.handleMe))

	mux.HandleFunc("POST /api/keys", s.requireAuth(s.handleStoreKey))
	mux.HandleFunc("GET /api/keys", s.requireAuth(s.handleListKeys))
	mux.HandleFunc("DELETE /api/keys/{id}", s.requireAuth(s.handleRevokeKey))

	// Chat performs its own authentication: demo mode is allowed
	// unauthenticated.
	mux.HandleFunc("POST /api/chat", s.handleChat)

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/demo-status", s.handleDemoStatus)

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.routes(),

		// No write timeout: chat responses stream for as long as the
		// upstream produces fragments.
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
