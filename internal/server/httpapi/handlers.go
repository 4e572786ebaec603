package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chatvault/chatvault/internal/common"
	"github.com/chatvault/chatvault/internal/cryptox"
	"github.com/chatvault/chatvault/internal/server/llm"
	"github.com/chatvault/chatvault/internal/server/resolver"
	"github.com/chatvault/chatvault/internal/server/users"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type storeKeyRequest struct {
	APIKey  string `json:"api_key"`
	KeyName string `json:"key_name"`
}

type keyResponse struct {
	ID        string     `json:"id"`
	KeyName   string     `json:"key_name"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used"`
}

type chatRequest struct {
	DeveloperMessage string `json:"developer_message"`
	UserMessage      string `json:"user_message"`
	Model            string `json:"model"`
	APIKeyID         string `json:"api_key_id"`
	UseDemoMode      bool   `json:"use_demo_mode"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrCredentialNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorAlreadyExists),
		errors.Is(err, common.ErrDemoUnavailable),
		errors.Is(err, common.ErrNoCredentialAvailable):
		return http.StatusBadRequest
	case errors.Is(err, cryptox.ErrDecryptionFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		s.writeJSON(w, status, errorResponse{Detail: "internal server error"})
		return
	}
	s.writeJSON(w, status, errorResponse{Detail: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) badRequest(w http.ResponseWriter, detail string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Detail: detail})
}

func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func toUserResponse(u *users.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		s.badRequest(w, "username, email and password are required")
		return
	}

	user, err := s.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}

	token, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Get(r.Context(), sessionUsername(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// sessionUser resolves the authenticated username to a full user record.
func (s *Server) sessionUser(w http.ResponseWriter, r *http.Request) (*users.User, bool) {
	user, err := s.users.Get(r.Context(), sessionUsername(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return user, true
}

func (s *Server) handleStoreKey(w http.ResponseWriter, r *http.Request) {
	var req storeKeyRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	if req.APIKey == "" {
		s.badRequest(w, "api_key is required")
		return
	}

	user, ok := s.sessionUser(w, r)
	if !ok {
		return
	}

	meta, err := s.keys.Store(r.Context(), user.ID, req.APIKey, req.KeyName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, keyResponse{
		ID:        meta.ID,
		KeyName:   meta.Label,
		IsActive:  meta.IsActive,
		CreatedAt: meta.CreatedAt,
		LastUsed:  meta.LastUsed,
	})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(w, r)
	if !ok {
		return
	}

	metas, err := s.keys.List(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]keyResponse, 0, len(metas))
	for _, m := range metas {
		resp = append(resp, keyResponse{
			ID:        m.ID,
			KeyName:   m.Label,
			IsActive:  m.IsActive,
			CreatedAt: m.CreatedAt,
			LastUsed:  m.LastUsed,
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(w, r)
	if !ok {
		return
	}

	if err := s.keys.Revoke(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "API key deleted successfully"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	if req.DeveloperMessage == "" || req.UserMessage == "" {
		s.badRequest(w, "developer_message and user_message are required")
		return
	}

	// Demo requests skip authentication entirely. Everything else needs a
	// valid session so stored credentials can be looked up per user.
	var userID string
	if !req.UseDemoMode {
		username, err := s.authenticate(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		user, err := s.users.Get(r.Context(), username)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		userID = user.ID
	}

	apiKey, err := s.resolver.Resolve(r.Context(), resolver.Request{
		UserID:       userID,
		CredentialID: req.APIKeyID,
		DemoMode:     req.UseDemoMode,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	fragments, err := s.completions.StreamCompletion(r.Context(), apiKey, model,
		req.DeveloperMessage, req.UserMessage)
	if err != nil {
		var upstreamErr *llm.UpstreamError
		if errors.As(err, &upstreamErr) {
			s.writeJSON(w, http.StatusBadGateway, errorResponse{Detail: upstreamErr.Message})
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.relay(w, r, fragments)
}

// relay copies fragments to the client as they arrive, flushing after each
// one. Once the first fragment is written the status is committed; a later
// upstream failure can only terminate the stream, the flushed prefix stands.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, fragments <-chan llm.Fragment) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, common.ErrorInternal)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for fragment := range fragments {
		if fragment.Err != nil {
			s.logger.Error(r.Context(), "Upstream stream failed", "error", fragment.Err)
			return
		}
		if _, err := w.Write([]byte(fragment.Text)); err != nil {
			// Client went away; the producer stops via request context.
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.degradedEncryption {
		status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleDemoStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"demo_available": s.demoAvailable})
}
