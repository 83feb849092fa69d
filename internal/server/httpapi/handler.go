package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sbelyakov/authkeeper/internal/common"
	"github.com/sbelyakov/authkeeper/internal/server/auth"
)

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type profileResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := validateUsername(req.Username); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	if len(req.Password) < 8 || len(req.Password) > 128 {
		s.writeError(w, http.StatusBadRequest, "password must be 8-128 characters")
		return
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	if len(displayName) > 128 {
		s.writeError(w, http.StatusBadRequest, "display name must be 1-128 characters")
		return
	}

	s.logger.Info(r.Context(), "Registration request", "username", req.Username)

	token, err := s.users.Register(r.Context(), req.Username, req.Password, displayName)
	if err != nil {
		s.writeServiceError(r, w, err)
		return
	}

	s.logger.Info(r.Context(), "Registered", "username", req.Username)
	s.writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(r, w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	accessToken := bearerToken(r)
	if accessToken == "" {
		s.writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	user, err := s.users.Profile(r.Context(), userID)
	if err != nil {
		s.writeServiceError(r, w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, profileResponse{
		ID:          user.ID.String(),
		Username:    user.Username,
		DisplayName: user.DisplayName,
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func (s *HTTPServer) handleWebAuthnRegisterStart(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if msg := validateUsername(username); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	attachment := r.URL.Query().Get("attachment")

	options, err := s.ceremonies.StartRegistration(r.Context(), username, attachment)
	if err != nil {
		s.writeServiceError(r, w, err)
		return
	}

	s.writeOptions(w, options)
}

func (s *HTTPServer) handleWebAuthnRegisterFinish(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if msg := validateUsername(username); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.ceremonies.FinishRegistration(r.Context(), username, string(body)); err != nil {
		s.writeServiceError(r, w, err)
		return
	}

	s.logger.Info(r.Context(), "Credential registered", "username", username)
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *HTTPServer) handleWebAuthnLoginStart(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if msg := validateUsername(username); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}

	options, err := s.ceremonies.StartLogin(r.Context(), username)
	if err != nil {
		s.writeServiceError(r, w, err)
		return
	}

	s.writeOptions(w, options)
}

func (s *HTTPServer) handleWebAuthnLoginFinish(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if msg := validateUsername(username); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.ceremonies.FinishLogin(r.Context(), username, string(body))
	if err != nil {
		s.writeServiceError(r, w, err)
		return
	}

	s.logger.Info(r.Context(), "Authenticated", "username", username)
	s.writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token})
}

// writeServiceError translates service errors into HTTP statuses. Verifier
// failures come back as 401 rather than 400 so a forged or replayed response
// is indistinguishable from a wrong password at the surface.
func (s *HTTPServer) writeServiceError(r *http.Request, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrChallengeNotFound):
		s.writeError(w, http.StatusNotFound, "no pending ceremony")
	case errors.Is(err, common.ErrRegistrationFailed):
		s.writeError(w, http.StatusUnauthorized, "registration failed")
	case errors.Is(err, common.ErrAuthenticationFailed), errors.Is(err, common.ErrorUnauthorized):
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, common.ErrIdentityNotFound):
		s.writeError(w, http.StatusBadRequest, "unknown identity")
	case errors.Is(err, common.ErrorLoginAlreadyExists):
		s.writeError(w, http.StatusConflict, "username already taken")
	default:
		s.logger.Error(r.Context(), err.Error())
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOptions returns the stored options payload byte for byte; the client
// must receive exactly what was persisted for the finish step to verify.
func (s *HTTPServer) writeOptions(w http.ResponseWriter, options string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, options)
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func validateUsername(username string) string {
	if strings.TrimSpace(username) == "" {
		return "username is required"
	}
	if len(username) < 3 || len(username) > 50 {
		return "username must be 3-50 characters"
	}
	return ""
}
