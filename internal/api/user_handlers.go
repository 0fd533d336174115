package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shubham-manmohan/voicenote/internal/auth"
	"github.com/shubham-manmohan/voicenote/internal/models"
	"github.com/shubham-manmohan/voicenote/internal/storage"
	"go.uber.org/zap"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

func (r registerRequest) validate() string {
	switch {
	case strings.TrimSpace(r.Username) == "":
		return "username is required"
	case strings.TrimSpace(r.Email) == "":
		return "email is required"
	case strings.TrimSpace(r.Mobile) == "":
		return "mobile is required"
	case r.Password == "":
		return "password is required"
	}
	return ""
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &models.User{
		Username:       strings.TrimSpace(req.Username),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Mobile:         strings.TrimSpace(req.Mobile),
		HashedPassword: hashed,
	}

	if err := s.storage.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			s.writeError(w, http.StatusBadRequest, "Email already registered")
			return
		}
		s.logger.Error("failed to create user", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.storage.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Same response as a bad password so account existence
			// does not leak.
			s.writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.logger.Error("failed to look up user", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !auth.CheckPassword(req.Password, user.HashedPassword) {
		s.writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.logger.Error("failed to issue token", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.storage.GetUserByID(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		s.logger.Error("failed to load profile", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, user)
}
