package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/lowcode/internal/auth"
	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/idgen"
	"github.com/alfredjeanlab/lowcode/internal/model"
)

// currentUser returns the authenticated caller, writing 401 when there is none.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := auth.UserID(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return id, true
}

type credentialsInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// handleRegister handles POST /api/users/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentialsInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "user")
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := model.ValidateRegistration(in.Email, in.Password); err != nil {
		s.fail(w, r, err, "user")
		return
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		s.fail(w, r, err, "user")
		return
	}
	u := &model.User{
		ID:           idgen.MustGenerate(idgen.PrefixUser),
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Settings:     json.RawMessage(`{}`),
	}
	if err := model.ValidateUser(u); err != nil {
		s.fail(w, r, err, "user")
		return
	}
	if err := s.store.CreateUser(r.Context(), u); err != nil {
		s.fail(w, r, err, "user")
		return
	}
	token, err := s.issuer.Issue(u)
	if err != nil {
		s.fail(w, r, err, "user")
		return
	}
	s.record(r.Context(), events.TopicUserRegistered, u.ID, u.ID, map[string]any{"user": u})
	writeJSON(w, http.StatusCreated, sessionResponse{User: u, Token: token})
}

// handleLogin handles POST /api/users/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentialsInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "user")
		return
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	u, err := s.store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(in.Email)))
	if errors.Is(err, sql.ErrNoRows) {
		// Same answer as a wrong password.
		s.fail(w, r, auth.ErrInvalidCredentials, "user")
		return
	}
	if err != nil {
		s.fail(w, r, err, "user")
		return
	}
	if err := auth.CheckPassword(u.PasswordHash, in.Password); err != nil {
		s.fail(w, r, err, "user")
		return
	}
	token, err := s.issuer.Issue(u)
	if err != nil {
		s.fail(w, r, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: u, Token: token})
}

// handleMe handles GET /api/users/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	u, err := s.store.GetUser(r.Context(), uid)
	if err != nil {
		s.fail(w, r, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleGetSettings handles GET /api/users/me/settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	u, err := s.store.GetUser(r.Context(), uid)
	if err != nil {
		s.fail(w, r, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, settingsOrEmpty(u.Settings))
}

// handlePutSettings handles PUT /api/users/me/settings. The body replaces
// the stored settings and must be a JSON object.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, r, inputError("could not read body"), "user")
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		writeError(w, http.StatusBadRequest, "settings must be a JSON object")
		return
	}
	u, err := s.store.UpdateUserSettings(r.Context(), uid, json.RawMessage(raw))
	if err != nil {
		s.fail(w, r, err, "user")
		return
	}
	s.record(r.Context(), events.TopicUserSettingsUpdated, uid, uid, map[string]any{"settings": obj})
	writeJSON(w, http.StatusOK, settingsOrEmpty(u.Settings))
}

func settingsOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}
