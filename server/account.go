package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cyp0633/recurcal/auth"
	"github.com/cyp0633/recurcal/storage"
)

var validate = validator.New()

type signUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Profile   *storage.Profile `json:"profile"`
}

type profilePatch struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=100"`
	Theme       *string `json:"theme" validate:"omitempty,oneof=light dark blue"`
}

// decodeJSON reads a bounded JSON request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// readBody reads a bounded raw request body
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	return io.ReadAll(r.Body)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, err := s.users.SignUp(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	profile, err := s.store.SaveProfile(r.Context(), storage.DefaultProfile(user.ID, user.Email))
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.writeSession(w, r, http.StatusCreated, user, profile)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, err := s.users.Authenticate(r.Context(), auth.Credentials{Username: req.Email, Password: req.Password})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	profile, err := s.loadProfile(r, user)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.writeSession(w, r, http.StatusOK, user, profile)
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, user *auth.Principal, profile *storage.Profile) {
	token, expiresAt, err := s.sessions.Issue(user)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "session issued",
		"user_id", user.ID,
		"expires_at", expiresAt)

	writeJSON(w, status, sessionResponse{Token: token, ExpiresAt: expiresAt, Profile: profile})
}

// loadProfile returns the saved profile, creating the default one on first use
func (s *Server) loadProfile(r *http.Request, user *auth.Principal) (*storage.Profile, error) {
	profile, err := s.store.GetProfile(r.Context(), user.ID)
	if storage.IsNotFound(err) {
		s.logger.InfoContext(r.Context(), "creating default profile",
			"user_id", user.ID)
		return s.store.SaveProfile(r.Context(), storage.DefaultProfile(user.ID, user.Email))
	}
	return profile, err
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.loadProfile(r, principal(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePatchProfile(w http.ResponseWriter, r *http.Request) {
	var patch profilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validate.Struct(patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_profile", err.Error())
		return
	}

	p := principal(r)
	update := &storage.Profile{UserID: p.ID, Email: p.Email}
	if patch.DisplayName != nil {
		update.DisplayName = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.Theme != nil {
		update.Theme = storage.Theme(*patch.Theme)
	}

	profile, err := s.store.SaveProfile(r.Context(), update)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePutAvatar(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get(headerContentType)
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "avatar must be an image")
		return
	}

	data, err := readBody(w, r, s.maxAvatarBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("avatar exceeds %d bytes", s.maxAvatarBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "avatar body is empty")
		return
	}

	p := principal(r)
	// Ensure the profile exists so the avatar URL lands on a complete profile
	if _, err := s.loadProfile(r, p); err != nil {
		s.handleError(w, r, err)
		return
	}
	if _, err := s.store.PutAvatar(r.Context(), p.ID, contentType, data); err != nil {
		s.handleError(w, r, err)
		return
	}

	profile, err := s.store.GetProfile(r.Context(), p.ID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "avatar updated",
		"user_id", p.ID,
		"content_type", contentType,
		"size", len(data))

	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	avatar, err := s.store.GetAvatar(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	w.Header().Set(headerContentType, avatar.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("Last-Modified", avatar.UpdatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(avatar.Data)
}
