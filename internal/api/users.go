package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/dooropener-core/internal/credstore"
)

// createUserRequest is the request body for POST /admin/users.
type createUserRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
	Active   *bool  `json:"active"`
}

// updateUserRequest is the request body for PATCH /admin/users/{username}.
// Absent fields are left unchanged.
type updateUserRequest struct {
	PIN    *string `json:"pin"`
	Active *bool   `json:"active"`
}

// userResponse is a credential record with the PIN redacted.
//
// PINs go in through the API but never come back out: the audit trail and
// list views only ever see usernames.
type userResponse struct {
	Username   string  `json:"username"`
	Active     bool    `json:"active"`
	TimesUsed  int     `json:"times_used"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
	LastUsedAt *string `json:"last_used_at"`
}

func toUserResponse(rec credstore.Record) userResponse {
	resp := userResponse{
		Username:  rec.Username,
		Active:    rec.Active,
		TimesUsed: rec.TimesUsed,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if rec.LastUsedAt != nil {
		last := rec.LastUsedAt.UTC().Format(time.RFC3339)
		resp.LastUsedAt = &last
	}
	return resp
}

// handleListUsers returns all managed credential records.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("listing users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	users := make([]userResponse, 0, len(records))
	for _, rec := range records {
		users = append(users, toUserResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// handleCreateUser creates a managed credential record.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	rec, err := s.store.Create(r.Context(), req.Username, req.PIN, active)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("credential created", "username", rec.Username)
	writeJSON(w, http.StatusCreated, toUserResponse(*rec))
}

// handleUpdateUser mutates the supplied fields of a record.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PIN == nil && req.Active == nil {
		writeBadRequest(w, "nothing to update")
		return
	}

	rec, err := s.store.Update(r.Context(), username, req.PIN, req.Active)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("credential updated", "username", username)
	writeJSON(w, http.StatusOK, toUserResponse(*rec))
}

// handleDeleteUser removes a record.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := s.store.Delete(r.Context(), username); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("credential deleted", "username", username)
	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError maps credential store errors to API responses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, credstore.ErrUserNotFound):
		writeNotFound(w, "no such user")
	case errors.Is(err, credstore.ErrUserExists):
		writeConflict(w, "username already exists")
	case errors.Is(err, credstore.ErrPINTaken):
		writeConflict(w, "pin already assigned to another user")
	case errors.Is(err, credstore.ErrInvalidUsername):
		writeBadRequest(w, "username must be 1-32 characters: letters, digits, dot, dash, underscore")
	case errors.Is(err, credstore.ErrInvalidPIN):
		writeBadRequest(w, "pin must be 4-8 digits")
	default:
		s.logger.Error("credential store operation failed", "error", err)
		writeInternalError(w, "credential store unavailable")
	}
}
