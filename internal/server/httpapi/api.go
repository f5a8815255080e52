// Package httpapi exposes the note, tag and sharing operations over REST and
// mounts the channel websocket endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/logging"
	"github.com/mkuzmins/homeboard/internal/server/hub"
	"github.com/mkuzmins/homeboard/internal/server/services"
)

type ctxKey int

const userIDKey ctxKey = 0

// API wires the services into an http.Handler.
type API struct {
	users  *services.UserService
	notes  *services.NoteService
	tags   *services.TagService
	hub    *hub.Hub
	logger logging.Logger
}

func New(users *services.UserService, notes *services.NoteService, tags *services.TagService, h *hub.Hub, logger logging.Logger) *API {
	return &API{users: users, notes: notes, tags: tags, hub: h, logger: logger}
}

// Router builds the route table. Everything except registration, login and
// the websocket endpoint requires a valid access token.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/register", a.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/channels/{principal}", a.hub.Handler()).Methods(http.MethodGet)

	s := r.NewRoute().Subrouter()
	s.Use(a.authMiddleware)

	s.HandleFunc("/notes", a.handleListNotes).Methods(http.MethodGet)
	s.HandleFunc("/notes", a.handleCreateNote).Methods(http.MethodPost)
	s.HandleFunc("/notes/shared", a.handleListShared).Methods(http.MethodGet)
	s.HandleFunc("/notes/trashed", a.handleListTrashed).Methods(http.MethodGet)
	s.HandleFunc("/notes/{id}", a.handleGetNote).Methods(http.MethodGet)
	s.HandleFunc("/notes/{id}", a.handleUpdateNote).Methods(http.MethodPut)
	s.HandleFunc("/notes/{id}", a.handleDeleteNote).Methods(http.MethodDelete)
	s.HandleFunc("/notes/{id}/trash", a.handleTrashNote).Methods(http.MethodPost)
	s.HandleFunc("/notes/{id}/restore", a.handleRestoreNote).Methods(http.MethodPost)
	s.HandleFunc("/notes/{id}/tags", a.handleSetNoteTags).Methods(http.MethodPut)
	s.HandleFunc("/notes/{id}/tags/{tagID}", a.handleAddNoteTag).Methods(http.MethodPost)
	s.HandleFunc("/notes/{id}/tags/{tagID}", a.handleRemoveNoteTag).Methods(http.MethodDelete)
	s.HandleFunc("/notes/{id}/shares", a.handleListShares).Methods(http.MethodGet)
	s.HandleFunc("/notes/{id}/shares", a.handleAddShare).Methods(http.MethodPost)
	s.HandleFunc("/notes/{id}/shares/{login}", a.handleRemoveShare).Methods(http.MethodDelete)

	s.HandleFunc("/tags", a.handleListTags).Methods(http.MethodGet)
	s.HandleFunc("/tags", a.handleCreateTag).Methods(http.MethodPost)
	s.HandleFunc("/tags/{id}", a.handleUpdateTag).Methods(http.MethodPut)
	s.HandleFunc("/tags/{id}", a.handleDeleteTag).Methods(http.MethodDelete)
	s.HandleFunc("/note-tags", a.handleListNoteTags).Methods(http.MethodGet)

	return r
}

// authMiddleware resolves the access token from the request header (or the
// query string, for clients that cannot set headers) and stores the caller's
// user ID on the request context.
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(common.AccessTokenHeaderName)
		if token == "" {
			token = r.URL.Query().Get(common.AccessTokenHeaderName)
		}
		user, err := a.users.Authenticate(r.Context(), token)
		if err != nil {
			a.writeError(w, common.ErrInvalidToken)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			a.logger.Warn(context.Background(), "failed to encode response", "error", err)
		}
	}
}

// writeError maps domain sentinels to HTTP statuses.
func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrForbidden), errors.Is(err, common.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, common.ErrAlreadyShared), errors.Is(err, common.ErrRetentionActive):
		status = http.StatusConflict
	case errors.Is(err, common.ErrContentTooLong):
		status = http.StatusRequestEntityTooLarge
	}
	if status == http.StatusInternalServerError {
		a.logger.Error(context.Background(), "request failed", "error", err)
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}
