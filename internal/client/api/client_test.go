package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkuzmins/homeboard/internal/client/models"
	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsToken(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get(common.AccessTokenHeaderName)
		json.NewEncoder(w).Encode([]any{})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok-123")
	_, err := c.ListNotes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", gotToken)
}

func TestClientMapsStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notes/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/notes/theirs":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
		json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	ctx := context.Background()

	_, err := c.GetNote(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = c.GetNote(ctx, "theirs")
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = c.ListNotes(ctx)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestDeleteNoteConflictMeansRetention(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "retention window active"})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	err := c.DeleteNote(context.Background(), "n1", false)
	assert.ErrorIs(t, err, common.ErrRetentionActive)
}

func TestDeleteNoteForceQuery(t *testing.T) {
	var gotForce string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotForce = r.URL.Query().Get("force")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	require.NoError(t, c.DeleteNote(context.Background(), "n1", true))
	assert.Equal(t, "true", gotForce)
}

func TestAddShareConflictMeansAlreadyShared(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "already shared"})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	err := c.AddShare(context.Background(), "n1", "bob")
	assert.ErrorIs(t, err, common.ErrAlreadyShared)
}

func TestListNoteRecipientsReturnsIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notes/n1/shares", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "u2", "login": "bob", "display_name": "Bob"},
			{"id": "u3", "login": "carol", "display_name": "Carol"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	ids, err := c.ListNoteRecipients(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3"}, ids)
}

func TestUpdateNotePartialBody(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]any{"id": "n1", "content": "hello", "version": 2})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	content := "hello"
	note, err := c.UpdateNote(context.Background(), "n1", models.NoteUpdate{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, int64(2), note.Version)

	// only the changed field crosses the wire
	assert.Contains(t, body, "content")
	assert.NotContains(t, body, "pinned")
	assert.NotContains(t, body, "private")
}

func TestLoginAndRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/register":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "u1", "login": "alice"})
		case "/login":
			json.NewEncoder(w).Encode(map[string]any{
				"user":  map[string]string{"id": "u1", "login": "alice"},
				"token": "tok-abc",
			})
		}
	}))
	defer srv.Close()

	user, err := Register(context.Background(), srv.URL, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	session, err := Login(context.Background(), srv.URL, "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", session.Token)
}
