// Package api is the HTTP client for the homeboard server. It implements the
// typed storage interface the store builds on, plus the grant lookup the
// change bus uses for share-aware fan-out.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mkuzmins/homeboard/internal/client/models"
	"github.com/mkuzmins/homeboard/internal/common"
)

const requestTimeout = 15 * time.Second

// Client talks to the server's REST endpoint. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// apiError preserves the HTTP status for call sites that map specific
// statuses to domain sentinels.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set(common.AccessTokenHeaderName, c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return mapStatus(resp.StatusCode, e.Error)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// mapStatus converts unambiguous HTTP statuses to domain sentinels. Statuses
// whose meaning depends on the operation (409) stay as apiError for the call
// site to interpret.
func mapStatus(status int, msg string) error {
	switch status {
	case http.StatusUnauthorized:
		return common.ErrInvalidToken
	case http.StatusNotFound:
		return common.ErrNotFound
	case http.StatusForbidden:
		return common.ErrForbidden
	case http.StatusRequestEntityTooLarge:
		return common.ErrContentTooLong
	}
	return &apiError{Status: status, Message: msg}
}

func conflictAs(err, sentinel error) error {
	var ae *apiError
	if errors.As(err, &ae) && ae.Status == http.StatusConflict {
		return sentinel
	}
	return err
}

// CreateNote creates an empty note owned by the caller.
func (c *Client) CreateNote(ctx context.Context) (*models.Note, error) {
	var note models.Note
	req := struct {
		Content string `json:"content"`
		Private bool   `json:"private"`
	}{}
	if err := c.do(ctx, http.MethodPost, "/notes", req, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

func (c *Client) UpdateNote(ctx context.Context, id string, upd models.NoteUpdate) (*models.Note, error) {
	var note models.Note
	if err := c.do(ctx, http.MethodPut, "/notes/"+id, upd, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

func (c *Client) TrashNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/notes/"+id+"/trash", nil, nil)
}

func (c *Client) RestoreNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/notes/"+id+"/restore", nil, nil)
}

func (c *Client) DeleteNote(ctx context.Context, id string, force bool) error {
	path := "/notes/" + id
	if force {
		path += "?force=true"
	}
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return conflictAs(err, common.ErrRetentionActive)
	}
	return nil
}

func (c *Client) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var note models.Note
	if err := c.do(ctx, http.MethodGet, "/notes/"+id, nil, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

func (c *Client) ListNotes(ctx context.Context) ([]models.Note, error) {
	var notes []models.Note
	if err := c.do(ctx, http.MethodGet, "/notes", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (c *Client) ListShared(ctx context.Context) ([]models.Note, error) {
	var notes []models.Note
	if err := c.do(ctx, http.MethodGet, "/notes/shared", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (c *Client) ListTrashed(ctx context.Context) ([]models.Note, error) {
	var notes []models.Note
	if err := c.do(ctx, http.MethodGet, "/notes/trashed", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (c *Client) CreateTag(ctx context.Context, name, color string) (*models.Tag, error) {
	var tag models.Tag
	req := struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}{Name: name, Color: color}
	if err := c.do(ctx, http.MethodPost, "/tags", req, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

func (c *Client) UpdateTag(ctx context.Context, tag models.Tag) error {
	req := struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}{Name: tag.Name, Color: tag.Color}
	return c.do(ctx, http.MethodPut, "/tags/"+tag.ID, req, nil)
}

func (c *Client) DeleteTag(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tags/"+id, nil, nil)
}

func (c *Client) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := c.do(ctx, http.MethodGet, "/tags", nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *Client) ListNoteTags(ctx context.Context) ([]models.NoteTag, error) {
	var links []models.NoteTag
	if err := c.do(ctx, http.MethodGet, "/note-tags", nil, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (c *Client) AddNoteTag(ctx context.Context, noteID, tagID string) error {
	return c.do(ctx, http.MethodPost, "/notes/"+noteID+"/tags/"+tagID, nil, nil)
}

func (c *Client) RemoveNoteTag(ctx context.Context, noteID, tagID string) error {
	return c.do(ctx, http.MethodDelete, "/notes/"+noteID+"/tags/"+tagID, nil, nil)
}

func (c *Client) ReplaceNoteTags(ctx context.Context, noteID string, tagIDs []string) error {
	req := struct {
		TagIDs []string `json:"tag_ids"`
	}{TagIDs: tagIDs}
	return c.do(ctx, http.MethodPut, "/notes/"+noteID+"/tags", req, nil)
}

func (c *Client) AddShare(ctx context.Context, noteID, login string) error {
	req := struct {
		Login string `json:"login"`
	}{Login: login}
	if err := c.do(ctx, http.MethodPost, "/notes/"+noteID+"/shares", req, nil); err != nil {
		return conflictAs(err, common.ErrAlreadyShared)
	}
	return nil
}

func (c *Client) RemoveShare(ctx context.Context, noteID, login string) error {
	return c.do(ctx, http.MethodDelete, "/notes/"+noteID+"/shares/"+login, nil, nil)
}

// ListNoteRecipients returns the principal IDs a note is shared with.
// Channels are named by principal ID, so the change bus uses this to decide
// which channels a note event fans out to.
func (c *Client) ListNoteRecipients(ctx context.Context, noteID string) ([]string, error) {
	var recipients []struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/notes/"+noteID+"/shares", nil, &recipients); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		ids = append(ids, r.ID)
	}
	return ids, nil
}
