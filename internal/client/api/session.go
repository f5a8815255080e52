package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// User identifies the logged-in principal.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// Session is the result of a login: the principal plus the access token to
// construct a Client with.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

func post(ctx context.Context, baseURL, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: requestTimeout}).Do(req)
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
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Register creates a principal on the server.
func Register(ctx context.Context, baseURL, login, displayName string) (*User, error) {
	req := struct {
		Login       string `json:"login"`
		DisplayName string `json:"display_name"`
	}{Login: login, DisplayName: displayName}

	var user User
	if err := post(ctx, baseURL, "/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login resolves the login and returns a session token.
func Login(ctx context.Context, baseURL, login string) (*Session, error) {
	req := struct {
		Login string `json:"login"`
	}{Login: login}

	var session Session
	if err := post(ctx, baseURL, "/login", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}
