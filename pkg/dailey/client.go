package dailey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/castingly/castingly-backend/pkg/config"
)

// ErrInvalidToken is returned when Core rejects a credential.
var ErrInvalidToken = errors.New("dailey: invalid token")

// User is the identity Core attaches to a token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Identity is the result of validating a token.
type Identity struct {
	User  User     `json:"user"`
	Roles []string `json:"roles"`
}

// Session is a freshly issued token pair.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
	Roles        []string  `json:"roles"`
}

// StatusError is a non-2xx Core response that is not a token rejection.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dailey core %d: %s", e.Status, e.Message)
}

// Client calls the Dailey Core identity API.
type Client struct {
	baseURL    string
	app        string
	httpClient *http.Client
}

// NewClient builds a Core client. app is sent with logins so Core scopes roles.
func NewClient(cfg config.CoreConfig, app string) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("dailey core base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: base, app: app, httpClient: &http.Client{Timeout: timeout}}, nil
}

// ValidateToken resolves an access token into an identity.
func (c *Client) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	var out struct {
		Valid bool     `json:"valid"`
		User  User     `json:"user"`
		Roles []string `json:"roles"`
	}
	if err := c.call(ctx, http.MethodGet, "/auth/validate", token, nil, &out); err != nil {
		return nil, err
	}
	if !out.Valid || out.User.ID == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{User: out.User, Roles: out.Roles}, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password, "app": c.app}
	return c.session(ctx, "/auth/login", body)
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidToken
	}
	return c.session(ctx, "/auth/refresh", map[string]string{"refresh_token": refreshToken})
}

func (c *Client) session(ctx context.Context, path string, body any) (*Session, error) {
	var out struct {
		Session
		ExpiresIn int64 `json:"expires_in"`
	}
	if err := c.call(ctx, http.MethodPost, path, "", body, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("dailey core %s: missing access token", path)
	}
	session := out.Session
	if session.ExpiresAt.IsZero() && out.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return &session, nil
}

func (c *Client) call(ctx context.Context, method, path, token string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode dailey core request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dailey core %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrInvalidToken
	}
	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}
		return &StatusError{Status: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode dailey core %s: %w", path, err)
	}
	return nil
}
