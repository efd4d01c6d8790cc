// Package supabase is a small client for the identity backend's auth REST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/tenant_portal/internal/httputil"
)

// ErrInvalidRefreshToken means the backend rejected the refresh token; the
// session cannot be recovered and the caller should clear it.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// ErrNotConfigured is returned when the client has no backend URL.
var ErrNotConfigured = errors.New("supabase auth is not configured")

// Config holds identity backend settings.
type Config struct {
	URL       string
	AnonKey   string
	JWTSecret string
}

// User is the authenticated user as reported by the backend or the JWT.
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone,omitempty"`
	Role         string                 `json:"role"`
	Aud          string                 `json:"aud"`
	AppMetadata  map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// Session is a freshly issued token pair.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	ExpiresAt    time.Time
	User         User
}

// AuthClient talks to {URL}/auth/v1.
type AuthClient struct {
	config Config
	client *http.Client
}

// NewAuthClient creates a client. A nil httpClient gets a 10s timeout client.
func NewAuthClient(cfg Config, httpClient *http.Client) *AuthClient {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &AuthClient{config: cfg, client: httpClient}
}

// RefreshSession exchanges a refresh token for a new session.
func (c *AuthClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if c.config.URL == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidRefreshToken
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("encode refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.URL+"/auth/v1/token?grant_type=refresh_token", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAPIKey(req, c.config.AnonKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	body, err := httputil.ReadResponse(resp)
	if err != nil {
		var respErr *httputil.ResponseError
		if errors.As(err, &respErr) &&
			(respErr.StatusCode == http.StatusBadRequest || respErr.StatusCode == http.StatusUnauthorized) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRefreshToken, respErr.Body)
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return parseSession(body, time.Now())
}

// GetUser asks the backend who owns accessToken.
func (c *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if c.config.URL == "" {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.config.AnonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	var user User
	if err := httputil.DecodeResponse(resp, &user); err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("token validation failed: empty user")
	}
	return &user, nil
}

// VerifyToken validates an access token, locally when a JWT secret is
// configured and against the backend otherwise.
func (c *AuthClient) VerifyToken(ctx context.Context, accessToken string) (*User, error) {
	if c.config.JWTSecret != "" {
		if user, err := VerifyLocal(accessToken, c.config.JWTSecret); err == nil {
			return user, nil
		}
	}
	return c.GetUser(ctx, accessToken)
}

func (c *AuthClient) setAPIKey(req *http.Request, key string) {
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
}

func parseSession(body []byte, now time.Time) (*Session, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode session: invalid JSON")
	}
	doc := gjson.ParseBytes(body)

	s := &Session{
		AccessToken:  doc.Get("access_token").String(),
		RefreshToken: doc.Get("refresh_token").String(),
		TokenType:    doc.Get("token_type").String(),
		ExpiresIn:    doc.Get("expires_in").Int(),
		User: User{
			ID:    doc.Get("user.id").String(),
			Email: doc.Get("user.email").String(),
			Phone: doc.Get("user.phone").String(),
			Role:  doc.Get("user.role").String(),
			Aud:   doc.Get("user.aud").String(),
		},
	}
	if s.AccessToken == "" || s.RefreshToken == "" {
		return nil, fmt.Errorf("decode session: missing tokens")
	}
	if exp := doc.Get("expires_at"); exp.Exists() {
		s.ExpiresAt = time.Unix(exp.Int(), 0)
	} else if s.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	if meta, ok := doc.Get("user.app_metadata").Value().(map[string]interface{}); ok {
		s.User.AppMetadata = meta
	}
	if meta, ok := doc.Get("user.user_metadata").Value().(map[string]interface{}); ok {
		s.User.UserMetadata = meta
	}
	return s, nil
}
