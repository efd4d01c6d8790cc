package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/R3E-Network/tenant_portal/internal/supabase"
)

const (
	DefaultAccessCookie  = "sb-access-token"
	DefaultRefreshCookie = "sb-refresh-token"
	DefaultRefreshMargin = 60 * time.Second

	refreshCookieMaxAge = 30 * 24 * time.Hour
)

type sessionRefresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*supabase.Session, error)
}

// SupabaseOptions configures a SupabaseRefresher. Zero values take defaults.
type SupabaseOptions struct {
	AccessCookie  string
	RefreshCookie string
	JWTSecret     string
	Margin        time.Duration
	Secure        bool
}

// SupabaseRefresher renews sessions stored in Supabase auth cookies when the
// access token is missing, invalid or close to expiry.
type SupabaseRefresher struct {
	client sessionRefresher
	opts   SupabaseOptions
	now    func() time.Time
}

func NewSupabaseRefresher(client sessionRefresher, opts SupabaseOptions) *SupabaseRefresher {
	if opts.AccessCookie == "" {
		opts.AccessCookie = DefaultAccessCookie
	}
	if opts.RefreshCookie == "" {
		opts.RefreshCookie = DefaultRefreshCookie
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultRefreshMargin
	}
	return &SupabaseRefresher{client: client, opts: opts, now: time.Now}
}

func (s *SupabaseRefresher) Refresh(ctx context.Context, r *http.Request) (*Result, error) {
	refresh, err := r.Cookie(s.opts.RefreshCookie)
	if err != nil || refresh.Value == "" {
		return &Result{Outcome: OutcomeSkipped}, nil
	}

	if access, err := r.Cookie(s.opts.AccessCookie); err == nil && access.Value != "" {
		exp, err := supabase.TokenExpiry(access.Value, s.opts.JWTSecret)
		if err == nil && exp.Sub(s.now()) > s.opts.Margin {
			return &Result{Outcome: OutcomeSkipped}, nil
		}
	}

	sess, err := s.client.RefreshSession(ctx, refresh.Value)
	if err != nil {
		if errors.Is(err, supabase.ErrInvalidRefreshToken) {
			return &Result{Cookies: s.clearCookies(), Outcome: OutcomeCleared}, nil
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return &Result{Cookies: s.sessionCookies(sess), Outcome: OutcomeRefreshed, UserID: sess.User.ID}, nil
}

func (s *SupabaseRefresher) sessionCookies(sess *supabase.Session) []*http.Cookie {
	access := s.cookie(s.opts.AccessCookie, sess.AccessToken)
	if !sess.ExpiresAt.IsZero() {
		access.Expires = sess.ExpiresAt.UTC()
	}
	if sess.ExpiresIn > 0 {
		access.MaxAge = int(sess.ExpiresIn)
	}

	refresh := s.cookie(s.opts.RefreshCookie, sess.RefreshToken)
	refresh.MaxAge = int(refreshCookieMaxAge / time.Second)
	return []*http.Cookie{access, refresh}
}

func (s *SupabaseRefresher) clearCookies() []*http.Cookie {
	access := s.cookie(s.opts.AccessCookie, "")
	access.MaxAge = -1
	refresh := s.cookie(s.opts.RefreshCookie, "")
	refresh.MaxAge = -1
	return []*http.Cookie{access, refresh}
}

func (s *SupabaseRefresher) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
