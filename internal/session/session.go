// Package session refreshes the identity session carried in request cookies.
package session

import (
	"context"
	"net/http"
)

// Outcome labels what a refresh attempt did.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeCleared   Outcome = "cleared"
)

// Result carries the cookies a refresh produced. Cookies with MaxAge < 0
// clear the session.
type Result struct {
	Cookies []*http.Cookie
	Outcome Outcome
	UserID  string
}

// Refresher renews the session attached to a request before it is routed.
// Implementations must be safe for concurrent use.
type Refresher interface {
	Refresh(ctx context.Context, r *http.Request) (*Result, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, r *http.Request) (*Result, error)

func (f RefresherFunc) Refresh(ctx context.Context, r *http.Request) (*Result, error) {
	return f(ctx, r)
}

// Noop never refreshes. It is used when no identity backend is configured.
var Noop Refresher = RefresherFunc(func(context.Context, *http.Request) (*Result, error) {
	return &Result{Outcome: OutcomeSkipped}, nil
})
