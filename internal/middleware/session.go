package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/tenant_portal/internal/logging"
	"github.com/R3E-Network/tenant_portal/internal/metrics"
	"github.com/R3E-Network/tenant_portal/internal/session"
)

type refreshOutcome struct {
	res *session.Result
	err error
}

// SessionRefresh renews the identity session before routing. The call is
// bounded by timeout; on failure the request continues with the cookies it
// arrived with. Refreshed cookies are written to the response and replace
// the same-named cookies on the request passed downstream, whichever branch
// the router later takes.
func SessionRefresh(refresher session.Refresher, timeout time.Duration, logger *logging.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := refreshWithTimeout(r, refresher, timeout)
			if err != nil {
				logger.WithContext(r.Context()).WithError(err).Warn("session refresh failed, continuing with existing session")
				m.RecordSessionRefresh("error")
				next.ServeHTTP(w, r)
				return
			}

			outcome := session.OutcomeSkipped
			if res != nil && res.Outcome != "" {
				outcome = res.Outcome
			}
			m.RecordSessionRefresh(string(outcome))

			if res == nil || len(res.Cookies) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			for _, c := range res.Cookies {
				http.SetCookie(w, c)
			}

			ctx := r.Context()
			if res.UserID != "" && logging.GetUserID(ctx) == "" {
				ctx = logging.WithUserID(ctx, res.UserID)
			}
			next.ServeHTTP(w, withCookies(r.Clone(ctx), res.Cookies))
		})
	}
}

func refreshWithTimeout(r *http.Request, refresher session.Refresher, timeout time.Duration) (*session.Result, error) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	done := make(chan refreshOutcome, 1)
	go func() {
		res, err := refresher.Refresh(ctx, r)
		done <- refreshOutcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// withCookies replaces same-named cookies on r. Cookies that clear the
// session (MaxAge < 0) are removed from the request instead.
func withCookies(r *http.Request, updated []*http.Cookie) *http.Request {
	replaced := make(map[string]*http.Cookie, len(updated))
	for _, c := range updated {
		replaced[c.Name] = c
	}

	existing := r.Cookies()
	r.Header.Del("Cookie")
	for _, c := range existing {
		if _, ok := replaced[c.Name]; ok {
			continue
		}
		r.AddCookie(c)
	}
	for _, c := range updated {
		if c.MaxAge < 0 || c.Value == "" {
			continue
		}
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return r
}
