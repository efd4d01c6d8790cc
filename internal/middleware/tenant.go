package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/tenant_portal/internal/logging"
	"github.com/R3E-Network/tenant_portal/internal/metrics"
	"github.com/R3E-Network/tenant_portal/internal/tenancy"
)

const (
	// RouteClassHeader tells the upstream which router branch handled the request.
	RouteClassHeader = "X-Portal-Route-Class"
	// TenantHeader carries the tenant segment on rewritten requests.
	TenantHeader = "X-Portal-Tenant"
)

// TenantRewrite resolves the request hostname and, for rewrites, forwards a
// copy of the request whose path is the decision's target. The Host header
// and the externally visible URL are left untouched.
func TenantRewrite(router *tenancy.Router, env tenancy.Environment, logger *logging.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := router.Route(tenancy.RoutingContext{
				Hostname:    r.Host,
				Path:        r.URL.Path,
				QueryString: r.URL.RawQuery,
				Environment: env,
			})
			class := string(decision.RouteClass())
			m.RecordRoutingDecision(class, tenancy.Kind(decision))

			ctx := r.Context()
			if rw, ok := decision.(tenancy.Rewrite); ok && rw.Tenant != "" {
				ctx = logging.WithTenant(ctx, rw.Tenant)
			}
			fwd := r.Clone(ctx)
			fwd.Header.Set(RouteClassHeader, class)
			fwd.Header.Del(TenantHeader)

			if rw, ok := decision.(tenancy.Rewrite); ok {
				applyRewrite(fwd, rw)
				logger.WithContext(ctx).WithFields(map[string]interface{}{
					"host":   r.Host,
					"path":   r.URL.Path,
					"target": rw.TargetPath,
					"class":  class,
				}).Debug("request rewritten")
			}

			next.ServeHTTP(w, fwd)
		})
	}
}

func applyRewrite(r *http.Request, rw tenancy.Rewrite) {
	target, query, hasQuery := strings.Cut(rw.TargetPath, "?")
	r.URL.Path = target
	r.URL.RawPath = ""
	if hasQuery {
		r.URL.RawQuery = query
	}
	if rw.Tenant != "" {
		r.Header.Set(TenantHeader, rw.Tenant)
	}
}
