// Package portal assembles the edge HTTP handler: local API routes plus the
// session-refresh, tenant-rewrite and reverse-proxy chain for everything else.
package portal

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/tenant_portal/internal/currency"
	"github.com/R3E-Network/tenant_portal/internal/logging"
	"github.com/R3E-Network/tenant_portal/internal/metrics"
	"github.com/R3E-Network/tenant_portal/internal/middleware"
	"github.com/R3E-Network/tenant_portal/internal/session"
	"github.com/R3E-Network/tenant_portal/internal/tenancy"
	"github.com/R3E-Network/tenant_portal/internal/tenants"
)

const serviceName = "portal-edge"

// Options are the collaborators the handler is built from. Directory is
// optional; the tenant route is only mounted when it is set.
type Options struct {
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
	Router      *tenancy.Router
	Environment tenancy.Environment

	Refresher      session.Refresher
	RefreshTimeout time.Duration

	Verifier     middleware.TokenVerifier
	AccessCookie string

	Converter *currency.Converter
	Directory tenants.Directory

	CORS        *middleware.CORSMiddleware
	RateLimiter *middleware.RateLimiter

	Upstream http.Handler
}

func (o *Options) validate() error {
	switch {
	case o.Logger == nil:
		return fmt.Errorf("logger is required")
	case o.Metrics == nil:
		return fmt.Errorf("metrics is required")
	case o.Router == nil:
		return fmt.Errorf("tenant router is required")
	case o.Verifier == nil:
		return fmt.Errorf("token verifier is required")
	case o.Converter == nil:
		return fmt.Errorf("currency converter is required")
	case o.Upstream == nil:
		return fmt.Errorf("upstream handler is required")
	}
	if o.Refresher == nil {
		o.Refresher = session.Noop
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = 2 * time.Second
	}
	if o.CORS == nil {
		o.CORS = middleware.NewCORSMiddleware(nil)
	}
	if o.RateLimiter == nil {
		o.RateLimiter = middleware.NewRateLimiter(20, 40, o.Logger)
	}
	return nil
}

// NewHandler builds the edge router.
//
// Every request is traced, measured and has its session refreshed. /health
// and /metrics (apex host only) and the local /api routes are served here;
// any other path goes through the tenant rewrite and on to the upstream
// renderer.
func NewHandler(opts Options) (http.Handler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	h := &handlers{
		log:       opts.Logger,
		metrics:   opts.Metrics,
		converter: opts.Converter,
		directory: opts.Directory,
	}
	auth := middleware.NewAuthMiddleware(opts.Verifier, opts.Logger, opts.AccessCookie, nil)

	r := mux.NewRouter()
	r.Use(
		middleware.NewTracingMiddleware(opts.Logger).Handler,
		middleware.MetricsMiddleware(serviceName, opts.Metrics),
		middleware.SessionRefresh(opts.Refresher, opts.RefreshTimeout, opts.Logger, opts.Metrics),
	)

	// Tenant hosts own every non-excluded path, so the operational endpoints
	// only answer on the apex domain and on bare IPs used by probes.
	ops := r.MatcherFunc(operationalHost(opts.Router, opts.Environment)).Subrouter()
	ops.HandleFunc("/health", h.health).Methods(http.MethodGet)
	ops.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(opts.CORS.Handler, auth.Optional, opts.RateLimiter.Handler)
	api.Handle("/receipts/parse", auth.Handler(http.HandlerFunc(h.parseReceipt))).
		Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/exchange/rates", h.exchangeRates).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/exchange/convert", h.convert).Methods(http.MethodGet, http.MethodOptions)
	if opts.Directory != nil {
		api.HandleFunc("/tenants/{site}", h.tenant).Methods(http.MethodGet, http.MethodOptions)
	}

	// Everything else, including /api paths the edge does not serve, belongs
	// to the upstream renderer.
	rewrite := middleware.TenantRewrite(opts.Router, opts.Environment, opts.Logger, opts.Metrics)
	r.PathPrefix("/").Handler(rewrite(opts.Upstream))

	return r, nil
}

func operationalHost(router *tenancy.Router, env tenancy.Environment) mux.MatcherFunc {
	return func(r *http.Request, _ *mux.RouteMatch) bool {
		if net.ParseIP(tenancy.StripPort(r.Host)) != nil {
			return true
		}
		return router.IsRootHost(r.Host, env)
	}
}
