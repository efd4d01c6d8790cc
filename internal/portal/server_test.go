package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/tenant_portal/internal/currency"
	"github.com/R3E-Network/tenant_portal/internal/logging"
	"github.com/R3E-Network/tenant_portal/internal/metrics"
	"github.com/R3E-Network/tenant_portal/internal/session"
	"github.com/R3E-Network/tenant_portal/internal/supabase"
	"github.com/R3E-Network/tenant_portal/internal/tenancy"
	"github.com/R3E-Network/tenant_portal/internal/tenants"
)

const jwtSecret = "portal-test-secret"

type upstreamView struct {
	Path      string `json:"path"`
	Query     string `json:"query"`
	Host      string `json:"host"`
	Class     string `json:"class"`
	Tenant    string `json:"tenant"`
	Cookie    string `json:"cookie"`
	Forwarded string `json:"forwarded_host"`
	TraceID   string `json:"trace_id"`
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(upstreamView{
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Host:      r.Host,
			Class:     r.Header.Get("X-Portal-Route-Class"),
			Tenant:    r.Header.Get("X-Portal-Tenant"),
			Cookie:    r.Header.Get("Cookie"),
			Forwarded: r.Header.Get("X-Forwarded-Host"),
			TraceID:   r.Header.Get("X-Trace-ID"),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type memoryDirectory map[string]*tenants.Tenant

func (d memoryDirectory) Lookup(ctx context.Context, site string) (*tenants.Tenant, error) {
	if t, ok := d[site]; ok {
		return t, nil
	}
	return nil, tenants.ErrTenantNotFound
}

// cookieRefresher rotates the access cookie whenever a refresh cookie is present.
var cookieRefresher = session.RefresherFunc(func(ctx context.Context, r *http.Request) (*session.Result, error) {
	if _, err := r.Cookie(session.DefaultRefreshCookie); err != nil {
		return &session.Result{Outcome: session.OutcomeSkipped}, nil
	}
	return &session.Result{
		Outcome: session.OutcomeRefreshed,
		Cookies: []*http.Cookie{{Name: session.DefaultAccessCookie, Value: "rotated", Path: "/", HttpOnly: true}},
	}, nil
})

type testEdge struct {
	handler http.Handler
	metrics *metrics.Metrics
}

func newTestEdge(t *testing.T, upstreamURL string) *testEdge {
	t.Helper()
	logger := logging.NewWithOutput("test", "error", "json", &bytes.Buffer{})
	m := metrics.New(false)

	target, err := url.Parse(upstreamURL)
	require.NoError(t, err)

	rates := currency.Rates{
		Base: "USD",
		Values: map[string]decimal.Decimal{
			"CLP": decimal.RequireFromString("950.5"),
			"EUR": decimal.RequireFromString("0.92"),
		},
		FetchedAt: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}

	handler, err := NewHandler(Options{
		Logger:       logger,
		Metrics:      m,
		Router:       tenancy.NewRouter(tenancy.DefaultPolicy()),
		Environment:  tenancy.Environment{RootDomain: "portal.test"},
		Refresher:    cookieRefresher,
		Verifier:     supabase.NewAuthClient(supabase.Config{JWTSecret: jwtSecret}, nil),
		AccessCookie: session.DefaultAccessCookie,
		Converter:    currency.NewConverter(currency.NewStaticProvider(rates)),
		Directory: memoryDirectory{
			"acme": {ID: "1", Slug: "acme", Name: "Acme SpA", DefaultCurrency: "CLP", Active: true,
				Features: tenants.Features{"receipts": true}},
		},
		Upstream: NewUpstreamProxy(target, logger),
	})
	require.NoError(t, err)
	return &testEdge{handler: handler, metrics: m}
}

func (e *testEdge) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) upstreamView {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v upstreamView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "user-1",
		"role": "authenticated",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestEdgeRewritesTenantRequests(t *testing.T) {
	upstream := newUpstream(t)
	edge := newTestEdge(t, upstream.URL)

	tests := []struct {
		name   string
		target string
		want   upstreamView
	}{
		{
			name:   "tenant subdomain",
			target: "https://acme.portal.test/invoices?page=2",
			want:   upstreamView{Path: "/acme/invoices", Query: "page=2", Host: "acme.portal.test", Class: "tenant", Tenant: "acme"},
		},
		{
			name:   "admin console",
			target: "https://admin.portal.test/",
			want:   upstreamView{Path: "/dashboard", Host: "admin.portal.test", Class: "admin", Tenant: "admin"},
		},
		{
			name:   "marketing root",
			target: "https://portal.test/pricing",
			want:   upstreamView{Path: "/pricing", Host: "portal.test", Class: "marketing"},
		},
		{
			name:   "static asset on tenant host",
			target: "https://acme.portal.test/logo.png",
			want:   upstreamView{Path: "/logo.png", Host: "acme.portal.test", Class: "excluded"},
		},
		{
			name:   "renderer api route",
			target: "https://acme.portal.test/api/webhooks/n8n",
			want:   upstreamView{Path: "/api/webhooks/n8n", Host: "acme.portal.test", Class: "excluded"},
		},
		{
			name:   "custom domain",
			target: "https://billing.acme.com/",
			want:   upstreamView{Path: "/billing.acme.com/", Host: "billing.acme.com", Class: "tenant", Tenant: "billing.acme.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeView(t, edge.do(httptest.NewRequest(http.MethodGet, tt.target, nil)))
			assert.Equal(t, tt.want.Path, got.Path)
			assert.Equal(t, tt.want.Query, got.Query)
			assert.Equal(t, tt.want.Host, got.Host)
			assert.Equal(t, tt.want.Class, got.Class)
			assert.Equal(t, tt.want.Tenant, got.Tenant)
			assert.Equal(t, tt.want.Host, got.Forwarded)
			assert.NotEmpty(t, got.TraceID)
		})
	}
}

func TestEdgePropagatesRefreshedCookiesOnEveryBranch(t *testing.T) {
	upstream := newUpstream(t)
	edge := newTestEdge(t, upstream.URL)

	for _, target := range []string{
		"https://acme.portal.test/",
		"https://portal.test/",
		"https://acme.portal.test/_next/static/chunk.js",
		"https://acme.portal.test/api/exchange/rates",
	} {
		t.Run(target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			req.AddCookie(&http.Cookie{Name: session.DefaultAccessCookie, Value: "stale"})
			req.AddCookie(&http.Cookie{Name: session.DefaultRefreshCookie, Value: "refresh"})
			rec := edge.do(req)

			require.Equal(t, http.StatusOK, rec.Code)
			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, "rotated", cookies[0].Value)

			if !strings.Contains(target, "/api/") {
				got := decodeView(t, rec)
				assert.Contains(t, got.Cookie, session.DefaultAccessCookie+"=rotated")
				assert.NotContains(t, got.Cookie, "stale")
			}
		})
	}
}

func TestEdgeLoopGuard(t *testing.T) {
	upstream := newUpstream(t)
	edge := newTestEdge(t, upstream.URL)

	got := decodeView(t, edge.do(httptest.NewRequest(http.MethodGet, "https://acme.portal.test/acme/settings", nil)))
	assert.Equal(t, "/acme/settings", got.Path)
	assert.Equal(t, "loop_guard", got.Class)
}

func TestReceiptParseRequiresAuth(t *testing.T) {
	edge := newTestEdge(t, "http://127.0.0.1:1")
	body := `{"text":"Supermercado Líder\nRUT 76.123.456-7\nFecha: 15/03/2024\nTOTAL $12.990,50"}`

	req := httptest.NewRequest(http.MethodPost, "https://acme.portal.test/api/receipts/parse", strings.NewReader(body))
	rec := edge.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "https://acme.portal.test/api/receipts/parse", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t))
	rec = edge.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var parsed struct {
		Total       *float64 `json:"total"`
		Date        *string  `json:"date"`
		Vendor      *string  `json:"vendor"`
		Description string   `json:"description"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.NotNil(t, parsed.Total)
	assert.Equal(t, 12990.5, *parsed.Total)
	require.NotNil(t, parsed.Date)
	assert.Equal(t, "2024-03-15", *parsed.Date)
	require.NotNil(t, parsed.Vendor)
	assert.Equal(t, "Supermercado Líder", *parsed.Vendor)
	assert.True(t, strings.HasPrefix(parsed.Description, "Supermercado Líder | RUT"))

	req = httptest.NewRequest(http.MethodPost, "https://acme.portal.test/api/receipts/parse", strings.NewReader(`{"txt":1}`))
	req.Header.Set("Authorization", bearer(t))
	assert.Equal(t, http.StatusBadRequest, edge.do(req).Code)
}

func TestExchangeEndpoints(t *testing.T) {
	edge := newTestEdge(t, "http://127.0.0.1:1")

	rec := edge.do(httptest.NewRequest(http.MethodGet, "https://portal.test/api/exchange/convert?amount=100&from=usd&to=CLP", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var conv map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, "95050", conv["result"])
	assert.Equal(t, "$95.050", conv["formatted"])
	assert.Equal(t, "USD", conv["from"])

	rec = edge.do(httptest.NewRequest(http.MethodGet, "https://portal.test/api/exchange/rates?base=clp", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var rates map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rates))
	assert.Equal(t, "CLP", rates["base"])

	for _, target := range []string{
		"/api/exchange/convert?amount=abc&from=USD&to=CLP",
		"/api/exchange/convert?amount=1&from=USD",
		"/api/exchange/convert?amount=1&from=USD&to=GBP",
		"/api/exchange/convert?amount=1&from=DOLLAR&to=CLP",
		"/api/exchange/rates?base=12",
	} {
		rec := edge.do(httptest.NewRequest(http.MethodGet, "https://portal.test"+target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestTenantEndpoint(t *testing.T) {
	edge := newTestEdge(t, "http://127.0.0.1:1")

	rec := edge.do(httptest.NewRequest(http.MethodGet, "https://portal.test/api/tenants/ACME", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var tenant tenants.Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenant))
	assert.Equal(t, "Acme SpA", tenant.Name)
	assert.True(t, tenant.Features.Enabled("receipts"))

	rec = edge.do(httptest.NewRequest(http.MethodGet, "https://portal.test/api/tenants/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	upstream := newUpstream(t)
	edge := newTestEdge(t, upstream.URL)

	rec := edge.do(httptest.NewRequest(http.MethodGet, "https://portal.test/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	edge.do(httptest.NewRequest(http.MethodGet, "https://acme.portal.test/", nil))

	rec = edge.do(httptest.NewRequest(http.MethodGet, "https://portal.test/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tenant_portal_routing_decisions_total{class="tenant",decision="rewrite"} 1`)
}

func TestOperationalRoutesBelongToTenantsOnTenantHosts(t *testing.T) {
	upstream := newUpstream(t)
	edge := newTestEdge(t, upstream.URL)

	for _, p := range []string{"/metrics", "/health"} {
		got := decodeView(t, edge.do(httptest.NewRequest(http.MethodGet, "https://acme.portal.test"+p, nil)))
		assert.Equal(t, "/acme"+p, got.Path)
		assert.Equal(t, "tenant", got.Class)

		got = decodeView(t, edge.do(httptest.NewRequest(http.MethodGet, "https://billing.acme.com"+p, nil)))
		assert.Equal(t, "/billing.acme.com"+p, got.Path)
	}

	rec := edge.do(httptest.NewRequest(http.MethodGet, "https://www.portal.test/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tenant_portal_routing_decisions_total")

	rec = edge.do(httptest.NewRequest(http.MethodGet, "http://10.0.0.5:8080/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "portal-edge", health["service"])
}

func TestUpstreamUnavailable(t *testing.T) {
	upstream := newUpstream(t)
	addr := upstream.URL
	upstream.Close()

	edge := newTestEdge(t, addr)
	rec := edge.do(httptest.NewRequest(http.MethodGet, "https://acme.portal.test/", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPSTREAM_ERROR")
}

func TestNewHandlerValidatesOptions(t *testing.T) {
	_, err := NewHandler(Options{})
	assert.Error(t, err)
}
