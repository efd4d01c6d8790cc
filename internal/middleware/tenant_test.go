package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/R3E-Network/tenant_portal/internal/logging"
	"github.com/R3E-Network/tenant_portal/internal/metrics"
	"github.com/R3E-Network/tenant_portal/internal/tenancy"
)

type forwarded struct {
	path   string
	query  string
	host   string
	class  string
	tenant string
	ctxTen string
}

func serveTenant(t *testing.T, env tenancy.Environment, target string) (forwarded, *http.Request) {
	t.Helper()
	var got forwarded
	handler := TenantRewrite(tenancy.NewRouter(tenancy.DefaultPolicy()), env, newTestLogger(), metrics.New(false))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = forwarded{
				path:   r.URL.Path,
				query:  r.URL.RawQuery,
				host:   r.Host,
				class:  r.Header.Get(RouteClassHeader),
				tenant: r.Header.Get(TenantHeader),
				ctxTen: logging.GetTenant(r.Context()),
			}
		}))

	req := httptest.NewRequest("GET", target, nil)
	req.Header.Set(TenantHeader, "spoofed")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got, req
}

func TestTenantRewrite(t *testing.T) {
	prod := tenancy.Environment{RootDomain: "portal.test"}
	dev := tenancy.Environment{RootDomain: "localhost:3000", IsDevelopment: true}

	tests := []struct {
		name   string
		env    tenancy.Environment
		target string
		want   forwarded
	}{
		{
			name:   "tenant subdomain",
			env:    prod,
			target: "https://acme.portal.test/invoices?page=2",
			want:   forwarded{path: "/acme/invoices", query: "page=2", host: "acme.portal.test", class: "tenant", tenant: "acme", ctxTen: "acme"},
		},
		{
			name:   "admin landing",
			env:    prod,
			target: "https://admin.portal.test/",
			want:   forwarded{path: "/dashboard", host: "admin.portal.test", class: "admin", tenant: "admin", ctxTen: "admin"},
		},
		{
			name:   "admin keeps query",
			env:    prod,
			target: "https://app.portal.test/tenants?sort=name",
			want:   forwarded{path: "/tenants", query: "sort=name", host: "app.portal.test", class: "admin", tenant: "app", ctxTen: "app"},
		},
		{
			name:   "marketing root",
			env:    prod,
			target: "https://portal.test/pricing",
			want:   forwarded{path: "/pricing", host: "portal.test", class: "marketing"},
		},
		{
			name:   "api excluded",
			env:    prod,
			target: "https://acme.portal.test/api/receipts/parse",
			want:   forwarded{path: "/api/receipts/parse", host: "acme.portal.test", class: "excluded"},
		},
		{
			name:   "dev subdomain",
			env:    dev,
			target: "http://acme.localhost:3000/",
			want:   forwarded{path: "/acme/", host: "acme.localhost:3000", class: "tenant", tenant: "acme", ctxTen: "acme"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, original := serveTenant(t, tt.env, tt.target)
			if got != tt.want {
				t.Errorf("forwarded = %+v, want %+v", got, tt.want)
			}
			if original.Header.Get(RouteClassHeader) != "" {
				t.Error("original request headers mutated")
			}
		})
	}
}

func TestTenantRewrite_SecondPassDoesNotRewriteAgain(t *testing.T) {
	env := tenancy.Environment{RootDomain: "portal.test"}
	router := tenancy.NewRouter(tenancy.DefaultPolicy())
	m := metrics.New(false)

	var path string
	inner := TenantRewrite(router, env, newTestLogger(), m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
	}))
	handler := TenantRewrite(router, env, newTestLogger(), m)(inner)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "https://acme.portal.test/reports", nil))
	if path != "/acme/reports" {
		t.Errorf("path = %q, want /acme/reports", path)
	}
}
