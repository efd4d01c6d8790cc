package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ROOT_DOMAIN", "Portal.Example.com")
	t.Setenv("UPSTREAM_URL", "http://localhost:3000")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "portal.example.com", cfg.RootDomain)
	assert.Equal(t, EnvProduction, cfg.AppEnv)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.SessionRefreshTimeout)
	assert.Equal(t, 20, cfg.APIRateLimit)
	assert.Equal(t, 40, cfg.APIRateBurst)
	assert.Equal(t, []string{"USD", "CLP"}, cfg.FX.Bases)
	assert.Equal(t, "@every 1h", cfg.FX.RefreshSchedule)
	assert.Equal(t, "https://open.er-api.com/v6", cfg.FX.APIURL)
	assert.Empty(t, cfg.CORSOrigins)
	assert.Contains(t, cfg.RoutingPolicy.ReservedPrefixes, "/api")
	assert.Equal(t, "portal.example.com", cfg.Environment().RootDomain)
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "Development")
	t.Setenv("FX_BASES", "usd, eur,USD")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("SESSION_REFRESH_TIMEOUT", "500ms")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.Environment().IsDevelopment)
	assert.Equal(t, []string{"USD", "EUR"}, cfg.FX.Bases)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 500*time.Millisecond, cfg.SessionRefreshTimeout)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing root domain", map[string]string{"ROOT_DOMAIN": ""}},
		{"relative upstream", map[string]string{"UPSTREAM_URL": "/renderer"}},
		{"unknown environment", map[string]string{"APP_ENV": "qa"}},
		{"supabase without key", map[string]string{"SUPABASE_URL": "https://x.supabase.co"}},
		{"zero rate limit", map[string]string{"API_RATE_LIMIT": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				if v == "" {
					unsetEnv(t, k)
					continue
				}
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadEnvFile(t *testing.T) {
	unsetEnv(t, "ROOT_DOMAIN")
	unsetEnv(t, "UPSTREAM_URL")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ROOT_DOMAIN=example.org\nUPSTREAM_URL=http://renderer:3000\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "example.org", cfg.RootDomain)
	assert.Equal(t, "http://renderer:3000", cfg.UpstreamURL)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	setBaseEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestLoadPolicyFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admin_labels: [console]\nroot_app_paths:\n  - /pricing-app\n"), 0o600))

	policy, err := LoadPolicyFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"console"}, policy.AdminLabels)
	assert.Equal(t, []string{"/pricing-app"}, policy.RootAppPaths)
	assert.Contains(t, policy.ReservedPrefixes, "/_next")
	assert.Equal(t, "/dashboard", policy.AdminLandingPath)

	setBaseEnv(t)
	t.Setenv("ROUTING_POLICY_FILE", path)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"console"}, cfg.RoutingPolicy.AdminLabels)
}

func TestLoadPolicyRejectsCatchAllPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reserved_prefixes: [\"/\"]\n"), 0o600))

	_, err := LoadPolicyFromPath(path)
	assert.Error(t, err)

	_, err = LoadPolicyFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
