// Package tenants resolves the hostname segment chosen by the router to the
// tenant's branding and feature flags.
package tenants

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrTenantNotFound is returned for unknown or inactive tenants.
var ErrTenantNotFound = errors.New("tenant not found")

// Branding is the white-label look of a tenant portal.
type Branding struct {
	DisplayName    string `json:"display_name,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`
	FaviconURL     string `json:"favicon_url,omitempty"`
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
}

// Value implements driver.Valuer for the JSONB column.
func (b Branding) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner for the JSONB column.
func (b *Branding) Scan(src interface{}) error {
	return scanJSON(src, b)
}

// Features maps feature flags to their state.
type Features map[string]bool

// Enabled reports whether flag is switched on. Unknown flags are off.
func (f Features) Enabled(flag string) bool {
	return f[strings.ToLower(strings.TrimSpace(flag))]
}

func (f Features) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

func (f *Features) Scan(src interface{}) error {
	raw := map[string]bool{}
	if err := scanJSON(src, &raw); err != nil {
		return err
	}
	out := make(Features, len(raw))
	for k, v := range raw {
		out[strings.ToLower(k)] = v
	}
	*f = out
	return nil
}

// Tenant is one client company of the platform.
type Tenant struct {
	ID              string   `json:"id" db:"id"`
	Slug            string   `json:"slug" db:"slug"`
	CustomDomain    *string  `json:"custom_domain,omitempty" db:"custom_domain"`
	Name            string   `json:"name" db:"name"`
	Branding        Branding `json:"branding" db:"branding"`
	Features        Features `json:"features" db:"features"`
	DefaultCurrency string   `json:"default_currency" db:"default_currency"`
	Active          bool     `json:"active" db:"active"`
}

// Directory looks tenants up by site: a subdomain label or a custom domain.
type Directory interface {
	Lookup(ctx context.Context, site string) (*Tenant, error)
}

// NormalizeSite lowercases site and strips any port.
func NormalizeSite(site string) string {
	site = strings.ToLower(strings.TrimSpace(site))
	if host, _, err := net.SplitHostPort(site); err == nil {
		site = host
	}
	return strings.TrimSuffix(site, ".")
}

func isCustomDomain(site string) bool {
	return strings.Contains(site, ".")
}

func scanJSON(src interface{}, dst interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
