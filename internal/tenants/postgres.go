package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const tenantColumns = `id, slug, custom_domain, name, branding, features, default_currency, active`

// Open connects to Postgres with the pq driver.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect tenant directory: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}

// PostgresStore reads tenants from the tenants table.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Lookup finds an active tenant by slug, or by custom domain when site
// contains a dot.
func (s *PostgresStore) Lookup(ctx context.Context, site string) (*Tenant, error) {
	site = NormalizeSite(site)
	if site == "" {
		return nil, ErrTenantNotFound
	}

	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1 AND active`
	if isCustomDomain(site) {
		query = `SELECT ` + tenantColumns + ` FROM tenants WHERE lower(custom_domain) = $1 AND active`
	}

	var t Tenant
	if err := s.db.GetContext(ctx, &t, query, site); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("lookup tenant %q: %w", site, err)
	}
	return &t, nil
}

// Upsert inserts or updates a tenant keyed by slug and returns its ID.
func (s *PostgresStore) Upsert(ctx context.Context, t Tenant) (string, error) {
	const query = `
INSERT INTO tenants (slug, custom_domain, name, branding, features, default_currency, active)
VALUES (:slug, :custom_domain, :name, :branding, :features, :default_currency, :active)
ON CONFLICT (slug) DO UPDATE SET
    custom_domain = EXCLUDED.custom_domain,
    name = EXCLUDED.name,
    branding = EXCLUDED.branding,
    features = EXCLUDED.features,
    default_currency = EXCLUDED.default_currency,
    active = EXCLUDED.active,
    updated_at = now()
RETURNING id`

	t.Slug = NormalizeSite(t.Slug)
	if t.DefaultCurrency == "" {
		t.DefaultCurrency = "CLP"
	}
	stmt, err := s.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("prepare tenant upsert: %w", err)
	}
	defer stmt.Close()

	var id string
	if err := stmt.GetContext(ctx, &id, t); err != nil {
		return "", fmt.Errorf("upsert tenant %q: %w", t.Slug, err)
	}
	return id, nil
}
