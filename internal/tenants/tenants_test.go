package tenants

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "slug", "custom_domain", "name", "branding", "features", "default_currency", "active"}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresStoreLookupBySlug(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM tenants WHERE slug = \$1 AND active`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"5f0c", "acme", nil, "Acme SpA",
			[]byte(`{"display_name":"Acme","primary_color":"#ff6600"}`),
			[]byte(`{"Receipts":true,"chat":false}`),
			"CLP", true,
		))

	tenant, err := store.Lookup(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Slug)
	assert.Nil(t, tenant.CustomDomain)
	assert.Equal(t, "#ff6600", tenant.Branding.PrimaryColor)
	assert.True(t, tenant.Features.Enabled("receipts"))
	assert.False(t, tenant.Features.Enabled("chat"))
	assert.False(t, tenant.Features.Enabled("unknown"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLookupByCustomDomain(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM tenants WHERE lower\(custom_domain\) = \$1 AND active`).
		WithArgs("portal.acme.com").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"5f0c", "acme", "portal.acme.com", "Acme SpA", []byte(`{}`), []byte(`{}`), "USD", true,
		))

	tenant, err := store.Lookup(context.Background(), "Portal.Acme.com:443")
	require.NoError(t, err)
	require.NotNil(t, tenant.CustomDomain)
	assert.Equal(t, "portal.acme.com", *tenant.CustomDomain)
	assert.Equal(t, "USD", tenant.DefaultCurrency)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLookupNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM tenants`).WithArgs("ghost").WillReturnRows(sqlmock.NewRows(columns))

	_, err := store.Lookup(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = store.Lookup(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrTenantNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLookupError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM tenants`).WillReturnError(errors.New("connection refused"))

	_, err := store.Lookup(context.Background(), "acme")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTenantNotFound))
}

func TestPostgresStoreUpsert(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectPrepare(`INSERT INTO tenants`).
		ExpectQuery().
		WithArgs("acme", nil, "Acme SpA", sqlmock.AnyArg(), sqlmock.AnyArg(), "CLP", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("5f0c"))

	id, err := store.Upsert(context.Background(), Tenant{
		Slug:     "Acme",
		Name:     "Acme SpA",
		Features: Features{"receipts": true},
		Active:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "5f0c", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	if b, ok := value.([]byte); ok {
		f.data[key] = string(b)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type mapDirectory struct {
	mu      sync.Mutex
	calls   int
	tenants map[string]*Tenant
	err     error
}

func (d *mapDirectory) Lookup(ctx context.Context, site string) (*Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	t, ok := d.tenants[site]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

func TestCachedDirectory(t *testing.T) {
	store := &fakeRedis{data: map[string]string{}}
	next := &mapDirectory{tenants: map[string]*Tenant{
		"acme": {ID: "1", Slug: "acme", Name: "Acme", Features: Features{"receipts": true}, Active: true},
	}}
	dir := NewCachedDirectory(store, next, time.Minute, nil)

	for i := 0; i < 3; i++ {
		tenant, err := dir.Lookup(context.Background(), "Acme")
		require.NoError(t, err)
		assert.Equal(t, "Acme", tenant.Name)
		assert.True(t, tenant.Features.Enabled("receipts"))
	}
	assert.Equal(t, 1, next.calls)

	_, err := dir.Lookup(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrTenantNotFound)
	_, err = dir.Lookup(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrTenantNotFound)
	assert.Equal(t, 3, next.calls, "misses must not be cached")

	require.NoError(t, dir.Invalidate(context.Background(), "acme"))
	_, err = dir.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 4, next.calls)
}

func TestCachedDirectoryRedisDown(t *testing.T) {
	store := &fakeRedis{data: map[string]string{}, err: errors.New("dial tcp: refused")}
	next := &mapDirectory{tenants: map[string]*Tenant{"acme": {Slug: "acme"}}}
	dir := NewCachedDirectory(store, next, time.Minute, nil)

	tenant, err := dir.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Slug)
}

func TestNormalizeSite(t *testing.T) {
	assert.Equal(t, "acme", NormalizeSite(" ACME "))
	assert.Equal(t, "portal.acme.com", NormalizeSite("portal.acme.com:8443"))
	assert.Equal(t, "portal.acme.com", NormalizeSite("portal.acme.com."))
}
