// Command tenantctl applies the tenant schema and upserts tenants from a YAML
// file. Cached lookups for every written slug and custom domain are dropped
// when REDIS_URL is set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/tenant_portal/internal/logging"
	"github.com/R3E-Network/tenant_portal/internal/platform/migrations"
	"github.com/R3E-Network/tenant_portal/internal/tenants"
)

type seedFile struct {
	Tenants []seedTenant `yaml:"tenants"`
}

type seedTenant struct {
	Slug            string            `yaml:"slug"`
	CustomDomain    string            `yaml:"custom_domain"`
	Name            string            `yaml:"name"`
	DefaultCurrency string            `yaml:"default_currency"`
	Inactive        bool              `yaml:"inactive"`
	Features        map[string]bool   `yaml:"features"`
	Branding        map[string]string `yaml:"branding"`
}

func (s seedTenant) toTenant() tenants.Tenant {
	t := tenants.Tenant{
		Slug:            strings.ToLower(strings.TrimSpace(s.Slug)),
		Name:            s.Name,
		DefaultCurrency: strings.ToUpper(s.DefaultCurrency),
		Active:          !s.Inactive,
		Features:        tenants.Features(s.Features),
		Branding: tenants.Branding{
			DisplayName:    s.Branding["display_name"],
			LogoURL:        s.Branding["logo_url"],
			FaviconURL:     s.Branding["favicon_url"],
			PrimaryColor:   s.Branding["primary_color"],
			SecondaryColor: s.Branding["secondary_color"],
		},
	}
	if t.DefaultCurrency == "" {
		t.DefaultCurrency = "CLP"
	}
	if d := tenants.NormalizeSite(s.CustomDomain); d != "" {
		t.CustomDomain = &d
	}
	return t
}

func main() {
	var (
		envFile     = flag.String("env", ".env", "Path to .env with DATABASE_URL and REDIS_URL")
		seedPath    = flag.String("file", "tenants.yaml", "YAML file listing tenants to upsert")
		migrateOnly = flag.Bool("migrate-only", false, "Apply migrations and exit")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load env (%s): %v", *envFile, err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatalf("DATABASE_URL missing")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := logging.New("tenantctl", os.Getenv("LOG_LEVEL"), "text")

	db, err := tenants.Open(ctx, dsn)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}
	logger.Info("migrations applied")
	if *migrateOnly {
		return
	}

	seeds, err := readSeed(*seedPath)
	if err != nil {
		log.Fatalf("read %s: %v", *seedPath, err)
	}

	var cache *tenants.CachedDirectory
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			log.Fatalf("parse REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		cache = tenants.NewCachedDirectory(rdb, nil, 0, logger)
	}

	store := tenants.NewPostgresStore(db)
	for _, s := range seeds.Tenants {
		t := s.toTenant()
		if t.Slug == "" || t.Name == "" {
			log.Fatalf("tenant entries need slug and name: %+v", s)
		}
		id, err := store.Upsert(ctx, t)
		if err != nil {
			log.Fatalf("upsert %s: %v", t.Slug, err)
		}
		logger.WithFields(map[string]interface{}{"slug": t.Slug, "id": id}).Info("tenant upserted")

		if cache == nil {
			continue
		}
		sites := []string{t.Slug}
		if t.CustomDomain != nil {
			sites = append(sites, *t.CustomDomain)
		}
		for _, site := range sites {
			if err := cache.Invalidate(ctx, site); err != nil {
				logger.WithError(err).WithField("site", site).Warn("cache invalidation failed")
			}
		}
	}
	fmt.Printf("upserted %d tenants\n", len(seeds.Tenants))
}

func readSeed(path string) (*seedFile, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, err
	}
	return &seed, nil
}
