package repository

import (
	"context"
	"fmt"
	"time"

	"TradeCast/internal/domain/models"
	domrepo "TradeCast/internal/domain/repository"
	"TradeCast/pkg/cache"
)

// PostgresCatalog lists selector values from the lookup tables.
type PostgresCatalog struct {
	db        pgQuerier
	products  string
	countries string
}

func NewPostgresCatalog(db pgQuerier, tables Tables) (*PostgresCatalog, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &PostgresCatalog{
		db:        db,
		products:  fmt.Sprintf(`SELECT "KOD"::text, "NAME" FROM %s WHERE "NAME" IS NOT NULL ORDER BY "NAME"`, tables.Products),
		countries: fmt.Sprintf(`SELECT "KOD"::text, "NAME" FROM %s WHERE "NAME" IS NOT NULL ORDER BY "NAME"`, tables.Countries),
	}, nil
}

func (c *PostgresCatalog) ListProducts(ctx context.Context) ([]models.CatalogEntry, error) {
	return c.list(ctx, c.products)
}

func (c *PostgresCatalog) ListCountries(ctx context.Context) ([]models.CatalogEntry, error) {
	return c.list(ctx, c.countries)
}

func (c *PostgresCatalog) list(ctx context.Context, q string) ([]models.CatalogEntry, error) {
	rows, err := c.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	out := make([]models.CatalogEntry, 0, 256)
	for rows.Next() {
		var e models.CatalogEntry
		if err := rows.Scan(&e.Code, &e.Name); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CHCatalog is the ClickHouse variant of PostgresCatalog.
type CHCatalog struct {
	db        chQuerier
	products  string
	countries string
}

func NewCHCatalog(db chQuerier, tables Tables) (*CHCatalog, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &CHCatalog{
		db:        db,
		products:  fmt.Sprintf(`SELECT toString(KOD), NAME FROM %s WHERE NAME != '' ORDER BY NAME`, tables.Products),
		countries: fmt.Sprintf(`SELECT toString(KOD), NAME FROM %s WHERE NAME != '' ORDER BY NAME`, tables.Countries),
	}, nil
}

func (c *CHCatalog) ListProducts(ctx context.Context) ([]models.CatalogEntry, error) {
	return c.list(ctx, c.products)
}

func (c *CHCatalog) ListCountries(ctx context.Context) ([]models.CatalogEntry, error) {
	return c.list(ctx, c.countries)
}

func (c *CHCatalog) list(ctx context.Context, q string) ([]models.CatalogEntry, error) {
	rows, err := c.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	out := make([]models.CatalogEntry, 0, 256)
	for rows.Next() {
		var e models.CatalogEntry
		if err := rows.Scan(&e.Code, &e.Name); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CachedCatalog memoizes catalog lists. Catalog data changes only when the
// staging tables are reloaded, so a TTL of an hour or so is plenty.
type CachedCatalog struct {
	next  domrepo.Catalog
	cache cache.Service
	ttl   time.Duration
}

func NewCachedCatalog(next domrepo.Catalog, c cache.Service, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{next: next, cache: c, ttl: ttl}
}

func (c *CachedCatalog) ListProducts(ctx context.Context) ([]models.CatalogEntry, error) {
	return cache.Remember(ctx, c.cache, cache.Key("catalog", "products"), c.ttl, c.next.ListProducts)
}

func (c *CachedCatalog) ListCountries(ctx context.Context) ([]models.CatalogEntry, error) {
	return cache.Remember(ctx, c.cache, cache.Key("catalog", "countries"), c.ttl, c.next.ListCountries)
}

var (
	_ domrepo.Catalog = (*PostgresCatalog)(nil)
	_ domrepo.Catalog = (*CHCatalog)(nil)
	_ domrepo.Catalog = (*CachedCatalog)(nil)
)
