package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCast/internal/domain/models"
	"TradeCast/pkg/cache"
)

type countingCatalog struct {
	products, countries int
}

func (c *countingCatalog) ListProducts(context.Context) ([]models.CatalogEntry, error) {
	c.products++
	return []models.CatalogEntry{{Code: "1001", Name: "Пшеница"}}, nil
}

func (c *countingCatalog) ListCountries(context.Context) ([]models.CatalogEntry, error) {
	c.countries++
	return []models.CatalogEntry{{Code: "156", Name: "Китай"}}, nil
}

func TestCachedCatalogLoadsOnce(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()

	inner := &countingCatalog{}
	c := NewCachedCatalog(inner, mc, time.Minute)

	for i := 0; i < 3; i++ {
		products, err := c.ListProducts(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Пшеница", products[0].Name)
	}
	_, err := c.ListCountries(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, inner.products)
	assert.Equal(t, 1, inner.countries)
}

func TestPostgresCatalogListProducts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c, err := NewPostgresCatalog(mock, DefaultTables())
	require.NoError(t, err)

	mock.ExpectQuery(`FROM stg.tnveds`).
		WillReturnRows(pgxmock.NewRows([]string{"code", "name"}).
			AddRow("1001", "Пшеница").
			AddRow("2701", "Уголь"))

	got, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.CatalogEntry{{Code: "1001", Name: "Пшеница"}, {Code: "2701", Name: "Уголь"}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
