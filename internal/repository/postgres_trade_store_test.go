package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCast/internal/domain/models"
)

func newMockStore(t *testing.T) (*PostgresTradeStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewPostgresTradeStore(mock, DefaultTables(), nil)
	require.NoError(t, err)
	return s, mock
}

func TestPostgresTradeStoreQueryVolumes(t *testing.T) {
	s, mock := newMockStore(t)

	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM stg.skfo s`)).
		WithArgs("Пшеница", "Китай", "ЭК").
		WillReturnRows(pgxmock.NewRows([]string{"period", "volume"}).
			AddRow(jan, 100.0).
			AddRow(feb, 110.5))

	rows, err := s.QueryVolumes(context.Background(), models.NewSeriesFilter("Пшеница", "Китай", models.DirectionExport))
	require.NoError(t, err)
	assert.Equal(t, []models.VolumeRow{{Period: jan, Volume: 100}, {Period: feb, Volume: 110.5}}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTradeStoreEmptyResult(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT`).
		WithArgs("Уголь", "Монголия", "ИМ").
		WillReturnRows(pgxmock.NewRows([]string{"period", "volume"}))

	rows, err := s.QueryVolumes(context.Background(), models.NewSeriesFilter("Уголь", "Монголия", models.DirectionImport))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPostgresTradeStoreQueryError(t *testing.T) {
	s, mock := newMockStore(t)

	cause := errors.New("connection reset by peer")
	mock.ExpectQuery(`SELECT`).WillReturnError(cause)

	_, err := s.QueryVolumes(context.Background(), models.NewSeriesFilter("a", "b", models.DirectionImport))
	assert.ErrorIs(t, err, cause)
}

func TestPostgresTradeStoreRejectsIncompleteFilter(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.QueryVolumes(context.Background(), models.SeriesFilter{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query may be issued")
}

func TestTablesValidate(t *testing.T) {
	assert.NoError(t, DefaultTables().Validate())

	bad := DefaultTables()
	bad.Facts = "stg.skfo; DROP TABLE x"
	assert.Error(t, bad.Validate())

	_, err := NewPostgresTradeStore(nil, bad, nil)
	assert.Error(t, err)
}

func TestClickHouseQueryUsesConfiguredTables(t *testing.T) {
	q := clickhouseVolumesQuery(Tables{Facts: "trade.facts", Products: "trade.products", Countries: "trade.countries"})
	assert.Contains(t, q, "FROM trade.facts AS s")
	assert.Contains(t, q, "INNER JOIN trade.products AS t")
	assert.Contains(t, q, "INNER JOIN trade.countries AS c")
	assert.Contains(t, q, "ORDER BY period ASC")
}
