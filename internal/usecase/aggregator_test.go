package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
)

func TestAggregateRejectsIncompleteFilterWithoutQuery(t *testing.T) {
	product, blank := "Пшеница", "  "
	exp, bogus := models.DirectionExport, models.Direction("transit")

	cases := map[string]struct {
		filter models.SeriesFilter
		field  string
	}{
		"nil country":     {models.SeriesFilter{Product: &product, Direction: &exp}, "country"},
		"blank product":   {models.SeriesFilter{Product: &blank, Country: &product, Direction: &exp}, "product"},
		"nil direction":   {models.SeriesFilter{Product: &product, Country: &product}, "direction"},
		"bogus direction": {models.SeriesFilter{Product: &product, Country: &product, Direction: &bogus}, "direction"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{rows: quarterRows()}
			_, err := NewAggregator(store).Aggregate(context.Background(), tc.filter)

			require.ErrorIs(t, err, domain.ErrInvalidFilter)
			var de *domain.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.field, de.Field)
			assert.Zero(t, store.Calls())
		})
	}
}

func TestAggregateEmptyResult(t *testing.T) {
	_, err := NewAggregator(&fakeStore{}).Aggregate(context.Background(), validFilter())
	assert.ErrorIs(t, err, domain.ErrEmptyResult)
}

func TestAggregateWrapsStoreFailure(t *testing.T) {
	cause := errors.New("connection refused")
	_, err := NewAggregator(&fakeStore{err: cause}).Aggregate(context.Background(), validFilter())

	assert.ErrorIs(t, err, domain.ErrDataSource)
	assert.ErrorIs(t, err, cause)
	assert.True(t, domain.IsRetryable(err))
}

func TestAggregatePassesFilterThrough(t *testing.T) {
	store := &fakeStore{rows: quarterRows()}
	rows, err := NewAggregator(store).Aggregate(context.Background(), validFilter())
	require.NoError(t, err)

	assert.Len(t, rows, 3)
	require.Len(t, store.got, 1)
	assert.Equal(t, validFilter().Key(), store.got[0].Key())
}
