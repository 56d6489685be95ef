package usecase

import (
	"context"
	"fmt"
	"strings"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	domrepo "TradeCast/internal/domain/repository"
)

// Aggregator pulls grouped trade volumes for one filter from the store.
type Aggregator struct {
	store domrepo.TradeFlowStore
}

func NewAggregator(store domrepo.TradeFlowStore) *Aggregator {
	return &Aggregator{store: store}
}

// ValidateFilter rejects filters with unset selectors or an unknown direction.
func ValidateFilter(f models.SeriesFilter) error {
	if f.Product == nil || strings.TrimSpace(*f.Product) == "" {
		return domain.InvalidFilter("product", "product is required")
	}
	if f.Country == nil || strings.TrimSpace(*f.Country) == "" {
		return domain.InvalidFilter("country", "country is required")
	}
	if f.Direction == nil {
		return domain.InvalidFilter("direction", "direction is required")
	}
	if _, err := f.Direction.StoreCode(); err != nil {
		return domain.InvalidFilter("direction", err.Error())
	}
	return nil
}

// Aggregate returns the per-period volume rows for f. The store is not
// touched when f is invalid.
func (a *Aggregator) Aggregate(ctx context.Context, f models.SeriesFilter) ([]models.VolumeRow, error) {
	if err := ValidateFilter(f); err != nil {
		return nil, err
	}

	rows, err := a.store.QueryVolumes(ctx, f)
	if err != nil {
		return nil, domain.DataSource("query trade volumes", err)
	}
	if len(rows) == 0 {
		return nil, domain.EmptyResult(domain.StageFetch,
			fmt.Sprintf("no trade records for %s", f.Key()))
	}
	return rows, nil
}
