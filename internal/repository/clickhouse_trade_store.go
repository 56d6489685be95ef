package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TradeCast/internal/domain/models"
	domrepo "TradeCast/internal/domain/repository"
	"TradeCast/pkg/logger"
)

// chQuerier is satisfied by *pkg/clickhouse.Client.
type chQuerier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Health(ctx context.Context) error
}

// CHTradeStore reads aggregated trade volumes from a ClickHouse replica of
// the staging tables.
type CHTradeStore struct {
	db  chQuerier
	q   string
	log *logger.Logger
}

func NewCHTradeStore(ch chQuerier, tables Tables, l *logger.Logger) (*CHTradeStore, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.Nop()
	}
	return &CHTradeStore{
		db:  ch,
		q:   clickhouseVolumesQuery(tables),
		log: l.With(logger.String("store", "clickhouse")),
	}, nil
}

func clickhouseVolumesQuery(t Tables) string {
	return fmt.Sprintf(`
        SELECT toDate(s.period) AS period, toFloat64(sum(s.Stoim)) AS volume
        FROM %s AS s
        INNER JOIN %s AS t ON s.tnved = t.KOD
        INNER JOIN %s AS c ON s.nastranapr = c.KOD
        WHERE t.NAME = ? AND c.NAME = ? AND s.napr = ?
        GROUP BY period
        ORDER BY period ASC`, t.Facts, t.Products, t.Countries)
}

func (s *CHTradeStore) QueryVolumes(ctx context.Context, f models.SeriesFilter) ([]models.VolumeRow, error) {
	product, country, napr, err := filterArgs(f)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.db.Query(ctx, s.q, product, country, napr)
	if err != nil {
		s.log.Error("clickhouse query_volumes error", logger.String("filter", f.Key()), logger.Error(err))
		return nil, fmt.Errorf("query volumes: %w", err)
	}
	defer rows.Close()

	var out []models.VolumeRow
	for rows.Next() {
		var r models.VolumeRow
		if err := rows.Scan(&r.Period, &r.Volume); err != nil {
			return nil, fmt.Errorf("scan volume row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read volume rows: %w", err)
	}

	s.log.Debug("volumes loaded",
		logger.String("filter", f.Key()),
		logger.Int("rows", len(out)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHTradeStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

// Close is a no-op; the connection belongs to pkg/clickhouse.Client.
func (s *CHTradeStore) Close() error { return nil }

var _ domrepo.TradeFlowStore = (*CHTradeStore)(nil)
