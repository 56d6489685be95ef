package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"TradeCast/internal/domain/models"
	domrepo "TradeCast/internal/domain/repository"
	"TradeCast/pkg/logger"
)

// pgQuerier is the subset of *pgxpool.Pool the store uses. pgxmock pools
// satisfy it in tests.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// PostgresTradeStore reads aggregated trade volumes from PostgreSQL.
type PostgresTradeStore struct {
	db  pgQuerier
	q   string
	log *logger.Logger
}

func NewPostgresTradeStore(db pgQuerier, tables Tables, l *logger.Logger) (*PostgresTradeStore, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.Nop()
	}
	return &PostgresTradeStore{
		db:  db,
		q:   postgresVolumesQuery(tables),
		log: l.With(logger.String("store", "postgres")),
	}, nil
}

func postgresVolumesQuery(t Tables) string {
	return fmt.Sprintf(`
        SELECT s.period::date AS period, SUM(s."Stoim")::float8 AS volume
        FROM %s s
        JOIN %s t ON s.tnved = t."KOD"
        JOIN %s c ON s.nastranapr = c."KOD"
        WHERE t."NAME" = $1 AND c."NAME" = $2 AND s.napr = $3
        GROUP BY s.period::date
        ORDER BY period ASC`, t.Facts, t.Products, t.Countries)
}

func (s *PostgresTradeStore) QueryVolumes(ctx context.Context, f models.SeriesFilter) ([]models.VolumeRow, error) {
	product, country, napr, err := filterArgs(f)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.db.Query(ctx, s.q, product, country, napr)
	if err != nil {
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

func (s *PostgresTradeStore) Health(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close is a no-op; the pool belongs to pkg/postgres.Client.
func (s *PostgresTradeStore) Close() error { return nil }

// filterArgs unpacks a populated filter into query arguments.
func filterArgs(f models.SeriesFilter) (product, country, napr string, err error) {
	if f.Product == nil || f.Country == nil || f.Direction == nil {
		return "", "", "", fmt.Errorf("incomplete filter %s", f.Key())
	}
	napr, err = f.Direction.StoreCode()
	if err != nil {
		return "", "", "", err
	}
	return *f.Product, *f.Country, napr, nil
}

var _ domrepo.TradeFlowStore = (*PostgresTradeStore)(nil)
