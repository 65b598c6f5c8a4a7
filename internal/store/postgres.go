package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/toko-pricing/internal/obs"
)

// Querier is the subset of pgxpool.Pool used by Postgres.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres reads store tax codes from the stores and store_tax_codes tables.
type Postgres struct {
	db Querier
}

// NewPostgres wraps db, typically a *pgxpool.Pool.
func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db}
}

const activeTaxCodesSQL = `
SELECT tc.code
FROM stores s
LEFT JOIN store_tax_codes tc ON tc.store_code = s.code AND tc.active
WHERE s.code = $1
ORDER BY tc.code`

// ActiveTaxCodes implements tax.StoreTaxCodes. A store without enabled codes
// yields an empty slice; an unknown store ErrStoreNotFound.
func (p *Postgres) ActiveTaxCodes(ctx context.Context, storeCode string) ([]string, error) {
	rows, err := p.db.Query(ctx, activeTaxCodesSQL, storeCode)
	if err != nil {
		return nil, fmt.Errorf("store: query tax codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[*string])
	if err != nil {
		return nil, fmt.Errorf("store: scan tax codes: %w", err)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, storeCode)
	}
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if code != nil {
			out = append(out, *code)
		}
	}
	return out, nil
}

// NewPool opens a pgx pool with query tracing enabled.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse database url: %w", err)
	}
	cfg.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return pool, nil
}
