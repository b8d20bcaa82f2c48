package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/model"
)

// pool is the subset of pgxpool.Pool used by PostgresTaxonomy.
type pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresTaxonomy reads the city/state relation of the candidate database.
type PostgresTaxonomy struct {
	pool pool
}

const citiesQuery = `SELECT c."Id", c."Name", s."Name" FROM "City" c JOIN "State" s ON s."Id" = c."StateId" ORDER BY c."Id"`

// NewPostgresTaxonomy connects to the database at connString.
func NewPostgresTaxonomy(ctx context.Context, connString string) (*PostgresTaxonomy, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresTaxonomy{pool: p}, nil
}

// Cities returns every city with its state name, ordered by id.
func (t *PostgresTaxonomy) Cities(ctx context.Context) ([]model.City, error) {
	rows, err := t.pool.Query(ctx, citiesQuery)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query cities")
	}
	defer rows.Close()

	var out []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.ID, &c.Name, &c.State); err != nil {
			return nil, eris.Wrap(err, "postgres: scan city")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate cities")
	}
	zap.L().Debug("postgres: loaded cities", zap.Int("count", len(out)))
	return out, nil
}

// Close releases the connection pool.
func (t *PostgresTaxonomy) Close() {
	t.pool.Close()
}
