package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/herbarium-review/internal/db"
	"github.com/sells-group/herbarium-review/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
	now  func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool), nil
}

func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS specimens (
	id            TEXT PRIMARY KEY,
	version       BIGINT NOT NULL,
	state         TEXT NOT NULL,
	priority      TEXT NOT NULL DEFAULT '',
	quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	assigned_to   TEXT NOT NULL DEFAULT '',
	export_status TEXT NOT NULL DEFAULT 'not_exported',
	doc           JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_specimens_state ON specimens(state);
CREATE INDEX IF NOT EXISTS idx_specimens_priority ON specimens(priority, quality_score);
CREATE INDEX IF NOT EXISTS idx_specimens_assigned_to ON specimens(assigned_to) WHERE assigned_to <> '';
CREATE INDEX IF NOT EXISTS idx_specimens_export_status ON specimens(export_status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *model.Specimen) error {
	if err := prepareCreate(rec); err != nil {
		return err
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal specimen")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO specimens (id, version, state, priority, quality_score, assigned_to, export_status, doc, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Version, string(rec.State), string(rec.Quality.Priority), rec.Quality.QualityScore,
		rec.AssignedTo, string(rec.Export.Status), doc, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert specimen %s", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return model.NewError(model.KindAlreadyExists, rec.ID, "specimen already ingested")
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Specimen, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM specimens WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get specimen %s", id)
	}
	return decodeSpecimen(doc)
}

func (s *PostgresStore) Update(ctx context.Context, id string, expectedVersion int64, mutate Mutator) (*model.Specimen, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := applyMutation(current, expectedVersion, mutate, func(r *model.Specimen) {
		r.UpdatedAt = s.now()
	})
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(next)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal specimen")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE specimens
		 SET version = $1, state = $2, priority = $3, quality_score = $4, assigned_to = $5, export_status = $6, doc = $7, updated_at = $8
		 WHERE id = $9 AND version = $10`,
		next.Version, string(next.State), string(next.Quality.Priority), next.Quality.QualityScore,
		next.AssignedTo, string(next.Export.Status), doc, next.UpdatedAt,
		id, expectedVersion,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update specimen %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, model.NewError(model.KindVersionConflict, id,
			"expected version %d was superseded", expectedVersion)
	}
	return next, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Specimen, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM specimens ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list specimens")
	}
	defer rows.Close()

	var out []model.Specimen
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan specimen")
		}
		rec, err := decodeSpecimen(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list specimens iterate")
}
