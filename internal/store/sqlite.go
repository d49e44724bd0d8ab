package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/herbarium-review/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection: SQLite has a single writer and pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS specimens (
	id            TEXT PRIMARY KEY,
	version       INTEGER NOT NULL,
	state         TEXT NOT NULL,
	priority      TEXT NOT NULL DEFAULT '',
	quality_score REAL NOT NULL DEFAULT 0,
	assigned_to   TEXT NOT NULL DEFAULT '',
	export_status TEXT NOT NULL DEFAULT 'not_exported',
	doc           TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_specimens_state ON specimens(state);
CREATE INDEX IF NOT EXISTS idx_specimens_priority ON specimens(priority);
CREATE INDEX IF NOT EXISTS idx_specimens_assigned_to ON specimens(assigned_to);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, rec *model.Specimen) error {
	if err := prepareCreate(rec); err != nil {
		return err
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal specimen")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO specimens (id, version, state, priority, quality_score, assigned_to, export_status, doc, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		rec.ID, rec.Version, string(rec.State), string(rec.Quality.Priority), rec.Quality.QualityScore,
		rec.AssignedTo, string(rec.Export.Status), string(doc), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert specimen %s", rec.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return model.NewError(model.KindAlreadyExists, rec.ID, "specimen already ingested")
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Specimen, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM specimens WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get specimen %s", id)
	}
	return decodeSpecimen([]byte(doc))
}

func (s *SQLiteStore) Update(ctx context.Context, id string, expectedVersion int64, mutate Mutator) (*model.Specimen, error) {
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
		return nil, eris.Wrap(err, "sqlite: marshal specimen")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE specimens
		 SET version = ?, state = ?, priority = ?, quality_score = ?, assigned_to = ?, export_status = ?, doc = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		next.Version, string(next.State), string(next.Quality.Priority), next.Quality.QualityScore,
		next.AssignedTo, string(next.Export.Status), string(doc), next.UpdatedAt,
		id, expectedVersion,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update specimen %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Another writer committed between our read and write.
		return nil, model.NewError(model.KindVersionConflict, id,
			"expected version %d was superseded", expectedVersion)
	}
	return next, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Specimen, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM specimens ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list specimens")
	}
	defer rows.Close()

	var out []model.Specimen
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan specimen")
		}
		rec, err := decodeSpecimen([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list specimens iterate")
}
