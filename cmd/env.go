package main

import (
	"context"
	"errors"
	"io/fs"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/herbarium-review/internal/config"
	"github.com/sells-group/herbarium-review/internal/roster"
	"github.com/sells-group/herbarium-review/internal/review"
	"github.com/sells-group/herbarium-review/internal/scorer"
	"github.com/sells-group/herbarium-review/internal/store"
	"github.com/sells-group/herbarium-review/internal/validator"
)

// env holds the shared dependencies of a command.
type env struct {
	Store   store.Store
	Roster  *roster.Roster
	Service *review.Service
}

func (e *env) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	switch c.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(c.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, c.DatabaseURL, &store.PoolConfig{
			MaxConns: c.MaxConns,
			MinConns: c.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
}

// loadRoster reads the actor roster. Ingestion acts as no one and tolerates
// a missing file; every other mode needs it.
func loadRoster(path, mode string) (*roster.Roster, error) {
	r, err := roster.Load(path)
	if err == nil {
		return r, nil
	}
	if mode == "ingest" && errors.Is(err, fs.ErrNotExist) {
		zap.L().Debug("no roster file, continuing without actors", zap.String("path", path))
		return roster.New()
	}
	return nil, err
}

// initEnv validates configuration for mode, opens and migrates the store,
// and builds the review service.
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	if err := scorer.ValidateConfig(cfg.Quality); err != nil {
		return nil, err
	}

	r, err := loadRoster(cfg.Roster.Path, mode)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	svc := review.New(st, r, cfg.Quality, review.WithValidator(validator.New(cfg.Validator)))
	return &env{Store: st, Roster: r, Service: svc}, nil
}
