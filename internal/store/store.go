package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/herbarium-review/internal/model"
)

// Mutator edits a private copy of a specimen. Returning an error aborts the
// update and nothing is written.
type Mutator func(rec *model.Specimen) error

// Store is durable keyed storage for specimen records with optimistic
// concurrency. Every read returns a copy; every write presents the version
// the caller last observed.
type Store interface {
	// Create persists a new record at version 1. Fails with
	// model.ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, rec *model.Specimen) error

	// Get returns a copy of the record or model.ErrNotFound.
	Get(ctx context.Context, id string) (*model.Specimen, error)

	// Update applies mutate to a copy of the stored record when its version
	// equals expectedVersion, then persists it at version+1. A stale version
	// fails with model.ErrVersionConflict and writes nothing.
	Update(ctx context.Context, id string, expectedVersion int64, mutate Mutator) (*model.Specimen, error)

	// List returns copies of every record, retired ones included, ordered by id.
	List(ctx context.Context) ([]model.Specimen, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prepareCreate validates and stamps a record for insertion.
func prepareCreate(rec *model.Specimen) error {
	if rec == nil || rec.ID == "" {
		return eris.New("store: specimen id is required")
	}
	if !rec.State.Valid() {
		rec.State = model.StatePending
	}
	if rec.Export.Status == "" {
		rec.Export.Status = model.ExportStatusNone
	}
	rec.Version = 1
	return nil
}

// applyMutation runs mutate against a copy of current and checks the result.
// The returned record carries the next version and the given timestamp.
func applyMutation(current *model.Specimen, expectedVersion int64, mutate Mutator, stamp func(*model.Specimen)) (*model.Specimen, error) {
	if current.Version != expectedVersion {
		return nil, model.NewError(model.KindVersionConflict, current.ID,
			"expected version %d, stored version is %d", expectedVersion, current.Version)
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if err := model.CheckInvariants(current, next); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	stamp(next)
	return next, nil
}

func notFound(id string) error {
	return model.NewError(model.KindNotFound, id, "specimen not found")
}
