package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/herbarium-review/internal/model"
)

// MemoryStore keeps serialized records in process memory. It exists for
// tests and throwaway environments; production uses SQLite or Postgres.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
	now     func() time.Time
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Create(ctx context.Context, rec *model.Specimen) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepareCreate(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "memory: marshal specimen")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return model.NewError(model.KindAlreadyExists, rec.ID, "specimen already ingested")
	}
	s.records[rec.ID] = data
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Specimen, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	data, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return nil, notFound(id)
	}
	return decodeSpecimen(data)
}

func (s *MemoryStore) Update(ctx context.Context, id string, expectedVersion int64, mutate Mutator) (*model.Specimen, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The lock spans compare and write, which makes the update a CAS.
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.records[id]
	if !ok {
		return nil, notFound(id)
	}
	current, err := decodeSpecimen(data)
	if err != nil {
		return nil, err
	}
	next, err := applyMutation(current, expectedVersion, mutate, func(r *model.Specimen) {
		r.UpdatedAt = s.now()
	})
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(next)
	if err != nil {
		return nil, eris.Wrap(err, "memory: marshal specimen")
	}
	s.records[id] = out
	return next.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]model.Specimen, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	blobs := make([][]byte, len(ids))
	for i, id := range ids {
		blobs[i] = s.records[id]
	}
	s.mu.Unlock()

	out := make([]model.Specimen, 0, len(blobs))
	for _, b := range blobs {
		rec, err := decodeSpecimen(b)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func decodeSpecimen(data []byte) (*model.Specimen, error) {
	var rec model.Specimen
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal specimen")
	}
	return &rec, nil
}
