package review

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/herbarium-review/internal/ledger"
	"github.com/sells-group/herbarium-review/internal/model"
)

// SyncBatch is a queue of corrections made offline against one version of
// a record.
type SyncBatch struct {
	SpecimenID  string           `json:"specimen_id"`
	BaseVersion int64            `json:"base_version"`
	Edits       []ledger.Request `json:"edits"`
}

// SyncResult reports how far a batch got. Record is the latest stored copy
// after the applied edits, or nil if none applied.
type SyncResult struct {
	SpecimenID string          `json:"specimen_id"`
	Applied    int             `json:"applied"`
	Rejected   int             `json:"rejected"`
	Record     *model.Specimen `json:"record,omitempty"`
}

// Sync replays offline edits in order. Edit i presents BaseVersion+i, so a
// batch made against a stale copy fails on its first edit with
// VersionConflict. Replay stops at the first failure; the client must
// refetch and re-apply the remainder. Conflicts are never merged. A stale
// validation is refreshed once, after the last applied edit.
func (s *Service) Sync(ctx context.Context, b SyncBatch) (res SyncResult, err error) {
	start := time.Now()
	res.SpecimenID = b.SpecimenID
	defer func() {
		finish("sync", b.SpecimenID, start, err,
			zap.Int("applied", res.Applied), zap.Int("rejected", res.Rejected))
	}()

	if b.BaseVersion <= 0 {
		return res, model.NewError(model.KindVersionConflict, b.SpecimenID, "sync requires the client's base version")
	}

	version := b.BaseVersion
	for i, edit := range b.Edits {
		rec, _, aerr := s.correct(ctx, b.SpecimenID, version, edit)
		if aerr != nil {
			res.Rejected = len(b.Edits) - i
			if res.Record != nil {
				res.Record = s.refreshStale(ctx, res.Record)
			}
			return res, aerr
		}
		res.Applied++
		res.Record = rec
		version = rec.Version
	}
	if res.Record != nil {
		res.Record = s.refreshStale(ctx, res.Record)
	}
	return res, nil
}
