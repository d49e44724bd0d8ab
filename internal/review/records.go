package review

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/herbarium-review/internal/ledger"
	"github.com/sells-group/herbarium-review/internal/metrics"
	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/scorer"
)

// Ingest creates a PENDING record from an extraction payload. The record is
// validated (when a validator is configured) and scored before it is
// stored. Re-ingesting an id fails with AlreadyExists.
func (s *Service) Ingest(ctx context.Context, p model.ExtractionPayload) (rec *model.Specimen, err error) {
	start := time.Now()
	p.SpecimenID = strings.TrimSpace(p.SpecimenID)
	defer func() { finish("ingest", p.SpecimenID, start, err) }()

	if p.SpecimenID == "" {
		return nil, eris.Wrap(ErrInvalidPayload, "specimen id is required")
	}
	if len(p.Fields) == 0 {
		return nil, eris.Wrapf(ErrInvalidPayload, "specimen %s has no extracted fields", p.SpecimenID)
	}

	rec = model.NewSpecimen(p, s.now())
	rec.Validation = s.validate(ctx, rec)
	rec.Quality = scorer.Score(rec, s.quality)

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	if scorer.NeedsReextraction(rec, s.quality) {
		zap.L().Info("review: weak extraction, re-extraction suggested",
			zap.String("specimen_id", rec.ID),
			zap.Float64("confidence_score", rec.Quality.ConfidenceScore),
		)
	}
	return rec, nil
}

// GetRecord returns a copy of the record.
func (s *Service) GetRecord(ctx context.Context, id string) (*model.Specimen, error) {
	return s.store.Get(ctx, id)
}

// ApplyCorrection appends one ledger entry and updates the field. A
// correction is accepted in any state, including EXPORTED. Correcting a
// field the validator reads triggers a best-effort revalidation; if that
// fails the record keeps the stale result and the correction still stands.
func (s *Service) ApplyCorrection(ctx context.Context, id string, expected int64, req ledger.Request) (*model.Specimen, model.Correction, error) {
	rec, entry, err := s.correct(ctx, id, expected, req)
	if err != nil {
		return nil, model.Correction{}, err
	}
	return s.refreshStale(ctx, rec), entry, nil
}

func (s *Service) correct(ctx context.Context, id string, expected int64, req ledger.Request) (rec *model.Specimen, entry model.Correction, err error) {
	start := time.Now()
	defer func() {
		finish("apply_correction", id, start, err, zap.String("field", req.Field), zap.String("actor", req.Actor))
	}()

	rec, err = s.update(ctx, id, expected, func(r *model.Specimen) error {
		var aerr error
		entry, aerr = ledger.Apply(r, req, s.now(), s.quality)
		return aerr
	})
	if err != nil {
		return nil, model.Correction{}, err
	}
	metrics.Correction(entry.Field)
	return rec, entry, nil
}

// refreshStale revalidates rec when a correction left its validation
// stale. Any failure is logged and rec is returned as stored.
func (s *Service) refreshStale(ctx context.Context, rec *model.Specimen) *model.Specimen {
	if rec.Validation == nil || !rec.Validation.Stale {
		return rec
	}
	fresh, err := s.revalidate(ctx, rec)
	if err != nil {
		zap.L().Warn("review: revalidation after correction failed, keeping stale result",
			zap.String("specimen_id", rec.ID), zap.Int64("version", rec.Version), zap.Error(err))
		return rec
	}
	return fresh
}

// Flag marks a record for attention in the review queue. Curators and
// supervisors may flag.
func (s *Service) Flag(ctx context.Context, id string, expected int64, actorID, reason string) (*model.Specimen, error) {
	return s.setFlag(ctx, "flag", id, expected, actorID, true, reason)
}

// Unflag clears the flag.
func (s *Service) Unflag(ctx context.Context, id string, expected int64, actorID string) (*model.Specimen, error) {
	return s.setFlag(ctx, "unflag", id, expected, actorID, false, "")
}

func (s *Service) setFlag(ctx context.Context, op, id string, expected int64, actorID string, flagged bool, reason string) (rec *model.Specimen, err error) {
	start := time.Now()
	defer func() { finish(op, id, start, err, zap.String("actor", actorID)) }()

	actor, err := s.resolve(actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Has(model.RoleCurator) && !actor.Has(model.RoleSupervisor) {
		return nil, model.NewError(model.KindUnauthorizedActor, id, "%s requires role curator or supervisor", op)
	}
	return s.update(ctx, id, expected, func(r *model.Specimen) error {
		r.Flagged = flagged
		r.FlagReason = strings.TrimSpace(reason)
		return nil
	})
}

// Revalidate refreshes the stored validation result and the priority that
// depends on it. An upstream failure is returned and the record keeps its
// previous result. With no validator configured the record is returned
// unchanged.
func (s *Service) Revalidate(ctx context.Context, id string, expected int64) (rec *model.Specimen, err error) {
	start := time.Now()
	defer func() { finish("revalidate", id, start, err) }()

	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if expected != 0 && cur.Version != expected {
		return nil, model.NewError(model.KindVersionConflict, id,
			"expected version %d, stored version is %d", expected, cur.Version)
	}

	return s.revalidate(ctx, cur)
}

// revalidate runs the validator on cur and stores the result at cur's
// version. A nil result leaves the record unchanged.
func (s *Service) revalidate(ctx context.Context, cur *model.Specimen) (*model.Specimen, error) {
	res, err := s.validator.Validate(ctx, cur)
	if err != nil {
		metrics.ValidatorCall("error")
		return nil, eris.Wrap(err, "review: validate")
	}
	if res == nil {
		metrics.ValidatorCall("skipped")
		return cur, nil
	}
	metrics.ValidatorCall(validationOutcome(res))

	// The validator saw this version; a concurrent edit makes its result stale.
	return s.store.Update(ctx, cur.ID, cur.Version, func(r *model.Specimen) error {
		r.Validation = res
		r.Quality = scorer.Score(r, s.quality)
		return nil
	})
}

// validate runs the validator during ingestion. Failures are logged and the
// record is stored without a result.
func (s *Service) validate(ctx context.Context, rec *model.Specimen) *model.ValidationResult {
	res, err := s.validator.Validate(ctx, rec)
	switch {
	case err != nil:
		metrics.ValidatorCall("error")
		zap.L().Warn("review: validation unavailable at ingest",
			zap.String("specimen_id", rec.ID), zap.Error(err))
		return nil
	case res == nil:
		metrics.ValidatorCall("skipped")
		return nil
	default:
		metrics.ValidatorCall(validationOutcome(res))
		return res
	}
}

func validationOutcome(res *model.ValidationResult) string {
	if res.Unresolved() {
		return "unresolved"
	}
	return "verified"
}
