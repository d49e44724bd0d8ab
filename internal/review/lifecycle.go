package review

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/herbarium-review/internal/export"
	"github.com/sells-group/herbarium-review/internal/metrics"
	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/workflow"
)

// TransitionRequest asks for one workflow action on one record.
type TransitionRequest struct {
	SpecimenID      string          `json:"specimen_id"`
	ExpectedVersion int64           `json:"expected_version,omitempty"`
	Actor           string          `json:"actor"`
	Action          model.Action    `json:"action"`
	Params          workflow.Params `json:"params"`
}

// Transition applies a workflow action. The actor is resolved through the
// roster; unknown actors are unauthorized.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (rec *model.Specimen, err error) {
	start := time.Now()
	var entry model.TransitionEntry
	defer func() {
		finish("transition", req.SpecimenID, start, err,
			zap.String("action", string(req.Action)), zap.String("actor", req.Actor),
			zap.String("to", string(entry.To)))
	}()

	actor, err := s.resolve(req.Actor)
	if err != nil {
		return nil, err
	}
	rec, err = s.update(ctx, req.SpecimenID, req.ExpectedVersion, func(r *model.Specimen) error {
		var terr error
		entry, terr = workflow.Apply(r, actor, req.Action, req.Params, s.now())
		return terr
	})
	if err != nil {
		return nil, err
	}
	metrics.Transition(entry.Action, entry.To)
	return rec, nil
}

// AssignToEntrant hands a DRAFT_CORRECTED record to an entrant. Only a
// supervisor may assign, and the assignee must hold the entrant role. The
// record's state is checked before either actor.
func (s *Service) AssignToEntrant(ctx context.Context, id string, expected int64, entrant, by string) (rec *model.Specimen, err error) {
	start := time.Now()
	var entry model.TransitionEntry
	defer func() {
		finish("transition", id, start, err,
			zap.String("action", string(model.ActionAssignToEntrant)), zap.String("actor", by),
			zap.String("entrant", entrant), zap.String("to", string(entry.To)))
	}()

	actor, err := s.resolve(by)
	if err != nil {
		return nil, err
	}
	rec, err = s.update(ctx, id, expected, func(r *model.Specimen) error {
		if err := workflow.Check(r, actor, model.ActionAssignToEntrant); err != nil {
			return err
		}
		assignee, err := s.resolve(entrant)
		if err != nil {
			return err
		}
		if !assignee.Has(model.RoleEntrant) {
			return model.NewError(model.KindUnauthorizedActor, id, "assignee %s does not hold role entrant", entrant)
		}
		entry, err = workflow.Apply(r, actor, model.ActionAssignToEntrant, workflow.Params{Entrant: assignee.ID}, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.Transition(entry.Action, entry.To)
	return rec, nil
}

// Reopen returns an EXPORTED record to NEEDS_CORRECTION.
func (s *Service) Reopen(ctx context.Context, id string, expected int64, actor, notes string) (*model.Specimen, error) {
	return s.Transition(ctx, TransitionRequest{
		SpecimenID:      id,
		ExpectedVersion: expected,
		Actor:           actor,
		Action:          model.ActionReopen,
		Params:          workflow.Params{Notes: notes},
	})
}

// MarkExported records a successful export of a READY_FOR_EXPORT record.
func (s *Service) MarkExported(ctx context.Context, id string, expected int64, actorID string, req export.Request) (rec *model.Specimen, event model.ExportEvent, err error) {
	start := time.Now()
	defer func() {
		finish("mark_exported", id, start, err,
			zap.String("actor", actorID), zap.String("format", event.Format))
	}()

	actor, err := s.resolve(actorID)
	if err != nil {
		return nil, model.ExportEvent{}, err
	}
	rec, err = s.update(ctx, id, expected, func(r *model.Specimen) error {
		var eerr error
		event, eerr = export.MarkExported(r, actor, req, s.now())
		return eerr
	})
	if err != nil {
		return nil, model.ExportEvent{}, err
	}
	metrics.Transition(model.ActionMarkExported, model.StateExported)
	metrics.Export(event.Format)
	return rec, event, nil
}

// AllowedActions lists what actorID may do to the record right now.
func (s *Service) AllowedActions(ctx context.Context, id, actorID string) ([]model.Action, error) {
	actor, err := s.resolve(actorID)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return workflow.AllowedFor(rec, actor), nil
}
