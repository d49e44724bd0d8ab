// Package workflow is the specimen review state machine. Every legal
// (state, action) pair lives in one table; anything absent is illegal.
package workflow

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/herbarium-review/internal/model"
)

// rule describes one legal transition.
type rule struct {
	to    model.State
	roles []model.Role
	// assignee restricts the action to the entrant the record is assigned to.
	assignee bool
	// gated actions are only reachable through the export gate.
	gated bool
}

type key struct {
	from   model.State
	action model.Action
}

var (
	curator    = []model.Role{model.RoleCurator}
	supervisor = []model.Role{model.RoleSupervisor}
	entrant    = []model.Role{model.RoleEntrant}
)

var table = map[key]rule{
	{model.StatePending, model.ActionStartReview}: {to: model.StateInReview, roles: curator},

	{model.StateInReview, model.ActionApprove}:           {to: model.StateApproved, roles: curator},
	{model.StateInReview, model.ActionReject}:            {to: model.StateRejected, roles: curator},
	{model.StateInReview, model.ActionRequestCorrection}: {to: model.StateNeedsCorrection, roles: curator},
	{model.StateInReview, model.ActionSubmitDraft}:       {to: model.StateDraftCorrected, roles: curator},

	{model.StateNeedsCorrection, model.ActionSubmitDraft}:         {to: model.StateDraftCorrected, roles: curator},
	{model.StateNeedsCorrection, model.ActionRequestReextraction}: {to: model.StatePending, roles: curator},

	{model.StateDraftCorrected, model.ActionRequestCorrection}: {to: model.StateNeedsCorrection, roles: curator},
	{model.StateDraftCorrected, model.ActionAssignToEntrant}:   {to: model.StateEntrantReview, roles: supervisor},

	{model.StateEntrantReview, model.ActionEntrantApprove}: {to: model.StateEntrantApproved, roles: entrant, assignee: true},
	{model.StateEntrantReview, model.ActionEntrantReject}:  {to: model.StateNeedsCorrection, roles: entrant, assignee: true},

	{model.StateEntrantApproved, model.ActionSupervisorApprove}: {to: model.StateReadyForExport, roles: supervisor},
	{model.StateEntrantApproved, model.ActionSupervisorReject}:  {to: model.StateNeedsCorrection, roles: supervisor},

	{model.StateReadyForExport, model.ActionMarkExported}: {
		to: model.StateExported, roles: []model.Role{model.RoleSupervisor, model.RoleSystem}, gated: true,
	},

	{model.StateExported, model.ActionReopen}: {
		to: model.StateNeedsCorrection, roles: []model.Role{model.RoleCurator, model.RoleSupervisor},
	},
}

// Params carries the action-specific inputs.
type Params struct {
	// Entrant is the assignee for assign_to_entrant.
	Entrant string `json:"entrant,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Target returns the state action leads to from state, if the pair is legal.
func Target(from model.State, action model.Action) (model.State, bool) {
	r, ok := table[key{from, action}]
	return r.to, ok
}

// Allowed lists the actions that are legal from state, in declaration order.
// Export-gate actions are included.
func Allowed(from model.State) []model.Action {
	var out []model.Action
	for _, a := range model.Actions {
		if _, ok := table[key{from, a}]; ok {
			out = append(out, a)
		}
	}
	return out
}

// AllowedFor lists the actions actor may take on rec right now.
func AllowedFor(rec *model.Specimen, actor model.Actor) []model.Action {
	var out []model.Action
	for _, a := range Allowed(rec.State) {
		if Check(rec, actor, a) == nil {
			out = append(out, a)
		}
	}
	return out
}

// Check validates that actor may perform action on rec without changing
// anything. State legality is checked before authorization.
func Check(rec *model.Specimen, actor model.Actor, action model.Action) error {
	_, err := lookup(rec, actor, action)
	return err
}

// Apply performs action on rec in place and returns the audit entry. rec
// must be a private copy; on error it is left unchanged. mark_exported is
// refused here and must go through the export gate.
func Apply(rec *model.Specimen, actor model.Actor, action model.Action, p Params, now time.Time) (model.TransitionEntry, error) {
	r, err := lookup(rec, actor, action)
	if err != nil {
		return model.TransitionEntry{}, err
	}
	if r.gated {
		return model.TransitionEntry{}, model.NewError(model.KindIllegalTransition, rec.ID,
			"%s is performed by the export gate", action)
	}
	return commit(rec, actor, action, r, p, now)
}

// ApplyExport moves a READY_FOR_EXPORT record to EXPORTED. Only the export
// gate calls it, after recording the export event.
func ApplyExport(rec *model.Specimen, actor model.Actor, notes string, now time.Time) (model.TransitionEntry, error) {
	r, err := lookup(rec, actor, model.ActionMarkExported)
	if err != nil {
		return model.TransitionEntry{}, err
	}
	return commit(rec, actor, model.ActionMarkExported, r, Params{Notes: notes}, now)
}

func lookup(rec *model.Specimen, actor model.Actor, action model.Action) (rule, error) {
	if !action.Valid() {
		return rule{}, model.NewError(model.KindIllegalTransition, rec.ID, "unknown action %q", action)
	}
	r, ok := table[key{rec.State, action}]
	if !ok {
		return rule{}, model.NewError(model.KindIllegalTransition, rec.ID,
			"%s is not allowed from %s", action, rec.State)
	}
	if strings.TrimSpace(actor.ID) == "" {
		return rule{}, model.NewError(model.KindUnauthorizedActor, rec.ID, "actor identity is required")
	}
	if !slices.ContainsFunc(r.roles, actor.Has) {
		return rule{}, model.NewError(model.KindUnauthorizedActor, rec.ID,
			"%s requires role %s", action, joinRoles(r.roles))
	}
	if r.assignee && rec.AssignedTo != actor.ID {
		return rule{}, model.NewError(model.KindUnauthorizedActor, rec.ID,
			"%s may only be performed by the assigned entrant", action)
	}
	return r, nil
}

func commit(rec *model.Specimen, actor model.Actor, action model.Action, r rule, p Params, now time.Time) (model.TransitionEntry, error) {
	notes := strings.TrimSpace(p.Notes)

	// Validate inputs before touching rec.
	if action == model.ActionAssignToEntrant && strings.TrimSpace(p.Entrant) == "" {
		return model.TransitionEntry{}, model.NewError(model.KindIllegalTransition, rec.ID,
			"%s requires an entrant", action)
	}

	switch action {
	case model.ActionAssignToEntrant:
		rec.AssignedTo = strings.TrimSpace(p.Entrant)
		rec.EntrantDecision = model.DecisionNone
		rec.EntrantNotes = ""
	case model.ActionEntrantApprove:
		rec.EntrantDecision = model.DecisionApproved
		rec.EntrantNotes = notes
	case model.ActionEntrantReject:
		rec.EntrantDecision = model.DecisionRejected
		rec.EntrantNotes = notes
	case model.ActionSupervisorApprove:
		rec.SupervisorDecision = model.DecisionApproved
		rec.SupervisorNotes = notes
	case model.ActionSupervisorReject:
		rec.SupervisorDecision = model.DecisionRejected
		rec.SupervisorNotes = notes
	case model.ActionReopen, model.ActionRequestReextraction:
		// A fresh curation pass starts without stale sign-offs.
		rec.EntrantDecision = model.DecisionNone
		rec.EntrantNotes = ""
		rec.SupervisorDecision = model.DecisionNone
		rec.SupervisorNotes = ""
	}

	entry := model.TransitionEntry{
		ID:        uuid.New().String(),
		From:      rec.State,
		To:        r.to,
		Action:    action,
		Actor:     actor.ID,
		Notes:     notes,
		Timestamp: now,
	}
	rec.State = r.to
	rec.Transitions = append(rec.Transitions, entry)
	return entry, nil
}

func joinRoles(roles []model.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, " or ")
}
