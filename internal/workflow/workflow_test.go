package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/herbarium-review/internal/model"
)

var (
	now = time.Date(2025, 5, 6, 10, 0, 0, 0, time.UTC)

	alice = model.Actor{ID: "alice", Roles: []model.Role{model.RoleCurator}}
	bob   = model.Actor{ID: "bob", Roles: []model.Role{model.RoleEntrant}}
	carol = model.Actor{ID: "carol", Roles: []model.Role{model.RoleSupervisor}}
	dave  = model.Actor{ID: "dave", Roles: []model.Role{model.RoleEntrant}}
	sys   = model.Actor{ID: "exporter", Roles: []model.Role{model.RoleSystem}}

	// root holds every role, so only state legality can fail for it.
	root = model.Actor{ID: "bob", Roles: []model.Role{model.RoleCurator, model.RoleEntrant, model.RoleSupervisor, model.RoleSystem}}
)

func recordIn(state model.State) *model.Specimen {
	rec := model.NewSpecimen(model.ExtractionPayload{
		SpecimenID: "spec-wf",
		Fields:     map[string]model.ExtractionField{model.TermCountry: {Value: "USA"}},
	}, now)
	rec.State = state
	rec.AssignedTo = "bob"
	return rec
}

func TestApply_FullPath(t *testing.T) {
	rec := recordIn(model.StatePending)
	rec.AssignedTo = ""

	steps := []struct {
		actor  model.Actor
		action model.Action
		params Params
		want   model.State
	}{
		{alice, model.ActionStartReview, Params{}, model.StateInReview},
		{alice, model.ActionSubmitDraft, Params{}, model.StateDraftCorrected},
		{carol, model.ActionAssignToEntrant, Params{Entrant: "bob"}, model.StateEntrantReview},
		{bob, model.ActionEntrantApprove, Params{Notes: "looks right"}, model.StateEntrantApproved},
		{carol, model.ActionSupervisorApprove, Params{}, model.StateReadyForExport},
	}
	for _, s := range steps {
		entry, err := Apply(rec, s.actor, s.action, s.params, now)
		require.NoError(t, err, "action %s", s.action)
		assert.Equal(t, s.want, rec.State)
		assert.Equal(t, s.want, entry.To)
		assert.Equal(t, s.actor.ID, entry.Actor)
	}

	assert.Equal(t, "bob", rec.AssignedTo)
	assert.Equal(t, model.DecisionApproved, rec.EntrantDecision)
	assert.Equal(t, "looks right", rec.EntrantNotes)
	assert.Equal(t, model.DecisionApproved, rec.SupervisorDecision)
	require.Len(t, rec.Transitions, 5)
	assert.Equal(t, model.StatePending, rec.Transitions[0].From)

	_, err := ApplyExport(rec, sys, "", now)
	require.NoError(t, err)
	assert.Equal(t, model.StateExported, rec.State)
}

func TestApply_SimplePath(t *testing.T) {
	for _, tt := range []struct {
		action model.Action
		want   model.State
	}{
		{model.ActionApprove, model.StateApproved},
		{model.ActionReject, model.StateRejected},
		{model.ActionRequestCorrection, model.StateNeedsCorrection},
	} {
		t.Run(string(tt.action), func(t *testing.T) {
			rec := recordIn(model.StateInReview)
			_, err := Apply(rec, alice, tt.action, Params{}, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.State)
		})
	}
}

func TestApply_CorrectionLoops(t *testing.T) {
	rec := recordIn(model.StateEntrantReview)
	_, err := Apply(rec, bob, model.ActionEntrantReject, Params{Notes: "wrong county"}, now)
	require.NoError(t, err)
	assert.Equal(t, model.StateNeedsCorrection, rec.State)
	assert.Equal(t, model.DecisionRejected, rec.EntrantDecision)

	_, err = Apply(rec, alice, model.ActionRequestReextraction, Params{}, now)
	require.NoError(t, err)
	assert.Equal(t, model.StatePending, rec.State)
	assert.Equal(t, model.DecisionNone, rec.EntrantDecision)

	rec = recordIn(model.StateEntrantApproved)
	_, err = Apply(rec, carol, model.ActionSupervisorReject, Params{Notes: "date format"}, now)
	require.NoError(t, err)
	assert.Equal(t, model.StateNeedsCorrection, rec.State)
	assert.Equal(t, "date format", rec.SupervisorNotes)

	_, err = Apply(rec, alice, model.ActionSubmitDraft, Params{}, now)
	require.NoError(t, err)
	assert.Equal(t, model.StateDraftCorrected, rec.State)
}

func TestApply_Reopen(t *testing.T) {
	for _, actor := range []model.Actor{alice, carol} {
		rec := recordIn(model.StateExported)
		rec.SupervisorDecision = model.DecisionApproved
		_, err := Apply(rec, actor, model.ActionReopen, Params{Notes: "typo in locality"}, now)
		require.NoError(t, err)
		assert.Equal(t, model.StateNeedsCorrection, rec.State)
		assert.Equal(t, model.DecisionNone, rec.SupervisorDecision)
	}

	rec := recordIn(model.StateExported)
	_, err := Apply(rec, bob, model.ActionReopen, Params{}, now)
	assert.ErrorIs(t, err, model.ErrUnauthorizedActor)
}

// Every (state, action) pair outside the table fails with IllegalTransition
// and leaves the record byte-for-byte unchanged.
func TestApply_IllegalPairsLeaveRecordUnchanged(t *testing.T) {
	for _, st := range model.States {
		for _, act := range model.Actions {
			if _, ok := Target(st, act); ok {
				continue
			}
			rec := recordIn(st)
			before, err := rec.CanonicalJSON()
			require.NoError(t, err)

			_, err = Apply(rec, root, act, Params{Entrant: "bob"}, now)
			require.Error(t, err, "%s from %s", act, st)
			assert.ErrorIs(t, err, model.ErrIllegalTransition, "%s from %s", act, st)

			after, err := rec.CanonicalJSON()
			require.NoError(t, err)
			assert.JSONEq(t, string(before), string(after), "%s from %s", act, st)
		}
	}
}

func TestApply_TerminalStates(t *testing.T) {
	assert.Empty(t, Allowed(model.StateApproved))
	assert.Empty(t, Allowed(model.StateRejected))
	assert.Equal(t, []model.Action{model.ActionReopen}, Allowed(model.StateExported))
}

func TestApply_Unauthorized(t *testing.T) {
	tests := []struct {
		name   string
		state  model.State
		actor  model.Actor
		action model.Action
	}{
		{"entrant cannot start review", model.StatePending, bob, model.ActionStartReview},
		{"curator cannot assign", model.StateDraftCorrected, alice, model.ActionAssignToEntrant},
		{"entrant cannot assign", model.StateDraftCorrected, bob, model.ActionAssignToEntrant},
		{"curator cannot supervisor approve", model.StateEntrantApproved, alice, model.ActionSupervisorApprove},
		{"supervisor is not the entrant", model.StateEntrantReview, carol, model.ActionEntrantApprove},
		{"other entrant", model.StateEntrantReview, dave, model.ActionEntrantApprove},
		{"other entrant reject", model.StateEntrantReview, dave, model.ActionEntrantReject},
		{"anonymous", model.StatePending, model.Actor{Roles: []model.Role{model.RoleCurator}}, model.ActionStartReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recordIn(tt.state)
			before := rec.Clone()

			_, err := Apply(rec, tt.actor, tt.action, Params{Entrant: "bob"}, now)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrUnauthorizedActor)
			assert.Equal(t, before, rec)
		})
	}
}

func TestApply_IllegalCheckedBeforeRole(t *testing.T) {
	rec := recordIn(model.StatePending)
	_, err := Apply(rec, bob, model.ActionSupervisorApprove, Params{}, now)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
}

func TestApply_UnknownAction(t *testing.T) {
	rec := recordIn(model.StatePending)
	_, err := Apply(rec, root, model.Action("teleport"), Params{}, now)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
}

func TestApply_AssignRequiresEntrant(t *testing.T) {
	rec := recordIn(model.StateDraftCorrected)
	rec.AssignedTo = ""
	before := rec.Clone()

	_, err := Apply(rec, carol, model.ActionAssignToEntrant, Params{Entrant: "  "}, now)
	require.Error(t, err)
	assert.Equal(t, before, rec)
}

func TestApply_MarkExportedIsGated(t *testing.T) {
	rec := recordIn(model.StateReadyForExport)
	_, err := Apply(rec, carol, model.ActionMarkExported, Params{}, now)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
	assert.Equal(t, model.StateReadyForExport, rec.State)
	assert.Empty(t, rec.Transitions)
}

func TestApplyExport(t *testing.T) {
	rec := recordIn(model.StateEntrantApproved)
	_, err := ApplyExport(rec, sys, "", now)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	rec = recordIn(model.StateReadyForExport)
	_, err = ApplyExport(rec, alice, "", now)
	assert.ErrorIs(t, err, model.ErrUnauthorizedActor)

	entry, err := ApplyExport(rec, carol, "batch 7", now)
	require.NoError(t, err)
	assert.Equal(t, model.ActionMarkExported, entry.Action)
	assert.Equal(t, model.StateExported, rec.State)
}

func TestAllowedFor(t *testing.T) {
	rec := recordIn(model.StateEntrantReview)
	assert.Equal(t, []model.Action{model.ActionEntrantApprove, model.ActionEntrantReject}, AllowedFor(rec, bob))
	assert.Empty(t, AllowedFor(rec, dave))
	assert.Empty(t, AllowedFor(rec, alice))
}

func TestCheck_DoesNotMutate(t *testing.T) {
	rec := recordIn(model.StatePending)
	require.NoError(t, Check(rec, alice, model.ActionStartReview))
	assert.Equal(t, model.StatePending, rec.State)
	assert.Empty(t, rec.Transitions)
}
