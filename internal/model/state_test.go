package model

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityRank(t *testing.T) {
	t.Parallel()

	ps := []Priority{PriorityMinimal, PriorityHigh, PriorityCritical, PriorityLow, PriorityMedium}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Rank() < ps[j].Rank() })
	assert.Equal(t, Priorities, ps)

	assert.Equal(t, 5, Priority("P9").Rank())
	assert.False(t, Priority("P9").Valid())
	assert.True(t, PriorityLow.Valid())
}

func TestStateValid(t *testing.T) {
	t.Parallel()

	for _, s := range States {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, State("ARCHIVED").Valid())
	assert.True(t, StateExported.Terminal())
	assert.True(t, StateApproved.Terminal())
	assert.False(t, StateReadyForExport.Terminal())
}

func TestActorHas(t *testing.T) {
	t.Parallel()

	a := Actor{ID: "carol", Roles: []Role{RoleSupervisor, RoleCurator}}
	assert.True(t, a.Has(RoleSupervisor))
	assert.True(t, a.Has(RoleCurator))
	assert.False(t, a.Has(RoleEntrant))
	assert.True(t, ActionReopen.Valid())
	assert.False(t, Action("teleport").Valid())
}
