package model

// State is a workflow lifecycle state of a specimen record.
type State string

const (
	StatePending         State = "PENDING"
	StateInReview        State = "IN_REVIEW"
	StateApproved        State = "APPROVED"
	StateRejected        State = "REJECTED"
	StateNeedsCorrection State = "NEEDS_CORRECTION"
	StateDraftCorrected  State = "DRAFT_CORRECTED"
	StateEntrantReview   State = "ENTRANT_REVIEW"
	StateEntrantApproved State = "ENTRANT_APPROVED"
	StateReadyForExport  State = "READY_FOR_EXPORT"
	StateExported        State = "EXPORTED"
)

// States lists every lifecycle state in pipeline order.
var States = []State{
	StatePending,
	StateInReview,
	StateApproved,
	StateRejected,
	StateNeedsCorrection,
	StateDraftCorrected,
	StateEntrantReview,
	StateEntrantApproved,
	StateReadyForExport,
	StateExported,
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	for _, st := range States {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no forward action leaves s. EXPORTED can still be
// reopened explicitly.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected || s == StateExported
}

// Action is a workflow operation requested by an actor.
type Action string

const (
	ActionStartReview         Action = "start_review"
	ActionApprove             Action = "approve"
	ActionReject              Action = "reject"
	ActionRequestCorrection   Action = "request_correction"
	ActionSubmitDraft         Action = "submit_draft"
	ActionRequestReextraction Action = "request_reextraction"
	ActionAssignToEntrant     Action = "assign_to_entrant"
	ActionEntrantApprove      Action = "entrant_approve"
	ActionEntrantReject       Action = "entrant_reject"
	ActionSupervisorApprove   Action = "supervisor_approve"
	ActionSupervisorReject    Action = "supervisor_reject"
	ActionMarkExported        Action = "mark_exported"
	ActionReopen              Action = "reopen"
)

// Actions lists every workflow action.
var Actions = []Action{
	ActionStartReview,
	ActionApprove,
	ActionReject,
	ActionRequestCorrection,
	ActionSubmitDraft,
	ActionRequestReextraction,
	ActionAssignToEntrant,
	ActionEntrantApprove,
	ActionEntrantReject,
	ActionSupervisorApprove,
	ActionSupervisorReject,
	ActionMarkExported,
	ActionReopen,
}

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	for _, act := range Actions {
		if act == a {
			return true
		}
	}
	return false
}

// Role is a curation role held by an actor.
type Role string

const (
	RoleCurator    Role = "curator"
	RoleEntrant    Role = "entrant"
	RoleSupervisor Role = "supervisor"
	RoleSystem     Role = "system"
)

// Actor is an authenticated identity with its roles. Authentication itself
// happens outside the engine.
type Actor struct {
	ID    string `json:"id" yaml:"id"`
	Roles []Role `json:"roles" yaml:"roles"`
}

// Has reports whether the actor holds role r.
func (a Actor) Has(r Role) bool {
	for _, role := range a.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// Priority is the review urgency tier.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
	PriorityMinimal  Priority = "MINIMAL"
)

// Priorities lists tiers from most to least severe.
var Priorities = []Priority{
	PriorityCritical,
	PriorityHigh,
	PriorityMedium,
	PriorityLow,
	PriorityMinimal,
}

// priorityRank maps tiers to sort ranks. Lower rank means more urgent.
var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
	PriorityMinimal:  4,
}

// Rank returns the severity rank of p; unknown tiers sort last.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// Valid reports whether p is a defined tier.
func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}
