package models

import (
	"time"
)

// Conversation models

// SessionState tracks where a planning dialogue is in its lifecycle.
type SessionState string

const (
	StateIntake     SessionState = "intake"
	StateGathering  SessionState = "gathering"
	StateConfirming SessionState = "confirming"
	StateCompleted  SessionState = "completed"
)

// PlanMode selects how aggressively the assistant drives toward a plan.
// Quick favors at most 3 follow-up turns and immediate action; Smart
// allows up to 5 turns and a richer confirmation narrative.
type PlanMode string

const (
	ModeQuick PlanMode = "quick"
	ModeSmart PlanMode = "smart"
)

// MessageRole identifies who produced a history entry.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry in a session's append-only conversation history.
type Message struct {
	Role      MessageRole `json:"role" db:"role"`
	Text      string      `json:"text" db:"text"`
	Timestamp time.Time   `json:"timestamp" db:"timestamp"`
}

// Slots holds the planning information extracted from the user across
// turns. Merging is always key-by-key; a turn never wholesale-replaces
// a previous turn's slots.
type Slots struct {
	ActivityType string            `json:"activity_type,omitempty"`
	Location     string            `json:"location,omitempty"`
	Timing       string            `json:"timing,omitempty"`
	Budget       string            `json:"budget,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Merge applies a delta on top of the receiver, keeping existing values
// where the delta is silent. Returns the merged result.
func (s Slots) Merge(delta Slots) Slots {
	out := s
	if delta.ActivityType != "" {
		out.ActivityType = delta.ActivityType
	}
	if delta.Location != "" {
		out.Location = delta.Location
	}
	if delta.Timing != "" {
		out.Timing = delta.Timing
	}
	if delta.Budget != "" {
		out.Budget = delta.Budget
	}
	if len(delta.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]string, len(delta.Extra))
		} else {
			merged := make(map[string]string, len(out.Extra)+len(delta.Extra))
			for k, v := range out.Extra {
				merged[k] = v
			}
			out.Extra = merged
		}
		for k, v := range delta.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// MissingRequired returns the names of required slots that are still
// empty. All four must be present before a plan may be materialized.
func (s Slots) MissingRequired() []string {
	var missing []string
	if s.ActivityType == "" {
		missing = append(missing, "activity_type")
	}
	if s.Location == "" {
		missing = append(missing, "location")
	}
	if s.Timing == "" {
		missing = append(missing, "timing")
	}
	if s.Budget == "" {
		missing = append(missing, "budget")
	}
	return missing
}

// ControlFlags is the machine-bookkeeping bag, kept separate from Slots
// so a partial slot merge can never clobber control state.
type ControlFlags struct {
	AwaitingPlanConfirmation bool     `json:"awaiting_plan_confirmation"`
	PlanConfirmed            bool     `json:"plan_confirmed"`
	FirstInteraction         bool     `json:"first_interaction"`
	Mode                     PlanMode `json:"mode,omitempty"`
	LinkedActivityID         string   `json:"linked_activity_id,omitempty"`
	UnclearTurns             int      `json:"unclear_turns,omitempty"`
}

// Session is one active planning dialogue for an owner.
type Session struct {
	ID            string       `json:"id" db:"id"`
	OwnerID       string       `json:"owner_id" db:"owner_id"`
	State         SessionState `json:"state" db:"state"`
	Slots         Slots        `json:"slots" db:"slots"`
	Flags         ControlFlags `json:"flags" db:"flags"`
	History       []Message    `json:"history" db:"history"`
	CandidatePlan *Plan        `json:"candidate_plan,omitempty" db:"candidate_plan"`
	Complete      bool         `json:"complete" db:"complete"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// Plan is an unconfirmed proposal produced by the model gateway. It is
// transient: nothing durable exists until the user confirms it.
type Plan struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Tasks       []PlanTask `json:"tasks"`
}

// PlanTask is one ordered step inside a candidate plan.
type PlanTask struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Priority     string `json:"priority"`
	TimeEstimate string `json:"time_estimate"`
	CostHint     string `json:"cost_hint,omitempty"`
}

// Durable planning records

// Activity is the user-visible record a confirmed plan materializes into.
type Activity struct {
	ID          string    `json:"id" db:"id"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Task is one ordered step under an Activity. A task belongs to at most
// one activity at a time; Position is its ordinal within that activity.
type Task struct {
	ID           string    `json:"id" db:"id"`
	OwnerID      string    `json:"owner_id" db:"owner_id"`
	ActivityID   string    `json:"activity_id,omitempty" db:"activity_id"`
	Position     int       `json:"position" db:"position"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	Category     string    `json:"category" db:"category"`
	Priority     string    `json:"priority" db:"priority"`
	TimeEstimate string    `json:"time_estimate" db:"time_estimate"`
	CostHint     string    `json:"cost_hint,omitempty" db:"cost_hint"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// TurnResult is what one conversational turn returns to the caller.
type TurnResult struct {
	Reply             string `json:"reply"`
	SessionID         string `json:"session_id"`
	PlanReady         bool   `json:"plan_ready"`
	ShowConfirmButton bool   `json:"show_confirm_button"`
}

// MaterializeResult is the outcome of confirming a plan.
type MaterializeResult struct {
	Activity *Activity `json:"activity"`
	Tasks    []*Task   `json:"tasks"`
}
