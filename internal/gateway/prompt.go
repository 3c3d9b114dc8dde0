package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/planloop/pkg/models"
)

const envelopeInstructions = `You are a planning assistant that helps users turn free-form ideas
into a concrete activity with ordered tasks.

Respond with a single JSON object, no surrounding prose:
{
  "message": "<your reply to the user>",
  "ready_to_generate": <true only when you have enough information to propose a full plan>,
  "updated_slots": {"activity_type": "...", "location": "...", "timing": "...", "budget": "...", "extra": {}},
  "plan": {"title": "...", "description": "...", "category": "...",
           "tasks": [{"title": "...", "description": "...", "category": "...",
                      "priority": "...", "time_estimate": "...", "cost_hint": "..."}]},
  "domain": "<short label for the kind of activity>"
}

Only include "plan" when ready_to_generate is true. Only include slot
fields you learned this turn; earlier values are merged for you.`

const quickModeInstructions = `Mode: quick. Ask at most 3 follow-up questions total across the
conversation, prefer reasonable assumptions over questions, and move to a
plan as soon as the essentials (activity type, location, timing, budget)
are known.`

const smartModeInstructions = `Mode: smart. You may ask up to 5 follow-up questions to understand
preferences before proposing. When ready, present the plan with a short
narrative explaining why each task is there and ask whether the user is
comfortable with it.`

// BuildTurnPrompt assembles the full prompt for one turn: envelope
// instructions, mode instructions, accumulated slots, and history.
func BuildTurnPrompt(history []models.Message, slots models.Slots, mode models.PlanMode) string {
	var b strings.Builder

	b.WriteString(envelopeInstructions)
	b.WriteString("\n\n")

	if mode == models.ModeSmart {
		b.WriteString(smartModeInstructions)
	} else {
		b.WriteString(quickModeInstructions)
	}
	b.WriteString("\n\n")

	if known, err := json.Marshal(slots); err == nil {
		b.WriteString("Known slots so far: ")
		b.Write(known)
		b.WriteString("\n\n")
	}

	b.WriteString("Conversation so far:\n")
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Text)
	}
	b.WriteString("assistant:")

	return b.String()
}
