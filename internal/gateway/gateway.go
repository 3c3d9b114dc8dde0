// Package gateway talks to the language model that drives planning
// conversations. The model is treated as slow, unreliable, and never
// authoritative: controller guardrails always take precedence over
// whatever it claims.
package gateway

import (
	"context"

	"github.com/planloop/pkg/models"
)

// TurnProposal is the structured envelope the model returns for one
// conversational turn.
type TurnProposal struct {
	Message         string       `json:"message"`
	ReadyToGenerate bool         `json:"ready_to_generate"`
	UpdatedSlots    models.Slots `json:"updated_slots"`
	Plan            *models.Plan `json:"plan,omitempty"`
	Domain          string       `json:"domain,omitempty"`
}

// Gateway is the single blocking call per conversational turn.
type Gateway interface {
	ProposeOrContinue(ctx context.Context, history []models.Message, slots models.Slots, mode models.PlanMode) (*TurnProposal, error)
}
