// Package session orchestrates planning conversations: one turn at a
// time, it loads or creates the session, classifies the message,
// applies guardrails, calls the model gateway when the turn needs it,
// and decides when a plan may be materialized.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/planloop/internal/gateway"
	"github.com/planloop/internal/intent"
	"github.com/planloop/internal/materializer"
	"github.com/planloop/internal/store"
	"github.com/planloop/pkg/models"
)

// unclearCapWhileConfirming bounds consecutive unclear turns in the
// confirming state. Past the cap the controller stops re-calling the
// gateway and replays the plan with an explicit yes/no ask.
const unclearCapWhileConfirming = 3

const (
	retryPrompt = "Sorry, I had trouble thinking that through. Could you say that again?"

	helpReply = "I help you turn an idea into a concrete activity with ordered tasks. " +
		"In quick mode I ask at most a few questions and propose a plan as soon as the " +
		"essentials are covered; in smart mode I dig a little deeper before proposing. " +
		"Once you confirm a plan, I save it as an activity you can track."

	confirmAsk = "Are you comfortable with this plan? Say yes to save it, or tell me what to change."
)

// Controller runs conversational turns and plan confirmation.
type Controller struct {
	sessions store.ContextStore
	gw       gateway.Gateway
	mat      *materializer.Materializer
}

// NewController wires the controller to its collaborators.
func NewController(sessions store.ContextStore, gw gateway.Gateway, mat *materializer.Materializer) *Controller {
	return &Controller{sessions: sessions, gw: gw, mat: mat}
}

// AdvanceConversation processes one inbound turn for the owner. The
// returned TurnResult carries the assistant reply and whether a plan is
// awaiting confirmation. Gateway failures do not fail the turn; they
// come back as a retry prompt.
func (c *Controller) AdvanceConversation(ctx context.Context, ownerID, message string, mode models.PlanMode) (*models.TurnResult, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", models.ErrInvalidInput)
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is empty", models.ErrInvalidInput)
	}

	sess, isNew, err := c.ensureSession(ctx, ownerID, mode)
	if err != nil {
		return nil, err
	}
	if mode != "" {
		sess.Flags.Mode = mode
	}

	cls := intent.Classify(message)
	sess.History = append(sess.History, models.Message{
		Role:      models.RoleUser,
		Text:      message,
		Timestamp: time.Now(),
	})

	log.Debug().
		Str("session_id", sess.ID).
		Str("state", string(sess.State)).
		Str("intent", string(cls.Kind)).
		Bool("new_session", isNew).
		Msg("processing turn")

	reply, err := c.runTurn(ctx, sess, message, cls)
	if err != nil {
		return nil, err
	}

	sess.History = append(sess.History, models.Message{
		Role:      models.RoleAssistant,
		Text:      reply,
		Timestamp: time.Now(),
	})
	sess.Flags.FirstInteraction = false

	if err := c.sessions.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	planReady := sess.State == models.StateConfirming && sess.CandidatePlan != nil
	return &models.TurnResult{
		Reply:             reply,
		SessionID:         sess.ID,
		PlanReady:         planReady,
		ShowConfirmButton: planReady,
	}, nil
}

// runTurn decides the reply for one classified message and mutates the
// session accordingly. Guardrail outcomes are control-flow corrections,
// not errors; only infrastructure problems surface as errors.
func (c *Controller) runTurn(ctx context.Context, sess *models.Session, message string, cls intent.Classification) (string, error) {
	// Help is answered locally in every state; no model call.
	if cls.Kind == intent.Help {
		return helpReply, nil
	}

	if sess.State == models.StateConfirming {
		return c.runConfirmingTurn(ctx, sess, message, cls)
	}

	return c.runGatheringTurn(ctx, sess, message)
}

// runConfirmingTurn handles a message while a candidate plan awaits
// confirmation.
func (c *Controller) runConfirmingTurn(ctx context.Context, sess *models.Session, message string, cls intent.Classification) (string, error) {
	// Idempotent re-display: replay the stored plan, no gateway call,
	// awaitingPlanConfirmation stays set.
	if cls.Kind == intent.ShowOverview {
		return planSummary(sess.CandidatePlan) + "\n\n" + confirmAsk, nil
	}

	if cls.IsGenerateConfirmation() && sess.CandidatePlan != nil {
		sess.Flags.PlanConfirmed = true
		sess.Flags.UnclearTurns = 0
		return "Great, I'll save this plan as your activity now.", nil
	}

	if intent.WantsChanges(message) {
		// Back to gathering; the model hears the requested change.
		sess.State = models.StateGathering
		sess.Flags.AwaitingPlanConfirmation = false
		sess.Flags.PlanConfirmed = false
		sess.Flags.UnclearTurns = 0
		return c.runGatheringTurn(ctx, sess, message)
	}

	// Unclear while confirming. A confirmation only holds while it is
	// the latest turn: the user has moved off the affirmative, so any
	// earlier yes no longer counts.
	sess.Flags.PlanConfirmed = false

	// Bounded: past the cap we stop burning gateway calls and ask
	// point-blank.
	sess.Flags.UnclearTurns++
	if sess.Flags.UnclearTurns >= unclearCapWhileConfirming {
		return planSummary(sess.CandidatePlan) + "\n\nPlease answer yes or no: should I save this plan?", nil
	}
	return c.runGatheringTurn(ctx, sess, message)
}

// runGatheringTurn calls the model gateway and applies the readiness
// guardrails to its answer.
func (c *Controller) runGatheringTurn(ctx context.Context, sess *models.Session, message string) (string, error) {
	firstMessage := sess.Flags.FirstInteraction

	proposal, err := c.gw.ProposeOrContinue(ctx, sess.History, sess.Slots, sess.Flags.Mode)
	if err != nil {
		// Recover the turn with a retry prompt; the user message is
		// kept in history so the next attempt has it.
		log.Warn().
			Err(err).
			Str("session_id", sess.ID).
			Msg("gateway failed, returning retry prompt")
		return retryPrompt, nil
	}

	sess.Slots = sess.Slots.Merge(proposal.UpdatedSlots)

	ready := proposal.ReadyToGenerate
	// First-message guard: a plan is never proposed before at least one
	// exchange of context gathering, whatever the model claims.
	if firstMessage && ready {
		log.Debug().
			Str("session_id", sess.ID).
			Msg("suppressing ready signal on first message")
		ready = false
	}

	if sess.State == models.StateIntake {
		sess.State = models.StateGathering
	}

	if ready && proposal.Plan != nil && len(proposal.Plan.Tasks) > 0 {
		sess.State = models.StateConfirming
		sess.CandidatePlan = proposal.Plan
		sess.Flags.AwaitingPlanConfirmation = true
		sess.Flags.PlanConfirmed = false
		sess.Flags.UnclearTurns = 0
		return proposal.Message + "\n\n" + planSummary(proposal.Plan) + "\n\n" + confirmAsk, nil
	}

	return proposal.Message, nil
}

// ConfirmAndMaterialize turns the session's confirmed candidate plan
// into a durable activity. It refuses unless the plan was confirmed on
// a prior turn and all required slots are present.
func (c *Controller) ConfirmAndMaterialize(ctx context.Context, ownerID, sessionID string) (*models.MaterializeResult, error) {
	if ownerID == "" || sessionID == "" {
		return nil, fmt.Errorf("%w: owner id and session id are required", models.ErrInvalidInput)
	}

	sess, err := c.sessions.GetSession(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Complete {
		return nil, models.ErrSessionNotFound
	}

	// Confirmation-required guard: materialization only after an
	// explicit affirmative turn while a plan was awaiting confirmation.
	if !sess.Flags.PlanConfirmed || !sess.Flags.AwaitingPlanConfirmation {
		return nil, fmt.Errorf("%w: plan has not been confirmed", models.ErrInvalidInput)
	}
	if sess.CandidatePlan == nil || len(sess.CandidatePlan.Tasks) == 0 {
		return nil, fmt.Errorf("%w: no candidate plan to materialize", models.ErrInvalidInput)
	}

	// Missing-slot guard: independent of anything the model claimed.
	if missing := sess.Slots.MissingRequired(); len(missing) > 0 {
		return nil, models.NewMissingSlotsError(missing)
	}

	result, err := c.mat.Materialize(ctx, ownerID, sess.CandidatePlan, sess.Flags.LinkedActivityID)
	if err != nil {
		return nil, err
	}

	sess.Flags.LinkedActivityID = result.Activity.ID
	sess.State = models.StateCompleted
	sess.Complete = true
	if err := c.sessions.UpdateSession(ctx, sess); err != nil {
		// The activity exists; losing the session patch is recoverable
		// but worth a loud log.
		log.Error().
			Err(err).
			Str("session_id", sess.ID).
			Msg("failed to persist completed session after materialization")
	}

	log.Info().
		Str("session_id", sess.ID).
		Str("activity_id", result.Activity.ID).
		Int("tasks", len(result.Tasks)).
		Msg("plan confirmed and materialized")

	return result, nil
}

// StartNewConversation abandons whatever session the owner has open
// and begins a fresh one. The prior session is marked completed first;
// sessions are never left silently open.
func (c *Controller) StartNewConversation(ctx context.Context, ownerID string, mode models.PlanMode) (*models.Session, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", models.ErrInvalidInput)
	}

	if err := c.sessions.CompleteOpenSessions(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("closing open sessions: %w", err)
	}

	if mode == "" {
		mode = models.ModeQuick
	}
	sess := &models.Session{
		OwnerID: ownerID,
		State:   models.StateIntake,
		Flags: models.ControlFlags{
			FirstInteraction: true,
			Mode:             mode,
		},
	}
	if err := c.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// ensureSession returns the owner's active session, creating one when
// none is usable. Any stale open session is completed first so exactly
// one session per owner is ever open.
func (c *Controller) ensureSession(ctx context.Context, ownerID string, mode models.PlanMode) (*models.Session, bool, error) {
	sess, err := c.sessions.GetActiveSession(ctx, ownerID)
	if err == nil {
		return sess, false, nil
	}
	if !errors.Is(err, models.ErrSessionNotFound) {
		return nil, false, fmt.Errorf("loading session: %w", err)
	}

	sess, err = c.StartNewConversation(ctx, ownerID, mode)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// planSummary renders a candidate plan for display or replay.
func planSummary(plan *models.Plan) string {
	if plan == nil {
		return "I don't have a plan drafted yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here's the plan: %s", plan.Title)
	if plan.Description != "" {
		fmt.Fprintf(&b, " (%s)", plan.Description)
	}
	b.WriteString("\n")
	for i, task := range plan.Tasks {
		fmt.Fprintf(&b, "%d. %s", i+1, task.Title)
		if task.TimeEstimate != "" {
			fmt.Fprintf(&b, " (%s)", task.TimeEstimate)
		}
		if task.CostHint != "" {
			fmt.Fprintf(&b, " [~%s]", task.CostHint)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
