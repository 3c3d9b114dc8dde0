// Package materializer turns a confirmed plan into a durable activity
// with an ordered task list. Replacement of an existing activity's
// tasks is made safe without a transaction by a strict create-before-
// delete write order; the order of steps here is what makes rollback
// possible and must not be changed.
package materializer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/planloop/internal/store"
	"github.com/planloop/pkg/models"
)

// Materializer writes confirmed plans through an ActivityStore.
type Materializer struct {
	store store.ActivityStore
}

// New creates a materializer over the given store.
func New(s store.ActivityStore) *Materializer {
	return &Materializer{store: s}
}

// Materialize creates or replaces the activity for a confirmed plan.
// linkedActivityID is empty on first confirmation; when set, the
// existing activity's task set is fully replaced. Returns the activity
// and its final ordered tasks.
func (m *Materializer) Materialize(ctx context.Context, ownerID string, plan *models.Plan, linkedActivityID string) (*models.MaterializeResult, error) {
	if plan == nil || len(plan.Tasks) == 0 {
		return nil, fmt.Errorf("%w: plan has no tasks", models.ErrInvalidInput)
	}

	if linkedActivityID != "" {
		existing, err := m.store.GetActivity(ctx, ownerID, linkedActivityID)
		if err == nil {
			return m.replace(ctx, existing, plan)
		}
		if !errors.Is(err, store.ErrActivityNotFound) {
			return nil, fmt.Errorf("%w: loading linked activity: %v", models.ErrMaterializationFailure, err)
		}
		// Linked activity deleted out-of-band; create fresh instead of
		// failing the confirmation.
		log.Warn().
			Str("activity_id", linkedActivityID).
			Str("owner_id", ownerID).
			Msg("linked activity no longer exists, creating a new one")
	}

	return m.create(ctx, ownerID, plan)
}

// create is the first-confirmation path: new activity, then each task
// created and linked at its index.
func (m *Materializer) create(ctx context.Context, ownerID string, plan *models.Plan) (*models.MaterializeResult, error) {
	activity := &models.Activity{
		OwnerID:     ownerID,
		Title:       plan.Title,
		Description: plan.Description,
		Category:    plan.Category,
		Status:      "active",
	}
	if err := m.store.CreateActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("%w: creating activity: %v", models.ErrMaterializationFailure, err)
	}

	tasks := make([]*models.Task, 0, len(plan.Tasks))
	for i, pt := range plan.Tasks {
		task := taskFromPlan(ownerID, pt)
		if err := m.store.CreateTask(ctx, task); err != nil {
			return nil, fmt.Errorf("%w: creating task %d: %v", models.ErrMaterializationFailure, i, err)
		}
		if err := m.store.LinkTaskToActivity(ctx, task.ID, activity.ID, i); err != nil {
			return nil, fmt.Errorf("%w: linking task %d: %v", models.ErrMaterializationFailure, i, err)
		}
		task.ActivityID = activity.ID
		task.Position = i
		tasks = append(tasks, task)
	}

	log.Info().
		Str("activity_id", activity.ID).
		Str("owner_id", ownerID).
		Int("tasks", len(tasks)).
		Msg("materialized new activity")

	return &models.MaterializeResult{Activity: activity, Tasks: tasks}, nil
}

// replace swaps an activity's task set for the plan's tasks. Write
// order: create new tasks unlinked, snapshot the old links, unlink old,
// link new, and only then delete the old records. Deferring the deletes
// is what keeps rollback able to restore the original list.
func (m *Materializer) replace(ctx context.Context, activity *models.Activity, plan *models.Plan) (*models.MaterializeResult, error) {
	activity.Title = plan.Title
	activity.Description = plan.Description
	activity.Category = plan.Category
	if err := m.store.UpdateActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("%w: updating activity: %v", models.ErrMaterializationFailure, err)
	}

	// Step a: create all new tasks, unlinked.
	newTasks := make([]*models.Task, 0, len(plan.Tasks))
	for i, pt := range plan.Tasks {
		task := taskFromPlan(activity.OwnerID, pt)
		if err := m.store.CreateTask(ctx, task); err != nil {
			return nil, m.fail(ctx, activity, newTasks, 0, nil,
				fmt.Errorf("creating replacement task %d: %w", i, err))
		}
		newTasks = append(newTasks, task)
	}

	// Step b: snapshot the current links before touching them.
	oldTasks, err := m.store.GetActivityTasks(ctx, activity.ID)
	if err != nil {
		return nil, m.fail(ctx, activity, newTasks, 0, nil,
			fmt.Errorf("snapshotting existing tasks: %w", err))
	}

	// Step c: unlink the old tasks. Their records stay alive.
	for i, old := range oldTasks {
		if err := m.store.UnlinkTaskFromActivity(ctx, old.ID); err != nil {
			return nil, m.fail(ctx, activity, newTasks, 0, oldTasks[:i],
				fmt.Errorf("unlinking old task %s: %w", old.ID, err))
		}
	}

	// Step d: link the new tasks at their ordinal positions.
	for i, task := range newTasks {
		if err := m.store.LinkTaskToActivity(ctx, task.ID, activity.ID, i); err != nil {
			return nil, m.fail(ctx, activity, newTasks, i, oldTasks,
				fmt.Errorf("linking replacement task %d: %w", i, err))
		}
		task.ActivityID = activity.ID
		task.Position = i
	}

	// Step e: every new task is linked; the old records can go.
	for _, old := range oldTasks {
		if err := m.store.DeleteTask(ctx, old.ID); err != nil {
			// The activity already shows the new list; a leftover old
			// record is an orphan, not a mixed state. Log and continue.
			log.Warn().
				Err(err).
				Str("task_id", old.ID).
				Msg("failed to delete replaced task, orphan record remains")
		}
	}

	log.Info().
		Str("activity_id", activity.ID).
		Int("old_tasks", len(oldTasks)).
		Int("new_tasks", len(newTasks)).
		Msg("replaced activity tasks")

	return &models.MaterializeResult{Activity: activity, Tasks: newTasks}, nil
}

// fail runs rollback after a critical-section error and returns the
// error the caller should surface: MaterializationFailure when rollback
// restored the original state, RollbackFailure when it could not.
func (m *Materializer) fail(ctx context.Context, activity *models.Activity, newTasks []*models.Task, linkedNew int, unlinkedOld []*models.Task, cause error) error {
	if rbErr := m.rollback(ctx, activity, newTasks, linkedNew, unlinkedOld); rbErr != nil {
		// Fatal, user-visible inconsistency. Logged distinctly, never
		// silently retried.
		log.Error().
			Err(rbErr).
			Str("activity_id", activity.ID).
			AnErr("cause", cause).
			Msg("ROLLBACK FAILED: activity task state is inconsistent and needs manual reconciliation")
		return fmt.Errorf("%w: %v (while recovering from: %v)", models.ErrRollbackFailure, rbErr, cause)
	}

	log.Warn().
		Err(cause).
		Str("activity_id", activity.ID).
		Msg("materialization rolled back, original task list restored")
	return fmt.Errorf("%w: %v", models.ErrMaterializationFailure, cause)
}

// rollback restores the pre-replacement state: unlink and delete the
// new tasks (the first linkedNew of which were linked), then re-link
// the already-unlinked old tasks at their original positions. The old
// records still exist because deletion is deferred to step e.
func (m *Materializer) rollback(ctx context.Context, activity *models.Activity, newTasks []*models.Task, linkedNew int, unlinkedOld []*models.Task) error {
	var failures []string

	for i, task := range newTasks {
		if i < linkedNew {
			if err := m.store.UnlinkTaskFromActivity(ctx, task.ID); err != nil {
				failures = append(failures, fmt.Sprintf("unlink new %s: %v", task.ID, err))
				continue
			}
		}
		if err := m.store.DeleteTask(ctx, task.ID); err != nil {
			failures = append(failures, fmt.Sprintf("delete new %s: %v", task.ID, err))
		}
	}

	for _, old := range unlinkedOld {
		if err := m.store.LinkTaskToActivity(ctx, old.ID, activity.ID, old.Position); err != nil {
			failures = append(failures, fmt.Sprintf("relink old %s: %v", old.ID, err))
		}
	}

	if len(failures) > 0 {
		return errors.New(strings.Join(failures, "; "))
	}
	return nil
}

func taskFromPlan(ownerID string, pt models.PlanTask) *models.Task {
	return &models.Task{
		OwnerID:      ownerID,
		Title:        pt.Title,
		Description:  pt.Description,
		Category:     pt.Category,
		Priority:     pt.Priority,
		TimeEstimate: pt.TimeEstimate,
		CostHint:     pt.CostHint,
	}
}
