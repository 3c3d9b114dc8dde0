package materializer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planloop/internal/store"
	"github.com/planloop/pkg/models"
)

const owner = "owner-1"

func fiveTaskPlan() *models.Plan {
	plan := &models.Plan{
		Title:       "Birthday party",
		Description: "A small backyard party",
		Category:    "social",
	}
	for i := 0; i < 5; i++ {
		plan.Tasks = append(plan.Tasks, models.PlanTask{
			Title:        fmt.Sprintf("Task %d", i+1),
			Description:  "do the thing",
			Category:     "logistics",
			Priority:     "medium",
			TimeEstimate: "1h",
		})
	}
	return plan
}

func TestMaterialize_CreatePath(t *testing.T) {
	s := store.NewMemoryActivityStore()
	m := New(s)

	result, err := m.Materialize(context.Background(), owner, fiveTaskPlan(), "")
	require.NoError(t, err)

	require.NotNil(t, result.Activity)
	assert.Equal(t, "Birthday party", result.Activity.Title)
	require.Len(t, result.Tasks, 5)

	tasks, err := s.GetActivityTasks(context.Background(), result.Activity.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	for i, task := range tasks {
		assert.Equal(t, i, task.Position)
		assert.Equal(t, fmt.Sprintf("Task %d", i+1), task.Title)
	}
}

func TestMaterialize_EmptyPlanRejected(t *testing.T) {
	m := New(store.NewMemoryActivityStore())

	_, err := m.Materialize(context.Background(), owner, &models.Plan{Title: "empty"}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestMaterialize_ReplacePath(t *testing.T) {
	s := store.NewMemoryActivityStore()
	m := New(s)
	ctx := context.Background()

	first, err := m.Materialize(ctx, owner, fiveTaskPlan(), "")
	require.NoError(t, err)
	originalIDs := taskIDs(first.Tasks)

	replacement := &models.Plan{
		Title:    "Bigger birthday party",
		Category: "social",
		Tasks: []models.PlanTask{
			{Title: "Rent a hall", Priority: "high", TimeEstimate: "2h"},
			{Title: "Hire a band", Priority: "low", TimeEstimate: "3h"},
		},
	}

	second, err := m.Materialize(ctx, owner, replacement, first.Activity.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Activity.ID, second.Activity.ID)
	assert.Equal(t, "Bigger birthday party", second.Activity.Title)

	tasks, err := s.GetActivityTasks(ctx, first.Activity.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Rent a hall", tasks[0].Title)
	assert.Equal(t, "Hire a band", tasks[1].Title)

	// Old task records are gone, not orphaned.
	for _, id := range originalIDs {
		_, ok := s.TaskByID(id)
		assert.False(t, ok, "old task %s should be deleted", id)
	}
	assert.Equal(t, 2, s.TaskCount())
}

// Forcing the link step to fail after 2 of 5 new tasks must leave the
// activity's task list exactly as it was, with no orphaned new records.
func TestMaterialize_ReplacementRollback(t *testing.T) {
	s := store.NewMemoryActivityStore()
	m := New(s)
	ctx := context.Background()

	first, err := m.Materialize(ctx, owner, fiveTaskPlan(), "")
	require.NoError(t, err)
	originalIDs := taskIDs(first.Tasks)
	// 5 links happened during creation.

	linksSoFar := 0
	s.LinkHook = func(taskID string, linkCount int) error {
		linksSoFar++
		if linksSoFar == 3 {
			return errors.New("link exploded")
		}
		return nil
	}

	_, err = m.Materialize(ctx, owner, fiveTaskPlan(), first.Activity.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMaterializationFailure))
	assert.False(t, errors.Is(err, models.ErrRollbackFailure))

	s.LinkHook = nil

	tasks, err := s.GetActivityTasks(ctx, first.Activity.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	assert.Equal(t, originalIDs, taskIDs(tasks))

	// No new task records linger.
	assert.Equal(t, 5, s.TaskCount())
}

func TestMaterialize_RollbackFailureIsFatal(t *testing.T) {
	s := store.NewMemoryActivityStore()
	m := New(s)
	ctx := context.Background()

	first, err := m.Materialize(ctx, owner, fiveTaskPlan(), "")
	require.NoError(t, err)

	linksSoFar := 0
	s.LinkHook = func(taskID string, linkCount int) error {
		linksSoFar++
		if linksSoFar >= 3 {
			// Fails the replacement link AND the rollback relink.
			return errors.New("link exploded")
		}
		return nil
	}
	s.DeleteHook = func(taskID string) error {
		return errors.New("delete exploded")
	}

	_, err = m.Materialize(ctx, owner, fiveTaskPlan(), first.Activity.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrRollbackFailure))
}

func TestMaterialize_LinkedActivityDeletedFallsBackToCreate(t *testing.T) {
	s := store.NewMemoryActivityStore()
	m := New(s)
	ctx := context.Background()

	result, err := m.Materialize(ctx, owner, fiveTaskPlan(), "gone-activity-id")
	require.NoError(t, err)

	assert.NotEqual(t, "gone-activity-id", result.Activity.ID)
	tasks, err := s.GetActivityTasks(ctx, result.Activity.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 5)
}

func taskIDs(tasks []*models.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
