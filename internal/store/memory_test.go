package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planloop/pkg/models"
)

func TestMemoryContextStore_ActiveSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryContextStore()

	_, err := s.GetActiveSession(ctx, "owner-1")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	sess := &models.Session{OwnerID: "owner-1", State: models.StateIntake}
	require.NoError(t, s.CreateSession(ctx, sess))
	require.NotEmpty(t, sess.ID)

	got, err := s.GetActiveSession(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	// Other owners never see it.
	_, err = s.GetActiveSession(ctx, "owner-2")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	require.NoError(t, s.CompleteSession(ctx, sess.ID))
	_, err = s.GetActiveSession(ctx, "owner-1")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	// Completed sessions remain retrievable by id.
	got, err = s.GetSession(ctx, "owner-1", sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Complete)
	assert.Equal(t, models.StateCompleted, got.State)
}

func TestMemoryContextStore_ExpiredSessionIgnored(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryContextStore()

	sess := &models.Session{OwnerID: "owner-1", State: models.StateGathering}
	require.NoError(t, s.CreateSession(ctx, sess))

	// Age the session past the TTL.
	s.mu.Lock()
	s.sessions[sess.ID].UpdatedAt = time.Now().Add(-SessionTTL - time.Minute)
	s.mu.Unlock()

	_, err := s.GetActiveSession(ctx, "owner-1")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestMemoryContextStore_CompleteOpenSessions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryContextStore()

	for i := 0; i < 2; i++ {
		require.NoError(t, s.CreateSession(ctx, &models.Session{OwnerID: "owner-1"}))
	}
	require.NoError(t, s.CreateSession(ctx, &models.Session{OwnerID: "owner-2"}))

	require.NoError(t, s.CompleteOpenSessions(ctx, "owner-1"))

	for _, sess := range s.Sessions() {
		if sess.OwnerID == "owner-1" {
			assert.True(t, sess.Complete)
		} else {
			assert.False(t, sess.Complete)
		}
	}
}

func TestMemoryContextStore_CopyIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryContextStore()

	sess := &models.Session{
		OwnerID: "owner-1",
		Slots:   models.Slots{Extra: map[string]string{"theme": "pirates"}},
	}
	require.NoError(t, s.CreateSession(ctx, sess))

	got, err := s.GetActiveSession(ctx, "owner-1")
	require.NoError(t, err)
	got.Slots.Extra["theme"] = "robots"
	got.History = append(got.History, models.Message{Role: models.RoleUser, Text: "x"})

	again, err := s.GetActiveSession(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "pirates", again.Slots.Extra["theme"])
	assert.Empty(t, again.History)
}

func TestSlotsMerge(t *testing.T) {
	base := models.Slots{
		ActivityType: "party",
		Location:     "backyard",
		Extra:        map[string]string{"theme": "pirates"},
	}

	merged := base.Merge(models.Slots{
		Budget: "$300",
		Extra:  map[string]string{"guests": "12"},
	})

	// Existing values survive, new ones land, nothing is wholesale
	// replaced.
	assert.Equal(t, "party", merged.ActivityType)
	assert.Equal(t, "backyard", merged.Location)
	assert.Equal(t, "$300", merged.Budget)
	assert.Equal(t, "pirates", merged.Extra["theme"])
	assert.Equal(t, "12", merged.Extra["guests"])

	// The original is untouched.
	assert.Empty(t, base.Budget)
	_, ok := base.Extra["guests"]
	assert.False(t, ok)
}

func TestSlotsMissingRequired(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"activity_type", "location", "timing", "budget"},
		models.Slots{}.MissingRequired())

	full := models.Slots{
		ActivityType: "party",
		Location:     "backyard",
		Timing:       "saturday",
		Budget:       "$300",
	}
	assert.Empty(t, full.MissingRequired())
}

func TestMemoryActivityStore_TaskLinking(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryActivityStore()

	activity := &models.Activity{OwnerID: "owner-1", Title: "Party"}
	require.NoError(t, s.CreateActivity(ctx, activity))

	task := &models.Task{OwnerID: "owner-1", Title: "Book venue"}
	require.NoError(t, s.CreateTask(ctx, task))

	// Unlinked tasks are not part of the activity.
	tasks, err := s.GetActivityTasks(ctx, activity.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	require.NoError(t, s.LinkTaskToActivity(ctx, task.ID, activity.ID, 0))
	tasks, err = s.GetActivityTasks(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, s.UnlinkTaskFromActivity(ctx, task.ID))
	tasks, err = s.GetActivityTasks(ctx, activity.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// The record survives unlinking until deleted.
	_, ok := s.TaskByID(task.ID)
	assert.True(t, ok)
	require.NoError(t, s.DeleteTask(ctx, task.ID))
	_, ok = s.TaskByID(task.ID)
	assert.False(t, ok)
}
