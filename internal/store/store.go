// Package store defines the durable collaborators the planning engine
// writes through: the conversation context store and the activity/task
// store. Both have Postgres and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/planloop/pkg/models"
)

// ErrActivityNotFound is returned when an activity id no longer
// resolves, typically because it was deleted out-of-band.
var ErrActivityNotFound = errors.New("activity not found")

// ErrTaskNotFound is returned when a task id no longer resolves.
var ErrTaskNotFound = errors.New("task not found")

// SessionTTL is how long an open session stays active. Older open
// sessions are treated as abandoned: GetActiveSession ignores them and
// the next turn completes them and starts fresh.
const SessionTTL = 24 * time.Hour

// ContextStore persists conversation sessions. At most one session per
// owner may be open at a time; CreateSession enforces nothing itself,
// the controller completes any prior open session first.
type ContextStore interface {
	// GetActiveSession returns the owner's open, unexpired session, or
	// models.ErrSessionNotFound when there is none.
	GetActiveSession(ctx context.Context, ownerID string) (*models.Session, error)

	// GetSession returns a session by id, owner-scoped.
	GetSession(ctx context.Context, ownerID, sessionID string) (*models.Session, error)

	CreateSession(ctx context.Context, session *models.Session) error
	UpdateSession(ctx context.Context, session *models.Session) error

	// CompleteSession marks a session completed. Terminal.
	CompleteSession(ctx context.Context, sessionID string) error

	// CompleteOpenSessions marks every open session for the owner
	// completed, expired or not. Called before a new conversation is
	// created so sessions are never silently abandoned.
	CompleteOpenSessions(ctx context.Context, ownerID string) error
}

// ActivityStore persists activities and their ordered task links. Tasks
// are created unlinked and attached separately so the materializer can
// sequence writes for rollback.
type ActivityStore interface {
	CreateActivity(ctx context.Context, activity *models.Activity) error
	UpdateActivity(ctx context.Context, activity *models.Activity) error

	// GetActivity returns the activity, or ErrActivityNotFound when it
	// was deleted out-of-band.
	GetActivity(ctx context.Context, ownerID, activityID string) (*models.Activity, error)

	// GetActivityTasks returns the activity's tasks ordered by position.
	GetActivityTasks(ctx context.Context, activityID string) ([]*models.Task, error)

	CreateTask(ctx context.Context, task *models.Task) error
	LinkTaskToActivity(ctx context.Context, taskID, activityID string, position int) error
	UnlinkTaskFromActivity(ctx context.Context, taskID string) error
	DeleteTask(ctx context.Context, taskID string) error
}
