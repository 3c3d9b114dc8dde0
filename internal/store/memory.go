package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planloop/pkg/models"
)

// MemoryContextStore is an in-process ContextStore used by tests and
// local development.
type MemoryContextStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

// NewMemoryContextStore creates an empty in-memory context store.
func NewMemoryContextStore() *MemoryContextStore {
	return &MemoryContextStore{sessions: make(map[string]*models.Session)}
}

func (m *MemoryContextStore) GetActiveSession(ctx context.Context, ownerID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-SessionTTL)
	for _, s := range m.sessions {
		if s.OwnerID == ownerID && !s.Complete && s.UpdatedAt.After(cutoff) {
			return copySession(s), nil
		}
	}
	return nil, models.ErrSessionNotFound
}

func (m *MemoryContextStore) GetSession(ctx context.Context, ownerID, sessionID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.OwnerID != ownerID {
		return nil, models.ErrSessionNotFound
	}
	return copySession(s), nil
}

func (m *MemoryContextStore) CreateSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *MemoryContextStore) UpdateSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.ID]; !ok {
		return models.ErrSessionNotFound
	}
	session.UpdatedAt = time.Now()
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *MemoryContextStore) CompleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	s.Complete = true
	s.State = models.StateCompleted
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryContextStore) CompleteOpenSessions(ctx context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, s := range m.sessions {
		if s.OwnerID == ownerID && !s.Complete {
			s.Complete = true
			s.State = models.StateCompleted
			s.UpdatedAt = now
		}
	}
	return nil
}

// Sessions returns every stored session, for test assertions.
func (m *MemoryContextStore) Sessions() []*models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, copySession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func copySession(s *models.Session) *models.Session {
	dup := *s
	dup.History = append([]models.Message(nil), s.History...)
	if s.Slots.Extra != nil {
		extra := make(map[string]string, len(s.Slots.Extra))
		for k, v := range s.Slots.Extra {
			extra[k] = v
		}
		dup.Slots.Extra = extra
	}
	if s.CandidatePlan != nil {
		plan := *s.CandidatePlan
		plan.Tasks = append([]models.PlanTask(nil), s.CandidatePlan.Tasks...)
		dup.CandidatePlan = &plan
	}
	return &dup
}

// MemoryActivityStore is an in-process ActivityStore. Hooks on the
// mutating methods let tests force failures mid-sequence.
type MemoryActivityStore struct {
	mu         sync.Mutex
	activities map[string]*models.Activity
	tasks      map[string]*models.Task

	// Failure hooks for tests; nil means never fail.
	LinkHook   func(taskID string, linkCount int) error
	UnlinkHook func(taskID string) error
	DeleteHook func(taskID string) error

	linkCount int
}

// NewMemoryActivityStore creates an empty in-memory activity store.
func NewMemoryActivityStore() *MemoryActivityStore {
	return &MemoryActivityStore{
		activities: make(map[string]*models.Activity),
		tasks:      make(map[string]*models.Task),
	}
}

func (m *MemoryActivityStore) CreateActivity(ctx context.Context, activity *models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now()
	activity.CreatedAt = now
	activity.UpdatedAt = now
	dup := *activity
	m.activities[activity.ID] = &dup
	return nil
}

func (m *MemoryActivityStore) UpdateActivity(ctx context.Context, activity *models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.activities[activity.ID]; !ok {
		return ErrActivityNotFound
	}
	activity.UpdatedAt = time.Now()
	dup := *activity
	m.activities[activity.ID] = &dup
	return nil
}

func (m *MemoryActivityStore) GetActivity(ctx context.Context, ownerID, activityID string) (*models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.activities[activityID]
	if !ok || a.OwnerID != ownerID {
		return nil, ErrActivityNotFound
	}
	dup := *a
	return &dup, nil
}

func (m *MemoryActivityStore) GetActivityTasks(ctx context.Context, activityID string) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Task
	for _, t := range m.tasks {
		if t.ActivityID == activityID {
			dup := *t
			out = append(out, &dup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *MemoryActivityStore) CreateTask(ctx context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CreatedAt = time.Now()
	dup := *task
	m.tasks[task.ID] = &dup
	return nil
}

func (m *MemoryActivityStore) LinkTaskToActivity(ctx context.Context, taskID, activityID string, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.linkCount++
	if m.LinkHook != nil {
		if err := m.LinkHook(taskID, m.linkCount); err != nil {
			return err
		}
	}

	t, ok := m.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	t.ActivityID = activityID
	t.Position = position
	return nil
}

func (m *MemoryActivityStore) UnlinkTaskFromActivity(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UnlinkHook != nil {
		if err := m.UnlinkHook(taskID); err != nil {
			return err
		}
	}

	t, ok := m.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	t.ActivityID = ""
	t.Position = 0
	return nil
}

func (m *MemoryActivityStore) DeleteTask(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteHook != nil {
		if err := m.DeleteHook(taskID); err != nil {
			return err
		}
	}

	if _, ok := m.tasks[taskID]; !ok {
		return ErrTaskNotFound
	}
	delete(m.tasks, taskID)
	return nil
}

// TaskByID returns a stored task, for test assertions.
func (m *MemoryActivityStore) TaskByID(taskID string) (*models.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return nil, false
	}
	dup := *t
	return &dup, true
}

// TaskCount returns the number of task records, for test assertions.
func (m *MemoryActivityStore) TaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
