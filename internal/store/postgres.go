package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/planloop/pkg/models"
)

// PostgresContextStore persists sessions in Postgres. Slots, flags,
// history, and the candidate plan live in JSONB columns; the session
// row itself carries the filterable fields.
type PostgresContextStore struct {
	db *sql.DB
}

// NewPostgresContextStore wraps an open database handle.
func NewPostgresContextStore(db *sql.DB) *PostgresContextStore {
	return &PostgresContextStore{db: db}
}

func (s *PostgresContextStore) GetActiveSession(ctx context.Context, ownerID string) (*models.Session, error) {
	query := `
	SELECT id, owner_id, state, slots, flags, history, candidate_plan, complete, created_at, updated_at
	FROM planning_sessions
	WHERE owner_id = $1 AND complete = FALSE AND updated_at > NOW() - make_interval(secs => $2)
	ORDER BY updated_at DESC
	LIMIT 1
	`

	row := s.db.QueryRowContext(ctx, query, ownerID, SessionTTL.Seconds())
	return scanSession(row)
}

func (s *PostgresContextStore) GetSession(ctx context.Context, ownerID, sessionID string) (*models.Session, error) {
	query := `
	SELECT id, owner_id, state, slots, flags, history, candidate_plan, complete, created_at, updated_at
	FROM planning_sessions
	WHERE id = $1 AND owner_id = $2
	`

	row := s.db.QueryRowContext(ctx, query, sessionID, ownerID)
	return scanSession(row)
}

func (s *PostgresContextStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	slots, flags, history, plan, err := marshalSessionJSON(session)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO planning_sessions (id, owner_id, state, slots, flags, history, candidate_plan, complete, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	RETURNING created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		session.ID, session.OwnerID, string(session.State),
		slots, flags, history, plan, session.Complete,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	log.Debug().
		Str("session_id", session.ID).
		Str("owner_id", session.OwnerID).
		Msg("created planning session")
	return nil
}

func (s *PostgresContextStore) UpdateSession(ctx context.Context, session *models.Session) error {
	slots, flags, history, plan, err := marshalSessionJSON(session)
	if err != nil {
		return err
	}

	query := `
	UPDATE planning_sessions
	SET state = $2, slots = $3, flags = $4, history = $5, candidate_plan = $6, complete = $7, updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		session.ID, string(session.State),
		slots, flags, history, plan, session.Complete,
	).Scan(&session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (s *PostgresContextStore) CompleteSession(ctx context.Context, sessionID string) error {
	query := `
	UPDATE planning_sessions
	SET complete = TRUE, state = $2, updated_at = NOW()
	WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, sessionID, string(models.StateCompleted))
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if affected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

func (s *PostgresContextStore) CompleteOpenSessions(ctx context.Context, ownerID string) error {
	query := `
	UPDATE planning_sessions
	SET complete = TRUE, state = $2, updated_at = NOW()
	WHERE owner_id = $1 AND complete = FALSE
	`

	_, err := s.db.ExecContext(ctx, query, ownerID, string(models.StateCompleted))
	if err != nil {
		return fmt.Errorf("failed to complete open sessions: %w", err)
	}
	return nil
}

func marshalSessionJSON(session *models.Session) (slots, flags, history, plan []byte, err error) {
	if slots, err = json.Marshal(session.Slots); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal slots: %w", err)
	}
	if flags, err = json.Marshal(session.Flags); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal flags: %w", err)
	}
	if history, err = json.Marshal(session.History); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	if session.CandidatePlan != nil {
		if plan, err = json.Marshal(session.CandidatePlan); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to marshal candidate plan: %w", err)
		}
	}
	return slots, flags, history, plan, nil
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var session models.Session
	var state string
	var slots, flags, history []byte
	var plan sql.Null[[]byte]

	err := row.Scan(
		&session.ID, &session.OwnerID, &state,
		&slots, &flags, &history, &plan,
		&session.Complete, &session.CreatedAt, &session.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	session.State = models.SessionState(state)
	if err := json.Unmarshal(slots, &session.Slots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal slots: %w", err)
	}
	if err := json.Unmarshal(flags, &session.Flags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flags: %w", err)
	}
	if err := json.Unmarshal(history, &session.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	if plan.Valid && len(plan.V) > 0 {
		session.CandidatePlan = &models.Plan{}
		if err := json.Unmarshal(plan.V, session.CandidatePlan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal candidate plan: %w", err)
		}
	}
	return &session, nil
}

// PostgresActivityStore persists activities and tasks. Task ordering is
// carried by the position column on the tasks table; an unlinked task
// has a NULL activity_id.
type PostgresActivityStore struct {
	db *sql.DB
}

// NewPostgresActivityStore wraps an open database handle.
func NewPostgresActivityStore(db *sql.DB) *PostgresActivityStore {
	return &PostgresActivityStore{db: db}
}

func (s *PostgresActivityStore) CreateActivity(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}

	query := `
	INSERT INTO activities (id, owner_id, title, description, category, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		activity.ID, activity.OwnerID, activity.Title,
		activity.Description, activity.Category, activity.Status,
	).Scan(&activity.CreatedAt, &activity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

func (s *PostgresActivityStore) UpdateActivity(ctx context.Context, activity *models.Activity) error {
	query := `
	UPDATE activities
	SET title = $2, description = $3, category = $4, status = $5, updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		activity.ID, activity.Title, activity.Description,
		activity.Category, activity.Status,
	).Scan(&activity.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrActivityNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	return nil
}

func (s *PostgresActivityStore) GetActivity(ctx context.Context, ownerID, activityID string) (*models.Activity, error) {
	query := `
	SELECT id, owner_id, title, description, category, status, created_at, updated_at
	FROM activities
	WHERE id = $1 AND owner_id = $2
	`

	var a models.Activity
	err := s.db.QueryRowContext(ctx, query, activityID, ownerID).Scan(
		&a.ID, &a.OwnerID, &a.Title, &a.Description,
		&a.Category, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return &a, nil
}

func (s *PostgresActivityStore) GetActivityTasks(ctx context.Context, activityID string) ([]*models.Task, error) {
	query := `
	SELECT id, owner_id, activity_id, position, title, description, category, priority, time_estimate, cost_hint, created_at
	FROM tasks
	WHERE activity_id = $1
	ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var t models.Task
		var costHint sql.NullString
		err := rows.Scan(
			&t.ID, &t.OwnerID, &t.ActivityID, &t.Position,
			&t.Title, &t.Description, &t.Category, &t.Priority,
			&t.TimeEstimate, &costHint, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.CostHint = costHint.String
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return tasks, nil
}

func (s *PostgresActivityStore) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	query := `
	INSERT INTO tasks (id, owner_id, activity_id, position, title, description, category, priority, time_estimate, cost_hint, created_at)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NOW())
	RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		task.ID, task.OwnerID, task.ActivityID, task.Position,
		task.Title, task.Description, task.Category, task.Priority,
		task.TimeEstimate, task.CostHint,
	).Scan(&task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (s *PostgresActivityStore) LinkTaskToActivity(ctx context.Context, taskID, activityID string, position int) error {
	query := `UPDATE tasks SET activity_id = $2, position = $3 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, taskID, activityID, position)
	if err != nil {
		return fmt.Errorf("failed to link task %s: %w", taskID, err)
	}
	return requireOneRow(result, ErrTaskNotFound)
}

func (s *PostgresActivityStore) UnlinkTaskFromActivity(ctx context.Context, taskID string) error {
	query := `UPDATE tasks SET activity_id = NULL, position = 0 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, taskID)
	if err != nil {
		return fmt.Errorf("failed to unlink task %s: %w", taskID, err)
	}
	return requireOneRow(result, ErrTaskNotFound)
}

func (s *PostgresActivityStore) DeleteTask(ctx context.Context, taskID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return requireOneRow(result, ErrTaskNotFound)
}

func requireOneRow(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
