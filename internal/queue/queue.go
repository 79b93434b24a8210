package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue is a SQLite-backed task queue. Enqueue is idempotent per dedupe key
// while a matching task is still pending, so sender retries of the same
// payload collapse to one task.
type Queue struct {
	db *sql.DB
}

func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue inserts a queued task and returns its id. When a dedupe key is
// given and a queued or running task already carries it, that task's id is
// returned instead of inserting a duplicate.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if req.Kind == "" {
		return "", fmt.Errorf("kind is empty")
	}

	if req.DedupeKey != nil && *req.DedupeKey != "" {
		existing, err := q.pendingByDedupeKey(ctx, *req.DedupeKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("dedupe lookup: %w", err)
		}
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}

	var payload any
	if len(req.Payload) > 0 {
		payload = string(req.Payload)
	}

	_, err := q.db.ExecContext(ctx, `
INSERT INTO task_queue(
  id, kind, payload, status, attempt, max_attempts, source, dedupe_key, created_at
)
VALUES(?, ?, ?, ?, 1, ?, ?, ?, ?);
`, id, req.Kind, payload, StatusQueued, maxAttempts, req.Source, req.DedupeKey, now)
	if err != nil {
		// A unique-index violation means a concurrent enqueue won the race
		// between our dedupe lookup and this insert; return its task.
		if req.DedupeKey != nil && *req.DedupeKey != "" {
			if existing, lookupErr := q.pendingByDedupeKey(ctx, *req.DedupeKey); lookupErr == nil {
				return existing, nil
			}
		}
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	return id, nil
}

// pendingByDedupeKey returns the id of the queued or running task carrying
// key, or sql.ErrNoRows.
func (q *Queue) pendingByDedupeKey(ctx context.Context, key string) (string, error) {
	var id string
	err := q.db.QueryRowContext(ctx, `
SELECT id FROM task_queue
WHERE dedupe_key = ? AND status IN (?, ?)
LIMIT 1;
`, key, StatusQueued, StatusRunning).Scan(&id)
	return id, err
}

// Dequeue claims the oldest runnable task and marks it running. Returns
// (nil, nil) if the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*Task, error) {
	now := time.Now().UTC()
	nowS := now.Format(time.RFC3339Nano)

	row := q.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM task_queue
  WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
  ORDER BY created_at ASC, rowid ASC
  LIMIT 1
)
UPDATE task_queue
SET status = ?, started_at = ?
WHERE id IN (SELECT id FROM next)
RETURNING
  id, kind, payload, status, attempt, max_attempts, source, dedupe_key,
  created_at, started_at, completed_at, next_retry_at, last_error;
`, StatusQueued, nowS, StatusRunning, nowS)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue task: %w", err)
	}
	return task, nil
}

// Complete marks a running task succeeded.
func (q *Queue) Complete(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("taskID is empty")
	}

	completedAt := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := q.db.ExecContext(ctx, `
UPDATE task_queue
SET status = ?, completed_at = ?, last_error = NULL
WHERE id = ?;
`, StatusSucceeded, completedAt, taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Fail records a task failure. Tasks with attempts left are requeued with a
// linear backoff; exhausted tasks go dead.
func (q *Queue) Fail(ctx context.Context, taskID string, taskErr error, backoffBase time.Duration) error {
	if taskID == "" {
		return fmt.Errorf("taskID is empty")
	}

	var attempt, maxAttempts int
	err := q.db.QueryRowContext(ctx, `
SELECT attempt, max_attempts FROM task_queue WHERE id = ?;
`, taskID).Scan(&attempt, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("load task for failure: %w", err)
	}

	lastError := ""
	if taskErr != nil {
		lastError = taskErr.Error()
	}
	now := time.Now().UTC()

	if attempt >= maxAttempts {
		_, err = q.db.ExecContext(ctx, `
UPDATE task_queue
SET status = ?, completed_at = ?, last_error = ?
WHERE id = ?;
`, StatusDead, now.Format(time.RFC3339Nano), lastError, taskID)
		if err != nil {
			return fmt.Errorf("mark task dead: %w", err)
		}
		return nil
	}

	nextRetry := now.Add(backoffBase * time.Duration(attempt))
	_, err = q.db.ExecContext(ctx, `
UPDATE task_queue
SET status = ?, attempt = attempt + 1, next_retry_at = ?, last_error = ?, started_at = NULL
WHERE id = ?;
`, StatusQueued, nextRetry.Format(time.RFC3339Nano), lastError, taskID)
	if err != nil {
		return fmt.Errorf("requeue task: %w", err)
	}
	return nil
}

// Depth returns the number of queued tasks.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM task_queue WHERE status = ?;
`, StatusQueued).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

// GetByID returns one task, or ErrTaskNotFound.
func (q *Queue) GetByID(ctx context.Context, taskID string) (*Task, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT id, kind, payload, status, attempt, max_attempts, source, dedupe_key,
  created_at, started_at, completed_at, next_retry_at, last_error
FROM task_queue
WHERE id = ?;
`, taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func scanTask(row *sql.Row) (*Task, error) {
	var (
		t            Task
		payload      sql.NullString
		source       sql.NullString
		dedupeKey    sql.NullString
		statusS      string
		createdAtS   string
		startedAtS   sql.NullString
		completedAtS sql.NullString
		nextRetryAtS sql.NullString
		lastError    sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.Kind, &payload, &statusS, &t.Attempt, &t.MaxAttempts, &source, &dedupeKey,
		&createdAtS, &startedAtS, &completedAtS, &nextRetryAtS, &lastError,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(statusS)
	if payload.Valid {
		t.Payload = []byte(payload.String)
	}
	if source.Valid {
		t.Source = source.String
	}
	if dedupeKey.Valid {
		t.DedupeKey = &dedupeKey.String
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		t.CreatedAt = ts
	}
	if startedAtS.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, startedAtS.String); err == nil {
			t.StartedAt = &ts
		}
	}
	if completedAtS.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, completedAtS.String); err == nil {
			t.CompletedAt = &ts
		}
	}
	if nextRetryAtS.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, nextRetryAtS.String); err == nil {
			t.NextRetryAt = &ts
		}
	}
	if lastError.Valid {
		t.LastError = &lastError.String
	}
	return &t, nil
}
