// Task table operations.
package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ecoboard/ecoboard/internal/domain"
)

// InsertTask persists a new task and returns its id.
func (db *DB) InsertTask(t domain.Task) (int64, error) {
	var due any
	if !t.DueDate.IsZero() {
		due = encodeTime(t.DueDate)
	}
	now := encodeTime(time.Now())
	res, err := db.db.Exec(`
		INSERT INTO task (title, description, status, reward, assignee, created_by, due_date, updated_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Title, t.Description, t.Status.String(), t.Reward, t.Assignee, t.CreatedBy, due, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetTask retrieves a task by id, or domain.ErrTaskNotFound.
func (db *DB) GetTask(id int64) (domain.Task, error) {
	var t domain.Task
	var status, updated, created string
	var due sql.NullString
	err := db.db.QueryRow(`
		SELECT id, title, description, status, reward, assignee, created_by, due_date, updated_at, created_at
		FROM task WHERE id = ?
	`, id).Scan(&t.ID, &t.Title, &t.Description, &status, &t.Reward, &t.Assignee, &t.CreatedBy, &due, &updated, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	t.Status, _ = domain.ParseTaskStatus(status)
	t.DueDate = decodeNullTime(due)
	t.UpdatedAt = decodeTime(updated)
	t.CreatedAt = decodeTime(created)
	return t, nil
}

// UpdateTaskStatus persists a new status and stamps updated_at.
// Returns domain.ErrTaskNotFound if the task does not exist.
func (db *DB) UpdateTaskStatus(id int64, status domain.TaskStatus) error {
	res, err := db.db.Exec(`
		UPDATE task SET status = ?, updated_at = ? WHERE id = ?
	`, status.String(), encodeTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrTaskNotFound)
}

// UpdateAssignee sets the task's assignee and stamps updated_at.
func (db *DB) UpdateAssignee(id int64, assignee string) error {
	res, err := db.db.Exec(`
		UPDATE task SET assignee = ?, updated_at = ? WHERE id = ?
	`, assignee, encodeTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrTaskNotFound)
}

// ListTasks returns tasks, newest first, optionally filtered by status.
func (db *DB) ListTasks(status *domain.TaskStatus, limit int) ([]domain.Task, error) {
	q := `SELECT id, title, description, status, reward, assignee, created_by, due_date, updated_at, created_at FROM task`
	var args []any
	if status != nil {
		q += ` WHERE status = ?`
		args = append(args, status.String())
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		var st, updated, created string
		var due sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &st, &t.Reward, &t.Assignee, &t.CreatedBy, &due, &updated, &created); err != nil {
			return nil, err
		}
		t.Status, _ = domain.ParseTaskStatus(st)
		t.DueDate = decodeNullTime(due)
		t.UpdatedAt = decodeTime(updated)
		t.CreatedAt = decodeTime(created)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ─── Attachments ────────────────────────────────────────────────────────────

// InsertAttachment stores a binary blob linked to a task.
func (db *DB) InsertAttachment(a domain.Attachment) error {
	_, err := db.db.Exec(`
		INSERT INTO attachment (id, task_id, content_type, length, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.TaskID, a.ContentType, a.Length, a.Content, encodeTime(time.Now()))
	return err
}

// GetAttachment retrieves an attachment by id, or domain.ErrAttachmentNotFound.
func (db *DB) GetAttachment(id string) (domain.Attachment, error) {
	var a domain.Attachment
	var created string
	err := db.db.QueryRow(`
		SELECT id, task_id, content_type, length, content, created_at
		FROM attachment WHERE id = ?
	`, id).Scan(&a.ID, &a.TaskID, &a.ContentType, &a.Length, &a.Content, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attachment{}, domain.ErrAttachmentNotFound
	}
	if err != nil {
		return domain.Attachment{}, err
	}
	a.CreatedAt = decodeTime(created)
	return a, nil
}

// ListAttachmentIDs returns the attachment ids for a task.
func (db *DB) ListAttachmentIDs(taskID int64) ([]string, error) {
	rows, err := db.db.Query(`SELECT id FROM attachment WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
