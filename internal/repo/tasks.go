package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"taskraid/internal/domain"
	"taskraid/internal/store"
)

const taskColumns = `id,project_id,title,description,status,priority,created_at,updated_at,deadline,completed_at`

func scanTask(row interface{ Scan(...any) error }) (domain.Task, error) {
	var (
		t                  domain.Task
		created, updated   string
		deadline, complete sql.NullString
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority, &created, &updated, &deadline, &complete); err != nil {
		return t, err
	}
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return t, err
	}
	if t.Deadline, err = parseTimePtr(deadline); err != nil {
		return t, err
	}
	t.CompletedAt, err = parseTimePtr(complete)
	t.Assignees = []string{}
	return t, err
}

func (t *tx) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, task)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := t.fillAssignees(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// fillAssignees loads assignees for tasks in assignment order.
func (t *tx) fillAssignees(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	idx := make(map[string]int, len(tasks))
	args := make([]any, 0, len(tasks))
	for i, task := range tasks {
		idx[task.ID] = i
		args = append(args, task.ID)
	}
	query := fmt.Sprintf(`SELECT task_id,member_id FROM task_assignees WHERE task_id IN (%s) ORDER BY task_id, position`, placeholders(len(args)))
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var taskID, memberID string
		if err := rows.Scan(&taskID, &memberID); err != nil {
			return err
		}
		i := idx[taskID]
		tasks[i].Assignees = append(tasks[i].Assignees, memberID)
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (t *tx) InsertTask(ctx context.Context, task domain.Task) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		task.ID, task.ProjectID, task.Title, task.Description, task.Status, task.Priority,
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt), formatTimePtr(task.Deadline), formatTimePtr(task.CompletedAt))
	if err != nil {
		return err
	}
	for _, memberID := range task.Assignees {
		if err := t.AddAssignee(ctx, task.ID, memberID); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) GetTask(ctx context.Context, id string) (domain.Task, error) {
	tasks, err := t.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	if err != nil {
		return domain.Task{}, err
	}
	if len(tasks) == 0 {
		return domain.Task{}, notFound("task", id)
	}
	return tasks[0], nil
}

// UpdateTask saves the task fields. Assignees change only through
// AddAssignee and RemoveAssignee.
func (t *tx) UpdateTask(ctx context.Context, task domain.Task) error {
	res, err := t.q.ExecContext(ctx, `UPDATE tasks SET title=?,description=?,status=?,priority=?,updated_at=?,deadline=?,completed_at=? WHERE id=?`,
		task.Title, task.Description, task.Status, task.Priority, formatTime(task.UpdatedAt),
		formatTimePtr(task.Deadline), formatTimePtr(task.CompletedAt), task.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "task", task.ID)
}

func (t *tx) DeleteTask(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectRow(res, "task", id)
}

func (t *tx) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	return t.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id=? ORDER BY created_at, id`, projectID)
}

func (t *tx) AddAssignee(ctx context.Context, taskID, memberID string) error {
	var exists bool
	err := t.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id=?)`, taskID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return notFound("task", taskID)
	}
	_, err = t.q.ExecContext(ctx, `INSERT OR IGNORE INTO task_assignees(task_id,member_id,position)
		SELECT ?,?,COALESCE(MAX(position),0)+1 FROM task_assignees WHERE task_id=?`, taskID, memberID, taskID)
	return err
}

func (t *tx) RemoveAssignee(ctx context.Context, taskID, memberID string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id=? AND member_id=?`, taskID, memberID)
	if err != nil {
		return err
	}
	return expectRow(res, "assignment", taskID+"/"+memberID)
}

func (t *tx) PrioritySum(ctx context.Context, projectID string) (int, int, error) {
	var sum, count int
	err := t.q.QueryRowContext(ctx, `SELECT COALESCE(SUM(priority),0), COUNT(*) FROM tasks WHERE project_id=?`, projectID).Scan(&sum, &count)
	return sum, count, err
}

func (t *tx) ListOverdueTasks(ctx context.Context, q store.OverdueQuery) ([]domain.Task, error) {
	clauses := []string{
		"status<>'done'",
		"deadline IS NOT NULL",
		"deadline<?",
		"EXISTS(SELECT 1 FROM task_assignees a WHERE a.task_id=tasks.id)",
	}
	args := []any{formatTime(q.Now)}
	if q.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, q.ProjectID)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY deadline, id LIMIT ?`, taskColumns, strings.Join(clauses, " AND "))
	return t.queryTasks(ctx, query, args...)
}
