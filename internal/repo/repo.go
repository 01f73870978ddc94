// Package repo is the SQLite implementation of store.Store.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskraid/internal/domain"
	"taskraid/internal/events"
	"taskraid/internal/store"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Repo struct {
	DB *sql.DB
}

var (
	_ store.Store = Repo{}
	_ store.Tx    = (*tx)(nil)
)

func New(db *sql.DB) Repo {
	return Repo{DB: db}
}

// InTx runs fn inside one SQLite transaction. The transaction is committed
// only when fn returns nil.
func (r Repo) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sqlTx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sqlTx.Rollback()
	if err := fn(ctx, &tx{q: sqlTx, log: eventLog{q: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type tx struct {
	q   *sql.Tx
	log eventLog
}

func (t *tx) Log() events.Log { return t.log }

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, store.ErrNotFound)
}

func formatTime(v time.Time) string {
	return v.UTC().Format(timeLayout)
}

func formatTimePtr(v *time.Time) any {
	if v == nil {
		return nil
	}
	return formatTime(*v)
}

func parseTime(s string) (time.Time, error) {
	v, err := time.Parse(timeLayout, s)
	if err != nil {
		return v, fmt.Errorf("parse time %q: %w", s, err)
	}
	return v, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	v, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// expectRow turns a zero row count into a not-found error.
func expectRow(res sql.Result, entity, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound(entity, id)
	}
	return nil
}

// --- projects ---

const projectColumns = `id,name,description,owner_id,status,created_at`

func scanProject(row interface{ Scan(...any) error }) (domain.Project, error) {
	var (
		p       domain.Project
		created string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.Status, &created); err != nil {
		return p, err
	}
	var err error
	p.CreatedAt, err = parseTime(created)
	return p, err
}

func (t *tx) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO projects(id,name,description,owner_id,status,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Name, p.Description, p.OwnerID, p.Status, formatTime(p.CreatedAt))
	return err
}

func (t *tx) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := scanProject(t.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, notFound("project", id)
	}
	return p, err
}

func (t *tx) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (t *tx) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := t.q.ExecContext(ctx, `UPDATE projects SET name=?,description=?,status=? WHERE id=?`, p.Name, p.Description, p.Status, p.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "project", p.ID)
}
