package repo

import (
	"context"
	"database/sql"
	"errors"

	"taskraid/internal/domain"
)

const memberColumns = `id,project_id,user_id,hp,max_hp,status,score,joined_at`

func scanMember(row interface{ Scan(...any) error }) (domain.Member, error) {
	var (
		m      domain.Member
		joined string
	)
	if err := row.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.HP, &m.MaxHP, &m.Status, &m.Score, &joined); err != nil {
		return m, err
	}
	var err error
	m.JoinedAt, err = parseTime(joined)
	return m, err
}

func (t *tx) InsertMember(ctx context.Context, m domain.Member) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO members(`+memberColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.ProjectID, m.UserID, m.HP, m.MaxHP, m.Status, m.Score, formatTime(m.JoinedAt))
	return err
}

func (t *tx) GetMember(ctx context.Context, id string) (domain.Member, error) {
	m, err := scanMember(t.q.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return m, notFound("member", id)
	}
	return m, err
}

func (t *tx) GetMemberByUser(ctx context.Context, projectID, userID string) (domain.Member, error) {
	m, err := scanMember(t.q.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE project_id=? AND user_id=?`, projectID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return m, notFound("member", projectID+"/"+userID)
	}
	return m, err
}

func (t *tx) UpdateMember(ctx context.Context, m domain.Member) error {
	res, err := t.q.ExecContext(ctx, `UPDATE members SET hp=?,max_hp=?,status=?,score=? WHERE id=?`, m.HP, m.MaxHP, m.Status, m.Score, m.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "member", m.ID)
}

// DeleteMember relies on cascading foreign keys for assignments, effects and items.
func (t *tx) DeleteMember(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM members WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectRow(res, "member", id)
}

func (t *tx) ListMembers(ctx context.Context, projectID string) ([]domain.Member, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT `+memberColumns+` FROM members WHERE project_id=? ORDER BY joined_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (t *tx) CountMembers(ctx context.Context, projectID string) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}
