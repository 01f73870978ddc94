package repo

import (
	"context"
	"database/sql"
	"errors"

	"taskraid/internal/domain"
)

func bossTypeID(b domain.Boss) any {
	if b.Type == nil {
		return nil
	}
	return b.Type.ID
}

func (t *tx) InsertBoss(ctx context.Context, b domain.Boss) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO bosses(id,project_id,type_id,hp,max_hp,status,phase,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		b.ID, b.ProjectID, bossTypeID(b), b.HP, b.MaxHP, b.Status, b.Phase, formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	return err
}

func (t *tx) ActiveBoss(ctx context.Context, projectID string) (domain.Boss, error) {
	var (
		b                             domain.Boss
		created, updated              string
		typeID, name, image, category sql.NullString
	)
	err := t.q.QueryRowContext(ctx, `SELECT b.id,b.project_id,b.hp,b.max_hp,b.status,b.phase,b.created_at,b.updated_at,
		bt.id,bt.name,bt.image,bt.category
		FROM bosses b LEFT JOIN boss_types bt ON bt.id=b.type_id
		WHERE b.project_id=? ORDER BY b.seq DESC LIMIT 1`, projectID).
		Scan(&b.ID, &b.ProjectID, &b.HP, &b.MaxHP, &b.Status, &b.Phase, &created, &updated, &typeID, &name, &image, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return b, notFound("boss", projectID)
	}
	if err != nil {
		return b, err
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return b, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return b, err
	}
	if typeID.Valid {
		b.Type = &domain.BossType{ID: typeID.String, Name: name.String, Image: image.String, Category: domain.BossCategory(category.String)}
	}
	return b, nil
}

func (t *tx) UpdateBoss(ctx context.Context, b domain.Boss) error {
	res, err := t.q.ExecContext(ctx, `UPDATE bosses SET type_id=?,hp=?,max_hp=?,status=?,phase=?,updated_at=? WHERE id=?`,
		bossTypeID(b), b.HP, b.MaxHP, b.Status, b.Phase, formatTime(b.UpdatedAt), b.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "boss", b.ID)
}

func (t *tx) UsedBossTypes(ctx context.Context, projectID string) ([]string, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT DISTINCT type_id FROM bosses WHERE project_id=? AND type_id IS NOT NULL ORDER BY type_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}
