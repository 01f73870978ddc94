package repo

import (
	"context"
	"database/sql"
	"errors"

	"taskraid/internal/domain"
)

func (t *tx) InsertActiveEffect(ctx context.Context, ae domain.ActiveEffect) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO active_effects(id,member_id,effect_id,created_at) VALUES (?,?,?,?)`,
		ae.ID, ae.MemberID, ae.Effect.ID, formatTime(ae.CreatedAt))
	return err
}

func (t *tx) ListActiveEffects(ctx context.Context, memberID string) ([]domain.ActiveEffect, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT ae.id,ae.member_id,ae.created_at,
		e.id,e.type,e.value,e.polarity,e.rarity,e.description
		FROM active_effects ae JOIN effects e ON e.id=ae.effect_id
		WHERE ae.member_id=? ORDER BY ae.seq`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ActiveEffect{}
	for rows.Next() {
		var (
			ae      domain.ActiveEffect
			created string
		)
		e := &ae.Effect
		if err := rows.Scan(&ae.ID, &ae.MemberID, &created, &e.ID, &e.Type, &e.Value, &e.Polarity, &e.Rarity, &e.Description); err != nil {
			return nil, err
		}
		if ae.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		res = append(res, ae)
	}
	return res, rows.Err()
}

func (t *tx) DeleteActiveEffect(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM active_effects WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectRow(res, "active effect", id)
}

func (t *tx) InsertOwnedItem(ctx context.Context, oi domain.OwnedItem) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO owned_items(id,member_id,item_id,obtained_at) VALUES (?,?,?,?)`,
		oi.ID, oi.MemberID, oi.Item.ID, formatTime(oi.ObtainedAt))
	return err
}

const ownedItemQuery = `SELECT oi.id,oi.member_id,oi.obtained_at,i.id,i.name,i.description,COALESCE(i.effect_id,'')
	FROM owned_items oi JOIN items i ON i.id=oi.item_id`

func scanOwnedItem(row interface{ Scan(...any) error }) (domain.OwnedItem, error) {
	var (
		oi       domain.OwnedItem
		obtained string
	)
	if err := row.Scan(&oi.ID, &oi.MemberID, &obtained, &oi.Item.ID, &oi.Item.Name, &oi.Item.Description, &oi.Item.EffectID); err != nil {
		return oi, err
	}
	var err error
	oi.ObtainedAt, err = parseTime(obtained)
	return oi, err
}

func (t *tx) ListOwnedItems(ctx context.Context, memberID string) ([]domain.OwnedItem, error) {
	rows, err := t.q.QueryContext(ctx, ownedItemQuery+` WHERE oi.member_id=? ORDER BY oi.seq`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.OwnedItem{}
	for rows.Next() {
		oi, err := scanOwnedItem(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, oi)
	}
	return res, rows.Err()
}

func (t *tx) TakeOwnedItem(ctx context.Context, memberID, ownedItemID string) (domain.OwnedItem, error) {
	oi, err := scanOwnedItem(t.q.QueryRowContext(ctx, ownedItemQuery+` WHERE oi.id=? AND oi.member_id=?`, ownedItemID, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return oi, notFound("owned item", ownedItemID)
	}
	if err != nil {
		return oi, err
	}
	res, err := t.q.ExecContext(ctx, `DELETE FROM owned_items WHERE id=?`, ownedItemID)
	if err != nil {
		return oi, err
	}
	return oi, expectRow(res, "owned item", ownedItemID)
}

// --- reports ---

func (t *tx) InsertReport(ctx context.Context, r domain.Report) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO reports(id,project_id,task_id,reporter_id,description,sentiment,created_at) VALUES (?,?,?,?,?,?,?)`,
		r.ID, r.ProjectID, r.TaskID, r.ReporterID, r.Description, r.Sentiment, formatTime(r.CreatedAt))
	return err
}

func (t *tx) ListReports(ctx context.Context, taskID string) ([]domain.Report, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT id,project_id,task_id,reporter_id,description,sentiment,created_at
		FROM reports WHERE task_id=? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Report
	for rows.Next() {
		var (
			r       domain.Report
			created string
		)
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.TaskID, &r.ReporterID, &r.Description, &r.Sentiment, &created); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}
