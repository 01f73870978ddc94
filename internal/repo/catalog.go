package repo

import (
	"context"
	"database/sql"
	"errors"

	"taskraid/internal/domain"
)

func (t *tx) UpsertBossType(ctx context.Context, bt domain.BossType) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO boss_types(id,name,image,category) VALUES (?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, image=excluded.image, category=excluded.category`,
		bt.ID, bt.Name, bt.Image, bt.Category)
	return err
}

func (t *tx) ListBossTypes(ctx context.Context, category domain.BossCategory) ([]domain.BossType, error) {
	query := `SELECT id,name,image,category FROM boss_types`
	var args []any
	if category != "" {
		query += ` WHERE category=?`
		args = append(args, category)
	}
	rows, err := t.q.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.BossType
	for rows.Next() {
		var bt domain.BossType
		if err := rows.Scan(&bt.ID, &bt.Name, &bt.Image, &bt.Category); err != nil {
			return nil, err
		}
		res = append(res, bt)
	}
	return res, rows.Err()
}

const effectColumns = `id,type,value,polarity,rarity,description`

func scanEffect(row interface{ Scan(...any) error }) (domain.Effect, error) {
	var e domain.Effect
	err := row.Scan(&e.ID, &e.Type, &e.Value, &e.Polarity, &e.Rarity, &e.Description)
	return e, err
}

func (t *tx) UpsertEffect(ctx context.Context, e domain.Effect) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO effects(`+effectColumns+`) VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET type=excluded.type, value=excluded.value, polarity=excluded.polarity,
		rarity=excluded.rarity, description=excluded.description`,
		e.ID, e.Type, e.Value, e.Polarity, e.Rarity, e.Description)
	return err
}

func (t *tx) GetEffect(ctx context.Context, id string) (domain.Effect, error) {
	e, err := scanEffect(t.q.QueryRowContext(ctx, `SELECT `+effectColumns+` FROM effects WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return e, notFound("effect", id)
	}
	return e, err
}

func (t *tx) ListEffects(ctx context.Context) ([]domain.Effect, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT `+effectColumns+` FROM effects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Effect
	for rows.Next() {
		e, err := scanEffect(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

const itemColumns = `id,name,description,COALESCE(effect_id,'')`

func scanItem(row interface{ Scan(...any) error }) (domain.Item, error) {
	var it domain.Item
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.EffectID)
	return it, err
}

func (t *tx) UpsertItem(ctx context.Context, it domain.Item) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO items(id,name,description,effect_id) VALUES (?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description, effect_id=excluded.effect_id`,
		it.ID, it.Name, it.Description, nullable(it.EffectID))
	return err
}

func (t *tx) GetItem(ctx context.Context, id string) (domain.Item, error) {
	it, err := scanItem(t.q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return it, notFound("item", id)
	}
	return it, err
}

func (t *tx) ListItemsByEffect(ctx context.Context, effectID string) ([]domain.Item, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE effect_id=? ORDER BY id`, effectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}
