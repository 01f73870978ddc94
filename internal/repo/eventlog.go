package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"taskraid/internal/events"
)

// eventLog stores entries in the event_log table of the current transaction.
type eventLog struct {
	q *sql.Tx
}

func (l eventLog) Append(ctx context.Context, e events.Entry) (events.Entry, error) {
	if e.Payload == nil {
		e.Payload = events.Payload{}
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return e, fmt.Errorf("encode payload: %w", err)
	}
	res, err := l.q.ExecContext(ctx, `INSERT INTO event_log(project_id,actor_type,actor_id,type,payload_json,created_at) VALUES (?,?,?,?,?,?)`,
		e.ProjectID, e.ActorType, nullable(e.ActorID), e.Type, string(payload), formatTime(e.CreatedAt))
	if err != nil {
		return e, err
	}
	e.ID, err = res.LastInsertId()
	return e, err
}

func (l eventLog) where(f events.Filter) (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.ActorType != "" {
		clauses = append(clauses, "actor_type=?")
		args = append(args, f.ActorType)
	}
	if len(f.Types) > 0 {
		clauses = append(clauses, fmt.Sprintf("type IN (%s)", placeholders(len(f.Types))))
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "created_at>?")
		args = append(args, formatTime(f.Since))
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "created_at<?")
		args = append(args, formatTime(f.Until))
	}
	for _, k := range slices.Sorted(maps.Keys(f.PayloadMatch)) {
		clauses = append(clauses, "CAST(json_extract(payload_json, ?) AS TEXT)=?")
		args = append(args, "$."+k, f.PayloadMatch[k])
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (l eventLog) Find(ctx context.Context, f events.Filter) ([]events.Entry, error) {
	where, args := l.where(f)
	order := "ASC"
	if f.Newest {
		order = "DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(`SELECT id,project_id,actor_type,COALESCE(actor_id,''),type,payload_json,created_at FROM event_log %s ORDER BY id %s LIMIT ?`, where, order)
	args = append(args, limit)
	rows, err := l.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []events.Entry
	for rows.Next() {
		var (
			e                events.Entry
			payload, created string
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ActorType, &e.ActorID, &e.Type, &payload, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of event %d: %w", e.ID, err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (l eventLog) Exists(ctx context.Context, f events.Filter) (bool, error) {
	where, args := l.where(f)
	var found bool
	err := l.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM event_log `+where+`)`, args...).Scan(&found)
	return found, err
}
