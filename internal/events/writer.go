package events

import (
	"context"
	"fmt"
	"time"
)

// Writer stamps and appends entries to a Log.
type Writer struct {
	Log Log
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, projectID string, actor ActorType, actorID string, evtType Type, payload Payload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	if payload == nil {
		payload = Payload{}
	}
	_, err := w.Log.Append(ctx, Entry{
		ProjectID: projectID,
		ActorType: actor,
		ActorID:   actorID,
		Type:      evtType,
		Payload:   payload,
		CreatedAt: w.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

// Match reports whether e satisfies the filter, ignoring Limit and ordering.
func (f Filter) Match(e Entry) bool {
	if f.ProjectID != "" && e.ProjectID != f.ProjectID {
		return false
	}
	if f.ActorType != "" && e.ActorType != f.ActorType {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == e.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() && !e.CreatedAt.After(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.CreatedAt.Before(f.Until) {
		return false
	}
	for k, want := range f.PayloadMatch {
		v, ok := e.Payload[k]
		if !ok || v == nil || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}
