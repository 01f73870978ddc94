package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskraid/internal/events"
)

func TestWriterAndFilters(t *testing.T) {
	ctx := context.Background()
	log := events.NewMemoryLog()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w := events.Writer{Log: log, Now: func() time.Time { return now }}

	require.NoError(t, w.Append(ctx, "p1", events.ActorUser, "u1", events.TaskCreated, events.Payload{"task_id": "t1", "priority": 3}))
	now = now.Add(time.Minute)
	require.NoError(t, w.Append(ctx, "p1", events.ActorSystem, "", events.BossAttack, events.Payload{"task_id": "t1"}))
	now = now.Add(time.Minute)
	require.NoError(t, w.Append(ctx, "p2", events.ActorUser, "u2", events.TaskDeleted, events.Payload{"task_id": "t9", "priority": 2}))

	found, err := log.Find(ctx, events.Filter{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	ok, err := log.Exists(ctx, events.Filter{
		ProjectID:    "p1",
		Types:        []events.Type{events.BossAttack},
		ActorType:    events.ActorSystem,
		PayloadMatch: map[string]string{"task_id": "t1"},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = log.Exists(ctx, events.Filter{
		Types:        []events.Type{events.BossAttack},
		PayloadMatch: map[string]string{"task_id": "t2"},
	})
	require.NoError(t, err)
	assert.False(t, ok)

	since := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	after, err := log.Find(ctx, events.Filter{Since: since})
	require.NoError(t, err)
	assert.Len(t, after, 2, "since is exclusive")

	newest, err := log.Find(ctx, events.Filter{Newest: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, newest, 1)
	assert.Equal(t, events.TaskDeleted, newest[0].Type)
}

func TestSumInt(t *testing.T) {
	entries := []events.Entry{
		{Type: events.TaskCreated, Payload: events.Payload{"priority": 5}},
		{Type: events.TaskCreated, Payload: events.Payload{"priority": float64(2)}},
		{Type: events.TaskDeleted, Payload: events.Payload{"priority": 4}},
		{Type: events.TaskCreated, Payload: events.Payload{}},
	}
	assert.Equal(t, 7, events.SumInt(entries, events.TaskCreated, "priority"))
	assert.Equal(t, 4, events.SumInt(entries, events.TaskDeleted, "priority"))
}

func TestTruncate(t *testing.T) {
	ctx := context.Background()
	log := events.NewMemoryLog()
	_, _ = log.Append(ctx, events.Entry{Type: events.Heal})
	mark := log.Len()
	_, _ = log.Append(ctx, events.Entry{Type: events.KillPlayer})
	log.Truncate(mark)
	assert.Equal(t, 1, log.Len())
}
