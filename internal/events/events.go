package events

import (
	"context"
	"time"
)

type Type string

const (
	TaskCreated   Type = "TASK_CREATED"
	TaskUpdated   Type = "TASK_UPDATED"
	TaskDeleted   Type = "TASK_DELETED"
	TaskCompleted Type = "TASK_COMPLETED"
	TaskReview    Type = "TASK_REVIEW"
	AssignUser    Type = "ASSIGN_USER"
	UnassignUser  Type = "UNASSIGN_USER"

	UserAttack Type = "USER_ATTACK"
	BossAttack Type = "BOSS_ATTACK"
	Heal       Type = "HEAL"

	ApplyBuff   Type = "APPLY_BUFF"
	ApplyDebuff Type = "APPLY_DEBUFF"
	GiveItem    Type = "GIVE_ITEM"
	UseItem     Type = "USE_ITEM"

	KillBoss         Type = "KILL_BOSS"
	KillPlayer       Type = "KILL_PLAYER"
	RevivePlayer     Type = "REVIVE_PLAYER"
	BossSetup        Type = "BOSS_SETUP"
	BossNextPhase    Type = "BOSS_NEXT_PHASE"
	SpecialBossSetup Type = "SPECIAL_BOSS_SETUP"

	ProjectCreated Type = "PROJECT_CREATED"
	ProjectUpdated Type = "PROJECT_UPDATED"
	ProjectClosed  Type = "PROJECT_CLOSED"
	MemberJoined   Type = "MEMBER_JOINED"
	MemberLeft     Type = "MEMBER_LEFT"
)

type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorBoss   ActorType = "boss"
	ActorSystem ActorType = "system"
)

type Payload map[string]any

// Entry is one append-only log record.
type Entry struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"project_id"`
	ActorType ActorType `json:"actor_type" enum:"user,boss,system"`
	ActorID   string    `json:"actor_id,omitempty"`
	Type      Type      `json:"type"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at" format:"date-time"`
}

// Filter selects log entries. Zero fields match everything. Since and Until
// are exclusive bounds. PayloadMatch compares top-level payload keys by their
// JSON scalar value.
type Filter struct {
	ProjectID    string
	Types        []Type
	ActorType    ActorType
	Since        time.Time
	Until        time.Time
	PayloadMatch map[string]string
	Limit        int
	// Newest returns the most recent entries first.
	Newest bool
}

// Log is the append-only event store used for audit and idempotency checks.
type Log interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	Find(ctx context.Context, f Filter) ([]Entry, error)
	Exists(ctx context.Context, f Filter) (bool, error)
}

// SumInt adds up an integer payload field over entries of the given type.
// Missing or non-numeric values count as zero.
func SumInt(entries []Entry, t Type, key string) int {
	total := 0
	for _, e := range entries {
		if e.Type != t {
			continue
		}
		total += intValue(e.Payload[key])
	}
	return total
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
