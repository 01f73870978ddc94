// Package store defines the persistence contract of the game services.
//
// Every operation runs inside one unit of work opened by Store.InTx. Writes and
// the event entries describing them commit together or not at all, and
// implementations serialize conflicting units so that read-check-write
// sequences inside one unit observe no concurrent change.
package store

import (
	"context"
	"time"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/events"
)

// ErrNotFound is returned (possibly wrapped) when a record does not exist.
var ErrNotFound = apperr.ErrNotFound

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the repository view available inside a unit of work.
type Tx interface {
	ProjectStore
	TaskStore
	MemberStore
	BossStore
	CatalogStore
	InventoryStore
	ReportStore
	Log() events.Log
}

type ProjectStore interface {
	InsertProject(ctx context.Context, p domain.Project) error
	GetProject(ctx context.Context, id string) (domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	UpdateProject(ctx context.Context, p domain.Project) error
}

// OverdueQuery selects tasks past their deadline that still have assignees.
type OverdueQuery struct {
	Now       time.Time
	ProjectID string
	Limit     int
}

type TaskStore interface {
	InsertTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, id string) (domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, projectID string) ([]domain.Task, error)
	AddAssignee(ctx context.Context, taskID, memberID string) error
	RemoveAssignee(ctx context.Context, taskID, memberID string) error
	// PrioritySum returns the summed priority and count of the project's tasks.
	PrioritySum(ctx context.Context, projectID string) (sum, count int, err error)
	// ListOverdueTasks returns not-done tasks with a deadline before q.Now and
	// at least one assignee, earliest deadline first.
	ListOverdueTasks(ctx context.Context, q OverdueQuery) ([]domain.Task, error)
}

type MemberStore interface {
	InsertMember(ctx context.Context, m domain.Member) error
	GetMember(ctx context.Context, id string) (domain.Member, error)
	GetMemberByUser(ctx context.Context, projectID, userID string) (domain.Member, error)
	UpdateMember(ctx context.Context, m domain.Member) error
	// DeleteMember removes the member with its assignments, effects and items.
	DeleteMember(ctx context.Context, id string) error
	ListMembers(ctx context.Context, projectID string) ([]domain.Member, error)
	CountMembers(ctx context.Context, projectID string) (int, error)
}

type BossStore interface {
	InsertBoss(ctx context.Context, b domain.Boss) error
	// ActiveBoss returns the most recently created boss instance of the project.
	ActiveBoss(ctx context.Context, projectID string) (domain.Boss, error)
	UpdateBoss(ctx context.Context, b domain.Boss) error
	// UsedBossTypes returns the type ids of every instance the project ever had.
	UsedBossTypes(ctx context.Context, projectID string) ([]string, error)
}

type CatalogStore interface {
	UpsertBossType(ctx context.Context, bt domain.BossType) error
	ListBossTypes(ctx context.Context, category domain.BossCategory) ([]domain.BossType, error)
	UpsertEffect(ctx context.Context, e domain.Effect) error
	GetEffect(ctx context.Context, id string) (domain.Effect, error)
	ListEffects(ctx context.Context) ([]domain.Effect, error)
	UpsertItem(ctx context.Context, it domain.Item) error
	GetItem(ctx context.Context, id string) (domain.Item, error)
	ListItemsByEffect(ctx context.Context, effectID string) ([]domain.Item, error)
}

type InventoryStore interface {
	InsertActiveEffect(ctx context.Context, ae domain.ActiveEffect) error
	// ListActiveEffects returns the member's effects in the order they were granted.
	ListActiveEffects(ctx context.Context, memberID string) ([]domain.ActiveEffect, error)
	// DeleteActiveEffect returns ErrNotFound when the effect was already consumed.
	DeleteActiveEffect(ctx context.Context, id string) error
	InsertOwnedItem(ctx context.Context, oi domain.OwnedItem) error
	ListOwnedItems(ctx context.Context, memberID string) ([]domain.OwnedItem, error)
	// TakeOwnedItem looks up and deletes the member's item in one step.
	TakeOwnedItem(ctx context.Context, memberID, ownedItemID string) (domain.OwnedItem, error)
}

type ReportStore interface {
	InsertReport(ctx context.Context, r domain.Report) error
	ListReports(ctx context.Context, taskID string) ([]domain.Report, error)
}
