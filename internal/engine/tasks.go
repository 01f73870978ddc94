package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/events"
	"taskraid/internal/game"
	"taskraid/internal/store"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Priority    int
	Deadline    *time.Time
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Task{}, apperr.New(apperr.CodeTaskInvalidTitle, "title is required")
	}
	if opts.Priority == 0 {
		opts.Priority = 1
	}
	if opts.Priority < 1 {
		return domain.Task{}, apperr.New(apperr.CodeTaskInvalidPriority, fmt.Sprintf("priority %d must be at least 1", opts.Priority))
	}
	id := opts.ID
	if id == "" {
		id = e.newID()
	}
	now := e.now()
	t := domain.Task{
		ID:          id,
		ProjectID:   opts.ProjectID,
		Title:       title,
		Description: opts.Description,
		Status:      domain.TaskTodo,
		Priority:    opts.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
		Deadline:    utcPtr(opts.Deadline),
		Assignees:   []string{},
	}
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, m, err := e.actor(ctx, tx, opts.ProjectID, opts.ActorID)
		if err != nil {
			return err
		}
		if err := tx.InsertTask(ctx, t); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return e.writer(tx).Append(ctx, t.ProjectID, events.ActorUser, m.ID, events.TaskCreated, events.Payload{
			"task_id":  t.ID,
			"title":    t.Title,
			"priority": t.Priority,
		})
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	var t domain.Task
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		t, err = tx.GetTask(ctx, taskID)
		return err
	})
	return t, err
}

func (e Engine) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	var out []domain.Task
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListTasks(ctx, projectID)
		return err
	})
	return out, err
}

// TaskUpdateOptions encapsulates allowed updates. Nil fields are left unchanged.
type TaskUpdateOptions struct {
	ID            string
	Title         *string
	Description   *string
	Priority      *int
	Deadline      *time.Time
	ClearDeadline bool
	Status        domain.TaskStatus
	ActorID       string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	var t domain.Task
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		t, err = tx.GetTask(ctx, opts.ID)
		if err != nil {
			return err
		}
		_, m, err := e.actor(ctx, tx, t.ProjectID, opts.ActorID)
		if err != nil {
			return err
		}
		if t.Done() {
			return apperr.WithMetadata(apperr.CodeTaskCompleted, fmt.Sprintf("task %s is already completed", t.ID), map[string]string{"task_id": t.ID})
		}
		before := snapshot(t)
		if opts.Title != nil {
			title := strings.TrimSpace(*opts.Title)
			if title == "" {
				return apperr.New(apperr.CodeTaskInvalidTitle, "title is required")
			}
			t.Title = title
		}
		if opts.Description != nil {
			t.Description = *opts.Description
		}
		if opts.Priority != nil {
			if *opts.Priority < 1 {
				return apperr.New(apperr.CodeTaskInvalidPriority, fmt.Sprintf("priority %d must be at least 1", *opts.Priority))
			}
			t.Priority = *opts.Priority
		}
		switch {
		case opts.ClearDeadline:
			t.Deadline = nil
		case opts.Deadline != nil:
			t.Deadline = utcPtr(opts.Deadline)
		}
		if opts.Status != "" && opts.Status != t.Status {
			if err := ensureTaskTransition(t.Status, opts.Status); err != nil {
				return err
			}
			t.Status = opts.Status
		}
		t.UpdatedAt = e.now()
		if err := tx.UpdateTask(ctx, t); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return e.writer(tx).Append(ctx, t.ProjectID, events.ActorUser, m.ID, events.TaskUpdated, events.Payload{
			"task_id": t.ID,
			"before":  before,
			"after":   snapshot(t),
		})
	})
	return t, err
}

// ensureTaskTransition allows todo <-> in_progress. Completion goes through
// CompleteTask and done is terminal.
func ensureTaskTransition(from, to domain.TaskStatus) error {
	switch from {
	case domain.TaskTodo:
		if to == domain.TaskInProgress {
			return nil
		}
	case domain.TaskInProgress:
		if to == domain.TaskTodo {
			return nil
		}
	}
	return apperr.WithMetadata(apperr.CodeTaskInvalidTransition, fmt.Sprintf("invalid task status transition %s -> %s", from, to),
		map[string]string{"from": string(from), "to": string(to)})
}

func snapshot(t domain.Task) map[string]any {
	out := map[string]any{
		"title":    t.Title,
		"status":   string(t.Status),
		"priority": t.Priority,
	}
	if t.Deadline != nil {
		out["deadline"] = t.Deadline.Format(time.RFC3339)
	}
	return out
}

// DeleteTask removes the task and records its priority so boss phases can
// account for the shrinking backlog.
func (e Engine) DeleteTask(ctx context.Context, taskID, actorID string) error {
	return e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		_, m, err := e.actor(ctx, tx, t.ProjectID, actorID)
		if err != nil {
			return err
		}
		if err := tx.DeleteTask(ctx, t.ID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return e.writer(tx).Append(ctx, t.ProjectID, events.ActorUser, m.ID, events.TaskDeleted, events.Payload{
			"task_id":  t.ID,
			"priority": t.Priority,
		})
	})
}

// AssignMember adds a project member to an open task.
func (e Engine) AssignMember(ctx context.Context, taskID, memberID, actorID string) (domain.Task, error) {
	var t domain.Task
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		t, err = tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		_, actor, err := e.actor(ctx, tx, t.ProjectID, actorID)
		if err != nil {
			return err
		}
		if t.Done() {
			return apperr.WithMetadata(apperr.CodeTaskCompleted, fmt.Sprintf("task %s is already completed", t.ID), map[string]string{"task_id": t.ID})
		}
		target, err := tx.GetMember(ctx, memberID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err != nil || target.ProjectID != t.ProjectID {
			return apperr.WithMetadata(apperr.CodeMemberNotInProject, fmt.Sprintf("member %s not in project %s", memberID, t.ProjectID),
				map[string]string{"member_id": memberID})
		}
		if t.AssignedTo(target.ID) {
			return apperr.WithMetadata(apperr.CodeTaskAlreadyAssigned, fmt.Sprintf("member %s already assigned to task %s", target.ID, t.ID),
				map[string]string{"member_id": target.ID, "task_id": t.ID})
		}
		if err := tx.AddAssignee(ctx, t.ID, target.ID); err != nil {
			return fmt.Errorf("assign member: %w", err)
		}
		t.Assignees = append(t.Assignees, target.ID)
		return e.writer(tx).Append(ctx, t.ProjectID, events.ActorUser, actor.ID, events.AssignUser, events.Payload{
			"task_id":   t.ID,
			"member_id": target.ID,
		})
	})
	return t, err
}

func (e Engine) UnassignMember(ctx context.Context, taskID, memberID, actorID string) (domain.Task, error) {
	var t domain.Task
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		t, err = tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		_, actor, err := e.actor(ctx, tx, t.ProjectID, actorID)
		if err != nil {
			return err
		}
		if !t.AssignedTo(memberID) {
			return apperr.WithMetadata(apperr.CodeTaskNotAssigned, fmt.Sprintf("member %s is not assigned to task %s", memberID, t.ID),
				map[string]string{"member_id": memberID, "task_id": t.ID})
		}
		if err := tx.RemoveAssignee(ctx, t.ID, memberID); err != nil {
			return fmt.Errorf("unassign member: %w", err)
		}
		kept := t.Assignees[:0]
		for _, id := range t.Assignees {
			if id != memberID {
				kept = append(kept, id)
			}
		}
		t.Assignees = kept
		return e.writer(tx).Append(ctx, t.ProjectID, events.ActorUser, actor.ID, events.UnassignUser, events.Payload{
			"task_id":   t.ID,
			"member_id": memberID,
		})
	})
	return t, err
}

// CompleteResult is a finished task and, when a boss was standing, the attack it fueled.
type CompleteResult struct {
	Task   domain.Task        `json:"task"`
	Attack *game.AttackResult `json:"attack,omitempty"`
}

// CompleteTask marks the task done and lets the completing member strike the
// boss with it. A missing, unready or dead boss, or a dead member, only skips
// the attack.
func (e Engine) CompleteTask(ctx context.Context, taskID, actorID string) (CompleteResult, error) {
	var res CompleteResult
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		_, m, err := e.actor(ctx, tx, t.ProjectID, actorID)
		if err != nil {
			return err
		}
		if t.Done() {
			return apperr.WithMetadata(apperr.CodeTaskCompleted, fmt.Sprintf("task %s is already completed", t.ID), map[string]string{"task_id": t.ID})
		}
		now := e.now()
		t.Status = domain.TaskDone
		t.CompletedAt = &now
		t.UpdatedAt = now
		if err := tx.UpdateTask(ctx, t); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if err := e.writer(tx).Append(ctx, t.ProjectID, events.ActorUser, m.ID, events.TaskCompleted, events.Payload{
			"task_id":   t.ID,
			"member_id": m.ID,
			"priority":  t.Priority,
		}); err != nil {
			return err
		}
		res.Task = t
		if !m.Alive() {
			return nil
		}
		b, err := tx.ActiveBoss(ctx, t.ProjectID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil
		case err != nil:
			return err
		case !b.Initialized() || !b.Alive():
			return nil
		}
		attack, err := e.Game.PlayerAttackTx(ctx, tx, t.ProjectID, m.ID, t.ID)
		if err != nil {
			return err
		}
		res.Attack = &attack
		return nil
	})
	return res, err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
