// Package engine is the application service of taskraid: project, membership
// and task lifecycle, plus the caller-facing entry points into the combat
// engine. Callers are identified by user id; access is checked inside the same
// unit of work as the change.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/engine/auth"
	"taskraid/internal/events"
	"taskraid/internal/game"
	"taskraid/internal/store"
)

type Engine struct {
	Store  store.Store
	Game   game.Engine
	Auth   auth.Service
	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

func New(s store.Store, g game.Engine) Engine {
	return Engine{
		Store:  s,
		Game:   g,
		Now:    time.Now,
		NewID:  uuid.NewString,
		Logger: slog.Default(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) writer(tx store.Tx) events.Writer {
	return events.Writer{Log: tx.Log(), Now: e.now}
}

// actor resolves the calling user to a member of an active project.
func (e Engine) actor(ctx context.Context, tx store.Tx, projectID, userID string) (domain.Project, domain.Member, error) {
	p, err := tx.GetProject(ctx, projectID)
	if err != nil {
		return p, domain.Member{}, err
	}
	if err := auth.RequireActive(p); err != nil {
		return p, domain.Member{}, err
	}
	m, err := e.Auth.RequireMember(ctx, tx, projectID, userID)
	return p, m, err
}

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
}

// CreateProject stores the project with an uninitialized boss and enrolls the
// owner as its first member.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Project{}, apperr.New(apperr.CodeProjectNameEmpty, "project name is required")
	}
	if opts.OwnerID == "" {
		return domain.Project{}, apperr.New(apperr.CodeNotProjectOwner, "owner is required")
	}
	id := opts.ID
	if id == "" {
		id = e.newID()
	}
	now := e.now()
	p := domain.Project{
		ID:          id,
		Name:        name,
		Description: opts.Description,
		OwnerID:     opts.OwnerID,
		Status:      domain.ProjectActive,
		CreatedAt:   now,
	}
	owner := domain.NewMember(e.newID(), p.ID, opts.OwnerID, now)
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertProject(ctx, p); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if err := tx.InsertBoss(ctx, domain.NewBoss(e.newID(), p.ID, now)); err != nil {
			return fmt.Errorf("insert boss: %w", err)
		}
		if err := tx.InsertMember(ctx, owner); err != nil {
			return fmt.Errorf("insert owner: %w", err)
		}
		w := e.writer(tx)
		if err := w.Append(ctx, p.ID, events.ActorUser, owner.ID, events.ProjectCreated, events.Payload{"name": p.Name, "owner_id": p.OwnerID}); err != nil {
			return err
		}
		return w.Append(ctx, p.ID, events.ActorUser, owner.ID, events.MemberJoined, events.Payload{"member_id": owner.ID, "user_id": owner.UserID})
	})
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	var p domain.Project
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = tx.GetProject(ctx, projectID)
		return err
	})
	return p, err
}

func (e Engine) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var out []domain.Project
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.ListProjects(ctx)
		return err
	})
	return out, err
}

// ProjectUpdateOptions changes the fields that are set.
type ProjectUpdateOptions struct {
	ID          string
	Name        *string
	Description *string
	ActorID     string
}

// UpdateProject renames or redescribes an active project. Owner only.
func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	var p domain.Project
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = e.Auth.RequireOwner(ctx, tx, opts.ID, opts.ActorID)
		if err != nil {
			return err
		}
		if err := auth.RequireActive(p); err != nil {
			return err
		}
		changed := events.Payload{}
		if opts.Name != nil {
			name := strings.TrimSpace(*opts.Name)
			if name == "" {
				return apperr.New(apperr.CodeProjectNameEmpty, "project name is required")
			}
			if name != p.Name {
				changed["name"] = map[string]any{"from": p.Name, "to": name}
				p.Name = name
			}
		}
		if opts.Description != nil && *opts.Description != p.Description {
			changed["description"] = map[string]any{"from": p.Description, "to": *opts.Description}
			p.Description = *opts.Description
		}
		if len(changed) == 0 {
			return nil
		}
		if err := tx.UpdateProject(ctx, p); err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		owner, err := e.Auth.RequireMember(ctx, tx, p.ID, opts.ActorID)
		if err != nil {
			return err
		}
		return e.writer(tx).Append(ctx, p.ID, events.ActorUser, owner.ID, events.ProjectUpdated, events.Payload{"changes": changed})
	})
	return p, err
}

// CloseProject freezes the project. Only the owner may close it.
func (e Engine) CloseProject(ctx context.Context, projectID, actorID string) (domain.Project, error) {
	var p domain.Project
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = e.Auth.RequireOwner(ctx, tx, projectID, actorID)
		if err != nil {
			return err
		}
		if err := auth.RequireActive(p); err != nil {
			return err
		}
		p.Status = domain.ProjectClosed
		if err := tx.UpdateProject(ctx, p); err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		owner, err := e.Auth.RequireMember(ctx, tx, projectID, actorID)
		if err != nil {
			return err
		}
		return e.writer(tx).Append(ctx, projectID, events.ActorUser, owner.ID, events.ProjectClosed, events.Payload{"status": string(p.Status)})
	})
	return p, err
}

// JoinProject enrolls a user with a fresh combat avatar.
func (e Engine) JoinProject(ctx context.Context, projectID, userID string) (domain.Member, error) {
	if userID == "" {
		return domain.Member{}, apperr.New(apperr.CodeNotProjectMember, "user is required")
	}
	m := domain.NewMember(e.newID(), projectID, userID, e.now())
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if err := auth.RequireActive(p); err != nil {
			return err
		}
		if _, err := tx.GetMemberByUser(ctx, projectID, userID); err == nil {
			return apperr.WithMetadata(apperr.CodeMemberExists, fmt.Sprintf("user %s already joined project %s", userID, projectID),
				map[string]string{"user_id": userID})
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := tx.InsertMember(ctx, m); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		return e.writer(tx).Append(ctx, projectID, events.ActorUser, m.ID, events.MemberJoined, events.Payload{"member_id": m.ID, "user_id": userID})
	})
	if err != nil {
		return domain.Member{}, err
	}
	return m, nil
}

// LeaveProject removes the caller with its assignments, effects and items.
func (e Engine) LeaveProject(ctx context.Context, projectID, userID string) error {
	return e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, m, err := e.actor(ctx, tx, projectID, userID)
		if err != nil {
			return err
		}
		if p.OwnerID == userID {
			return apperr.New(apperr.CodeOwnerCannotLeave, fmt.Sprintf("owner of project %s cannot leave it", projectID))
		}
		if err := tx.DeleteMember(ctx, m.ID); err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		return e.writer(tx).Append(ctx, projectID, events.ActorUser, m.ID, events.MemberLeft, events.Payload{"member_id": m.ID, "user_id": userID})
	})
}

func (e Engine) ListMembers(ctx context.Context, projectID string) ([]domain.Member, error) {
	var out []domain.Member
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListMembers(ctx, projectID)
		return err
	})
	return out, err
}

// EventQuery filters the project history.
type EventQuery struct {
	ProjectID string
	Types     []events.Type
	Since     time.Time
	Limit     int
	ActorID   string
}

// Events lists the project history, newest first. The caller must be a member.
func (e Engine) Events(ctx context.Context, q EventQuery) ([]events.Entry, error) {
	var out []events.Entry
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProject(ctx, q.ProjectID); err != nil {
			return err
		}
		if _, err := e.Auth.RequireMember(ctx, tx, q.ProjectID, q.ActorID); err != nil {
			return err
		}
		limit := q.Limit
		if limit <= 0 {
			limit = 100
		}
		var err error
		out, err = tx.Log().Find(ctx, events.Filter{
			ProjectID: q.ProjectID,
			Types:     q.Types,
			Since:     q.Since,
			Limit:     limit,
			Newest:    true,
		})
		return err
	})
	return out, err
}
