// Package overdue lets bosses punish the assignees of tasks that missed their
// deadline. Each task is attacked at most once, however often the sweep runs.
package overdue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/events"
	"taskraid/internal/game"
	"taskraid/internal/store"
)

const (
	DefaultLimit   = 200
	DefaultWorkers = 4
)

// Sweeper runs one pass over overdue tasks.
type Sweeper struct {
	Store store.Store
	Game  game.Engine
	Now   func() time.Time
	// Limit caps the number of candidates per run.
	Limit int
	// DryRun lists candidates without attacking.
	DryRun bool
	// ProjectID restricts the sweep to one project when set.
	ProjectID string
	Workers   int
	Logger    *slog.Logger
}

type Candidate struct {
	TaskID    string    `json:"task_id"`
	ProjectID string    `json:"project_id"`
	Deadline  time.Time `json:"deadline"`
	Assignees []string  `json:"assignees"`
}

// Report summarizes a sweep.
type Report struct {
	Candidates []Candidate `json:"candidates"`
	Attacked   int         `json:"attacked"`
	Skipped    int         `json:"skipped"`
	Failed     int         `json:"failed"`
	Damage     int         `json:"damage"`
}

func (s Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

type outcome int

const (
	attacked outcome = iota
	skipped
)

// Run collects the candidates and attacks them. Per-task failures are counted
// and logged; only candidate lookup errors and cancellation end the run early.
func (s Sweeper) Run(ctx context.Context) (Report, error) {
	now := s.now()
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	var tasks []domain.Task
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		tasks, err = tx.ListOverdueTasks(ctx, store.OverdueQuery{Now: now, ProjectID: s.ProjectID, Limit: limit})
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("list overdue tasks: %w", err)
	}
	rep := Report{Candidates: make([]Candidate, 0, len(tasks))}
	byProject := map[string][]domain.Task{}
	var order []string
	for _, t := range tasks {
		rep.Candidates = append(rep.Candidates, Candidate{TaskID: t.ID, ProjectID: t.ProjectID, Deadline: *t.Deadline, Assignees: t.Assignees})
		if _, ok := byProject[t.ProjectID]; !ok {
			order = append(order, t.ProjectID)
		}
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}
	if s.DryRun || len(tasks) == 0 {
		return rep, nil
	}

	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, projectID := range order {
		batch := byProject[projectID]
		g.Go(func() error {
			for _, t := range batch {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, out, err := s.attack(gctx, t.ProjectID, t.ID, now)
				mu.Lock()
				switch {
				case err != nil:
					rep.Failed++
				case out == skipped:
					rep.Skipped++
				default:
					rep.Attacked++
					rep.Damage += res.Damage()
				}
				mu.Unlock()
				if err != nil {
					s.logger().Error("overdue attack failed", "project", t.ProjectID, "task", t.ID, "err", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	s.logger().Info("overdue sweep finished", "candidates", len(rep.Candidates), "attacked", rep.Attacked,
		"skipped", rep.Skipped, "failed", rep.Failed, "damage", rep.Damage)
	return rep, nil
}

// attack re-checks the task and runs the boss attack together with its
// idempotency marker in one unit of work.
func (s Sweeper) attack(ctx context.Context, projectID, taskID string, now time.Time) (game.BossAttackResult, outcome, error) {
	var res game.BossAttackResult
	out := skipped
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := tx.GetTask(ctx, taskID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if t.Done() || t.Deadline == nil || !t.Deadline.Before(now) || len(t.Assignees) == 0 {
			return nil
		}
		done, err := tx.Log().Exists(ctx, Marker(projectID, taskID))
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		res, err = s.Game.BossAttackTx(ctx, tx, projectID, taskID)
		switch {
		case errors.Is(err, apperr.ErrBossDead), errors.Is(err, apperr.New(apperr.CodeBossNotSetUp, "")), errors.Is(err, store.ErrNotFound):
			// nothing to attack with yet; a later sweep retries
			return nil
		case err != nil:
			return err
		}
		out = attacked
		w := events.Writer{Log: tx.Log(), Now: s.now}
		return w.Append(ctx, projectID, events.ActorSystem, "", events.BossAttack, events.Payload{
			"task_id":   taskID,
			"damage":    0,
			"player_hp": nil,
		})
	})
	return res, out, err
}

// Marker matches the system entry written once a task has been punished.
func Marker(projectID, taskID string) events.Filter {
	return events.Filter{
		ProjectID:    projectID,
		Types:        []events.Type{events.BossAttack},
		ActorType:    events.ActorSystem,
		PayloadMatch: map[string]string{"task_id": taskID},
	}
}
