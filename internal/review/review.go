// Package review records peer reviews of tasks and turns them into rewards
// for the reviewer and buffs, debuffs or items for the reviewed members.
package review

import (
	"context"
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
	"taskraid/internal/sentiment"
	"taskraid/internal/store"
)

type Service struct {
	Store  store.Store
	Game   game.Engine
	Scorer sentiment.Scorer
	Auth   auth.Service
	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

func New(s store.Store, g game.Engine, scorer sentiment.Scorer) Service {
	return Service{Store: s, Game: g, Scorer: scorer, Now: time.Now, NewID: uuid.NewString, Logger: slog.Default()}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// CreateOptions are parameters for a review.
type CreateOptions struct {
	ProjectID   string
	TaskID      string
	Description string
	// ReporterID is the reviewing user.
	ReporterID string
}

type Result struct {
	Report  domain.Report      `json:"report"`
	Source  sentiment.Source   `json:"sentiment_source"`
	Support game.SupportResult `json:"support"`
}

// Create stores a review and applies its outcome in the same unit of work.
// The sentiment is rated before the unit starts so the classifier call never
// holds a write lock.
func (s Service) Create(ctx context.Context, opts CreateOptions) (Result, error) {
	desc := strings.TrimSpace(opts.Description)
	if desc == "" {
		return Result{}, apperr.New(apperr.CodeReviewDescriptionEmpty, "review description is required")
	}
	if err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, _, err := s.check(ctx, tx, opts)
		return err
	}); err != nil {
		return Result{}, err
	}

	rating := s.Scorer.Score(ctx, desc)
	res := Result{Source: rating.Source}
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		reporter, receivers, err := s.check(ctx, tx, opts)
		if err != nil {
			return err
		}
		r := domain.Report{
			ID:          s.newID(),
			ProjectID:   opts.ProjectID,
			TaskID:      opts.TaskID,
			ReporterID:  reporter.ID,
			Description: desc,
			Sentiment:   rating.Stars,
			CreatedAt:   s.now(),
		}
		if err := tx.InsertReport(ctx, r); err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		w := events.Writer{Log: tx.Log(), Now: s.now}
		for _, id := range receivers {
			if err := w.Append(ctx, r.ProjectID, events.ActorUser, reporter.ID, events.TaskReview, events.Payload{
				"report_id":   r.ID,
				"task_id":     r.TaskID,
				"reporter_id": reporter.ID,
				"receiver_id": id,
				"sentiment":   r.Sentiment,
				"source":      string(rating.Source),
			}); err != nil {
				return err
			}
		}
		support, err := s.Game.PlayerSupportTx(ctx, tx, r)
		if err != nil {
			return err
		}
		res.Report = r
		res.Support = support
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.logger().Info("review applied", "report_id", res.Report.ID, "task_id", opts.TaskID,
		"sentiment", res.Report.Sentiment, "source", res.Source, "grants", len(res.Support.Grants))
	return res, nil
}

// check resolves the reporter and the members the review is about.
func (s Service) check(ctx context.Context, tx store.Tx, opts CreateOptions) (domain.Member, []string, error) {
	p, err := tx.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Member{}, nil, err
	}
	if err := auth.RequireActive(p); err != nil {
		return domain.Member{}, nil, err
	}
	reporter, err := s.Auth.RequireMember(ctx, tx, opts.ProjectID, opts.ReporterID)
	if err != nil {
		return reporter, nil, err
	}
	t, err := tx.GetTask(ctx, opts.TaskID)
	if err != nil {
		return reporter, nil, err
	}
	if t.ProjectID != opts.ProjectID {
		return reporter, nil, apperr.WithMetadata(apperr.CodeTaskNotInProject, fmt.Sprintf("task %s does not belong to project %s", t.ID, opts.ProjectID),
			map[string]string{"task_id": t.ID, "project_id": opts.ProjectID})
	}
	var receivers []string
	for _, id := range t.Assignees {
		if id != reporter.ID {
			receivers = append(receivers, id)
		}
	}
	if len(receivers) == 0 {
		return reporter, nil, apperr.WithMetadata(apperr.CodeReviewNoReceivers, fmt.Sprintf("task %s has nobody to review besides the reporter", t.ID),
			map[string]string{"task_id": t.ID})
	}
	return reporter, receivers, nil
}

// List returns the reviews left on a task. The caller must be a member.
func (s Service) List(ctx context.Context, projectID, taskID, userID string) ([]domain.Report, error) {
	var out []domain.Report
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := s.Auth.RequireMember(ctx, tx, projectID, userID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListReports(ctx, taskID)
		return err
	})
	return out, err
}
