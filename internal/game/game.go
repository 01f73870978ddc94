// Package game is the combat engine: it turns completed tasks and peer reviews
// into damage, healing, effects and boss progression, and writes every state
// change to the project's event log inside the same unit of work.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/events"
	"taskraid/internal/random"
	"taskraid/internal/store"
)

// Config holds the combat tuning constants.
type Config struct {
	BaseBossHP        int     `yaml:"base_boss_hp" json:"base_boss_hp"`
	BasePlayerDamage  float64 `yaml:"base_player_damage" json:"base_player_damage"`
	BaseBossDamage    float64 `yaml:"base_boss_damage" json:"base_boss_damage"`
	AttackScoreRate   float64 `yaml:"attack_score_rate" json:"attack_score_rate"`
	BaseSpecialBossHP int     `yaml:"base_special_boss_hp" json:"base_special_boss_hp"`
	PriorityWeight    float64 `yaml:"priority_weight" json:"priority_weight"`
	MembersWeight     float64 `yaml:"members_weight" json:"members_weight"`
	ReviewBaseScore   int     `yaml:"review_base_score" json:"review_base_score"`
}

func DefaultConfig() Config {
	return Config{
		BaseBossHP:        1000,
		BasePlayerDamage:  1000,
		BaseBossDamage:    10,
		AttackScoreRate:   0.1,
		BaseSpecialBossHP: 5000,
		PriorityWeight:    1.0,
		MembersWeight:     0.5,
		ReviewBaseScore:   100,
	}
}

// Validate rejects tunings that would break hp invariants.
func (c Config) Validate() error {
	switch {
	case c.BaseBossHP <= 0:
		return errors.New("game.base_boss_hp must be positive")
	case c.BaseSpecialBossHP <= 0:
		return errors.New("game.base_special_boss_hp must be positive")
	case c.BasePlayerDamage < 0 || c.BaseBossDamage < 0:
		return errors.New("game damage bases must not be negative")
	case c.AttackScoreRate < 0:
		return errors.New("game.attack_score_rate must not be negative")
	case c.PriorityWeight <= 0:
		return errors.New("game.priority_weight must be positive")
	case c.MembersWeight < 0:
		return errors.New("game.members_weight must not be negative")
	}
	return nil
}

type Engine struct {
	Store  store.Store
	Config Config
	Rand   random.Source
	Now    func() time.Time
	Logger *slog.Logger
	NewID  func() string
}

func New(s store.Store, cfg Config, src random.Source) Engine {
	return Engine{
		Store:  s,
		Config: cfg,
		Rand:   src,
		Now:    time.Now,
		Logger: slog.Default(),
		NewID:  uuid.NewString,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) rand() random.Source {
	if e.Rand != nil {
		return e.Rand
	}
	return random.New(uint64(e.now().UnixNano()))
}

func (e Engine) writer(tx store.Tx) events.Writer {
	return events.Writer{Log: tx.Log(), Now: e.now}
}

// bossHP sizes a boss pool from a priority total and member count.
func (e Engine) bossHP(priority, members int) int {
	weighted := e.Config.PriorityWeight*float64(priority) + e.Config.MembersWeight*float64(members)
	return int(math.Round(float64(e.Config.BaseBossHP) * weighted))
}

func (e Engine) loadMember(ctx context.Context, tx store.Tx, projectID, memberID string) (domain.Member, error) {
	m, err := tx.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return m, apperr.WithMetadata(apperr.CodeMemberNotInProject, fmt.Sprintf("member %s not in project %s", memberID, projectID),
				map[string]string{"member_id": memberID, "project_id": projectID})
		}
		return m, err
	}
	if m.ProjectID != projectID {
		return m, apperr.WithMetadata(apperr.CodeMemberNotInProject, fmt.Sprintf("member %s not in project %s", memberID, projectID),
			map[string]string{"member_id": memberID, "project_id": projectID})
	}
	return m, nil
}

func (e Engine) loadAliveMember(ctx context.Context, tx store.Tx, projectID, memberID string) (domain.Member, error) {
	m, err := e.loadMember(ctx, tx, projectID, memberID)
	if err != nil {
		return m, err
	}
	if !m.Alive() {
		return m, apperr.WithMetadata(apperr.CodeMemberDead, fmt.Sprintf("member %s is dead", memberID), map[string]string{"member_id": memberID})
	}
	return m, nil
}

func (e Engine) loadTask(ctx context.Context, tx store.Tx, projectID, taskID string) (domain.Task, error) {
	t, err := tx.GetTask(ctx, taskID)
	if err != nil {
		return t, err
	}
	if t.ProjectID != projectID {
		return t, apperr.WithMetadata(apperr.CodeTaskNotInProject, fmt.Sprintf("task %s does not belong to project %s", taskID, projectID),
			map[string]string{"task_id": taskID, "project_id": projectID})
	}
	return t, nil
}

// activeBoss returns the set-up, alive boss of the project.
func (e Engine) activeBoss(ctx context.Context, tx store.Tx, projectID string) (domain.Boss, error) {
	b, err := tx.ActiveBoss(ctx, projectID)
	if err != nil {
		return b, err
	}
	if !b.Initialized() {
		return b, apperr.New(apperr.CodeBossNotSetUp, fmt.Sprintf("project %s has no boss set up", projectID))
	}
	if !b.Alive() {
		return b, apperr.New(apperr.CodeBossDead, fmt.Sprintf("boss %s is dead", b.ID))
	}
	return b, nil
}

// consume deletes a one-shot effect. It reports false when another unit
// already consumed it.
func consume(ctx context.Context, tx store.Tx, ae domain.ActiveEffect) (bool, error) {
	if err := tx.DeleteActiveEffect(ctx, ae.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("consume effect %s: %w", ae.ID, err)
	}
	return true, nil
}

func effectIDs(in []domain.ActiveEffect) []string {
	ids := make([]string, 0, len(in))
	for _, ae := range in {
		ids = append(ids, ae.ID)
	}
	return ids
}
