package game

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/events"
	"taskraid/internal/random"
	"taskraid/internal/store"
)

// PhaseResult reports the outcome of a next phase attempt.
type PhaseResult struct {
	Boss      domain.Boss `json:"boss"`
	Advanced  bool        `json:"advanced"`
	NetChange int         `json:"net_change"`
}

// InitialBossSetup gives the project's uninitialized boss a random normal type
// sized from the backlog.
func (e Engine) InitialBossSetup(ctx context.Context, projectID string) (domain.Boss, error) {
	var b domain.Boss
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		b, err = e.InitialBossSetupTx(ctx, tx, projectID)
		return err
	})
	return b, err
}

func (e Engine) InitialBossSetupTx(ctx context.Context, tx store.Tx, projectID string) (domain.Boss, error) {
	if _, err := tx.GetProject(ctx, projectID); err != nil {
		return domain.Boss{}, err
	}
	b, err := tx.ActiveBoss(ctx, projectID)
	fresh := false
	switch {
	case errors.Is(err, store.ErrNotFound):
		b = domain.NewBoss(e.newID(), projectID, e.now())
		fresh = true
	case err != nil:
		return b, err
	case b.Initialized():
		return b, apperr.New(apperr.CodeBossAlreadySetUp, fmt.Sprintf("project %s already has a boss", projectID))
	}
	types, err := tx.ListBossTypes(ctx, domain.BossNormal)
	if err != nil {
		return b, err
	}
	bt, ok := random.Pick(e.rand(), types)
	if !ok {
		return b, apperr.New(apperr.CodeNoBossTypes, "no normal bosses configured")
	}
	total, count, err := tx.PrioritySum(ctx, projectID)
	if err != nil {
		return b, err
	}
	if count == 0 || total <= 0 {
		return b, apperr.New(apperr.CodeEmptyBacklog, fmt.Sprintf("project %s has no task priority to size a boss", projectID))
	}
	members, err := tx.CountMembers(ctx, projectID)
	if err != nil {
		return b, err
	}
	b.Type = &bt
	if err := b.SetMaxHP(e.bossHP(total, members)); err != nil {
		return b, err
	}
	b.FullHeal()
	b.Status = domain.BossAlive
	b.UpdatedAt = e.now()
	if fresh {
		err = tx.InsertBoss(ctx, b)
	} else {
		err = tx.UpdateBoss(ctx, b)
	}
	if err != nil {
		return b, fmt.Errorf("save boss: %w", err)
	}
	if err := e.writer(tx).Append(ctx, projectID, events.ActorSystem, "", events.BossSetup, events.Payload{
		"boss_id":        b.ID,
		"boss_type":      bt.ID,
		"max_hp":         b.MaxHP,
		"total_priority": total,
		"members":        members,
	}); err != nil {
		return b, err
	}
	e.logger().Info("boss set up", "project", projectID, "boss", b.ID, "type", bt.Name, "max_hp", b.MaxHP)
	return b, nil
}

// NextPhaseBossSetup advances a depleted boss when the backlog grew since its
// last setup.
func (e Engine) NextPhaseBossSetup(ctx context.Context, projectID string) (PhaseResult, error) {
	var res PhaseResult
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.ActiveBoss(ctx, projectID)
		if err != nil {
			return err
		}
		if b.Alive() && b.HP > 0 {
			return apperr.New(apperr.CodeInvalidBossPhase, fmt.Sprintf("boss %s is still standing", b.ID))
		}
		res, err = e.NextPhaseBossSetupTx(ctx, tx, b)
		return err
	})
	return res, err
}

// NextPhaseBossSetupTx computes the net task priority change logged after the
// boss was last set up. A non-positive change means no next phase and leaves
// the boss untouched.
func (e Engine) NextPhaseBossSetupTx(ctx context.Context, tx store.Tx, b domain.Boss) (PhaseResult, error) {
	res := PhaseResult{Boss: b}
	if !b.Initialized() {
		return res, apperr.New(apperr.CodeBossNotSetUp, fmt.Sprintf("boss %s is not set up", b.ID))
	}
	entries, err := tx.Log().Find(ctx, events.Filter{
		ProjectID: b.ProjectID,
		Types:     []events.Type{events.TaskCreated, events.TaskDeleted},
		Since:     b.UpdatedAt,
	})
	if err != nil {
		return res, fmt.Errorf("read task history: %w", err)
	}
	added := events.SumInt(entries, events.TaskCreated, "priority")
	deleted := events.SumInt(entries, events.TaskDeleted, "priority")
	res.NetChange = added - deleted
	if res.NetChange <= 0 {
		return res, nil
	}
	members, err := tx.CountMembers(ctx, b.ProjectID)
	if err != nil {
		return res, err
	}
	if err := b.AdvancePhase(e.bossHP(res.NetChange, members), e.now()); err != nil {
		return res, err
	}
	if err := tx.UpdateBoss(ctx, b); err != nil {
		return res, fmt.Errorf("save boss: %w", err)
	}
	if err := e.writer(tx).Append(ctx, b.ProjectID, events.ActorSystem, "", events.BossNextPhase, events.Payload{
		"boss_id":    b.ID,
		"phase":      b.Phase,
		"max_hp":     b.MaxHP,
		"added":      added,
		"deleted":    deleted,
		"net_change": res.NetChange,
	}); err != nil {
		return res, err
	}
	e.logger().Info("boss advanced phase", "project", b.ProjectID, "boss", b.ID, "phase", b.Phase, "max_hp", b.MaxHP)
	res.Boss = b
	res.Advanced = true
	return res, nil
}

// SpecialBossSetup replaces the active boss with a fresh instance of a special
// type the project never faced.
func (e Engine) SpecialBossSetup(ctx context.Context, projectID string) (domain.Boss, error) {
	var b domain.Boss
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		b, err = e.SpecialBossSetupTx(ctx, tx, projectID)
		return err
	})
	return b, err
}

func (e Engine) SpecialBossSetupTx(ctx context.Context, tx store.Tx, projectID string) (domain.Boss, error) {
	if _, err := tx.GetProject(ctx, projectID); err != nil {
		return domain.Boss{}, err
	}
	types, err := tx.ListBossTypes(ctx, domain.BossSpecial)
	if err != nil {
		return domain.Boss{}, err
	}
	used, err := tx.UsedBossTypes(ctx, projectID)
	if err != nil {
		return domain.Boss{}, err
	}
	available := slices.DeleteFunc(types, func(bt domain.BossType) bool { return slices.Contains(used, bt.ID) })
	bt, ok := random.Pick(e.rand(), available)
	if !ok {
		return domain.Boss{}, apperr.New(apperr.CodeNoSpecialBossLeft, fmt.Sprintf("no special boss left for project %s", projectID))
	}
	b := domain.NewBoss(e.newID(), projectID, e.now())
	b.Type = &bt
	if err := b.SetMaxHP(e.Config.BaseSpecialBossHP); err != nil {
		return b, err
	}
	b.FullHeal()
	if err := tx.InsertBoss(ctx, b); err != nil {
		return b, fmt.Errorf("insert boss: %w", err)
	}
	if err := e.writer(tx).Append(ctx, projectID, events.ActorSystem, "", events.SpecialBossSetup, events.Payload{
		"boss_id":   b.ID,
		"boss_type": bt.ID,
		"max_hp":    b.MaxHP,
	}); err != nil {
		return b, err
	}
	e.logger().Info("special boss set up", "project", projectID, "boss", b.ID, "type", bt.Name)
	return b, nil
}
