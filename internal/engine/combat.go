package engine

import (
	"context"
	"fmt"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/engine/auth"
	"taskraid/internal/game"
	"taskraid/internal/store"
)

// SetupBoss sizes the project's first boss. Owner only.
func (e Engine) SetupBoss(ctx context.Context, projectID, actorID string) (domain.Boss, error) {
	var b domain.Boss
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := e.requireOwner(ctx, tx, projectID, actorID); err != nil {
			return err
		}
		var err error
		b, err = e.Game.InitialBossSetupTx(ctx, tx, projectID)
		return err
	})
	return b, err
}

// SetupSpecialBoss summons a special boss the project never faced. Owner only.
func (e Engine) SetupSpecialBoss(ctx context.Context, projectID, actorID string) (domain.Boss, error) {
	var b domain.Boss
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := e.requireOwner(ctx, tx, projectID, actorID); err != nil {
			return err
		}
		var err error
		b, err = e.Game.SpecialBossSetupTx(ctx, tx, projectID)
		return err
	})
	return b, err
}

// NextPhase retries phase progression of a defeated boss. Owner only.
func (e Engine) NextPhase(ctx context.Context, projectID, actorID string) (game.PhaseResult, error) {
	var res game.PhaseResult
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := e.requireOwner(ctx, tx, projectID, actorID); err != nil {
			return err
		}
		b, err := tx.ActiveBoss(ctx, projectID)
		if err != nil {
			return err
		}
		if b.Alive() && b.HP > 0 {
			return apperr.New(apperr.CodeInvalidBossPhase, fmt.Sprintf("boss %s is still standing", b.ID))
		}
		if b.Category() == domain.BossSpecial {
			return apperr.New(apperr.CodeInvalidBossPhase, fmt.Sprintf("special boss %s has no next phase", b.ID))
		}
		res, err = e.Game.NextPhaseBossSetupTx(ctx, tx, b)
		return err
	})
	return res, err
}

func (e Engine) requireOwner(ctx context.Context, tx store.Tx, projectID, actorID string) error {
	p, err := e.Auth.RequireOwner(ctx, tx, projectID, actorID)
	if err != nil {
		return err
	}
	return auth.RequireActive(p)
}

// Heal spends the caller's turn restoring healValue percent of a teammate's hp.
func (e Engine) Heal(ctx context.Context, projectID, actorID, targetMemberID string, healValue float64) (game.HealResult, error) {
	if healValue < 0 || healValue > 100 {
		return game.HealResult{}, apperr.New(apperr.CodeInvalidHealValue, fmt.Sprintf("heal value %v outside 0..100", healValue))
	}
	var res game.HealResult
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, m, err := e.actor(ctx, tx, projectID, actorID)
		if err != nil {
			return err
		}
		res, err = e.Game.PlayerHealTx(ctx, tx, projectID, m.ID, targetMemberID, healValue)
		return err
	})
	return res, err
}

// Revive brings a dead member back. Members revive themselves; the owner may
// revive anyone.
func (e Engine) Revive(ctx context.Context, projectID, actorID, memberID string) (domain.Member, error) {
	var m domain.Member
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, caller, err := e.actor(ctx, tx, projectID, actorID)
		if err != nil {
			return err
		}
		if memberID == "" {
			memberID = caller.ID
		}
		if memberID != caller.ID && p.OwnerID != actorID {
			return apperr.New(apperr.CodeNotProjectOwner, "only the owner can revive another member")
		}
		m, err = e.Game.PlayerReviveTx(ctx, tx, projectID, memberID)
		return err
	})
	return m, err
}

// UseItem consumes one of the caller's items.
func (e Engine) UseItem(ctx context.Context, projectID, actorID, ownedItemID string) (game.UseItemResult, error) {
	var res game.UseItemResult
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, m, err := e.actor(ctx, tx, projectID, actorID)
		if err != nil {
			return err
		}
		res, err = e.Game.PlayerUseItemTx(ctx, tx, projectID, m.ID, ownedItemID)
		return err
	})
	return res, err
}

// Status returns the encounter snapshot. The caller must be a member.
func (e Engine) Status(ctx context.Context, projectID, actorID string) (game.Snapshot, error) {
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		_, err := e.Auth.RequireMember(ctx, tx, projectID, actorID)
		return err
	})
	if err != nil {
		return game.Snapshot{}, err
	}
	return e.Game.Status(ctx, projectID)
}

// BossAttack lets the boss strike the assignees of an open task right away. Owner only.
func (e Engine) BossAttack(ctx context.Context, projectID, actorID, taskID string) (game.BossAttackResult, error) {
	var res game.BossAttackResult
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := e.requireOwner(ctx, tx, projectID, actorID); err != nil {
			return err
		}
		var err error
		res, err = e.Game.BossAttackTx(ctx, tx, projectID, taskID)
		return err
	})
	return res, err
}
