package game

import (
	"context"
	"errors"
	"fmt"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/effects"
	"taskraid/internal/events"
	"taskraid/internal/random"
	"taskraid/internal/scoring"
	"taskraid/internal/store"
)

type GrantKind string

const (
	GrantNone   GrantKind = "none"
	GrantItem   GrantKind = "item"
	GrantEffect GrantKind = "effect"
	GrantHeal   GrantKind = "heal"
)

// Grant describes what one receiver got out of a review.
type Grant struct {
	MemberID string         `json:"member_id"`
	Applied  bool           `json:"applied"`
	Reason   string         `json:"reason,omitempty"`
	Kind     GrantKind      `json:"kind"`
	Effect   *domain.Effect `json:"effect,omitempty"`
	ItemID   string         `json:"item_id,omitempty"`
	// GrantID is the owned item or active effect id created for the receiver.
	GrantID    string `json:"grant_id,omitempty"`
	HealAmount int    `json:"heal_amount,omitempty"`
}

type SupportResult struct {
	ReportID      string         `json:"report_id"`
	Scores        scoring.Scores `json:"scores"`
	ReporterScore int            `json:"reporter_score"`
	Grants        []Grant        `json:"grants"`
}

type UseItemResult struct {
	OwnedItemID string         `json:"owned_item_id"`
	Item        domain.Item    `json:"item"`
	Effect      *domain.Effect `json:"effect,omitempty"`
	// ActiveEffectID is set when the item produced a lasting one-shot effect.
	ActiveEffectID string `json:"active_effect_id,omitempty"`
	HealAmount     int    `json:"heal_amount,omitempty"`
	HP             int    `json:"hp"`
}

// PlayerSupport applies the outcome of a stored peer review.
func (e Engine) PlayerSupport(ctx context.Context, report domain.Report) (SupportResult, error) {
	var res SupportResult
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = e.PlayerSupportTx(ctx, tx, report)
		return err
	})
	return res, err
}

func (e Engine) PlayerSupportTx(ctx context.Context, tx store.Tx, report domain.Report) (SupportResult, error) {
	res := SupportResult{ReportID: report.ID, Grants: []Grant{}}
	t, err := e.loadTask(ctx, tx, report.ProjectID, report.TaskID)
	if err != nil {
		return res, err
	}
	reporter, err := e.loadMember(ctx, tx, report.ProjectID, report.ReporterID)
	if err != nil {
		return res, err
	}
	res.Scores = scoring.Compute(t.Facts(), report.Sentiment)
	res.ReporterScore = scoring.PlayerScore(res.Scores, e.Config.ReviewBaseScore)
	reporter.AddScore(res.ReporterScore)
	if err := tx.UpdateMember(ctx, reporter); err != nil {
		return res, fmt.Errorf("save reporter: %w", err)
	}

	all, err := tx.ListEffects(ctx)
	if err != nil {
		return res, err
	}
	catalog := effects.NewCatalog(all)
	for _, memberID := range t.Assignees {
		if memberID == reporter.ID {
			continue
		}
		g, err := e.grant(ctx, tx, report, reporter, memberID, catalog, res.Scores.WeightedSentiment)
		if err != nil {
			return res, err
		}
		res.Grants = append(res.Grants, g)
	}
	return res, nil
}

func (e Engine) grant(ctx context.Context, tx store.Tx, report domain.Report, reporter domain.Member, memberID string, catalog effects.Catalog, weighted float64) (Grant, error) {
	g := Grant{MemberID: memberID, Kind: GrantNone}
	receiver, err := e.loadMember(ctx, tx, report.ProjectID, memberID)
	if err != nil {
		return g, err
	}
	if !receiver.Alive() {
		g.Reason = "receiver is dead"
		return g, nil
	}
	eff, ok := catalog.Decide(weighted, e.rand())
	if !ok {
		g.Reason = "no effect available"
		return g, nil
	}
	g.Effect = &eff
	g.Applied = true
	w := e.writer(tx)

	asItem := e.rand().IntN(2) == 0
	if asItem {
		items, err := tx.ListItemsByEffect(ctx, eff.ID)
		if err != nil {
			return g, err
		}
		if it, ok := random.Pick(e.rand(), items); ok {
			oi := domain.OwnedItem{ID: e.newID(), MemberID: receiver.ID, Item: it, ObtainedAt: e.now()}
			if err := tx.InsertOwnedItem(ctx, oi); err != nil {
				return g, fmt.Errorf("give item: %w", err)
			}
			g.Kind, g.ItemID, g.GrantID = GrantItem, it.ID, oi.ID
			err = w.Append(ctx, report.ProjectID, events.ActorUser, reporter.ID, events.GiveItem, events.Payload{
				"report_id":     report.ID,
				"member_id":     receiver.ID,
				"item_id":       it.ID,
				"owned_item_id": oi.ID,
				"effect_id":     eff.ID,
			})
			return g, err
		}
	}

	if eff.Type == domain.HealEffect {
		healer := reporter.ID
		if !reporter.Alive() {
			healer = receiver.ID
		}
		healed, err := e.PlayerHealTx(ctx, tx, report.ProjectID, healer, receiver.ID, eff.Value)
		if err != nil {
			return g, err
		}
		g.Kind, g.HealAmount = GrantHeal, healed.Amount
		return g, nil
	}

	ae := domain.ActiveEffect{ID: e.newID(), MemberID: receiver.ID, Effect: eff, CreatedAt: e.now()}
	if err := tx.InsertActiveEffect(ctx, ae); err != nil {
		return g, fmt.Errorf("apply effect: %w", err)
	}
	g.Kind, g.GrantID = GrantEffect, ae.ID
	evt := events.ApplyBuff
	if eff.Polarity == domain.Bad {
		evt = events.ApplyDebuff
	}
	err = w.Append(ctx, report.ProjectID, events.ActorUser, reporter.ID, evt, events.Payload{
		"report_id":        report.ID,
		"member_id":        receiver.ID,
		"effect_id":        eff.ID,
		"effect_type":      string(eff.Type),
		"active_effect_id": ae.ID,
	})
	return g, err
}

// PlayerUseItem consumes an owned item and applies its effect to the owner.
func (e Engine) PlayerUseItem(ctx context.Context, projectID, memberID, ownedItemID string) (UseItemResult, error) {
	var res UseItemResult
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = e.PlayerUseItemTx(ctx, tx, projectID, memberID, ownedItemID)
		return err
	})
	return res, err
}

func (e Engine) PlayerUseItemTx(ctx context.Context, tx store.Tx, projectID, memberID, ownedItemID string) (UseItemResult, error) {
	res := UseItemResult{OwnedItemID: ownedItemID}
	m, err := e.loadAliveMember(ctx, tx, projectID, memberID)
	if err != nil {
		return res, err
	}
	oi, err := tx.TakeOwnedItem(ctx, m.ID, ownedItemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return res, apperr.WithMetadata(apperr.CodeItemNotOwned, fmt.Sprintf("member %s does not own item %s", m.ID, ownedItemID),
				map[string]string{"member_id": m.ID, "owned_item_id": ownedItemID})
		}
		return res, err
	}
	res.Item = oi.Item
	res.HP = m.HP
	if err := e.writer(tx).Append(ctx, projectID, events.ActorUser, m.ID, events.UseItem, events.Payload{
		"member_id":     m.ID,
		"owned_item_id": oi.ID,
		"item_id":       oi.Item.ID,
		"effect_id":     oi.Item.EffectID,
	}); err != nil {
		return res, err
	}
	if oi.Item.EffectID == "" {
		return res, nil
	}
	eff, err := tx.GetEffect(ctx, oi.Item.EffectID)
	if err != nil {
		return res, fmt.Errorf("item %s effect: %w", oi.Item.ID, err)
	}
	res.Effect = &eff
	if eff.Type == domain.HealEffect {
		healed, err := e.PlayerHealTx(ctx, tx, projectID, m.ID, m.ID, eff.Value)
		if err != nil {
			return res, err
		}
		res.HealAmount, res.HP = healed.Amount, healed.HP
		return res, nil
	}
	ae := domain.ActiveEffect{ID: e.newID(), MemberID: m.ID, Effect: eff, CreatedAt: e.now()}
	if err := tx.InsertActiveEffect(ctx, ae); err != nil {
		return res, fmt.Errorf("apply effect: %w", err)
	}
	res.ActiveEffectID = ae.ID
	return res, nil
}
