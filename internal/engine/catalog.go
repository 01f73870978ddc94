package engine

import (
	"context"
	"errors"
	"fmt"

	"taskraid/internal/domain"
	"taskraid/internal/store"
)

// Catalog is the static game content: boss types, effects and items.
type Catalog struct {
	BossTypes []domain.BossType
	Effects   []domain.Effect
	Items     []domain.Item
}

// Validate checks catalog references before anything is written.
func (c Catalog) Validate() error {
	effects := map[string]bool{}
	for _, e := range c.Effects {
		if e.ID == "" {
			return errors.New("effect id is required")
		}
		if !e.Type.Valid() {
			return fmt.Errorf("effect %s: unknown type %q", e.ID, e.Type)
		}
		if e.Polarity != domain.Good && e.Polarity != domain.Bad {
			return fmt.Errorf("effect %s: unknown polarity %q", e.ID, e.Polarity)
		}
		if e.Rarity < domain.RarityCommon || e.Rarity > domain.RarityEpic || (e.Polarity == domain.Bad && e.Rarity == domain.RarityEpic) {
			return fmt.Errorf("effect %s: rarity %d not allowed for %s", e.ID, e.Rarity, e.Polarity)
		}
		effects[e.ID] = true
	}
	for _, bt := range c.BossTypes {
		if bt.ID == "" || bt.Name == "" {
			return errors.New("boss type needs an id and a name")
		}
		if bt.Category != domain.BossNormal && bt.Category != domain.BossSpecial {
			return fmt.Errorf("boss type %s: unknown category %q", bt.ID, bt.Category)
		}
	}
	for _, it := range c.Items {
		if it.ID == "" {
			return errors.New("item id is required")
		}
		if it.EffectID != "" && !effects[it.EffectID] {
			return fmt.Errorf("item %s references unknown effect %s", it.ID, it.EffectID)
		}
	}
	return nil
}

// SeedCatalog upserts the catalog. Running it again with the same content is a no-op.
func (e Engine) SeedCatalog(ctx context.Context, c Catalog) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, bt := range c.BossTypes {
			if err := tx.UpsertBossType(ctx, bt); err != nil {
				return fmt.Errorf("boss type %s: %w", bt.ID, err)
			}
		}
		for _, eff := range c.Effects {
			if err := tx.UpsertEffect(ctx, eff); err != nil {
				return fmt.Errorf("effect %s: %w", eff.ID, err)
			}
		}
		for _, it := range c.Items {
			if err := tx.UpsertItem(ctx, it); err != nil {
				return fmt.Errorf("item %s: %w", it.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger().Info("catalog seeded", "boss_types", len(c.BossTypes), "effects", len(c.Effects), "items", len(c.Items))
	return nil
}
