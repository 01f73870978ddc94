package game

import (
	"context"
	"errors"

	"taskraid/internal/domain"
	"taskraid/internal/store"
)

type MemberStatus struct {
	domain.Member
	Effects []domain.ActiveEffect `json:"effects"`
	Items   []domain.OwnedItem    `json:"items"`
}

// Snapshot is the read side of a project's encounter.
type Snapshot struct {
	ProjectID string         `json:"project_id"`
	Boss      *domain.Boss   `json:"boss,omitempty"`
	Members   []MemberStatus `json:"members"`
}

func (e Engine) Status(ctx context.Context, projectID string) (Snapshot, error) {
	snap := Snapshot{ProjectID: projectID, Members: []MemberStatus{}}
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		b, err := tx.ActiveBoss(ctx, projectID)
		switch {
		case err == nil:
			snap.Boss = &b
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		members, err := tx.ListMembers(ctx, projectID)
		if err != nil {
			return err
		}
		for _, m := range members {
			fx, err := tx.ListActiveEffects(ctx, m.ID)
			if err != nil {
				return err
			}
			items, err := tx.ListOwnedItems(ctx, m.ID)
			if err != nil {
				return err
			}
			snap.Members = append(snap.Members, MemberStatus{Member: m, Effects: fx, Items: items})
		}
		return nil
	})
	return snap, err
}
