package domain

import (
	"fmt"
	"time"

	"taskraid/internal/apperr"
)

type BossCategory string

const (
	BossNormal  BossCategory = "normal"
	BossSpecial BossCategory = "special"
)

// BossType is catalog data describing a boss the party can face.
type BossType struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Image    string       `json:"image,omitempty"`
	Category BossCategory `json:"category" enum:"normal,special"`
}

type BossStatus string

const (
	BossAlive BossStatus = "alive"
	BossDead  BossStatus = "dead"
)

// Boss is one boss instance of a project. Type is nil until the boss is set up.
type Boss struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	Type      *BossType  `json:"type,omitempty"`
	HP        int        `json:"hp"`
	MaxHP     int        `json:"max_hp"`
	Status    BossStatus `json:"status" enum:"alive,dead"`
	Phase     int        `json:"phase"`
	CreatedAt time.Time  `json:"created_at" format:"date-time"`
	UpdatedAt time.Time  `json:"updated_at" format:"date-time"`
}

// NewBoss returns an uninitialized boss instance.
func NewBoss(id, projectID string, now time.Time) Boss {
	return Boss{
		ID:        id,
		ProjectID: projectID,
		Status:    BossAlive,
		Phase:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (b Boss) Initialized() bool {
	return b.Type != nil && b.MaxHP > 0
}

func (b Boss) Alive() bool {
	return b.Status == BossAlive
}

// Category returns the category of the boss type, or "" when not set up.
func (b Boss) Category() BossCategory {
	if b.Type == nil {
		return ""
	}
	return b.Type.Category
}

// Attacked removes damage from hp and reports whether the boss is depleted.
func (b *Boss) Attacked(damage int) bool {
	if damage < 0 {
		damage = 0
	}
	b.HP = max(b.HP-damage, 0)
	return b.HP == 0
}

func (b *Boss) FullHeal() {
	b.HP = b.MaxHP
}

// SetMaxHP changes the pool size. A current hp above the new maximum is shrunk to it.
func (b *Boss) SetMaxHP(v int) error {
	if v <= 0 {
		return apperr.New(apperr.CodeInvalidMaxHP, fmt.Sprintf("max hp %d must be positive", v))
	}
	b.MaxHP = v
	if b.HP > v {
		b.HP = v
	}
	return nil
}

func (b *Boss) SetHP(v int) error {
	if v < 0 || v > b.MaxHP {
		return apperr.New(apperr.CodeInvalidHP, fmt.Sprintf("hp %d outside 0..%d", v, b.MaxHP))
	}
	b.HP = v
	return nil
}

// AdvancePhase moves to the next phase with a freshly sized, fully healed pool.
func (b *Boss) AdvancePhase(maxHP int, now time.Time) error {
	if err := b.SetMaxHP(maxHP); err != nil {
		return err
	}
	b.FullHeal()
	b.Phase++
	b.Status = BossAlive
	b.UpdatedAt = now
	return nil
}

func (b *Boss) Die() {
	b.HP = 0
	b.Status = BossDead
}
