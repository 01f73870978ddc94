package domain

import "time"

type EffectType string

const (
	DamageBuff    EffectType = "DAMAGE_BUFF"
	DamageDebuff  EffectType = "DAMAGE_DEBUFF"
	DefenceBuff   EffectType = "DEFENCE_BUFF"
	DefenceDebuff EffectType = "DEFENCE_DEBUFF"
	ScoreBonus    EffectType = "SCORE_BONUS"
	ScorePenalty  EffectType = "SCORE_PENALTY"
	HealEffect    EffectType = "HEAL"
)

// Valid reports whether t is a known effect type.
func (t EffectType) Valid() bool {
	switch t {
	case DamageBuff, DamageDebuff, DefenceBuff, DefenceDebuff, ScoreBonus, ScorePenalty, HealEffect:
		return true
	}
	return false
}

type Polarity string

const (
	Good Polarity = "GOOD"
	Bad  Polarity = "BAD"
)

const (
	RarityCommon = 1
	RarityRare   = 2
	RarityEpic   = 3
)

// Effect is an immutable buff/debuff template. Value is a fraction of the
// affected quantity, except for HEAL where it is a percentage of max hp.
type Effect struct {
	ID          string     `json:"id"`
	Type        EffectType `json:"type"`
	Value       float64    `json:"value"`
	Polarity    Polarity   `json:"polarity" enum:"GOOD,BAD"`
	Rarity      int        `json:"rarity" minimum:"1" maximum:"3"`
	Description string     `json:"description,omitempty"`
}

// Item is immutable catalog data; EffectID is empty for cosmetic items.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	EffectID    string `json:"effect_id,omitempty"`
}

// ActiveEffect is a one-shot effect bound to a member.
type ActiveEffect struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"member_id"`
	Effect    Effect    `json:"effect"`
	CreatedAt time.Time `json:"created_at" format:"date-time"`
}

// OwnedItem is an item held by a member until used.
type OwnedItem struct {
	ID         string    `json:"id"`
	MemberID   string    `json:"member_id"`
	Item       Item      `json:"item"`
	ObtainedAt time.Time `json:"obtained_at" format:"date-time"`
}
