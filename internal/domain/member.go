package domain

import (
	"fmt"
	"time"

	"taskraid/internal/apperr"
)

// DefaultMemberHP is the hit point pool every member starts with.
const DefaultMemberHP = 100

type MemberStatus string

const (
	MemberAlive MemberStatus = "alive"
	MemberDead  MemberStatus = "dead"
)

// Member is one participant's combat state inside a project.
type Member struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"project_id"`
	UserID    string       `json:"user_id"`
	HP        int          `json:"hp"`
	MaxHP     int          `json:"max_hp"`
	Status    MemberStatus `json:"status" enum:"alive,dead"`
	Score     int          `json:"score"`
	JoinedAt  time.Time    `json:"joined_at" format:"date-time"`
}

// NewMember returns a fresh alive member at full health.
func NewMember(id, projectID, userID string, joinedAt time.Time) Member {
	return Member{
		ID:        id,
		ProjectID: projectID,
		UserID:    userID,
		HP:        DefaultMemberHP,
		MaxHP:     DefaultMemberHP,
		Status:    MemberAlive,
		JoinedAt:  joinedAt,
	}
}

func (m Member) Alive() bool {
	return m.Status == MemberAlive
}

// Attacked removes damage from hp, never going below zero, and reports
// whether the pool is depleted. The caller owns the Dead transition.
func (m *Member) Attacked(damage int) bool {
	if damage < 0 {
		damage = 0
	}
	m.HP = max(m.HP-damage, 0)
	return m.HP == 0
}

// Heal restores hp up to max_hp.
func (m *Member) Heal(amount int) {
	if amount < 0 {
		return
	}
	m.HP = min(m.HP+amount, m.MaxHP)
}

func (m *Member) SetHP(v int) error {
	if v < 0 || v > m.MaxHP {
		return apperr.New(apperr.CodeInvalidHP, fmt.Sprintf("hp %d outside 0..%d", v, m.MaxHP))
	}
	m.HP = v
	return nil
}

func (m *Member) SetScore(v int) error {
	if v < 0 {
		return apperr.New(apperr.CodeInvalidScore, fmt.Sprintf("score %d below zero", v))
	}
	m.Score = v
	return nil
}

// AddScore applies delta and floors the result at zero.
func (m *Member) AddScore(delta int) {
	m.Score = max(m.Score+delta, 0)
}

func (m *Member) Die() {
	m.HP = 0
	m.Status = MemberDead
}

// Revive halves the score and restores full health. Alive members are rejected
// without mutation.
func (m *Member) Revive() error {
	if m.Alive() {
		return apperr.New(apperr.CodeMemberAlive, fmt.Sprintf("member %s is alive", m.ID))
	}
	m.Score /= 2
	m.HP = m.MaxHP
	m.Status = MemberAlive
	return nil
}
