package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMemberHPStaysInBounds(t *testing.T) {
	m := domain.NewMember("m1", "p1", "u1", t0)
	ops := []func(){
		func() { m.Attacked(30) },
		func() { m.Heal(500) },
		func() { m.Attacked(1000) },
		func() { m.Heal(7) },
		func() { m.Attacked(-5) },
		func() { m.Heal(-20) },
	}
	for _, op := range ops {
		op()
		assert.GreaterOrEqual(t, m.HP, 0)
		assert.LessOrEqual(t, m.HP, m.MaxHP)
	}
}

func TestMemberAttackedReportsDepletion(t *testing.T) {
	m := domain.NewMember("m1", "p1", "u1", t0)
	assert.False(t, m.Attacked(99))
	assert.True(t, m.Attacked(5))
	assert.Equal(t, 0, m.HP)
	// status is the caller's business
	assert.Equal(t, domain.MemberAlive, m.Status)
}

func TestMemberSetters(t *testing.T) {
	m := domain.NewMember("m1", "p1", "u1", t0)
	err := m.SetHP(101)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	require.NoError(t, m.SetHP(40))
	assert.Equal(t, 40, m.HP)

	err = m.SetScore(-1)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	m.AddScore(10)
	m.AddScore(-25)
	assert.Equal(t, 0, m.Score)
}

func TestReviveRejectsAliveMember(t *testing.T) {
	m := domain.NewMember("m1", "p1", "u1", t0)
	m.Score = 40
	m.HP = 30
	before := m
	err := m.Revive()
	assert.ErrorIs(t, err, apperr.ErrMemberAlive)
	assert.Equal(t, before, m)

	m.Die()
	require.NoError(t, m.Revive())
	assert.Equal(t, 20, m.Score)
	assert.Equal(t, m.MaxHP, m.HP)
	assert.True(t, m.Alive())
}

func TestBossSetMaxHPShrinksHP(t *testing.T) {
	b := domain.NewBoss("b1", "p1", t0)
	require.NoError(t, b.SetMaxHP(1000))
	b.FullHeal()
	require.NoError(t, b.SetMaxHP(400))
	assert.Equal(t, 400, b.HP)
	assert.Error(t, b.SetMaxHP(0))
	assert.Error(t, b.SetHP(401))
}

func TestBossAdvancePhase(t *testing.T) {
	b := domain.NewBoss("b1", "p1", t0)
	b.Type = &domain.BossType{ID: "bt1", Category: domain.BossNormal}
	require.NoError(t, b.SetMaxHP(1000))
	b.Attacked(5000)
	later := t0.Add(time.Hour)
	require.NoError(t, b.AdvancePhase(3500, later))
	assert.Equal(t, 2, b.Phase)
	assert.Equal(t, 3500, b.HP)
	assert.Equal(t, later, b.UpdatedAt)
	assert.True(t, b.Alive())

	err := b.AdvancePhase(0, later)
	require.Error(t, err)
	assert.Equal(t, 2, b.Phase)
}

func TestTaskFacts(t *testing.T) {
	deadline := t0.Add(48 * time.Hour)
	task := domain.Task{Priority: 3, CreatedAt: t0, Deadline: &deadline, Assignees: []string{"m1"}}
	f := task.Facts()
	assert.Equal(t, 3, f.Priority)
	assert.Nil(t, f.CompletedAt)
	assert.True(t, task.AssignedTo("m1"))
	assert.False(t, task.AssignedTo("m2"))
}
