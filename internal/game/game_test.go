package game_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/events"
	"taskraid/internal/game"
	"taskraid/internal/random"
	"taskraid/internal/store"
	"taskraid/internal/store/memstore"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	Store *memstore.Store
	Game  game.Engine
	Clock *clock
	Ctx   context.Context
}

func newTestEnv(t *testing.T, cfg game.Config) *testEnv {
	t.Helper()
	s := memstore.New()
	clk := &clock{now: t0}
	n := 0
	g := game.New(s, cfg, &random.Sequence{Values: []int{0}})
	g.Now = clk.Now
	g.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	g.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	env := &testEnv{Store: s, Game: g, Clock: clk, Ctx: context.Background()}
	env.seed(t, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertProject(ctx, domain.Project{ID: "p1", Name: "raid", OwnerID: "user-m1", Status: domain.ProjectActive, CreatedAt: t0}); err != nil {
			return err
		}
		return tx.UpsertBossType(ctx, domain.BossType{ID: "slime", Name: "Slime", Category: domain.BossNormal})
	})
	return env
}

func (e *testEnv) seed(t *testing.T, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	require.NoError(t, e.Store.InTx(e.Ctx, fn))
}

func (e *testEnv) addMember(t *testing.T, id string, edit ...func(*domain.Member)) {
	t.Helper()
	m := domain.NewMember(id, "p1", "user-"+id, t0)
	for _, fn := range edit {
		fn(&m)
	}
	e.seed(t, func(ctx context.Context, tx store.Tx) error { return tx.InsertMember(ctx, m) })
}

func (e *testEnv) addTask(t *testing.T, task domain.Task) {
	t.Helper()
	if task.ProjectID == "" {
		task.ProjectID = "p1"
	}
	if task.Title == "" {
		task.Title = task.ID
	}
	e.seed(t, func(ctx context.Context, tx store.Tx) error { return tx.InsertTask(ctx, task) })
}

func (e *testEnv) grantEffect(t *testing.T, id, memberID string, eff domain.Effect) {
	t.Helper()
	e.seed(t, func(ctx context.Context, tx store.Tx) error {
		if err := tx.UpsertEffect(ctx, eff); err != nil {
			return err
		}
		return tx.InsertActiveEffect(ctx, domain.ActiveEffect{ID: id, MemberID: memberID, Effect: eff, CreatedAt: t0})
	})
}

func (e *testEnv) member(t *testing.T, id string) domain.Member {
	t.Helper()
	var m domain.Member
	e.seed(t, func(ctx context.Context, tx store.Tx) error {
		var err error
		m, err = tx.GetMember(ctx, id)
		return err
	})
	return m
}

func (e *testEnv) effectsOf(t *testing.T, memberID string) []string {
	t.Helper()
	var ids []string
	e.seed(t, func(ctx context.Context, tx store.Tx) error {
		fx, err := tx.ListActiveEffects(ctx, memberID)
		for _, ae := range fx {
			ids = append(ids, ae.ID)
		}
		return err
	})
	return ids
}

func (e *testEnv) boss(t *testing.T) domain.Boss {
	t.Helper()
	var b domain.Boss
	e.seed(t, func(ctx context.Context, tx store.Tx) error {
		var err error
		b, err = tx.ActiveBoss(ctx, "p1")
		return err
	})
	return b
}

func (e *testEnv) entries(t *testing.T, typ events.Type) []events.Entry {
	t.Helper()
	out, err := e.Store.Log().Find(e.Ctx, events.Filter{ProjectID: "p1", Types: []events.Type{typ}})
	require.NoError(t, err)
	return out
}

func (e *testEnv) setupBoss(t *testing.T) domain.Boss {
	t.Helper()
	b, err := e.Game.InitialBossSetup(e.Ctx, "p1")
	require.NoError(t, err)
	return b
}

func requireCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, code, ae.Code)
}

func ptr[T any](v T) *T { return &v }

// doneTask is a completed task created four hours before t0.
func doneTask(id string, priority int, deadline *time.Time, assignees ...string) domain.Task {
	return domain.Task{
		ID:          id,
		Status:      domain.TaskDone,
		Priority:    priority,
		CreatedAt:   t0.Add(-4 * time.Hour),
		UpdatedAt:   t0,
		Deadline:    deadline,
		CompletedAt: ptr(t0),
		Assignees:   assignees,
	}
}

func openTask(id string, priority int, assignees ...string) domain.Task {
	return domain.Task{ID: id, Status: domain.TaskTodo, Priority: priority, CreatedAt: t0.Add(-time.Hour), UpdatedAt: t0, Assignees: assignees}
}

func TestInitialBossSetup(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")
	env.addTask(t, doneTask("t1", 4, nil, "m1"))

	b := env.setupBoss(t)
	assert.Equal(t, 4500, b.MaxHP)
	assert.Equal(t, 4500, b.HP)
	assert.Equal(t, 1, b.Phase)
	assert.Equal(t, domain.BossAlive, b.Status)
	require.NotNil(t, b.Type)
	assert.Equal(t, "slime", b.Type.ID)
	assert.Equal(t, t0, b.UpdatedAt)
	assert.Len(t, env.entries(t, events.BossSetup), 1)

	_, err := env.Game.InitialBossSetup(env.Ctx, "p1")
	requireCode(t, err, apperr.CodeBossAlreadySetUp)
	assert.True(t, apperr.IsValidation(err))
}

func TestInitialBossSetupReusesUninitializedBoss(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")
	env.addTask(t, doneTask("t1", 2, nil))
	env.seed(t, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertBoss(ctx, domain.NewBoss("b0", "p1", t0))
	})

	b := env.setupBoss(t)
	assert.Equal(t, "b0", b.ID)
	assert.Equal(t, 2500, b.MaxHP)
}

func TestInitialBossSetupPreconditions(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")

	_, err := env.Game.InitialBossSetup(env.Ctx, "p1")
	requireCode(t, err, apperr.CodeEmptyBacklog)

	_, err = env.Game.InitialBossSetup(env.Ctx, "missing")
	assert.True(t, apperr.IsNotFound(err))

	bare := newTestEnv(t, game.DefaultConfig())
	bare.seed(t, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertProject(ctx, domain.Project{ID: "p2", Name: "empty", Status: domain.ProjectActive, CreatedAt: t0}); err != nil {
			return err
		}
		return tx.InsertTask(ctx, domain.Task{ID: "t2", ProjectID: "p2", Title: "t2", Status: domain.TaskTodo, Priority: 1, CreatedAt: t0})
	})
	bare.seed(t, func(ctx context.Context, tx store.Tx) error {
		return tx.UpsertBossType(ctx, domain.BossType{ID: "slime", Name: "Slime", Category: domain.BossSpecial})
	})
	_, err = bare.Game.InitialBossSetup(bare.Ctx, "p2")
	requireCode(t, err, apperr.CodeNoBossTypes)
	assert.Equal(t, 0, bare.Store.Log().Len())
}

func TestSpecialBossSetupNeverRepeatsType(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.seed(t, func(ctx context.Context, tx store.Tx) error {
		return tx.UpsertBossType(ctx, domain.BossType{ID: "dragon", Name: "Dragon", Category: domain.BossSpecial})
	})

	b, err := env.Game.SpecialBossSetup(env.Ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "dragon", b.Type.ID)
	assert.Equal(t, 5000, b.HP)
	assert.Equal(t, 5000, b.MaxHP)
	assert.Equal(t, b.ID, env.boss(t).ID)

	_, err = env.Game.SpecialBossSetup(env.Ctx, "p1")
	requireCode(t, err, apperr.CodeNoSpecialBossLeft)
	assert.Len(t, env.entries(t, events.SpecialBossSetup), 1)
}

func TestPlayerAttackOnDeadline(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")
	env.addTask(t, doneTask("t1", 4, ptr(t0), "m1"))
	env.setupBoss(t)

	res, err := env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1260, res.Damage)
	assert.Equal(t, 126, res.Score)
	assert.Equal(t, 126, res.MemberScore)
	assert.Equal(t, 3240, res.Boss.HP)
	assert.False(t, res.BossKilled)
	assert.Equal(t, 126, env.member(t, "m1").Score)
	assert.Equal(t, 3240, env.boss(t).HP)

	logged := env.entries(t, events.UserAttack)
	require.Len(t, logged, 1)
	assert.Equal(t, events.ActorUser, logged[0].ActorType)
	assert.Equal(t, "m1", logged[0].ActorID)
	assert.Equal(t, 1260, logged[0].Payload["damage"])
}

func TestPlayerAttackTimeliness(t *testing.T) {
	cases := []struct {
		name   string
		task   domain.Task
		damage int
		score  int
	}{
		{name: "no deadline", task: doneTask("t1", 4, nil), damage: 1260, score: 126},
		{name: "early", task: doneTask("t1", 2, ptr(t0.Add(4*time.Hour))), damage: 1020, score: 102},
		{name: "late floors speed", task: func() domain.Task {
			task := doneTask("t1", 4, ptr(t0.Add(-4*time.Hour)))
			task.CreatedAt = t0.Add(-8 * time.Hour)
			return task
		}(), damage: 828, score: 83},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, game.DefaultConfig())
			env.addMember(t, "m1")
			env.addTask(t, tc.task)
			env.setupBoss(t)
			res, err := env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t1")
			require.NoError(t, err)
			assert.Equal(t, tc.damage, res.Damage)
			assert.Equal(t, tc.score, res.Score)
		})
	}
}

func TestPlayerAttackConsumesEffectsOnce(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")
	env.addTask(t, doneTask("t1", 4, ptr(t0)))
	env.addTask(t, doneTask("t2", 4, ptr(t0)))
	env.setupBoss(t)
	env.grantEffect(t, "ae-dmg", "m1", domain.Effect{ID: "dmg", Type: domain.DamageBuff, Value: 0.5, Polarity: domain.Good, Rarity: domain.RarityCommon})
	env.grantEffect(t, "ae-score", "m1", domain.Effect{ID: "bonus", Type: domain.ScoreBonus, Value: 1, Polarity: domain.Good, Rarity: domain.RarityRare})

	first, err := env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1890, first.Damage)
	assert.Equal(t, 378, first.Score)
	assert.Equal(t, []string{"ae-dmg", "ae-score"}, first.Consumed)
	assert.Empty(t, env.effectsOf(t, "m1"))

	second, err := env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t2")
	require.NoError(t, err)
	assert.Equal(t, 1260, second.Damage)
	assert.Equal(t, 126, second.Score)
	assert.Empty(t, second.Consumed)
	assert.Equal(t, 504, env.member(t, "m1").Score)
	assert.Equal(t, 8500-1890-1260, env.boss(t).HP)
}

func TestPlayerAttackDebuffReducesDamage(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")
	env.addTask(t, doneTask("t1", 4, ptr(t0)))
	env.setupBoss(t)
	env.grantEffect(t, "ae-1", "m1", domain.Effect{ID: "weak", Type: domain.DamageDebuff, Value: 0.5, Polarity: domain.Bad, Rarity: domain.RarityCommon})
	env.grantEffect(t, "ae-2", "m1", domain.Effect{ID: "guard", Type: domain.DefenceBuff, Value: 0.5, Polarity: domain.Good, Rarity: domain.RarityRare})

	res, err := env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 630, res.Damage)
	assert.Equal(t, 63, res.Score)
	assert.Equal(t, []string{"ae-2"}, env.effectsOf(t, "m1"))
}

func TestPlayerAttackPreconditions(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")
	env.addMember(t, "dead", func(m *domain.Member) { m.Die() })
	env.addTask(t, doneTask("t1", 4, nil))
	env.addTask(t, openTask("t-open", 1, "m1"))
	env.seed(t, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertProject(ctx, domain.Project{ID: "p2", Name: "other", Status: domain.ProjectActive, CreatedAt: t0}); err != nil {
			return err
		}
		return tx.InsertTask(ctx, domain.Task{ID: "t-foreign", ProjectID: "p2", Title: "x", Status: domain.TaskDone, Priority: 1, CreatedAt: t0})
	})
	env.setupBoss(t)

	_, err := env.Game.PlayerAttack(env.Ctx, "p1", "ghost", "t1")
	requireCode(t, err, apperr.CodeMemberNotInProject)

	_, err = env.Game.PlayerAttack(env.Ctx, "p1", "dead", "t1")
	assert.ErrorIs(t, err, apperr.ErrMemberDead)

	_, err = env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t-open")
	requireCode(t, err, apperr.CodeTaskNotCompleted)

	_, err = env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t-foreign")
	requireCode(t, err, apperr.CodeTaskNotInProject)

	_, err = env.Game.PlayerAttack(env.Ctx, "p1", "m1", "missing")
	assert.True(t, apperr.IsNotFound(err))

	assert.Empty(t, env.entries(t, events.UserAttack))
	assert.Equal(t, 0, env.member(t, "m1").Score)
}

func TestPlayerAttackNeedsSetUpBoss(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")
	env.addTask(t, doneTask("t1", 4, nil))
	env.seed(t, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertBoss(ctx, domain.NewBoss("b0", "p1", t0))
	})
	_, err := env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t1")
	requireCode(t, err, apperr.CodeBossNotSetUp)
}

func TestSpecialBossDiesWithoutPhaseCheck(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.seed(t, func(ctx context.Context, tx store.Tx) error {
		return tx.UpsertBossType(ctx, domain.BossType{ID: "dragon", Name: "Dragon", Category: domain.BossSpecial})
	})
	env.addMember(t, "m1")
	env.addTask(t, doneTask("t1", 4, ptr(t0)))
	_, err := env.Game.SpecialBossSetup(env.Ctx, "p1")
	require.NoError(t, err)
	env.Clock.Advance(time.Minute)
	require.NoError(t, events.Writer{Log: env.Store.Log(), Now: env.Clock.Now}.Append(env.Ctx, "p1", events.ActorUser, "user-m1", events.TaskCreated, events.Payload{"task_id": "t9", "priority": 5}))
	env.seed(t, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.ActiveBoss(ctx, "p1")
		if err != nil {
			return err
		}
		if err := b.SetHP(200); err != nil {
			return err
		}
		return tx.UpdateBoss(ctx, b)
	})

	res, err := env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t1")
	require.NoError(t, err)
	assert.True(t, res.BossKilled)
	assert.False(t, res.NextPhase)
	assert.Equal(t, domain.BossDead, res.Boss.Status)
	assert.Equal(t, 0, env.boss(t).HP)
	assert.Len(t, env.entries(t, events.KillBoss), 1)
	assert.Empty(t, env.entries(t, events.BossNextPhase))
}

func TestNormalBossDiesWithoutBacklogGrowth(t *testing.T) {
	cfg := game.DefaultConfig()
	cfg.BaseBossHP = 100
	env := newTestEnv(t, cfg)
	env.addMember(t, "m1")
	env.addTask(t, doneTask("t1", 4, ptr(t0)))
	env.addTask(t, openTask("t2", 1, "m1"))
	b := env.setupBoss(t)
	assert.Equal(t, 550, b.MaxHP)

	res, err := env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t1")
	require.NoError(t, err)
	assert.True(t, res.BossKilled)
	assert.False(t, res.NextPhase)
	assert.Equal(t, domain.BossDead, env.boss(t).Status)
	assert.Equal(t, 1, env.boss(t).Phase)
	assert.Len(t, env.entries(t, events.KillBoss), 1)

	_, err = env.Game.BossAttack(env.Ctx, "p1", "t2")
	assert.ErrorIs(t, err, apperr.ErrBossDead)

	phase, err := env.Game.NextPhaseBossSetup(env.Ctx, "p1")
	require.NoError(t, err)
	assert.False(t, phase.Advanced)
	assert.Equal(t, 0, phase.NetChange)
}

func TestNextPhaseFromNetPriorityChange(t *testing.T) {
	cfg := game.DefaultConfig()
	cfg.BaseBossHP = 100
	env := newTestEnv(t, cfg)
	env.addMember(t, "m1")
	env.addTask(t, doneTask("t1", 4, nil))
	env.addTask(t, doneTask("t2", 4, nil))
	b := env.setupBoss(t)
	require.Equal(t, 850, b.MaxHP)

	_, err := env.Game.NextPhaseBossSetup(env.Ctx, "p1")
	requireCode(t, err, apperr.CodeInvalidBossPhase)

	env.Clock.Advance(time.Minute)
	w := events.Writer{Log: env.Store.Log(), Now: env.Clock.Now}
	require.NoError(t, w.Append(env.Ctx, "p1", events.ActorUser, "user-m1", events.TaskCreated, events.Payload{"task_id": "t3", "priority": 5}))
	require.NoError(t, w.Append(env.Ctx, "p1", events.ActorUser, "user-m1", events.TaskDeleted, events.Payload{"task_id": "t3", "priority": 2}))

	res, err := env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t1")
	require.NoError(t, err)
	assert.True(t, res.NextPhase)
	assert.False(t, res.BossKilled)
	assert.Equal(t, 2, res.Boss.Phase)
	assert.Equal(t, 350, res.Boss.MaxHP)
	assert.Equal(t, 350, res.Boss.HP)
	assert.Equal(t, domain.BossAlive, res.Boss.Status)
	assert.Equal(t, t0.Add(time.Minute), res.Boss.UpdatedAt)
	assert.Equal(t, res.Boss, env.boss(t))

	advanced := env.entries(t, events.BossNextPhase)
	require.Len(t, advanced, 1)
	assert.Equal(t, 3, advanced[0].Payload["net_change"])
	assert.Empty(t, env.entries(t, events.KillBoss))

	// history logged at the restamp instant is not counted again
	res, err = env.Game.PlayerAttack(env.Ctx, "p1", "m1", "t2")
	require.NoError(t, err)
	assert.True(t, res.BossKilled)
	assert.Equal(t, 2, env.boss(t).Phase)
}

func TestBossAttackIsPerMember(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	guard := domain.Effect{ID: "guard", Type: domain.DefenceBuff, Value: 0.5, Polarity: domain.Good, Rarity: domain.RarityRare}
	exposed := domain.Effect{ID: "exposed", Type: domain.DefenceDebuff, Value: 0.5, Polarity: domain.Bad, Rarity: domain.RarityCommon}
	sharp := domain.Effect{ID: "sharp", Type: domain.DamageBuff, Value: 0.2, Polarity: domain.Good, Rarity: domain.RarityCommon}
	for _, id := range []string{"m1", "m2", "m3"} {
		env.addMember(t, id)
	}
	env.addMember(t, "m4", func(m *domain.Member) { m.Die() })
	env.grantEffect(t, "ae-1", "m1", guard)
	env.grantEffect(t, "ae-2", "m2", guard)
	env.grantEffect(t, "ae-3", "m2", sharp)
	env.grantEffect(t, "ae-4", "m3", exposed)
	env.addTask(t, openTask("t1", 2, "m1", "m2", "m3", "m4"))
	b := env.setupBoss(t)

	res, err := env.Game.BossAttack(env.Ctx, "p1", "t1")
	require.NoError(t, err)
	require.Len(t, res.Hits, 4)
	assert.Equal(t, 10, res.Hits[0].Damage)
	assert.Equal(t, []string{"ae-1"}, res.Hits[0].Consumed)
	assert.Equal(t, 10, res.Hits[1].Damage)
	assert.Equal(t, []string{"ae-2"}, res.Hits[1].Consumed)
	assert.Equal(t, 30, res.Hits[2].Damage)
	assert.True(t, res.Hits[3].Skipped)
	assert.Equal(t, 50, res.Damage())

	assert.Equal(t, 90, env.member(t, "m1").HP)
	assert.Equal(t, 90, env.member(t, "m2").HP)
	assert.Equal(t, 70, env.member(t, "m3").HP)
	assert.Empty(t, env.effectsOf(t, "m1"))
	assert.Equal(t, []string{"ae-3"}, env.effectsOf(t, "m2"))
	assert.Empty(t, env.effectsOf(t, "m3"))

	logged := env.entries(t, events.BossAttack)
	require.Len(t, logged, 3)
	for _, e := range logged {
		assert.Equal(t, events.ActorBoss, e.ActorType)
		assert.Equal(t, b.ID, e.ActorID)
	}
}

func TestBossAttackKillsMember(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1", func(m *domain.Member) { m.HP = 15 })
	env.addTask(t, openTask("t1", 2, "m1"))
	env.setupBoss(t)

	res, err := env.Game.BossAttack(env.Ctx, "p1", "t1")
	require.NoError(t, err)
	assert.True(t, res.Hits[0].Killed)
	m := env.member(t, "m1")
	assert.Equal(t, 0, m.HP)
	assert.Equal(t, domain.MemberDead, m.Status)
	assert.Len(t, env.entries(t, events.KillPlayer), 1)
}

func TestBossAttackPreconditions(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")
	env.addTask(t, openTask("t-free", 1))
	env.addTask(t, doneTask("t-done", 1, nil, "m1"))
	env.setupBoss(t)

	_, err := env.Game.BossAttack(env.Ctx, "p1", "t-free")
	requireCode(t, err, apperr.CodeTaskNoAssignees)
	_, err = env.Game.BossAttack(env.Ctx, "p1", "t-done")
	requireCode(t, err, apperr.CodeTaskCompleted)
	assert.Equal(t, 100, env.member(t, "m1").HP)
}

func TestPlayerHeal(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")
	env.addMember(t, "m2", func(m *domain.Member) { m.HP = 10 })
	env.addMember(t, "m3", func(m *domain.Member) { m.Die() })

	res, err := env.Game.PlayerHeal(env.Ctx, "p1", "m1", "m2", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Amount)
	assert.Equal(t, 60, res.HP)

	res, err = env.Game.PlayerHeal(env.Ctx, "p1", "m1", "m2", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, res.HP)
	assert.Equal(t, 100, env.member(t, "m2").HP)

	_, err = env.Game.PlayerHeal(env.Ctx, "p1", "m1", "m3", 50)
	assert.ErrorIs(t, err, apperr.ErrMemberDead)
	_, err = env.Game.PlayerHeal(env.Ctx, "p1", "m3", "m1", 50)
	assert.ErrorIs(t, err, apperr.ErrMemberDead)

	logged := env.entries(t, events.Heal)
	require.Len(t, logged, 2)
	assert.Equal(t, "m1", logged[0].ActorID)
	assert.Equal(t, "m2", logged[0].Payload["target_id"])
}

func TestPlayerRevive(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1", func(m *domain.Member) { m.Score = 50 })
	env.addMember(t, "m2", func(m *domain.Member) {
		m.Score = 51
		m.Die()
	})

	_, err := env.Game.PlayerRevive(env.Ctx, "p1", "m1")
	assert.ErrorIs(t, err, apperr.ErrMemberAlive)
	assert.Equal(t, 50, env.member(t, "m1").Score)

	m, err := env.Game.PlayerRevive(env.Ctx, "p1", "m2")
	require.NoError(t, err)
	assert.Equal(t, 25, m.Score)
	assert.Equal(t, 100, m.HP)
	assert.Equal(t, domain.MemberAlive, m.Status)
	assert.Len(t, env.entries(t, events.RevivePlayer), 1)
}

func supportCatalog() []domain.Effect {
	return []domain.Effect{
		{ID: "bad-rare", Type: domain.DamageDebuff, Value: 0.3, Polarity: domain.Bad, Rarity: domain.RarityRare},
		{ID: "bad-common", Type: domain.DefenceDebuff, Value: 0.1, Polarity: domain.Bad, Rarity: domain.RarityCommon},
		{ID: "good-common", Type: domain.DamageBuff, Value: 0.1, Polarity: domain.Good, Rarity: domain.RarityCommon},
		{ID: "good-rare", Type: domain.DefenceBuff, Value: 0.25, Polarity: domain.Good, Rarity: domain.RarityRare},
		{ID: "good-epic", Type: domain.HealEffect, Value: 50, Polarity: domain.Good, Rarity: domain.RarityEpic},
	}
}

func TestPlayerSupport(t *testing.T) {
	onTime := domain.Task{
		ID: "t1", Status: domain.TaskDone, Priority: 1,
		CreatedAt: t0.Add(-10 * 24 * time.Hour), Deadline: ptr(t0), CompletedAt: ptr(t0.Add(-5 * 24 * time.Hour)),
		Assignees: []string{"m1", "m2", "m3"},
	}
	late := onTime
	late.Deadline = ptr(t0.Add(-5 * 24 * time.Hour))
	late.CompletedAt = ptr(t0)

	cases := []struct {
		name          string
		task          domain.Task
		sentiment     int
		rand          []int
		reporterScore int
		kind          game.GrantKind
		effect        string
		event         events.Type
	}{
		{name: "item from good rare", task: onTime, sentiment: 3, rand: []int{0}, reporterScore: 126, kind: game.GrantItem, effect: "good-rare", event: events.GiveItem},
		{name: "buff from good rare", task: onTime, sentiment: 3, rand: []int{1}, reporterScore: 126, kind: game.GrantEffect, effect: "good-rare", event: events.ApplyBuff},
		{name: "heal from good epic", task: onTime, sentiment: 5, rand: []int{1}, reporterScore: 101, kind: game.GrantHeal, effect: "good-epic", event: events.Heal},
		{name: "no item falls back to effect", task: onTime, sentiment: 1, rand: []int{0}, reporterScore: 151, kind: game.GrantEffect, effect: "good-common", event: events.ApplyBuff},
		{name: "debuff when late", task: late, sentiment: 4, rand: []int{1}, reporterScore: 64, kind: game.GrantEffect, effect: "bad-common", event: events.ApplyDebuff},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, game.DefaultConfig())
			env.Game.Rand = &random.Sequence{Values: tc.rand}
			env.addMember(t, "m1")
			env.addMember(t, "m2", func(m *domain.Member) { m.HP = 20 })
			env.addMember(t, "m3", func(m *domain.Member) { m.Die() })
			env.addTask(t, tc.task)
			env.seed(t, func(ctx context.Context, tx store.Tx) error {
				for _, e := range supportCatalog() {
					if err := tx.UpsertEffect(ctx, e); err != nil {
						return err
					}
				}
				if err := tx.UpsertItem(ctx, domain.Item{ID: "shield", Name: "Shield", EffectID: "good-rare"}); err != nil {
					return err
				}
				return tx.UpsertItem(ctx, domain.Item{ID: "potion", Name: "Potion", EffectID: "good-epic"})
			})

			res, err := env.Game.PlayerSupport(env.Ctx, domain.Report{ID: "r1", ProjectID: "p1", TaskID: "t1", ReporterID: "m1", Sentiment: tc.sentiment, CreatedAt: t0})
			require.NoError(t, err)
			assert.Equal(t, tc.reporterScore, res.ReporterScore)
			assert.Equal(t, tc.reporterScore, env.member(t, "m1").Score)
			require.Len(t, res.Grants, 2)

			got := res.Grants[0]
			assert.Equal(t, "m2", got.MemberID)
			assert.True(t, got.Applied)
			assert.Equal(t, tc.kind, got.Kind)
			require.NotNil(t, got.Effect)
			assert.Equal(t, tc.effect, got.Effect.ID)
			assert.Len(t, env.entries(t, tc.event), 1)

			dead := res.Grants[1]
			assert.False(t, dead.Applied)
			assert.Equal(t, "receiver is dead", dead.Reason)

			switch tc.kind {
			case game.GrantHeal:
				assert.Equal(t, 50, got.HealAmount)
				assert.Equal(t, 70, env.member(t, "m2").HP)
				assert.Empty(t, env.effectsOf(t, "m2"))
			case game.GrantEffect:
				assert.Equal(t, []string{got.GrantID}, env.effectsOf(t, "m2"))
			}
		})
	}
}

func TestPlayerSupportWithEmptyCatalog(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")
	env.addMember(t, "m2")
	env.addTask(t, doneTask("t1", 2, nil, "m1", "m2"))

	res, err := env.Game.PlayerSupport(env.Ctx, domain.Report{ID: "r1", ProjectID: "p1", TaskID: "t1", ReporterID: "m1", Sentiment: 4})
	require.NoError(t, err)
	require.Len(t, res.Grants, 1)
	assert.False(t, res.Grants[0].Applied)
	assert.Equal(t, "no effect available", res.Grants[0].Reason)
}

func TestPlayerUseItem(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1", func(m *domain.Member) { m.HP = 30 })
	env.addMember(t, "m2", func(m *domain.Member) { m.Die() })
	env.seed(t, func(ctx context.Context, tx store.Tx) error {
		for _, e := range supportCatalog() {
			if err := tx.UpsertEffect(ctx, e); err != nil {
				return err
			}
		}
		items := []domain.Item{
			{ID: "shield", Name: "Shield", EffectID: "good-rare"},
			{ID: "potion", Name: "Potion", EffectID: "good-epic"},
			{ID: "pebble", Name: "Pebble"},
		}
		for _, it := range items {
			if err := tx.UpsertItem(ctx, it); err != nil {
				return err
			}
		}
		owned := []domain.OwnedItem{
			{ID: "oi-1", MemberID: "m1", Item: items[0], ObtainedAt: t0},
			{ID: "oi-2", MemberID: "m1", Item: items[1], ObtainedAt: t0},
			{ID: "oi-3", MemberID: "m1", Item: items[2], ObtainedAt: t0},
			{ID: "oi-4", MemberID: "m2", Item: items[0], ObtainedAt: t0},
		}
		for _, oi := range owned {
			if err := tx.InsertOwnedItem(ctx, oi); err != nil {
				return err
			}
		}
		return nil
	})

	res, err := env.Game.PlayerUseItem(env.Ctx, "p1", "m1", "oi-2")
	require.NoError(t, err)
	assert.Equal(t, 50, res.HealAmount)
	assert.Equal(t, 80, res.HP)
	assert.Empty(t, res.ActiveEffectID)

	res, err = env.Game.PlayerUseItem(env.Ctx, "p1", "m1", "oi-1")
	require.NoError(t, err)
	require.NotEmpty(t, res.ActiveEffectID)
	assert.Equal(t, []string{res.ActiveEffectID}, env.effectsOf(t, "m1"))

	_, err = env.Game.PlayerUseItem(env.Ctx, "p1", "m1", "oi-1")
	requireCode(t, err, apperr.CodeItemNotOwned)

	res, err = env.Game.PlayerUseItem(env.Ctx, "p1", "m1", "oi-3")
	require.NoError(t, err)
	assert.Nil(t, res.Effect)

	_, err = env.Game.PlayerUseItem(env.Ctx, "p1", "m1", "oi-4")
	requireCode(t, err, apperr.CodeItemNotOwned)
	_, err = env.Game.PlayerUseItem(env.Ctx, "p1", "m2", "oi-4")
	assert.ErrorIs(t, err, apperr.ErrMemberDead)

	assert.Len(t, env.entries(t, events.UseItem), 3)
	assert.Len(t, env.entries(t, events.Heal), 1)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig())
	env.addMember(t, "m1")
	env.addTask(t, doneTask("t1", 1, nil))
	env.grantEffect(t, "ae-1", "m1", domain.Effect{ID: "guard", Type: domain.DefenceBuff, Value: 0.5, Polarity: domain.Good, Rarity: domain.RarityRare})

	snap, err := env.Game.Status(env.Ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, snap.Boss)

	env.setupBoss(t)
	snap, err = env.Game.Status(env.Ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, snap.Boss)
	require.Len(t, snap.Members, 1)
	assert.Len(t, snap.Members[0].Effects, 1)
	assert.Empty(t, snap.Members[0].Items)
}
