package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/engine"
	"taskraid/internal/events"
	"taskraid/internal/game"
	"taskraid/internal/random"
	"taskraid/internal/store/memstore"
)

type testEnv struct {
	Engine  engine.Engine
	Store   *memstore.Store
	Ctx     context.Context
	now     time.Time
	Project domain.Project
}

func (env *testEnv) advance(d time.Duration) { env.now = env.now.Add(d) }

func newTestEnv(t *testing.T, mutate ...func(*game.Config)) *testEnv {
	t.Helper()
	env := &testEnv{Store: memstore.New(), Ctx: context.Background(), now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return env.now }
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	cfg := game.DefaultConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	g := game.New(env.Store, cfg, &random.Sequence{Values: []int{0}})
	g.Now, g.NewID, g.Logger = clock, ids, quiet
	eng := engine.New(env.Store, g)
	eng.Now, eng.NewID, eng.Logger = clock, ids, quiet
	env.Engine = eng

	if err := eng.SeedCatalog(env.Ctx, engine.Catalog{
		BossTypes: []domain.BossType{
			{ID: "slime", Name: "Slime", Category: domain.BossNormal},
			{ID: "dragon", Name: "Dragon", Category: domain.BossSpecial},
		},
		Effects: []domain.Effect{{ID: "guard", Type: domain.DefenceBuff, Value: 0.5, Polarity: domain.Good, Rarity: domain.RarityRare}},
		Items:   []domain.Item{{ID: "shield", Name: "Shield", EffectID: "guard"}},
	}); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	p, err := eng.CreateProject(env.Ctx, engine.ProjectCreateOptions{ID: "proj-1", Name: "raid", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	env.Project = p
	return env
}

func (env *testEnv) count(t *testing.T, typ events.Type) int {
	t.Helper()
	out, err := env.Store.Log().Find(env.Ctx, events.Filter{ProjectID: "proj-1", Types: []events.Type{typ}})
	if err != nil {
		t.Fatal(err)
	}
	return len(out)
}

func hasCode(err error, code apperr.Code) bool {
	var ae *apperr.Error
	return errors.As(err, &ae) && ae.Code == code
}

func TestCreateProjectEnrollsOwner(t *testing.T) {
	env := newTestEnv(t)
	members, err := env.Engine.ListMembers(env.Ctx, "proj-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].UserID != "alice" || members[0].HP != domain.DefaultMemberHP {
		t.Fatalf("unexpected members: %+v", members)
	}
	snap, err := env.Engine.Status(env.Ctx, "proj-1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Boss == nil || snap.Boss.Initialized() {
		t.Fatalf("expected an uninitialized boss, got %+v", snap.Boss)
	}
	if env.count(t, events.ProjectCreated) != 1 || env.count(t, events.MemberJoined) != 1 {
		t.Fatalf("expected creation events")
	}
	if _, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Name: "  ", OwnerID: "alice"}); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "Do work", ActorID: "alice"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Priority != 1 || task.Status != domain.TaskTodo {
		t.Fatalf("unexpected defaults: %+v", task)
	}
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: domain.TaskInProgress, ActorID: "alice"})
	if err != nil || task.Status != domain.TaskInProgress {
		t.Fatalf("to in_progress: %v", err)
	}
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: domain.TaskTodo, ActorID: "alice"})
	if err != nil || task.Status != domain.TaskTodo {
		t.Fatalf("back to todo: %v", err)
	}
	// completion only goes through CompleteTask
	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: domain.TaskDone, ActorID: "alice"})
	if !hasCode(err, apperr.CodeTaskInvalidTransition) {
		t.Fatalf("expected transition error, got %v", err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "alice"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	title := "renamed"
	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Title: &title, ActorID: "alice"})
	if !hasCode(err, apperr.CodeTaskCompleted) {
		t.Fatalf("expected completed task to be frozen, got %v", err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "alice"); !hasCode(err, apperr.CodeTaskCompleted) {
		t.Fatalf("expected second completion to fail, got %v", err)
	}
	if env.count(t, events.TaskUpdated) != 2 || env.count(t, events.TaskCompleted) != 1 {
		t.Fatalf("unexpected event counts")
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", ActorID: "alice"}); !hasCode(err, apperr.CodeTaskInvalidTitle) {
		t.Fatalf("expected title error, got %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "x", Priority: -2, ActorID: "alice"}); !hasCode(err, apperr.CodeTaskInvalidPriority) {
		t.Fatalf("expected priority error, got %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "x", ActorID: "mallory"}); !apperr.IsPermission(err) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "nope", Title: "x", ActorID: "alice"}); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompleteTaskAttacksBoss(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "ship", Priority: 4, ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.Engine.CompleteTask(env.Ctx, task.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if res.Attack != nil {
		t.Fatalf("no boss is set up yet, got attack %+v", res.Attack)
	}

	other, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "polish", Priority: 4, ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	boss, err := env.Engine.SetupBoss(env.Ctx, "proj-1", "alice")
	if err != nil {
		t.Fatalf("setup boss: %v", err)
	}
	if boss.MaxHP != 8500 {
		t.Fatalf("expected max hp 8500, got %d", boss.MaxHP)
	}
	res, err = env.Engine.CompleteTask(env.Ctx, other.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if res.Attack == nil || res.Attack.Damage != 1260 || res.Attack.Boss.HP != 8500-1260 {
		t.Fatalf("unexpected attack: %+v", res.Attack)
	}
	if res.Task.CompletedAt == nil || !res.Task.CompletedAt.Equal(env.now) {
		t.Fatalf("completed_at not stamped: %+v", res.Task)
	}
}

func TestDeletedTasksShrinkNextPhase(t *testing.T) {
	env := newTestEnv(t, func(c *game.Config) { c.BaseBossHP = 100 })
	first, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "first", Priority: 4, ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetupBoss(env.Ctx, "proj-1", "alice"); err != nil {
		t.Fatal(err)
	}
	env.advance(time.Minute)
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "added", Priority: 5, ActorID: "alice"}); err != nil {
		t.Fatal(err)
	}
	dropped, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "dropped", Priority: 2, ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, dropped.ID, "alice"); err != nil {
		t.Fatal(err)
	}

	res, err := env.Engine.CompleteTask(env.Ctx, first.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	// net change 5 + 2 - 2 = 5 with one member
	if res.Attack == nil || !res.Attack.NextPhase || res.Attack.Boss.Phase != 2 || res.Attack.Boss.MaxHP != 550 {
		t.Fatalf("expected phase two, got %+v", res.Attack)
	}
	if _, err := env.Engine.GetTask(env.Ctx, dropped.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected deleted task to be gone, got %v", err)
	}
}

func TestAssignAndUnassign(t *testing.T) {
	env := newTestEnv(t)
	bob, err := env.Engine.JoinProject(env.Ctx, "proj-1", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.JoinProject(env.Ctx, "proj-1", "bob"); !hasCode(err, apperr.CodeMemberExists) {
		t.Fatalf("expected duplicate join to fail, got %v", err)
	}
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "pair", ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	task, err = env.Engine.AssignMember(env.Ctx, task.ID, bob.ID, "alice")
	if err != nil || !task.AssignedTo(bob.ID) {
		t.Fatalf("assign: %v", err)
	}
	if _, err := env.Engine.AssignMember(env.Ctx, task.ID, bob.ID, "alice"); !hasCode(err, apperr.CodeTaskAlreadyAssigned) {
		t.Fatalf("expected already assigned, got %v", err)
	}
	if _, err := env.Engine.AssignMember(env.Ctx, task.ID, "ghost", "alice"); !hasCode(err, apperr.CodeMemberNotInProject) {
		t.Fatalf("expected unknown member, got %v", err)
	}
	task, err = env.Engine.UnassignMember(env.Ctx, task.ID, bob.ID, "bob")
	if err != nil || task.AssignedTo(bob.ID) {
		t.Fatalf("unassign: %v", err)
	}
	if _, err := env.Engine.UnassignMember(env.Ctx, task.ID, bob.ID, "bob"); !hasCode(err, apperr.CodeTaskNotAssigned) {
		t.Fatalf("expected not assigned, got %v", err)
	}
	if env.count(t, events.AssignUser) != 1 || env.count(t, events.UnassignUser) != 1 {
		t.Fatalf("unexpected assignment events")
	}
}

func TestMembershipAndOwnership(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.JoinProject(env.Ctx, "proj-1", "bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetupBoss(env.Ctx, "proj-1", "bob"); !apperr.IsPermission(err) {
		t.Fatalf("expected owner check, got %v", err)
	}
	if err := env.Engine.LeaveProject(env.Ctx, "proj-1", "alice"); !hasCode(err, apperr.CodeOwnerCannotLeave) {
		t.Fatalf("expected owner to stay, got %v", err)
	}
	if err := env.Engine.LeaveProject(env.Ctx, "proj-1", "bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Status(env.Ctx, "proj-1", "bob"); !apperr.IsPermission(err) {
		t.Fatalf("expected former member to be rejected, got %v", err)
	}
	if _, err := env.Engine.CloseProject(env.Ctx, "proj-1", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "late", ActorID: "alice"}); !hasCode(err, apperr.CodeProjectClosed) {
		t.Fatalf("expected closed project, got %v", err)
	}
	if env.count(t, events.MemberLeft) != 1 || env.count(t, events.ProjectClosed) != 1 {
		t.Fatalf("unexpected events")
	}
}

func TestReviveRules(t *testing.T) {
	env := newTestEnv(t)
	bob, err := env.Engine.JoinProject(env.Ctx, "proj-1", "bob")
	if err != nil {
		t.Fatal(err)
	}
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "risky", Priority: 10, ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AssignMember(env.Ctx, task.ID, bob.ID, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetupBoss(env.Ctx, "proj-1", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Revive(env.Ctx, "proj-1", "bob", ""); !errors.Is(err, apperr.ErrMemberAlive) {
		t.Fatalf("expected alive member to be rejected, got %v", err)
	}
	// ten priority ten hits at base damage 10 bring 100 hp to zero
	if _, err := env.Engine.Game.BossAttack(env.Ctx, "proj-1", task.ID); err != nil {
		t.Fatal(err)
	}
	members, err := env.Engine.ListMembers(env.Ctx, "proj-1")
	if err != nil {
		t.Fatal(err)
	}
	var alice domain.Member
	for _, m := range members {
		if m.UserID == "alice" {
			alice = m
		}
	}
	if _, err := env.Engine.Revive(env.Ctx, "proj-1", "bob", alice.ID); !apperr.IsPermission(err) {
		t.Fatalf("expected only the owner to revive others, got %v", err)
	}
	m, err := env.Engine.Revive(env.Ctx, "proj-1", "alice", bob.ID)
	if err != nil {
		t.Fatalf("owner revive: %v", err)
	}
	if !m.Alive() || m.HP != m.MaxHP {
		t.Fatalf("unexpected revived member %+v", m)
	}
}

func TestHealValueBounds(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.Heal(env.Ctx, "proj-1", "alice", "x", 120); !hasCode(err, apperr.CodeInvalidHealValue) {
		t.Fatalf("expected heal value error, got %v", err)
	}
}

func TestSeedCatalogRejectsDanglingItem(t *testing.T) {
	env := newTestEnv(t)
	err := env.Engine.SeedCatalog(env.Ctx, engine.Catalog{Items: []domain.Item{{ID: "orb", Name: "Orb", EffectID: "missing"}}})
	if err == nil {
		t.Fatalf("expected dangling effect reference to fail")
	}
	err = env.Engine.SeedCatalog(env.Ctx, engine.Catalog{Effects: []domain.Effect{{ID: "x", Type: domain.DamageDebuff, Value: 1, Polarity: domain.Bad, Rarity: domain.RarityEpic}}})
	if err == nil {
		t.Fatalf("expected bad epic effect to fail")
	}
}

func TestEventsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	for i := range 3 {
		env.advance(time.Second)
		if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: fmt.Sprintf("t%d", i), ActorID: "alice"}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := env.Engine.Events(env.Ctx, engine.EventQuery{ProjectID: "proj-1", ActorID: "alice", Types: []events.Type{events.TaskCreated}, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Payload["title"] != "t2" || got[1].Payload["title"] != "t1" {
		t.Fatalf("unexpected events: %+v", got)
	}
	if _, err := env.Engine.Events(env.Ctx, engine.EventQuery{ProjectID: "proj-1", ActorID: "mallory"}); !apperr.IsPermission(err) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestBossAttackIsOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	bob, err := env.Engine.JoinProject(env.Ctx, "proj-1", "bob")
	if err != nil {
		t.Fatal(err)
	}
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "late", Priority: 2, ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AssignMember(env.Ctx, task.ID, bob.ID, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetupBoss(env.Ctx, "proj-1", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.BossAttack(env.Ctx, "proj-1", "bob", task.ID); !apperr.IsPermission(err) {
		t.Fatalf("expected permission error, got %v", err)
	}
	res, err := env.Engine.BossAttack(env.Ctx, "proj-1", "alice", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Damage() != 20 || len(res.Hits) != 1 || res.Hits[0].HP != 80 {
		t.Fatalf("unexpected boss attack %+v", res)
	}
}

func TestSpecialBossHasNoNextPhase(t *testing.T) {
	env := newTestEnv(t, func(c *game.Config) { c.BaseSpecialBossHP = 100 })
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "slay", Priority: 4, ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	boss, err := env.Engine.SetupSpecialBoss(env.Ctx, "proj-1", "alice")
	if err != nil {
		t.Fatalf("setup special boss: %v", err)
	}
	if boss.Category() != domain.BossSpecial || boss.MaxHP != 100 {
		t.Fatalf("unexpected special boss %+v", boss)
	}
	env.advance(time.Minute)
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "more", Priority: 3, ActorID: "alice"}); err != nil {
		t.Fatal(err)
	}
	res, err := env.Engine.CompleteTask(env.Ctx, task.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if res.Attack == nil || !res.Attack.BossKilled || res.Attack.NextPhase {
		t.Fatalf("expected the special boss to die for good, got %+v", res.Attack)
	}
	if _, err := env.Engine.NextPhase(env.Ctx, "proj-1", "alice"); !hasCode(err, apperr.CodeInvalidBossPhase) {
		t.Fatalf("expected invalid phase, got %v", err)
	}
}

func TestUpdateProject(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.JoinProject(env.Ctx, "proj-1", "bob"); err != nil {
		t.Fatal(err)
	}
	name, desc := "  Raid night  ", "weekly push"
	p, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: "proj-1", Name: &name, Description: &desc, ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Raid night" || p.Description != "weekly push" {
		t.Fatalf("update not applied: %+v", p)
	}
	if got, _ := env.Engine.GetProject(env.Ctx, "proj-1"); got.Name != "Raid night" {
		t.Fatalf("update not stored: %+v", got)
	}
	if env.count(t, events.ProjectUpdated) != 1 {
		t.Fatalf("expected one update event")
	}

	same := "Raid night"
	if _, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: "proj-1", Name: &same, ActorID: "alice"}); err != nil {
		t.Fatal(err)
	}
	if env.count(t, events.ProjectUpdated) != 1 {
		t.Fatalf("a no-op update must not be logged")
	}

	if _, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: "proj-1", Name: &name, ActorID: "bob"}); !apperr.IsPermission(err) {
		t.Fatalf("expected permission error, got %v", err)
	}
	blank := " "
	if _, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: "proj-1", Name: &blank, ActorID: "alice"}); !hasCode(err, apperr.CodeProjectNameEmpty) {
		t.Fatalf("expected empty name error, got %v", err)
	}
	if _, err := env.Engine.CloseProject(env.Ctx, "proj-1", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: "proj-1", Description: &desc, ActorID: "alice"}); !hasCode(err, apperr.CodeProjectClosed) {
		t.Fatalf("expected closed project error, got %v", err)
	}
}
