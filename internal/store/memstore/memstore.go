// Package memstore is an in-memory store.Store. Units of work are serialized by
// a single mutex and rolled back by discarding a copy of the state.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"taskraid/internal/domain"
	"taskraid/internal/events"
	"taskraid/internal/store"
)

type bossRow struct {
	boss   domain.Boss
	typeID string
	seq    int64
}

type effectRow struct {
	id        string
	memberID  string
	effectID  string
	createdAt time.Time
	seq       int64
}

type itemRow struct {
	id         string
	memberID   string
	itemID     string
	obtainedAt time.Time
	seq        int64
}

type state struct {
	projects      map[string]domain.Project
	tasks         map[string]domain.Task
	members       map[string]domain.Member
	bosses        map[string]bossRow
	bossTypes     map[string]domain.BossType
	effects       map[string]domain.Effect
	items         map[string]domain.Item
	activeEffects map[string]effectRow
	ownedItems    map[string]itemRow
	reports       map[string]domain.Report
	seq           int64
}

func newState() state {
	return state{
		projects:      map[string]domain.Project{},
		tasks:         map[string]domain.Task{},
		members:       map[string]domain.Member{},
		bosses:        map[string]bossRow{},
		bossTypes:     map[string]domain.BossType{},
		effects:       map[string]domain.Effect{},
		items:         map[string]domain.Item{},
		activeEffects: map[string]effectRow{},
		ownedItems:    map[string]itemRow{},
		reports:       map[string]domain.Report{},
	}
}

func (s state) clone() state {
	return state{
		projects:      maps.Clone(s.projects),
		tasks:         maps.Clone(s.tasks),
		members:       maps.Clone(s.members),
		bosses:        maps.Clone(s.bosses),
		bossTypes:     maps.Clone(s.bossTypes),
		effects:       maps.Clone(s.effects),
		items:         maps.Clone(s.items),
		activeEffects: maps.Clone(s.activeEffects),
		ownedItems:    maps.Clone(s.ownedItems),
		reports:       maps.Clone(s.reports),
		seq:           s.seq,
	}
}

// Store is safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	st  state
	log *events.MemoryLog
}

func New() *Store {
	return &Store{st: newState(), log: events.NewMemoryLog()}
}

// Log exposes the event log for assertions outside a unit of work.
func (s *Store) Log() *events.MemoryLog {
	return s.log
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	mark := s.log.Len()
	unit := &tx{st: s.st.clone(), log: s.log}
	if err := fn(ctx, unit); err != nil {
		s.log.Truncate(mark)
		return err
	}
	s.st = unit.st
	return nil
}

type tx struct {
	st  state
	log *events.MemoryLog
}

func (t *tx) Log() events.Log { return t.log }

func (t *tx) next() int64 {
	t.st.seq++
	return t.st.seq
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, store.ErrNotFound)
}

// --- projects ---

func (t *tx) InsertProject(_ context.Context, p domain.Project) error {
	if _, ok := t.st.projects[p.ID]; ok {
		return fmt.Errorf("project %s already exists", p.ID)
	}
	t.st.projects[p.ID] = p
	return nil
}

func (t *tx) GetProject(_ context.Context, id string) (domain.Project, error) {
	p, ok := t.st.projects[id]
	if !ok {
		return p, notFound("project", id)
	}
	return p, nil
}

func (t *tx) ListProjects(_ context.Context) ([]domain.Project, error) {
	res := slices.Collect(maps.Values(t.st.projects))
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (t *tx) UpdateProject(_ context.Context, p domain.Project) error {
	if _, ok := t.st.projects[p.ID]; !ok {
		return notFound("project", p.ID)
	}
	t.st.projects[p.ID] = p
	return nil
}

// --- tasks ---

func (t *tx) InsertTask(_ context.Context, task domain.Task) error {
	if _, ok := t.st.tasks[task.ID]; ok {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	task.Assignees = slices.Clone(task.Assignees)
	t.st.tasks[task.ID] = task
	return nil
}

func (t *tx) GetTask(_ context.Context, id string) (domain.Task, error) {
	task, ok := t.st.tasks[id]
	if !ok {
		return task, notFound("task", id)
	}
	task.Assignees = slices.Clone(task.Assignees)
	return task, nil
}

func (t *tx) UpdateTask(_ context.Context, task domain.Task) error {
	cur, ok := t.st.tasks[task.ID]
	if !ok {
		return notFound("task", task.ID)
	}
	task.Assignees = cur.Assignees
	t.st.tasks[task.ID] = task
	return nil
}

func (t *tx) DeleteTask(_ context.Context, id string) error {
	if _, ok := t.st.tasks[id]; !ok {
		return notFound("task", id)
	}
	delete(t.st.tasks, id)
	for rid, r := range t.st.reports {
		if r.TaskID == id {
			delete(t.st.reports, rid)
		}
	}
	return nil
}

func (t *tx) ListTasks(_ context.Context, projectID string) ([]domain.Task, error) {
	var res []domain.Task
	for _, task := range t.st.tasks {
		if task.ProjectID == projectID {
			task.Assignees = slices.Clone(task.Assignees)
			res = append(res, task)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (t *tx) AddAssignee(_ context.Context, taskID, memberID string) error {
	task, ok := t.st.tasks[taskID]
	if !ok {
		return notFound("task", taskID)
	}
	if task.AssignedTo(memberID) {
		return nil
	}
	task.Assignees = append(slices.Clone(task.Assignees), memberID)
	t.st.tasks[taskID] = task
	return nil
}

func (t *tx) RemoveAssignee(_ context.Context, taskID, memberID string) error {
	task, ok := t.st.tasks[taskID]
	if !ok {
		return notFound("task", taskID)
	}
	if !task.AssignedTo(memberID) {
		return notFound("assignment", taskID+"/"+memberID)
	}
	task.Assignees = slices.DeleteFunc(slices.Clone(task.Assignees), func(id string) bool { return id == memberID })
	t.st.tasks[taskID] = task
	return nil
}

func (t *tx) PrioritySum(_ context.Context, projectID string) (int, int, error) {
	sum, count := 0, 0
	for _, task := range t.st.tasks {
		if task.ProjectID == projectID {
			sum += task.Priority
			count++
		}
	}
	return sum, count, nil
}

func (t *tx) ListOverdueTasks(_ context.Context, q store.OverdueQuery) ([]domain.Task, error) {
	var res []domain.Task
	for _, task := range t.st.tasks {
		if q.ProjectID != "" && task.ProjectID != q.ProjectID {
			continue
		}
		if task.Done() || task.Deadline == nil || !task.Deadline.Before(q.Now) || len(task.Assignees) == 0 {
			continue
		}
		task.Assignees = slices.Clone(task.Assignees)
		res = append(res, task)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Deadline.Equal(*res[j].Deadline) {
			return res[i].Deadline.Before(*res[j].Deadline)
		}
		return res[i].ID < res[j].ID
	})
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res, nil
}

// --- members ---

func (t *tx) InsertMember(_ context.Context, m domain.Member) error {
	for _, cur := range t.st.members {
		if cur.ProjectID == m.ProjectID && cur.UserID == m.UserID {
			return fmt.Errorf("user %s already joined project %s", m.UserID, m.ProjectID)
		}
	}
	t.st.members[m.ID] = m
	return nil
}

func (t *tx) GetMember(_ context.Context, id string) (domain.Member, error) {
	m, ok := t.st.members[id]
	if !ok {
		return m, notFound("member", id)
	}
	return m, nil
}

func (t *tx) GetMemberByUser(_ context.Context, projectID, userID string) (domain.Member, error) {
	for _, m := range t.st.members {
		if m.ProjectID == projectID && m.UserID == userID {
			return m, nil
		}
	}
	return domain.Member{}, notFound("member", projectID+"/"+userID)
}

func (t *tx) UpdateMember(_ context.Context, m domain.Member) error {
	if _, ok := t.st.members[m.ID]; !ok {
		return notFound("member", m.ID)
	}
	t.st.members[m.ID] = m
	return nil
}

func (t *tx) DeleteMember(_ context.Context, id string) error {
	if _, ok := t.st.members[id]; !ok {
		return notFound("member", id)
	}
	delete(t.st.members, id)
	for tid, task := range t.st.tasks {
		if task.AssignedTo(id) {
			task.Assignees = slices.DeleteFunc(slices.Clone(task.Assignees), func(m string) bool { return m == id })
			t.st.tasks[tid] = task
		}
	}
	for eid, e := range t.st.activeEffects {
		if e.memberID == id {
			delete(t.st.activeEffects, eid)
		}
	}
	for iid, it := range t.st.ownedItems {
		if it.memberID == id {
			delete(t.st.ownedItems, iid)
		}
	}
	return nil
}

func (t *tx) ListMembers(_ context.Context, projectID string) ([]domain.Member, error) {
	var res []domain.Member
	for _, m := range t.st.members {
		if m.ProjectID == projectID {
			res = append(res, m)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].JoinedAt.Equal(res[j].JoinedAt) {
			return res[i].JoinedAt.Before(res[j].JoinedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (t *tx) CountMembers(ctx context.Context, projectID string) (int, error) {
	members, err := t.ListMembers(ctx, projectID)
	return len(members), err
}

// --- bosses ---

func (t *tx) resolveBoss(row bossRow) domain.Boss {
	b := row.boss
	b.Type = nil
	if bt, ok := t.st.bossTypes[row.typeID]; ok {
		b.Type = &bt
	}
	return b
}

func (t *tx) InsertBoss(_ context.Context, b domain.Boss) error {
	if _, ok := t.st.bosses[b.ID]; ok {
		return fmt.Errorf("boss %s already exists", b.ID)
	}
	row := bossRow{boss: b, seq: t.next()}
	if b.Type != nil {
		row.typeID = b.Type.ID
	}
	t.st.bosses[b.ID] = row
	return nil
}

func (t *tx) ActiveBoss(_ context.Context, projectID string) (domain.Boss, error) {
	var (
		latest bossRow
		found  bool
	)
	for _, row := range t.st.bosses {
		if row.boss.ProjectID != projectID {
			continue
		}
		if !found || row.seq > latest.seq {
			latest, found = row, true
		}
	}
	if !found {
		return domain.Boss{}, notFound("boss", projectID)
	}
	return t.resolveBoss(latest), nil
}

func (t *tx) UpdateBoss(_ context.Context, b domain.Boss) error {
	row, ok := t.st.bosses[b.ID]
	if !ok {
		return notFound("boss", b.ID)
	}
	row.boss = b
	row.typeID = ""
	if b.Type != nil {
		row.typeID = b.Type.ID
	}
	t.st.bosses[b.ID] = row
	return nil
}

func (t *tx) UsedBossTypes(_ context.Context, projectID string) ([]string, error) {
	var res []string
	for _, row := range t.st.bosses {
		if row.boss.ProjectID == projectID && row.typeID != "" && !slices.Contains(res, row.typeID) {
			res = append(res, row.typeID)
		}
	}
	sort.Strings(res)
	return res, nil
}

// --- catalog ---

func (t *tx) UpsertBossType(_ context.Context, bt domain.BossType) error {
	t.st.bossTypes[bt.ID] = bt
	return nil
}

func (t *tx) ListBossTypes(_ context.Context, category domain.BossCategory) ([]domain.BossType, error) {
	var res []domain.BossType
	for _, bt := range t.st.bossTypes {
		if category == "" || bt.Category == category {
			res = append(res, bt)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (t *tx) UpsertEffect(_ context.Context, e domain.Effect) error {
	t.st.effects[e.ID] = e
	return nil
}

func (t *tx) GetEffect(_ context.Context, id string) (domain.Effect, error) {
	e, ok := t.st.effects[id]
	if !ok {
		return e, notFound("effect", id)
	}
	return e, nil
}

func (t *tx) ListEffects(_ context.Context) ([]domain.Effect, error) {
	res := slices.Collect(maps.Values(t.st.effects))
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (t *tx) UpsertItem(_ context.Context, it domain.Item) error {
	t.st.items[it.ID] = it
	return nil
}

func (t *tx) GetItem(_ context.Context, id string) (domain.Item, error) {
	it, ok := t.st.items[id]
	if !ok {
		return it, notFound("item", id)
	}
	return it, nil
}

func (t *tx) ListItemsByEffect(_ context.Context, effectID string) ([]domain.Item, error) {
	var res []domain.Item
	for _, it := range t.st.items {
		if it.EffectID == effectID {
			res = append(res, it)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// --- inventory ---

func (t *tx) InsertActiveEffect(_ context.Context, ae domain.ActiveEffect) error {
	if _, ok := t.st.effects[ae.Effect.ID]; !ok {
		return notFound("effect", ae.Effect.ID)
	}
	t.st.activeEffects[ae.ID] = effectRow{id: ae.ID, memberID: ae.MemberID, effectID: ae.Effect.ID, createdAt: ae.CreatedAt, seq: t.next()}
	return nil
}

func (t *tx) ListActiveEffects(_ context.Context, memberID string) ([]domain.ActiveEffect, error) {
	var rows []effectRow
	for _, row := range t.st.activeEffects {
		if row.memberID == memberID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	res := make([]domain.ActiveEffect, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.ActiveEffect{ID: row.id, MemberID: row.memberID, Effect: t.st.effects[row.effectID], CreatedAt: row.createdAt})
	}
	return res, nil
}

func (t *tx) DeleteActiveEffect(_ context.Context, id string) error {
	if _, ok := t.st.activeEffects[id]; !ok {
		return notFound("active effect", id)
	}
	delete(t.st.activeEffects, id)
	return nil
}

func (t *tx) InsertOwnedItem(_ context.Context, oi domain.OwnedItem) error {
	if _, ok := t.st.items[oi.Item.ID]; !ok {
		return notFound("item", oi.Item.ID)
	}
	t.st.ownedItems[oi.ID] = itemRow{id: oi.ID, memberID: oi.MemberID, itemID: oi.Item.ID, obtainedAt: oi.ObtainedAt, seq: t.next()}
	return nil
}

func (t *tx) ListOwnedItems(_ context.Context, memberID string) ([]domain.OwnedItem, error) {
	var rows []itemRow
	for _, row := range t.st.ownedItems {
		if row.memberID == memberID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	res := make([]domain.OwnedItem, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.OwnedItem{ID: row.id, MemberID: row.memberID, Item: t.st.items[row.itemID], ObtainedAt: row.obtainedAt})
	}
	return res, nil
}

func (t *tx) TakeOwnedItem(_ context.Context, memberID, ownedItemID string) (domain.OwnedItem, error) {
	row, ok := t.st.ownedItems[ownedItemID]
	if !ok || row.memberID != memberID {
		return domain.OwnedItem{}, notFound("owned item", ownedItemID)
	}
	delete(t.st.ownedItems, ownedItemID)
	return domain.OwnedItem{ID: row.id, MemberID: row.memberID, Item: t.st.items[row.itemID], ObtainedAt: row.obtainedAt}, nil
}

// --- reports ---

func (t *tx) InsertReport(_ context.Context, r domain.Report) error {
	t.st.reports[r.ID] = r
	return nil
}

func (t *tx) ListReports(_ context.Context, taskID string) ([]domain.Report, error) {
	var res []domain.Report
	for _, r := range t.st.reports {
		if r.TaskID == taskID {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}
