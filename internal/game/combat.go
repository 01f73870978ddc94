package game

import (
	"context"
	"fmt"
	"math"
	"time"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/events"
	"taskraid/internal/store"
)

// AttackResult is the outcome of a member attacking the boss with a task.
type AttackResult struct {
	MemberID    string      `json:"member_id"`
	TaskID      string      `json:"task_id"`
	Damage      int         `json:"damage"`
	Score       int         `json:"score"`
	MemberScore int         `json:"member_score"`
	Boss        domain.Boss `json:"boss"`
	BossKilled  bool        `json:"boss_killed"`
	NextPhase   bool        `json:"next_phase"`
	Consumed    []string    `json:"consumed_effects"`
}

// Hit is the damage one assignee took from a boss attack.
type Hit struct {
	MemberID string   `json:"member_id"`
	Damage   int      `json:"damage"`
	HP       int      `json:"hp"`
	Killed   bool     `json:"killed"`
	Skipped  bool     `json:"skipped,omitempty"`
	Consumed []string `json:"consumed_effects"`
}

type BossAttackResult struct {
	TaskID string `json:"task_id"`
	BossID string `json:"boss_id"`
	Hits   []Hit  `json:"hits"`
}

// Damage reports the total damage dealt across assignees.
func (r BossAttackResult) Damage() int {
	total := 0
	for _, h := range r.Hits {
		total += h.Damage
	}
	return total
}

type HealResult struct {
	HealerID string `json:"healer_id"`
	TargetID string `json:"target_id"`
	Amount   int    `json:"amount"`
	HP       int    `json:"hp"`
	MaxHP    int    `json:"max_hp"`
}

// attackDamage weights the base damage by task priority and by how early the
// task was resolved relative to its deadline window.
func (e Engine) attackDamage(t domain.Task, now time.Time) float64 {
	priorityFactor := float64(t.Priority) / 4
	timeLeft := 0.0
	if t.Deadline != nil {
		window := t.Deadline.Sub(t.CreatedAt)
		if window < time.Second {
			window = time.Second
		}
		timeLeft = t.Deadline.Sub(now).Seconds() / window.Seconds()
	}
	var speed float64
	if timeLeft >= 0 {
		speed = 0.5 + 0.5*timeLeft
	} else {
		speed = 0.5 * math.Exp(-2*-timeLeft)
	}
	speed = math.Max(speed, 0.1)
	priorityWeight := 0.4 + 0.8*priorityFactor
	timeWeight := 0.6 + 0.9*speed
	return e.Config.BasePlayerDamage * priorityWeight * timeWeight
}

// PlayerAttack resolves a member's attack on the active boss with a completed task.
func (e Engine) PlayerAttack(ctx context.Context, projectID, memberID, taskID string) (AttackResult, error) {
	var res AttackResult
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = e.PlayerAttackTx(ctx, tx, projectID, memberID, taskID)
		return err
	})
	return res, err
}

func (e Engine) PlayerAttackTx(ctx context.Context, tx store.Tx, projectID, memberID, taskID string) (AttackResult, error) {
	res := AttackResult{MemberID: memberID, TaskID: taskID, Consumed: []string{}}
	m, err := e.loadAliveMember(ctx, tx, projectID, memberID)
	if err != nil {
		return res, err
	}
	t, err := e.loadTask(ctx, tx, projectID, taskID)
	if err != nil {
		return res, err
	}
	if !t.Done() {
		return res, apperr.WithMetadata(apperr.CodeTaskNotCompleted, fmt.Sprintf("task %s is not completed", taskID), map[string]string{"task_id": taskID})
	}
	b, err := e.activeBoss(ctx, tx, projectID)
	if err != nil {
		return res, err
	}

	now := e.now()
	damage := e.attackDamage(t, now)
	active, err := tx.ListActiveEffects(ctx, m.ID)
	if err != nil {
		return res, err
	}
	var scoreEffects []domain.ActiveEffect
	for _, ae := range active {
		switch ae.Effect.Type {
		case domain.DamageBuff, domain.DamageDebuff:
		case domain.ScoreBonus, domain.ScorePenalty:
			scoreEffects = append(scoreEffects, ae)
			continue
		default:
			continue
		}
		ok, err := consume(ctx, tx, ae)
		if err != nil {
			return res, err
		}
		if !ok {
			continue
		}
		if ae.Effect.Type == domain.DamageBuff {
			damage += ae.Effect.Value * damage
		} else {
			damage -= ae.Effect.Value * damage
		}
		res.Consumed = append(res.Consumed, ae.ID)
	}
	damage = math.Max(damage, 0)
	score := damage * e.Config.AttackScoreRate
	for _, ae := range scoreEffects {
		ok, err := consume(ctx, tx, ae)
		if err != nil {
			return res, err
		}
		if !ok {
			continue
		}
		if ae.Effect.Type == domain.ScoreBonus {
			score += ae.Effect.Value * score
		} else {
			score -= ae.Effect.Value * score
		}
		res.Consumed = append(res.Consumed, ae.ID)
	}
	res.Damage = int(math.Round(damage))
	res.Score = int(math.Round(math.Max(score, 0)))

	m.AddScore(res.Score)
	if err := tx.UpdateMember(ctx, m); err != nil {
		return res, fmt.Errorf("save member: %w", err)
	}
	res.MemberScore = m.Score
	depleted := b.Attacked(res.Damage)
	if err := tx.UpdateBoss(ctx, b); err != nil {
		return res, fmt.Errorf("save boss: %w", err)
	}
	w := e.writer(tx)
	if err := w.Append(ctx, projectID, events.ActorUser, m.ID, events.UserAttack, events.Payload{
		"task_id":   taskID,
		"member_id": m.ID,
		"boss_id":   b.ID,
		"damage":    res.Damage,
		"score":     res.Score,
		"boss_hp":   b.HP,
		"consumed":  res.Consumed,
	}); err != nil {
		return res, err
	}
	res.Boss = b
	if !depleted {
		return res, nil
	}

	if b.Category() == domain.BossNormal {
		phase, err := e.NextPhaseBossSetupTx(ctx, tx, b)
		if err != nil {
			return res, err
		}
		if phase.Advanced {
			res.Boss = phase.Boss
			res.NextPhase = true
			return res, nil
		}
	}
	b.Die()
	if err := tx.UpdateBoss(ctx, b); err != nil {
		return res, fmt.Errorf("save boss: %w", err)
	}
	if err := w.Append(ctx, projectID, events.ActorUser, m.ID, events.KillBoss, events.Payload{
		"boss_id":   b.ID,
		"member_id": m.ID,
		"task_id":   taskID,
		"phase":     b.Phase,
		"category":  string(b.Category()),
	}); err != nil {
		return res, err
	}
	e.logger().Info("boss defeated", "project", projectID, "boss", b.ID, "member", m.ID, "phase", b.Phase)
	res.Boss = b
	res.BossKilled = true
	return res, nil
}

// BossAttack makes the active boss strike every living assignee of an open task.
func (e Engine) BossAttack(ctx context.Context, projectID, taskID string) (BossAttackResult, error) {
	var res BossAttackResult
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = e.BossAttackTx(ctx, tx, projectID, taskID)
		return err
	})
	return res, err
}

func (e Engine) BossAttackTx(ctx context.Context, tx store.Tx, projectID, taskID string) (BossAttackResult, error) {
	res := BossAttackResult{TaskID: taskID, Hits: []Hit{}}
	t, err := e.loadTask(ctx, tx, projectID, taskID)
	if err != nil {
		return res, err
	}
	if len(t.Assignees) == 0 {
		return res, apperr.WithMetadata(apperr.CodeTaskNoAssignees, fmt.Sprintf("task %s has no assignees", taskID), map[string]string{"task_id": taskID})
	}
	if t.Done() {
		return res, apperr.WithMetadata(apperr.CodeTaskCompleted, fmt.Sprintf("task %s is already completed", taskID), map[string]string{"task_id": taskID})
	}
	b, err := e.activeBoss(ctx, tx, projectID)
	if err != nil {
		return res, err
	}
	res.BossID = b.ID
	w := e.writer(tx)
	for _, memberID := range t.Assignees {
		m, err := e.loadMember(ctx, tx, projectID, memberID)
		if err != nil {
			return res, err
		}
		hit := Hit{MemberID: m.ID, HP: m.HP, Consumed: []string{}}
		if !m.Alive() {
			hit.Skipped = true
			res.Hits = append(res.Hits, hit)
			continue
		}
		damage := e.Config.BaseBossDamage * float64(t.Priority)
		active, err := tx.ListActiveEffects(ctx, m.ID)
		if err != nil {
			return res, err
		}
		for _, ae := range active {
			if ae.Effect.Type != domain.DefenceBuff && ae.Effect.Type != domain.DefenceDebuff {
				continue
			}
			ok, err := consume(ctx, tx, ae)
			if err != nil {
				return res, err
			}
			if !ok {
				continue
			}
			if ae.Effect.Type == domain.DefenceBuff {
				damage -= ae.Effect.Value * damage
			} else {
				damage += ae.Effect.Value * damage
			}
			hit.Consumed = append(hit.Consumed, ae.ID)
		}
		hit.Damage = int(math.Round(math.Max(damage, 0)))
		depleted := m.Attacked(hit.Damage)
		if depleted {
			m.Die()
			hit.Killed = true
		}
		hit.HP = m.HP
		if err := tx.UpdateMember(ctx, m); err != nil {
			return res, fmt.Errorf("save member: %w", err)
		}
		if err := w.Append(ctx, projectID, events.ActorBoss, b.ID, events.BossAttack, events.Payload{
			"task_id":   taskID,
			"member_id": m.ID,
			"damage":    hit.Damage,
			"player_hp": m.HP,
			"consumed":  hit.Consumed,
		}); err != nil {
			return res, err
		}
		if depleted {
			if err := w.Append(ctx, projectID, events.ActorBoss, b.ID, events.KillPlayer, events.Payload{
				"member_id": m.ID,
				"task_id":   taskID,
			}); err != nil {
				return res, err
			}
			e.logger().Info("member defeated", "project", projectID, "member", m.ID, "boss", b.ID)
		}
		res.Hits = append(res.Hits, hit)
	}
	return res, nil
}

// PlayerHeal restores healValue percent of the target's max hp.
func (e Engine) PlayerHeal(ctx context.Context, projectID, healerID, targetID string, healValue float64) (HealResult, error) {
	var res HealResult
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = e.PlayerHealTx(ctx, tx, projectID, healerID, targetID, healValue)
		return err
	})
	return res, err
}

func (e Engine) PlayerHealTx(ctx context.Context, tx store.Tx, projectID, healerID, targetID string, healValue float64) (HealResult, error) {
	res := HealResult{HealerID: healerID, TargetID: targetID}
	healer, err := e.loadAliveMember(ctx, tx, projectID, healerID)
	if err != nil {
		return res, err
	}
	target := healer
	if targetID != healerID {
		target, err = e.loadAliveMember(ctx, tx, projectID, targetID)
		if err != nil {
			return res, err
		}
	}
	res.Amount = int(math.Round(float64(target.MaxHP) * healValue / 100))
	target.Heal(res.Amount)
	if err := tx.UpdateMember(ctx, target); err != nil {
		return res, fmt.Errorf("save member: %w", err)
	}
	res.HP, res.MaxHP = target.HP, target.MaxHP
	if err := e.writer(tx).Append(ctx, projectID, events.ActorUser, healer.ID, events.Heal, events.Payload{
		"healer_id":  healer.ID,
		"target_id":  target.ID,
		"heal_value": healValue,
		"amount":     res.Amount,
		"hp":         target.HP,
	}); err != nil {
		return res, err
	}
	return res, nil
}

// PlayerRevive brings a dead member back at full health for half its score.
func (e Engine) PlayerRevive(ctx context.Context, projectID, memberID string) (domain.Member, error) {
	var m domain.Member
	err := e.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		m, err = e.PlayerReviveTx(ctx, tx, projectID, memberID)
		return err
	})
	return m, err
}

func (e Engine) PlayerReviveTx(ctx context.Context, tx store.Tx, projectID, memberID string) (domain.Member, error) {
	m, err := e.loadMember(ctx, tx, projectID, memberID)
	if err != nil {
		return m, err
	}
	before := m.Score
	if err := m.Revive(); err != nil {
		return m, err
	}
	if err := tx.UpdateMember(ctx, m); err != nil {
		return m, fmt.Errorf("save member: %w", err)
	}
	if err := e.writer(tx).Append(ctx, projectID, events.ActorUser, m.ID, events.RevivePlayer, events.Payload{
		"member_id":    m.ID,
		"score_before": before,
		"score_after":  m.Score,
		"hp":           m.HP,
	}); err != nil {
		return m, err
	}
	return m, nil
}
