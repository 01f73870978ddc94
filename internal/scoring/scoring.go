// Package scoring rates how well a reviewer's sentiment agrees with what the
// task timing says about the work.
package scoring

import (
	"math"
	"time"

	"taskraid/internal/domain"
)

const (
	// GraceRatio is the adjusted slack needed for a non-neutral label.
	GraceRatio = 0.10

	fastCompletion = 2 * 24 * time.Hour
	slowCompletion = 7 * 24 * time.Hour
	highPriority   = 3

	// DefaultBaseScore is added to every reporter reward.
	DefaultBaseScore = 100
)

// Evidence weights by how many timing facts are known.
const (
	EvidenceNone     = 0.4
	EvidencePartial  = 0.7
	EvidenceComplete = 1.0
)

type Scores struct {
	ObjectiveLabel      int     `json:"objective_label"`
	EvidenceWeight      float64 `json:"evidence_weight"`
	NormalizedSentiment float64 `json:"normalized_sentiment"`
	Alignment           float64 `json:"alignment_score"`
	WeightedSentiment   float64 `json:"weighted_sentiment_score"`
}

// Compute maps task facts and a 1..5 sentiment to the alignment and the
// weighted sentiment used for effect selection. Out of range sentiment is clamped.
func Compute(f domain.TaskFacts, sentiment int) Scores {
	s := float64(clampInt(sentiment, 1, 5))
	label := ObjectiveLabel(f)
	evidence := EvidenceWeight(f)
	normalized := (s - 3.0) / 2.0
	alignment := float64(label) - normalized
	return Scores{
		ObjectiveLabel:      label,
		EvidenceWeight:      evidence,
		NormalizedSentiment: normalized,
		Alignment:           alignment,
		WeightedSentiment:   clamp(s+alignment*evidence, 1.0, 5.0),
	}
}

// ObjectiveLabel returns -1, 0 or 1 from the task timing alone.
func ObjectiveLabel(f domain.TaskFacts) int {
	if f.CompletedAt == nil {
		return 0
	}
	priority := max(f.Priority, 1)
	if f.Deadline == nil {
		took := f.CompletedAt.Sub(f.CreatedAt)
		switch {
		case took < fastCompletion && priority >= highPriority:
			return 1
		case took > slowCompletion && priority >= highPriority:
			return -1
		}
		return 0
	}
	window := math.Max(f.Deadline.Sub(f.CreatedAt).Seconds(), 1)
	slack := f.Deadline.Sub(*f.CompletedAt).Seconds() / window
	adjusted := slack * (1 + 0.25*float64(priority-1))
	switch {
	case adjusted >= GraceRatio:
		return 1
	case adjusted <= -GraceRatio:
		return -1
	}
	return 0
}

// EvidenceWeight grows with the number of known timing facts.
func EvidenceWeight(f domain.TaskFacts) float64 {
	switch {
	case f.CompletedAt == nil:
		return EvidenceNone
	case f.Deadline == nil:
		return EvidencePartial
	}
	return EvidenceComplete
}

// PlayerScore is the reward granted to a reporter for a review.
func PlayerScore(s Scores, base int) int {
	normalized := 1 + s.Alignment*99/4
	return int(math.Round(normalized + float64(base)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
