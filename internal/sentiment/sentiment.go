// Package sentiment rates free-text reviews on a 1..5 star scale.
package sentiment

import (
	"context"
	"log/slog"
)

// Classifier rates text from 1 (worst) to 5 (best).
type Classifier interface {
	Classify(ctx context.Context, text string) (int, error)
}

type Source string

const (
	SourceClassifier Source = "classifier"
	SourceLexicon    Source = "lexicon"
)

type Result struct {
	Stars  int    `json:"stars"`
	Source Source `json:"source"`
}

// Scorer asks the classifier first and falls back to the lexicon on any failure.
type Scorer struct {
	Classifier Classifier
	Lexicon    Lexicon
	Logger     *slog.Logger
}

func (s Scorer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s Scorer) Score(ctx context.Context, text string) Result {
	if s.Classifier != nil {
		stars, err := s.Classifier.Classify(ctx, text)
		if err == nil && stars >= 1 && stars <= 5 {
			return Result{Stars: stars, Source: SourceClassifier}
		}
		if err == nil {
			s.logger().Warn("classifier returned out of range rating, using lexicon", "stars", stars)
		} else {
			s.logger().Warn("classifier unavailable, using lexicon", "err", err)
		}
	}
	return Result{Stars: LabelToStars(s.Lexicon.Label(text)), Source: SourceLexicon}
}
