// Package effects buckets the effect catalog by polarity and rarity and picks
// an effect for a weighted sentiment score.
package effects

import (
	"taskraid/internal/domain"
	"taskraid/internal/random"
)

type Bucket int

const (
	BadRare Bucket = iota
	BadCommon
	GoodCommon
	GoodRare
	GoodEpic
	bucketCount
)

func (b Bucket) String() string {
	switch b {
	case BadRare:
		return "bad-rare"
	case BadCommon:
		return "bad-common"
	case GoodCommon:
		return "good-common"
	case GoodRare:
		return "good-rare"
	case GoodEpic:
		return "good-epic"
	}
	return "unknown"
}

// BucketOf classifies an effect. Effects outside the five buckets report false.
func BucketOf(e domain.Effect) (Bucket, bool) {
	switch {
	case e.Polarity == domain.Bad && e.Rarity == domain.RarityRare:
		return BadRare, true
	case e.Polarity == domain.Bad && e.Rarity == domain.RarityCommon:
		return BadCommon, true
	case e.Polarity == domain.Good && e.Rarity == domain.RarityCommon:
		return GoodCommon, true
	case e.Polarity == domain.Good && e.Rarity == domain.RarityRare:
		return GoodRare, true
	case e.Polarity == domain.Good && e.Rarity == domain.RarityEpic:
		return GoodEpic, true
	}
	return 0, false
}

// Bands returns the buckets tried, in order, for a weighted score.
func Bands(score float64) []Bucket {
	switch {
	case score <= 1:
		return []Bucket{BadRare, BadCommon}
	case score < 2:
		return []Bucket{BadRare}
	case score < 3:
		return []Bucket{BadCommon}
	case score < 4:
		return []Bucket{GoodCommon}
	case score < 5:
		return []Bucket{GoodRare}
	}
	return []Bucket{GoodEpic, GoodRare, GoodCommon}
}

// Catalog is an immutable partition of the effect catalog.
type Catalog struct {
	buckets [bucketCount][]domain.Effect
}

func NewCatalog(all []domain.Effect) Catalog {
	var c Catalog
	for _, e := range all {
		if b, ok := BucketOf(e); ok {
			c.buckets[b] = append(c.buckets[b], e)
		}
	}
	return c
}

func (c Catalog) Bucket(b Bucket) []domain.Effect {
	if b < 0 || b >= bucketCount {
		return nil
	}
	return c.buckets[b]
}

// Decide picks uniformly from the first non-empty bucket of the score's band.
// It reports false when the band and its fallbacks are all empty.
func (c Catalog) Decide(score float64, src random.Source) (domain.Effect, bool) {
	for _, b := range Bands(score) {
		if e, ok := random.Pick(src, c.buckets[b]); ok {
			return e, true
		}
	}
	return domain.Effect{}, false
}
