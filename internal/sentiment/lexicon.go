package sentiment

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[a-zA-Z']+`)

var (
	positiveWords = map[string]bool{
		"great": true, "good": true, "excellent": true, "awesome": true, "amazing": true,
		"nice": true, "perfect": true, "helpful": true, "thanks": true, "thank you": true,
		"well done": true, "fast": true, "on time": true, "quick": true, "love": true,
	}
	negativeWords = map[string]bool{
		"bad": true, "terrible": true, "awful": true, "slow": true, "late": true,
		"rude": true, "unhelpful": true, "poor": true, "worse": true, "worst": true,
		"hate": true, "scam": true, "never": true, "disappointed": true,
	}
	phrases = []string{"thank you", "well done", "on time"}
)

// Lexicon is the deterministic keyword scorer used when no classifier answers.
type Lexicon struct{}

// Label returns 1 when positive keywords outnumber negative ones, -1 for the
// reverse and 0 otherwise.
func (Lexicon) Label(text string) int {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return 0
	}
	tokens := wordPattern.FindAllString(lowered, -1)
	for _, p := range phrases {
		if strings.Contains(lowered, p) {
			tokens = append(tokens, p)
		}
	}
	pos, neg := 0, 0
	for _, tok := range tokens {
		switch {
		case positiveWords[tok]:
			pos++
		case negativeWords[tok]:
			neg++
		}
	}
	switch {
	case pos > neg:
		return 1
	case neg > pos:
		return -1
	}
	return 0
}

// LabelToStars maps a lexicon label onto the 1..5 rating scale.
func LabelToStars(label int) int {
	switch {
	case label < 0:
		return 2
	case label > 0:
		return 4
	}
	return 3
}
