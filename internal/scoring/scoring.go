// Package scoring computes the heuristic pronunciation-accuracy score for a
// single utterance. The score combines recognizer confidence, vocabulary
// match bonuses, acoustic voice quality, and profile-specific phonetic
// similarity into a value in [0, 100].
package scoring

import (
	"math"
	"strings"

	"github.com/lourdes7u7/analisisAudio/internal/lexicon"
)

const (
	variantBonus   = 25.0
	exactBonus     = 20.0
	acousticCap    = 15.0
	vowelSimBonus  = 12.0
	consonantBonus = 10.0
	firstCharBonus = 12.0
	lastCharBonus  = 8.0
	substringBonus = 5.0
)

// Accuracy scores one transcription against the target word. Pure and
// deterministic: the same inputs always produce the same score.
//
// The point budget is additive and clamped:
//
//	base       = confidence × 100
//	match      = +25 registered variant, +20 exact match, else 0
//	acoustic   = min(15, max(0, 100 − (jitter×1000 + shimmer×100)) × 0.15)
//	similarity = profile-dependent bonus, only when match is 0
//
// The result is clamped to [0, 100] and rounded to one decimal.
func Accuracy(transcript, target string, confidence, jitter, shimmer float64, profile lexicon.Profile) float64 {
	text := lexicon.Normalize(transcript)
	word := lexicon.Normalize(target)

	base := confidence * 100

	matchBonus := 0.0
	if variants, ok := lexicon.Variants(target); ok {
		if containsString(variants, text) {
			matchBonus = variantBonus
		} else if text == word {
			matchBonus = exactBonus
		}
	} else if text != "" && text == word {
		matchBonus = exactBonus
	}

	quality := math.Max(0, 100-(jitter*1000+shimmer*100))
	acoustic := math.Min(acousticCap, quality*0.15)

	similarity := 0.0
	if matchBonus == 0 && text != "" && word != "" {
		similarity = similarityBonus(text, word, profile)
	}

	score := base + matchBonus + acoustic + similarity
	score = math.Max(0, math.Min(100, score))
	return math.Round(score*10) / 10
}

// similarityBonus awards partial credit for near-miss pronunciations. Inputs
// are already normalized and non-empty.
func similarityBonus(text, word string, profile lexicon.Profile) float64 {
	switch profile {
	case lexicon.ProfileVowels:
		if lexicon.VowelSimilar(text, word) {
			return vowelSimBonus
		}
	case lexicon.ProfileAlphabet:
		if lexicon.SameConsonantGroup(text, word) {
			return consonantBonus
		}
	case lexicon.ProfileSyllables:
		t := []rune(text)
		w := []rune(word)
		if len(t) >= 2 && len(w) >= 2 {
			if t[0] == w[0] {
				// Same initial consonant beats same final vowel.
				return firstCharBonus
			}
			if t[len(t)-1] == w[len(w)-1] {
				return lastCharBonus
			}
		}
	}

	// Generic partial containment, any profile.
	if strings.Contains(text, word) || strings.Contains(word, text) {
		return substringBonus
	}
	return 0
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
