// Package lexicon holds the static vocabulary tables for the Expresatea game:
// accepted transcription variants per target, phonetic similarity groups, and
// the sublevel-to-profile mapping. All tables are immutable after process start.
package lexicon

import (
	"fmt"
	"strings"
)

// Profile selects the transcription vocabulary and the similarity rules that
// apply to a target word. It is derived from the sublevel name of the request.
type Profile string

const (
	ProfileVowels    Profile = "vocales"
	ProfileAlphabet  Profile = "abecedario"
	ProfileSyllables Profile = "silabas"
)

// validOptions maps each target token to the transcriptions accepted as a
// correct pronunciation. Matching is case-insensitive; the mixed-case entries
// mirror the upstream vocabulary as-is.
//
// The "AAAA" entry for 'a' reproduces what upstream almost certainly intended
// as two entries ('A', 'AAA') that collapsed into one; we keep the observed
// vocabulary rather than guess at the intent.
var validOptions = map[string][]string{
	// Vocales
	"a": {"a", "ah", "AAAA", "aaaa"},
	"e": {"e", "eh", "E"},
	"i": {"i", "y", "I"},
	"o": {"o", "oh", "O"},
	"u": {"u", "uh", "U"},

	// Abecedario (consonantes)
	"c": {"c", "se", "ce", "C"},
	"d": {"d", "de", "D"},
	"f": {"f", "efe", "F"},
	"g": {"g", "ge", "G"},
	"h": {"h", "hache", "H"},
	"j": {"j", "jota", "J"},
	"k": {"k", "ka", "K"},
	"n": {"n", "ene", "N"},
	"ñ": {"ñ", "eñe", "Ñ"},
	"q": {"q", "cu", "Q"},
	"r": {"r", "ere", "R"},
	"t": {"t", "te", "T"},
	"v": {"v", "ve", "V"},
	"w": {"w", "doble ve", "W"},
	"x": {"x", "equis", "X"},
	"y": {"y", "ye", "Y"},
	"z": {"z", "zeta", "Z"},

	// Sílabas
	"ba": {"ba", "BA", "Ba"},
	"be": {"be", "BE", "Be"},
	"bi": {"bi", "BI", "Bi"},
	"bo": {"bo", "BO", "Bo"},
	"bu": {"bu", "BU", "Bu"},

	"la": {"la", "LA", "La"},
	"le": {"le", "LE", "Le"},
	"li": {"li", "LI", "Li"},
	"lo": {"lo", "LO", "Lo"},
	"lu": {"lu", "LU", "Lu"},

	"ma": {"ma", "MA", "Ma"},
	"me": {"me", "ME", "Me"},
	"mi": {"mi", "MI", "Mi"},
	"mo": {"mo", "MO", "Mo"},
	"mu": {"mu", "MU", "Mu"},

	"pa": {"pa", "PA", "Pa"},
	"pe": {"pe", "PE", "Pe"},
	"pi": {"pi", "PI", "Pi"},
	"po": {"po", "PO", "Po"},
	"pu": {"pu", "PU", "Pu"},

	"sa": {"sa", "SA", "Sa"},
	"se": {"se", "SE", "Se"},
	"si": {"si", "SI", "Si"},
	"so": {"so", "SO", "So"},
	"su": {"su", "SU", "Su"},
}

// vowelSimilar maps each vowel to the informal transcriptions that count as
// phonetically close without being registered variants of a different target.
var vowelSimilar = map[string][]string{
	"a": {"ah"},
	"e": {"eh"},
	"i": {"y"},
	"o": {"oh"},
	"u": {"uh"},
}

// consonantGroups are sets of tokens that share a place or manner of
// articulation. Two tokens appearing in the same group are considered
// phonetically similar.
var consonantGroups = [][]string{
	{"b", "p", "ve"},       // bilabiales
	{"d", "t", "de", "te"}, // dentales/alveolares
	{"g", "k", "c", "ge"},  // velares
	{"f", "v", "efe"},      // labiodentales
	{"s", "z", "se"},       // sibilantes
	{"m", "n", "ñ"},        // nasales
	{"l", "r"},             // líquidas
	{"j", "y", "jota"},     // aproximantes
}

// sublevelIndex maps the canonical sublevel names to their display position.
// Unrecognized names fall back to 1. Cosmetic only; scoring never reads it.
var sublevelIndex = map[string]int{
	"Vocales":    1,
	"Abecedario": 2,
	"Sílabas":    3,
}

// Normalize lowercases and trims a token the way every comparison in the
// scoring path does.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Variants returns the accepted transcriptions for target, lowercased, and
// whether target is registered in the vocabulary at all.
func Variants(target string) ([]string, bool) {
	raw, ok := validOptions[Normalize(target)]
	if !ok {
		return nil, false
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = strings.ToLower(v)
	}
	return out, true
}

// Matches reports whether transcript counts as a correct pronunciation of
// target: membership in the registered variant list when one exists, exact
// normalized equality otherwise.
func Matches(transcript, target string) bool {
	text := Normalize(transcript)
	if variants, ok := Variants(target); ok {
		for _, v := range variants {
			if text == v {
				return true
			}
		}
		return false
	}
	return text == Normalize(target)
}

// VowelSimilar reports whether transcript is an accepted informal rendering
// of the vowel target.
func VowelSimilar(transcript, target string) bool {
	for _, v := range vowelSimilar[target] {
		if transcript == v {
			return true
		}
	}
	return false
}

// SameConsonantGroup reports whether both tokens appear together in one of
// the phonetic consonant groups.
func SameConsonantGroup(a, b string) bool {
	for _, group := range consonantGroups {
		if contains(group, a) && contains(group, b) {
			return true
		}
	}
	return false
}

func contains(group []string, tok string) bool {
	for _, g := range group {
		if g == tok {
			return true
		}
	}
	return false
}

// ProfileFor maps a sublevel name to its vocabulary profile. Unknown names
// default to the vowels profile, matching the recognizer selection.
func ProfileFor(sublevel string) Profile {
	switch Normalize(sublevel) {
	case "vocales":
		return ProfileVowels
	case "abecedario", "consonantes", "letras":
		return ProfileAlphabet
	case "sílabas", "silabas", "syllables":
		return ProfileSyllables
	default:
		return ProfileVowels
	}
}

// SublevelLabel builds the display name stored on a sublevel node, e.g.
// "Subnivel 1: Vocales".
func SublevelLabel(sublevel string) string {
	n, ok := sublevelIndex[sublevel]
	if !ok {
		n = 1
	}
	return fmt.Sprintf("Subnivel %d: %s", n, sublevel)
}
