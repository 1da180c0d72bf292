package scanner

import "unicode"

// synonymGroups is the fixed, small synonym enumeration from the glossary.
// Used only by the EmulatorB token-overlap fallback (§4.3 step 4).
var synonymGroups = [][]string{
	{"kill", "slay", "defeat", "destroy", "eliminate"},
	{"win", "victory", "triumph", "conquer"},
	{"complete", "finish", "done", "accomplish"},
	{"first", "initial", "beginning"},
	{"true", "real", "genuine", "authentic"},
	{"boundless", "endless", "infinite", "unlimited"},
	{"rage", "anger", "fury", "wrath"},
	{"support", "helper", "assist", "aid"},
	{"specialist", "expert", "master", "main"},
	{"lose", "fail", "loss"},
}

var stemSuffixes = []string{"iac", "ness", "ment", "ing", "ous", "ful", "ic", "al", "er", "ed", "ly"}

// tokenize splits s into lowercased tokens on non-alphanumeric boundaries,
// letter<->digit transitions, and camelCase boundaries, then discards
// tokens of length <=2 unless purely numeric (§4.3 step 4). An all-caps run
// like "TALK" has no lower->upper transition and no upper-upper-lower
// pattern, so it survives as a single token.
func tokenize(s string) []string {
	words := splitWords(s)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) <= 2 && !isAllDigits(w) {
			continue
		}
		out = append(out, toLower(w))
	}
	return out
}

func splitWords(s string) []string {
	runes := []rune(s)
	n := len(runes)
	var words []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}

	for i := 0; i < n; i++ {
		r := runes[i]
		if !isAlnumRune(r) {
			flush()
			continue
		}
		if len(cur) == 0 {
			cur = append(cur, r)
			continue
		}
		prev := cur[len(cur)-1]
		boundary := false
		switch {
		case unicode.IsDigit(prev) != unicode.IsDigit(r):
			boundary = true // letter<->digit transition
		case unicode.IsLower(prev) && unicode.IsUpper(r):
			boundary = true // camelCase: lower -> upper
		case unicode.IsUpper(prev) && unicode.IsUpper(r) && i+1 < n && unicode.IsLower(runes[i+1]):
			boundary = true // "XMLParser" -> "XML", "Parser"
		}
		if boundary {
			flush()
			cur = append(cur, r)
		} else {
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

func isAlnumRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func toLower(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// tokensMatch reports whether cleaned token a matches target token b under
// any of the §4.3 step-4 rules.
func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	if containsEither(a, b) {
		return true
	}
	if stem(a) == stem(b) {
		return true
	}
	if sameSynonymGroup(a, b) {
		return true
	}
	if len(a) >= 4 && len(b) >= 4 && charOverlapRatio(a, b) >= 0.70 {
		return true
	}
	if differsByTrailingChar(a, b) {
		return true
	}
	return false
}

func containsEither(a, b string) bool {
	return containsSubstr(a, b) || containsSubstr(b, a)
}

func containsSubstr(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	hn, nn := len(haystack), len(needle)
	if nn > hn {
		return false
	}
	for i := 0; i+nn <= hn; i++ {
		if haystack[i:i+nn] == needle {
			return true
		}
	}
	return false
}

func stem(w string) string {
	for _, suf := range stemSuffixes {
		if len(w) > len(suf)+2 && hasSuffix(w, suf) {
			return w[:len(w)-len(suf)]
		}
	}
	return w
}

func hasSuffix(s, suf string) bool {
	return len(s) >= len(suf) && s[len(s)-len(suf):] == suf
}

func sameSynonymGroup(a, b string) bool {
	for _, group := range synonymGroups {
		inA, inB := false, false
		for _, w := range group {
			if w == a {
				inA = true
			}
			if w == b {
				inB = true
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}

// charOverlapRatio counts, for each character of the shorter token, whether
// it appears anywhere in the longer token (a presence check, not a
// consuming match, so a repeated character in the shorter token counts each
// time), divided by the shorter token's length. So "boundless" vs "bound"
// scores 5/5 = 1.0: every character "bound" has is present somewhere in
// "boundless".
func charOverlapRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	shorter, longer := ra, rb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}
	present := make(map[rune]bool, len(longer))
	for _, r := range longer {
		present[r] = true
	}
	matched := 0
	for _, r := range shorter {
		if present[r] {
			matched++
		}
	}
	return float64(matched) / float64(len(shorter))
}

func differsByTrailingChar(a, b string) bool {
	la, lb := len(a), len(b)
	if la == lb {
		return la > 0 && a[:la-1] == b[:la-1]
	}
	if la == lb+1 {
		return a[:lb] == b
	}
	if lb == la+1 {
		return b[:la] == a
	}
	return false
}
