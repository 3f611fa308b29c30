package speech

import (
	"strings"
	"unicode"
)

// contractions maps common recognizer drops of apostrophes back to the
// written form. Keys are matched against lowercased tokens.
var contractions = map[string]string{
	"im":       "I'm",
	"ive":      "I've",
	"id":       "I'd",
	"ill":      "I'll",
	"dont":     "don't",
	"doesnt":   "doesn't",
	"didnt":    "didn't",
	"cant":     "can't",
	"couldnt":  "couldn't",
	"wont":     "won't",
	"wouldnt":  "wouldn't",
	"isnt":     "isn't",
	"wasnt":    "wasn't",
	"havent":   "haven't",
	"hasnt":    "hasn't",
	"thats":    "that's",
	"whats":    "what's",
	"theyre":   "they're",
	"youre":    "you're",
	"weve":     "we've",
	"theres":   "there's",
	"shouldnt": "shouldn't",
}

// fillers are discarded from final transcripts. Elongated variants
// ("ummm", "uhhh") are collapsed before matching.
var fillers = map[string]struct{}{
	"um":  {},
	"uh":  {},
	"uhm": {},
	"er":  {},
	"erm": {},
	"hm":  {},
	"mhm": {},
	"ah":  {},
	"eh":  {},
}

// Normalize cleans a final transcript before it is merged into the
// pending input buffer: strips filler words, restores common dropped
// contractions, collapses whitespace. Interim text is never normalized.
func Normalize(text string) string {
	var out []string
	for _, raw := range strings.Fields(text) {
		token, trailing := splitTrailingPunct(raw)
		lower := strings.ToLower(token)

		if _, ok := fillers[collapseRepeats(lower)]; ok {
			continue
		}
		if fixed, ok := contractions[lower]; ok {
			out = append(out, fixed+trailing)
			continue
		}
		out = append(out, token+trailing)
	}
	return strings.Join(out, " ")
}

// collapseRepeats squashes runs of the same letter ("ummm" -> "um") so
// elongated fillers match the canonical set.
func collapseRepeats(s string) string {
	var b strings.Builder
	var last rune = -1
	for _, r := range s {
		if r == last {
			continue
		}
		b.WriteRune(r)
		last = r
	}
	return b.String()
}

// splitTrailingPunct separates trailing punctuation so "um," still
// matches the filler set and "dont." keeps its period after fixing.
func splitTrailingPunct(token string) (word, punct string) {
	runes := []rune(token)
	i := len(runes)
	for i > 0 && unicode.IsPunct(runes[i-1]) {
		i--
	}
	return string(runes[:i]), string(runes[i:])
}
