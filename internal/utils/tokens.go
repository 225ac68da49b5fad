package utils

import (
	"strings"
	"unicode"
)

// Word tokenization for text frequency summaries and word clouds.

// Stopwords is a small English stop-word list.
var Stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a about above after again against all am an and any are as at be because been
		before being below between both but by can could did do does doing down during each few for from further
		had has have having he her here hers herself him himself his how i if in into is it its itself just me
		more most my myself no nor not now of off on once only or other our ours ourselves out over own same she
		should so some such than that the their theirs them themselves then there these they this those through
		to too under until up very was we were what when where which while who whom why will with would you your
		yours yourself yourselves`) {
		Stopwords[w] = struct{}{}
	}
}

// Tokenize splits text into lowercase word tokens of at least two runes.
// Letters and digits form words; an apostrophe inside a word is kept.
func Tokenize(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)
	flush := func() {
		w := strings.Trim(b.String(), "'")
		if len([]rune(w)) >= 2 {
			out = append(out, w)
		}
		b.Reset()
	}
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == '\'' && b.Len() > 0 && i+1 < len(runes) && unicode.IsLetter(runes[i+1]):
			b.WriteRune(r)
		default:
			if b.Len() > 0 {
				flush()
			}
		}
	}
	if b.Len() > 0 {
		flush()
	}
	return out
}

// CountTokens tallies tokens of text into counts, skipping stop words when asked.
// It returns the number of tokens counted.
func CountTokens(counts map[string]int, text string, dropStopwords bool) int {
	n := 0
	for _, t := range Tokenize(text) {
		if dropStopwords {
			if _, stop := Stopwords[t]; stop {
				continue
			}
		}
		counts[t]++
		n++
	}
	return n
}
