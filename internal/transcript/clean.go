package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var singleFillers = map[string]bool{
	"um":  true,
	"uh":  true,
	"uhm": true,
	"umm": true,
	"er":  true,
	"erm": true,
	"ah":  true,
	"hmm": true,
	"mhm": true,
}

var pairFillers = [][2]string{
	{"you", "know"},
	{"i", "mean"},
}

// Clean collapses whitespace, drops filler words and immediately repeated
// words, and capitalizes the start of each sentence.
func Clean(text string) string {
	tokens := strings.Fields(text)
	kept := make([]string, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		word := normalize(token)

		if singleFillers[word] {
			kept = carryPunctuation(kept, token)
			continue
		}
		if i+1 < len(tokens) && isPairFiller(word, normalize(tokens[i+1])) && !endsSentence(token) {
			kept = carryPunctuation(kept, tokens[i+1])
			i++
			continue
		}

		if n := len(kept); n > 0 && word != "" && word == normalize(kept[n-1]) && !hasTrailingPunct(kept[n-1]) {
			kept = carryPunctuation(kept, token)
			continue
		}

		kept = append(kept, token)
	}

	return capitalizeSentences(strings.Join(kept, " "))
}

func isPairFiller(first, second string) bool {
	for _, pair := range pairFillers {
		if first == pair[0] && second == pair[1] {
			return true
		}
	}
	return false
}

// normalize lower-cases a token and strips surrounding punctuation
func normalize(token string) string {
	return strings.ToLower(strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
}

// carryPunctuation moves sentence punctuation of a dropped token onto the
// previous kept token so sentence boundaries survive filler removal.
func carryPunctuation(kept []string, dropped string) []string {
	n := len(kept)
	if n == 0 || !endsSentence(dropped) || hasTrailingPunct(kept[n-1]) {
		return kept
	}
	last, _ := utf8.DecodeLastRuneInString(dropped)
	kept[n-1] += string(last)
	return kept
}

func endsSentence(token string) bool {
	return strings.HasSuffix(token, ".") || strings.HasSuffix(token, "!") || strings.HasSuffix(token, "?")
}

func hasTrailingPunct(token string) bool {
	last, _ := utf8.DecodeLastRuneInString(token)
	return unicode.IsPunct(last)
}

func capitalizeSentences(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	upper := true
	for _, r := range text {
		switch {
		case upper && unicode.IsLetter(r):
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		case r == '.' || r == '!' || r == '?':
			b.WriteRune(r)
			upper = true
		default:
			if upper && !unicode.IsSpace(r) && !unicode.IsPunct(r) {
				upper = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
