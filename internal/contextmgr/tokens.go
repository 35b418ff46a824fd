package contextmgr

import (
	"unicode"
	"unicode/utf8"
)

// EstimateTokens approximates token count without a tokenizer: ascii
// bytes at 4 per token, each cjk code point as one token, remaining
// multibyte runes at 4 bytes per token. Never returns less than 1.
func EstimateTokens(text string) int {
	if text == "" {
		return 1
	}
	asciiBytes := 0
	cjk := 0
	otherBytes := 0
	for _, r := range text {
		switch {
		case r < utf8.RuneSelf:
			asciiBytes++
		case isCJK(r):
			cjk++
		default:
			otherBytes += utf8.RuneLen(r)
		}
	}
	n := asciiBytes/4 + cjk + otherBytes/4
	if n < 1 {
		n = 1
	}
	return n
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
