package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// basic splits text on whitespace and punctuation, isolates CJK characters,
// and optionally lower cases and strips accents.
type basic struct {
	lower      bool
	neverSplit map[string]bool
}

func (b basic) tokenize(text string) (o []string) {
	text = b.isolateCJK(clean(text))
	for _, tok := range strings.Fields(text) {
		if b.neverSplit[tok] {
			o = append(o, tok)
			continue
		}
		if b.lower {
			tok = stripAccents(strings.ToLower(tok))
		}
		o = append(o, splitPunctuation(tok)...)
	}
	return
}

// clean drops invalid and control characters and maps whitespace to a space.
func clean(text string) string {
	var sb strings.Builder
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
		case isWhitespace(r):
			sb.WriteByte(' ')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func (basic) isolateCJK(text string) string {
	var sb strings.Builder
	for _, r := range text {
		if isCJK(r) {
			sb.WriteByte(' ')
			sb.WriteRune(r)
			sb.WriteByte(' ')
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

var accents = runes.Remove(runes.In(unicode.Mn))

func stripAccents(s string) string {
	out, _, err := transform.String(transform.Chain(norm.NFD, accents, norm.NFC), s)
	if err != nil {
		return s
	}
	return out
}

func splitPunctuation(tok string) (o []string) {
	var cur []rune
	for _, r := range tok {
		if isPunctuation(r) {
			if len(cur) > 0 {
				o = append(o, string(cur))
				cur = cur[:0]
			}
			o = append(o, string(r))
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		o = append(o, string(cur))
	}
	return
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.In(r, unicode.Cc, unicode.Cf)
}

// isPunctuation treats all non letter/number ASCII as punctuation, like BERT.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
