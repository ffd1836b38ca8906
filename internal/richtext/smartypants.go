package richtext

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	leftDouble  = '“'
	rightDouble = '”'
	leftSingle  = '‘'
	rightSingle = '’'
	enDash      = "–"
	emDash      = "—"
	ellipsis    = "…"
)

// skippedElements hold text that must keep its literal punctuation.
var skippedElements = map[string]bool{
	"pre": true, "code": true, "kbd": true, "tt": true,
	"math": true, "script": true, "style": true,
}

// blockElements start a new run of text; a quote right after one opens.
var blockElements = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "ul": true, "ol": true,
	"blockquote": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "td": true, "th": true, "tr": true,
}

// Smarten converts straight quotes, dash runs and dot runs in the text of
// an HTML fragment into their typographic forms. Markup passes through
// byte for byte. Running it on its own output changes nothing.
func Smarten(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var out bytes.Buffer
	out.Grow(len(fragment) + len(fragment)/8)

	skipDepth := 0
	// prev is the last text rune seen, carried across tags so that a quote
	// right after </b> still knows what precedes it.
	prev := ' '
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		switch tt {
		case html.TextToken:
			if skipDepth > 0 {
				out.Write(raw)
				continue
			}
			text := smartenText(string(raw), prev)
			out.WriteString(text)
			if r, _ := utf8.DecodeLastRuneInString(text); r != utf8.RuneError {
				prev = r
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			out.Write(raw)
			name, _ := z.TagName()
			if blockElements[string(name)] {
				prev = ' '
			}
			if tt == html.StartTagToken && skippedElements[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			out.Write(raw)
			name, _ := z.TagName()
			if blockElements[string(name)] {
				prev = ' '
			}
			if skippedElements[string(name)] && skipDepth > 0 {
				skipDepth--
			}
		default:
			out.Write(raw)
		}
	}
	return out.String()
}

// smartenText educates the punctuation of a single text run. before is the
// rune preceding the run.
func smartenText(s string, before rune) string {
	if !strings.ContainsAny(s, `"'-.`) {
		return s
	}
	s = educateDashes(s)
	s = educateEllipses(s)
	return educateQuotes(s, before)
}

func educateDashes(s string) string {
	s = strings.ReplaceAll(s, "---", emDash)
	return strings.ReplaceAll(s, "--", enDash)
}

func educateEllipses(s string) string {
	s = strings.ReplaceAll(s, "...", ellipsis)
	return strings.ReplaceAll(s, ". . .", ellipsis)
}

func educateQuotes(s string, before rune) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 8)
	prev := before
	for i, r := range runes {
		next := ' '
		if i+1 < len(runes) {
			next = runes[i+1]
		}
		switch r {
		case '"':
			if opensQuote(prev, next) {
				r = leftDouble
			} else {
				r = rightDouble
			}
		case '\'':
			switch {
			case isDecadeAbbreviation(runes[i+1:]):
				r = rightSingle
			case opensQuote(prev, next):
				r = leftSingle
			default:
				r = rightSingle
			}
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// opensQuote decides whether a quote between prev and next opens a
// quotation: it follows a space or opening punctuation and precedes a
// non-space.
func opensQuote(prev, next rune) bool {
	if unicode.IsSpace(next) {
		return false
	}
	if unicode.IsSpace(prev) {
		return true
	}
	switch prev {
	case '(', '[', '{', '<', '-', '–', '—', leftDouble, leftSingle, '>':
		return true
	}
	return false
}

// isDecadeAbbreviation matches the two digits and "s" of '80s.
func isDecadeAbbreviation(rest []rune) bool {
	if len(rest) < 3 {
		return false
	}
	if !unicode.IsDigit(rest[0]) || !unicode.IsDigit(rest[1]) || rest[2] != 's' {
		return false
	}
	return len(rest) == 3 || !unicode.IsLetter(rest[3]) && !unicode.IsDigit(rest[3])
}
