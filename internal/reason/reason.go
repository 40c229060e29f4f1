// Package reason parses the compact diagnostic strings the backend
// embeds in error and data-health payloads. A reason string is a list
// of tokens separated by ';' or ',', where a token is either a bare
// word or a key=value pair, e.g.
//
//	"provider=polygon; code=ENTITLEMENT_MISSING, retryable=false"
//
// The parser is pure and tolerant: malformed tokens are kept as bare
// words rather than dropped, since they still carry operator value.
package reason

import (
	"regexp"
	"strings"
)

var pairRe = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*=\s*(.*)$`)

// Parsed is the structured form of one reason string.
type Parsed struct {
	Pairs map[string]string
	Words []string
}

// Parse splits raw into tokens and extracts key=value pairs. Later
// duplicates of a key win. Empty input yields an empty, non-nil result.
func Parse(raw string) Parsed {
	out := Parsed{Pairs: map[string]string{}, Words: []string{}}
	for _, tok := range splitTokens(raw) {
		if m := pairRe.FindStringSubmatch(tok); m != nil {
			out.Pairs[m[1]] = strings.TrimSpace(m[2])
			continue
		}
		out.Words = append(out.Words, tok)
	}
	return out
}

// Code returns the most specific failure code in raw, preferring the
// "code" key, then "error", then the first bare word. Returns "" when
// raw carries nothing usable.
func Code(raw string) string {
	p := Parse(raw)
	if c, ok := p.Pairs["code"]; ok {
		return c
	}
	if c, ok := p.Pairs["error"]; ok {
		return c
	}
	if len(p.Words) > 0 {
		return p.Words[0]
	}
	return ""
}

// Get returns the value for key in raw, or "" when absent.
func Get(raw, key string) string {
	return Parse(raw).Pairs[key]
}

// Summarize renders a short human-readable line for UI display:
// the code first, then the remaining pairs in stable token order.
func Summarize(raw string) string {
	p := Parse(raw)
	code := Code(raw)
	parts := []string{}
	if code != "" {
		parts = append(parts, code)
	}
	for _, tok := range splitTokens(raw) {
		m := pairRe.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		key := m[1]
		if key == "code" || key == "error" {
			continue
		}
		parts = append(parts, key+"="+p.Pairs[key])
	}
	return strings.Join(parts, " ")
}

func splitTokens(raw string) []string {
	tokens := []string{}
	for _, piece := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ','
	}) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			tokens = append(tokens, piece)
		}
	}
	return tokens
}
