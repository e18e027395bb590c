// Package textnorm implements the lexical normalisation shared by tool
// ingestion and search ranking: lowercasing, punctuation stripping (Latin
// and Cyrillic preserved), whitespace collapsing, tokenisation, and keyword
// extraction.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// disallowed matches every character Normalize replaces with a space: all
// but lowercase ASCII letters/digits, underscore, whitespace, and the
// Cyrillic block (а-яёА-ЯЁ). It is applied after lowercasing.
var disallowed = regexp.MustCompile(`[^a-z0-9_\sа-яёА-ЯЁ]`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize lowercases s, replaces any character outside
// [A-Za-z0-9_\sа-яёА-ЯЁ] with a space, collapses whitespace runs, and trims
// the result.
func Normalize(s string) string {
	lower := strings.ToLower(s)
	stripped := disallowed.ReplaceAllString(lower, " ")
	collapsed := whitespaceRun.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(collapsed)
}

// Tokenize normalises s, splits on whitespace, and drops tokens shorter
// than minLen.
func Tokenize(s string, minLen int) []string {
	normalized := Normalize(s)
	if normalized == "" {
		return nil
	}
	fields := strings.Split(normalized, " ")
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// ExtractKeywords builds the deduplicated keyword set for a tool: the
// lowercased whole name, each `_`/`-`-delimited piece of the name with
// length >= 2, and every description token of length >= 4.
func ExtractKeywords(name, description string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(w string) {
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}

	lowerName := strings.ToLower(strings.TrimSpace(name))
	add(lowerName)

	for _, piece := range splitNameParts(lowerName) {
		if utf8.RuneCountInString(piece) >= 2 {
			add(piece)
		}
	}

	for _, tok := range Tokenize(description, 4) {
		add(tok)
	}

	return out
}

func splitNameParts(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
}
