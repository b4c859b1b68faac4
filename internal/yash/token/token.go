// Package token splits a raw command line into whitespace-delimited tokens.
package token

import "strings"

// Tokenize splits line on runs of ASCII space or tab. An input of only
// whitespace (or the empty string) yields a nil, zero-length slice — the
// caller's signal that there is nothing to do.
func Tokenize(line string) []string {
	fields := strings.FieldsFunc(line, isSpace)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
