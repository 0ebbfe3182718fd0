// Package sqlcheck decides whether a candidate SQL statement is allowed to
// exist and run. It scans statements with a small comment- and
// string-literal-aware tokenizer instead of ad hoc substring inspection, so
// text like 'DROP the table concept' never trips a safety rule.
package sqlcheck

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	kindWord tokenKind = iota
	kindString
	kindNumber
	kindQuotedIdent
	kindPunct
)

// token is a single lexical unit of a statement. Pos is the byte offset in
// the original text, used by the row-limit rewrite.
type token struct {
	kind tokenKind
	text string
	pos  int
}

// upper returns the uppercased text for keyword comparisons; only word
// tokens participate in keyword matching
func (t token) upper() string {
	if t.kind != kindWord {
		return ""
	}

	return strings.ToUpper(t.text)
}

func (t token) isPunct(s string) bool {
	return t.kind == kindPunct && t.text == s
}

// tokenize splits SQL text into tokens, discarding comments. String literal
// and quoted identifier contents are captured verbatim and never keyword
// matched.
func tokenize(sql string) []token {
	var tokens []token

	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]

		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '-' && i+1 < n && sql[i+1] == '-':
			// Line comment
			for i < n && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && sql[i+1] == '*':
			// Block comment
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += 2 + end + 2
			}
		case c == '\'':
			start := i
			i++

			for i < n {
				if sql[i] == '\'' {
					// Doubled quote is an escaped quote inside the literal
					if i+1 < n && sql[i+1] == '\'' {
						i += 2
						continue
					}

					i++

					break
				}
				i++
			}

			tokens = append(tokens, token{kind: kindString, text: sql[start:i], pos: start})
		case c == '"':
			start := i
			i++

			for i < n && sql[i] != '"' {
				i++
			}

			if i < n {
				i++
			}

			tokens = append(tokens, token{kind: kindQuotedIdent, text: sql[start:i], pos: start})
		case c == '[':
			// Bracket-quoted identifier (SQL Server style)
			start := i
			i++

			for i < n && sql[i] != ']' {
				i++
			}

			if i < n {
				i++
			}

			tokens = append(tokens, token{kind: kindQuotedIdent, text: sql[start:i], pos: start})
		case isWordStart(c):
			start := i
			for i < n && isWordPart(sql[i]) {
				i++
			}

			tokens = append(tokens, token{kind: kindWord, text: sql[start:i], pos: start})
		case c >= '0' && c <= '9':
			start := i
			for i < n && (isWordPart(sql[i]) || sql[i] == '.') {
				i++
			}

			tokens = append(tokens, token{kind: kindNumber, text: sql[start:i], pos: start})
		default:
			tokens = append(tokens, token{kind: kindPunct, text: string(c), pos: i})
			i++
		}
	}

	return tokens
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '$' || c == '#'
}

// unquoteIdent strips identifier quoting so "client" and [client] compare
// equal to client
func unquoteIdent(text string) string {
	if len(text) >= 2 {
		if text[0] == '"' && text[len(text)-1] == '"' {
			return text[1 : len(text)-1]
		}

		if text[0] == '[' && text[len(text)-1] == ']' {
			return text[1 : len(text)-1]
		}
	}

	return text
}
