package sqlcheck

import "strings"

// sqlKeywords are uppercased during normalization
var sqlKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "JOIN": true, "INNER": true,
	"LEFT": true, "RIGHT": true, "FULL": true, "OUTER": true, "CROSS": true,
	"ON": true, "AND": true, "OR": true, "NOT": true, "IN": true,
	"EXISTS": true, "BETWEEN": true, "LIKE": true, "IS": true, "NULL": true,
	"GROUP": true, "BY": true, "ORDER": true, "HAVING": true, "ASC": true,
	"DESC": true, "LIMIT": true, "OFFSET": true, "TOP": true, "FETCH": true,
	"FIRST": true, "NEXT": true, "ROWS": true, "ONLY": true, "AS": true,
	"DISTINCT": true, "UNION": true, "ALL": true, "EXCEPT": true,
	"INTERSECT": true, "WITH": true, "CASE": true, "WHEN": true, "THEN": true,
	"ELSE": true, "END": true, "COUNT": true, "SUM": true, "AVG": true,
	"MIN": true, "MAX": true, "CAST": true, "COALESCE": true,
}

// Normalize deterministically reformats a statement: comments are dropped,
// whitespace collapses to single spaces, keywords are uppercased, and a
// trailing statement separator is removed. Interior separators are kept so
// multi-statement input still reads as multi-statement after formatting.
// Normalization never fails; unparseable text passes through trimmed.
func Normalize(sql string) string {
	tokens := tokenize(sql)
	if len(tokens) == 0 {
		return ""
	}

	// Drop trailing separators only
	for len(tokens) > 0 && tokens[len(tokens)-1].isPunct(";") {
		tokens = tokens[:len(tokens)-1]
	}

	var sb strings.Builder

	for i, t := range tokens {
		text := t.text
		if t.kind == kindWord && sqlKeywords[strings.ToUpper(text)] {
			text = strings.ToUpper(text)
		}

		if i > 0 && needsSpace(tokens[i-1], t) {
			sb.WriteByte(' ')
		}

		sb.WriteString(text)
	}

	return sb.String()
}

// needsSpace decides whether a space separates two adjacent tokens
func needsSpace(prev, cur token) bool {
	switch {
	case cur.isPunct(",") || cur.isPunct(")") || cur.isPunct(";") || cur.isPunct("."):
		return false
	case prev.isPunct("(") || prev.isPunct("."):
		return false
	case cur.isPunct("("):
		// Function calls pack tightly: COUNT(*), but FROM (SELECT ...) keeps
		// its space. Non-keyword words before ( are treated as call sites.
		return prev.kind != kindWord || sqlKeywords[strings.ToUpper(prev.text)] && !aggregateKeywords[strings.ToUpper(prev.text)]
	default:
		return true
	}
}

// aggregateKeywords are keywords that act as function names
var aggregateKeywords = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
	"CAST": true, "COALESCE": true,
}
