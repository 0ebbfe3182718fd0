package sqlcheck

import (
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/schema"
)

// Outcome is the verdict tag for a validated statement
type Outcome string

const (
	OutcomeAccepted            Outcome = "ACCEPTED"
	OutcomeAcceptedWithRewrite Outcome = "ACCEPTED_WITH_REWRITE"
	OutcomeRejected            Outcome = "REJECTED"
)

// Reason identifies the rule that rejected a statement
type Reason string

const (
	ReasonEmptyStatement Reason = "EmptyStatementRejected"
	ReasonMultiStatement Reason = "MultiStatementRejected"
	ReasonWriteOperation Reason = "WriteOperationRejected"
	ReasonUnknownTable   Reason = "UnknownTableRejected"
)

// Violation pairs a rejection reason with a human-readable detail
type Violation struct {
	Reason Reason
	Detail string
}

// Verdict is the result of validating a candidate statement. SQL carries the
// statement to run: the original when accepted as-is, the rewritten text
// when a row cap was injected.
type Verdict struct {
	Outcome    Outcome
	SQL        string
	Rewritten  bool
	Violations []Violation
}

// Reasons returns the violation reason codes in rule order
func (v Verdict) Reasons() []Reason {
	reasons := make([]Reason, 0, len(v.Violations))
	for _, violation := range v.Violations {
		reasons = append(reasons, violation.Reason)
	}

	return reasons
}

// DefaultRowLimit caps result sets when the statement has no explicit limit
const DefaultRowLimit = 100

// destructiveKeywords are rejected wherever they appear in the statement.
// EXEC and EXECUTE cover the SQL Server spellings.
var destructiveKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"ALTER": true, "TRUNCATE": true, "MERGE": true, "EXEC": true,
	"EXECUTE": true, "CREATE": true, "GRANT": true, "REVOKE": true,
}

// limitKeywords indicate an explicit row-limiting clause is already present
var limitKeywords = map[string]bool{
	"TOP": true, "LIMIT": true, "FETCH": true,
}

// Validate applies the safety rules in order to a candidate statement.
// It is a pure function and safe to call concurrently on a shared snapshot.
func Validate(sql string, snapshot *schema.Snapshot, rowLimit int) Verdict {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}

	tokens := tokenize(sql)

	if onlySeparators(tokens) {
		return Verdict{
			Outcome: OutcomeRejected,
			SQL:     sql,
			Violations: []Violation{{
				Reason: ReasonEmptyStatement,
				Detail: "statement contains no SQL",
			}},
		}
	}

	var violations []Violation

	if multiStatement(tokens) {
		violations = append(violations, Violation{
			Reason: ReasonMultiStatement,
			Detail: "multiple SQL statements are not allowed",
		})
	}

	if v, bad := checkReadOnly(tokens); bad {
		violations = append(violations, v)
	}

	// Unknown-entity checking only makes sense on a single read statement
	// judged against a populated snapshot; it is advisory-strict and must
	// not flag derived tables or CTE aliases.
	if len(violations) == 0 && snapshot != nil && snapshot.Len() > 0 {
		for _, name := range unknownTables(tokens, snapshot) {
			violations = append(violations, Violation{
				Reason: ReasonUnknownTable,
				Detail: fmt.Sprintf("table %q is not present in the schema", name),
			})
		}
	}

	if len(violations) > 0 {
		return Verdict{Outcome: OutcomeRejected, SQL: sql, Violations: violations}
	}

	if hasRowLimit(tokens) {
		return Verdict{Outcome: OutcomeAccepted, SQL: sql}
	}

	rewritten := injectRowLimit(sql, tokens, rowLimit)

	return Verdict{Outcome: OutcomeAcceptedWithRewrite, SQL: rewritten, Rewritten: true}
}

// onlySeparators reports whether the token stream is empty or consists of
// nothing but statement separators. A lone ";" is an empty statement, not a
// write attempt.
func onlySeparators(tokens []token) bool {
	for _, t := range tokens {
		if !t.isPunct(";") {
			return false
		}
	}

	return true
}

// multiStatement reports whether a statement separator is followed by more
// content. Separators inside literals or comments never reach the token
// stream.
func multiStatement(tokens []token) bool {
	for i, t := range tokens {
		if t.isPunct(";") && i < len(tokens)-1 {
			for _, rest := range tokens[i+1:] {
				if !rest.isPunct(";") {
					return true
				}
			}
		}
	}

	return false
}

// checkReadOnly enforces that the statement is a plain read. The leading
// keyword must be SELECT or WITH, and no destructive keyword may appear
// anywhere in the statement. Parenthesis depth is irrelevant here: a
// data-modifying CTE or subquery is still a write.
func checkReadOnly(tokens []token) (Violation, bool) {
	leading := tokens[0].upper()
	if leading != "SELECT" && leading != "WITH" {
		return Violation{
			Reason: ReasonWriteOperation,
			Detail: fmt.Sprintf("only SELECT statements are allowed, got %q", tokens[0].text),
		}, true
	}

	for _, t := range tokens {
		if destructiveKeywords[t.upper()] {
			return Violation{
				Reason: ReasonWriteOperation,
				Detail: fmt.Sprintf("destructive keyword %s is not allowed", t.upper()),
			}, true
		}
	}

	if leading == "WITH" && !hasStatementLevelSelect(tokens) {
		return Violation{
			Reason: ReasonWriteOperation,
			Detail: "WITH clause must wrap a SELECT statement",
		}, true
	}

	return Violation{}, false
}

func hasStatementLevelSelect(tokens []token) bool {
	depth := 0

	for _, t := range tokens {
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
		case depth == 0 && t.upper() == "SELECT":
			return true
		}
	}

	return false
}

// clauseKeywords end the table list of a FROM clause
var clauseKeywords = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"LIMIT": true, "UNION": true, "EXCEPT": true, "INTERSECT": true,
	"ON": true, "USING": true, "FETCH": true, "OFFSET": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"OUTER": true, "CROSS": true, "JOIN": true, "SELECT": true,
}

// unknownTables extracts bare table references from FROM/JOIN clauses and
// returns those absent from the snapshot. Derived tables and declared
// aliases (CTEs, subquery aliases) are never flagged.
func unknownTables(tokens []token, snapshot *schema.Snapshot) []string {
	declared := declaredAliases(tokens)

	var unknown []string

	seen := map[string]bool{}

	for _, name := range referencedTables(tokens) {
		key := strings.ToLower(name)
		if seen[key] || declared[key] || snapshot.HasTable(name) {
			continue
		}

		seen[key] = true
		unknown = append(unknown, name)
	}

	return unknown
}

// declaredAliases collects names introduced by the statement itself: CTE
// names (name AS (...)) and derived-table aliases ((...) [AS] name)
func declaredAliases(tokens []token) map[string]bool {
	declared := map[string]bool{}

	for i, t := range tokens {
		if t.upper() != "AS" {
			// Bare derived-table alias: ) name
			if t.kind == kindWord && i > 0 && tokens[i-1].isPunct(")") {
				declared[strings.ToLower(t.text)] = true
			}

			continue
		}

		if i+1 < len(tokens) && tokens[i+1].isPunct("(") && i > 0 && tokens[i-1].kind == kindWord {
			declared[strings.ToLower(tokens[i-1].text)] = true
		}

		if i > 0 && tokens[i-1].isPunct(")") && i+1 < len(tokens) && tokens[i+1].kind == kindWord {
			declared[strings.ToLower(tokens[i+1].text)] = true
		}
	}

	return declared
}

// referencedTables walks FROM and JOIN clauses collecting bare identifiers,
// including comma-separated table lists. Qualified names keep only the
// final segment.
func referencedTables(tokens []token) []string {
	var refs []string

	depth := 0
	inFrom := false
	fromDepth := -1

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]

		switch {
		case t.isPunct("("):
			depth++
			continue
		case t.isPunct(")"):
			depth--

			if inFrom && depth < fromDepth {
				inFrom = false
			}

			continue
		}

		upper := t.upper()

		if upper == "FROM" || upper == "JOIN" {
			if name, next := tableNameAt(tokens, i+1); name != "" {
				refs = append(refs, name)
				i = next - 1
			}

			if upper == "FROM" {
				inFrom = true
				fromDepth = depth
			}

			continue
		}

		if inFrom && depth == fromDepth {
			if clauseKeywords[upper] {
				inFrom = false
				continue
			}

			// Old-style comma join: FROM a, b
			if t.isPunct(",") {
				if name, next := tableNameAt(tokens, i+1); name != "" {
					refs = append(refs, name)
					i = next - 1
				}
			}
		}
	}

	return refs
}

// tableNameAt reads an identifier (possibly qualified or quoted) starting at
// index i, returning the table name and the index after it. Returns an empty
// name when the position holds a derived table or no identifier.
func tableNameAt(tokens []token, i int) (string, int) {
	if i >= len(tokens) {
		return "", i
	}

	t := tokens[i]
	if t.kind != kindWord && t.kind != kindQuotedIdent {
		return "", i
	}

	name := unquoteIdent(t.text)
	i++

	// Qualified name: keep the final segment
	for i+1 < len(tokens) && tokens[i].isPunct(".") &&
		(tokens[i+1].kind == kindWord || tokens[i+1].kind == kindQuotedIdent) {
		name = unquoteIdent(tokens[i+1].text)
		i += 2
	}

	return name, i
}

// hasRowLimit reports whether a statement-level row-limiting clause exists
func hasRowLimit(tokens []token) bool {
	depth := 0

	for _, t := range tokens {
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
		case depth == 0 && limitKeywords[t.upper()]:
			return true
		}
	}

	return false
}

// injectRowLimit inserts the cap directly after the first statement-level
// SELECT keyword, before DISTINCT or the column list
func injectRowLimit(sql string, tokens []token, rowLimit int) string {
	depth := 0

	for _, t := range tokens {
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
		case depth == 0 && t.upper() == "SELECT":
			end := t.pos + len(t.text)
			return sql[:end] + fmt.Sprintf(" TOP %d", rowLimit) + sql[end:]
		}
	}

	return sql
}
