package schema

import "strings"

// Narrow selects the subset of tables relevant to the extracted intent
// tokens. Table-name matches take priority over column-only matches; all
// equally-matching tables are kept. When nothing matches, the full snapshot
// is returned so generation never runs against an empty context.
func Narrow(s *Snapshot, tokens []string) *Snapshot {
	if s == nil || s.Len() == 0 || len(tokens) == 0 {
		return s
	}

	normalized := make([]string, 0, len(tokens))

	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			normalized = append(normalized, tok)
		}
	}

	if len(normalized) == 0 {
		return s
	}

	byName := map[string]Table{}

	for key, t := range s.Tables {
		for _, tok := range normalized {
			if tokenMatches(key, tok) {
				byName[key] = t
				break
			}
		}
	}

	if len(byName) > 0 {
		return subset(s, byName)
	}

	// Fall back to column matches
	byColumn := map[string]Table{}

	for key, t := range s.Tables {
		if columnMatches(t, normalized) {
			byColumn[key] = t
		}
	}

	if len(byColumn) > 0 {
		return subset(s, byColumn)
	}

	return s
}

// tokenMatches reports whether a token names the table, allowing substring
// matches in both directions so "clients" still matches table "client"
func tokenMatches(name, token string) bool {
	return name == token ||
		strings.Contains(name, token) ||
		strings.Contains(token, name)
}

func columnMatches(t Table, tokens []string) bool {
	for _, col := range t.Columns {
		colName := strings.ToLower(col.Name)
		for _, tok := range tokens {
			if colName == tok || strings.Contains(colName, tok) {
				return true
			}
		}
	}

	return false
}

func subset(s *Snapshot, tables map[string]Table) *Snapshot {
	return &Snapshot{
		Source:    s.Source,
		CreatedAt: s.CreatedAt,
		Tables:    tables,
	}
}
