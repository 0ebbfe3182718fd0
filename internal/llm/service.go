package llm

import (
	"context"
	"strings"
)

// Service defines the interface for language model operations
type Service interface {
	// ExtractIntent distills a natural-language question into a structured
	// intent used for schema narrowing and SQL generation.
	ExtractIntent(ctx context.Context, question string) (*Intent, error)

	// GenerateSQL produces a single read-only SQL statement for the question,
	// constrained to the tables described by schemaContext.
	GenerateSQL(ctx context.Context, question string, intent *Intent, schemaContext string) (string, error)

	// SummarizeResults renders executed query results as a short
	// natural-language answer. Optional; callers degrade to raw rows when it
	// fails.
	SummarizeResults(ctx context.Context, question, sql string, columns []string, rows [][]string) (string, error)

	Configure(config Config) error
}

// Config represents language model service configuration
type Config struct {
	Provider string `json:"provider"` // openai, anthropic, ollama
	Model    string `json:"model"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// Intent is the structured reading of a user question
type Intent struct {
	Goal        string   `json:"goal"`
	Entities    []string `json:"entities"`
	Filters     []string `json:"filters"`
	Aggregation string   `json:"aggregation,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// Tokens returns the narrowing tokens derived from the intent: the entities
// plus the significant words of each filter
func (in *Intent) Tokens() []string {
	var tokens []string

	seen := map[string]bool{}

	add := func(word string) {
		word = strings.TrimSpace(word)
		if word == "" {
			return
		}

		key := strings.ToLower(word)
		if seen[key] {
			return
		}

		seen[key] = true
		tokens = append(tokens, word)
	}

	for _, e := range in.Entities {
		add(e)
	}

	for _, f := range in.Filters {
		for _, word := range strings.Fields(f) {
			add(strings.Trim(word, ".,;:'\""))
		}
	}

	return tokens
}

// Provider constants for supported backends
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)
