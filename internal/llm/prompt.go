package llm

import (
	"fmt"
	"strings"
)

// buildIntentPrompt creates a structured prompt for intent extraction
func buildIntentPrompt(question string) string {
	return fmt.Sprintf(`You are an expert at reading database questions and extracting their intent.
Analyze the user's question and respond with a JSON object containing:
- goal: a one-sentence restatement of what the user wants to know
- entities: an array of business entities mentioned (tables, objects, people, places)
- filters: an array of filter conditions implied by the question, in plain words
- aggregation: the aggregation requested if any (count, sum, avg, min, max), else ""
- confidence: a float between 0.0 and 1.0

Respond with the JSON object only, no prose.

Question: %s`, question)
}

// buildGenerationPrompt creates a structured prompt for SQL generation
func buildGenerationPrompt(question string, intent *Intent, schemaContext string) string {
	var sb strings.Builder

	sb.WriteString(`You are an expert at converting questions into SQL Server SELECT queries.
Generate exactly one read-only SELECT statement that answers the question using
ONLY the tables and columns in the schema below.

Respond with a JSON object containing a single field:
- sql: the SELECT statement

Guidelines:
1. One statement only; never INSERT, UPDATE, DELETE, or DDL
2. Only reference tables and columns that exist in the schema
3. Use TOP to bound result size when the question does not ask for everything
4. Prefer explicit JOIN ... ON syntax

Schema:
`)
	sb.WriteString(schemaContext)

	if intent != nil {
		sb.WriteString("\nExtracted intent:\n")
		fmt.Fprintf(&sb, "  Goal: %s\n", intent.Goal)

		if len(intent.Entities) > 0 {
			fmt.Fprintf(&sb, "  Entities: %s\n", strings.Join(intent.Entities, ", "))
		}

		if len(intent.Filters) > 0 {
			fmt.Fprintf(&sb, "  Filters: %s\n", strings.Join(intent.Filters, "; "))
		}

		if intent.Aggregation != "" {
			fmt.Fprintf(&sb, "  Aggregation: %s\n", intent.Aggregation)
		}
	}

	fmt.Fprintf(&sb, "\nQuestion: %s", question)

	return sb.String()
}

// summaryRowCap bounds how many result rows are sent back to the model
const summaryRowCap = 20

// buildSummaryPrompt creates a prompt for summarizing executed results
func buildSummaryPrompt(question, sql string, columns []string, rows [][]string) string {
	var sb strings.Builder

	sb.WriteString(`You are summarizing database query results for a non-technical reader.
Write one or two plain sentences answering the original question from the rows
below. Do not mention SQL. Respond with the sentences only.

`)
	fmt.Fprintf(&sb, "Question: %s\n", question)
	fmt.Fprintf(&sb, "Query: %s\n", sql)
	fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(columns, ", "))
	fmt.Fprintf(&sb, "Rows (%d total):\n", len(rows))

	for i, row := range rows {
		if i >= summaryRowCap {
			fmt.Fprintf(&sb, "  ... %d more rows omitted\n", len(rows)-summaryRowCap)

			break
		}

		fmt.Fprintf(&sb, "  %s\n", strings.Join(row, " | "))
	}

	return sb.String()
}
