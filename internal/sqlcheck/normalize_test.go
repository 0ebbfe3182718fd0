package sqlcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_UppercasesKeywords(t *testing.T) {
	got := Normalize("select name from client where state = 'TX'")

	assert.Equal(t, "SELECT name FROM client WHERE state = 'TX'", got)
}

func TestNormalize_CollapsesWhitespaceAndComments(t *testing.T) {
	got := Normalize("SELECT  id ,\n\tname  FROM client -- trailing note")

	assert.Equal(t, "SELECT id, name FROM client", got)
}

func TestNormalize_DropsTrailingSemicolon(t *testing.T) {
	got := Normalize("SELECT id FROM client;")

	assert.Equal(t, "SELECT id FROM client", got)
}

func TestNormalize_KeepsInteriorSemicolons(t *testing.T) {
	got := Normalize("SELECT id FROM client; DROP TABLE client;")

	assert.Contains(t, got, ";")
	assert.Contains(t, got, "DROP")
}

func TestNormalize_LiteralsUntouched(t *testing.T) {
	got := Normalize("SELECT 'select from where' AS phrase FROM client")

	assert.Contains(t, got, "'select from where'")
}

func TestNormalize_ParensAndDotsPacked(t *testing.T) {
	got := Normalize("SELECT count( * ) FROM dbo . client")

	assert.Equal(t, "SELECT COUNT(*) FROM dbo.client", got)
}

func TestNormalize_Idempotent(t *testing.T) {
	once := Normalize("select  top 100 * from client where state='TX' ;")
	twice := Normalize(once)

	assert.Equal(t, once, twice)
}

func TestNormalize_Empty(t *testing.T) {
	assert.Equal(t, "", Normalize("   -- nothing here\n"))
}
