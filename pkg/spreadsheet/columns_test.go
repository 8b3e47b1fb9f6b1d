package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateColumnsExactMatchesAnyCase(t *testing.T) {
	headers := []string{"  docket no ", "COMPLAINANT", "Respondent", "remarks/decision", "Index Cards"}
	assert.Empty(t, ValidateColumns(headers, ExpectedColumns))
	assert.Empty(t, ValidateColumns(ExpectedColumns, ExpectedColumns))
}

func TestValidateColumnsSuggestsCloseMatch(t *testing.T) {
	problems := ValidateColumns([]string{"Docet No", "Complainant", "Respondent"}, ExpectedColumns)
	require.Len(t, problems, 2)
	assert.Equal(t, `Invalid column "Docet No". Did you mean "Docket No"?`, problems[0])
	assert.Equal(t, `Missing required column "Docket No".`, problems[1])
}

func TestValidateColumnsRejectsUnknown(t *testing.T) {
	problems := ValidateColumns([]string{"Docket No", "Complainant", "Respondent", "xyz123"}, ExpectedColumns)
	assert.Equal(t, []string{`Invalid column "xyz123".`}, problems)
}

func TestValidateColumnsMissingRequired(t *testing.T) {
	problems := ValidateColumns([]string{"Docket No", "Complainant", "Offense"}, ExpectedColumns)
	assert.Equal(t, []string{`Missing required column "Respondent".`}, problems)
}

func TestValidateColumnsOrdering(t *testing.T) {
	problems := ValidateColumns([]string{"Ofense", "zzzzzzzzzz", "Complainant"}, ExpectedColumns)
	assert.Equal(t, []string{
		`Invalid column "Ofense". Did you mean "Offense"?`,
		`Invalid column "zzzzzzzzzz".`,
		`Missing required column "Docket No".`,
		`Missing required column "Respondent".`,
	}, problems)
}

func TestValidateColumnsIgnoresBlankHeaders(t *testing.T) {
	assert.Empty(t, ValidateColumns([]string{"Docket No", "", "Complainant", "  ", "Respondent"}, ExpectedColumns))
}

func TestClosestPrefersFirstOnTie(t *testing.T) {
	expected := []string{"abcd", "abce"}
	suggestion, ok := closest("abcx", expected, expected)
	require.True(t, ok)
	assert.Equal(t, "abcd", suggestion)
}
