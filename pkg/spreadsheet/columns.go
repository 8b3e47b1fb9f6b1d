package spreadsheet

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// MaxSuggestionDistance is the largest edit distance that still yields a
// "did you mean" hint.
const MaxSuggestionDistance = 3

// ExpectedColumns is the canonical case sheet header, in export order.
var ExpectedColumns = []string{
	"Docket No",
	"Complainant",
	"Respondent",
	"Address of Respondent",
	"Offense",
	"Date of Commission",
	"Date Filed",
	"Resolving Prosecutor",
	"Date Resolved",
	"Remarks/Decision",
	"Penalty",
	"Criminal Case No",
	"Branch",
	"Date Filed in Court",
	"Index Cards",
}

// RequiredColumns must be present in every imported sheet.
var RequiredColumns = []string{"Docket No", "Complainant", "Respondent"}

// ValidateColumns checks uploaded headers against the expected names. Header
// problems are reported in header order, followed by missing required columns
// in RequiredColumns order. A nil result means the header row is acceptable.
func ValidateColumns(headers, expected []string) []string {
	return validate(headers, expected, RequiredColumns)
}

func validate(headers, expected, required []string) []string {
	known := make(map[string]struct{}, len(expected))
	normalizedExpected := make([]string, len(expected))
	for i, name := range expected {
		normalizedExpected[i] = Normalize(name)
		known[normalizedExpected[i]] = struct{}{}
	}

	var problems []string
	present := make(map[string]struct{}, len(headers))
	for _, header := range headers {
		norm := Normalize(header)
		if norm == "" {
			continue
		}
		present[norm] = struct{}{}
		if _, ok := known[norm]; ok {
			continue
		}
		if suggestion, ok := closest(norm, expected, normalizedExpected); ok {
			problems = append(problems, fmt.Sprintf("Invalid column %q. Did you mean %q?", strings.TrimSpace(header), suggestion))
			continue
		}
		problems = append(problems, fmt.Sprintf("Invalid column %q.", strings.TrimSpace(header)))
	}

	for _, name := range required {
		if _, ok := present[Normalize(name)]; !ok {
			problems = append(problems, fmt.Sprintf("Missing required column %q.", name))
		}
	}
	return problems
}

// closest returns the expected name with the smallest distance to header,
// preferring the earliest on ties.
func closest(header string, expected, normalized []string) (string, bool) {
	best := -1
	bestDistance := 0
	for i, candidate := range normalized {
		d := levenshtein.ComputeDistance(header, candidate)
		if best == -1 || d < bestDistance {
			best = i
			bestDistance = d
		}
	}
	if best == -1 || bestDistance > MaxSuggestionDistance {
		return "", false
	}
	return expected[best], true
}

// Normalize trims and lowercases a header for comparison.
func Normalize(header string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
}
