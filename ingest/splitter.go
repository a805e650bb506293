// Package ingest turns raw contract text into the clause map the analysis
// pipeline consumes. Clause headings are lines starting with a "§" marker;
// everything up to the next heading is the clause body.
package ingest

import (
	"errors"
	"regexp"
	"strings"

	"clauseguard-backend/models"
)

// ErrNoClauses is returned when the text contains no recognizable clause
// headings
var ErrNoClauses = errors.New("no clauses found: headings must start their own line with '§'")

var (
	headingRe    = regexp.MustCompile(`(?m)^§\s*\d+[a-zA-Z]?\b[^\n]*`)
	blankRunRe   = regexp.MustCompile(`\n{2,}`)
	inlineParaRe = regexp.MustCompile(`(?m)^§`)
)

// NormalizeText collapses blank-line runs and forces every "§" heading onto
// its own paragraph, matching what the document extraction step produces
func NormalizeText(text string) string {
	text = blankRunRe.ReplaceAllString(text, "\n")
	text = inlineParaRe.ReplaceAllString(text, "\n§")
	return text
}

// ExtractClauses splits contract text into ordered clauses keyed by their
// "§ n" heading line. Headings are unique within one document by
// construction; a repeated heading keeps the first occurrence. Bodies may be
// empty.
func ExtractClauses(text string) ([]models.Clause, error) {
	matches := headingRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil, ErrNoClauses
	}

	var clauses []models.Clause
	seen := make(map[string]bool, len(matches))
	for i, m := range matches {
		heading := strings.TrimSpace(text[m[0]:m[1]])
		if seen[heading] {
			continue
		}
		seen[heading] = true

		bodyStart := m[1]
		bodyEnd := len(text)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		clauses = append(clauses, models.Clause{
			Heading: heading,
			Body:    strings.TrimSpace(text[bodyStart:bodyEnd]),
		})
	}

	return clauses, nil
}
