package ranking

import (
	"strings"
)

// Candidate holds the fields a user is scored on.
type Candidate struct {
	Username string
	Name     string
	Surname  string
}

// FullName joins name and surname with a space, lowercased and trimmed.
func (c Candidate) FullName() string {
	return strings.TrimSpace(strings.ToLower(c.Name + " " + c.Surname))
}

// Query is a normalized search query.
type Query struct {
	// Normalized is the trimmed, lowercased query text.
	Normalized string
	// Terms are the non-empty whitespace-separated parts of Normalized.
	Terms []string
}

// NewQuery normalizes raw search input.
func NewQuery(raw string) Query {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	return Query{
		Normalized: normalized,
		Terms:      strings.Fields(normalized),
	}
}

// IsEmpty reports whether the query has no terms.
func (q Query) IsEmpty() bool {
	return len(q.Terms) == 0
}

// ScoreUser computes the additive relevance score of c for q.
// Every rule is evaluated once per term and the results are summed.
//
// Default formula per term:
//
//	username == term                 +100
//	username starts with term        +50
//	full name == whole query         +80
//	full name starts with term       +40
//	username contains term           +20
//	full name contains term          +15
//	name contains term               +10
//	surname contains term            +10
func ScoreUser(q Query, c Candidate, weights *Weights) float64 {
	if weights == nil {
		weights = DefaultWeights()
	}
	w := weights.User

	username := strings.ToLower(c.Username)
	fullName := c.FullName()
	name := strings.ToLower(c.Name)
	surname := strings.ToLower(c.Surname)

	var score float64
	for _, term := range q.Terms {
		if username == term {
			score += w.ExactUsername
		}
		if strings.HasPrefix(username, term) {
			score += w.UsernamePrefix
		}
		if fullName == q.Normalized {
			score += w.ExactFullName
		}
		if strings.HasPrefix(fullName, term) {
			score += w.FullNamePrefix
		}
		if strings.Contains(username, term) {
			score += w.UsernameContains
		}
		if strings.Contains(fullName, term) {
			score += w.FullNameContains
		}
		if strings.Contains(name, term) {
			score += w.NamePartContains
		}
		if strings.Contains(surname, term) {
			score += w.NamePartContains
		}
	}
	return score
}
