// Package search implements free-text user search: candidate retrieval
// through the user directory, additive relevance scoring, de-duplication and
// truncation.
package search

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/socialgraph/internal/ranking"
	"github.com/onnwee/socialgraph/internal/tracing"
	"github.com/onnwee/socialgraph/internal/user"
)

// Result limits.
const (
	// CandidateLimit bounds how many rows are fetched before scoring.
	CandidateLimit = 15
	// ResultLimit bounds how many users are returned.
	ResultLimit = 10
)

// Ranker answers user search queries. Search never returns an error: any
// storage failure yields an empty result.
type Ranker struct {
	dir     user.Directory
	weights *ranking.Weights
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithWeights overrides the default ranking weights.
func WithWeights(w *ranking.Weights) Option {
	return func(r *Ranker) {
		if w != nil {
			r.weights = w
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Ranker) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Ranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRanker creates a Ranker over dir.
func NewRanker(dir user.Directory, opts ...Option) *Ranker {
	r := &Ranker{
		dir:     dir,
		weights: ranking.DefaultWeights(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search returns up to ResultLimit users ordered by descending relevance.
// An empty or whitespace-only query returns an empty list without touching
// storage.
func (r *Ranker) Search(ctx context.Context, raw string) []user.Summary {
	q := ranking.NewQuery(raw)
	if q.IsEmpty() {
		return []user.Summary{}
	}

	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "search_users")
	tracing.SetAttributes(ctx, attribute.Int("search.terms", len(q.Terms)))

	candidates, err := r.dir.Search(ctx, BuildFilter(q), CandidateLimit)
	endSpan(err)
	if err != nil {
		r.metrics.incFailures()
		r.logger.ErrorContext(ctx, "user search failed",
			slog.String("error", err.Error()),
			slog.Int("terms", len(q.Terms)))
		return []user.Summary{}
	}

	results := Rank(q, candidates, r.weights)
	r.metrics.observe(time.Since(start).Seconds(), len(results))
	return results
}

// BuildFilter returns the candidate filter for q: contains and starts-with on
// username, name and surname for every term, plus name/surname pairings of
// the first two terms in both orders.
func BuildFilter(q ranking.Query) user.Filter {
	fields := []user.Field{user.FieldUsername, user.FieldName, user.FieldSurname}

	filter := make(user.Filter, 0, len(q.Terms)*6+2)
	for _, term := range q.Terms {
		for _, f := range fields {
			filter = append(filter,
				user.Clause{{Field: f, Match: user.MatchContains, Term: term}},
				user.Clause{{Field: f, Match: user.MatchStartsWith, Term: term}},
			)
		}
	}

	if len(q.Terms) >= 2 {
		first, second := q.Terms[0], q.Terms[1]
		filter = append(filter,
			user.Clause{
				{Field: user.FieldName, Match: user.MatchContains, Term: first},
				{Field: user.FieldSurname, Match: user.MatchContains, Term: second},
			},
			user.Clause{
				{Field: user.FieldName, Match: user.MatchContains, Term: second},
				{Field: user.FieldSurname, Match: user.MatchContains, Term: first},
			},
		)
	}
	return filter
}

// Rank scores candidates, stable-sorts them by descending score, drops
// repeated ids keeping the first occurrence and truncates to ResultLimit.
func Rank(q ranking.Query, candidates []user.Summary, weights *ranking.Weights) []user.Summary {
	type scored struct {
		summary user.Summary
		score   float64
	}

	items := make([]scored, len(candidates))
	for i, c := range candidates {
		items[i] = scored{
			summary: c,
			score: ranking.ScoreUser(q, ranking.Candidate{
				Username: c.Username,
				Name:     c.Name,
				Surname:  c.Surname,
			}, weights),
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	seen := make(map[string]struct{}, len(items))
	out := make([]user.Summary, 0, ResultLimit)
	for _, it := range items {
		if _, dup := seen[it.summary.ID]; dup {
			continue
		}
		seen[it.summary.ID] = struct{}{}
		out = append(out, it.summary)
		if len(out) == ResultLimit {
			break
		}
	}
	return out
}
