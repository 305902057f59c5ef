// Package search implements query sourcing, diversification, execution,
// and retry policy for the rewards-bearing search bucket.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	intrand "github.com/ohmynofan/rewards-orchestrator/internal/rand"
)

// TrendsSource fetches locale-appropriate trending topics. A concrete
// implementation wraps an external trends API; this package only caches
// and falls back.
type TrendsSource func(ctx context.Context, locale string) ([]string, error)

// HeadlinesSource fetches recent headline phrases for transform-based
// query generation.
type HeadlinesSource func(ctx context.Context, locale string) ([]string, error)

var localFallbackLexicon = []string{
	"weather forecast this week", "how to make coffee", "best movies 2026",
	"top news today", "currency exchange rate", "nearby restaurants",
	"latest phone release", "how tall is mount everest", "easy dinner recipes",
	"history of the internet", "space exploration news", "popular songs this month",
	"stock market summary", "travel destinations 2026", "football scores today",
}

// QuerySource produces deduplicated, diversified search queries from trends
// (cached for an hour) plus headline-derived queries, falling back to the
// local lexicon when neither external source yields anything.
type QuerySource struct {
	Trends    TrendsSource
	Headlines HeadlinesSource
	Locale    string

	mu            sync.Mutex
	trendsCache   []string
	trendsCacheAt time.Time
}

const trendsCacheTTL = time.Hour

func (q *QuerySource) cachedTrends(ctx context.Context) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if time.Since(q.trendsCacheAt) < trendsCacheTTL && len(q.trendsCache) > 0 {
		return q.trendsCache
	}
	if q.Trends == nil {
		return nil
	}
	topics, err := q.Trends(ctx, q.Locale)
	if err != nil || len(topics) == 0 {
		return q.trendsCache
	}
	q.trendsCache = topics
	q.trendsCacheAt = time.Now()
	return topics
}

// Generate produces up to n deduplicated queries for this session.
func (q *QuerySource) Generate(ctx context.Context, n int) []string {
	caser := cases.Title(language.English)
	var raw []string

	raw = append(raw, q.cachedTrends(ctx)...)

	if q.Headlines != nil {
		if headlines, err := q.Headlines(ctx, q.Locale); err == nil {
			for _, h := range headlines {
				raw = append(raw, h, fmt.Sprintf("what is %s", h), fmt.Sprintf("%s vs alternatives", h))
			}
		}
	}

	if len(raw) == 0 {
		raw = append(raw, localFallbackLexicon...)
	}

	intrand.Shuffle(raw)

	seen := make(map[string]bool)
	var out []string
	for _, r := range raw {
		norm := normalize(r)
		if norm == "" || seen[norm] || similarToAny(norm, out) {
			continue
		}
		seen[norm] = true
		out = append(out, caser.String(r))
		if len(out) >= n {
			break
		}
	}
	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// similarToAny drops a query whose normalised form shares its leading
// token sequence with one already accepted.
func similarToAny(norm string, accepted []string) bool {
	tokens := strings.Fields(norm)
	if len(tokens) == 0 {
		return false
	}
	lead := tokens[0]
	if len(tokens) > 1 {
		lead = tokens[0] + " " + tokens[1]
	}
	for _, a := range accepted {
		an := normalize(a)
		if strings.HasPrefix(an, lead) {
			return true
		}
	}
	return false
}
