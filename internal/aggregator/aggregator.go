package aggregator

import (
	"sort"

	"github.com/samber/lo"

	"github.com/zhaobenny/clawtop/internal/model"
)

// Percentile fractions applied to the descending ranking
const (
	medianFraction = 0.5
	p90Fraction    = 0.9
	p95Fraction    = 0.95
	p99Fraction    = 0.99
)

// Totals holds usage summed over a set of records
type Totals struct {
	Sessions      int
	InputTokens   int64
	OutputTokens  int64
	EstimatedCost float64
}

// Rank returns a copy of records sorted by total tokens, heaviest first.
// Ties are broken by session key, agent ID, session ID and input tokens so
// the result does not depend on the input order.
func Rank(records []model.SessionUsageRecord) []model.SessionUsageRecord {
	ranked := make([]model.SessionUsageRecord, len(records))
	copy(ranked, records)

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.TotalTokens != b.TotalTokens {
			return a.TotalTokens > b.TotalTokens
		}
		if a.SessionKey != b.SessionKey {
			return a.SessionKey < b.SessionKey
		}
		if a.AgentID != b.AgentID {
			return a.AgentID < b.AgentID
		}
		if a.SessionID != b.SessionID {
			return a.SessionID < b.SessionID
		}
		return a.InputTokens > b.InputTokens
	})

	return ranked
}

// Distribution computes statistics over a ranking produced by Rank.
//
// Median, P90, P95 and P99 are read from the descending slice at
// floor(n*fraction). They are positions counted from the heaviest session,
// so P99 reports a value near the bottom of the distribution. Even-length
// inputs take one middle element for the median instead of averaging.
func Distribution(ranked []model.SessionUsageRecord) model.Distribution {
	n := len(ranked)
	if n == 0 {
		return model.Distribution{}
	}

	sum := lo.SumBy(ranked, func(r model.SessionUsageRecord) int64 { return r.TotalTokens })

	return model.Distribution{
		Average: float64(sum) / float64(n),
		Median:  atFraction(ranked, medianFraction),
		P90:     atFraction(ranked, p90Fraction),
		P95:     atFraction(ranked, p95Fraction),
		P99:     atFraction(ranked, p99Fraction),
		Max:     ranked[0].TotalTokens,
	}
}

func atFraction(ranked []model.SessionUsageRecord, fraction float64) int64 {
	idx := int(float64(len(ranked)) * fraction)
	if idx >= len(ranked) {
		return 0
	}
	return ranked[idx].TotalTokens
}

// CalculateTotals sums tokens and cost across records
func CalculateTotals(records []model.SessionUsageRecord) Totals {
	return Totals{
		Sessions:      len(records),
		InputTokens:   lo.SumBy(records, func(r model.SessionUsageRecord) int64 { return r.InputTokens }),
		OutputTokens:  lo.SumBy(records, func(r model.SessionUsageRecord) int64 { return r.OutputTokens }),
		EstimatedCost: lo.SumBy(records, func(r model.SessionUsageRecord) float64 { return r.EstimatedCost }),
	}
}

// Top returns the first n ranked records; n <= 0 returns all of them
func Top(ranked []model.SessionUsageRecord, n int) []model.SessionUsageRecord {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}
