package rate_limiter

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github/martinmaurice/limitd/pkg/enum"
)

const DefaultAnalyticsTopN = 10

// Analytics aggregates the short-TTL per-check audit records. The records
// expire after an hour, so anything beyond "1h" only covers what is still
// in the store.
type Analytics struct {
	TimeRange         string            `json:"time_range"`
	StartTime         time.Time         `json:"start_time"`
	EndTime           time.Time         `json:"end_time"`
	TotalRequests     int               `json:"total_requests"`
	BlockedRequests   int               `json:"blocked_requests"`
	TopBlocked        []IdentifierCount `json:"top_blocked"`
	TopEndpoints      []IdentifierCount `json:"top_endpoints"`
	AlgorithmUsage    map[string]int    `json:"algorithm_usage"`
	ScopeDistribution map[string]int    `json:"scope_distribution"`
}

type IdentifierCount struct {
	Identifier string `json:"identifier"`
	Count      int    `json:"count"`
}

// GetAnalytics builds a usage report for the given range ("1h", "1d", "1w";
// anything else means "1h"). An empty scope aggregates every scope. topN
// caps the offender and endpoint rankings.
func (l *Limiter) GetAnalytics(ctx context.Context, timeRange string, scope enum.Scope, topN int) (Analytics, error) {
	if topN <= 0 {
		topN = DefaultAnalyticsTopN
	}

	now := l.now().UTC()
	start := now.Add(-rangeDuration(timeRange))

	report := Analytics{
		TimeRange:         timeRange,
		StartTime:         start,
		EndTime:           now,
		AlgorithmUsage:    make(map[string]int),
		ScopeDistribution: make(map[string]int),
	}

	keys, err := l.store.Scan(ctx, eventKeyPrefix+"*")
	if err != nil {
		return Analytics{}, err
	}

	blocked := make(map[string]int)
	endpoints := make(map[string]int)

	for _, key := range keys {
		raw, err := l.store.Get(ctx, key)
		if err != nil {
			return Analytics{}, err
		}
		if raw == nil {
			continue
		}

		var record checkRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			slog.Warn("skipping malformed rate limit event record", "key", key, "error", err)
			continue
		}
		if record.Timestamp.Before(start) {
			continue
		}
		if scope != "" && record.Scope != scope {
			continue
		}

		report.TotalRequests++
		report.AlgorithmUsage[record.Algorithm.String()]++
		report.ScopeDistribution[record.Scope.String()]++
		if record.Endpoint != "" {
			endpoints[record.Endpoint]++
		}
		if !record.Allowed {
			report.BlockedRequests++
			blocked[record.Identifier]++
		}
	}

	report.TopBlocked = topCounts(blocked, topN)
	report.TopEndpoints = topCounts(endpoints, topN)
	return report, nil
}

func rangeDuration(timeRange string) time.Duration {
	switch timeRange {
	case "1d":
		return 24 * time.Hour
	case "1w":
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

func topCounts(counts map[string]int, n int) []IdentifierCount {
	ranked := make([]IdentifierCount, 0, len(counts))
	for identifier, count := range counts {
		ranked = append(ranked, IdentifierCount{Identifier: identifier, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Identifier < ranked[j].Identifier
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
