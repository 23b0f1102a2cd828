package report

import (
	"sort"

	"github.com/terry-li-hm/frenum/internal/audit"
	"github.com/terry-li-hm/frenum/internal/evaluator"
)

// NamedCount pairs a name (tool or rule) with how many times it occurred,
// used for the top-N blocked-tools and top-N triggered-rules summaries.
type NamedCount struct {
	Name  string
	Count int
}

// AuditSummary aggregates a stream of audit records, per spec.md §4.8.
type AuditSummary struct {
	TotalEvaluations  int
	AllowCount        int
	BlockCount        int
	AllowPct          float64
	BlockPct          float64
	TopBlockedTools   []NamedCount
	TopTriggeredRules []NamedCount
	OverriddenBlocks  int
	HumanOverrideRate float64
}

const topN = 5

// Summarize computes an AuditSummary over records. Percentages are rounded
// to one decimal place. Top-N lists break ties by name, ascending, so the
// output is stable across runs with identical counts.
func Summarize(records []audit.Record) AuditSummary {
	var s AuditSummary
	s.TotalEvaluations = len(records)

	blockedToolCounts := map[string]int{}
	ruleCounts := map[string]int{}

	for _, r := range records {
		switch r.Decision {
		case evaluator.DecisionAllow:
			s.AllowCount++
		case evaluator.DecisionBlock:
			s.BlockCount++
			blockedToolCounts[r.ToolName]++
			ruleCounts[r.BlockingRule]++
			if r.HumanOverride != nil {
				s.OverriddenBlocks++
			}
		}
	}

	if s.TotalEvaluations > 0 {
		s.AllowPct = roundTo1dp(100 * float64(s.AllowCount) / float64(s.TotalEvaluations))
		s.BlockPct = roundTo1dp(100 * float64(s.BlockCount) / float64(s.TotalEvaluations))
	}
	if s.BlockCount > 0 {
		s.HumanOverrideRate = roundTo1dp(100 * float64(s.OverriddenBlocks) / float64(s.BlockCount))
	}

	s.TopBlockedTools = topNamedCounts(blockedToolCounts, topN)
	s.TopTriggeredRules = topNamedCounts(ruleCounts, topN)

	return s
}

func topNamedCounts(counts map[string]int, n int) []NamedCount {
	all := make([]NamedCount, 0, len(counts))
	for name, count := range counts {
		all = append(all, NamedCount{Name: name, Count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Name < all[j].Name
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func roundTo1dp(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
