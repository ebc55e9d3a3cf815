package types

import (
	"sort"
	"strings"
)

// LearningStats captures what automation has learned from past runs.
// Persisted under application_answers.__learning.
type LearningStats struct {
	// FieldSuccess maps field key -> answer value -> number of successful uses.
	FieldSuccess map[string]map[string]int `json:"field_success,omitempty"`
	// BlockerCounts maps issue category -> number of occurrences.
	BlockerCounts map[string]int `json:"blocker_counts,omitempty"`
	// DomainStats maps apply domain -> outcome tallies.
	DomainStats map[string]DomainStat `json:"domain_stats,omitempty"`
}

// DomainStat tallies automation outcomes for one apply domain.
type DomainStat struct {
	Runs      int `json:"runs"`
	Submitted int `json:"submitted"`
	Failed    int `json:"failed"`
	Reviewed  int `json:"reviewed"`
}

// IsZero reports whether nothing has been learned yet.
func (l *LearningStats) IsZero() bool {
	return len(l.FieldSuccess) == 0 && len(l.BlockerCounts) == 0 && len(l.DomainStats) == 0
}

// RecordFieldSuccess increments the success count of value for field key.
// Empty keys or values are ignored.
func (l *LearningStats) RecordFieldSuccess(key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	if l.FieldSuccess == nil {
		l.FieldSuccess = make(map[string]map[string]int)
	}
	if l.FieldSuccess[key] == nil {
		l.FieldSuccess[key] = make(map[string]int)
	}
	l.FieldSuccess[key][value]++
}

// RecordBlocker increments the count for an issue category.
func (l *LearningStats) RecordBlocker(category string) {
	if category == "" {
		return
	}
	if l.BlockerCounts == nil {
		l.BlockerCounts = make(map[string]int)
	}
	l.BlockerCounts[category]++
}

// RecordDomainOutcome tallies one automation attempt against domain.
func (l *LearningStats) RecordDomainOutcome(domain string, status ApplicationStatus) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return
	}
	if l.DomainStats == nil {
		l.DomainStats = make(map[string]DomainStat)
	}
	stat := l.DomainStats[domain]
	stat.Runs++
	switch status {
	case StatusSubmitted:
		stat.Submitted++
	case StatusFailed:
		stat.Failed++
	case StatusReviewed:
		stat.Reviewed++
	}
	l.DomainStats[domain] = stat
}

// BestValues returns the highest-count value for every learned field.
// Ties are broken by lexical order so the result is deterministic.
func (l *LearningStats) BestValues() map[string]string {
	out := make(map[string]string, len(l.FieldSuccess))
	for key := range l.FieldSuccess {
		if v, ok := l.BestValue(key); ok {
			out[key] = v
		}
	}
	return out
}

// BestValue returns the highest-count value for a single field key.
func (l *LearningStats) BestValue(key string) (string, bool) {
	values := l.FieldSuccess[key]
	if len(values) == 0 {
		return "", false
	}
	candidates := make([]string, 0, len(values))
	for v := range values {
		candidates = append(candidates, v)
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := values[candidates[i]], values[candidates[j]]
		if ci != cj {
			return ci > cj
		}
		return candidates[i] < candidates[j]
	})
	if values[candidates[0]] <= 0 {
		return "", false
	}
	return candidates[0], true
}

// ToMap converts the stats into the persisted JSON-compatible shape.
func (l *LearningStats) ToMap() map[string]any {
	out := make(map[string]any, 3)
	if len(l.FieldSuccess) > 0 {
		fs := make(map[string]any, len(l.FieldSuccess))
		for key, values := range l.FieldSuccess {
			inner := make(map[string]any, len(values))
			for v, n := range values {
				inner[v] = n
			}
			fs[key] = inner
		}
		out["field_success"] = fs
	}
	if len(l.BlockerCounts) > 0 {
		bc := make(map[string]any, len(l.BlockerCounts))
		for k, n := range l.BlockerCounts {
			bc[k] = n
		}
		out["blocker_counts"] = bc
	}
	if len(l.DomainStats) > 0 {
		ds := make(map[string]any, len(l.DomainStats))
		for d, s := range l.DomainStats {
			ds[d] = map[string]any{
				"runs":      s.Runs,
				"submitted": s.Submitted,
				"failed":    s.Failed,
				"reviewed":  s.Reviewed,
			}
		}
		out["domain_stats"] = ds
	}
	return out
}

// LearningFromMap parses the persisted shape. Malformed entries are skipped.
func LearningFromMap(m map[string]any) LearningStats {
	var l LearningStats
	if fs, ok := m["field_success"].(map[string]any); ok {
		for key, raw := range fs {
			values, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			for v, n := range values {
				if count := toInt(n); count > 0 {
					if l.FieldSuccess == nil {
						l.FieldSuccess = make(map[string]map[string]int)
					}
					if l.FieldSuccess[key] == nil {
						l.FieldSuccess[key] = make(map[string]int)
					}
					l.FieldSuccess[key][v] = count
				}
			}
		}
	}
	if bc, ok := m["blocker_counts"].(map[string]any); ok {
		for k, n := range bc {
			if count := toInt(n); count > 0 {
				if l.BlockerCounts == nil {
					l.BlockerCounts = make(map[string]int)
				}
				l.BlockerCounts[k] = count
			}
		}
	}
	if ds, ok := m["domain_stats"].(map[string]any); ok {
		for d, raw := range ds {
			stat, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if l.DomainStats == nil {
				l.DomainStats = make(map[string]DomainStat)
			}
			l.DomainStats[d] = DomainStat{
				Runs:      toInt(stat["runs"]),
				Submitted: toInt(stat["submitted"]),
				Failed:    toInt(stat["failed"]),
				Reviewed:  toInt(stat["reviewed"]),
			}
		}
	}
	return l
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}
