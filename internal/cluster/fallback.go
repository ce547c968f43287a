package cluster

import (
	"github.com/failsift/failsift/internal/domain"
)

// MinClusterSize is the smallest group that can become a pattern candidate.
// Singleton failures never form a pattern.
const MinClusterSize = 2

// Fallback groups failures by service name and normalized error type. It
// needs no model and no network, and running it twice on the same batch
// yields the same candidates in the same order.
func Fallback(records []domain.FailureRecord) []domain.Candidate {
	groups := make(map[string][]domain.FailureRecord)
	var order []string // preserve first-seen order

	for _, rec := range records {
		key := rec.ServiceName + "|" + rec.ErrorType()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	var candidates []domain.Candidate
	for _, key := range order {
		members := groups[key]
		if len(members) < MinClusterSize {
			continue
		}
		candidates = append(candidates, domain.Candidate{Records: members})
	}

	return candidates
}

// FromIndexGroups maps index groups back onto the records they were computed
// from. Indices out of range are dropped, as are groups that fall below
// MinClusterSize after filtering.
func FromIndexGroups(records []domain.FailureRecord, groups [][]int) []domain.Candidate {
	var candidates []domain.Candidate
	for _, group := range groups {
		members := make([]domain.FailureRecord, 0, len(group))
		for _, idx := range group {
			if idx < 0 || idx >= len(records) {
				continue
			}
			members = append(members, records[idx])
		}
		if len(members) < MinClusterSize {
			continue
		}
		candidates = append(candidates, domain.Candidate{Records: members})
	}
	return candidates
}
