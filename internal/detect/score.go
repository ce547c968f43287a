package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/failsift/failsift/internal/cluster"
	"github.com/failsift/failsift/internal/domain"
)

// fallbackConfidence is the fixed score for heuristic groupings. The
// heuristic is exact on its key, so its certainty does not vary with size.
const fallbackConfidence = 75.0

// learnedConfidence grows with cluster size: denser clusters are stronger
// evidence. Capped below certainty because the model can still be wrong.
func learnedConfidence(size int) float64 {
	c := 50 + 10*float64(size)
	if c > 95 {
		return 95
	}
	return c
}

// fallbackPatternID derives a stable id from the grouping key and the
// detection date, so repeated runs on the same day converge on the same id
// for the same service and error type.
func fallbackPatternID(service, errType string, day time.Time) string {
	sum := sha256.Sum256([]byte(service + "|" + errType + "|" + day.UTC().Format("2006-01-02")))
	return "pat-" + hex.EncodeToString(sum[:6])
}

// learnedPatternID is run-scoped: cluster indices are only meaningful
// within the run that produced them.
func learnedPatternID(runStart time.Time, idx int) string {
	return fmt.Sprintf("pat-%d-%d", runStart.Unix(), idx)
}

// buildPattern scores and names one candidate. Candidates below the minimum
// cluster size report ok=false and produce nothing.
func buildPattern(c domain.Candidate, strategy domain.Strategy, runStart time.Time, idx int) (domain.Pattern, bool) {
	if len(c.Records) < cluster.MinClusterSize {
		return domain.Pattern{}, false
	}

	services := make(map[string]struct{})
	errTypes := make(map[string]struct{})
	ids := make([]string, 0, len(c.Records))
	first, last := c.Records[0].Timestamp, c.Records[0].Timestamp

	for _, rec := range c.Records {
		services[rec.ServiceName] = struct{}{}
		errTypes[rec.ErrorType()] = struct{}{}
		ids = append(ids, rec.FailureID)
		if rec.Timestamp.Before(first) {
			first = rec.Timestamp
		}
		if rec.Timestamp.After(last) {
			last = rec.Timestamp
		}
	}

	p := domain.Pattern{
		AffectedServices: sortedKeys(services),
		ErrorTypes:       sortedKeys(errTypes),
		FailureCount:     len(c.Records),
		FirstOccurrence:  first,
		LastOccurrence:   last,
		FailureIDs:       ids,
	}

	if strategy == domain.StrategyLearned {
		p.PatternID = learnedPatternID(runStart, idx)
		p.Confidence = learnedConfidence(len(c.Records))
	} else {
		p.PatternID = fallbackPatternID(c.Records[0].ServiceName, c.Records[0].ErrorType(), runStart)
		p.Confidence = fallbackConfidence
	}

	return p, true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
