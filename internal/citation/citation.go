// Package citation verifies that synthesized answers actually cite the
// sources they were given.
package citation

import (
	"regexp"
	"strconv"

	"github.com/finsight/finsight/internal/tenant"
)

// marker matches one citation marker, capturing its source number.
// Combined citations like "[Source 1, Source 2]" are deliberately not
// matched; the prompt asks for them, but only well-formed single markers
// count as verifiable citations.
var marker = regexp.MustCompile(`\[Source (\d+)\]`)

// Report is the verification verdict for one answer.
type Report struct {
	// CitationCount is the total number of markers found, duplicates
	// and out-of-range markers included.
	CitationCount int

	// OutOfRangeCount is the number of markers referencing a source
	// number outside 1..SourceCount. They remain in CitationCount;
	// a dangling citation is still a citation attempt worth surfacing.
	OutOfRangeCount int

	// SourceCount is the number of sources the answer drew from.
	SourceCount int

	// HasCitations reports whether at least one marker was found.
	HasCitations bool

	// AllSourcesMatchTenant reports whether every source's recorded
	// ticker equals the queried ticker. False means tenant isolation
	// was breached somewhere upstream.
	AllSourcesMatchTenant bool
}

// Verify inspects answerText against its sources. Pure: neither the
// answer nor the sources are mutated.
func Verify(answerText string, sources []tenant.Source, ticker string) Report {
	report := Report{
		SourceCount:           len(sources),
		AllSourcesMatchTenant: true,
	}

	for _, m := range marker.FindAllStringSubmatch(answerText, -1) {
		report.CitationCount++
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(sources) {
			report.OutOfRangeCount++
		}
	}
	report.HasCitations = report.CitationCount > 0

	for _, src := range sources {
		if src.Ticker != ticker {
			report.AllSourcesMatchTenant = false
			break
		}
	}

	return report
}
