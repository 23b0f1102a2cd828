package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/terry-li-hm/frenum/internal/testrunner"
)

// EvidenceHash computes the SHA-256 digest over a canonical rendering of
// a test run: rule names sorted, outcomes in declaration order, numbers
// to fixed precision, newline-terminated — so two runs over the same
// inputs produce byte-identical hashes (spec.md §4.8/§9).
func EvidenceHash(outcomes []testrunner.TestOutcome, coverage testrunner.CoverageReport) string {
	var b strings.Builder

	for _, o := range outcomes {
		fmt.Fprintf(&b, "%s|%s|%s|%v\n", o.Case.Description, o.ActualDecision, o.ActualBlockingRule, o.Passed)
	}

	exercised := append([]string(nil), coverage.RulesNotExercised...)
	sort.Strings(exercised)
	fmt.Fprintf(&b, "coverage:%.1f\n", coverage.CoveragePct)
	fmt.Fprintf(&b, "not_exercised:%s\n", strings.Join(exercised, ","))
	fmt.Fprintf(&b, "semantic:%s\n", strings.Join(sortedCopy(coverage.SemanticRules), ","))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func sortedCopy(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}
