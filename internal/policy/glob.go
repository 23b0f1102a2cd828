package policy

import (
	"regexp"
	"strings"
)

// compileGlob turns a tiny literal+"*" glob into an anchored regexp. By
// design note, richer glob syntax is deliberately out of scope: adding
// character classes or "?" would change what "applicability" means for
// coverage purposes.
func compileGlob(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		if r == '*' {
			b.WriteString(".*")
		} else {
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// splitAppliesTo partitions a raw applies_to list into the "matches
// everything" case, a literal-name lookup table, and compiled globs.
func splitAppliesTo(raw []string) (all bool, literal map[string]bool, globs []*regexp.Regexp) {
	literal = map[string]bool{}
	for _, entry := range raw {
		if entry == "*" {
			all = true
			continue
		}
		if strings.Contains(entry, "*") {
			globs = append(globs, compileGlob(entry))
			continue
		}
		literal[entry] = true
	}
	return all, literal, globs
}

// splitToolSet is the same partitioning used for tool_allowlist and
// entitlement role allow-sets.
func splitToolSet(raw []string) (literal map[string]bool, globs []*regexp.Regexp) {
	_, literal, globs = splitAppliesTo(raw)
	return literal, globs
}

// MatchesToolSet reports whether name is in literal or matches any of globs,
// the shared test used by entitlement role allow-sets and tool_allowlist.
func MatchesToolSet(literal map[string]bool, globs []*regexp.Regexp, name string) bool {
	if literal[name] {
		return true
	}
	for _, g := range globs {
		if g.MatchString(name) {
			return true
		}
	}
	return false
}
