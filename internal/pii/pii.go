// Package pii implements the fixed registry of deterministic PII
// detectors: email, international phone, Hong Kong ID, credit card
// (Luhn), and U.S. SSN. Every detector is a pure regex or regex+checksum
// scan; none consults an external service or model.
package pii

import (
	"regexp"
	"sort"
)

// Span is one detector match within a scanned string.
type Span struct {
	Start    int
	End      int
	Detector string
}

// Detector is a named, pure scanner.
type Detector struct {
	Name string
	scan func(s string) []Span
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+\d{1,3}[\s\-]?\d{4,14}`)
	hkidPattern  = regexp.MustCompile(`[A-Z]{1,2}\d{6}\(?[0-9A]\)?`)
	cardPattern  = regexp.MustCompile(`(?:\d[ \-]?){13,19}`)
	ssnPattern   = regexp.MustCompile(`\d{3}-\d{2}-\d{4}`)
)

// registry is the fixed, closed set of detector names the rest of the
// engine is allowed to reference (spec invariant: unknown detector names
// are a lint error, never silently ignored).
var registry = []Detector{
	{Name: "email", scan: scanRegex(emailPattern, "email")},
	{Name: "phone_intl", scan: scanRegex(phonePattern, "phone_intl")},
	{Name: "hk_id", scan: scanHKID},
	{Name: "credit_card", scan: scanCreditCard},
	{Name: "ssn", scan: scanSSN},
}

// Names returns every registered detector name, in registry order.
func Names() []string {
	names := make([]string, len(registry))
	for i, d := range registry {
		names[i] = d.Name
	}
	return names
}

// Known reports whether name is a registered detector.
func Known(name string) bool {
	for _, d := range registry {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Scan runs the named detectors (selected) over s and returns every match,
// sorted by (start, detector_name) for determinism. Unknown names in
// selected are silently skipped here — the linter is responsible for
// flagging them (E002) before a policy is ever evaluated.
func Scan(s string, selected []string) []Span {
	wanted := make(map[string]bool, len(selected))
	for _, name := range selected {
		wanted[name] = true
	}
	var spans []Span
	for _, d := range registry {
		if !wanted[d.Name] {
			continue
		}
		spans = append(spans, d.scan(s)...)
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].Detector < spans[j].Detector
	})
	return spans
}

func scanRegex(re *regexp.Regexp, name string) func(string) []Span {
	return func(s string) []Span {
		matches := re.FindAllStringIndex(s, -1)
		spans := make([]Span, len(matches))
		for i, m := range matches {
			spans[i] = Span{Start: m[0], End: m[1], Detector: name}
		}
		return spans
	}
}

func scanHKID(s string) []Span {
	var spans []Span
	for _, m := range hkidPattern.FindAllStringIndex(s, -1) {
		candidate := s[m[0]:m[1]]
		if validHKID(candidate) {
			spans = append(spans, Span{Start: m[0], End: m[1], Detector: "hk_id"})
		}
	}
	return spans
}

func scanCreditCard(s string) []Span {
	var spans []Span
	for _, m := range cardPattern.FindAllStringIndex(s, -1) {
		candidate := s[m[0]:m[1]]
		digits := stripNonDigits(candidate)
		if len(digits) < 13 || len(digits) > 19 {
			continue
		}
		if luhnValid(digits) {
			spans = append(spans, Span{Start: m[0], End: m[1], Detector: "credit_card"})
		}
	}
	return spans
}

func scanSSN(s string) []Span {
	var spans []Span
	for _, m := range ssnPattern.FindAllStringIndex(s, -1) {
		candidate := s[m[0]:m[1]]
		if validSSN(candidate) {
			spans = append(spans, Span{Start: m[0], End: m[1], Detector: "ssn"})
		}
	}
	return spans
}

func stripNonDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
