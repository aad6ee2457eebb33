// Package privacy implements redaction of PII from logs and telemetry.
//
// This is distinct from the secrets package: secrets protects the model
// from credentials; privacy protects logs and monitoring data from
// personally identifiable information. The pattern set and redaction
// styles here are separate from, and serve a different audience than, the
// credential-detection regexes in package secrets.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Pattern is a single PII detector: a name, its regex, and an optional
// validator used to suppress false positives (e.g. Luhn-checking digit
// sequences that merely look like credit card numbers).
type Pattern struct {
	Name      string
	Regex     *regexp.Regexp
	Validator func(match string) bool
}

// Library is the set of built-in PII patterns checked by Redact.
type Library struct {
	patterns []Pattern
}

// NewLibrary constructs a Library with the built-in pattern set.
func NewLibrary() *Library {
	return &Library{patterns: builtinPatterns()}
}

func builtinPatterns() []Pattern {
	return []Pattern{
		{
			Name:  "ipv4",
			Regex: regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),
		},
		{
			Name:  "ipv6",
			Regex: regexp.MustCompile(`\b(?:[0-9A-Fa-f]{1,4}:){7}[0-9A-Fa-f]{1,4}\b`),
		},
		{
			Name:  "email",
			Regex: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		},
		{
			Name:  "aws_account_id",
			Regex: regexp.MustCompile(`\b\d{12}\b`),
		},
		{
			Name:      "credit_card",
			Regex:     regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),
			Validator: func(m string) bool { return validateLuhn(m) },
		},
		{
			Name:  "ssn",
			Regex: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		},
		{
			Name:  "api_key",
			Regex: regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|token)\b\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,}['"]?`),
		},
		{
			Name:  "phone",
			Regex: regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`),
		},
	}
}

// validateLuhn reports whether the digits in s (ignoring separators) pass
// the Luhn checksum, used to suppress credit-card false positives against
// arbitrary long digit runs (account numbers, IDs, etc.).
func validateLuhn(s string) bool {
	var digits []int
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == ' ' || r == '-':
			continue
		default:
			return false
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Style selects how a detected match is replaced.
type Style int

const (
	// StyleFull replaces the entire match with a fixed mask.
	StyleFull Style = iota
	// StylePartial keeps the first and last quarter of the match visible.
	StylePartial
	// StyleHash replaces the match with a stable, non-reversible hash tag.
	StyleHash
)

// Redaction records one applied redaction for audit purposes.
type Redaction struct {
	Pattern string
	Style   Style
}

// Filter applies a Library's patterns to text, with a configurable
// redaction style and an allowlist of literal strings that are never
// redacted even if they match a pattern (e.g. a known test fixture IP).
type Filter struct {
	Library   *Library
	Style     Style
	Allowlist map[string]bool
}

// NewFilter constructs a Filter using the given style. Pass an empty
// allowlist map (or nil) if nothing should be exempted.
func NewFilter(style Style, allowlist map[string]bool) *Filter {
	if allowlist == nil {
		allowlist = make(map[string]bool)
	}
	return &Filter{Library: NewLibrary(), Style: style, Allowlist: allowlist}
}

// Redact scans text against every pattern in the library and replaces each
// validated, non-allowlisted match according to the filter's style. It
// returns the redacted text and the list of redactions applied, in the
// order they occur in the original text.
func (f *Filter) Redact(text string) (string, []Redaction) {
	type span struct {
		start, end int
		pattern    string
	}
	var spans []span

	for _, p := range f.Library.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			m := text[loc[0]:loc[1]]
			if f.Allowlist[m] {
				continue
			}
			if p.Validator != nil && !p.Validator(m) {
				continue
			}
			spans = append(spans, span{loc[0], loc[1], p.Name})
		}
	}

	if len(spans) == 0 {
		return text, nil
	}

	// Sort ascending, drop overlaps, keep earliest.
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j-1].start > spans[j].start; j-- {
			spans[j-1], spans[j] = spans[j], spans[j-1]
		}
	}
	var accepted []span
	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		accepted = append(accepted, s)
		lastEnd = s.end
	}

	var redactions []Redaction
	out := text
	for i := len(accepted) - 1; i >= 0; i-- {
		s := accepted[i]
		original := out[s.start:s.end]
		repl := f.mask(original)
		out = out[:s.start] + repl + out[s.end:]
		redactions = append([]Redaction{{Pattern: s.pattern, Style: f.Style}}, redactions...)
	}
	return out, redactions
}

func (f *Filter) mask(s string) string {
	switch f.Style {
	case StylePartial:
		quarter := len(s) / 4
		if quarter == 0 || len(s) < 4 {
			return strings.Repeat("*", len(s))
		}
		return s[:quarter] + strings.Repeat("*", len(s)-2*quarter) + s[len(s)-quarter:]
	case StyleHash:
		sum := sha256.Sum256([]byte(s))
		return "[REDACTED:sha256:" + hex.EncodeToString(sum[:])[:8] + "]"
	default: // StyleFull
		return "***"
	}
}
