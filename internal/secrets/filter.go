// Package secrets implements the credential boundary: a filter that
// redacts secret values before any model call, and an injector that
// re-substitutes cleartext immediately before tool execution. The model
// never observes cleartext; the tool handler never observes a placeholder.
package secrets

import (
	"fmt"
	"regexp"
	"sort"
)

// SecretLookup resolves a registered secret name to its cleartext value.
type SecretLookup interface {
	Get(name string) (string, error)
}

// builtinPattern pairs a detection regex with the placeholder class name
// used when no registered secret name applies.
type builtinPattern struct {
	class string
	re    *regexp.Regexp
}

// builtinPatterns lists the credential-shaped regexes the filter always
// applies, in fixed evaluation order. Order matters only for determinism of
// overlapping matches; non-overlapping matches within a string are all
// replaced.
var builtinPatterns = []builtinPattern{
	{"openai_key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"google_api_key", regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)},
	{"github_token", regexp.MustCompile(`gh[po]_[A-Za-z0-9]{36,}`)},
	{"aws_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"generic_api_key", regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,}['"]?`)},
	{"bearer_token", regexp.MustCompile(`Bearer\s+[A-Za-z0-9_\-.]{16,}`)},
}

// placeholderRe matches an already-redacted placeholder, used so Filter is
// idempotent: running it twice never double-wraps a placeholder.
var placeholderRe = regexp.MustCompile(`\{\{SECRET:[A-Za-z0-9_]+\}\}`)

// Filter redacts secrets from text before it is shipped to a model.
type Filter struct {
	// Secrets, keyed by name, whose cleartext values should be redacted
	// whenever they literally appear in text passed to Redact.
	Secrets map[string]string
}

// NewFilter constructs a Filter with no registered secret values; register
// via RegisterSecretValue before the first Redact call that needs to catch
// them.
func NewFilter() *Filter {
	return &Filter{Secrets: make(map[string]string)}
}

// RegisterSecretValue tells the filter to treat value as the cleartext of
// name, so any literal occurrence of value is replaced with
// {{SECRET:name}}.
func (f *Filter) RegisterSecretValue(name, value string) {
	if value == "" {
		return
	}
	f.Secrets[name] = value
}

type match struct {
	start, end int
	repl       string
}

// isPlaceholder reports whether the substring at [start,end) is already
// wholly contained in an existing {{SECRET:...}} placeholder, so Redact does
// not nest placeholders.
func isPlaceholder(s string, start, end int) bool {
	for _, loc := range placeholderRe.FindAllStringIndex(s, -1) {
		if start >= loc[0] && end <= loc[1] {
			return true
		}
	}
	return false
}

// Redact replaces, in order, every registered secret value and every
// built-in credential-shaped regex match with a {{SECRET:name}} placeholder.
// Replacements are computed in forward scan order but applied in reverse
// position order so earlier replacement offsets never invalidate later
// ones. The result is idempotent: redacting an already-redacted string
// returns it unchanged.
func (f *Filter) Redact(s string) string {
	var matches []match

	// (a) registered secret values, longest name first so overlapping
	// secret values don't leave a partial literal behind.
	names := make([]string, 0, len(f.Secrets))
	for name := range f.Secrets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, name := range names {
		value := f.Secrets[name]
		if value == "" {
			continue
		}
		re := regexp.MustCompile(regexp.QuoteMeta(value))
		for _, loc := range re.FindAllStringIndex(s, -1) {
			if isPlaceholder(s, loc[0], loc[1]) {
				continue
			}
			matches = append(matches, match{loc[0], loc[1], fmt.Sprintf("{{SECRET:%s}}", name)})
		}
	}

	// (b) built-in detection regexes.
	for _, bp := range builtinPatterns {
		for _, loc := range bp.re.FindAllStringIndex(s, -1) {
			if isPlaceholder(s, loc[0], loc[1]) {
				continue
			}
			matches = append(matches, match{loc[0], loc[1], fmt.Sprintf("{{SECRET:detected_%s}}", bp.class)})
		}
	}

	if len(matches) == 0 {
		return s
	}

	// Remove overlaps: a later-discovered match that overlaps an
	// already-accepted one is dropped, preferring registered-secret matches
	// (which were appended first) over built-in detections.
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	accepted := matches[:0:0]
	lastEnd := -1
	for _, m := range matches {
		if m.start < lastEnd {
			continue
		}
		accepted = append(accepted, m)
		lastEnd = m.end
	}

	// Apply in reverse position order so earlier offsets stay valid.
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start > accepted[j].start })
	out := s
	for _, m := range accepted {
		out = out[:m.start] + m.repl + out[m.end:]
	}
	return out
}
