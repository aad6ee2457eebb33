package policy

import (
	"regexp"
	"strings"
	"sync"
)

// globCache memoizes compiled glob patterns; policy files are small and
// reloaded rarely, but each tool call evaluation would otherwise recompile
// every rule's patterns.
var globCache sync.Map // pattern string -> *regexp.Regexp

// compileGlob converts a shell-style glob (where '*' matches any sequence,
// including across what would be path separators, and '?' matches exactly
// one character) into an anchored regular expression. Unlike path.Match,
// '*' is allowed to match '/' here since tool_pattern and arg_pattern match
// against arbitrary argument text, not filesystem paths.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	if cached, ok := globCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	globCache.Store(pattern, re)
	return re, nil
}

// globMatch reports whether s matches the glob pattern. An invalid pattern
// never matches (validated separately at load time).
func globMatch(pattern, s string) bool {
	re, err := compileGlob(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
