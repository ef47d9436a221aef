// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/slowli/yab/pkg/benchid"
)

type (
	// Matcher filters benchmark ids. An empty filter matches everything;
	// otherwise the filter is a literal substring by default, an exact
	// match with the --exact flag, or a regular expression with --regex.
	Matcher struct {
		kind   matchKind
		filter string
		regex  *regexp.Regexp
	}

	matchKind int
)

const (
	matchAny matchKind = iota
	matchExact
	matchSubstring
	matchRegex
)

// NewMatcher builds a matcher from the positional FILTER argument.
// Requesting both exact and regex matching is a usage error, as is an
// invalid regular expression.
func NewMatcher(filter string, exact, regex bool) (Matcher, error) {
	if exact && regex {
		return Matcher{}, fmt.Errorf("--exact and --regex are mutually exclusive")
	}
	switch {
	case filter == "":
		return Matcher{kind: matchAny}, nil
	case exact:
		return Matcher{kind: matchExact, filter: filter}, nil
	case regex:
		re, err := regexp.Compile(filter)
		if err != nil {
			return Matcher{}, fmt.Errorf("invalid benchmark filter: %w", err)
		}
		return Matcher{kind: matchRegex, regex: re}, nil
	default:
		return Matcher{kind: matchSubstring, filter: filter}, nil
	}
}

// Matches reports whether the id passes the filter.
func (m Matcher) Matches(id benchid.ID) bool {
	s := id.String()
	switch m.kind {
	case matchExact:
		return s == m.filter
	case matchSubstring:
		return strings.Contains(s, m.filter)
	case matchRegex:
		return m.regex.MatchString(s)
	default:
		return true
	}
}
