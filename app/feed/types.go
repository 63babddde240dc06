package feed

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var ErrPresetNotFound = errors.New("preset not found")

// ParseError means the input bytes could not be read as a channel/item feed.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PatternError means a keyword pattern is not a valid regular expression.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid regex %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// KeywordSet holds lower-cased, trimmed, de-duplicated keywords. Keywords are
// NFC-normalized so composed and decomposed accents compare equal.
type KeywordSet map[string]struct{}

// ParseKeywords splits a comma-separated keywords field into a KeywordSet.
func ParseKeywords(text string) KeywordSet {
	return NewKeywordSet(strings.Split(text, ","))
}

func NewKeywordSet(values []string) KeywordSet {
	lower := cases.Lower(language.Und)
	set := make(KeywordSet, len(values))
	for _, v := range values {
		v = lower.String(norm.NFC.String(strings.TrimSpace(v)))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func (s KeywordSet) Contains(keyword string) bool {
	_, ok := s[keyword]
	return ok
}

func (s KeywordSet) Intersects(other KeywordSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for k := range small {
		if large.Contains(k) {
			return true
		}
	}
	return false
}

func (s KeywordSet) Sorted() []string {
	keywords := make([]string, 0, len(s))
	for k := range s {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)
	return keywords
}

// Predicate decides which items survive filtering. Unset parts always pass and
// the set parts are combined with AND.
type Predicate struct {
	Include KeywordSet
	Exclude KeywordSet
	Pattern *regexp.Regexp
}

func NewPredicate(include, exclude []string, pattern string) (Predicate, error) {
	p := Predicate{
		Include: NewKeywordSet(include),
		Exclude: NewKeywordSet(exclude),
	}

	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Predicate{}, &PatternError{Pattern: pattern, Err: err}
		}
		p.Pattern = re
	}

	return p, nil
}

func (p Predicate) IsEmpty() bool {
	return len(p.Include) == 0 && len(p.Exclude) == 0 && p.Pattern == nil
}

// SplitCSV splits a comma-separated query or flag value, dropping blanks.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}

	var values []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

// Preset is a saved filter definition loaded from <presets-dir>/<name>.yml.
type Preset struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Include  []string       `yaml:"include"`
	Exclude  []string       `yaml:"exclude"`
	Regex    string         `yaml:"regex"`
	Settings PresetSettings `yaml:"settings"`
}

type PresetSettings struct {
	Enabled         bool `yaml:"enabled"`
	Warm            bool `yaml:"warm"`             // keep the upstream copy cached in the background
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
}
