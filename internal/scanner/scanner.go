package scanner

import (
	"fmt"
	"net/url"
	"regexp"

	"ForecastPoster/internal/domain"
)

// Entry is a single hyperlink scraped from a listing.
type Entry struct {
	Name string
	Href string
}

// Pattern matches an href and captures the token used for latest-selection.
// Capture group 1 must be a fixed-width token so lexical order is chronological.
type Pattern struct {
	Name string
	Expr *regexp.Regexp
}

// NewPattern compiles a named pattern; expr must contain one capture group.
func NewPattern(name, expr string) Pattern {
	re := regexp.MustCompile(expr)
	if re.NumSubexp() < 1 {
		panic(fmt.Sprintf("scanner: pattern %s has no capture group", name))
	}
	return Pattern{Name: name, Expr: re}
}

// Token returns the captured token for href, if it matches.
func (p Pattern) Token(href string) (string, bool) {
	m := p.Expr.FindStringSubmatch(href)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// Match is the winning child of a listing.
type Match struct {
	URL   string
	Token string
}

// Latest picks the entry whose captured token is lexically greatest and
// resolves its href against base. Returns domain.ErrNotFound when nothing matches.
func Latest(base string, entries []Entry, p Pattern) (Match, error) {
	var (
		best  Match
		found bool
		href  string
	)
	for _, e := range entries {
		token, ok := p.Token(e.Href)
		if !ok {
			continue
		}
		if !found || token > best.Token {
			best.Token = token
			href = e.Href
			found = true
		}
	}
	if !found {
		return Match{}, domain.ErrNotFound
	}

	abs, err := Resolve(base, href)
	if err != nil {
		return Match{}, err
	}
	best.URL = abs
	return best, nil
}

// Count returns how many entries satisfy p.
func Count(entries []Entry, p Pattern) int {
	n := 0
	for _, e := range entries {
		if _, ok := p.Token(e.Href); ok {
			n++
		}
	}
	return n
}

// Resolve turns href into an absolute URL relative to base.
func Resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", domain.Permanent(fmt.Errorf("parse base url %s: %w", base, err))
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", domain.Permanent(fmt.Errorf("parse href %s: %w", href, err))
	}
	return b.ResolveReference(ref).String(), nil
}

// Registry keeps the level patterns by name.
type Registry struct {
	patterns map[string]Pattern
}

// NewRegistry builds a registry holding the given patterns.
func NewRegistry(patterns ...Pattern) *Registry {
	r := &Registry{patterns: map[string]Pattern{}}
	for _, p := range patterns {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a pattern.
func (r *Registry) Register(p Pattern) {
	if r.patterns == nil {
		r.patterns = map[string]Pattern{}
	}
	r.patterns[p.Name] = p
}

// Resolve returns a pattern by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Pattern, error) {
	if p, ok := r.patterns[name]; ok {
		return p, nil
	}
	return Pattern{}, fmt.Errorf("pattern %s is not registered", name)
}

// Classify returns the first of the candidate patterns that at least one entry satisfies.
func (r *Registry) Classify(entries []Entry, candidates ...string) (Pattern, bool) {
	for _, name := range candidates {
		p, ok := r.patterns[name]
		if !ok {
			continue
		}
		if Count(entries, p) > 0 {
			return p, true
		}
	}
	return Pattern{}, false
}
