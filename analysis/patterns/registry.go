// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package patterns

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
)

// Kind is the role of a pattern: source, sink or sanitizer
type Kind string

// Pattern kinds
const (
	Source    Kind = "source"
	Sink      Kind = "sink"
	Sanitizer Kind = "sanitizer"
)

// AnyLanguage is the language of the patterns that apply to every language
const AnyLanguage = "*"

// A Matcher decides whether a call or property-access expression matches a pattern
type Matcher interface {
	Matches(expr string) bool
	String() string
}

// Exact matches qualified names equal to the pattern
type Exact string

// Matches returns true if expr is exactly the pattern
func (e Exact) Matches(expr string) bool { return strings.TrimSpace(expr) == string(e) }

func (e Exact) String() string { return string(e) }

// Suffix matches qualified names ending with the pattern on a dot boundary: "cursor.execute" matches
// "self.db.cursor.execute" but not "mycursor.execute".
type Suffix string

// Matches returns true if expr is the pattern or ends with "." followed by the pattern
func (s Suffix) Matches(expr string) bool {
	e := strings.TrimSpace(expr)
	return e == string(s) || strings.HasSuffix(e, "."+string(s))
}

func (s Suffix) String() string { return string(s) }

// Substring matches expressions that contain the pattern as an access path: "req.body" matches
// "req.body.id" and "parse(req.body)" but not "myreq.body".
type Substring string

// Matches returns true if expr references the pattern
func (s Substring) Matches(expr string) bool {
	return facts.ReferencesVar(expr, string(s))
}

func (s Substring) String() string { return string(s) }

// NewMatcher returns the matcher for the pattern string with the given mode ("exact", "suffix" or "substring")
func NewMatcher(mode string, pattern string) (Matcher, error) {
	switch mode {
	case config.MatchExact:
		return Exact(pattern), nil
	case config.MatchSuffix, "":
		return Suffix(pattern), nil
	case config.MatchSubstring:
		return Substring(pattern), nil
	default:
		return nil, fmt.Errorf("unknown match mode %q", mode)
	}
}

// A Pattern is one registered catalog entry
type Pattern struct {
	Language string
	Category string
	Kind     Kind
	Matcher  Matcher
}

// A Match is the kind and category of a pattern matching an expression, with the text of the pattern.
type Match struct {
	Kind     Kind
	Category string
	Pattern  string
}

func (m Match) String() string {
	return fmt.Sprintf("%s:%s(%s)", m.Kind, m.Category, m.Pattern)
}

// Registry holds the pattern catalogs of each language. Patterns are registered before the analysis starts; once
// the registry is frozen, it is read-only and can be shared by concurrent analyses without locks.
type Registry struct {
	catalogs map[string][]Pattern
	frozen   bool
}

// NewEmptyRegistry returns a registry with no catalogs
func NewEmptyRegistry() *Registry {
	return &Registry{catalogs: map[string][]Pattern{}}
}

// canonicalLanguage maps language aliases to the language of their catalog
func canonicalLanguage(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	switch l {
	case facts.LanguageTypescript, "js", "ts":
		return facts.LanguageJavascript
	case "py":
		return facts.LanguagePython
	case "golang":
		return facts.LanguageGo
	}
	return l
}

// Register adds a pattern to the catalog of language. It fails if the registry is frozen.
func (r *Registry) Register(language string, category string, kind Kind, matcher Matcher) error {
	if r.frozen {
		return fmt.Errorf("registry is frozen, cannot register %s %s", kind, matcher)
	}
	switch kind {
	case Source, Sink, Sanitizer:
	default:
		return fmt.Errorf("unknown pattern kind %q", kind)
	}
	if matcher == nil || matcher.String() == "" {
		return fmt.Errorf("empty %s pattern", kind)
	}
	l := canonicalLanguage(language)
	r.catalogs[l] = append(r.catalogs[l], Pattern{Language: l, Category: category, Kind: kind, Matcher: matcher})
	return nil
}

// Freeze makes the registry read-only
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen returns true once Freeze has been called
func (r *Registry) Frozen() bool {
	return r.frozen
}

// Languages returns the languages that have a catalog, sorted
func (r *Registry) Languages() []string {
	var languages []string
	for l := range r.catalogs {
		languages = append(languages, l)
	}
	sort.Strings(languages)
	return languages
}

// Patterns returns the patterns of the language's catalog followed by the language-neutral patterns
func (r *Registry) Patterns(language string) []Pattern {
	l := canonicalLanguage(language)
	res := append([]Pattern{}, r.catalogs[l]...)
	if l != AnyLanguage {
		res = append(res, r.catalogs[AnyLanguage]...)
	}
	return res
}

// Match returns all the (kind, category) pairs of the patterns of language matching expr, sorted and without
// duplicates. A language without catalog only matches the language-neutral patterns.
func (r *Registry) Match(expr string, language string) []Match {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	seen := map[Match]bool{}
	var res []Match
	for _, p := range r.Patterns(language) {
		if p.Matcher.Matches(expr) {
			m := Match{Kind: p.Kind, Category: p.Category, Pattern: p.Matcher.String()}
			if !seen[m] {
				seen[m] = true
				res = append(res, m)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Kind != res[j].Kind {
			return res[i].Kind < res[j].Kind
		}
		if res[i].Category != res[j].Category {
			return res[i].Category < res[j].Category
		}
		return res[i].Pattern < res[j].Pattern
	})
	return res
}

// MatchKind returns the matches of expr with the given kind
func (r *Registry) MatchKind(expr string, language string, kind Kind) []Match {
	var res []Match
	for _, m := range r.Match(expr, language) {
		if m.Kind == kind {
			res = append(res, m)
		}
	}
	return res
}

// IsSource returns the first source pattern matching expr
func (r *Registry) IsSource(expr string, language string) (Match, bool) {
	return first(r.MatchKind(expr, language, Source))
}

// IsSink returns the first sink pattern matching expr
func (r *Registry) IsSink(expr string, language string) (Match, bool) {
	return first(r.MatchKind(expr, language, Sink))
}

// IsSanitizer returns the first sanitizer pattern matching expr
func (r *Registry) IsSanitizer(expr string, language string) (Match, bool) {
	return first(r.MatchKind(expr, language, Sanitizer))
}

func first(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}
