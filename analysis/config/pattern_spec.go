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

package config

import (
	"fmt"
	"strings"
)

// Match modes of a pattern
const (
	MatchExact     = "exact"
	MatchSuffix    = "suffix"
	MatchSubstring = "substring"
)

// PatternSpec is a source, sink or sanitizer pattern declared in the config file. It is registered in the pattern
// registry after the built-in catalogs.
//
// For example:
//
//	patterns:
//	  - language: python
//	    kind: sink
//	    category: sql
//	    match: legacy_db.run_raw
type PatternSpec struct {
	// Language is the language of the files the pattern applies to, or "*" for all languages
	Language string `yaml:"language"`

	// Kind is one of "source", "sink" or "sanitizer"
	Kind string `yaml:"kind"`

	// Category is the vulnerability category, e.g. "sql", "command", "xss"
	Category string `yaml:"category"`

	// Match is the qualified name or expression fragment to match
	Match string `yaml:"match"`

	// Mode is one of "exact", "suffix" (the default) or "substring"
	Mode string `yaml:"mode"`
}

func (p *PatternSpec) validate() error {
	p.Language = strings.ToLower(strings.TrimSpace(p.Language))
	p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
	p.Mode = strings.ToLower(strings.TrimSpace(p.Mode))
	if p.Language == "" {
		p.Language = "*"
	}
	if p.Mode == "" {
		p.Mode = MatchSuffix
	}
	switch p.Kind {
	case "source", "sink", "sanitizer":
	default:
		return fmt.Errorf("unknown pattern kind %q", p.Kind)
	}
	switch p.Mode {
	case MatchExact, MatchSuffix, MatchSubstring:
	default:
		return fmt.Errorf("unknown pattern mode %q", p.Mode)
	}
	if p.Match == "" {
		return fmt.Errorf("empty match for %s pattern", p.Kind)
	}
	if p.Category == "" && p.Kind != "sanitizer" {
		return fmt.Errorf("%s pattern %q has no category", p.Kind, p.Match)
	}
	return nil
}

func (p PatternSpec) String() string {
	return fmt.Sprintf("%s %s[%s] %s (%s)", p.Language, p.Kind, p.Category, p.Match, p.Mode)
}
