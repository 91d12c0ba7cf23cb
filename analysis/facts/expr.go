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

package facts

import (
	"regexp"
	"strings"
)

var simpleIdentifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// ReferencesVar returns true when the expression expr mentions the variable v as a whole identifier or as the prefix
// of an access path: "req.body" is referenced by "req.body.id" and "f(req.body)" but not by "myreq.body" nor by
// "req.bodyguard".
func ReferencesVar(expr string, v string) bool {
	if v == "" || len(expr) < len(v) {
		return false
	}
	for start := 0; start <= len(expr)-len(v); {
		i := strings.Index(expr[start:], v)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(v)
		before := i == 0 || !isIdentChar(v[0]) || (!isIdentChar(expr[i-1]) && expr[i-1] != '.')
		after := end == len(expr) || !isIdentChar(v[len(v)-1]) || !isIdentChar(expr[end])
		if before && after {
			return true
		}
		start = i + 1
	}
	return false
}

// IsSimpleIdentifier returns true if the expression is a bare identifier, such as "x" or "user_id".
func IsSimpleIdentifier(expr string) bool {
	return simpleIdentifier.MatchString(NormalizeIdentifier(expr))
}

// NormalizeIdentifier trims the expression and removes a trailing non-null assertion "!".
func NormalizeIdentifier(expr string) string {
	return strings.TrimSuffix(strings.TrimSpace(expr), "!")
}

// IsBlankTarget returns true for discard targets that are never materialized as variables.
func IsBlankTarget(target string) bool {
	t := strings.TrimSpace(target)
	return t == "" || t == "_"
}

// LastSegment returns the part of a dotted name after the last dot: "db.session.execute" -> "execute"
func LastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Receiver returns the part of a dotted name before the last dot, or "" if there is none:
// "db.session.execute" -> "db.session"
func Receiver(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

var falsyLiterals = map[string]bool{
	"False": true, "false": true, "None": true, "null": true, "nil": true, "undefined": true, "0": true,
	`""`: true, "''": true,
}

// IsFalsyLiteral returns true if the expression is a literal that is false in a condition.
func IsFalsyLiteral(expr string) bool {
	return falsyLiterals[strings.TrimSpace(expr)]
}

// Negation returns the operand of a negated expression ("not x", "!x") and true, or the expression and false.
func Negation(expr string) (string, bool) {
	e := strings.TrimSpace(expr)
	if strings.HasPrefix(e, "not ") {
		return strings.TrimSpace(e[4:]), true
	}
	if strings.HasPrefix(e, "!") && !strings.HasPrefix(e, "!=") {
		return strings.TrimSpace(e[1:]), true
	}
	return e, false
}

// CallParts splits a call expression "f(a, b)" into its callee "f" and its raw argument string "a, b". The boolean is
// false if the expression is not a call.
func CallParts(expr string) (string, string, bool) {
	e := strings.TrimSpace(expr)
	open := strings.IndexByte(e, '(')
	if open <= 0 || !strings.HasSuffix(e, ")") {
		return "", "", false
	}
	return strings.TrimSpace(e[:open]), e[open+1 : len(e)-1], true
}
