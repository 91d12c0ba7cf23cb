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
	"regexp"
	"strings"
)

// Severity levels of a taint path, from the most to the least severe
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

var severityOrder = []string{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Risk is the assessed risk of a SQL query expression. It uses the severity levels.
type Risk string

var (
	interpolation     = regexp.MustCompile(`\$\{|\bf["']|\.format\(|["']\s*\+|\+\s*["']|["']\s*%\s*[A-Za-z_(]`)
	printfPlaceholder = regexp.MustCompile(`%[sd]`)
	bindParameter     = regexp.MustCompile(`\?|\$[0-9]+|[^:]:[A-Za-z_][A-Za-z0-9_]*|@[A-Za-z_][A-Za-z0-9_]*`)
)

// AssessSQLRisk classifies a SQL query expression: string concatenation or interpolation is critical, printf-style
// placeholders are high, bind parameters are low and anything else is medium.
func AssessSQLRisk(expr string) Risk {
	switch {
	case interpolation.MatchString(expr):
		return SeverityCritical
	case printfPlaceholder.MatchString(expr):
		return SeverityHigh
	case bindParameter.MatchString(expr):
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// BaseSeverity returns the severity of a flow reaching a sink of the category
func BaseSeverity(category string) string {
	switch category {
	case CategorySQL, CategoryCommand, CategoryCodeInjection:
		return SeverityCritical
	case CategoryPath, CategoryXSS, CategoryTemplate, CategoryLDAP, CategoryNoSQL:
		return SeverityHigh
	case CategoryRedirect:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Lower returns the severity one step below s, stopping at low
func Lower(s string) string {
	for i, level := range severityOrder {
		if level == s && i+1 < len(severityOrder) {
			return severityOrder[i+1]
		}
	}
	return SeverityLow
}

// SeverityRank returns 0 for critical up to 3 for low; unknown levels rank after low
func SeverityRank(s string) int {
	for i, level := range severityOrder {
		if level == s {
			return i
		}
	}
	return len(severityOrder)
}

// Severity classifies a path reaching a sink of the category. A sanitizer seen on the path lowers the severity one
// step, and so does a parameterized SQL query.
func Severity(category string, sanitized bool, sinkExpr string) string {
	s := BaseSeverity(category)
	if sanitized {
		s = Lower(s)
	}
	if category == CategorySQL && sinkExpr != "" && AssessSQLRisk(sinkExpr) == SeverityLow {
		s = Lower(s)
	}
	return s
}

// VulnerabilityType returns the display name of the vulnerability category
func VulnerabilityType(category string) string {
	switch strings.ToLower(category) {
	case CategorySQL:
		return "SQL Injection"
	case CategoryCommand:
		return "Command Injection"
	case CategoryXSS:
		return "Cross-Site Scripting (XSS)"
	case CategoryPath:
		return "Path Traversal"
	case CategoryLDAP:
		return "LDAP Injection"
	case CategoryNoSQL:
		return "NoSQL Injection"
	case CategoryCodeInjection:
		return "Code Injection"
	case CategoryTemplate:
		return "Template Injection"
	case CategoryRedirect:
		return "Open Redirect"
	default:
		return "Data Exposure"
	}
}
