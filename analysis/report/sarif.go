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

package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/awslabs/argot-sast/analysis"
	"github.com/awslabs/argot-sast/analysis/patterns"
	"github.com/awslabs/argot-sast/analysis/taint"
	"github.com/owenrumney/go-sarif/v2/sarif"
)

const (
	toolName = "argot-taint"
	toolURI  = "https://github.com/awslabs/argot-sast"
)

// RuleID returns the SARIF rule id of a vulnerability type, e.g. "argot/sql-injection"
func RuleID(vulnerabilityType string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(vulnerabilityType), "-"))
	return "argot/" + slug
}

// SarifLevel maps a severity to a SARIF result level
func SarifLevel(severity string) string {
	switch severity {
	case patterns.SeverityCritical, patterns.SeverityHigh:
		return "error"
	case patterns.SeverityMedium:
		return "warning"
	case patterns.SeverityLow:
		return "note"
	}
	return "none"
}

func newLocation(file string, line int, msg string) *sarif.Location {
	loc := sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(file)).
			WithRegion(sarif.NewRegion().WithStartLine(line)),
	)
	if msg != "" {
		loc.Message = sarif.NewTextMessage(msg)
	}
	return loc
}

func stepMessage(s taint.Step) string {
	switch {
	case s.Callee != "" && s.Var != "":
		return fmt.Sprintf("%s: %s (%s)", s.Type, s.Var, s.Callee)
	case s.Var != "":
		return fmt.Sprintf("%s: %s", s.Type, s.Var)
	}
	return s.Type
}

// NewSarifReport builds the SARIF log of the document: one rule per vulnerability type, and one result per taint path
// located at the sink, with a code flow following the steps of the path.
func NewSarifReport(d Document) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}
	run := sarif.NewRunWithInformationURI(toolName, toolURI)
	version := analysis.Version
	run.Tool.Driver.Version = &version

	types := map[string]bool{}
	for _, p := range d.TaintPaths {
		types[p.VulnerabilityType] = true
	}
	names := make([]string, 0, len(types))
	for t := range types {
		names = append(names, t)
	}
	sort.Strings(names)
	for _, name := range names {
		run.AddRule(RuleID(name)).
			WithDescription(name).
			WithProperties(sarif.Properties{"tags": []string{"security", "taint"}})
	}

	for _, p := range d.TaintPaths {
		msg := fmt.Sprintf("%s: data from %s (%s) reaches %s in %d hops", p.VulnerabilityType, p.Source,
			p.Source.Pattern, p.Sink.Pattern, p.HopCount)
		if p.ConditionSummary != "" {
			msg += " when " + p.ConditionSummary
		}
		result := sarif.NewRuleResult(RuleID(p.VulnerabilityType)).
			WithMessage(sarif.NewTextMessage(msg)).
			WithLevel(SarifLevel(p.Severity)).
			WithLocations([]*sarif.Location{newLocation(p.Sink.File, p.Sink.Line, "")})

		threadFlow := sarif.NewThreadFlow()
		for _, s := range p.Path {
			threadFlow.Locations = append(threadFlow.Locations, &sarif.ThreadFlowLocation{
				Location: newLocation(s.File, s.Line, stepMessage(s)),
			})
		}
		codeFlow := sarif.NewCodeFlow()
		codeFlow.ThreadFlows = append(codeFlow.ThreadFlows, threadFlow)
		result.CodeFlows = append(result.CodeFlows, codeFlow)

		result.PropertyBag = *sarif.NewPropertyBag()
		result.Add("severity", p.Severity)
		result.Add("hop_count", p.HopCount)
		result.Add("track", p.Track)
		result.Add("flow_sensitive", p.FlowSensitive)
		result.Add("call_stack", taint.Signature(p.CallStack))
		run.AddResult(result)
	}
	report.AddRun(run)
	return report, nil
}

// WriteSarif writes the SARIF log of the document to w
func WriteSarif(w io.Writer, d Document) error {
	report, err := NewSarifReport(d)
	if err != nil {
		return err
	}
	return report.PrettyWrite(w)
}
