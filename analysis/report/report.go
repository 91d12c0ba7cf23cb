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

// Package report writes the results of the taint analysis: a JSON document with the taint paths and the run summary,
// validated against an embedded JSON Schema, and a SARIF 2.1.0 log for code scanning integrations.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/taint"
)

// Document is the JSON document of one analysis run
type Document struct {
	RunID      string             `json:"run_id"`
	TaintPaths []*taint.TaintPath `json:"taint_paths"`
	Summary    taint.Summary      `json:"summary"`
}

// NewDocument returns the document of the analysis result
func NewDocument(result taint.AnalysisResult) Document {
	paths := result.Paths
	if paths == nil {
		paths = []*taint.TaintPath{}
	}
	summary := result.Summary
	if summary.VulnerabilitiesByType == nil {
		summary.VulnerabilitiesByType = map[string]int{}
	}
	if summary.HopDistribution == nil {
		summary.HopDistribution = map[int]int{}
	}
	if summary.RecursiveFunctionGroups == nil {
		summary.RecursiveFunctionGroups = [][]string{}
	}
	return Document{RunID: result.RunID, TaintPaths: paths, Summary: summary}
}

// Encode returns the indented JSON of the document. The document is validated against the report schema, and an
// invalid document is an error.
func (d Document) Encode() ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("could not marshal report: %w", err)
	}
	if err := Validate(b); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteJSON writes the validated JSON document to w
func WriteJSON(w io.Writer, d Document) error {
	b, err := d.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// Write writes the reports enabled in the configuration to the reports directory, and returns the paths of the
// files written.
func Write(cfg *config.Config, logger *config.LogGroup, result taint.AnalysisResult) ([]string, error) {
	if !cfg.ReportPaths && !cfg.ReportSarif {
		return nil, nil
	}
	doc := NewDocument(result)
	var written []string
	if cfg.ReportPaths {
		name, err := createReport(cfg.ReportsDir, "taint-paths-*.json", func(w io.Writer) error {
			return WriteJSON(w, doc)
		})
		if err != nil {
			return written, err
		}
		logger.Infof("Saving taint paths in %s", name)
		written = append(written, name)
	}
	if cfg.ReportSarif {
		name, err := createReport(cfg.ReportsDir, "taint-*.sarif", func(w io.Writer) error {
			return WriteSarif(w, doc)
		})
		if err != nil {
			return written, err
		}
		logger.Infof("Saving SARIF report in %s", name)
		written = append(written, name)
	}
	return written, nil
}

func createReport(dir string, pattern string, write func(w io.Writer) error) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("could not create report file: %w", err)
	}
	defer f.Close()
	name, err := filepath.Abs(f.Name())
	if err != nil {
		name = f.Name()
	}
	if err := write(f); err != nil {
		return name, fmt.Errorf("could not write report %s: %w", name, err)
	}
	return name, nil
}
