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

package taint

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/awslabs/argot-sast/analysis"
	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/awslabs/argot-sast/analysis/facts/store"
	"github.com/awslabs/argot-sast/analysis/patterns"
	"github.com/awslabs/argot-sast/analysis/report"
	"github.com/awslabs/argot-sast/analysis/taint"
	"github.com/awslabs/argot-sast/cmd/argot/tools"
	"github.com/awslabs/argot-sast/internal/formatutil"
)

const usage = ` Perform taint analysis on the facts of an indexed repository.
Usage:
  argot taint [options]
Examples:
  % argot taint -config config.yaml
  % argot taint -db index.sqlite -max-depth 8 -sarif
`

// Flags represents the parsed flags for the taint analysis.
type Flags struct {
	tools.CommonFlags
	maxDepth        int
	noFlowSensitive bool
	multiHop        bool
	languages       string
	exclude         []string
	workers         int
	timeout         string
	jsonReport      bool
	sarifReport     bool
	reportsDir      string
	metricsFile     string
}

// NewFlags returns the parsed flags for the taint analysis with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("taint")
	maxDepth := flags.FlagSet.Int("max-depth", -1, "override the maximum number of hops of a path in config")
	noFlowSensitive := flags.FlagSet.Bool("no-flow-sensitive", false, "disable the flow-sensitive track")
	multiHop := flags.FlagSet.Bool("multi-hop", false, "enable the backward caller discovery track")
	languages := flags.FlagSet.String("languages", "", "comma-separated list of languages to analyze")
	workers := flags.FlagSet.Int("workers", 0, "number of seeds analyzed in parallel")
	timeout := flags.FlagSet.String("timeout", "", "stop the analysis after this duration, e.g. 5m")
	jsonReport := flags.FlagSet.Bool("json", false, "write the taint paths in a json report")
	sarifReport := flags.FlagSet.Bool("sarif", false, "write a SARIF report")
	reportsDir := flags.FlagSet.String("reports-dir", "", "directory of the reports")
	metricsFile := flags.FlagSet.String("metrics-file", "", "write the run metrics to this file")
	var exclude tools.ExcludePaths
	flags.FlagSet.Var(&exclude, "exclude", "paths to exclude from analysis")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	if flags.FlagSet.NArg() > 0 {
		return Flags{}, fmt.Errorf("unexpected argument %s", flags.FlagSet.Arg(0))
	}

	return Flags{
		CommonFlags:     common,
		maxDepth:        *maxDepth,
		noFlowSensitive: *noFlowSensitive,
		multiHop:        *multiHop,
		languages:       *languages,
		exclude:         exclude,
		workers:         *workers,
		timeout:         *timeout,
		jsonReport:      *jsonReport,
		sarifReport:     *sarifReport,
		reportsDir:      *reportsDir,
		metricsFile:     *metricsFile,
	}, nil
}

// Override sets the config parameters given on the command line
func (flags Flags) Override(cfg *config.Config) error {
	if flags.maxDepth > 0 {
		cfg.MaxDepth = flags.maxDepth
	}
	if flags.noFlowSensitive {
		cfg.EnableFlowSensitive = false
	}
	if flags.multiHop {
		cfg.MultiHop = true
	}
	if flags.languages != "" {
		cfg.Languages = strings.Split(flags.languages, ",")
	}
	cfg.Exclude = append(cfg.Exclude, flags.exclude...)
	if flags.workers > 0 {
		cfg.Workers = flags.workers
	}
	if flags.timeout != "" {
		cfg.Timeout = flags.timeout
	}
	cfg.ReportPaths = cfg.ReportPaths || flags.jsonReport
	cfg.ReportSarif = cfg.ReportSarif || flags.sarifReport
	if flags.reportsDir != "" {
		cfg.ReportsDir = flags.reportsDir
	}
	if flags.metricsFile != "" {
		cfg.MetricsFile = flags.metricsFile
	}
	if (cfg.ReportPaths || cfg.ReportSarif) && cfg.ReportsDir == "" {
		dir, err := os.MkdirTemp("", "argot-report-*")
		if err != nil {
			return fmt.Errorf("could not create reports directory: %w", err)
		}
		cfg.ReportsDir = dir
	}
	return tools.ApplyCommonFlags(cfg, flags.CommonFlags)
}

// Run runs the taint analysis with flags.
func Run(flags Flags) error {
	taintConfig, err := tools.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	if err := flags.Override(taintConfig); err != nil {
		return err
	}
	logger := config.NewLogGroup(taintConfig)
	if flags.maxDepth > 0 {
		logger.Infof("%s %d", formatutil.Yellow("Maximum path depth set to:"), flags.maxDepth)
	}

	logger.Infof(formatutil.Faint("Argot taint tool - " + analysis.Version))
	logger.Infof(formatutil.Faint("Reading facts"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cache, err := LoadFacts(ctx, taintConfig, logger)
	if err != nil {
		return err
	}
	registry, err := patterns.NewRegistry(taintConfig)
	if err != nil {
		return fmt.Errorf("could not build pattern registry: %v", err)
	}
	state, err := taint.NewAnalyzerState(taintConfig, logger, cache, registry)
	if err != nil {
		return fmt.Errorf("failed to build analyzer state: %v", err)
	}

	start := time.Now()
	result, err := taint.Analyze(ctx, state)
	duration := time.Since(start)
	if err != nil {
		for _, err := range state.CheckError() {
			fmt.Fprintf(os.Stderr, "\terror: %v\n", err)
		}
		return fmt.Errorf("taint analysis failed: %v", err)
	}
	logger.Infof("")
	logger.Infof(strings.Repeat("*", 80))
	logger.Infof("Analysis took %3.4f s", duration.Seconds())
	logger.Infof("")
	if len(result.Paths) == 0 {
		logger.Infof("RESULT:\n\t\t%s", formatutil.Green("No taint flows detected ✓")) // safe %s
	} else {
		logger.Errorf("RESULT:\n\t\t%s", formatutil.Red("Taint flows detected!")) // safe %s
	}

	Report(logger, result)

	if _, err := report.Write(taintConfig, logger, result); err != nil {
		return fmt.Errorf("could not write reports: %v", err)
	}
	for _, err := range state.CheckError() {
		logger.Warnf("%v", err)
	}
	return nil
}

// LoadFacts opens the fact store of the configuration and returns the fact cache of its content
func LoadFacts(ctx context.Context, cfg *config.Config, logger *config.LogGroup) (*facts.Cache, error) {
	s, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("could not load facts: %w", err)
	}
	defer s.Close()
	start := time.Now()
	snapshot, err := s.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load facts: %w", err)
	}
	cache := facts.NewCache(snapshot)
	logger.Infof("Loaded %s in %.2f s", cache.Stats(), time.Since(start).Seconds())
	return cache, nil
}

// Report logs the taint paths of the result
func Report(logger *config.LogGroup, result taint.AnalysisResult) {
	for _, p := range result.Paths {
		logger.Warnf("%s (%s) in function %s:\n\tSource: %s\n\t\t%s\n\tSink: %s\n\t\t%s\n\tHops: %d, track: %s%s\n",
			formatutil.Red(p.VulnerabilityType),
			formatutil.Severity(p.Severity),
			formatutil.Sanitize(p.Sink.Function),
			formatutil.Sanitize(p.Source.Pattern),
			p.Source.String(), // safe %s (position string)
			formatutil.Sanitize(p.Sink.Pattern),
			p.Sink.String(), // safe %s (position string)
			p.HopCount,
			p.Track,
			callStackSuffix(p),
		)
	}
	if msg := result.Summary.LimitReachedMessage; msg != "" {
		logger.Warnf("%s", formatutil.Yellow("Results may be incomplete: "+msg))
	}
}

func callStackSuffix(p *taint.TaintPath) string {
	if len(p.CallStack) == 0 {
		return ""
	}
	return ", call stack: " + taint.Signature(p.CallStack)
}
