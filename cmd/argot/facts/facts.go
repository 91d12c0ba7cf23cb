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

// Package facts implements the front-end printing statistics about the facts of an indexed repository: the number
// of facts of each kind, the shape of the call graph and its recursive functions.
package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/awslabs/argot-sast/cmd/argot/taint"
	"github.com/awslabs/argot-sast/cmd/argot/tools"
	"github.com/awslabs/argot-sast/internal/formatutil"
	"github.com/awslabs/argot-sast/internal/funcutil"
	"github.com/awslabs/argot-sast/internal/graphutil"
)

const usage = `Print statistics about the facts of an indexed repository.

Usage:
  argot facts [options]

Use the -help flag to display the options.

Examples:
% argot facts -db index.sqlite
% argot facts -db index.sqlite -func app/views.py:show_user
`

// Flags represents the flags for the facts sub-tool.
type Flags struct {
	tools.CommonFlags
	outputJson bool
	maxCycles  int
	function   string
}

// NewFlags returns parsed flags for facts.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("facts")
	outputJson := flags.FlagSet.Bool("json", false, "output results as JSON")
	maxCycles := flags.FlagSet.Int("max-cycles", 20, "maximum number of call cycles to print (0 for all)")
	function := flags.FlagSet.String("func", "", "print the callers and callees of this function (file:name)")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}

	return Flags{
		CommonFlags: common,
		outputJson:  *outputJson,
		maxCycles:   *maxCycles,
		function:    *function,
	}, nil
}

// Statistics is the summary of the facts printed by the tool
type Statistics struct {
	Functions   int        `json:"functions"`
	Assignments int        `json:"assignments"`
	Calls       int        `json:"calls"`
	Params      int        `json:"params"`
	Returns     int        `json:"returns"`
	CFGs        int        `json:"cfgs"`
	Malformed   int        `json:"malformed_rows"`
	CallEdges   int        `json:"call_edges"`
	SelfLoops   int        `json:"self_loops"`
	Isolated    int        `json:"isolated_functions"`
	Recursive   [][]string `json:"recursive_function_groups"`
	Cycles      [][]string `json:"cycles"`
}

// Compute returns the statistics of the cache, with at most maxCycles elementary call cycles (all if maxCycles <= 0)
func Compute(cache *facts.Cache, maxCycles int) Statistics {
	s := cache.Stats()
	cg := cache.CallGraph()
	gs := graphutil.Statistics(cg)
	keyString := func(k graphutil.FuncKey) string { return k.String() }
	stats := Statistics{
		Functions:   s.Functions,
		Assignments: s.Assignments,
		Calls:       s.Calls,
		Params:      s.Params,
		Returns:     s.Returns,
		CFGs:        s.CFGs,
		Malformed:   s.Malformed,
		CallEdges:   gs.Size,
		SelfLoops:   gs.Loops,
		Isolated:    gs.Isolated,
		Recursive:   [][]string{},
		Cycles:      [][]string{},
	}
	for _, group := range graphutil.RecursiveGroups(cg) {
		stats.Recursive = append(stats.Recursive, funcutil.Map(group, keyString))
	}
	for _, cycle := range graphutil.FindAllElementaryCycles(cg, maxCycles) {
		stats.Cycles = append(stats.Cycles, funcutil.Map(cycle, func(id int64) string {
			return cg.IDMap[id].Key.String()
		}))
	}
	return stats
}

// Run prints the statistics of the fact store
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	if err := tools.ApplyCommonFlags(cfg, flags.CommonFlags); err != nil {
		return err
	}
	if !flags.Verbose {
		cfg.LogLevel = int(config.WarnLevel)
	}
	logger := config.NewLogGroup(cfg)
	fmt.Fprintf(os.Stderr, formatutil.Faint("Reading facts")+"\n")

	cache, err := taint.LoadFacts(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	stats := Compute(cache, flags.maxCycles)
	if flags.outputJson {
		buf, _ := json.Marshal(stats)
		fmt.Println(string(buf))
	} else {
		Print(os.Stdout, stats)
	}
	if flags.function != "" {
		return printNeighbours(os.Stdout, cache, flags.function)
	}
	return nil
}

// Print writes the statistics in text form to w
func Print(w io.Writer, stats Statistics) {
	fmt.Fprintf(w, "Number of functions: %d\n", stats.Functions)
	fmt.Fprintf(w, "Number of assignments: %d\n", stats.Assignments)
	fmt.Fprintf(w, "Number of call arguments: %d\n", stats.Calls)
	fmt.Fprintf(w, "Number of parameters: %d\n", stats.Params)
	fmt.Fprintf(w, "Number of returns: %d\n", stats.Returns)
	fmt.Fprintf(w, "Number of control-flow graphs: %d\n", stats.CFGs)
	if stats.Malformed > 0 {
		fmt.Fprintf(w, "%s %d\n", formatutil.Yellow("Malformed rows skipped:"), stats.Malformed)
	}
	fmt.Fprintf(w, "Call edges: %d (%d self loops, %d isolated functions)\n", stats.CallEdges, stats.SelfLoops,
		stats.Isolated)
	if len(stats.Recursive) == 0 {
		fmt.Fprintf(w, "No recursive functions\n")
		return
	}
	fmt.Fprintf(w, "Recursive function groups:\n")
	for _, group := range stats.Recursive {
		fmt.Fprintf(w, "  - %s\n", strings.Join(group, ", "))
	}
	fmt.Fprintf(w, "Call cycles:\n")
	for _, cycle := range stats.Cycles {
		fmt.Fprintf(w, "  - %s\n", strings.Join(cycle, " -> "))
	}
}

func printNeighbours(w io.Writer, cache *facts.Cache, function string) error {
	file, name, ok := strings.Cut(function, ":")
	if !ok {
		return fmt.Errorf("function should be given as file:name, got %q", function)
	}
	k := graphutil.FuncKey{File: file, Function: name}
	if !cache.HasFunction(k) {
		return fmt.Errorf("no function %s in the facts", k)
	}
	cg := cache.CallGraph()
	fmt.Fprintf(w, "%s\n", formatutil.Bold(k.String()))
	for _, c := range cg.Callers(k) {
		fmt.Fprintf(w, "  <- %s\n", c)
	}
	for _, c := range cg.Callees(k) {
		fmt.Fprintf(w, "  -> %s\n", c)
	}
	return nil
}
