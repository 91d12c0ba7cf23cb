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

// Package analysistest builds in-memory fact snapshots for the tests of the analyses.
package analysistest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
)

// LoadTest loads the snapshot stored as json in dir/facts.json and the config in dir/config.yaml. If there is no
// config file in dir, the default config is returned.
func LoadTest(t *testing.T, dir string) (*facts.Snapshot, *config.Config) {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, "facts.json"))
	if err != nil {
		t.Fatalf("error reading facts: %v", err)
	}
	snapshot := &facts.Snapshot{}
	if err := json.Unmarshal(b, snapshot); err != nil {
		t.Fatalf("error decoding facts: %v", err)
	}
	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); err != nil {
		return snapshot, config.NewDefault()
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		t.Fatalf("error loading config: %v", err)
	}
	return snapshot, cfg
}

// A Builder accumulates fact rows. All rows added through a FuncBuilder are attributed to its function.
type Builder struct {
	snapshot facts.Snapshot
	nextLine map[string]int
	nextID   int
}

// NewBuilder returns an empty builder
func NewBuilder() *Builder {
	return &Builder{nextLine: map[string]int{}, nextID: 1}
}

// Snapshot returns a copy of the snapshot built so far
func (b *Builder) Snapshot() *facts.Snapshot {
	s := b.snapshot
	return &s
}

// Cache returns the fact cache indexing the snapshot built so far
func (b *Builder) Cache() *facts.Cache {
	return facts.NewCache(b.Snapshot())
}

// Raw gives access to the snapshot under construction, for rows the builder does not cover
func (b *Builder) Raw() *facts.Snapshot {
	return &b.snapshot
}

// FuncBuilder adds facts located in one function
type FuncBuilder struct {
	b    *Builder
	file string
	name string
}

// Func declares the function name in file with its parameters, and returns a builder for its body. The function
// symbol starts at line start.
func (b *Builder) Func(file string, name string, start int, params ...string) *FuncBuilder {
	b.snapshot.Symbols = append(b.snapshot.Symbols, facts.Symbol{
		File: file, Line: start, EndLine: start + 99, Name: name, Kind: facts.SymbolFunction,
	})
	for i, p := range params {
		b.snapshot.Params = append(b.snapshot.Params, facts.Param{File: file, Function: name, Index: i, Name: p})
	}
	return &FuncBuilder{b: b, file: file, name: name}
}

// In returns a builder for a function without declaring it
func (b *Builder) In(file string, name string) *FuncBuilder {
	return &FuncBuilder{b: b, file: file, name: name}
}

// Key returns the key of the function
func (f *FuncBuilder) Key() facts.FuncKey {
	return facts.FuncKey{File: f.file, Function: f.name}
}

// Assign adds target = expr at line, with the variables the expression reads
func (f *FuncBuilder) Assign(line int, target string, expr string, reads ...string) *FuncBuilder {
	f.b.snapshot.Assignments = append(f.b.snapshot.Assignments, facts.Assignment{
		File: f.file, Line: line, TargetVar: target, SourceExpr: expr, InFunction: f.name,
	})
	for _, r := range reads {
		f.b.snapshot.AssignmentSources = append(f.b.snapshot.AssignmentSources, facts.AssignmentSource{
			File: f.file, Line: line, TargetVar: target, SourceVar: r,
		})
	}
	return f
}

// Call adds a call to callee at line with the argument expressions. The callee file is left empty, so the call does
// not resolve to a function.
func (f *FuncBuilder) Call(line int, callee string, args ...string) *FuncBuilder {
	return f.CallIn(line, "", callee, args...)
}

// CallIn adds a call to callee defined in calleeFile
func (f *FuncBuilder) CallIn(line int, calleeFile string, callee string, args ...string) *FuncBuilder {
	for i, a := range args {
		f.b.snapshot.CallArgs = append(f.b.snapshot.CallArgs, facts.CallArg{
			File: f.file, Line: line, CallerFunction: f.name, CalleeFunction: callee,
			ArgIndex: i, ArgExpr: a, CalleeFile: calleeFile,
		})
	}
	return f
}

// Return adds a return statement of expr, with the variables it reads
func (f *FuncBuilder) Return(line int, expr string, reads ...string) *FuncBuilder {
	f.b.snapshot.Returns = append(f.b.snapshot.Returns, facts.Return{
		File: f.file, Line: line, Function: f.name, ReturnExpr: expr,
	})
	for _, r := range reads {
		f.b.snapshot.ReturnSources = append(f.b.snapshot.ReturnSources, facts.ReturnSource{
			File: f.file, Line: line, Function: f.name, ReturnVar: r,
		})
	}
	return f
}

// Block adds a CFG block spanning [start, end] and returns its id
func (f *FuncBuilder) Block(kind string, start int, end int, condition string) int {
	id := f.b.nextID
	f.b.nextID++
	f.b.snapshot.Blocks = append(f.b.snapshot.Blocks, facts.Block{
		ID: id, File: f.file, Function: f.name, Type: kind, StartLine: start, EndLine: end, Condition: condition,
	})
	return id
}

// Edge adds a CFG edge between two blocks of the function
func (f *FuncBuilder) Edge(from int, to int, kind string) *FuncBuilder {
	f.b.snapshot.Edges = append(f.b.snapshot.Edges, facts.Edge{
		File: f.file, Function: f.name, Source: from, Target: to, Type: kind,
	})
	return f
}

// Statement adds a statement to a CFG block
func (f *FuncBuilder) Statement(block int, kind string, line int, text string) *FuncBuilder {
	f.b.snapshot.Statements = append(f.b.snapshot.Statements, facts.Statement{
		BlockID: block, Type: kind, Line: line, Text: text,
	})
	return f
}
