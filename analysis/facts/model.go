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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/awslabs/argot-sast/internal/graphutil"
)

// FuncKey identifies a function by the file it is defined in and its name.
type FuncKey = graphutil.FuncKey

// Symbol kinds
const (
	SymbolFunction = "function"
	SymbolProperty = "property"
	SymbolCall     = "call"
	SymbolVariable = "variable"
)

// Symbol is a named entity found by the extractors: a function, a property-access expression, a variable or a call.
type Symbol struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	EndLine int    `json:"end_line,omitempty"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
}

// Assignment is one variable binding target_var = source_expr inside a function.
type Assignment struct {
	File       string `json:"file"`
	Line       int    `json:"line"`
	TargetVar  string `json:"target_var"`
	SourceExpr string `json:"source_expr"`
	InFunction string `json:"in_function"`
}

// AssignmentSource links the assignment at File:Line to one variable referenced on its right-hand side.
type AssignmentSource struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	TargetVar string `json:"target_var"`
	SourceVar string `json:"source_var"`
}

// CallArg is one positional argument at one call site. The rows sharing (File, Line, CalleeFunction) describe the
// argument list of a single call.
type CallArg struct {
	File           string `json:"file"`
	Line           int    `json:"line"`
	CallerFunction string `json:"caller_function"`
	CalleeFunction string `json:"callee_function"`
	ArgIndex       int    `json:"argument_index"`
	ArgExpr        string `json:"argument_expr"`
	// ParamName is the callee parameter bound to the argument, when the extractor could resolve it
	ParamName string `json:"param_name,omitempty"`
	// CalleeFile is the file defining the callee, when statically resolvable
	CalleeFile string `json:"callee_file_path,omitempty"`
}

// Param is one formal parameter of a function.
type Param struct {
	File     string `json:"file"`
	Function string `json:"function_name"`
	Index    int    `json:"param_index"`
	Name     string `json:"param_name"`
	Variadic bool   `json:"is_variadic,omitempty"`
}

// Return is a return statement of a function.
type Return struct {
	File       string `json:"file"`
	Line       int    `json:"line"`
	Function   string `json:"function_name"`
	ReturnExpr string `json:"return_expr"`
}

// ReturnSource links the return statement at File:Line to one variable feeding the returned value.
type ReturnSource struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Function  string `json:"function_name"`
	ReturnVar string `json:"return_var"`
}

// Block is a basic block of a function's control-flow graph.
type Block struct {
	ID        int    `json:"id"`
	File      string `json:"file"`
	Function  string `json:"function_name"`
	Type      string `json:"block_type"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	// Condition is the branch condition evaluated at the end of the block, if any
	Condition string `json:"condition_expr,omitempty"`
}

// Edge is a control-flow edge between two blocks. Type is the condition label of the edge ("true", "false") or its
// kind ("normal", "back_edge", ...).
type Edge struct {
	File     string `json:"file"`
	Function string `json:"function_name"`
	Source   int    `json:"source_block_id"`
	Target   int    `json:"target_block_id"`
	Type     string `json:"edge_type"`
}

// Statement is a statement inside a basic block.
type Statement struct {
	BlockID int    `json:"block_id"`
	Type    string `json:"statement_type"`
	Line    int    `json:"line"`
	Text    string `json:"statement_text,omitempty"`
}

// Snapshot holds all the fact rows loaded from the store. The snapshot is the unindexed form of the Cache; it is
// what the stores produce and what the snapshot cache persists.
type Snapshot struct {
	Symbols           []Symbol           `json:"symbols"`
	Assignments       []Assignment       `json:"assignments"`
	AssignmentSources []AssignmentSource `json:"assignment_sources"`
	CallArgs          []CallArg          `json:"function_call_args"`
	Params            []Param            `json:"function_params"`
	Returns           []Return           `json:"function_returns"`
	ReturnSources     []ReturnSource     `json:"function_return_sources"`
	Blocks            []Block            `json:"cfg_blocks"`
	Edges             []Edge             `json:"cfg_edges"`
	Statements        []Statement        `json:"cfg_block_statements"`
}

// Size returns the total number of rows in the snapshot
func (s *Snapshot) Size() int {
	return len(s.Symbols) + len(s.Assignments) + len(s.AssignmentSources) + len(s.CallArgs) + len(s.Params) +
		len(s.Returns) + len(s.ReturnSources) + len(s.Blocks) + len(s.Edges) + len(s.Statements)
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("%d symbols, %d assignments, %d call arguments, %d parameters, %d returns, %d cfg blocks",
		len(s.Symbols), len(s.Assignments), len(s.CallArgs), len(s.Params), len(s.Returns), len(s.Blocks))
}

// Supported languages
const (
	LanguagePython     = "python"
	LanguageJavascript = "javascript"
	LanguageTypescript = "typescript"
	LanguageGo         = "go"
	LanguageUnknown    = ""
)

// LanguageOf returns the language of a file from its extension, or LanguageUnknown
func LanguageOf(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".py", ".pyi":
		return LanguagePython
	case ".js", ".jsx", ".mjs", ".cjs", ".vue":
		return LanguageJavascript
	case ".ts", ".tsx", ".mts", ".cts":
		return LanguageTypescript
	case ".go":
		return LanguageGo
	default:
		return LanguageUnknown
	}
}
