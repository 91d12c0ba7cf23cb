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
	"fmt"
	"sort"
	"sync"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/awslabs/argot-sast/analysis/patterns"
	"github.com/awslabs/argot-sast/internal/analysisutil"
)

// AnalyzerState holds the inputs shared by all the worklists of one run. Everything but the error map is read-only
// once the state is built, so that seeds can be processed in parallel without locks.
type AnalyzerState struct {
	// Config is the configuration of the run
	Config *config.Config

	// Logger is the log group of the run
	Logger *config.LogGroup

	// Facts is the fact cache
	Facts *facts.Cache

	// Patterns is the frozen pattern registry
	Patterns *patterns.Registry

	maxDepth int
	exclude  []string

	// errors stores the non-fatal errors met during the analysis, by key
	errors     map[string][]error
	errorMutex sync.Mutex
}

// NewAnalyzerState returns the state for a run over the fact cache with the registry. The registry must be frozen.
func NewAnalyzerState(cfg *config.Config, logger *config.LogGroup, cache *facts.Cache,
	registry *patterns.Registry) (*AnalyzerState, error) {
	if cfg == nil || cache == nil || registry == nil {
		return nil, fmt.Errorf("analyzer state needs a config, a fact cache and a pattern registry")
	}
	if !registry.Frozen() {
		return nil, fmt.Errorf("pattern registry must be frozen before the analysis starts")
	}
	if logger == nil {
		logger = config.NewLogGroup(cfg)
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = config.DefaultMaxDepth
	}
	for _, call := range cache.AmbiguousCalls() {
		logger.Debugf("Call %s at %s:%d matches several functions of %s, treated as unresolved",
			call.Callee, call.File, call.Line, call.CalleeFile)
	}
	return &AnalyzerState{
		Config:   cfg,
		Logger:   logger,
		Facts:    cache,
		Patterns: registry,
		maxDepth: maxDepth,
		exclude:  analysisutil.NormalizePaths(cfg.Exclude),
		errors:   map[string][]error{},
	}, nil
}

// MaxDepth returns the maximum number of hops of a path
func (s *AnalyzerState) MaxDepth() int {
	return s.maxDepth
}

// IsExcluded returns true if the facts of the file are ignored
func (s *AnalyzerState) IsExcluded(file string) bool {
	return analysisutil.IsExcluded(file, s.exclude)
}

// Language returns the language of the file, as used to select the pattern catalog
func (s *AnalyzerState) Language(file string) string {
	return facts.LanguageOf(file)
}

// AddError adds an error with key and error e to the state.
func (s *AnalyzerState) AddError(key string, e error) {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	if e != nil {
		s.errors[key] = append(s.errors[key], e)
	}
}

// CheckError checks whether there is an error in the state, and if there is, returns the errors of the smallest key
// and deletes them.
func (s *AnalyzerState) CheckError() []error {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	keys := make([]string, 0, len(s.errors))
	for k := range s.errors {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	errs := s.errors[keys[0]]
	delete(s.errors, keys[0])
	return errs
}

// HasErrors returns true if the state has an error. Unlike [*AnalyzerState.CheckError], this is non-destructive.
func (s *AnalyzerState) HasErrors() bool {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	for _, errs := range s.errors {
		if len(errs) > 0 {
			return true
		}
	}
	return false
}

// Errors returns all the errors of the state, sorted by key
func (s *AnalyzerState) Errors() []error {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	keys := make([]string, 0, len(s.errors))
	for k := range s.errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var res []error
	for _, k := range keys {
		res = append(res, s.errors[k]...)
	}
	return res
}
