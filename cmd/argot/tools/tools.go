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

// Package tools contains utility types and functions for Argot tool frontends.
package tools

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/awslabs/argot-sast/analysis/config"
)

// UnparsedCommonFlags represents an unparsed CLI sub-command flags.
type UnparsedCommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath *string
	Verbose    *bool
	Driver     *string
	DSN        *string
}

// NewUnparsedCommonFlags returns an unparsed flag set with a given name.
// This is useful for creating sub-commands that have the flags -config,
// -verbose, -driver and -db but need other flags in addition.
func NewUnparsedCommonFlags(name string) UnparsedCommonFlags {
	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := cmd.String("config", "", "config file path for analysis")
	verbose := cmd.Bool("verbose", false, "verbose printing on standard output")
	driver := cmd.String("driver", "", "fact store driver (sqlite or postgres), overrides the config")
	dsn := cmd.String("db", "", "fact store: path of the sqlite file or postgres connection string, overrides the config")
	return UnparsedCommonFlags{
		FlagSet:    cmd,
		ConfigPath: configPath,
		Verbose:    verbose,
		Driver:     driver,
		DSN:        dsn,
	}
}

// CommonFlags represents a parsed CLI sub-command flags.
// E.g., for the command `argot taint ...`, "taint" is the sub-command.
type CommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath string
	Verbose    bool
	Driver     string
	DSN        string
}

// Parse parses args and returns the common flags
func (u UnparsedCommonFlags) Parse(args []string) (CommonFlags, error) {
	if err := u.FlagSet.Parse(args); err != nil {
		return CommonFlags{}, fmt.Errorf("failed to parse command %s with args %v: %v", u.FlagSet.Name(), args, err)
	}
	return CommonFlags{
		FlagSet:    u.FlagSet,
		ConfigPath: *u.ConfigPath,
		Verbose:    *u.Verbose,
		Driver:     *u.Driver,
		DSN:        *u.DSN,
	}, nil
}

// SetUsage sets cmd's usage (for --help flag) to output the string cmdUsage
// followed by each flag's documentation.
func SetUsage(cmd *flag.FlagSet, cmdUsage string) {
	cmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n", cmdUsage)
		fmt.Fprintf(os.Stderr, "Options:\n")
		cmd.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  %s: %s (default: %q)\n", f.Name, f.Usage, f.DefValue)
		})
	}
}

// ExcludePaths represents filepaths to exclude.
type ExcludePaths []string

func (e *ExcludePaths) String() string {
	if e == nil {
		return "[]"
	}
	return fmt.Sprintf("%v", []string(*e))
}

// Set adds value to e.
// This method satisfies the flag.Value interface.
func (e *ExcludePaths) Set(value string) error {
	*e = append(*e, value)
	return nil
}

// LoadConfig loads the config file from configPath. With an empty path, the default configuration is returned.
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return config.NewDefault(), nil
	}
	config.SetGlobalConfig(configPath)
	cfg, err := config.LoadGlobal()
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %v", configPath, err)
	}

	return cfg, nil
}

// ApplyCommonFlags overrides the configuration with the common command line flags, and validates the result.
func ApplyCommonFlags(cfg *config.Config, flags CommonFlags) error {
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	if flags.Driver != "" {
		cfg.Store.Driver = strings.ToLower(flags.Driver)
	}
	if flags.DSN != "" {
		cfg.Store.DSN = flags.DSN
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("no fact store: set store.dsn in the config or use -db")
	}
	return nil
}
