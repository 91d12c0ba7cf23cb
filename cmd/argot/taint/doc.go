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

/*
Package taint implements the front-end to the Argot taint tool which runs the
interprocedural taint analysis on the facts extracted from a repository.

Usage:

	argot taint [flags] -config config.yaml

The flags are:

	-config path         a path to the configuration file (store, patterns, analysis options)

	-db path             the fact store, overrides the store dsn of the config

	-driver name         sqlite or postgres, overrides the store driver of the config

	-max-depth n         maximum number of hops of a reported path

	-no-flow-sensitive   only run the flow-insensitive track

	-multi-hop           also discover paths backward from the sinks

	-json, -sarif        write the taint paths to the reports directory

	-verbose=false       setting verbose mode, overrides config file options if set
*/
package taint
