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
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type. The other fields are defined by the types of the fields of [Config] and nested struct types.
For example, a valid config file is as follows:

	options:
	  log-level: 4
	  max-depth: 6
	  enable-flow-sensitive: true
	  languages: [python, javascript]

	store:
	  driver: sqlite
	  dsn: .pf/repo_index.db

	patterns:
	  - language: python
	    kind: sink
	    category: sql
	    match: legacy_db.run_raw

# Depth limits

The max-depth option bounds the number of hops of a reported path. It defaults to 5 and cannot exceed
max-depth-ceiling, which defaults to 10 and can be raised up to 25. Branches cut by the depth limit are reported in the
run summary, never silently dropped.
*/
package config
