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

package config

const (
	// DefaultMaxDepth is the default maximum number of hops of a taint path
	DefaultMaxDepth = 5
	// DefaultMaxDepthCeiling is the default largest value accepted for the max depth
	DefaultMaxDepthCeiling = 10
	// HardMaxDepthCeiling is the largest value accepted for the max depth ceiling
	HardMaxDepthCeiling = 25
	// DefaultNodeBudget is the default number of worklist states one seed may expand
	DefaultNodeBudget = 100000
	// StoreDriverSqlite selects the sqlite fact store
	StoreDriverSqlite = "sqlite"
	// StoreDriverPostgres selects the postgres fact store
	StoreDriverPostgres = "postgres"
)
