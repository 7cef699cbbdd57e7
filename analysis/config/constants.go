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
	// DefaultFieldDepth is the default maximum projection depth of the location store. Depths of 15, 20 or 30
	// trade speed for field sensitivity on deeply nested types.
	DefaultFieldDepth = 10
	// DefaultVisitCeiling is the default maximum number of blocks visited per procedure before the walker stops
	// forking.
	DefaultVisitCeiling = 10000
	// SccOrderOrdered selects the discriminant-aware enumeration of loop iteration traces
	SccOrderOrdered = "ordered"
	// SccOrderBatch selects the cheap mode where all the blocks of a loop are visited once, in index order
	SccOrderBatch = "batch"
	// DefaultParallelism is the default number of procedures checked concurrently
	DefaultParallelism = 1
)
