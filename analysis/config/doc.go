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

Use [Load](filename) to load a configuration from a specific filename, or [Parse](filename, contents) when the
contents are already in memory.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type. The other fields are defined by the types of the fields of [Config] and nested struct types.
For example, a valid config file is as follows:

	options:
	  log-level: 4
	  field-depth: 15
	  visit-ceiling: 5000
	  scc-order: batch
	release-functions:
	  - package: os
	    receiver: File
	    method: Close

# Identifying code elements

The config uses [CodeIdentifier] to identify the release functions. An important feature of the code identifiers is
that the string specifications are seen as regexes if they can be compiled to regexes, otherwise they are strings.
When no release function is given, [DefaultReleaseFunctions] is used.

# Engine options

  - field-depth bounds the depth of field projections the location store tracks (default 10). Larger values are
    more precise on deeply nested types and slower.
  - visit-ceiling bounds the number of blocks visited when walking the paths of one procedure (default 10000).
    Procedures that exceed it are reported with a notice and their findings are dropped.
  - scc-order is "ordered" (enumerate the iteration orders of each loop, pruned by branch conditions) or "batch"
    (visit each loop once, in block order).
*/
package config
