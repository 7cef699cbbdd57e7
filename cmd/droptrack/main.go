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

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/awslabs/ar-go-droptrack/cmd/droptrack/cfg"
	"github.com/awslabs/ar-go-droptrack/cmd/droptrack/check"
	"github.com/awslabs/ar-go-droptrack/cmd/droptrack/summaries"
	"github.com/awslabs/ar-go-droptrack/cmd/droptrack/tools"
)

const version = "v0.1.0"

const usage = `Droptrack: path-sensitive tracking of released values in Go programs
Usage:
  droptrack [tool] [options] <package path(s)>
Tools:
  - check: reports uses after release, double releases and released values returned by functions
  - summaries: prints the alias summaries of the functions of the program
  - cfg: prints the lowered functions and their control-flow graphs
Examples:
  Check a module: droptrack check --config=config.yaml ./...
  Save summaries: droptrack summaries -o lib.yaml ./...`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "check":
		flags, err := check.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := check.Run(flags); err != nil {
			if errors.Is(err, check.ErrFindings) {
				os.Exit(1)
			}
			errExit(err)
		}
	case "summaries":
		flags, err := summaries.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := summaries.Run(flags); err != nil {
			errExit(err)
		}
	case "cfg":
		flags, err := cfg.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := cfg.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
