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

package tools

import (
	"path/filepath"
	"testing"
)

func TestNewCommonFlags(t *testing.T) {
	flags, err := NewCommonFlags("check", []string{"-config", "c.yaml", "-verbose", "-exclude", "/tmp/x.go",
		"-exclude", "vendor", "./..."}, "usage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flags.ConfigPath != "c.yaml" || !flags.Verbose || flags.WithTest {
		t.Errorf("wrong flags: %+v", flags)
	}
	abs, _ := filepath.Abs("vendor")
	if len(flags.Exclude) != 2 || flags.Exclude[0] != "/tmp/x.go" || flags.Exclude[1] != abs {
		t.Errorf("wrong excluded paths: %v", flags.Exclude)
	}
	if args := flags.FlagSet.Args(); len(args) != 1 || args[0] != "./..." {
		t.Errorf("wrong arguments: %v", args)
	}
}

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.ReleaseFunctions) == 0 {
		t.Errorf("default config has no release functions")
	}
}

func TestLoadMissingConfig(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected an error")
	}
	LoadConfig("")
}
