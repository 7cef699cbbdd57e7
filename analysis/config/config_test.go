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

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

//go:embed testdata
var testfsys embed.FS

func checkMatches(t *testing.T, cid CodeIdentifier, pattern CodeIdentifier) {
	if !cid.Matches(compileRegexes(pattern)) {
		t.Errorf("%v should match %v", cid, pattern)
	}
}

func checkNotMatches(t *testing.T, cid CodeIdentifier, pattern CodeIdentifier) {
	if cid.Matches(compileRegexes(pattern)) {
		t.Errorf("%v should not match %v", cid, pattern)
	}
}

func TestCodeIdentifier_Matches_selfEquals(t *testing.T) {
	cid1 := CodeIdentifier{Package: "a", Method: "b"}
	checkMatches(t, cid1, cid1)
}

func TestCodeIdentifier_Matches_emptyMatchesAny(t *testing.T) {
	cid1 := CodeIdentifier{Package: "a", Method: "b", Receiver: "c", Type: "d"}
	cid2 := CodeIdentifier{Package: "de", Method: "234jbn", Receiver: "23kjb", Type: "234"}
	cidEmpty := CodeIdentifier{}
	checkMatches(t, cid1, cidEmpty)
	checkMatches(t, cid2, cidEmpty)
}

func TestCodeIdentifier_Matches_oneDiff(t *testing.T) {
	cid1 := CodeIdentifier{Package: "a", Method: "b"}
	cid2 := CodeIdentifier{Package: "a"}
	checkMatches(t, cid1, cid2)
	checkNotMatches(t, cid2, cid1)
}

func TestCodeIdentifier_Matches_regexes(t *testing.T) {
	cid1 := CodeIdentifier{Package: "main", Method: "b"}
	cid1bis := CodeIdentifier{Package: "command-line-arguments", Method: "b"}
	cid2 := CodeIdentifier{Package: "(main)|(command-line-arguments)$"}
	checkMatches(t, cid1, cid2)
	checkMatches(t, cid1bis, cid2)
}

func TestCodeIdentifier_Matches_invalidRegexIsString(t *testing.T) {
	pattern := CodeIdentifier{Package: "a(b", Method: "Close"}
	checkMatches(t, CodeIdentifier{Package: "a(b", Method: "Close"}, pattern)
	checkNotMatches(t, CodeIdentifier{Package: "ab", Method: "Close"}, pattern)
}

func TestDefaultReleaseFunctions(t *testing.T) {
	c := NewDefault()
	if !c.IsReleaseFunction(CodeIdentifier{Package: "os", Receiver: "File", Method: "Close"}) {
		t.Errorf("(*os.File).Close should be a default release function")
	}
	if !c.IsReleaseFunction(CodeIdentifier{Package: "io", Receiver: "ReadCloser", Method: "Close"}) {
		t.Errorf("io.ReadCloser.Close should be a default release function")
	}
	if c.IsReleaseFunction(CodeIdentifier{Package: "os", Receiver: "File", Method: "Read"}) {
		t.Errorf("(*os.File).Read should not be a release function")
	}
	if c.IsReleaseFunction(CodeIdentifier{Package: "myos", Receiver: "File", Method: "Close"}) {
		t.Errorf("package patterns should be anchored")
	}
}

func loadFromTestDir(filename string) (string, *Config, error) {
	filename = filepath.Join("testdata", filename)
	b, err := testfsys.ReadFile(filename)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file %v: %v", filename, err)
	}
	config, err := Parse(filename, b)
	if err != nil {
		return filename, nil, fmt.Errorf("failed to load file %v: %v", filename, err)
	}
	return filename, config, err
}

func testLoadOneFile(t *testing.T, filename string, expected Config) {
	configFileName, config, err := loadFromTestDir(filename)
	if err != nil {
		t.Errorf("Error loading %q: %v", configFileName, err)
	}
	c1, err1 := yaml.Marshal(config)
	c2, err2 := yaml.Marshal(expected)
	if err1 != nil {
		t.Errorf("Error marshalling %v", config)
	}
	if err2 != nil {
		t.Errorf("Error marshalling %v", expected)
	}
	if string(c1) != string(c2) {
		t.Errorf("Error in %q:\n%q is not\n%q\n", filename, c1, c2)
	}
}

func TestNewDefault(t *testing.T) {
	// Test that all methods work on the default config file, and check default values
	c := NewDefault()
	if c.FieldDepth != DefaultFieldDepth {
		t.Errorf("Default for FieldDepth should be %d", DefaultFieldDepth)
	}
	if c.VisitCeiling != DefaultVisitCeiling {
		t.Errorf("Default for VisitCeiling should be %d", DefaultVisitCeiling)
	}
	if c.BatchSccOrder() {
		t.Errorf("Default scc order should be %q", SccOrderOrdered)
	}
	if c.SummariesFile() != "" {
		t.Errorf("Default for summaries file should be empty")
	}
	if !c.MatchPkgFilter("anything") {
		t.Errorf("Default pkg filter should match anything")
	}
	if c.Verbose() {
		t.Errorf("Default config should not be verbose")
	}
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "does-not-exist.yaml"))
	if c != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load non existent file.")
	}
}

func TestLoadBadFormatFileReturnsError(t *testing.T) {
	_, config, err := loadFromTestDir("bad_format.yaml")
	if config != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load a badly formatted file.")
	}
}

func TestLoadBadSccOrderReturnsError(t *testing.T) {
	_, config, err := loadFromTestDir("bad_scc_order.yaml")
	if config != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load a config with an unknown scc-order.")
	}
}

func TestLoadWithReports(t *testing.T) {
	c := NewDefault()
	c.ReportsDir = "example-report"
	c.ReportSummaries = true
	testLoadOneFile(t, "config_with_reports.yaml", *c)
	if c.RelPath("example-report") != "example-report" {
		t.Errorf("Reports dir should be relative to config file when specified")
	}
	os.RemoveAll("example-report")
}

func TestLoadWithReportNoDirReturnsError(t *testing.T) {
	_, config, err := loadFromTestDir("config_with_reports_bad_dir.yaml")
	if config != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load config with a report dir that has a non-existing" +
			"directory name")
	}
}

func TestLoadWithNoSpecifiedReportsDir(t *testing.T) {
	fileName, config, err := loadFromTestDir("config_with_reports_no_dir_spec.yaml")
	if config == nil || err != nil {
		t.Errorf("Could not load %q", fileName)
		return
	}
	if config.ReportsDir == "" {
		t.Errorf("Expected reports-dir to be non-empty after loading config %q", fileName)
	}
	if config.SummariesFile() == "" || filepath.Dir(config.SummariesFile()) != config.ReportsDir {
		t.Errorf("Expected summaries file in the reports dir, got %q", config.SummariesFile())
	}
	// Remove temporary files
	os.RemoveAll(config.ReportsDir)
}

func TestLoadFullConfig(t *testing.T) {
	fileName, config, err := loadFromTestDir("full-config.yaml")
	if config == nil || err != nil {
		t.Errorf("Could not load %s", fileName)
		return
	}
	if config.LogLevel != int(TraceLevel) {
		t.Error("full config should have set trace")
	}
	if config.FieldDepth != 20 {
		t.Error("full config should set field-depth to 20")
	}
	if config.VisitCeiling != 500 {
		t.Error("full config should set visit-ceiling to 500")
	}
	if !config.BatchSccOrder() {
		t.Error("full config should set the batch scc order")
	}
	if config.Parallelism != 4 {
		t.Error("full config should set parallelism to 4")
	}
	if config.MaxAlarms != 16 {
		t.Error("full config should set MaxAlarms to 16")
	}
	if !config.SilenceWarn {
		t.Error("full config should have silence-warn set to true")
	}
	if config.RelPath(config.SummariesDB) != filepath.Join("testdata", "summaries-db.yaml") {
		t.Errorf("summaries db should be relative to the config file, got %q", config.RelPath(config.SummariesDB))
	}
	if !config.MatchPkgFilter("droptrack/analysis.Run") || config.MatchPkgFilter("other.Run") {
		t.Error("full config pkg filter should match functions in droptrack/analysis only")
	}
	if len(config.ReleaseFunctions) != 2 {
		t.Errorf("full config should have two release functions")
	}
	if !config.IsReleaseFunction(CodeIdentifier{Package: "example.com/pool", Method: "Put"}) {
		t.Errorf("full config should have example.com/pool.Put as release function")
	}
	if config.IsReleaseFunction(CodeIdentifier{Package: "io", Receiver: "ReadCloser", Method: "Close"}) {
		t.Errorf("defaults should not be used when release functions are specified")
	}
}

func TestLoadMisc(t *testing.T) {
	c := NewDefault()
	c.PkgFilter = "a"
	c.ReleaseFunctions = []CodeIdentifier{{Package: "mylib", Receiver: "Handle", Method: "Free"}}
	testLoadOneFile(t, "config.yaml", *c)
}

func TestLogGroupLevels(t *testing.T) {
	c := NewDefault()
	c.LogLevel = int(WarnLevel)
	l := NewLogGroup(c)
	var b bytes.Buffer
	l.SetAllOutput(&b)
	l.SetAllFlags(0)
	l.Infof("hidden")
	l.Warnf("shown %d", 1)
	l.Errorf("error %d", 2)
	if b.String() != "[WARN] shown 1\n[ERROR] error 2\n" {
		t.Errorf("unexpected log output %q", b.String())
	}
	if l.LogsDebug() || l.LogsTrace() {
		t.Errorf("warn level should not log debug or trace")
	}
	if l.GetError() == l.GetDebug() {
		t.Errorf("error and debug loggers should be distinct")
	}
}
