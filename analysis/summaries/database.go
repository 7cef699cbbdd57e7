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

package summaries

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ReadYAML reads a list of summaries in yaml format, for example:
//
//	- func: mylib.Wrap
//	  facts:
//	    - left: {index: 0}
//	      right: {index: 1, fields: [0]}
//	      left-may-drop: true
//	      right-may-drop: true
func ReadYAML(r io.Reader) ([]Summary, error) {
	var summaries []Summary
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&summaries); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("could not decode summaries: %w", err)
	}
	for i, s := range summaries {
		if s.Func == "" {
			return nil, fmt.Errorf("summary %d has no function name", i)
		}
		for _, f := range s.Facts {
			if f.Left.Index < 0 || f.Right.Index < 0 {
				return nil, fmt.Errorf("summary of %s has a negative index in fact %s", s.Func, f)
			}
		}
		summaries[i] = NewSummary(s.Func, s.Facts)
	}
	return summaries, nil
}

// LoadFile reads the summaries in the yaml file filename
func LoadFile(filename string) ([]Summary, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open summaries database: %w", err)
	}
	defer f.Close()
	return ReadYAML(f)
}

// WriteYAML writes the summaries in yaml format. The output can be read back with ReadYAML.
func WriteYAML(w io.Writer, summaries []Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(summaries); err != nil {
		return fmt.Errorf("could not encode summaries: %w", err)
	}
	return enc.Close()
}
