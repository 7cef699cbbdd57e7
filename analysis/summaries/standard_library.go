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
	"strings"

	"github.com/awslabs/ar-go-droptrack/analysis/ir"
)

// stdPackages maps the packages of the standard library to the summaries of their functions. Only the functions
// that alias a resource with their result need a summary: calls to the others are treated by the opaque call
// heuristic.
var stdPackages = map[string]map[string]Summary{
	"bufio":          SummaryBufIo,
	"compress/gzip":  SummaryCompress,
	"compress/zlib":  SummaryCompress,
	"compress/flate": SummaryCompress,
	"encoding/csv":   SummaryEncoding,
	"encoding/json":  SummaryEncoding,
	"encoding/xml":   SummaryEncoding,
	"encoding/gob":   SummaryEncoding,
	"io":             SummaryIo,
	"net/textproto":  SummaryNet,
	"net/http":       SummaryNet,
	"os":             SummaryOs,
}

// wraps is the summary of a function whose return value holds all the arguments given.
func wraps(args ...int) Summary {
	facts := make([]AliasFact, len(args))
	for i, a := range args {
		facts[i] = AliasFact{Left: Ret(), Right: Arg(a), LeftMayDrop: true, RightMayDrop: true}
	}
	return Summary{Facts: facts}
}

// wrapsWithError is the summary of a function returning a wrapper of its first argument and an error.
var wrapsWithError = Summary{Facts: []AliasFact{
	{Left: Ret(0), Right: Arg(1), LeftMayDrop: true, RightMayDrop: true},
}}

var SummaryBufIo = map[string]Summary{
	// func NewReader(rd io.Reader) *Reader
	"bufio.NewReader": wraps(1),
	// func NewReaderSize(rd io.Reader, size int) *Reader
	"bufio.NewReaderSize": wraps(1),
	// func NewWriter(w io.Writer) *Writer
	"bufio.NewWriter": wraps(1),
	// func NewWriterSize(w io.Writer, size int) *Writer
	"bufio.NewWriterSize": wraps(1),
	// func NewScanner(r io.Reader) *Scanner
	"bufio.NewScanner": wraps(1),
	// func NewReadWriter(r *Reader, w *Writer) *ReadWriter
	"bufio.NewReadWriter": wraps(1, 2),
}

var SummaryCompress = map[string]Summary{
	// func NewReader(r io.Reader) (*Reader, error)
	"compress/gzip.NewReader": wrapsWithError,
	// func NewWriter(w io.Writer) *Writer
	"compress/gzip.NewWriter": wraps(1),
	// func NewReader(r io.Reader) (io.ReadCloser, error)
	"compress/zlib.NewReader": wrapsWithError,
	// func NewWriter(w io.Writer) *Writer
	"compress/zlib.NewWriter": wraps(1),
	// func NewReader(r io.Reader) io.ReadCloser
	"compress/flate.NewReader": wraps(1),
	// func NewWriter(w io.Writer, level int) (*Writer, error)
	"compress/flate.NewWriter": wrapsWithError,
}

var SummaryEncoding = map[string]Summary{
	// func NewReader(r io.Reader) *Reader
	"encoding/csv.NewReader": wraps(1),
	// func NewWriter(w io.Writer) *Writer
	"encoding/csv.NewWriter": wraps(1),
	// func NewDecoder(r io.Reader) *Decoder
	"encoding/json.NewDecoder": wraps(1),
	// func NewEncoder(w io.Writer) *Encoder
	"encoding/json.NewEncoder": wraps(1),
	// func NewDecoder(r io.Reader) *Decoder
	"encoding/xml.NewDecoder": wraps(1),
	// func NewEncoder(w io.Writer) *Encoder
	"encoding/xml.NewEncoder": wraps(1),
	// func NewDecoder(r io.Reader) *Decoder
	"encoding/gob.NewDecoder": wraps(1),
	// func NewEncoder(w io.Writer) *Encoder
	"encoding/gob.NewEncoder": wraps(1),
}

var SummaryIo = map[string]Summary{
	// func NopCloser(r Reader) ReadCloser
	"io.NopCloser": wraps(1),
	// func LimitReader(r Reader, n int64) Reader
	"io.LimitReader": wraps(1),
	// func TeeReader(r Reader, w Writer) Reader
	"io.TeeReader": wraps(1, 2),
	// func MultiReader(readers ...Reader) Reader
	"io.MultiReader": wraps(1),
	// func MultiWriter(writers ...Writer) Writer
	"io.MultiWriter": wraps(1),
	// func NewSectionReader(r ReaderAt, off int64, n int64) *SectionReader
	"io.NewSectionReader": wraps(1),
	// func ReadAll(r Reader) ([]byte, error)
	"io.ReadAll": {},
	// func Copy(dst Writer, src Reader) (written int64, err error)
	"io.Copy": {},
}

var SummaryNet = map[string]Summary{
	// func NewReader(r *bufio.Reader) *Reader
	"net/textproto.NewReader": wraps(1),
	// func NewWriter(w *bufio.Writer) *Writer
	"net/textproto.NewWriter": wraps(1),
	// func MaxBytesReader(w ResponseWriter, r io.ReadCloser, n int64) io.ReadCloser
	"net/http.MaxBytesReader": wraps(2),
}

var SummaryOs = map[string]Summary{
	// func (f *File) Name() string
	"(*os.File).Name": {},
	// func (f *File) Stat() (FileInfo, error)
	"(*os.File).Stat": {},
}

// IsStdPackageName returns true if the package is in the standard library or the runtime. The standard library is
// defined internally as the list of packages in summaries.stdPackages
func IsStdPackageName(name string) bool {
	_, ok := stdPackages[name]
	return ok || strings.HasPrefix(name, "runtime")
}

// PackageOf returns the package path of a function identified by its fully qualified name, e.g. "bufio" for
// "bufio.NewReader" and "(*bufio.Reader).Read".
func PackageOf(id ir.FuncID) string {
	name := string(id)
	if strings.HasPrefix(name, "(") {
		name = strings.TrimPrefix(name[1:], "*")
		if end := strings.Index(name, ")"); end >= 0 {
			name = name[:end]
		}
	}
	start := strings.LastIndex(name, "/") + 1
	dot := strings.Index(name[start:], ".")
	if dot < 0 {
		return ""
	}
	return name[:start+dot]
}

// LibrarySummary returns the built-in summary of the function, if there is one.
func LibrarySummary(id ir.FuncID) (Summary, bool) {
	pkg := PackageOf(id)
	for _, table := range []map[string]map[string]Summary{stdPackages, OtherPackages} {
		if s, ok := table[pkg]; ok {
			if summary, ok := s[string(id)]; ok {
				return NewSummary(id, summary.Facts), true
			}
		}
	}
	return Summary{}, false
}
