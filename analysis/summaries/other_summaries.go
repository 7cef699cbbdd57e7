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

// OtherPackages maps packages outside of the standard library to the summaries of their functions
var OtherPackages = map[string]map[string]Summary{
	"github.com/klauspost/compress/gzip": SummaryKlauspostCompress,
	"github.com/klauspost/compress/zstd": SummaryKlauspostCompress,
	"github.com/pkg/sftp":                SummarySftp,
}

var SummaryKlauspostCompress = map[string]Summary{
	"github.com/klauspost/compress/gzip.NewReader": wrapsWithError,
	"github.com/klauspost/compress/gzip.NewWriter": wraps(1),
	"github.com/klauspost/compress/zstd.NewReader": wrapsWithError,
	"github.com/klauspost/compress/zstd.NewWriter": wrapsWithError,
}

var SummarySftp = map[string]Summary{
	// func NewClient(conn *ssh.Client, opts ...ClientOption) (*Client, error)
	"github.com/pkg/sftp.NewClient": wrapsWithError,
}
