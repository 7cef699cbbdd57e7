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

package formatutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColor(t *testing.T) {
	defer SetColors(colorize)
	SetColors(false)
	assert.Equal(t, "double-free", Red("double-free"))
	assert.Equal(t, "a1", Bold("a", 1))
	SetColors(true)
	assert.Equal(t, "\033[1;31mdouble-free\033[0m", Red("double-free"))
	assert.Equal(t, "\033[2mx\033[0m", Faint("x"))
}
