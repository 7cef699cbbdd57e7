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

package funcutil

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, strconv.Itoa))
	assert.Nil(t, Map(nil, strconv.Itoa))
}

func TestSetToOrderedSlice(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, SetToOrderedSlice(map[string]bool{"c": true, "b": false, "a": true}))
	assert.Empty(t, SetToOrderedSlice(map[int]bool{}))
}

func TestOptional(t *testing.T) {
	x := Some(3)
	assert.True(t, x.IsSome())
	assert.Equal(t, 3, x.Value())
	assert.Equal(t, 3, x.ValueOr(4))
	y := None[int]()
	assert.True(t, y.IsNone())
	assert.Equal(t, 4, y.ValueOr(4))
	assert.Panics(t, func() { y.Value() })
}
