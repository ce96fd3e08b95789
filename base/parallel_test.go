// Copyright 2025 reelrec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestParallel(t *testing.T) {
	for _, nJob := range []int{1, 2, 4} {
		results := make([]int, 100)
		err := Parallel(len(results), nJob, func(workerId, taskId int) error {
			results[taskId] = taskId * taskId
			return nil
		})
		assert.NoError(t, err)
		for i, result := range results {
			assert.Equal(t, i*i, result)
		}
	}
}

func TestParallel_Error(t *testing.T) {
	expected := errors.New("task failed")
	err := Parallel(100, 4, func(workerId, taskId int) error {
		if taskId == 42 {
			return expected
		}
		return nil
	})
	assert.ErrorIs(t, err, expected)
}

func TestParallel_Empty(t *testing.T) {
	called := false
	err := Parallel(0, 4, func(workerId, taskId int) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.False(t, called)
}
