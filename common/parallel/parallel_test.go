// Copyright 2025 implicit Project Authors
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

package parallel

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestParallel(t *testing.T) {
	var count atomic.Int64
	err := Parallel(context.Background(), 1000, 4, func(workerId, jobId int) error {
		assert.Less(t, workerId, 4)
		assert.Less(t, jobId, 1000)
		count.Add(1)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), count.Load())
}

func TestParallelSequential(t *testing.T) {
	workers := make(map[int]struct{})
	err := Parallel(context.Background(), 100, 1, func(workerId, jobId int) error {
		workers[workerId] = struct{}{}
		return nil
	})
	assert.NoError(t, err)
	assert.Len(t, workers, 1)
}

func TestParallelError(t *testing.T) {
	err := Parallel(context.Background(), 100, 4, func(workerId, jobId int) error {
		if jobId == 42 {
			return errors.New("boom")
		}
		return nil
	})
	assert.ErrorContains(t, err, "boom")
}

func TestParallelCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Parallel(ctx, 100, 4, func(workerId, jobId int) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParallelCancelMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int64
	err := Parallel(ctx, 10000, 4, func(workerId, jobId int) error {
		if count.Add(1) == 100 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFor(t *testing.T) {
	var count atomic.Int64
	For(100, 4, func(i int) {
		count.Add(1)
	})
	assert.Equal(t, int64(100), count.Load())
}

func TestForEach(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	sum := make([]int64, len(a))
	ForEach(a, 4, func(i, v int) {
		sum[i] = int64(v)
	})
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, sum)
}

func TestSplit(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	chunks := Split(a, 2)
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5}}, chunks)
	assert.Nil(t, Split([]int{}, 3))
	assert.Len(t, Split(a, 10), 5)
}
