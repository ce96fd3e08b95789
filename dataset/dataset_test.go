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

package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reelrec-io/reelrec/base"
	"github.com/reelrec-io/reelrec/merge"
)

var testScale = merge.ScaleBounds{Min: 0.5, Max: 5}

func newTestDataset() *Dataset {
	return New([]merge.Interaction{
		{UserID: 1, MovieID: 100, Rating: 4},
		{UserID: 1, MovieID: 200, Rating: 3},
		{UserID: 2, MovieID: 100, Rating: 5},
		{UserID: 2, MovieID: 300, Rating: 2},
		{UserID: 3, MovieID: 200, Rating: 1},
	}, testScale)
}

func TestNew(t *testing.T) {
	set := newTestDataset()
	assert.Equal(t, 5, set.Count())
	assert.Equal(t, 3, set.UserCount())
	assert.Equal(t, 3, set.ItemCount())
	assert.Equal(t, testScale, set.Scale)
	// dense indices are assigned in order of first appearance
	assert.Equal(t, int32(0), set.UserIndex.ToNumber(1))
	assert.Equal(t, int32(1), set.UserIndex.ToNumber(2))
	assert.Equal(t, int32(0), set.ItemIndex.ToNumber(100))
	assert.Equal(t, int32(1), set.ItemIndex.ToNumber(200))
	userIndex, itemIndex, rating := set.Get(0)
	assert.Equal(t, int32(0), userIndex)
	assert.Equal(t, int32(0), itemIndex)
	assert.Equal(t, float32(4), rating)
	// sparse rows are sorted by index
	assert.Equal(t, []Entry{{0, 4}, {1, 3}}, set.UserRatings[0])
	assert.Equal(t, []Entry{{0, 4}, {1, 5}}, set.ItemRatings[0])
}

func TestContains(t *testing.T) {
	set := newTestDataset()
	assert.True(t, set.Contains(0, 0))
	assert.True(t, set.Contains(1, 2))
	assert.False(t, set.Contains(0, 2))
	assert.False(t, set.Contains(2, 0))
}

func TestMeans(t *testing.T) {
	set := newTestDataset()
	assert.InDelta(t, 3, set.GlobalMean(), 1e-6)
	assert.InDelta(t, 3.5, set.UserMean(0), 1e-6)
	assert.InDelta(t, 4.5, set.ItemMean(0), 1e-6)
	// unknown rows fall back to the global mean
	assert.InDelta(t, 3, set.UserMean(base.NotID), 1e-6)
	assert.InDelta(t, 3, set.ItemMean(base.NotID), 1e-6)
}

func TestSubSet(t *testing.T) {
	set := newTestDataset()
	subset := set.SubSet([]int{0, 4})
	assert.Equal(t, 2, subset.Count())
	// indices are shared with the parent
	assert.Equal(t, set.UserCount(), subset.UserCount())
	assert.Equal(t, set.ItemCount(), subset.ItemCount())
	assert.True(t, subset.Contains(0, 0))
	assert.False(t, subset.Contains(0, 1))
}

func TestSplit(t *testing.T) {
	interactions := make([]merge.Interaction, 0, 31)
	// 3 users with 10 ratings each, 1 user with a single rating
	for user := int64(1); user <= 3; user++ {
		for movie := int64(1); movie <= 10; movie++ {
			interactions = append(interactions, merge.Interaction{
				UserID: user, MovieID: movie, Rating: float32(movie%5) + 0.5,
			})
		}
	}
	interactions = append(interactions, merge.Interaction{UserID: 4, MovieID: 1, Rating: 3})
	set := New(interactions, testScale)
	train, test := set.Split(0.2, 0)
	assert.Equal(t, set.Count(), train.Count()+test.Count())
	// stratified: two held-out ratings per ten-rating user
	assert.Equal(t, 6, test.Count())
	for userIndex := int32(0); userIndex < 3; userIndex++ {
		assert.Len(t, test.UserRatings[userIndex], 2)
		assert.Len(t, train.UserRatings[userIndex], 8)
	}
	// single-rating users stay entirely in train
	singleUser := set.UserIndex.ToNumber(4)
	assert.Len(t, train.UserRatings[singleUser], 1)
	assert.Empty(t, test.UserRatings[singleUser])
	// train and test are disjoint
	for i := 0; i < test.Count(); i++ {
		userIndex, itemIndex, _ := test.Get(i)
		assert.False(t, train.Contains(userIndex, itemIndex))
	}
}

func TestSplit_Seeded(t *testing.T) {
	set := newTestDataset()
	trainA, testA := set.Split(0.3, 42)
	trainB, testB := set.Split(0.3, 42)
	assert.Equal(t, trainA.Ratings, trainB.Ratings)
	assert.Equal(t, testA.Ratings, testB.Ratings)
	assert.Equal(t, trainA.Users, trainB.Users)
	assert.Equal(t, trainA.Items, trainB.Items)
}

func TestSplit_SharedIndices(t *testing.T) {
	set := newTestDataset()
	train, test := set.Split(0.4, 1)
	assert.Same(t, set.UserIndex, train.UserIndex)
	assert.Same(t, set.UserIndex, test.UserIndex)
	assert.Same(t, set.ItemIndex, train.ItemIndex)
	assert.Same(t, set.ItemIndex, test.ItemIndex)
}
