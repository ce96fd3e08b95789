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

// Package dataset converts the tidy interaction table into a sparse
// user-item rating matrix. Missing entries are absent, never a sentinel
// value: a dense representation would fabricate zero ratings and bias both
// gradients and similarities.
package dataset

import (
	"sort"

	"go.uber.org/zap"

	"github.com/reelrec-io/reelrec/base"
	"github.com/reelrec-io/reelrec/base/log"
	"github.com/reelrec-io/reelrec/merge"
)

// Entry is one observed rating inside a sparse user or item row.
type Entry struct {
	Index  int32 // dense index of the other side
	Rating float32
}

// Dataset is the sparse rating matrix with dense user and item indices.
type Dataset struct {
	UserIndex *base.Index
	ItemIndex *base.Index
	// observed (user, item, rating) triples
	Users   []int32
	Items   []int32
	Ratings []float32
	// sparse rows, sorted by dense index
	UserRatings [][]Entry
	ItemRatings [][]Entry
	// rating bounds carried for prediction clipping
	Scale merge.ScaleBounds

	lookup map[uint64]float32
	sum    float64
}

func packKey(userIndex, itemIndex int32) uint64 {
	return uint64(uint32(userIndex))<<32 | uint64(uint32(itemIndex))
}

// New builds a Dataset from deduplicated interactions. Dense indices are
// assigned in order of first appearance, so the same table always builds the
// same matrix.
func New(interactions []merge.Interaction, scale merge.ScaleBounds) *Dataset {
	set := &Dataset{
		UserIndex: base.NewMapIndex(),
		ItemIndex: base.NewMapIndex(),
		Users:     make([]int32, 0, len(interactions)),
		Items:     make([]int32, 0, len(interactions)),
		Ratings:   make([]float32, 0, len(interactions)),
		Scale:     scale,
		lookup:    make(map[uint64]float32, len(interactions)),
	}
	for _, interaction := range interactions {
		set.add(interaction.UserID, interaction.MovieID, interaction.Rating)
	}
	set.sortRatings()
	log.Logger().Info("built rating matrix",
		zap.Int("ratings", set.Count()),
		zap.Int("users", set.UserCount()),
		zap.Int("items", set.ItemCount()))
	return set
}

func (set *Dataset) add(userID, itemID int64, rating float32) {
	set.UserIndex.Add(userID)
	set.ItemIndex.Add(itemID)
	userIndex := set.UserIndex.ToNumber(userID)
	itemIndex := set.ItemIndex.ToNumber(itemID)
	set.Users = append(set.Users, userIndex)
	set.Items = append(set.Items, itemIndex)
	set.Ratings = append(set.Ratings, rating)
	for int(userIndex) >= len(set.UserRatings) {
		set.UserRatings = append(set.UserRatings, nil)
	}
	for int(itemIndex) >= len(set.ItemRatings) {
		set.ItemRatings = append(set.ItemRatings, nil)
	}
	set.UserRatings[userIndex] = append(set.UserRatings[userIndex], Entry{itemIndex, rating})
	set.ItemRatings[itemIndex] = append(set.ItemRatings[itemIndex], Entry{userIndex, rating})
	set.lookup[packKey(userIndex, itemIndex)] = rating
	set.sum += float64(rating)
}

func (set *Dataset) sortRatings() {
	for _, row := range set.UserRatings {
		sort.Slice(row, func(i, j int) bool { return row[i].Index < row[j].Index })
	}
	for _, row := range set.ItemRatings {
		sort.Slice(row, func(i, j int) bool { return row[i].Index < row[j].Index })
	}
}

// Count returns the number of observed ratings.
func (set *Dataset) Count() int {
	return len(set.Ratings)
}

// UserCount returns the number of distinct users.
func (set *Dataset) UserCount() int {
	return int(set.UserIndex.Len())
}

// ItemCount returns the number of distinct items.
func (set *Dataset) ItemCount() int {
	return int(set.ItemIndex.Len())
}

// Get returns the i-th triple as <user index, item index, rating>.
func (set *Dataset) Get(i int) (int32, int32, float32) {
	return set.Users[i], set.Items[i], set.Ratings[i]
}

// Contains reports in O(1) whether (user, item) has an observed rating.
func (set *Dataset) Contains(userIndex, itemIndex int32) bool {
	_, exist := set.lookup[packKey(userIndex, itemIndex)]
	return exist
}

// GlobalMean returns the mean of all observed ratings.
func (set *Dataset) GlobalMean() float32 {
	if len(set.Ratings) == 0 {
		return 0
	}
	return float32(set.sum / float64(len(set.Ratings)))
}

// UserMean returns the mean rating of a user, or the global mean for an
// unknown or empty user.
func (set *Dataset) UserMean(userIndex int32) float32 {
	if userIndex == base.NotID || int(userIndex) >= len(set.UserRatings) || len(set.UserRatings[userIndex]) == 0 {
		return set.GlobalMean()
	}
	sum := float32(0)
	for _, entry := range set.UserRatings[userIndex] {
		sum += entry.Rating
	}
	return sum / float32(len(set.UserRatings[userIndex]))
}

// ItemMean returns the mean rating of an item, or the global mean for an
// unknown or unrated item.
func (set *Dataset) ItemMean(itemIndex int32) float32 {
	if itemIndex == base.NotID || int(itemIndex) >= len(set.ItemRatings) || len(set.ItemRatings[itemIndex]) == 0 {
		return set.GlobalMean()
	}
	sum := float32(0)
	for _, entry := range set.ItemRatings[itemIndex] {
		sum += entry.Rating
	}
	return sum / float32(len(set.ItemRatings[itemIndex]))
}

// shares the indices of the parent so train and test agree on dense indices.
func (set *Dataset) emptyLike() *Dataset {
	return &Dataset{
		UserIndex:   set.UserIndex,
		ItemIndex:   set.ItemIndex,
		UserRatings: make([][]Entry, set.UserCount()),
		ItemRatings: make([][]Entry, set.ItemCount()),
		Scale:       set.Scale,
		lookup:      make(map[uint64]float32),
	}
}

func (set *Dataset) addDense(userIndex, itemIndex int32, rating float32) {
	set.Users = append(set.Users, userIndex)
	set.Items = append(set.Items, itemIndex)
	set.Ratings = append(set.Ratings, rating)
	set.UserRatings[userIndex] = append(set.UserRatings[userIndex], Entry{itemIndex, rating})
	set.ItemRatings[itemIndex] = append(set.ItemRatings[itemIndex], Entry{userIndex, rating})
	set.lookup[packKey(userIndex, itemIndex)] = rating
	set.sum += float64(rating)
}

// SubSet builds a dataset from a subset of triple positions, sharing the
// parent's indices.
func (set *Dataset) SubSet(positions []int) *Dataset {
	subset := set.emptyLike()
	for _, position := range positions {
		subset.addDense(set.Users[position], set.Items[position], set.Ratings[position])
	}
	subset.sortRatings()
	return subset
}

// Split holds out a fraction of ratings as the test set, stratified by user:
// each user's held-out count is floor(fraction * n) capped at n-1, so every
// user keeps at least one training rating and single-rating users stay
// entirely in train. The split is seeded and reproducible.
func (set *Dataset) Split(testFraction float64, seed int64) (train, test *Dataset) {
	train, test = set.emptyLike(), set.emptyLike()
	// triple positions per user
	positions := make([][]int, set.UserCount())
	for i, userIndex := range set.Users {
		positions[userIndex] = append(positions[userIndex], i)
	}
	rng := base.NewRandomGenerator(seed)
	for userIndex := 0; userIndex < set.UserCount(); userIndex++ {
		userPositions := positions[userIndex]
		rng.Shuffle(len(userPositions), func(i, j int) {
			userPositions[i], userPositions[j] = userPositions[j], userPositions[i]
		})
		testCount := int(testFraction * float64(len(userPositions)))
		if testCount > len(userPositions)-1 {
			testCount = len(userPositions) - 1
		}
		for i, position := range userPositions {
			if i < testCount {
				test.addDense(set.Users[position], set.Items[position], set.Ratings[position])
			} else {
				train.addDense(set.Users[position], set.Items[position], set.Ratings[position])
			}
		}
	}
	train.sortRatings()
	test.sortRatings()
	log.Logger().Info("split dataset",
		zap.Float64("test_fraction", testFraction),
		zap.Int64("seed", seed),
		zap.Int("train_size", train.Count()),
		zap.Int("test_size", test.Count()))
	return
}
