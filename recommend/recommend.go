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

// Package recommend turns a fitted rating model into ranked top-N movie
// lists per user.
package recommend

import (
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/reelrec-io/reelrec/base"
	"github.com/reelrec-io/reelrec/base/log"
	"github.com/reelrec-io/reelrec/dataset"
	"github.com/reelrec-io/reelrec/merge"
	"github.com/reelrec-io/reelrec/model/rating"
)

// Recommendation is one ranked movie for a user.
type Recommendation struct {
	MovieID   int64
	Rating    float32
	ColdStart bool
}

// Recommender ranks unrated movies for a user by predicted rating. Ties are
// broken by benchmark score, then by lower canonical ID, so the ranking is
// total and reproducible.
type Recommender struct {
	model     rating.Model
	rated     *dataset.Dataset
	benchmark map[int64]merge.BenchmarkScore
}

// NewRecommender creates a recommender over a fitted model. The dataset is
// the full rating matrix used to exclude movies the user has already rated.
func NewRecommender(m rating.Model, rated *dataset.Dataset, benchmark map[int64]merge.BenchmarkScore) *Recommender {
	return &Recommender{
		model:     m,
		rated:     rated,
		benchmark: benchmark,
	}
}

// TopN returns up to n candidate movies the user has not rated, best first.
// Fewer than n unrated candidates yield a shorter list; a user who rated
// everything gets an empty one.
func (r *Recommender) TopN(userID int64, candidates []int64, n int) ([]Recommendation, error) {
	if n <= 0 {
		return nil, errors.Errorf("n must be positive, got %d", n)
	}
	if r.model.Invalid() {
		return nil, errors.New("model is not fitted")
	}
	filter := base.NewTopKFilter[Recommendation](n, r.worse)
	userIndex := r.rated.UserIndex.ToNumber(userID)
	for _, movieID := range candidates {
		itemIndex := r.rated.ItemIndex.ToNumber(movieID)
		if userIndex != base.NotID && itemIndex != base.NotID && r.rated.Contains(userIndex, itemIndex) {
			continue
		}
		prediction := r.model.Predict(userID, movieID)
		filter.Push(Recommendation{
			MovieID:   movieID,
			Rating:    prediction.Rating,
			ColdStart: prediction.ColdStart,
		})
	}
	recommendations := filter.PopAll()
	log.Logger().Debug("recommended movies",
		zap.Int64("user_id", userID),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(recommendations)))
	return recommendations, nil
}

// worse orders recommendations: predicted rating descending, benchmark score
// descending, canonical ID ascending.
func (r *Recommender) worse(a, b Recommendation) bool {
	if a.Rating != b.Rating {
		return a.Rating < b.Rating
	}
	benchA, benchB := float32(0), float32(0)
	if score, exist := r.benchmark[a.MovieID]; exist {
		benchA = score.Rating
	}
	if score, exist := r.benchmark[b.MovieID]; exist {
		benchB = score.Rating
	}
	if benchA != benchB {
		return benchA < benchB
	}
	return a.MovieID > b.MovieID
}
