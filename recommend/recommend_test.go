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

package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reelrec-io/reelrec/dataset"
	"github.com/reelrec-io/reelrec/merge"
	"github.com/reelrec-io/reelrec/model"
	"github.com/reelrec-io/reelrec/model/rating"
)

// stubModel predicts a fixed rating per movie.
type stubModel struct {
	model.BaseModel
	ratings  map[int64]float32
	unfitted bool
}

func (m *stubModel) GetParamsGrid() model.ParamsGrid { return nil }

func (m *stubModel) Clear() {}

func (m *stubModel) Invalid() bool { return m.unfitted }

func (m *stubModel) Fit(_, _ *dataset.Dataset, _ *rating.FitConfig) (rating.Score, error) {
	return rating.Score{}, nil
}

func (m *stubModel) Predict(_, itemID int64) rating.Prediction {
	if value, exist := m.ratings[itemID]; exist {
		return rating.Prediction{Rating: value}
	}
	return rating.Prediction{Rating: 3, ColdStart: true}
}

func newRatedSet() *dataset.Dataset {
	return dataset.New([]merge.Interaction{
		{UserID: 1, MovieID: 101, Rating: 4},
		{UserID: 1, MovieID: 102, Rating: 3},
		{UserID: 2, MovieID: 101, Rating: 5},
		{UserID: 2, MovieID: 103, Rating: 2},
	}, merge.ScaleBounds{Min: 0.5, Max: 5})
}

func TestTopN_ExcludesRated(t *testing.T) {
	rated := newRatedSet()
	m := &stubModel{ratings: map[int64]float32{101: 5, 102: 4, 103: 4.5}}
	recommender := NewRecommender(m, rated, nil)
	recommendations, err := recommender.TopN(1, rated.ItemIndex.GetIDs(), 10)
	assert.NoError(t, err)
	// user 1 rated 101 and 102, only 103 is left
	assert.Len(t, recommendations, 1)
	assert.Equal(t, int64(103), recommendations[0].MovieID)
	assert.Equal(t, float32(4.5), recommendations[0].Rating)
}

func TestTopN_RankedByRating(t *testing.T) {
	rated := newRatedSet()
	m := &stubModel{ratings: map[int64]float32{101: 5, 102: 4, 103: 4.5}}
	recommender := NewRecommender(m, rated, nil)
	// an unknown user has rated nothing, so every candidate qualifies
	recommendations, err := recommender.TopN(999, rated.ItemIndex.GetIDs(), 2)
	assert.NoError(t, err)
	assert.Len(t, recommendations, 2)
	assert.Equal(t, int64(101), recommendations[0].MovieID)
	assert.Equal(t, int64(103), recommendations[1].MovieID)
}

func TestTopN_TieBreaks(t *testing.T) {
	rated := newRatedSet()
	m := &stubModel{ratings: map[int64]float32{101: 3, 102: 3, 103: 3}}
	benchmark := map[int64]merge.BenchmarkScore{
		102: {MovieID: 102, Rating: 4},
		103: {MovieID: 103, Rating: 4.5},
	}
	recommender := NewRecommender(m, rated, benchmark)
	recommendations, err := recommender.TopN(999, rated.ItemIndex.GetIDs(), 3)
	assert.NoError(t, err)
	// equal predictions fall back to benchmark score, then to the lower ID
	assert.Equal(t, int64(103), recommendations[0].MovieID)
	assert.Equal(t, int64(102), recommendations[1].MovieID)
	assert.Equal(t, int64(101), recommendations[2].MovieID)

	noBenchmark := NewRecommender(m, rated, nil)
	recommendations, err = noBenchmark.TopN(999, rated.ItemIndex.GetIDs(), 3)
	assert.NoError(t, err)
	assert.Equal(t, int64(101), recommendations[0].MovieID)
	assert.Equal(t, int64(102), recommendations[1].MovieID)
	assert.Equal(t, int64(103), recommendations[2].MovieID)
}

func TestTopN_AllRated(t *testing.T) {
	rated := dataset.New([]merge.Interaction{
		{UserID: 1, MovieID: 101, Rating: 4},
		{UserID: 1, MovieID: 102, Rating: 3},
	}, merge.ScaleBounds{Min: 0.5, Max: 5})
	m := &stubModel{ratings: map[int64]float32{101: 5, 102: 4}}
	recommender := NewRecommender(m, rated, nil)
	recommendations, err := recommender.TopN(1, rated.ItemIndex.GetIDs(), 5)
	assert.NoError(t, err)
	assert.Empty(t, recommendations)
}

func TestTopN_ColdStartFlag(t *testing.T) {
	rated := newRatedSet()
	m := &stubModel{ratings: map[int64]float32{101: 5, 102: 4, 103: 4.5}}
	recommender := NewRecommender(m, rated, nil)
	candidates := append(rated.ItemIndex.GetIDs(), 999)
	recommendations, err := recommender.TopN(2, candidates, 10)
	assert.NoError(t, err)
	// movie 999 is unknown to the model and flagged
	flagged := map[int64]bool{}
	for _, recommendation := range recommendations {
		flagged[recommendation.MovieID] = recommendation.ColdStart
	}
	assert.False(t, flagged[102])
	assert.True(t, flagged[999])
}

func TestTopN_Errors(t *testing.T) {
	rated := newRatedSet()
	m := &stubModel{ratings: map[int64]float32{}}
	recommender := NewRecommender(m, rated, nil)
	_, err := recommender.TopN(1, rated.ItemIndex.GetIDs(), 0)
	assert.Error(t, err)
	_, err = recommender.TopN(1, rated.ItemIndex.GetIDs(), -5)
	assert.Error(t, err)
	unfitted := NewRecommender(&stubModel{unfitted: true}, rated, nil)
	_, err = unfitted.TopN(1, rated.ItemIndex.GetIDs(), 3)
	assert.Error(t, err)
}
