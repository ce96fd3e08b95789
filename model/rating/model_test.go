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

package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reelrec-io/reelrec/dataset"
	"github.com/reelrec-io/reelrec/merge"
	"github.com/reelrec-io/reelrec/model"
)

var testScale = merge.ScaleBounds{Min: 0.5, Max: 5}

type triple struct {
	user   int64
	item   int64
	rating float32
}

func newTestSet(triples []triple) *dataset.Dataset {
	interactions := make([]merge.Interaction, len(triples))
	for i, t := range triples {
		interactions[i] = merge.Interaction{UserID: t.user, MovieID: t.item, Rating: t.rating}
	}
	return dataset.New(interactions, testScale)
}

// mockModel predicts through an injected function. Used to test the
// evaluator and the hyper-parameter search without a real training loop.
type mockModel struct {
	model.BaseModel
	predict  func(userID, itemID int64) Prediction
	score    func(params model.Params) Score
	unfitted bool
}

func (m *mockModel) GetParamsGrid() model.ParamsGrid { return nil }

func (m *mockModel) Clear() {}

func (m *mockModel) Invalid() bool { return m.unfitted }

func (m *mockModel) Fit(_, _ *dataset.Dataset, _ *FitConfig) (Score, error) {
	if m.score == nil {
		return Score{}, nil
	}
	return m.score(m.Params), nil
}

func (m *mockModel) Predict(userID, itemID int64) Prediction {
	return m.predict(userID, itemID)
}

func TestClip(t *testing.T) {
	assert.Equal(t, float32(0.5), Clip(-1, testScale))
	assert.Equal(t, float32(5), Clip(7, testScale))
	assert.Equal(t, float32(3.2), Clip(3.2, testScale))
}

func TestScore_BetterThan(t *testing.T) {
	assert.True(t, Score{RMSE: 0.9}.BetterThan(Score{RMSE: 1.0}))
	assert.False(t, Score{RMSE: 1.0}.BetterThan(Score{RMSE: 0.9}))
}

func TestFitConfig_LoadDefaultIfNil(t *testing.T) {
	var config *FitConfig
	loaded := config.LoadDefaultIfNil()
	assert.Equal(t, 1, loaded.Jobs)
	custom := NewFitConfig().SetJobs(4).SetVerbose(1)
	assert.Same(t, custom, custom.LoadDefaultIfNil())
	assert.Equal(t, 4, custom.Jobs)
}

func TestSnapshotManager(t *testing.T) {
	sm := snapshotManager{}
	weights := []float32{1, 2, 3}
	sm.AddSnapshot(Score{RMSE: 1.0}, weights)
	// later, worse snapshots are ignored
	weights[0] = 100
	sm.AddSnapshot(Score{RMSE: 2.0}, weights)
	assert.Equal(t, float32(1.0), sm.BestScore.RMSE)
	assert.Equal(t, []float32{1, 2, 3}, sm.BestWeights[0].([]float32))
	// better snapshots replace the best
	matrix := [][]float32{{1}, {2}}
	sm.AddSnapshot(Score{RMSE: 0.5}, matrix)
	matrix[0][0] = 100
	assert.Equal(t, float32(0.5), sm.BestScore.RMSE)
	assert.Equal(t, [][]float32{{1}, {2}}, sm.BestWeights[0].([][]float32))
}

func TestCheckTrainSet(t *testing.T) {
	assert.ErrorIs(t, checkTrainSet(nil), ErrInsufficientData)
	assert.ErrorIs(t, checkTrainSet(newTestSet(nil)), ErrInsufficientData)
	assert.NoError(t, checkTrainSet(newTestSet([]triple{{1, 1, 3}})))
}
