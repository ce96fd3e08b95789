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

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"

	"github.com/reelrec-io/reelrec/model"
)

// searchScore rewards Lr close to 0.005 and NFactors close to 20.
func searchScore(params model.Params) Score {
	lr := params.GetFloat32(model.Lr, 0)
	factors := params.GetInt(model.NFactors, 0)
	return Score{RMSE: math32.Abs(lr-0.005)*100 + math32.Abs(float32(factors)-20)/100}
}

func TestGridSearchCV(t *testing.T) {
	m := &mockModel{score: searchScore}
	trainSet := newTestSet([]triple{{1, 101, 3}})
	grid := model.ParamsGrid{
		model.Lr:       {float32(0.001), float32(0.005), float32(0.01)},
		model.NFactors: {10, 20},
	}
	result, err := GridSearchCV(m, trainSet, trainSet, grid, NewFitConfig())
	assert.NoError(t, err)
	assert.Len(t, result.Scores, 6)
	assert.Equal(t, float32(0.005), result.BestParams[model.Lr])
	assert.Equal(t, 20, result.BestParams[model.NFactors])
	assert.InDelta(t, 0, result.BestScore.RMSE, 1e-6)
}

func TestRandomSearchCV(t *testing.T) {
	m := &mockModel{score: searchScore}
	trainSet := newTestSet([]triple{{1, 101, 3}})
	grid := model.ParamsGrid{
		model.Lr:       {float32(0.001), float32(0.005), float32(0.01)},
		model.NFactors: {10, 20},
	}
	result, err := RandomSearchCV(m, trainSet, trainSet, grid, 4, 42, NewFitConfig())
	assert.NoError(t, err)
	assert.Len(t, result.Scores, 4)
	// every candidate came from the grid
	for _, params := range result.Params {
		assert.Contains(t, grid[model.Lr], params[model.Lr])
		assert.Contains(t, grid[model.NFactors], params[model.NFactors])
	}
}

func TestRandomSearchCV_FallsBackToGrid(t *testing.T) {
	m := &mockModel{score: searchScore}
	trainSet := newTestSet([]triple{{1, 101, 3}})
	grid := model.ParamsGrid{
		model.Lr: {float32(0.001), float32(0.005)},
	}
	result, err := RandomSearchCV(m, trainSet, trainSet, grid, 10, 42, NewFitConfig())
	assert.NoError(t, err)
	// the trial budget covers the whole grid, so it is searched exhaustively
	assert.Len(t, result.Scores, 2)
	assert.Equal(t, float32(0.005), result.BestParams[model.Lr])
}

func TestRandomSearchCV_Seeded(t *testing.T) {
	trainSet := newTestSet([]triple{{1, 101, 3}})
	grid := model.ParamsGrid{
		model.Lr:       {float32(0.001), float32(0.005), float32(0.01)},
		model.NFactors: {10, 20, 50},
	}
	a, err := RandomSearchCV(&mockModel{score: searchScore}, trainSet, trainSet, grid, 5, 7, NewFitConfig())
	assert.NoError(t, err)
	b, err := RandomSearchCV(&mockModel{score: searchScore}, trainSet, trainSet, grid, 5, 7, NewFitConfig())
	assert.NoError(t, err)
	assert.Equal(t, a.Params, b.Params)
	assert.Equal(t, a.BestScore, b.BestScore)
}
