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

	"github.com/reelrec-io/reelrec/model"
)

// biasedTriples builds a fully observed matrix whose ratings follow a pure
// user-bias plus item-bias structure, which biased MF can fit exactly.
func biasedTriples() []triple {
	userBias := []float32{-1, -0.5, 0, 0.5, 1, 0.25}
	itemBias := []float32{-0.5, -0.25, 0, 0.25, 0.5}
	var triples []triple
	for u, bu := range userBias {
		for i, bi := range itemBias {
			triples = append(triples, triple{int64(u + 1), int64(i + 101), 3 + bu + bi})
		}
	}
	return triples
}

func TestSVD_Fit(t *testing.T) {
	trainSet := newTestSet(biasedTriples())
	svd := NewSVD(model.Params{
		model.NFactors:    4,
		model.NEpochs:     100,
		model.Lr:          0.02,
		model.Reg:         0.001,
		model.Patience:    100,
		model.RandomState: int64(42),
	})
	score, err := svd.Fit(trainSet, nil, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	assert.Less(t, score.RMSE, float32(0.25))
	assert.False(t, svd.Invalid())
	// a well-rated pair predicts close to its observed rating
	prediction := svd.Predict(5, 105)
	assert.False(t, prediction.ColdStart)
	assert.InDelta(t, 4.5, prediction.Rating, 0.5)
}

func TestSVD_ConstantRatings(t *testing.T) {
	var triples []triple
	for u := int64(1); u <= 5; u++ {
		for i := int64(101); i <= 104; i++ {
			triples = append(triples, triple{u, i, 3})
		}
	}
	trainSet := newTestSet(triples)
	// a single latent factor suffices when every cell holds the same rating
	svd := NewSVD(model.Params{
		model.NFactors:    1,
		model.NEpochs:     20,
		model.RandomState: int64(0),
	})
	score, err := svd.Fit(trainSet, nil, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	assert.Less(t, score.RMSE, float32(0.2))
	prediction := svd.Predict(1, 101)
	assert.InDelta(t, 3, prediction.Rating, 0.3)
}

func TestSVD_ColdStart(t *testing.T) {
	trainSet := newTestSet(biasedTriples())
	svd := NewSVD(model.Params{
		model.NEpochs:     10,
		model.RandomState: int64(1),
	})
	_, err := svd.Fit(trainSet, nil, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	// unknown user, known item
	prediction := svd.Predict(999, 101)
	assert.True(t, prediction.ColdStart)
	assert.GreaterOrEqual(t, prediction.Rating, testScale.Min)
	assert.LessOrEqual(t, prediction.Rating, testScale.Max)
	// known user, unknown item
	prediction = svd.Predict(1, 999)
	assert.True(t, prediction.ColdStart)
	// both unknown falls back to the global mean
	prediction = svd.Predict(999, 999)
	assert.True(t, prediction.ColdStart)
	assert.InDelta(t, trainSet.GlobalMean(), prediction.Rating, 1e-3)
}

func TestSVD_Deterministic(t *testing.T) {
	params := model.Params{
		model.NFactors:    8,
		model.NEpochs:     10,
		model.RandomState: int64(7),
	}
	trainSet := newTestSet(biasedTriples())
	a, b := NewSVD(params), NewSVD(params)
	scoreA, err := a.Fit(trainSet, nil, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	scoreB, err := b.Fit(trainSet, nil, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	assert.Equal(t, scoreA, scoreB)
	assert.Equal(t, a.UserFactor, b.UserFactor)
	assert.Equal(t, a.ItemFactor, b.ItemFactor)
	assert.Equal(t, a.Predict(3, 103), b.Predict(3, 103))
}

func TestSVD_InsufficientData(t *testing.T) {
	svd := NewSVD(nil)
	_, err := svd.Fit(newTestSet(nil), nil, NewFitConfig().SetVerbose(0))
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.True(t, svd.Invalid())
}

func TestSVD_Clear(t *testing.T) {
	trainSet := newTestSet(biasedTriples())
	svd := NewSVD(model.Params{model.NEpochs: 5, model.RandomState: int64(0)})
	_, err := svd.Fit(trainSet, nil, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	assert.False(t, svd.Invalid())
	svd.Clear()
	assert.True(t, svd.Invalid())
}
