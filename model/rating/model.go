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

// Package rating implements the rating-prediction models: matrix
// factorization trained by SGD and neighborhood-based KNN.
package rating

import (
	"github.com/juju/errors"

	"github.com/reelrec-io/reelrec/dataset"
	"github.com/reelrec-io/reelrec/merge"
	"github.com/reelrec-io/reelrec/model"
)

// ErrInsufficientData reports that the training set holds fewer ratings than
// the model needs. Training aborts; it is the caller's call what to do next.
var ErrInsufficientData = errors.New("insufficient data to train the model")

// Prediction is a predicted rating. ColdStart flags a low-confidence value
// produced by a documented fallback instead of the trained model; it is a
// result, never an error.
type Prediction struct {
	Rating    float32
	ColdStart bool
}

// Score is the validation accuracy of a fitted model.
type Score struct {
	RMSE float32
	MAE  float32
}

// BetterThan compares validation scores by RMSE.
func (score Score) BetterThan(other Score) bool {
	return score.RMSE < other.RMSE
}

// FitConfig is the runtime configuration of a training run, as opposed to
// the model's hyper-parameters.
type FitConfig struct {
	Jobs    int // parallelism for read-only work
	Verbose int // epochs between progress log lines
}

// NewFitConfig creates a default fit config.
func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// Model is the interface of rating-prediction models.
type Model interface {
	model.Model
	// Fit the model. The validation set drives early stopping and the
	// returned score; it is never trained on.
	Fit(trainSet, validSet *dataset.Dataset, config *FitConfig) (Score, error)
	// Predict the rating given by a user to an item, by sparse IDs. Works
	// for any pair; unseen users or items degrade to documented fallbacks
	// flagged as cold start.
	Predict(userID, itemID int64) Prediction
}

// checkTrainSet rejects training sets no model can learn from.
func checkTrainSet(trainSet *dataset.Dataset) error {
	if trainSet == nil || trainSet.Count() == 0 {
		return errors.Annotate(ErrInsufficientData, "empty train set")
	}
	if trainSet.UserCount() == 0 || trainSet.ItemCount() == 0 {
		return errors.Annotate(ErrInsufficientData, "no users or items")
	}
	return nil
}

// Clip crops a predicted rating onto the valid scale.
func Clip(rating float32, scale merge.ScaleBounds) float32 {
	if rating < scale.Min {
		return scale.Min
	}
	if rating > scale.Max {
		return scale.Max
	}
	return rating
}

// snapshotManager keeps the weights of the best epoch so early stopping can
// restore them when validation stops improving.
type snapshotManager struct {
	BestScore   Score
	BestWeights []interface{}
	valid       bool
}

func (sm *snapshotManager) AddSnapshot(score Score, weights ...interface{}) {
	if !sm.valid || score.BetterThan(sm.BestScore) {
		sm.valid = true
		sm.BestScore = score
		sm.BestWeights = make([]interface{}, len(weights))
		for i, weight := range weights {
			switch w := weight.(type) {
			case [][]float32:
				sm.BestWeights[i] = cloneMatrix(w)
			case []float32:
				sm.BestWeights[i] = cloneVector(w)
			case float32:
				sm.BestWeights[i] = w
			default:
				panic("unsupported weight type")
			}
		}
	}
}

func cloneVector(v []float32) []float32 {
	cloned := make([]float32, len(v))
	copy(cloned, v)
	return cloned
}

func cloneMatrix(m [][]float32) [][]float32 {
	cloned := make([][]float32, len(m))
	for i := range m {
		cloned[i] = cloneVector(m[i])
	}
	return cloned
}
