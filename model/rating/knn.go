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
	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/reelrec-io/reelrec/base"
	"github.com/reelrec-io/reelrec/base/log"
	"github.com/reelrec-io/reelrec/dataset"
	"github.com/reelrec-io/reelrec/merge"
	"github.com/reelrec-io/reelrec/model"
)

// KNN is the neighborhood model. The prediction for a user-based model is
//
//	\hat{r}_{ui} = \bar{r}_u + \frac{\sum_{v \in N_k(u,i)} sim(u,v) (r_{vi} - \bar{r}_v)}
//	                                {\sum_{v \in N_k(u,i)} |sim(u,v)|}
//
// and symmetric for an item-based model. Similarities are computed once at
// fit time over co-rated entries only; rows sharing fewer than MinOverlap
// entries get similarity zero. Neighborhood ties at equal similarity are
// broken toward the lower dense index, so predictions are deterministic.
//
// Hyper-parameters:
//
//	K          - number of neighbors       - 40
//	Similarity - "cosine" or "pearson"     - cosine
//	UserBased  - user-based vs item-based  - true
//	MinOverlap - minimum co-rated entries  - 1
type KNN struct {
	model.BaseModel
	// fitted state
	SimilarityMatrix [][]float32
	Means            []float32 // per-row mean rating on the based dimension
	UserIndex        *base.Index
	ItemIndex        *base.Index
	Scale            merge.ScaleBounds
	trainSet         *dataset.Dataset
	// hyper-parameters
	k          int
	similarity string
	userBased  bool
	minOverlap int
}

// NewKNN creates a KNN model.
func NewKNN(params model.Params) *KNN {
	knn := new(KNN)
	knn.SetParams(params)
	return knn
}

// SetParams sets hyper-parameters for the KNN model.
func (knn *KNN) SetParams(params model.Params) {
	knn.BaseModel.SetParams(params)
	knn.k = knn.Params.GetInt(model.K, 40)
	knn.similarity = knn.Params.GetString(model.Similarity, model.SimilarityCosine)
	knn.userBased = knn.Params.GetBool(model.UserBased, true)
	knn.minOverlap = knn.Params.GetInt(model.MinOverlap, 1)
}

// GetParamsGrid returns the candidate grid for hyper-parameter search.
func (knn *KNN) GetParamsGrid() model.ParamsGrid {
	return model.ParamsGrid{
		model.K:          {10, 20, 40, 80},
		model.Similarity: {model.SimilarityCosine, model.SimilarityPearson},
		model.MinOverlap: {1, 3, 5},
	}
}

// Clear drops the trained weights.
func (knn *KNN) Clear() {
	knn.SimilarityMatrix = nil
	knn.Means = nil
	knn.UserIndex = nil
	knn.ItemIndex = nil
	knn.trainSet = nil
}

// Invalid reports whether the model has no trained weights.
func (knn *KNN) Invalid() bool {
	return knn == nil || knn.trainSet == nil
}

// Fit the KNN model. Fitting precomputes row means and the full similarity
// matrix. Similarity rows are independent and computed in parallel; the
// result is identical for any number of jobs.
func (knn *KNN) Fit(trainSet, validSet *dataset.Dataset, config *FitConfig) (Score, error) {
	config = config.LoadDefaultIfNil()
	if err := checkTrainSet(trainSet); err != nil {
		return Score{}, errors.Trace(err)
	}
	if validSet == nil {
		validSet = trainSet
	}
	log.Logger().Info("fit KNN",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("valid_set_size", validSet.Count()),
		zap.Any("params", knn.GetParams()),
		zap.Any("config", config))
	knn.trainSet = trainSet
	knn.UserIndex = trainSet.UserIndex
	knn.ItemIndex = trainSet.ItemIndex
	knn.Scale = trainSet.Scale
	rows := trainSet.UserRatings
	if !knn.userBased {
		rows = trainSet.ItemRatings
	}
	knn.Means = make([]float32, len(rows))
	for i, row := range rows {
		knn.Means[i] = rowMean(row, trainSet.GlobalMean())
	}
	knn.SimilarityMatrix = make([][]float32, len(rows))
	if err := base.Parallel(len(rows), config.Jobs, func(_, i int) error {
		knn.SimilarityMatrix[i] = make([]float32, len(rows))
		for j := range rows {
			if i != j {
				knn.SimilarityMatrix[i][j] = knn.pairSimilarity(rows[i], rows[j], knn.Means[i], knn.Means[j])
			}
		}
		return nil
	}); err != nil {
		return Score{}, errors.Trace(err)
	}
	if !knn.anySimilarity() {
		knn.Clear()
		return Score{}, errors.Annotatef(ErrInsufficientData,
			"no pair of rows shares %d co-rated entries", knn.minOverlap)
	}
	score := EvaluateRegression(knn, validSet)
	log.Logger().Info("fit KNN complete",
		zap.Float32("rmse", score.RMSE),
		zap.Float32("mae", score.MAE))
	return score, nil
}

func (knn *KNN) anySimilarity() bool {
	for _, row := range knn.SimilarityMatrix {
		for _, sim := range row {
			if sim != 0 {
				return true
			}
		}
	}
	return false
}

func rowMean(row []dataset.Entry, fallback float32) float32 {
	if len(row) == 0 {
		return fallback
	}
	sum := float32(0)
	for _, entry := range row {
		sum += entry.Rating
	}
	return sum / float32(len(row))
}

// pairSimilarity computes the similarity of two sparse rows over their
// co-rated entries. Rows are sorted by index, so the intersection is a
// single linear merge.
func (knn *KNN) pairSimilarity(a, b []dataset.Entry, meanA, meanB float32) float32 {
	overlap, dot, normA, normB := 0, float32(0), float32(0), float32(0)
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i].Index < b[j].Index:
			i++
		case a[i].Index > b[j].Index:
			j++
		default:
			x, y := a[i].Rating, b[j].Rating
			if knn.similarity == model.SimilarityPearson {
				x -= meanA
				y -= meanB
			}
			dot += x * y
			normA += x * x
			normB += y * y
			overlap++
			i++
			j++
		}
	}
	if overlap < knn.minOverlap || normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math32.Sqrt(normA) * math32.Sqrt(normB))
}

// Predict the rating given by a user to an item. Missing neighborhoods fall
// back to row means (then the global mean) and are flagged as cold start.
func (knn *KNN) Predict(userID, itemID int64) Prediction {
	userIndex := knn.UserIndex.ToNumber(userID)
	itemIndex := knn.ItemIndex.ToNumber(itemID)
	rating, coldStart := knn.internalPredict(userIndex, itemIndex)
	return Prediction{
		Rating:    Clip(rating, knn.Scale),
		ColdStart: coldStart,
	}
}

func (knn *KNN) internalPredict(userIndex, itemIndex int32) (float32, bool) {
	targetIndex, otherIndex := userIndex, itemIndex
	if !knn.userBased {
		targetIndex, otherIndex = itemIndex, userIndex
	}
	if targetIndex == base.NotID && otherIndex == base.NotID {
		return knn.trainSet.GlobalMean(), true
	}
	if targetIndex == base.NotID {
		// only the rated side of the pair is known
		if knn.userBased {
			return knn.trainSet.ItemMean(itemIndex), true
		}
		return knn.trainSet.UserMean(userIndex), true
	}
	if otherIndex == base.NotID {
		return knn.Means[targetIndex], true
	}
	// candidate neighbors are the rows that rated the other side
	candidates := knn.trainSet.ItemRatings[itemIndex]
	if !knn.userBased {
		candidates = knn.trainSet.UserRatings[userIndex]
	}
	// top-k by similarity, lower index wins ties
	filter := base.NewTopKFilter[dataset.Entry](knn.k, func(a, b dataset.Entry) bool {
		simA := knn.SimilarityMatrix[targetIndex][a.Index]
		simB := knn.SimilarityMatrix[targetIndex][b.Index]
		if simA != simB {
			return simA < simB
		}
		return a.Index > b.Index
	})
	count := 0
	for _, candidate := range candidates {
		if candidate.Index != targetIndex && knn.SimilarityMatrix[targetIndex][candidate.Index] > 0 {
			filter.Push(candidate)
			count++
		}
	}
	if count == 0 {
		// no usable neighbor rated this item; its mean is the best remaining
		// signal, degrading to the global mean when it was never rated
		if knn.userBased {
			return knn.trainSet.ItemMean(itemIndex), true
		}
		return knn.Means[targetIndex], true
	}
	neighbors := filter.PopAll()
	weightedSum, weightSum := float32(0), float32(0)
	for _, neighbor := range neighbors {
		sim := knn.SimilarityMatrix[targetIndex][neighbor.Index]
		weightedSum += sim * (neighbor.Rating - knn.Means[neighbor.Index])
		weightSum += math32.Abs(sim)
	}
	return knn.Means[targetIndex] + weightedSum/weightSum, false
}
