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
	"math"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/reelrec-io/reelrec/base"
	"github.com/reelrec-io/reelrec/base/log"
	"github.com/reelrec-io/reelrec/dataset"
	"github.com/reelrec-io/reelrec/merge"
)

// Metrics is the held-out accuracy of one model.
type Metrics struct {
	RMSE          float32
	MAE           float32
	BenchmarkCorr float32 // Pearson correlation with the external benchmark
	ColdStart     int     // test predictions served by a fallback
}

// Report maps model names to their evaluation metrics.
type Report map[string]Metrics

// RMSE is the root mean square error between predictions and truths.
func RMSE(predictions, truths []float32) float32 {
	sum := float32(0)
	for i := range predictions {
		diff := predictions[i] - truths[i]
		sum += diff * diff
	}
	return math32.Sqrt(sum / float32(len(predictions)))
}

// MAE is the mean absolute error between predictions and truths.
func MAE(predictions, truths []float32) float32 {
	sum := float32(0)
	for i := range predictions {
		sum += math32.Abs(predictions[i] - truths[i])
	}
	return sum / float32(len(predictions))
}

// EvaluateRegression scores a fitted model on a held-out set. Used inside
// training loops, so it runs sequentially and skips the benchmark.
func EvaluateRegression(m Model, testSet *dataset.Dataset) Score {
	if testSet.Count() == 0 {
		return Score{}
	}
	predictions := make([]float32, testSet.Count())
	for i := 0; i < testSet.Count(); i++ {
		userIndex, itemIndex, _ := testSet.Get(i)
		prediction := m.Predict(testSet.UserIndex.ToID(userIndex), testSet.ItemIndex.ToID(itemIndex))
		predictions[i] = prediction.Rating
	}
	return Score{
		RMSE: RMSE(predictions, testSet.Ratings),
		MAE:  MAE(predictions, testSet.Ratings),
	}
}

// Evaluate scores fitted models on the test set and correlates their
// predictions with the external benchmark. Predictions are read-only, so the
// test set is scored in parallel.
func Evaluate(models map[string]Model, testSet *dataset.Dataset, benchmark map[int64]merge.BenchmarkScore, jobs int) (Report, error) {
	report := make(Report, len(models))
	for name, m := range models {
		if m.Invalid() {
			return nil, errors.Errorf("model %v is not fitted", name)
		}
		predictions := make([]Prediction, testSet.Count())
		if err := base.Parallel(testSet.Count(), jobs, func(_, i int) error {
			userIndex, itemIndex, _ := testSet.Get(i)
			predictions[i] = m.Predict(testSet.UserIndex.ToID(userIndex), testSet.ItemIndex.ToID(itemIndex))
			return nil
		}); err != nil {
			return nil, errors.Trace(err)
		}
		ratings := make([]float32, len(predictions))
		coldStart := 0
		for i, prediction := range predictions {
			ratings[i] = prediction.Rating
			if prediction.ColdStart {
				coldStart++
			}
		}
		metrics := Metrics{
			RMSE:          RMSE(ratings, testSet.Ratings),
			MAE:           MAE(ratings, testSet.Ratings),
			BenchmarkCorr: benchmarkCorrelation(testSet, ratings, benchmark),
			ColdStart:     coldStart,
		}
		report[name] = metrics
		log.Logger().Info("evaluated model",
			zap.String("model", name),
			zap.Float32("rmse", metrics.RMSE),
			zap.Float32("mae", metrics.MAE),
			zap.Float32("benchmark_corr", metrics.BenchmarkCorr),
			zap.Int("cold_start", metrics.ColdStart))
	}
	return report, nil
}

// benchmarkCorrelation is the Pearson correlation between the model's mean
// predicted rating per item and the external benchmark score, over items
// present in both. Fewer than two overlapping items yield zero, since a
// correlation over them is undefined.
func benchmarkCorrelation(testSet *dataset.Dataset, predictions []float32, benchmark map[int64]merge.BenchmarkScore) float32 {
	sums := make(map[int32]float64)
	counts := make(map[int32]int)
	for i := range predictions {
		_, itemIndex, _ := testSet.Get(i)
		sums[itemIndex] += float64(predictions[i])
		counts[itemIndex]++
	}
	var predicted, external []float64
	for itemIndex, sum := range sums {
		score, exist := benchmark[testSet.ItemIndex.ToID(itemIndex)]
		if !exist {
			continue
		}
		predicted = append(predicted, sum/float64(counts[itemIndex]))
		external = append(external, float64(score.Rating))
	}
	if len(predicted) < 2 {
		return 0
	}
	corr := stat.Correlation(predicted, external, nil)
	if math.IsNaN(corr) {
		// constant predictions have no defined correlation
		return 0
	}
	return float32(corr)
}
