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
	"sort"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/reelrec-io/reelrec/base"
	"github.com/reelrec-io/reelrec/base/log"
	"github.com/reelrec-io/reelrec/dataset"
	"github.com/reelrec-io/reelrec/model"
)

// ParamsSearchResult is the output of hyper-parameter search.
type ParamsSearchResult struct {
	BestScore  Score
	BestParams model.Params
	BestIndex  int
	Scores     []Score
	Params     []model.Params
}

// AddScore compares a candidate against the best so far.
func (r *ParamsSearchResult) AddScore(params model.Params, score Score) {
	r.Scores = append(r.Scores, score)
	r.Params = append(r.Params, params.Copy())
	if len(r.Scores) == 1 || score.BetterThan(r.BestScore) {
		r.BestScore = score
		r.BestParams = params.Copy()
		r.BestIndex = len(r.Params) - 1
	}
}

// GridSearchCV exhaustively searches the parameter grid, refitting the
// estimator for every combination. Combinations are enumerated in a fixed
// depth-first order, so the search is reproducible.
func GridSearchCV(estimator Model, trainSet, validSet *dataset.Dataset, paramGrid model.ParamsGrid, config *FitConfig) (ParamsSearchResult, error) {
	paramNames := make([]model.ParamName, 0, len(paramGrid))
	for paramName := range paramGrid {
		paramNames = append(paramNames, paramName)
	}
	sortParamNames(paramNames)
	result := ParamsSearchResult{}
	var dfs func(deep int, params model.Params) error
	dfs = func(deep int, params model.Params) error {
		if deep == len(paramNames) {
			log.Logger().Info("grid search",
				zap.Int("trial", len(result.Scores)+1),
				zap.Any("params", params))
			estimator.Clear()
			estimator.SetParams(estimator.GetParams().Overwrite(params))
			score, err := estimator.Fit(trainSet, validSet, config)
			if err != nil {
				return errors.Trace(err)
			}
			result.AddScore(params, score)
			return nil
		}
		paramName := paramNames[deep]
		for _, paramValue := range paramGrid[paramName] {
			params[paramName] = paramValue
			if err := dfs(deep+1, params); err != nil {
				return errors.Trace(err)
			}
		}
		delete(params, paramName)
		return nil
	}
	if err := dfs(0, make(model.Params)); err != nil {
		return ParamsSearchResult{}, errors.Trace(err)
	}
	log.Logger().Info("grid search complete",
		zap.Float32("best_rmse", result.BestScore.RMSE),
		zap.Any("best_params", result.BestParams))
	return result, nil
}

// RandomSearchCV fits the estimator on numTrials parameter combinations drawn
// uniformly from the grid with a seeded generator.
func RandomSearchCV(estimator Model, trainSet, validSet *dataset.Dataset, paramGrid model.ParamsGrid, numTrials int, seed int64, config *FitConfig) (ParamsSearchResult, error) {
	// a grid smaller than the trial budget is cheaper to search exhaustively
	if paramGrid.NumCombinations() <= numTrials {
		return GridSearchCV(estimator, trainSet, validSet, paramGrid, config)
	}
	paramNames := make([]model.ParamName, 0, len(paramGrid))
	for paramName := range paramGrid {
		paramNames = append(paramNames, paramName)
	}
	sortParamNames(paramNames)
	rng := base.NewRandomGenerator(seed)
	result := ParamsSearchResult{}
	for trial := 1; trial <= numTrials; trial++ {
		params := make(model.Params)
		for _, paramName := range paramNames {
			values := paramGrid[paramName]
			params[paramName] = values[rng.Intn(len(values))]
		}
		log.Logger().Info("random search",
			zap.Int("trial", trial),
			zap.Any("params", params))
		estimator.Clear()
		estimator.SetParams(estimator.GetParams().Overwrite(params))
		score, err := estimator.Fit(trainSet, validSet, config)
		if err != nil {
			return ParamsSearchResult{}, errors.Trace(err)
		}
		result.AddScore(params, score)
	}
	log.Logger().Info("random search complete",
		zap.Float32("best_rmse", result.BestScore.RMSE),
		zap.Any("best_params", result.BestParams))
	return result, nil
}

func sortParamNames(names []model.ParamName) {
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
}
