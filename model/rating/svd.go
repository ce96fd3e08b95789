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
	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/reelrec-io/reelrec/base"
	"github.com/reelrec-io/reelrec/base/log"
	"github.com/reelrec-io/reelrec/dataset"
	"github.com/reelrec-io/reelrec/floats"
	"github.com/reelrec-io/reelrec/merge"
	"github.com/reelrec-io/reelrec/model"
)

// SVD is the biased matrix factorization model. The prediction is
//
//	\hat{r}_{ui} = \mu + b_u + b_i + q_i^T p_u
//
// trained by stochastic gradient descent on the squared error with L2
// regularization. Updates run sequentially in a seeded shuffled order, so a
// fixed RandomState reproduces the exact same weights.
//
// Hyper-parameters:
//
//	Lr         - learning rate             - 0.005
//	Reg        - regularization strength   - 0.02
//	NEpochs    - number of epochs          - 100
//	NFactors   - number of latent factors  - 50
//	Patience   - early-stopping patience   - 5
//	InitMean   - mean of initial factors   - 0
//	InitStdDev - stddev of initial factors - 0.1
type SVD struct {
	model.BaseModel
	// model weights
	UserFactor [][]float32
	ItemFactor [][]float32
	UserBias   []float32
	ItemBias   []float32
	GlobalMean float32
	// users and items seen at training time
	UserIndex       *base.Index
	ItemIndex       *base.Index
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	Scale           merge.ScaleBounds
	// hyper-parameters
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	patience   int
	initMean   float32
	initStdDev float32
}

// NewSVD creates a matrix factorization model.
func NewSVD(params model.Params) *SVD {
	svd := new(SVD)
	svd.SetParams(params)
	return svd
}

// SetParams sets hyper-parameters for the SVD model.
func (svd *SVD) SetParams(params model.Params) {
	svd.BaseModel.SetParams(params)
	svd.nFactors = svd.Params.GetInt(model.NFactors, 50)
	svd.nEpochs = svd.Params.GetInt(model.NEpochs, 100)
	svd.lr = svd.Params.GetFloat32(model.Lr, 0.005)
	svd.reg = svd.Params.GetFloat32(model.Reg, 0.02)
	svd.patience = svd.Params.GetInt(model.Patience, 5)
	svd.initMean = svd.Params.GetFloat32(model.InitMean, 0)
	svd.initStdDev = svd.Params.GetFloat32(model.InitStdDev, 0.1)
}

// GetParamsGrid returns the candidate grid for hyper-parameter search.
func (svd *SVD) GetParamsGrid() model.ParamsGrid {
	return model.ParamsGrid{
		model.NFactors: {10, 20, 50, 100},
		model.Lr:       {0.001, 0.005, 0.01},
		model.Reg:      {0.01, 0.02, 0.1},
	}
}

// Clear drops the trained weights.
func (svd *SVD) Clear() {
	svd.UserFactor = nil
	svd.ItemFactor = nil
	svd.UserBias = nil
	svd.ItemBias = nil
	svd.GlobalMean = 0
	svd.UserIndex = nil
	svd.ItemIndex = nil
	svd.UserPredictable = nil
	svd.ItemPredictable = nil
}

// Invalid reports whether the model has no trained weights.
func (svd *SVD) Invalid() bool {
	return svd == nil || svd.UserIndex == nil || svd.ItemIndex == nil
}

// Predict the rating given by a user to an item. Unknown users fall back to
// mu + b_i, unknown items to mu + b_u and fully unknown pairs to the global
// mean; every fallback is flagged as cold start.
func (svd *SVD) Predict(userID, itemID int64) Prediction {
	userIndex := svd.UserIndex.ToNumber(userID)
	itemIndex := svd.ItemIndex.ToNumber(itemID)
	if userIndex == base.NotID || !svd.UserPredictable.Test(uint(userIndex)) {
		log.Logger().Debug("unknown user", zap.Int64("user_id", userID))
		userIndex = base.NotID
	}
	if itemIndex == base.NotID || !svd.ItemPredictable.Test(uint(itemIndex)) {
		log.Logger().Debug("unknown item", zap.Int64("item_id", itemID))
		itemIndex = base.NotID
	}
	return Prediction{
		Rating:    Clip(svd.internalPredict(userIndex, itemIndex), svd.Scale),
		ColdStart: userIndex == base.NotID || itemIndex == base.NotID,
	}
}

func (svd *SVD) internalPredict(userIndex, itemIndex int32) float32 {
	ret := svd.GlobalMean
	if userIndex != base.NotID {
		ret += svd.UserBias[userIndex]
	}
	if itemIndex != base.NotID {
		ret += svd.ItemBias[itemIndex]
	}
	if userIndex != base.NotID && itemIndex != base.NotID {
		ret += floats.Dot(svd.UserFactor[userIndex], svd.ItemFactor[itemIndex])
	}
	return ret
}

// Fit the SVD model. Each epoch runs one seeded-shuffled SGD pass over the
// training set, then scores the validation set. Training stops early when
// validation RMSE has not improved for Patience consecutive epochs, and the
// weights of the best epoch are restored.
func (svd *SVD) Fit(trainSet, validSet *dataset.Dataset, config *FitConfig) (Score, error) {
	config = config.LoadDefaultIfNil()
	if err := checkTrainSet(trainSet); err != nil {
		return Score{}, errors.Trace(err)
	}
	if validSet == nil {
		validSet = trainSet
	}
	log.Logger().Info("fit SVD",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("valid_set_size", validSet.Count()),
		zap.Any("params", svd.GetParams()),
		zap.Any("config", config))
	svd.init(trainSet)
	rng := svd.GetRandomGenerator()
	snapshots := snapshotManager{}
	// temporary buffers
	userFactor := make([]float32, svd.nFactors)
	itemFactor := make([]float32, svd.nFactors)
	userStep := make([]float32, svd.nFactors)
	itemStep := make([]float32, svd.nFactors)
	badEpochs := 0
	for epoch := 1; epoch <= svd.nEpochs; epoch++ {
		cost := float32(0)
		for _, i := range rng.Perm(trainSet.Count()) {
			userIndex, itemIndex, rating := trainSet.Get(i)
			// e_{ui} = r_{ui} - \hat{r}_{ui}
			diff := rating - svd.internalPredict(userIndex, itemIndex)
			cost += diff * diff
			// b_u <- b_u + \gamma (e_{ui} - \lambda b_u)
			svd.UserBias[userIndex] += svd.lr * (diff - svd.reg*svd.UserBias[userIndex])
			// b_i <- b_i + \gamma (e_{ui} - \lambda b_i)
			svd.ItemBias[itemIndex] += svd.lr * (diff - svd.reg*svd.ItemBias[itemIndex])
			copy(userFactor, svd.UserFactor[userIndex])
			copy(itemFactor, svd.ItemFactor[itemIndex])
			// p_u <- p_u + \gamma (e_{ui} q_i - \lambda p_u)
			floats.MulConstTo(itemFactor, diff, userStep)
			floats.MulConstAddTo(userFactor, -svd.reg, userStep)
			floats.MulConstAddTo(userStep, svd.lr, svd.UserFactor[userIndex])
			// q_i <- q_i + \gamma (e_{ui} p_u - \lambda q_i)
			floats.MulConstTo(userFactor, diff, itemStep)
			floats.MulConstAddTo(itemFactor, -svd.reg, itemStep)
			floats.MulConstAddTo(itemStep, svd.lr, svd.ItemFactor[itemIndex])
		}
		score := EvaluateRegression(svd, validSet)
		if !snapshots.valid || score.BetterThan(snapshots.BestScore) {
			badEpochs = 0
		} else {
			badEpochs++
		}
		snapshots.AddSnapshot(score, svd.UserFactor, svd.ItemFactor, svd.UserBias, svd.ItemBias)
		if config.Verbose > 0 && epoch%config.Verbose == 0 {
			log.Logger().Info("fit SVD",
				zap.Int("epoch", epoch),
				zap.Float32("train_cost", cost/float32(trainSet.Count())),
				zap.Float32("valid_rmse", score.RMSE),
				zap.Float32("valid_mae", score.MAE))
		}
		if badEpochs >= svd.patience {
			log.Logger().Info("early stop",
				zap.Int("epoch", epoch),
				zap.Float32("best_rmse", snapshots.BestScore.RMSE))
			break
		}
	}
	svd.UserFactor = snapshots.BestWeights[0].([][]float32)
	svd.ItemFactor = snapshots.BestWeights[1].([][]float32)
	svd.UserBias = snapshots.BestWeights[2].([]float32)
	svd.ItemBias = snapshots.BestWeights[3].([]float32)
	log.Logger().Info("fit SVD complete",
		zap.Float32("rmse", snapshots.BestScore.RMSE),
		zap.Float32("mae", snapshots.BestScore.MAE))
	return snapshots.BestScore, nil
}

func (svd *SVD) init(trainSet *dataset.Dataset) {
	rng := svd.GetRandomGenerator()
	svd.UserIndex = trainSet.UserIndex
	svd.ItemIndex = trainSet.ItemIndex
	svd.GlobalMean = trainSet.GlobalMean()
	svd.UserBias = make([]float32, trainSet.UserCount())
	svd.ItemBias = make([]float32, trainSet.ItemCount())
	svd.UserFactor = rng.NormalMatrix(trainSet.UserCount(), svd.nFactors, svd.initMean, svd.initStdDev)
	svd.ItemFactor = rng.NormalMatrix(trainSet.ItemCount(), svd.nFactors, svd.initMean, svd.initStdDev)
	svd.UserPredictable = bitset.New(uint(trainSet.UserCount()))
	svd.ItemPredictable = bitset.New(uint(trainSet.ItemCount()))
	for userIndex, row := range trainSet.UserRatings {
		if len(row) > 0 {
			svd.UserPredictable.Set(uint(userIndex))
		}
	}
	for itemIndex, row := range trainSet.ItemRatings {
		if len(row) > 0 {
			svd.ItemPredictable.Set(uint(itemIndex))
		}
	}
	svd.Scale = trainSet.Scale
}
