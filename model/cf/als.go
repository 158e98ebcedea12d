// Copyright 2025 implicit Project Authors
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

package cf

import (
	"context"
	"io"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/gs-dxdy/implicit/base/log"
	"github.com/gs-dxdy/implicit/base/progress"
	"github.com/gs-dxdy/implicit/common/floats"
	"github.com/gs-dxdy/implicit/common/parallel"
	"github.com/gs-dxdy/implicit/dataset"
	"github.com/gs-dxdy/implicit/model"
	"github.com/gs-dxdy/implicit/sparse"
)

// recalculateEpochs is the number of coordinate descent sweeps used to derive
// a user factor from scratch. The subproblem is strictly quadratic so the
// sweeps converge to the same fixed point the full fit reaches.
const recalculateEpochs = 100

// ALS factorizes the interaction matrix by element-wise alternating least
// squares with implicit weighting. Observed entries are treated as positive
// signal with unit confidence, unobserved entries as weak negatives.
//
// Hyper-parameters:
//
//	 NFactors	- The number of latent factors. Default is 16.
//	 NEpochs	- The number of training epochs. Default is 50.
//	 Reg 		- The regularization parameter of the cost function that is
//				  optimized. Default is 0.06.
//	 Alpha		- The weight of unobserved entries. Default is 0.001.
//	 InitMean	- The mean of initial random latent factors. Default is 0.
//	 InitStdDev	- The standard deviation of initial random latent factors. Default is 0.1.
type ALS struct {
	BaseMatrixFactorization
	// Hyper parameters
	nFactors   int
	nEpochs    int
	reg        float32
	initMean   float32
	initStdDev float32
	weight     float32
	// S^q over trained items, kept for user factor recalculation.
	itemSquare [][]float32
}

// NewALS creates an eALS model.
func NewALS(params model.Params) *ALS {
	als := new(ALS)
	als.SetParams(params)
	return als
}

// SetParams sets hyper-parameters for the ALS model.
func (als *ALS) SetParams(params model.Params) {
	als.BaseModel.SetParams(params)
	als.nFactors = als.Params.GetInt(model.NFactors, 16)
	als.nEpochs = als.Params.GetInt(model.NEpochs, 50)
	als.initMean = als.Params.GetFloat32(model.InitMean, 0)
	als.initStdDev = als.Params.GetFloat32(model.InitStdDev, 0.1)
	als.reg = als.Params.GetFloat32(model.Reg, 0.06)
	als.weight = als.Params.GetFloat32(model.Alpha, 0.001)
}

func (als *ALS) Clear() {
	als.BaseMatrixFactorization.Clear()
	als.itemSquare = nil
}

func (als *ALS) initFactors(trainSet *dataset.Dataset) {
	als.UserFactor = als.GetRandomGenerator().NormalMatrix(trainSet.CountUsers(), als.nFactors, als.initMean, als.initStdDev)
	als.ItemFactor = als.GetRandomGenerator().NormalMatrix(trainSet.CountItems(), als.nFactors, als.initMean, als.initStdDev)
	als.init(trainSet)
}

// Fit the ALS model. Interaction weights are treated as binary signal: any
// nonzero entry marks a positive observation.
func (als *ALS) Fit(ctx context.Context, itemUsers *sparse.Matrix, config *FitConfig) error {
	config = config.LoadDefaultIfNil()
	trainSet := dataset.FromItemUsers(itemUsers)
	log.Logger().Info("fit als",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_feedback", trainSet.CountFeedback()),
		zap.Any("params", als.GetParams()),
		zap.Any("config", config))
	als.initFactors(trainSet)
	// Create temporary matrix
	s := newMatrix32(als.nFactors, als.nFactors)
	userPredictions := make([][]float32, config.Jobs)
	itemPredictions := make([][]float32, config.Jobs)
	userRes := make([][]float32, config.Jobs)
	itemRes := make([][]float32, config.Jobs)
	for i := 0; i < config.Jobs; i++ {
		userPredictions[i] = make([]float32, trainSet.CountItems())
		itemPredictions[i] = make([]float32, trainSet.CountUsers())
		userRes[i] = make([]float32, trainSet.CountItems())
		itemRes[i] = make([]float32, trainSet.CountUsers())
	}
	ctx, span := progress.Start(ctx, "ALS.Fit", als.nEpochs)
	for ep := 1; ep <= als.nEpochs; ep++ {
		fitStart := time.Now()
		// Update user factors
		// S^q <- \sum^N_{itemIndex=1} c_i q_i q_i^T
		floats.MatZero(s)
		for itemIndex := 0; itemIndex < trainSet.CountItems(); itemIndex++ {
			if len(trainSet.GetItemFeedback()[itemIndex]) > 0 {
				for i := 0; i < als.nFactors; i++ {
					for j := 0; j < als.nFactors; j++ {
						s[i][j] += als.ItemFactor[itemIndex][i] * als.ItemFactor[itemIndex][j]
					}
				}
			}
		}
		err := parallel.Parallel(ctx, trainSet.CountUsers(), config.Jobs, func(workerId, userIndex int) error {
			userFeedback := trainSet.GetUserFeedback()[userIndex]
			if len(userFeedback) == 0 {
				return nil
			}
			for _, i := range userFeedback {
				userPredictions[workerId][i] = als.internalPredict(int32(userIndex), i)
			}
			for f := 0; f < als.nFactors; f++ {
				// for itemIndex \in R_u do   \hat_{r}^f_{ui} <- \hat_{r}_{ui} - p_{uf}q_{if}
				for _, i := range userFeedback {
					userRes[workerId][i] = userPredictions[workerId][i] - als.UserFactor[userIndex][f]*als.ItemFactor[i][f]
				}
				// p_{uf} <-
				a, b, c := float32(0), float32(0), float32(0)
				for _, i := range userFeedback {
					a += (1 - (1-als.weight)*userRes[workerId][i]) * als.ItemFactor[i][f]
					c += (1 - als.weight) * als.ItemFactor[i][f] * als.ItemFactor[i][f]
				}
				for k := 0; k < als.nFactors; k++ {
					if k != f {
						b += als.weight * als.UserFactor[userIndex][k] * s[k][f]
					}
				}
				als.UserFactor[userIndex][f] = (a - b) / (c + als.weight*s[f][f] + als.reg)
				// for itemIndex \in R_u do   \hat_{r}_{ui} <- \hat_{r}^f_{ui} + p_{uf}q_{if}
				for _, i := range userFeedback {
					userPredictions[workerId][i] = userRes[workerId][i] + als.UserFactor[userIndex][f]*als.ItemFactor[i][f]
				}
			}
			return nil
		})
		if err != nil {
			return errors.Trace(err)
		}
		// Update item factors
		// S^p <- P^T P
		floats.MatZero(s)
		for userIndex := 0; userIndex < trainSet.CountUsers(); userIndex++ {
			if len(trainSet.GetUserFeedback()[userIndex]) > 0 {
				for i := 0; i < als.nFactors; i++ {
					for j := 0; j < als.nFactors; j++ {
						s[i][j] += als.UserFactor[userIndex][i] * als.UserFactor[userIndex][j]
					}
				}
			}
		}
		err = parallel.Parallel(ctx, trainSet.CountItems(), config.Jobs, func(workerId, itemIndex int) error {
			itemFeedback := trainSet.GetItemFeedback()[itemIndex]
			if len(itemFeedback) == 0 {
				return nil
			}
			for _, u := range itemFeedback {
				itemPredictions[workerId][u] = als.internalPredict(u, int32(itemIndex))
			}
			for f := 0; f < als.nFactors; f++ {
				for _, u := range itemFeedback {
					itemRes[workerId][u] = itemPredictions[workerId][u] - als.UserFactor[u][f]*als.ItemFactor[itemIndex][f]
				}
				// q_{if} <-
				a, b, c := float32(0), float32(0), float32(0)
				for _, u := range itemFeedback {
					a += (1 - (1-als.weight)*itemRes[workerId][u]) * als.UserFactor[u][f]
					c += (1 - als.weight) * als.UserFactor[u][f] * als.UserFactor[u][f]
				}
				for k := 0; k < als.nFactors; k++ {
					if k != f {
						b += als.weight * als.ItemFactor[itemIndex][k] * s[k][f]
					}
				}
				als.ItemFactor[itemIndex][f] = (a - b) / (c + als.weight*s[f][f] + als.reg)
				for _, u := range itemFeedback {
					itemPredictions[workerId][u] = itemRes[workerId][u] + als.UserFactor[u][f]*als.ItemFactor[itemIndex][f]
				}
			}
			return nil
		})
		if err != nil {
			return errors.Trace(err)
		}
		if ep%config.Verbose == 0 || ep == als.nEpochs {
			log.Logger().Debug("fit als",
				zap.Int("epoch", ep),
				zap.Int("n_epochs", als.nEpochs),
				zap.String("fit_time", time.Since(fitStart).String()))
		}
		span.Add(1)
	}
	span.End()
	als.computeItemSquare()
	// Resolve every user factor against the final item factors. The stored
	// vector then coincides with what RecalculateUser derives from the same
	// interaction row, instead of lagging half an epoch behind.
	err := parallel.Parallel(ctx, trainSet.CountUsers(), config.Jobs, func(_, userIndex int) error {
		userFeedback := trainSet.GetUserFeedback()[userIndex]
		if len(userFeedback) > 0 {
			copy(als.UserFactor[userIndex], als.solveUserFactor(userFeedback))
		}
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	als.finalize()
	log.Logger().Info("fit als complete")
	return nil
}

// finalizeWithSquare freezes the factors and caches S^q for RecalculateUser.
func (als *ALS) finalizeWithSquare() {
	als.computeItemSquare()
	als.finalize()
}

// computeItemSquare caches S^q over trained items for user factor recalculation.
func (als *ALS) computeItemSquare() {
	als.itemSquare = newMatrix32(als.nFactors, als.nFactors)
	for itemIndex := range als.ItemFactor {
		if als.ItemPredictable.Test(uint(itemIndex)) {
			for i := 0; i < als.nFactors; i++ {
				for j := 0; j < als.nFactors; j++ {
					als.itemSquare[i][j] += als.ItemFactor[itemIndex][i] * als.ItemFactor[itemIndex][j]
				}
			}
		}
	}
}

// Recommend returns the top n items for a user by the inner product of latent
// factors.
func (als *ALS) Recommend(userIndex int32, userItems *sparse.Matrix, n int, opts *RecommendOptions) ([]int32, []float32, error) {
	return als.recommend(userIndex, userItems, n, opts, als.RecalculateUser)
}

// RecalculateUser solves the user factor subproblem with item factors fixed,
// starting from zero. The result agrees with the factor a full fit stores for
// the same interaction row.
func (als *ALS) RecalculateUser(itemIndices []int32, _ []float32) ([]float32, error) {
	if err := als.checkFitted(); err != nil {
		return nil, errors.Trace(err)
	}
	for _, itemIndex := range itemIndices {
		if err := als.checkItemIndex(itemIndex); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return als.solveUserFactor(itemIndices), nil
}

// solveUserFactor runs coordinate descent on a single user subproblem. The
// subproblem is strictly convex, so the sweeps converge to its unique
// minimizer regardless of the starting point.
func (als *ALS) solveUserFactor(itemIndices []int32) []float32 {
	userFactor := make([]float32, als.nFactors)
	predictions := make([]float32, len(itemIndices))
	res := make([]float32, len(itemIndices))
	for ep := 0; ep < recalculateEpochs; ep++ {
		for f := 0; f < als.nFactors; f++ {
			for position, i := range itemIndices {
				res[position] = predictions[position] - userFactor[f]*als.ItemFactor[i][f]
			}
			a, b, c := float32(0), float32(0), float32(0)
			for position, i := range itemIndices {
				a += (1 - (1-als.weight)*res[position]) * als.ItemFactor[i][f]
				c += (1 - als.weight) * als.ItemFactor[i][f] * als.ItemFactor[i][f]
			}
			for k := 0; k < als.nFactors; k++ {
				if k != f {
					b += als.weight * userFactor[k] * als.itemSquare[k][f]
				}
			}
			userFactor[f] = (a - b) / (c + als.weight*als.itemSquare[f][f] + als.reg)
			for position, i := range itemIndices {
				predictions[position] = res[position] + userFactor[f]*als.ItemFactor[i][f]
			}
		}
	}
	return userFactor
}

// Marshal model into byte stream.
func (als *ALS) Marshal(w io.Writer) error {
	return errors.Trace(als.BaseMatrixFactorization.Marshal(w))
}

// Unmarshal model from byte stream.
func (als *ALS) Unmarshal(r io.Reader) error {
	if err := als.BaseMatrixFactorization.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	als.SetParams(als.Params)
	als.finalizeWithSquare()
	return nil
}

var _ Recommender = &ALS{}
