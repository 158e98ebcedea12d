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

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/gs-dxdy/implicit/base"
	"github.com/gs-dxdy/implicit/base/log"
	"github.com/gs-dxdy/implicit/base/progress"
	"github.com/gs-dxdy/implicit/common/floats"
	"github.com/gs-dxdy/implicit/common/parallel"
	"github.com/gs-dxdy/implicit/dataset"
	"github.com/gs-dxdy/implicit/model"
	"github.com/gs-dxdy/implicit/sparse"
)

// BPR means Bayesian Personal Ranking, is a pairwise learning algorithm for matrix factorization
// model with implicit feedback. The pairwise ranking between item i and j for user u is estimated
// by:
//
//	p(i >_u j) = \sigma( p_u^T (q_i - q_j) )
//
// Hyper-parameters:
//
//	 Reg 		- The regularization parameter of the cost function that is
//				  optimized. Default is 0.01.
//	 Lr 		- The learning rate of SGD. Default is 0.05.
//	 NFactors	- The number of latent factors. Default is 16.
//	 NEpochs	- The number of iteration of the SGD procedure. Default is 100.
//	 InitMean	- The mean of initial random latent factors. Default is 0.
//	 InitStdDev	- The standard deviation of initial random latent factors. Default is 0.001.
type BPR struct {
	BaseMatrixFactorization
	// Hyper parameters
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
}

// NewBPR creates a BPR model.
func NewBPR(params model.Params) *BPR {
	bpr := new(BPR)
	bpr.SetParams(params)
	return bpr
}

// SetParams sets hyper-parameters of the BPR model.
func (bpr *BPR) SetParams(params model.Params) {
	bpr.BaseModel.SetParams(params)
	bpr.nFactors = bpr.Params.GetInt(model.NFactors, 16)
	bpr.nEpochs = bpr.Params.GetInt(model.NEpochs, 100)
	bpr.lr = bpr.Params.GetFloat32(model.Lr, 0.05)
	bpr.reg = bpr.Params.GetFloat32(model.Reg, 0.01)
	bpr.initMean = bpr.Params.GetFloat32(model.InitMean, 0)
	bpr.initStdDev = bpr.Params.GetFloat32(model.InitStdDev, 0.001)
}

func (bpr *BPR) initFactors(trainSet *dataset.Dataset) {
	bpr.UserFactor = bpr.GetRandomGenerator().NormalMatrix(trainSet.CountUsers(), bpr.nFactors, bpr.initMean, bpr.initStdDev)
	bpr.ItemFactor = bpr.GetRandomGenerator().NormalMatrix(trainSet.CountItems(), bpr.nFactors, bpr.initMean, bpr.initStdDev)
	bpr.init(trainSet)
}

// Fit the BPR model. Each epoch draws as many (user, positive, negative)
// triples as there are observed interactions. Interaction weights only decide
// membership in the positive set.
func (bpr *BPR) Fit(ctx context.Context, itemUsers *sparse.Matrix, config *FitConfig) error {
	config = config.LoadDefaultIfNil()
	trainSet := dataset.FromItemUsers(itemUsers)
	log.Logger().Info("fit bpr",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_feedback", trainSet.CountFeedback()),
		zap.Any("params", bpr.GetParams()),
		zap.Any("config", config))
	bpr.initFactors(trainSet)
	// A training triple needs a user with at least one liked item and at
	// least one unseen item, otherwise negative sampling has nothing to draw.
	trainable := false
	for _, feedback := range trainSet.GetUserFeedback() {
		if len(feedback) > 0 && len(feedback) < trainSet.CountItems() {
			trainable = true
			break
		}
	}
	if !trainable {
		bpr.finalize()
		return nil
	}
	// Create buffers
	temp := newMatrix32(config.Jobs, bpr.nFactors)
	userFactor := newMatrix32(config.Jobs, bpr.nFactors)
	positiveItemFactor := newMatrix32(config.Jobs, bpr.nFactors)
	negativeItemFactor := newMatrix32(config.Jobs, bpr.nFactors)
	rng := make([]base.RandomGenerator, config.Jobs)
	for i := 0; i < config.Jobs; i++ {
		rng[i] = base.NewRandomGenerator(bpr.GetRandomGenerator().Int63())
	}
	// Convert array to hashmap
	userFeedback := make([]mapset.Set[int32], trainSet.CountUsers())
	for u := range userFeedback {
		userFeedback[u] = mapset.NewSet[int32]()
		for _, i := range trainSet.GetUserFeedback()[u] {
			userFeedback[u].Add(i)
		}
	}
	// Training
	ctx, span := progress.Start(ctx, "BPR.Fit", bpr.nEpochs)
	for epoch := 1; epoch <= bpr.nEpochs; epoch++ {
		fitStart := time.Now()
		cost := make([]float32, config.Jobs)
		err := parallel.Parallel(ctx, trainSet.CountFeedback(), config.Jobs, func(workerId, _ int) error {
			// Select a user
			var userIndex int32
			var ratingCount int
			for {
				userIndex = rng[workerId].Int31n(int32(trainSet.CountUsers()))
				ratingCount = len(trainSet.GetUserFeedback()[userIndex])
				// a user who liked every item leaves no negative to sample
				if ratingCount > 0 && ratingCount < trainSet.CountItems() {
					break
				}
			}
			posIndex := trainSet.GetUserFeedback()[userIndex][rng[workerId].Intn(ratingCount)]
			// Select a negative sample
			negIndex := int32(-1)
			for {
				temp := rng[workerId].Int31n(int32(trainSet.CountItems()))
				if !userFeedback[userIndex].Contains(temp) {
					negIndex = temp
					break
				}
			}
			diff := bpr.internalPredict(userIndex, posIndex) - bpr.internalPredict(userIndex, negIndex)
			cost[workerId] += math32.Log1p(math32.Exp(-diff))
			grad := math32.Exp(-diff) / (1.0 + math32.Exp(-diff))
			// Pairwise update
			copy(userFactor[workerId], bpr.UserFactor[userIndex])
			copy(positiveItemFactor[workerId], bpr.ItemFactor[posIndex])
			copy(negativeItemFactor[workerId], bpr.ItemFactor[negIndex])
			// Update positive item latent factor: +w_u
			floats.MulConstTo(userFactor[workerId], grad, temp[workerId])
			floats.MulConstAdd(positiveItemFactor[workerId], -bpr.reg, temp[workerId])
			floats.MulConstAdd(temp[workerId], bpr.lr, bpr.ItemFactor[posIndex])
			// Update negative item latent factor: -w_u
			floats.MulConstTo(userFactor[workerId], -grad, temp[workerId])
			floats.MulConstAdd(negativeItemFactor[workerId], -bpr.reg, temp[workerId])
			floats.MulConstAdd(temp[workerId], bpr.lr, bpr.ItemFactor[negIndex])
			// Update user latent factor: h_i-h_j
			floats.SubTo(positiveItemFactor[workerId], negativeItemFactor[workerId], temp[workerId])
			floats.MulConst(temp[workerId], grad)
			floats.MulConstAdd(userFactor[workerId], -bpr.reg, temp[workerId])
			floats.MulConstAdd(temp[workerId], bpr.lr, bpr.UserFactor[userIndex])
			return nil
		})
		if err != nil {
			return errors.Trace(err)
		}
		if epoch%config.Verbose == 0 || epoch == bpr.nEpochs {
			log.Logger().Debug("fit bpr",
				zap.Int("epoch", epoch),
				zap.Int("n_epochs", bpr.nEpochs),
				zap.Float32("cost", floats.Sum(cost)),
				zap.String("fit_time", time.Since(fitStart).String()))
		}
		span.Add(1)
	}
	span.End()
	bpr.finalize()
	log.Logger().Info("fit bpr complete")
	return nil
}

// Recommend returns the top n items for a user by the inner product of latent
// factors.
func (bpr *BPR) Recommend(userIndex int32, userItems *sparse.Matrix, n int, opts *RecommendOptions) ([]int32, []float32, error) {
	return bpr.recommend(userIndex, userItems, n, opts, bpr.RecalculateUser)
}

// RecalculateUser is unsupported: the pairwise objective has no closed
// per-user subproblem to resolve against fixed item factors.
func (bpr *BPR) RecalculateUser(_ []int32, _ []float32) ([]float32, error) {
	return nil, errors.NotSupportedf("recalculate user by bpr")
}

// Marshal model into byte stream.
func (bpr *BPR) Marshal(w io.Writer) error {
	return errors.Trace(bpr.BaseMatrixFactorization.Marshal(w))
}

// Unmarshal model from byte stream.
func (bpr *BPR) Unmarshal(r io.Reader) error {
	if err := bpr.BaseMatrixFactorization.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	bpr.SetParams(bpr.Params)
	return nil
}

var _ Recommender = &BPR{}
