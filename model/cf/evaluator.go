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

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/gs-dxdy/implicit/common/floats"
	"github.com/gs-dxdy/implicit/common/parallel"
	"github.com/gs-dxdy/implicit/sparse"
)

/* Evaluate Item Ranking */

// Metric is used by evaluators in personalized ranking tasks.
type Metric func(targetSet mapset.Set[int32], rankList []int32) float32

// Evaluate measures a fitted model in top-n tasks by a train/test holdout.
// For every user with at least one held-out item the model recommends topK
// items over the training rows, so training items never count as hits, and
// each metric is averaged over those users.
func Evaluate(estimator Recommender, trainUserItems, testUserItems *sparse.Matrix, topK, nJobs int, scorers ...Metric) ([]float32, error) {
	return evaluate(estimator, trainUserItems, testUserItems, topK, nJobs, nil, scorers...)
}

func evaluate(estimator Recommender, trainUserItems, testUserItems *sparse.Matrix, topK, nJobs int,
	bar *progressbar.ProgressBar, scorers ...Metric) ([]float32, error) {
	if trainUserItems.Rows() != testUserItems.Rows() {
		return nil, errors.NotValidf("train set with %d rows against test set with %d rows",
			trainUserItems.Rows(), testUserItems.Rows())
	}
	if nJobs < 1 {
		nJobs = 1
	}
	partSum := make([][]float32, nJobs)
	partCount := make([]float32, nJobs)
	for i := 0; i < nJobs; i++ {
		partSum[i] = make([]float32, len(scorers))
	}
	err := parallel.Parallel(context.Background(), trainUserItems.Rows(), nJobs, func(workerId, userIndex int) error {
		if bar != nil {
			defer func() { _ = bar.Add(1) }()
		}
		targetIndices, _ := testUserItems.Row(userIndex)
		if len(targetIndices) == 0 {
			return nil
		}
		targetSet := mapset.NewSet[int32](targetIndices...)
		rankList, _, err := estimator.Recommend(int32(userIndex), trainUserItems, topK, nil)
		if err != nil {
			return errors.Trace(err)
		}
		partCount[workerId]++
		for i, metric := range scorers {
			partSum[workerId][i] += metric(targetSet, rankList)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	sum := make([]float32, len(scorers))
	for i := 0; i < nJobs; i++ {
		floats.Add(sum, partSum[i])
	}
	count := floats.Sum(partCount)
	if count > 0 {
		floats.MulConst(sum, 1/count)
	}
	return sum, nil
}

// PrecisionAtK reports the mean precision of topK recommendations over users
// with held-out items.
func PrecisionAtK(estimator Recommender, trainUserItems, testUserItems *sparse.Matrix, topK, nJobs int, showProgress bool) (float32, error) {
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(trainUserItems.Rows()), "precision")
		defer func() { _ = bar.Finish() }()
	}
	scores, err := evaluate(estimator, trainUserItems, testUserItems, topK, nJobs, bar, Precision)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return scores[0], nil
}

// NDCG means Normalized Discounted Cumulative Gain.
func NDCG(targetSet mapset.Set[int32], rankList []int32) float32 {
	if targetSet.Cardinality() == 0 || len(rankList) == 0 {
		return 0
	}
	// IDCG = \sum^{|REL|}_{i=1} \frac {1} {\log_2(i+1)}
	idcg := float32(0)
	for i := 0; i < targetSet.Cardinality() && i < len(rankList); i++ {
		idcg += 1.0 / math32.Log2(float32(i)+2.0)
	}
	// DCG = \sum^{N}_{i=1} \frac {2^{rel_i}-1} {\log_2(i+1)}
	dcg := float32(0)
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			dcg += 1.0 / math32.Log2(float32(i)+2.0)
		}
	}
	return dcg / idcg
}

// Precision is the fraction of relevant items among the recommended items.
//
//	\frac{|relevant documents| \cap |retrieved documents|} {|{retrieved documents}|}
func Precision(targetSet mapset.Set[int32], rankList []int32) float32 {
	if len(rankList) == 0 {
		return 0
	}
	hit := float32(0)
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return hit / float32(len(rankList))
}

// Recall is the fraction of relevant items that have been recommended over
// the total amount of relevant items.
//
//	\frac{|relevant documents| \cap |retrieved documents|} {|{relevant documents}|}
func Recall(targetSet mapset.Set[int32], rankList []int32) float32 {
	if targetSet.Cardinality() == 0 {
		return 0
	}
	hit := 0
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return float32(hit) / float32(targetSet.Cardinality())
}

// HR means Hit Ratio.
func HR(targetSet mapset.Set[int32], rankList []int32) float32 {
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1
		}
	}
	return 0
}

// MRR means Mean Reciprocal Rank: the multiplicative inverse of the rank of
// the first hit.
func MRR(targetSet mapset.Set[int32], rankList []int32) float32 {
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1 / float32(i+1)
		}
	}
	return 0
}
