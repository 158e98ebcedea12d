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
	"encoding/binary"
	"io"
	"time"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/gs-dxdy/implicit/base/encoding"
	"github.com/gs-dxdy/implicit/base/heap"
	"github.com/gs-dxdy/implicit/base/log"
	"github.com/gs-dxdy/implicit/base/progress"
	"github.com/gs-dxdy/implicit/common/parallel"
	"github.com/gs-dxdy/implicit/dataset"
	"github.com/gs-dxdy/implicit/model"
	"github.com/gs-dxdy/implicit/sparse"
)

// ItemKNN is a neighborhood model. Fit computes the cosine similarity between
// item interaction columns and keeps the K nearest neighbors of every item.
// Recommendation scores a candidate by the similarity-weighted sum over the
// user's liked items, so it needs no user factors: the interaction row is the
// whole user representation. User similarity is undefined for this family and
// reports errors.NotSupported.
//
// Hyper-parameters:
//
//	K - The number of neighbors kept per item. Default is 20.
type ItemKNN struct {
	model.BaseModel
	// Hyper parameters
	k int
	// Neighbors[i] and Similarities[i] hold the ids and cosine weights of the
	// nearest neighbors of item i, descending by weight. The item itself
	// appears first with weight 1 unless truncated away by K.
	Neighbors    [][]int32
	Similarities [][]float32
	nUsers       int
}

// NewItemKNN creates an item-to-item nearest neighbor model.
func NewItemKNN(params model.Params) *ItemKNN {
	knn := new(ItemKNN)
	knn.SetParams(params)
	return knn
}

// SetParams sets hyper-parameters of the ItemKNN model.
func (knn *ItemKNN) SetParams(params model.Params) {
	knn.BaseModel.SetParams(params)
	knn.k = knn.Params.GetInt(model.K, 20)
}

func (knn *ItemKNN) Clear() {
	knn.Neighbors = nil
	knn.Similarities = nil
	knn.nUsers = 0
}

func (knn *ItemKNN) Invalid() bool {
	return knn == nil || knn.Neighbors == nil
}

func (knn *ItemKNN) CountUsers() int {
	return knn.nUsers
}

func (knn *ItemKNN) CountItems() int {
	return len(knn.Neighbors)
}

func (knn *ItemKNN) checkFitted() error {
	if knn.Invalid() {
		return errors.NotValidf("operation on unfitted model")
	}
	return nil
}

func (knn *ItemKNN) checkItemIndex(itemIndex int32) error {
	if itemIndex < 0 || int(itemIndex) >= knn.CountItems() {
		return errors.NotValidf("item index %d out of %d items", itemIndex, knn.CountItems())
	}
	return nil
}

// Fit computes the truncated item-item cosine similarity matrix.
func (knn *ItemKNN) Fit(ctx context.Context, itemUsers *sparse.Matrix, config *FitConfig) error {
	config = config.LoadDefaultIfNil()
	trainSet := dataset.FromItemUsers(itemUsers)
	log.Logger().Info("fit item knn",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_feedback", trainSet.CountFeedback()),
		zap.Any("params", knn.GetParams()),
		zap.Any("config", config))
	fitStart := time.Now()
	knn.nUsers = trainSet.CountUsers()
	nItems := trainSet.CountItems()
	itemFeedback := trainSet.GetItemFeedback()
	itemWeights := trainSet.GetItemWeights()
	userFeedback := trainSet.GetUserFeedback()
	userWeights := trainSet.GetUserWeights()
	norms := make([]float32, nItems)
	for itemIndex := 0; itemIndex < nItems; itemIndex++ {
		var sum float32
		for _, w := range itemWeights[itemIndex] {
			sum += w * w
		}
		norms[itemIndex] = math32.Sqrt(sum)
	}
	knn.Neighbors = make([][]int32, nItems)
	knn.Similarities = make([][]float32, nItems)
	ctx, span := progress.Start(ctx, "ItemKNN.Fit", nItems)
	err := parallel.Parallel(ctx, nItems, config.Jobs, func(_, itemIndex int) error {
		defer span.Add(1)
		if norms[itemIndex] == 0 {
			knn.Neighbors[itemIndex] = []int32{}
			knn.Similarities[itemIndex] = []float32{}
			return nil
		}
		// Accumulate column inner products through shared users.
		products := make(map[int32]float32)
		for position, userIndex := range itemFeedback[itemIndex] {
			weight := itemWeights[itemIndex][position]
			for otherPosition, otherIndex := range userFeedback[userIndex] {
				products[otherIndex] += weight * userWeights[userIndex][otherPosition]
			}
		}
		filter := heap.NewTopKFilter[int32, float32](knn.k)
		for otherIndex, product := range products {
			if norms[otherIndex] > 0 {
				filter.Push(otherIndex, product/(norms[itemIndex]*norms[otherIndex]))
			}
		}
		knn.Neighbors[itemIndex], knn.Similarities[itemIndex] = filter.PopAll()
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	span.End()
	log.Logger().Info("fit item knn complete",
		zap.String("fit_time", time.Since(fitStart).String()))
	return nil
}

// Recommend returns the top n items for a user. A candidate scores the sum of
// its similarity to every liked item weighted by the interaction weight, and
// only candidates sharing a neighbor with the row are returned.
func (knn *ItemKNN) Recommend(userIndex int32, userItems *sparse.Matrix, n int, opts *RecommendOptions) ([]int32, []float32, error) {
	opts = opts.LoadDefaultIfNil()
	if err := knn.checkFitted(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if userIndex < 0 || int(userIndex) >= userItems.Rows() {
		return nil, nil, errors.NotValidf("user index %d out of %d rows", userIndex, userItems.Rows())
	}
	likedIndices, likedWeights := userItems.Row(int(userIndex))
	exclude := mapset.NewSet[int32]()
	if opts.FilterAlreadyLikedItems {
		exclude.Append(likedIndices...)
	}
	for _, itemIndex := range opts.FilterItems {
		if err := knn.checkItemIndex(itemIndex); err != nil {
			return nil, nil, errors.Trace(err)
		}
		exclude.Add(itemIndex)
	}
	scores := make(map[int32]float32)
	for position, likedIndex := range likedIndices {
		if err := knn.checkItemIndex(likedIndex); err != nil {
			return nil, nil, errors.Trace(err)
		}
		for neighborPosition, neighborIndex := range knn.Neighbors[likedIndex] {
			scores[neighborIndex] += likedWeights[position] * knn.Similarities[likedIndex][neighborPosition]
		}
	}
	filter := heap.NewTopKFilter[int32, float32](n)
	for itemIndex, score := range scores {
		if !exclude.Contains(itemIndex) {
			filter.Push(itemIndex, score)
		}
	}
	ids, weights := filter.PopAll()
	return ids, weights, nil
}

// SimilarItems returns the precomputed neighbors of an item, itself first.
// Results are bounded by the K hyper-parameter.
func (knn *ItemKNN) SimilarItems(itemIndex int32, n int) ([]int32, []float32, error) {
	if err := knn.checkFitted(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if err := knn.checkItemIndex(itemIndex); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if n < 0 {
		return nil, nil, errors.NotValidf("negative number of neighbors %d", n)
	}
	neighbors := knn.Neighbors[itemIndex]
	similarities := knn.Similarities[itemIndex]
	if n < len(neighbors) {
		neighbors = neighbors[:n]
		similarities = similarities[:n]
	}
	return neighbors, similarities, nil
}

// SimilarItemsBatch runs SimilarItems for a batch of items in parallel.
func (knn *ItemKNN) SimilarItemsBatch(itemIndices []int32, n, nJobs int) ([][]int32, [][]float32, error) {
	if err := knn.checkFitted(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	return batchSearch(len(itemIndices), nJobs, func(i int) ([]int32, []float32, error) {
		return knn.SimilarItems(itemIndices[i], n)
	})
}

// SimilarUsers is unsupported: the model keeps no user representation.
func (knn *ItemKNN) SimilarUsers(_ int32, _ int) ([]int32, []float32, error) {
	return nil, nil, errors.NotSupportedf("similar users by item knn")
}

// SimilarUsersBatch is unsupported: the model keeps no user representation.
func (knn *ItemKNN) SimilarUsersBatch(_ []int32, _, _ int) ([][]int32, [][]float32, error) {
	return nil, nil, errors.NotSupportedf("similar users by item knn")
}

// RankItems reorders exactly the selected items by the similarity-weighted
// score against the user's interaction row. Items sharing no neighbor with
// the row keep a zero score.
func (knn *ItemKNN) RankItems(userIndex int32, userItems *sparse.Matrix, selectedItems []int32) ([]int32, []float32, error) {
	if err := knn.checkFitted(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if userIndex < 0 || int(userIndex) >= userItems.Rows() {
		return nil, nil, errors.NotValidf("user index %d out of %d rows", userIndex, userItems.Rows())
	}
	selectedSet := mapset.NewSet[int32]()
	for _, itemIndex := range selectedItems {
		if err := knn.checkItemIndex(itemIndex); err != nil {
			return nil, nil, errors.Trace(err)
		}
		selectedSet.Add(itemIndex)
	}
	likedIndices, likedWeights := userItems.Row(int(userIndex))
	scores := make(map[int32]float32)
	for position, likedIndex := range likedIndices {
		if err := knn.checkItemIndex(likedIndex); err != nil {
			return nil, nil, errors.Trace(err)
		}
		for neighborPosition, neighborIndex := range knn.Neighbors[likedIndex] {
			if selectedSet.Contains(neighborIndex) {
				scores[neighborIndex] += likedWeights[position] * knn.Similarities[likedIndex][neighborPosition]
			}
		}
	}
	filter := heap.NewTopKFilter[int32, float32](len(selectedItems))
	for _, itemIndex := range selectedItems {
		filter.Push(itemIndex, scores[itemIndex])
	}
	ids, weights := filter.PopAll()
	return ids, weights, nil
}

// RecalculateUser is unsupported: there is no user factor to refresh.
// Recommend already derives everything from the interaction row, so stale
// user state cannot occur for this family.
func (knn *ItemKNN) RecalculateUser(_ []int32, _ []float32) ([]float32, error) {
	return nil, errors.NotSupportedf("recalculate user by item knn")
}

// Marshal model into byte stream.
func (knn *ItemKNN) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, knn.Params); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, int64(knn.nUsers)); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, knn.Neighbors); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, knn.Similarities); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (knn *ItemKNN) Unmarshal(r io.Reader) error {
	if err := encoding.ReadGob(r, &knn.Params); err != nil {
		return errors.Trace(err)
	}
	var nUsers int64
	if err := binary.Read(r, binary.LittleEndian, &nUsers); err != nil {
		return errors.Trace(err)
	}
	knn.nUsers = int(nUsers)
	if err := encoding.ReadGob(r, &knn.Neighbors); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &knn.Similarities); err != nil {
		return errors.Trace(err)
	}
	knn.SetParams(knn.Params)
	return nil
}

var _ Recommender = &ItemKNN{}
