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

// Package cf implements collaborative filtering models over implicit feedback.
//
// All models share the Recommender contract. Recommendation and item ranking
// score candidates with the raw inner product of latent factors, while
// similarity queries use cosine, so an entity is always most similar to
// itself. Operations that a model family cannot support report
// errors.NotSupported instead of failing.
package cf

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"

	"github.com/gs-dxdy/implicit/base/encoding"
	"github.com/gs-dxdy/implicit/base/heap"
	"github.com/gs-dxdy/implicit/common/floats"
	"github.com/gs-dxdy/implicit/common/parallel"
	"github.com/gs-dxdy/implicit/dataset"
	"github.com/gs-dxdy/implicit/model"
	"github.com/gs-dxdy/implicit/search"
	"github.com/gs-dxdy/implicit/sparse"
)

// FitConfig carries execution options of a fit, not hyper-parameters.
type FitConfig struct {
	Jobs    int
	Verbose int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// RecommendOptions configures a single Recommend call.
type RecommendOptions struct {
	// FilterItems are extra item ids excluded from results.
	FilterItems []int32
	// FilterAlreadyLikedItems excludes items with a nonzero weight in the
	// user's interaction row.
	FilterAlreadyLikedItems bool
	// RecalculateUser derives the user's factor vector from the interaction
	// row instead of using the stored one.
	RecalculateUser bool
}

func NewRecommendOptions() *RecommendOptions {
	return &RecommendOptions{FilterAlreadyLikedItems: true}
}

func (opts *RecommendOptions) LoadDefaultIfNil() *RecommendOptions {
	if opts == nil {
		return NewRecommendOptions()
	}
	return opts
}

// Recommender is the contract shared by all model families. A model is created
// unfitted; Fit moves it to the fitted state and every other operation
// requires it. Re-fitting replaces all learned state.
type Recommender interface {
	model.Model
	// Fit trains the model on an item-user interaction matrix
	// (n_items rows, n_users columns). Rows and columns with no entries are
	// legal and produce degenerate entities that never surface in results.
	Fit(ctx context.Context, itemUsers *sparse.Matrix, config *FitConfig) error
	// Recommend returns the ids and scores of the top n items for a user,
	// ordered by descending score. userItems must contain the user's
	// interaction row. Fewer than n items are returned when fewer are
	// eligible.
	Recommend(userIndex int32, userItems *sparse.Matrix, n int, opts *RecommendOptions) ([]int32, []float32, error)
	// SimilarItems returns the items most similar to an item, itself first.
	SimilarItems(itemIndex int32, n int) ([]int32, []float32, error)
	// SimilarItemsBatch runs SimilarItems for a batch of items in parallel.
	SimilarItemsBatch(itemIndices []int32, n, nJobs int) ([][]int32, [][]float32, error)
	// SimilarUsers returns the users most similar to a user, itself first.
	SimilarUsers(userIndex int32, n int) ([]int32, []float32, error)
	// SimilarUsersBatch runs SimilarUsers for a batch of users in parallel.
	SimilarUsersBatch(userIndices []int32, n, nJobs int) ([][]int32, [][]float32, error)
	// RankItems reorders exactly the selected items by preference score for a
	// user. Any id outside [0, n_items) fails the whole call.
	RankItems(userIndex int32, userItems *sparse.Matrix, selectedItems []int32) ([]int32, []float32, error)
	// RecalculateUser derives a fresh user factor vector from an interaction
	// row without mutating shared model state.
	RecalculateUser(itemIndices []int32, weights []float32) ([]float32, error)
	// Marshal model into byte stream.
	Marshal(w io.Writer) error
	// Unmarshal model from byte stream.
	Unmarshal(r io.Reader) error
	// Invalid reports whether the model has not been fitted.
	Invalid() bool
}

// BaseMatrixFactorization holds the latent factor matrices shared by the
// matrix factorization family and implements the facade operations that only
// depend on them. Factors are read-only during scoring; the only mutation
// points are a full re-fit and Unmarshal.
type BaseMatrixFactorization struct {
	model.BaseModel
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	// Model parameters
	UserFactor [][]float32 // p_u
	ItemFactor [][]float32 // q_i
	// Search indices over the factor matrices, rebuilt after fit and unmarshal.
	userSearcher *search.Bruteforce
	itemSearcher *search.Bruteforce
}

func (baseModel *BaseMatrixFactorization) CountUsers() int {
	return len(baseModel.UserFactor)
}

func (baseModel *BaseMatrixFactorization) CountItems() int {
	return len(baseModel.ItemFactor)
}

// GetUserFactor returns the latent factor of a user.
func (baseModel *BaseMatrixFactorization) GetUserFactor(userIndex int32) []float32 {
	return baseModel.UserFactor[userIndex]
}

// GetItemFactor returns the latent factor of an item.
func (baseModel *BaseMatrixFactorization) GetItemFactor(itemIndex int32) []float32 {
	return baseModel.ItemFactor[itemIndex]
}

// IsUserPredictable returns false if the user had no feedback and its factor
// vector was never trained.
func (baseModel *BaseMatrixFactorization) IsUserPredictable(userIndex int32) bool {
	if userIndex < 0 || int(userIndex) >= baseModel.CountUsers() {
		return false
	}
	return baseModel.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns false if the item had no feedback and its factor
// vector was never trained.
func (baseModel *BaseMatrixFactorization) IsItemPredictable(itemIndex int32) bool {
	if itemIndex < 0 || int(itemIndex) >= baseModel.CountItems() {
		return false
	}
	return baseModel.ItemPredictable.Test(uint(itemIndex))
}

func (baseModel *BaseMatrixFactorization) internalPredict(userIndex, itemIndex int32) float32 {
	return floats.Dot(baseModel.UserFactor[userIndex], baseModel.ItemFactor[itemIndex])
}

// init records which entities actually carry feedback.
func (baseModel *BaseMatrixFactorization) init(trainSet *dataset.Dataset) {
	userFeedback := trainSet.GetUserFeedback()
	baseModel.UserPredictable = bitset.New(uint(len(userFeedback)))
	for userIndex := range userFeedback {
		if len(userFeedback[userIndex]) > 0 {
			baseModel.UserPredictable.Set(uint(userIndex))
		}
	}
	itemFeedback := trainSet.GetItemFeedback()
	baseModel.ItemPredictable = bitset.New(uint(len(itemFeedback)))
	for itemIndex := range itemFeedback {
		if len(itemFeedback[itemIndex]) > 0 {
			baseModel.ItemPredictable.Set(uint(itemIndex))
		}
	}
}

// finalize zeroes the factor vectors of entities without feedback so they
// participate in no similarity, and rebuilds the search indices.
func (baseModel *BaseMatrixFactorization) finalize() {
	for userIndex := range baseModel.UserFactor {
		if !baseModel.UserPredictable.Test(uint(userIndex)) {
			floats.Zero(baseModel.UserFactor[userIndex])
		}
	}
	for itemIndex := range baseModel.ItemFactor {
		if !baseModel.ItemPredictable.Test(uint(itemIndex)) {
			floats.Zero(baseModel.ItemFactor[itemIndex])
		}
	}
	baseModel.userSearcher = search.NewBruteforce(baseModel.UserFactor)
	baseModel.itemSearcher = search.NewBruteforce(baseModel.ItemFactor)
}

func (baseModel *BaseMatrixFactorization) checkFitted() error {
	if baseModel.Invalid() {
		return errors.NotValidf("operation on unfitted model")
	}
	return nil
}

func (baseModel *BaseMatrixFactorization) checkItemIndex(itemIndex int32) error {
	if itemIndex < 0 || int(itemIndex) >= baseModel.CountItems() {
		return errors.NotValidf("item index %d out of %d items", itemIndex, baseModel.CountItems())
	}
	return nil
}

func (baseModel *BaseMatrixFactorization) checkUserIndex(userIndex int32) error {
	if userIndex < 0 || int(userIndex) >= baseModel.CountUsers() {
		return errors.NotValidf("user index %d out of %d users", userIndex, baseModel.CountUsers())
	}
	return nil
}

// recommend scores all items against a query vector and returns the top n
// after exclusions. recalculate derives the query vector from the user's
// interaction row on demand; matrix factorization variants that cannot do
// this report errors.NotSupported.
func (baseModel *BaseMatrixFactorization) recommend(userIndex int32, userItems *sparse.Matrix,
	n int, opts *RecommendOptions, recalculate func([]int32, []float32) ([]float32, error)) ([]int32, []float32, error) {
	opts = opts.LoadDefaultIfNil()
	if err := baseModel.checkFitted(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if userIndex < 0 || int(userIndex) >= userItems.Rows() {
		return nil, nil, errors.NotValidf("user index %d out of %d rows", userIndex, userItems.Rows())
	}
	likedIndices, likedWeights := userItems.Row(int(userIndex))
	var query []float32
	if opts.RecalculateUser {
		var err error
		query, err = recalculate(likedIndices, likedWeights)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
	} else {
		if err := baseModel.checkUserIndex(userIndex); err != nil {
			return nil, nil, errors.Trace(err)
		}
		query = baseModel.UserFactor[userIndex]
	}
	exclude := mapset.NewSet[int32]()
	if opts.FilterAlreadyLikedItems {
		exclude.Append(likedIndices...)
	}
	for _, itemIndex := range opts.FilterItems {
		if err := baseModel.checkItemIndex(itemIndex); err != nil {
			return nil, nil, errors.Trace(err)
		}
		exclude.Add(itemIndex)
	}
	ids, scores, err := baseModel.itemSearcher.SearchDot(query, n, exclude)
	return ids, scores, errors.Trace(err)
}

// SimilarItems returns the items most similar to an item by cosine, itself first.
func (baseModel *BaseMatrixFactorization) SimilarItems(itemIndex int32, n int) ([]int32, []float32, error) {
	if err := baseModel.checkFitted(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if err := baseModel.checkItemIndex(itemIndex); err != nil {
		return nil, nil, errors.Trace(err)
	}
	ids, scores, err := baseModel.itemSearcher.SearchCosine(baseModel.ItemFactor[itemIndex], n, nil)
	return ids, scores, errors.Trace(err)
}

// SimilarItemsBatch runs SimilarItems for a batch of items in parallel.
func (baseModel *BaseMatrixFactorization) SimilarItemsBatch(itemIndices []int32, n, nJobs int) ([][]int32, [][]float32, error) {
	if err := baseModel.checkFitted(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	queries := make([][]float32, len(itemIndices))
	for i, itemIndex := range itemIndices {
		if err := baseModel.checkItemIndex(itemIndex); err != nil {
			return nil, nil, errors.Trace(err)
		}
		queries[i] = baseModel.ItemFactor[itemIndex]
	}
	ids, scores, err := baseModel.itemSearcher.BatchSearchCosine(queries, n, nJobs)
	return ids, scores, errors.Trace(err)
}

// SimilarUsers returns the users most similar to a user by cosine, itself first.
func (baseModel *BaseMatrixFactorization) SimilarUsers(userIndex int32, n int) ([]int32, []float32, error) {
	if err := baseModel.checkFitted(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if err := baseModel.checkUserIndex(userIndex); err != nil {
		return nil, nil, errors.Trace(err)
	}
	ids, scores, err := baseModel.userSearcher.SearchCosine(baseModel.UserFactor[userIndex], n, nil)
	return ids, scores, errors.Trace(err)
}

// SimilarUsersBatch runs SimilarUsers for a batch of users in parallel.
func (baseModel *BaseMatrixFactorization) SimilarUsersBatch(userIndices []int32, n, nJobs int) ([][]int32, [][]float32, error) {
	if err := baseModel.checkFitted(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	queries := make([][]float32, len(userIndices))
	for i, userIndex := range userIndices {
		if err := baseModel.checkUserIndex(userIndex); err != nil {
			return nil, nil, errors.Trace(err)
		}
		queries[i] = baseModel.UserFactor[userIndex]
	}
	ids, scores, err := baseModel.userSearcher.BatchSearchCosine(queries, n, nJobs)
	return ids, scores, errors.Trace(err)
}

// RankItems reorders exactly the selected items by preference score. A single
// id outside [0, n_items) invalidates the entire request, degenerate items are
// kept with a zero score.
func (baseModel *BaseMatrixFactorization) RankItems(userIndex int32, userItems *sparse.Matrix, selectedItems []int32) ([]int32, []float32, error) {
	if err := baseModel.checkFitted(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if err := baseModel.checkUserIndex(userIndex); err != nil {
		return nil, nil, errors.Trace(err)
	}
	for _, itemIndex := range selectedItems {
		if err := baseModel.checkItemIndex(itemIndex); err != nil {
			return nil, nil, errors.Trace(err)
		}
	}
	filter := heap.NewTopKFilter[int32, float32](len(selectedItems))
	for _, itemIndex := range selectedItems {
		filter.Push(itemIndex, baseModel.internalPredict(userIndex, itemIndex))
	}
	ids, scores := filter.PopAll()
	return ids, scores, nil
}

// Marshal model into byte stream.
func (baseModel *BaseMatrixFactorization) Marshal(w io.Writer) error {
	// write params
	if err := encoding.WriteGob(w, baseModel.Params); err != nil {
		return errors.Trace(err)
	}
	// write dimensions
	var nFactors int64
	if len(baseModel.UserFactor) > 0 {
		nFactors = int64(len(baseModel.UserFactor[0]))
	}
	for _, v := range []int64{int64(baseModel.CountUsers()), int64(baseModel.CountItems()), nFactors} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return errors.Trace(err)
		}
	}
	// write predictable flags
	if err := encoding.WriteGob(w, baseModel.UserPredictable.Bytes()); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, baseModel.ItemPredictable.Bytes()); err != nil {
		return errors.Trace(err)
	}
	// write latent factors
	if err := encoding.WriteMatrix(w, baseModel.UserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, baseModel.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (baseModel *BaseMatrixFactorization) Unmarshal(r io.Reader) error {
	// read params
	if err := encoding.ReadGob(r, &baseModel.Params); err != nil {
		return errors.Trace(err)
	}
	// read dimensions
	var nUsers, nItems, nFactors int64
	for _, v := range []*int64{&nUsers, &nItems, &nFactors} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return errors.Trace(err)
		}
	}
	// read predictable flags
	var userBits, itemBits []uint64
	if err := encoding.ReadGob(r, &userBits); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &itemBits); err != nil {
		return errors.Trace(err)
	}
	baseModel.UserPredictable = bitset.From(userBits)
	baseModel.ItemPredictable = bitset.From(itemBits)
	// read latent factors
	baseModel.UserFactor = newMatrix32(int(nUsers), int(nFactors))
	if err := encoding.ReadMatrix(r, baseModel.UserFactor); err != nil {
		return errors.Trace(err)
	}
	baseModel.ItemFactor = newMatrix32(int(nItems), int(nFactors))
	if err := encoding.ReadMatrix(r, baseModel.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	baseModel.finalize()
	return nil
}

func (baseModel *BaseMatrixFactorization) Clear() {
	baseModel.UserPredictable = nil
	baseModel.ItemPredictable = nil
	baseModel.UserFactor = nil
	baseModel.ItemFactor = nil
	baseModel.userSearcher = nil
	baseModel.itemSearcher = nil
}

func (baseModel *BaseMatrixFactorization) Invalid() bool {
	return baseModel == nil ||
		baseModel.UserFactor == nil ||
		baseModel.ItemFactor == nil
}

// newMatrix32 allocates a matrix backed by a single contiguous slice.
func newMatrix32(row, col int) [][]float32 {
	ret := make([][]float32, row)
	backing := make([]float32, row*col)
	for i := range ret {
		ret[i] = backing[i*col : (i+1)*col : (i+1)*col]
	}
	return ret
}

func GetModelName(m Recommender) string {
	switch m.(type) {
	case *BPR:
		return "bpr"
	case *ALS:
		return "als"
	case *ItemKNN:
		return "item_knn"
	default:
		return fmt.Sprintf("%T", m)
	}
}

// MarshalModel writes a named model snapshot.
func MarshalModel(w io.Writer, m Recommender) error {
	if err := encoding.WriteString(w, GetModelName(m)); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// UnmarshalModel reads a named model snapshot. The returned model behaves
// identically to the one written.
func UnmarshalModel(r io.Reader) (Recommender, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch name {
	case "bpr":
		var bpr BPR
		if err := bpr.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &bpr, nil
	case "als":
		var als ALS
		if err := als.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &als, nil
	case "item_knn":
		var knn ItemKNN
		if err := knn.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &knn, nil
	}
	return nil, errors.NotFoundf("model %v", name)
}

// batchSearch returns per-query single searches as batch-shaped results.
func batchSearch(count, nJobs int, single func(int) ([]int32, []float32, error)) ([][]int32, [][]float32, error) {
	ids := make([][]int32, count)
	scores := make([][]float32, count)
	err := parallel.Parallel(context.Background(), count, nJobs, func(_, i int) error {
		var err error
		ids[i], scores[i], err = single(i)
		return errors.Trace(err)
	})
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return ids, scores, nil
}
