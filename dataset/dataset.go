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

// Package dataset builds the adjacency view of interaction matrices consumed
// by trainers, and loads interaction triples from CSV files.
package dataset

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/juju/errors"

	"github.com/gs-dxdy/implicit/base"
	"github.com/gs-dxdy/implicit/sparse"
)

// Dataset is the adjacency view of an interaction matrix: for every user the
// items it interacted with, and for every item the users that interacted with
// it, with the matching weights. Trainers read it, they never write it.
type Dataset struct {
	userFeedback [][]int32
	itemFeedback [][]int32
	userWeights  [][]float32
	itemWeights  [][]float32
	numFeedback  int
}

// FromItemUsers builds a dataset from an item-user interaction matrix
// (n_items rows, n_users columns).
func FromItemUsers(itemUsers *sparse.Matrix) *Dataset {
	d := &Dataset{
		userFeedback: make([][]int32, itemUsers.Cols()),
		itemFeedback: make([][]int32, itemUsers.Rows()),
		userWeights:  make([][]float32, itemUsers.Cols()),
		itemWeights:  make([][]float32, itemUsers.Rows()),
		numFeedback:  itemUsers.NNZ(),
	}
	itemUsers.ForEach(func(itemIndex int, userIndex int32, weight float32) {
		d.itemFeedback[itemIndex] = append(d.itemFeedback[itemIndex], userIndex)
		d.itemWeights[itemIndex] = append(d.itemWeights[itemIndex], weight)
		d.userFeedback[userIndex] = append(d.userFeedback[userIndex], int32(itemIndex))
		d.userWeights[userIndex] = append(d.userWeights[userIndex], weight)
	})
	return d
}

func (d *Dataset) CountUsers() int {
	return len(d.userFeedback)
}

func (d *Dataset) CountItems() int {
	return len(d.itemFeedback)
}

func (d *Dataset) CountFeedback() int {
	return d.numFeedback
}

// GetUserFeedback returns the items each user interacted with.
func (d *Dataset) GetUserFeedback() [][]int32 {
	return d.userFeedback
}

// GetItemFeedback returns the users each item was interacted with by.
func (d *Dataset) GetItemFeedback() [][]int32 {
	return d.itemFeedback
}

// GetUserWeights returns the weights aligned with GetUserFeedback.
func (d *Dataset) GetUserWeights() [][]float32 {
	return d.userWeights
}

// GetItemWeights returns the weights aligned with GetItemFeedback.
func (d *Dataset) GetItemWeights() [][]float32 {
	return d.itemWeights
}

// Triples holds raw interactions loaded from a CSV file. Raw string ids are
// mapped to dense indices by the dictionaries.
type Triples struct {
	UserDict *FreqDict
	ItemDict *FreqDict
	Users    []int32
	Items    []int32
	Weights  []float32
}

// LoadCSV reads "user,item[,weight]" records. A missing weight column defaults
// to 1.
func LoadCSV(path string) (*Triples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Trace(err)
	}
	t := &Triples{
		UserDict: NewFreqDict(),
		ItemDict: NewFreqDict(),
	}
	for _, record := range records {
		if len(record) < 2 {
			return nil, errors.NotValidf("record with %d fields", len(record))
		}
		weight := 1.0
		if len(record) >= 3 {
			weight, err = strconv.ParseFloat(record[2], 32)
			if err != nil {
				return nil, errors.Trace(err)
			}
		}
		t.Users = append(t.Users, t.UserDict.Id(record[0]))
		t.Items = append(t.Items, t.ItemDict.Id(record[1]))
		t.Weights = append(t.Weights, float32(weight))
	}
	return t, nil
}

// UserItems assembles the user-item interaction matrix.
func (t *Triples) UserItems() (*sparse.Matrix, error) {
	m, err := sparse.FromTriples(int(t.UserDict.Count()), int(t.ItemDict.Count()),
		t.Users, t.Items, t.Weights)
	return m, errors.Trace(err)
}

// SplitUserItems splits a user-item matrix into train and test matrices. For
// every user, a testRatio fraction of interactions (at least one, if the user
// has more than one) is held out. The split is deterministic for a seed.
func SplitUserItems(userItems *sparse.Matrix, testRatio float64, seed int64) (train, test *sparse.Matrix, err error) {
	rng := base.NewRandomGenerator(seed)
	var trainUsers, trainItems, testUsers, testItems []int32
	var trainWeights, testWeights []float32
	for u := 0; u < userItems.Rows(); u++ {
		indices, values := userItems.Row(u)
		if len(indices) < 2 {
			for k := range indices {
				trainUsers = append(trainUsers, int32(u))
				trainItems = append(trainItems, indices[k])
				trainWeights = append(trainWeights, values[k])
			}
			continue
		}
		numTest := int(float64(len(indices)) * testRatio)
		if numTest < 1 {
			numTest = 1
		}
		heldOut := make(map[int]struct{}, numTest)
		for len(heldOut) < numTest {
			heldOut[rng.Intn(len(indices))] = struct{}{}
		}
		for k := range indices {
			if _, ok := heldOut[k]; ok {
				testUsers = append(testUsers, int32(u))
				testItems = append(testItems, indices[k])
				testWeights = append(testWeights, values[k])
			} else {
				trainUsers = append(trainUsers, int32(u))
				trainItems = append(trainItems, indices[k])
				trainWeights = append(trainWeights, values[k])
			}
		}
	}
	train, err = sparse.FromTriples(userItems.Rows(), userItems.Cols(), trainUsers, trainItems, trainWeights)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	test, err = sparse.FromTriples(userItems.Rows(), userItems.Cols(), testUsers, testItems, testWeights)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return train, test, nil
}
