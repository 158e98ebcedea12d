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

package dataset

// FreqDict assigns dense integer indices to raw string ids and counts their
// occurrences. Indices are positional and stable for the lifetime of the dict.
type FreqDict struct {
	si  map[string]int32
	is  []string
	cnt []int
}

func NewFreqDict() (d *FreqDict) {
	d = &FreqDict{map[string]int32{}, []string{}, []int{}}
	return
}

// Count returns the number of distinct ids.
func (d *FreqDict) Count() int32 {
	return int32(len(d.is))
}

// Id returns the index of s, assigning the next free index on first sight, and
// increments its frequency.
func (d *FreqDict) Id(s string) (y int32) {
	if y, ok := d.si[s]; ok {
		d.cnt[y]++
		return y
	}

	y = int32(len(d.is))
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 1)
	return
}

// NotCount returns the index of s without touching its frequency.
func (d *FreqDict) NotCount(s string) (y int32) {
	if y, ok := d.si[s]; ok {
		return y
	}

	y = int32(len(d.is))
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 0)
	return
}

// String returns the raw id at index.
func (d *FreqDict) String(id int32) (s string, ok bool) {
	if id < 0 || int(id) >= len(d.is) {
		return "", false
	}
	return d.is[id], true
}

// Freq returns the frequency of the id at index.
func (d *FreqDict) Freq(id int32) int {
	if id < 0 || int(id) >= len(d.cnt) {
		return 0
	}
	return d.cnt[id]
}

// Index returns the index of s without assigning one, and reports whether s
// has been seen.
func (d *FreqDict) Index(s string) (int32, bool) {
	y, ok := d.si[s]
	return y, ok
}
