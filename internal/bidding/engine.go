/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package bidding produces randomized, budget-exhausting bid vectors.
package bidding

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/llm-d/course-bidding/pkg/core"
)

// DefaultBidFraction caps each draw at this share of the points still unspent.
const DefaultBidFraction = 0.6

// Engine places bids on behalf of students.
type Engine struct {
	fraction float64
}

// NewEngine creates an Engine. fraction must be in (0, 1].
func NewEngine(fraction float64) (*Engine, error) {
	if math.IsNaN(fraction) || fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("bid fraction must be in (0, 1], got %v", fraction)
	}
	return &Engine{fraction: fraction}, nil
}

// Fraction returns the per-draw cap on the remaining budget.
func (e *Engine) Fraction() float64 {
	return e.fraction
}

// StreamFor returns the random stream owned by one student. Streams depend
// only on (seed, studentID), so bids are reproducible in any iteration order.
func StreamFor(seed uint64, studentID int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(studentID)))
}

// PlaceBid draws a bid vector over offered for the student and records it.
//
// Courses are visited in a shuffled order; each draws uniformly from
// [0, floor(remaining*fraction)]. Whatever is left afterwards goes to the
// course holding the highest bid, the first one in offered order on ties.
func (e *Engine) PlaceBid(student *core.Student, offered []string, rng *rand.Rand) (core.BidVector, error) {
	if student.HasBid() {
		return nil, &core.AlreadyBidError{StudentID: student.ID()}
	}
	if student.Budget() < 0 {
		return nil, fmt.Errorf("student %d has negative budget %d", student.ID(), student.Budget())
	}
	if len(offered) == 0 {
		return nil, fmt.Errorf("no offered courses to bid on for student %d", student.ID())
	}

	bids := make(core.BidVector, len(offered))
	for _, c := range offered {
		bids[c] = 0
	}
	if len(bids) != len(offered) {
		return nil, fmt.Errorf("offered courses contain duplicates: %v", offered)
	}

	shuffled := slices.Clone(offered)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	remaining := student.Budget()
	for _, c := range shuffled {
		limit := int(math.Floor(float64(remaining) * e.fraction))
		points := rng.IntN(limit + 1)
		bids[c] = points
		remaining -= points
	}

	top := offered[0]
	for _, c := range offered[1:] {
		if bids[c] > bids[top] {
			top = c
		}
	}
	bids[top] += remaining

	if err := student.RecordBid(bids); err != nil {
		return nil, err
	}
	return bids, nil
}
