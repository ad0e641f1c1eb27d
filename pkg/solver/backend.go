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

package solver

import (
	"context"
	"fmt"
)

// Status is the outcome reported by a Backend.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasible
	StatusNoSolutionFound
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "Unknown"
	case StatusOptimal:
		return "Optimal"
	case StatusFeasible:
		return "Feasible"
	case StatusNoSolutionFound:
		return "NoSolutionFound"
	case StatusInfeasible:
		return "Infeasible"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Sense is the relation of a linear constraint.
type Sense int

const (
	LessOrEqual Sense = iota
	GreaterOrEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessOrEqual:
		return "<="
	case GreaterOrEqual:
		return ">="
	case Equal:
		return "=="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Var identifies a decision variable within one Model.
type Var int

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Solution is what a Backend reports after Optimize.
type Solution struct {
	Status Status
	// Objective is the value of the best solution found, if any.
	Objective float64
	// Bound is the best known bound on the objective.
	Bound float64
	// Values holds one value per variable when a solution was found.
	Values []float64
}

// Model is a single 0/1 linear program under construction.
type Model interface {
	// AddBinaryVars adds n binary variables and returns them in order.
	AddBinaryVars(n int) []Var
	// AddConstraint adds sum(terms) <sense> rhs.
	AddConstraint(terms []Term, sense Sense, rhs float64) error
	// SetObjective sets the linear objective to maximize or minimize.
	SetObjective(terms []Term, maximize bool) error
	// Optimize solves the program. It returns an error only when the backend
	// itself fails; solve outcomes are reported through Solution.Status.
	// Implementations stop early when ctx is done.
	Optimize(ctx context.Context) (*Solution, error)
}

// Backend creates models. Implementations must return a fresh Model on
// every call.
type Backend interface {
	NewModel(name string) Model
}
