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

// Package milp is a solver.Backend for small 0/1 linear programs. Each node
// of a depth-first branch and bound solves its LP relaxation with gonum's
// simplex implementation.
package milp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/llm-d/course-bidding/internal/logging"
	"github.com/llm-d/course-bidding/pkg/solver"
)

const (
	// integrality is how far from 0 or 1 a value may be and still count as integral.
	integrality = 1e-6
	// feasibility is the slack allowed on constraints without free variables.
	feasibility = 1e-9
	// simplexTolerance is passed to lp.Simplex.
	simplexTolerance = 1e-10
	// pruneEpsilon avoids exploring nodes that cannot improve the incumbent.
	pruneEpsilon = 1e-9
)

// Backend creates branch and bound models.
type Backend struct {
	// MaxNodes stops the search after this many nodes; zero means no limit.
	MaxNodes int
}

// NewBackend returns a Backend without a node limit.
func NewBackend() *Backend {
	return &Backend{}
}

// NewModel implements solver.Backend.
func (b *Backend) NewModel(name string) solver.Model {
	return &Model{name: name, maxNodes: b.MaxNodes}
}

type constraint struct {
	terms []solver.Term
	sense solver.Sense
	rhs   float64
}

// Model is a 0/1 program. It is not safe for concurrent use.
type Model struct {
	name        string
	maxNodes    int
	numVars     int
	constraints []constraint
	objective   []float64
	maximize    bool
}

var _ solver.Model = &Model{}

// AddBinaryVars implements solver.Model.
func (m *Model) AddBinaryVars(n int) []solver.Var {
	vars := make([]solver.Var, n)
	for i := range n {
		vars[i] = solver.Var(m.numVars + i)
	}
	m.numVars += n
	return vars
}

// AddConstraint implements solver.Model.
func (m *Model) AddConstraint(terms []solver.Term, sense solver.Sense, rhs float64) error {
	if err := m.checkTerms(terms); err != nil {
		return err
	}
	switch sense {
	case solver.LessOrEqual, solver.GreaterOrEqual, solver.Equal:
	default:
		return fmt.Errorf("unsupported constraint sense %v", sense)
	}
	m.constraints = append(m.constraints, constraint{terms: terms, sense: sense, rhs: rhs})
	return nil
}

// SetObjective implements solver.Model.
func (m *Model) SetObjective(terms []solver.Term, maximize bool) error {
	if err := m.checkTerms(terms); err != nil {
		return err
	}
	m.objective = make([]float64, m.numVars)
	for _, t := range terms {
		m.objective[t.Var] += t.Coef
	}
	m.maximize = maximize
	return nil
}

func (m *Model) checkTerms(terms []solver.Term) error {
	for _, t := range terms {
		if int(t.Var) < 0 || int(t.Var) >= m.numVars {
			return fmt.Errorf("model %s has no variable %d", m.name, t.Var)
		}
		if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
			return fmt.Errorf("coefficient of variable %d is not finite", t.Var)
		}
	}
	return nil
}

// node is a partial assignment: fixed[v] is -1 for free variables.
type node struct {
	fixed []int8
	// bound is the relaxation value of the parent, in minimization form.
	bound float64
}

// Optimize implements solver.Model.
func (m *Model) Optimize(ctx context.Context) (*solver.Solution, error) {
	logger := logr.FromContextOrDiscard(ctx).WithValues("model", m.name)

	if m.numVars == 0 {
		return nil, fmt.Errorf("model %s has no variables", m.name)
	}
	cost := make([]float64, m.numVars)
	for i := range cost {
		if i < len(m.objective) {
			cost[i] = m.objective[i]
		}
		if m.maximize {
			cost[i] = -cost[i]
		}
	}

	root := node{fixed: make([]int8, m.numVars), bound: math.Inf(-1)}
	for i := range root.fixed {
		root.fixed[i] = -1
	}

	incumbent := math.Inf(1)
	var best []float64
	stack := []node{root}
	nodes := 0
	interrupted := false

	for len(stack) > 0 {
		if ctx.Err() != nil || (m.maxNodes > 0 && nodes >= m.maxNodes) {
			interrupted = true
			break
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.bound >= incumbent-pruneEpsilon {
			continue
		}
		nodes++

		value, x, err := m.relax(cost, n.fixed)
		if errors.Is(err, lp.ErrInfeasible) {
			continue
		}
		if err != nil {
			logger.Info("LP relaxation failed", "node", nodes, "error", err)
			return &solver.Solution{Status: solver.StatusUnknown, Bound: m.external(n.bound)}, nil
		}
		if value >= incumbent-pruneEpsilon {
			continue
		}

		branch := mostFractional(x)
		if branch < 0 {
			incumbent = value
			best = roundBinary(x)
			logger.V(logging.TRACE).Info("New incumbent", "node", nodes, "objective", m.external(value))
			continue
		}

		down := cloneFixed(n.fixed)
		down[branch] = 0
		up := cloneFixed(n.fixed)
		up[branch] = 1
		// explore the side x[branch] leans towards first
		if x[branch] >= 0.5 {
			stack = append(stack, node{fixed: down, bound: value}, node{fixed: up, bound: value})
		} else {
			stack = append(stack, node{fixed: up, bound: value}, node{fixed: down, bound: value})
		}
	}

	logger.V(logging.DEBUG).Info("Branch and bound finished",
		"nodes", nodes,
		"open", len(stack),
		"interrupted", interrupted)

	if !interrupted {
		if best == nil {
			return &solver.Solution{Status: solver.StatusInfeasible, Bound: m.external(math.Inf(1))}, nil
		}
		obj := m.external(incumbent)
		return &solver.Solution{Status: solver.StatusOptimal, Objective: obj, Bound: obj, Values: best}, nil
	}

	bound := incumbent
	for _, n := range stack {
		bound = math.Min(bound, n.bound)
	}
	if best == nil {
		return &solver.Solution{Status: solver.StatusNoSolutionFound, Bound: m.external(bound)}, nil
	}
	return &solver.Solution{
		Status:    solver.StatusFeasible,
		Objective: m.external(incumbent),
		Bound:     m.external(bound),
		Values:    best,
	}, nil
}

// external converts a minimization-form value back to the model's sense.
func (m *Model) external(v float64) float64 {
	if m.maximize {
		return -v
	}
	return v
}

// relax solves the LP relaxation with the fixed variables substituted out.
// It returns the objective in minimization form and a value per variable.
func (m *Model) relax(cost []float64, fixed []int8) (float64, []float64, error) {
	col := make([]int, m.numVars)
	var free []int
	constant := 0.0
	for v, f := range fixed {
		if f < 0 {
			col[v] = len(free)
			free = append(free, v)
			continue
		}
		col[v] = -1
		constant += cost[v] * float64(f)
	}

	x := make([]float64, m.numVars)
	for v, f := range fixed {
		if f >= 0 {
			x[v] = float64(f)
		}
	}

	type row struct {
		coefs []float64
		sense solver.Sense
		rhs   float64
	}
	var rows []row
	for _, c := range m.constraints {
		coefs := make([]float64, len(free))
		rhs := c.rhs
		active := false
		for _, t := range c.terms {
			if k := col[t.Var]; k >= 0 {
				coefs[k] += t.Coef
				active = true
			} else {
				rhs -= t.Coef * float64(fixed[t.Var])
			}
		}
		if !active {
			if !satisfied(0, c.sense, rhs) {
				return 0, nil, lp.ErrInfeasible
			}
			continue
		}
		rows = append(rows, row{coefs: coefs, sense: c.sense, rhs: rhs})
	}
	if len(free) == 0 {
		return constant, x, nil
	}
	for k := range free {
		coefs := make([]float64, len(free))
		coefs[k] = 1
		rows = append(rows, row{coefs: coefs, sense: solver.LessOrEqual, rhs: 1})
	}

	slacks := 0
	for _, r := range rows {
		if r.sense != solver.Equal {
			slacks++
		}
	}
	cols := len(free) + slacks
	a := mat.NewDense(len(rows), cols, nil)
	b := make([]float64, len(rows))
	slack := len(free)
	for i, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for k, v := range r.coefs {
			if v != 0 {
				a.Set(i, k, sign*v)
			}
		}
		switch r.sense {
		case solver.LessOrEqual:
			a.Set(i, slack, sign)
			slack++
		case solver.GreaterOrEqual:
			a.Set(i, slack, -sign)
			slack++
		}
		b[i] = sign * r.rhs
	}
	c := make([]float64, cols)
	for k, v := range free {
		c[k] = cost[v]
	}

	opt, sol, err := lp.Simplex(c, a, b, simplexTolerance, nil)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range free {
		x[v] = sol[k]
	}
	return opt + constant, x, nil
}

func satisfied(lhs float64, sense solver.Sense, rhs float64) bool {
	switch sense {
	case solver.LessOrEqual:
		return lhs <= rhs+feasibility
	case solver.GreaterOrEqual:
		return lhs >= rhs-feasibility
	default:
		return math.Abs(lhs-rhs) <= feasibility
	}
}

// mostFractional returns the variable closest to 0.5, or -1 if x is integral.
func mostFractional(x []float64) int {
	branch := -1
	best := math.Inf(1)
	for v, val := range x {
		frac := val - math.Floor(val)
		if frac < integrality || frac > 1-integrality {
			continue
		}
		if d := math.Abs(frac - 0.5); d < best {
			best = d
			branch = v
		}
	}
	return branch
}

func roundBinary(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Round(v)
	}
	return out
}

func cloneFixed(f []int8) []int8 {
	out := make([]int8, len(f))
	copy(out, f)
	return out
}
