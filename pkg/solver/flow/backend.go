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

// Package flow is a solver.Backend for 0/1 programs whose constraints bound
// sums of variables over two families of disjoint groups, such as students
// and courses. Such a program is a bipartite b-matching and is solved exactly
// as a minimum cost circulation with successive shortest paths; each path
// search runs gonum's Dijkstra over a live view of the residual network.
//
// Models of any other shape fail with ErrUnsupportedModel.
package flow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/llm-d/course-bidding/internal/logging"
	"github.com/llm-d/course-bidding/pkg/solver"
)

// ErrUnsupportedModel is returned by Optimize for programs that are not a
// bipartite b-matching.
var ErrUnsupportedModel = errors.New("model is not a bipartite b-matching")

const roundingSlack = 1e-9

// Backend creates flow models.
type Backend struct{}

// NewBackend returns a Backend.
func NewBackend() *Backend {
	return &Backend{}
}

// NewModel implements solver.Backend.
func (b *Backend) NewModel(name string) solver.Model {
	return &Model{name: name}
}

type constraint struct {
	vars  []int
	sense solver.Sense
	rhs   float64
}

// Model is a 0/1 program. It is not safe for concurrent use.
type Model struct {
	name        string
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

// AddConstraint implements solver.Model. Every coefficient must be 1.
func (m *Model) AddConstraint(terms []solver.Term, sense solver.Sense, rhs float64) error {
	switch sense {
	case solver.LessOrEqual, solver.GreaterOrEqual, solver.Equal:
	default:
		return fmt.Errorf("unsupported constraint sense %v", sense)
	}
	if math.IsNaN(rhs) || math.IsInf(rhs, 0) {
		return fmt.Errorf("constraint right hand side is not finite")
	}
	vars := make([]int, 0, len(terms))
	for _, t := range terms {
		if int(t.Var) < 0 || int(t.Var) >= m.numVars {
			return fmt.Errorf("model %s has no variable %d", m.name, t.Var)
		}
		if t.Coef != 1 {
			return fmt.Errorf("%w: coefficient %v on variable %d", ErrUnsupportedModel, t.Coef, t.Var)
		}
		vars = append(vars, int(t.Var))
	}
	slices.Sort(vars)
	if len(slices.Compact(slices.Clone(vars))) != len(vars) {
		return fmt.Errorf("%w: variable repeated in one constraint", ErrUnsupportedModel)
	}
	m.constraints = append(m.constraints, constraint{vars: vars, sense: sense, rhs: rhs})
	return nil
}

// SetObjective implements solver.Model.
func (m *Model) SetObjective(terms []solver.Term, maximize bool) error {
	m.objective = make([]float64, m.numVars)
	for _, t := range terms {
		if int(t.Var) < 0 || int(t.Var) >= m.numVars {
			return fmt.Errorf("model %s has no variable %d", m.name, t.Var)
		}
		if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
			return fmt.Errorf("coefficient of variable %d is not finite", t.Var)
		}
		m.objective[t.Var] += t.Coef
	}
	m.maximize = maximize
	return nil
}

// group is a distinct set of variables with the bounds of every constraint on it.
type group struct {
	vars   []int
	lo, hi int
	side   int
}

// Optimize implements solver.Model.
func (m *Model) Optimize(ctx context.Context) (*solver.Solution, error) {
	logger := logr.FromContextOrDiscard(ctx).WithValues("model", m.name)

	if m.numVars == 0 {
		return nil, fmt.Errorf("model %s has no variables", m.name)
	}
	cost := make([]float64, m.numVars)
	for v := range cost {
		if v < len(m.objective) {
			cost[v] = m.objective[v]
		}
		if m.maximize {
			cost[v] = -cost[v]
		}
	}

	groups, feasible := m.groups()
	if !feasible {
		return m.infeasible(), nil
	}
	memberOf, err := m.membership(groups)
	if err != nil {
		return nil, err
	}

	net := newNetwork(len(groups))
	varEdge := make([]int, m.numVars)
	x := make([]float64, m.numVars)
	for v, gs := range memberOf {
		varEdge[v] = -1
		switch len(gs) {
		case 0:
			if cost[v] < 0 {
				x[v] = 1
			}
		case 1:
			g := groups[gs[0]]
			if g.side == 0 {
				varEdge[v] = net.addEdge(net.group(gs[0]), freeRight, 0, 1, cost[v])
			} else {
				varEdge[v] = net.addEdge(freeLeft, net.group(gs[0]), 0, 1, cost[v])
			}
		case 2:
			a, b := gs[0], gs[1]
			if groups[a].side == 1 {
				a, b = b, a
			}
			varEdge[v] = net.addEdge(net.group(a), net.group(b), 0, 1, cost[v])
		}
	}
	for i, g := range groups {
		if g.side == 0 {
			net.addEdge(source, net.group(i), g.lo, g.hi, 0)
		} else {
			net.addEdge(net.group(i), sink, g.lo, g.hi, 0)
		}
	}
	net.addEdge(source, freeLeft, 0, m.numVars, 0)
	net.addEdge(freeRight, sink, 0, m.numVars, 0)
	net.addEdge(sink, source, 0, m.numVars+1, 0)

	augmentations, satisfied, err := net.circulate(ctx)
	logger.V(logging.DEBUG).Info("Circulation finished",
		"groups", len(groups),
		"edges", len(net.edges),
		"augmentations", augmentations,
		"feasible", satisfied)
	if err != nil {
		if ctx.Err() != nil {
			return &solver.Solution{Status: solver.StatusNoSolutionFound, Bound: m.external(math.Inf(-1))}, nil
		}
		return nil, err
	}
	if !satisfied {
		return m.infeasible(), nil
	}

	objective := 0.0
	for v := range x {
		if e := varEdge[v]; e >= 0 {
			x[v] = float64(net.edges[e].flow)
		}
		if v < len(m.objective) {
			objective += m.objective[v] * x[v]
		}
	}
	return &solver.Solution{Status: solver.StatusOptimal, Objective: objective, Bound: objective, Values: x}, nil
}

func (m *Model) infeasible() *solver.Solution {
	return &solver.Solution{Status: solver.StatusInfeasible, Bound: m.external(math.Inf(1))}
}

// external converts a minimization-form value back to the model's sense.
func (m *Model) external(v float64) float64 {
	if m.maximize {
		return -v
	}
	return v
}

// groups merges constraints over the same variable set into one bounded group.
// It reports false when some group has no integral count in its bounds.
func (m *Model) groups() ([]group, bool) {
	index := map[string]int{}
	var out []group
	for _, c := range m.constraints {
		if len(c.vars) == 0 {
			if !holds(0, c.sense, c.rhs) {
				return nil, false
			}
			continue
		}
		key := groupKey(c.vars)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, group{vars: c.vars, lo: 0, hi: len(c.vars)})
		}
		g := &out[i]
		if c.sense != solver.GreaterOrEqual {
			g.hi = min(g.hi, int(math.Floor(c.rhs+roundingSlack)))
		}
		if c.sense != solver.LessOrEqual {
			g.lo = max(g.lo, int(math.Ceil(c.rhs-roundingSlack)))
		}
		if g.lo > g.hi {
			return nil, false
		}
	}
	return out, true
}

// membership lists the groups of every variable and splits the groups into
// two sides so that no variable has both of its groups on the same side.
func (m *Model) membership(groups []group) ([][]int, error) {
	memberOf := make([][]int, m.numVars)
	for i, g := range groups {
		for _, v := range g.vars {
			memberOf[v] = append(memberOf[v], i)
			if len(memberOf[v]) > 2 {
				return nil, fmt.Errorf("%w: variable %d is in more than two groups", ErrUnsupportedModel, v)
			}
		}
	}

	adj := make([][]int, len(groups))
	for _, gs := range memberOf {
		if len(gs) == 2 {
			adj[gs[0]] = append(adj[gs[0]], gs[1])
			adj[gs[1]] = append(adj[gs[1]], gs[0])
		}
	}
	colored := make([]bool, len(groups))
	for start := range groups {
		if colored[start] {
			continue
		}
		colored[start] = true
		groups[start].side = 0
		queue := []int{start}
		for len(queue) > 0 {
			g := queue[0]
			queue = queue[1:]
			for _, n := range adj[g] {
				if !colored[n] {
					colored[n] = true
					groups[n].side = 1 - groups[g].side
					queue = append(queue, n)
				} else if groups[n].side == groups[g].side {
					return nil, fmt.Errorf("%w: groups %d and %d overlap on one side", ErrUnsupportedModel, g, n)
				}
			}
		}
	}
	return memberOf, nil
}

func groupKey(vars []int) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func holds(lhs float64, sense solver.Sense, rhs float64) bool {
	switch sense {
	case solver.LessOrEqual:
		return lhs <= rhs+roundingSlack
	case solver.GreaterOrEqual:
		return lhs >= rhs-roundingSlack
	default:
		return math.Abs(lhs-rhs) <= roundingSlack
	}
}

// Fixed node ids of a network; groups follow.
const (
	source = iota
	sink
	superSource
	superSink
	freeLeft
	freeRight
	firstGroup
)

type edge struct {
	from, to int
	// capacity and flow exclude the lower bound, which is moved into excess.
	capacity, flow int
	cost           float64
}

// network is a circulation with lower bounds.
type network struct {
	numNodes int
	edges    []edge
	excess   []int
}

func newNetwork(numGroups int) *network {
	n := firstGroup + numGroups
	return &network{numNodes: n, excess: make([]int, n)}
}

func (n *network) group(i int) int {
	return firstGroup + i
}

// addEdge adds an edge carrying between lo and hi units. Edges with negative
// cost start saturated so that every residual arc has a non-negative cost.
func (n *network) addEdge(from, to, lo, hi int, cost float64) int {
	e := edge{from: from, to: to, capacity: hi - lo, cost: cost}
	n.excess[to] += lo
	n.excess[from] -= lo
	if cost < 0 {
		e.flow = e.capacity
		n.excess[to] += e.capacity
		n.excess[from] -= e.capacity
	}
	n.edges = append(n.edges, e)
	return len(n.edges) - 1
}

// arc is a residual direction of an edge: forward along it or backward against it.
type arc struct {
	edge     int
	backward bool
}

// circulate routes all excess from superSource to superSink along successive
// shortest paths. It reports whether every excess was routed.
func (n *network) circulate(ctx context.Context) (int, bool, error) {
	need := 0
	for v, ex := range n.excess {
		switch {
		case ex > 0:
			n.edges = append(n.edges, edge{from: superSource, to: v, capacity: ex})
			need += ex
		case ex < 0:
			n.edges = append(n.edges, edge{from: v, to: superSink, capacity: -ex})
		}
	}

	g := newResidualGraph(n)
	routed, augmentations := 0, 0
	for routed < need {
		if err := ctx.Err(); err != nil {
			return augmentations, false, err
		}
		shortest := path.DijkstraFrom(simple.Node(superSource), g)
		nodes, _ := shortest.To(superSink)
		if len(nodes) == 0 {
			return augmentations, false, nil
		}

		delta := need - routed
		hops := make([]arc, 0, len(nodes)-1)
		for i := 1; i < len(nodes); i++ {
			a, _, ok := g.cheapest(nodes[i-1].ID(), nodes[i].ID())
			if !ok {
				return augmentations, false, fmt.Errorf("shortest path uses a saturated arc %d->%d", nodes[i-1].ID(), nodes[i].ID())
			}
			hops = append(hops, a)
			delta = min(delta, g.residual(a))
		}
		for v := range g.potential {
			if d := shortest.WeightTo(int64(v)); !math.IsInf(d, 1) {
				g.potential[v] += d
			}
		}
		for _, a := range hops {
			if a.backward {
				n.edges[a.edge].flow -= delta
			} else {
				n.edges[a.edge].flow += delta
			}
		}
		routed += delta
		augmentations++
	}
	return augmentations, true, nil
}

// residualGraph is a live view of the residual network weighted by reduced
// cost. It implements the traversal and weighting that path.DijkstraFrom
// needs, so flow changes and potential updates need no rebuild.
type residualGraph struct {
	net       *network
	potential []float64
	// incident lists the arcs leaving each node.
	incident [][]arc
	// between lists the arcs of each ordered node pair.
	between map[[2]int64][]arc
}

func newResidualGraph(n *network) *residualGraph {
	g := &residualGraph{
		net:       n,
		potential: make([]float64, n.numNodes),
		incident:  make([][]arc, n.numNodes),
		between:   map[[2]int64][]arc{},
	}
	for i := range n.edges {
		for _, a := range []arc{{edge: i}, {edge: i, backward: true}} {
			from, to := g.ends(a)
			g.incident[from] = append(g.incident[from], a)
			key := [2]int64{int64(from), int64(to)}
			g.between[key] = append(g.between[key], a)
		}
	}
	return g
}

func (g *residualGraph) ends(a arc) (int, int) {
	e := g.net.edges[a.edge]
	if a.backward {
		return e.to, e.from
	}
	return e.from, e.to
}

func (g *residualGraph) residual(a arc) int {
	e := g.net.edges[a.edge]
	if a.backward {
		return e.flow
	}
	return e.capacity - e.flow
}

// reducedCost is clamped at zero to absorb rounding in the potentials.
func (g *residualGraph) reducedCost(a arc) float64 {
	e := g.net.edges[a.edge]
	from, to := g.ends(a)
	c := e.cost
	if a.backward {
		c = -c
	}
	return max(0, c+g.potential[from]-g.potential[to])
}

// cheapest returns the open arc from uid to vid with the lowest reduced cost.
func (g *residualGraph) cheapest(uid, vid int64) (arc, float64, bool) {
	var best arc
	bestCost := math.Inf(1)
	found := false
	for _, a := range g.between[[2]int64{uid, vid}] {
		if g.residual(a) == 0 {
			continue
		}
		if c := g.reducedCost(a); !found || c < bestCost {
			best, bestCost, found = a, c, true
		}
	}
	return best, bestCost, found
}

// From implements traverse.Graph.
func (g *residualGraph) From(id int64) graph.Nodes {
	seen := map[int]bool{}
	var out []graph.Node
	for _, a := range g.incident[id] {
		if g.residual(a) == 0 {
			continue
		}
		if _, to := g.ends(a); !seen[to] {
			seen[to] = true
			out = append(out, simple.Node(to))
		}
	}
	return iterator.NewOrderedNodes(out)
}

// Edge implements traverse.Graph.
func (g *residualGraph) Edge(uid, vid int64) graph.Edge {
	if _, _, ok := g.cheapest(uid, vid); !ok {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

// Weight implements path.Weighted.
func (g *residualGraph) Weight(xid, yid int64) (float64, bool) {
	if xid == yid {
		return 0, true
	}
	_, c, ok := g.cheapest(xid, yid)
	if !ok {
		return math.Inf(1), false
	}
	return c, true
}
