package milp

import (
	"context"
	"math"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d/course-bidding/internal/logging/logtest"
	"github.com/llm-d/course-bidding/pkg/solver"
)

func terms(vars []solver.Var, coefs ...float64) []solver.Term {
	out := make([]solver.Term, len(vars))
	for i, v := range vars {
		out[i] = solver.Term{Var: v, Coef: coefs[i]}
	}
	return out
}

var _ = Describe("Model", func() {
	var (
		ctx     context.Context
		backend *Backend
	)

	BeforeEach(func() {
		ctx = logr.NewContext(context.Background(), logtest.New(GinkgoT()))
		backend = NewBackend()
	})

	Context("when building a model", func() {
		It("should number variables consecutively", func() {
			m := backend.NewModel("vars")
			Expect(m.AddBinaryVars(2)).To(Equal([]solver.Var{0, 1}))
			Expect(m.AddBinaryVars(3)).To(Equal([]solver.Var{2, 3, 4}))
		})

		It("should reject unknown variables", func() {
			m := backend.NewModel("unknown")
			m.AddBinaryVars(1)
			Expect(m.AddConstraint([]solver.Term{{Var: 3, Coef: 1}}, solver.LessOrEqual, 1)).To(HaveOccurred())
			Expect(m.SetObjective([]solver.Term{{Var: -1, Coef: 1}}, true)).To(HaveOccurred())
		})

		It("should reject non-finite coefficients", func() {
			m := backend.NewModel("nan")
			v := m.AddBinaryVars(1)
			Expect(m.AddConstraint(terms(v, math.NaN()), solver.LessOrEqual, 1)).To(HaveOccurred())
		})

		It("should fail to optimize an empty model", func() {
			_, err := backend.NewModel("empty").Optimize(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("when the relaxation is integral", func() {
		It("should pick the larger item", func() {
			m := backend.NewModel("pick-one")
			v := m.AddBinaryVars(2)
			Expect(m.SetObjective(terms(v, 3, 2), true)).To(Succeed())
			Expect(m.AddConstraint(terms(v, 1, 1), solver.LessOrEqual, 1)).To(Succeed())

			sol, err := m.Optimize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(solver.StatusOptimal))
			Expect(sol.Objective).To(BeNumerically("~", 3, 1e-6))
			Expect(sol.Values).To(Equal([]float64{1, 0}))
		})

		It("should minimize when asked to", func() {
			m := backend.NewModel("cover")
			v := m.AddBinaryVars(3)
			Expect(m.SetObjective(terms(v, 4, 1, 2), false)).To(Succeed())
			Expect(m.AddConstraint(terms(v, 1, 1, 1), solver.GreaterOrEqual, 2)).To(Succeed())

			sol, err := m.Optimize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(solver.StatusOptimal))
			Expect(sol.Objective).To(BeNumerically("~", 3, 1e-6))
			Expect(sol.Values).To(Equal([]float64{0, 1, 1}))
		})
	})

	Context("when branching is needed", func() {
		It("should solve a small knapsack to optimality", func() {
			m := backend.NewModel("knapsack")
			v := m.AddBinaryVars(3)
			Expect(m.SetObjective(terms(v, 5, 4, 3), true)).To(Succeed())
			Expect(m.AddConstraint(terms(v, 2, 3, 1), solver.LessOrEqual, 5)).To(Succeed())
			Expect(m.AddConstraint(terms(v, 4, 1, 2), solver.LessOrEqual, 11)).To(Succeed())
			Expect(m.AddConstraint(terms(v, 3, 4, 2), solver.LessOrEqual, 8)).To(Succeed())

			sol, err := m.Optimize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(solver.StatusOptimal))
			Expect(sol.Objective).To(BeNumerically("~", 9, 1e-6))
			Expect(sol.Values).To(Equal([]float64{1, 1, 0}))
		})

		It("should find the integral optimum below a fractional relaxation", func() {
			m := backend.NewModel("half")
			v := m.AddBinaryVars(2)
			Expect(m.SetObjective(terms(v, 1, 1), true)).To(Succeed())
			Expect(m.AddConstraint(terms(v, 2, 2), solver.LessOrEqual, 3)).To(Succeed())

			sol, err := m.Optimize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(solver.StatusOptimal))
			Expect(sol.Objective).To(BeNumerically("~", 1, 1e-6))
		})
	})

	Context("when no solution exists", func() {
		It("should report an infeasible relaxation", func() {
			m := backend.NewModel("too-many")
			v := m.AddBinaryVars(2)
			Expect(m.SetObjective(terms(v, 1, 1), true)).To(Succeed())
			Expect(m.AddConstraint(terms(v, 1, 1), solver.GreaterOrEqual, 3)).To(Succeed())

			sol, err := m.Optimize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(solver.StatusInfeasible))
		})

		It("should report infeasible when only fractional points satisfy the constraints", func() {
			m := backend.NewModel("fractional-only")
			v := m.AddBinaryVars(2)
			Expect(m.SetObjective(terms(v, 1, 1), true)).To(Succeed())
			Expect(m.AddConstraint(terms(v, 2, 2), solver.LessOrEqual, 1)).To(Succeed())
			Expect(m.AddConstraint(terms(v, 2, 2), solver.GreaterOrEqual, 1)).To(Succeed())

			sol, err := m.Optimize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(solver.StatusInfeasible))
		})
	})

	Context("when the search is cut short", func() {
		It("should report no solution found after the node limit", func() {
			backend.MaxNodes = 1
			m := backend.NewModel("limited")
			v := m.AddBinaryVars(2)
			Expect(m.SetObjective(terms(v, 1, 1), true)).To(Succeed())
			Expect(m.AddConstraint(terms(v, 2, 2), solver.LessOrEqual, 3)).To(Succeed())

			sol, err := m.Optimize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(solver.StatusNoSolutionFound))
			Expect(sol.Bound).To(BeNumerically("~", 1.5, 1e-6))
			Expect(sol.Values).To(BeNil())
		})

		It("should stop on a cancelled context", func() {
			m := backend.NewModel("cancelled")
			v := m.AddBinaryVars(2)
			Expect(m.SetObjective(terms(v, 1, 1), true)).To(Succeed())

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			sol, err := m.Optimize(cancelled)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(solver.StatusNoSolutionFound))
			Expect(math.IsInf(sol.Bound, 1)).To(BeTrue())
		})
	})
})
