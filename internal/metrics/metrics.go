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

// Package metrics exposes Prometheus metrics for bidding terms.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/llm-d/course-bidding/pkg/solver"
)

const namespace = "coursebid"

// Recorder owns the term metrics. It implements solver.Observer.
type Recorder struct {
	solveDuration *prometheus.HistogramVec
	solves        *prometheus.CounterVec
	objective     prometheus.Gauge
	enrolled      *prometheus.GaugeVec
	bids          *prometheus.CounterVec
}

var _ solver.Observer = &Recorder{}

// NewRecorder creates the metrics and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		solveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "duration_seconds",
			Help:      "Wall-clock time of assignment solves.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"status"}),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "solves_total",
			Help:      "Assignment solves by reported status.",
		}, []string{"status"}),
		objective: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "objective",
			Help:      "Objective value of the last solve.",
		}),
		enrolled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "course_enrollment",
			Help:      "Students enrolled per offered course.",
		}, []string{"course"}),
		bids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bid_points_total",
			Help:      "Bid points placed per offered course.",
		}, []string{"course"}),
	}
	for _, c := range []prometheus.Collector{r.solveDuration, r.solves, r.objective, r.enrolled, r.bids} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveSolve implements solver.Observer.
func (r *Recorder) ObserveSolve(status solver.Status, elapsed time.Duration, objective float64) {
	label := status.String()
	r.solveDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	r.solves.WithLabelValues(label).Inc()
	if status == solver.StatusOptimal || status == solver.StatusFeasible {
		r.objective.Set(objective)
	}
}

// RecordBids adds the points bid on each course.
func (r *Recorder) RecordBids(courses []string, totals []int) {
	for j, c := range courses {
		r.bids.WithLabelValues(c).Add(float64(totals[j]))
	}
}

// RecordEnrollment sets the enrollment gauge of every course in byCourse.
func (r *Recorder) RecordEnrollment(byCourse map[string][]int) {
	for c, ids := range byCourse {
		r.enrolled.WithLabelValues(c).Set(float64(len(ids)))
	}
}
