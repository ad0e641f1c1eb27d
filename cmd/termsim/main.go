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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/llm-d/course-bidding/internal/logging"
	"github.com/llm-d/course-bidding/internal/metrics"
	"github.com/llm-d/course-bidding/internal/term"
	"github.com/llm-d/course-bidding/pkg/config"
)

type rootOptions struct {
	configFile   string
	verbosity    int
	development  bool
	printMetrics bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "termsim",
		Short: "Simulate one term of course bidding and enrollment",
		Long: `termsim draws the offered courses, lets every student spend a fixed
point budget on them and assigns students to courses by solving a 0/1
integer program that maximizes the total winning bid.

Settings are read from defaults, then --config, then TERMSIM_* environment
variables, then command line flags.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "path to a YAML term configuration")
	flags.IntVarP(&opts.verbosity, "verbosity", "v", 0, "log verbosity (1 debug, 2 trace)")
	flags.BoolVar(&opts.development, "dev", false, "human readable development logging")
	flags.BoolVar(&opts.printMetrics, "print-metrics", false, "print the term metrics in Prometheus text format")
	config.RegisterFlags(flags)
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts *rootOptions) error {
	logger, err := logging.NewLogger(opts.development, opts.verbosity)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	ctx = logr.NewContext(ctx, logger)

	v, err := config.NewViper(cmd.Flags(), opts.configFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logger.V(logging.DEBUG).Info("Loaded term configuration", "config", cfg)

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	t, err := term.New(ctx, cfg, term.WithRecorder(recorder))
	if err != nil {
		return err
	}
	if _, err := t.Enroll(ctx); err != nil {
		logger.Error(err, "Enrollment failed", "term", t.ID().String())
		return err
	}
	logger.Info("Term finalized", "term", t.String())

	out := cmd.OutOrStdout()
	if err := writeReport(out, t.Report()); err != nil {
		return err
	}
	if opts.printMetrics {
		return writeMetrics(out, reg)
	}
	return nil
}

func writeReport(w io.Writer, r term.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	return encodeFamilies(w, families)
}

func encodeFamilies(w io.Writer, families []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
