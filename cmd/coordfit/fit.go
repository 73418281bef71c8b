// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/curioloop/coordinate/elastic"
)

type fitFlags struct {
	data        string
	target      string
	family      string
	lambda      float64
	alpha       float64
	intercept   bool
	standardize bool
	nonneg      bool
	config      string
	sets        []string
}

func newFitCmd() *cobra.Command {
	var flags fitFlags

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit an elastic-net model",
		Long:  `Fits an elastic-net penalized gaussian or binomial model to a CSV table and prints the coefficients.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd, &flags)
		},
	}

	cmd.Flags().StringVar(&flags.data, "data", "", "CSV file with a header row (required)")
	cmd.Flags().StringVar(&flags.target, "target", "", "Response column, defaults to the last one")
	cmd.Flags().StringVar(&flags.family, "family", string(elastic.Gaussian), "Model family: gaussian, binomial")
	cmd.Flags().Float64Var(&flags.lambda, "lambda", 0.01, "Penalty strength")
	cmd.Flags().Float64Var(&flags.alpha, "alpha", 1, "Elastic-net mixing, 1 for lasso and 0 for ridge")
	cmd.Flags().BoolVar(&flags.intercept, "intercept", true, "Fit an unpenalized intercept")
	cmd.Flags().BoolVar(&flags.standardize, "standardize", true, "Standardize the features before fitting")
	cmd.Flags().BoolVar(&flags.nonneg, "nonneg", false, "Constrain the coefficients to be nonnegative")
	cmd.Flags().StringVar(&flags.config, "config", "", "YAML file of optimizer options")
	cmd.Flags().StringArrayVar(&flags.sets, "set", nil, "Override an optimizer option (name=value)")

	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func runFit(cmd *cobra.Command, flags *fitFlags) error {

	reg, err := buildRegistry(flags.config, flags.sets)
	if err != nil {
		return err
	}

	f, err := os.Open(flags.data)
	if err != nil {
		return fmt.Errorf("failed to open data: %w", err)
	}
	defer f.Close()

	ds, err := readCSV(f, flags.target)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", flags.data, err)
	}
	m, p := ds.x.Dims()
	slog.Info("Loaded data", "rows", m, "features", p, "target", ds.target)

	cfg := &elastic.Config{
		Family:      elastic.Family(flags.family),
		Lambda:      flags.lambda,
		Alpha:       flags.alpha,
		Intercept:   flags.intercept,
		Standardize: flags.standardize,
		Output:      cmd.OutOrStdout(),
	}
	if flags.nonneg {
		cfg.Lower = make([]float64, p)
		cfg.Upper = make([]float64, p)
		for j := range cfg.Upper {
			cfg.Upper[j] = math.Inf(1)
		}
	}

	slog.Debug("Starting fit", "family", cfg.Family, "lambda", cfg.Lambda, "alpha", cfg.Alpha)
	model, err := elastic.Fit(ds.x, ds.y, cfg, reg)
	if err != nil {
		return err
	}

	attrs := []any{
		"status", model.Status.String(),
		"iterations", model.Iter,
		"full_evaluations", model.NumEval,
		"cheap_evaluations", model.NumCheap,
		"objective", model.F,
		"elapsed", model.Time,
	}
	if model.Status.Warning() {
		slog.Warn("Fit stopped early", attrs...)
	} else {
		slog.Info("Fit complete", attrs...)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "TERM\tCOEF\n")
	if flags.intercept {
		_, _ = fmt.Fprintf(tw, "(intercept)\t%.6g\n", model.Intercept)
	}
	for j, name := range ds.features {
		_, _ = fmt.Fprintf(tw, "%s\t%.6g\n", name, model.Coef[j])
	}
	return tw.Flush()
}
