// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/gomlx/transgan/pkg/ml/models/transgan"
	"github.com/gomlx/transgan/ui/summary"
	"github.com/spf13/cobra"
)

func newSummaryCommand(opts *options) *cobra.Command {
	var (
		checkpointDir string
		showVariables bool
		showParams    bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the stages and parameters of the configured generator, or of the one in a checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSetup(checkpointDir, checkpointDir != "")
			if err != nil {
				return err
			}
			gen, err := s.generator(newBackend())
			if err != nil {
				return err
			}
			parts := []string{summary.Generator(gen)}
			if showVariables {
				parts = append(parts, summary.Variables(gen))
			}
			if showParams {
				parts = append(parts, summary.Hyperparameters(s.ctx))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, "\n"))
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&checkpointDir, "checkpoint", "", "Directory of a checkpoint to describe.")
	flags.BoolVar(&showVariables, "variables", false, "Also list every variable of the generator.")
	flags.BoolVar(&showParams, "params", false, "Also list the hyperparameters.")
	return cmd
}

func newScheduleCommand(opts *options) *cobra.Command {
	var (
		checkpointDir string
		plotPath      string
		numEpochs     int
		epoch         int
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the window mask schedule of the masked attention block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSetup(checkpointDir, checkpointDir != "")
			if err != nil {
				return err
			}
			plan, err := transgan.NewPlan(s.cfg)
			if err != nil {
				return err
			}
			if plan.Masks == nil {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Window mask disabled.")
				return err
			}
			seqLen := plan.Masks.SeqLen()
			if _, err = fmt.Fprintln(cmd.OutOrStdout(), summary.Schedule(seqLen, epoch)); err != nil {
				return err
			}
			if plotPath == "" {
				return nil
			}
			if err = summary.PlotSchedule(plotPath, seqLen, numEpochs); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Schedule plot saved to %q\n", plotPath)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&checkpointDir, "checkpoint", "", "Directory of a checkpoint with the hyperparameters to use.")
	flags.StringVar(&plotPath, "plot", "", "If set, save a plot of the schedule to this file (.png, .svg or .pdf).")
	flags.IntVar(&numEpochs, "epochs", 80, "Number of epochs to plot.")
	flags.IntVar(&epoch, "epoch", -1, "Epoch to highlight in the schedule, if non-negative.")
	return cmd
}
