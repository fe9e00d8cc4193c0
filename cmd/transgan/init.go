// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// defaultRunsDir is where init creates a checkpoint directory if none is given.
const defaultRunsDir = "runs"

func newInitCommand(opts *options) *cobra.Command {
	var checkpointDir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a generator and save its initial variables and hyperparameters to a checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkpointDir == "" {
				checkpointDir = filepath.Join(defaultRunsDir, uuid.NewString())
			}
			s, err := opts.newSetup(checkpointDir, false)
			if err != nil {
				return err
			}
			hasCheckpoint, err := s.checkpoint.HasCheckpoints()
			if err != nil {
				return err
			}
			if hasCheckpoint {
				return errors.Errorf("%q already holds a checkpoint", s.checkpoint.Dir())
			}
			gen, err := s.generator(newBackend())
			if err != nil {
				return err
			}
			if err = s.checkpoint.Save(); err != nil {
				return errors.WithMessagef(err, "failed to save the generator")
			}
			klog.V(1).Infof("Saved %s to %s", gen, s.checkpoint)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created %s generator with %s parameters in %q\n",
				s.cfg.Variant, humanize.Comma(int64(gen.NumParameters())), s.checkpoint.Dir())
			return err
		},
	}
	cmd.Flags().StringVar(&checkpointDir, "checkpoint", "",
		fmt.Sprintf("Directory of the new checkpoint. Defaults to a new directory under %q.", defaultRunsDir))
	return cmd
}
