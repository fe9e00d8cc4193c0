// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/transgan/pkg/ml/models/transgan"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// numCheckpointsToKeep in a checkpoint directory.
const numCheckpointsToKeep = 3

// setup holds the context configured from the command line, and optionally its checkpoint.
type setup struct {
	ctx        *context.Context
	checkpoint *checkpoints.Handler
	cfg        transgan.Config
	paramsSet  []string
}

// newSetup creates the context with the generator hyperparameters: the preset of the variant,
// then the configuration file, then the --set settings.
//
// If checkpointDir is not empty, a checkpoint handler is attached to the context: if the
// directory holds a checkpoint, its hyperparameters replace all but the ones given with --set,
// and its variables are loaded on demand. If mustLoad is set, the checkpoint must exist.
func (opts *options) newSetup(checkpointDir string, mustLoad bool) (*setup, error) {
	ctx, err := transgan.CreateDefaultContext(opts.variant)
	if err != nil {
		return nil, err
	}
	if opts.configPath != "" {
		if _, err = transgan.LoadConfigFile(ctx, opts.configPath); err != nil {
			return nil, err
		}
	}
	s := &setup{ctx: ctx}
	s.paramsSet, err = commandline.ParseContextSettings(ctx, opts.settings)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to parse --set=%q", opts.settings)
	}

	if checkpointDir != "" {
		config := checkpoints.Build(ctx)
		if mustLoad {
			config = checkpoints.Load(ctx)
		}
		s.checkpoint, err = config.Dir(checkpointDir).
			ExcludeParams(s.paramsSet...).
			Keep(numCheckpointsToKeep).
			Done()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to open checkpoint %q", checkpointDir)
		}
		hasCheckpoint, err := s.checkpoint.HasCheckpoints()
		if err != nil {
			return nil, err
		}
		if hasCheckpoint && opts.configPath != "" {
			return nil, errors.Errorf("--config cannot be used with the existing checkpoint in %q, "+
				"its hyperparameters are loaded from the checkpoint", checkpointDir)
		}
	}

	s.cfg, err = transgan.ConfigFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err = s.cfg.Validate(); err != nil {
		return nil, err
	}
	if klog.V(1).Enabled() && len(s.paramsSet) > 0 {
		klog.Infof("Hyperparameters set from the command line:\n%s",
			commandline.SprintModifiedContextSettings(ctx, s.paramsSet))
	}
	return s, nil
}

// generator creates the generator of the setup.
func (s *setup) generator(backend backends.Backend) (*transgan.Generator, error) {
	return transgan.New(backend, s.ctx, s.cfg)
}
