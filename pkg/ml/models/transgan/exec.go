// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transgan

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/transgan/pkg/ml/layers/window"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// execKey identifies a compiled generator graph: epochs only change the graph through the
// window mask radius.
type execKey struct {
	radius   int
	training bool
}

// SetTraining enables dropout and stochastic depth in the following calls to Generate.
// Use Config.Seed (or context.Context.SetRNGStateFromSeed) for reproducible training runs.
func (gen *Generator) SetTraining(training bool) {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	gen.training = training
}

// IsTraining reports whether Generate runs in training mode.
func (gen *Generator) IsTraining() bool {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	return gen.training
}

// Generate runs the generator on the backend for the given images, shaped
// [batch, 3, ImgSize, ImgSize], and returns the generated images shaped
// [batch, 3, OutputSize, OutputSize], in the dtype of the input.
//
// One graph is compiled per window mask radius (and training mode) and reused for all epochs
// sharing it, and for any batch size.
func (gen *Generator) Generate(input *tensors.Tensor, epoch int) (output *tensors.Tensor, err error) {
	if input == nil {
		return nil, errors.New("transgan generator requires an input tensor, got nil")
	}
	shape := input.Shape()
	if shape.Rank() != 4 || shape.Dimensions[1] != NumChannels ||
		shape.Dimensions[2] != gen.cfg.ImgSize || shape.Dimensions[3] != gen.cfg.ImgSize || !shape.DType.IsFloat() {
		return nil, errors.Errorf("transgan generator requires float images shaped [batch, %d, %d, %d], got %s",
			NumChannels, gen.cfg.ImgSize, gen.cfg.ImgSize, shape)
	}

	exec, err := gen.exec(epoch)
	if err != nil {
		return nil, err
	}
	var execErr error
	err = TryCatch[error](func() {
		output, execErr = exec.Exec1(input)
	})
	if err == nil {
		err = execErr
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to generate images for epoch %d", epoch)
	}
	return output, nil
}

// exec returns the executor for the given epoch, creating it if needed.
func (gen *Generator) exec(epoch int) (*context.Exec, error) {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	key := execKey{training: gen.training}
	if gen.plan.Masks != nil {
		if radius, masked := window.RadiusForEpoch(epoch); masked {
			key.radius = radius
		}
	}
	if exec, found := gen.execs[key]; found {
		return exec, nil
	}

	training := key.training
	exec, err := context.NewExec(gen.backend, gen.ctx, func(ctx *context.Context, input *Node) *Node {
		ctx.SetTraining(input.Graph(), training)
		return gen.forward(ctx, input, epoch)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create the transgan generator executor")
	}
	klog.V(1).Infof("transgan generator: new executor for window radius %d (0 is unmasked), training=%v",
		key.radius, training)
	gen.execs[key] = exec
	return exec, nil
}
