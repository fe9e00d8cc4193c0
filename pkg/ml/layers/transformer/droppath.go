// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transformer

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// DropPath zeroes whole examples of the residual branch x with probability prob, and rescales the
// surviving examples by 1/(1-prob) so the expected value is unchanged.
//
// It's a no-op if not training or if prob <= 0.
func DropPath(ctx *context.Context, x *Node, prob float64) *Node {
	g := x.Graph()
	if prob <= 0 || !ctx.IsTraining(g) {
		return x
	}
	x = layers.DropPath(ctx, x, Scalar(g, x.DType(), prob))
	return DivScalar(x, 1-prob)
}

// LinearDropPathRates returns depth drop path probabilities, growing linearly from 0 to maxRate.
func LinearDropPathRates(maxRate float64, depth int) []float64 {
	rates := make([]float64, depth)
	if depth <= 1 {
		return rates
	}
	for ii := range rates {
		rates[ii] = maxRate * float64(ii) / float64(depth-1)
	}
	return rates
}
