// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package mlp implements the position-wise feed-forward block of the transformer: two dense
// layers with an exact GELU activation in between.
package mlp

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// DefaultHiddenRatio is the hidden width, relative to the input width, used when none is given.
const DefaultHiddenRatio = 4

// Gelu is the exact GELU activation, x * 0.5 * (1 + erf(x/√2)), not the tanh approximation.
func Gelu(x *Node) *Node {
	return activations.Gelu(x)
}

// FeedForward applies fc1 -> Gelu -> dropout -> fc2 -> dropout on the last axis of x.
// The output has the same shape as x.
//
// If hiddenDim <= 0, DefaultHiddenRatio times the input width is used. Dropout is only
// active during training and when dropRate > 0.
//
// Variables are created under the scopes "fc1" and "fc2".
func FeedForward(ctx *context.Context, x *Node, hiddenDim int, dropRate float64) *Node {
	if x.Rank() < 1 {
		Panicf("mlp.FeedForward requires x with rank >= 1, got %s", x.Shape())
	}
	inputDim := x.Shape().Dimensions[x.Rank()-1]
	if hiddenDim <= 0 {
		hiddenDim = DefaultHiddenRatio * inputDim
	}
	x = layers.Dense(ctx.In("fc1"), x, true, hiddenDim)
	x = Gelu(x)
	x = layers.DropoutStatic(ctx, x, dropRate)
	x = layers.Dense(ctx.In("fc2"), x, true, inputDim)
	x = layers.DropoutStatic(ctx, x, dropRate)
	return x
}
