// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package transformer implements the pre-normalization transformer block used by every stage of
// the progressive generator, with per-block stochastic depth.
package transformer

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/transgan/pkg/ml/layers/mlp"
	"github.com/gomlx/transgan/pkg/ml/layers/selfattention"
	"github.com/gomlx/transgan/pkg/ml/layers/window"
	"github.com/pkg/errors"
)

// LayerNormEpsilon used by both normalizations of the block.
const LayerNormEpsilon = 1e-5

// Block holds the configuration of one transformer block. It's a plain value, fixed when the
// model is constructed: its position in the stack only shows through DropPath.
type Block struct {
	// Dim is the channel width of the tokens.
	Dim int

	// NumHeads of the attention. Dim must be divisible by NumHeads.
	NumHeads int

	// MLPRatio is the hidden width of the feed-forward block relative to Dim.
	MLPRatio float64

	// QKVBias enables the bias of the query/key/value projection.
	QKVBias bool

	// QKScale overrides the attention scale if > 0.
	QKScale float64

	// DropRate is the dropout of the feed-forward block and of the attention output projection.
	DropRate float64

	// AttnDropRate is the dropout of the attention coefficients.
	AttnDropRate float64

	// DropPath is the stochastic depth probability of both residual branches.
	DropPath float64

	// Masks, if set, enables the epoch-scheduled window masking of the attention.
	Masks *window.Set
}

// Validate checks the block configuration.
func (b Block) Validate() error {
	if b.Dim <= 0 || b.NumHeads <= 0 {
		return errors.Errorf("block dim (%d) and number of heads (%d) must be positive", b.Dim, b.NumHeads)
	}
	if b.Dim%b.NumHeads != 0 {
		return errors.Errorf("block dim %d is not divisible by the number of heads %d", b.Dim, b.NumHeads)
	}
	if b.MLPRatio <= 0 {
		return errors.Errorf("block MLP ratio must be positive, got %g", b.MLPRatio)
	}
	for _, rate := range []float64{b.DropRate, b.AttnDropRate, b.DropPath} {
		if rate < 0 || rate >= 1 {
			return errors.Errorf("block dropout rates must be in [0, 1), got %g", rate)
		}
	}
	return nil
}

// HiddenDim is the width of the feed-forward hidden layer.
func (b Block) HiddenDim() int {
	return int(float64(b.Dim) * b.MLPRatio)
}

// Apply runs the block on x, shaped [batch, seqLen, Dim]:
//
//	x = x + DropPath(Attention(Norm(x), epoch))
//	x = x + DropPath(MLP(Norm(x)))
//
// Variables are created under the scopes "norm1", "attn", "norm2" and "mlp" of ctx.
func (b Block) Apply(ctx *context.Context, x *Node, epoch int) *Node {
	if x.Rank() != 3 || x.Shape().Dimensions[2] != b.Dim {
		Panicf("transformer.Block(dim=%d) requires x shaped [batch, seqLen, %d], got %s", b.Dim, b.Dim, x.Shape())
	}
	residual := x
	x = layers.LayerNormalization(ctx.In("norm1"), x, -1).Epsilon(LayerNormEpsilon).Done()
	attn := selfattention.New(ctx.In("attn"), x, b.NumHeads).
		UseQKVBias(b.QKVBias).
		Scale(b.QKScale).
		AttentionDropout(b.AttnDropRate).
		ProjectionDropout(b.DropRate)
	if b.Masks != nil {
		attn = attn.WindowMasks(b.Masks, epoch)
	}
	x = Add(residual, DropPath(ctx, attn.Done(), b.DropPath))

	residual = x
	x = layers.LayerNormalization(ctx.In("norm2"), x, -1).Epsilon(LayerNormEpsilon).Done()
	x = mlp.FeedForward(ctx.In("mlp"), x, b.HiddenDim(), b.DropRate)
	return Add(residual, DropPath(ctx, x, b.DropPath))
}
