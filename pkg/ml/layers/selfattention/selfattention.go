// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package selfattention implements multi-head self-attention over a token sequence, with
// optional epoch-scheduled local window masking.
//
// Example:
//
//	masks, _ := window.NewSet(seqLen)
//	y := selfattention.New(ctx.In("attn"), x, 4).
//		WindowMasks(masks, epoch).
//		Done()
package selfattention

import (
	"math"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/transgan/pkg/ml/layers/window"
)

// MaskFill is the score given to disallowed (query, key) pairs before the softmax.
const MaskFill = -1e9

// Builder configures a self-attention computation. Create it with New, configure it,
// and call Done or DoneWithCoefficients.
type Builder struct {
	ctx               *context.Context
	x                 *Node
	numHeads, headDim int
	qkvBias           bool
	scale             float64
	attnDropout       float64
	projectionDropout float64
	masks             *window.Set
	epoch             int
}

// New creates a self-attention builder for x shaped [batch, seqLen, embedDim].
//
// The embedDim must be divisible by numHeads. Variables are created under the ctx scope:
// "qkv" for the joint query/key/value projection and "proj" for the output projection.
func New(ctx *context.Context, x *Node, numHeads int) *Builder {
	if x.Rank() != 3 {
		Panicf("selfattention.New requires x shaped [batch, seqLen, embedDim], got %s", x.Shape())
	}
	embedDim := x.Shape().Dimensions[2]
	if numHeads <= 0 || embedDim%numHeads != 0 {
		Panicf("selfattention.New: embedDim (%d) must be divisible by numHeads (%d)", embedDim, numHeads)
	}
	b := &Builder{
		ctx:      ctx,
		x:        x,
		numHeads: numHeads,
		headDim:  embedDim / numHeads,
	}
	b.scale = 1.0 / math.Sqrt(float64(b.headDim))
	return b
}

// UseQKVBias defines whether the query/key/value projection uses a bias term. Default is false.
func (b *Builder) UseQKVBias(useBias bool) *Builder {
	b.qkvBias = useBias
	return b
}

// Scale overrides the factor applied to the query·key scores. Default is headDim^-0.5.
// Values <= 0 are ignored.
func (b *Builder) Scale(scale float64) *Builder {
	if scale > 0 {
		b.scale = scale
	}
	return b
}

// AttentionDropout sets the dropout rate applied to the attention coefficients during training.
func (b *Builder) AttentionDropout(rate float64) *Builder {
	b.attnDropout = rate
	return b
}

// ProjectionDropout sets the dropout rate applied to the output projection during training.
func (b *Builder) ProjectionDropout(rate float64) *Builder {
	b.projectionDropout = rate
	return b
}

// WindowMasks enables local window masking: the mask selected by window.RadiusForEpoch(epoch)
// restricts which keys each query attends to. Past the end of the schedule attention is not masked.
//
// The masks must have been built for the same sequence length as x.
func (b *Builder) WindowMasks(masks *window.Set, epoch int) *Builder {
	if masks != nil && masks.SeqLen() != b.x.Shape().Dimensions[1] {
		Panicf("selfattention: window masks built for seqLen=%d, but x has shape %s",
			masks.SeqLen(), b.x.Shape())
	}
	b.masks = masks
	b.epoch = epoch
	return b
}

// Done builds the attention and returns its output, shaped as the input x.
func (b *Builder) Done() *Node {
	output, _ := b.DoneWithCoefficients()
	return output
}

// DoneWithCoefficients builds the attention and returns its output and the attention coefficients,
// shaped [batch, numHeads, seqLen, seqLen]. Each row of the coefficients sums to 1.
func (b *Builder) DoneWithCoefficients() (output, coefficients *Node) {
	ctx, x := b.ctx, b.x
	g := x.Graph()
	dims := x.Shape().Dimensions
	batchSize, seqLen, embedDim := dims[0], dims[1], dims[2]

	qkv := layers.Dense(ctx.In("qkv"), x, b.qkvBias, 3, b.numHeads, b.headDim) // [batch, seq, 3, heads, headDim]
	query := Squeeze(SliceAxis(qkv, 2, AxisElem(0)), 2)
	key := Squeeze(SliceAxis(qkv, 2, AxisElem(1)), 2)
	value := Squeeze(SliceAxis(qkv, 2, AxisElem(2)), 2)

	scores := Einsum("bqhd,bkhd->bhqk", query, key)
	scores = MulScalar(scores, b.scale)
	if b.masks != nil {
		if maskT, _ := b.masks.ForEpoch(b.epoch); maskT != nil {
			scoresDims := scores.Shape().Dimensions
			mask := BroadcastToDims(ConstCachedTensor(g, maskT), scoresDims...)
			fill := BroadcastToDims(Scalar(g, scores.DType(), maskFill(scores.DType())), scoresDims...)
			scores = Where(mask, scores, fill)
		}
	}
	coefficients = Softmax(scores, -1)
	coefficients = layers.DropoutStatic(ctx, coefficients, b.attnDropout)

	output = Einsum("bhqk,bkhd->bqhd", coefficients, value)
	output = Reshape(output, batchSize, seqLen, embedDim)
	output = layers.Dense(ctx.In("proj"), output, true, embedDim)
	output = layers.DropoutStatic(ctx, output, b.projectionDropout)
	return
}

// maskFill returns MaskFill, clamped to what half-precision types can represent.
func maskFill(dtype dtypes.DType) float64 {
	if dtype == dtypes.Float16 {
		return -6e4
	}
	return MaskFill
}
