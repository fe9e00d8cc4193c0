// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transformer

import (
	"fmt"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/transgan/pkg/ml/layers/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func TestLinearDropPathRates(t *testing.T) {
	assert.Equal(t, []float64{0, 0.05, 0.1}, LinearDropPathRates(0.1, 3))
	assert.Equal(t, []float64{0}, LinearDropPathRates(0.3, 1))
	assert.Empty(t, LinearDropPathRates(0.3, 0))
	rates := LinearDropPathRates(0.2, 5)
	assert.InDeltaSlice(t, []float64{0, 0.05, 0.1, 0.15, 0.2}, rates, 1e-12)
}

func TestDropPath(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	require.NoError(t, ctx.SetRNGStateFromSeed(42))
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, g *Graph) []*Node {
		ctx.SetTraining(g, true)
		ones := Ones(g, shapes.Make(dtypes.Float32, 10_000, 4, 4))
		dropped := DropPath(ctx, ones, 0.25)
		perExample := ReduceMean(dropped, 1, 2)
		// Each example is either fully dropped or fully kept (and rescaled).
		isZero := ConvertDType(Equal(perExample, ScalarZero(g, dtypes.Float32)), dtypes.Float32)
		return []*Node{ReduceAllMean(isZero), ReduceAllMean(dropped), ReduceAllMax(dropped)}
	})
	outputs := exec.MustExec()
	droppedRatio := tensors.ToScalar[float32](outputs[0])
	mean := tensors.ToScalar[float32](outputs[1])
	maxValue := tensors.ToScalar[float32](outputs[2])
	fmt.Printf("DropPath(0.25): dropped %.2f%%, mean=%.3f\n", 100*droppedRatio, mean)
	assert.InDelta(t, 0.25, droppedRatio, 0.02)
	assert.InDelta(t, 1.0, mean, 0.03)
	assert.InDelta(t, 1.0/0.75, maxValue, 1e-5)

	// Not training: identity.
	y := context.MustExecOnce(backend, context.New(), func(ctx *context.Context, g *Graph) *Node {
		return DropPath(ctx, Ones(g, shapes.Make(dtypes.Float32, 3, 2)), 0.5)
	})
	assert.Equal(t, [][]float32{{1, 1}, {1, 1}, {1, 1}}, y.Value())
}

func TestBlockValidate(t *testing.T) {
	require.NoError(t, Block{Dim: 16, NumHeads: 4, MLPRatio: 4}.Validate())
	require.Error(t, Block{Dim: 16, NumHeads: 3, MLPRatio: 4}.Validate())
	require.Error(t, Block{Dim: 16, NumHeads: 4, MLPRatio: 0}.Validate())
	require.Error(t, Block{Dim: 16, NumHeads: 4, MLPRatio: 4, DropPath: 1}.Validate())
	assert.Equal(t, 64, Block{Dim: 16, NumHeads: 4, MLPRatio: 4}.HiddenDim())
}

func TestBlockApply(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	masks, err := window.NewSet(16)
	require.NoError(t, err)
	block := Block{Dim: 8, NumHeads: 2, MLPRatio: 2, DropRate: 0.1, AttnDropRate: 0.1, DropPath: 0.2, Masks: masks}
	require.NoError(t, block.Validate())

	ctx := context.New()
	require.NoError(t, ctx.SetRNGStateFromSeed(7))
	input := tensors.FromShape(shapes.Make(dtypes.Float32, 2, 16, 8))
	tensors.MustMutableFlatData[float32](input, func(flat []float32) {
		for ii := range flat {
			flat[ii] = float32(ii%13)/13 - 0.5
		}
	})
	for _, epoch := range []int{0, 25, 100} {
		exec := context.MustNewExec(backend, ctx.Checked(false), func(ctx *context.Context, x *Node) *Node {
			return block.Apply(ctx.In("block"), x, epoch)
		})
		// Inference: dropout and stochastic depth are disabled, so two calls match exactly.
		first := exec.MustExec(input)[0]
		second := exec.MustExec(input)[0]
		assert.Equal(t, []int{2, 16, 8}, first.Shape().Dimensions)
		assert.True(t, first.Equal(second), "epoch %d: inference should be deterministic", epoch)
	}

	var names []string
	for v := range ctx.IterVariables() {
		names = append(names, v.ScopeAndName())
	}
	for _, want := range []string{
		"/block/norm1/layer_normalization/gain",
		"/block/attn/qkv/dense/weights",
		"/block/attn/proj/dense/weights",
		"/block/norm2/layer_normalization/offset",
		"/block/mlp/fc1/dense/weights",
		"/block/mlp/fc2/dense/biases",
	} {
		assert.Contains(t, names, want)
	}
}
