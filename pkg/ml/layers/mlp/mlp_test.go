// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mlp

import (
	"math"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func constantInitializer(value float64) context.VariableInitializer {
	return func(g *Graph, shape shapes.Shape) *Node {
		return BroadcastToDims(Scalar(g, shape.DType, value), shape.Dimensions...)
	}
}

func TestFeedForward(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New().WithInitializer(constantInitializer(0.5))
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
		return FeedForward(ctx.In("mlp"), x, 3, 0.1)
	})
	got := exec.MustExec([][]float32{{1, 2}})[0].Value().([][]float32)

	// All weights and biases are 0.5: every hidden unit is 0.5*(1+2)+0.5 = 2.
	gelu := func(x float64) float64 { return x * 0.5 * (1 + math.Erf(x/math.Sqrt2)) }
	want := 3*0.5*gelu(2) + 0.5
	require.Len(t, got, 1)
	require.Len(t, got[0], 2)
	for _, v := range got[0] {
		// The tanh approximation would be off by ~1.5e-4.
		assert.InDelta(t, want, float64(v), 1e-5)
	}

	shapesByName := make(map[string][]int)
	for v := range ctx.IterVariables() {
		shapesByName[v.ScopeAndName()] = v.Shape().Dimensions
	}
	assert.Equal(t, []int{2, 3}, shapesByName["/mlp/fc1/dense/weights"])
	assert.Equal(t, []int{3, 2}, shapesByName["/mlp/fc2/dense/weights"])
}

func TestFeedForwardDefaultHidden(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	y := context.MustExecOnce(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		x := IotaFull(g, shapes.Make(dtypes.Float32, 2, 5, 6))
		return FeedForward(ctx, x, 0, 0)
	})
	assert.Equal(t, []int{2, 5, 6}, y.Shape().Dimensions)
	v := ctx.GetVariableByScopeAndName("/fc1/dense", "weights")
	require.NotNil(t, v)
	assert.Equal(t, []int{6, 24}, v.Shape().Dimensions)
}

func TestGelu(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	inputs := []float64{-3, -1, -0.5, 0, 0.5, 1, 3}
	result, err := ExecOnce(backend, Gelu, inputs)
	require.NoError(t, err)
	got := result.Value().([]float64)
	require.Len(t, got, len(inputs))
	for ii, x := range inputs {
		want := x * 0.5 * (1 + math.Erf(x/math.Sqrt2))
		assert.InDelta(t, want, got[ii], 1e-6, "gelu(%g)", x)
	}
}
