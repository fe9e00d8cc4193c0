// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pixelshuffle

import (
	"fmt"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func TestCheckGrid(t *testing.T) {
	require.NoError(t, CheckGrid(64, 16, 8, 8))
	require.Error(t, CheckGrid(63, 16, 8, 8))
	require.Error(t, CheckGrid(64, 6, 8, 8))
	require.Error(t, CheckGrid(0, 4, 0, 0))
}

func TestUpsample(t *testing.T) {
	// Grid 1x2 with 4 channels: x[n][c] = 10*n + c.
	graphtest.RunTestGraphFn(t, "Upsample([1,2,4])", func(g *Graph) (inputs, outputs []*Node) {
		x := Const(g, [][][]float32{{{0, 1, 2, 3}, {10, 11, 12, 13}}})
		y, h, w := Upsample(x, 1, 2)
		require.Equal(t, 2, h)
		require.Equal(t, 4, w)
		inputs = []*Node{x}
		outputs = []*Node{Squeeze(y, 0, 2)}
		return
	}, []any{
		// Row 0 takes channels 0 and 1 of each input position, row 1 takes channels 2 and 3.
		[]float32{0, 1, 10, 11, 2, 3, 12, 13},
	}, -1)
}

func TestUpsampleShapes(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	for _, tc := range []struct{ batch, h, w, c int }{
		{1, 1, 1, 4},
		{2, 3, 5, 8},
		{3, 4, 4, 64},
		{2, 8, 2, 12},
	} {
		name := fmt.Sprintf("batch=%d,grid=%dx%d,channels=%d", tc.batch, tc.h, tc.w, tc.c)
		t.Run(name, func(t *testing.T) {
			shape := shapes.Make(dtypes.Float32, tc.batch, tc.h*tc.w, tc.c)
			var newH, newW int
			exec := MustNewExec(backend, func(g *Graph) (up, roundTrip *Node) {
				x := IotaFull(g, shape)
				up, newH, newW = Upsample(x, tc.h, tc.w)
				var backH, backW int
				roundTrip, backH, backW = Downsample(up, newH, newW)
				require.Equal(t, tc.h, backH)
				require.Equal(t, tc.w, backW)
				roundTrip = Equal(roundTrip, x)
				roundTrip = ReduceAllMin(ConvertDType(roundTrip, dtypes.Int32))
				return
			})
			outputs := exec.MustExec()
			assert.Equal(t, 2*tc.h, newH)
			assert.Equal(t, 2*tc.w, newW)
			assert.Equal(t, []int{tc.batch, 4 * tc.h * tc.w, tc.c / 4}, outputs[0].Shape().Dimensions)
			assert.Equal(t, int32(1), tensors.ToScalar[int32](outputs[1]), "round-trip should recover the input exactly")

			// A pure permutation: all values are kept.
			got := tensors.MustCopyFlatData[float32](outputs[0])
			seen := make([]bool, len(got))
			for _, v := range got {
				seen[int(v)] = true
			}
			for i, ok := range seen {
				assert.Truef(t, ok, "value %d missing from upsampled output", i)
			}
		})
	}
}

func TestUpsamplePreconditions(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	// Sequence length doesn't match the grid.
	require.Panics(t, func() {
		_ = MustNewExec(backend, func(g *Graph) *Node {
			y, _, _ := Upsample(IotaFull(g, shapes.Make(dtypes.Float32, 1, 6, 8)), 2, 2)
			return y
		}).MustExec()
	})
	// Channels not divisible by 4.
	require.Panics(t, func() {
		_ = MustNewExec(backend, func(g *Graph) *Node {
			y, _, _ := Upsample(IotaFull(g, shapes.Make(dtypes.Float32, 1, 4, 6)), 2, 2)
			return y
		}).MustExec()
	})
}
