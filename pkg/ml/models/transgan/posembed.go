// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transgan

import (
	"fmt"
	"math/rand/v2"

	"github.com/gomlx/compute/dtypes/float16"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Initialization of the positional embeddings: normal distribution with the given standard
// deviation, with values outside [PosEmbedLowerBound, PosEmbedUpperBound] redrawn.
const (
	PosEmbedStdDev     = 0.02
	PosEmbedLowerBound = -2.0
	PosEmbedUpperBound = 2.0
)

// PosEmbedName returns the name of the positional embedding variable of the given stage.
func PosEmbedName(stage int) string {
	return fmt.Sprintf("pos_embed_%d", stage)
}

// truncatedNormal samples n values of a normal distribution (mean 0, stddev) truncated to [lower, upper].
func truncatedNormal(rng *rand.Rand, n int, stddev, lower, upper float64) []float64 {
	dist := distuv.Normal{Mu: 0, Sigma: stddev, Src: rng}
	values := make([]float64, n)
	for ii := range values {
		v := dist.Rand()
		for v < lower || v > upper {
			v = dist.Rand()
		}
		values[ii] = v
	}
	return values
}

// initialPosEmbed returns the initial value of a positional embedding shaped [1, tokens, dim].
func initialPosEmbed(rng *rand.Rand, dtype dtypes.DType, tokens, dim int) (*tensors.Tensor, error) {
	values := truncatedNormal(rng, tokens*dim, PosEmbedStdDev, PosEmbedLowerBound, PosEmbedUpperBound)
	switch dtype {
	case dtypes.Float64:
		return tensors.FromFlatDataAndDimensions(values, 1, tokens, dim), nil
	case dtypes.Float32:
		flat := make([]float32, len(values))
		for ii, v := range values {
			flat[ii] = float32(v)
		}
		return tensors.FromFlatDataAndDimensions(flat, 1, tokens, dim), nil
	case dtypes.Float16:
		flat := make([]float16.Float16, len(values))
		for ii, v := range values {
			flat[ii] = float16.FromFloat32(float32(v))
		}
		return tensors.FromFlatDataAndDimensions(flat, 1, tokens, dim), nil
	}
	return nil, errors.Errorf("positional embeddings of dtype %s not supported", dtype)
}

// newPosEmbedRNG returns the random number generator used to initialize the positional embeddings.
func newPosEmbedRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}
