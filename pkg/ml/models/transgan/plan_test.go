// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transgan

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stageSummary struct {
	side, tokens, dim, blocks, masked int
}

func summarizeStages(plan *Plan) []stageSummary {
	var summaries []stageSummary
	for _, stage := range plan.Stages {
		summaries = append(summaries, stageSummary{stage.Height, stage.Tokens, stage.Dim, len(stage.Blocks), stage.MaskedBlock})
	}
	return summaries
}

func TestPlanLowRes(t *testing.T) {
	cfg := LowResConfig()
	cfg.DropPathRate = 0.2
	plan, err := NewPlan(cfg)
	require.NoError(t, err)
	fmt.Println(plan)

	assert.Equal(t, []stageSummary{
		{8, 64, 384, 5, -1},
		{16, 256, 96, 4, -1},
		{32, 1024, 24, 2, 1},
	}, summarizeStages(plan))
	assert.Equal(t, []int{256, 128, 64}, plan.SeqProjections)
	assert.Equal(t, 64, plan.DecodeHeight)
	assert.Equal(t, 6, plan.DecodeDim)
	assert.Equal(t, 64, plan.OutputSize)
	assert.Equal(t, 11, plan.NumBlocks())

	// Window masks at the token count of the masked stage.
	require.NotNil(t, plan.Masks)
	assert.Equal(t, 1024, plan.Masks.SeqLen())
	for stageIdx, stage := range plan.Stages {
		for blockIdx, block := range stage.Blocks {
			if stageIdx == 2 && blockIdx == 1 {
				assert.Same(t, plan.Masks, block.Masks)
			} else {
				assert.Nil(t, block.Masks, "stage %d block %d", stageIdx, blockIdx)
			}
		}
	}

	// Stochastic depth only on the bottleneck.
	var rates []float64
	for _, block := range plan.Stages[0].Blocks {
		rates = append(rates, block.DropPath)
	}
	assert.InDeltaSlice(t, []float64{0, 0.05, 0.1, 0.15, 0.2}, rates, 1e-12)
	for _, stage := range plan.Stages[1:] {
		for _, block := range stage.Blocks {
			assert.Zero(t, block.DropPath)
		}
	}
}

func TestPlanHighRes(t *testing.T) {
	plan, err := NewPlan(HighResConfig())
	require.NoError(t, err)
	assert.Equal(t, []stageSummary{
		{8, 64, 1024, 5, -1},
		{16, 256, 256, 3, 0},
		{32, 1024, 64, 3, -1},
		{64, 4096, 16, 2, -1},
	}, summarizeStages(plan))
	assert.Equal(t, []int{256, 128, 64, 64}, plan.SeqProjections)
	assert.Equal(t, 4, plan.DecodeDim)
	assert.Equal(t, 128, plan.DecodeHeight)
	assert.Equal(t, 128, plan.OutputSize)
	require.NotNil(t, plan.Masks)
	assert.Equal(t, 256, plan.Masks.SeqLen())
	assert.Same(t, plan.Masks, plan.Stages[1].Blocks[0].Masks)
}

func TestPlanWithoutMask(t *testing.T) {
	cfg := LowResConfig()
	cfg.WindowMask = false
	plan, err := NewPlan(cfg)
	require.NoError(t, err)
	assert.Nil(t, plan.Masks)
	for _, stage := range plan.Stages {
		assert.Equal(t, -1, stage.MaskedBlock)
	}

	cfg.EmbedDim = 100
	_, err = NewPlan(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
