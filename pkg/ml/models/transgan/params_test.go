// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transgan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDefaultContext(t *testing.T) {
	for _, variant := range []string{VariantHighRes, VariantLowRes} {
		ctx, err := CreateDefaultContext(variant)
		require.NoError(t, err)
		assert.Equal(t, variant, context.GetParamOr(ctx, ParamVariant, ""))
		cfg, err := ConfigFromContext(ctx)
		require.NoError(t, err)
		want, _ := PresetConfig(variant)
		assert.Equal(t, want, cfg)
	}
	_, err := CreateDefaultContext("huge")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigFromContextSettings(t *testing.T) {
	ctx, err := CreateDefaultContext(VariantLowRes)
	require.NoError(t, err)
	ctx.SetParam("batch_size", 16) // Unrelated hyperparameters are ignored.
	paramsSet, err := commandline.ParseContextSettings(ctx,
		"embed_dim=192;upsample_depths=3,1;drop_path_rate=0.1;qkv_bias=true;mask_stage=0;mask_block=2;dtype=float64;seed=7")
	require.NoError(t, err)
	assert.Len(t, paramsSet, 8)

	cfg, err := ConfigFromContext(ctx)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 192, cfg.EmbedDim)
	assert.Equal(t, []int{3, 1}, cfg.UpsampleDepths)
	assert.Equal(t, 0.1, cfg.DropPathRate)
	assert.True(t, cfg.QKVBias)
	assert.Equal(t, 0, cfg.MaskStage)
	assert.Equal(t, 2, cfg.MaskBlock)
	assert.Equal(t, "float64", cfg.DType)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 8, cfg.BottomWidth, "unset values keep the preset")

	// Round trip through ApplyConfig.
	other := context.New()
	require.NoError(t, ApplyConfig(other, cfg))
	got, err := ConfigFromContext(other)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile := func(name, contents string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
		return path
	}

	// Same variant: only the given keys change.
	ctx, err := CreateDefaultContext(VariantLowRes)
	require.NoError(t, err)
	ctx.SetParam(ParamDepth, 2)
	cfg, err := LoadConfigFile(ctx, writeFile("small.yaml", `
num_heads: 2
upsample_depths: [1, 1]
mlp_ratio: 2
drop_rate: 0.05
`))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.NumHeads)
	assert.Equal(t, []int{1, 1}, cfg.UpsampleDepths)
	assert.Equal(t, 2.0, cfg.MLPRatio)
	assert.Equal(t, 0.05, cfg.DropRate)
	assert.Equal(t, 2, cfg.Depth, "values set in the context are kept")
	assert.Equal(t, 2, context.GetParamOr(ctx, ParamNumHeads, 0))
	fromCtx, err := ConfigFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, fromCtx)

	// Different variant: starts from that variant's preset.
	cfg, err = LoadConfigFile(ctx, writeFile("highres.yaml", "variant: highres\nembed_dim: 512\n"))
	require.NoError(t, err)
	want := HighResConfig()
	want.EmbedDim = 512
	assert.Equal(t, want, cfg)

	// Unknown keys, invalid values and missing files are errors.
	_, err = LoadConfigFile(ctx, writeFile("typo.yaml", "embed_dims: 512\n"))
	require.Error(t, err)
	_, err = LoadConfigFile(ctx, writeFile("invalid.yaml", "patch_size: 7\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = LoadConfigFile(ctx, writeFile("broken.yaml", "embed_dim: [1\n"))
	require.Error(t, err)
	_, err = LoadConfigFile(ctx, filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
