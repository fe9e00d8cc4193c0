// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transgan

import (
	"os"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// Context hyperparameters read by ConfigFromContext. They match the mapstructure tags of Config.
const (
	ParamVariant        = "variant"
	ParamImgSize        = "img_size"
	ParamPatchSize      = "patch_size"
	ParamBottomWidth    = "bottom_width"
	ParamEmbedDim       = "embed_dim"
	ParamDepth          = "depth"
	ParamUpsampleDepths = "upsample_depths"
	ParamNumHeads       = "num_heads"
	ParamMLPRatio       = "mlp_ratio"
	ParamQKVBias        = "qkv_bias"
	ParamQKScale        = "qk_scale"
	ParamDropRate       = "drop_rate"
	ParamAttnDropRate   = "attn_drop_rate"
	ParamDropPathRate   = "drop_path_rate"
	ParamWindowMask     = "window_mask"
	ParamMaskStage      = "mask_stage"
	ParamMaskBlock      = "mask_block"
	ParamDType          = "dtype"
	ParamSeed           = "seed"
)

// CreateDefaultContext returns a new context with the hyperparameters of the preset
// configuration of the given variant, so they can be listed and overwritten from the command
// line (see commandline.ParseContextSettings).
func CreateDefaultContext(variant string) (*context.Context, error) {
	cfg, err := PresetConfig(variant)
	if err != nil {
		return nil, err
	}
	ctx := context.New()
	if err := ApplyConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return ctx, nil
}

// ApplyConfig sets the root scope hyperparameters of ctx from cfg.
func ApplyConfig(ctx *context.Context, cfg Config) error {
	params := make(map[string]any)
	if err := mapstructure.Decode(cfg.Clone(), &params); err != nil {
		return errors.Wrapf(err, "failed to convert transgan configuration to hyperparameters")
	}
	ctx.InAbsPath(context.RootScope).SetParams(params)
	return nil
}

// ConfigFromContext builds a Config from the root scope hyperparameters of ctx. Hyperparameters
// that are not set take the value of the preset of the configured variant (the low-resolution
// one if no variant is set). Hyperparameters unrelated to the generator are ignored.
//
// The returned configuration is not validated, see Config.Validate.
func ConfigFromContext(ctx *context.Context) (Config, error) {
	cfg, err := PresetConfig(context.GetParamOr(ctx, ParamVariant, VariantLowRes))
	if err != nil {
		return Config{}, err
	}
	params := make(map[string]any)
	ctx.EnumerateParams(func(scope, key string, value any) {
		if scope == context.RootScope {
			params[key] = value
		}
	})
	if err := decodeInto(params, &cfg, false); err != nil {
		return Config{}, errors.WithMessage(err, "failed to read transgan configuration from context")
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML configuration file and sets the corresponding hyperparameters
// in ctx. Keys not in the file keep their current value in ctx, unless the file selects a
// different variant: then they take the value of that variant's preset.
//
// Unknown keys are an error. The resulting configuration is validated and returned.
func LoadConfigFile(ctx *context.Context, path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read transgan configuration file %q", path)
	}
	var fileParams map[string]any
	if err = yaml.Unmarshal(contents, &fileParams); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse transgan configuration file %q", path)
	}

	cfg, err := ConfigFromContext(ctx)
	if err != nil {
		return Config{}, err
	}
	if variant, found := fileParams[ParamVariant].(string); found && variant != cfg.Variant {
		klog.V(1).Infof("configuration file %q selects variant %q, starting from its preset", path, variant)
		if cfg, err = PresetConfig(variant); err != nil {
			return Config{}, errors.WithMessagef(err, "in configuration file %q", path)
		}
	}
	if err = decodeInto(fileParams, &cfg, true); err != nil {
		return Config{}, errors.WithMessagef(err, "in configuration file %q", path)
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, errors.WithMessagef(err, "in configuration file %q", path)
	}
	if err = ApplyConfig(ctx, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeInto decodes the params map into cfg, converting between compatible types
// (e.g. float64 to int for values read from YAML or the command line). Slices are replaced,
// not merged.
func decodeInto(params map[string]any, cfg *Config, errorUnused bool) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ZeroFields:       true,
		ErrorUnused:      errorUnused,
		Result:           cfg,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create configuration decoder")
	}
	if err = decoder.Decode(params); err != nil {
		return errors.Wrap(err, "failed to decode configuration")
	}
	return nil
}
