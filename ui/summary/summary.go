// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package summary

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/transgan/pkg/ml/models/transgan"
)

// Generator renders the overview of the generator: configuration, sizes, and one row per stage.
func Generator(gen *transgan.Generator) string {
	var sb strings.Builder
	cfg, plan := gen.Config(), gen.Plan()

	sb.WriteString(TitleStyle.Render("Generator"))
	sb.WriteString("\n")
	overview := newTable([]string{"", ""}, lipgloss.Right, lipgloss.Left)
	overview.row(false, "variant", cfg.Variant)
	overview.row(false, "input", fmt.Sprintf("%dx%d, patches of %dx%d", cfg.ImgSize, cfg.ImgSize, cfg.PatchSize, cfg.PatchSize))
	overview.row(false, "output", fmt.Sprintf("%dx%d", plan.OutputSize, plan.OutputSize))
	overview.row(false, "sequence projections", fmt.Sprint(plan.SeqProjections))
	overview.row(false, "dtype", gen.DType().String())
	overview.row(false, "# variables", humanize.Comma(int64(len(gen.Variables()))))
	overview.row(false, "# parameters", humanize.Comma(int64(gen.NumParameters())))
	overview.row(false, "# bytes", humanize.Bytes(uint64(gen.Memory())))
	sb.WriteString(overview.Render())
	sb.WriteString("\n")

	sb.WriteString(TitleStyle.Render("Stages"))
	sb.WriteString("\n")
	stageParams := parametersPerStage(gen)
	stages := newTable([]string{"Stage", "Grid", "Tokens", "Width", "Blocks", "Window mask", "Drop path", "Parameters"},
		lipgloss.Right)
	for _, stage := range plan.Stages {
		mask := "-"
		if stage.MaskedBlock >= 0 {
			mask = fmt.Sprintf("block %d", stage.MaskedBlock)
		}
		var maxDropPath float64
		for _, block := range stage.Blocks {
			maxDropPath = max(maxDropPath, block.DropPath)
		}
		stages.row(stage.MaskedBlock >= 0,
			fmt.Sprint(stage.Index),
			fmt.Sprintf("%dx%d", stage.Height, stage.Width),
			humanize.Comma(int64(stage.Tokens)),
			humanize.Comma(int64(stage.Dim)),
			fmt.Sprint(len(stage.Blocks)),
			mask,
			fmt.Sprintf("%.3g", maxDropPath),
			humanize.Comma(int64(stageParams[stage.Index])))
	}
	stages.row(false, "decode", fmt.Sprintf("%dx%d", plan.DecodeHeight, plan.DecodeWidth),
		humanize.Comma(int64(plan.DecodeHeight*plan.DecodeWidth)), humanize.Comma(int64(plan.DecodeDim)),
		"-", "-", "-", humanize.Comma(int64(stageParams[-1])))
	sb.WriteString(stages.Render())
	return sb.String()
}

// parametersPerStage counts the parameters of each stage (blocks and positional embedding).
// Parameters outside the stages (patch embedding, sequence projections and decoding) are counted
// under the key -1.
func parametersPerStage(gen *transgan.Generator) map[int]int {
	counts := make(map[int]int)
	prefix := gen.Context().Scope() + context.ScopeSeparator
	for _, v := range gen.Variables() {
		stage := -1
		path := strings.TrimPrefix(v.ScopeAndName(), prefix)
		if _, err := fmt.Sscanf(path, "stage_%d/", &stage); err != nil {
			stage = -1
			if _, err = fmt.Sscanf(path, "pos_embed_%d", &stage); err != nil {
				stage = -1
			}
		}
		counts[stage] += v.Shape().Size()
	}
	return counts
}

// Variables renders one row per generator variable.
func Variables(gen *transgan.Generator) string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("Variables"))
	sb.WriteString("\n")
	t := newTable([]string{"Variable", "Shape", "Size", "Bytes"}, lipgloss.Left, lipgloss.Right)
	for _, v := range gen.Variables() {
		shape := v.Shape()
		t.row(false, v.ScopeAndName(), shape.String(), humanize.Comma(int64(shape.Size())), humanize.Bytes(uint64(shape.Memory())))
	}
	sb.WriteString(t.Render())
	return sb.String()
}

// Hyperparameters renders the hyperparameters of a context.
func Hyperparameters(ctx *context.Context) string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("Hyperparameters"))
	sb.WriteString("\n")
	t := newTable([]string{"Scope", "Name", "Type", "Value"}, lipgloss.Left)
	ctx.EnumerateParams(func(scope, key string, value any) {
		t.row(false, scope, key, fmt.Sprintf("%T", value), fmt.Sprintf("%v", value))
	})
	sb.WriteString(t.Render())
	return sb.String()
}
