// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transgan

import (
	"slices"
	"strings"

	"github.com/gomlx/gomlx/pkg/ml/context"
)

// Variables returns all the generator variables, including the positional embeddings,
// sorted by scope and name. Use Variable.ScopeAndName to address them individually.
func (gen *Generator) Variables() []*context.Variable {
	var vars []*context.Variable
	for v := range gen.ctx.IterVariablesInScope() {
		vars = append(vars, v)
	}
	slices.SortFunc(vars, func(a, b *context.Variable) int {
		return strings.Compare(a.ScopeAndName(), b.ScopeAndName())
	})
	return vars
}

// PositionalEmbeddings returns the positional embedding variable of each stage, indexed by
// stage (0 is the bottleneck). Each is shaped [1, stage tokens, stage width].
func (gen *Generator) PositionalEmbeddings() []*context.Variable {
	return slices.Clone(gen.posEmbeds)
}

// NumParameters returns the number of scalar values in the generator variables.
func (gen *Generator) NumParameters() int {
	var total int
	for v := range gen.ctx.IterVariablesInScope() {
		total += v.Shape().Size()
	}
	return total
}

// Memory returns the number of bytes used by the generator variables.
func (gen *Generator) Memory() uintptr {
	var total uintptr
	for v := range gen.ctx.IterVariablesInScope() {
		total += v.Shape().Memory()
	}
	return total
}
