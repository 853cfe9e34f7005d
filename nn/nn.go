// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn exposes the parameter-handling side of the neural network
// building blocks.
//
// Models in this module (see package cachedbert) expose their weights as
// Params: dotted names mapped to shared *Parameter handles. Tied weights
// appear under several names with the same handle.
//
// Example:
//
//	model := cachedbert.NewDecoderLM(cachedbert.GPT2SmallConfig(), cpu.New())
//	fmt.Println(nn.CountParameters(model)) // 124441344
package nn

import (
	"github.com/born-ml/cachedbert/internal/nn"
)

// Module is implemented by every model and layer that owns parameters.
type Module = nn.Module

// Params maps dotted parameter names to parameters.
type Params = nn.Params

// Parameter is a shared handle around a parameter tensor.
type Parameter = nn.Parameter

// CountParameters returns the number of scalar weights in m, counting tied
// parameters once.
func CountParameters(m Module) int {
	return nn.CountParameters(m)
}
