// Copyright 2026 The Lingrad Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides automatic differentiation capabilities.
//
// This package implements reverse-mode automatic differentiation
// (backpropagation) using a gradient tape. It wraps any backend to add
// autodiff capabilities.
//
// Example:
//
//	import (
//	    "github.com/lingrad-ml/lingrad/autodiff"
//	    "github.com/lingrad-ml/lingrad/backend/cpu"
//	    "github.com/lingrad-ml/lingrad/tensor"
//	)
//
//	func main() {
//	    backend := autodiff.New(cpu.New())
//	    backend.Tape().StartRecording()
//
//	    x, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
//	    y := x.Mul(x) // y = x², recorded on tape
//
//	    grads := autodiff.Backward(y, backend)
//	    fmt.Println(grads[x.Raw()].AsFloat32()) // dy/dx = 2x = [4]
//	}
package autodiff

import (
	"github.com/lingrad-ml/lingrad/internal/autodiff"
	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
//
// Example:
//
//	base := cpu.New()
//	backend := autodiff.New(base)
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// BackwardCapable is the interface for backends that support backpropagation.
type BackwardCapable = autodiff.BackwardCapable

// Backward computes gradients via backpropagation.
//
// The returned map is keyed by raw tensor: grads[x.Raw()] is the gradient of
// the output with respect to x.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
