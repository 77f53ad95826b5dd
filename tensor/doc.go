// Copyright 2026 The Lingrad Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for tensor operations in lingrad.
//
// # Overview
//
// The package defines core interfaces and types for type-safe tensor
// operations:
//   - Tensor[T, B]: high-level generic tensor with type safety
//   - RawTensor: low-level tensor for advanced use cases
//   - Backend: interface for device-specific compute implementations
//   - Shape, DataType, Device: core type definitions
//
// # Basic Usage
//
//	import (
//	    "github.com/lingrad-ml/lingrad/backend/cpu"
//	    "github.com/lingrad-ml/lingrad/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	    z := x.Add(y) // Element-wise addition
//	}
//
// # Gradients
//
// Wrap the backend with autodiff to record operations for backpropagation:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	x, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
//	y := x.Mul(x)
//
//	grads := autodiff.Backward(y, backend)
package tensor
