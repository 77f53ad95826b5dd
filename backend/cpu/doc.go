// Copyright 2026 The Lingrad Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Float32, Float64, Int32, and Int64 support
//   - NumPy-compatible broadcasting
//   - Parallel matrix multiplication for large matrices
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
//	    x := tensor.Randn[float32](tensor.Shape{32, 3}, backend)
//	    y := tensor.Randn[float32](tensor.Shape{3, 1}, backend)
//	    z := x.MatMul(y) // Shape: [32, 1]
//	}
package cpu
