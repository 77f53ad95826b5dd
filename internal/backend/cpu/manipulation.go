package cpu

import (
	"fmt"

	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// Reshape returns a tensor with the same data and a new shape.
// The element count must be preserved.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements()))
	}

	result := newResult("reshape", newShape, t.DType(), cpu.device)
	copy(result.Data(), t.Data()[:t.ByteSize()])
	return result
}

// Transpose permutes the tensor's dimensions.
// If axes is empty, all dimensions are reversed (standard transpose for 2D).
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: expected %d axes, got %d", ndim, len(axes)))
	}

	seen := make([]bool, ndim)
	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes %v for %dD tensor", axes, ndim))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	result := newResult("transpose", outShape, t.DType(), cpu.device)

	switch t.DType() {
	case tensor.Float32:
		transposeKernel(result.AsFloat32(), t.AsFloat32(), shape, outShape, axes)
	case tensor.Float64:
		transposeKernel(result.AsFloat64(), t.AsFloat64(), shape, outShape, axes)
	case tensor.Int32:
		transposeKernel(result.AsInt32(), t.AsInt32(), shape, outShape, axes)
	case tensor.Int64:
		transposeKernel(result.AsInt64(), t.AsInt64(), shape, outShape, axes)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}

	return result
}

// transposeKernel maps each output coordinate back through the axes
// permutation: output dim d reads source dim axes[d].
func transposeKernel[T number](dst, src []T, srcShape, outShape tensor.Shape, axes []int) {
	outStrides := outShape.ComputeStrides()
	srcStrides := srcShape.ComputeStrides()

	for i := range dst {
		rem := i
		srcIdx := 0
		for d := 0; d < len(axes); d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			srcIdx += coord * srcStrides[axes[d]]
		}
		dst[i] = src[srcIdx]
	}
}
