package cpu

import (
	"fmt"

	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// Sum reduces all elements to their total, returned as a shape-[1] tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := newResult("sum", tensor.Shape{1}, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = totalKernel(x.AsFloat32())
	case tensor.Float64:
		result.AsFloat64()[0] = totalKernel(x.AsFloat64())
	case tensor.Int32:
		result.AsInt32()[0] = totalKernel(x.AsInt32())
	case tensor.Int64:
		result.AsInt64()[0] = totalKernel(x.AsInt64())
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}

// Mean reduces all elements to their mean, returned as a shape-[1] tensor.
// Only float dtypes are supported.
func (cpu *CPUBackend) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	result := cpu.Sum(x)
	n := x.NumElements()

	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] /= float32(n)
	case tensor.Float64:
		result.AsFloat64()[0] /= float64(n)
	default:
		panic(fmt.Sprintf("mean: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("sumdim: dimension %d out of range for %dD tensor", dim, ndim))
	}

	outShape := reducedShape(shape, dim, keepDim)
	result := newResult("sumdim", outShape, x.DType(), cpu.device)

	// Split the iteration space at dim: index = (outer*dimSize + d)*inner + in.
	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < ndim; i++ {
		inner *= shape[i]
	}

	switch x.DType() {
	case tensor.Float32:
		sumDimKernel(x.AsFloat32(), result.AsFloat32(), outer, shape[dim], inner)
	case tensor.Float64:
		sumDimKernel(x.AsFloat64(), result.AsFloat64(), outer, shape[dim], inner)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

// MeanDim computes the mean of tensor elements along the specified dimension.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := cpu.SumDim(x, dim, keepDim)

	shape := x.Shape()
	if dim < 0 {
		dim = len(shape) + dim
	}
	divisor := shape[dim]

	switch result.DType() {
	case tensor.Float32:
		data := result.AsFloat32()
		d := float32(divisor)
		for i := range data {
			data[i] /= d
		}
	case tensor.Float64:
		data := result.AsFloat64()
		d := float64(divisor)
		for i := range data {
			data[i] /= d
		}
	}

	return result
}

// reducedShape computes the output shape of a dim reduction.
// A fully reduced 1D tensor keeps shape [1] rather than going scalar.
func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	for i, d := range shape {
		if i != dim {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = tensor.Shape{1}
	}
	return out
}

func totalKernel[T number](data []T) T {
	var sum T
	for _, v := range data {
		sum += v
	}
	return sum
}

func sumDimKernel[T number](src, dst []T, outer, dimSize, inner int) {
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var sum T
			base := o*dimSize*inner + in
			for d := 0; d < dimSize; d++ {
				sum += src[base+d*inner]
			}
			dst[o*inner+in] = sum
		}
	}
}
