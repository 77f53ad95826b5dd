package cpu

import (
	"fmt"

	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// MulScalar multiplies each element of the tensor by a scalar value.
// The scalar's Go type must match the tensor's dtype.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result := newResult("mulscalar", x.Shape(), x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		scaleKernel(result.AsFloat32(), x.AsFloat32(), scalar.(float32), opMul)
	case tensor.Float64:
		scaleKernel(result.AsFloat64(), x.AsFloat64(), scalar.(float64), opMul)
	case tensor.Int32:
		scaleKernel(result.AsInt32(), x.AsInt32(), scalar.(int32), opMul)
	case tensor.Int64:
		scaleKernel(result.AsInt64(), x.AsInt64(), scalar.(int64), opMul)
	default:
		panic(fmt.Sprintf("mulscalar: unsupported dtype %s", x.DType()))
	}

	return result
}

// AddScalar adds a scalar value to each element of the tensor.
// The scalar's Go type must match the tensor's dtype.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result := newResult("addscalar", x.Shape(), x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		scaleKernel(result.AsFloat32(), x.AsFloat32(), scalar.(float32), opAdd)
	case tensor.Float64:
		scaleKernel(result.AsFloat64(), x.AsFloat64(), scalar.(float64), opAdd)
	case tensor.Int32:
		scaleKernel(result.AsInt32(), x.AsInt32(), scalar.(int32), opAdd)
	case tensor.Int64:
		scaleKernel(result.AsInt64(), x.AsInt64(), scalar.(int64), opAdd)
	default:
		panic(fmt.Sprintf("addscalar: unsupported dtype %s", x.DType()))
	}

	return result
}

func scaleKernel[T number](dst, src []T, scalar T, op binOp) {
	for i := range dst {
		dst[i] = apply(src[i], scalar, op)
	}
}
