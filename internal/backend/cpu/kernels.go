package cpu

import (
	"fmt"

	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// number mirrors the tensor.DType constraint for kernel code.
type number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// binOp selects the arithmetic applied by a binary kernel.
type binOp int

const (
	opAdd binOp = iota
	opSub
	opMul
	opDiv
)

func apply[T number](x, y T, op binOp) T {
	switch op {
	case opAdd:
		return x + y
	case opSub:
		return x - y
	case opMul:
		return x * y
	case opDiv:
		return x / y
	default:
		panic("unknown binary op")
	}
}

// applyInplace performs a op= b. Requires matching shapes and a.IsUnique().
func applyInplace(a, b *tensor.RawTensor, op binOp) {
	switch a.DType() {
	case tensor.Float32:
		inplaceKernel(a.AsFloat32(), b.AsFloat32(), op)
	case tensor.Float64:
		inplaceKernel(a.AsFloat64(), b.AsFloat64(), op)
	case tensor.Int32:
		inplaceKernel(a.AsInt32(), b.AsInt32(), op)
	case tensor.Int64:
		inplaceKernel(a.AsInt64(), b.AsInt64(), op)
	default:
		panic(fmt.Sprintf("inplace: unsupported dtype %s", a.DType()))
	}
}

// applyVectorized performs result = a op b. Requires matching shapes.
func applyVectorized(result, a, b *tensor.RawTensor, op binOp) {
	switch a.DType() {
	case tensor.Float32:
		vectorKernel(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), op)
	case tensor.Float64:
		vectorKernel(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), op)
	case tensor.Int32:
		vectorKernel(result.AsInt32(), a.AsInt32(), b.AsInt32(), op)
	case tensor.Int64:
		vectorKernel(result.AsInt64(), a.AsInt64(), b.AsInt64(), op)
	default:
		panic(fmt.Sprintf("vectorized: unsupported dtype %s", a.DType()))
	}
}

// applyBroadcast performs result = a op b with NumPy-style broadcasting.
func applyBroadcast(result, a, b *tensor.RawTensor, outShape tensor.Shape, op binOp) {
	switch a.DType() {
	case tensor.Float32:
		broadcastKernel(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, op)
	case tensor.Float64:
		broadcastKernel(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, op)
	case tensor.Int32:
		broadcastKernel(result.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape, op)
	case tensor.Int64:
		broadcastKernel(result.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape, op)
	default:
		panic(fmt.Sprintf("broadcast: unsupported dtype %s", a.DType()))
	}
}

func inplaceKernel[T number](a, b []T, op binOp) {
	switch op {
	case opAdd:
		for i := range a {
			a[i] += b[i]
		}
	case opSub:
		for i := range a {
			a[i] -= b[i]
		}
	case opMul:
		for i := range a {
			a[i] *= b[i]
		}
	case opDiv:
		for i := range a {
			a[i] /= b[i]
		}
	}
}

func vectorKernel[T number](dst, a, b []T, op binOp) {
	switch op {
	case opAdd:
		for i := range dst {
			dst[i] = a[i] + b[i]
		}
	case opSub:
		for i := range dst {
			dst[i] = a[i] - b[i]
		}
	case opMul:
		for i := range dst {
			dst[i] = a[i] * b[i]
		}
	case opDiv:
		for i := range dst {
			dst[i] = a[i] / b[i]
		}
	}
}

// broadcastKernel walks every output element and maps its coordinates back to
// the (right-aligned) operand coordinates, treating size-1 dimensions as
// stride 0.
func broadcastKernel[T number](dst, a, b []T, aShape, bShape, outShape tensor.Shape, op binOp) {
	outStrides := outShape.ComputeStrides()
	aStrides := aShape.ComputeStrides()
	bStrides := bShape.ComputeStrides()
	aOffset := len(outShape) - len(aShape)
	bOffset := len(outShape) - len(bShape)

	for i := range dst {
		aIdx, bIdx := 0, 0
		rem := i
		for d := 0; d < len(outShape); d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]

			if ad := d - aOffset; ad >= 0 {
				c := coord
				if aShape[ad] == 1 {
					c = 0
				}
				aIdx += c * aStrides[ad]
			}
			if bd := d - bOffset; bd >= 0 {
				c := coord
				if bShape[bd] == 1 {
					c = 0
				}
				bIdx += c * bStrides[bd]
			}
		}
		dst[i] = apply(a[aIdx], b[bIdx], op)
	}
}
