// Package cpu implements the CPU compute backend with pure Go kernels.
package cpu

import (
	"fmt"

	"github.com/lingrad-ml/lingrad/internal/parallel"
	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
// Element-wise binary operations take one of three paths:
//   - inplace, when both shapes match and the left operand's buffer is unique
//   - vectorized, when shapes match but the buffer is shared
//   - broadcast, when NumPy-style broadcasting is needed
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", opAdd, a, b)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", opSub, a, b)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", opMul, a, b)
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", opDiv, a, b)
}

// binary runs one element-wise binary operation through the three paths.
func (cpu *CPUBackend) binary(name string, op binOp, a, b *tensor.RawTensor) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		if a.IsUnique() {
			applyInplace(a, b, op)
			return a
		}
		result := newResult(name, outShape, a.DType(), cpu.device)
		applyVectorized(result, a, b, op)
		return result
	}

	result := newResult(name, outShape, a.DType(), cpu.device)
	applyBroadcast(result, a, b, outShape, op)
	return result
}

// newResult allocates an output tensor, panicking on allocation failure.
// Shape validity is established by the callers.
func newResult(name string, shape tensor.Shape, dtype tensor.DataType, device tensor.Device) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}
	return result
}
