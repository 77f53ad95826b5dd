package ops

import (
	"fmt"

	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// Needed when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward:  a[3,1] + b[3,4] -> c[3,4]   (a broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1]  (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// Clone when shapes already match so shared gradients can't be
	// modified in place further up the tape walk.
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	// Sum away leading dimensions the target doesn't have.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	// Sum along dimensions where the target is 1.
	resShape := result.Shape()
	for i := 0; i < len(targetShape); i++ {
		if targetShape[i] == 1 && resShape[i] > 1 {
			result = backend.SumDim(result, i, true)
			resShape = result.Shape()
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}

	return result
}

// broadcastTo expands a gradient to the target shape by adding it to zeros,
// reusing the backend's broadcasting rules.
func broadcastTo(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad.Clone()
	}

	zeros, err := tensor.NewRaw(targetShape, grad.DType(), grad.Device())
	if err != nil {
		panic(fmt.Sprintf("broadcastTo: failed to create zeros: %v", err))
	}
	return backend.Add(zeros, grad)
}

// unsqueeze restores a reduced dimension as size 1 so the gradient aligns for
// broadcasting (used when a reduction ran with keepDim=false).
func unsqueeze(grad *tensor.RawTensor, dim, ndim int, backend tensor.Backend) *tensor.RawTensor {
	if dim < 0 {
		dim = ndim + dim
	}

	newShape := make(tensor.Shape, 0, ndim)
	gradShape := grad.Shape()
	gi := 0
	for i := 0; i < ndim; i++ {
		if i == dim {
			newShape = append(newShape, 1)
			continue
		}
		newShape = append(newShape, gradShape[gi])
		gi++
	}

	return backend.Reshape(grad, newShape)
}

// negate returns -grad.
func negate(grad *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	switch grad.DType() {
	case tensor.Float32:
		return backend.MulScalar(grad, float32(-1))
	case tensor.Float64:
		return backend.MulScalar(grad, float64(-1))
	default:
		panic(fmt.Sprintf("negate: unsupported dtype %s", grad.DType()))
	}
}
