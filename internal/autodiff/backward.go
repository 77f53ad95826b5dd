package autodiff

import (
	"fmt"

	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// BackwardCapable is a backend that can compute gradients. AutodiffBackend
// implements it; training code that needs backpropagation constrains its
// backend type parameter to this interface.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape returns the gradient tape, satisfying BackwardCapable.
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of output with respect to all tensors recorded
// on the tape. The gradient seed is a tensor of ones matching the output
// shape, so for a scalar loss this computes dL/dx for every participating x.
//
// The returned map is keyed by raw tensor, so grads[x.Raw()] is the gradient
// of output with respect to x.
func Backward[T tensor.DType, B BackwardCapable](output *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	seed, err := onesLike(output.Raw(), backend)
	if err != nil {
		panic(fmt.Sprintf("autodiff: failed to create gradient seed: %v", err))
	}

	return backend.GetTape().Backward(output.Raw(), seed, backend)
}

// onesLike creates a raw tensor of ones with the same shape and dtype as t.
func onesLike(t *tensor.RawTensor, backend tensor.Backend) (*tensor.RawTensor, error) {
	result, err := tensor.NewRaw(t.Shape(), t.DType(), backend.Device())
	if err != nil {
		return nil, err
	}

	switch t.DType() {
	case tensor.Float32:
		data := result.AsFloat32()
		for i := range data {
			data[i] = 1
		}
	case tensor.Float64:
		data := result.AsFloat64()
		for i := range data {
			data[i] = 1
		}
	case tensor.Int32:
		data := result.AsInt32()
		for i := range data {
			data[i] = 1
		}
	case tensor.Int64:
		data := result.AsInt64()
		for i := range data {
			data[i] = 1
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %s", t.DType())
	}

	return result, nil
}
