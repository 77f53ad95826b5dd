// Package ops defines the differentiable operations recorded on the gradient
// tape during the forward pass.
//
// Each operation keeps references to its input and output tensors and knows
// how to turn an output gradient into input gradients (the chain rule):
//   - AddOp: d(a+b)/da = 1, d(a+b)/db = 1
//   - MulOp: d(a*b)/da = b, d(a*b)/db = a
//   - MatMulOp: d(A@B)/dA = grad@Bᵀ, d(A@B)/dB = Aᵀ@grad
//   - MeanOp: d(mean(x))/dx = 1/N
//
// When broadcasting was used in the forward pass, input gradients are reduced
// (summed) back to the operand's shape.
package ops

import "github.com/lingrad-ml/lingrad/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
