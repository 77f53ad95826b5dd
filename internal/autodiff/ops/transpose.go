package ops

import "github.com/lingrad-ml/lingrad/internal/tensor"

// TransposeOp records a transpose so gradients flow back to the original
// tensor. This matters even though transpose is conceptually a view: the
// backend produces a NEW tensor, and without this record the gradient of a
// transposed parameter (e.g. the weight in a Linear layer) would never reach
// the parameter the optimizer knows about.
//
// Backward: transpose the output gradient with the inverse permutation.
type TransposeOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	axes   []int // Axes used for forward transpose
}

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{
		input:  input,
		output: output,
		axes:   axes,
	}
}

// Backward computes the input gradient for transpose.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverseAxes := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverseAxes[ax] = i
	}

	inputGrad := backend.Transpose(outputGrad, inverseAxes...)
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors.
func (op *TransposeOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *TransposeOp) Output() *tensor.RawTensor {
	return op.output
}
