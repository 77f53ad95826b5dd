package ops

import (
	"fmt"

	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// SumOp represents a full reduction: output = sum(x), shape [1].
//
// Backward: every element contributed with weight 1, so the scalar gradient
// is broadcast back to the input shape.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

// Backward computes the input gradient for a full sum.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := broadcastTo(outputGrad, op.input.Shape(), backend)
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors.
func (op *SumOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SumOp) Output() *tensor.RawTensor {
	return op.output
}

// MeanOp represents a full mean reduction: output = mean(x), shape [1].
//
// Backward: grad_x = broadcast(outputGrad) / N.
//
// This is the op that makes a scalar loss like MSE differentiable end to end.
type MeanOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	n      int // number of reduced elements
}

// NewMeanOp creates a new MeanOp.
func NewMeanOp(input, output *tensor.RawTensor) *MeanOp {
	return &MeanOp{
		input:  input,
		output: output,
		n:      input.NumElements(),
	}
}

// Backward computes the input gradient for a full mean.
func (op *MeanOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := broadcastTo(outputGrad, op.input.Shape(), backend)

	switch grad.DType() {
	case tensor.Float32:
		grad = backend.MulScalar(grad, 1.0/float32(op.n))
	case tensor.Float64:
		grad = backend.MulScalar(grad, 1.0/float64(op.n))
	default:
		panic(fmt.Sprintf("mean backward: unsupported dtype %s", grad.DType()))
	}

	return []*tensor.RawTensor{grad}
}

// Inputs returns the input tensors.
func (op *MeanOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MeanOp) Output() *tensor.RawTensor {
	return op.output
}

// SumDimOp represents a reduction sum along one dimension.
//
// Backward: broadcast the output gradient back to the input shape, restoring
// the reduced dimension first when keepDim was false.
type SumDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{
		input:   input,
		output:  output,
		dim:     dim,
		keepDim: keepDim,
	}
}

// Backward computes the input gradient for a dimension sum.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := outputGrad
	if !op.keepDim {
		grad = unsqueeze(grad, op.dim, len(op.input.Shape()), backend)
	}
	return []*tensor.RawTensor{broadcastTo(grad, op.input.Shape(), backend)}
}

// Inputs returns the input tensors.
func (op *SumDimOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SumDimOp) Output() *tensor.RawTensor {
	return op.output
}

// MeanDimOp represents a mean reduction along one dimension.
//
// Backward: like SumDimOp, divided by the size of the reduced dimension.
type MeanDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
	dimSize int
}

// NewMeanDimOp creates a new MeanDimOp.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *MeanDimOp {
	actualDim := dim
	if actualDim < 0 {
		actualDim = len(input.Shape()) + actualDim
	}

	return &MeanDimOp{
		input:   input,
		output:  output,
		dim:     dim,
		keepDim: keepDim,
		dimSize: input.Shape()[actualDim],
	}
}

// Backward computes the input gradient for a dimension mean.
func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := outputGrad
	if !op.keepDim {
		grad = unsqueeze(grad, op.dim, len(op.input.Shape()), backend)
	}
	grad = broadcastTo(grad, op.input.Shape(), backend)

	switch grad.DType() {
	case tensor.Float32:
		grad = backend.MulScalar(grad, 1.0/float32(op.dimSize))
	case tensor.Float64:
		grad = backend.MulScalar(grad, 1.0/float64(op.dimSize))
	default:
		panic(fmt.Sprintf("meandim backward: unsupported dtype %s", grad.DType()))
	}

	return []*tensor.RawTensor{grad}
}

// Inputs returns the input tensors.
func (op *MeanDimOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MeanDimOp) Output() *tensor.RawTensor {
	return op.output
}
