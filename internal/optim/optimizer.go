// Package optim implements optimization algorithms for training models.
//
// This package provides:
//   - Optimizer interface: base interface for all optimizers
//   - SGD: stochastic gradient descent with momentum and weight decay
//   - Adam: adaptive moment estimation
//
// Design inspired by PyTorch's torch.optim but adapted for Go with type safety.
//
// Example usage:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR: 0.01,
//	}, backend)
//
//	for epoch := range epochs {
//	    backend.Tape().Clear()
//	    backend.Tape().StartRecording()
//	    output := model.Forward(input)
//	    loss := lossFn.Forward(output, targets)
//	    grads := autodiff.Backward(loss, backend)
//
//	    optimizer.Step(grads)
//	    optimizer.ZeroGrad()
//	}
//
// Optimizers update parameter data in place, working directly on the raw
// float32 slices. Updates never go through the backend, so a recording tape
// never sees them.
package optim

import (
	"github.com/lingrad-ml/lingrad/internal/nn"
	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Step: apply gradient updates to parameters
//   - ZeroGrad: clear gradients before the next iteration
//   - GetLR: get the current learning rate (for monitoring/scheduling)
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes a gradient map from Backward() keyed by raw tensor and updates
	// parameters in place.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	//
	// Call before each backward pass to prevent gradient accumulation from
	// previous iterations.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// getGradient retrieves the gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of the
// computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
