package nn

import (
	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// MSE is the standard loss for regression tasks where the goal is to predict
// continuous values. Every step (subtract, square, mean) goes through the
// backend, so when the backend is an AutodiffBackend the entire loss is on
// the tape and gradients flow from the scalar loss back to the parameters.
//
// Example:
//
//	mse := nn.NewMSELoss(backend)
//	predictions := model.Forward(input)
//	loss := mse.Forward(predictions, targets)
type MSELoss[B tensor.Backend] struct {
	backend B
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return &MSELoss[B]{
		backend: backend,
	}
}

// Forward computes the MSE loss.
//
// predictions and targets must have the same shape. Returns a scalar loss
// with shape [1].
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("MSELoss: predictions and targets must have the same shape")
	}

	diff := predictions.Sub(targets)
	squared := diff.Mul(diff)
	return squared.Mean()
}

// Parameters returns nil (loss functions have no trainable parameters).
func (m *MSELoss[B]) Parameters() []*Parameter[B] {
	return nil
}
