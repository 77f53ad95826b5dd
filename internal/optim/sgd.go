package optim

import (
	"fmt"

	"github.com/lingrad-ml/lingrad/internal/nn"
	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum and
// weight decay.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// With weight decay, the gradient becomes gradient + weightDecay * param
// before either rule applies (L2 regularization).
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	}, backend)
type SGD[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	momentum    float32
	weightDecay float32
	velocities  map[*nn.Parameter[B]][]float32
	backend     B
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	LR          float32 // Learning rate (default: 0.01)
	Momentum    float32 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float32 // L2 penalty coefficient (default: 0.0)
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[B]{
		params:      params,
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[*nn.Parameter[B]][]float32),
		backend:     backend,
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient (not in the computational graph) are skipped.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		paramData := param.Tensor().Raw().AsFloat32()
		gradData := grad.AsFloat32()

		if len(gradData) != len(paramData) {
			panic(fmt.Sprintf("SGD.Step: gradient size %d does not match parameter %q size %d",
				len(gradData), param.Name(), len(paramData)))
		}

		if s.momentum == 0 {
			for i := range paramData {
				g := gradData[i]
				if s.weightDecay != 0 {
					g += s.weightDecay * paramData[i]
				}
				paramData[i] -= s.lr * g
			}
			continue
		}

		velocity, exists := s.velocities[param]
		if !exists {
			velocity = make([]float32, len(paramData))
			s.velocities[param] = velocity
		}

		for i := range paramData {
			g := gradData[i]
			if s.weightDecay != 0 {
				g += s.weightDecay * paramData[i]
			}
			velocity[i] = s.momentum*velocity[i] + g
			paramData[i] -= s.lr * velocity[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate. Useful for learning rate scheduling.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}

// StateDict returns the optimizer state for serialization.
//
// For SGD with momentum, this exports velocity buffers for each parameter.
// Without momentum, returns an empty map.
//
// State keys: "velocity.{param_index}" -> velocity tensor.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)

	if s.momentum == 0 {
		return stateDict
	}

	for i, param := range s.params {
		velocity, exists := s.velocities[param]
		if !exists {
			continue // No velocity yet (hasn't been used in training)
		}

		raw, err := tensor.NewRaw(param.Tensor().Shape(), tensor.Float32, s.backend.Device())
		if err != nil {
			panic(err)
		}
		copy(raw.AsFloat32(), velocity)

		key := fmt.Sprintf("velocity.%d", i)
		stateDict[key] = raw
	}

	return stateDict
}

// LoadStateDict loads optimizer state from serialization.
//
// Restores velocity buffers for SGD with momentum. If momentum is 0, the
// provided state is ignored.
//
// Returns an error if velocity shapes don't match parameter shapes.
func (s *SGD[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}

	s.velocities = make(map[*nn.Parameter[B]][]float32)

	for i, param := range s.params {
		key := fmt.Sprintf("velocity.%d", i)
		velocityRaw, exists := stateDict[key]
		if !exists {
			// Velocity will be initialized on first step.
			continue
		}

		if !velocityRaw.Shape().Equal(param.Tensor().Shape()) {
			return fmt.Errorf("velocity shape mismatch for parameter %d: expected %v, got %v",
				i, param.Tensor().Shape(), velocityRaw.Shape())
		}

		velocity := make([]float32, param.Tensor().NumElements())
		copy(velocity, velocityRaw.AsFloat32())
		s.velocities[param] = velocity
	}

	return nil
}
