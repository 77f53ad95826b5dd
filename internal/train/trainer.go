package train

import (
	"fmt"

	"github.com/lingrad-ml/lingrad/internal/autodiff"
	"github.com/lingrad-ml/lingrad/internal/dataset"
	"github.com/lingrad-ml/lingrad/internal/nn"
	"github.com/lingrad-ml/lingrad/internal/optim"
	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// Trainer runs gradient-descent training of a linear model.
//
// The backend must be BackwardCapable: the trainer drives the gradient tape
// itself, clearing and restarting it every step so no step sees gradients
// from a previous one.
type Trainer[B autodiff.BackwardCapable] struct {
	model     *nn.Linear[B]
	loss      *nn.MSELoss[B]
	optimizer optim.Optimizer
	config    Config
	backend   B

	lossHistory []float32

	// OnEpoch, when set, is called after each epoch with the epoch number
	// and the mean loss over its batches.
	OnEpoch func(epoch int, loss float32)
}

// NewTrainer creates a trainer for the given model.
//
// In UpdateOptimizer mode an optimizer is built from the config (SGD with
// momentum, or Adam). In UpdateManual mode no optimizer is created and
// updates apply param -= lr * grad directly.
func NewTrainer[B autodiff.BackwardCapable](model *nn.Linear[B], config Config, backend B) (*Trainer[B], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	t := &Trainer[B]{
		model:   model,
		loss:    nn.NewMSELoss(backend),
		config:  config,
		backend: backend,
	}

	if config.UpdateMode == UpdateOptimizer {
		switch config.Optimizer {
		case "sgd":
			t.optimizer = optim.NewSGD(model.Parameters(), optim.SGDConfig{
				LR:       config.LearningRate,
				Momentum: config.Momentum,
			}, backend)
		case "adam":
			t.optimizer = optim.NewAdam(model.Parameters(), optim.AdamConfig{
				LR: config.LearningRate,
			}, backend)
		default:
			return nil, fmt.Errorf("unknown optimizer %q", config.Optimizer)
		}
	}

	return t, nil
}

// Model returns the model being trained.
func (t *Trainer[B]) Model() *nn.Linear[B] {
	return t.model
}

// Optimizer returns the optimizer, or nil in manual update mode.
func (t *Trainer[B]) Optimizer() optim.Optimizer {
	return t.optimizer
}

// LossHistory returns the mean loss per epoch recorded so far.
func (t *Trainer[B]) LossHistory() []float32 {
	return t.lossHistory
}

// Fit trains the model on the dataset for the configured number of epochs.
//
// Returns the final epoch's mean loss.
func (t *Trainer[B]) Fit(data *dataset.Dataset) (float32, error) {
	if data.NumFeatures() != t.model.InFeatures() {
		return 0, fmt.Errorf("dataset has %d features but model expects %d",
			data.NumFeatures(), t.model.InFeatures())
	}

	var finalLoss float32
	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		// Re-batch each epoch so shuffling differs between epochs.
		batches, err := dataset.CreateBatches(data, t.config.BatchSize, t.config.Shuffle,
			t.config.Seed+int64(epoch), t.backend)
		if err != nil {
			return 0, fmt.Errorf("epoch %d: %w", epoch, err)
		}

		var epochLoss float32
		for _, batch := range batches {
			loss, err := t.Step(batch)
			if err != nil {
				return 0, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			epochLoss += loss
		}
		epochLoss /= float32(len(batches))

		t.lossHistory = append(t.lossHistory, epochLoss)
		finalLoss = epochLoss

		if t.OnEpoch != nil {
			t.OnEpoch(epoch, epochLoss)
		}
	}

	return finalLoss, nil
}

// Step runs a single training step on one batch: forward, loss, backward,
// parameter update. Returns the batch loss.
func (t *Trainer[B]) Step(batch *dataset.Batch[B]) (float32, error) {
	if t.optimizer != nil {
		t.optimizer.ZeroGrad()
	}

	tape := t.backend.GetTape()
	tape.Clear()
	tape.StartRecording()

	predictions := t.model.Forward(batch.Features)
	loss := t.loss.Forward(predictions, batch.Targets)

	grads := autodiff.Backward(loss, t.backend)
	tape.StopRecording()

	switch t.config.UpdateMode {
	case UpdateManual:
		t.manualUpdate(grads)
	case UpdateOptimizer:
		t.optimizer.Step(grads)
	default:
		return 0, fmt.Errorf("unknown update_mode %q", t.config.UpdateMode)
	}

	return loss.Item(), nil
}

// manualUpdate applies plain gradient descent: param -= lr * grad.
//
// Updates work on the raw float32 slices, never through the backend, so they
// cannot land on the tape.
func (t *Trainer[B]) manualUpdate(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range t.model.Parameters() {
		grad, ok := grads[param.Tensor().Raw()]
		if !ok {
			continue
		}

		paramData := param.Tensor().Raw().AsFloat32()
		gradData := grad.AsFloat32()
		for i := range paramData {
			paramData[i] -= t.config.LearningRate * gradData[i]
		}
	}
}
