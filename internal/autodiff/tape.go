package autodiff

import (
	"fmt"

	"github.com/lingrad-ml/lingrad/internal/autodiff/ops"
	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// GradientTape records operations during the forward pass for later
// backpropagation. Operations are replayed in reverse order during the
// backward pass, applying the chain rule at each step.
//
// The tape must be explicitly started with StartRecording and should be
// cleared between training iterations with Clear.
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates a new, empty gradient tape. Recording is off until
// StartRecording is called.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0),
	}
}

// StartRecording begins recording operations.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording stops recording operations. Already recorded operations are
// kept and can still be backpropagated through.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording reports whether the tape is currently recording.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record appends an operation to the tape. Called by AutodiffBackend during
// the forward pass; user code normally never calls this directly.
func (t *GradientTape) Record(op ops.Operation) {
	t.operations = append(t.operations, op)
}

// Clear removes all recorded operations and stops recording. Call this at
// the start of each training iteration so gradients from previous iterations
// do not leak into the current one.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
	t.recording = false
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward computes gradients of the given output with respect to every
// tensor that participated in producing it. outputGrad is the gradient seed,
// typically a tensor of ones matching the output shape (dL/dL = 1).
//
// Recording is suspended during the walk: backward passes call backend
// operations themselves and those must not land on the tape.
func (t *GradientTape) Backward(output *tensor.RawTensor, outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	if len(t.operations) == 0 {
		panic("gradient tape is empty: did you forget to call Tape().StartRecording()?")
	}

	wasRecording := t.recording
	t.recording = false
	defer func() { t.recording = wasRecording }()

	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	grads[output] = outputGrad

	// Walk the tape in reverse, propagating gradients from each operation's
	// output to its inputs.
	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]

		outGrad, ok := grads[op.Output()]
		if !ok {
			// This operation's output does not contribute to the loss.
			continue
		}

		inputGrads := op.Backward(outGrad, backend)
		inputs := op.Inputs()

		if len(inputGrads) != len(inputs) {
			panic(fmt.Sprintf("operation returned %d gradients for %d inputs", len(inputGrads), len(inputs)))
		}

		for j, input := range inputs {
			if inputGrads[j] == nil {
				continue
			}
			if existing, ok := grads[input]; ok {
				// Tensor used in multiple operations: gradients accumulate.
				grads[input] = backend.Add(existing, inputGrads[j])
			} else {
				grads[input] = inputGrads[j]
			}
		}
	}

	return grads
}
