package dataset

import (
	"fmt"
	"math/rand"

	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// Batch represents a mini-batch for training.
type Batch[B tensor.Backend] struct {
	Features *tensor.Tensor[float32, B] // [batch_size, num_features]
	Targets  *tensor.Tensor[float32, B] // [batch_size, 1]
	Size     int
}

// CreateBatches splits a dataset into mini-batches.
//
// Targets are shaped [batch_size, 1] so they align with the [batch_size, 1]
// output of a Linear(k, 1) model without reshaping at the call site.
//
// Parameters:
//   - data: regression dataset
//   - batchSize: size of each mini-batch
//   - shuffle: whether to shuffle samples before batching
//   - seed: shuffle seed (ignored when shuffle is false)
//   - backend: tensor backend to use
//
// Returns a slice of batches; the last batch may be smaller if the data
// doesn't divide evenly.
func CreateBatches[B tensor.Backend](
	data *Dataset,
	batchSize int,
	shuffle bool,
	seed int64,
	backend B,
) ([]*Batch[B], error) {
	numSamples := data.NumSamples()
	if numSamples != len(data.Targets) {
		return nil, fmt.Errorf("features and targets length mismatch: %d vs %d", numSamples, len(data.Targets))
	}
	if numSamples == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	numFeatures := data.NumFeatures()

	indices := make([]int, numSamples)
	for i := range indices {
		indices[i] = i
	}

	if shuffle {
		//nolint:gosec // Batch shuffling, not security-critical
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(numSamples, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	numBatches := (numSamples + batchSize - 1) / batchSize
	batches := make([]*Batch[B], 0, numBatches)

	for i := 0; i < numSamples; i += batchSize {
		end := i + batchSize
		if end > numSamples {
			end = numSamples
		}
		currentBatchSize := end - i

		featuresRaw, err := tensor.NewRaw(
			tensor.Shape{currentBatchSize, numFeatures},
			tensor.Float32,
			backend.Device(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create features tensor: %w", err)
		}

		targetsRaw, err := tensor.NewRaw(
			tensor.Shape{currentBatchSize, 1},
			tensor.Float32,
			backend.Device(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create targets tensor: %w", err)
		}

		featuresData := featuresRaw.AsFloat32()
		targetsData := targetsRaw.AsFloat32()

		for j := i; j < end; j++ {
			idx := indices[j]
			copy(featuresData[(j-i)*numFeatures:(j-i+1)*numFeatures], data.Features[idx])
			targetsData[j-i] = data.Targets[idx]
		}

		batches = append(batches, &Batch[B]{
			Features: tensor.New[float32, B](featuresRaw, backend),
			Targets:  tensor.New[float32, B](targetsRaw, backend),
			Size:     currentBatchSize,
		})
	}

	return batches, nil
}
