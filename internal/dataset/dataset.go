// Package dataset provides regression datasets for training and evaluation.
//
// It supports synthetic data generated from a known linear model (useful for
// verifying that training recovers the true weights) and CSV files with one
// target column. CreateBatches turns a dataset into mini-batch tensors ready
// for a training loop.
package dataset

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

// Dataset holds regression samples: feature vectors and scalar targets.
type Dataset struct {
	Features [][]float32 // [num_samples, num_features]
	Targets  []float32   // [num_samples]
}

// NumSamples returns the total number of samples in the dataset.
func (d *Dataset) NumSamples() int {
	return len(d.Features)
}

// NumFeatures returns the number of features per sample, or 0 for an empty
// dataset.
func (d *Dataset) NumFeatures() int {
	if len(d.Features) == 0 {
		return 0
	}
	return len(d.Features[0])
}

// Split splits the dataset into train and validation sets.
//
// trainFrac is the fraction of samples assigned to the train set, clamped to
// (0, 1]. Samples keep their order; shuffle at batching time instead.
func (d *Dataset) Split(trainFrac float64) (train, val *Dataset) {
	n := d.NumSamples()
	cut := int(float64(n) * trainFrac)
	if cut < 1 {
		cut = 1
	}
	if cut > n {
		cut = n
	}

	train = &Dataset{Features: d.Features[:cut], Targets: d.Targets[:cut]}
	val = &Dataset{Features: d.Features[cut:], Targets: d.Targets[cut:]}
	return train, val
}

// Synthetic generates a dataset from a known linear model:
//
//	y = weights · x + bias + noise
//
// Features are drawn uniformly from [-1, 1) and noise from N(0, noiseStd).
// The same seed always produces the same dataset, which makes training runs
// reproducible and lets tests check that learned weights converge to the
// true ones.
func Synthetic(n int, weights []float32, bias float32, noiseStd float64, seed int64) *Dataset {
	//nolint:gosec // Deterministic data generation, not security-critical
	rng := rand.New(rand.NewSource(seed))

	k := len(weights)
	features := make([][]float32, n)
	targets := make([]float32, n)

	for i := 0; i < n; i++ {
		x := make([]float32, k)
		y := bias
		for j := 0; j < k; j++ {
			x[j] = float32(rng.Float64()*2 - 1)
			y += weights[j] * x[j]
		}
		if noiseStd > 0 {
			y += float32(rng.NormFloat64() * noiseStd)
		}
		features[i] = x
		targets[i] = y
	}

	return &Dataset{Features: features, Targets: targets}
}

// LoadCSV loads a regression dataset from a CSV file.
//
// Expected format: a header row naming the columns, then one row per sample
// with the target in the last column:
//
//	x0,x1,x2,y
//	0.5,-1.2,0.3,2.7
//
// Parameters:
//   - filename: path to the CSV file
//   - maxSamples: maximum number of samples to load (0 = load all)
func LoadCSV(filename string, maxSamples int) (*Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file is empty or missing header")
	}

	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("expected at least one feature column and one target column, got %d columns", len(header))
	}
	numFeatures := len(header) - 1

	records = records[1:]
	numSamples := len(records)
	if maxSamples > 0 && numSamples > maxSamples {
		numSamples = maxSamples
		records = records[:numSamples]
	}

	features := make([][]float32, numSamples)
	targets := make([]float32, numSamples)

	for i, record := range records {
		if len(record) != numFeatures+1 {
			return nil, fmt.Errorf("invalid record length at row %d: got %d, want %d", i+1, len(record), numFeatures+1)
		}

		x := make([]float32, numFeatures)
		for j := 0; j < numFeatures; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[j]), 32)
			if err != nil {
				return nil, fmt.Errorf("invalid feature at row %d, column %d: %w", i+1, j, err)
			}
			x[j] = float32(v)
		}

		y, err := strconv.ParseFloat(strings.TrimSpace(record[numFeatures]), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid target at row %d: %w", i+1, err)
		}

		features[i] = x
		targets[i] = float32(y)
	}

	return &Dataset{Features: features, Targets: targets}, nil
}
