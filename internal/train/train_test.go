package train_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingrad-ml/lingrad/internal/autodiff"
	"github.com/lingrad-ml/lingrad/internal/backend/cpu"
	"github.com/lingrad-ml/lingrad/internal/dataset"
	"github.com/lingrad-ml/lingrad/internal/nn"
	"github.com/lingrad-ml/lingrad/internal/train"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := train.DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*train.Config)
	}{
		{"zero epochs", func(c *train.Config) { c.Epochs = 0 }},
		{"zero batch size", func(c *train.Config) { c.BatchSize = 0 }},
		{"negative learning rate", func(c *train.Config) { c.LearningRate = -0.1 }},
		{"momentum out of range", func(c *train.Config) { c.Momentum = 1.0 }},
		{"unknown optimizer", func(c *train.Config) { c.Optimizer = "lbfgs" }},
		{"unknown update mode", func(c *train.Config) { c.UpdateMode = "magic" }},
		{"negative noise", func(c *train.Config) { c.NoiseStd = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := train.DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig_PartialFileGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	content := "epochs: 50\nlearning_rate: 0.2\noptimizer: adam\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := train.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Epochs)
	assert.InDelta(t, 0.2, cfg.LearningRate, 1e-6)
	assert.Equal(t, "adam", cfg.Optimizer)
	// Omitted fields fall back to defaults.
	assert.Equal(t, train.DefaultConfig().BatchSize, cfg.BatchSize)
	assert.Equal(t, train.UpdateOptimizer, cfg.UpdateMode)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := train.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("epochs: [not an int\n"), 0o644))
	_, err = train.LoadConfig(bad)
	assert.Error(t, err)

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("optimizer: lbfgs\n"), 0o644))
	_, err = train.LoadConfig(invalid)
	assert.Error(t, err)
}

func TestNewTrainer_UnknownOptimizer(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := nn.NewLinear(1, 1, backend)

	cfg := train.DefaultConfig()
	cfg.Optimizer = "momentum-free-wishful-thinking"
	_, err := train.NewTrainer(model, cfg, backend)
	assert.Error(t, err)
}

func TestTrainer_ManualMode(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := nn.NewLinear(2, 1, backend)

	cfg := train.DefaultConfig()
	cfg.UpdateMode = train.UpdateManual
	cfg.Epochs = 300
	cfg.LearningRate = 0.1

	trainer, err := train.NewTrainer(model, cfg, backend)
	require.NoError(t, err)
	assert.Nil(t, trainer.Optimizer())

	data := dataset.Synthetic(128, []float32{2.0, -3.4}, 4.2, 0, 42)
	finalLoss, err := trainer.Fit(data)
	require.NoError(t, err)

	assertConverged(t, trainer, finalLoss, []float32{2.0, -3.4}, 4.2)
}

func TestTrainer_SGDMode(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := nn.NewLinear(2, 1, backend)

	cfg := train.DefaultConfig()
	cfg.Epochs = 300
	cfg.LearningRate = 0.1
	cfg.Momentum = 0.9

	trainer, err := train.NewTrainer(model, cfg, backend)
	require.NoError(t, err)
	require.NotNil(t, trainer.Optimizer())

	data := dataset.Synthetic(128, []float32{2.0, -3.4}, 4.2, 0, 42)
	finalLoss, err := trainer.Fit(data)
	require.NoError(t, err)

	assertConverged(t, trainer, finalLoss, []float32{2.0, -3.4}, 4.2)
}

func TestTrainer_AdamMode(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := nn.NewLinear(2, 1, backend)

	cfg := train.DefaultConfig()
	cfg.Optimizer = "adam"
	cfg.Epochs = 300
	cfg.LearningRate = 0.05

	trainer, err := train.NewTrainer(model, cfg, backend)
	require.NoError(t, err)

	data := dataset.Synthetic(128, []float32{2.0, -3.4}, 4.2, 0, 42)
	finalLoss, err := trainer.Fit(data)
	require.NoError(t, err)

	assertConverged(t, trainer, finalLoss, []float32{2.0, -3.4}, 4.2)
}

// assertConverged checks that training drove the loss down and recovered the
// generating weights on noise-free data.
func assertConverged(t *testing.T, trainer *train.Trainer[Backend], finalLoss float32, trueWeights []float32, trueBias float32) {
	t.Helper()

	history := trainer.LossHistory()
	require.NotEmpty(t, history)
	assert.Less(t, finalLoss, history[0], "loss should decrease over training")
	assert.Less(t, float64(finalLoss), 0.01, "final loss should be near zero on noise-free data")

	weights := trainer.Model().Weight().Tensor().Data()
	for i, w := range trueWeights {
		assert.InDelta(t, w, weights[i], 0.1, "weight %d", i)
	}
	bias := trainer.Model().Bias().Tensor().Data()[0]
	assert.InDelta(t, trueBias, bias, 0.1)
}

func TestTrainer_FeatureMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := nn.NewLinear(3, 1, backend)

	trainer, err := train.NewTrainer(model, train.DefaultConfig(), backend)
	require.NoError(t, err)

	data := dataset.Synthetic(16, []float32{1.0}, 0, 0, 1)
	_, err = trainer.Fit(data)
	assert.Error(t, err)
}

func TestTrainer_StepLeavesTapeStopped(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := nn.NewLinear(1, 1, backend)

	cfg := train.DefaultConfig()
	cfg.Epochs = 1
	trainer, err := train.NewTrainer(model, cfg, backend)
	require.NoError(t, err)

	data := dataset.Synthetic(8, []float32{2.0}, 0, 0, 1)
	batches, err := dataset.CreateBatches(data, 8, false, 0, backend)
	require.NoError(t, err)

	loss, err := trainer.Step(batches[0])
	require.NoError(t, err)
	assert.False(t, math.IsNaN(float64(loss)))
	assert.False(t, backend.GetTape().IsRecording())
}

func TestTrainer_OnEpochCallback(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := nn.NewLinear(1, 1, backend)

	cfg := train.DefaultConfig()
	cfg.Epochs = 5
	trainer, err := train.NewTrainer(model, cfg, backend)
	require.NoError(t, err)

	var epochs []int
	trainer.OnEpoch = func(epoch int, loss float32) {
		epochs = append(epochs, epoch)
	}

	data := dataset.Synthetic(32, []float32{1.0}, 0, 0, 1)
	_, err = trainer.Fit(data)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, epochs)
	assert.Len(t, trainer.LossHistory(), 5)
}
