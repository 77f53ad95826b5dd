package optim_test

import (
	"math"
	"testing"

	"github.com/lingrad-ml/lingrad/internal/autodiff"
	"github.com/lingrad-ml/lingrad/internal/backend/cpu"
	"github.com/lingrad-ml/lingrad/internal/nn"
	"github.com/lingrad-ml/lingrad/internal/optim"
	"github.com/lingrad-ml/lingrad/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Helper to check float equality with tolerance.
func floatEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

// newParam creates a parameter with the given values.
func newParam(t *testing.T, backend Backend, name string, values []float32) *nn.Parameter[Backend] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	return nn.NewParameter(name, x)
}

// gradFor builds a gradient map assigning grad values to the parameter.
func gradFor(t *testing.T, backend Backend, param *nn.Parameter[Backend], values []float32) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	grad, err := tensor.NewRaw(tensor.Shape{len(values)}, tensor.Float32, backend.Device())
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	copy(grad.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{
		param.Tensor().Raw(): grad,
	}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", []float32{2.0})

	optimizer := optim.NewSGD([]*nn.Parameter[Backend]{param},
		optim.SGDConfig{LR: 0.1}, backend)

	optimizer.Step(gradFor(t, backend, param, []float32{1.0}))

	// x_new = 2.0 - 0.1 * 1.0 = 1.9.
	got := param.Tensor().Data()[0]
	if !floatEqual(got, 1.9, 1e-6) {
		t.Errorf("param after step = %v, want 1.9", got)
	}
}

func TestSGD_Momentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", []float32{1.0})

	optimizer := optim.NewSGD([]*nn.Parameter[Backend]{param},
		optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	// Step 1: v = 0.9*0 + 1 = 1, x = 1 - 0.1*1 = 0.9.
	optimizer.Step(gradFor(t, backend, param, []float32{1.0}))
	if got := param.Tensor().Data()[0]; !floatEqual(got, 0.9, 1e-6) {
		t.Fatalf("param after step 1 = %v, want 0.9", got)
	}

	// Step 2: v = 0.9*1 + 1 = 1.9, x = 0.9 - 0.19 = 0.71.
	optimizer.Step(gradFor(t, backend, param, []float32{1.0}))
	if got := param.Tensor().Data()[0]; !floatEqual(got, 0.71, 1e-6) {
		t.Fatalf("param after step 2 = %v, want 0.71", got)
	}
}

func TestSGD_WeightDecay(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", []float32{2.0})

	optimizer := optim.NewSGD([]*nn.Parameter[Backend]{param},
		optim.SGDConfig{LR: 0.1, WeightDecay: 0.5}, backend)

	// Effective grad = 1 + 0.5*2 = 2, x = 2 - 0.1*2 = 1.8.
	optimizer.Step(gradFor(t, backend, param, []float32{1.0}))
	if got := param.Tensor().Data()[0]; !floatEqual(got, 1.8, 1e-6) {
		t.Errorf("param after step = %v, want 1.8", got)
	}
}

func TestSGD_SkipsParamsWithoutGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", []float32{5.0})

	optimizer := optim.NewSGD([]*nn.Parameter[Backend]{param},
		optim.SGDConfig{LR: 0.1}, backend)

	optimizer.Step(map[*tensor.RawTensor]*tensor.RawTensor{})

	if got := param.Tensor().Data()[0]; got != 5.0 {
		t.Errorf("param without gradient changed: %v", got)
	}
}

func TestSGD_Defaults(t *testing.T) {
	backend := autodiff.New(cpu.New())
	optimizer := optim.NewSGD([]*nn.Parameter[Backend]{}, optim.SGDConfig{}, backend)

	if optimizer.GetLR() != 0.01 {
		t.Errorf("default LR = %v, want 0.01", optimizer.GetLR())
	}
}

func TestSGD_SetLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	optimizer := optim.NewSGD([]*nn.Parameter[Backend]{}, optim.SGDConfig{LR: 0.1}, backend)

	optimizer.SetLR(0.01)
	if optimizer.GetLR() != 0.01 {
		t.Errorf("GetLR() = %v after SetLR(0.01)", optimizer.GetLR())
	}
}

func TestSGD_StateDictRoundtrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", []float32{1.0, 2.0})

	optimizer := optim.NewSGD([]*nn.Parameter[Backend]{param},
		optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
	optimizer.Step(gradFor(t, backend, param, []float32{1.0, -1.0}))

	sd := optimizer.StateDict()
	if len(sd) != 1 {
		t.Fatalf("StateDict() has %d entries, want 1", len(sd))
	}
	velocity, ok := sd["velocity.0"]
	if !ok {
		t.Fatal("StateDict() missing velocity.0")
	}
	v := velocity.AsFloat32()
	if !floatEqual(v[0], 1.0, 1e-6) || !floatEqual(v[1], -1.0, 1e-6) {
		t.Errorf("velocity = %v, want [1 -1]", v)
	}

	// Restore into a fresh optimizer and verify the next step matches.
	param2 := newParam(t, backend, "x", []float32{0.9, 2.1})
	restored := optim.NewSGD([]*nn.Parameter[Backend]{param2},
		optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
	if err := restored.LoadStateDict(sd); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	restored.Step(gradFor(t, backend, param2, []float32{1.0, -1.0}))
	// v = 0.9*1 + 1 = 1.9, x = 0.9 - 0.19 = 0.71.
	if got := param2.Tensor().Data()[0]; !floatEqual(got, 0.71, 1e-6) {
		t.Errorf("restored optimizer step = %v, want 0.71", got)
	}
}

func TestAdam_StepDirection(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", []float32{1.0})

	optimizer := optim.NewAdam([]*nn.Parameter[Backend]{param},
		optim.AdamConfig{LR: 0.1}, backend)

	optimizer.Step(gradFor(t, backend, param, []float32{2.0}))

	// With bias correction the first step moves by almost exactly lr
	// against the gradient sign: x ≈ 1 - 0.1.
	got := param.Tensor().Data()[0]
	if !floatEqual(got, 0.9, 1e-3) {
		t.Errorf("param after first Adam step = %v, want ≈0.9", got)
	}
	if optimizer.GetTimestep() != 1 {
		t.Errorf("GetTimestep() = %d, want 1", optimizer.GetTimestep())
	}
}

func TestAdam_Defaults(t *testing.T) {
	backend := autodiff.New(cpu.New())
	optimizer := optim.NewAdam([]*nn.Parameter[Backend]{}, optim.AdamConfig{}, backend)

	if !floatEqual(optimizer.GetLR(), 0.001, 1e-9) {
		t.Errorf("default LR = %v, want 0.001", optimizer.GetLR())
	}
}

func TestAdam_ConvergesOnQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", []float32{5.0})

	optimizer := optim.NewAdam([]*nn.Parameter[Backend]{param},
		optim.AdamConfig{LR: 0.1}, backend)

	// Minimize f(x) = x² by feeding grad = 2x each step.
	for i := 0; i < 300; i++ {
		x := param.Tensor().Data()[0]
		optimizer.Step(gradFor(t, backend, param, []float32{2 * x}))
	}

	if got := float64(param.Tensor().Data()[0]); math.Abs(got) > 0.1 {
		t.Errorf("Adam did not converge: x = %v", got)
	}
}

func TestZeroGrad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", []float32{1.0})

	gradTensor, _ := tensor.FromSlice([]float32{0.5}, tensor.Shape{1}, backend)
	param.SetGrad(gradTensor)

	optimizer := optim.NewSGD([]*nn.Parameter[Backend]{param},
		optim.SGDConfig{LR: 0.1}, backend)
	optimizer.ZeroGrad()

	if param.Grad() != nil {
		t.Error("ZeroGrad should clear parameter gradients")
	}
}
