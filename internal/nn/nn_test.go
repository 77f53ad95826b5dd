package nn_test

import (
	"math"
	"testing"

	"github.com/lingrad-ml/lingrad/internal/autodiff"
	"github.com/lingrad-ml/lingrad/internal/backend/cpu"
	"github.com/lingrad-ml/lingrad/internal/nn"
	"github.com/lingrad-ml/lingrad/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Helper to check if values are approximately equal.
func floatEqual(a, b, epsilon float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}

func TestParameter(t *testing.T) {
	backend := autodiff.New(cpu.New())

	data, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	param := nn.NewParameter("test_param", data)

	if param.Name() != "test_param" {
		t.Errorf("Name() = %s, want test_param", param.Name())
	}
	if param.Tensor() != data {
		t.Error("Tensor() should return the original tensor")
	}
	if param.Grad() != nil {
		t.Error("Grad() should initially be nil")
	}

	grad, _ := tensor.FromSlice([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}, backend)
	param.SetGrad(grad)
	if param.Grad() != grad {
		t.Error("SetGrad() should set the gradient")
	}

	param.ZeroGrad()
	if param.Grad() != nil {
		t.Error("ZeroGrad() should clear the gradient")
	}
}

func TestLinear_Creation(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(3, 2, backend)

	if layer.InFeatures() != 3 {
		t.Errorf("InFeatures() = %d, want 3", layer.InFeatures())
	}
	if layer.OutFeatures() != 2 {
		t.Errorf("OutFeatures() = %d, want 2", layer.OutFeatures())
	}

	weight := layer.Weight().Tensor()
	if !weight.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("weight shape = %v, want [2 3]", weight.Shape())
	}

	bias := layer.Bias().Tensor()
	if !bias.Shape().Equal(tensor.Shape{2}) {
		t.Errorf("bias shape = %v, want [2]", bias.Shape())
	}
	for _, v := range bias.Data() {
		if v != 0 {
			t.Error("bias should be initialized to zeros")
		}
	}

	params := layer.Parameters()
	if len(params) != 2 {
		t.Errorf("Parameters() returned %d, want 2", len(params))
	}
}

func TestLinear_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(2, 1, backend)

	// Set known weights: W = [[2, 3]], b = [1].
	copy(layer.Weight().Tensor().Data(), []float32{2, 3})
	copy(layer.Bias().Tensor().Data(), []float32{1})

	input, _ := tensor.FromSlice([]float32{1, 1, 2, 3}, tensor.Shape{2, 2}, backend)
	output := layer.Forward(input)

	if !output.Shape().Equal(tensor.Shape{2, 1}) {
		t.Fatalf("output shape = %v, want [2 1]", output.Shape())
	}

	// Row 0: 2*1 + 3*1 + 1 = 6. Row 1: 2*2 + 3*3 + 1 = 14.
	got := output.Data()
	if !floatEqual(got[0], 6, 1e-5) || !floatEqual(got[1], 14, 1e-5) {
		t.Errorf("output = %v, want [6 14]", got)
	}
}

func TestLinear_ForwardShapeMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(3, 1, backend)

	input, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 2}, backend)

	defer func() {
		if recover() == nil {
			t.Error("Forward should panic on feature count mismatch")
		}
	}()
	layer.Forward(input)
}

func TestLinear_GradientsReachParameters(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(2, 1, backend)
	mse := nn.NewMSELoss(backend)

	backend.Tape().StartRecording()

	input, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	targets, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2, 1}, backend)

	loss := mse.Forward(layer.Forward(input), targets)
	grads := autodiff.Backward(loss, backend)

	if grads[layer.Weight().Tensor().Raw()] == nil {
		t.Error("weight should receive a gradient")
	}
	if grads[layer.Bias().Tensor().Raw()] == nil {
		t.Error("bias should receive a gradient")
	}
}

func TestLinear_StateDict(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(2, 1, backend)
	copy(layer.Weight().Tensor().Data(), []float32{1.5, -2.5})
	copy(layer.Bias().Tensor().Data(), []float32{0.5})

	sd := layer.StateDict()
	if len(sd) != 2 {
		t.Fatalf("StateDict() has %d entries, want 2", len(sd))
	}

	other := nn.NewLinear(2, 1, backend)
	if err := other.LoadStateDict(sd); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	got := other.Weight().Tensor().Data()
	if got[0] != 1.5 || got[1] != -2.5 {
		t.Errorf("loaded weights = %v, want [1.5 -2.5]", got)
	}
	if other.Bias().Tensor().Data()[0] != 0.5 {
		t.Errorf("loaded bias = %v, want 0.5", other.Bias().Tensor().Data())
	}
}

func TestLinear_LoadStateDict_ShapeMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(2, 1, backend)

	wrong, _ := tensor.NewRaw(tensor.Shape{3, 3}, tensor.Float32, tensor.CPU)
	err := layer.LoadStateDict(map[string]*tensor.RawTensor{"weight": wrong})
	if err == nil {
		t.Error("LoadStateDict should reject a mismatched weight shape")
	}
}

func TestMSELoss(t *testing.T) {
	backend := autodiff.New(cpu.New())
	mse := nn.NewMSELoss(backend)

	pred, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3, 1}, backend)
	target, _ := tensor.FromSlice([]float32{2, 2, 5}, tensor.Shape{3, 1}, backend)

	loss := mse.Forward(pred, target)

	// ((1-2)² + 0 + (3-5)²) / 3 = 5/3.
	if !floatEqual(loss.Item(), 5.0/3.0, 1e-5) {
		t.Errorf("loss = %v, want %v", loss.Item(), 5.0/3.0)
	}
}

func TestMSELoss_GradientFlow(t *testing.T) {
	backend := autodiff.New(cpu.New())
	mse := nn.NewMSELoss(backend)

	backend.Tape().StartRecording()

	pred, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1, 1}, backend)
	target, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1, 1}, backend)

	loss := mse.Forward(pred, target)
	grads := autodiff.Backward(loss, backend)

	// dL/dpred = 2(pred - target)/n = 2*2/1 = 4.
	grad := grads[pred.Raw()]
	if grad == nil {
		t.Fatal("prediction should receive a gradient")
	}
	if !floatEqual(grad.AsFloat32()[0], 4, 1e-5) {
		t.Errorf("dL/dpred = %v, want 4", grad.AsFloat32()[0])
	}
}

func TestMSELoss_ShapeMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	mse := nn.NewMSELoss(backend)

	pred, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2, 1}, backend)
	target, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3, 1}, backend)

	defer func() {
		if recover() == nil {
			t.Error("MSELoss should panic on shape mismatch")
		}
	}()
	mse.Forward(pred, target)
}

func TestXavier_Bounds(t *testing.T) {
	backend := autodiff.New(cpu.New())

	fanIn, fanOut := 100, 50
	w := nn.Xavier(fanIn, fanOut, tensor.Shape{fanOut, fanIn}, backend)

	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	for _, v := range w.Data() {
		if v < -bound || v > bound {
			t.Fatalf("Xavier value %v outside [-%v, %v]", v, bound, bound)
		}
	}
}

var _ nn.Module[Backend] = (*nn.Linear[Backend])(nil)
