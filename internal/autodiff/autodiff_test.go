package autodiff_test

import (
	"math"
	"testing"

	"github.com/lingrad-ml/lingrad/internal/autodiff"
	"github.com/lingrad-ml/lingrad/internal/backend/cpu"
	"github.com/lingrad-ml/lingrad/internal/tensor"
)

func assertGrad(t *testing.T, want []float32, got *tensor.RawTensor, msg string) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: gradient is nil", msg)
	}
	data := got.AsFloat32()
	if len(data) != len(want) {
		t.Fatalf("%s: gradient length %d, want %d", msg, len(data), len(want))
	}
	for i := range want {
		if math.Abs(float64(want[i]-data[i])) > 1e-5 {
			t.Errorf("%s: gradient[%d] = %v, want %v", msg, i, data[i], want[i])
		}
	}
}

func TestAutodiffBackend_Name(t *testing.T) {
	backend := autodiff.New(cpu.New())
	expected := "Autodiff(CPU)"
	if backend.Name() != expected {
		t.Errorf("Name() = %s, want %s", backend.Name(), expected)
	}
}

func TestAutodiffBackend_Device(t *testing.T) {
	backend := autodiff.New(cpu.New())
	if backend.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want %v", backend.Device(), tensor.CPU)
	}
}

func TestTape_Recording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	if tape.IsRecording() {
		t.Error("tape should not be recording initially")
	}

	tape.StartRecording()
	if !tape.IsRecording() {
		t.Error("tape should be recording after StartRecording()")
	}

	tape.StopRecording()
	if tape.IsRecording() {
		t.Error("tape should not be recording after StopRecording()")
	}
}

func TestTape_RecordsOnlyWhileRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2}, backend)

	a.Add(b)
	if tape.NumOps() != 0 {
		t.Errorf("NumOps() = %d before recording, want 0", tape.NumOps())
	}

	tape.StartRecording()
	a.Add(b)
	if tape.NumOps() != 1 {
		t.Errorf("NumOps() = %d after one op, want 1", tape.NumOps())
	}
}

func TestTape_Clear(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	tape.StartRecording()
	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	a.Mul(a)

	tape.Clear()
	if tape.NumOps() != 0 {
		t.Errorf("NumOps() = %d after Clear, want 0", tape.NumOps())
	}
	if tape.IsRecording() {
		t.Error("Clear should stop recording")
	}
}

func TestBackward_Square(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
	y := x.Mul(x) // y = x²

	grads := autodiff.Backward(y, backend)
	assertGrad(t, []float32{4}, grads[x.Raw()], "dy/dx = 2x") // 2*2 = 4
}

func TestBackward_Composite(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// z = (x + 2) * 3, dz/dx = 3.
	x, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1}, backend)
	z := x.AddScalar(2).MulScalar(3)

	if z.Item() != 15 {
		t.Errorf("z = %v, want 15", z.Item())
	}

	grads := autodiff.Backward(z, backend)
	assertGrad(t, []float32{3}, grads[x.Raw()], "dz/dx")
}

func TestBackward_Accumulation(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = x*x + x uses x three times; gradients must accumulate:
	// dy/dx = 2x + 1 = 5 at x=2.
	x, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
	y := x.Mul(x).Add(x)

	grads := autodiff.Backward(y, backend)
	assertGrad(t, []float32{5}, grads[x.Raw()], "dy/dx = 2x + 1")
}

func TestBackward_Sub(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{5}, tensor.Shape{1}, backend)
	b, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1}, backend)
	y := a.Sub(b)

	grads := autodiff.Backward(y, backend)
	assertGrad(t, []float32{1}, grads[a.Raw()], "dy/da")
	assertGrad(t, []float32{-1}, grads[b.Raw()], "dy/db")
}

func TestBackward_Div(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = a/b: dy/da = 1/b, dy/db = -a/b².
	a, _ := tensor.FromSlice([]float32{6}, tensor.Shape{1}, backend)
	b, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
	y := a.Div(b)

	grads := autodiff.Backward(y, backend)
	assertGrad(t, []float32{0.5}, grads[a.Raw()], "dy/da = 1/b")
	assertGrad(t, []float32{-1.5}, grads[b.Raw()], "dy/db = -a/b²")
}

func TestBackward_MatMul(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = a @ b with 2x2 matrices, seed gradient of ones:
	// da = ones @ bᵀ, db = aᵀ @ ones.
	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	b, _ := tensor.FromSlice([]float32{5, 6, 7, 8}, tensor.Shape{2, 2}, backend)
	y := a.MatMul(b)

	grads := autodiff.Backward(y, backend)
	assertGrad(t, []float32{11, 15, 11, 15}, grads[a.Raw()], "dy/da")
	assertGrad(t, []float32{4, 4, 6, 6}, grads[b.Raw()], "dy/db")
}

func TestBackward_Mean(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = mean(x): dy/dx_i = 1/n.
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4}, backend)
	y := x.Mean()

	grads := autodiff.Backward(y, backend)
	assertGrad(t, []float32{0.25, 0.25, 0.25, 0.25}, grads[x.Raw()], "dy/dx")
}

func TestBackward_Sum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	y := x.Sum()

	grads := autodiff.Backward(y, backend)
	assertGrad(t, []float32{1, 1, 1}, grads[x.Raw()], "dy/dx")
}

func TestBackward_BroadcastAdd(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// [2, 3] + [1, 3]: the bias gradient must be reduced back to [1, 3].
	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	bias, _ := tensor.FromSlice([]float32{10, 20, 30}, tensor.Shape{1, 3}, backend)
	y := a.Add(bias)

	grads := autodiff.Backward(y, backend)
	assertGrad(t, []float32{1, 1, 1, 1, 1, 1}, grads[a.Raw()], "dy/da")

	biasGrad := grads[bias.Raw()]
	if !biasGrad.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("bias gradient shape = %v, want [1 3]", biasGrad.Shape())
	}
	assertGrad(t, []float32{2, 2, 2}, biasGrad, "dy/dbias summed over batch")
}

func TestBackward_Transpose(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	y := x.Transpose()

	grads := autodiff.Backward(y, backend)
	grad := grads[x.Raw()]
	if !grad.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("gradient shape = %v, want [2 3]", grad.Shape())
	}
	assertGrad(t, []float32{1, 1, 1, 1, 1, 1}, grad, "transpose gradient")
}

func TestBackward_Reshape(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4}, backend)
	y := x.Reshape(2, 2)

	grads := autodiff.Backward(y, backend)
	grad := grads[x.Raw()]
	if !grad.Shape().Equal(tensor.Shape{4}) {
		t.Fatalf("gradient shape = %v, want [4]", grad.Shape())
	}
}

func TestBackward_EmptyTapePanics(t *testing.T) {
	backend := autodiff.New(cpu.New())

	x, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1}, backend)

	defer func() {
		if recover() == nil {
			t.Error("Backward on an empty tape should panic")
		}
	}()
	autodiff.Backward(x, backend)
}

func TestBackward_SuspendsRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()
	tape.StartRecording()

	x, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
	y := x.Mul(x)

	before := tape.NumOps()
	autodiff.Backward(y, backend)
	// Backward's own backend calls must not land on the tape.
	if tape.NumOps() != before {
		t.Errorf("NumOps() = %d after Backward, want %d", tape.NumOps(), before)
	}
}
