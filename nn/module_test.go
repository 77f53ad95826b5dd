// Copyright 2026 The Lingrad Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"testing"

	"github.com/lingrad-ml/lingrad/internal/backend/cpu"
	"github.com/lingrad-ml/lingrad/internal/tensor"
	"github.com/lingrad-ml/lingrad/nn"
)

// TestModuleInterface verifies that Linear implements the Module interface.
func TestModuleInterface(t *testing.T) {
	backend := cpu.New()

	var module nn.Module[*cpu.CPUBackend] = nn.NewLinear(10, 5, backend)

	input := tensor.Randn[float32](tensor.Shape{2, 10}, backend)
	output := module.Forward(input)
	if !output.Shape().Equal(tensor.Shape{2, 5}) {
		t.Errorf("Forward() shape = %v, want [2 5]", output.Shape())
	}

	params := module.Parameters()
	if len(params) != 2 {
		t.Errorf("Parameters() returned %d parameters, want 2", len(params))
	}
}

// TestParameterAPI verifies the Parameter alias exposes the expected API.
func TestParameterAPI(t *testing.T) {
	backend := cpu.New()
	tensorData := tensor.Randn[float32](tensor.Shape{3, 3}, backend)

	param := nn.NewParameter("test.weight", tensorData)

	if name := param.Name(); name != "test.weight" {
		t.Errorf("Name() = %q, want %q", name, "test.weight")
	}
	if got := param.Tensor(); got != tensorData {
		t.Error("Tensor() returned different tensor than provided")
	}
	if grad := param.Grad(); grad != nil {
		t.Error("Grad() should be nil before backward pass")
	}

	gradTensor := tensor.Zeros[float32](tensor.Shape{3, 3}, backend)
	param.SetGrad(gradTensor)
	if got := param.Grad(); got != gradTensor {
		t.Error("Grad() returned different tensor after SetGrad()")
	}

	param.ZeroGrad()
	if grad := param.Grad(); grad != nil {
		t.Error("Grad() should be nil after ZeroGrad()")
	}
}

// TestXavier verifies the initialization helper stays within its bound.
func TestXavier(t *testing.T) {
	backend := cpu.New()

	x := nn.Xavier(10, 5, tensor.Shape{5, 10}, backend)
	limit := float32(0.633) // sqrt(6 / 15) ≈ 0.6325

	for i, v := range x.Data() {
		if v < -limit || v > limit {
			t.Errorf("Xavier value %d out of bounds: %v", i, v)
		}
	}
}
