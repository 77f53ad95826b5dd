// Package main provides the lingrad CLI.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lingrad-ml/lingrad/autodiff"
	"github.com/lingrad-ml/lingrad/backend/cpu"
	"github.com/lingrad-ml/lingrad/internal/checkpoint"
	"github.com/lingrad-ml/lingrad/internal/dataset"
	"github.com/lingrad-ml/lingrad/internal/train"
	"github.com/lingrad-ml/lingrad/nn"
	"github.com/lingrad-ml/lingrad/tensor"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("lingrad %s\n", version)
	case "demo":
		runDemo()
	case "train":
		if err := runTrain(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("lingrad - Linear Regression with Automatic Differentiation")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  demo       Run gradient computation demos")
	fmt.Println("  train      Train a linear regression model")
}

// runDemo shows gradient computation on small examples: a single square,
// a composite expression, and a few manual gradient descent steps.
func runDemo() {
	backend := autodiff.New(cpu.New())

	// dy/dx of y = x² at x = 3.
	backend.Tape().StartRecording()
	x, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1}, backend)
	y := x.Mul(x)
	grads := autodiff.Backward(y, backend)
	fmt.Printf("y = x²       at x=3: y=%v  dy/dx=%v\n",
		y.Data(), grads[x.Raw()].AsFloat32())

	// dz/dx of z = (x + 2) * 3 at x = 3.
	backend.Tape().Clear()
	backend.Tape().StartRecording()
	x2, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1}, backend)
	z := x2.AddScalar(float32(2)).MulScalar(float32(3))
	grads = autodiff.Backward(z, backend)
	fmt.Printf("z = (x+2)*3  at x=3: z=%v  dz/dx=%v\n",
		z.Data(), grads[x2.Raw()].AsFloat32())

	// A few steps of gradient descent on f(w) = (w - 5)².
	fmt.Println("\nminimizing f(w) = (w-5)² with lr=0.3:")
	w := float32(0)
	for step := 1; step <= 5; step++ {
		backend.Tape().Clear()
		backend.Tape().StartRecording()

		wt, _ := tensor.FromSlice([]float32{w}, tensor.Shape{1}, backend)
		diff := wt.AddScalar(float32(-5))
		f := diff.Mul(diff)

		grads := autodiff.Backward(f, backend)
		grad := grads[wt.Raw()].AsFloat32()[0]

		w -= 0.3 * grad
		fmt.Printf("  step %d: f=%.4f  grad=%.4f  w=%.4f\n", step, f.Item(), grad, w)
	}
}

// runTrain trains a Linear model on a synthetic dataset (or a CSV file) and
// optionally saves a checkpoint.
func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	csvPath := fs.String("csv", "", "path to CSV dataset (default: synthetic data)")
	epochs := fs.Int("epochs", 0, "override number of epochs")
	lr := fs.Float64("lr", 0, "override learning rate")
	optimizer := fs.String("optimizer", "", "override optimizer (sgd or adam)")
	mode := fs.String("mode", "", "override update mode (manual or optimizer)")
	out := fs.String("out", "", "path to save checkpoint after training")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := train.DefaultConfig()
	if *configPath != "" {
		loaded, err := train.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *epochs > 0 {
		cfg.Epochs = *epochs
	}
	if *lr > 0 {
		cfg.LearningRate = float32(*lr)
	}
	if *optimizer != "" {
		cfg.Optimizer = *optimizer
	}
	if *mode != "" {
		cfg.UpdateMode = train.UpdateMode(*mode)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var data *dataset.Dataset
	trueWeights := []float32{2, -3.4, 1.7}
	trueBias := float32(4.2)
	if *csvPath != "" {
		loaded, err := dataset.LoadCSV(*csvPath, 0)
		if err != nil {
			return err
		}
		data = loaded
		fmt.Printf("loaded %d samples with %d features from %s\n",
			data.NumSamples(), data.NumFeatures(), *csvPath)
	} else {
		data = dataset.Synthetic(512, trueWeights, trueBias, cfg.NoiseStd, cfg.Seed)
		fmt.Printf("generated %d synthetic samples: y = %v·x + %v + noise\n",
			data.NumSamples(), trueWeights, trueBias)
	}

	backend := autodiff.New(cpu.New())
	model := nn.NewLinear(data.NumFeatures(), 1, backend)

	trainer, err := train.NewTrainer(model, cfg, backend)
	if err != nil {
		return err
	}
	trainer.OnEpoch = func(epoch int, loss float32) {
		if epoch%cfg.LogEvery == 0 || epoch == cfg.Epochs {
			fmt.Printf("epoch %4d: loss=%.6f\n", epoch, loss)
		}
	}

	finalLoss, err := trainer.Fit(data)
	if err != nil {
		return err
	}

	fmt.Printf("\nfinal loss: %.6f\n", finalLoss)
	fmt.Printf("learned weights: %v\n", model.Weight().Tensor().Data())
	fmt.Printf("learned bias:    %v\n", model.Bias().Tensor().Data())
	if *csvPath == "" {
		fmt.Printf("true weights:    %v\n", trueWeights)
		fmt.Printf("true bias:       %v\n", []float32{trueBias})
	}

	if *out != "" {
		ckpt := &checkpoint.Checkpoint{
			Model: model,
			Epoch: cfg.Epochs,
			Loss:  float64(finalLoss),
		}
		if sd, ok := trainer.Optimizer().(checkpoint.StateDicter); ok {
			ckpt.Optimizer = sd
		}
		if err := ckpt.Save(*out); err != nil {
			return err
		}
		fmt.Printf("saved checkpoint to %s\n", *out)
	}

	return nil
}
