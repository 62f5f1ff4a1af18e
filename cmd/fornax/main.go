// Package main provides the Fornax runtime CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fornax-ml/fornax/backend/cpu"
	"github.com/fornax-ml/fornax/engine"
	"github.com/fornax-ml/fornax/tensor"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Fornax %s\n", version)
			return
		case "kernels":
			listKernels()
			return
		case "check":
			if err := check(); err != nil {
				fmt.Fprintf(os.Stderr, "check failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("ok")
			return
		}
	}

	fmt.Println("Fornax - Tensor Runtime for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  kernels    List the CPU backend's kernels")
	fmt.Println("  check      Run a tiny computation end to end")
}

func listKernels() {
	for _, name := range cpu.KernelNames() {
		fmt.Println(name)
	}
}

// check spins up an engine with the CPU backend and verifies a small
// matmul round trip.
func check() error {
	e := engine.New()
	cpu.Register(e, "cpu", 1)
	if err := e.Ready(context.Background()); err != nil {
		return err
	}
	defer e.Close()

	results := e.Tidy("check", func() []tensor.Info {
		a, err := e.MakeTensor([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.Float32)
		if err != nil {
			panic(err)
		}
		b, err := e.MakeTensor([]float32{5, 6, 7, 8}, tensor.Shape{2, 2}, tensor.Float32)
		if err != nil {
			panic(err)
		}
		out, err := e.RunKernel("MatMul", map[string]tensor.Info{"a": a, "b": b}, nil)
		if err != nil {
			panic(err)
		}
		return out
	})

	v, err := e.ReadSync(results[0])
	if err != nil {
		return err
	}
	got := v.([]float32)
	want := []float32{19, 22, 43, 50}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("matmul mismatch at %d: got %v, want %v", i, got[i], want[i])
		}
	}
	e.DisposeTensor(results[0])
	return nil
}
