// Package app wires the engine front-end together: it loads a model
// description, registers the operator families, builds and validates the
// graph, applies the requested optimization passes and executes the result.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vk/etude/internal/ctxlog"
	"github.com/vk/etude/internal/executor"
	"github.com/vk/etude/internal/graph"
	"github.com/vk/etude/internal/hclmodel"
	"github.com/vk/etude/internal/ops"
	"github.com/vk/etude/internal/optimizer"
	"github.com/vk/etude/internal/registry"
	"github.com/vk/etude/internal/tensor"
)

// App is one configured engine instance.
type App struct {
	out  io.Writer
	cfg  *Config
	logW io.Writer
}

// New creates an App writing results to out and logs to stderr.
func New(out io.Writer, cfg *Config) *App {
	return &App{out: out, cfg: cfg, logW: os.Stderr}
}

// SetLogWriter redirects log output, used by tests to keep output quiet.
func (a *App) SetLogWriter(w io.Writer) {
	a.logW = w
}

// Run executes the configured model end to end and prints one summary line
// per declared output tensor.
func (a *App) Run(ctx context.Context) error {
	logger := newLogger(a.cfg, a.logW)
	ctx = ctxlog.WithLogger(ctx, logger)

	reg := registry.New(0)
	if err := ops.RegisterAllOperators(reg); err != nil {
		return fmt.Errorf("registering operators: %w", err)
	}
	logger.Debug("Operator registry ready.", "operators", reg.Len())

	model, err := hclmodel.LoadFile(ctx, a.cfg.ModelPath)
	if err != nil {
		return err
	}

	pool := tensor.NewPool(a.cfg.PoolSize)
	g, err := hclmodel.BuildGraph(ctx, model, pool)
	if err != nil {
		return err
	}
	defer g.Close()

	if g.HasCycle() {
		return fmt.Errorf("model %q: %w", model.Name, graph.ErrCycleDetected)
	}

	if err := optimizer.Optimize(ctx, g, reg, a.cfg.OptFlags); err != nil {
		return fmt.Errorf("optimizing model %q: %w", model.Name, err)
	}
	logger.Info("Model ready.",
		"model", model.Name, "nodes", g.Len(), "optimized", g.Optimized())
	logger.Debug("Graph summary.", "summary", g.Summary())

	inputs := make([]*tensor.Tensor, len(g.InputNodes))
	for i := range inputs {
		t, err := tensor.New(pool, tensor.Float32, []int{a.cfg.InputLength})
		if err != nil {
			return err
		}
		for j := range t.Data {
			t.Data[j] = float32(j) / float32(len(t.Data))
		}
		inputs[i] = t
	}

	var outputs []*tensor.Tensor
	if a.cfg.WorkerCount > 1 {
		outputs, err = executor.RunParallel(ctx, g, reg, inputs, a.cfg.WorkerCount)
	} else {
		outputs, err = executor.Run(ctx, g, reg, inputs)
	}
	if err != nil {
		return err
	}

	for i, t := range outputs {
		fmt.Fprintf(a.out, "%s: len=%d mean=%.6f\n",
			g.OutputNodes[i].Name, t.NumElems(), mean(t.Data))
	}
	return nil
}

func mean(data []float32) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	return sum / float64(len(data))
}
