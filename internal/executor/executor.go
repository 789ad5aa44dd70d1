// Package executor runs computation graphs: a sequential interpreter that
// walks the cached topological order, and a parallel scheduler that drives
// a fixed worker pool from per-node dependency counts. Both share one
// contract: every node's forward capability runs exactly once, in an order
// consistent with the edges, and every node ends Completed or Error.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/etude/internal/ctxlog"
	"github.com/vk/etude/internal/graph"
	"github.com/vk/etude/internal/registry"
	"github.com/vk/etude/internal/tensor"
)

// ErrRuntime indicates a node execution failure, a missing forward
// capability, or a run that can make no further progress. The run's Error
// state markers stay visible for diagnosis; a fresh call is required to
// retry.
var ErrRuntime = errors.New("executor: runtime error")

// Run executes the graph sequentially. It sorts first if the cached order
// is stale, binds the caller's input tensors onto the declared input nodes,
// invokes each node's forward capability in order, and returns the output
// nodes' tensors. The first node failure stops the run; remaining nodes are
// not executed.
func Run(ctx context.Context, g *graph.Graph, reg *registry.Registry, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	logger := ctxlog.FromContext(ctx)
	if err := prepare(g, reg, inputs); err != nil {
		return nil, err
	}

	for _, n := range g.ExecOrder() {
		if err := runNode(reg, n); err != nil {
			n.State = graph.StateError
			logger.Error("Node execution failed.", "node", n.Name, "op", n.OpType, "error", err)
			return nil, fmt.Errorf("%w: node %q: %v", ErrRuntime, n.Name, err)
		}
	}

	return collectOutputs(g)
}

// prepare validates arguments, ensures a valid execution order, resets node
// states and binds the caller's tensors onto the graph's entry set.
func prepare(g *graph.Graph, reg *registry.Registry, inputs []*tensor.Tensor) error {
	if g == nil || reg == nil {
		return fmt.Errorf("%w: nil graph or registry", graph.ErrInvalidArgument)
	}
	if !g.Sorted() {
		if err := g.TopologicalSort(); err != nil {
			return err
		}
	}
	if len(inputs) != len(g.InputNodes) {
		return fmt.Errorf("%w: %d input tensors for %d input nodes",
			graph.ErrInvalidArgument, len(inputs), len(g.InputNodes))
	}

	g.ResetStates()
	for i, n := range g.InputNodes {
		if inputs[i] == nil || !inputs[i].Valid() {
			return fmt.Errorf("%w: invalid tensor for input node %q", graph.ErrInvalidArgument, n.Name)
		}
		n.InputTensors = []*tensor.Tensor{inputs[i]}
	}
	return nil
}

// runNode resolves the node's operator, prepares it on first use, wires the
// predecessors' outputs into the node's input ports and invokes forward.
func runNode(reg *registry.Registry, n *graph.Node) error {
	if err := bindPredecessors(n); err != nil {
		return err
	}
	op, ok := reg.Find(n.OpType)
	if !ok {
		return fmt.Errorf("no forward capability registered for op %q", n.OpType)
	}
	if !n.Prepared {
		if err := op.Create(n); err != nil {
			return err
		}
		n.Prepared = true
	}

	n.State = graph.StateRunning
	if err := op.Forward(n); err != nil {
		return err
	}
	n.State = graph.StateCompleted
	return nil
}

// bindPredecessors points the node's input ports at its predecessors'
// first output tensors. Graph entry nodes keep the tensors bound by
// prepare.
func bindPredecessors(n *graph.Node) error {
	if len(n.Inputs) == 0 {
		return nil
	}
	tensors := make([]*tensor.Tensor, len(n.Inputs))
	for i, pred := range n.Inputs {
		if len(pred.OutputTensors) == 0 || pred.OutputTensors[0] == nil {
			return fmt.Errorf("predecessor %q produced no output tensor", pred.Name)
		}
		tensors[i] = pred.OutputTensors[0]
	}
	n.InputTensors = tensors
	return nil
}

// collectOutputs gathers the first output tensor of every declared output
// node.
func collectOutputs(g *graph.Graph) ([]*tensor.Tensor, error) {
	outputs := make([]*tensor.Tensor, len(g.OutputNodes))
	for i, n := range g.OutputNodes {
		if len(n.OutputTensors) == 0 || n.OutputTensors[0] == nil {
			return nil, fmt.Errorf("%w: output node %q produced no tensor", ErrRuntime, n.Name)
		}
		outputs[i] = n.OutputTensors[0]
	}
	return outputs, nil
}
