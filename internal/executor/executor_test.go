package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/etude/internal/graph"
	"github.com/vk/etude/internal/ops"
	"github.com/vk/etude/internal/registry"
	"github.com/vk/etude/internal/tensor"
)

// boomOp always fails its forward pass.
type boomOp struct{}

func (boomOp) Name() string { return "boom" }

func (op boomOp) Create(n *graph.Node) error {
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (boomOp) Forward(n *graph.Node) error {
	return errors.New("kernel exploded")
}

func (boomOp) Destroy(n *graph.Node) {}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New(0)
	require.NoError(t, ops.RegisterAllOperators(r))
	require.NoError(t, r.Register(boomOp{}))
	return r
}

func addNode(t *testing.T, g *graph.Graph, name, opType string) *graph.Node {
	t.Helper()
	n, err := graph.NewNode(name, opType, g.Pool())
	require.NoError(t, err)
	require.NoError(t, g.AddNode(n))
	return n
}

func makeInput(t *testing.T, data []float32) *tensor.Tensor {
	t.Helper()
	tr, err := tensor.New(nil, tensor.Float32, []int{len(data)})
	require.NoError(t, err)
	copy(tr.Data, data)
	return tr
}

// buildChain wires in -> lin(2x+1) -> act, with in declared input and act
// declared output.
func buildChain(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(0, nil)
	in := addNode(t, g, "in", ops.OpInput)
	lin := addNode(t, g, "lin", ops.OpLinear)
	lin.Attrs = cty.ObjectVal(map[string]cty.Value{
		"weight": cty.NumberFloatVal(2),
		"bias":   cty.NumberFloatVal(1),
	})
	act := addNode(t, g, "act", ops.OpReLU)
	require.NoError(t, g.Connect(in, lin))
	require.NoError(t, g.Connect(lin, act))
	g.MarkInput(in)
	g.MarkOutput(act)
	return g
}

func buildDiamond(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(0, nil)
	in := addNode(t, g, "in", ops.OpInput)
	left := addNode(t, g, "left", ops.OpReLU)
	right := addNode(t, g, "right", ops.OpConv1D)
	join := addNode(t, g, "join", ops.OpAttention)
	require.NoError(t, g.Connect(in, left))
	require.NoError(t, g.Connect(in, right))
	require.NoError(t, g.Connect(left, join))
	require.NoError(t, g.Connect(right, join))
	g.MarkInput(in)
	g.MarkOutput(join)
	return g
}

func TestRun_SequentialChain(t *testing.T) {
	t.Parallel()

	g := buildChain(t)
	defer g.Close()

	outputs, err := Run(context.Background(), g, testRegistry(t), []*tensor.Tensor{
		makeInput(t, []float32{-2, -1, 0, 1, 2}),
	})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, []float32{0, 0, 1, 3, 5}, outputs[0].Data)

	for _, n := range g.Nodes {
		assert.Equal(t, graph.StateCompleted, n.State, "node %q", n.Name)
	}
}

func TestRunParallel_MatchesSequential(t *testing.T) {
	t.Parallel()

	input := []float32{-1, 0.5, 2, -3, 1}
	reg := testRegistry(t)

	g := buildDiamond(t)
	defer g.Close()
	want, err := Run(context.Background(), g, reg, []*tensor.Tensor{makeInput(t, input)})
	require.NoError(t, err)

	for _, workers := range []int{1, 4} {
		got, err := RunParallel(context.Background(), g, reg,
			[]*tensor.Tensor{makeInput(t, input)}, workers)
		require.NoError(t, err, "workers=%d", workers)
		require.Len(t, got, 1)
		assert.Equal(t, want[0].Data, got[0].Data, "workers=%d", workers)

		for _, n := range g.Nodes {
			assert.Equal(t, graph.StateCompleted, n.State,
				"workers=%d node %q", workers, n.Name)
		}
	}
}

func TestRunParallel_DefaultWorkerCount(t *testing.T) {
	t.Parallel()

	g := buildChain(t)
	defer g.Close()

	// workers <= 0 falls back to GOMAXPROCS.
	outputs, err := RunParallel(context.Background(), g, testRegistry(t),
		[]*tensor.Tensor{makeInput(t, []float32{1, 2})}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 5}, outputs[0].Data)
}

func TestRun_NodeFailureStopsRun(t *testing.T) {
	t.Parallel()

	g := graph.New(0, nil)
	in := addNode(t, g, "in", ops.OpInput)
	bad := addNode(t, g, "bad", "boom")
	down := addNode(t, g, "down", ops.OpReLU)
	require.NoError(t, g.Connect(in, bad))
	require.NoError(t, g.Connect(bad, down))
	g.MarkInput(in)
	g.MarkOutput(down)
	defer g.Close()

	_, err := Run(context.Background(), g, testRegistry(t),
		[]*tensor.Tensor{makeInput(t, []float32{1})})
	require.ErrorIs(t, err, ErrRuntime)
	assert.Contains(t, err.Error(), `"bad"`)

	assert.Equal(t, graph.StateError, bad.State)
	// Nodes after the failure never run.
	assert.Equal(t, graph.StateReady, down.State)
}

func TestRunParallel_FailureLeavesDependentsReady(t *testing.T) {
	t.Parallel()

	g := graph.New(0, nil)
	in := addNode(t, g, "in", ops.OpInput)
	bad := addNode(t, g, "bad", "boom")
	down := addNode(t, g, "down", ops.OpReLU)
	tail := addNode(t, g, "tail", ops.OpReLU)
	ok := addNode(t, g, "ok", ops.OpReLU)
	require.NoError(t, g.Connect(in, bad))
	require.NoError(t, g.Connect(bad, down))
	require.NoError(t, g.Connect(down, tail))
	require.NoError(t, g.Connect(in, ok))
	g.MarkInput(in)
	g.MarkOutput(tail)
	g.MarkOutput(ok)
	defer g.Close()

	_, err := RunParallel(context.Background(), g, testRegistry(t),
		[]*tensor.Tensor{makeInput(t, []float32{1, 2})}, 4)
	require.ErrorIs(t, err, ErrRuntime)

	assert.Equal(t, graph.StateError, bad.State)
	// Transitive dependents of the failure are never scheduled.
	assert.Equal(t, graph.StateReady, down.State)
	assert.Equal(t, graph.StateReady, tail.State)
	// The independent branch still completes.
	assert.Equal(t, graph.StateCompleted, ok.State)
}

func TestRun_MissingOperator(t *testing.T) {
	t.Parallel()

	g := graph.New(0, nil)
	in := addNode(t, g, "in", ops.OpInput)
	mys := addNode(t, g, "mys", "quantize")
	require.NoError(t, g.Connect(in, mys))
	g.MarkInput(in)
	g.MarkOutput(mys)
	defer g.Close()

	_, err := Run(context.Background(), g, testRegistry(t),
		[]*tensor.Tensor{makeInput(t, []float32{1})})
	require.ErrorIs(t, err, ErrRuntime)
	assert.Contains(t, err.Error(), "quantize")
}

func TestRun_InputCountMismatch(t *testing.T) {
	t.Parallel()

	g := buildChain(t)
	defer g.Close()

	_, err := Run(context.Background(), g, testRegistry(t), nil)
	require.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func TestRun_NilInputTensor(t *testing.T) {
	t.Parallel()

	g := buildChain(t)
	defer g.Close()

	_, err := Run(context.Background(), g, testRegistry(t), []*tensor.Tensor{nil})
	require.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func TestRun_RejectsCyclicGraph(t *testing.T) {
	t.Parallel()

	g := graph.New(0, nil)
	a := addNode(t, g, "a", ops.OpReLU)
	b := addNode(t, g, "b", ops.OpReLU)
	require.NoError(t, g.Connect(a, b))
	require.NoError(t, g.Connect(b, a))

	_, err := Run(context.Background(), g, testRegistry(t), nil)
	require.ErrorIs(t, err, graph.ErrCycleDetected)

	_, err = RunParallel(context.Background(), g, testRegistry(t), nil, 2)
	require.ErrorIs(t, err, graph.ErrCycleDetected)
}

func TestRun_RepeatedExecution(t *testing.T) {
	t.Parallel()

	g := buildChain(t)
	defer g.Close()
	reg := testRegistry(t)

	first, err := Run(context.Background(), g, reg,
		[]*tensor.Tensor{makeInput(t, []float32{1})})
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, first[0].Data)

	// A second run over the same graph re-binds fresh inputs.
	second, err := Run(context.Background(), g, reg,
		[]*tensor.Tensor{makeInput(t, []float32{-4})})
	require.NoError(t, err)
	assert.Equal(t, []float32{0}, second[0].Data)
}
