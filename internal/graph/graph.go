// Package graph implements the computation-graph data model of the engine:
// nodes with bidirectional adjacency, the owning graph with its declared
// input/output sets, topological ordering, and cycle detection. Rewrite
// passes and executors live in their own packages and mutate graphs only
// through this package's API.
package graph

import (
	"fmt"

	"github.com/vk/etude/internal/tensor"
)

// DefaultCapacity is the initial node capacity used when New is called with
// a non-positive value.
const DefaultCapacity = 32

// Graph owns an insertion-ordered set of nodes plus the declared input and
// output subsets. The cached execution order is valid only while sorted is
// true; any structural mutation invalidates it.
//
// A graph is not safe for concurrent mutation. All structural edits must
// happen before an execution call begins.
type Graph struct {
	// Name is optional metadata from the model description.
	Name string
	// Nodes is the owned node set in insertion order.
	Nodes []*Node
	// InputNodes and OutputNodes are non-owning references into Nodes,
	// declared by the builder rather than derived from edge structure.
	InputNodes  []*Node
	OutputNodes []*Node

	execOrder []*Node
	sorted    bool
	optimized bool
	pool      *tensor.Pool
}

// New creates an empty graph backed by the caller-supplied arena. The pool
// may be nil, in which case nodes allocate without a budget.
func New(capacity int, pool *tensor.Pool) *Graph {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Graph{
		Nodes: make([]*Node, 0, capacity),
		pool:  pool,
	}
}

// Pool returns the arena the graph was created against.
func (g *Graph) Pool() *tensor.Pool {
	return g.pool
}

// Len returns the number of nodes the graph currently owns.
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// Sorted reports whether the cached execution order is valid.
func (g *Graph) Sorted() bool {
	return g.sorted
}

// Optimized reports whether any optimizer pass has changed the graph.
func (g *Graph) Optimized() bool {
	return g.optimized
}

// MarkOptimized records that a rewrite pass structurally changed the graph.
func (g *Graph) MarkOptimized() {
	g.optimized = true
}

// MarkMutated invalidates the cached execution order. Connect, Disconnect,
// AddNode and RemoveNode call it themselves; rewrite passes that bypass
// those entry points must call it explicitly.
func (g *Graph) MarkMutated() {
	g.sorted = false
}

// ExecOrder returns the cached execution order, or nil when the graph is
// not currently sorted.
func (g *Graph) ExecOrder() []*Node {
	if !g.sorted {
		return nil
	}
	return g.execOrder
}

// AddNode registers a node into the graph's owned set.
func (g *Graph) AddNode(n *Node) error {
	if g == nil || n == nil {
		return fmt.Errorf("%w: nil graph or node", ErrInvalidArgument)
	}
	g.Nodes = append(g.Nodes, n)
	g.sorted = false
	return nil
}

// RemoveNode detaches a node from the graph and returns it. All incident
// edges are severed first, so neighbors never retain dangling adjacency.
// Ownership of the detached node reverts to the caller, who must Destroy it
// exactly once; the graph does not destroy it.
func (g *Graph) RemoveNode(n *Node) (*Node, error) {
	if g == nil || n == nil {
		return nil, fmt.Errorf("%w: nil graph or node", ErrInvalidArgument)
	}
	found := false
	for _, owned := range g.Nodes {
		if owned == n {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: node %q is not in the graph", ErrInvalidArgument, n.Name)
	}

	for _, pred := range append([]*Node(nil), n.Inputs...) {
		_ = g.Disconnect(pred, n)
	}
	for _, succ := range append([]*Node(nil), n.Outputs...) {
		_ = g.Disconnect(n, succ)
	}

	g.Nodes = removeNodeRef(g.Nodes, n)
	g.InputNodes = removeNodeRef(g.InputNodes, n)
	g.OutputNodes = removeNodeRef(g.OutputNodes, n)
	g.sorted = false
	return n, nil
}

// Connect adds the directed edge src->dst, keeping both adjacency lists in
// step. Connecting the same pair twice is an error; there are no duplicate
// edges.
func (g *Graph) Connect(src, dst *Node) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil node in connect", ErrInvalidArgument)
	}
	if src == dst {
		return fmt.Errorf("%w: self edge on %q", ErrInvalidArgument, src.Name)
	}
	if src.hasSuccessor(dst) {
		return fmt.Errorf("%w: %s -> %s", ErrDuplicateEdge, src.Name, dst.Name)
	}
	src.Outputs = append(src.Outputs, dst)
	dst.Inputs = append(dst.Inputs, src)
	if g != nil {
		g.sorted = false
	}
	return nil
}

// Disconnect removes the directed edge src->dst. Removing an absent edge is
// a successful no-op.
func (g *Graph) Disconnect(src, dst *Node) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil node in disconnect", ErrInvalidArgument)
	}
	if !src.hasSuccessor(dst) {
		return nil
	}
	src.Outputs = removeNodeRef(src.Outputs, dst)
	dst.Inputs = removeNodeRef(dst.Inputs, src)
	if g != nil {
		g.sorted = false
	}
	return nil
}

// FindNodeByName scans the owned set in insertion order and returns the
// first node with the given name. A miss is a normal result, not an error.
func (g *Graph) FindNodeByName(name string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// MarkInput declares a node as part of the graph's entry set.
func (g *Graph) MarkInput(n *Node) {
	if n == nil || n.IsGraphInput {
		return
	}
	n.IsGraphInput = true
	g.InputNodes = append(g.InputNodes, n)
}

// MarkOutput declares a node as part of the graph's exit set.
func (g *Graph) MarkOutput(n *Node) {
	if n == nil || n.IsGraphOutput {
		return
	}
	n.IsGraphOutput = true
	g.OutputNodes = append(g.OutputNodes, n)
}

// Summary returns a one-line description of the graph's shape, suitable for
// diagnostic logs.
func (g *Graph) Summary() string {
	edges := 0
	for _, n := range g.Nodes {
		edges += len(n.Outputs)
	}
	return fmt.Sprintf("graph %q: %d nodes, %d edges, %d inputs, %d outputs, sorted=%t, optimized=%t",
		g.Name, len(g.Nodes), edges, len(g.InputNodes), len(g.OutputNodes), g.sorted, g.optimized)
}

// ResetStates returns every node to Ready before a fresh execution.
func (g *Graph) ResetStates() {
	for _, n := range g.Nodes {
		n.State = StateReady
	}
}

// Close destroys every node the graph still owns and drops all bookkeeping.
// The caller-supplied pool is not reset here; its lifetime belongs to the
// caller.
func (g *Graph) Close() {
	if g == nil {
		return
	}
	for _, n := range g.Nodes {
		n.Destroy()
	}
	g.Nodes = nil
	g.InputNodes = nil
	g.OutputNodes = nil
	g.execOrder = nil
	g.sorted = false
}
