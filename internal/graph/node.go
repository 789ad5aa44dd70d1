package graph

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/etude/internal/tensor"
)

var (
	// ErrInvalidArgument indicates a nil or out-of-range input to a graph operation.
	ErrInvalidArgument = errors.New("graph: invalid argument")
	// ErrDuplicateEdge indicates an edge that already exists between two nodes.
	ErrDuplicateEdge = fmt.Errorf("%w: edge already exists", ErrInvalidArgument)
	// ErrCycleDetected indicates the edge relation contains a directed cycle.
	ErrCycleDetected = errors.New("graph: cycle detected")
)

// State is the execution state of a node.
type State int32

const (
	// StateReady means the node is waiting to be executed.
	StateReady State = iota
	// StateRunning means a worker is currently executing the node.
	StateRunning
	// StateCompleted means the node executed successfully.
	StateCompleted
	// StateError means the node failed execution.
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// UnorderedExec is the sentinel value of ExecOrder before a successful
// topological sort has assigned a position.
const UnorderedExec = -1

// Node is a single vertex of a computation graph: one operation instance,
// its tensor ports, and its adjacency. Adjacency is bidirectional and kept
// consistent by Connect/Disconnect; callers never edit the edge slices
// directly.
type Node struct {
	// Name uniquely identifies the node within its graph and is used for lookup.
	Name string
	// OpType is the string key into the operator registry. The operator is
	// resolved lazily at optimize/execute time, so a node may exist without
	// a matching registration.
	OpType string

	// Inputs are the predecessor nodes, in connection order.
	Inputs []*Node
	// Outputs are the successor nodes, in connection order.
	Outputs []*Node

	// InputTensors and OutputTensors are the node's data ports. The port
	// count is fixed by the operator that prepared the node; the tensors
	// themselves are referenced, never owned.
	InputTensors  []*tensor.Tensor
	OutputTensors []*tensor.Tensor

	// Attrs carries the operator attributes from the model description. The
	// graph never inspects it; only the owning operator's Create does.
	Attrs cty.Value
	// OpData is the operator's private per-node state, built by Create and
	// released by OnDestroy.
	OpData any
	// OnDestroy releases OpData. Operators bind it during Create so a graph
	// can destroy still-owned nodes without consulting the registry.
	OnDestroy func(*Node)
	// Prepared records that the resolved operator's Create has run. Rewrite
	// passes clear it when they change OpType.
	Prepared bool

	// State is the node's execution state. During a parallel run each node
	// is written by exactly one worker.
	State State
	// ExecOrder is the position assigned by the last successful topological
	// sort, or UnorderedExec.
	ExecOrder int

	// IsGraphInput and IsGraphOutput mark membership in the graph's declared
	// entry and exit sets. They are independent of edge structure.
	IsGraphInput  bool
	IsGraphOutput bool

	// ReuseInput is the index of the input tensor whose buffer the output
	// may alias in place, or -1. Only the memory-access optimization pass
	// sets it.
	ReuseInput int

	pool    *tensor.Pool
	pending atomic.Int32
}

// NewNode creates a detached node with empty edges and Ready state. The pool
// is the arena the node's operator draws output tensors from; it may be nil.
// The registry is not consulted here.
func NewNode(name, opType string, pool *tensor.Pool) (*Node, error) {
	if name == "" || opType == "" {
		return nil, fmt.Errorf("%w: node name and op type must not be empty", ErrInvalidArgument)
	}
	return &Node{
		Name:       name,
		OpType:     opType,
		State:      StateReady,
		ExecOrder:  UnorderedExec,
		ReuseInput: -1,
		pool:       pool,
	}, nil
}

// Pool returns the arena this node allocates output tensors from.
func (n *Node) Pool() *tensor.Pool {
	return n.pool
}

// Destroy releases the node's operator state and drops its tensor
// references. It must be called exactly once by whoever owns the node at
// the time it leaves a graph for good.
func (n *Node) Destroy() {
	if n == nil {
		return
	}
	if n.OnDestroy != nil {
		n.OnDestroy(n)
		n.OnDestroy = nil
	}
	n.OpData = nil
	n.InputTensors = nil
	n.OutputTensors = nil
}

// SetPendingDeps initializes the scheduler's unsatisfied-predecessor count.
func (n *Node) SetPendingDeps(count int32) {
	n.pending.Store(count)
}

// DecPendingDeps atomically decrements the unsatisfied-predecessor count and
// returns the new value. The node becomes ready when it reaches zero.
func (n *Node) DecPendingDeps() int32 {
	return n.pending.Add(-1)
}

// PendingDeps returns the current unsatisfied-predecessor count.
func (n *Node) PendingDeps() int32 {
	return n.pending.Load()
}

// hasSuccessor reports whether an edge n->dst already exists.
func (n *Node) hasSuccessor(dst *Node) bool {
	for _, succ := range n.Outputs {
		if succ == dst {
			return true
		}
	}
	return false
}

func removeNodeRef(list []*Node, target *Node) []*Node {
	for i, n := range list {
		if n == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
