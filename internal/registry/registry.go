// Package registry maps op-type tags to operator implementations. Nodes
// carry only the string tag; the operator behind it is resolved here,
// lazily, at optimize or execute time.
package registry

import (
	"errors"
	"fmt"

	"github.com/vk/etude/internal/graph"
)

var (
	// ErrDuplicateOperator indicates a registration under a name that is already taken.
	ErrDuplicateOperator = errors.New("registry: operator already registered")
	// ErrInvalidOperator indicates a nil operator or an empty name.
	ErrInvalidOperator = errors.New("registry: invalid operator")
)

// Operator is the set of capabilities behind one op-type tag.
//
// Create builds the operator's per-node state from the node's attributes and
// fixes the output-port count; it runs once per node, before the first
// Forward. Forward computes the node's output tensors from its input
// tensors. Destroy releases whatever Create built; Create is expected to
// bind it to the node's OnDestroy hook so graphs can destroy nodes without
// a registry in hand.
type Operator interface {
	Name() string
	Create(n *graph.Node) error
	Forward(n *graph.Node) error
	Destroy(n *graph.Node)
}

// BackwardOperator is implemented by operators that additionally support a
// backward pass. No current pass exercises it; the capability slot exists
// for parity with the registry contract.
type BackwardOperator interface {
	Operator
	Backward(n *graph.Node) error
}

// DefaultCapacity is the initial registry capacity used when New is called
// with a non-positive value.
const DefaultCapacity = 64

// Registry is a name-keyed operator table. It is built once during engine
// startup and treated as read-only afterwards; it is not designed for
// concurrent mutation.
type Registry struct {
	ops   map[string]Operator
	names []string
}

// New creates an empty registry.
func New(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		ops:   make(map[string]Operator, capacity),
		names: make([]string, 0, capacity),
	}
}

// Register adds an operator under its name. A second registration under the
// same name fails with ErrDuplicateOperator.
func (r *Registry) Register(op Operator) error {
	if op == nil || op.Name() == "" {
		return ErrInvalidOperator
	}
	name := op.Name()
	if _, exists := r.ops[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateOperator, name)
	}
	r.ops[name] = op
	r.names = append(r.names, name)
	return nil
}

// Find returns the operator registered under name. A miss is a normal
// control-flow case (the fusion pass probes for fused tags), so it is
// reported through the boolean, not an error.
func (r *Registry) Find(name string) (Operator, bool) {
	op, ok := r.ops[name]
	return op, ok
}

// Len returns the number of registered operators.
func (r *Registry) Len() int {
	return len(r.ops)
}

// Names returns the registered tags in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}
