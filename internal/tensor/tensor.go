// Package tensor holds the typed n-dimensional buffers that flow along the
// edges of a computation graph, together with the arena-style pool they are
// allocated from. Nodes reference tensors but never own them; the pool's
// lifetime outlives any graph built against it.
package tensor

import (
	"errors"
	"fmt"
)

// DType identifies the element type of a tensor. Only Float32 has kernels
// today; the tag is kept open for quantized model support.
type DType int

const (
	Float32 DType = iota
	Float16
	Int8
)

// String returns the canonical lowercase name of the dtype.
func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case Int8:
		return "int8"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// ErrUnsupportedDType indicates a dtype with no backing storage implementation.
var ErrUnsupportedDType = errors.New("tensor: unsupported dtype")

// Tensor is a typed n-dimensional buffer. Data is stored flat in row-major
// order. A tensor is written by exactly one producer node; consumers treat
// it as read-only unless the optimizer has marked in-place reuse safe.
type Tensor struct {
	DType DType
	Shape []int
	Data  []float32
}

// New allocates a tensor of the given shape from the pool. A nil pool is
// allowed and allocates without a budget, which keeps small tests and
// detached nodes usable.
func New(pool *Pool, dtype DType, shape []int) (*Tensor, error) {
	if dtype != Float32 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, dtype)
	}
	n := 1
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("tensor: negative dimension %d", dim)
		}
		n *= dim
	}

	var data []float32
	if pool == nil {
		data = make([]float32, n)
	} else {
		var err error
		data, err = pool.Alloc(n)
		if err != nil {
			return nil, err
		}
	}

	return &Tensor{
		DType: dtype,
		Shape: append([]int(nil), shape...),
		Data:  data,
	}, nil
}

// NumElems returns the total element count implied by the shape.
func (t *Tensor) NumElems() int {
	if t == nil {
		return 0
	}
	n := 1
	for _, dim := range t.Shape {
		n *= dim
	}
	return n
}

// Valid reports whether the tensor's buffer is consistent with its shape.
func (t *Tensor) Valid() bool {
	if t == nil {
		return false
	}
	return len(t.Data) == t.NumElems()
}
