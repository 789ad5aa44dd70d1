// Package ops implements the engine's operator families: the generic tensor
// operators, the audio-specific operators, and the fused variants the
// optimizer rewrites adjacent pairs into. Each operator decodes its own
// attributes in Create and leaves the node's Attrs otherwise untouched.
package ops

import (
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/etude/internal/graph"
	"github.com/vk/etude/internal/tensor"
)

// singleInput returns the node's sole input tensor or an error suitable for
// surfacing as a node execution failure.
func singleInput(n *graph.Node) (*tensor.Tensor, error) {
	if len(n.InputTensors) == 0 || n.InputTensors[0] == nil {
		return nil, fmt.Errorf("ops: node %q has no input tensor", n.Name)
	}
	in := n.InputTensors[0]
	if !in.Valid() {
		return nil, fmt.Errorf("ops: node %q input tensor is invalid", n.Name)
	}
	return in, nil
}

// setOutput installs t as the node's first output port.
func setOutput(n *graph.Node, t *tensor.Tensor) {
	if len(n.OutputTensors) == 0 {
		n.OutputTensors = []*tensor.Tensor{t}
		return
	}
	n.OutputTensors[0] = t
}

// freshOutput always allocates a new buffer for the node's output port.
// Operators whose kernels read neighboring elements use it so an in-place
// mark can never corrupt their input.
func freshOutput(n *graph.Node, size int) (*tensor.Tensor, error) {
	t, err := tensor.New(n.Pool(), tensor.Float32, []int{size})
	if err != nil {
		return nil, err
	}
	setOutput(n, t)
	return t, nil
}

// reusableOutput honors the optimizer's in-place mark: when ReuseInput
// names an input whose buffer matches the requested size, the output
// aliases it instead of drawing from the pool. Only element-wise operators
// may use it.
func reusableOutput(n *graph.Node, size int) (*tensor.Tensor, error) {
	if idx := n.ReuseInput; idx >= 0 && idx < len(n.InputTensors) {
		in := n.InputTensors[idx]
		if in != nil && in.NumElems() == size {
			setOutput(n, in)
			return in, nil
		}
	}
	return freshOutput(n, size)
}

// attrFloat reads a numeric attribute from an object-typed attrs value,
// falling back to def when attrs is absent or the key is missing.
func attrFloat(attrs cty.Value, name string, def float64) float64 {
	if attrs.IsNull() {
		return def
	}
	ty := attrs.Type()
	if !ty.IsObjectType() || !ty.HasAttribute(name) {
		return def
	}
	v := attrs.GetAttr(name)
	if v.IsNull() || v.Type() != cty.Number {
		return def
	}
	f, _ := v.AsBigFloat().Float64()
	return f
}

// attrInt reads an integer attribute with a default.
func attrInt(attrs cty.Value, name string, def int) int {
	return int(attrFloat(attrs, name, float64(def)))
}

// Kernels. Fused operators call the same functions the separate operators
// use, so fusion is observationally equivalent by construction.

func linearKernel(dst, src []float32, weight, bias float32) {
	for i, v := range src {
		dst[i] = weight*v + bias
	}
}

func reluKernel(dst, src []float32) {
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		} else {
			dst[i] = 0
		}
	}
}

func conv1dKernel(dst, src []float32) {
	n := len(src)
	for i := 0; i < n; i++ {
		sum := src[i]
		count := float32(1)
		if i > 0 {
			sum += src[i-1]
			count++
		}
		if i < n-1 {
			sum += src[i+1]
			count++
		}
		dst[i] = sum / count
	}
}

func softmaxKernel(dst, src []float32) {
	if len(src) == 0 {
		return
	}
	max := src[0]
	for _, v := range src[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range src {
		e := math.Exp(float64(v - max))
		dst[i] = float32(e)
		sum += e
	}
	if sum == 0 {
		return
	}
	for i := range dst {
		dst[i] = float32(float64(dst[i]) / sum)
	}
}

// stftFrames returns the number of analysis frames for a signal length.
func stftFrames(signalLen, frameSize, hop int) int {
	if signalLen < frameSize || frameSize <= 0 || hop <= 0 {
		return 0
	}
	return 1 + (signalLen-frameSize)/hop
}

func stftKernel(dst, src []float32, frameSize, hop int) {
	for k := range dst {
		start := k * hop
		var energy float64
		for i := 0; i < frameSize; i++ {
			v := float64(src[start+i])
			energy += v * v
		}
		dst[k] = float32(energy)
	}
}

func melScaleKernel(dst, src []float32) {
	for i, v := range src {
		if v < 0 {
			v = 0
		}
		dst[i] = float32(math.Log1p(float64(v)))
	}
}

func vocoderKernel(dst, src []float32, factor int) {
	for i, v := range src {
		for j := 0; j < factor; j++ {
			dst[i*factor+j] = v
		}
	}
}
