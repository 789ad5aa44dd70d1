package ops

import (
	"github.com/vk/etude/internal/graph"
	"github.com/vk/etude/internal/tensor"
)

// Op-type tags of the generic operator family.
const (
	OpInput      = "input"
	OpLinear     = "linear"
	OpReLU       = "relu"
	OpConv1D     = "conv1d"
	OpAttention  = "attention"
	OpLinearReLU = "linear_relu"
	OpConv1DReLU = "conv1d_relu"
)

// inputOp passes the tensor bound by the executor straight through to the
// node's output port. Every graph entry node uses it.
type inputOp struct{}

func (inputOp) Name() string { return OpInput }

func (op inputOp) Create(n *graph.Node) error {
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (inputOp) Forward(n *graph.Node) error {
	in, err := singleInput(n)
	if err != nil {
		return err
	}
	setOutput(n, in)
	return nil
}

func (inputOp) Destroy(n *graph.Node) {}

// linearAttrs is the decoded per-node state of the linear operator. The
// model description supplies scalar weight and bias; real weight matrices
// belong to the kernel layer, which is out of scope here.
type linearAttrs struct {
	Weight float32
	Bias   float32
}

type linearOp struct{}

func (linearOp) Name() string { return OpLinear }

func (op linearOp) Create(n *graph.Node) error {
	n.OpData = &linearAttrs{
		Weight: float32(attrFloat(n.Attrs, "weight", 1)),
		Bias:   float32(attrFloat(n.Attrs, "bias", 0)),
	}
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (linearOp) Forward(n *graph.Node) error {
	in, err := singleInput(n)
	if err != nil {
		return err
	}
	cfg := n.OpData.(*linearAttrs)
	out, err := reusableOutput(n, in.NumElems())
	if err != nil {
		return err
	}
	linearKernel(out.Data, in.Data, cfg.Weight, cfg.Bias)
	return nil
}

func (linearOp) Destroy(n *graph.Node) {
	n.OpData = nil
}

type reluOp struct{}

func (reluOp) Name() string { return OpReLU }

func (op reluOp) Create(n *graph.Node) error {
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (reluOp) Forward(n *graph.Node) error {
	in, err := singleInput(n)
	if err != nil {
		return err
	}
	out, err := reusableOutput(n, in.NumElems())
	if err != nil {
		return err
	}
	reluKernel(out.Data, in.Data)
	return nil
}

func (reluOp) Destroy(n *graph.Node) {}

type conv1dOp struct{}

func (conv1dOp) Name() string { return OpConv1D }

func (op conv1dOp) Create(n *graph.Node) error {
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (conv1dOp) Forward(n *graph.Node) error {
	in, err := singleInput(n)
	if err != nil {
		return err
	}
	// The smoothing kernel reads neighbors, so never compute in place.
	out, err := freshOutput(n, in.NumElems())
	if err != nil {
		return err
	}
	conv1dKernel(out.Data, in.Data)
	return nil
}

func (conv1dOp) Destroy(n *graph.Node) {}

type attentionOp struct{}

func (attentionOp) Name() string { return OpAttention }

func (op attentionOp) Create(n *graph.Node) error {
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (attentionOp) Forward(n *graph.Node) error {
	in, err := singleInput(n)
	if err != nil {
		return err
	}
	out, err := freshOutput(n, in.NumElems())
	if err != nil {
		return err
	}
	softmaxKernel(out.Data, in.Data)
	return nil
}

func (attentionOp) Destroy(n *graph.Node) {}

// linearReluOp is the fused form of linear followed by relu. It reuses the
// exact kernels of the two separate operators, applied in sequence over the
// same buffer.
type linearReluOp struct{}

func (linearReluOp) Name() string { return OpLinearReLU }

func (op linearReluOp) Create(n *graph.Node) error {
	n.OpData = &linearAttrs{
		Weight: float32(attrFloat(n.Attrs, "weight", 1)),
		Bias:   float32(attrFloat(n.Attrs, "bias", 0)),
	}
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (linearReluOp) Forward(n *graph.Node) error {
	in, err := singleInput(n)
	if err != nil {
		return err
	}
	cfg := n.OpData.(*linearAttrs)
	out, err := reusableOutput(n, in.NumElems())
	if err != nil {
		return err
	}
	linearKernel(out.Data, in.Data, cfg.Weight, cfg.Bias)
	reluKernel(out.Data, out.Data)
	return nil
}

func (linearReluOp) Destroy(n *graph.Node) {
	n.OpData = nil
}

// conv1dReluOp is the fused form of conv1d followed by relu.
type conv1dReluOp struct{}

func (conv1dReluOp) Name() string { return OpConv1DReLU }

func (op conv1dReluOp) Create(n *graph.Node) error {
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (conv1dReluOp) Forward(n *graph.Node) error {
	in, err := singleInput(n)
	if err != nil {
		return err
	}
	out, err := freshOutput(n, in.NumElems())
	if err != nil {
		return err
	}
	conv1dKernel(out.Data, in.Data)
	reluKernel(out.Data, out.Data)
	return nil
}

func (conv1dReluOp) Destroy(n *graph.Node) {}
