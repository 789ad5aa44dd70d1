package ops

import (
	"fmt"

	"github.com/vk/etude/internal/graph"
	"github.com/vk/etude/internal/tensor"
)

// Op-type tags of the audio operator family.
const (
	OpSTFT           = "stft"
	OpMelScale       = "mel_scale"
	OpMelSpectrogram = "mel_spectrogram"
	OpVocoder        = "vocoder"
)

// stftAttrs carries the analysis window configuration.
type stftAttrs struct {
	FrameSize int
	Hop       int
}

func decodeSTFTAttrs(n *graph.Node) (*stftAttrs, error) {
	cfg := &stftAttrs{
		FrameSize: attrInt(n.Attrs, "frame_size", 256),
		Hop:       attrInt(n.Attrs, "hop", 128),
	}
	if cfg.FrameSize <= 0 || cfg.Hop <= 0 {
		return nil, fmt.Errorf("ops: node %q has non-positive stft window", n.Name)
	}
	return cfg, nil
}

// stftOp reduces each analysis frame to its energy. A full complex STFT is
// the kernel layer's business; the graph only needs the framing semantics.
type stftOp struct{}

func (stftOp) Name() string { return OpSTFT }

func (op stftOp) Create(n *graph.Node) error {
	cfg, err := decodeSTFTAttrs(n)
	if err != nil {
		return err
	}
	n.OpData = cfg
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (stftOp) Forward(n *graph.Node) error {
	in, err := singleInput(n)
	if err != nil {
		return err
	}
	cfg := n.OpData.(*stftAttrs)
	frames := stftFrames(in.NumElems(), cfg.FrameSize, cfg.Hop)
	out, err := freshOutput(n, frames)
	if err != nil {
		return err
	}
	stftKernel(out.Data, in.Data, cfg.FrameSize, cfg.Hop)
	return nil
}

func (stftOp) Destroy(n *graph.Node) {
	n.OpData = nil
}

type melScaleOp struct{}

func (melScaleOp) Name() string { return OpMelScale }

func (op melScaleOp) Create(n *graph.Node) error {
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (melScaleOp) Forward(n *graph.Node) error {
	in, err := singleInput(n)
	if err != nil {
		return err
	}
	out, err := reusableOutput(n, in.NumElems())
	if err != nil {
		return err
	}
	melScaleKernel(out.Data, in.Data)
	return nil
}

func (melScaleOp) Destroy(n *graph.Node) {}

// melSpectrogramOp is the fused form of stft followed by mel_scale.
type melSpectrogramOp struct{}

func (melSpectrogramOp) Name() string { return OpMelSpectrogram }

func (op melSpectrogramOp) Create(n *graph.Node) error {
	cfg, err := decodeSTFTAttrs(n)
	if err != nil {
		return err
	}
	n.OpData = cfg
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (melSpectrogramOp) Forward(n *graph.Node) error {
	in, err := singleInput(n)
	if err != nil {
		return err
	}
	cfg := n.OpData.(*stftAttrs)
	frames := stftFrames(in.NumElems(), cfg.FrameSize, cfg.Hop)
	out, err := freshOutput(n, frames)
	if err != nil {
		return err
	}
	stftKernel(out.Data, in.Data, cfg.FrameSize, cfg.Hop)
	melScaleKernel(out.Data, out.Data)
	return nil
}

func (melSpectrogramOp) Destroy(n *graph.Node) {
	n.OpData = nil
}

// vocoderAttrs carries the synthesis expansion factor.
type vocoderAttrs struct {
	Factor int
}

// vocoderOp expands each spectral step into factor output samples, the
// shape contract of the real synthesis backend.
type vocoderOp struct{}

func (vocoderOp) Name() string { return OpVocoder }

func (op vocoderOp) Create(n *graph.Node) error {
	factor := attrInt(n.Attrs, "factor", 2)
	if factor <= 0 {
		return fmt.Errorf("ops: node %q has non-positive vocoder factor", n.Name)
	}
	n.OpData = &vocoderAttrs{Factor: factor}
	n.OutputTensors = make([]*tensor.Tensor, 1)
	n.OnDestroy = op.Destroy
	return nil
}

func (vocoderOp) Forward(n *graph.Node) error {
	in, err := singleInput(n)
	if err != nil {
		return err
	}
	cfg := n.OpData.(*vocoderAttrs)
	out, err := freshOutput(n, in.NumElems()*cfg.Factor)
	if err != nil {
		return err
	}
	vocoderKernel(out.Data, in.Data, cfg.Factor)
	return nil
}

func (vocoderOp) Destroy(n *graph.Node) {
	n.OpData = nil
}
