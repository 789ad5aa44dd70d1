package ops

import (
	"github.com/vk/etude/internal/registry"
)

// basicFamily lists the generic tensor operators in registration order.
func basicFamily() []registry.Operator {
	return []registry.Operator{
		inputOp{},
		linearOp{},
		reluOp{},
		conv1dOp{},
		attentionOp{},
		linearReluOp{},
		conv1dReluOp{},
	}
}

// audioFamily lists the speech-synthesis operators.
func audioFamily() []registry.Operator {
	return []registry.Operator{
		stftOp{},
		melScaleOp{},
		melSpectrogramOp{},
		vocoderOp{},
	}
}

// registerFamily registers every operator of a family, skipping names that
// are already present. That makes the bulk helpers idempotent while a
// direct Register of a duplicate still fails.
func registerFamily(r *registry.Registry, family []registry.Operator) error {
	for _, op := range family {
		if _, exists := r.Find(op.Name()); exists {
			continue
		}
		if err := r.Register(op); err != nil {
			return err
		}
	}
	return nil
}

// RegisterBasicOperators registers the generic tensor operator family.
func RegisterBasicOperators(r *registry.Registry) error {
	return registerFamily(r, basicFamily())
}

// RegisterAudioOperators registers the audio operator family.
func RegisterAudioOperators(r *registry.Registry) error {
	return registerFamily(r, audioFamily())
}

// RegisterAllOperators registers the generic family followed by the audio
// family.
func RegisterAllOperators(r *registry.Registry) error {
	if err := RegisterBasicOperators(r); err != nil {
		return err
	}
	return RegisterAudioOperators(r)
}
