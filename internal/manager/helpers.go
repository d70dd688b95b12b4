package manager

import (
	"fmt"
	"time"

	"llmed/internal/llm"
	"llmed/pkg/types"
)

// nextInstanceID returns <name>-<unix-millis>-<seq>; seq makes ids unique
// even for loads within the same millisecond.
func (s *state) nextInstanceID(name string) string {
	s.seq++
	return fmt.Sprintf("%s-%d-%d", name, time.Now().UnixMilli(), s.seq)
}

// running lists loaded instances in load order.
func (s *state) running() []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, 0, len(s.order))
	for _, id := range s.order {
		if inst := s.instances[id]; inst != nil {
			out = append(out, inst.Desc)
		}
	}
	return out
}

func (s *state) remove(id string) *Instance {
	inst := s.instances[id]
	if inst == nil {
		return nil
	}
	delete(s.instances, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.current == id {
		s.current = ""
	}
	return inst
}

// modelParams picks the weight-loading parameters for a model kind.
func (m *Manager) modelParams(kind types.ModelKind) llm.ModelParams {
	if kind == types.KindMultimodal {
		return llm.ModelParams{GPULayers: m.cfg.MMGPULayers}
	}
	return llm.ModelParams{GPULayers: m.cfg.GPULayers}
}
