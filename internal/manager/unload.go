package manager

// Unload removes an instance from the registry, clearing current if it
// pointed there, and drops the registry's reference to its resources.
// In-flight generations keep running; the resources are freed when the last
// of them returns. Unloading an unknown id reports false.
func (m *Manager) Unload(modelID string) bool {
	var inst *Instance
	_ = m.do(func(s *state) {
		inst = s.remove(modelID)
		if inst != nil {
			s.status = StatusUnloaded
			s.unloads++
		}
	})
	if inst == nil {
		return false
	}
	inst.res.release()
	unloadsTotal.Inc()
	m.log.Info().Str("model", modelID).Msg("model unloaded")
	m.pub.Publish(Event{Name: "unload", ModelID: modelID, Fields: map[string]any{"inflight": len(inst.genCh), "queue": len(inst.queueCh)}})
	return true
}
