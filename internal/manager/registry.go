package manager

import (
	"time"

	"llmed/internal/catalog"
	"llmed/pkg/types"
)

// Models returns the catalog without instance identifiers.
func (m *Manager) Models() []types.ModelDescriptor {
	var out []types.ModelDescriptor
	_ = m.do(func(s *state) {
		out = make([]types.ModelDescriptor, len(s.catalog))
		for i, d := range s.catalog {
			out[i] = d.CatalogEntry()
		}
	})
	if out == nil {
		out = []types.ModelDescriptor{}
	}
	return out
}

// ReloadCatalog re-reads the manifest and replaces the whole catalog.
// Loaded instances are unaffected. It returns the new catalog size.
func (m *Manager) ReloadCatalog() (int, error) {
	list := catalog.LoadOrEmpty(m.manifestPath(), m.log)
	err := m.do(func(s *state) { s.catalog = list })
	if err != nil {
		return 0, err
	}
	m.pub.Publish(Event{Name: "catalog_reload", Fields: map[string]any{"models": len(list)}})
	return len(list), nil
}

// Load looks up name in the catalog (first match wins), acquires its native
// resources and registers a new instance, which becomes current. An unknown
// name returns a model-not-found error and leaves the registry unchanged.
func (m *Manager) Load(name string) (types.ModelDescriptor, error) {
	var (
		desc  types.ModelDescriptor
		found bool
	)
	if err := m.do(func(s *state) {
		desc, found = catalog.Find(s.catalog, name)
		if found {
			desc.InstanceID = s.nextInstanceID(desc.Name)
			s.status = StatusLoading
		}
	}); err != nil {
		return types.ModelDescriptor{}, err
	}
	if !found {
		return types.ModelDescriptor{}, ErrModelNotFound(name)
	}

	id := desc.InstanceID
	log := m.log.With().Str("model", id).Logger()
	m.pub.Publish(Event{Name: "load_start", ModelID: id, Fields: map[string]any{"name": name, "type": string(desc.Kind)}})
	start := time.Now()

	res, err := acquireResources(m.backend, desc, m.modelParams(desc.Kind), log)
	if err != nil {
		_ = m.do(func(s *state) {
			s.status = StatusLoadFailed
			s.lastErr = err.Error()
		})
		loadsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("load failed")
		m.pub.Publish(Event{Name: "load_failed", ModelID: id, Fields: map[string]any{"error": err.Error()}})
		return types.ModelDescriptor{}, err
	}

	if err := m.do(func(s *state) {
		s.instances[id] = newInstance(desc, res, m.cfg.MaxQueueDepth)
		s.order = append(s.order, id)
		s.current = id
		s.status = StatusLoaded
		s.lastErr = ""
		s.loads++
	}); err != nil {
		res.release()
		return types.ModelDescriptor{}, err
	}
	loadsTotal.WithLabelValues("ok").Inc()
	log.Info().Str("weights", desc.WeightsPath).Dur("took", time.Since(start)).Msg("model loaded")
	m.pub.Publish(Event{Name: "load_done", ModelID: id, Fields: map[string]any{"name": name}})
	return desc, nil
}

// RunningModels lists loaded instances in load order.
func (m *Manager) RunningModels() []types.ModelDescriptor {
	out := []types.ModelDescriptor{}
	_ = m.do(func(s *state) { out = s.running() })
	return out
}

// Cancel sets the status to cancelled and cancels every in-flight
// generation. Each one stops at its next token with ErrCancelled and its
// partial output. It always reports true.
func (m *Manager) Cancel() bool {
	n := 0
	_ = m.do(func(s *state) {
		s.status = StatusCancelled
		for _, j := range s.jobs {
			j.cancel(ErrCancelled)
			n++
		}
	})
	m.log.Info().Int("jobs", n).Msg("cancel requested")
	m.pub.Publish(Event{Name: "cancel", Fields: map[string]any{"jobs": n}})
	return true
}

// Status returns the human-readable status string.
func (m *Manager) Status() string {
	status := StatusInitializing
	if err := m.do(func(s *state) { status = s.status }); err != nil {
		return "closed"
	}
	return status
}
