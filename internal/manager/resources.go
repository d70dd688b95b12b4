package manager

import (
	"sync"

	"github.com/rs/zerolog"

	"llmed/internal/llm"
	"llmed/pkg/types"
)

// resources holds the native handles of one loaded instance. The registry
// owns one reference from Load until Unload; each in-flight call owns another
// through a lease. The handles are freed when the count reaches zero.
type resources struct {
	mu    sync.Mutex
	refs  int
	model llm.Model
	proj  llm.Projector // multimodal only
	log   zerolog.Logger
}

// acquireResources loads weights and, for multimodal models, the projector.
// On failure everything acquired so far is released.
func acquireResources(b llm.Backend, d types.ModelDescriptor, p llm.ModelParams, log zerolog.Logger) (*resources, error) {
	if b == nil {
		return nil, ErrDependencyUnavailable("no inference backend configured")
	}
	model, err := b.LoadModel(d.WeightsPath, p)
	if err != nil {
		return nil, &ResourceError{Resource: "weights", Path: d.WeightsPath, Err: err}
	}
	r := &resources{refs: 1, model: model, log: log}
	if d.Kind == types.KindMultimodal {
		proj, err := model.NewProjector(d.ProjectorPath)
		if err != nil {
			if cerr := model.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("free weights after projector failure")
			}
			return nil, &ResourceError{Resource: "projector", Path: d.ProjectorPath, Err: err}
		}
		r.proj = proj
	}
	resourcesLive.Inc()
	return r, nil
}

// retain adds a reference. It fails once the handles have been freed.
func (r *resources) retain() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs == 0 {
		return false
	}
	r.refs++
	return true
}

// release drops a reference, freeing projector then weights on the last one.
func (r *resources) release() {
	r.mu.Lock()
	r.refs--
	last := r.refs == 0
	r.mu.Unlock()
	if !last {
		return
	}
	if r.proj != nil {
		if err := r.proj.Close(); err != nil {
			r.log.Warn().Err(err).Msg("free projector")
		}
	}
	if err := r.model.Close(); err != nil {
		r.log.Warn().Err(err).Msg("free weights")
	}
	resourcesLive.Dec()
}

// lease is an in-flight call's borrowed reference to an instance.
type lease struct {
	inst *Instance
	job  *job
	once sync.Once
	m    *Manager
}

func (l *lease) model() llm.Model         { return l.inst.res.model }
func (l *lease) projector() llm.Projector { return l.inst.res.proj }

// Release returns the reference and forgets the job. Safe to call twice.
func (l *lease) Release() {
	l.once.Do(func() {
		l.inst.res.release()
		if l.job != nil {
			l.job.cancel(nil)
			_ = l.m.do(func(s *state) { delete(s.jobs, l.job.id) })
		}
	})
}
