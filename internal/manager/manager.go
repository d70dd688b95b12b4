package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"llmed/internal/catalog"
	"llmed/internal/llm"
	"llmed/pkg/types"
)

// state is owned by the run goroutine; only closures passed to do touch it.
type state struct {
	catalog   []types.ModelDescriptor
	instances map[string]*Instance
	order     []string // instance ids in load order
	current   string
	status    string
	lastErr   string
	seq       uint64
	jobs      map[string]*job
	loads     uint64
	unloads   uint64
}

type op struct {
	fn   func(*state)
	done chan struct{}
}

type Manager struct {
	cfg     ManagerConfig
	backend llm.Backend
	log     zerolog.Logger
	pub     EventPublisher

	ops     chan op
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once

	startTime time.Time
	st        state
}

// New constructs a Manager and starts the goroutine that owns its state.
// The catalog comes from cfg.Catalog or, if nil, from cfg.ManifestPath
// (catalog.DefaultManifestPath when empty); an unreadable manifest yields an
// empty catalog.
func New(cfg ManagerConfig) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:       cfg,
		backend:   cfg.Backend,
		log:       cfg.Logger.With().Str("component", "manager").Logger(),
		pub:       cfg.Publisher,
		ops:       make(chan op),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		startTime: time.Now(),
		st: state{
			instances: make(map[string]*Instance),
			jobs:      make(map[string]*job),
			status:    StatusInitializing,
		},
	}
	if cfg.Catalog != nil {
		m.st.catalog = append([]types.ModelDescriptor(nil), cfg.Catalog...)
	} else {
		m.st.catalog = catalog.LoadOrEmpty(m.manifestPath(), m.log)
	}
	m.st.status = StatusIdle
	go m.run()
	return m
}

func (m *Manager) manifestPath() string {
	if m.cfg.ManifestPath != "" {
		return m.cfg.ManifestPath
	}
	return catalog.DefaultManifestPath
}

func (m *Manager) run() {
	defer close(m.stopped)
	for {
		select {
		case o := <-m.ops:
			o.fn(&m.st)
			close(o.done)
		case <-m.quit:
			m.shutdown()
			return
		}
	}
}

// do runs fn on the owning goroutine and waits for it to finish.
func (m *Manager) do(fn func(*state)) error {
	o := op{fn: fn, done: make(chan struct{})}
	select {
	case m.ops <- o:
	case <-m.quit:
		return ErrClosed
	}
	<-o.done
	return nil
}

// shutdown cancels in-flight jobs and drops the registry's references.
// Resources still leased by running generations are freed on release.
func (m *Manager) shutdown() {
	for _, j := range m.st.jobs {
		j.cancel(ErrClosed)
	}
	for _, id := range m.st.order {
		if inst := m.st.instances[id]; inst != nil {
			inst.res.release()
		}
	}
	m.st.instances = map[string]*Instance{}
	m.st.order = nil
	m.st.current = ""
}

// Close stops the manager. It is safe to call more than once.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.quit) })
	<-m.stopped
}

// Run blocks until ctx is done and then closes the manager.
func (m *Manager) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-m.stopped:
	}
	m.Close()
	return nil
}

// Ready reports whether the manager accepts requests.
func (m *Manager) Ready() bool {
	select {
	case <-m.stopped:
		return false
	default:
		return true
	}
}
