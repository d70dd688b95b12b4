package manager

import (
	"sync/atomic"
	"time"

	"llmed/pkg/types"
)

// Human-readable status strings, one per lifecycle transition.
const (
	StatusInitializing = "initializing"
	StatusIdle         = "no model loaded"
	StatusLoading      = "loading model"
	StatusLoaded       = "model loaded"
	StatusLoadFailed   = "model load failed"
	StatusUnloaded     = "model unloaded"
	StatusCancelled    = "cancelled"
)

// Instance is a loaded model: its descriptor, the pooled native resources and
// the admission channels that serialize generations against it.
type Instance struct {
	Desc     types.ModelDescriptor
	LoadedAt time.Time

	res      *resources
	lastUsed atomic.Int64 // unix nanos

	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots
}

func newInstance(d types.ModelDescriptor, res *resources, depth int) *Instance {
	inst := &Instance{
		Desc:     d,
		LoadedAt: time.Now(),
		res:      res,
		genCh:    make(chan struct{}, 1),
		queueCh:  make(chan struct{}, depth),
	}
	inst.touch()
	return inst
}

func (i *Instance) touch() { i.lastUsed.Store(time.Now().UnixNano()) }

// LastUsed is the time of the last admitted generation (or load).
func (i *Instance) LastUsed() time.Time { return time.Unix(0, i.lastUsed.Load()) }

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	Status       string
	Current      *types.ModelDescriptor
	Loaded       int
	InFlight     int
	CatalogSize  int
	LoadsTotal   uint64
	UnloadsTotal uint64
	LastError    string
}

// Completion is the result of a text-producing call.
type Completion struct {
	Text         string
	FinishReason FinishReason
	Tokens       int
}

// FinishReason says why the decode loop stopped.
type FinishReason string

const (
	FinishEOS       FinishReason = "eos"
	FinishEndOfTurn FinishReason = "end_of_turn"
	FinishLength    FinishReason = "length"
)
