package manager

import (
	"time"

	"llmed/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	var snap Snapshot
	if err := m.do(func(s *state) {
		snap = Snapshot{
			Status:       s.status,
			Loaded:       len(s.instances),
			InFlight:     len(s.jobs),
			CatalogSize:  len(s.catalog),
			LoadsTotal:   s.loads,
			UnloadsTotal: s.unloads,
			LastError:    s.lastErr,
		}
		if inst := s.instances[s.current]; inst != nil {
			d := inst.Desc
			snap.Current = &d
		}
	}); err != nil {
		snap.Status = "closed"
	}
	return snap
}

// StatusReport builds the /status payload.
func (m *Manager) StatusReport() types.StatusResponse {
	snap := m.Snapshot()
	now := time.Now()
	return types.StatusResponse{
		Status:         snap.Status,
		Current:        snap.Current,
		Loaded:         snap.Loaded,
		InFlight:       snap.InFlight,
		CatalogSize:    snap.CatalogSize,
		LoadsTotal:     snap.LoadsTotal,
		UnloadsTotal:   snap.UnloadsTotal,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
		LastError:      snap.LastError,
	}
}
