package manager

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the instance's single
// in-flight slot. Returns a release func to be deferred.
func (m *Manager) beginGeneration(ctx context.Context, inst *Instance) (func(), error) {
	timer := time.NewTimer(m.cfg.MaxWait)
	defer timer.Stop()

	select {
	case inst.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, context.Cause(ctx)
	case <-timer.C:
		return func() {}, tooBusyError{modelID: inst.Desc.InstanceID}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-inst.queueCh
		}
	}()
	select {
	case inst.genCh <- struct{}{}:
		acquired = true
		inst.touch()
		return func() { <-inst.genCh; <-inst.queueCh }, nil
	case <-ctx.Done():
		return func() {}, context.Cause(ctx)
	case <-timer.C:
		return func() {}, tooBusyError{modelID: inst.Desc.InstanceID}
	}
}
