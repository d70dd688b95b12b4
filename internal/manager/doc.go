// Package manager owns the model catalog, the registry of loaded instances
// and the native resources behind them, and runs inference against those
// instances. It is structured into small files by concern:
//
//   - manager.go: Manager type, the owning goroutine and its op channel.
//   - config.go: ManagerConfig and package defaults; New applies defaults.
//   - types.go: Instance, Snapshot, status strings.
//   - errors.go: typed errors and IsXxx helpers.
//   - registry.go: Load, Models, RunningModels, ReloadCatalog, Cancel.
//   - unload.go: Unload.
//   - resources.go: ref-counted per-instance native resources and leases.
//   - admission.go: per-instance queueing and generation admission.
//   - inference.go: Embed, Query, QueryImage, QueryImageBase64.
//   - generate.go: the shared decode/sample loop.
//   - events.go, eventpub_memory.go, eventhub.go: lifecycle events.
//   - metrics.go: engine Prometheus collectors.
//   - status_report.go, sanity.go: read-only reports.
//
// All mutable state (catalog, registry, current instance, status, in-flight
// jobs) is owned by a single goroutine and only touched by closures sent to
// it. Native work never runs on that goroutine, so status and registry
// calls are never blocked by a running generation.
package manager
