package manager

import (
	"llmed/internal/catalog"
	"llmed/internal/common/fsutil"
	"llmed/pkg/types"
)

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	Backend      string   `json:"backend,omitempty"`
	BackendReady bool     `json:"backend_ready"`
	Manifest     string   `json:"manifest"`
	ManifestOK   bool     `json:"manifest_found"`
	CatalogSize  int      `json:"catalog_size"`
	MissingFiles []string `json:"missing_files,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// SanityCheck validates that the backend is present and that catalog files
// exist. It does not mutate state and is safe to call at any time.
func (m *Manager) SanityCheck() SanityReport {
	r := SanityReport{Manifest: m.manifestPath()}
	if p, err := fsutil.ExpandHome(r.Manifest); err == nil {
		r.ManifestOK = fsutil.FileExists(p)
	}
	if m.backend != nil {
		r.Backend = m.backend.Name()
		r.BackendReady = true
	} else {
		r.Error = "no inference backend available"
	}
	list := m.Models()
	r.CatalogSize = len(list)
	r.MissingFiles = catalog.Missing(list)
	return r
}

// ModelInfo reads GGUF metadata for the catalog entry named name.
func (m *Manager) ModelInfo(name string) (types.ModelInfo, error) {
	d, ok := catalog.Find(m.Models(), name)
	if !ok {
		return types.ModelInfo{}, ErrModelNotFound(name)
	}
	info, err := catalog.Inspect(d.WeightsPath)
	if err != nil {
		return types.ModelInfo{}, &ResourceError{Resource: "weights", Path: d.WeightsPath, Err: err}
	}
	if info.Name == "" {
		info.Name = d.Name
	}
	return info, nil
}
