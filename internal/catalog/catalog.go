// Package catalog reads the model manifest: the set of models the service is
// permitted to load.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"llmed/internal/common/fsutil"
	"llmed/internal/config"
	"llmed/pkg/types"
)

// DefaultManifestPath is where the manifest is looked up when none is configured.
const DefaultManifestPath = "/tmp/models.json"

// record is one manifest entry as written on disk.
type record struct {
	Type   string `json:"type" yaml:"type" toml:"type"`
	Name   string `json:"name" yaml:"name" toml:"name"`
	Model  string `json:"model" yaml:"model" toml:"model"`
	MMProj string `json:"mmproj,omitempty" yaml:"mmproj,omitempty" toml:"mmproj,omitempty"`
}

type wrapped struct {
	Models []record `json:"models" yaml:"models" toml:"models"`
}

// Load reads the manifest at path. JSON and YAML manifests may be a bare list
// of records or an object with a "models" list; TOML uses [[models]] tables.
// Relative weight paths resolve against the manifest's directory. Any
// malformed record fails the whole manifest.
func Load(path string) ([]types.ModelDescriptor, error) {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	ext := filepath.Ext(p)
	recs, err := decode(ext, b)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	base := filepath.Dir(p)
	out := make([]types.ModelDescriptor, 0, len(recs))
	for i, r := range recs {
		d, err := r.descriptor(base)
		if err != nil {
			return nil, fmt.Errorf("manifest record %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func decode(ext string, b []byte) ([]record, error) {
	var w wrapped
	if strings.EqualFold(ext, ".toml") {
		err := config.Decode(ext, b, &w)
		return w.Models, err
	}
	var recs []record
	err := config.Decode(ext, b, &recs)
	if err == nil {
		return recs, nil
	}
	if err2 := config.Decode(ext, b, &w); err2 != nil {
		return nil, errors.Join(err, err2)
	}
	return w.Models, nil
}

// LoadOrEmpty is Load that treats every failure as an empty catalog.
func LoadOrEmpty(path string, log zerolog.Logger) []types.ModelDescriptor {
	list, err := Load(path)
	if err != nil {
		log.Warn().Err(err).Str("manifest", path).Msg("manifest unavailable; catalog is empty")
		return []types.ModelDescriptor{}
	}
	log.Info().Str("manifest", path).Int("models", len(list)).Msg("catalog loaded")
	return list
}

func (r record) descriptor(base string) (types.ModelDescriptor, error) {
	kind := types.ModelKind(r.Type)
	if !kind.Valid() {
		return types.ModelDescriptor{}, fmt.Errorf("unknown type %q", r.Type)
	}
	if r.Name == "" {
		return types.ModelDescriptor{}, errors.New("missing name")
	}
	if r.Model == "" {
		return types.ModelDescriptor{}, fmt.Errorf("%s: missing model path", r.Name)
	}
	if (kind == types.KindMultimodal) != (r.MMProj != "") {
		return types.ModelDescriptor{}, fmt.Errorf("%s: mmproj must be set exactly for multimodal models", r.Name)
	}
	weights, err := fsutil.ResolveFrom(base, r.Model)
	if err != nil {
		return types.ModelDescriptor{}, err
	}
	proj, err := fsutil.ResolveFrom(base, r.MMProj)
	if err != nil {
		return types.ModelDescriptor{}, err
	}
	return types.ModelDescriptor{Kind: kind, Name: r.Name, WeightsPath: weights, ProjectorPath: proj}, nil
}

// Find returns the first entry named name.
func Find(list []types.ModelDescriptor, name string) (types.ModelDescriptor, bool) {
	for _, d := range list {
		if d.Name == name {
			return d, true
		}
	}
	return types.ModelDescriptor{}, false
}

// Missing lists entries whose weight or projector files do not exist.
func Missing(list []types.ModelDescriptor) []string {
	var out []string
	for _, d := range list {
		if !fsutil.FileExists(d.WeightsPath) {
			out = append(out, d.WeightsPath)
		}
		if d.ProjectorPath != "" && !fsutil.FileExists(d.ProjectorPath) {
			out = append(out, d.ProjectorPath)
		}
	}
	return out
}
