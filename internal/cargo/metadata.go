package cargo

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"cargoabi/internal/manifest"
)

// Package is one entry of `cargo metadata`'s package list.
type Package struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Authors      []string `json:"authors"`
	ManifestPath string   `json:"manifest_path"`
}

// Metadata is the subset of `cargo metadata --format-version=1` the tool
// reads.
type Metadata struct {
	Packages         []Package `json:"packages"`
	WorkspaceMembers []string  `json:"workspace_members"`
	WorkspaceRoot    string    `json:"workspace_root"`
	TargetDirectory  string    `json:"target_directory"`
}

// Package returns the package with the given id.
func (m *Metadata) Package(id string) (Package, bool) {
	for _, p := range m.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}

// Members returns the workspace member packages in member order.
func (m *Metadata) Members() []Package {
	out := make([]Package, 0, len(m.WorkspaceMembers))
	for _, id := range m.WorkspaceMembers {
		if p, ok := m.Package(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// CrateMetadata is everything the pipeline needs to know about the contract
// crate.
type CrateMetadata struct {
	ManifestPath    manifest.Path
	Metadata        *Metadata
	RootPackage     Package
	TargetDirectory string
}

// Collect runs `cargo metadata` for the manifest at path.
func Collect(ctx context.Context, path manifest.Path, log *zap.Logger) (*CrateMetadata, error) {
	if log == nil {
		log = zap.NewNop()
	}
	arg, err := path.CargoArg()
	if err != nil {
		return nil, err
	}
	out, err := Invoke(ctx, "metadata", []string{"--format-version=1", "--no-deps", arg}, Options{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("cargo metadata: %w", err)
	}
	meta, err := ParseMetadata(out)
	if err != nil {
		return nil, err
	}

	canonical, err := path.Canonical()
	if err != nil {
		return nil, err
	}
	root, err := meta.rootPackage(canonical)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug("collected crate metadata",
		zap.String("package", root.Name),
		zap.String("workspace_root", meta.WorkspaceRoot),
		zap.String("target_directory", meta.TargetDirectory))

	return &CrateMetadata{
		ManifestPath:    path,
		Metadata:        meta,
		RootPackage:     root,
		TargetDirectory: meta.TargetDirectory,
	}, nil
}

// ParseMetadata decodes `cargo metadata --format-version=1` output.
func ParseMetadata(data []byte) (*Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse cargo metadata: %w", err)
	}
	if meta.WorkspaceRoot == "" {
		return nil, fmt.Errorf("parse cargo metadata: missing workspace_root")
	}
	return &meta, nil
}

// rootPackage finds the member whose manifest is manifestPath. Metadata is
// collected with --no-deps, so cargo reports no resolve graph to fall back on.
func (m *Metadata) rootPackage(manifestPath string) (Package, error) {
	for _, p := range m.Members() {
		if filepath.Clean(p.ManifestPath) == manifestPath {
			return p, nil
		}
		if resolved, err := filepath.EvalSymlinks(p.ManifestPath); err == nil && resolved == manifestPath {
			return p, nil
		}
	}
	return Package{}, fmt.Errorf("cannot infer the root package: no workspace member has this manifest")
}
