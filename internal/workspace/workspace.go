// Package workspace mirrors a cargo workspace into a scratch directory so its
// manifests can be amended without touching the originals.
//
// Scratch layout:
//
//	<tmp>/.cargo-abi_XXXX/
//	    Cargo.lock                  # copied from the workspace root, if any
//	    <member>/Cargo.toml         # every member at its workspace-relative path
//	    .abi/metadata_gen/          # driver package, next to the root member
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"cargoabi/internal/cargo"
	"cargoabi/internal/manifest"
)

// TempPrefix prefixes every scratch directory name.
const TempPrefix = ".cargo-abi_"

const lockFile = "Cargo.lock"

// ErrNotMember is returned when a requested package is not a workspace member.
var ErrNotMember = errors.New("package is not a workspace member")

type member struct {
	pkg      cargo.Package
	manifest *manifest.Manifest
}

// Workspace holds amended in-memory copies of every member manifest.
type Workspace struct {
	root        string
	rootPackage string
	members     []*member
	tempRoot    string
	exclude     []string
	log         *zap.Logger
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger passed down to every member manifest.
func WithLogger(l *zap.Logger) Option {
	return func(w *Workspace) {
		if l != nil {
			w.log = l
		}
	}
}

// WithTempRoot places scratch directories under dir instead of the system
// temporary directory.
func WithTempRoot(dir string) Option {
	return func(w *Workspace) { w.tempRoot = dir }
}

// WithExclude keeps path dependencies on the named packages relative, in
// addition to the workspace members.
func WithExclude(names ...string) Option {
	return func(w *Workspace) { w.exclude = append(w.exclude, names...) }
}

// New loads the manifest of every workspace member. rootPackage is the
// package id of the contract crate and must be one of them.
func New(meta *cargo.Metadata, rootPackage string, opts ...Option) (*Workspace, error) {
	w := &Workspace{
		root:        meta.WorkspaceRoot,
		rootPackage: rootPackage,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}

	for _, pkg := range meta.Members() {
		path, err := manifest.NewPath(pkg.ManifestPath)
		if err != nil {
			return nil, err
		}
		m, err := manifest.New(path, manifest.WithLogger(w.log))
		if err != nil {
			return nil, err
		}
		w.members = append(w.members, &member{pkg: pkg, manifest: m})
	}
	if w.member(rootPackage) == nil {
		return nil, fmt.Errorf("root package %q: %w", rootPackage, ErrNotMember)
	}
	return w, nil
}

func (w *Workspace) member(id string) *member {
	for _, m := range w.members {
		if m.pkg.ID == id {
			return m
		}
	}
	return nil
}

// WithRootPackageManifest applies fn to the contract crate's manifest.
func (w *Workspace) WithRootPackageManifest(fn func(*manifest.Manifest) error) error {
	return fn(w.member(w.rootPackage).manifest)
}

// WithDriverPackage registers the driver package on the member that sits at
// the workspace root. The driver depends on the crate in contractDir, found
// at its mirrored location in the scratch directory.
func (w *Workspace) WithDriverPackage(contractDir, sdkCrate string) error {
	var host *member
	for _, m := range w.members {
		if sameDir(filepath.Dir(m.pkg.ManifestPath), w.root) {
			host = m
			break
		}
	}
	if host == nil {
		return fmt.Errorf("the workspace root %s must be a package to host the driver: %w", w.root, ErrNotMember)
	}

	rel, err := w.relative(contractDir)
	if err != nil {
		return err
	}
	return host.manifest.WithDriverPackage(manifest.DriverPackage{
		ContractPath:    filepath.ToSlash(filepath.Join("..", "..", rel)),
		ContractPackage: w.member(w.rootPackage).pkg.Name,
		SDKCrate:        sdkCrate,
	})
}

// UsingTemp mirrors the workspace into a fresh scratch directory and calls
// fn with the mirrored root package manifest. The scratch directory is
// removed when UsingTemp returns, whatever fn does.
func (w *Workspace) UsingTemp(ctx context.Context, fn func(context.Context, manifest.Path) error) error {
	tmp, err := os.MkdirTemp(w.tempRoot, TempPrefix)
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			w.log.Warn("removing scratch directory", zap.String("dir", tmp), zap.Error(err))
		}
	}()
	w.log.Debug("using temp workspace", zap.String("dir", tmp))

	exclude := append([]string(nil), w.exclude...)
	for _, m := range w.members {
		exclude = append(exclude, m.pkg.Name)
	}

	var rootPath manifest.Path
	for _, m := range w.members {
		rel, err := w.relative(filepath.Dir(m.pkg.ManifestPath))
		if err != nil {
			return err
		}
		target, err := manifest.NewPath(filepath.Join(tmp, rel, manifest.FileName))
		if err != nil {
			return err
		}
		if err := m.manifest.RewriteRelativePaths(exclude); err != nil {
			return err
		}
		if err := m.manifest.Write(target); err != nil {
			return err
		}
		if m.pkg.ID == w.rootPackage {
			rootPath = target
		}
	}

	if err := copyFile(filepath.Join(w.root, lockFile), filepath.Join(tmp, lockFile)); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("copy %s: %w", lockFile, err)
		}
		w.log.Debug("no lock file to copy", zap.String("workspace", w.root))
	}

	return fn(ctx, rootPath)
}

// relative returns dir relative to the workspace root. dir must be inside it.
func (w *Workspace) relative(dir string) (string, error) {
	root := resolve(w.root)
	rel, err := filepath.Rel(root, resolve(dir))
	if err != nil {
		return "", fmt.Errorf("%s relative to workspace root: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the workspace root %s", dir, w.root)
	}
	return rel, nil
}

func sameDir(a, b string) bool {
	return resolve(a) == resolve(b)
}

// resolve follows symlinks when it can; cargo reports canonical paths but
// callers may not.
func resolve(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return filepath.Clean(p)
}
