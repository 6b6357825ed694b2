package manifest

import (
	"fmt"
	"path/filepath"
)

// FileName is the only file name a manifest path may point at.
const FileName = "Cargo.toml"

// Path is the location of a Cargo.toml file. The zero value is not valid; use
// NewPath or DefaultPath.
type Path struct {
	path string
}

// NewPath returns a Path for p. It errors if p names a file other than
// Cargo.toml.
func NewPath(p string) (Path, error) {
	if base := filepath.Base(p); p != "" && base != FileName {
		return Path{}, fmt.Errorf("manifest file must be a %s, got %q", FileName, p)
	}
	if p == "" {
		p = FileName
	}
	return Path{path: filepath.Clean(p)}, nil
}

// DefaultPath is Cargo.toml in the current directory.
func DefaultPath() Path {
	return Path{path: FileName}
}

// PathFromFlag returns DefaultPath for an empty flag value and NewPath
// otherwise.
func PathFromFlag(p string) (Path, error) {
	if p == "" {
		return DefaultPath(), nil
	}
	return NewPath(p)
}

func (p Path) String() string { return p.path }

// Directory returns the directory holding the manifest, or "" when the path
// is the plain file name.
func (p Path) Directory() string {
	if p.path == FileName {
		return ""
	}
	return filepath.Dir(p.path)
}

// AbsoluteDirectory resolves Directory against the working directory and
// follows symlinks.
func (p Path) AbsoluteDirectory() (string, error) {
	dir := p.Directory()
	if dir == "" {
		dir = "."
	}
	abs, err := canonicalize(dir)
	if err != nil {
		return "", fmt.Errorf("canonicalize %s: %w", p.path, err)
	}
	return abs, nil
}

// Canonical returns the absolute, symlink-free path of the manifest file.
// The file must exist.
func (p Path) Canonical() (string, error) {
	abs, err := canonicalize(p.path)
	if err != nil {
		return "", fmt.Errorf("canonicalize %s: %w", p.path, err)
	}
	return abs, nil
}

// CargoArg renders the --manifest-path argument for cargo.
func (p Path) CargoArg() (string, error) {
	abs, err := p.Canonical()
	if err != nil {
		return "", err
	}
	return "--manifest-path=" + abs, nil
}

func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
