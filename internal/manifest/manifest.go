// Package manifest loads a Cargo.toml into memory, applies the edits needed to
// build an ABI driver against it, and writes the amended copy elsewhere.
//
// The original file is never modified. Every edit works on the decoded
// document; Write renders all output before touching the filesystem.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// dependencySections are the dependency tables a manifest or a
// [target.<cfg>] table may carry.
var dependencySections = []string{"dependencies", "dev-dependencies", "build-dependencies"}

// Manifest is an in-memory, editable copy of a Cargo.toml.
type Manifest struct {
	path   Path
	doc    map[string]any
	driver *DriverPackage
	log    *zap.Logger
}

// Option configures a Manifest.
type Option func(*Manifest)

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manifest) {
		if l != nil {
			m.log = l
		}
	}
}

// New reads and decodes the manifest at path.
func New(path Path, opts ...Option) (*Manifest, error) {
	data, err := os.ReadFile(path.String())
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return Parse(path, data, opts...)
}

// Parse decodes data as the manifest located at path.
func Parse(path Path, data []byte, opts ...Option) (*Manifest, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	m := &Manifest{path: path, doc: doc, log: zap.NewNop()}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Path returns the location the manifest was loaded from.
func (m *Manifest) Path() Path { return m.path }

// Document exposes the decoded TOML tree. Callers must not retain it across
// edits.
func (m *Manifest) Document() map[string]any { return m.doc }

// PackageName returns [package].name.
func (m *Manifest) PackageName() (string, error) {
	pkg, err := m.table(m.doc, "package", "package", false)
	if err != nil {
		return "", err
	}
	raw, ok := pkg["name"]
	if !ok {
		return "", m.sectionErr("[package] name", "")
	}
	name, ok := raw.(string)
	if !ok {
		return "", m.sectionErr("[package] name", "a string")
	}
	return name, nil
}

// WithAddedCrateType appends kind to [lib] crate-type unless it is already
// listed.
func (m *Manifest) WithAddedCrateType(kind string) error {
	lib, err := m.table(m.doc, "lib", "lib", false)
	if err != nil {
		return err
	}
	raw, ok := lib["crate-type"]
	if !ok {
		return m.sectionErr("crate-type", "")
	}
	kinds, ok := raw.([]any)
	if !ok {
		return m.sectionErr("crate-type", "an array")
	}
	if containsString(kinds, kind) {
		return nil
	}
	lib["crate-type"] = append(kinds, kind)
	return nil
}

// WithProfileReleaseFlag sets [profile.release] <flag> = enabled, replacing
// any existing value.
func (m *Manifest) WithProfileReleaseFlag(flag string, enabled bool) error {
	profile, err := m.table(m.doc, "profile", "profile", true)
	if err != nil {
		return err
	}
	release, err := m.table(profile, "release", "profile.release", true)
	if err != nil {
		return err
	}
	release[flag] = enabled
	return nil
}

// WithProfileReleaseLTO sets [profile.release] lto.
func (m *Manifest) WithProfileReleaseLTO(enabled bool) error {
	return m.WithProfileReleaseFlag("lto", enabled)
}

// WithDriverPackage registers DriverPackagePath as a workspace member and
// marks the driver package for generation on Write.
func (m *Manifest) WithDriverPackage(d DriverPackage) error {
	ws, err := m.table(m.doc, "workspace", "workspace", true)
	if err != nil {
		return err
	}
	var members []any
	if raw, ok := ws["members"]; ok {
		if members, ok = raw.([]any); !ok {
			return m.sectionErr("workspace.members", "an array")
		}
	}
	if !containsString(members, DriverPackagePath) {
		members = append(members, DriverPackagePath)
	}
	ws["members"] = members

	if d.SDKCrate == "" {
		d.SDKCrate = DefaultSDKCrate
	}
	if d.ContractPath == "" {
		d.ContractPath = "../.."
	}
	m.driver = &d
	return nil
}

// RewriteRelativePaths makes every relative path in the manifest absolute,
// resolved against the manifest's own directory:
//
//   - [lib] path
//   - [[bin]] path
//   - path dependencies in [dependencies], [dev-dependencies] and
//     [build-dependencies], the same tables under [target.<cfg>],
//     [workspace.dependencies] and every [patch.<source>]
//
// Dependencies whose package name is in exclude are left alone. A missing
// [lib] or [[bin]] path is filled in with the cargo default if that file
// exists.
func (m *Manifest) RewriteRelativePaths(exclude []string) error {
	absPath, err := m.path.Canonical()
	if err != nil {
		return err
	}
	absDir := filepath.Dir(absPath)

	toAbsolute := func(valueID string, table map[string]any) error {
		s, ok := table["path"].(string)
		if !ok {
			return m.sectionErr(valueID, "a string")
		}
		p := filepath.FromSlash(s)
		if filepath.IsAbs(p) {
			return nil
		}
		abs := filepath.Join(absDir, p)
		m.log.Debug("rewriting path", zap.String("value", valueID), zap.String("path", abs))
		table["path"] = abs
		return nil
	}

	rewriteTarget := func(v any, section, def string) error {
		table, ok := v.(map[string]any)
		if !ok {
			return m.sectionErr("["+section+"]", "a table")
		}
		if _, ok := table["path"]; ok {
			return toAbsolute("["+section+"] path", table)
		}
		p := filepath.Join(absDir, filepath.FromSlash(def))
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%s: no [%s] path specified, and the default %s was not found", m.path, section, def)
		}
		m.log.Debug("adding default path", zap.String("section", section), zap.String("path", p))
		table["path"] = p
		return nil
	}

	if lib, ok := m.doc["lib"]; ok {
		if err := rewriteTarget(lib, "lib", "src/lib.rs"); err != nil {
			return err
		}
	}

	if raw, ok := m.doc["bin"]; ok {
		bins, ok := raw.([]any)
		if !ok {
			return m.sectionErr("[[bin]]", "an array of tables")
		}
		for _, bin := range bins {
			if err := rewriteTarget(bin, "[bin]", "src/main.rs"); err != nil {
				return err
			}
		}
	}

	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}
	tables, err := m.dependencyTables()
	if err != nil {
		return err
	}
	for _, deps := range tables {
		for _, alias := range sortedKeys(deps) {
			dep, ok := deps[alias].(map[string]any)
			if !ok {
				continue
			}
			pkg := alias
			if renamed, ok := dep["package"].(string); ok {
				pkg = renamed
			}
			if excluded[pkg] {
				continue
			}
			if _, ok := dep["path"]; !ok {
				continue
			}
			if err := toAbsolute("dependency "+pkg, dep); err != nil {
				return err
			}
		}
	}
	return nil
}

// dependencyTables collects every table whose entries are dependency specs,
// in a stable order.
func (m *Manifest) dependencyTables() ([]map[string]any, error) {
	var out []map[string]any
	add := func(parent map[string]any, key, label string) error {
		raw, ok := parent[key]
		if !ok {
			return nil
		}
		deps, ok := raw.(map[string]any)
		if !ok {
			return m.sectionErr(label, "a table")
		}
		out = append(out, deps)
		return nil
	}
	sub := func(key string) (map[string]any, error) {
		raw, ok := m.doc[key]
		if !ok {
			return nil, nil
		}
		t, ok := raw.(map[string]any)
		if !ok {
			return nil, m.sectionErr(key, "a table")
		}
		return t, nil
	}

	for _, section := range dependencySections {
		if err := add(m.doc, section, section); err != nil {
			return nil, err
		}
	}

	targets, err := sub("target")
	if err != nil {
		return nil, err
	}
	for _, cfg := range sortedKeys(targets) {
		target, ok := targets[cfg].(map[string]any)
		if !ok {
			return nil, m.sectionErr("target."+cfg, "a table")
		}
		for _, section := range dependencySections {
			if err := add(target, section, "target."+cfg+"."+section); err != nil {
				return nil, err
			}
		}
	}

	ws, err := sub("workspace")
	if err != nil {
		return nil, err
	}
	if ws != nil {
		if err := add(ws, "dependencies", "workspace.dependencies"); err != nil {
			return nil, err
		}
	}

	patches, err := sub("patch")
	if err != nil {
		return nil, err
	}
	for _, source := range sortedKeys(patches) {
		if err := add(patches, source, "patch."+source); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Write stores the amended manifest at target, creating parent directories.
// If a driver package was requested it is generated next to it.
func (m *Manifest) Write(target Path) error {
	dir := target.Directory()
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	m.log.Debug("writing updated manifest", zap.String("path", target.String()))
	return m.WriteFS(osfs.New(dir))
}

// WriteFS writes Cargo.toml (and the driver package, if requested) at the
// root of fsys. Nothing is written if rendering any file fails.
func (m *Manifest) WriteFS(fsys billy.Filesystem) error {
	files, err := m.render()
	if err != nil {
		return err
	}
	for _, f := range files {
		name := filepath.FromSlash(f.name)
		if dir := filepath.Dir(name); dir != "." {
			if err := fsys.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", dir, err)
			}
		}
		if err := util.WriteFile(fsys, name, f.data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}

type renderedFile struct {
	name string // slash-separated, relative to the manifest directory
	data []byte
}

func (m *Manifest) render() ([]renderedFile, error) {
	var files []renderedFile
	if m.driver != nil {
		driver, err := m.renderDriver()
		if err != nil {
			return nil, err
		}
		files = append(files, driver...)
	}
	data, err := toml.Marshal(m.doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.path, err)
	}
	return append(files, renderedFile{name: FileName, data: data}), nil
}

// dependency returns a copy of [dependencies].<name> as a table. A bare
// version string becomes { version = "..." }.
func (m *Manifest) dependency(name string) (map[string]any, error) {
	deps, err := m.table(m.doc, "dependencies", "[dependencies]", false)
	if err != nil {
		return nil, err
	}
	raw, ok := deps[name]
	if !ok {
		return nil, m.sectionErr(name+" dependency", "")
	}
	switch v := raw.(type) {
	case string:
		return map[string]any{"version": v}, nil
	case map[string]any:
		return cloneValue(v).(map[string]any), nil
	default:
		return nil, m.sectionErr(name+" dependency", "a table or version string")
	}
}

func (m *Manifest) table(parent map[string]any, key, section string, create bool) (map[string]any, error) {
	raw, ok := parent[key]
	if !ok {
		if !create {
			return nil, m.sectionErr(section, "")
		}
		t := map[string]any{}
		parent[key] = t
		return t, nil
	}
	t, ok := raw.(map[string]any)
	if !ok {
		return nil, m.sectionErr(section, "a table")
	}
	return t, nil
}

func (m *Manifest) sectionErr(section, want string) error {
	return &SectionError{Manifest: m.path.String(), Section: section, Want: want}
}

func containsString(values []any, s string) bool {
	for _, v := range values {
		if str, ok := v.(string); ok && str == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
