package workspace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargoabi/internal/cargo"
	"cargoabi/internal/manifest"
	"cargoabi/internal/workspace"
)

const hostToml = `[package]
name = "adder"
version = "0.1.0"

[lib]
crate-type = ["cdylib"]

[dependencies]
near-sdk = { version = "4.0.0", features = ["abi"] }
helper = { path = "helper" }
ext = { path = "../ext" }
`

const helperToml = `[package]
name = "helper"
version = "0.1.0"
`

// fixture lays out a two-member workspace and returns its canonical root
// and the matching cargo metadata.
func fixture(t *testing.T) (string, *cargo.Metadata) {
	t.Helper()
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	root := filepath.Join(base, "ws")

	files := map[string]string{
		"Cargo.toml":        hostToml,
		"src/lib.rs":        "",
		"Cargo.lock":        "# lock\n",
		"helper/Cargo.toml": helperToml,
		"helper/src/lib.rs": "",
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}

	meta := &cargo.Metadata{
		Packages: []cargo.Package{
			{ID: "adder", Name: "adder", Version: "0.1.0", Authors: []string{"a"}, ManifestPath: filepath.Join(root, "Cargo.toml")},
			{ID: "helper", Name: "helper", Version: "0.1.0", ManifestPath: filepath.Join(root, "helper", "Cargo.toml")},
		},
		WorkspaceMembers: []string{"adder", "helper"},
		WorkspaceRoot:    root,
		TargetDirectory:  filepath.Join(root, "target"),
	}
	return root, meta
}

func readTOML(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := map[string]any{}
	require.NoError(t, toml.Unmarshal(data, &doc))
	return doc
}

func sub(t *testing.T, doc map[string]any, keys ...string) map[string]any {
	t.Helper()
	for _, k := range keys {
		next, ok := doc[k].(map[string]any)
		require.True(t, ok, "missing table %s", k)
		doc = next
	}
	return doc
}

func TestUsingTempMirrorsWorkspace(t *testing.T) {
	root, meta := fixture(t)
	tempRoot := t.TempDir()

	ws, err := workspace.New(meta, "adder", workspace.WithTempRoot(tempRoot))
	require.NoError(t, err)
	require.NoError(t, ws.WithRootPackageManifest(func(m *manifest.Manifest) error {
		if err := m.WithAddedCrateType("rlib"); err != nil {
			return err
		}
		return m.WithProfileReleaseLTO(false)
	}))
	require.NoError(t, ws.WithDriverPackage(root, manifest.DefaultSDKCrate))

	var scratch string
	err = ws.UsingTemp(context.Background(), func(_ context.Context, p manifest.Path) error {
		scratch = p.Directory()
		assert.Equal(t, tempRoot, filepath.Dir(scratch))
		assert.Contains(t, filepath.Base(scratch), workspace.TempPrefix)

		doc := readTOML(t, p.String())
		assert.Equal(t, []any{"cdylib", "rlib"}, sub(t, doc, "lib")["crate-type"])
		assert.Equal(t, false, sub(t, doc, "profile", "release")["lto"])

		deps := sub(t, doc, "dependencies")
		assert.Equal(t, "helper", sub(t, deps, "helper")["path"], "members stay relative")
		assert.Equal(t, filepath.Join(filepath.Dir(root), "ext"), sub(t, deps, "ext")["path"])
		assert.Equal(t, filepath.Join(root, "src", "lib.rs"), sub(t, doc, "lib")["path"])

		assert.FileExists(t, filepath.Join(scratch, "helper", "Cargo.toml"))
		lock, err := os.ReadFile(filepath.Join(scratch, "Cargo.lock"))
		require.NoError(t, err)
		assert.Equal(t, "# lock\n", string(lock))

		driver := readTOML(t, filepath.Join(scratch, filepath.FromSlash(manifest.DriverPackagePath), "Cargo.toml"))
		contract := sub(t, driver, "dependencies", "contract")
		assert.Equal(t, "../..", contract["path"])
		assert.Equal(t, "adder", contract["package"])
		assert.Equal(t, map[string]any{"version": "4.0.0"}, sub(t, driver, "dependencies", "near-sdk"))
		return nil
	})
	require.NoError(t, err)

	_, err = os.Stat(scratch)
	assert.True(t, os.IsNotExist(err), "scratch directory removed")

	original := readTOML(t, filepath.Join(root, "Cargo.toml"))
	assert.Equal(t, []any{"cdylib"}, sub(t, original, "lib")["crate-type"], "original untouched")
}

func TestUsingTempCleansUpAfterFailingCargo(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake cargo is a shell script")
	}
	_, meta := fixture(t)
	fake := filepath.Join(t.TempDir(), "cargo")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\nexit 101\n"), 0o755))
	t.Setenv(cargo.EnvVar, fake)

	tempRoot := t.TempDir()
	ws, err := workspace.New(meta, "adder", workspace.WithTempRoot(tempRoot))
	require.NoError(t, err)

	err = ws.UsingTemp(context.Background(), func(ctx context.Context, p manifest.Path) error {
		_, err := cargo.Invoke(ctx, "run", []string{"--package", manifest.DriverPackageName}, cargo.Options{Dir: p.Directory()})
		return err
	})
	var ee *cargo.ExitError
	require.True(t, errors.As(err, &ee), "got %v", err)
	assert.Equal(t, 101, ee.Code)

	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDriverPathForNestedContract(t *testing.T) {
	root, meta := fixture(t)
	// Treat helper as the contract; the driver still lives at the root.
	ws, err := workspace.New(meta, "helper", workspace.WithTempRoot(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, ws.WithDriverPackage(filepath.Join(root, "helper"), manifest.DefaultSDKCrate))

	err = ws.UsingTemp(context.Background(), func(_ context.Context, p manifest.Path) error {
		assert.Equal(t, "helper", filepath.Base(p.Directory()))
		driver := readTOML(t, filepath.Join(filepath.Dir(p.Directory()), filepath.FromSlash(manifest.DriverPackagePath), "Cargo.toml"))
		assert.Equal(t, "../../helper", sub(t, driver, "dependencies", "contract")["path"])
		return nil
	})
	require.NoError(t, err)
}

func TestNewRejectsNonMember(t *testing.T) {
	_, meta := fixture(t)
	_, err := workspace.New(meta, "stranger")
	assert.ErrorIs(t, err, workspace.ErrNotMember)
}

func TestWithDriverPackageNeedsRootPackage(t *testing.T) {
	_, meta := fixture(t)
	meta.WorkspaceRoot = filepath.Dir(meta.WorkspaceRoot)

	ws, err := workspace.New(meta, "adder")
	require.NoError(t, err)
	assert.ErrorIs(t, ws.WithDriverPackage(meta.WorkspaceRoot, manifest.DefaultSDKCrate), workspace.ErrNotMember)
}
