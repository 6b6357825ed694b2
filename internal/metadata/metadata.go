// Package metadata extracts a contract's ABI by building and running a
// driver program against an amended copy of its workspace.
package metadata

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"cargoabi/internal/abi"
	"cargoabi/internal/cargo"
	"cargoabi/internal/manifest"
	"cargoabi/internal/workspace"
)

// DefaultTargetSubdir keeps driver builds apart from the crate's own.
const DefaultTargetSubdir = "abi-gen"

// Options tune Execute. The zero value uses every default.
type Options struct {
	// SDKCrate is the dependency copied into the driver.
	SDKCrate string
	// Output is the artifact file name inside the target directory.
	Output string
	// TargetSubdir is the driver's --target-dir, relative to the target
	// directory.
	TargetSubdir string
	// ExcludeDeps are package names whose path dependencies stay relative.
	ExcludeDeps []string
	// TempRoot is where the scratch workspace is created.
	TempRoot string
	Logger   *zap.Logger
}

// Result describes a successful extraction.
type Result struct {
	// Path is where the artifact was written.
	Path     string
	Metadata *abi.ContractMetadata
}

// Execute produces <target>/abi.json for crate.
func Execute(ctx context.Context, crate *cargo.CrateMetadata, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	sdk := opts.SDKCrate
	if sdk == "" {
		sdk = manifest.DefaultSDKCrate
	}
	output := opts.Output
	if output == "" {
		output = abi.FileName
	}
	subdir := opts.TargetSubdir
	if subdir == "" {
		subdir = DefaultTargetSubdir
	}
	outPath := filepath.Join(crate.TargetDirectory, output)
	driverTarget := filepath.Join(crate.TargetDirectory, subdir)

	ws, err := workspace.New(crate.Metadata, crate.RootPackage.ID,
		workspace.WithLogger(log),
		workspace.WithTempRoot(opts.TempRoot),
		workspace.WithExclude(opts.ExcludeDeps...),
	)
	if err != nil {
		return nil, err
	}
	err = ws.WithRootPackageManifest(func(m *manifest.Manifest) error {
		if err := m.WithAddedCrateType("rlib"); err != nil {
			return err
		}
		return m.WithProfileReleaseLTO(false)
	})
	if err != nil {
		return nil, err
	}
	contractDir, err := crate.ManifestPath.AbsoluteDirectory()
	if err != nil {
		return nil, err
	}
	if err := ws.WithDriverPackage(contractDir, sdk); err != nil {
		return nil, err
	}

	meta := abi.MetaInfo{
		Name:    crate.RootPackage.Name,
		Version: crate.RootPackage.Version,
		Authors: crate.RootPackage.Authors,
	}
	var md *abi.ContractMetadata
	err = ws.UsingTemp(ctx, func(ctx context.Context, p manifest.Path) error {
		arg, err := p.CargoArg()
		if err != nil {
			return err
		}
		stdout, err := cargo.Invoke(ctx, "run", []string{
			"--package", manifest.DriverPackageName,
			arg,
			"--target-dir=" + driverTarget,
			"--release",
		}, cargo.Options{Dir: p.Directory(), Logger: log})
		if err != nil {
			return fmt.Errorf("run ABI driver: %w", err)
		}

		root, err := abi.ParseDriverOutput(stdout)
		if err != nil {
			return err
		}
		md = abi.NewContractMetadata(root, meta)
		return abi.WriteFile(outPath, md)
	})
	if err != nil {
		return nil, err
	}

	log.Info("wrote contract ABI",
		zap.String("path", outPath),
		zap.Int("functions", len(md.Abi.Functions)),
		zap.Int("types", len(md.Abi.Types)))
	return &Result{Path: outPath, Metadata: md}, nil
}
