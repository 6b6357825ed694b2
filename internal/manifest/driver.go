package manifest

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DriverPackagePath is where the driver package is generated, relative to
	// the manifest that registers it as a workspace member.
	DriverPackagePath = ".abi/metadata_gen"
	// DriverPackageName is the cargo package name of the driver.
	DriverPackageName = "metadata-gen"
	// ExtractionSymbol is the function every contract crate must export; the
	// driver calls it and prints the result.
	ExtractionSymbol = "__abi_generate"
	// DefaultSDKCrate is the SDK dependency copied into the driver when none
	// is configured.
	DefaultSDKCrate = "near-sdk"
)

//go:embed templates/driver/Cargo.toml.tmpl templates/driver/main.rs.tmpl
var driverTemplates embed.FS

var mainTemplate = template.Must(template.ParseFS(driverTemplates, "templates/driver/main.rs.tmpl"))

// DriverPackage describes the generated driver crate.
type DriverPackage struct {
	// ContractPath is the contract crate directory, relative to the driver
	// package directory. Defaults to "../..".
	ContractPath string
	// ContractPackage is the contract's package name. Defaults to the name
	// of the manifest hosting the driver.
	ContractPackage string
	// SDKCrate names the dependency copied from the contract manifest.
	SDKCrate string
}

// renderDriver produces the driver's Cargo.toml and main.rs. The SDK
// dependency is copied from this manifest minus its feature selection, so
// the driver always builds the SDK with default features.
func (m *Manifest) renderDriver() ([]renderedFile, error) {
	contractPackage := m.driver.ContractPackage
	if contractPackage == "" {
		name, err := m.PackageName()
		if err != nil {
			return nil, err
		}
		contractPackage = name
	}
	sdk, err := m.dependency(m.driver.SDKCrate)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"default-features", "features", "optional"} {
		delete(sdk, key)
	}

	cargoToml, err := renderDriverManifest(contractPackage, m.driver.ContractPath, m.driver.SDKCrate, sdk)
	if err != nil {
		return nil, err
	}
	mainRs, err := renderDriverMain(m.driver.SDKCrate)
	if err != nil {
		return nil, err
	}
	return []renderedFile{
		{name: DriverPackagePath + "/Cargo.toml", data: cargoToml},
		{name: DriverPackagePath + "/main.rs", data: mainRs},
	}, nil
}

func renderDriverManifest(contractPackage, contractPath, sdkCrate string, sdk map[string]any) ([]byte, error) {
	raw, err := driverTemplates.ReadFile("templates/driver/Cargo.toml.tmpl")
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("driver template: %w", err)
	}
	// Shape guaranteed by the embedded template.
	deps := doc["dependencies"].(map[string]any)
	contract := deps["contract"].(map[string]any)
	contract["path"] = contractPath
	contract["package"] = contractPackage
	deps[sdkCrate] = sdk

	data, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode driver manifest: %w", err)
	}
	return data, nil
}

func renderDriverMain(sdkCrate string) ([]byte, error) {
	var buf bytes.Buffer
	err := mainTemplate.Execute(&buf, struct{ SDK, Symbol string }{
		SDK:    strings.ReplaceAll(sdkCrate, "-", "_"),
		Symbol: ExtractionSymbol,
	})
	if err != nil {
		return nil, fmt.Errorf("render driver main.rs: %w", err)
	}
	return buf.Bytes(), nil
}
