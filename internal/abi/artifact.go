package abi

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/semver"

	"cargoabi/internal/registry"
)

// FileName is the artifact's name inside the target directory.
const FileName = "abi.json"

// ErrIncompatibleSchema is returned for driver output whose schema version
// this tool cannot read.
var ErrIncompatibleSchema = errors.New("incompatible abi schema version")

// DecodeError reports driver output that is not a well-formed ABI document.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "malformed ABI from driver: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// ParseDriverOutput decodes what the driver printed. Both a Root
// ({"abi_schema_version", "abi"}) and a bare Abi ({"functions", "types"}) are
// accepted; the latter is stamped with SchemaVersion.
func ParseDriverOutput(data []byte) (*Root, error) {
	var probe struct {
		AbiSchemaVersion *string             `json:"abi_schema_version"`
		Abi              *Abi                `json:"abi"`
		Functions        *[]Function         `json:"functions"`
		Types            *[]registry.TypeDef `json:"types"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &DecodeError{Err: err}
	}

	var root Root
	switch {
	case probe.AbiSchemaVersion != nil:
		if err := checkCompatible(*probe.AbiSchemaVersion); err != nil {
			return nil, err
		}
		if probe.Abi == nil {
			return nil, &DecodeError{Err: errors.New(`missing "abi" field`)}
		}
		root = Root{AbiSchemaVersion: *probe.AbiSchemaVersion, Abi: *probe.Abi}
	case probe.Functions != nil || probe.Types != nil:
		root.AbiSchemaVersion = SchemaVersion
		if probe.Functions != nil {
			root.Abi.Functions = *probe.Functions
		}
		if probe.Types != nil {
			root.Abi.Types = *probe.Types
		}
	default:
		return nil, &DecodeError{Err: errors.New("document is neither an ABI root nor an ABI")}
	}

	if err := root.Abi.validate(); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &root, nil
}

// checkCompatible accepts versions with the same major (same minor while the
// major is 0) as SchemaVersion.
func checkCompatible(v string) error {
	got, want := "v"+v, "v"+SchemaVersion
	if !semver.IsValid(got) {
		return &DecodeError{Err: fmt.Errorf("invalid abi_schema_version %q", v)}
	}
	if semver.Major(got) != semver.Major(want) ||
		(semver.Major(want) == "v0" && semver.MajorMinor(got) != semver.MajorMinor(want)) {
		return fmt.Errorf("%w: driver emitted %s, this tool reads %s", ErrIncompatibleSchema, v, SchemaVersion)
	}
	return nil
}

// validate checks the type table is numbered 0..n-1, holds only well-formed
// schemas, and that every parameter references an entry in it.
func (a Abi) validate() error {
	for i, td := range a.Types {
		if td.ID != uint32(i) {
			return fmt.Errorf("type table entry %d has id %d", i, td.ID)
		}
		if err := td.Schema.Validate(); err != nil {
			return fmt.Errorf("type %d: %w", td.ID, err)
		}
	}
	n := uint32(len(a.Types))
	check := func(fn string, p *Parameter) error {
		if p != nil && p.TypeID >= n {
			return fmt.Errorf("function %s references unknown type id %d", fn, p.TypeID)
		}
		return nil
	}
	for _, fn := range a.Functions {
		for i := range fn.Params {
			if err := check(fn.Name, &fn.Params[i]); err != nil {
				return err
			}
		}
		for i := range fn.Callbacks {
			if err := check(fn.Name, &fn.Callbacks[i]); err != nil {
				return err
			}
		}
		if err := check(fn.Name, fn.CallbacksVec); err != nil {
			return err
		}
		if err := check(fn.Name, fn.Result); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes md as indented JSON, creating parent directories.
func WriteFile(path string, md *ContractMetadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("encode abi: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads an artifact written by WriteFile.
func ReadFile(path string) (*ContractMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var md ContractMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := checkCompatible(md.AbiSchemaVersion); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &md, nil
}
