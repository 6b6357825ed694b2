// Package abi defines the contract interface description emitted by the
// driver, the pass that builds it from declared methods, and the merge with
// package metainfo into the persisted artifact.
package abi

import "cargoabi/internal/registry"

// SchemaVersion is the semver of the ABI document format written by this
// tool.
const SchemaVersion = "0.1.0"

// SerializationType tags how a value is encoded on the wire.
type SerializationType string

const (
	SerializationJSON  SerializationType = "json"
	SerializationBorsh SerializationType = "borsh"
)

// Parameter references a registered type.
type Parameter struct {
	Name              string            `json:"name,omitempty"`
	TypeID            uint32            `json:"type_id"`
	SerializationType SerializationType `json:"serialization_type"`
}

// Function describes one externally callable method.
type Function struct {
	Name   string      `json:"name"`
	IsView bool        `json:"is_view"`
	IsInit bool        `json:"is_init"`
	Params []Parameter `json:"params"`
	// Callbacks are the results of promises this method is a callback for.
	Callbacks []Parameter `json:"callbacks,omitempty"`
	// CallbacksVec is used instead of Callbacks when all joined promises
	// share one result type.
	CallbacksVec *Parameter `json:"callbacks_vec,omitempty"`
	Result       *Parameter `json:"result,omitempty"`
}

// Abi is the structural part of the description.
type Abi struct {
	Functions []Function          `json:"functions"`
	Types     []registry.TypeDef `json:"types"`
}

// Root is what the driver prints: the Abi tagged with its schema version.
type Root struct {
	AbiSchemaVersion string `json:"abi_schema_version"`
	Abi              Abi    `json:"abi"`
}

// MetaInfo holds packaging facts about the contract. It comes from the
// crate's package metadata, never from the compiled code.
type MetaInfo struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Authors []string `json:"authors"`
}

// ContractMetadata is the persisted artifact.
type ContractMetadata struct {
	AbiSchemaVersion string   `json:"abi_schema_version"`
	MetaInfo         MetaInfo `json:"metainfo"`
	Abi              Abi      `json:"abi"`
}

// NewContractMetadata merges a driver result with metainfo.
func NewContractMetadata(root *Root, meta MetaInfo) *ContractMetadata {
	if meta.Authors == nil {
		meta.Authors = []string{}
	}
	return &ContractMetadata{
		AbiSchemaVersion: root.AbiSchemaVersion,
		MetaInfo:         meta,
		Abi:              root.Abi.normalized(),
	}
}

// normalized replaces nil slices so they encode as [] rather than null.
func (a Abi) normalized() Abi {
	fns := make([]Function, len(a.Functions))
	copy(fns, a.Functions)
	for i := range fns {
		if fns[i].Params == nil {
			fns[i].Params = []Parameter{}
		}
	}
	a.Functions = fns
	if a.Types == nil {
		a.Types = []registry.TypeDef{}
	}
	return a
}
