package abi

import (
	"errors"
	"fmt"
	"strings"

	"cargoabi/internal/registry"
)

// ArgKind says where an argument's value comes from.
type ArgKind int

const (
	// ArgInput is a regular call argument.
	ArgInput ArgKind = iota
	// ArgCallback is the result of one promise this method is a callback for.
	ArgCallback
	// ArgCallbackVec collects the results of all joined promises.
	ArgCallbackVec
)

func (k ArgKind) String() string {
	switch k {
	case ArgInput:
		return "input"
	case ArgCallback:
		return "callback"
	case ArgCallbackVec:
		return "callback-vec"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

// Arg is one declared method argument.
type Arg struct {
	Name          string
	Type          registry.Type
	Kind          ArgKind
	Serialization SerializationType
}

// Method is a declared public method of a contract, as seen by a front end
// (macro expansion, source analysis, a hand-written description).
type Method struct {
	Name                string
	View                bool
	Init                bool
	Args                []Arg
	Result              *registry.Type
	ResultSerialization SerializationType
}

var (
	// ErrMultipleCallbackVec is wrapped by CallbackVecError.
	ErrMultipleCallbackVec = errors.New("more than one callback vector argument")
	// ErrDuplicateFunction is returned when two methods share a name.
	ErrDuplicateFunction = errors.New("duplicate function name")
)

// CallbackVecError names a method declaring more than one callback vector.
type CallbackVecError struct {
	Function string
	Args     []string
}

func (e *CallbackVecError) Error() string {
	return fmt.Sprintf("function %s: only one callback vector argument is allowed, got %d (%s)",
		e.Function, len(e.Args), strings.Join(e.Args, ", "))
}

func (e *CallbackVecError) Unwrap() error { return ErrMultipleCallbackVec }

// Generate runs the type-registration pass over methods and returns the
// resulting ABI.
//
// All methods are validated before anything is registered. Types are then
// registered in a fixed order: methods in declaration order, and within each
// method its inputs, callbacks, callback vector and result. That order fixes
// the ids and the order of the type table.
func Generate(methods []Method) (*Root, error) {
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		if m.Name == "" {
			return nil, fmt.Errorf("abi: method with empty name")
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("abi: %w: %s", ErrDuplicateFunction, m.Name)
		}
		seen[m.Name] = true
		if err := m.validate(); err != nil {
			return nil, err
		}
	}

	reg := registry.New()
	fns := make([]Function, 0, len(methods))
	for _, m := range methods {
		fns = append(fns, m.register(reg))
	}
	return &Root{
		AbiSchemaVersion: SchemaVersion,
		Abi:              Abi{Functions: fns, Types: reg.Types()},
	}, nil
}

func (m Method) validate() error {
	var vecs []string
	for _, a := range m.Args {
		if a.Kind == ArgCallbackVec {
			vecs = append(vecs, a.Name)
		}
	}
	if len(vecs) > 1 {
		return &CallbackVecError{Function: m.Name, Args: vecs}
	}
	return nil
}

func (m Method) register(reg *registry.Registry) Function {
	fn := Function{
		Name:   m.Name,
		IsView: m.View,
		IsInit: m.Init,
		Params: []Parameter{},
	}
	param := func(a Arg) Parameter {
		return Parameter{
			Name:              a.Name,
			TypeID:            reg.Register(a.Type),
			SerializationType: orJSON(a.Serialization),
		}
	}

	for _, a := range m.Args {
		if a.Kind == ArgInput {
			fn.Params = append(fn.Params, param(a))
		}
	}
	for _, a := range m.Args {
		if a.Kind == ArgCallback {
			fn.Callbacks = append(fn.Callbacks, param(a))
		}
	}
	for _, a := range m.Args {
		if a.Kind == ArgCallbackVec {
			p := param(a)
			fn.CallbacksVec = &p
		}
	}
	if m.Result != nil {
		fn.Result = &Parameter{
			TypeID:            reg.Register(*m.Result),
			SerializationType: orJSON(m.ResultSerialization),
		}
	}
	return fn
}

func orJSON(s SerializationType) SerializationType {
	if s == "" {
		return SerializationJSON
	}
	return s
}
