package goabi

import (
	"fmt"
	"go/types"
	"reflect"
	"strings"

	"cargoabi/internal/registry"
)

// mapper turns go/types types into registry types. Named types still being
// described become refs, so recursive types terminate.
type mapper struct {
	pkg     *types.Package
	pending map[*types.TypeName]bool
}

func newMapper(pkg *types.Package) *mapper {
	return &mapper{pkg: pkg, pending: map[*types.TypeName]bool{}}
}

var basicNames = map[types.BasicKind]string{
	types.Bool:    "bool",
	types.Int8:    "i8",
	types.Int16:   "i16",
	types.Int32:   "i32",
	types.Int64:   "i64",
	types.Int:     "i64",
	types.Uint8:   "u8",
	types.Uint16:  "u16",
	types.Uint32:  "u32",
	types.Uint64:  "u64",
	types.Uint:    "u64",
	types.Float32: "f32",
	types.Float64: "f64",
	types.String:  "string",
}

func (m *mapper) typeOf(t types.Type) (registry.Type, error) {
	switch t := types.Unalias(t).(type) {
	case *types.Basic:
		name, ok := basicNames[t.Kind()]
		if !ok {
			return registry.Type{}, fmt.Errorf("unsupported basic type %s", t)
		}
		return registry.Primitive(name), nil

	case *types.Named:
		obj := t.Obj()
		name := m.qualifiedName(obj)
		if m.pending[obj] {
			return registry.Ref(name), nil
		}
		m.pending[obj] = true
		defer delete(m.pending, obj)
		st, ok := t.Underlying().(*types.Struct)
		if !ok {
			return m.typeOf(t.Underlying())
		}
		fields, err := m.fields(st)
		if err != nil {
			return registry.Type{}, fmt.Errorf("%s: %w", name, err)
		}
		return registry.Struct(name, fields...), nil

	case *types.Struct:
		fields, err := m.fields(t)
		if err != nil {
			return registry.Type{}, err
		}
		return registry.Struct("", fields...), nil

	case *types.Pointer:
		elem, err := m.typeOf(t.Elem())
		if err != nil {
			return registry.Type{}, err
		}
		return registry.Option(elem), nil

	case *types.Slice:
		elem, err := m.typeOf(t.Elem())
		if err != nil {
			return registry.Type{}, err
		}
		return registry.Sequence(elem), nil

	case *types.Array:
		elem, err := m.typeOf(t.Elem())
		if err != nil {
			return registry.Type{}, err
		}
		return registry.Array(elem, int(t.Len())), nil

	case *types.Map:
		key, err := m.typeOf(t.Key())
		if err != nil {
			return registry.Type{}, err
		}
		elem, err := m.typeOf(t.Elem())
		if err != nil {
			return registry.Type{}, err
		}
		return registry.Map(key, elem), nil

	default:
		return registry.Type{}, fmt.Errorf("unsupported type %s", types.TypeString(t, m.qualifier()))
	}
}

// fields lists the JSON-visible fields of st. Untagged embedded structs are
// flattened the way encoding/json does. An embedded type already being
// flattened contributes nothing new and is skipped.
func (m *mapper) fields(st *types.Struct) ([]registry.Field, error) {
	var out []registry.Field
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		name, skip := jsonName(st.Tag(i))
		if skip {
			continue
		}
		if f.Embedded() && name == "" {
			inner := f.Type()
			if p, ok := inner.(*types.Pointer); ok {
				inner = p.Elem()
			}
			if est, ok := inner.Underlying().(*types.Struct); ok {
				nested, err := m.embedded(inner, est)
				if err != nil {
					return nil, err
				}
				out = append(out, nested...)
				continue
			}
		}
		if !f.Exported() {
			continue
		}
		if name == "" {
			name = f.Name()
		}
		t, err := m.typeOf(f.Type())
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name(), err)
		}
		out = append(out, registry.Field{Name: name, Type: t})
	}
	return out, nil
}

func (m *mapper) embedded(t types.Type, st *types.Struct) ([]registry.Field, error) {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return m.fields(st)
	}
	obj := named.Obj()
	if m.pending[obj] {
		return nil, nil
	}
	m.pending[obj] = true
	defer delete(m.pending, obj)
	return m.fields(st)
}

func jsonName(tag string) (name string, skip bool) {
	v, ok := reflect.StructTag(tag).Lookup("json")
	if !ok {
		return "", false
	}
	if v == "-" {
		return "", true
	}
	name, _, _ = strings.Cut(v, ",")
	return name, false
}

// qualifiedName leaves types of the loaded package unqualified.
func (m *mapper) qualifiedName(obj *types.TypeName) string {
	if obj.Pkg() == nil || obj.Pkg() == m.pkg {
		return obj.Name()
	}
	return obj.Pkg().Name() + "." + obj.Name()
}

func (m *mapper) qualifier() types.Qualifier {
	return func(p *types.Package) string {
		if p == m.pkg {
			return ""
		}
		return p.Name()
	}
}
