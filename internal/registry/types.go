package registry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a structural type.
type Kind string

const (
	KindPrimitive Kind = "primitive"
	KindStruct    Kind = "struct"
	KindEnum      Kind = "enum"
	KindTuple     Kind = "tuple"
	KindSequence  Kind = "sequence"
	KindArray     Kind = "array"
	KindMap       Kind = "map"
	KindOption    Kind = "option"
	// KindRef points back at a named type that is still being described;
	// it breaks cycles in recursive types.
	KindRef Kind = "ref"
)

// Type is a structural type description. Which fields are set depends on
// Kind:
//
//	primitive  Name ("u32", "string", ...)
//	struct     Name, Fields
//	enum       Name, Variants
//	tuple      Elems
//	sequence   Elem
//	array      Elem, Len
//	map        Key, Elem
//	option     Elem
//	ref        Name
type Type struct {
	Kind     Kind      `json:"kind"`
	Name     string    `json:"name,omitempty"`
	Fields   []Field   `json:"fields,omitempty"`
	Variants []Variant `json:"variants,omitempty"`
	Elems    []Type    `json:"elems,omitempty"`
	Elem     *Type     `json:"elem,omitempty"`
	Key      *Type     `json:"key,omitempty"`
	Len      int       `json:"len,omitempty"`
}

// Field is a named struct member.
type Field struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Variant is one enum alternative. Fields is empty for unit variants.
type Variant struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields,omitempty"`
}

func Primitive(name string) Type { return Type{Kind: KindPrimitive, Name: name} }

func Struct(name string, fields ...Field) Type {
	return Type{Kind: KindStruct, Name: name, Fields: fields}
}

func Enum(name string, variants ...Variant) Type {
	return Type{Kind: KindEnum, Name: name, Variants: variants}
}

func Tuple(elems ...Type) Type { return Type{Kind: KindTuple, Elems: elems} }

func Sequence(elem Type) Type { return Type{Kind: KindSequence, Elem: &elem} }

func Array(elem Type, n int) Type { return Type{Kind: KindArray, Elem: &elem, Len: n} }

func Map(key, elem Type) Type { return Type{Kind: KindMap, Key: &key, Elem: &elem} }

func Option(elem Type) Type { return Type{Kind: KindOption, Elem: &elem} }

func Ref(name string) Type { return Type{Kind: KindRef, Name: name} }

// Signature renders t canonically. Two types have the same signature exactly
// when they serialize to the same schema.
func (t Type) Signature() string {
	var b strings.Builder
	t.writeSignature(&b)
	return b.String()
}

func (t Type) String() string { return t.Signature() }

func (t Type) writeSignature(b *strings.Builder) {
	switch t.Kind {
	case KindPrimitive:
		b.WriteString(t.Name)
	case KindRef:
		b.WriteString("&")
		b.WriteString(strconv.Quote(t.Name))
	case KindStruct:
		b.WriteString("struct ")
		b.WriteString(strconv.Quote(t.Name))
		writeFields(b, t.Fields)
	case KindEnum:
		b.WriteString("enum ")
		b.WriteString(strconv.Quote(t.Name))
		b.WriteString("{")
		for i, v := range t.Variants {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(strconv.Quote(v.Name))
			if len(v.Fields) > 0 {
				writeFields(b, v.Fields)
			}
		}
		b.WriteString("}")
	case KindTuple:
		b.WriteString("(")
		for i, e := range t.Elems {
			if i > 0 {
				b.WriteString(",")
			}
			e.writeSignature(b)
		}
		b.WriteString(")")
	case KindSequence:
		b.WriteString("[")
		t.elem().writeSignature(b)
		b.WriteString("]")
	case KindArray:
		b.WriteString("[")
		t.elem().writeSignature(b)
		b.WriteString(";")
		b.WriteString(strconv.Itoa(t.Len))
		b.WriteString("]")
	case KindMap:
		b.WriteString("map<")
		t.key().writeSignature(b)
		b.WriteString(",")
		t.elem().writeSignature(b)
		b.WriteString(">")
	case KindOption:
		b.WriteString("option<")
		t.elem().writeSignature(b)
		b.WriteString(">")
	default:
		b.WriteString("?")
		b.WriteString(string(t.Kind))
	}
}

func writeFields(b *strings.Builder, fields []Field) {
	b.WriteString("{")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(strconv.Quote(f.Name))
		b.WriteString(":")
		f.Type.writeSignature(b)
	}
	b.WriteString("}")
}

// Validate reports a description that is not well formed for its Kind: an
// unknown kind, a missing name, element or key, or an invalid nested type.
func (t Type) Validate() error {
	switch t.Kind {
	case KindPrimitive, KindRef:
		if t.Name == "" {
			return fmt.Errorf("%s type without a name", t.Kind)
		}
	case KindStruct:
		return validateFields(t.Fields)
	case KindEnum:
		for _, v := range t.Variants {
			if err := validateFields(v.Fields); err != nil {
				return fmt.Errorf("variant %q: %w", v.Name, err)
			}
		}
	case KindTuple:
		for i, e := range t.Elems {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	case KindMap:
		if t.Key == nil {
			return errors.New("map type without a key")
		}
		if err := t.Key.Validate(); err != nil {
			return fmt.Errorf("map key: %w", err)
		}
		fallthrough
	case KindSequence, KindArray, KindOption:
		if t.Elem == nil {
			return fmt.Errorf("%s type without an element", t.Kind)
		}
		return t.Elem.Validate()
	case "":
		return errors.New(`missing "kind"`)
	default:
		return fmt.Errorf("unknown kind %q", t.Kind)
	}
	return nil
}

func validateFields(fields []Field) error {
	for _, f := range fields {
		if err := f.Type.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

func (t Type) elem() Type {
	if t.Elem == nil {
		return Type{}
	}
	return *t.Elem
}

func (t Type) key() Type {
	if t.Key == nil {
		return Type{}
	}
	return *t.Key
}
