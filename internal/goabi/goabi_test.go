package goabi_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargoabi/internal/abi"
	"cargoabi/internal/goabi"
	"cargoabi/internal/registry"
)

func ptr(t registry.Type) *registry.Type { return &t }

func TestLoadAdder(t *testing.T) {
	methods, err := goabi.Load(filepath.Join("testdata", "adder"), "Adder")
	require.NoError(t, err)

	pair := registry.Struct("Pair",
		registry.Field{Name: "0", Type: registry.Primitive("u32")},
		registry.Field{Name: "1", Type: registry.Primitive("u32")},
	)
	node := registry.Struct("Node",
		registry.Field{Name: "Value", Type: registry.Primitive("i64")},
		registry.Field{Name: "children", Type: registry.Sequence(registry.Ref("Node"))},
	)

	want := []abi.Method{
		{
			Name: "New",
			Init: true,
			Args: []abi.Arg{{Name: "owner", Type: registry.Primitive("string")}},
		},
		{
			Name: "Add",
			View: true,
			Args: []abi.Arg{
				{Name: "a1", Type: pair},
				{Name: "b", Type: pair},
			},
			Result: ptr(pair),
		},
		{
			Name:   "Tree",
			Args:   []abi.Arg{{Name: "root", Type: registry.Option(node)}},
			Result: ptr(registry.Map(registry.Primitive("string"), registry.Array(registry.Primitive("u8"), 2))),
		},
		{
			Name: "OnJoined",
			Args: []abi.Arg{
				{Name: "first", Type: registry.Primitive("bool"), Kind: abi.ArgCallback, Serialization: abi.SerializationBorsh},
				{Name: "rest", Type: registry.Sequence(registry.Primitive("u16")), Kind: abi.ArgCallbackVec, Serialization: abi.SerializationBorsh},
			},
			Result:              ptr(registry.Sequence(registry.Primitive("u8"))),
			ResultSerialization: abi.SerializationBorsh,
		},
	}
	if diff := cmp.Diff(want, methods); diff != "" {
		t.Errorf("methods mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateAdder(t *testing.T) {
	root, err := goabi.Generate(filepath.Join("testdata", "adder"), "Adder")
	require.NoError(t, err)

	var sigs []string
	for _, td := range root.Abi.Types {
		sigs = append(sigs, td.Schema.Signature())
	}
	assert.Equal(t, []string{
		`string`,
		`struct "Pair"{"0":u32,"1":u32}`,
		`option<struct "Node"{"Value":i64,"children":[&"Node"]}>`,
		`map<string,[u8;2]>`,
		`bool`,
		`[u16]`,
		`[u8]`,
	}, sigs)

	add := root.Abi.Functions[1]
	assert.Equal(t, "Add", add.Name)
	assert.True(t, add.IsView)
	assert.Equal(t, add.Params[0].TypeID, add.Params[1].TypeID)
	assert.Equal(t, add.Params[0].TypeID, add.Result.TypeID)
}

func TestLoadRecursiveNamedTypes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "self-referential slice",
			src:  "package c\n\ntype List []List\n\ntype C struct{}\n\nfunc (C) Get(l List) {}\n",
			want: `[&"List"]`,
		},
		{
			name: "self-referential map",
			src:  "package c\n\ntype Tree map[string]Tree\n\ntype C struct{}\n\nfunc (C) Get(l Tree) {}\n",
			want: `map<string,&"Tree">`,
		},
		{
			name: "mutual recursion through a slice",
			src:  "package c\n\ntype Forest []Node\n\ntype Node struct{ Kids Forest }\n\ntype C struct{}\n\nfunc (C) Get(l Forest) {}\n",
			want: `[struct "Node"{"Kids":&"Forest"}]`,
		},
		{
			name: "embedded self pointer",
			src:  "package c\n\ntype A struct {\n\t*A\n\tX int\n}\n\ntype C struct{}\n\nfunc (C) Get(l A) {}\n",
			want: `struct "A"{"X":i64}`,
		},
		{
			name: "named slice used twice",
			src:  "package c\n\ntype IDs []uint16\n\ntype P struct{ A, B IDs }\n\ntype C struct{}\n\nfunc (C) Get(l P) {}\n",
			want: `struct "P"{"A":[u16],"B":[u16]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			methods, err := goabi.Load(writeModule(t, tt.src), "C")
			require.NoError(t, err)
			require.Len(t, methods, 1)
			require.Len(t, methods[0].Args, 1)
			assert.Equal(t, tt.want, methods[0].Args[0].Type.Signature())
		})
	}
}

// writeModule creates a single-file module in a temp dir.
func writeModule(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/c\n\ngo 1.22\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.go"), []byte(src), 0o644))
	return dir
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		typ     string
		wantErr string
	}{
		{
			name:    "channel param",
			src:     "package c\n\ntype C struct{}\n\nfunc (C) Watch(ch chan int) {}\n",
			typ:     "C",
			wantErr: "C.Watch",
		},
		{
			name:    "func result",
			src:     "package c\n\ntype C struct{}\n\nfunc (C) Get() func() { return nil }\n",
			typ:     "C",
			wantErr: "C.Get",
		},
		{
			name:    "interface field",
			src:     "package c\n\ntype In struct{ Any interface{} }\n\ntype C struct{}\n\nfunc (C) Put(in In) {}\n",
			typ:     "C",
			wantErr: "field Any",
		},
		{
			name:    "unknown directive",
			src:     "package c\n\ntype C struct{}\n\n//abi:payable\nfunc (*C) Pay() {}\n",
			typ:     "C",
			wantErr: "unknown directive",
		},
		{
			name:    "directive names missing param",
			src:     "package c\n\ntype C struct{}\n\n//abi:callback x\nfunc (*C) Done(y int) {}\n",
			typ:     "C",
			wantErr: "unknown param(s): x",
		},
		{
			name:    "init and view",
			src:     "package c\n\ntype C struct{}\n\n//abi:init\n//abi:view\nfunc (*C) New() {}\n",
			typ:     "C",
			wantErr: "both init and view",
		},
		{
			name:    "missing type",
			src:     "package c\n",
			typ:     "C",
			wantErr: "no type named C",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := goabi.Load(writeModule(t, tt.src), tt.typ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenerateRejectsTwoCallbackVecs(t *testing.T) {
	dir := writeModule(t, `package c

type C struct{}

//abi:callback-vec a b
func (*C) Join(a []int, b []int) {}
`)
	_, err := goabi.Generate(dir, "C")
	var cve *abi.CallbackVecError
	require.True(t, errors.As(err, &cve), "got %v", err)
	assert.Equal(t, "Join", cve.Function)
}
