// Package goabi describes a Go contract type as ABI methods. It is a front
// end for abi.Generate that reads the exported methods of one named type from
// type-checked source.
//
// Method shape is read from the signature and from doc directives:
//
//	//abi:init                  constructor
//	//abi:view                  read-only, even with a pointer receiver
//	//abi:borsh [param...]      borsh serialization for the listed params, or
//	                            for every param and the result when none given
//	//abi:callback param...     params holding promise results
//	//abi:callback-vec param    param holding all joined promise results
//
// A value receiver makes a method a view. A leading context.Context parameter
// and a trailing error result are not part of the ABI.
package goabi

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/packages"

	"cargoabi/internal/abi"
	"cargoabi/internal/registry"
)

// Load type-checks the package in dir and describes the exported methods of
// typeName in source order.
func Load(dir, typeName string) ([]abi.Method, error) {
	pkg, err := loadPackageForDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	obj, ok := pkg.Types.Scope().Lookup(typeName).(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("%s: no type named %s", pkg.PkgPath, typeName)
	}

	m := newMapper(pkg.Types)
	var methods []abi.Method
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv == nil || !fd.Name.IsExported() {
				continue
			}
			if receiverName(fd) != obj.Name() {
				continue
			}
			fn, ok := pkg.TypesInfo.Defs[fd.Name].(*types.Func)
			if !ok {
				continue
			}
			method, err := m.method(fd, fn)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", typeName, fd.Name.Name, err)
			}
			methods = append(methods, method)
		}
	}
	return methods, nil
}

// Generate is Load followed by abi.Generate.
func Generate(dir, typeName string) (*abi.Root, error) {
	methods, err := Load(dir, typeName)
	if err != nil {
		return nil, err
	}
	return abi.Generate(methods)
}

// ---------------------------------------------------------------------------
// Package loading
// ---------------------------------------------------------------------------

func loadPackageForDir(dir string) (*packages.Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedSyntax |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedImports,
		Dir:  dir,
		Fset: token.NewFileSet(),
	}
	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found")
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		msgs := make([]string, len(pkg.Errors))
		for i, e := range pkg.Errors {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("%d error(s):\n%s", len(msgs), strings.Join(msgs, "\n"))
	}
	if pkg.TypesInfo == nil || pkg.Types == nil {
		return nil, fmt.Errorf("no type info")
	}
	return pkg, nil
}

func receiverName(fd *ast.FuncDecl) string {
	if len(fd.Recv.List) == 0 {
		return ""
	}
	expr := fd.Recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if id, ok := expr.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

func (m *mapper) method(fd *ast.FuncDecl, fn *types.Func) (abi.Method, error) {
	sig := fn.Type().(*types.Signature)
	d, err := parseDirectives(fd.Doc)
	if err != nil {
		return abi.Method{}, err
	}

	_, pointer := sig.Recv().Type().(*types.Pointer)
	method := abi.Method{
		Name: fn.Name(),
		View: d.view || (!pointer && !d.init),
		Init: d.init,
	}
	if d.init && d.view {
		return abi.Method{}, fmt.Errorf("a method cannot be both init and view")
	}

	params := sig.Params()
	seen := make(map[string]bool, params.Len())
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		if i == 0 && isContext(p.Type()) {
			continue
		}
		name := p.Name()
		if name == "" || name == "_" {
			name = fmt.Sprintf("arg%d", i)
		}
		seen[name] = true

		t, err := m.typeOf(p.Type())
		if err != nil {
			return abi.Method{}, fmt.Errorf("param %s: %w", name, err)
		}
		arg := abi.Arg{Name: name, Type: t, Kind: d.kind(name)}
		if d.borshAll || d.borsh[name] {
			arg.Serialization = abi.SerializationBorsh
		}
		method.Args = append(method.Args, arg)
	}
	if err := d.checkParams(seen); err != nil {
		return abi.Method{}, err
	}

	results := sig.Results()
	n := results.Len()
	if n > 0 && isError(results.At(n-1).Type()) {
		n--
	}
	var elems []registry.Type
	for i := 0; i < n; i++ {
		t, err := m.typeOf(results.At(i).Type())
		if err != nil {
			return abi.Method{}, fmt.Errorf("result: %w", err)
		}
		elems = append(elems, t)
	}
	switch len(elems) {
	case 0:
	case 1:
		method.Result = &elems[0]
	default:
		tuple := registry.Tuple(elems...)
		method.Result = &tuple
	}
	if d.borshAll && method.Result != nil {
		method.ResultSerialization = abi.SerializationBorsh
	}
	return method, nil
}

func isContext(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context"
}

func isError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}
