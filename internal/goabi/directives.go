package goabi

import (
	"fmt"
	"go/ast"
	"sort"
	"strings"

	"cargoabi/internal/abi"
)

const directivePrefix = "//abi:"

type directives struct {
	init        bool
	view        bool
	borshAll    bool
	borsh       map[string]bool
	callbacks   map[string]bool
	callbackVec map[string]bool
}

func parseDirectives(doc *ast.CommentGroup) (*directives, error) {
	d := &directives{
		borsh:       map[string]bool{},
		callbacks:   map[string]bool{},
		callbackVec: map[string]bool{},
	}
	if doc == nil {
		return d, nil
	}
	for _, c := range doc.List {
		if !strings.HasPrefix(c.Text, directivePrefix) {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(c.Text, directivePrefix))
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty directive %q", c.Text)
		}
		name, args := fields[0], fields[1:]
		switch name {
		case "init":
			d.init = true
		case "view":
			d.view = true
		case "borsh":
			if len(args) == 0 {
				d.borshAll = true
			}
			mark(d.borsh, args)
		case "callback":
			if len(args) == 0 {
				return nil, fmt.Errorf("%s needs at least one parameter name", c.Text)
			}
			mark(d.callbacks, args)
		case "callback-vec":
			if len(args) == 0 {
				return nil, fmt.Errorf("%s needs a parameter name", c.Text)
			}
			// More than one is reported by abi.Generate, naming the function.
			mark(d.callbackVec, args)
		default:
			return nil, fmt.Errorf("unknown directive %q", c.Text)
		}
	}
	for name := range d.callbacks {
		if d.callbackVec[name] {
			return nil, fmt.Errorf("param %s is both callback and callback-vec", name)
		}
	}
	return d, nil
}

func mark(set map[string]bool, names []string) {
	for _, n := range names {
		set[n] = true
	}
}

func (d *directives) kind(param string) abi.ArgKind {
	switch {
	case d.callbackVec[param]:
		return abi.ArgCallbackVec
	case d.callbacks[param]:
		return abi.ArgCallback
	default:
		return abi.ArgInput
	}
}

// checkParams reports directives naming params the method does not have.
func (d *directives) checkParams(params map[string]bool) error {
	var unknown []string
	for _, set := range []map[string]bool{d.borsh, d.callbacks, d.callbackVec} {
		for name := range set {
			if !params[name] {
				unknown = append(unknown, name)
			}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("directive names unknown param(s): %s", strings.Join(unknown, ", "))
	}
	return nil
}
