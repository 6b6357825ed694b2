package adder

import (
	"context"
	"errors"
)

type Pair struct {
	A uint32 `json:"0"`
	B uint32 `json:"1"`
}

type Node struct {
	Value    int64
	Children []Node `json:"children,omitempty"`
	internal bool
}

type AccountID string

type Adder struct {
	owner AccountID
}

// New creates the contract.
//
//abi:init
func (a *Adder) New(owner AccountID) {
	a.owner = owner
}

func (a Adder) Add(a1, b Pair) Pair {
	return Pair{A: a1.A + b.A, B: a1.B + b.B}
}

func (a *Adder) Tree(ctx context.Context, root *Node) (map[string][2]uint8, error) {
	return nil, errors.New("unimplemented")
}

//abi:callback first
//abi:callback-vec rest
//abi:borsh
func (a *Adder) OnJoined(first bool, rest []uint16) []byte {
	return nil
}

func (a *Adder) helper() {}

func Free() {}
