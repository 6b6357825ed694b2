// Package registry numbers the distinct types reachable from a contract's
// public methods.
//
// Types are compared by structure: two descriptions that serialize to the
// same schema share one id, wherever they were registered from. Ids are
// handed out in first-encounter order starting at 0, so a deterministic
// traversal yields a deterministic table. Ids are only meaningful within one
// Registry.
package registry

// TypeDef is one entry of the emitted type table.
type TypeDef struct {
	ID     uint32 `json:"id"`
	Schema Type   `json:"schema"`
}

// Registry deduplicates and numbers types. The zero value is not usable; call
// New.
type Registry struct {
	ids   map[string]uint32
	types []TypeDef
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{ids: make(map[string]uint32)}
}

// Register returns the id for t, assigning the next free id if no
// structurally identical type has been seen.
func (r *Registry) Register(t Type) uint32 {
	key := t.Signature()
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := uint32(len(r.types))
	r.ids[key] = id
	r.types = append(r.types, TypeDef{ID: id, Schema: t})
	return id
}

// Lookup returns the id already assigned to t, if any.
func (r *Registry) Lookup(t Type) (uint32, bool) {
	id, ok := r.ids[t.Signature()]
	return id, ok
}

// Len reports the number of distinct types.
func (r *Registry) Len() int { return len(r.types) }

// Types returns the table in id order.
func (r *Registry) Types() []TypeDef {
	out := make([]TypeDef, len(r.types))
	copy(out, r.types)
	return out
}
