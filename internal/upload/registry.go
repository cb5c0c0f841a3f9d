package upload

import (
	"fmt"
	"time"
)

// Definition binds an upload type's catalog to its transform and load
// implementations.
type Definition struct {
	Config *UploadTypeConfig
	// NewTransformer is called once per batch with the batch start instant.
	NewTransformer func(startedAt time.Time) Transformer
	Loader         Loader
}

// Registry is the immutable table of known upload types, built at startup.
type Registry struct {
	defs  map[UploadType]Definition
	order []UploadType
}

// NewRegistry builds a registry. Each type may be registered once.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[UploadType]Definition, len(defs))}
	for _, def := range defs {
		if def.Config == nil || def.NewTransformer == nil || def.Loader == nil {
			return nil, fmt.Errorf("%w: incomplete definition", ErrInvalidConfig)
		}
		typ := def.Config.Type()
		if _, dup := r.defs[typ]; dup {
			return nil, fmt.Errorf("%w: %s registered twice", ErrInvalidConfig, typ)
		}
		r.defs[typ] = def
		r.order = append(r.order, typ)
	}
	return r, nil
}

// Lookup returns the definition of an upload type.
func (r *Registry) Lookup(typ UploadType) (Definition, error) {
	def, ok := r.defs[typ]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownUploadType, typ)
	}
	return def, nil
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []UploadType {
	return append([]UploadType(nil), r.order...)
}

// Configs returns the catalogs in registration order.
func (r *Registry) Configs() []*UploadTypeConfig {
	out := make([]*UploadTypeConfig, 0, len(r.order))
	for _, typ := range r.order {
		out = append(out, r.defs[typ].Config)
	}
	return out
}
