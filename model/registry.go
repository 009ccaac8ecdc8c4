package model

import "fmt"

// ErrDuplicateModelVersion is returned by Models.Define when two models
// declare the same (model_id, version) pair, a fatal configuration
// error.
type ErrDuplicateModelVersion struct {
	ModelID uint32
	Version uint32
}

func (e *ErrDuplicateModelVersion) Error() string {
	return fmt.Sprintf("model: model_id %d already has a definition registered for version %d", e.ModelID, e.Version)
}

// ModelBuilder pairs a Model with the bookkeeping the registry needs:
// whether it is the current (non-legacy) definition for its model_id.
type ModelBuilder struct {
	Model  Model
	Legacy bool
}

// Models is the registry of every model definition known to a Database,
// keyed by the primary key's UniqueTableName. It implements
// legacy-promotion: among definitions sharing a model_id, the highest
// version is current and all others are legacy.
type Models struct {
	byTableName map[string]*ModelBuilder
	byModelID   map[uint32][]*ModelBuilder // all versions registered for a model_id, unsorted
}

// NewModels creates an empty registry.
func NewModels() *Models {
	return &Models{
		byTableName: make(map[string]*ModelBuilder),
		byModelID:   make(map[uint32][]*ModelBuilder),
	}
}

// Define registers m, promoting or demoting siblings per the
// legacy-promotion rule described above.
func (r *Models) Define(m Model) error {
	tableName := m.PrimaryKey.UniqueTableName()

	siblings := r.byModelID[m.PrimaryKey.ModelID]
	for _, sib := range siblings {
		if sib.Model.PrimaryKey.ModelVersion == m.PrimaryKey.ModelVersion {
			return &ErrDuplicateModelVersion{ModelID: m.PrimaryKey.ModelID, Version: m.PrimaryKey.ModelVersion}
		}
	}

	builder := &ModelBuilder{Model: m, Legacy: false}

	// Find current incumbent (the one not yet marked legacy), if any.
	var incumbent *ModelBuilder
	for _, sib := range siblings {
		if !sib.Legacy {
			incumbent = sib
			break
		}
	}

	if incumbent == nil {
		builder.Legacy = false
	} else if m.PrimaryKey.ModelVersion > incumbent.Model.PrimaryKey.ModelVersion {
		incumbent.Legacy = true
		builder.Legacy = false
	} else {
		// smaller version (equal already rejected above)
		builder.Legacy = true
	}

	r.byTableName[tableName] = builder
	r.byModelID[m.PrimaryKey.ModelID] = append(siblings, builder)

	return nil
}

// Get returns the registered ModelBuilder for the given primary-key table
// name, or false if none is registered.
func (r *Models) Get(uniqueTableName string) (*ModelBuilder, bool) {
	b, ok := r.byTableName[uniqueTableName]
	return b, ok
}

// Siblings returns every registered model (current and legacy) sharing
// modelID, in no particular order.
func (r *Models) Siblings(modelID uint32) []*ModelBuilder {
	return r.byModelID[modelID]
}

// All returns every registered model builder, current and legacy.
func (r *Models) All() []*ModelBuilder {
	out := make([]*ModelBuilder, 0, len(r.byTableName))
	for _, b := range r.byTableName {
		out = append(out, b)
	}
	return out
}
