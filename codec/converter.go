package codec

import "fmt"

// ConvertFunc upgrades one BSON-decoded document to the next model
// version's shape. It operates on bson.M-style generic maps rather than
// concrete Go structs, since the codec layer does not know about
// registered model types — only the chain's endpoints do.
type ConvertFunc func(old map[string]interface{}) (map[string]interface{}, error)

// step is one hop in a registered conversion chain.
type step struct {
	fromVersion uint32
	fn          ConvertFunc
}

// Converters holds every registered old-to-new conversion function for
// a model_id, keyed by the version the step upgrades FROM. Chained
// application upgrades a record from any past version to the current
// one, one hop at a time, implementing the migration engine's
// conversion-chain requirement.
type Converters struct {
	byModelID map[uint32][]step
}

// NewConverters creates an empty registry.
func NewConverters() *Converters {
	return &Converters{byModelID: make(map[uint32][]step)}
}

// Register adds the conversion step that upgrades modelID's records
// from fromVersion to fromVersion+1.
func (c *Converters) Register(modelID, fromVersion uint32, fn ConvertFunc) {
	c.byModelID[modelID] = append(c.byModelID[modelID], step{fromVersion: fromVersion, fn: fn})
}

// Upgrade applies every registered step needed to bring doc from
// fromVersion to toVersion, in order. Returns an error naming the first
// missing hop if the chain has a gap.
func (c *Converters) Upgrade(modelID, fromVersion, toVersion uint32, doc map[string]interface{}) (map[string]interface{}, error) {
	steps := c.byModelID[modelID]

	current := fromVersion
	for current < toVersion {
		var next *step
		for i := range steps {
			if steps[i].fromVersion == current {
				next = &steps[i]
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("codec: no conversion registered for model %d from version %d", modelID, current)
		}

		upgraded, err := next.fn(doc)
		if err != nil {
			return nil, fmt.Errorf("codec: conversion model %d v%d->v%d: %w", modelID, current, current+1, err)
		}
		doc = upgraded
		current++
	}

	return doc, nil
}
