package store

import "fmt"

// ResetTable replaces the named table's underlying tree(s) with fresh,
// empty ones of the same kind, used by the migration engine to drain a
// legacy model's primary and secondary tables in one step once every row
// has been migrated into its replacement.
func (e *Engine) ResetTable(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tables[name]
	if !ok {
		return fmt.Errorf("store: %q is not a registered table", name)
	}

	switch t.Kind {
	case Primary:
		t.primary = NewPrimaryTable(name).primary
	case UniqueSecondary:
		t.unique = NewUniqueSecondaryTable(name).unique
	case MultiSecondary:
		t.multi = NewMultiSecondaryTable(name).multi
	default:
		return fmt.Errorf("store: unknown table kind %d", t.Kind)
	}
	return nil
}
