package ndb

import (
	"github.com/ndbkit/ndb/internal/store"
)

// Vacuum reclaims heap space for col: tombstones no longer visible to any
// open read snapshot are dropped along with their secondary index
// entries, and surviving records are compacted into a fresh heap file
// with their primary table offsets repointed. Runs under rw so it is
// serialized against every other writer on the Database, so compaction
// never races a concurrent insert or update on the same table.
func Vacuum[T any](rw *RW, col *Collection[T]) (err error) {
	hooks := store.VacuumHooks{
		OnDeadTombstone: func(doc []byte) error {
			var v T
			if err := rw.db.codec.UpgradeDecode(doc, rw.db.converters, col.schema.ModelVersion, &v); err != nil {
				return err
			}
			pk, entries := col.schema.flatten(v)
			for _, e := range entries {
				if !e.present {
					continue
				}
				tableName, ok := col.secondaryTableName(e.def.Name)
				if !ok {
					continue
				}
				st, ok := rw.db.engine.Table(tableName)
				if !ok {
					continue
				}
				switch st.Kind {
				case store.UniqueSecondary:
					if owner, exists := st.Unique().Get(e.bytes); exists && owner.Compare(pk) == 0 {
						st.Unique().Remove(e.bytes)
					}
				case store.MultiSecondary:
					st.Multi().RemoveMember(e.bytes, pk)
				}
			}
			return nil
		},
		OnKept: func(doc []byte, newOffset int64) error {
			var v T
			if err := rw.db.codec.UpgradeDecode(doc, rw.db.converters, col.schema.ModelVersion, &v); err != nil {
				return err
			}
			pk, _ := col.schema.flatten(v)
			pt, ok := rw.db.engine.Table(col.TableName())
			if !ok {
				return nil
			}
			return pt.Primary().Replace(pk, newOffset)
		},
	}

	if err := rw.db.engine.VacuumPrimary(col.TableName(), hooks); err != nil {
		return err
	}
	rw.db.metrics.VacuumRuns.Inc()
	return nil
}
