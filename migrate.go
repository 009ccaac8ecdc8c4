package ndb

import (
	"fmt"

	"github.com/ndbkit/ndb/internal/btree"
	"github.com/ndbkit/ndb/internal/wal"
	"github.com/ndbkit/ndb/model"
	"github.com/ndbkit/ndb/ndberr"
	"github.com/ndbkit/ndb/watch"
)

// Migrate carries every row still held by the unique legacy model
// version sharing newCol's model_id into newCol, converting each body
// through the registered converter chain, then empties the legacy
// model's tables. If more than one legacy version holds data — a state
// the registry should never allow a caller to reach through ordinary
// use — it panics, since that would mean the registry's own invariant
// was violated.
func Migrate[NewT any](rw *RW, newCol *Collection[NewT]) error {
	if b, ok := rw.db.models.Get(newCol.TableName()); ok && b.Legacy {
		return &ndberr.MigrateLegacyModel{ModelName: newCol.model.Name}
	}

	var source *model.ModelBuilder
	nonEmpty := 0
	for _, sib := range rw.db.models.Siblings(newCol.model.PrimaryKey.ModelID) {
		if !sib.Legacy {
			continue
		}
		pt, ok := rw.db.engine.Table(sib.Model.PrimaryKey.UniqueTableName())
		if !ok || pt.Primary().Len() == 0 {
			continue
		}
		nonEmpty++
		source = sib
	}
	if nonEmpty > 1 {
		panic(fmt.Sprintf("ndb: migrate: more than one legacy version of model_id %d holds data", newCol.model.PrimaryKey.ModelID))
	}
	if source == nil {
		return nil
	}

	tableName := source.Model.PrimaryKey.UniqueTableName()
	pt, ok := rw.db.engine.Table(tableName)
	if !ok {
		return &ndberr.TableDefinitionNotFound{TableName: tableName}
	}
	hm := rw.db.engine.Heap(pt.Name)
	if hm == nil {
		return &ndberr.Engine{Cause: fmt.Errorf("ndb: no heap backing legacy table %q", tableName)}
	}

	var bodies [][]byte
	cur := btree.NewCursor(pt.Primary())
	cur.Seek(nil)
	for cur.Valid() {
		body, _, err := hm.Read(cur.Value())
		if err != nil {
			cur.Close()
			return &ndberr.Engine{Cause: err}
		}
		bodies = append(bodies, body)
		cur.Next()
	}
	cur.Close()

	for _, body := range bodies {
		var v NewT
		if err := rw.db.codec.UpgradeDecode(body, rw.db.converters, newCol.schema.ModelVersion, &v); err != nil {
			return err
		}
		if err := Insert(rw, newCol, v); err != nil {
			return err
		}
	}

	if err := rw.db.engine.ResetTable(tableName); err != nil {
		return &ndberr.Engine{Cause: err}
	}
	for _, name := range source.Model.SecondaryKeyNames() {
		def := source.Model.SecondaryKeys[name]
		if err := rw.db.engine.ResetTable(def.UniqueTableName()); err != nil {
			return &ndberr.Engine{Cause: err}
		}
	}

	return nil
}

// Refresh re-derives and rewrites every secondary-key entry of every row
// in col from its currently-stored body, used after a schema change
// adds a secondary key to a model whose existing rows predate it.
// Returns the number of rows refreshed.
func Refresh[T any](rw *RW, col *Collection[T]) (int, error) {
	pt, ok := rw.db.engine.Table(col.TableName())
	if !ok {
		return 0, &ndberr.TableDefinitionNotFound{TableName: col.TableName()}
	}

	var rows []T
	cur := btree.NewCursor(pt.Primary())
	cur.Seek(nil)
	for cur.Valid() {
		v, err := decodeCurrent[T](rw.db, pt.Name, cur.Value(), col.schema.ModelVersion)
		if err != nil {
			cur.Close()
			return 0, err
		}
		rows = append(rows, v)
		cur.Next()
	}
	cur.Close()

	for _, v := range rows {
		pk, entries := col.schema.flatten(v)
		if err := checkUniqueSecondaries(rw, entries, pk); err != nil {
			return 0, err
		}
		body, err := rw.db.codec.Encode(col.schema.ModelID, col.schema.ModelVersion, v)
		if err != nil {
			return 0, &ndberr.Engine{Cause: err}
		}
		rec := walRecord{
			PrimaryTable: col.TableName(),
			PrimaryKey:   []byte(pk),
			Body:         body,
			Added:        presentSecondaries(entries),
		}
		lsn, err := rw.db.commitRecord(wal.EntryUpdate, rec)
		if err != nil {
			return 0, err
		}
		rw.record(watch.Event{Table: col.TableName(), Op: watch.OpUpdate, PrimaryKey: []byte(pk), SecondaryKeys: secondaryKeyBytes(entries), LSN: lsn})
	}
	return len(rows), nil
}
