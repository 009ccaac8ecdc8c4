package checkpoint

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ndbkit/ndb/internal/btree"
	"github.com/ndbkit/ndb/key"
)

// treeSnapshot is the on-disk shape of a checkpoint: every leaf entry in
// ascending key order plus the LSN the snapshot was taken at. Rather than
// a node-by-node tree dump, this flattens the tree to a sorted entry
// list — it rebuilds via ordinary inserts on load, so it carries no
// assumptions about node degree or pointer layout and survives a change
// to either between versions.
type treeSnapshot[V any] struct {
	LSN     uint64
	Keys    [][]byte
	Values  []V
}

// SerializeTree walks tree's leaves left to right and gob-encodes the
// resulting sorted entry list tagged with lsn.
func SerializeTree[V any](tree *btree.Tree[V], lsn uint64) ([]byte, error) {
	snap := treeSnapshot[V]{LSN: lsn}

	leaf, idx := tree.FindLeafLowerBound(nil)
	for leaf != nil {
		for i := idx; i < leaf.N; i++ {
			snap.Keys = append(snap.Keys, []byte(leaf.Keys[i]))
			snap.Values = append(snap.Values, leaf.Values[i])
		}
		next := leaf.Next
		leaf.RUnlock()
		leaf = next
		idx = 0
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, fmt.Errorf("checkpoint: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeTree rebuilds a tree (minimum degree t) from a snapshot
// produced by SerializeTree, returning the tree and the LSN it was taken
// at.
func DeserializeTree[V any](data []byte, t int) (*btree.Tree[V], uint64, error) {
	var snap treeSnapshot[V]
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, 0, fmt.Errorf("checkpoint: decode: %w", err)
	}

	tree := btree.New[V](t)
	for i, k := range snap.Keys {
		if err := tree.Replace(key.Key(k), snap.Values[i]); err != nil {
			return nil, 0, fmt.Errorf("checkpoint: replay entry %d: %w", i, err)
		}
	}
	return tree, snap.LSN, nil
}
