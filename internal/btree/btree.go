package btree

import (
	"errors"
	"sort"
	"sync"

	"github.com/ndbkit/ndb/key"
)

// ErrDuplicateKey is returned by Insert when the tree disallows
// duplicates and the key already exists. Callers that need the
// spec-level DuplicateKey{KeyName} error wrap this with the index/table
// name at the internal/store layer.
var ErrDuplicateKey = errors.New("btree: duplicate key")

// Tree is a concurrent B+Tree mapping key.Key to a generic value V, using
// latch crabbing (hand-over-hand RLock/Lock) for thread-safe structural
// and point operations.
type Tree[V any] struct {
	T         int
	Root      *Node[V]
	UniqueKey bool
	mu        sync.RWMutex
}

// New creates a tree that allows duplicate keys to be overwritten freely
// (used for secondary tables, where the caller enforces uniqueness when
// required).
func New[V any](t int) *Tree[V] {
	return &Tree[V]{T: t, Root: NewNode[V](t, true)}
}

// NewUnique creates a tree whose Insert rejects an already-present key
// (used for primary tables and unique secondary tables).
func NewUnique[V any](t int) *Tree[V] {
	return &Tree[V]{T: t, Root: NewNode[V](t, true), UniqueKey: true}
}

// Insert adds k->v, failing with ErrDuplicateKey if the tree is unique
// and k is already present.
func (b *Tree[V]) Insert(k key.Key, v V) error {
	return b.Upsert(k, func(_ V, exists bool) (V, error) {
		if exists && b.UniqueKey {
			return v, ErrDuplicateKey
		}
		return v, nil
	})
}

// Replace forcibly sets k->v regardless of uniqueness (used by recovery
// replay and by multi-index writes that have already checked
// constraints).
func (b *Tree[V]) Replace(k key.Key, v V) error {
	return b.Upsert(k, func(_ V, _ bool) (V, error) { return v, nil })
}

// Upsert executes fn against the current value for k (if any) while
// holding the leaf's lock, enabling an atomic read-modify-write.
func (b *Tree[V]) Upsert(k key.Key, fn func(old V, exists bool) (V, error)) error {
	b.mu.Lock()
	root := b.Root
	root.Lock()

	if root.IsFull() {
		newRoot := NewNode[V](b.T, false)
		newRoot.Children = append(newRoot.Children, root)
		newRoot.SplitChild(0)
		b.Root = newRoot
		b.mu.Unlock()

		newRoot.Lock()
		root.Unlock()

		return b.upsertTopDown(newRoot, k, fn)
	}

	b.mu.Unlock()
	return b.upsertTopDown(root, k, fn)
}

func (b *Tree[V]) upsertTopDown(curr *Node[V], k key.Key, fn func(old V, exists bool) (V, error)) error {
	defer func() {
		if curr != nil {
			curr.Unlock()
		}
	}()

	for !curr.Leaf {
		i := 0
		for i < curr.N && k.Compare(curr.Keys[i]) >= 0 {
			i++
		}

		child := curr.Children[i]
		child.Lock()

		if child.IsFull() {
			curr.SplitChild(i)
			if k.Compare(curr.Keys[i]) >= 0 {
				child.Unlock()
				child = curr.Children[i+1]
				child.Lock()
			}
		}

		curr.Unlock()
		curr = child
	}

	return curr.UpsertNonFull(k, fn)
}

// Get returns the value stored for k, thread-safe via RLock coupling.
func (b *Tree[V]) Get(k key.Key) (V, bool) {
	var zero V
	if b == nil {
		return zero, false
	}
	b.mu.RLock()
	curr := b.Root
	if curr == nil {
		b.mu.RUnlock()
		return zero, false
	}
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && k.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()
		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()
	for j := 0; j < curr.N; j++ {
		if k.Compare(curr.Keys[j]) == 0 {
			return curr.Values[j], true
		}
	}
	return zero, false
}

// Remove deletes k from the tree, returning whether it was present.
func (b *Tree[V]) Remove(k key.Key) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := b.Root.Remove(k)
	if !b.Root.Leaf && b.Root.N == 0 && len(b.Root.Children) == 1 {
		b.Root = b.Root.Children[0]
	}
	return removed
}

// Len returns the number of entries in the tree (a full leaf-level scan;
// acceptable since it is used for diagnostics/Len(), not hot paths).
func (b *Tree[V]) Len() int {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()
	for !curr.Leaf {
		child := curr.Children[0]
		child.RLock()
		curr.RUnlock()
		curr = child
	}
	count := 0
	for curr != nil {
		count += curr.N
		next := curr.Next
		if next != nil {
			next.RLock()
		}
		curr.RUnlock()
		curr = next
	}
	return count
}

// FindLeafLowerBound returns the leaf node and index of the first key >=
// k (or the first key overall if k is nil), with the leaf's RLock held.
// The caller MUST call RUnlock on the returned node (via Cursor.Close).
func (b *Tree[V]) FindLeafLowerBound(k key.Key) (*Node[V], int) {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		var i int
		if k == nil {
			i = 0
		} else {
			i = sort.Search(curr.N, func(i int) bool { return curr.Keys[i].Compare(k) >= 0 })
		}
		child := curr.Children[i]
		child.RLock()
		curr.RUnlock()
		curr = child
	}

	var idx int
	if k == nil {
		idx = 0
	} else {
		idx = sort.Search(curr.N, func(i int) bool { return curr.Keys[i].Compare(k) >= 0 })
	}
	return curr, idx
}
