package btree

import "github.com/ndbkit/ndb/key"

// Cursor is a thread-safe forward iterator over a Tree's leaves, using
// lock coupling (hold the current leaf's RLock, acquire the next
// leaf's before releasing it) so a long-lived scan never observes a
// structural change mid-stride.
type Cursor[V any] struct {
	tree         *Tree[V]
	currentNode  *Node[V]
	currentIndex int
}

// NewCursor creates a cursor over tree, initially invalid until Seek is
// called.
func NewCursor[V any](tree *Tree[V]) *Cursor[V] {
	return &Cursor[V]{tree: tree}
}

// Close releases the current leaf's lock, if any.
func (c *Cursor[V]) Close() {
	if c.currentNode != nil {
		c.currentNode.RUnlock()
		c.currentNode = nil
	}
}

// Key returns the key at the cursor's current position.
func (c *Cursor[V]) Key() key.Key { return c.currentNode.Keys[c.currentIndex] }

// Value returns the value at the cursor's current position.
func (c *Cursor[V]) Value() V { return c.currentNode.Values[c.currentIndex] }

// Valid reports whether the cursor is positioned on an entry.
func (c *Cursor[V]) Valid() bool { return c.currentNode != nil && c.currentIndex < c.currentNode.N }

// Seek positions the cursor at k, or the first key greater than k if k
// is absent (nil seeks to the very first entry). FindLeafLowerBound
// returns its leaf already RLocked; the cursor keeps holding it.
func (c *Cursor[V]) Seek(k key.Key) {
	c.Close()

	leaf, idx := c.tree.FindLeafLowerBound(k)
	if leaf == nil {
		c.currentNode = nil
		return
	}

	if idx >= leaf.N {
		next := leaf.Next
		if next != nil {
			next.RLock()
		}
		leaf.RUnlock()
		leaf = next
		idx = 0

		for leaf != nil && leaf.N == 0 {
			n := leaf.Next
			if n != nil {
				n.RLock()
			}
			leaf.RUnlock()
			leaf = n
			idx = 0
		}
	}

	c.currentNode = leaf
	c.currentIndex = idx
}

// Next advances the cursor, returning false once exhausted.
func (c *Cursor[V]) Next() bool {
	if c.currentNode == nil {
		return false
	}

	if c.currentIndex+1 < c.currentNode.N {
		c.currentIndex++
		return true
	}

	next := c.currentNode.Next
	if next != nil {
		next.RLock()
	}
	c.currentNode.RUnlock()
	c.currentNode = next
	c.currentIndex = 0

	for c.currentNode != nil && c.currentNode.N == 0 {
		n := c.currentNode.Next
		if n != nil {
			n.RLock()
		}
		c.currentNode.RUnlock()
		c.currentNode = n
		c.currentIndex = 0
	}

	return c.currentNode != nil
}
