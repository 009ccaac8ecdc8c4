// Package btree implements a concurrent B+Tree keyed by key.Key, generic
// over its leaf value type: the same latch-crabbing insert/search/split
// algorithm, parameterized over V so one implementation serves the
// primary table (V = int64 heap offset), unique secondary tables
// (V = key.Key, the primary key bytes) and multi-valued secondary tables
// (V = *KeySet, see multimap.go).
package btree

import (
	"sort"
	"sync"

	"github.com/ndbkit/ndb/key"
)

// Node is one node of the tree: Leaf nodes hold Keys/Values in parallel
// slices and a Next pointer threading leaves for ordered scans; internal
// nodes hold Keys as separators and Children as subtrees.
type Node[V any] struct {
	T        int // minimum degree
	Keys     []key.Key
	Values   []V
	Children []*Node[V]
	Leaf     bool
	N        int
	Next     *Node[V]
	mu       sync.RWMutex
}

func NewNode[V any](t int, leaf bool) *Node[V] {
	return &Node[V]{
		T:        t,
		Leaf:     leaf,
		Keys:     make([]key.Key, 0, 2*t-1),
		Values:   make([]V, 0, 2*t-1),
		Children: make([]*Node[V], 0, 2*t),
	}
}

func (n *Node[V]) Lock()    { if n != nil { n.mu.Lock() } }
func (n *Node[V]) Unlock()  { if n != nil { n.mu.Unlock() } }
func (n *Node[V]) RLock()   { if n != nil { n.mu.RLock() } }
func (n *Node[V]) RUnlock() { if n != nil { n.mu.RUnlock() } }

func (n *Node[V]) IsFull() bool { return n.N == 2*n.T-1 }

// UpsertNonFull inserts or updates key k via fn, assuming the node (and
// every node on the path to it) is guaranteed not to require a split —
// the tree ensures this with preemptive splitting on the way down.
func (n *Node[V]) UpsertNonFull(k key.Key, fn func(old V, exists bool) (V, error)) error {
	if n.Leaf {
		idx := sort.Search(n.N, func(i int) bool { return n.Keys[i].Compare(k) >= 0 })

		if idx < n.N && n.Keys[idx].Compare(k) == 0 {
			newVal, err := fn(n.Values[idx], true)
			if err != nil {
				return err
			}
			n.Values[idx] = newVal
			return nil
		}

		var zero V
		newVal, err := fn(zero, false)
		if err != nil {
			return err
		}

		n.Keys = append(n.Keys, nil)
		n.Values = append(n.Values, zero)
		copy(n.Keys[idx+1:], n.Keys[idx:])
		copy(n.Values[idx+1:], n.Values[idx:])
		n.Keys[idx] = k
		n.Values[idx] = newVal
		n.N++
		return nil
	}

	// Only reached if the caller passed a non-preemptively-split internal
	// node; upsertTopDown in btree.go always descends to a leaf before
	// calling UpsertNonFull, so this path exists for symmetry with the
	// leaf case and is not exercised in normal operation.
	i := n.N - 1
	for i >= 0 && k.Compare(n.Keys[i]) < 0 {
		i--
	}
	i++
	if n.Children[i].N == 2*n.T-1 {
		n.SplitChild(i)
		if k.Compare(n.Keys[i]) >= 0 {
			i++
		}
	}
	return n.Children[i].UpsertNonFull(k, fn)
}

// SplitChild splits the full child at index i, promoting a separator
// into n.
func (n *Node[V]) SplitChild(i int) {
	t := n.T
	y := n.Children[i]
	z := NewNode[V](t, y.Leaf)

	if y.Leaf {
		mid := t - 1
		z.N = y.N - mid
		z.Keys = append(z.Keys, y.Keys[mid:]...)
		z.Values = append(z.Values, y.Values[mid:]...)

		y.Keys = y.Keys[:mid]
		y.Values = y.Values[:mid]
		y.N = mid

		z.Next = y.Next
		y.Next = z
	} else {
		mid := t - 1
		z.N = t - 1
		z.Keys = append(z.Keys, y.Keys[mid+1:]...)
		z.Children = append(z.Children, y.Children[mid+1:]...)

		upKey := y.Keys[mid]

		y.Keys = y.Keys[:mid]
		y.Children = y.Children[:mid+1]
		y.N = mid

		n.Keys = append(n.Keys, nil)
		copy(n.Keys[i+1:], n.Keys[i:])
		n.Keys[i] = upKey

		n.Children = append(n.Children, nil)
		copy(n.Children[i+2:], n.Children[i+1:])
		n.Children[i+1] = z
		n.N++
		return
	}

	n.Keys = append(n.Keys, nil)
	copy(n.Keys[i+1:], n.Keys[i:])
	n.Keys[i] = z.Keys[0]

	n.Children = append(n.Children, nil)
	copy(n.Children[i+2:], n.Children[i+1:])
	n.Children[i+1] = z
	n.N++
}

func (n *Node[V]) findLeafLowerBound(k key.Key) (*Node[V], int) {
	var i int
	if k == nil {
		i = 0
	} else {
		i = sort.Search(n.N, func(i int) bool { return n.Keys[i].Compare(k) >= 0 })
	}
	if n.Leaf {
		return n, i
	}
	return n.Children[i].findLeafLowerBound(k)
}

func (n *Node[V]) remove(k key.Key) bool {
	idx := sort.Search(n.N, func(i int) bool { return n.Keys[i].Compare(k) >= 0 })

	if n.Leaf {
		if idx < n.N && n.Keys[idx].Compare(k) == 0 {
			n.Keys = append(n.Keys[:idx], n.Keys[idx+1:]...)
			n.Values = append(n.Values[:idx], n.Values[idx+1:]...)
			n.N--
			return true
		}
		return false
	}

	childIdx := idx
	if idx < n.N && n.Keys[idx].Compare(k) == 0 {
		childIdx = idx + 1
	}

	child := n.Children[childIdx]
	if child.N < n.T {
		n.fill(childIdx)
	}

	return n.removeRecursive(k)
}

func (n *Node[V]) removeRecursive(k key.Key) bool {
	idx := sort.Search(n.N, func(i int) bool { return n.Keys[i].Compare(k) >= 0 })

	childIdx := idx
	if idx < n.N && n.Keys[idx].Compare(k) == 0 {
		childIdx = idx + 1
	}
	if childIdx > n.N {
		childIdx = n.N
	}

	ok := n.Children[childIdx].remove(k)
	if ok {
		n.fixSeparators()
	}
	return ok
}

func (n *Node[V]) fixSeparators() {
	if n.Leaf {
		return
	}
	for i := 0; i < n.N; i++ {
		curr := n.Children[i+1]
		for !curr.Leaf {
			curr = curr.Children[0]
		}
		if curr.N > 0 {
			n.Keys[i] = curr.Keys[0]
		}
	}
}

func (n *Node[V]) fill(i int) {
	if i != 0 && n.Children[i-1].N >= n.T {
		n.borrowFromPrev(i)
	} else if i != n.N && n.Children[i+1].N >= n.T {
		n.borrowFromNext(i)
	} else if i != n.N {
		n.merge(i)
	} else {
		n.merge(i - 1)
	}
}

func (n *Node[V]) borrowFromPrev(i int) {
	child := n.Children[i]
	sibling := n.Children[i-1]

	if child.Leaf {
		var zero V
		child.Keys = append([]key.Key{nil}, child.Keys...)
		child.Values = append([]V{zero}, child.Values...)
		child.Keys[0] = sibling.Keys[sibling.N-1]
		child.Values[0] = sibling.Values[sibling.N-1]
		child.N++

		sibling.Keys = sibling.Keys[:sibling.N-1]
		sibling.Values = sibling.Values[:sibling.N-1]
		sibling.N--

		n.Keys[i-1] = child.Keys[0]
	} else {
		child.Keys = append([]key.Key{nil}, child.Keys...)
		child.Children = append([]*Node[V]{nil}, child.Children...)
		child.Keys[0] = n.Keys[i-1]
		child.Children[0] = sibling.Children[sibling.N]
		child.N++

		n.Keys[i-1] = sibling.Keys[sibling.N-1]
		sibling.Keys = sibling.Keys[:sibling.N-1]
		sibling.Children = sibling.Children[:sibling.N]
		sibling.N--
	}
}

func (n *Node[V]) borrowFromNext(i int) {
	child := n.Children[i]
	sibling := n.Children[i+1]

	if child.Leaf {
		child.Keys = append(child.Keys, sibling.Keys[0])
		child.Values = append(child.Values, sibling.Values[0])
		child.N++

		sibling.Keys = append([]key.Key{}, sibling.Keys[1:]...)
		sibling.Values = append([]V{}, sibling.Values[1:]...)
		sibling.N--

		n.Keys[i] = sibling.Keys[0]
	} else {
		child.Keys = append(child.Keys, n.Keys[i])
		child.Children = append(child.Children, sibling.Children[0])
		child.N++

		n.Keys[i] = sibling.Keys[0]
		sibling.Keys = append([]key.Key{}, sibling.Keys[1:]...)
		sibling.Children = append([]*Node[V]{}, sibling.Children[1:]...)
		sibling.N--
	}
}

func (n *Node[V]) merge(i int) {
	child := n.Children[i]
	sibling := n.Children[i+1]

	if child.Leaf {
		child.Keys = append(child.Keys, sibling.Keys...)
		child.Values = append(child.Values, sibling.Values...)
		child.Next = sibling.Next
		child.N = len(child.Keys)
	} else {
		child.Keys = append(child.Keys, n.Keys[i])
		child.Keys = append(child.Keys, sibling.Keys...)
		child.Children = append(child.Children, sibling.Children...)
		child.N = len(child.Keys)
	}

	n.Keys = append(n.Keys[:i], n.Keys[i+1:]...)
	n.Children = append(n.Children[:i+1], n.Children[i+2:]...)
	n.N--
}

// Remove deletes k from the subtree rooted at n. Exported for the tree's
// Remove and for tests.
func (n *Node[V]) Remove(k key.Key) bool { return n.remove(k) }
