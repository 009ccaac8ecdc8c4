package btree

import (
	"sort"

	"github.com/ndbkit/ndb/key"
)

// KeySet is the leaf value stored by a non-unique secondary table: the
// sorted set of primary keys currently associated with one secondary key
// value. It is a first-class value the generic Tree[V] can carry
// directly, so a non-unique index entry does not need one B+Tree leaf
// slot per (secondary, primary) pair.
type KeySet struct {
	keys []key.Key
}

// NewKeySet builds a KeySet holding a single primary key.
func NewKeySet(k key.Key) *KeySet {
	return &KeySet{keys: []key.Key{k.Clone()}}
}

// Add inserts pk into the set, preserving sort order, and reports whether
// it was newly added (false if already present).
func (s *KeySet) Add(pk key.Key) bool {
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i].Compare(pk) >= 0 })
	if i < len(s.keys) && s.keys[i].Compare(pk) == 0 {
		return false
	}
	s.keys = append(s.keys, nil)
	copy(s.keys[i+1:], s.keys[i:])
	s.keys[i] = pk.Clone()
	return true
}

// Remove deletes pk from the set, reporting whether it was present.
func (s *KeySet) Remove(pk key.Key) bool {
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i].Compare(pk) >= 0 })
	if i >= len(s.keys) || s.keys[i].Compare(pk) != 0 {
		return false
	}
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
	return true
}

// Empty reports whether the set has no members left, meaning its leaf
// entry should be removed entirely from the multimap table.
func (s *KeySet) Empty() bool { return len(s.keys) == 0 }

// Keys returns the set's members in ascending order. The returned slice
// must not be mutated by the caller.
func (s *KeySet) Keys() []key.Key { return s.keys }

// Multimap is a Tree[*KeySet] with helpers for the add/remove-one-member
// pattern a non-unique secondary index needs on every insert/update/
// remove of the owning record.
type Multimap struct {
	tree *Tree[*KeySet]
}

// NewMultimap creates an empty non-unique secondary index table.
func NewMultimap(t int) *Multimap {
	return &Multimap{tree: New[*KeySet](t)}
}

// MultimapFromTree wraps an already-built Tree[*KeySet] (used to restore
// a multimap from a checkpoint snapshot).
func MultimapFromTree(tree *Tree[*KeySet]) *Multimap {
	return &Multimap{tree: tree}
}

// AddMember associates pk with secondary key sk, creating the KeySet if
// this is the first member.
func (m *Multimap) AddMember(sk, pk key.Key) error {
	return m.tree.Upsert(sk, func(old *KeySet, exists bool) (*KeySet, error) {
		if !exists {
			return NewKeySet(pk), nil
		}
		old.Add(pk)
		return old, nil
	})
}

// RemoveMember disassociates pk from secondary key sk, dropping the
// KeySet leaf entirely once it empties out.
func (m *Multimap) RemoveMember(sk, pk key.Key) {
	set, ok := m.tree.Get(sk)
	if !ok {
		return
	}
	set.Remove(pk)
	if set.Empty() {
		m.tree.Remove(sk)
	}
}

// Members returns the primary keys currently associated with sk.
func (m *Multimap) Members(sk key.Key) []key.Key {
	set, ok := m.tree.Get(sk)
	if !ok {
		return nil
	}
	return set.Keys()
}

// Tree exposes the underlying generic tree for scan-engine range walks.
func (m *Multimap) Tree() *Tree[*KeySet] { return m.tree }

// GobEncode/GobDecode let checkpoint.SerializeTree gob-encode a KeySet
// despite its unexported field.
func (s *KeySet) GobEncode() ([]byte, error) {
	raw := make([][]byte, len(s.keys))
	for i, k := range s.keys {
		raw[i] = []byte(k)
	}
	return gobEncode(raw)
}

func (s *KeySet) GobDecode(data []byte) error {
	var raw [][]byte
	if err := gobDecode(data, &raw); err != nil {
		return err
	}
	s.keys = make([]key.Key, len(raw))
	for i, b := range raw {
		s.keys[i] = key.Key(b)
	}
	return nil
}
