package ecs

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

// Status is the lifecycle tag of a member visible in a Store.
type Status uint8

const (
	StatusAdded   Status = iota // became visible at the last commit
	StatusActive                // visible for at least one full commit
	StatusRemoved               // still visible, evicted at the next commit
)

var statusNames = [...]string{"added", "active", "removed"}

func (s Status) String() string {
	if !s.valid() {
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
	return statusNames[s]
}

func (s Status) valid() bool { return s <= StatusRemoved }

func (s Status) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("marshal status %d: out of range", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unmarshal status %q: unknown", text)
}

// ErrInvalidSnapshot is returned by Store.Deserialize for structurally
// inconsistent snapshots.
var ErrInvalidSnapshot = errors.New("invalid store snapshot")

// Store is a membership container with a two-phase commit. Additions and
// removals are staged and only become visible, tagged, at the next Commit.
// Authoritative members iterate in insertion order.
//
// A Store is not safe for concurrent use.
type Store[T comparable] struct {
	keys          []T
	tags          map[T]Status
	pendingAdd    orderedSet[T]
	pendingRemove orderedSet[T]
	changed       bool
}

func NewStore[T comparable]() *Store[T] {
	return &Store[T]{
		tags:          make(map[T]Status, 64),
		pendingAdd:    newOrderedSet[T](),
		pendingRemove: newOrderedSet[T](),
	}
}

// Add stages member for addition. Adding a member that is pending removal
// cancels the removal instead. Returns false for duplicates.
func (s *Store[T]) Add(member T) bool { return s.add(member, false) }

// AddImmediate inserts member as active without waiting for a commit.
func (s *Store[T]) AddImmediate(member T) bool { return s.add(member, true) }

// Remove stages member for removal. Removing a member that is pending
// addition cancels the addition instead. Returns false when member is not
// visible or already pending removal.
func (s *Store[T]) Remove(member T) bool { return s.remove(member, false) }

// RemoveImmediate drops member without waiting for a commit.
func (s *Store[T]) RemoveImmediate(member T) bool { return s.remove(member, true) }

func (s *Store[T]) add(member T, immediate bool) bool {
	if s.pendingRemove.remove(member) {
		return true
	}
	if !s.canAdd(member) {
		return false
	}
	if immediate {
		s.insert(member, StatusActive)
		return true
	}
	s.pendingAdd.add(member)
	return true
}

func (s *Store[T]) remove(member T, immediate bool) bool {
	if s.pendingAdd.remove(member) {
		return true
	}
	if !s.canRemove(member) {
		return false
	}
	if immediate {
		s.drop(member)
		return true
	}
	s.pendingRemove.add(member)
	return true
}

// canAdd reports whether add would succeed.
func (s *Store[T]) canAdd(member T) bool {
	if s.pendingRemove.has(member) {
		return true
	}
	_, visible := s.tags[member]
	return !visible && !s.pendingAdd.has(member)
}

// canRemove reports whether remove would succeed.
func (s *Store[T]) canRemove(member T) bool {
	if s.pendingAdd.has(member) {
		return true
	}
	_, visible := s.tags[member]
	return visible && !s.pendingRemove.has(member)
}

// Contains reports whether member is visible, whatever its tag.
func (s *Store[T]) Contains(member T) bool {
	_, ok := s.tags[member]
	return ok
}

// IsStaged reports whether member has a pending addition or removal.
func (s *Store[T]) IsStaged(member T) bool {
	return s.pendingAdd.has(member) || s.pendingRemove.has(member)
}

func (s *Store[T]) IsStagedAdd(member T) bool    { return s.pendingAdd.has(member) }
func (s *Store[T]) IsStagedRemove(member T) bool { return s.pendingRemove.has(member) }

// Status returns the tag of a visible member.
func (s *Store[T]) Status(member T) (Status, bool) {
	st, ok := s.tags[member]
	return st, ok
}

// Len counts visible members.
func (s *Store[T]) Len() int { return len(s.keys) }

// LenWithPending counts visible members plus pending additions. This is the
// figure capacity limits are checked against.
func (s *Store[T]) LenWithPending() int { return len(s.keys) + s.pendingAdd.len() }

// Changed reports whether the last Commit changed any tag.
func (s *Store[T]) Changed() bool { return s.changed }

// Keys returns a copy of the visible members in iteration order.
func (s *Store[T]) Keys() []T { return slices.Clone(s.keys) }

// All yields visible members with their tags. Staging during iteration does
// not affect the sequence; immediate mutations are observed only for members
// not yet reached.
func (s *Store[T]) All() iter.Seq2[T, Status] {
	return func(yield func(T, Status) bool) {
		keys := s.keys
		for _, k := range keys {
			st, ok := s.tags[k]
			if !ok {
				continue
			}
			if !yield(k, st) {
				return
			}
		}
	}
}

// Commit makes staged changes visible. Members tagged added become active
// and members tagged removed are evicted first, then staged additions are
// folded in as added and staged removals as removed.
func (s *Store[T]) Commit() { s.commit(false) }

// CommitImmediate folds staged changes first and then ages every member, so
// this commit's additions come out active and its removals are gone.
func (s *Store[T]) CommitImmediate() { s.commit(true) }

func (s *Store[T]) commit(immediate bool) {
	var changed bool
	if immediate {
		changed = s.fold()
		changed = s.age() || changed
	} else {
		changed = s.age()
		changed = s.fold() || changed
	}
	s.changed = changed
}

func (s *Store[T]) age() bool {
	changed := false
	evicted := false
	for _, k := range s.keys {
		switch s.tags[k] {
		case StatusAdded:
			s.tags[k] = StatusActive
			changed = true
		case StatusRemoved:
			delete(s.tags, k)
			evicted = true
			changed = true
		}
	}
	if evicted {
		kept := make([]T, 0, len(s.tags))
		for _, k := range s.keys {
			if _, ok := s.tags[k]; ok {
				kept = append(kept, k)
			}
		}
		s.keys = kept
	}
	return changed
}

func (s *Store[T]) fold() bool {
	changed := false
	for _, m := range s.pendingAdd.items {
		s.insert(m, StatusAdded)
		changed = true
	}
	for _, m := range s.pendingRemove.items {
		if _, ok := s.tags[m]; !ok {
			continue
		}
		s.tags[m] = StatusRemoved
		changed = true
	}
	s.pendingAdd.clear()
	s.pendingRemove.clear()
	return changed
}

func (s *Store[T]) insert(member T, st Status) {
	if _, ok := s.tags[member]; !ok {
		s.keys = append(s.keys, member)
	}
	s.tags[member] = st
}

// drop rebuilds the key slice so iterators holding the old one are unaffected.
func (s *Store[T]) drop(member T) {
	delete(s.tags, member)
	kept := make([]T, 0, len(s.keys))
	for _, k := range s.keys {
		if k != member {
			kept = append(kept, k)
		}
	}
	s.keys = kept
}

// Destroy clears visible and staged state.
func (s *Store[T]) Destroy() {
	s.keys = nil
	clear(s.tags)
	s.pendingAdd.clear()
	s.pendingRemove.clear()
	s.changed = false
}

// Snapshot is the plain-data form of a Store.
type Snapshot[T comparable] struct {
	Entries       []SnapshotEntry[T] `yaml:"entries" json:"entries"`
	PendingAdd    []T                `yaml:"pending_add" json:"pending_add"`
	PendingRemove []T                `yaml:"pending_remove" json:"pending_remove"`
	Changed       bool               `yaml:"changed" json:"changed"`
}

type SnapshotEntry[T comparable] struct {
	Member T      `yaml:"member" json:"member"`
	Status Status `yaml:"status" json:"status"`
}

// Serialize captures the full store state.
func (s *Store[T]) Serialize() Snapshot[T] {
	snap := Snapshot[T]{
		Entries:       make([]SnapshotEntry[T], 0, len(s.keys)),
		PendingAdd:    slices.Clone(s.pendingAdd.items),
		PendingRemove: slices.Clone(s.pendingRemove.items),
		Changed:       s.changed,
	}
	for _, k := range s.keys {
		snap.Entries = append(snap.Entries, SnapshotEntry[T]{Member: k, Status: s.tags[k]})
	}
	return snap
}

// Deserialize replaces the store state with snap. The snapshot is validated
// first; on error nothing is modified.
func (s *Store[T]) Deserialize(snap Snapshot[T]) error {
	tags := make(map[T]Status, len(snap.Entries))
	keys := make([]T, 0, len(snap.Entries))
	for i, e := range snap.Entries {
		if !e.Status.valid() {
			return fmt.Errorf("%w: entry %d has status %d", ErrInvalidSnapshot, i, uint8(e.Status))
		}
		if _, dup := tags[e.Member]; dup {
			return fmt.Errorf("%w: entry %d is a duplicate member", ErrInvalidSnapshot, i)
		}
		tags[e.Member] = e.Status
		keys = append(keys, e.Member)
	}
	pendingAdd := newOrderedSet[T]()
	for i, m := range snap.PendingAdd {
		if _, visible := tags[m]; visible {
			return fmt.Errorf("%w: pending add %d is already visible", ErrInvalidSnapshot, i)
		}
		if !pendingAdd.add(m) {
			return fmt.Errorf("%w: pending add %d is a duplicate", ErrInvalidSnapshot, i)
		}
	}
	pendingRemove := newOrderedSet[T]()
	for i, m := range snap.PendingRemove {
		if _, visible := tags[m]; !visible {
			return fmt.Errorf("%w: pending remove %d is not visible", ErrInvalidSnapshot, i)
		}
		if !pendingRemove.add(m) {
			return fmt.Errorf("%w: pending remove %d is a duplicate", ErrInvalidSnapshot, i)
		}
	}

	s.keys = keys
	s.tags = tags
	s.pendingAdd = pendingAdd
	s.pendingRemove = pendingRemove
	s.changed = snap.Changed
	return nil
}

// orderedSet keeps insertion order so folding staged members is deterministic.
type orderedSet[T comparable] struct {
	items []T
	index map[T]struct{}
}

func newOrderedSet[T comparable]() orderedSet[T] {
	return orderedSet[T]{index: make(map[T]struct{})}
}

func (o *orderedSet[T]) has(v T) bool {
	_, ok := o.index[v]
	return ok
}

func (o *orderedSet[T]) add(v T) bool {
	if o.has(v) {
		return false
	}
	o.index[v] = struct{}{}
	o.items = append(o.items, v)
	return true
}

func (o *orderedSet[T]) remove(v T) bool {
	if !o.has(v) {
		return false
	}
	delete(o.index, v)
	if i := slices.Index(o.items, v); i >= 0 {
		o.items = slices.Delete(o.items, i, i+1)
	}
	return true
}

func (o *orderedSet[T]) len() int { return len(o.items) }

func (o *orderedSet[T]) clear() {
	o.items = o.items[:0]
	clear(o.index)
}
