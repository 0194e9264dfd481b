package ecs

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
)

// EntityID is a densely packed entity identity. It carries no data by itself.
type EntityID uint32

// MaxEntityID is the largest id Reserve accepts, so the frontier never wraps.
const MaxEntityID EntityID = math.MaxUint32 - 1

// ErrIDOutOfRange is returned by Reserve for ids above MaxEntityID.
var ErrIDOutOfRange = errors.New("entity id out of range")

// Allocator issues entity ids. Retired ids handed back through Recycle are
// reissued, lowest first, before the frontier moves on.
//
// An Allocator is not safe for concurrent use; share one per simulation.
type Allocator struct {
	next     EntityID
	freeList idHeap
	free     map[EntityID]struct{}
	gaps     []idRange // free ranges skipped by Reserve, sorted, disjoint from free
}

// idRange is the half-open interval [lo, hi).
type idRange struct {
	lo, hi EntityID
}

func NewAllocator() *Allocator {
	return &Allocator{
		freeList: make(idHeap, 0, 256),
		free:     make(map[EntityID]struct{}, 256),
	}
}

// Allocate returns the lowest recycled id if any, otherwise the frontier.
func (a *Allocator) Allocate() EntityID {
	if len(a.gaps) > 0 && (len(a.freeList) == 0 || a.gaps[0].lo < a.freeList[0]) {
		g := &a.gaps[0]
		id := g.lo
		g.lo++
		if g.lo == g.hi {
			a.gaps = a.gaps[1:]
		}
		return id
	}
	if len(a.freeList) > 0 {
		id := heap.Pop(&a.freeList).(EntityID)
		delete(a.free, id)
		if id == a.next {
			a.next++
		}
		return id
	}
	id := a.next
	a.next++
	return id
}

// Recycle marks id as reusable. It does not check that id was ever issued or
// that it is no longer live; recycling the same id twice is a no-op.
func (a *Allocator) Recycle(id EntityID) {
	if _, ok := a.free[id]; ok {
		return
	}
	if _, ok := a.findGap(id); ok {
		return
	}
	a.free[id] = struct{}{}
	heap.Push(&a.freeList, id)
}

// Reserve marks id as issued. Ids skipped between the frontier and id become
// reusable; they are kept as a range, so the cost does not grow with the
// distance. Used when ids come from outside, e.g. a restored snapshot.
func (a *Allocator) Reserve(id EntityID) error {
	if id > MaxEntityID {
		return fmt.Errorf("%w: %d", ErrIDOutOfRange, uint32(id))
	}
	if id >= a.next {
		// recycled ids at or past the frontier are covered by the new gap
		a.dropFree(func(f EntityID) bool { return f >= a.next && f <= id })
		if id > a.next {
			a.gaps = append(a.gaps, idRange{lo: a.next, hi: id})
		}
		a.next = id + 1
		return nil
	}
	if _, ok := a.free[id]; ok {
		a.dropFree(func(f EntityID) bool { return f == id })
		return nil
	}
	if i, ok := a.findGap(id); ok {
		g := a.gaps[i]
		var split []idRange
		if g.lo < id {
			split = append(split, idRange{lo: g.lo, hi: id})
		}
		if id+1 < g.hi {
			split = append(split, idRange{lo: id + 1, hi: g.hi})
		}
		a.gaps = slices.Replace(a.gaps, i, i+1, split...)
	}
	return nil
}

// Frontier is the next id Allocate issues once the recycle pool is empty.
func (a *Allocator) Frontier() EntityID { return a.next }

// Recycled reports how many ids are waiting for reuse.
func (a *Allocator) Recycled() int {
	n := len(a.freeList)
	for _, g := range a.gaps {
		n += int(g.hi - g.lo)
	}
	return n
}

// ResetAll rewinds the frontier to zero and empties the recycle pool.
// Meant for test isolation.
func (a *Allocator) ResetAll() {
	a.next = 0
	a.freeList = a.freeList[:0]
	clear(a.free)
	a.gaps = nil
}

func (a *Allocator) findGap(id EntityID) (int, bool) {
	i := sort.Search(len(a.gaps), func(i int) bool { return a.gaps[i].hi > id })
	return i, i < len(a.gaps) && a.gaps[i].lo <= id
}

func (a *Allocator) dropFree(match func(EntityID) bool) {
	kept := a.freeList[:0]
	for _, f := range a.freeList {
		if match(f) {
			delete(a.free, f)
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) != len(a.freeList) {
		a.freeList = kept
		heap.Init(&a.freeList)
	}
}

type idHeap []EntityID

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(EntityID)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	id := old[n-1]
	*h = old[:n-1]
	return id
}
