package ecs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocatorSequential(t *testing.T) {
	a := NewAllocator()
	for want := EntityID(0); want < 100; want++ {
		require.Equal(t, want, a.Allocate())
	}
	require.Equal(t, EntityID(100), a.Frontier())
}

func TestAllocatorRecycle(t *testing.T) {
	a := NewAllocator()
	e0, e1, e2 := a.Allocate(), a.Allocate(), a.Allocate()
	require.Equal(t, []EntityID{0, 1, 2}, []EntityID{e0, e1, e2})

	a.Recycle(e1)
	require.Equal(t, EntityID(1), a.Allocate())
	require.Equal(t, EntityID(3), a.Allocate())

	// recycling the frontier behaves like a plain allocation
	a.Recycle(4)
	require.Equal(t, EntityID(4), a.Allocate())
	require.Equal(t, EntityID(5), a.Frontier())
	require.Equal(t, EntityID(5), a.Allocate())
}

func TestAllocatorLowestFirst(t *testing.T) {
	a := NewAllocator()
	for i := 0; i < 6; i++ {
		a.Allocate()
	}
	a.Recycle(4)
	a.Recycle(1)
	a.Recycle(4)
	require.Equal(t, 2, a.Recycled())

	require.Equal(t, EntityID(1), a.Allocate())
	require.Equal(t, EntityID(4), a.Allocate())
	require.Equal(t, EntityID(6), a.Allocate())
}

func TestAllocatorResetAll(t *testing.T) {
	a := NewAllocator()
	a.Allocate()
	a.Allocate()
	a.Recycle(0)

	a.ResetAll()
	require.Zero(t, a.Recycled())
	require.Equal(t, EntityID(0), a.Allocate())
	require.Equal(t, EntityID(1), a.Allocate())
}

func TestAllocatorReserve(t *testing.T) {
	a := NewAllocator()
	require.NoError(t, a.Reserve(3))
	require.Equal(t, EntityID(4), a.Frontier())
	require.Equal(t, 3, a.Recycled())

	require.NoError(t, a.Reserve(1))
	require.Equal(t, 2, a.Recycled())
	require.NoError(t, a.Reserve(2))
	require.NoError(t, a.Reserve(3))

	require.Equal(t, EntityID(0), a.Allocate())
	require.Equal(t, EntityID(4), a.Allocate())
}

func TestAllocatorReserveOutOfOrder(t *testing.T) {
	a := NewAllocator()
	require.NoError(t, a.Reserve(9))
	require.NoError(t, a.Reserve(4))
	require.NoError(t, a.Reserve(0))
	a.Recycle(5) // already free
	require.Equal(t, 7, a.Recycled())

	var got []EntityID
	for i := 0; i < 8; i++ {
		got = append(got, a.Allocate())
	}
	require.Equal(t, []EntityID{1, 2, 3, 5, 6, 7, 8, 10}, got)
}

func TestAllocatorReserveMixesWithRecycled(t *testing.T) {
	a := NewAllocator()
	for i := 0; i < 3; i++ {
		a.Allocate()
	}
	a.Recycle(1)
	a.Recycle(7) // never issued
	require.NoError(t, a.Reserve(8))
	require.Equal(t, 1+5, a.Recycled(), "7 folds into the gap 3..7")

	got := []EntityID{a.Allocate(), a.Allocate(), a.Allocate()}
	require.Equal(t, []EntityID{1, 3, 4}, got)
}

func TestAllocatorReserveLargeID(t *testing.T) {
	a := NewAllocator()
	require.NoError(t, a.Reserve(1<<24))
	require.Equal(t, 1<<24, a.Recycled())
	require.Equal(t, EntityID(1<<24+1), a.Frontier())
	require.Equal(t, EntityID(0), a.Allocate())

	require.NoError(t, a.Reserve(1<<23))
	require.Equal(t, 1<<24-2, a.Recycled())

	a.ResetAll()
	require.Zero(t, a.Recycled())
	require.Equal(t, EntityID(0), a.Allocate())
}

func TestAllocatorReserveRejectsWrap(t *testing.T) {
	a := NewAllocator()
	a.Allocate()
	require.NoError(t, a.Reserve(MaxEntityID))
	require.Equal(t, EntityID(math.MaxUint32), a.Frontier())

	err := a.Reserve(math.MaxUint32)
	require.ErrorIs(t, err, ErrIDOutOfRange)
	require.Equal(t, EntityID(math.MaxUint32), a.Frontier(), "frontier does not wrap")
	require.Equal(t, EntityID(1), a.Allocate(), "0 is still live")
}
