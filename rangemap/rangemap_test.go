package rangemap

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gaarutyunov/rcuindex/internal/rcutest"
	"github.com/gaarutyunov/rcuindex/rcu"
)

func uint64Codec() Codec[uint64] {
	return Codec[uint64]{
		Cmp: func(a, b uint64) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		},
		Bytes: func(v uint64) []byte {
			b := make([]byte, 8)
			binary.BigEndian.PutUint64(b, v)
			return b
		},
	}
}

func newUint64Map(t *testing.T, maxKey uint64) *Map[uint64] {
	t.Helper()
	m, err := New[uint64](uint64Codec(), rcu.NewDomain(), 0, maxKey)
	require.NoError(t, err)
	return m
}

// TestAddSplitsThenDeleteMerges is the split-then-merge scenario: the
// whole universe starts as one free segment, Add carves an allocation
// out of its middle (producing three segments), and Delete-ing it
// coalesces the run back into a single free segment spanning the
// original bounds.
func TestAddSplitsThenDeleteMerges(t *testing.T) {
	m := newUint64Map(t, 1000)
	require.NoError(t, m.Validate())

	require.NoError(t, m.Add(100, 200, "payload"))
	require.NoError(t, m.Validate())

	segs := m.Segments()
	require.Len(t, segs, 3)
	require.Equal(t, uint64(0), segs[0].Start())
	require.Equal(t, uint64(100), segs[0].End())
	require.Equal(t, Free, segs[0].Type())
	require.Equal(t, uint64(100), segs[1].Start())
	require.Equal(t, uint64(200), segs[1].End())
	require.Equal(t, Allocated, segs[1].Type())
	require.Equal(t, "payload", segs[1].Value())
	require.Equal(t, uint64(200), segs[2].Start())
	require.Equal(t, uint64(1000), segs[2].End())
	require.Equal(t, Free, segs[2].Type())

	require.NoError(t, m.Delete(100))
	require.NoError(t, m.Validate())

	segs = m.Segments()
	require.Len(t, segs, 1)
	require.Equal(t, uint64(0), segs[0].Start())
	require.Equal(t, uint64(1000), segs[0].End())
	require.Equal(t, Free, segs[0].Type())
}

func TestAddExactSegmentNoSplit(t *testing.T) {
	m := newUint64Map(t, 100)
	require.NoError(t, m.Add(0, 100, "x"))
	segs := m.Segments()
	require.Len(t, segs, 1)
	require.Equal(t, Allocated, segs[0].Type())

	require.NoError(t, m.Delete(0))
	segs = m.Segments()
	require.Len(t, segs, 1)
	require.Equal(t, Free, segs[0].Type())
}

func TestAddStraddlingBoundaryFails(t *testing.T) {
	m := newUint64Map(t, 1000)
	require.NoError(t, m.Add(100, 200, "a"))
	err := m.Add(150, 250, "b")
	require.Error(t, err)
	require.NoError(t, m.Validate())
}

func TestAddOnAllocatedFails(t *testing.T) {
	m := newUint64Map(t, 1000)
	require.NoError(t, m.Add(100, 200, "a"))
	err := m.Add(100, 200, "b")
	require.Error(t, err)
}

func TestDeleteNonAllocatedFails(t *testing.T) {
	m := newUint64Map(t, 1000)
	err := m.Delete(0)
	require.Error(t, err)
}

func TestRemoveIsPermanentAndNeverMerges(t *testing.T) {
	m := newUint64Map(t, 1000)
	require.NoError(t, m.Add(100, 200, "a"))
	require.NoError(t, m.Remove(300, 400))
	require.NoError(t, m.Validate())

	require.NoError(t, m.Delete(100))
	require.NoError(t, m.Validate())

	var sawRemoved bool
	for _, s := range m.Segments() {
		if s.Type() == Removed {
			sawRemoved = true
			require.Equal(t, uint64(300), s.Start())
			require.Equal(t, uint64(400), s.End())
		}
	}
	require.True(t, sawRemoved)

	require.Error(t, m.Add(300, 400, "x"))
	require.Error(t, m.Remove(300, 400))
}

// TestConcurrentAddDeleteStaysConsistent is the concurrent-race scenario:
// multiple writers Add and Delete disjoint, non-overlapping spans while
// readers walk Lookup/Segments concurrently, bounded by a timeout so a
// livelock shows up as a test failure rather than a hang. Validate must
// succeed once everything quiesces.
func TestConcurrentAddDeleteStaysConsistent(t *testing.T) {
	const (
		spans   = 40
		spanLen = uint64(10)
	)
	m := newUint64Map(t, spans*spanLen)

	writer := func(parity int) func() error {
		return func() error {
			for i := parity; i < spans; i += 2 {
				start := uint64(i) * spanLen
				if err := m.Add(start, start+spanLen, i); err != nil {
					return err
				}
				if err := m.Delete(start); err != nil {
					return err
				}
			}
			return nil
		}
	}

	rcutest.Run(t, rcutest.Config{}, func() {
		m.Lookup(uint64(5))
		m.Segments()
	}, writer(0), writer(1))

	rcutest.Quiesce(t, m.Validate)
	segs := m.Segments()
	require.Len(t, segs, 1)
	require.Equal(t, Free, segs[0].Type())
}
