package rbtree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gaarutyunov/rcuindex/internal/rcutest"
	"github.com/gaarutyunov/rcuindex/rcu"
)

func intCmp(a, b int) int { return a - b }

func newIntTree() *Tree[int, string] {
	return New[int, string](intCmp, -1, rcu.NewDomain())
}

// TestIntervalSearch is the scenario of a red-black interval tree
// holding [0,10), [5,20), [30,40): search(7) must hit one of the first
// two, search(25) must miss, and an in-order walk must yield all three
// in begin order with max_end holding at every ancestor.
func TestIntervalSearch(t *testing.T) {
	tr := newIntTree()

	_, err := tr.Insert(0, 10, "a")
	require.NoError(t, err)
	_, err = tr.Insert(5, 20, "b")
	require.NoError(t, err)
	_, err = tr.Insert(30, 40, "c")
	require.NoError(t, err)

	require.NoError(t, tr.Validate())

	h, ok := tr.Search(7)
	require.True(t, ok)
	require.Contains(t, []string{"a", "b"}, h.Value())

	_, ok = tr.Search(25)
	require.False(t, ok)

	var seen []string
	tr.Ascend(func(h Handle[int, string]) bool {
		seen = append(seen, h.Value())
		return true
	})
	require.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestInsertRejectsDuplicateBegin(t *testing.T) {
	tr := newIntTree()
	_, err := tr.Insert(5, 10, "a")
	require.NoError(t, err)
	_, err = tr.Insert(5, 12, "b")
	require.Error(t, err)
}

func TestInsertThenRemoveRoundTrips(t *testing.T) {
	tr := newIntTree()
	h, err := tr.Insert(1, 2, "only")
	require.NoError(t, err)
	require.NoError(t, tr.Validate())

	require.NoError(t, tr.Remove(h))
	require.NoError(t, tr.Validate())

	_, ok := tr.Search(1)
	require.False(t, ok)
}

func TestRemoveUnknownHandleIsNotFound(t *testing.T) {
	tr := newIntTree()
	h, err := tr.Insert(1, 2, "a")
	require.NoError(t, err)
	require.NoError(t, tr.Remove(h))
	require.Error(t, tr.Remove(h))
}

// TestManyInsertsAndRemovesStayBalanced drives enough churn that every
// rotation and delete-fixup case fires at least once, then checks the
// red-black and max_end invariants hold throughout.
func TestManyInsertsAndRemovesStayBalanced(t *testing.T) {
	tr := newIntTree()
	var handles []Handle[int, string]

	for i := 0; i < 500; i++ {
		begin := (i * 7) % 1000
		h, err := tr.Insert(begin, begin+3, "v")
		if err == nil {
			handles = append(handles, h)
		}
		if i%5 == 0 {
			require.NoError(t, tr.Validate())
		}
	}
	require.NoError(t, tr.Validate())

	for i, h := range handles {
		if i%3 != 0 {
			continue
		}
		require.NoError(t, tr.Remove(h))
	}
	require.NoError(t, tr.Validate())
}

func TestNextPrevWalkMatchesAscend(t *testing.T) {
	tr := newIntTree()
	for _, begin := range []int{40, 10, 20, 30, 0} {
		_, err := tr.Insert(begin, begin+1, "v")
		require.NoError(t, err)
	}

	min, ok := tr.Min()
	require.True(t, ok)
	require.Equal(t, 0, min.Begin())

	max, ok := tr.Max()
	require.True(t, ok)
	require.Equal(t, 40, max.Begin())

	var forward []int
	h, ok := tr.Min()
	for ok {
		forward = append(forward, h.Begin())
		h, ok = tr.Next(h)
	}
	require.Equal(t, []int{0, 10, 20, 30, 40}, forward)

	var backward []int
	h, ok = tr.Max()
	for ok {
		backward = append(backward, h.Begin())
		h, ok = tr.Prev(h)
	}
	require.Equal(t, []int{40, 30, 20, 10, 0}, backward)
}

func TestAscendRangeFiltersByBegin(t *testing.T) {
	tr := newIntTree()
	for _, begin := range []int{0, 5, 10, 15, 20} {
		_, err := tr.Insert(begin, begin+2, "v")
		require.NoError(t, err)
	}

	var got []int
	tr.AscendRange(5, 16, func(h Handle[int, string]) bool {
		got = append(got, h.Begin())
		return true
	})
	require.Equal(t, []int{5, 10, 15}, got)
}

func TestConcurrentReadersDuringWritesNeverObserveBrokenTree(t *testing.T) {
	tr := newIntTree()
	for i := 0; i < 200; i++ {
		_, err := tr.Insert(i, i+1, "v")
		require.NoError(t, err)
	}

	rcutest.Run(t, rcutest.Config{}, func() {
		tr.Search(100)
		tr.Ascend(func(Handle[int, string]) bool { return false })
	}, func() error {
		for i := 200; i < 400; i++ {
			if _, err := tr.Insert(i, i+1, "v"); err != nil {
				return err
			}
		}
		return nil
	})

	rcutest.Quiesce(t, tr.Validate)
}
