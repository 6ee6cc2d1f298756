package judytrie

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gaarutyunov/rcuindex/internal/rcutest"
	"github.com/gaarutyunov/rcuindex/rcu"
)

func key8(b byte) []byte { return []byte{b} }

func key32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func TestBasicEightBitKeys(t *testing.T) {
	tr := New[string](rcu.NewDomain())

	_, err := tr.AddUnique(key8(1), "one")
	require.NoError(t, err)
	_, err = tr.AddUnique(key8(200), "two-hundred")
	require.NoError(t, err)
	_, err = tr.AddUnique(key8(42), "forty-two")
	require.NoError(t, err)

	require.NoError(t, tr.Validate())

	h, ok := tr.Lookup(key8(42))
	require.True(t, ok)
	require.Equal(t, "forty-two", h.Value())

	_, ok = tr.Lookup(key8(7))
	require.False(t, ok)

	var order []string
	tr.Ascend(func(h Handle[string]) bool {
		order = append(order, h.Value())
		return true
	})
	require.Equal(t, []string{"one", "forty-two", "two-hundred"}, order)
}

func TestSparse32BitKeysWithDuplicates(t *testing.T) {
	tr := New[int](rcu.NewDomain())

	keys := []uint32{0, 1 << 31, 1000, 1 << 16, 5}
	for i, k := range keys {
		_, err := tr.AddUnique(key32(k), i)
		require.NoError(t, err)
	}

	// Duplicate key via Add, not AddUnique.
	_, err := tr.AddUnique(key32(1000), 999)
	require.Error(t, err)

	_, err = tr.Add(key32(1000), 999)
	require.NoError(t, err)

	h, ok := tr.Lookup(key32(1000))
	require.True(t, ok)
	require.Equal(t, 999, h.Value()) // most recently added is the chain head

	require.NoError(t, tr.Validate())
}

func TestBelowEqualAboveEqual(t *testing.T) {
	tr := New[int](rcu.NewDomain())
	for _, k := range []byte{10, 20, 30, 40} {
		_, err := tr.AddUnique(key8(k), int(k))
		require.NoError(t, err)
	}

	h, ok := tr.LookupBelowEqual(key8(25))
	require.True(t, ok)
	require.Equal(t, 20, h.Value())

	h, ok = tr.LookupBelowEqual(key8(10))
	require.True(t, ok)
	require.Equal(t, 10, h.Value())

	_, ok = tr.LookupBelowEqual(key8(5))
	require.False(t, ok)

	h, ok = tr.LookupAboveEqual(key8(25))
	require.True(t, ok)
	require.Equal(t, 30, h.Value())

	h, ok = tr.LookupAboveEqual(key8(40))
	require.True(t, ok)
	require.Equal(t, 40, h.Value())

	_, ok = tr.LookupAboveEqual(key8(41))
	require.False(t, ok)
}

func TestDeleteRemovesKeyAndShrinksNode(t *testing.T) {
	tr := New[int](rcu.NewDomain())
	for i := 0; i < 20; i++ {
		_, err := tr.AddUnique(key8(byte(i)), i)
		require.NoError(t, err)
	}
	require.NoError(t, tr.Validate())

	for i := 0; i < 15; i++ {
		require.NoError(t, tr.Delete(key8(byte(i))))
	}
	require.NoError(t, tr.Validate())

	for i := 0; i < 15; i++ {
		_, ok := tr.Lookup(key8(byte(i)))
		require.False(t, ok)
	}
	for i := 15; i < 20; i++ {
		_, ok := tr.Lookup(key8(byte(i)))
		require.True(t, ok)
	}
}

func TestDeleteUnknownKeyIsNotFound(t *testing.T) {
	tr := New[int](rcu.NewDomain())
	require.Error(t, tr.Delete(key8(1)))
}

// TestRecompactionAcrossClassBoundaries drives a single node from
// LINEAR0 all the way to PIGEON, then deletes every other key (the node
// stays PIGEON), checking the tree stays valid — and lookups stay
// correct — while a concurrent reader is walking the trie.
func TestRecompactionAcrossClassBoundaries(t *testing.T) {
	tr := New[int](rcu.NewDomain())

	const n = 200
	rcutest.Run(t, rcutest.Config{}, func() {
		tr.Lookup(key32(0x01000000))
		tr.Ascend(func(Handle[int]) bool { return false })
	}, func() error {
		for i := 0; i < n; i++ {
			k := key32(uint32(i) << 24) // vary the first digit, same node throughout
			if _, err := tr.AddUnique(k, i); err != nil {
				return err
			}
			if i%20 == 0 {
				if err := tr.Validate(); err != nil {
					return err
				}
			}
		}
		if err := tr.Validate(); err != nil {
			return err
		}
		for i := 0; i < n; i += 2 {
			k := key32(uint32(i) << 24)
			if err := tr.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})

	rcutest.Quiesce(t, tr.Validate)

	for i := 1; i < n; i += 2 {
		k := key32(uint32(i) << 24)
		h, ok := tr.Lookup(k)
		require.True(t, ok)
		require.Equal(t, i, h.Value())
	}
}
