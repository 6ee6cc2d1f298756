// Package rangemap implements the range-interval layer of spec.md §4.4:
// a total, contiguous partition of a key universe [minKey, maxKey) into
// non-overlapping segments, each either free, allocated, or permanently
// removed. It is built directly on judytrie.Trie, keyed by each
// segment's start key, and never mutates a published Segment in place —
// every Add/Delete/Remove replaces whole segments, matching the
// copy-then-publish discipline rbtree and judytrie already use.
package rangemap

import (
	"sync"

	"github.com/gaarutyunov/rcuindex/internal/rcuerr"
	"github.com/gaarutyunov/rcuindex/internal/xlog"
	"github.com/gaarutyunov/rcuindex/judytrie"
	"github.com/gaarutyunov/rcuindex/rcu"
)

// Type is a segment's lifecycle state. The state machine is strict:
// Free -> Allocated (Add), Allocated -> Free (Delete), and Free or
// Allocated -> Removed (Remove) are the only transitions. Removed is
// terminal: no operation ever turns a Removed segment back into Free or
// Allocated, and Removed segments never coalesce into a neighboring
// free run the way two adjacent Free segments would.
type Type uint8

const (
	Free Type = iota
	Allocated
	Removed
)

func (t Type) String() string {
	switch t {
	case Free:
		return "free"
	case Allocated:
		return "allocated"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Segment is one interval of the partition. Segments are immutable once
// published into the trie; mu guards nothing about the fields below,
// only the decision to replace this segment with its successors —
// every writer that finds a segment via lookup must lock it before
// deciding to commit a replacement, and re-validate that the trie still
// holds this exact segment afterward, since a concurrent writer may have
// already replaced it while the lock was being acquired.
type Segment[K any] struct {
	mu sync.Mutex

	start, end K
	typ        Type
	priv       any
}

func (s *Segment[K]) Start() K   { return s.start }
func (s *Segment[K]) End() K     { return s.end }
func (s *Segment[K]) Type() Type { return s.typ }
func (s *Segment[K]) Value() any { return s.priv }

// Lock and Unlock expose the per-segment mutex so a caller can hold a
// segment stable across a read-modify-write sequence of its own,
// mirroring the way Add and Delete serialize against each other.
func (s *Segment[K]) Lock()   { s.mu.Lock() }
func (s *Segment[K]) Unlock() { s.mu.Unlock() }

// Codec tells Map how to turn a key into the fixed-width bytes judytrie
// requires and how to order two keys. Cmp must agree with Bytes'
// lexicographic byte order (e.g. big-endian encoding of an unsigned
// integer), since the trie's ordered neighbor lookups (LookupBelowEqual,
// LookupBelow) rely on both orderings coinciding.
type Codec[K any] struct {
	Cmp   func(a, b K) int
	Bytes func(K) []byte
}

// Map is one range-interval index over key space [minKey, maxKey).
type Map[K any] struct {
	codec          Codec[K]
	domain         *rcu.Domain
	trie           *judytrie.Trie[*Segment[K]]
	minKey, maxKey K
}

// New creates a Map whose entire universe starts as one free segment.
func New[K any](codec Codec[K], domain *rcu.Domain, minKey, maxKey K) (*Map[K], error) {
	if codec.Cmp(minKey, maxKey) >= 0 {
		return nil, rcuerr.Wrap(rcuerr.Invalid, "rangemap.New: empty universe")
	}
	m := &Map[K]{
		codec:  codec,
		domain: domain,
		trie:   judytrie.New[*Segment[K]](domain),
		minKey: minKey,
		maxKey: maxKey,
	}
	whole := &Segment[K]{start: minKey, end: maxKey, typ: Free}
	if _, err := m.trie.AddUnique(codec.Bytes(minKey), whole); err != nil {
		return nil, err
	}
	return m, nil
}

// Lookup returns the segment covering key. It reports false for a key
// outside the universe bounds, and transiently while the covering
// segment's start key is being replaced by a concurrent commit.
func (m *Map[K]) Lookup(key K) (*Segment[K], bool) {
	h, ok := m.trie.LookupBelowEqual(m.codec.Bytes(key))
	if !ok {
		return nil, false
	}
	s := h.Value()
	if m.codec.Cmp(key, s.end) >= 0 {
		return nil, false
	}
	return s, true
}

// commit atomically (from the read side's perspective) swaps oldSegs for
// newSegs in the trie. Both slices must be sorted ascending by start key
// and satisfy oldSegs[0].start == newSegs[0].start — the leftmost
// boundary of a replaced run is always preserved by both Add's split and
// Delete's merge, which is what makes a single shared key reusable
// instead of requiring the trie to hold two values under one key even
// transiently.
//
// Every newSegs entry past the first is inserted before any oldSegs
// entry is removed, so a concurrent reader never observes a gap at a
// genuinely new key. The single reused key unavoidably goes through a
// delete-then-add pair, since the trie has no atomic "replace value at
// key" primitive; a reader that does a range lookup spanning exactly
// that instant may see a transient miss and must retry; Lookup reports
// such a miss as not found, and Add and Delete retry on their own.
func (m *Map[K]) commit(oldSegs, newSegs []*Segment[K]) error {
	for i := 1; i < len(newSegs); i++ {
		if _, err := m.trie.AddUnique(m.codec.Bytes(newSegs[i].start), newSegs[i]); err != nil {
			return err
		}
	}
	for i := 1; i < len(oldSegs); i++ {
		if err := m.trie.Delete(m.codec.Bytes(oldSegs[i].start)); err != nil {
			return err
		}
	}
	if err := m.trie.Delete(m.codec.Bytes(oldSegs[0].start)); err != nil {
		return err
	}
	if _, err := m.trie.AddUnique(m.codec.Bytes(newSegs[0].start), newSegs[0]); err != nil {
		return err
	}
	return nil
}

// Add is range_add: carve [start, end) out of the single free segment
// that must currently cover it entirely, marking it Allocated with priv
// as its caller-owned payload. A request straddling two segments, or
// landing on anything but a free run, fails without touching the
// structure.
func (m *Map[K]) Add(start, end K, priv any) error {
	if m.codec.Cmp(start, end) >= 0 {
		return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Add: empty or inverted range")
	}
	if m.codec.Cmp(start, m.minKey) < 0 || m.codec.Cmp(end, m.maxKey) > 0 {
		return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Add: range outside the universe")
	}
	for {
		h, ok := m.trie.LookupBelowEqual(m.codec.Bytes(start))
		if !ok {
			continue // the covering segment's key is mid-replacement; retry.
		}
		cov := h.Value()
		cov.Lock()

		cur, ok := m.trie.Lookup(m.codec.Bytes(cov.start))
		if !ok || cur.Value() != cov || m.codec.Cmp(cov.end, start) <= 0 {
			cov.Unlock()
			continue // cov was replaced, or does not reach start because the covering segment is mid-replacement; retry.
		}
		if cov.typ != Free {
			cov.Unlock()
			return rcuerr.Wrap(rcuerr.AlreadyExists, "rangemap.Add: target not free")
		}
		if m.codec.Cmp(cov.start, start) > 0 || m.codec.Cmp(cov.end, end) < 0 {
			cov.Unlock()
			return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Add: range straddles a segment boundary")
		}

		var newSegs []*Segment[K]
		if m.codec.Cmp(cov.start, start) < 0 {
			newSegs = append(newSegs, &Segment[K]{start: cov.start, end: start, typ: Free})
		}
		newSegs = append(newSegs, &Segment[K]{start: start, end: end, typ: Allocated, priv: priv})
		if m.codec.Cmp(end, cov.end) < 0 {
			newSegs = append(newSegs, &Segment[K]{start: end, end: cov.end, typ: Free})
		}

		err := m.commit([]*Segment[K]{cov}, newSegs)
		cov.Unlock()
		if err != nil {
			xlog.Warnf("rangemap: Add commit failed: %v", err)
		}
		return err
	}
}

// Remove is the permanent-retirement counterpart to Add: it marks
// [start, end) Removed whether it is currently Free or Allocated, and
// the result never merges with a neighboring Free run the way Delete's
// output does. Once Removed, a span can never be covered by Add again.
func (m *Map[K]) Remove(start, end K) error {
	if m.codec.Cmp(start, end) >= 0 {
		return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Remove: empty or inverted range")
	}
	for {
		h, ok := m.trie.LookupBelowEqual(m.codec.Bytes(start))
		if !ok {
			return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Remove: before universe start")
		}
		cov := h.Value()
		cov.Lock()

		cur, ok := m.trie.Lookup(m.codec.Bytes(cov.start))
		if !ok || cur.Value() != cov {
			cov.Unlock()
			continue
		}
		if cov.typ == Removed {
			cov.Unlock()
			return rcuerr.Wrap(rcuerr.AlreadyExists, "rangemap.Remove: already removed")
		}
		if m.codec.Cmp(cov.start, start) > 0 || m.codec.Cmp(cov.end, end) < 0 {
			cov.Unlock()
			return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Remove: range straddles a segment boundary")
		}

		var newSegs []*Segment[K]
		if m.codec.Cmp(cov.start, start) < 0 {
			newSegs = append(newSegs, &Segment[K]{start: cov.start, end: start, typ: cov.typ})
		}
		newSegs = append(newSegs, &Segment[K]{start: start, end: end, typ: Removed})
		if m.codec.Cmp(end, cov.end) < 0 {
			newSegs = append(newSegs, &Segment[K]{start: end, end: cov.end, typ: cov.typ})
		}

		err := m.commit([]*Segment[K]{cov}, newSegs)
		cov.Unlock()
		if err != nil {
			xlog.Warnf("rangemap: Remove commit failed: %v", err)
		}
		return err
	}
}

// Delete is range_del: free a previously allocated segment at start and
// merge it with any immediately adjacent Free neighbors into a single
// larger Free run. The three participating segments (left neighbor, the
// target, right neighbor) are always locked in increasing start-key
// order, so Delete and Add operating on overlapping neighborhoods can
// never deadlock against each other.
func (m *Map[K]) Delete(start K) error {
	for {
		h, ok := m.trie.Lookup(m.codec.Bytes(start))
		if !ok {
			return rcuerr.Wrap(rcuerr.NotFound, "rangemap.Delete")
		}
		self := h.Value()
		if self.typ != Allocated {
			return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Delete: not allocated")
		}

		var left, right *Segment[K]
		if lh, ok := m.trie.LookupBelow(m.codec.Bytes(self.start)); ok {
			left = lh.Value()
		}
		if rh, ok := m.trie.Lookup(m.codec.Bytes(self.end)); ok {
			right = rh.Value()
		}
		// A neighbor whose key is mid-replacement in another commit can be
		// missed, or skipped in favor of an older segment; retry until both
		// neighbors that the partition must have are found abutting self.
		if (left == nil && m.codec.Cmp(self.start, m.minKey) > 0) ||
			(left != nil && m.codec.Cmp(left.end, self.start) != 0) ||
			(right == nil && m.codec.Cmp(self.end, m.maxKey) < 0) {
			continue
		}

		mergeLeft := left != nil && left.typ == Free
		mergeRight := right != nil && right.typ == Free

		// Neighbors are locked whenever present, not only when they'll be
		// merged: an Allocated neighbor still needs to serialize against a
		// concurrent Delete approaching it from its other side, or two
		// deletions can each merge past it without ever observing the
		// other's commit.
		locked := make([]*Segment[K], 0, 3)
		if left != nil {
			left.Lock()
			locked = append(locked, left)
		}
		self.Lock()
		locked = append(locked, self)
		if right != nil {
			right.Lock()
			locked = append(locked, right)
		}

		retry := false
		if left != nil {
			if cur, ok := m.trie.Lookup(m.codec.Bytes(left.start)); !ok || cur.Value() != left {
				retry = true
			}
		}
		if !retry {
			if cur, ok := m.trie.Lookup(m.codec.Bytes(self.start)); !ok || cur.Value() != self {
				retry = true
			}
		}
		if !retry && right != nil {
			if cur, ok := m.trie.Lookup(m.codec.Bytes(right.start)); !ok || cur.Value() != right {
				retry = true
			}
		}
		if retry {
			for _, s := range locked {
				s.Unlock()
			}
			continue
		}

		newStart, newEnd := self.start, self.end
		oldSegs := []*Segment[K]{self}
		if mergeLeft {
			newStart = left.start
			oldSegs = append([]*Segment[K]{left}, oldSegs...)
		}
		if mergeRight {
			newEnd = right.end
			oldSegs = append(oldSegs, right)
		}
		merged := &Segment[K]{start: newStart, end: newEnd, typ: Free}

		err := m.commit(oldSegs, []*Segment[K]{merged})
		for _, s := range locked {
			s.Unlock()
		}
		if err != nil {
			xlog.Warnf("rangemap: Delete commit failed: %v", err)
		}
		return err
	}
}

// Segments returns every segment in the partition, ordered by start key.
func (m *Map[K]) Segments() []*Segment[K] {
	var out []*Segment[K]
	m.trie.Ascend(func(h judytrie.Handle[*Segment[K]]) bool {
		out = append(out, h.Value())
		return true
	})
	return out
}

// Validate checks the total-partition invariant: segments are sorted,
// contiguous, span exactly [minKey, maxKey), and no two adjacent
// segments are both Free (Delete always coalesces those into one).
func (m *Map[K]) Validate() error {
	if err := m.trie.Validate(); err != nil {
		return err
	}
	segs := m.Segments()
	if len(segs) == 0 {
		return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Validate: empty partition")
	}
	if m.codec.Cmp(segs[0].start, m.minKey) != 0 {
		return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Validate: first segment does not start at minKey")
	}
	if m.codec.Cmp(segs[len(segs)-1].end, m.maxKey) != 0 {
		return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Validate: last segment does not end at maxKey")
	}
	for i, s := range segs {
		if m.codec.Cmp(s.start, s.end) >= 0 {
			return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Validate: empty or inverted segment")
		}
		if i > 0 {
			prev := segs[i-1]
			if m.codec.Cmp(prev.end, s.start) != 0 {
				return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Validate: gap or overlap between segments")
			}
			if prev.typ == Free && s.typ == Free {
				return rcuerr.Wrap(rcuerr.Invalid, "rangemap.Validate: adjacent free segments were not merged")
			}
		}
	}
	return nil
}
