// Package judytrie implements the compressed radix trie of spec.md
// §4.2: a 256-ary digit trie over fixed-width byte keys with adaptive
// node layouts (LINEAR-k, POOL-k, PIGEON) that grow and shrink as a
// node's child count crosses hysteresis thresholds, so a sparse
// subtree stays cache-small while a dense one gets direct 256-way
// indexing.
//
// Every child reference a reader walks is an independently atomic
// slot. Adding a digit a node does not yet hold requires a fresh copy
// of that one node (its key/child arrays grow), published with a
// single atomic store into the EXISTING slot of its own parent — the
// parent itself is never touched, so an insert's cost above the
// node that actually grows is one atomic store, not a clone of the
// whole path to the root. Changing what an already-present digit
// points to is cheaper still: a single atomic store into that node's
// own child slot, no clone at all.
package judytrie

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gaarutyunov/rcuindex/internal/rcuerr"
	"github.com/gaarutyunov/rcuindex/rcu"
)

type class uint8

const (
	linear0 class = iota
	linear1
	linear2
	linear3
	linear4
	pool5
	pool6
	pigeon
)

// classCapacity is the number of children a node of each class can
// hold before it must grow into the next class.
var classCapacity = [...]int{1, 2, 4, 8, 16, 32, 64, 256}

// classShrinkAt is the count at or below which a node of this class is
// a candidate for demotion to the previous class. The gap between this
// and classCapacity of the previous class is the hysteresis window
// that keeps a node hovering near a boundary from thrashing.
var classShrinkAt = [...]int{0, 0, 1, 2, 4, 8, 16, 32}

// thrashLimit is the shadow record's recentShrinks count at which
// withDigit jumps straight to PIGEON and withoutDigit stops demoting.
// withoutDigit counts each demotion-eligible delete and withDigit resets
// the count. The record belongs to one node object, and every grow or
// shrink publishes a copy whose record starts at zero, so the count does
// not carry over from one version of a node to the next.
const thrashLimit = 3

// child is a tagged reference to either an inner node or a
// duplicate-key leaf chain. A nil *child means "absent".
type child[V any] struct {
	inner *innerNode[V]
	leaf  *leafNode[V]
}

type leafNode[V any] struct {
	key   []byte
	value V
	next  *leafNode[V] // duplicate chain, most recently added first
}

// innerNode is one trie node. keys/children are parallel arrays for
// every class except pigeon, where children is a dense 256-slot array
// indexed directly by digit and keys is unused.
type innerNode[V any] struct {
	cls      class
	level    int
	count    int
	keys     []byte
	children []atomic.Pointer[child[V]]
}

// Trie is one RCU-safe compressed radix trie over fixed-width keys:
// every key inserted into a given Trie must have the same length.
type Trie[V any] struct {
	domain *rcu.Domain
	root   atomic.Pointer[child[V]]
	shadow sync.Map // *innerNode[V] -> *shadowRecord, consulted only by writers
}

type shadowRecord struct {
	mu            sync.Mutex
	recentShrinks int
}

// New creates an empty trie.
func New[V any](domain *rcu.Domain) *Trie[V] {
	return &Trie[V]{domain: domain}
}

func (n *innerNode[V]) childSlot(digit byte) (*atomic.Pointer[child[V]], bool) {
	if n.cls == pigeon {
		return &n.children[digit], true
	}
	i := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] >= digit })
	if i < len(n.keys) && n.keys[i] == digit {
		return &n.children[i], true
	}
	return nil, false
}

// forEach visits every present (digit, child) pair in ascending digit
// order.
func (n *innerNode[V]) forEach(fn func(digit byte, c *child[V])) {
	if n.cls == pigeon {
		for d := 0; d < 256; d++ {
			if c := n.children[d].Load(); c != nil {
				fn(byte(d), c)
			}
		}
		return
	}
	for i, d := range n.keys {
		if c := n.children[i].Load(); c != nil {
			fn(d, c)
		}
	}
}

func (t *Trie[V]) shadowFor(n *innerNode[V]) *shadowRecord {
	v, _ := t.shadow.LoadOrStore(n, &shadowRecord{})
	return v.(*shadowRecord)
}

// Handle references one key/value entry, possibly one link in a
// duplicate-key chain.
type Handle[V any] struct {
	n *leafNode[V]
}

func (h Handle[V]) Key() []byte { return h.n.key }
func (h Handle[V]) Value() V    { return h.n.value }

// Lookup returns the head of the duplicate chain stored at key, if
// any.
func (t *Trie[V]) Lookup(key []byte) (Handle[V], bool) {
	c := t.root.Load()
	depth := 0
	for {
		if c == nil {
			return Handle[V]{}, false
		}
		if c.leaf != nil {
			if depth == len(key) && bytesEqual(c.leaf.key, key) {
				return Handle[V]{n: c.leaf}, true
			}
			return Handle[V]{}, false
		}
		if depth >= len(key) {
			return Handle[V]{}, false
		}
		cs, ok := c.inner.childSlot(key[depth])
		if !ok {
			return Handle[V]{}, false
		}
		c = cs.Load()
		depth++
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Add inserts key/value, allowing duplicate keys: a repeated key is
// prepended to that key's chain.
func (t *Trie[V]) Add(key []byte, value V) (Handle[V], error) {
	lf, err := t.insertAt(&t.root, key, 0, value, false)
	if err != nil {
		return Handle[V]{}, err
	}
	return Handle[V]{n: lf}, nil
}

// AddUnique inserts key/value and fails with AlreadyExists if key is
// already present.
func (t *Trie[V]) AddUnique(key []byte, value V) (Handle[V], error) {
	lf, err := t.insertAt(&t.root, key, 0, value, true)
	if err != nil {
		return Handle[V]{}, err
	}
	return Handle[V]{n: lf}, nil
}

func (t *Trie[V]) insertAt(slot *atomic.Pointer[child[V]], key []byte, depth int, value V, unique bool) (*leafNode[V], error) {
	if depth == len(key) {
		for {
			cur := slot.Load()
			if cur == nil {
				lf := &leafNode[V]{key: append([]byte(nil), key...), value: value}
				if slot.CompareAndSwap(nil, &child[V]{leaf: lf}) {
					return lf, nil
				}
				continue
			}
			if cur.leaf == nil {
				return nil, rcuerr.Wrap(rcuerr.Invalid, "judytrie: key length mismatch")
			}
			if unique {
				return nil, rcuerr.Wrap(rcuerr.AlreadyExists, "judytrie.AddUnique")
			}
			lf := &leafNode[V]{key: append([]byte(nil), key...), value: value, next: cur.leaf}
			if slot.CompareAndSwap(cur, &child[V]{leaf: lf}) {
				return lf, nil
			}
		}
	}

	digit := key[depth]
	cur := slot.Load()
	switch {
	case cur == nil:
		childSlot := new(atomic.Pointer[child[V]])
		lf, err := t.insertAt(childSlot, key, depth+1, value, unique)
		if err != nil {
			return nil, err
		}
		n := newLeafChain(depth, digit, childSlot.Load())
		if !slot.CompareAndSwap(nil, &child[V]{inner: n}) {
			return t.insertAt(slot, key, depth, value, unique)
		}
		return lf, nil
	case cur.leaf != nil:
		return nil, rcuerr.Wrap(rcuerr.Invalid, "judytrie: key length mismatch")
	default:
		n := cur.inner
		// A PIGEON node has a slot for every digit; an empty one still
		// goes through withDigit so the node's count covers the new digit.
		if cs, ok := n.childSlot(digit); ok && (n.cls != pigeon || cs.Load() != nil) {
			return t.insertAt(cs, key, depth+1, value, unique)
		}
		childSlot := new(atomic.Pointer[child[V]])
		lf, err := t.insertAt(childSlot, key, depth+1, value, unique)
		if err != nil {
			return nil, err
		}
		nn := t.withDigit(n, digit, childSlot.Load())
		if !slot.CompareAndSwap(cur, &child[V]{inner: nn}) {
			return t.insertAt(slot, key, depth, value, unique)
		}
		return lf, nil
	}
}

func newLeafChain[V any](level int, digit byte, c *child[V]) *innerNode[V] {
	n := &innerNode[V]{cls: linear0, level: level, count: 1, keys: []byte{digit}, children: make([]atomic.Pointer[child[V]], 1)}
	n.children[0].Store(c)
	return n
}

// withDigit returns a copy of n with digit added, promoting n's class
// if the new count crosses the current class's capacity. If n's shadow
// record has reached thrashLimit, it jumps straight to PIGEON instead of
// the next incremental class.
func (t *Trie[V]) withDigit(n *innerNode[V], digit byte, c *child[V]) *innerNode[V] {
	rec := t.shadowFor(n)
	rec.mu.Lock()
	thrashing := rec.recentShrinks >= thrashLimit
	rec.recentShrinks = 0
	rec.mu.Unlock()

	count := n.count + 1
	newCls := n.cls
	if thrashing {
		newCls = pigeon
	} else {
		for newCls != pigeon && count > classCapacity[newCls] {
			newCls++
		}
	}

	if newCls == pigeon {
		dense := make([]atomic.Pointer[child[V]], 256)
		n.forEach(func(d byte, oc *child[V]) { dense[d].Store(oc) })
		dense[digit].Store(c)
		return &innerNode[V]{cls: pigeon, level: n.level, count: count, children: dense}
	}

	keys := make([]byte, 0, count)
	children := make([]atomic.Pointer[child[V]], count)
	i := 0
	inserted := false
	n.forEach(func(d byte, oc *child[V]) {
		if !inserted && d > digit {
			keys = append(keys, digit)
			children[i].Store(c)
			i++
			inserted = true
		}
		keys = append(keys, d)
		children[i].Store(oc)
		i++
	})
	if !inserted {
		keys = append(keys, digit)
		children[i].Store(c)
	}
	return &innerNode[V]{cls: newCls, level: n.level, count: count, keys: keys, children: children}
}

// withoutDigit returns a copy of n with digit removed, or (nil, true)
// if that was n's last entry. ok is false if digit was not present.
func (t *Trie[V]) withoutDigit(n *innerNode[V], digit byte) (*innerNode[V], bool) {
	if _, ok := n.childSlot(digit); !ok {
		return nil, false
	}
	count := n.count - 1
	if count == 0 {
		return nil, true
	}

	cls := n.cls
	demote := cls != linear0 && count <= classShrinkAt[cls]
	if demote {
		rec := t.shadowFor(n)
		rec.mu.Lock()
		rec.recentShrinks++
		suppress := rec.recentShrinks >= thrashLimit && cls != pigeon
		rec.mu.Unlock()
		if suppress {
			demote = false
		}
	}

	if cls == pigeon {
		// PIGEON never demotes on its own; only explicit rebuild would
		// shrink it, and no component needs that for fixed-width keys
		// that already justified growing to PIGEON once.
		dense := make([]atomic.Pointer[child[V]], 256)
		n.forEach(func(d byte, oc *child[V]) {
			if d != digit {
				dense[d].Store(oc)
			}
		})
		return &innerNode[V]{cls: pigeon, level: n.level, count: count, children: dense}, true
	}

	if demote {
		for cls != linear0 && count <= classShrinkAt[cls] {
			cls--
		}
	}

	keys := make([]byte, 0, count)
	children := make([]atomic.Pointer[child[V]], count)
	i := 0
	n.forEach(func(d byte, oc *child[V]) {
		if d == digit {
			return
		}
		keys = append(keys, d)
		children[i].Store(oc)
		i++
	})
	return &innerNode[V]{cls: cls, level: n.level, count: count, keys: keys, children: children}, true
}

// Delete removes the head of the duplicate chain at key, if present.
func (t *Trie[V]) Delete(key []byte) error {
	return t.deleteAt(&t.root, key, 0)
}

func (t *Trie[V]) deleteAt(slot *atomic.Pointer[child[V]], key []byte, depth int) error {
	if depth == len(key) {
		for {
			cur := slot.Load()
			if cur == nil || cur.leaf == nil {
				return rcuerr.Wrap(rcuerr.NotFound, "judytrie.Delete")
			}
			var next *child[V]
			if cur.leaf.next != nil {
				next = &child[V]{leaf: cur.leaf.next}
			}
			if slot.CompareAndSwap(cur, next) {
				return nil
			}
		}
	}

	digit := key[depth]
	cur := slot.Load()
	if cur == nil || cur.leaf != nil {
		return rcuerr.Wrap(rcuerr.NotFound, "judytrie.Delete")
	}
	n := cur.inner
	cs, ok := n.childSlot(digit)
	if !ok {
		return rcuerr.Wrap(rcuerr.NotFound, "judytrie.Delete")
	}
	if err := t.deleteAt(cs, key, depth+1); err != nil {
		return err
	}
	if cs.Load() != nil {
		return nil
	}
	for {
		cur := slot.Load()
		if cur == nil || cur.inner != n {
			return nil
		}
		nn, ok := t.withoutDigit(n, digit)
		if !ok {
			return nil
		}
		var repl *child[V]
		if nn != nil {
			repl = &child[V]{inner: nn}
		}
		if slot.CompareAndSwap(cur, repl) {
			return nil
		}
	}
}

// LookupBelowEqual returns the entry with the largest key <= key.
func (t *Trie[V]) LookupBelowEqual(key []byte) (Handle[V], bool) {
	lf := t.belowEqual(t.root.Load(), key, 0)
	if lf == nil {
		return Handle[V]{}, false
	}
	return Handle[V]{n: lf}, true
}

func (t *Trie[V]) belowEqual(c *child[V], key []byte, depth int) *leafNode[V] {
	if c == nil {
		return nil
	}
	if c.leaf != nil {
		if depth == len(key) {
			return c.leaf
		}
		return nil
	}
	if depth == len(key) {
		return nil
	}
	n := c.inner
	digit := key[depth]
	if cs, ok := n.childSlot(digit); ok {
		if res := t.belowEqual(cs.Load(), key, depth+1); res != nil {
			return res
		}
	}
	if cs, ok := n.floorLess(digit); ok {
		return t.maxLeaf(cs.Load())
	}
	return nil
}

// LookupAboveEqual returns the entry with the smallest key >= key.
func (t *Trie[V]) LookupAboveEqual(key []byte) (Handle[V], bool) {
	lf := t.aboveEqual(t.root.Load(), key, 0)
	if lf == nil {
		return Handle[V]{}, false
	}
	return Handle[V]{n: lf}, true
}

func (t *Trie[V]) aboveEqual(c *child[V], key []byte, depth int) *leafNode[V] {
	if c == nil {
		return nil
	}
	if c.leaf != nil {
		if depth == len(key) {
			return c.leaf
		}
		return nil
	}
	if depth == len(key) {
		return nil
	}
	n := c.inner
	digit := key[depth]
	if cs, ok := n.childSlot(digit); ok {
		if res := t.aboveEqual(cs.Load(), key, depth+1); res != nil {
			return res
		}
	}
	if cs, ok := n.ceilGreater(digit); ok {
		return t.minLeaf(cs.Load())
	}
	return nil
}

// LookupBelow returns the entry with the largest key strictly < key, the
// predecessor query rangemap's merge-on-delete uses to find the segment
// immediately to the left of a given start key without knowing its start
// key in advance.
func (t *Trie[V]) LookupBelow(key []byte) (Handle[V], bool) {
	lf := t.belowStrict(t.root.Load(), key, 0)
	if lf == nil {
		return Handle[V]{}, false
	}
	return Handle[V]{n: lf}, true
}

func (t *Trie[V]) belowStrict(c *child[V], key []byte, depth int) *leafNode[V] {
	if c == nil {
		return nil
	}
	if c.leaf != nil {
		// Keys are fixed-width, so a leaf only ever appears at
		// depth == len(key); reaching one here means an exact match,
		// which a strict predecessor query must not return.
		return nil
	}
	if depth == len(key) {
		return nil
	}
	n := c.inner
	digit := key[depth]
	if cs, ok := n.childSlot(digit); ok {
		if res := t.belowStrict(cs.Load(), key, depth+1); res != nil {
			return res
		}
	}
	if cs, ok := n.floorLess(digit); ok {
		return t.maxLeaf(cs.Load())
	}
	return nil
}

// LookupAbove returns the entry with the smallest key strictly > key.
func (t *Trie[V]) LookupAbove(key []byte) (Handle[V], bool) {
	lf := t.aboveStrict(t.root.Load(), key, 0)
	if lf == nil {
		return Handle[V]{}, false
	}
	return Handle[V]{n: lf}, true
}

func (t *Trie[V]) aboveStrict(c *child[V], key []byte, depth int) *leafNode[V] {
	if c == nil {
		return nil
	}
	if c.leaf != nil {
		return nil
	}
	if depth == len(key) {
		return nil
	}
	n := c.inner
	digit := key[depth]
	if cs, ok := n.childSlot(digit); ok {
		if res := t.aboveStrict(cs.Load(), key, depth+1); res != nil {
			return res
		}
	}
	if cs, ok := n.ceilGreater(digit); ok {
		return t.minLeaf(cs.Load())
	}
	return nil
}

func (n *innerNode[V]) floorLess(digit byte) (*atomic.Pointer[child[V]], bool) {
	if n.cls == pigeon {
		for d := int(digit) - 1; d >= 0; d-- {
			if n.children[d].Load() != nil {
				return &n.children[d], true
			}
		}
		return nil, false
	}
	i := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] >= digit })
	if i == 0 {
		return nil, false
	}
	return &n.children[i-1], true
}

func (n *innerNode[V]) ceilGreater(digit byte) (*atomic.Pointer[child[V]], bool) {
	if n.cls == pigeon {
		for d := int(digit) + 1; d < 256; d++ {
			if n.children[d].Load() != nil {
				return &n.children[d], true
			}
		}
		return nil, false
	}
	i := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] > digit })
	if i == len(n.keys) {
		return nil, false
	}
	return &n.children[i], true
}

func (t *Trie[V]) maxLeaf(c *child[V]) *leafNode[V] {
	for {
		if c == nil {
			return nil
		}
		if c.leaf != nil {
			return c.leaf
		}
		n := c.inner
		var last *atomic.Pointer[child[V]]
		if n.cls == pigeon {
			for d := 255; d >= 0; d-- {
				if n.children[d].Load() != nil {
					last = &n.children[d]
					break
				}
			}
		} else if len(n.keys) > 0 {
			last = &n.children[len(n.keys)-1]
		}
		if last == nil {
			return nil
		}
		c = last.Load()
	}
}

func (t *Trie[V]) minLeaf(c *child[V]) *leafNode[V] {
	for {
		if c == nil {
			return nil
		}
		if c.leaf != nil {
			return c.leaf
		}
		n := c.inner
		var first *atomic.Pointer[child[V]]
		if n.cls == pigeon {
			for d := 0; d < 256; d++ {
				if n.children[d].Load() != nil {
					first = &n.children[d]
					break
				}
			}
		} else if len(n.keys) > 0 {
			first = &n.children[0]
		}
		if first == nil {
			return nil
		}
		c = first.Load()
	}
}

// Ascend visits every (key, value) pair in ascending key order,
// including every link of a duplicate chain, stopping early if fn
// returns false.
func (t *Trie[V]) Ascend(fn func(Handle[V]) bool) {
	t.ascend(t.root.Load(), fn)
}

func (t *Trie[V]) ascend(c *child[V], fn func(Handle[V]) bool) bool {
	if c == nil {
		return true
	}
	if c.leaf != nil {
		for lf := c.leaf; lf != nil; lf = lf.next {
			if !fn(Handle[V]{n: lf}) {
				return false
			}
		}
		return true
	}
	cont := true
	c.inner.forEach(func(_ byte, oc *child[V]) {
		if cont {
			cont = t.ascend(oc, fn)
		}
	})
	return cont
}

// Validate walks every node and checks that each node's class still
// has capacity for its reported count and that every leaf sits at the
// depth its key implies.
func (t *Trie[V]) Validate() error {
	tok := t.domain.ReadLock()
	defer t.domain.ReadUnlock(tok)
	return t.validate(t.root.Load(), 0)
}

func (t *Trie[V]) validate(c *child[V], depth int) error {
	if c == nil {
		return nil
	}
	if c.leaf != nil {
		if len(c.leaf.key) != depth {
			return rcuerr.Wrap(rcuerr.Invalid, "judytrie.Validate: leaf at wrong depth")
		}
		return nil
	}
	n := c.inner
	if n.count <= 0 || n.count > classCapacity[n.cls] {
		return rcuerr.Wrap(rcuerr.Invalid, "judytrie.Validate: count outside class capacity")
	}
	if n.cls != pigeon {
		if len(n.keys) != n.count || len(n.children) != n.count {
			return rcuerr.Wrap(rcuerr.Invalid, "judytrie.Validate: key/child length mismatch")
		}
		for i := 1; i < len(n.keys); i++ {
			if n.keys[i] <= n.keys[i-1] {
				return rcuerr.Wrap(rcuerr.Invalid, "judytrie.Validate: keys not strictly sorted")
			}
		}
	}
	var err error
	n.forEach(func(_ byte, oc *child[V]) {
		if err == nil {
			err = t.validate(oc, depth+1)
		}
	})
	return err
}
