// Package rbtree implements the RCU-safe, interval-augmented red-black
// tree of spec.md §4.1: an ordered map over opaque key ranges where
// every read (search, interval search, min/max, next/prev) is
// lock-free and wait-free, and every write replaces a small cluster of
// nodes by copy-then-publish instead of mutating the live tree in
// place.
//
// Every node that becomes unreachable — whether removed outright or
// superseded by a fresh copy during a rotation — is retired through an
// rcu.Domain rather than freed directly, so a reader that is mid-walk
// when a write commits never observes a half-built node.
package rbtree

import (
	"sync/atomic"

	"github.com/gaarutyunov/rcuindex/internal/rcuerr"
	"github.com/gaarutyunov/rcuindex/internal/xlog"
	"github.com/gaarutyunov/rcuindex/rcu"
)

type color uint8

const (
	black color = iota
	red
)

// Comparator is a caller-supplied total order over endpoint values, per
// spec.md §6.3.
type Comparator[E any] func(a, b E) int

// node is the internal, arena-free representation of one tree node.
// Every field a concurrent reader might dereference is an atomic slot;
// color and the two bookkeeping-only fields (parent, isLeftChild) are
// written by the writer either before publication or, for the two
// bookkeeping fields, in the "late reparent" window spec.md §4.1.2
// documents as safe because only the update side and next/prev walks
// consult them.
type node[E any, V any] struct {
	begin, end, maxEnd E
	color              color

	parent      atomic.Pointer[node[E, V]]
	isLeftChild atomic.Bool

	left, right atomic.Pointer[node[E, V]]

	// decayNext points at the newest copy of this node once it has
	// been superseded. Writers holding a stale pointer resolve the
	// current version by following this chain; readers never do.
	decayNext atomic.Pointer[node[E, V]]

	value V
}

// Handle is an opaque reference to a tree entry returned by read-side
// operations. It must not be reused across a Remove the way spec.md
// §6.2 describes: search for the current node before removing it.
type Handle[E any, V any] struct {
	n *node[E, V]
}

func (h Handle[E, V]) Begin() E { return h.n.begin }
func (h Handle[E, V]) End() E   { return h.n.end }
func (h Handle[E, V]) Value() V { return h.n.value }

// Tree is one RCU-safe interval tree. The zero value is not usable;
// construct with New.
type Tree[E any, V any] struct {
	cmp    Comparator[E]
	negInf E
	domain *rcu.Domain
	root   atomic.Pointer[node[E, V]]
	nilN   *node[E, V]
}

// New creates an empty tree. negInf must compare less than every
// endpoint value the caller will ever insert — it stands in for the
// "-∞" max_end of an absent subtree (spec.md §3.1).
func New[E any, V any](cmp Comparator[E], negInf E, domain *rcu.Domain) *Tree[E, V] {
	t := &Tree[E, V]{cmp: cmp, negInf: negInf, domain: domain}
	t.nilN = &node[E, V]{begin: negInf, end: negInf, maxEnd: negInf, color: black}
	t.nilN.parent.Store(t.nilN)
	t.nilN.left.Store(t.nilN)
	t.nilN.right.Store(t.nilN)
	t.root.Store(t.nilN)
	return t
}

func (t *Tree[E, V]) latest(n *node[E, V]) *node[E, V] {
	for {
		nx := n.decayNext.Load()
		if nx == nil {
			return n
		}
		n = nx
	}
}

func (t *Tree[E, V]) endOf(n *node[E, V]) E {
	if n == t.nilN {
		return t.negInf
	}
	return n.maxEnd
}

func (t *Tree[E, V]) maxOf(vals ...E) E {
	m := vals[0]
	for _, v := range vals[1:] {
		if t.cmp(v, m) > 0 {
			m = v
		}
	}
	return m
}

func (t *Tree[E, V]) clone(n *node[E, V]) *node[E, V] {
	c := &node[E, V]{begin: n.begin, end: n.end, maxEnd: n.maxEnd, color: n.color, value: n.value}
	c.left.Store(n.left.Load())
	c.right.Store(n.right.Load())
	c.parent.Store(n.parent.Load())
	c.isLeftChild.Store(n.isLeftChild.Load())
	return c
}

func (t *Tree[E, V]) retire(n *node[E, V]) {
	if n == t.nilN {
		return
	}
	t.domain.DeferReclaim(n, func(any) {})
}

func (t *Tree[E, V]) setChild(parent *node[E, V], isLeft bool, child *node[E, V]) {
	if parent == t.nilN {
		t.root.Store(child)
		return
	}
	if isLeft {
		parent.left.Store(child)
	} else {
		parent.right.Store(child)
	}
}

// replace clones n, lets mutate adjust the copy's own fields (never its
// children's identity), publishes the copy into n's parent slot (or
// root), late-reparents n's two children onto the copy, retires n, and
// returns the copy. This is the uniform "modify a published node"
// primitive: a pure recolor or max_end update is exactly a replace.
func (t *Tree[E, V]) replace(n *node[E, V], mutate func(*node[E, V])) *node[E, V] {
	if n == t.nilN {
		return n
	}
	c := t.clone(n)
	mutate(c)
	p := n.parent.Load()
	isLeft := n.isLeftChild.Load()
	t.setChild(p, isLeft, c)
	if l := c.left.Load(); l != t.nilN {
		l.parent.Store(c)
		l.isLeftChild.Store(true)
	}
	if r := c.right.Load(); r != t.nilN {
		r.parent.Store(c)
		r.isLeftChild.Store(false)
	}
	n.decayNext.Store(c)
	t.retire(n)
	return c
}

func setColor[E any, V any](col color) func(*node[E, V]) {
	return func(n *node[E, V]) { n.color = col }
}

// child returns n's left or right child depending on left.
func (t *Tree[E, V]) child(n *node[E, V], left bool) *node[E, V] {
	if left {
		return t.latest(n.left.Load())
	}
	return t.latest(n.right.Load())
}

// rotate performs a left rotation around x when left is true, a right
// rotation otherwise. See leftRotate/rightRotate for the cluster
// protocol (spec.md §4.1.2).
func (t *Tree[E, V]) rotate(x *node[E, V], left bool) *node[E, V] {
	if left {
		return t.leftRotate(x)
	}
	return t.rightRotate(x)
}

// leftRotate rotates x down and its right child y up. x and y are
// copied; the subtree that moves between them (y's old left child) and
// the two subtrees that stay put (x's old left child, y's old right
// child) are reparented onto the copies after the single store that
// publishes the new cluster.
func (t *Tree[E, V]) leftRotate(x *node[E, V]) *node[E, V] {
	y := t.latest(x.right.Load())
	xp := x.parent.Load()
	xIsLeft := x.isLeftChild.Load()

	a := x.left.Load()
	b := y.left.Load()
	c := y.right.Load()

	xc := t.clone(x)
	yc := t.clone(y)

	xc.left.Store(a)
	xc.right.Store(b)
	xc.parent.Store(yc)
	xc.isLeftChild.Store(true)
	xc.maxEnd = t.maxOf(xc.end, t.endOf(a), t.endOf(b))

	yc.left.Store(xc)
	yc.right.Store(c)
	yc.parent.Store(xp)
	yc.isLeftChild.Store(xIsLeft)
	yc.maxEnd = t.maxOf(yc.end, xc.maxEnd, t.endOf(c))

	t.setChild(xp, xIsLeft, yc)

	if a != t.nilN {
		a.parent.Store(xc)
		a.isLeftChild.Store(true)
	}
	if b != t.nilN {
		b.parent.Store(xc)
		b.isLeftChild.Store(false)
	}
	if c != t.nilN {
		c.parent.Store(yc)
		c.isLeftChild.Store(false)
	}

	x.decayNext.Store(xc)
	y.decayNext.Store(yc)
	t.retire(x)
	t.retire(y)
	return yc
}

// rightRotate is the mirror image of leftRotate.
func (t *Tree[E, V]) rightRotate(x *node[E, V]) *node[E, V] {
	y := t.latest(x.left.Load())
	xp := x.parent.Load()
	xIsLeft := x.isLeftChild.Load()

	a := y.left.Load()
	b := y.right.Load()
	c := x.right.Load()

	xc := t.clone(x)
	yc := t.clone(y)

	xc.left.Store(b)
	xc.right.Store(c)
	xc.parent.Store(yc)
	xc.isLeftChild.Store(false)
	xc.maxEnd = t.maxOf(xc.end, t.endOf(b), t.endOf(c))

	yc.left.Store(a)
	yc.right.Store(xc)
	yc.parent.Store(xp)
	yc.isLeftChild.Store(xIsLeft)
	yc.maxEnd = t.maxOf(yc.end, t.endOf(a), xc.maxEnd)

	t.setChild(xp, xIsLeft, yc)

	if a != t.nilN {
		a.parent.Store(yc)
		a.isLeftChild.Store(true)
	}
	if b != t.nilN {
		b.parent.Store(xc)
		b.isLeftChild.Store(true)
	}
	if c != t.nilN {
		c.parent.Store(xc)
		c.isLeftChild.Store(false)
	}

	x.decayNext.Store(xc)
	y.decayNext.Store(yc)
	t.retire(x)
	t.retire(y)
	return yc
}

// propagateMaxEnd walks up from n, copying and republishing each
// ancestor whose max_end needs to change, stopping as soon as one is
// already correct or the root is reached (spec.md §4.1.2).
func (t *Tree[E, V]) propagateMaxEnd(n *node[E, V]) {
	cur := t.latest(n)
	for cur != t.nilN {
		want := t.maxOf(cur.end, t.endOf(t.child(cur, true)), t.endOf(t.child(cur, false)))
		if t.cmp(want, cur.maxEnd) == 0 {
			return
		}
		cur = t.replace(cur, func(c *node[E, V]) { c.maxEnd = want })
		cur = t.latest(cur.parent.Load())
	}
}

// Insert adds a new interval [begin, end) with the given value. Begin
// values must be unique; a colliding insert returns AlreadyExists and
// leaves the tree unchanged.
func (t *Tree[E, V]) Insert(begin, end E, value V) (Handle[E, V], error) {
	var parent *node[E, V] = t.nilN
	cur := t.latest(t.root.Load())
	isLeft := true
	for cur != t.nilN {
		parent = cur
		c := t.cmp(begin, cur.begin)
		switch {
		case c == 0:
			return Handle[E, V]{}, rcuerr.Wrap(rcuerr.AlreadyExists, "rbtree.Insert")
		case c < 0:
			isLeft = true
			cur = t.child(cur, true)
		default:
			isLeft = false
			cur = t.child(cur, false)
		}
	}

	n := &node[E, V]{begin: begin, end: end, maxEnd: end, color: red, value: value}
	n.left.Store(t.nilN)
	n.right.Store(t.nilN)
	n.parent.Store(parent)
	n.isLeftChild.Store(isLeft)

	t.setChild(parent, isLeft, n)

	t.propagateMaxEnd(parent)
	t.insertFixup(n)

	return Handle[E, V]{n: n}, nil
}

func (t *Tree[E, V]) insertFixup(z *node[E, V]) {
	for {
		z = t.latest(z)
		p := t.latest(z.parent.Load())
		if p == t.nilN || p.color == black {
			break
		}
		gp := t.latest(p.parent.Load())
		if gp == t.nilN {
			break
		}
		pIsLeft := p.isLeftChild.Load()

		var uncle *node[E, V]
		if pIsLeft {
			uncle = t.latest(gp.right.Load())
		} else {
			uncle = t.latest(gp.left.Load())
		}

		if uncle != t.nilN && uncle.color == red {
			t.replace(p, setColor[E, V](black))
			t.replace(uncle, setColor[E, V](black))
			gp = t.replace(gp, setColor[E, V](red))
			z = gp
			continue
		}

		zIsLeft := z.isLeftChild.Load()
		if zIsLeft != pIsLeft {
			oldP := p
			t.rotate(p, pIsLeft)
			z = t.latest(oldP)
			p = t.latest(z.parent.Load())
			gp = t.latest(p.parent.Load())
			pIsLeft = p.isLeftChild.Load()
		}

		t.replace(p, setColor[E, V](black))
		gp = t.replace(gp, setColor[E, V](red))
		t.rotate(gp, !pIsLeft)
		break
	}

	root := t.latest(t.root.Load())
	if root != t.nilN && root.color != black {
		t.replace(root, setColor[E, V](black))
	}
}

func (t *Tree[E, V]) transplant(u, v *node[E, V]) {
	p := u.parent.Load()
	isLeft := u.isLeftChild.Load()
	t.setChild(p, isLeft, v)
	if v != t.nilN {
		v.parent.Store(p)
		v.isLeftChild.Store(isLeft)
	}
}

// Remove deletes the entry referenced by h. It is a no-op error if h
// has already been removed.
func (t *Tree[E, V]) Remove(h Handle[E, V]) error {
	z := t.latest(h.n)
	if z == t.nilN {
		return rcuerr.Wrap(rcuerr.NotFound, "rbtree.Remove")
	}
	t.remove(z)
	return nil
}

func (t *Tree[E, V]) remove(z *node[E, V]) {
	yColor := z.color
	var x, xParent *node[E, V]
	var xIsLeft bool
	var moved *node[E, V]

	switch {
	case t.child(z, true) == t.nilN:
		x = t.child(z, false)
		xParent = z.parent.Load()
		xIsLeft = z.isLeftChild.Load()
		t.transplant(z, x)
	case t.child(z, false) == t.nilN:
		x = t.child(z, true)
		xParent = z.parent.Load()
		xIsLeft = z.isLeftChild.Load()
		t.transplant(z, x)
	default:
		y := t.treeMinimum(t.child(z, false))
		yColor = y.color
		x = t.child(y, false)

		if t.latest(y.parent.Load()) == z {
			yNew := t.clone(y)
			yNew.left.Store(z.left.Load())
			yNew.color = z.color
			yNew.maxEnd = z.maxEnd
			t.transplant(z, yNew)
			if l := yNew.left.Load(); l != t.nilN {
				l.parent.Store(yNew)
				l.isLeftChild.Store(true)
			}
			if x != t.nilN {
				x.parent.Store(yNew)
				x.isLeftChild.Store(false)
			}
			y.decayNext.Store(yNew)
			t.retire(y)
			xParent = yNew
			xIsLeft = false
		} else {
			// yNew must be live at z's slot before y is unlinked from w:
			// otherwise a reader crossing z.right->...->w between the two
			// transplants finds y's key reachable from neither z's old
			// position nor yNew's new one. Publishing yNew first makes y
			// briefly reachable via two paths (z.right's untouched subtree,
			// and yNew itself) instead of via none.
			yNew := t.clone(y)
			yNew.left.Store(z.left.Load())
			yNew.right.Store(z.right.Load())
			yNew.color = z.color
			yNew.maxEnd = z.maxEnd
			t.transplant(z, yNew)
			if l := yNew.left.Load(); l != t.nilN {
				l.parent.Store(yNew)
				l.isLeftChild.Store(true)
			}
			if r := yNew.right.Load(); r != t.nilN {
				r.parent.Store(yNew)
				r.isLeftChild.Store(false)
			}
			t.transplant(y, x)
			y.decayNext.Store(yNew)
			t.retire(y)
			moved = yNew
			xParent = t.latest(y.parent.Load())
			xIsLeft = y.isLeftChild.Load()
		}
	}

	// z is genuinely gone, not merely superseded by a fresh copy: point
	// its decay chain at the shared nil sentinel so a stale Handle
	// resolves to t.nilN and a second Remove reports NotFound instead of
	// re-running the delete logic on a detached node.
	z.decayNext.Store(t.nilN)
	t.retire(z)

	if xParent != t.nilN {
		t.propagateMaxEnd(xParent)
	} else {
		t.propagateMaxEnd(t.latest(t.root.Load()))
	}
	if moved != nil {
		// yNew was published carrying z's max_end; the walk up from y's
		// old parent can stop below it, so recompute from yNew as well.
		t.propagateMaxEnd(moved)
	}

	if yColor == black {
		t.removeFixup(x, xParent, xIsLeft)
	}
}

func (t *Tree[E, V]) sibling(parent *node[E, V], xIsLeft bool) *node[E, V] {
	if xIsLeft {
		return t.latest(parent.right.Load())
	}
	return t.latest(parent.left.Load())
}

func (t *Tree[E, V]) near(w *node[E, V], xIsLeft bool) *node[E, V] {
	if xIsLeft {
		return t.latest(w.left.Load())
	}
	return t.latest(w.right.Load())
}

func (t *Tree[E, V]) far(w *node[E, V], xIsLeft bool) *node[E, V] {
	if xIsLeft {
		return t.latest(w.right.Load())
	}
	return t.latest(w.left.Load())
}

func (t *Tree[E, V]) removeFixup(x, parent *node[E, V], xIsLeft bool) {
	for {
		parent = t.latest(parent)
		root := t.latest(t.root.Load())
		if x == root || (x != t.nilN && x.color == red) {
			break
		}
		if parent == t.nilN {
			break
		}

		w := t.sibling(parent, xIsLeft)
		if w.color == red {
			oldParent := parent
			t.replace(w, setColor[E, V](black))
			parent = t.replace(parent, setColor[E, V](red))
			t.rotate(parent, xIsLeft)
			parent = t.latest(oldParent)
			w = t.sibling(parent, xIsLeft)
		}

		nearChild := t.near(w, xIsLeft)
		farChild := t.far(w, xIsLeft)
		nearBlack := nearChild == t.nilN || nearChild.color == black
		farBlack := farChild == t.nilN || farChild.color == black

		if nearBlack && farBlack {
			t.replace(w, setColor[E, V](red))
			newX := parent
			newXIsLeft := parent.isLeftChild.Load()
			newParent := t.latest(parent.parent.Load())
			x = newX
			xIsLeft = newXIsLeft
			parent = newParent
			continue
		}

		if farBlack {
			t.replace(nearChild, setColor[E, V](black))
			w = t.replace(w, setColor[E, V](red))
			t.rotate(w, !xIsLeft)
			w = t.sibling(parent, xIsLeft)
		}

		farChild = t.far(w, xIsLeft)
		parentColor := parent.color
		t.replace(w, func(n *node[E, V]) { n.color = parentColor })
		t.replace(farChild, setColor[E, V](black))
		parent = t.replace(parent, setColor[E, V](black))
		t.rotate(parent, xIsLeft)
		x = t.latest(t.root.Load())
		parent = t.nilN
		break
	}

	if x != t.nilN && x.color != black {
		t.replace(x, setColor[E, V](black))
	}
}

func (t *Tree[E, V]) treeMinimum(n *node[E, V]) *node[E, V] {
	n = t.latest(n)
	for t.child(n, true) != t.nilN {
		n = t.child(n, true)
	}
	return n
}

func (t *Tree[E, V]) treeMaximum(n *node[E, V]) *node[E, V] {
	n = t.latest(n)
	for t.child(n, false) != t.nilN {
		n = t.child(n, false)
	}
	return n
}

// Search returns the first node whose [begin, end) contains point,
// descending via max_end pruning per spec.md §4.1.1. Must be called
// inside an active read section.
func (t *Tree[E, V]) Search(point E) (Handle[E, V], bool) {
	n := t.latest(t.root.Load())
	for n != t.nilN {
		left := t.child(n, true)
		if left != t.nilN && t.cmp(left.maxEnd, point) > 0 {
			n = left
			continue
		}
		if t.cmp(n.begin, point) <= 0 && t.cmp(point, n.end) < 0 {
			return Handle[E, V]{n: n}, true
		}
		if t.cmp(point, n.begin) > 0 {
			n = t.child(n, false)
		} else {
			return Handle[E, V]{}, false
		}
	}
	return Handle[E, V]{}, false
}

// SearchRange finds a node overlapping [begin, end). Per spec.md
// §4.1.1 this assumes the tree holds no partially overlapping ranges
// (nesting is fine); it filters out a hit whose end falls short of the
// requested end.
func (t *Tree[E, V]) SearchRange(begin, end E) (Handle[E, V], bool) {
	h, ok := t.Search(begin)
	if !ok || t.cmp(h.n.end, end) < 0 {
		return Handle[E, V]{}, false
	}
	return h, true
}

// SearchBeginKey performs a classical BST descent on begin only.
func (t *Tree[E, V]) SearchBeginKey(k E) (Handle[E, V], bool) {
	n := t.latest(t.root.Load())
	for n != t.nilN {
		c := t.cmp(k, n.begin)
		switch {
		case c == 0:
			return Handle[E, V]{n: n}, true
		case c < 0:
			n = t.child(n, true)
		default:
			n = t.child(n, false)
		}
	}
	return Handle[E, V]{}, false
}

func (t *Tree[E, V]) Min() (Handle[E, V], bool) {
	root := t.latest(t.root.Load())
	if root == t.nilN {
		return Handle[E, V]{}, false
	}
	return Handle[E, V]{n: t.treeMinimum(root)}, true
}

func (t *Tree[E, V]) Max() (Handle[E, V], bool) {
	root := t.latest(t.root.Load())
	if root == t.nilN {
		return Handle[E, V]{}, false
	}
	return Handle[E, V]{n: t.treeMaximum(root)}, true
}

// Next returns the in-order successor of h. Parent-walking is safe
// here because of the rotation correctness discipline of spec.md
// §4.1.3: every node's parent always agrees with which of its slots
// holds that node.
func (t *Tree[E, V]) Next(h Handle[E, V]) (Handle[E, V], bool) {
	n := t.latest(h.n)
	if r := t.child(n, false); r != t.nilN {
		return Handle[E, V]{n: t.treeMinimum(r)}, true
	}
	for {
		p := t.latest(n.parent.Load())
		if p == t.nilN {
			return Handle[E, V]{}, false
		}
		if n.isLeftChild.Load() {
			return Handle[E, V]{n: p}, true
		}
		n = p
	}
}

// Prev returns the in-order predecessor of h.
func (t *Tree[E, V]) Prev(h Handle[E, V]) (Handle[E, V], bool) {
	n := t.latest(h.n)
	if l := t.child(n, true); l != t.nilN {
		return Handle[E, V]{n: t.treeMaximum(l)}, true
	}
	for {
		p := t.latest(n.parent.Load())
		if p == t.nilN {
			return Handle[E, V]{}, false
		}
		if !n.isLeftChild.Load() {
			return Handle[E, V]{n: p}, true
		}
		n = p
	}
}

// Ascend visits every entry in key order starting from the minimum,
// stopping early if fn returns false.
func (t *Tree[E, V]) Ascend(fn func(Handle[E, V]) bool) {
	h, ok := t.Min()
	for ok {
		if !fn(h) {
			return
		}
		h, ok = t.Next(h)
	}
}

// AscendRange visits every entry whose begin lies in [begin, end) in
// order.
func (t *Tree[E, V]) AscendRange(begin, end E, fn func(Handle[E, V]) bool) {
	h, ok := t.SearchBeginKey(begin)
	if !ok {
		// fall back to the first entry >= begin
		t.Ascend(func(cand Handle[E, V]) bool {
			if t.cmp(cand.Begin(), begin) < 0 {
				return true
			}
			h = cand
			ok = true
			return false
		})
	}
	for ok && t.cmp(h.Begin(), end) < 0 {
		if !fn(h) {
			return
		}
		h, ok = t.Next(h)
	}
}

// Validate walks the whole tree and checks the invariants of spec.md
// §8.1. It must be called with no concurrent writers.
func (t *Tree[E, V]) Validate() error {
	tok := t.domain.ReadLock()
	defer t.domain.ReadUnlock(tok)

	root := t.latest(t.root.Load())
	if root != t.nilN && root.color != black {
		return rcuerr.Wrap(rcuerr.Invalid, "rbtree.Validate: root is red")
	}
	_, _, err := t.validate(root)
	if err != nil {
		xlog.Errf("rbtree: validate failed: %v", err)
	}
	return err
}

// validate returns (black-height, max_end, error) for the subtree
// rooted at n.
func (t *Tree[E, V]) validate(n *node[E, V]) (int, E, error) {
	if n == t.nilN {
		return 1, t.negInf, nil
	}
	if n.color == red {
		l := t.child(n, true)
		r := t.child(n, false)
		if (l != t.nilN && l.color == red) || (r != t.nilN && r.color == red) {
			return 0, t.negInf, rcuerr.Wrap(rcuerr.Invalid, "rbtree.Validate: red node with red child")
		}
	}
	lh, lMax, err := t.validate(t.child(n, true))
	if err != nil {
		return 0, t.negInf, err
	}
	rh, rMax, err := t.validate(t.child(n, false))
	if err != nil {
		return 0, t.negInf, err
	}
	if lh != rh {
		return 0, t.negInf, rcuerr.Wrap(rcuerr.Invalid, "rbtree.Validate: unequal black height")
	}
	want := t.maxOf(n.end, lMax, rMax)
	if t.cmp(want, n.maxEnd) != 0 {
		return 0, t.negInf, rcuerr.Wrap(rcuerr.Invalid, "rbtree.Validate: max_end mismatch")
	}
	bh := lh
	if n.color == black {
		bh++
	}
	return bh, n.maxEnd, nil
}
