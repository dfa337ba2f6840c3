// Package mib implements the sparse OID trie the agent serves requests
// against: group nodes branch on one sub-identifier at a time with a sorted
// child array, instance nodes are leaves carrying an opaque Handler.
package mib

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vpbank/snmpagent/acl"
	"github.com/vpbank/snmpagent/oid"
)

// Handler is the opaque token a registered instance carries. The engine
// package defines the concrete ScalarHandler/TableHandler interfaces that
// get stored here; the tree itself never calls into a Handler, it only
// holds and returns it.
type Handler any

// node is either a *groupNode (internal, branches on further sub-ids) or an
// *instanceNode (leaf, carries a Handler).
type node interface {
	subID() uint32
}

type groupNode struct {
	sub      uint32
	children []node // sorted by subID()
}

func (n *groupNode) subID() uint32 { return n.sub }

type instanceNode struct {
	sub     uint32
	handler Handler
}

func (n *instanceNode) subID() uint32 { return n.sub }

// find returns the index of the child with the given sub-id, or the index
// it would be inserted at, and whether it was found.
func (g *groupNode) find(sub uint32) (int, bool) {
	i := sort.Search(len(g.children), func(i int) bool { return g.children[i].subID() >= sub })
	if i < len(g.children) && g.children[i].subID() == sub {
		return i, true
	}
	return i, false
}

func (g *groupNode) insert(i int, n node) {
	g.children = append(g.children, nil)
	copy(g.children[i+1:], g.children[i:])
	g.children[i] = n
}

// Tree is the root of the registered MIB. The zero value is not usable; use
// NewTree.
type Tree struct {
	mu   sync.RWMutex
	root *groupNode
}

// NewTree returns an empty Tree.
func NewTree() *Tree {
	return &Tree{root: &groupNode{}}
}

// SearchResult is returned by Search and SearchNext: the matched OID, its
// registered Handler, and the suffix of the OID below the registration
// prefix (the part a table handler indexes a row by).
type SearchResult struct {
	OID     oid.OID
	Handler Handler
	Suffix  oid.OID
}

// Register binds handler to prefix, creating any intermediate group nodes
// needed. It returns an error if prefix is already registered or if a
// registered ancestor or descendant of prefix would make the tree ambiguous
// (an instance node cannot also be a group node).
func (t *Tree) Register(prefix oid.OID, handler Handler) error {
	if err := prefix.Validate(); err != nil {
		return fmt.Errorf("mib: Register: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.root
	for i, sub := range prefix {
		last := i == len(prefix)-1
		idx, ok := cur.find(sub)
		if ok {
			existing := cur.children[idx]
			if _, isInst := existing.(*instanceNode); isInst {
				if last {
					return fmt.Errorf("mib: Register: %s already registered", prefix)
				}
				return fmt.Errorf("mib: Register: %s is nested under an existing instance", prefix)
			}
			if last {
				return fmt.Errorf("mib: Register: %s already registered as a group", prefix)
			}
			cur = existing.(*groupNode)
			continue
		}
		if last {
			cur.insert(idx, &instanceNode{sub: sub, handler: handler})
			return nil
		}
		g := &groupNode{sub: sub}
		cur.insert(idx, g)
		cur = g
	}
	return nil
}

// Unregister removes the instance node at prefix and prunes every ancestor
// group node the removal leaves without children, so the tree returns to
// the shape it had before the matching Register.
func (t *Tree) Unregister(prefix oid.OID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.root
	var parents []*groupNode
	for i, sub := range prefix {
		idx, ok := cur.find(sub)
		if !ok {
			return fmt.Errorf("mib: Unregister: %s not registered", prefix)
		}
		if i == len(prefix)-1 {
			if _, isInst := cur.children[idx].(*instanceNode); !isInst {
				return fmt.Errorf("mib: Unregister: %s is a group, not an instance", prefix)
			}
			cur.children = append(cur.children[:idx], cur.children[idx+1:]...)
			for j := len(parents) - 1; j >= 0 && len(cur.children) == 0; j-- {
				parent := parents[j]
				pidx, _ := parent.find(cur.sub)
				parent.children = append(parent.children[:pidx], parent.children[pidx+1:]...)
				cur = parent
			}
			return nil
		}
		g, isGroup := cur.children[idx].(*groupNode)
		if !isGroup {
			return fmt.Errorf("mib: Unregister: %s not registered", prefix)
		}
		parents = append(parents, cur)
		cur = g
	}
	return nil
}

// Search performs an exact lookup: o must name a registered instance node,
// or run past one, in which case the remainder is returned as the Suffix
// (a table row index). An o that ends at a group node does not match.
func (t *Tree) Search(o oid.OID) (*SearchResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cur := t.root
	for i, sub := range o {
		idx, ok := cur.find(sub)
		if !ok {
			return nil, fmt.Errorf("mib: Search: %s not found", o)
		}
		if i == len(o)-1 {
			inst, isInst := cur.children[idx].(*instanceNode)
			if !isInst {
				return nil, fmt.Errorf("mib: Search: %s is a group, not an instance", o)
			}
			return &SearchResult{OID: oid.Dup(o), Handler: inst.handler, Suffix: oid.OID{}}, nil
		}
		g, isGroup := cur.children[idx].(*groupNode)
		if !isGroup {
			// o runs past a registered instance: treat the remainder as a
			// table-row suffix under that instance's prefix.
			inst := cur.children[idx].(*instanceNode)
			return &SearchResult{
				OID:     oid.Dup(o),
				Handler: inst.handler,
				Suffix:  oid.Dup(o[i+1:]),
			}, nil
		}
		cur = g
	}
	return nil, fmt.Errorf("mib: Search: %s names a group, not an instance", o)
}

// SearchNext returns the lexicographically smallest registered instance
// whose full OID is strictly greater than start (or the smallest instance
// in the tree if start is empty), optionally restricted to OIDs view
// covers. It walks down to the closest point at or after start, then
// performs an in-order successor walk using a frame stack instead of
// recursion.
func (t *Tree) SearchNext(view *acl.View, start oid.OID) (*SearchResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for {
		full, inst := t.firstInstanceAfter(start)
		if inst == nil {
			return nil, fmt.Errorf("mib: SearchNext: no instance after %s", start)
		}
		if view == nil || view.Covers(full) {
			return &SearchResult{OID: full, Handler: inst.handler, Suffix: oid.OID{}}, nil
		}
		start = full
	}
}

type frame struct {
	g    *groupNode
	path oid.OID // full path to g (g's own sub-id is the last element, root excluded)
	next int     // next child index to descend into for the successor walk
}

// firstInstanceAfter finds the smallest registered instance OID strictly
// greater than start by descending as far as possible along start, then
// walking the remembered frame stack to find the next sibling subtree and
// its leftmost instance descendant.
func (t *Tree) firstInstanceAfter(start oid.OID) (oid.OID, *instanceNode) {
	var stack []frame
	cur := t.root
	var path oid.OID

	for _, sub := range start {
		idx, ok := cur.find(sub)
		if !ok {
			// start does not name a real path past this point; idx is where
			// sub WOULD be inserted, so every existing child at idx..end
			// sorts after sub. Remember this frame starting the successor
			// search at idx, and stop descending.
			stack = append(stack, frame{g: cur, path: oid.Dup(path), next: idx})
			goto walk
		}
		stack = append(stack, frame{g: cur, path: oid.Dup(path), next: idx + 1})
		child := cur.children[idx]
		path = oid.Append(path, oid.OID{sub})
		if _, isInst := child.(*instanceNode); isInst {
			// start names this exact instance (or runs past it); either
			// way its successor is the next sibling in the parent frame
			// already pushed above — a leaf has no children to descend
			// into.
			goto walk
		}
		cur = child.(*groupNode)
	}
	// start exactly named a group node (or was empty): the smallest
	// instance at or under cur that sorts after having matched the whole of
	// start is simply the leftmost descendant of cur.
	stack = append(stack, frame{g: cur, path: oid.Dup(path), next: 0})

walk:
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.g.children) {
			stack = stack[:len(stack)-1]
			continue
		}
		child := top.g.children[top.next]
		top.next++
		childPath := oid.Append(top.path, oid.OID{child.subID()})
		switch n := child.(type) {
		case *instanceNode:
			return childPath, n
		case *groupNode:
			stack = append(stack, frame{g: n, path: childPath, next: 0})
		}
	}
	return nil, nil
}
