// Package acl implements the view-based access control model: named MIB
// views built from subtree coverage, and community/user principals that are
// associated with an ordered list of (view, access) pairs rather than
// holding intrusive pointers into the view themselves.
package acl

import (
	"fmt"
	"sync"

	"github.com/vpbank/snmpagent/oid"
)

// Access is the kind of operation a view association grants.
type Access int

const (
	AccessNone Access = iota
	AccessRead
	AccessWrite
)

// AuthProtocol selects the USM authentication hash a User localizes keys
// with.
type AuthProtocol int

const (
	AuthNone AuthProtocol = iota
	AuthMD5
	AuthSHA1
)

// PrivProtocol selects the USM privacy cipher a User localizes keys with.
type PrivProtocol int

const (
	PrivNone PrivProtocol = iota
	PrivAES
)

// View is a named collection of subtrees. An OID is covered by the view if
// any subtree covers it (§4.3's two-sided prefix test, via oid.Covers).
type View struct {
	Name     string
	Subtrees []oid.OID
}

// Covers reports whether o falls under any subtree of v.
func (v *View) Covers(o oid.OID) bool {
	for _, s := range v.Subtrees {
		if oid.Covers(s, o) {
			return true
		}
	}
	return false
}

// Community is an SNMPv1/v2c principal: just a name, security level is
// implicit (noAuthNoPriv).
type Community struct {
	Name string
}

// User is an SNMPv3 principal carrying localized USM key material. Keys are
// nil until agentconfig (or a test) localizes them via usm.LocalizeKey.
type User struct {
	Name         string
	AuthProtocol AuthProtocol
	AuthKey      []byte
	PrivProtocol PrivProtocol
	PrivKey      []byte
}

// SecurityLevel reports the USM security level this user supports.
func (u *User) SecurityLevel() int {
	level := 0
	if u.AuthProtocol != AuthNone {
		level++
		if u.PrivProtocol != PrivNone {
			level++
		}
	}
	return level
}

type association struct {
	view *View
	attr Access
}

// Registry holds every Community, User, and View, plus the associations
// between a principal name and the views it may read or write. Associations
// are stored keyed by principal name rather than as pointers hung off the
// principal or view structs, so a view or principal can be looked up,
// iterated, or replaced independently of the other.
type Registry struct {
	mu          sync.RWMutex
	communities map[string]*Community
	users       map[string]*User
	views       map[string]*View
	assoc       map[string][]association
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		communities: make(map[string]*Community),
		users:       make(map[string]*User),
		views:       make(map[string]*View),
		assoc:       make(map[string][]association),
	}
}

func (r *Registry) AddCommunity(name string) *Community {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Community{Name: name}
	r.communities[name] = c
	return c
}

func (r *Registry) AddUser(name string) *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := &User{Name: name}
	r.users[name] = u
	return u
}

func (r *Registry) AddView(name string, subtrees ...oid.OID) *View {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := &View{Name: name, Subtrees: subtrees}
	r.views[name] = v
	return v
}

func (r *Registry) Community(name string) (*Community, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.communities[name]
	return c, ok
}

func (r *Registry) User(name string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[name]
	return u, ok
}

func (r *Registry) View(name string) (*View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[name]
	return v, ok
}

// Associate grants principalName access attr to view viewName, appending to
// that principal's ordered association list. Both Registry.NextView and
// Registry.Check walk this single list, so there is exactly one place the
// link between a principal and a view is recorded.
func (r *Registry) Associate(viewName, principalName string, attr Access) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[viewName]
	if !ok {
		return fmt.Errorf("acl: Associate: unknown view %q", viewName)
	}
	r.assoc[principalName] = append(r.assoc[principalName], association{view: v, attr: attr})
	return nil
}

// NextView iterates the views associated with principal at access level attr,
// in the order they were Associate'd. A nil cursor returns the first
// matching view; passing a previously returned View returns the one after
// it; returning past the end yields nil.
func (r *Registry) NextView(principal string, attr Access, cursor *View) *View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.assoc[principal]
	seenCursor := cursor == nil
	for _, a := range list {
		if a.attr != attr {
			continue
		}
		if seenCursor {
			return a.view
		}
		if a.view == cursor {
			seenCursor = true
		}
	}
	return nil
}

// Check reports whether principal has attr access to o: true if any of its
// associated views at that access level covers o.
func (r *Registry) Check(principal string, attr Access, o oid.OID) bool {
	for v := r.NextView(principal, attr, nil); v != nil; v = r.NextView(principal, attr, v) {
		if v.Covers(o) {
			return true
		}
	}
	return false
}
