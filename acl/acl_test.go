package acl_test

import (
	"testing"

	"github.com/vpbank/snmpagent/acl"
	"github.com/vpbank/snmpagent/oid"
)

func TestViewCoversTwoSided(t *testing.T) {
	v := &acl.View{Name: "system", Subtrees: []oid.OID{{1, 3, 6, 1, 2, 1, 1}}}
	if !v.Covers(oid.OID{1, 3, 6, 1, 2, 1, 1, 1, 0}) {
		t.Errorf("view should cover a descendant instance oid")
	}
	if !v.Covers(oid.OID{1, 3, 6, 1, 2}) {
		t.Errorf("view should cover an ancestor oid (request oid ahead of view)")
	}
	if v.Covers(oid.OID{1, 3, 6, 1, 4, 1}) {
		t.Errorf("view should not cover an unrelated subtree")
	}
}

func TestRegistryAssociateAndCheck(t *testing.T) {
	r := acl.NewRegistry()
	r.AddCommunity("public")
	r.AddView("system-ro", oid.OID{1, 3, 6, 1, 2, 1, 1})
	if err := r.Associate("system-ro", "public", acl.AccessRead); err != nil {
		t.Fatalf("Associate: %v", err)
	}

	if !r.Check("public", acl.AccessRead, oid.OID{1, 3, 6, 1, 2, 1, 1, 1, 0}) {
		t.Errorf("public should have read access under system-ro")
	}
	if r.Check("public", acl.AccessWrite, oid.OID{1, 3, 6, 1, 2, 1, 1, 1, 0}) {
		t.Errorf("public was never granted write access")
	}
	if r.Check("public", acl.AccessRead, oid.OID{1, 3, 6, 1, 4, 1, 8072}) {
		t.Errorf("public should not have access outside its view")
	}
}

func TestRegistryAssociateUnknownView(t *testing.T) {
	r := acl.NewRegistry()
	if err := r.Associate("nope", "public", acl.AccessRead); err == nil {
		t.Fatal("expected error associating an unknown view")
	}
}

func TestNextViewIteratesInInsertionOrder(t *testing.T) {
	r := acl.NewRegistry()
	r.AddUser("alice")
	r.AddView("a", oid.OID{1, 3, 6, 1, 2, 1, 1})
	r.AddView("b", oid.OID{1, 3, 6, 1, 2, 1, 2})
	r.Associate("a", "alice", acl.AccessRead)
	r.Associate("b", "alice", acl.AccessRead)

	first := r.NextView("alice", acl.AccessRead, nil)
	if first == nil || first.Name != "a" {
		t.Fatalf("first view = %+v, want %q", first, "a")
	}
	second := r.NextView("alice", acl.AccessRead, first)
	if second == nil || second.Name != "b" {
		t.Fatalf("second view = %+v, want %q", second, "b")
	}
	if r.NextView("alice", acl.AccessRead, second) != nil {
		t.Fatalf("expected iteration to end after the last view")
	}
}

func TestUserSecurityLevel(t *testing.T) {
	u := &acl.User{Name: "alice"}
	if u.SecurityLevel() != 0 {
		t.Errorf("no protocols configured should be level 0 (noAuthNoPriv)")
	}
	u.AuthProtocol = acl.AuthSHA1
	if u.SecurityLevel() != 1 {
		t.Errorf("auth only should be level 1 (authNoPriv)")
	}
	u.PrivProtocol = acl.PrivAES
	if u.SecurityLevel() != 2 {
		t.Errorf("auth+priv should be level 2 (authPriv)")
	}
}
