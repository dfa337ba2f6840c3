package engine

import (
	"github.com/vpbank/snmpagent/ber"
	"github.com/vpbank/snmpagent/oid"
)

// ScalarHandler backs a single registered MIB instance (a scalar object, or
// a single conceptual row-less leaf). This is the idiomatic Go replacement
// for the source implementation's Lua-callback registration: a handler
// token the engine calls into by interface, not by invoking an embedded
// scripting runtime.
type ScalarHandler interface {
	// Get returns the current value. ok is false if the instance has no
	// value right now (the engine reports noSuchInstance).
	Get(suffix oid.OID) (v ber.Variable, ok bool)
	// Set stores v, returning the stored value and StatusNoError on
	// success, or the Status describing why the write was rejected.
	Set(suffix oid.OID, v ber.Variable) (ber.Variable, Status)
}

// TableHandler backs a registered table subtree. Next walks row-major: the
// row suffix itself is the position, threaded through a single GET-NEXT or
// GET-BULK repetition chain by the bridge and never stored by the handler
// between datagrams (§4.7's "stateful across a single GET-NEXT walk... no
// state between datagrams" rule) — a nil/empty after starts at the first
// row.
type TableHandler interface {
	Get(suffix oid.OID) (v ber.Variable, ok bool)
	Set(suffix oid.OID, v ber.Variable) (ber.Variable, Status)
	Next(after oid.OID) (suffix oid.OID, v ber.Variable, ok bool)
}
