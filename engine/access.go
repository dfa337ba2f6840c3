package engine

import (
	"github.com/vpbank/snmpagent/acl"
	"github.com/vpbank/snmpagent/ber"
	"github.com/vpbank/snmpagent/message"
	"github.com/vpbank/snmpagent/oid"
)

// RegisterScalar binds a ScalarHandler at prefix.
func (e *Engine) RegisterScalar(prefix oid.OID, h ScalarHandler) error {
	return e.tree.Register(prefix, boundHandler{scalar: h})
}

// RegisterTable binds a TableHandler at prefix (the table's column OID;
// individual row indices are not separate tree nodes — the handler owns
// row existence).
func (e *Engine) RegisterTable(prefix oid.OID, h TableHandler) error {
	return e.tree.Register(prefix, boundHandler{table: h})
}

// dispatch routes dg to the handler for its PDU type and mutates
// dg.VarBinds to the response content, returning the protocol error-status
// and 1-based error-index (0 if no error).
func (e *Engine) dispatch(dg *message.Datagram, principal string) (Status, int) {
	switch dg.Header.PDUType {
	case ber.PDUGetRequest:
		return e.processGet(dg, principal)
	case ber.PDUGetNextRequest:
		return e.processGetNext(dg, principal)
	case ber.PDUSetRequest:
		return e.processSet(dg, principal)
	case ber.PDUGetBulkRequest:
		return e.processGetBulk(dg, principal)
	default:
		return StatusGenErr, 0
	}
}

// firstReadableView returns the first view principal has read access
// through. GET-NEXT/GET-BULK search against a single view; a principal
// associated with several read views is filtered by the first one, the
// simplification documented in DESIGN.md. A principal with no read view
// gets an empty view that covers nothing.
func firstReadableView(r *acl.Registry, principal string) *acl.View {
	if v := r.NextView(principal, acl.AccessRead, nil); v != nil {
		return v
	}
	return &acl.View{}
}
