package engine

import (
	"github.com/vpbank/snmpagent/acl"
	"github.com/vpbank/snmpagent/ber"
	"github.com/vpbank/snmpagent/message"
	"github.com/vpbank/snmpagent/oid"
)

// processGetNext implements GET-NEXT-REQUEST (§4.6): every requested OID is
// replaced by the lexicographic successor's OID and value, or endOfMibView
// if nothing further is visible through the principal's read view.
func (e *Engine) processGetNext(dg *message.Datagram, principal string) (Status, int) {
	view := firstReadableView(e.registry, principal)
	reqVarBinds := dg.VarBinds
	respVarBinds := make([]message.VarBind, len(reqVarBinds))

	for i, vb := range reqVarBinds {
		o, v, ok := e.nextValue(view, vb.OID)
		if !ok {
			respVarBinds[i] = message.VarBind{OID: vb.OID, Var: ber.NewEndOfMibView()}
			continue
		}
		respVarBinds[i] = message.VarBind{OID: o, Var: v}
	}

	dg.VarBinds = respVarBinds
	return StatusNoError, 0
}

// nextValue returns the OID/value pair that lexicographically follows start
// and is covered by view (a nil view means unrestricted). Scalars are
// single-valued: GET-NEXT always moves past them to the tree's next
// registered leaf. Tables are row-major and not represented as individual
// tree nodes, so a start that already falls inside a registered table
// prefix continues that table's walk via TableHandler.Next before the tree
// is consulted for a sibling.
func (e *Engine) nextValue(view *acl.View, start oid.OID) (oid.OID, ber.Variable, bool) {
	if res, err := e.tree.Search(start); err == nil {
		if bh, ok := res.Handler.(boundHandler); ok && bh.table != nil {
			prefix := start[:len(start)-len(res.Suffix)]
			if suffix, v, ok := bh.table.Next(res.Suffix); ok {
				full := oid.Append(prefix, suffix)
				if view == nil || view.Covers(full) {
					return full, v, true
				}
				return e.nextValue(view, full)
			}
			return e.nextFromSibling(view, prefix)
		}
	}
	return e.nextFromSibling(view, start)
}

// nextFromSibling consults the tree for the next registered leaf strictly
// after start, entering it (the first row, for a table) if found.
func (e *Engine) nextFromSibling(view *acl.View, start oid.OID) (oid.OID, ber.Variable, bool) {
	res, err := e.tree.SearchNext(view, start)
	if err != nil {
		return nil, ber.Variable{}, false
	}
	bh, ok := res.Handler.(boundHandler)
	if !ok {
		return nil, ber.Variable{}, false
	}
	if bh.scalar != nil {
		v, ok := bh.scalar.Get(res.Suffix)
		if !ok {
			return e.nextValue(view, res.OID)
		}
		return res.OID, v, true
	}

	suffix, v, ok := bh.table.Next(nil)
	if !ok {
		return e.nextValue(view, res.OID)
	}
	full := oid.Append(res.OID, suffix)
	if view == nil || view.Covers(full) {
		return full, v, true
	}
	return e.nextValue(view, full)
}
