package engine

import (
	"github.com/vpbank/snmpagent/acl"
	"github.com/vpbank/snmpagent/message"
)

// processSet implements SET-REQUEST (§4.6): every varbind is written in
// request order; the first access or handler failure aborts the request,
// echoing the original request varbinds back. There is no two-phase
// prepare/commit/undo: each write is applied immediately, so writes made
// for varbinds before the failing one stay applied, and varbinds after it
// are not touched.
func (e *Engine) processSet(dg *message.Datagram, principal string) (Status, int) {
	reqVarBinds := dg.VarBinds
	respVarBinds := make([]message.VarBind, len(reqVarBinds))

	for i, vb := range reqVarBinds {
		if !e.registry.Check(principal, acl.AccessWrite, vb.OID) {
			dg.VarBinds = reqVarBinds
			return StatusNoAccess, i + 1
		}
		res, err := e.tree.Search(vb.OID)
		if err != nil {
			dg.VarBinds = reqVarBinds
			return StatusNoSuchName, i + 1
		}
		bh, ok := res.Handler.(boundHandler)
		if !ok {
			dg.VarBinds = reqVarBinds
			return StatusGenErr, i + 1
		}

		var status Status
		var result = vb.Var
		if bh.scalar != nil {
			result, status = bh.scalar.Set(res.Suffix, vb.Var)
		} else if bh.table != nil {
			result, status = bh.table.Set(res.Suffix, vb.Var)
		} else {
			status = StatusGenErr
		}
		if status != StatusNoError {
			dg.VarBinds = reqVarBinds
			return status, i + 1
		}
		respVarBinds[i] = message.VarBind{OID: vb.OID, Var: result}
	}

	dg.VarBinds = respVarBinds
	return StatusNoError, 0
}
