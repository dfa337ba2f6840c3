package engine

import (
	"github.com/vpbank/snmpagent/acl"
	"github.com/vpbank/snmpagent/ber"
	"github.com/vpbank/snmpagent/message"
	"github.com/vpbank/snmpagent/mib"
)

// processGet implements the GET-REQUEST operation (§4.6): every varbind is
// read independently; an access failure aborts the whole request with the
// original request varbinds echoed back, per RFC 1905 §4.2.1.
func (e *Engine) processGet(dg *message.Datagram, principal string) (Status, int) {
	reqVarBinds := dg.VarBinds
	respVarBinds := make([]message.VarBind, len(reqVarBinds))

	for i, vb := range reqVarBinds {
		if !e.registry.Check(principal, acl.AccessRead, vb.OID) {
			dg.VarBinds = reqVarBinds
			return StatusNoAccess, i + 1
		}
		res, err := e.tree.Search(vb.OID)
		if err != nil {
			respVarBinds[i] = message.VarBind{OID: vb.OID, Var: ber.NewNoSuchObject()}
			continue
		}
		v, ok := getFromHandler(res)
		if !ok {
			respVarBinds[i] = message.VarBind{OID: vb.OID, Var: ber.NewNoSuchInstance()}
			continue
		}
		respVarBinds[i] = message.VarBind{OID: vb.OID, Var: v}
	}

	dg.VarBinds = respVarBinds
	return StatusNoError, 0
}

func getFromHandler(res *mib.SearchResult) (ber.Variable, bool) {
	bh, ok := res.Handler.(boundHandler)
	if !ok {
		return ber.Variable{}, false
	}
	if bh.scalar != nil {
		return bh.scalar.Get(res.Suffix)
	}
	if bh.table != nil {
		return bh.table.Get(res.Suffix)
	}
	return ber.Variable{}, false
}
