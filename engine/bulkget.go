package engine

import (
	"github.com/vpbank/snmpagent/ber"
	"github.com/vpbank/snmpagent/message"
	"github.com/vpbank/snmpagent/oid"
)

// processGetBulk implements GET-BULK-REQUEST (RFC 3416 §4.2.3, §4.6): the
// first NonRepeaters varbinds are walked once each like GET-NEXT; the
// remaining varbinds are walked up to MaxRepetitions times each, building a
// response that rewrites each repeated varbind's OID to the previous
// repetition's result before asking for the next one. A column that hits
// endOfMibView is never passed to its handler again: while other columns
// still advance it is padded with endOfMibView, and the walk stops after
// the first repetition in which no column advanced, so the response can
// hold fewer than MaxRepetitions rows.
//
// NonRepeaters and MaxRepetitions are kept as distinct header fields rather
// than folded back into ErrorStatus/ErrorIndex, the REDESIGN FLAG decision
// recorded in SPEC_FULL.md.
func (e *Engine) processGetBulk(dg *message.Datagram, principal string) (Status, int) {
	view := firstReadableView(e.registry, principal)
	reqVarBinds := dg.VarBinds

	nonRep := int(dg.Header.NonRepeaters)
	if nonRep < 0 {
		nonRep = 0
	}
	if nonRep > len(reqVarBinds) {
		nonRep = len(reqVarBinds)
	}
	maxRep := int(dg.Header.MaxRepetitions)
	if maxRep < 0 {
		maxRep = 0
	}

	resp := make([]message.VarBind, 0, len(reqVarBinds))

	for i := 0; i < nonRep; i++ {
		o, v, ok := e.nextValue(view, reqVarBinds[i].OID)
		if !ok {
			resp = append(resp, message.VarBind{OID: reqVarBinds[i].OID, Var: ber.NewEndOfMibView()})
			continue
		}
		resp = append(resp, message.VarBind{OID: o, Var: v})
	}

	repeaters := reqVarBinds[nonRep:]
	cursors := make([]oid.OID, len(repeaters))
	done := make([]bool, len(repeaters))
	for i, vb := range repeaters {
		cursors[i] = vb.OID
	}

	for rep := 0; rep < maxRep; rep++ {
		advanced := false
		for i := range repeaters {
			if done[i] {
				resp = append(resp, message.VarBind{OID: repeaters[i].OID, Var: ber.NewEndOfMibView()})
				continue
			}
			o, v, ok := e.nextValue(view, cursors[i])
			if !ok {
				resp = append(resp, message.VarBind{OID: cursors[i], Var: ber.NewEndOfMibView()})
				done[i] = true
				continue
			}
			resp = append(resp, message.VarBind{OID: o, Var: v})
			cursors[i] = o
			advanced = true
		}
		if !advanced {
			break
		}
	}

	dg.VarBinds = resp
	return StatusNoError, 0
}
