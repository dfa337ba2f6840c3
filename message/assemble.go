package message

import (
	"fmt"

	"github.com/vpbank/snmpagent/ber"
	"github.com/vpbank/snmpagent/usm"
)

// emitVariable probes and emits v as a standalone TLV.
func emitVariable(v ber.Variable) ([]byte, error) {
	n, berr := ber.ProbeTLV(v)
	if berr != nil {
		return nil, berr
	}
	buf := make([]byte, n)
	if _, berr := ber.EmitTLV(v, buf); berr != nil {
		return nil, berr
	}
	return buf, nil
}

// wrapTLV writes a tag/length header around content and returns the full
// encoding plus the header's length, so callers composing nested structures
// can compute an inner field's absolute offset without re-walking the
// buffer afterward.
func wrapTLV(tag byte, content []byte) ([]byte, int) {
	hn := ber.ProbeHeader(len(content))
	buf := make([]byte, hn+len(content))
	written := ber.EmitHeader(tag, len(content), buf)
	copy(buf[written:], content)
	return buf, written
}

func concatBytes(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func buildVarBindList(vbs []VarBind) ([]byte, error) {
	var content []byte
	for _, vb := range vbs {
		oidBytes, err := emitVariable(ber.NewObjectIdentifier(vb.OID))
		if err != nil {
			return nil, fmt.Errorf("message: encoding varbind oid: %w", err)
		}
		valBytes, err := emitVariable(vb.Var)
		if err != nil {
			return nil, fmt.Errorf("message: encoding varbind value: %w", err)
		}
		entry, _ := wrapTLV(byte(ber.TagSequence), concatBytes(oidBytes, valBytes))
		content = append(content, entry...)
	}
	list, _ := wrapTLV(byte(ber.TagSequence), content)
	return list, nil
}

func buildPDU(hdr Header, vbs []VarBind) ([]byte, error) {
	reqBytes, err := emitVariable(ber.NewInteger(int64(hdr.RequestID)))
	if err != nil {
		return nil, err
	}
	var f2, f3 int64
	if hdr.PDUType == ber.PDUGetBulkRequest {
		f2, f3 = int64(hdr.NonRepeaters), int64(hdr.MaxRepetitions)
	} else {
		f2, f3 = int64(hdr.ErrorStatus), int64(hdr.ErrorIndex)
	}
	f2Bytes, err := emitVariable(ber.NewInteger(f2))
	if err != nil {
		return nil, err
	}
	f3Bytes, err := emitVariable(ber.NewInteger(f3))
	if err != nil {
		return nil, err
	}
	vblBytes, err := buildVarBindList(vbs)
	if err != nil {
		return nil, err
	}
	content := concatBytes(reqBytes, f2Bytes, f3Bytes, vblBytes)
	pdu, _ := wrapTLV(byte(hdr.PDUType), content)
	return pdu, nil
}

// AssembleResponse encodes dg's Header/VarBinds (and, for v3, its security
// envelope) into a wire datagram, re-running USM authentication and
// privacy using dg.AuthKey/PrivKey/AuthMode. The caller is responsible for
// having set Header/VarBinds to the outgoing response content first.
func AssembleResponse(dg *Datagram) ([]byte, error) {
	switch dg.Version {
	case VersionV1, VersionV2c:
		return buildV1V2cMessage(dg)
	case VersionV3:
		return buildV3Message(dg)
	default:
		return nil, fmt.Errorf("message: AssembleResponse: unsupported version %d", dg.Version)
	}
}

func buildV1V2cMessage(dg *Datagram) ([]byte, error) {
	verBytes, err := emitVariable(ber.NewInteger(int64(dg.Version)))
	if err != nil {
		return nil, err
	}
	commBytes, err := emitVariable(ber.NewOctetString([]byte(dg.Community)))
	if err != nil {
		return nil, err
	}
	pduBytes, err := buildPDU(dg.Header, dg.VarBinds)
	if err != nil {
		return nil, err
	}
	content := concatBytes(verBytes, commBytes, pduBytes)
	full, _ := wrapTLV(byte(ber.TagSequence), content)
	return full, nil
}

func buildV3Message(dg *Datagram) ([]byte, error) {
	verBytes, err := emitVariable(ber.NewInteger(int64(dg.Version)))
	if err != nil {
		return nil, err
	}

	msgIDBytes, _ := emitVariable(ber.NewInteger(0))
	maxSizeBytes, _ := emitVariable(ber.NewInteger(65507))
	flagsBytes, err := emitVariable(ber.NewOctetString([]byte{dg.Security.encode()}))
	if err != nil {
		return nil, err
	}
	secModelBytes, _ := emitVariable(ber.NewInteger(3)) // usmSecurityModel
	hdrContent := concatBytes(msgIDBytes, maxSizeBytes, flagsBytes, secModelBytes)
	hdrBytes, _ := wrapTLV(byte(ber.TagSequence), hdrContent)

	pduBytes, err := buildPDU(dg.Header, dg.VarBinds)
	if err != nil {
		return nil, err
	}
	ctxEngBytes, err := emitVariable(ber.NewOctetString(dg.ContextEngineID))
	if err != nil {
		return nil, err
	}
	ctxNameBytes, err := emitVariable(ber.NewOctetString([]byte(dg.ContextName)))
	if err != nil {
		return nil, err
	}
	scopeContent := concatBytes(ctxEngBytes, ctxNameBytes, pduBytes)
	scopeBytes, _ := wrapTLV(byte(ber.TagSequence), scopeContent)

	privParams := make([]byte, 8)
	var msgData []byte
	if dg.Security.Priv {
		cipher, pp, err := usm.Encrypt(dg.PrivKey, uint32(dg.EngineBoots), uint32(dg.EngineTime), scopeBytes)
		if err != nil {
			return nil, fmt.Errorf("message: encrypting scopedPDU: %w", err)
		}
		privParams = pp
		msgData, err = emitVariable(ber.NewOctetString(cipher))
		if err != nil {
			return nil, err
		}
	} else {
		msgData = scopeBytes
	}

	engIDBytes, err := emitVariable(ber.NewOctetString(dg.EngineID))
	if err != nil {
		return nil, err
	}
	bootsBytes, _ := emitVariable(ber.NewInteger(int64(dg.EngineBoots)))
	timeBytes, _ := emitVariable(ber.NewInteger(int64(dg.EngineTime)))
	userBytes, err := emitVariable(ber.NewOctetString([]byte(dg.UserName)))
	if err != nil {
		return nil, err
	}

	authParams := make([]byte, 12)
	prefix := concatBytes(engIDBytes, bootsBytes, timeBytes, userBytes)
	authTLV, authTLVHeaderLen := wrapTLV(byte(ber.TagOctetString), authParams)
	privTLV, _ := wrapTLV(byte(ber.TagOctetString), privParams)
	secContent := concatBytes(prefix, authTLV, privTLV)
	secSeq, secSeqHeaderLen := wrapTLV(byte(ber.TagSequence), secContent)
	secParamsVar, secParamsHeaderLen := wrapTLV(byte(ber.TagOctetString), secSeq)

	content := concatBytes(verBytes, hdrBytes, secParamsVar, msgData)
	full, fullHeaderLen := wrapTLV(byte(ber.TagSequence), content)

	if dg.Security.Auth {
		authOffsetInSecContent := len(prefix) + authTLVHeaderLen
		authOffsetInSecSeq := secSeqHeaderLen + authOffsetInSecContent
		authOffsetInSecParamsVar := secParamsHeaderLen + authOffsetInSecSeq
		authOffsetInContent := len(verBytes) + len(hdrBytes) + authOffsetInSecParamsVar
		authOffsetInFull := fullHeaderLen + authOffsetInContent

		digest, err := usm.Authenticate(dg.AuthKey, dg.AuthMode, full)
		if err != nil {
			return nil, fmt.Errorf("message: authenticating response: %w", err)
		}
		copy(full[authOffsetInFull:authOffsetInFull+12], digest)
	}

	return full, nil
}
