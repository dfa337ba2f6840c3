// Package message parses and assembles the SNMP datagram wire format: the
// outer envelope (version, community or USM security parameters) and the
// PDU it carries. It stops short of performing authentication or
// decryption itself — those need a resolved key the engine package looks
// up from the ACL registry — but it exposes exactly the bytes and offsets
// (ciphertext, auth-parameter location) that step needs.
package message

import (
	"github.com/vpbank/snmpagent/ber"
	"github.com/vpbank/snmpagent/oid"
	"github.com/vpbank/snmpagent/usm"
)

// Version is the SNMP message version field.
type Version int32

const (
	VersionV1  Version = 0
	VersionV2c Version = 1
	VersionV3  Version = 3
)

// SecurityFlags mirrors the single-byte msgFlags field of a v3 header.
type SecurityFlags struct {
	Auth       bool
	Priv       bool
	Reportable bool
}

func (f SecurityFlags) encode() byte {
	var b byte
	if f.Auth {
		b |= 0x01
	}
	if f.Priv {
		b |= 0x02
	}
	if f.Reportable {
		b |= 0x04
	}
	return b
}

func decodeSecurityFlags(b byte) SecurityFlags {
	return SecurityFlags{Auth: b&0x01 != 0, Priv: b&0x02 != 0, Reportable: b&0x04 != 0}
}

// VarBind is one name/value pair of a PDU's variable-binding list.
type VarBind struct {
	OID oid.OID
	Var ber.Variable
}

// Header is the PDU's own header fields. A GetBulk PDU carries
// NonRepeaters/MaxRepetitions in the same wire slots every other PDU uses
// for ErrorStatus/ErrorIndex (RFC 3416 §4.2.3); the two pairs are kept as
// separate named fields here rather than reusing one pair under two
// meanings, per the non-repeaters/max-repetitions split called out in the
// expanded spec.
type Header struct {
	PDUType        ber.PDUType
	RequestID      int32
	ErrorStatus    int32
	ErrorIndex     int32
	NonRepeaters   int32
	MaxRepetitions int32
}

// Datagram is the fully-framed representation of one inbound (or outbound)
// SNMP message.
type Datagram struct {
	Version Version

	// v1/v2c
	Community string

	// v3
	EngineID    []byte
	EngineBoots int32
	EngineTime  int32
	UserName    string
	Security    SecurityFlags
	ContextEngineID []byte
	ContextName     string

	// Resolved by the engine's authenticate/decrypt step (not by
	// ParseMessage, which has no key material to work with).
	AuthKey  []byte
	PrivKey  []byte
	AuthMode usm.AuthMode

	// RawMessage and AuthParamOffset let a caller re-run HMAC over the
	// whole datagram with the auth-param field zeroed, per usm's
	// zero-then-stamp discipline. AuthParams is the 12 bytes as received.
	RawMessage     []byte
	AuthParamOffset int
	AuthParams      []byte

	// Encrypted is true when the scopedPDU arrived as an encrypted OCTET
	// STRING (the msgFlags.Priv form); in that case Header
	// and VarBinds are unpopulated and CipherText/PrivParams hold the
	// still-encrypted scopedPDU for DecryptScope to resolve.
	Encrypted  bool
	CipherText []byte
	PrivParams []byte

	Header   Header
	VarBinds []VarBind
}

// ParseMessage decodes buf into a Datagram. For v1/v2c and v3-without-
// privacy datagrams the PDU and varbind list are fully decoded; for a
// v3-with-privacy datagram, Encrypted is set and the caller must resolve
// the user's privacy key and call DecryptScope before Header/VarBinds are
// available.
func ParseMessage(buf []byte) (*Datagram, *Error) {
	_, outerLen, outerHeaderLen, berr := ber.DecodeHeader(buf)
	if berr != nil {
		return nil, wrapErr(ErrMessageTruncated, berr, "decoding outer SEQUENCE")
	}
	content := buf[outerHeaderLen : outerHeaderLen+outerLen]

	verVar, n, berr := ber.DecodeTLV(content)
	if berr != nil {
		return nil, wrapErr(ErrMalformedHeader, berr, "decoding version")
	}
	rest := content[n:]
	version := Version(verVar.Int64())

	dg := &Datagram{Version: version, RawMessage: buf}

	switch version {
	case VersionV1, VersionV2c:
		return parseV1V2c(dg, rest)
	case VersionV3:
		return parseV3(dg, rest, outerHeaderLen+n)
	default:
		return nil, newErr(ErrUnsupportedVersion, "unsupported version %d", version)
	}
}

func parseV1V2c(dg *Datagram, rest []byte) (*Datagram, *Error) {
	commVar, n, berr := ber.DecodeTLV(rest)
	if berr != nil {
		return nil, wrapErr(ErrSecurityParams, berr, "decoding community")
	}
	dg.Community = string(commVar.Bytes())

	hdr, varBinds, berr := decodePDU(rest[n:])
	if berr != nil {
		return nil, wrapErr(ErrPDUMalformed, berr, "decoding pdu")
	}
	dg.Header = hdr
	dg.VarBinds = varBinds
	return dg, nil
}

func parseV3(dg *Datagram, rest []byte, offsetSoFar int) (*Datagram, *Error) {
	_, hdrLen, hdrHeaderLen, berr := ber.DecodeHeader(rest)
	if berr != nil {
		return nil, wrapErr(ErrMalformedHeader, berr, "decoding msgGlobalData")
	}
	hdrContent := rest[hdrHeaderLen : hdrHeaderLen+hdrLen]

	_, n1, berr := ber.DecodeTLV(hdrContent) // msgID, unused past parsing
	if berr != nil {
		return nil, wrapErr(ErrMalformedHeader, berr, "decoding msgID")
	}
	_, n2, berr := ber.DecodeTLV(hdrContent[n1:]) // msgMaxSize, unused
	if berr != nil {
		return nil, wrapErr(ErrMalformedHeader, berr, "decoding msgMaxSize")
	}
	flagsVar, n3, berr := ber.DecodeTLV(hdrContent[n1+n2:])
	if berr != nil {
		return nil, wrapErr(ErrMalformedHeader, berr, "decoding msgFlags")
	}
	flagBytes := flagsVar.Bytes()
	if len(flagBytes) != 1 {
		return nil, newErr(ErrMalformedHeader, "msgFlags: length %d, want 1", len(flagBytes))
	}
	dg.Security = decodeSecurityFlags(flagBytes[0])

	_, _, berr = ber.DecodeTLV(hdrContent[n1+n2+n3:]) // msgSecurityModel, unused (USM assumed)
	if berr != nil {
		return nil, wrapErr(ErrMalformedHeader, berr, "decoding msgSecurityModel")
	}

	afterHeaderOffset := offsetSoFar + hdrHeaderLen + hdrLen
	afterHeader := rest[hdrHeaderLen+hdrLen:]
	secVar, n, berr := ber.DecodeTLV(afterHeader)
	if berr != nil {
		return nil, wrapErr(ErrSecurityParams, berr, "decoding msgSecurityParameters")
	}
	// secVar's content (the USM SEQUENCE) starts after its own tag+length
	// header, i.e. n minus the number of content bytes it carries.
	secContentOffset := afterHeaderOffset + (n - len(secVar.Bytes()))
	authOffset, err := parseUSMSecurityParams(dg, secVar.Bytes(), secContentOffset)
	if err != nil {
		return nil, err
	}
	dg.AuthParamOffset = authOffset

	scopeBuf := afterHeader[n:]
	tag, scopeLen, scopeHeaderLen, berr := ber.DecodeHeader(scopeBuf)
	if berr != nil {
		return nil, wrapErr(ErrScopeMalformed, berr, "decoding scopedPDU/encryptedPDU")
	}
	scopeContent := scopeBuf[scopeHeaderLen : scopeHeaderLen+scopeLen]

	if tag == byte(ber.TagOctetString) {
		dg.Encrypted = true
		dg.CipherText = append([]byte(nil), scopeContent...)
		return dg, nil
	}
	return finishScope(dg, scopeContent)
}

// finishScope parses a plaintext scopedPDU's contextEngineID, contextName,
// and inner PDU into dg.
func finishScope(dg *Datagram, scopeContent []byte) (*Datagram, *Error) {
	ctxEngVar, n1, berr := ber.DecodeTLV(scopeContent)
	if berr != nil {
		return nil, wrapErr(ErrScopeMalformed, berr, "decoding contextEngineID")
	}
	ctxNameVar, n2, berr := ber.DecodeTLV(scopeContent[n1:])
	if berr != nil {
		return nil, wrapErr(ErrScopeMalformed, berr, "decoding contextName")
	}
	dg.ContextEngineID = ctxEngVar.Bytes()
	dg.ContextName = string(ctxNameVar.Bytes())

	hdr, varBinds, berr := decodePDU(scopeContent[n1+n2:])
	if berr != nil {
		return nil, wrapErr(ErrPDUMalformed, berr, "decoding pdu")
	}
	dg.Header = hdr
	dg.VarBinds = varBinds
	return dg, nil
}

// DecryptScope finishes parsing a v3-with-privacy Datagram once the
// engine has resolved dg.PrivKey from the ACL registry: it decrypts
// CipherText and parses the resulting scopedPDU.
func DecryptScope(dg *Datagram) *Error {
	if !dg.Encrypted {
		return nil
	}
	plain, err := usm.Decrypt(dg.PrivKey, uint32(dg.EngineBoots), uint32(dg.EngineTime), dg.PrivParams, dg.CipherText)
	if err != nil {
		return wrapErr(ErrDecryptFailed, err, "decrypting scopedPDU")
	}
	tag, scopeLen, scopeHeaderLen, berr := ber.DecodeHeader(plain)
	if berr != nil {
		return wrapErr(ErrScopeMalformed, berr, "decoding decrypted scopedPDU")
	}
	if tag != byte(ber.TagSequence) {
		return newErr(ErrScopeMalformed, "decrypted scopedPDU: tag 0x%02x, want SEQUENCE", tag)
	}
	_, derr := finishScope(dg, plain[scopeHeaderLen:scopeHeaderLen+scopeLen])
	return derr
}

// parseUSMSecurityParams decodes the nested USM SecurityParameters
// SEQUENCE (itself carried as the content of an OCTET STRING) into dg, and
// returns the absolute offset of msgAuthenticationParameters' content
// within dg.RawMessage — contentBase being the absolute offset of content
// itself — so the engine can zero that field in place before re-running
// HMAC over the whole raw datagram.
func parseUSMSecurityParams(dg *Datagram, content []byte, contentBase int) (int, *Error) {
	_, hdrLen, hdrHeaderLen, berr := ber.DecodeHeader(content)
	if berr != nil {
		return 0, wrapErr(ErrSecurityParams, berr, "decoding USM SecurityParameters SEQUENCE")
	}
	bodyBase := contentBase + hdrHeaderLen
	body := content[hdrHeaderLen : hdrHeaderLen+hdrLen]

	engVar, n1, berr := ber.DecodeTLV(body)
	if berr != nil {
		return 0, wrapErr(ErrSecurityParams, berr, "decoding msgAuthoritativeEngineID")
	}
	bootsVar, n2, berr := ber.DecodeTLV(body[n1:])
	if berr != nil {
		return 0, wrapErr(ErrSecurityParams, berr, "decoding msgAuthoritativeEngineBoots")
	}
	timeVar, n3, berr := ber.DecodeTLV(body[n1+n2:])
	if berr != nil {
		return 0, wrapErr(ErrSecurityParams, berr, "decoding msgAuthoritativeEngineTime")
	}
	userVar, n4, berr := ber.DecodeTLV(body[n1+n2+n3:])
	if berr != nil {
		return 0, wrapErr(ErrSecurityParams, berr, "decoding msgUserName")
	}
	authVar, n5, berr := ber.DecodeTLV(body[n1+n2+n3+n4:])
	if berr != nil {
		return 0, wrapErr(ErrSecurityParams, berr, "decoding msgAuthenticationParameters")
	}
	privVar, _, berr := ber.DecodeTLV(body[n1+n2+n3+n4+n5:])
	if berr != nil {
		return 0, wrapErr(ErrSecurityParams, berr, "decoding msgPrivacyParameters")
	}

	dg.EngineID = engVar.Bytes()
	dg.EngineBoots = int32(bootsVar.Int64())
	dg.EngineTime = int32(timeVar.Int64())
	dg.UserName = string(userVar.Bytes())
	dg.AuthParams = authVar.Bytes()
	dg.PrivParams = privVar.Bytes()

	authFieldStart := bodyBase + n1 + n2 + n3 + n4
	authContentOffset := authFieldStart + (n5 - len(dg.AuthParams))
	return authContentOffset, nil
}

func decodePDU(buf []byte) (Header, []VarBind, *ber.Error) {
	tag, length, headerLen, berr := ber.DecodeHeader(buf)
	if berr != nil {
		return Header{}, nil, berr
	}
	content := buf[headerLen : headerLen+length]

	reqVar, n1, berr := ber.DecodeTLV(content)
	if berr != nil {
		return Header{}, nil, berr
	}
	field2Var, n2, berr := ber.DecodeTLV(content[n1:])
	if berr != nil {
		return Header{}, nil, berr
	}
	field3Var, n3, berr := ber.DecodeTLV(content[n1+n2:])
	if berr != nil {
		return Header{}, nil, berr
	}

	hdr := Header{PDUType: ber.PDUType(tag), RequestID: int32(reqVar.Int64())}
	if ber.PDUType(tag) == ber.PDUGetBulkRequest {
		hdr.NonRepeaters = int32(field2Var.Int64())
		hdr.MaxRepetitions = int32(field3Var.Int64())
	} else {
		hdr.ErrorStatus = int32(field2Var.Int64())
		hdr.ErrorIndex = int32(field3Var.Int64())
	}

	varBinds, berr := decodeVarBindList(content[n1+n2+n3:])
	if berr != nil {
		return Header{}, nil, berr
	}
	return hdr, varBinds, nil
}

func decodeVarBindList(buf []byte) ([]VarBind, *ber.Error) {
	_, length, headerLen, berr := ber.DecodeHeader(buf)
	if berr != nil {
		return nil, berr
	}
	content := buf[headerLen : headerLen+length]

	var out []VarBind
	for len(content) > 0 {
		_, vbLen, vbHeaderLen, berr := ber.DecodeHeader(content)
		if berr != nil {
			return nil, berr
		}
		vbBody := content[vbHeaderLen : vbHeaderLen+vbLen]

		oidVar, n, berr := ber.DecodeTLV(vbBody)
		if berr != nil {
			return nil, berr
		}
		valVar, _, berr := ber.DecodeTLV(vbBody[n:])
		if berr != nil {
			return nil, berr
		}
		out = append(out, VarBind{OID: oidVar.ObjectID(), Var: valVar})
		content = content[vbHeaderLen+vbLen:]
	}
	return out, nil
}
