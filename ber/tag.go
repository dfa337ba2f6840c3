// Package ber implements the subset of ASN.1 Basic Encoding Rules (BER)
// needed by the SNMP wire format: tag/length/value triples for the
// primitive types SNMPv1/v2c/v3 PDUs carry.
//
// Every encodable shape gets a Probe/Emit pair (probe returns the number of
// bytes the encoded form would occupy; emit writes those bytes) because
// outer SEQUENCEs must stamp their own length before their contents are
// known to fit — the "run twice" discipline spec'd for this codec. Decoders
// are the exact inverse and reject malformed input with a distinct *Error
// per failure mode.
package ber

// Tag identifies the wire type of a Variable. Values below NoSuchObject are
// "valid values" that carry an encoded payload; values at or above it are
// sentinels with a zero-length payload (RFC 3416 §4.2.2.2).
type Tag uint8

// Tag constants mirror the ASN.1 tags used on the wire, numerically
// identical to the source implementation's asn1_variable_type enum.
const (
	TagBoolean          Tag = 0x01
	TagInteger          Tag = 0x02
	TagBitString        Tag = 0x03
	TagOctetString      Tag = 0x04
	TagNull             Tag = 0x05
	TagObjectIdentifier Tag = 0x06
	TagSequence         Tag = 0x30
	TagIPAddress        Tag = 0x40
	TagCounter          Tag = 0x41
	TagGauge            Tag = 0x42
	TagTimeTicks        Tag = 0x43
	TagOpaque           Tag = 0x44
	TagCounter64        Tag = 0x46

	TagNoSuchObject   Tag = 0x80
	TagNoSuchInstance Tag = 0x81
	TagEndOfMibView   Tag = 0x82
)

// IsValidValue reports whether tag carries an encoded payload, as opposed to
// being one of the three no-value sentinels.
func (t Tag) IsValidValue() bool {
	return t < TagNoSuchObject
}

// IsSentinel reports whether tag is one of the three exception values a
// search can return in place of a real variable.
func (t Tag) IsSentinel() bool {
	return t == TagNoSuchObject || t == TagNoSuchInstance || t == TagEndOfMibView
}

// String renders a human-readable tag name, useful in logs and test
// failures.
func (t Tag) String() string {
	switch t {
	case TagBoolean:
		return "BOOLEAN"
	case TagInteger:
		return "INTEGER"
	case TagBitString:
		return "BIT STRING"
	case TagOctetString:
		return "OCTET STRING"
	case TagNull:
		return "NULL"
	case TagObjectIdentifier:
		return "OBJECT IDENTIFIER"
	case TagSequence:
		return "SEQUENCE"
	case TagIPAddress:
		return "IpAddress"
	case TagCounter:
		return "Counter32"
	case TagGauge:
		return "Gauge32"
	case TagTimeTicks:
		return "TimeTicks"
	case TagOpaque:
		return "Opaque"
	case TagCounter64:
		return "Counter64"
	case TagNoSuchObject:
		return "noSuchObject"
	case TagNoSuchInstance:
		return "noSuchInstance"
	case TagEndOfMibView:
		return "endOfMibView"
	default:
		return "unknown"
	}
}

// PDU application tags. These share the ASN.1 "context-specific, constructed"
// class (0xA0-0xA8) and identify the outer PDU shape, not a Variable tag.
type PDUType uint8

const (
	PDUGetRequest     PDUType = 0xA0
	PDUGetNextRequest PDUType = 0xA1
	PDUGetResponse    PDUType = 0xA2
	PDUSetRequest     PDUType = 0xA3
	PDUTrapV1         PDUType = 0xA4
	PDUGetBulkRequest PDUType = 0xA5
	PDUInformRequest  PDUType = 0xA6
	PDUTrapV2         PDUType = 0xA7
	PDUReport         PDUType = 0xA8
)

func (t PDUType) String() string {
	switch t {
	case PDUGetRequest:
		return "GetRequest"
	case PDUGetNextRequest:
		return "GetNextRequest"
	case PDUGetResponse:
		return "GetResponse"
	case PDUSetRequest:
		return "SetRequest"
	case PDUTrapV1:
		return "TrapV1"
	case PDUGetBulkRequest:
		return "GetBulkRequest"
	case PDUInformRequest:
		return "InformRequest"
	case PDUTrapV2:
		return "TrapV2"
	case PDUReport:
		return "Report"
	default:
		return "unknown"
	}
}
