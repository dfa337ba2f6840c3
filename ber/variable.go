package ber

import (
	"fmt"

	"github.com/vpbank/snmpagent/oid"
)

// Variable is a tagged SNMP value: the wire Tag plus a Go value whose
// concrete type depends on the tag (int64 for INTEGER/Counter/Gauge/
// TimeTicks/Counter64, []byte for OCTET STRING/Opaque, [4]byte for
// IpAddress, oid.OID for OBJECT IDENTIFIER, nil for NULL and the sentinels).
type Variable struct {
	Tag   Tag
	Value any
}

func NewInteger(v int64) Variable     { return Variable{Tag: TagInteger, Value: v} }
func NewOctetString(v []byte) Variable { return Variable{Tag: TagOctetString, Value: v} }
func NewNull() Variable               { return Variable{Tag: TagNull, Value: nil} }
func NewObjectIdentifier(v oid.OID) Variable {
	return Variable{Tag: TagObjectIdentifier, Value: v}
}
func NewIPAddress(v [4]byte) Variable { return Variable{Tag: TagIPAddress, Value: v} }
func NewCounter(v uint32) Variable    { return Variable{Tag: TagCounter, Value: int64(v)} }
func NewGauge(v uint32) Variable      { return Variable{Tag: TagGauge, Value: int64(v)} }
func NewTimeTicks(v uint32) Variable  { return Variable{Tag: TagTimeTicks, Value: int64(v)} }
func NewOpaque(v []byte) Variable     { return Variable{Tag: TagOpaque, Value: v} }
func NewCounter64(v uint64) Variable  { return Variable{Tag: TagCounter64, Value: int64(v)} }

func NewNoSuchObject() Variable   { return Variable{Tag: TagNoSuchObject} }
func NewNoSuchInstance() Variable { return Variable{Tag: TagNoSuchInstance} }
func NewEndOfMibView() Variable   { return Variable{Tag: TagEndOfMibView} }

// ProbeValue returns the content length of v's tagged payload.
func ProbeValue(v Variable) (int, *Error) {
	switch v.Tag {
	case TagBoolean:
		return 1, nil
	case TagInteger:
		return ProbeInteger(v.Value.(int64)), nil
	case TagCounter, TagGauge, TagTimeTicks, TagCounter64:
		return ProbeUnsignedInteger(uint64(v.Value.(int64))), nil
	case TagOctetString, TagOpaque:
		return ProbeOctetString(v.Value.([]byte)), nil
	case TagIPAddress:
		return 4, nil
	case TagNull:
		return 0, nil
	case TagObjectIdentifier:
		return ProbeObjectID(v.Value.(oid.OID))
	case TagNoSuchObject, TagNoSuchInstance, TagEndOfMibView:
		return 0, nil
	default:
		return 0, newErr(ErrUnsupportedTag, "ProbeValue: unsupported tag %s", v.Tag)
	}
}

// EmitValue writes v's content bytes (not the tag or length header) to buf.
func EmitValue(v Variable, buf []byte) (int, *Error) {
	switch v.Tag {
	case TagBoolean:
		if v.Value.(bool) {
			buf[0] = 0xFF
		} else {
			buf[0] = 0x00
		}
		return 1, nil
	case TagInteger:
		return EmitInteger(v.Value.(int64), buf), nil
	case TagCounter, TagGauge, TagTimeTicks, TagCounter64:
		return EmitUnsignedInteger(uint64(v.Value.(int64)), buf), nil
	case TagOctetString, TagOpaque:
		return EmitOctetString(v.Value.([]byte), buf), nil
	case TagIPAddress:
		addr := v.Value.([4]byte)
		return copy(buf, addr[:]), nil
	case TagNull, TagNoSuchObject, TagNoSuchInstance, TagEndOfMibView:
		return 0, nil
	case TagObjectIdentifier:
		return EmitObjectID(v.Value.(oid.OID), buf), nil
	default:
		return 0, newErr(ErrUnsupportedTag, "EmitValue: unsupported tag %s", v.Tag)
	}
}

// DecodeValue decodes a tagged content field into a Variable.
func DecodeValue(tag Tag, content []byte) (Variable, *Error) {
	switch tag {
	case TagBoolean:
		if len(content) != 1 {
			return Variable{}, newErr(ErrLengthMismatch, "BOOLEAN: content length %d, want 1", len(content))
		}
		return Variable{Tag: tag, Value: content[0] != 0x00}, nil
	case TagInteger:
		v, err := DecodeInteger(content)
		if err != nil {
			return Variable{}, err
		}
		return Variable{Tag: tag, Value: v}, nil
	case TagCounter, TagGauge, TagTimeTicks, TagCounter64:
		v, err := DecodeUnsignedInteger(content)
		if err != nil {
			return Variable{}, err
		}
		return Variable{Tag: tag, Value: int64(v)}, nil
	case TagOctetString, TagOpaque:
		v, err := DecodeOctetString(content)
		if err != nil {
			return Variable{}, err
		}
		return Variable{Tag: tag, Value: v}, nil
	case TagIPAddress:
		v, err := DecodeIPAddress(content)
		if err != nil {
			return Variable{}, err
		}
		return Variable{Tag: tag, Value: v}, nil
	case TagNull, TagNoSuchObject, TagNoSuchInstance, TagEndOfMibView:
		if len(content) != 0 {
			return Variable{}, newErr(ErrLengthMismatch, "%s: non-empty content", tag)
		}
		return Variable{Tag: tag}, nil
	case TagObjectIdentifier:
		v, err := DecodeObjectID(content)
		if err != nil {
			return Variable{}, err
		}
		return Variable{Tag: tag, Value: v}, nil
	default:
		return Variable{}, newErr(ErrUnsupportedTag, "DecodeValue: unsupported tag 0x%02x", uint8(tag))
	}
}

// Int64 returns v's value as int64, panicking if v does not carry an integer
// family tag. Callers that branch on Tag first never hit the panic.
func (v Variable) Int64() int64 {
	i, ok := v.Value.(int64)
	if !ok {
		panic(fmt.Sprintf("ber: Variable tag %s has no int64 value", v.Tag))
	}
	return i
}

// Uint64 returns v's value reinterpreted as uint64, for the unsigned
// families (Counter/Gauge/TimeTicks/Counter64) where Int64 would render a
// top-half Counter64 value as a negative number.
func (v Variable) Uint64() uint64 {
	return uint64(v.Int64())
}

// Bytes returns v's value as []byte, panicking if v does not carry an
// OCTET STRING or Opaque tag.
func (v Variable) Bytes() []byte {
	b, ok := v.Value.([]byte)
	if !ok {
		panic(fmt.Sprintf("ber: Variable tag %s has no []byte value", v.Tag))
	}
	return b
}

// ObjectID returns v's value as an oid.OID, panicking if v is not an
// OBJECT IDENTIFIER.
func (v Variable) ObjectID() oid.OID {
	o, ok := v.Value.(oid.OID)
	if !ok {
		panic(fmt.Sprintf("ber: Variable tag %s has no OID value", v.Tag))
	}
	return o
}
