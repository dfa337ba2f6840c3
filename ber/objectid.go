package ber

import "github.com/vpbank/snmpagent/oid"

// ProbeObjectID returns the number of content bytes the OBJECT IDENTIFIER
// encoding of o would occupy.
func ProbeObjectID(o oid.OID) (int, *Error) {
	if len(o) == 0 {
		return 0, newErr(ErrOIDEmpty, "OBJECT IDENTIFIER: zero sub-identifiers")
	}
	if len(o) > oid.MaxLen {
		return 0, newErr(ErrOIDLen, "OBJECT IDENTIFIER: %d sub-identifiers exceeds max %d", len(o), oid.MaxLen)
	}
	n := base128Len(uint32(o[0])*40 + subOrZero(o, 1))
	for i := 2; i < len(o); i++ {
		n += base128Len(o[i])
	}
	return n, nil
}

// EmitObjectID writes the OBJECT IDENTIFIER content encoding of o to buf,
// which must be at least the length ProbeObjectID(o) reported, and returns
// the number of bytes written.
//
// The first two sub-identifiers combine into one arc as 40*X+Y (X in
// {0,1,2}); every arc after that is base-128 encoded with the continuation
// bit (0x80) set on every byte but the last.
func EmitObjectID(o oid.OID, buf []byte) int {
	n := emitBase128(uint32(o[0])*40+subOrZero(o, 1), buf)
	for i := 2; i < len(o); i++ {
		n += emitBase128(o[i], buf[n:])
	}
	return n
}

// DecodeObjectID decodes an OBJECT IDENTIFIER content field.
func DecodeObjectID(buf []byte) (oid.OID, *Error) {
	if len(buf) == 0 {
		return nil, newErr(ErrOIDEmpty, "OBJECT IDENTIFIER: zero-length content")
	}
	arcs, err := decodeBase128Arcs(buf)
	if err != nil {
		return nil, err
	}
	if len(arcs) == 0 {
		return nil, newErr(ErrOIDEmpty, "OBJECT IDENTIFIER: no arcs decoded")
	}
	first := arcs[0]
	var x, y uint32
	switch {
	case first < 40:
		x, y = 0, first
	case first < 80:
		x, y = 1, first-40
	default:
		x, y = 2, first-80
	}
	out := make(oid.OID, 0, len(arcs)+1)
	out = append(out, x, y)
	out = append(out, arcs[1:]...)
	if len(out) > oid.MaxLen {
		return nil, newErr(ErrOIDLen, "OBJECT IDENTIFIER: %d sub-identifiers exceeds max %d", len(out), oid.MaxLen)
	}
	return out, nil
}

func subOrZero(o oid.OID, i int) uint32 {
	if i < len(o) {
		return o[i]
	}
	return 0
}

func base128Len(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func emitBase128(v uint32, buf []byte) int {
	n := base128Len(v)
	for i := n - 1; i >= 0; i-- {
		b := byte(v & 0x7F)
		if i != n-1 {
			b |= 0x80
		}
		buf[i] = b
		v >>= 7
	}
	return n
}

func decodeBase128Arcs(buf []byte) ([]uint32, *Error) {
	var arcs []uint32
	var cur uint32
	bytesInArc := 0
	for _, b := range buf {
		if bytesInArc == 0 && b == 0x80 {
			return nil, newErr(ErrOIDForm, "OBJECT IDENTIFIER: non-minimal base-128 arc (leading 0x80)")
		}
		cur = cur<<7 | uint32(b&0x7F)
		bytesInArc++
		if bytesInArc > 5 {
			return nil, newErr(ErrOIDForm, "OBJECT IDENTIFIER: arc exceeds 32 bits")
		}
		if b&0x80 == 0 {
			arcs = append(arcs, cur)
			cur = 0
			bytesInArc = 0
		}
	}
	if bytesInArc != 0 {
		return nil, newErr(ErrOIDForm, "OBJECT IDENTIFIER: truncated final arc")
	}
	return arcs, nil
}
