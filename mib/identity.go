package mib

import "fmt"

// EngineID is a validated SNMPv3 msgAuthoritativeEngineID: the RFC 3411 §5
// enterprise format (a 4-byte enterprise number with the high bit forced to
// 1, a format byte, then a label), built so the common case — a 3-byte
// vendor id and a 4-byte label — lands on the 9-byte shape
// original_source/core/snmp.h's snmpv3_engine_id uses.
type EngineID []byte

// NewEngineID builds an EngineID from a vendor (enterprise) id, a format
// byte, and a label. vendorID must fit in 24 bits; label must be at most 27
// bytes, the RFC 3411 bound on the variable part of the enterprise format.
func NewEngineID(vendorID uint32, format byte, label string) (EngineID, error) {
	if vendorID == 0 || vendorID > 0xFFFFFF {
		return nil, fmt.Errorf("mib: NewEngineID: vendor id %#x out of range [1, 0xFFFFFF]", vendorID)
	}
	if len(label) > 27 {
		return nil, fmt.Errorf("mib: NewEngineID: label %q exceeds 27 bytes", label)
	}
	id := make(EngineID, 5+len(label))
	id[0] = 0x80
	id[1] = byte(vendorID >> 16)
	id[2] = byte(vendorID >> 8)
	id[3] = byte(vendorID)
	id[4] = format
	copy(id[5:], label)
	return id, nil
}

// SecurityMode is the uniform v3 security policy applied to every inbound
// request (§"Configuration knobs": no per-user override).
type SecurityMode int

const (
	SecurityModeNone SecurityMode = iota
	SecurityModeRequireAuth
	SecurityModeRequireAuthAndPriv
)

// ParseSecurityMode parses the agentconfig YAML value for security_mode.
func ParseSecurityMode(s string) (SecurityMode, error) {
	switch s {
	case "", "none":
		return SecurityModeNone, nil
	case "require_auth":
		return SecurityModeRequireAuth, nil
	case "require_auth_and_priv":
		return SecurityModeRequireAuthAndPriv, nil
	default:
		return 0, fmt.Errorf("mib: unknown security_mode %q", s)
	}
}
