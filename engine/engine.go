// Package engine implements the GET/GET-NEXT/SET/GET-BULK request
// processor: parse, authenticate/decrypt, dispatch, assemble,
// authenticate/encrypt, tying together mib, acl, usm, and message.
package engine

import (
	"log/slog"
	"time"

	"github.com/vpbank/snmpagent/acl"
	"github.com/vpbank/snmpagent/audit"
	"github.com/vpbank/snmpagent/ber"
	"github.com/vpbank/snmpagent/mib"
	"github.com/vpbank/snmpagent/message"
	"github.com/vpbank/snmpagent/usm"
)

// boundHandler is the value mib.Tree stores as its opaque Handler: exactly
// one of scalar or table is non-nil.
type boundHandler struct {
	scalar ScalarHandler
	table  TableHandler
}

// Engine answers SNMP requests against a MIB tree and an ACL registry.
// Process is not safe for concurrent overlapping calls by design, mirroring
// the source implementation's single-threaded servicing model; the tree
// and registry each guard their own registration path with a mutex so
// registration and serving can still interleave safely.
type Engine struct {
	tree         *mib.Tree
	registry     *acl.Registry
	engineID     mib.EngineID
	securityMode mib.SecurityMode
	logger       *slog.Logger
	auditSink    *audit.Sink
}

// NewEngine returns an Engine serving tree under the access rules in
// registry, announcing engineID in SNMPv3 responses and enforcing mode
// uniformly across every v3 request. A nil logger installs a no-op
// handler, matching the teacher's constructor convention.
func NewEngine(tree *mib.Tree, registry *acl.Registry, engineID mib.EngineID, mode mib.SecurityMode, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discard{}, nil))
	}
	return &Engine{tree: tree, registry: registry, engineID: engineID, securityMode: mode, logger: logger}
}

// SetAuditSink attaches an optional diagnostics sink; every subsequent
// Process call records one audit.Record, success or drop. A nil sink (the
// default) disables auditing entirely.
func (e *Engine) SetAuditSink(sink *audit.Sink) {
	e.auditSink = sink
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Process handles one inbound datagram, returning the response bytes and
// true if a response should be sent. A malformed, unauthenticated, or
// otherwise silently-dropped datagram (per §5: "a datagram that produces no
// response is silently dropped") returns (nil, false).
func (e *Engine) Process(raw []byte) ([]byte, bool) {
	start := time.Now()

	dg, derr := message.ParseMessage(raw)
	if derr != nil {
		e.logger.Warn("dropping malformed datagram", "error", derr)
		e.audit(audit.Record{Timestamp: start, Dropped: true, ElapsedMS: elapsedMS(start)})
		return nil, false
	}

	principal, ok := e.authenticate(dg)
	if !ok {
		e.audit(audit.Record{
			Timestamp:    start,
			Version:      int32(dg.Version),
			PDUType:      dg.Header.PDUType.String(),
			VarBindCount: len(dg.VarBinds),
			Dropped:      true,
			ElapsedMS:    elapsedMS(start),
		})
		return nil, false
	}

	reqPDUType := dg.Header.PDUType
	reqVarBindCount := len(dg.VarBinds)

	status, errIndex := e.dispatch(dg, principal)
	if dg.Version == message.VersionV1 {
		status = remapV1Status(status)
	}
	dg.Header.PDUType = ber.PDUGetResponse
	dg.Header.ErrorStatus = int32(status)
	dg.Header.ErrorIndex = int32(errIndex)
	if dg.Version == message.VersionV3 {
		dg.EngineID = e.engineID
	}

	resp, err := message.AssembleResponse(dg)
	if err != nil {
		e.logger.Error("failed assembling response", "error", err)
		e.audit(audit.Record{
			Timestamp: start,
			Version:   int32(dg.Version), Principal: principal, PDUType: reqPDUType.String(),
			VarBindCount: reqVarBindCount, Dropped: true, ElapsedMS: elapsedMS(start),
		})
		return nil, false
	}

	e.audit(audit.Record{
		Timestamp:    start,
		Version:      int32(dg.Version),
		Principal:    principal,
		PDUType:      reqPDUType.String(),
		VarBindCount: reqVarBindCount,
		ErrorStatus:  int32(status),
		ErrorIndex:   int32(errIndex),
		ElapsedMS:    elapsedMS(start),
	})
	return resp, true
}

func (e *Engine) audit(rec audit.Record) {
	if e.auditSink == nil {
		return
	}
	if err := e.auditSink.Record(rec); err != nil {
		e.logger.Warn("audit: failed to record", "error", err)
	}
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// authenticate resolves dg's principal name, fills in key material for v3,
// and verifies/decrypts as dg.Security demands. It returns the principal
// name to use for ACL checks and false if the datagram must be dropped.
func (e *Engine) authenticate(dg *message.Datagram) (string, bool) {
	switch dg.Version {
	case message.VersionV1, message.VersionV2c:
		if _, ok := e.registry.Community(dg.Community); !ok {
			e.logger.Warn("unknown community", "community", dg.Community)
			return "", false
		}
		return dg.Community, true
	case message.VersionV3:
		return e.authenticateV3(dg)
	default:
		return "", false
	}
}

func (e *Engine) authenticateV3(dg *message.Datagram) (string, bool) {
	if e.securityMode >= mib.SecurityModeRequireAuth && !dg.Security.Auth {
		e.logger.Warn("rejecting v3 request below configured security_mode", "user", dg.UserName)
		return "", false
	}
	if e.securityMode == mib.SecurityModeRequireAuthAndPriv && !dg.Security.Priv {
		e.logger.Warn("rejecting v3 request below configured security_mode", "user", dg.UserName)
		return "", false
	}

	user, ok := e.registry.User(dg.UserName)
	if !ok {
		e.logger.Warn("unknown user", "user", dg.UserName)
		return "", false
	}
	dg.AuthKey = user.AuthKey
	dg.PrivKey = user.PrivKey
	if user.AuthProtocol == acl.AuthSHA1 {
		dg.AuthMode = usm.AuthModeSHA1
	} else {
		dg.AuthMode = usm.AuthModeMD5
	}

	if dg.Security.Auth {
		msgCopy := append([]byte(nil), dg.RawMessage...)
		if dg.AuthParamOffset >= 0 {
			clear(msgCopy[dg.AuthParamOffset : dg.AuthParamOffset+12]) // builtin clear, zeroes in place
		}
		valid, err := usm.VerifyAuth(dg.AuthKey, dg.AuthMode, msgCopy, dg.AuthParams)
		if err != nil || !valid {
			e.logger.Warn("authentication failed", "user", dg.UserName)
			return "", false
		}
	}

	if dg.Encrypted {
		if derr := message.DecryptScope(dg); derr != nil {
			e.logger.Warn("decryption failed", "user", dg.UserName, "error", derr)
			return "", false
		}
	}
	return dg.UserName, true
}

// remapV1Status implements the REDESIGN FLAG: noAccess and
// authorizationError, which only exist in the v2c error-status space, are
// reported to v1 requesters as noSuchName.
func remapV1Status(s Status) Status {
	if s == StatusNoAccess || s == StatusAuthorizationError {
		return StatusNoSuchName
	}
	return s
}
