package engine_test

import (
	"sort"
	"testing"

	"github.com/vpbank/snmpagent/acl"
	"github.com/vpbank/snmpagent/ber"
	"github.com/vpbank/snmpagent/engine"
	"github.com/vpbank/snmpagent/message"
	"github.com/vpbank/snmpagent/mib"
	"github.com/vpbank/snmpagent/oid"
	"github.com/vpbank/snmpagent/usm"
)

var (
	sysDescrOID = oid.OID{1, 3, 6, 1, 2, 1, 1, 1, 0}
	sysUpTime   = oid.OID{1, 3, 6, 1, 2, 1, 1, 3, 0}
	ifDescrOID  = oid.OID{1, 3, 6, 1, 2, 1, 2, 2, 1, 2}
)

// constScalar answers every Get with a fixed value and rejects every Set.
type constScalar struct{ v ber.Variable }

func (c constScalar) Get(_ oid.OID) (ber.Variable, bool) { return c.v, true }
func (c constScalar) Set(_ oid.OID, _ ber.Variable) (ber.Variable, engine.Status) {
	return ber.Variable{}, engine.StatusNotWritable
}

// writableScalar stores whatever the last Set call wrote.
type writableScalar struct{ v ber.Variable }

func (w *writableScalar) Get(_ oid.OID) (ber.Variable, bool) { return w.v, true }
func (w *writableScalar) Set(_ oid.OID, v ber.Variable) (ber.Variable, engine.Status) {
	w.v = v
	return v, engine.StatusNoError
}

// fakeIfTable is a two-row table keyed by ifIndex, grounded on the
// row-major TableHandler contract engine/handler.go documents.
type fakeIfTable struct {
	rows map[uint32]string
}

func newFakeIfTable() *fakeIfTable {
	return &fakeIfTable{rows: map[uint32]string{1: "eth0", 2: "eth1"}}
}

func (t *fakeIfTable) sortedIndexes() []uint32 {
	idx := make([]uint32, 0, len(t.rows))
	for k := range t.rows {
		idx = append(idx, k)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	return idx
}

func (t *fakeIfTable) Get(suffix oid.OID) (ber.Variable, bool) {
	if len(suffix) != 1 {
		return ber.Variable{}, false
	}
	name, ok := t.rows[suffix[0]]
	if !ok {
		return ber.Variable{}, false
	}
	return ber.NewOctetString([]byte(name)), true
}

func (t *fakeIfTable) Set(_ oid.OID, _ ber.Variable) (ber.Variable, engine.Status) {
	return ber.Variable{}, engine.StatusNotWritable
}

func (t *fakeIfTable) Next(after oid.OID) (oid.OID, ber.Variable, bool) {
	indexes := t.sortedIndexes()
	var afterIdx uint32
	hasAfter := len(after) == 1
	if hasAfter {
		afterIdx = after[0]
	}
	for _, idx := range indexes {
		if hasAfter && idx <= afterIdx {
			continue
		}
		v, _ := t.Get(oid.OID{idx})
		return oid.OID{idx}, v, true
	}
	return nil, ber.Variable{}, false
}

// testAgent bundles the registrations and view/community/user setup shared
// by most cases below: one read-only "public" view, one read-write v3 user
// "admin" localized against a fixed 9-byte engine id.
type testAgent struct {
	eng      *engine.Engine
	registry *acl.Registry
	engineID mib.EngineID
	wScalar  *writableScalar
}

func newTestAgent(t *testing.T, mode mib.SecurityMode) *testAgent {
	t.Helper()
	tree := mib.NewTree()
	reg := acl.NewRegistry()
	reg.AddCommunity("public")
	reg.AddCommunity("private")
	reg.AddView("full", oid.OID{1, 3, 6, 1, 2, 1})
	if err := reg.Associate("full", "public", acl.AccessRead); err != nil {
		t.Fatalf("Associate public read: %v", err)
	}
	if err := reg.Associate("full", "private", acl.AccessRead); err != nil {
		t.Fatalf("Associate private read: %v", err)
	}
	if err := reg.Associate("full", "private", acl.AccessWrite); err != nil {
		t.Fatalf("Associate private write: %v", err)
	}

	engineID, err := mib.NewEngineID(0x001f88, 1, "test")
	if err != nil {
		t.Fatalf("NewEngineID: %v", err)
	}

	adminKeyAuth, err := usm.LocalizeKey("authpass", engineID, usm.AuthModeSHA1)
	if err != nil {
		t.Fatalf("LocalizeKey auth: %v", err)
	}
	adminKeyPriv, err := usm.LocalizeKey("privpass", engineID, usm.AuthModeSHA1)
	if err != nil {
		t.Fatalf("LocalizeKey priv: %v", err)
	}
	u := reg.AddUser("admin")
	u.AuthProtocol = acl.AuthSHA1
	u.AuthKey = adminKeyAuth
	u.PrivProtocol = acl.PrivAES
	u.PrivKey = adminKeyPriv[:16]
	if err := reg.Associate("full", "admin", acl.AccessRead); err != nil {
		t.Fatalf("Associate admin read: %v", err)
	}
	if err := reg.Associate("full", "admin", acl.AccessWrite); err != nil {
		t.Fatalf("Associate admin write: %v", err)
	}

	eng := engine.NewEngine(tree, reg, engineID, mode, nil)
	if err := eng.RegisterScalar(sysDescrOID, constScalar{v: ber.NewOctetString([]byte("test agent"))}); err != nil {
		t.Fatalf("Register sysDescr: %v", err)
	}
	ws := &writableScalar{v: ber.NewOctetString([]byte("initial"))}
	sysContactOID := oid.OID{1, 3, 6, 1, 2, 1, 1, 4, 0}
	if err := eng.RegisterScalar(sysContactOID, ws); err != nil {
		t.Fatalf("Register sysContact: %v", err)
	}
	if err := eng.RegisterTable(ifDescrOID, newFakeIfTable()); err != nil {
		t.Fatalf("RegisterTable: %v", err)
	}

	return &testAgent{eng: eng, registry: reg, engineID: engineID, wScalar: ws}
}

func buildV2cRequest(pduType ber.PDUType, community string, requestID int32, vbs []message.VarBind, nonRep, maxRep int32) []byte {
	dg := &message.Datagram{
		Version:   message.VersionV2c,
		Community: community,
		Header: message.Header{
			PDUType:        pduType,
			RequestID:      requestID,
			NonRepeaters:   nonRep,
			MaxRepetitions: maxRep,
		},
		VarBinds: vbs,
	}
	raw, err := message.AssembleResponse(dg)
	if err != nil {
		panic(err)
	}
	return raw
}

func TestProcessGetSysDescr(t *testing.T) {
	a := newTestAgent(t, mib.SecurityModeNone)
	raw := buildV2cRequest(ber.PDUGetRequest, "public", 1, []message.VarBind{{OID: sysDescrOID, Var: ber.NewNull()}}, 0, 0)

	resp, ok := a.eng.Process(raw)
	if !ok {
		t.Fatal("expected a response")
	}
	dg, derr := message.ParseMessage(resp)
	if derr != nil {
		t.Fatalf("ParseMessage: %v", derr)
	}
	if dg.Header.ErrorStatus != int32(engine.StatusNoError) {
		t.Fatalf("errorStatus = %d, want 0", dg.Header.ErrorStatus)
	}
	if len(dg.VarBinds) != 1 || string(dg.VarBinds[0].Var.Bytes()) != "test agent" {
		t.Fatalf("varbinds = %+v", dg.VarBinds)
	}
}

func TestProcessGetNextEndOfMibView(t *testing.T) {
	a := newTestAgent(t, mib.SecurityModeNone)
	// The last registered leaf under 1.3.6.1.2.1 is the ifTable; walking
	// past its last row's OID space should report endOfMibView.
	start := oid.OID{1, 3, 6, 1, 2, 1, 2, 2, 1, 2, 2}
	raw := buildV2cRequest(ber.PDUGetNextRequest, "public", 2, []message.VarBind{{OID: start, Var: ber.NewNull()}}, 0, 0)

	resp, ok := a.eng.Process(raw)
	if !ok {
		t.Fatal("expected a response")
	}
	dg, derr := message.ParseMessage(resp)
	if derr != nil {
		t.Fatalf("ParseMessage: %v", derr)
	}
	if len(dg.VarBinds) != 1 || dg.VarBinds[0].Var.Tag != ber.TagEndOfMibView {
		t.Fatalf("expected endOfMibView, got %+v", dg.VarBinds)
	}
}

func TestProcessGetNextWalksIntoTable(t *testing.T) {
	a := newTestAgent(t, mib.SecurityModeNone)
	raw := buildV2cRequest(ber.PDUGetNextRequest, "public", 3, []message.VarBind{{OID: oid.OID{1, 3, 6, 1, 2, 1, 2, 2, 1, 2, 1}, Var: ber.NewNull()}}, 0, 0)

	resp, ok := a.eng.Process(raw)
	if !ok {
		t.Fatal("expected a response")
	}
	dg, derr := message.ParseMessage(resp)
	if derr != nil {
		t.Fatalf("ParseMessage: %v", derr)
	}
	want := oid.OID{1, 3, 6, 1, 2, 1, 2, 2, 1, 2, 2}
	if len(dg.VarBinds) != 1 || !oid.Equal(dg.VarBinds[0].OID, want) {
		t.Fatalf("expected next row oid %s, got %+v", want, dg.VarBinds)
	}
	if string(dg.VarBinds[0].Var.Bytes()) != "eth1" {
		t.Fatalf("value = %q, want eth1", dg.VarBinds[0].Var.Bytes())
	}
}

func TestProcessGetBulkOverTable(t *testing.T) {
	a := newTestAgent(t, mib.SecurityModeNone)
	raw := buildV2cRequest(ber.PDUGetBulkRequest, "public", 4, []message.VarBind{{OID: ifDescrOID, Var: ber.NewNull()}}, 0, 5)

	resp, ok := a.eng.Process(raw)
	if !ok {
		t.Fatal("expected a response")
	}
	dg, derr := message.ParseMessage(resp)
	if derr != nil {
		t.Fatalf("ParseMessage: %v", derr)
	}
	// Two rows, then one endOfMibView marking exhaustion; the walk stops
	// advancing at that point rather than padding out to MaxRepetitions.
	if len(dg.VarBinds) != 3 {
		t.Fatalf("expected 3 varbinds (2 rows + 1 endOfMibView), got %d: %+v", len(dg.VarBinds), dg.VarBinds)
	}
	if string(dg.VarBinds[0].Var.Bytes()) != "eth0" || string(dg.VarBinds[1].Var.Bytes()) != "eth1" {
		t.Fatalf("rows = %+v", dg.VarBinds[:2])
	}
	if dg.VarBinds[2].Var.Tag != ber.TagEndOfMibView {
		t.Fatalf("expected endOfMibView, got %+v", dg.VarBinds[2])
	}
}

func TestProcessSetDeniedByReadOnlyCommunity(t *testing.T) {
	a := newTestAgent(t, mib.SecurityModeNone)
	sysContactOID := oid.OID{1, 3, 6, 1, 2, 1, 1, 4, 0}
	raw := buildV2cRequest(ber.PDUSetRequest, "public", 5, []message.VarBind{{OID: sysContactOID, Var: ber.NewOctetString([]byte("nope"))}}, 0, 0)

	resp, ok := a.eng.Process(raw)
	if !ok {
		t.Fatal("expected a response")
	}
	dg, derr := message.ParseMessage(resp)
	if derr != nil {
		t.Fatalf("ParseMessage: %v", derr)
	}
	if dg.Header.ErrorStatus != int32(engine.StatusNoAccess) {
		t.Fatalf("errorStatus = %d, want noAccess(6)", dg.Header.ErrorStatus)
	}
}

func TestProcessSetSucceedsWithWriteCommunity(t *testing.T) {
	a := newTestAgent(t, mib.SecurityModeNone)
	sysContactOID := oid.OID{1, 3, 6, 1, 2, 1, 1, 4, 0}
	raw := buildV2cRequest(ber.PDUSetRequest, "private", 6, []message.VarBind{{OID: sysContactOID, Var: ber.NewOctetString([]byte("ops@example.com"))}}, 0, 0)

	resp, ok := a.eng.Process(raw)
	if !ok {
		t.Fatal("expected a response")
	}
	dg, derr := message.ParseMessage(resp)
	if derr != nil {
		t.Fatalf("ParseMessage: %v", derr)
	}
	if dg.Header.ErrorStatus != int32(engine.StatusNoError) {
		t.Fatalf("errorStatus = %d, want 0", dg.Header.ErrorStatus)
	}
	if string(a.wScalar.v.Bytes()) != "ops@example.com" {
		t.Fatalf("stored value = %q", a.wScalar.v.Bytes())
	}
}

func TestProcessDropsUnknownCommunity(t *testing.T) {
	a := newTestAgent(t, mib.SecurityModeNone)
	raw := buildV2cRequest(ber.PDUGetRequest, "nope", 7, []message.VarBind{{OID: sysDescrOID, Var: ber.NewNull()}}, 0, 0)

	if _, ok := a.eng.Process(raw); ok {
		t.Fatal("expected unknown community to be silently dropped")
	}
}

func TestProcessDropsUnknownV3User(t *testing.T) {
	a := newTestAgent(t, mib.SecurityModeNone)
	dg := &message.Datagram{
		Version:  message.VersionV3,
		EngineID: a.engineID,
		UserName: "ghost",
		Header:   message.Header{PDUType: ber.PDUGetRequest, RequestID: 8},
		VarBinds: []message.VarBind{{OID: sysDescrOID, Var: ber.NewNull()}},
	}
	raw, err := message.AssembleResponse(dg)
	if err != nil {
		t.Fatalf("AssembleResponse: %v", err)
	}

	if _, ok := a.eng.Process(raw); ok {
		t.Fatal("expected unknown v3 user to be silently dropped")
	}
}

func TestProcessRejectsNoAuthWhenSecurityModeRequiresAuth(t *testing.T) {
	a := newTestAgent(t, mib.SecurityModeRequireAuth)
	dg := &message.Datagram{
		Version:  message.VersionV3,
		EngineID: a.engineID,
		UserName: "admin",
		Header:   message.Header{PDUType: ber.PDUGetRequest, RequestID: 9},
		VarBinds: []message.VarBind{{OID: sysDescrOID, Var: ber.NewNull()}},
	}
	raw, err := message.AssembleResponse(dg)
	if err != nil {
		t.Fatalf("AssembleResponse: %v", err)
	}

	if _, ok := a.eng.Process(raw); ok {
		t.Fatal("expected a noAuthNoPriv request to be dropped under require_auth")
	}
}

func TestProcessV3AuthPrivRoundTrip(t *testing.T) {
	a := newTestAgent(t, mib.SecurityModeRequireAuthAndPriv)

	adminAuthKey, err := usm.LocalizeKey("authpass", a.engineID, usm.AuthModeSHA1)
	if err != nil {
		t.Fatalf("LocalizeKey auth: %v", err)
	}
	adminPrivKey, err := usm.LocalizeKey("privpass", a.engineID, usm.AuthModeSHA1)
	if err != nil {
		t.Fatalf("LocalizeKey priv: %v", err)
	}

	dg := &message.Datagram{
		Version:     message.VersionV3,
		EngineID:    a.engineID,
		EngineBoots: 1,
		EngineTime:  1,
		UserName:    "admin",
		Security:    message.SecurityFlags{Auth: true, Priv: true, Reportable: true},
		AuthKey:     adminAuthKey,
		PrivKey:     adminPrivKey[:16],
		AuthMode:    usm.AuthModeSHA1,
		Header:      message.Header{PDUType: ber.PDUGetRequest, RequestID: 10},
		VarBinds:    []message.VarBind{{OID: sysUpTime, Var: ber.NewNull()}},
	}
	// sysUpTime has no registered handler in this fixture; register one so
	// the round trip has a real value to carry back.
	if err := a.eng.RegisterScalar(sysUpTime, constScalar{v: ber.NewTimeTicks(12345)}); err != nil {
		t.Fatalf("Register sysUpTime: %v", err)
	}
	raw, err := message.AssembleResponse(dg)
	if err != nil {
		t.Fatalf("AssembleResponse: %v", err)
	}

	resp, ok := a.eng.Process(raw)
	if !ok {
		t.Fatal("expected a response to a valid authPriv request")
	}

	respDg, derr := message.ParseMessage(resp)
	if derr != nil {
		t.Fatalf("ParseMessage: %v", derr)
	}
	if !respDg.Encrypted {
		t.Fatal("expected the response to be encrypted")
	}
	respDg.PrivKey = adminPrivKey[:16]
	if derr := message.DecryptScope(respDg); derr != nil {
		t.Fatalf("DecryptScope: %v", derr)
	}
	if respDg.Header.PDUType != ber.PDUGetResponse {
		t.Fatalf("PDUType = %v, want GetResponse", respDg.Header.PDUType)
	}
	if len(respDg.VarBinds) != 1 || respDg.VarBinds[0].Var.Tag != ber.TagTimeTicks {
		t.Fatalf("varbinds = %+v, want one TimeTicks value", respDg.VarBinds)
	}
}
