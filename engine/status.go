package engine

// Status is the protocol errorStatus value carried in a response PDU
// (RFC 1905 §3 / RFC 1157 §4.1, combined — this agent accepts v1 requests
// but normalizes certain v2c-only statuses down to their v1 equivalents,
// see the noAccess/authorizationError remap in engine.go).
type Status int32

const (
	StatusNoError Status = 0
	StatusTooBig  Status = 1
	StatusNoSuchName Status = 2
	StatusBadValue   Status = 3
	StatusReadOnly   Status = 4
	StatusGenErr     Status = 5

	StatusNoAccess             Status = 6
	StatusWrongType            Status = 7
	StatusWrongLength          Status = 8
	StatusWrongEncoding        Status = 9
	StatusWrongValue           Status = 10
	StatusNoCreation           Status = 11
	StatusInconsistentValue    Status = 12
	StatusResourceUnavailable  Status = 13
	StatusCommitFailed         Status = 14
	StatusUndoFailed           Status = 15
	StatusAuthorizationError   Status = 16
	StatusNotWritable          Status = 17
	StatusInconsistentName     Status = 18
)
