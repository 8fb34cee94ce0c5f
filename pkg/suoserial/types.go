package suoserial

import (
	"io"
)

// Opcode selects the backend operation of an update request.
type Opcode int

// Update request opcodes.
const (
	OpWriteStatus Opcode = iota
	OpWriteMemDev
	OpWritePatchLen
	OpWritePatchData
	OpReadStatus
	OpReadMemInfo
)

// IsRead indicates the opcode is served by Backend.ReadRequest.
func (o Opcode) IsRead() bool {
	return o == OpReadStatus || o == OpReadMemInfo
}

// Sub-protocol verbs.
const (
	VerbWriteStatus = "SUOSERIAL_WRITE_STATUS"
	VerbMemDev      = "SUOSERIAL_MEM_DEV"
	VerbPatchLen    = "SUOSERIAL_PATCH_LEN"
	VerbPatchData   = "SUOSERIAL_PATCH_DATA"
	VerbReadStatus  = "SUOSERIAL_READ_STATUS"
	VerbReadMemInfo = "SUOSERIAL_READ_MEMINFO"
)

var verbOpcodes = map[string]Opcode{
	VerbWriteStatus: OpWriteStatus,
	VerbMemDev:      OpWriteMemDev,
	VerbPatchLen:    OpWritePatchLen,
	VerbPatchData:   OpWritePatchData,
	VerbReadStatus:  OpReadStatus,
	VerbReadMemInfo: OpReadMemInfo,
}

// Verb returns the sub-protocol verb of the opcode.
func (o Opcode) Verb() string {
	for verb, op := range verbOpcodes {
		if op == o {
			return verb
		}
	}
	return ""
}

// OpcodeOf looks up the opcode of a sub-protocol verb.
func OpcodeOf(verb string) (Opcode, bool) {
	op, ok := verbOpcodes[verb]
	return op, ok
}

// Backend consumes decoded update requests.
// Errors should be Status values, anything else is reported as UNKNOWN.
type Backend interface {
	// Init registers the callback receiving status notifications.
	Init(notify func(status string))
	// WriteRequest forwards a write request with the decoded payload.
	WriteRequest(op Opcode, offset, size uint16, data []byte) error
	// ReadRequest answers a read request.
	ReadRequest(op Opcode) (uint32, error)
}

// Transport is the byte stream carrying the protocol.
// Read polls: it returns 0 bytes with a nil or timeout error when nothing
// arrived within the transport's own poll window.
type Transport interface {
	io.ReadWriter
}

// Readier is optionally implemented by a Transport which needs time
// before it can carry data (e.g. waiting for the host to configure USB).
type Readier interface {
	Ready() bool
}

// Watchdog is the liveness supervision suspended while a session runs,
// as the polling loop starves idle monitoring.
type Watchdog interface {
	Suspend()
	Resume()
}
