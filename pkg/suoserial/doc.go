// Package suoserial provides the serial command and firmware update
// protocol engine.
package suoserial

// The protocol is line oriented and human typable so a terminal can drive
// it as well as a host tool. A session prompts with '>', reads a line,
// splits it on single spaces and runs the matching command. The fwupdate
// command switches the session into the update sub-protocol where every
// line is a fixed 4-field request:
//
//	VERB OFFSET SIZE HEXDATA
//
// HEXDATA is decoded into the work buffer allocated by "alloc" and the
// request is forwarded to a Backend. An empty line leaves the
// sub-protocol.
//
// Producer: host tool (or a human on a terminal)
// Consumer: device session
