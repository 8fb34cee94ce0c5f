package suoserial

import (
	"context"
	"errors"
	"strconv"

	"github.com/golang/glog"
)

// Request is a decoded sub-protocol line. Payload aliases the work buffer
// and is only valid until the next request.
type Request struct {
	Opcode  Opcode
	Offset  uint16
	Size    uint16
	Payload []byte
}

func (s *Session) updateStep(ctx context.Context) sessionState {
	line, err := s.reader.ReadLine(ctx, false)
	if err != nil {
		if errors.Is(err, ErrLineOverflow) {
			glog.Warning("fwupdate: line too long, leaving update")
			return statePrompt
		}
		return s.readFailed(ctx, err)
	}
	if line == "" {
		glog.V(2).Info("fwupdate: done")
		return statePrompt
	}
	if !s.handleRequest(line) {
		return statePrompt
	}
	return stateUpdate
}

// handleRequest processes one sub-protocol line. It returns false when the
// line is malformed, which ends the sub-protocol.
func (s *Session) handleRequest(line string) bool {
	args := tokenizeRequest(line)
	if len(args) != 4 {
		s.printfln("ERROR wrong number of parameters! argc=%d. len=%d", len(args), len(line))
		return false
	}
	if s.work == nil {
		s.printfln("ERROR no buffer!")
		return false
	}
	offset, ok := s.parseUint16(args[1])
	if !ok {
		return false
	}
	size, ok := s.parseUint16(args[2])
	if !ok {
		return false
	}
	if int(size) > len(s.work) {
		s.printfln("ERROR out of bounds! (%d > %d buffer)", size, len(s.work))
		return false
	}
	if int(size)*2 != len(args[3]) {
		s.printfln("ERROR size[%d] != string given[slen=%d]", size, len(args[3]))
		return false
	}
	if _, err := DecodeHex(s.work, args[3], s.Config.StrictHex); err != nil {
		var hexErr *HexError
		if errors.As(err, &hexErr) {
			s.printfln("ERROR invalid hex digit at [%d]", hexErr.Offset)
		}
		return false
	}

	req := Request{Offset: offset, Size: size, Payload: s.work[:size]}
	op, known := OpcodeOf(args[0])
	var (
		value uint32
		err   error
	)
	if known {
		req.Opcode = op
		value, err = s.forward(req)
	} else {
		glog.V(2).Infof("fwupdate: what? [%s]", args[0])
		err = StatusRequestNotSupported
	}

	switch {
	case err != nil:
		status := StatusOf(err)
		if status == StatusUnknown {
			glog.Errorf("fwupdate: %s: %v", args[0], err)
		}
		s.printfln("ERROR %s", status)
	case op.IsRead():
		s.printfln("OK %d", value)
	case op != OpWritePatchData:
		s.printfln("OK")
	}
	return true
}

func (s *Session) forward(req Request) (uint32, error) {
	if s.Backend == nil {
		return 0, StatusRequestNotSupported
	}
	if req.Opcode.IsRead() {
		value, err := s.Backend.ReadRequest(req.Opcode)
		glog.V(2).Infof("fwupdate: %s[%04x]", req.Opcode.Verb(), value)
		return value, err
	}
	if req.Opcode != OpWritePatchData {
		glog.V(2).Infof("fwupdate: %s[%s]", req.Opcode.Verb(), EncodeHex(req.Payload))
	}
	return 0, s.Backend.WriteRequest(req.Opcode, req.Offset, req.Size, req.Payload)
}

func (s *Session) parseUint16(arg string) (uint16, bool) {
	v, err := strconv.ParseUint(arg, 10, 16)
	if err != nil {
		s.printfln("ERROR [%s]=INVALID", arg)
		return 0, false
	}
	return uint16(v), true
}
