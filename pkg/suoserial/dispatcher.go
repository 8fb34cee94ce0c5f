package suoserial

import (
	"io"
	"strconv"

	"github.com/golang/glog"
)

// Top-level commands.
const (
	CmdAlloc     = "alloc"
	CmdBufSize   = "getsuoserialbuffsz"
	CmdFWUpdate  = "fwupdate"
	CmdReadParam = "readsdtparam"
)

func (s *Session) dispatch() sessionState {
	args := s.args
	switch {
	case args[0] == CmdAlloc && len(args) == 2:
		s.alloc(args[1])
	case args[0] == s.Config.BufSizeCommand() && len(args) == 1:
		s.printfln("OK %d", s.Config.BufferSize())
	case args[0] == CmdFWUpdate && len(args) == 1:
		return s.enterUpdate()
	case args[0] == CmdReadParam && len(args) == 1:
		s.readParams()
	default:
		s.printfln("ERROR unrecognised command [%s]", args[0])
		for n := 1; n < len(args); n++ {
			s.printfln("ERROR argument %d = [%s]", n, args[n])
		}
	}
	return statePrompt
}

// alloc always drops the current work buffer, so a failed alloc leaves
// the session without one.
func (s *Session) alloc(arg string) {
	s.release()
	size, err := strconv.ParseUint(arg, 10, 32)
	if err != nil || size == 0 {
		s.printfln("ERROR [%s]=INVALID", arg)
		return
	}
	if max := s.Config.MaxWorkBuffer; max > 0 && size > uint64(max) {
		glog.Warningf("alloc %d exceeds limit %d", size, max)
		s.printfln("ERROR fail to allocate [%s]", arg)
		return
	}
	s.work = make([]byte, size)
	s.printfln("OK")
}

func (s *Session) enterUpdate() sessionState {
	limit := s.Config.UpdateBufferLimit()
	if s.work == nil || len(s.work) > limit {
		s.printfln("ERROR use 'alloc' to define buffer with size <= %d", limit)
		if s.Config.StrictUpdateEntry {
			return statePrompt
		}
	}
	s.printfln("OK")
	glog.V(2).Infof("fwupdate: start, buffer %d", len(s.work))
	return stateUpdate
}

func (s *Session) readParams() {
	if s.Config.Params == nil {
		s.printfln("ERROR fail to read parameters")
		return
	}
	data := make([]byte, s.Config.ParamSize)
	n, err := s.Config.Params.ReadAt(data, 0)
	if n < len(data) || (err != nil && err != io.EOF) {
		glog.Errorf("read parameters: %d bytes, %v", n, err)
		s.printfln("ERROR fail to read parameters")
		return
	}
	for _, b := range data {
		s.printfln("%02x", b)
	}
}
