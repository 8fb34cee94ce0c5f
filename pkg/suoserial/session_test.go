package suoserial

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type backendCall struct {
	Op     Opcode
	Offset uint16
	Size   uint16
	Data   []byte
}

type fakeBackend struct {
	calls    []backendCall
	status   uint32
	writeErr error
	readErr  error
	notify   func(string)
}

func (b *fakeBackend) Init(notify func(string)) {
	b.notify = notify
}

func (b *fakeBackend) WriteRequest(op Opcode, offset, size uint16, data []byte) error {
	b.calls = append(b.calls, backendCall{Op: op, Offset: offset, Size: size, Data: append([]byte(nil), data...)})
	if b.notify != nil && op == OpWriteMemDev {
		b.notify("IMG_STARTED")
	}
	return b.writeErr
}

func (b *fakeBackend) ReadRequest(op Opcode) (uint32, error) {
	b.calls = append(b.calls, backendCall{Op: op})
	return b.status, b.readErr
}

type fakeWatchdog struct {
	events []string
}

func (w *fakeWatchdog) Suspend() { w.events = append(w.events, "suspend") }
func (w *fakeWatchdog) Resume()  { w.events = append(w.events, "resume") }

type sessionTestEnv struct {
	t         *testing.T
	transport *scriptTransport
	backend   *fakeBackend
	session   *Session
}

func newSessionTestEnv(t *testing.T, input string) *sessionTestEnv {
	env := &sessionTestEnv{
		t:         t,
		transport: newScript(input),
		backend:   &fakeBackend{status: 0x10},
	}
	env.session = NewSession(env.transport, env.backend)
	env.session.Config.PollInterval = 0
	return env
}

func (e *sessionTestEnv) run() string {
	require.NoError(e.t, e.session.Run(context.Background()))
	return e.transport.written()
}

// responses extracts response lines, dropping prompts and echoes.
func (e *sessionTestEnv) responses() []string {
	var lines []string
	for _, line := range strings.Split(e.run(), ResponseEnding) {
		if i := strings.LastIndex(line, "\r\n"); i >= 0 {
			line = line[i+2:]
		}
		if line = strings.Trim(line, ">\r\n"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestSessionUpdateScenario(t *testing.T) {
	env := newSessionTestEnv(t, "alloc 2048\nfwupdate\nSUOSERIAL_PATCH_LEN 0 2 0800\n\n")
	out := env.run()
	require.Equal(t, ">alloc 2048\r\nOK\n\r>fwupdate\r\nOK\n\rOK\n\r\n>", out)
	require.Equal(t, []backendCall{{Op: OpWritePatchLen, Size: 2, Data: []byte{0x08, 0x00}}}, env.backend.calls)
	require.Nil(t, env.session.work)
}

func TestSessionCommands(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		setup  func(*sessionTestEnv)
		expect []string
	}{
		{
			name:   "alloc zero",
			input:  "alloc 0\n",
			expect: []string{"ERROR [0]=INVALID"},
		},
		{
			name:   "alloc not a number",
			input:  "alloc abc\n",
			expect: []string{"ERROR [abc]=INVALID"},
		},
		{
			name:   "alloc too large",
			input:  "alloc 1000000\n",
			expect: []string{"ERROR fail to allocate [1000000]"},
		},
		{
			name:   "buffer size",
			input:  "getsuoserialbuffsz\n",
			expect: []string{"OK 4096"},
		},
		{
			name:  "buffer size on usb",
			input: ">getsuoserialbuffsz\ngetsuoserialbuffsz\n",
			setup: func(e *sessionTestEnv) {
				e.session.Config.Variant = VariantUSB
			},
			expect: []string{"OK 4096", "ERROR unrecognised command [getsuoserialbuffsz]"},
		},
		{
			name:   "unrecognised",
			input:  "flash now please\n",
			expect: []string{"ERROR unrecognised command [flash]", "ERROR argument 1 = [now]", "ERROR argument 2 = [please]"},
		},
		{
			name:   "wrong argc",
			input:  "alloc\n",
			expect: []string{"ERROR unrecognised command [alloc]"},
		},
		{
			name:   "alloc with space run",
			input:  "alloc  2048\n",
			expect: []string{"OK"},
		},
		{
			name:   "fwupdate with trailing space",
			input:  "alloc 4\nfwupdate \nSUOSERIAL_WRITE_STATUS  0 1 01\nSUOSERIAL_READ_STATUS  0 0 \n",
			expect: []string{"OK", "OK", "OK", "OK 16"},
		},
		{
			name:   "empty lines",
			input:  "\n\n\n",
			expect: nil,
		},
		{
			name:   "fwupdate without buffer proceeds",
			input:  "fwupdate\nSUOSERIAL_READ_STATUS 0 0 \n",
			expect: []string{"ERROR use 'alloc' to define buffer with size <= 2064", "OK", "ERROR no buffer!"},
		},
		{
			name:  "fwupdate strict entry",
			input: "fwupdate\ngetsuoserialbuffsz\n",
			setup: func(e *sessionTestEnv) {
				e.session.Config.StrictUpdateEntry = true
			},
			expect: []string{"ERROR use 'alloc' to define buffer with size <= 2064", "OK 4096"},
		},
		{
			name:   "fwupdate oversized buffer proceeds",
			input:  "alloc 4096\nfwupdate\n\n",
			expect: []string{"OK", "ERROR use 'alloc' to define buffer with size <= 2064", "OK"},
		},
		{
			name:   "patch data is silent",
			input:  "alloc 4\nfwupdate\nSUOSERIAL_PATCH_DATA 0 4 0102AABB\n\n",
			expect: []string{"OK", "OK"},
		},
		{
			name:   "read status with empty hexdata",
			input:  "alloc 4\nfwupdate\nSUOSERIAL_READ_STATUS 0 0 \n",
			expect: []string{"OK", "OK", "OK 16"},
		},
		{
			name:   "read meminfo",
			input:  "alloc 4\nfwupdate\nSUOSERIAL_READ_MEMINFO 0 0 \n",
			expect: []string{"OK", "OK", "OK 16"},
		},
		{
			name:   "stray token aborts update",
			input:  "alloc 4\nfwupdate\nSUOSERIAL_WRITE_STATUS 0 2 AAFF x\ngetsuoserialbuffsz\n",
			expect: []string{"OK", "OK", "ERROR wrong number of parameters! argc=5. len=33", "OK 4096"},
		},
		{
			name:   "out of bounds",
			input:  "alloc 1\nfwupdate\nSUOSERIAL_WRITE_STATUS 0 2 AAFF\n",
			expect: []string{"OK", "OK", "ERROR out of bounds! (2 > 1 buffer)"},
		},
		{
			name:   "size mismatch",
			input:  "alloc 4\nfwupdate\nSUOSERIAL_WRITE_STATUS 0 2 AAF\n",
			expect: []string{"OK", "OK", "ERROR size[2] != string given[slen=3]"},
		},
		{
			name:   "invalid size",
			input:  "alloc 4\nfwupdate\nSUOSERIAL_WRITE_STATUS 0 x AAFF\n",
			expect: []string{"OK", "OK", "ERROR [x]=INVALID"},
		},
		{
			name:   "invalid hex",
			input:  "alloc 4\nfwupdate\nSUOSERIAL_WRITE_STATUS 0 2 AAFG\n",
			expect: []string{"OK", "OK", "ERROR invalid hex digit at [3]"},
		},
		{
			name:  "permissive hex",
			input: "alloc 4\nfwupdate\nSUOSERIAL_WRITE_STATUS 0 2 AAFG\n",
			setup: func(e *sessionTestEnv) {
				e.session.Config.StrictHex = false
			},
			expect: []string{"OK", "OK", "OK"},
		},
		{
			name:   "unknown verb",
			input:  "alloc 4\nfwupdate\nSUOSERIAL_GPIO_MAP 0 0 \nSUOSERIAL_READ_STATUS 0 0 \n",
			expect: []string{"OK", "OK", "ERROR REQUEST_NOT_SUPPORTED", "OK 16"},
		},
		{
			name:  "backend error",
			input: "alloc 4\nfwupdate\nSUOSERIAL_PATCH_LEN 0 2 0008\n",
			setup: func(e *sessionTestEnv) {
				e.backend.writeErr = StatusApplicationError
			},
			expect: []string{"OK", "OK", "ERROR APPLICATION_ERROR"},
		},
		{
			name:  "backend foreign error",
			input: "alloc 4\nfwupdate\nSUOSERIAL_READ_STATUS 0 0 \n",
			setup: func(e *sessionTestEnv) {
				e.backend.readErr = errors.New("disk on fire")
			},
			expect: []string{"OK", "OK", "ERROR UNKNOWN"},
		},
		{
			name:   "backend notification",
			input:  "alloc 4\nfwupdate\nSUOSERIAL_MEM_DEV 0 4 00000013\n",
			expect: []string{"OK", "OK", "INFO IMG_STARTED", "OK"},
		},
		{
			name:  "read parameters",
			input: "readsdtparam\n",
			setup: func(e *sessionTestEnv) {
				e.session.Config.Params = bytes.NewReader([]byte{0x01, 0xab, 0xff})
				e.session.Config.ParamSize = 3
			},
			expect: []string{"01", "ab", "ff"},
		},
		{
			name:   "read parameters without partition",
			input:  "readsdtparam\n",
			expect: []string{"ERROR fail to read parameters"},
		},
		{
			name:  "read parameters short partition",
			input: "readsdtparam\n",
			setup: func(e *sessionTestEnv) {
				e.session.Config.Params = bytes.NewReader([]byte{0x01})
			},
			expect: []string{"ERROR fail to read parameters"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newSessionTestEnv(t, tc.input)
			if tc.setup != nil {
				tc.setup(env)
			}
			require.Equal(t, tc.expect, env.responses())
		})
	}
}

func TestSessionPatchDataPayload(t *testing.T) {
	env := newSessionTestEnv(t, "alloc 4\nfwupdate\nSUOSERIAL_PATCH_DATA 0 4 0102AABB\nSUOSERIAL_PATCH_DATA 4 2 ccdd\n\n")
	env.run()
	require.Equal(t, []backendCall{
		{Op: OpWritePatchData, Offset: 0, Size: 4, Data: []byte{0x01, 0x02, 0xaa, 0xbb}},
		{Op: OpWritePatchData, Offset: 4, Size: 2, Data: []byte{0xcc, 0xdd}},
	}, env.backend.calls)
}

func TestSessionResponseTruncated(t *testing.T) {
	arg := strings.Repeat("x", 200)
	env := newSessionTestEnv(t, arg+"\n")
	lines := env.responses()
	require.Len(t, lines, 1)
	require.Len(t, lines[0], MaxResponseLen)
}

func TestSessionWatchdog(t *testing.T) {
	env := newSessionTestEnv(t, "")
	wd := &fakeWatchdog{}
	env.session.Config.Watchdog = wd
	env.run()
	require.Equal(t, []string{"suspend", "resume"}, wd.events)
}

func TestSessionStop(t *testing.T) {
	tr := newScript("")
	tr.eof = nil
	s := NewSession(tr, &fakeBackend{})
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	require.Eventually(t, s.Running, time.Second, time.Millisecond)
	require.Equal(t, ErrAlreadyRunning, s.Run(context.Background()))
	s.Stop()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}
	require.False(t, s.Running())
}

func TestSessionContextCancel(t *testing.T) {
	tr := newScript("")
	tr.eof = nil
	s := NewSession(tr, nil)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		err = s.Run(ctx)
	}()
	cancel()
	wg.Wait()
	require.Equal(t, context.Canceled, err)
}

type readyTransport struct {
	*scriptTransport
	ready chan struct{}
}

func (r *readyTransport) Ready() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

func TestSessionWaitsForReady(t *testing.T) {
	tr := &readyTransport{scriptTransport: newScript("getsuoserialbuffsz\n"), ready: make(chan struct{})}
	s := NewSession(tr, nil)
	s.Config.ReadyInterval = time.Millisecond
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	require.Empty(t, tr.written())
	close(tr.ready)
	<-done
	require.Equal(t, ">getsuoserialbuffsz\r\nOK 4096\n\r>", tr.written())
}

type closingTransport struct {
	*scriptTransport
	closed bool
}

func (c *closingTransport) Close() error {
	c.closed = true
	return nil
}

func TestSessionDetach(t *testing.T) {
	tr := &closingTransport{scriptTransport: newScript("")}
	s := NewSession(tr, nil)
	s.Detach()
	require.True(t, s.Stopped())
	require.True(t, tr.closed)
	require.NoError(t, s.Run(context.Background()))
	require.Empty(t, tr.written())
}
