package suota

import (
	"encoding/binary"
	"hash"
	"hash/crc32"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/suoserial/pkg/suoserial"
)

// DefaultMaxPatchLen is the largest accepted WRITE_PATCH_LEN.
const DefaultMaxPatchLen = 4096

// Backend receives firmware images through the update sub-protocol.
type Backend struct {
	Store Store
	// MaxImageSize limits the payload size announced by a header, 0 for no limit.
	MaxImageSize uint32
	MaxPatchLen  uint16
	// Reboot is invoked on a reboot request.
	Reboot func()

	lock     sync.Mutex
	notify   func(string)
	notifyOn bool
	status   Status
	active   bool
	patchLen uint16
	received uint32
	hdrBuf   []byte
	header   *Header
	crc      hash.Hash32
}

// NewBackend creates a Backend writing images to store.
func NewBackend(store Store) *Backend {
	return &Backend{Store: store, MaxPatchLen: DefaultMaxPatchLen}
}

// Init implements suoserial.Backend.
func (b *Backend) Init(notify func(string)) {
	b.lock.Lock()
	b.notify = notify
	b.lock.Unlock()
}

// Status returns the current update status.
func (b *Backend) Status() Status {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.status
}

// WriteRequest implements suoserial.Backend.
func (b *Backend) WriteRequest(op suoserial.Opcode, offset, size uint16, data []byte) error {
	if op.IsRead() {
		return suoserial.StatusAttributeNotFound
	}
	if offset != 0 && op != suoserial.OpWritePatchData {
		return suoserial.StatusAttributeNotLong
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	switch op {
	case suoserial.OpWriteStatus:
		if len(data) != 1 {
			return suoserial.StatusApplicationError
		}
		b.notifyOn = data[0] != 0
		return nil
	case suoserial.OpWriteMemDev:
		if len(data) != 4 {
			return suoserial.StatusApplicationError
		}
		return b.memDev(binary.LittleEndian.Uint32(data))
	case suoserial.OpWritePatchLen:
		if len(data) != 2 {
			return suoserial.StatusApplicationError
		}
		return b.setPatchLen(binary.LittleEndian.Uint16(data))
	case suoserial.OpWritePatchData:
		return b.patchData(data)
	}
	return suoserial.StatusAttributeNotFound
}

// ReadRequest implements suoserial.Backend.
func (b *Backend) ReadRequest(op suoserial.Opcode) (uint32, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	switch op {
	case suoserial.OpReadStatus:
		return uint32(b.status), nil
	case suoserial.OpReadMemInfo:
		if !b.active {
			return 0, suoserial.StatusReadNotPermitted
		}
		return b.received, nil
	}
	return 0, suoserial.StatusAttributeNotFound
}

func (b *Backend) memDev(value uint32) error {
	cmd, bank := byte(value>>24), byte(value)
	switch cmd {
	case MemDevImage:
		if bank > 2 {
			return b.fail(StatusInvalImgBank)
		}
		return b.start(bank)
	case MemDevEnd:
		return b.finish()
	case MemDevReboot:
		glog.Info("suota: reboot requested")
		if b.Reboot != nil {
			b.Reboot()
		}
		return nil
	case MemDevAbort:
		if b.active {
			b.Store.Abort()
			b.active = false
		}
		b.setStatus(StatusSrvExit)
		return nil
	}
	return b.fail(StatusInvalMemType)
}

func (b *Backend) start(bank byte) error {
	if err := b.Store.Begin(); err != nil {
		glog.Errorf("suota: begin image: %v", err)
		return b.fail(StatusIntMemErr)
	}
	b.active = true
	b.patchLen, b.received = 0, 0
	b.hdrBuf, b.header = b.hdrBuf[:0], nil
	b.crc = crc32.NewIEEE()
	glog.Infof("suota: update started, bank %d", bank)
	b.setStatus(StatusSrvStarted)
	return nil
}

func (b *Backend) setPatchLen(n uint16) error {
	if !b.active {
		return b.fail(StatusAppError)
	}
	if n == 0 || (b.MaxPatchLen > 0 && n > b.MaxPatchLen) {
		return b.fail(StatusPatchLenErr)
	}
	b.patchLen = n
	return nil
}

func (b *Backend) patchData(data []byte) error {
	if !b.active {
		return b.fail(StatusAppError)
	}
	if b.patchLen == 0 || len(data) != int(b.patchLen) {
		return b.fail(StatusPatchLenErr)
	}
	payload := data
	if b.header == nil {
		take := HeaderSize - len(b.hdrBuf)
		if take > len(data) {
			take = len(data)
		}
		b.hdrBuf = append(b.hdrBuf, data[:take]...)
		payload = data[take:]
		if len(b.hdrBuf) == HeaderSize {
			hdr, err := ParseHeader(b.hdrBuf)
			if err != nil {
				glog.Warningf("suota: %v", err)
				return b.fail(StatusInvalImgHdr)
			}
			if b.MaxImageSize > 0 && hdr.Size > b.MaxImageSize {
				return b.fail(StatusInvalImgSize)
			}
			b.header = hdr
			glog.Infof("suota: image %s, %d bytes", hdr.Version, hdr.Size)
			b.setStatus(StatusImgStarted)
		}
	}
	if b.header != nil && uint64(b.received)+uint64(len(data)) > uint64(HeaderSize)+uint64(b.header.Size) {
		return b.fail(StatusInvalImgSize)
	}
	if _, err := b.Store.WriteAt(data, int64(b.received)); err != nil {
		glog.Errorf("suota: %v", err)
		return b.fail(StatusExtMemWriteErr)
	}
	b.crc.Write(payload)
	b.received += uint32(len(data))
	return nil
}

func (b *Backend) finish() error {
	if !b.active {
		return b.fail(StatusAppError)
	}
	if b.header == nil || b.received != HeaderSize+b.header.Size {
		return b.fail(StatusInvalImgSize)
	}
	if sum := b.crc.Sum32(); sum != b.header.CRC {
		glog.Warningf("suota: crc %08x, expect %08x", sum, b.header.CRC)
		return b.fail(StatusCRCErr)
	}
	current, err := b.Store.ActiveVersion()
	if err != nil {
		glog.Errorf("suota: %v", err)
		return b.fail(StatusExtMemReadErr)
	}
	if current != nil && current.Equal(b.header.Version) {
		return b.fail(StatusSameImgErr)
	}
	if err := b.Store.Commit(b.header); err != nil {
		glog.Errorf("suota: %v", err)
		return b.fail(StatusExtMemWriteErr)
	}
	b.active = false
	glog.Infof("suota: image %s committed", b.header.Version)
	b.setStatus(StatusCmpOK)
	return nil
}

// fail records an error status and drops the image in progress.
func (b *Backend) fail(st Status) error {
	if b.active {
		b.Store.Abort()
		b.active = false
	}
	glog.Warningf("suota: %s", st)
	b.setStatus(st)
	return suoserial.StatusApplicationError
}

func (b *Backend) setStatus(st Status) {
	b.status = st
	if b.notifyOn && b.notify != nil {
		b.notify(st.String())
	}
}
