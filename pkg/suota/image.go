package suota

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Image header layout, all integers little-endian:
//
//	0  "Qq"
//	2  payload size  u32
//	6  payload CRC32 u32 (IEEE)
//	10 version       [16]byte, NUL padded semantic version
//	26 timestamp     u32 (unix seconds)
//	30 flags         u16
const (
	HeaderSize    = 32
	versionLength = 16
)

// HeaderMagic starts every image.
var HeaderMagic = [2]byte{'Q', 'q'}

// Header describes an image.
type Header struct {
	Size      uint32
	CRC       uint32
	Version   *semver.Version
	Timestamp time.Time
	Flags     uint16
}

// HeaderError reports a malformed header.
type HeaderError struct {
	Reason string
}

// Error implements error.
func (e *HeaderError) Error() string {
	return "invalid image header: " + e.Reason
}

// ParseHeader decodes an image header.
func ParseHeader(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, &HeaderError{Reason: fmt.Sprintf("%d bytes", len(b))}
	}
	if b[0] != HeaderMagic[0] || b[1] != HeaderMagic[1] {
		return nil, &HeaderError{Reason: fmt.Sprintf("magic %02x%02x", b[0], b[1])}
	}
	raw := bytes.TrimRight(b[10:10+versionLength], "\x00")
	ver, err := semver.NewVersion(string(raw))
	if err != nil {
		return nil, &HeaderError{Reason: fmt.Sprintf("version %q: %v", raw, err)}
	}
	return &Header{
		Size:      binary.LittleEndian.Uint32(b[2:]),
		CRC:       binary.LittleEndian.Uint32(b[6:]),
		Version:   ver,
		Timestamp: time.Unix(int64(binary.LittleEndian.Uint32(b[26:])), 0),
		Flags:     binary.LittleEndian.Uint16(b[30:]),
	}, nil
}

// Bytes encodes the header.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	copy(b, HeaderMagic[:])
	binary.LittleEndian.PutUint32(b[2:], h.Size)
	binary.LittleEndian.PutUint32(b[6:], h.CRC)
	if h.Version != nil {
		copy(b[10:10+versionLength], h.Version.String())
	}
	binary.LittleEndian.PutUint32(b[26:], uint32(h.Timestamp.Unix()))
	binary.LittleEndian.PutUint16(b[30:], h.Flags)
	return b
}

// BuildImage prefixes payload with a header for the given version.
func BuildImage(version string, payload []byte, ts time.Time) ([]byte, error) {
	ver, err := semver.NewVersion(version)
	if err != nil {
		return nil, err
	}
	if len(ver.String()) > versionLength {
		return nil, fmt.Errorf("version %q longer than %d characters", ver, versionLength)
	}
	hdr := &Header{
		Size:      uint32(len(payload)),
		CRC:       crc32.ChecksumIEEE(payload),
		Version:   ver,
		Timestamp: ts,
	}
	return append(hdr.Bytes(), payload...), nil
}
