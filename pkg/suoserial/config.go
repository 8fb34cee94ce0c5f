package suoserial

import (
	"io"
	"time"
)

// Variant selects the command spelling used by a transport.
type Variant int

const (
	// VariantUART is the plain serial variant.
	VariantUART Variant = iota
	// VariantUSB is the USB-CDC variant, where the buffer size probe is
	// prefixed with '>'.
	VariantUSB
)

// Defaults.
const (
	DefaultChunkSize        = 2048
	DefaultPatchCmdOverhead = 32
	DefaultMaxWorkBuffer    = 64 * 1024
	DefaultParamSize        = 84
	DefaultPollInterval     = time.Millisecond
	DefaultReadyInterval    = 50 * time.Millisecond
)

// Config defines the behavior of a Session.
type Config struct {
	Variant Variant
	// ChunkSize is the binary size shifted by one PATCH_DATA line,
	// the advertised buffer size is twice as much.
	ChunkSize int
	// PatchCmdOverhead is the room for verb, offset, size and line ending
	// of a PATCH_DATA line.
	PatchCmdOverhead int
	// MaxWorkBuffer bounds "alloc", 0 means unbounded.
	MaxWorkBuffer int
	// Params is the parameter partition dumped by "readsdtparam".
	Params    io.ReaderAt
	ParamSize int
	// StrictHex rejects HEXDATA with invalid digits instead of decoding
	// garbage bytes.
	StrictHex bool
	// StrictUpdateEntry refuses "fwupdate" without a suitable work buffer
	// instead of reporting the error and entering the sub-protocol.
	StrictUpdateEntry bool
	PollInterval      time.Duration
	ReadyInterval     time.Duration
	Watchdog          Watchdog
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Variant:          VariantUART,
		ChunkSize:        DefaultChunkSize,
		PatchCmdOverhead: DefaultPatchCmdOverhead,
		MaxWorkBuffer:    DefaultMaxWorkBuffer,
		ParamSize:        DefaultParamSize,
		StrictHex:        true,
		PollInterval:     DefaultPollInterval,
		ReadyInterval:    DefaultReadyInterval,
	}
}

// BufferSize is the chunk pair size reported to the host.
func (c Config) BufferSize() int {
	return c.ChunkSize * 2
}

// LineCapacity is the size of the line buffer.
func (c Config) LineCapacity() int {
	return c.BufferSize() + c.PatchCmdOverhead
}

// UpdateBufferLimit is the largest work buffer accepted by "fwupdate".
func (c Config) UpdateBufferLimit() int {
	return c.LineCapacity() / 2
}

// BufSizeCommand is the spelling of the buffer size probe.
func (c Config) BufSizeCommand() string {
	if c.Variant == VariantUSB {
		return ">" + CmdBufSize
	}
	return CmdBufSize
}
