package zstblocks

import "errors"

const (
	// MaxBlockSize is the maximum number of rows per block accepted by writers.
	MaxBlockSize = 0x7FFFFFFF

	// DefaultBlockSize is the number of rows per block used when unspecified.
	DefaultBlockSize = 256

	frameHeaderSize = 4
	maxUint32       = 1<<32 - 1
)

var (
	// ErrMalformedFrame is returned when a frame is cut short, either inside its
	// length prefix or inside its compressed payload.
	ErrMalformedFrame = errors.New("zstblocks: malformed frame")

	// ErrCorruptBlock is returned when a well-framed block cannot be
	// decompressed or its payload is inconsistent.
	ErrCorruptBlock = errors.New("zstblocks: corrupt block")

	// ErrIndexOutOfRange is returned by point lookups for row indexes beyond
	// the row count of a block.
	ErrIndexOutOfRange = errors.New("zstblocks: row index out of range")

	// ErrOverflow is returned when a row count, arena size or compressed size
	// does not fit into a 32-bit field.
	ErrOverflow = errors.New("zstblocks: overflow")

	// ErrBadBlockSize is returned for non-positive or excessive block sizes.
	ErrBadBlockSize = errors.New("zstblocks: bad block size")
)

var (
	errClosed         = errors.New("zstblocks: is closed")
	errBadCompression = errors.New("zstblocks: bad compression codec")
)

// RowSource is a producer of rows. ReadRow must return io.EOF once the
// source is exhausted.
type RowSource interface {
	ReadRow() ([]byte, error)
}

// BlockSource is a producer of pre-grouped rows. ReadBlock must return
// io.EOF once the source is exhausted.
type BlockSource interface {
	ReadBlock() ([][]byte, error)
}

// --------------------------------------------------------------------

// Compression is the compression codec
type Compression byte

func (c Compression) isValid() bool {
	return c >= ZstdCompression && c < unknownCompression
}

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case ZstdCompression:
		return "zstd"
	case SnappyCompression:
		return "snappy"
	default:
		return "unknown"
	}
}

// Supported compression codecs
const (
	ZstdCompression Compression = iota
	SnappyCompression
	unknownCompression
)
