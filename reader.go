package zstblocks

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// ReaderOptions define reader specific options.
type ReaderOptions struct {
	// The compression codec the container was written with.
	// Default: ZstdCompression.
	Compression Compression
}

func (o *ReaderOptions) norm() *ReaderOptions {
	var oo ReaderOptions
	if o != nil {
		oo = *o
	}
	return &oo
}

// Reader instances can seek and iterate across data in containers.
type Reader struct {
	r    io.ReaderAt
	size int64
	o    *ReaderOptions
}

// NewReader wraps a reader of a container with a known size.
func NewReader(r io.ReaderAt, size int64, o *ReaderOptions) *Reader {
	return &Reader{r: r, size: size, o: o.norm()}
}

// Size returns the container size.
func (r *Reader) Size() int64 { return r.size }

// ReadBlock decodes the block whose frame starts at offset.
func (r *Reader) ReadBlock(offset int64) (*Block, error) {
	size, err := r.frameSize(offset)
	if err != nil {
		return nil, err
	}

	raw := fetchBuffer(int(size))
	defer releaseBuffer(raw)

	if err := readFullAt(r.r, raw, offset+frameHeaderSize); err != nil {
		return nil, err
	}
	return DecodeBlock(raw, r.o.Compression)
}

// ReadRowAt returns a single row of the block at offset. No other block is
// read.
func (r *Reader) ReadRowAt(offset int64, rowIndex int) ([]byte, error) {
	b, err := r.ReadBlock(offset)
	if err != nil {
		return nil, err
	}
	return b.Row(rowIndex)
}

// RowPosition locates a single row within a container.
type RowPosition struct {
	BlockOffset int64 // offset of the block's frame
	RowIndex    int   // position of the row within the block
}

// ReadRowsAt returns the rows at the given positions, in the same order.
// Each distinct block is read and decoded once.
func (r *Reader) ReadRowsAt(positions []RowPosition) ([][]byte, error) {
	blocks := make(map[int64]*Block)
	rows := make([][]byte, len(positions))
	for i, pos := range positions {
		b, ok := blocks[pos.BlockOffset]
		if !ok {
			var err error
			if b, err = r.ReadBlock(pos.BlockOffset); err != nil {
				return nil, fmt.Errorf("position %d: %w", i, err)
			}
			blocks[pos.BlockOffset] = b
		}

		row, err := b.Row(pos.RowIndex)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		rows[i] = row
	}
	return rows, nil
}

// Scan returns a scanner across all rows of the container.
func (r *Reader) Scan() *Scanner {
	return NewScanner(io.NewSectionReader(r.r, 0, r.size), r.o)
}

// BlockOffsets returns the offsets of all frames by walking their length
// prefixes, without decompressing any block.
func (r *Reader) BlockOffsets() ([]int64, error) {
	var offsets []int64
	for pos := int64(0); pos < r.size; {
		size, err := r.frameSize(pos)
		if err != nil {
			return offsets, err
		}
		offsets = append(offsets, pos)
		pos += frameHeaderSize + int64(size)
	}
	return offsets, nil
}

// NumBlocks returns the number of blocks in the container.
func (r *Reader) NumBlocks() (int, error) {
	offsets, err := r.BlockOffsets()
	return len(offsets), err
}

// frameSize reads and validates the length prefix of the frame at offset.
func (r *Reader) frameSize(offset int64) (uint32, error) {
	if offset < 0 || offset >= r.size {
		return 0, fmt.Errorf("%w: no frame at offset %d, container has %d bytes", ErrMalformedFrame, offset, r.size)
	}
	if offset+frameHeaderSize > r.size {
		return 0, fmt.Errorf("%w: truncated length prefix at offset %d", ErrMalformedFrame, offset)
	}

	var hdr [frameHeaderSize]byte
	if err := readFullAt(r.r, hdr[:], offset); err != nil {
		return 0, err
	}

	size := binary.LittleEndian.Uint32(hdr[:])
	if end := offset + frameHeaderSize + int64(size); end > r.size {
		return 0, fmt.Errorf("%w: frame at offset %d declares %d bytes, only %d remain", ErrMalformedFrame, offset, size, r.size-offset-frameHeaderSize)
	}
	return size, nil
}

func readFullAt(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: short read of %d/%d bytes at offset %d", ErrMalformedFrame, n, len(p), off)
	}
	return err
}

// --------------------------------------------------------------------

// Scanner reads rows sequentially from a stream of frames. It does not
// require the stream to be seekable.
type Scanner struct {
	r io.Reader
	o *ReaderOptions

	hdr   [frameHeaderSize]byte
	raw   []byte // compressed buffer
	buf   []byte // payload buffer
	block Block

	offset int64 // offset of the next frame
	boff   int64 // offset of the current block
	bpos   int   // the current block position
	rpos   int   // the current row position

	row []byte
	err error
}

// NewScanner wraps a stream positioned at the start of a frame.
func NewScanner(r io.Reader, o *ReaderOptions) *Scanner {
	return &Scanner{r: r, o: o.norm(), bpos: -1, rpos: -1}
}

// Next advances the cursor to the next row and returns true if successful.
// It returns false at the end of the stream or on error.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}

	for s.rpos+1 >= s.block.NumRows() {
		if !s.nextBlock() {
			s.row = nil
			return false
		}
	}

	s.rpos++
	s.row = s.block.row(readEntry(s.block.table[s.rpos*EntrySize:]))
	return true
}

// Row returns the current row. Please note that rows are temporary buffers
// and must be copied if used beyond the end of the current block.
func (s *Scanner) Row() []byte { return s.row }

// ReadRow implements RowSource. The row is only valid until the next call.
func (s *Scanner) ReadRow() ([]byte, error) {
	if s.Next() {
		return s.Row(), nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

// BlockIndex returns the position of the current block within the stream.
func (s *Scanner) BlockIndex() int { return s.bpos }

// BlockOffset returns the stream offset of the current block.
func (s *Scanner) BlockOffset() int64 { return s.boff }

// RowIndex returns the position of the current row within its block.
func (s *Scanner) RowIndex() int { return s.rpos }

// Offset returns the number of bytes consumed from the stream.
func (s *Scanner) Offset() int64 { return s.offset }

// Err exposes scanner errors, if any.
func (s *Scanner) Err() error { return s.err }

func (s *Scanner) nextBlock() bool {
	raw, err := readFrame(s.r, s.hdr[:], s.raw)
	if err == io.EOF {
		return false
	} else if err != nil {
		s.err = fmt.Errorf("block %d at offset %d: %w", s.bpos+1, s.offset, err)
		return false
	}
	s.raw = raw

	if s.buf, err = s.block.decode(s.buf, raw, s.o.Compression); err != nil {
		s.err = fmt.Errorf("block %d at offset %d: %w", s.bpos+1, s.offset, err)
		return false
	}

	s.boff = s.offset
	s.offset += frameHeaderSize + int64(len(raw))
	s.bpos++
	s.rpos = -1
	return true
}

// readFrame reads the next frame into buf and returns its compressed
// payload. It returns io.EOF if the stream ends at a frame boundary.
func readFrame(r io.Reader, hdr, buf []byte) ([]byte, error) {
	if n, err := io.ReadFull(r, hdr); err == io.ErrUnexpectedEOF {
		return buf, fmt.Errorf("%w: truncated length prefix (%d of %d bytes)", ErrMalformedFrame, n, len(hdr))
	} else if err != nil {
		return buf, err
	}
	size := int64(binary.LittleEndian.Uint32(hdr))

	// the prefix is not trusted for allocation, buffer grows as data arrives
	w := bytes.NewBuffer(buf[:0])
	n, err := w.ReadFrom(io.LimitReader(r, size))
	if err != nil {
		return buf, err
	}
	if n < size {
		return buf, fmt.Errorf("%w: frame declares %d bytes, only %d remain", ErrMalformedFrame, size, n)
	}
	return w.Bytes(), nil
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p)
	}
}
