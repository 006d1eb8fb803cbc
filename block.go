package zstblocks

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// AppendFrame encodes rows as a single block and appends the resulting frame
// to dst. On error, dst is returned unchanged.
func AppendFrame(dst []byte, rows [][]byte, c Compression) ([]byte, error) {
	payload, err := appendPayload(nil, rows)
	if err != nil {
		return dst, err
	}
	return appendFrame(dst, payload, c)
}

// AppendBlock encodes rows as a single block and writes the frame to w at its
// current position. Use a destination opened in append mode to add blocks to
// an existing container.
func AppendBlock(w io.Writer, rows [][]byte, c Compression) error {
	frame, err := AppendFrame(nil, rows, c)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// payloadSize returns the uncompressed payload size of rows.
func payloadSize(rows [][]byte) (int, error) {
	var arena uint64
	for _, row := range rows {
		arena += uint64(len(row))
	}
	if err := checkBlockLimits(uint64(len(rows)), arena); err != nil {
		return 0, err
	}

	sz := 4 + uint64(len(rows))*EntrySize + arena
	if sz > math.MaxInt {
		return 0, fmt.Errorf("%w: payload of %d bytes cannot be addressed", ErrOverflow, sz)
	}
	return int(sz), nil
}

// checkBlockLimits ensures that row count and arena size of a block can be
// represented in its payload.
func checkBlockLimits(nrows, arena uint64) error {
	if nrows > maxUint32 {
		return fmt.Errorf("%w: %d rows exceed the row count limit", ErrOverflow, nrows)
	}
	if arena > maxUint32 {
		return fmt.Errorf("%w: arena of %d bytes exceeds the size limit", ErrOverflow, arena)
	}
	return nil
}

// appendPayload appends count, entry table and arena of rows to dst.
func appendPayload(dst []byte, rows [][]byte) ([]byte, error) {
	sz, err := payloadSize(rows)
	if err != nil {
		return dst, err
	}

	pos := len(dst)
	dst = grow(dst, sz)
	putEntryTable(dst[pos:], rows)

	n := pos + 4 + len(rows)*EntrySize
	for _, row := range rows {
		n += copy(dst[n:], row)
	}
	return dst, nil
}

// appendFrame compresses payload and appends length prefix and compressed
// bytes to dst.
func appendFrame(dst, payload []byte, c Compression) ([]byte, error) {
	pos := len(dst)
	dst = append(dst, 0, 0, 0, 0)

	dst, err := c.appendCompressed(dst, payload)
	if err != nil {
		return dst[:pos], err
	}

	n := len(dst) - pos - frameHeaderSize
	if uint64(n) > maxUint32 {
		return dst[:pos], fmt.Errorf("%w: compressed block of %d bytes exceeds the frame limit", ErrOverflow, n)
	}
	binary.LittleEndian.PutUint32(dst[pos:], uint32(n))
	return dst, nil
}

// --------------------------------------------------------------------

// Block is a decoded block.
type Block struct {
	table []byte // entry table
	arena []byte // row data
	nrows int
}

// DecodeBlock decompresses and parses the compressed payload of a frame
// (the bytes following the length prefix).
func DecodeBlock(compressed []byte, c Compression) (*Block, error) {
	b := new(Block)
	if _, err := b.decode(nil, compressed, c); err != nil {
		return nil, err
	}
	return b, nil
}

// decode decompresses src into buf and parses the payload. It returns the
// (possibly reallocated) buffer for reuse.
func (b *Block) decode(buf, src []byte, c Compression) ([]byte, error) {
	payload, err := c.decompress(buf, src)
	if err != nil {
		return buf, err
	}
	if err := b.parse(payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func (b *Block) parse(payload []byte) error {
	if len(payload) < 4 {
		return fmt.Errorf("%w: payload of %d bytes is too short", ErrCorruptBlock, len(payload))
	}

	count := uint64(binary.LittleEndian.Uint32(payload))
	tableEnd := 4 + count*EntrySize
	if tableEnd > uint64(len(payload)) {
		return fmt.Errorf("%w: entry table of %d rows exceeds payload", ErrCorruptBlock, count)
	}

	table := payload[4:tableEnd]
	arena := payload[tableEnd:]
	for i := 0; i < int(count); i++ {
		if e := readEntry(table[i*EntrySize:]); e.End() > uint64(len(arena)) {
			return fmt.Errorf("%w: row %d exceeds arena", ErrCorruptBlock, i)
		}
	}

	b.table = table
	b.arena = arena
	b.nrows = int(count)
	return nil
}

// NumRows returns the number of rows in the block.
func (b *Block) NumRows() int { return b.nrows }

// Entry returns the entry of the i-th row.
func (b *Block) Entry(i int) (Entry, error) {
	if i < 0 || i >= b.nrows {
		return Entry{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, b.nrows)
	}
	return readEntry(b.table[i*EntrySize:]), nil
}

// Row returns the i-th row. The returned slice shares memory with the block.
func (b *Block) Row(i int) ([]byte, error) {
	e, err := b.Entry(i)
	if err != nil {
		return nil, err
	}
	return b.row(e), nil
}

// Rows returns all rows in order.
func (b *Block) Rows() [][]byte {
	rows := make([][]byte, b.nrows)
	for i := range rows {
		rows[i] = b.row(readEntry(b.table[i*EntrySize:]))
	}
	return rows
}

func (b *Block) row(e Entry) []byte {
	return b.arena[e.Offset:e.End():e.End()]
}
