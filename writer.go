package zstblocks

import (
	"fmt"
	"io"
)

// WriterOptions define writer specific options.
type WriterOptions struct {
	// BlockSize is the number of rows per block. Blocks are flushed as soon
	// as they reach this size.
	// Default: 256.
	BlockSize int

	// The compression codec to use.
	// Default: ZstdCompression.
	Compression Compression
}

func (o *WriterOptions) norm() (*WriterOptions, error) {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.BlockSize == 0 {
		oo.BlockSize = DefaultBlockSize
	}
	if err := validateBlockSize(oo.BlockSize); err != nil {
		return nil, err
	}
	if !oo.Compression.isValid() {
		return nil, errBadCompression
	}

	return &oo, nil
}

func validateBlockSize(n int) error {
	if n < 1 || n > MaxBlockSize {
		return fmt.Errorf("%w: %d must be within [1, %d]", ErrBadBlockSize, n, MaxBlockSize)
	}
	return nil
}

// Writer instances can write a container. Writers only ever append whole
// frames to the underlying writer.
type Writer struct {
	w io.Writer
	o *WriterOptions

	arena []byte   // pending row data
	sizes []uint32 // pending row sizes
	rows  [][]byte // scratch row views

	buf []byte // payload buffer
	frm []byte // frame buffer

	offset  int64 // number of bytes written
	nblocks int   // number of blocks written
	closed  bool
}

// NewWriter wraps a writer and returns a Writer.
func NewWriter(w io.Writer, o *WriterOptions) (*Writer, error) {
	oo, err := o.norm()
	if err != nil {
		return nil, err
	}
	return &Writer{w: w, o: oo}, nil
}

// Append appends a row to the current block. The block is written once it
// holds BlockSize rows. The row is copied and may be reused by the caller.
func (w *Writer) Append(row []byte) error {
	if w.closed {
		return errClosed
	}

	if err := checkBlockLimits(uint64(len(w.sizes))+1, uint64(len(w.arena))+uint64(len(row))); err != nil {
		return fmt.Errorf("row of %d bytes does not fit into block: %w", len(row), err)
	}

	w.arena = append(w.arena, row...)
	w.sizes = append(w.sizes, uint32(len(row)))

	if len(w.sizes) >= w.o.BlockSize {
		return w.Flush()
	}
	return nil
}

// WriteBlock writes rows verbatim as a single block, regardless of
// BlockSize. Pending rows are flushed first.
func (w *Writer) WriteBlock(rows [][]byte) error {
	if w.closed {
		return errClosed
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return w.writeBlock(rows)
}

// Flush writes pending rows as a (possibly smaller) block.
func (w *Writer) Flush() error {
	if w.closed {
		return errClosed
	}
	if len(w.sizes) == 0 {
		return nil
	}

	w.rows = w.rows[:0]
	pos := 0
	for _, sz := range w.sizes {
		w.rows = append(w.rows, w.arena[pos:pos+int(sz)])
		pos += int(sz)
	}

	if err := w.writeBlock(w.rows); err != nil {
		return err
	}

	w.arena = w.arena[:0]
	w.sizes = w.sizes[:0]
	w.rows = w.rows[:0]
	return nil
}

// Close flushes pending rows. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return errClosed
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.closed = true
	return nil
}

// Offset returns the number of bytes written by this writer.
func (w *Writer) Offset() int64 { return w.offset }

// NumBlocks returns the number of blocks written by this writer.
func (w *Writer) NumBlocks() int { return w.nblocks }

// NumPending returns the number of rows waiting for the next flush.
func (w *Writer) NumPending() int { return len(w.sizes) }

func (w *Writer) writeBlock(rows [][]byte) error {
	var err error
	if w.buf, err = appendPayload(w.buf[:0], rows); err != nil {
		return err
	}
	if w.frm, err = appendFrame(w.frm[:0], w.buf, w.o.Compression); err != nil {
		return err
	}

	n, err := w.w.Write(w.frm)
	w.offset += int64(n)
	if err != nil {
		return err
	}
	w.nblocks++
	return nil
}

// --------------------------------------------------------------------

// WriteRowStream batches rows from src into blocks of blockSize rows and
// writes them to w. A final, smaller block holds the remainder.
func WriteRowStream(w io.Writer, src RowSource, blockSize int, c Compression) error {
	if err := validateBlockSize(blockSize); err != nil {
		return err
	}

	bw, err := NewWriter(w, &WriterOptions{BlockSize: blockSize, Compression: c})
	if err != nil {
		return err
	}

	for {
		row, err := src.ReadRow()
		if err == io.EOF {
			break
		} else if err != nil {
			return err
		}

		if err := bw.Append(row); err != nil {
			return err
		}
	}
	return bw.Close()
}

// WriteBlockStream writes each group from src as exactly one block.
func WriteBlockStream(w io.Writer, src BlockSource, c Compression) error {
	bw, err := NewWriter(w, &WriterOptions{Compression: c})
	if err != nil {
		return err
	}

	for {
		rows, err := src.ReadBlock()
		if err == io.EOF {
			break
		} else if err != nil {
			return err
		}

		if err := bw.WriteBlock(rows); err != nil {
			return err
		}
	}
	return bw.Close()
}
