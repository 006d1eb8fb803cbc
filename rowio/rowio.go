// Package rowio implements the row feed protocols accepted by the encoder:
// length-prefixed rows, length-prefixed row groups and plain text lines.
//
//	Row stream:
//	+-------------------+-----------------+-------+------------------------+
//	| size 1 (4 bytes)  | row 1 (size 1)  |  ...  | 0xFFFFFFFF (optional)  |
//	+-------------------+-----------------+-------+------------------------+
//
//	Group stream:
//	+-------------------+-----------------------------------------+-------+------------------------+
//	| count 1 (4 bytes) | count 1 × (size (4 bytes), row (size))  |  ...  | 0xFFFFFFFF (optional)  |
//	+-------------------+-----------------------------------------+-------+------------------------+
//
// Integers are unsigned little-endian. A sentinel in place of a size ends
// the current group early.
package rowio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// EndOfStream is the sentinel which terminates a stream or a group.
const EndOfStream = 0xFFFFFFFF

// ErrTruncated is returned when the input ends within a record.
var ErrTruncated = errors.New("rowio: truncated record")

// readUint32 reads a single integer. It returns io.EOF on a clean end and
// ErrTruncated on a partial integer.
func readUint32(r io.Reader, tmp []byte) (uint32, error) {
	if _, err := io.ReadFull(r, tmp[:4]); err == io.ErrUnexpectedEOF {
		return 0, ErrTruncated
	} else if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp), nil
}

func readRecord(r io.Reader, size uint32) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	// the size is not trusted for allocation, buffer grows as data arrives
	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(r, int64(size)))
	if err != nil {
		return nil, err
	}
	if n < int64(size) {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrTruncated, size, n)
	}
	return buf.Bytes(), nil
}

func minInt(a, b int64) int {
	if a < b {
		return int(a)
	}
	return int(b)
}

// --------------------------------------------------------------------

// RowReader reads a length-prefixed row stream.
type RowReader struct {
	r    io.Reader
	tmp  [4]byte
	done bool
}

// NewRowReader wraps a reader.
func NewRowReader(r io.Reader) *RowReader {
	return &RowReader{r: r}
}

// ReadRow returns the next row or io.EOF once the sentinel or the end of
// input is reached.
func (r *RowReader) ReadRow() ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}

	size, err := readUint32(r.r, r.tmp[:])
	if err == nil && size == EndOfStream {
		err = io.EOF
	}
	if err != nil {
		r.done = true
		return nil, err
	}

	row, err := readRecord(r.r, size)
	if err != nil {
		r.done = true
		return nil, err
	}
	return row, nil
}

// --------------------------------------------------------------------

// GroupReader reads a length-prefixed group stream.
type GroupReader struct {
	r    io.Reader
	tmp  [4]byte
	done bool
}

// NewGroupReader wraps a reader.
func NewGroupReader(r io.Reader) *GroupReader {
	return &GroupReader{r: r}
}

// ReadBlock returns the next group of rows or io.EOF once the sentinel or
// the end of input is reached.
func (r *GroupReader) ReadBlock() ([][]byte, error) {
	if r.done {
		return nil, io.EOF
	}

	count, err := readUint32(r.r, r.tmp[:])
	if err == nil && count == EndOfStream {
		err = io.EOF
	}
	if err != nil {
		r.done = true
		return nil, err
	}

	rows := make([][]byte, 0, minInt(int64(count), 1024))
	for i := uint32(0); i < count; i++ {
		size, err := readUint32(r.r, r.tmp[:])
		if err == io.EOF {
			err = fmt.Errorf("%w: group ends after %d of %d rows", ErrTruncated, i, count)
		}
		if err != nil {
			r.done = true
			return nil, err
		}
		if size == EndOfStream {
			break
		}

		row, err := readRecord(r.r, size)
		if err != nil {
			r.done = true
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// --------------------------------------------------------------------

// LineReaderOptions define line reader specific options.
type LineReaderOptions struct {
	// Keep the line terminator ("\n" or "\r\n") as part of each row.
	// Default: false.
	KeepTerminator bool
}

func (o *LineReaderOptions) norm() *LineReaderOptions {
	var oo LineReaderOptions
	if o != nil {
		oo = *o
	}
	return &oo
}

// LineReader splits text into rows, one per line. By default, line
// terminators are not part of the rows.
type LineReader struct {
	r *bufio.Reader
	o *LineReaderOptions
}

// NewLineReader wraps a reader.
func NewLineReader(r io.Reader, o *LineReaderOptions) *LineReader {
	return &LineReader{r: bufio.NewReader(r), o: o.norm()}
}

// ReadRow returns the next line or io.EOF at the end of input. A final line
// without terminator is returned as a row, an empty input yields no rows.
func (r *LineReader) ReadRow() ([]byte, error) {
	line, err := r.r.ReadBytes('\n')
	if err == io.EOF && len(line) != 0 {
		err = nil
	} else if err != nil {
		return nil, err
	}

	if r.o.KeepTerminator {
		return line, nil
	}
	if n := len(line); n != 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n != 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line, nil
}

// --------------------------------------------------------------------

// RowWriter writes a length-prefixed row stream.
type RowWriter struct {
	w   io.Writer
	tmp [4]byte
}

// NewRowWriter wraps a writer.
func NewRowWriter(w io.Writer) *RowWriter {
	return &RowWriter{w: w}
}

// WriteRow writes a single row.
func (w *RowWriter) WriteRow(row []byte) error {
	if uint64(len(row)) >= EndOfStream {
		return fmt.Errorf("rowio: row of %d bytes is too large", len(row))
	}

	binary.LittleEndian.PutUint32(w.tmp[:], uint32(len(row)))
	if _, err := w.w.Write(w.tmp[:]); err != nil {
		return err
	}
	_, err := w.w.Write(row)
	return err
}

// Close writes the sentinel. It does not close the underlying writer.
func (w *RowWriter) Close() error {
	binary.LittleEndian.PutUint32(w.tmp[:], EndOfStream)
	_, err := w.w.Write(w.tmp[:])
	return err
}

// GroupWriter writes a length-prefixed group stream.
type GroupWriter struct {
	rw RowWriter
}

// NewGroupWriter wraps a writer.
func NewGroupWriter(w io.Writer) *GroupWriter {
	return &GroupWriter{rw: RowWriter{w: w}}
}

// WriteBlock writes a group of rows.
func (w *GroupWriter) WriteBlock(rows [][]byte) error {
	if uint64(len(rows)) >= EndOfStream {
		return fmt.Errorf("rowio: group of %d rows is too large", len(rows))
	}

	binary.LittleEndian.PutUint32(w.rw.tmp[:], uint32(len(rows)))
	if _, err := w.rw.w.Write(w.rw.tmp[:]); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.rw.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

// Close writes the sentinel. It does not close the underlying writer.
func (w *GroupWriter) Close() error {
	return w.rw.Close()
}
