package zstblocks

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// zstd encoder/decoder are shared across calls, both are safe for
// concurrent use via EncodeAll/DecodeAll.
var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedDefault),
		)
		if zstdErr != nil {
			zstdErr = fmt.Errorf("zstblocks: failed to create zstd encoder: %w", zstdErr)
			return
		}

		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if zstdErr != nil {
			zstdErr = fmt.Errorf("zstblocks: failed to create zstd decoder: %w", zstdErr)
		}
	})
	return zstdEnc, zstdDec, zstdErr
}

// Snappy blocks use the framing format, which carries a CRC-32C checksum
// per chunk.
var (
	snappyWriterPool sync.Pool
	snappyReaderPool sync.Pool
)

func fetchSnappyWriter(w io.Writer) *snappy.Writer {
	if v := snappyWriterPool.Get(); v != nil {
		enc := v.(*snappy.Writer)
		enc.Reset(w)
		return enc
	}
	return snappy.NewBufferedWriter(w)
}

func fetchSnappyReader(r io.Reader) *snappy.Reader {
	if v := snappyReaderPool.Get(); v != nil {
		dec := v.(*snappy.Reader)
		dec.Reset(r)
		return dec
	}
	return snappy.NewReader(r)
}

func releaseSnappyWriter(enc *snappy.Writer) {
	enc.Reset(nil)
	snappyWriterPool.Put(enc)
}

func releaseSnappyReader(dec *snappy.Reader) {
	dec.Reset(nil)
	snappyReaderPool.Put(dec)
}

// appendCompressed appends the compressed form of src to dst.
func (c Compression) appendCompressed(dst, src []byte) ([]byte, error) {
	switch c {
	case ZstdCompression:
		enc, _, err := zstdCodec()
		if err != nil {
			return dst, err
		}
		return enc.EncodeAll(src, dst), nil

	case SnappyCompression:
		if snappy.MaxEncodedLen(len(src)) < 0 {
			return dst, fmt.Errorf("%w: payload of %d bytes is too large for snappy", ErrOverflow, len(src))
		}

		buf := bytes.NewBuffer(dst)
		enc := fetchSnappyWriter(buf)
		defer releaseSnappyWriter(enc)

		if _, err := enc.Write(src); err != nil {
			return dst, err
		}
		if err := enc.Close(); err != nil {
			return dst, err
		}
		return buf.Bytes(), nil

	default:
		return dst, errBadCompression
	}
}

// decompress decodes src, reusing dst where possible.
func (c Compression) decompress(dst, src []byte) ([]byte, error) {
	switch c {
	case ZstdCompression:
		_, dec, err := zstdCodec()
		if err != nil {
			return nil, err
		}

		plain, err := dec.DecodeAll(src, dst[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
		}
		return plain, nil

	case SnappyCompression:
		dec := fetchSnappyReader(bytes.NewReader(src))
		defer releaseSnappyReader(dec)

		buf := bytes.NewBuffer(dst[:0])
		if _, err := buf.ReadFrom(dec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
		}
		return buf.Bytes(), nil

	default:
		return nil, errBadCompression
	}
}

// grow extends p by n bytes, reallocating if necessary.
func grow(p []byte, n int) []byte {
	if sz := len(p) + n; sz <= cap(p) {
		return p[:sz]
	}

	q := make([]byte, len(p)+n, 2*cap(p)+n)
	copy(q, p)
	return q
}
