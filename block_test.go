package zstblocks_test

import (
	"bytes"
	"encoding/binary"

	"github.com/bsm/zstblocks"
	"github.com/golang/snappy"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Block", func() {
	var rows = [][]byte{[]byte("a"), []byte("bb"), {}, []byte("ccc")}

	decode := func(frame []byte, c zstblocks.Compression) (*zstblocks.Block, error) {
		size := binary.LittleEndian.Uint32(frame)
		Expect(frame).To(HaveLen(4 + int(size)))
		return zstblocks.DecodeBlock(frame[4:], c)
	}

	It("should encode frames", func() {
		frame, err := zstblocks.AppendFrame([]byte("prefix"), rows, zstblocks.ZstdCompression)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame).To(HavePrefix("prefix"))

		block, err := decode(frame[6:], zstblocks.ZstdCompression)
		Expect(err).NotTo(HaveOccurred())
		Expect(block.NumRows()).To(Equal(4))
		Expect(block.Rows()).To(Equal(rows))
	})

	It("should compute entries", func() {
		frame, err := zstblocks.AppendFrame(nil, rows, zstblocks.ZstdCompression)
		Expect(err).NotTo(HaveOccurred())

		block, err := decode(frame, zstblocks.ZstdCompression)
		Expect(err).NotTo(HaveOccurred())

		var offset uint32
		for i, row := range rows {
			entry, err := block.Entry(i)
			Expect(err).NotTo(HaveOccurred())
			Expect(entry).To(Equal(zstblocks.Entry{Offset: offset, Size: uint32(len(row))}), "for %d", i)
			offset += uint32(len(row))
		}
	})

	It("should encode empty blocks", func() {
		frame, err := zstblocks.AppendFrame(nil, nil, zstblocks.ZstdCompression)
		Expect(err).NotTo(HaveOccurred())

		block, err := decode(frame, zstblocks.ZstdCompression)
		Expect(err).NotTo(HaveOccurred())
		Expect(block.NumRows()).To(Equal(0))
		Expect(block.Rows()).To(BeEmpty())
	})

	It("should support snappy", func() {
		frame, err := zstblocks.AppendFrame(nil, rows, zstblocks.SnappyCompression)
		Expect(err).NotTo(HaveOccurred())

		block, err := decode(frame, zstblocks.SnappyCompression)
		Expect(err).NotTo(HaveOccurred())
		Expect(block.Rows()).To(Equal(rows))
	})

	It("should checksum snappy blocks", func() {
		frame, err := zstblocks.AppendFrame(nil, rows, zstblocks.SnappyCompression)
		Expect(err).NotTo(HaveOccurred())

		frame[len(frame)-1] ^= 0x01
		_, err = decode(frame, zstblocks.SnappyCompression)
		expectErrIs(err, zstblocks.ErrCorruptBlock)

		_, err = zstblocks.DecodeBlock(nil, zstblocks.SnappyCompression)
		expectErrIs(err, zstblocks.ErrCorruptBlock)
	})

	It("should compress", func() {
		val := bytes.Repeat([]byte("testdata"), 16)
		many := make([][]byte, 256)
		for i := range many {
			many[i] = val
		}

		frame, err := zstblocks.AppendFrame(nil, many, zstblocks.ZstdCompression)
		Expect(err).NotTo(HaveOccurred())
		Expect(len(frame)).To(BeNumerically("<", (4+256*zstblocks.EntrySize+256*len(val))/4))
	})

	It("should reject out-of-range rows", func() {
		frame, err := zstblocks.AppendFrame(nil, rows, zstblocks.ZstdCompression)
		Expect(err).NotTo(HaveOccurred())

		block, err := decode(frame, zstblocks.ZstdCompression)
		Expect(err).NotTo(HaveOccurred())

		_, err = block.Row(4)
		expectErrIs(err, zstblocks.ErrIndexOutOfRange)
		_, err = block.Row(-1)
		expectErrIs(err, zstblocks.ErrIndexOutOfRange)
	})

	It("should reject bad codecs", func() {
		_, err := zstblocks.AppendFrame(nil, rows, zstblocks.Compression(9))
		Expect(err).To(MatchError(`zstblocks: bad compression codec`))
	})

	It("should detect corrupt compressed data", func() {
		_, err := zstblocks.DecodeBlock([]byte("not a zstd frame"), zstblocks.ZstdCompression)
		expectErrIs(err, zstblocks.ErrCorruptBlock)
	})

	It("should detect inconsistent payloads", func() {
		// a snappy framed encoding of a raw payload
		encode := func(payload []byte) []byte {
			buf := new(bytes.Buffer)
			w := snappy.NewBufferedWriter(buf)
			_, err := w.Write(payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Close()).To(Succeed())
			return buf.Bytes()
		}

		// too short for a row count
		_, err := zstblocks.DecodeBlock(encode([]byte{1, 0}), zstblocks.SnappyCompression)
		expectErrIs(err, zstblocks.ErrCorruptBlock)

		// entry table exceeds payload
		_, err = zstblocks.DecodeBlock(encode([]byte{9, 0, 0, 0, 0, 0, 0, 0}), zstblocks.SnappyCompression)
		expectErrIs(err, zstblocks.ErrCorruptBlock)

		// entry exceeds arena
		_, err = zstblocks.DecodeBlock(encode([]byte{1, 0, 0, 0, 0, 0, 0, 0, 5, 0, 0, 0, 'x'}), zstblocks.SnappyCompression)
		expectErrIs(err, zstblocks.ErrCorruptBlock)
	})
})

var _ = table.DescribeTable("block limits",
	func(nrows, arena uint64, ok bool) {
		err := zstblocks.CheckBlockLimits(nrows, arena)
		if ok {
			Expect(err).NotTo(HaveOccurred())
		} else {
			expectErrIs(err, zstblocks.ErrOverflow)
		}
	},

	table.Entry("empty", uint64(0), uint64(0), true),
	table.Entry("max rows", uint64(1<<32-1), uint64(0), true),
	table.Entry("max arena", uint64(1), uint64(1<<32-1), true),
	table.Entry("too many rows", uint64(1<<32), uint64(0), false),
	table.Entry("arena too large", uint64(1), uint64(1<<32), false),
	table.Entry("both too large", uint64(1<<32), uint64(1<<32), false),
)
