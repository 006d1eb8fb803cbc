package zstblocks_test

import (
	"bytes"
	"errors"
	"io"

	"github.com/bsm/zstblocks"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Writer", func() {
	var buf *bytes.Buffer
	var subject *zstblocks.Writer

	BeforeEach(func() {
		var err error
		buf = new(bytes.Buffer)
		subject, err = zstblocks.NewWriter(buf, &zstblocks.WriterOptions{BlockSize: 2})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = subject.Close()
	})

	reader := func() *zstblocks.Reader {
		return zstblocks.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil)
	}

	It("should write empty", func() {
		Expect(subject.Close()).To(Succeed())
		Expect(buf.Len()).To(Equal(0))
		Expect(subject.NumBlocks()).To(Equal(0))
	})

	It("should validate options", func() {
		_, err := zstblocks.NewWriter(buf, &zstblocks.WriterOptions{BlockSize: -1})
		expectErrIs(err, zstblocks.ErrBadBlockSize)

		_, err = zstblocks.NewWriter(buf, &zstblocks.WriterOptions{BlockSize: zstblocks.MaxBlockSize + 1})
		expectErrIs(err, zstblocks.ErrBadBlockSize)

		_, err = zstblocks.NewWriter(buf, &zstblocks.WriterOptions{Compression: 7})
		Expect(err).To(MatchError(`zstblocks: bad compression codec`))

		w, err := zstblocks.NewWriter(buf, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())
	})

	It("should flush full blocks", func() {
		Expect(subject.Append([]byte("x"))).To(Succeed())
		Expect(subject.NumPending()).To(Equal(1))
		Expect(buf.Len()).To(Equal(0))

		Expect(subject.Append([]byte("x"))).To(Succeed())
		Expect(subject.NumPending()).To(Equal(0))
		Expect(subject.NumBlocks()).To(Equal(1))
		Expect(subject.Offset()).To(Equal(int64(buf.Len())))
	})

	It("should copy appended rows", func() {
		row := []byte("abc")
		Expect(subject.Append(row)).To(Succeed())
		copy(row, "xyz")
		Expect(subject.Close()).To(Succeed())

		rows, err := scanAll(reader().Scan())
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(Equal([][]byte{[]byte("abc")}))
	})

	It("should write blocks verbatim", func() {
		Expect(subject.Append([]byte("a"))).To(Succeed())
		Expect(subject.WriteBlock([][]byte{[]byte("b"), []byte("c"), []byte("d"), []byte("e")})).To(Succeed())
		Expect(subject.WriteBlock(nil)).To(Succeed())
		Expect(subject.Append([]byte("f"))).To(Succeed())
		Expect(subject.Close()).To(Succeed())
		Expect(subject.NumBlocks()).To(Equal(4))

		Expect(blockRowCounts(reader())).To(Equal([]int{1, 4, 0, 1}))

		rows, err := scanAll(reader().Scan())
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(Equal([][]byte{
			[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e"), []byte("f"),
		}))
	})

	It("should prevent writes after close", func() {
		Expect(subject.Close()).To(Succeed())
		Expect(subject.Append([]byte("x"))).To(MatchError(`zstblocks: is closed`))
		Expect(subject.WriteBlock(nil)).To(MatchError(`zstblocks: is closed`))
		Expect(subject.Close()).To(MatchError(`zstblocks: is closed`))
	})

	It("should propagate write errors", func() {
		w, err := zstblocks.NewWriter(failingWriter{}, &zstblocks.WriterOptions{BlockSize: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Append([]byte("x"))).To(MatchError(`write failed`))
		Expect(w.NumBlocks()).To(Equal(0))
	})

	It("should append without disturbing prior bytes", func() {
		Expect(subject.Append([]byte("a"))).To(Succeed())
		Expect(subject.Append([]byte("bb"))).To(Succeed())
		Expect(subject.Close()).To(Succeed())
		prior := append([]byte{}, buf.Bytes()...)

		Expect(zstblocks.AppendBlock(buf, [][]byte{[]byte("ccc")}, zstblocks.ZstdCompression)).To(Succeed())
		Expect(buf.Bytes()).To(HavePrefix(string(prior)))
		Expect(buf.Len()).To(BeNumerically(">", len(prior)))

		offsets, err := reader().BlockOffsets()
		Expect(err).NotTo(HaveOccurred())
		Expect(offsets).To(Equal([]int64{0, int64(len(prior))}))
		Expect(reader().ReadRowAt(int64(len(prior)), 0)).To(Equal([]byte("ccc")))
	})

	table.DescribeTable("packing",
		func(n, blockSize int, expected []int) {
			rows := make([][]byte, n)
			for i := range rows {
				rows[i] = []byte("x")
			}

			r, err := seedReader(rows, blockSize)
			Expect(err).NotTo(HaveOccurred())
			Expect(blockRowCounts(r)).To(Equal(expected))
		},
		table.Entry("exact", 6, 2, []int{2, 2, 2}),
		table.Entry("remainder", 5, 2, []int{2, 2, 1}),
		table.Entry("single", 3, 256, []int{3}),
		table.Entry("one per block", 3, 1, []int{1, 1, 1}),
		table.Entry("nothing", 0, 4, []int{}),
	)
})

var _ = Describe("WriteRowStream", func() {
	It("should batch rows", func() {
		buf := new(bytes.Buffer)
		src := &sliceSource{rows: seedRows(1000)}
		Expect(zstblocks.WriteRowStream(buf, src, 64, zstblocks.ZstdCompression)).To(Succeed())

		r := zstblocks.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil)
		Expect(r.NumBlocks()).To(Equal(16))

		rows, err := scanAll(r.Scan())
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(Equal(seedRows(1000)))
	})

	It("should reject bad block sizes", func() {
		err := zstblocks.WriteRowStream(io.Discard, &sliceSource{}, 0, zstblocks.ZstdCompression)
		expectErrIs(err, zstblocks.ErrBadBlockSize)

		err = zstblocks.WriteRowStream(io.Discard, &sliceSource{}, -3, zstblocks.ZstdCompression)
		expectErrIs(err, zstblocks.ErrBadBlockSize)
	})

	It("should propagate source errors", func() {
		src := &sliceSource{rows: seedRows(3), err: errors.New("source failed")}
		Expect(zstblocks.WriteRowStream(io.Discard, src, 2, zstblocks.ZstdCompression)).To(MatchError(`source failed`))
	})
})

var _ = Describe("WriteBlockStream", func() {
	It("should write one block per group", func() {
		buf := new(bytes.Buffer)
		src := &groupSource{groups: [][][]byte{
			{[]byte("a"), []byte("b"), []byte("c")},
			{[]byte("d")},
			{[]byte("e"), []byte("f")},
		}}
		Expect(zstblocks.WriteBlockStream(buf, src, zstblocks.SnappyCompression)).To(Succeed())

		r := zstblocks.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()), &zstblocks.ReaderOptions{
			Compression: zstblocks.SnappyCompression,
		})
		Expect(blockRowCounts(r)).To(Equal([]int{3, 1, 2}))
	})
})

// --------------------------------------------------------------------

type failingWriter struct{}

func (failingWriter) Write(_ []byte) (int, error) { return 0, errors.New("write failed") }

type sliceSource struct {
	rows [][]byte
	err  error
}

func (s *sliceSource) ReadRow() ([]byte, error) {
	if len(s.rows) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	return row, nil
}

type groupSource struct {
	groups [][][]byte
}

func (s *groupSource) ReadBlock() ([][]byte, error) {
	if len(s.groups) == 0 {
		return nil, io.EOF
	}
	rows := s.groups[0]
	s.groups = s.groups[1:]
	return rows, nil
}
