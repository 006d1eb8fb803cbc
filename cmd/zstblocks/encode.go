package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/bsm/zstblocks"
	"github.com/bsm/zstblocks/rowio"
)

const containerExt = ".zst_blocks"

type encodeOptions struct {
	Input         string
	InputAsText   bool
	KeepNewlines  bool
	Stdin         bool
	StdinAsBlocks bool
	Output        string
	Stdout        bool
	Append        bool
	BlockSize     int
	Codec         zstblocks.Compression
	InputCodec    zstblocks.Compression
}

func runEncode(args []string, e *env) error {
	var o encodeOptions

	fs := newFlagSet("encode", e)
	stringFlag(fs, &o.Input, []string{"i", "input"}, "Input file")
	boolFlag(fs, &o.InputAsText, []string{"t", "input-as-text"}, "Read input file as text (one line = one row)")
	boolFlag(fs, &o.KeepNewlines, []string{"keep-line-terminator"}, "Keep line terminators as part of text rows")
	boolFlag(fs, &o.Stdin, []string{"stdin"}, "Read from stdin (stream format: uint32 data_size, byte data[data_size])")
	boolFlag(fs, &o.StdinAsBlocks, []string{"stdin-as-blocks"}, "Read from stdin (block format: uint32 count, (uint32 data_size, byte data[data_size])[count])")
	stringFlag(fs, &o.Output, []string{"o", "output"}, "Output file")
	boolFlag(fs, &o.Stdout, []string{"stdout"}, "Write to stdout")
	boolFlag(fs, &o.Append, []string{"a", "append"}, "Append to output file")
	fs.IntVar(&o.BlockSize, "b", zstblocks.DefaultBlockSize, "Block size (rows per block)")
	fs.IntVar(&o.BlockSize, "block-size", zstblocks.DefaultBlockSize, "Block size (rows per block)")
	codecVar(fs, &o.Codec, []string{"c", "codec"}, "Output compression codec (zstd or snappy)")
	codecVar(fs, &o.InputCodec, []string{"input-codec"}, "Input container compression codec (zstd or snappy)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if o.StdinAsBlocks {
		o.Stdin = true
	}
	if (o.Input == "") == !o.Stdin {
		return usageErrorf("Either --input or --stdin must be specified")
	}
	if o.BlockSize <= 0 {
		return usageErrorf("Block size must be greater than 0")
	}
	if o.BlockSize > zstblocks.MaxBlockSize {
		return usageErrorf("Block size must be less than 0x7FFFFFFF")
	}

	return encode(&o, e)
}

func encode(o *encodeOptions, e *env) error {
	var rows zstblocks.RowSource
	var groups zstblocks.BlockSource

	switch {
	case o.Input != "" && o.InputAsText:
		f, err := os.Open(o.Input)
		if os.IsNotExist(err) {
			return usageErrorf("Input file '%s' does not exist", o.Input)
		} else if err != nil {
			return err
		}
		defer f.Close()

		rows = rowio.NewLineReader(f, &rowio.LineReaderOptions{KeepTerminator: o.KeepNewlines})
	case o.Input != "":
		if !strings.HasSuffix(o.Input, containerExt) {
			return usageErrorf("Input file must have %s extension", containerExt)
		}

		f, r, err := openContainer(o.Input, o.InputCodec)
		if err != nil {
			return err
		}
		defer f.Close()

		rows = r.Scan()
	case o.StdinAsBlocks:
		groups = rowio.NewGroupReader(bufio.NewReader(e.stdin))
	default:
		rows = rowio.NewRowReader(bufio.NewReader(e.stdin))
	}

	out, err := openOutput(o.Output, o.Stdout, o.Append, e)
	if err != nil {
		return err
	}
	defer out.Close()

	// frames are written whole, buffering only batches the syscalls
	bw := bufio.NewWriterSize(out, 1<<20)
	if groups != nil {
		err = zstblocks.WriteBlockStream(bw, groups, o.Codec)
	} else {
		err = zstblocks.WriteRowStream(bw, rows, o.BlockSize, o.Codec)
	}
	if err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return out.Close()
}
