package main

import (
	"fmt"
	"io"

	"github.com/bsm/zstblocks"
	"github.com/klauspost/compress/zstd"
)

// progressInterval is the number of blocks between progress updates.
const progressInterval = 200

func runToZst(args []string, e *env) error {
	var (
		codec zstblocks.Compression
		quiet bool
	)

	fs := newFlagSet("tozst", e)
	codecVar(fs, &codec, []string{"c", "codec"}, "Compression codec of the input (zstd or snappy)")
	boolFlag(fs, &quiet, []string{"q", "quiet"}, "Do not print progress")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: zstblocks tozst [options] <input file> [<output file>]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 || fs.NArg() > 2 {
		return usageErrorf("Usage: zstblocks tozst [options] <input file> [<output file>]")
	}
	input, output := fs.Arg(0), fs.Arg(0)+".zst"
	if fs.NArg() == 2 {
		output = fs.Arg(1)
	}

	f, r, err := openContainer(input, codec)
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := createOutput(output, false)
	if err != nil {
		return err
	}
	defer out.Close()

	var progress io.Writer
	if !quiet {
		progress = e.stderr
	}
	if err := toZst(out, r, progress); err != nil {
		return err
	}
	return out.Close()
}

// toZst writes all rows of r to w as a single zstd stream, separated by
// newlines. Progress is reported to progress, if not nil.
func toZst(w io.Writer, r *zstblocks.Reader, progress io.Writer) error {
	total, err := r.NumBlocks()
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}

	newline := []byte{'\n'}
	scanner := r.Scan()
	last := -1
	for first := true; scanner.Next(); first = false {
		if bpos := scanner.BlockIndex(); progress != nil && bpos != last && bpos%progressInterval == 0 {
			fmt.Fprintf(progress, "\r%.1f%%", 100*float64(bpos)/float64(total))
			last = bpos
		}

		if !first {
			if _, err := enc.Write(newline); err != nil {
				enc.Close()
				return err
			}
		}
		if _, err := enc.Write(scanner.Row()); err != nil {
			enc.Close()
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		enc.Close()
		return err
	}

	if err := enc.Close(); err != nil {
		return err
	}
	if progress != nil {
		fmt.Fprintln(progress, "\r100.0%")
	}
	return nil
}
