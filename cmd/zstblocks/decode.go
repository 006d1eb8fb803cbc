package main

import (
	"bufio"
	"io"

	"github.com/bsm/zstblocks"
	"github.com/bsm/zstblocks/rowio"
)

type decodeOptions struct {
	Input           string
	Stdin           bool
	Output          string
	Stdout          bool
	Append          bool
	NoLineSeparator bool
	OutputAsStream  bool
	Codec           zstblocks.Compression
}

func runDecode(args []string, e *env) error {
	var o decodeOptions

	fs := newFlagSet("decode", e)
	stringFlag(fs, &o.Input, []string{"i", "input"}, "Input file")
	boolFlag(fs, &o.Stdin, []string{"stdin"}, "Read the container from stdin")
	stringFlag(fs, &o.Output, []string{"o", "output"}, "Output file")
	boolFlag(fs, &o.Stdout, []string{"stdout"}, "Write to stdout")
	boolFlag(fs, &o.Append, []string{"a", "append"}, "Append to output file")
	boolFlag(fs, &o.NoLineSeparator, []string{"no-line-separator"}, "Do not separate rows by newlines")
	boolFlag(fs, &o.OutputAsStream, []string{"output-as-stream"}, "Write rows in stream format: uint32 data_size, byte data[data_size]")
	codecVar(fs, &o.Codec, []string{"c", "codec"}, "Compression codec (zstd or snappy)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if (o.Input == "") == !o.Stdin {
		return usageErrorf("Either --input or --stdin must be specified")
	}
	return decode(&o, e)
}

func decode(o *decodeOptions, e *env) error {
	var scanner *zstblocks.Scanner
	if o.Stdin {
		scanner = zstblocks.NewScanner(bufio.NewReader(e.stdin), &zstblocks.ReaderOptions{Compression: o.Codec})
	} else {
		f, r, err := openContainer(o.Input, o.Codec)
		if err != nil {
			return err
		}
		defer f.Close()

		scanner = r.Scan()
	}

	out, err := openOutput(o.Output, o.Stdout, o.Append, e)
	if err != nil {
		return err
	}
	defer out.Close()

	bw := bufio.NewWriterSize(out, 1<<20)
	if o.OutputAsStream {
		err = writeStream(bw, scanner)
	} else {
		err = writeLines(bw, scanner, !o.NoLineSeparator)
	}
	if err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return out.Close()
}

// writeLines writes rows, optionally separated by a single newline. No
// separator follows the last row.
func writeLines(w io.Writer, scanner *zstblocks.Scanner, separate bool) error {
	newline := []byte{'\n'}
	for first := true; scanner.Next(); first = false {
		if separate && !first {
			if _, err := w.Write(newline); err != nil {
				return err
			}
		}
		if _, err := w.Write(scanner.Row()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// writeStream writes rows as a length-prefixed row stream, terminated by the
// sentinel.
func writeStream(w io.Writer, scanner *zstblocks.Scanner) error {
	rw := rowio.NewRowWriter(w)
	for scanner.Next() {
		if err := rw.WriteRow(scanner.Row()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return rw.Close()
}
