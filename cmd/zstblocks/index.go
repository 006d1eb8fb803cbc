package main

import (
	"fmt"

	"github.com/bsm/zstblocks"
	"github.com/bsm/zstblocks/index"
)

func runIndex(args []string, e *env) error {
	var (
		input, output string
		codec         zstblocks.Compression
	)

	fs := newFlagSet("index", e)
	stringFlag(fs, &input, []string{"i", "input"}, "Input file")
	stringFlag(fs, &output, []string{"o", "output"}, "Index file (default: <input>.cdb)")
	codecVar(fs, &codec, []string{"c", "codec"}, "Compression codec (zstd or snappy)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if input == "" {
		return usageErrorf("Input file must be specified")
	}
	if output == "" {
		output = input + ".cdb"
	}

	f, r, err := openContainer(input, codec)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := index.Build(output, r)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stderr, "Indexed %d rows into %s\n", n, output)
	return nil
}
