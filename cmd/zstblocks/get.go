package main

import (
	"github.com/bsm/zstblocks"
	"github.com/bsm/zstblocks/index"
)

func runGet(args []string, e *env) error {
	var (
		input, indexFile string
		offset, number   int64
		row              int
		codec            zstblocks.Compression
	)

	fs := newFlagSet("get", e)
	stringFlag(fs, &input, []string{"i", "input"}, "Input file")
	stringFlag(fs, &indexFile, []string{"index"}, "Row index file, as built by the index command")
	fs.Int64Var(&offset, "offset", 0, "Block offset")
	fs.IntVar(&row, "row", 0, "Row position within the block")
	fs.Int64Var(&number, "n", -1, "Row number within the container (requires --index)")
	codecVar(fs, &codec, []string{"c", "codec"}, "Compression codec (zstd or snappy)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if input == "" {
		return usageErrorf("Input file must be specified")
	}
	if (indexFile == "") != (number < 0) {
		return usageErrorf("Either both --index and -n or neither must be specified")
	}

	f, r, err := openContainer(input, codec)
	if err != nil {
		return err
	}
	defer f.Close()

	var data []byte
	if indexFile != "" {
		ix, err := index.Open(indexFile)
		if err != nil {
			return err
		}
		defer ix.Close()

		if data, err = ix.Get(r, uint64(number)); err != nil {
			return err
		}
	} else if data, err = r.ReadRowAt(offset, row); err != nil {
		return err
	}

	_, err = e.stdout.Write(data)
	return err
}
