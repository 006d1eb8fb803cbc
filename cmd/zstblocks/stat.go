package main

import (
	"encoding/binary"
	"fmt"

	"github.com/bsm/zstblocks"
	"github.com/cespare/xxhash/v2"
)

// containerStats summarises a container.
type containerStats struct {
	Blocks      int
	Rows        int64
	RowBytes    int64
	FileBytes   int64
	Fingerprint uint64 // xxhash64 of the length-prefixed row sequence
}

func runStat(args []string, e *env) error {
	var (
		input string
		codec zstblocks.Compression
	)

	fs := newFlagSet("stat", e)
	stringFlag(fs, &input, []string{"i", "input"}, "Input file")
	codecVar(fs, &codec, []string{"c", "codec"}, "Compression codec (zstd or snappy)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if input == "" {
		return usageErrorf("Input file must be specified")
	}

	f, r, err := openContainer(input, codec)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := collectStats(r)
	if err != nil {
		return err
	}

	ratio := 0.0
	if st.FileBytes != 0 {
		ratio = float64(st.RowBytes) / float64(st.FileBytes)
	}

	fmt.Fprintf(e.stdout, "blocks:      %d\n", st.Blocks)
	fmt.Fprintf(e.stdout, "rows:        %d\n", st.Rows)
	fmt.Fprintf(e.stdout, "row bytes:   %d\n", st.RowBytes)
	fmt.Fprintf(e.stdout, "file bytes:  %d\n", st.FileBytes)
	fmt.Fprintf(e.stdout, "ratio:       %.2f\n", ratio)
	fmt.Fprintf(e.stdout, "fingerprint: %016x\n", st.Fingerprint)
	return nil
}

// collectStats scans all rows. The fingerprint only depends on the rows and
// their order, not on how they are grouped into blocks.
func collectStats(r *zstblocks.Reader) (*containerStats, error) {
	st := &containerStats{FileBytes: r.Size()}
	digest := xxhash.New()
	tmp := make([]byte, 4)

	scanner := r.Scan()
	for scanner.Next() {
		row := scanner.Row()
		binary.LittleEndian.PutUint32(tmp, uint32(len(row)))
		_, _ = digest.Write(tmp)
		_, _ = digest.Write(row)

		st.Rows++
		st.RowBytes += int64(len(row))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	st.Blocks = scanner.BlockIndex() + 1
	st.Fingerprint = digest.Sum64()
	return st, nil
}
