package zstblocks

import "encoding/binary"

// EntrySize is the encoded size of an Entry.
const EntrySize = 8

// Entry locates a single row within the arena of a block.
type Entry struct {
	Offset uint32 // arena-local offset
	Size   uint32 // row length in bytes
}

// End returns the arena position directly after the row.
func (e Entry) End() uint64 { return uint64(e.Offset) + uint64(e.Size) }

func putEntry(p []byte, e Entry) {
	binary.LittleEndian.PutUint32(p[0:], e.Offset)
	binary.LittleEndian.PutUint32(p[4:], e.Size)
}

func readEntry(p []byte) Entry {
	return Entry{
		Offset: binary.LittleEndian.Uint32(p[0:]),
		Size:   binary.LittleEndian.Uint32(p[4:]),
	}
}

// putEntryTable writes the row count followed by one entry per row into p.
// Offsets are a running sum of row lengths. The caller must ensure p is
// large enough and the totals fit into 32 bits.
func putEntryTable(p []byte, rows [][]byte) {
	binary.LittleEndian.PutUint32(p, uint32(len(rows)))

	var off uint32
	for i, row := range rows {
		putEntry(p[4+i*EntrySize:], Entry{Offset: off, Size: uint32(len(row))})
		off += uint32(len(row))
	}
}
