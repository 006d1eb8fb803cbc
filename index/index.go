// Package index maintains a sidecar row index for containers, mapping the
// global ordinal of each row to the block and position it is stored in.
// The index is a constant database (CDB), built with a single scan.
package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/bsm/zstblocks"
	"github.com/colinmarc/cdb"
)

// ErrNotFound is returned when an ordinal is not indexed.
var ErrNotFound = errors.New("index: not found")

var errBadValue = errors.New("index: bad value")

// numRowsKey cannot collide with ordinal keys, which are 8 bytes long.
var numRowsKey = []byte("rows")

const locationSize = 12

// Location locates a single row within a container.
type Location = zstblocks.RowPosition

func encodeLocation(p []byte, l Location) {
	binary.LittleEndian.PutUint64(p[0:], uint64(l.BlockOffset))
	binary.LittleEndian.PutUint32(p[8:], uint32(l.RowIndex))
}

func decodeLocation(p []byte) (Location, error) {
	if len(p) != locationSize {
		return Location{}, errBadValue
	}
	return Location{
		BlockOffset: int64(binary.LittleEndian.Uint64(p[0:])),
		RowIndex:    int(binary.LittleEndian.Uint32(p[8:])),
	}, nil
}

// Build scans all rows of r and writes an index to path. It returns the
// number of indexed rows. On error, no index is left behind.
func Build(path string, r *zstblocks.Reader) (int64, error) {
	w, err := cdb.Create(path)
	if err != nil {
		return 0, err
	}

	n, err := build(w, r)
	if err != nil {
		_ = w.Close()
		_ = os.Remove(path)
		return 0, err
	}
	if err := w.Close(); err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

func build(w *cdb.Writer, r *zstblocks.Reader) (int64, error) {
	key := make([]byte, 8)
	val := make([]byte, locationSize)

	var n uint64
	scanner := r.Scan()
	for scanner.Next() {
		binary.BigEndian.PutUint64(key, n)
		encodeLocation(val, Location{
			BlockOffset: scanner.BlockOffset(),
			RowIndex:    scanner.RowIndex(),
		})

		if err := w.Put(key, val); err != nil {
			return 0, err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}

	binary.BigEndian.PutUint64(key, n)
	if err := w.Put(numRowsKey, key); err != nil {
		return 0, err
	}
	return int64(n), nil
}

// --------------------------------------------------------------------

// Index is an opened row index.
type Index struct {
	db *cdb.CDB
	n  uint64
}

// Open opens an index created by Build.
func Open(path string) (*Index, error) {
	db, err := cdb.Open(path)
	if err != nil {
		return nil, err
	}

	val, err := db.Get(numRowsKey)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if len(val) != 8 {
		_ = db.Close()
		return nil, fmt.Errorf("index: %s is not a row index", path)
	}

	return &Index{db: db, n: binary.BigEndian.Uint64(val)}, nil
}

// Len returns the number of indexed rows.
func (ix *Index) Len() uint64 { return ix.n }

// Locate returns the location of the n-th row.
// It may return an ErrNotFound error.
func (ix *Index) Locate(n uint64) (Location, error) {
	if n >= ix.n {
		return Location{}, ErrNotFound
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)

	val, err := ix.db.Get(key)
	if err != nil {
		return Location{}, err
	}
	if val == nil {
		return Location{}, ErrNotFound
	}
	return decodeLocation(val)
}

// Get reads the n-th row from r.
// It may return an ErrNotFound error.
func (ix *Index) Get(r *zstblocks.Reader, n uint64) ([]byte, error) {
	loc, err := ix.Locate(n)
	if err != nil {
		return nil, err
	}
	return r.ReadRowAt(loc.BlockOffset, loc.RowIndex)
}

// GetMany reads the rows with the given ordinals from r, in the same order.
// Rows sharing a block are decoded together.
// It may return an ErrNotFound error.
func (ix *Index) GetMany(r *zstblocks.Reader, ns []uint64) ([][]byte, error) {
	locs := make([]Location, 0, len(ns))
	for _, n := range ns {
		loc, err := ix.Locate(n)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return r.ReadRowsAt(locs)
}

// Close closes the index.
func (ix *Index) Close() error {
	return ix.db.Close()
}
