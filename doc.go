/*
Package zstblocks contains a row-oriented, block-compressed container format
for opaque byte records. Rows are batched into blocks which are compressed
independently, trading compression ratio against random-access granularity.

Data Structure Documentation

Container

A container is a flat concatenation of frames. There is no file header,
index or footer, new blocks are added by appending frames to the end.

    Container layout:
    +---------+---------+---------+
    | frame 1 |   ...   | frame n |
    +---------+---------+---------+

Frame

A frame holds a single compressed block, prefixed by its compressed length.

    Frame layout:
    +-----------------------------+-------------------------------+
    | compressed length (4 bytes) | compressed payload (variable) |
    +-----------------------------+-------------------------------+

Payload

The decompressed payload starts with the number of rows, followed by an
entry table and the row data (the arena). Each entry locates one row within
the arena.

    Payload layout:
    +----------------------+---------+---------+---------+-------------------+
    | row count (4 bytes)  | entry 1 |   ...   | entry n | arena (variable)  |
    +----------------------+---------+---------+---------+-------------------+

    Entry:
    +----------------------------+--------------------------+
    | arena offset (4 bytes)     |  row size (4 bytes)      |
    +----------------------------+--------------------------+

All integers are unsigned little-endian. The codec is not recorded in the
container, readers must be configured with the codec the writer used.
*/
package zstblocks
