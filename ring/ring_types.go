// Package ring implements the single-producer, byte-framed shared-memory
// ring buffer that the Synchronizer publishes depth events and snapshots
// into (spec.md §4.3). Layout and wire framing mirror the project's
// original C++ implementation byte-for-byte, since any consumer mapping
// the same file must agree on offsets without a shared Go dependency.
package ring

import "errors"

const (
	// magic is "AETH" as a big-endian uint32, matching the original
	// implementation's RING_MAGIC.
	magic uint32 = 0x41455448

	headerVersion uint16 = 1

	// wrapMarker, written in place of a length field, tells a consumer
	// that the frame region from here to the end of the buffer is unused
	// padding and the next frame starts at offset 0.
	wrapMarker uint32 = 0xFFFFFFFF

	// headerSize is sizeof(RingHeader) in the original layout: magic(4) +
	// version(2) + reserved0(2) + buf_size(8) + reserved[4](32) = 48,
	// with no compiler padding since every field is already aligned.
	headerSize = 48

	// atomicsSize is the two uint64 atomics (head, tail) that follow the
	// header.
	atomicsSize = 16

	// metaPad separates the atomics from the circular buffer region so
	// the buffer starts at a tidy offset; matches meta_pad in the
	// original create_ring.
	metaPad = 64

	// dataOffset is the absolute byte offset of the circular buffer
	// region within the mapped file.
	dataOffset = headerSize + atomicsSize + metaPad

	headOffset = headerSize
	tailOffset = headerSize + 8

	minBufSize = 4096
)

// MessageType distinguishes frame payloads. User-defined types above
// SnapshotJSON are permitted by the wire format but unused by this
// program.
type MessageType uint8

const (
	DepthUpdate  MessageType = 1
	SnapshotJSON MessageType = 2
)

var (
	ErrInvalidBufSize  = errors.New("ring: buf_size must be at least 4096 bytes")
	ErrBadMagic        = errors.New("ring: magic mismatch, not an aetherbook ring file")
	ErrVersionMismatch = errors.New("ring: unsupported header version")
	ErrPayloadTooLarge = errors.New("ring: payload larger than buf_size")
	ErrAlreadyExists   = errors.New("ring: file already exists")
	ErrClosed          = errors.New("ring: use of closed ring")
)
