package ring

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ring is a handle onto an mmap'd ring buffer file. The zero value is not
// usable; obtain one via Create or Open. A Ring is safe for the single
// producer to call Publish from one goroutine while a separate process (or
// this one, for tests) reads Head/Tail/BufSize concurrently, matching the
// original single-producer design. Publish calls on one Ring are serialized
// by an internal mutex; nothing coordinates two Ring handles (in one
// process or in several) publishing into the same file.
type Ring struct {
	mu sync.Mutex

	file    *os.File
	mapped  []byte
	bufSize uint64

	headPtr *uint64
	tailPtr *uint64
	buf     []byte // the circular buffer region, a sub-slice of mapped

	closed bool
}

func pageRoundUp(n int) int {
	p := unix.Getpagesize()
	return ((n + p - 1) / p) * p
}

// Create makes a new ring-buffer file at path sized to hold at least
// bufSize bytes of circular buffer, and maps it. It fails if path already
// exists, mirroring the original implementation's O_EXCL create.
func Create(path string, bufSize uint64) (*Ring, error) {
	if bufSize < minBufSize {
		return nil, ErrInvalidBufSize
	}

	total := pageRoundUp(dataOffset + int(bufSize))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
		return nil, fmt.Errorf("ring: create %s: %w", path, err)
	}
	if err := f.Truncate(int64(total)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ring: truncate %s: %w", path, err)
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ring: mmap %s: %w", path, err)
	}

	binary.LittleEndian.PutUint32(mapped[0:4], magic)
	binary.LittleEndian.PutUint16(mapped[4:6], headerVersion)
	binary.LittleEndian.PutUint64(mapped[8:16], bufSize)

	r := newRingFromMapping(f, mapped, bufSize)
	return r, nil
}

// Open maps an existing ring-buffer file created by Create (by this
// process or another), validating the header magic and version.
func Open(path string) (*Ring, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("ring: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ring: stat %s: %w", path, err)
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ring: mmap %s: %w", path, err)
	}

	if binary.LittleEndian.Uint32(mapped[0:4]) != magic {
		unix.Munmap(mapped)
		f.Close()
		return nil, ErrBadMagic
	}
	if version := binary.LittleEndian.Uint16(mapped[4:6]); version != headerVersion {
		unix.Munmap(mapped)
		f.Close()
		return nil, fmt.Errorf("%w: file has version %d, this binary expects %d", ErrVersionMismatch, version, headerVersion)
	}
	bufSize := binary.LittleEndian.Uint64(mapped[8:16])

	return newRingFromMapping(f, mapped, bufSize), nil
}

func newRingFromMapping(f *os.File, mapped []byte, bufSize uint64) *Ring {
	return &Ring{
		file:    f,
		mapped:  mapped,
		bufSize: bufSize,
		headPtr: (*uint64)(unsafe.Pointer(&mapped[headOffset])),
		tailPtr: (*uint64)(unsafe.Pointer(&mapped[tailOffset])),
		buf:     mapped[dataOffset : dataOffset+int(bufSize)],
	}
}

// Close unmaps the file and closes its descriptor. It does not delete the
// file; a consumer may still be reading it.
func (r *Ring) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	err := unix.Munmap(r.mapped)
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Head returns the producer's current absolute write offset.
func (r *Ring) Head() uint64 { return atomic.LoadUint64(r.headPtr) }

// Tail returns the consumer's current absolute read offset.
func (r *Ring) Tail() uint64 { return atomic.LoadUint64(r.tailPtr) }

// BufSize returns the size in bytes of the circular buffer region.
func (r *Ring) BufSize() uint64 { return r.bufSize }

// BufferPtr returns a pointer to the start of the circular buffer region
// within the mapped file, for callers (namely the C ABI in cmd/ringabi)
// that need to hand a raw address to a non-Go consumer. The memory is
// backed by mmap, not the Go heap, so holding this pointer past the
// Ring's lifetime is safe from the garbage collector's perspective but
// unsafe if the Ring has been closed.
func (r *Ring) BufferPtr() unsafe.Pointer {
	return unsafe.Pointer(&r.buf[0])
}

// SetTail forcibly advances the consumer offset. Intended for a consumer
// process to acknowledge how far it has read; the producer never calls
// this itself.
func (r *Ring) SetTail(newTail uint64) {
	atomic.StoreUint64(r.tailPtr, newTail)
}

// Publish writes a framed message of the given type. If the buffer lacks
// room, it advances tail to evict the oldest frames; publish never
// blocks and never fails for lack of space; the consumer simply loses the
// frames that fell off the back (spec.md §4.3, overwrite-oldest policy).
// It returns ErrPayloadTooLarge if the framed message (payload plus 5 bytes
// of length and type) is larger than the entire buffer, and ErrClosed if
// the Ring has been closed.
func (r *Ring) Publish(msgType MessageType, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if uint64(len(payload)) > r.bufSize {
		return ErrPayloadTooLarge
	}

	msgLen := uint32(1 + len(payload))
	need := uint64(4) + uint64(msgLen)
	if need > r.bufSize {
		return ErrPayloadTooLarge
	}

	head := atomic.LoadUint64(r.headPtr)
	tail := atomic.LoadUint64(r.tailPtr)
	used := head - tail
	if need > r.bufSize-used {
		wantFree := need - (r.bufSize - used)
		atomic.StoreUint64(r.tailPtr, tail+wantFree)
	}

	pos := head % r.bufSize
	if pos+need <= r.bufSize {
		binary.LittleEndian.PutUint32(r.buf[pos:], msgLen)
		r.buf[pos+4] = byte(msgType)
		copy(r.buf[pos+5:], payload)
	} else {
		r.writeWrapped(pos, msgLen, msgType, payload)
	}

	atomic.StoreUint64(r.headPtr, head+need)
	return nil
}

// writeWrapped handles the case where a frame does not fit contiguously
// before the end of the buffer: it marks the remaining tail space with
// wrapMarker and restarts the frame at offset 0, matching the original
// implementation's split-across-wrap handling (including the sub-case
// where even the 4-byte wrap marker itself straddles the end).
func (r *Ring) writeWrapped(pos uint64, msgLen uint32, msgType MessageType, payload []byte) {
	var wm [4]byte
	binary.LittleEndian.PutUint32(wm[:], wrapMarker)

	if pos+4 <= r.bufSize {
		copy(r.buf[pos:], wm[:])
	} else {
		part := r.bufSize - pos
		copy(r.buf[pos:], wm[:part])
		copy(r.buf[0:], wm[part:])
	}

	binary.LittleEndian.PutUint32(r.buf[0:], msgLen)
	r.buf[4] = byte(msgType)
	copy(r.buf[5:], payload)
}

// PublishSnapshotJSON is a convenience wrapper publishing json as a
// SnapshotJSON frame.
func (r *Ring) PublishSnapshotJSON(json []byte) error {
	return r.Publish(SnapshotJSON, json)
}
