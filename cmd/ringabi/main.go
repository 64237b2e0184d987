// Command ringabi is not a runnable program: it is built with
// `go build -buildmode=c-shared` to produce a shared library exposing the
// Ring's C ABI (spec.md §6) for non-Go consumers to mmap and read the same
// ring file this process's Synchronizer writes to. Handles are opaque
// integers into a process-local table rather than raw Go pointers, since
// cgo forbids C code from holding a Go pointer across calls.
package main

/*
#include <stdint.h>
#include <stddef.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/aetherbook/aetherbook/ring"
)

var (
	handlesMu sync.Mutex
	handles   = map[C.uintptr_t]*ring.Ring{}
	nextID    C.uintptr_t = 1
)

func register(r *ring.Ring) C.uintptr_t {
	handlesMu.Lock()
	defer handlesMu.Unlock()
	id := nextID
	nextID++
	handles[id] = r
	return id
}

func lookup(h C.uintptr_t) *ring.Ring {
	handlesMu.Lock()
	defer handlesMu.Unlock()
	return handles[h]
}

func forget(h C.uintptr_t) {
	handlesMu.Lock()
	defer handlesMu.Unlock()
	delete(handles, h)
}

//export ring_create
func ring_create(path *C.char, bufSize C.size_t) C.uintptr_t {
	r, err := ring.Create(C.GoString(path), uint64(bufSize))
	if err != nil {
		return 0
	}
	return register(r)
}

//export ring_open
func ring_open(path *C.char) C.uintptr_t {
	r, err := ring.Open(C.GoString(path))
	if err != nil {
		return 0
	}
	return register(r)
}

//export ring_close
func ring_close(h C.uintptr_t) {
	if r := lookup(h); r != nil {
		r.Close()
	}
	forget(h)
}

//export ring_publish
func ring_publish(h C.uintptr_t, msgType C.uint, payload unsafe.Pointer, payloadLen C.size_t) C.int {
	r := lookup(h)
	if r == nil {
		return 0
	}
	var buf []byte
	if payloadLen > 0 {
		buf = C.GoBytes(payload, C.int(payloadLen))
	}
	if err := r.Publish(ring.MessageType(msgType), buf); err != nil {
		return 0
	}
	return 1
}

//export ring_publish_snapshot_json
func ring_publish_snapshot_json(h C.uintptr_t, jsonCStr *C.char) C.int {
	r := lookup(h)
	if r == nil {
		return 0
	}
	if err := r.PublishSnapshotJSON([]byte(C.GoString(jsonCStr))); err != nil {
		return 0
	}
	return 1
}

//export ring_get_head
func ring_get_head(h C.uintptr_t) C.uint64_t {
	r := lookup(h)
	if r == nil {
		return 0
	}
	return C.uint64_t(r.Head())
}

//export ring_get_tail
func ring_get_tail(h C.uintptr_t) C.uint64_t {
	r := lookup(h)
	if r == nil {
		return 0
	}
	return C.uint64_t(r.Tail())
}

//export ring_get_buf_size
func ring_get_buf_size(h C.uintptr_t) C.uint64_t {
	r := lookup(h)
	if r == nil {
		return 0
	}
	return C.uint64_t(r.BufSize())
}

//export ring_get_buffer_ptr
func ring_get_buffer_ptr(h C.uintptr_t) unsafe.Pointer {
	r := lookup(h)
	if r == nil {
		return nil
	}
	return r.BufferPtr()
}

//export ring_set_tail
func ring_set_tail(h C.uintptr_t, newTail C.uint64_t) {
	if r := lookup(h); r != nil {
		r.SetTail(uint64(newTail))
	}
}

func main() {}
