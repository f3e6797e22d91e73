// Package memory implements the raw-memory operations the collector
// runs on top of: allocation of a fixed, pointer-stable byte range and
// fixed-width reads/writes into it. Nothing here knows about objects,
// types or generations — that is the heap package's job.
package memory

import "unsafe"

// PtrSize is the size, in bytes, of a pointer-sized value on this
// platform. Long fields align to it; references are exactly this wide.
const PtrSize = unsafe.Sizeof(uintptr(0))

// HeaderSize is the fixed object header: an 8-byte sync block (always
// zero, reserved for parity with a real runtime's object header) and
// an 8-byte type id.
const HeaderSize uintptr = 16

// AlignUp rounds n up to the next multiple of align. align must be a
// power of two.
func AlignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// Buffer is a pointer-stable, fixed-size byte range used to back one
// segment. Its backing storage is never reallocated or moved for the
// lifetime of the buffer, so the address taken at construction stays
// valid for every subsequent read/write.
type Buffer struct {
	data []byte
	base uintptr
}

// NewBuffer reserves size bytes of unmanaged memory. On build
// configurations without a raw OS mapping available, it falls back to
// a pinned Go slice (see alloc_other.go) — still address-stable for
// our purposes, since Go's allocator never moves a live heap object.
func NewBuffer(size uintptr) (*Buffer, error) {
	if size == 0 {
		size = 1
	}
	data, err := rawAlloc(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		data: data,
		base: uintptr(unsafe.Pointer(&data[0])),
	}, nil
}

// Base returns the absolute address of byte 0 of the buffer.
func (b *Buffer) Base() uintptr { return b.base }

// Size returns the buffer's length in bytes.
func (b *Buffer) Size() uintptr { return uintptr(len(b.data)) }

// Bytes exposes the underlying storage for bulk copy operations
// (compaction, promotion). Callers must stay within [0, Size()).
func (b *Buffer) Bytes() []byte { return b.data }

// Release returns the buffer's storage to the OS where that is
// meaningful (an mmap'd region); it is a no-op for the slice fallback.
func (b *Buffer) Release() error { return rawFree(b.data) }

func (b *Buffer) ptr(off uintptr) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(&b.data[0]), off)
}

// Zero clears n bytes starting at off.
func (b *Buffer) Zero(off, n uintptr) {
	if n == 0 {
		return
	}
	clear(b.data[off : off+n])
}

func (b *Buffer) ReadUint64(off uintptr) uint64   { return *(*uint64)(b.ptr(off)) }
func (b *Buffer) WriteUint64(off uintptr, v uint64) { *(*uint64)(b.ptr(off)) = v }

func (b *Buffer) ReadInt32(off uintptr) int32    { return *(*int32)(b.ptr(off)) }
func (b *Buffer) WriteInt32(off uintptr, v int32) { *(*int32)(b.ptr(off)) = v }

func (b *Buffer) ReadUintptr(off uintptr) uintptr     { return *(*uintptr)(b.ptr(off)) }
func (b *Buffer) WriteUintptr(off uintptr, v uintptr) { *(*uintptr)(b.ptr(off)) = v }

func (b *Buffer) ReadDecimal(off uintptr) [16]byte      { return *(*[16]byte)(b.ptr(off)) }
func (b *Buffer) WriteDecimal(off uintptr, v [16]byte)  { *(*[16]byte)(b.ptr(off)) = v }

// ReadHeaderTypeID reads the type id of the object whose header starts
// at the given segment-relative offset.
func (b *Buffer) ReadHeaderTypeID(objOff uintptr) uint64 {
	return b.ReadUint64(objOff + 8)
}

// WriteHeader zero-initializes the sync block and sets the type id, as
// required of every freshly allocated object.
func (b *Buffer) WriteHeader(objOff uintptr, typeID uint64) {
	b.WriteUint64(objOff, 0)
	b.WriteUint64(objOff+8, typeID)
}

// ReadUint64At operates on a detached byte slice (e.g. a compaction
// scratch copy) rather than a Buffer, using the same native-endian
// layout as the Buffer accessors above.
func ReadUint64At(data []byte, off uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(&data[off]))
}
