//go:build unix

package memory

import "golang.org/x/sys/unix"

// rawAlloc reserves an anonymous, zero-filled mapping directly from the
// OS. This is genuinely unmanaged memory: Go's own garbage collector
// never scans or moves it, matching the "raw unmanaged memory" the
// collector is specified to run over.
func rawAlloc(size uintptr) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func rawFree(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munmap(b)
}
