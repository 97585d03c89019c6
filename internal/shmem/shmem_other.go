// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package shmem

import (
	"fmt"
	"os"
	"sync"
	"unsafe"
)

// Without memfd the regions are heap allocations shared only within the
// process; handles index a process-wide table.
var (
	regionsMu sync.Mutex
	regions   = map[int][]uint64{}
	nextFD    = 1 << 20
)

// PageSize returns the system page size.
func PageSize() uint64 {
	return uint64(os.Getpagesize())
}

// Create allocates a zero-filled region of at least size bytes.
func Create(name string, size uint64) (*Region, error) {
	if size == 0 {
		return nil, ErrInvalidSize
	}
	size = RoundToPage(size)

	regionsMu.Lock()
	defer regionsMu.Unlock()
	fd := nextFD
	nextFD++
	// uint64 backing keeps the counters word aligned.
	regions[fd] = make([]uint64, size/8)
	return &Region{fd: fd, size: size}, nil
}

// Close releases the region handle.
func (r *Region) Close() error {
	if r.fd < 0 {
		return nil
	}
	regionsMu.Lock()
	delete(regions, r.fd)
	regionsMu.Unlock()
	r.fd = -1
	return nil
}

// Dup returns a new handle to the region behind fd. The duplicate stays
// valid after fd is closed and must be released with CloseHandle.
func Dup(fd int) (int, error) {
	regionsMu.Lock()
	defer regionsMu.Unlock()
	words, ok := regions[fd]
	if !ok {
		return -1, fmt.Errorf("shmem: dup %d: unknown handle", fd)
	}
	nfd := nextFD
	nextFD++
	regions[nfd] = words
	return nfd, nil
}

// CloseHandle releases a handle obtained from Dup.
func CloseHandle(fd int) error {
	regionsMu.Lock()
	defer regionsMu.Unlock()
	if _, ok := regions[fd]; !ok {
		return fmt.Errorf("shmem: close %d: unknown handle", fd)
	}
	delete(regions, fd)
	return nil
}

func lookup(fd int) ([]byte, error) {
	regionsMu.Lock()
	words, ok := regions[fd]
	regionsMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("shmem: unknown handle %d", fd)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), len(words)*8), nil
}

// SizeOf returns the size in bytes of the region behind fd.
func SizeOf(fd int) (uint64, error) {
	mem, err := lookup(fd)
	if err != nil {
		return 0, err
	}
	return uint64(len(mem)), nil
}

// Map returns a view of length bytes at offset of the region behind fd.
func Map(fd int, offset, length uint64) (*Mapping, error) {
	mem, err := lookup(fd)
	if err != nil {
		return nil, err
	}
	if err := checkRange(offset, length, uint64(len(mem))); err != nil {
		return nil, err
	}
	end := offset + length
	return &Mapping{mem: mem, data: mem[offset:end:end]}, nil
}

// Unmap drops the view.
func (m *Mapping) Unmap() error {
	m.mem, m.data = nil, nil
	return nil
}
