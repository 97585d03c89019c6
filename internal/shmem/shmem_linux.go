// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package shmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PageSize returns the system page size.
func PageSize() uint64 {
	return uint64(unix.Getpagesize())
}

// Create allocates a zero-filled region of at least size bytes backed by
// an anonymous memory file. The name is only used for debugging.
func Create(name string, size uint64) (*Region, error) {
	if size == 0 {
		return nil, ErrInvalidSize
	}
	size = RoundToPage(size)

	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("shmem: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shmem: ftruncate %d bytes: %w", size, err)
	}
	return &Region{fd: fd, size: size}, nil
}

// Close releases the region handle. Existing mappings stay valid until
// they are unmapped.
func (r *Region) Close() error {
	if r.fd < 0 {
		return nil
	}
	err := unix.Close(r.fd)
	r.fd = -1
	if err != nil {
		return fmt.Errorf("shmem: close: %w", err)
	}
	return nil
}

// Dup returns a new handle to the region behind fd. The duplicate stays
// valid after fd is closed and must be released with CloseHandle.
func Dup(fd int) (int, error) {
	nfd, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("shmem: dup %d: %w", fd, err)
	}
	return nfd, nil
}

// CloseHandle releases a handle obtained from Dup.
func CloseHandle(fd int) error {
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("shmem: close %d: %w", fd, err)
	}
	return nil
}

// SizeOf returns the size in bytes of the region behind fd.
func SizeOf(fd int) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, fmt.Errorf("shmem: fstat: %w", err)
	}
	return uint64(st.Size), nil
}

// Map maps length bytes at offset of the region behind fd.
func Map(fd int, offset, length uint64) (*Mapping, error) {
	size, err := SizeOf(fd)
	if err != nil {
		return nil, err
	}
	if err := checkRange(offset, length, size); err != nil {
		return nil, err
	}

	page := PageSize()
	base := offset / page * page
	delta := offset - base
	mem, err := unix.Mmap(fd, int64(base), int(delta+length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shmem: mmap: %w", err)
	}
	return &Mapping{mem: mem, data: mem[delta : delta+length : delta+length]}, nil
}

// Unmap releases the mapping. The bytes must not be used afterwards.
func (m *Mapping) Unmap() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem, m.data = nil, nil
	if err != nil {
		return fmt.Errorf("shmem: munmap: %w", err)
	}
	return nil
}
