// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package shmem allocates and maps shared memory regions.
//
// A Region is created once and identified by a handle (a file descriptor
// on Linux). Any number of Mappings can be made from the handle, at
// arbitrary byte offsets; each mapping covers the page-aligned window
// around the requested range and exposes exactly the requested bytes.
package shmem

import "errors"

var (
	// ErrInvalidSize is returned for zero-length regions or mappings.
	ErrInvalidSize = errors.New("shmem: invalid size")

	// ErrOutOfRange is returned when a mapping exceeds its region.
	ErrOutOfRange = errors.New("shmem: range exceeds region")
)

// Region is a shared memory allocation owned by its creator.
type Region struct {
	fd   int
	size uint64
}

// FD returns the handle other processes map the region with.
func (r *Region) FD() int {
	return r.fd
}

// Size returns the region size in bytes, a multiple of the page size.
func (r *Region) Size() uint64 {
	return r.size
}

// Mapping is a view of [offset, offset+length) of a region.
type Mapping struct {
	mem  []byte // page-aligned mapping
	data []byte
}

// Bytes returns the mapped bytes of the requested range.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// RoundToPage rounds n up to a multiple of the page size.
func RoundToPage(n uint64) uint64 {
	p := PageSize()
	return (n + p - 1) / p * p
}

func checkRange(offset, length, size uint64) error {
	if length == 0 {
		return ErrInvalidSize
	}
	if offset > size || length > size-offset {
		return ErrOutOfRange
	}
	return nil
}
