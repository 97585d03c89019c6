// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

import (
	"fmt"
	"math"
	"math/bits"
	"slices"

	"code.hybscloud.com/fmq/internal/shmem"
)

// Grantor table positions.
const (
	GrantorRead      = 0
	GrantorWrite     = 1
	GrantorData      = 2
	GrantorEventFlag = 3
)

const (
	wordSize      = 8
	counterSize   = 8 // read and write pointers
	eventFlagSize = 4
	minGrantors   = GrantorData + 1
	maxGrantors   = GrantorEventFlag + 1
)

// Grantor locates one piece of queue state inside a shared memory region.
//
// The layout is fixed (four little 32-bit fields, 16 bytes) so a grantor
// table can be handed verbatim to another process.
type Grantor struct {
	Flags       uint32
	RegionIndex uint32 // index into the descriptor handle list
	Offset      uint32 // byte offset, word aligned
	Extent      uint32 // byte length
}

// QueueDescriptor is everything another handle needs to attach to a queue.
type QueueDescriptor interface {
	// Grantors returns the grantor table, indexed by GrantorRead,
	// GrantorWrite, GrantorData and optionally GrantorEventFlag.
	Grantors() []Grantor

	// Quantum returns the size in bytes of one element.
	Quantum() uint32

	// Size returns the ring capacity in bytes.
	Size() uint64

	// Handle returns the shared memory handles grantors refer to.
	Handle() []int

	// Flavor returns the queue flavor.
	Flavor() Flavor
}

// Descriptor is the immutable QueueDescriptor of a queue.
type Descriptor struct {
	grantors []Grantor
	handle   []int
	quantum  uint32
	size     uint64
	flavor   Flavor
}

// NewDescriptor rebuilds a descriptor from its parts, typically received
// from the process that created the queue. The slices are copied.
// Validation happens when a queue attaches to it.
func NewDescriptor(grantors []Grantor, handle []int, quantum uint32, size uint64, flavor Flavor) *Descriptor {
	return &Descriptor{
		grantors: slices.Clone(grantors),
		handle:   slices.Clone(handle),
		quantum:  quantum,
		size:     size,
		flavor:   flavor,
	}
}

func descriptorOf(qd QueueDescriptor) *Descriptor {
	if d, ok := qd.(*Descriptor); ok {
		return d
	}
	return NewDescriptor(qd.Grantors(), qd.Handle(), qd.Quantum(), qd.Size(), qd.Flavor())
}

// Grantors returns a copy of the grantor table.
func (d *Descriptor) Grantors() []Grantor { return slices.Clone(d.grantors) }

// Quantum returns the element size in bytes.
func (d *Descriptor) Quantum() uint32 { return d.quantum }

// Size returns the ring capacity in bytes.
func (d *Descriptor) Size() uint64 { return d.size }

// Handle returns a copy of the handle list.
func (d *Descriptor) Handle() []int { return slices.Clone(d.handle) }

// Flavor returns the queue flavor.
func (d *Descriptor) Flavor() Flavor { return d.flavor }

// HasEventFlag reports whether the descriptor carries an event flag word.
func (d *Descriptor) HasEventFlag() bool { return len(d.grantors) > GrantorEventFlag }

// validate checks the descriptor against the attaching element size and
// flavor.
func (d *Descriptor) validate(quantum uint32, flavor Flavor) error {
	if n := len(d.grantors); n < minGrantors || n > maxGrantors {
		return fmt.Errorf("%w: %d grantors", ErrInvalidDescriptor, n)
	}
	if d.quantum != quantum {
		return fmt.Errorf("%w: descriptor quantum %d, element size %d", ErrPayloadSizeMismatch, d.quantum, quantum)
	}
	if d.flavor != flavor {
		return fmt.Errorf("%w: descriptor is %v, handle is %v", ErrFlavorMismatch, d.flavor, flavor)
	}
	if d.size == 0 || d.size%uint64(d.quantum) != 0 {
		return fmt.Errorf("%w: size %d is not a positive multiple of quantum %d", ErrInvalidDescriptor, d.size, d.quantum)
	}
	minExtent := [maxGrantors]uint64{counterSize, counterSize, d.size, eventFlagSize}
	for i, g := range d.grantors {
		if g.Offset%wordSize != 0 {
			return fmt.Errorf("%w: grantor %d offset %d not word aligned", ErrInvalidDescriptor, i, g.Offset)
		}
		if int(g.RegionIndex) >= len(d.handle) {
			return fmt.Errorf("%w: grantor %d region %d out of range", ErrInvalidDescriptor, i, g.RegionIndex)
		}
		if uint64(g.Extent) < minExtent[i] {
			return fmt.Errorf("%w: grantor %d extent %d below %d", ErrInvalidDescriptor, i, g.Extent, minExtent[i])
		}
	}
	return nil
}

// layout is the grantor table and allocation size of a new queue.
type layout struct {
	grantors  []Grantor
	size      uint64 // ring bytes
	allocSize uint64 // bytes of region 0, page rounded
}

// computeLayout lays out a queue of count elements of quantum bytes.
//
// Grantors are placed in table order at word-aligned offsets of region 0.
// With externalData the ring lives at offset 0 of region 1 instead.
func computeLayout(count uint64, quantum uint32, eventFlag, externalData bool) (layout, error) {
	if count < 1 {
		return layout{}, ErrInvalidCapacity
	}
	hi, size := bits.Mul64(count, uint64(quantum))
	if hi != 0 || size > math.MaxUint32 {
		return layout{}, fmt.Errorf("%w: %d elements of %d bytes", ErrCapacityOverflow, count, quantum)
	}

	n := minGrantors
	if eventFlag {
		n = maxGrantors
	}
	extents := [maxGrantors]uint64{counterSize, counterSize, size, eventFlagSize}

	grantors := make([]Grantor, n)
	var offset uint64
	for i := range grantors {
		if i == GrantorData && externalData {
			grantors[i] = Grantor{RegionIndex: 1, Offset: 0, Extent: uint32(size)}
			continue
		}
		if offset > math.MaxUint32 {
			return layout{}, fmt.Errorf("%w: grantor %d offset %d", ErrCapacityOverflow, i, offset)
		}
		grantors[i] = Grantor{RegionIndex: 0, Offset: uint32(offset), Extent: uint32(extents[i])}
		offset += alignToWord(extents[i])
	}

	return layout{
		grantors:  grantors,
		size:      size,
		allocSize: shmem.RoundToPage(offset),
	}, nil
}

func alignToWord(n uint64) uint64 {
	return (n + wordSize - 1) &^ (wordSize - 1)
}
