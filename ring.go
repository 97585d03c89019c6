// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"

	"code.hybscloud.com/fmq/internal/shmem"
)

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// ring is the engine shared by both flavors.
//
// The write pointer and (for Synchronized queues) the read pointer live
// in shared memory. Both only ever grow; the ring offset is the pointer
// modulo size. Each pointer has exactly one mutator: the writer owns
// writePtr, the reader owns readPtr. The writer publishes elements with a
// release store of writePtr; readers acquire it before touching the
// elements it covers.
type ring[T any] struct {
	writePtr *atomix.Uint64
	readPtr  *atomix.Uint64
	elems    []T
	quantum  uint64
	size     uint64 // bytes
	count    uint64 // elements
	flavor   Flavor

	desc    *Descriptor
	maps    []*shmem.Mapping
	region  *shmem.Region // allocated by this handle, nil when attached
	handles []int         // duplicated handles owned by this handle
	evWord  *atomic.Uint32
	evFlag  *EventFlag
	tel     *telemetry
	invalid atomix.Bool
	closed  atomix.Bool
}

// init builds the descriptor (or validates the attached one), maps every
// grantor and resolves the shared pointers. private is the read pointer
// of an Unsynchronized handle; nil for Synchronized.
func (r *ring[T]) init(b *Builder, flavor Flavor, private *atomix.Uint64) (err error) {
	quantum, err := quantumOf[T]()
	if err != nil {
		return err
	}
	r.flavor = flavor
	r.tel = newTelemetry(b.opts.logger, b.opts.meterProvider, flavor)

	defer func() {
		if err != nil {
			r.release()
			r.tel.log.Warn("queue construction failed", "err", err)
		}
	}()

	if b.opts.attach != nil {
		src := descriptorOf(b.opts.attach)
		if err := src.validate(quantum, flavor); err != nil {
			return err
		}
		if r.desc, err = r.adopt(src); err != nil {
			return err
		}
	} else if r.desc, err = r.create(b, quantum, flavor); err != nil {
		return err
	}

	r.quantum = uint64(quantum)
	r.size = r.desc.size
	r.count = r.size / r.quantum

	r.maps = make([]*shmem.Mapping, len(r.desc.grantors))
	for i, g := range r.desc.grantors {
		if i == GrantorRead && flavor == FlavorUnsynchronized {
			continue
		}
		m, err := shmem.Map(r.desc.handle[g.RegionIndex], uint64(g.Offset), uint64(g.Extent))
		if err != nil {
			return fmt.Errorf("fmq: map grantor %d: %w", i, err)
		}
		r.maps[i] = m
	}

	r.writePtr = (*atomix.Uint64)(unsafe.Pointer(unsafe.SliceData(r.maps[GrantorWrite].Bytes())))
	if flavor == FlavorSynchronized {
		r.readPtr = (*atomix.Uint64)(unsafe.Pointer(unsafe.SliceData(r.maps[GrantorRead].Bytes())))
	} else {
		r.readPtr = private
	}
	r.elems = unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(r.maps[GrantorData].Bytes()))), r.count)
	if r.desc.HasEventFlag() {
		r.evWord = (*atomic.Uint32)(unsafe.Pointer(unsafe.SliceData(r.maps[GrantorEventFlag].Bytes())))
		r.evFlag = NewEventFlag(r.evWord)
	}

	switch {
	case b.opts.attach == nil || b.opts.resetPointers:
		r.readPtr.StoreRelease(0)
		r.writePtr.StoreRelease(0)
	case flavor == FlavorUnsynchronized:
		// A new reader starts from the beginning of the stream and
		// resynchronizes on its first read if it was lapped.
		r.readPtr.StoreRelease(0)
	}
	return nil
}

// create allocates the backing region of a new queue.
func (r *ring[T]) create(b *Builder, quantum uint32, flavor Flavor) (*Descriptor, error) {
	if b.opts.count < 1 {
		return nil, ErrInvalidCapacity
	}
	ext := b.opts.external
	l, err := computeLayout(uint64(b.opts.count), quantum, b.opts.eventFlag, ext != nil)
	if err != nil {
		return nil, err
	}

	handle := make([]int, 0, 2)
	if ext != nil {
		if ext.size < l.size {
			return nil, fmt.Errorf("%w: %d bytes, need %d", ErrExternalTooSmall, ext.size, l.size)
		}
		if actual, err := shmem.SizeOf(ext.fd); err != nil {
			return nil, err
		} else if actual < l.size {
			return nil, fmt.Errorf("%w: handle maps %d bytes, need %d", ErrExternalTooSmall, actual, l.size)
		}
	}

	name := b.opts.name
	if name == "" {
		name = "fmq"
	}
	r.region, err = shmem.Create(name, l.allocSize)
	if err != nil {
		return nil, err
	}
	handle = append(handle, r.region.FD())
	if ext != nil {
		fd, err := r.dup(ext.fd)
		if err != nil {
			return nil, err
		}
		handle = append(handle, fd)
	}

	return &Descriptor{
		grantors: l.grantors,
		handle:   handle,
		quantum:  quantum,
		size:     l.size,
		flavor:   flavor,
	}, nil
}

// adopt copies an attached descriptor, duplicating its handles so the
// descriptor of this handle stays valid after the peer closes its own.
func (r *ring[T]) adopt(src *Descriptor) (*Descriptor, error) {
	handle := make([]int, len(src.handle))
	for i, fd := range src.handle {
		dup, err := r.dup(fd)
		if err != nil {
			return nil, err
		}
		handle[i] = dup
	}
	return &Descriptor{
		grantors: slices.Clone(src.grantors),
		handle:   handle,
		quantum:  src.quantum,
		size:     src.size,
		flavor:   src.flavor,
	}, nil
}

// dup duplicates fd; the duplicate is closed by release.
func (r *ring[T]) dup(fd int) (int, error) {
	dup, err := shmem.Dup(fd)
	if err != nil {
		return -1, fmt.Errorf("fmq: %w", err)
	}
	r.handles = append(r.handles, dup)
	return dup, nil
}

// release unmaps every grantor and closes the handles this handle owns.
func (r *ring[T]) release() error {
	var errs []error
	for i, m := range r.maps {
		if m == nil {
			continue
		}
		if err := m.Unmap(); err != nil {
			errs = append(errs, err)
		}
		r.maps[i] = nil
	}
	if r.region != nil {
		if err := r.region.Close(); err != nil {
			errs = append(errs, err)
		}
		r.region = nil
	}
	for _, fd := range r.handles {
		if err := shmem.CloseHandle(fd); err != nil {
			errs = append(errs, err)
		}
	}
	r.handles = nil
	r.elems, r.writePtr, r.readPtr, r.evWord, r.evFlag = nil, nil, nil, nil, nil
	return errors.Join(errs...)
}

// Close unmaps the queue and closes the handles in its descriptor. The
// caller's external data handle is never closed; the queue only closes
// its own duplicate. Other handles attached to the same queue keep
// working, and their descriptors stay valid, until they are closed
// themselves.
//
// Close must not race with other calls on the same handle.
func (r *ring[T]) Close() error {
	if r.closed.Load() {
		return nil
	}
	r.closed.Store(true)
	r.invalid.Store(true)
	return r.release()
}

// IsValid reports whether the handle can be used. A handle becomes invalid
// when it is closed or when pointer corruption is detected.
func (r *ring[T]) IsValid() bool {
	return !r.invalid.Load()
}

func (r *ring[T]) check() error {
	if r.invalid.Load() {
		return ErrInvalidQueue
	}
	return nil
}

// corrupt invalidates the handle. A misaligned pointer cannot be repaired
// without guessing an offset into the ring.
func (r *ring[T]) corrupt(which string, ptr uint64) error {
	r.invalid.Store(true)
	r.tel.corrupted(which, ptr, r.quantum)
	return fmt.Errorf("%w: %s pointer %d, quantum %d", ErrCorrupted, which, ptr, r.quantum)
}

// Descriptor returns the descriptor other handles attach with.
func (r *ring[T]) Descriptor() *Descriptor { return r.desc }

// QuantumSize returns the element size in bytes.
func (r *ring[T]) QuantumSize() int { return int(r.quantum) }

// QuantumCount returns the capacity in elements.
func (r *ring[T]) QuantumCount() int { return int(r.count) }

// EventFlagWord returns the shared event flag word, or nil if the queue
// was created without one.
func (r *ring[T]) EventFlagWord() *atomic.Uint32 { return r.evWord }

// EventFlag returns an EventFlag over EventFlagWord, or nil.
func (r *ring[T]) EventFlag() *EventFlag { return r.evFlag }

// used returns the bytes between the read and write pointers. The read
// pointer is loaded first so the difference cannot underflow.
func (r *ring[T]) used() uint64 {
	rd := r.readPtr.LoadAcquire()
	w := r.writePtr.LoadAcquire()
	return w - rd
}

// AvailableToWrite returns the number of elements that can be written
// without overwriting unread data. It returns 0 for a lapped
// Unsynchronized reader.
func (r *ring[T]) AvailableToWrite() int {
	if r.check() != nil {
		return 0
	}
	used := r.used()
	if used >= r.size {
		return 0
	}
	return int((r.size - used) / r.quantum)
}

// AvailableToRead returns the number of published, unread elements.
// For a lapped Unsynchronized reader this exceeds QuantumCount; the next
// read reports ErrOverflow.
func (r *ring[T]) AvailableToRead() int {
	if r.check() != nil {
		return 0
	}
	return int(r.used() / r.quantum)
}

// transaction returns the n elements starting at byte offset off,
// splitting at the end of the ring.
func (r *ring[T]) transaction(off uint64, n int) MemTransaction[T] {
	start := off / r.quantum
	contiguous := (r.size - off) / r.quantum
	if contiguous >= uint64(n) {
		end := start + uint64(n)
		return MemTransaction[T]{
			first: MemRegion[T]{offset: int(start), elems: r.elems[start:end:end]},
		}
	}
	wrapped := uint64(n) - contiguous
	return MemTransaction[T]{
		first:  MemRegion[T]{offset: int(start), elems: r.elems[start:r.count:r.count]},
		second: MemRegion[T]{offset: 0, elems: r.elems[0:wrapped:wrapped]},
	}
}

func (r *ring[T]) checkCount(n int) error {
	if n < 0 || uint64(n) > r.count {
		return fmt.Errorf("%w: %d elements, capacity %d", ErrExceedsCapacity, n, r.count)
	}
	return nil
}

// BeginWrite reserves n elements for writing (writer only).
//
// Returns the null transaction and ErrExceedsCapacity if n exceeds the
// capacity, or ErrWouldBlock if a Synchronized queue lacks space. An
// Unsynchronized queue never refuses for lack of space: the writer
// overwrites the oldest data.
func (r *ring[T]) BeginWrite(n int) (MemTransaction[T], error) {
	if err := r.check(); err != nil {
		return MemTransaction[T]{}, err
	}
	if err := r.checkCount(n); err != nil {
		return MemTransaction[T]{}, err
	}
	if r.flavor == FlavorSynchronized && r.AvailableToWrite() < n {
		return MemTransaction[T]{}, ErrWouldBlock
	}

	w := r.writePtr.LoadRelaxed()
	if w%r.quantum != 0 {
		return MemTransaction[T]{}, r.corrupt("write", w)
	}
	return r.transaction(w%r.size, n), nil
}

// CommitWrite publishes n elements written through the transaction of
// the preceding BeginWrite (writer only).
func (r *ring[T]) CommitWrite(n int) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := r.checkCount(n); err != nil {
		return err
	}
	w := r.writePtr.LoadRelaxed()
	r.writePtr.StoreRelease(w + uint64(n)*r.quantum)
	return nil
}

// BeginRead returns the next n unread elements (reader only). The read
// pointer does not move until CommitRead.
//
// Returns the null transaction with ErrExceedsCapacity if n exceeds the
// capacity, ErrWouldBlock if fewer than n elements are available, or
// ErrOverflow if the writer lapped this reader; in that case the read
// pointer is moved to the write pointer.
func (r *ring[T]) BeginRead(n int) (MemTransaction[T], error) {
	if err := r.check(); err != nil {
		return MemTransaction[T]{}, err
	}
	if err := r.checkCount(n); err != nil {
		return MemTransaction[T]{}, err
	}

	w := r.writePtr.LoadAcquire()
	if w%r.quantum != 0 {
		return MemTransaction[T]{}, r.corrupt("write", w)
	}
	rd := r.readPtr.LoadRelaxed()
	if rd%r.quantum != 0 {
		return MemTransaction[T]{}, r.corrupt("read", rd)
	}

	if w-rd > r.size {
		r.readPtr.StoreRelease(w)
		r.tel.overflow("begin_read", w, rd)
		return MemTransaction[T]{}, ErrOverflow
	}
	if w-rd < uint64(n)*r.quantum {
		return MemTransaction[T]{}, ErrWouldBlock
	}
	return r.transaction(rd%r.size, n), nil
}

// CommitRead consumes n elements obtained from the preceding BeginRead
// (reader only).
//
// If the writer lapped this reader after BeginRead, the elements copied
// out may be torn: CommitRead resynchronizes the read pointer and returns
// ErrOverflow, and the caller must discard them.
func (r *ring[T]) CommitRead(n int) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := r.checkCount(n); err != nil {
		return err
	}

	w := r.writePtr.LoadAcquire()
	rd := r.readPtr.LoadRelaxed()
	if w-rd > r.size {
		r.readPtr.StoreRelease(w)
		r.tel.overflow("commit_read", w, rd)
		return ErrOverflow
	}
	r.readPtr.StoreRelease(rd + uint64(n)*r.quantum)
	return nil
}

// Write copies data into the queue as one unit (writer only).
// Either all of data is published or nothing is.
func (r *ring[T]) Write(data []T) error {
	tx, err := r.BeginWrite(len(data))
	if err != nil {
		return err
	}
	tx.CopyFrom(data, 0)
	return r.CommitWrite(len(data))
}

// Read fills dst with the next len(dst) elements (reader only).
// Either dst is filled and consumed or the read pointer does not advance;
// after ErrOverflow the content of dst is undefined.
func (r *ring[T]) Read(dst []T) error {
	tx, err := r.BeginRead(len(dst))
	if err != nil {
		return err
	}
	tx.CopyTo(dst, 0)
	return r.CommitRead(len(dst))
}
