// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

import (
	"sync/atomic"
	"time"
)

// Queue is the interface common to both queue flavors.
//
// A handle is used by one goroutine at a time per role: one writer
// (across all handles of the queue), and one reader per read pointer.
// Handles on the same queue may live in different processes.
//
// Example:
//
//	q, _ := fmq.NewSynchronized[uint32](1024, false)
//	defer q.Close()
//
//	// Write
//	if err := q.Write([]uint32{1, 2, 3}); fmq.IsWouldBlock(err) {
//	    // Not enough space - handle backpressure
//	}
//
//	// Read
//	buf := make([]uint32, 3)
//	if err := q.Read(buf); err == nil {
//	    fmt.Println(buf)
//	}
type Queue[T any] interface {
	Writer[T]
	Reader[T]

	// QuantumSize returns the element size in bytes.
	QuantumSize() int
	// QuantumCount returns the capacity in elements.
	QuantumCount() int
	// Descriptor returns the descriptor used to attach more handles.
	Descriptor() *Descriptor
	// EventFlagWord returns the event flag word, or nil.
	EventFlagWord() *atomic.Uint32
	// IsValid reports whether the handle is usable.
	IsValid() bool
	// Close unmaps the handle.
	Close() error
}

// Writer is the writer side of a queue.
//
// BeginWrite/CommitWrite give zero-copy access to the ring; Write copies.
// Only one writer may exist per queue.
type Writer[T any] interface {
	// Write copies data into the queue as one unit.
	// Returns ErrWouldBlock if a Synchronized queue lacks space.
	Write(data []T) error

	// BeginWrite reserves n elements for writing.
	BeginWrite(n int) (MemTransaction[T], error)

	// CommitWrite publishes n reserved elements.
	CommitWrite(n int) error

	// AvailableToWrite returns the number of free elements.
	AvailableToWrite() int
}

// Reader is the reader side of a queue.
type Reader[T any] interface {
	// Read fills dst with the next len(dst) elements.
	// Returns ErrWouldBlock if fewer are available, ErrOverflow if the
	// reader was lapped by the writer.
	Read(dst []T) error

	// BeginRead exposes the next n elements without consuming them.
	BeginRead(n int) (MemTransaction[T], error)

	// CommitRead consumes n elements.
	CommitRead(n int) error

	// AvailableToRead returns the number of unread elements.
	AvailableToRead() int
}

// BlockingQueue is a Queue whose reads and writes can wait on a Notifier.
// Only Synchronized queues implement it.
type BlockingQueue[T any] interface {
	Queue[T]

	WriteBlocking(data []T, timeout time.Duration) error
	ReadBlocking(dst []T, timeout time.Duration) error
	WriteBlockingWith(data []T, readyMask, wakeMask uint32, timeout time.Duration, n Notifier) error
	ReadBlockingWith(dst []T, readyMask, wakeMask uint32, timeout time.Duration, n Notifier) error
}

var (
	_ BlockingQueue[uint64] = (*Synchronized[uint64])(nil)
	_ Queue[uint64]         = (*Unsynchronized[uint64])(nil)
)
