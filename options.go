// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// Options configures queue creation and attachment.
type Options struct {
	// Capacity in elements, for new queues
	count     int
	eventFlag bool
	external  *externalData
	name      string

	// Attach to an existing queue instead of creating one
	attach        QueueDescriptor
	resetPointers bool

	logger        *slog.Logger
	meterProvider metric.MeterProvider
}

// externalData is a caller-owned shared memory handle holding the ring.
type externalData struct {
	fd   int
	size uint64
}

// Builder creates and attaches queues with fluent configuration.
//
// Example:
//
//	// Synchronized queue with blocking support
//	q, err := fmq.BuildSynchronized[uint64](fmq.New(1024).EventFlag())
//
//	// Second handle on the same queue, possibly in another process
//	peer, err := fmq.BuildSynchronized[uint64](fmq.Attach(q.Descriptor()))
//
//	// Unsynchronized queue with a custom logger
//	q, err := fmq.BuildUnsynchronized[Sample](fmq.New(4096).Logger(log))
type Builder struct {
	opts Options
}

// New creates a builder for a new queue of count elements.
//
// The byte size of the ring, count times the element size, must fit in
// 32 bits. Invalid counts are reported by the Build functions.
func New(count int) *Builder {
	return &Builder{opts: Options{count: count}}
}

// Attach creates a builder for a handle on the queue described by desc.
// The element type and flavor of the Build call must match desc.
//
// Panics if desc is nil.
func Attach(desc QueueDescriptor) *Builder {
	if desc == nil {
		panic("fmq: Attach requires a descriptor")
	}
	return &Builder{opts: Options{attach: desc}}
}

// EventFlag allocates an event flag word next to the queue counters.
// Blocking reads and writes without an explicit Notifier require it.
//
// Panics on an attaching builder; the descriptor decides.
func (b *Builder) EventFlag() *Builder {
	if b.opts.attach != nil {
		panic("fmq: EventFlag is only valid for new queues")
	}
	b.opts.eventFlag = true
	return b
}

// ExternalData places the ring in a caller-owned shared memory handle
// of size bytes, starting at offset 0. The handle is borrowed: closing
// the queue does not close it. Build fails with ErrExternalTooSmall if
// the handle cannot hold the ring.
//
// Panics if fd is negative or on an attaching builder.
func (b *Builder) ExternalData(fd int, size uint64) *Builder {
	if fd < 0 {
		panic("fmq: ExternalData requires a valid handle")
	}
	if b.opts.attach != nil {
		panic("fmq: ExternalData is only valid for new queues")
	}
	b.opts.external = &externalData{fd: fd, size: size}
	return b
}

// Name labels the shared memory region of a new queue.
func (b *Builder) Name(name string) *Builder {
	b.opts.name = name
	return b
}

// ResetPointers zeroes the shared read and write pointers on attach.
//
// Panics on a builder that creates a queue; new queues always start at
// zero.
func (b *Builder) ResetPointers() *Builder {
	if b.opts.attach == nil {
		panic("fmq: ResetPointers requires Attach")
	}
	b.opts.resetPointers = true
	return b
}

// Logger sets the logger for the handle. Defaults to slog.Default().
func (b *Builder) Logger(log *slog.Logger) *Builder {
	b.opts.logger = log
	return b
}

// MeterProvider sets the meter provider for the handle's instruments.
// Defaults to the global provider.
func (b *Builder) MeterProvider(mp metric.MeterProvider) *Builder {
	b.opts.meterProvider = mp
	return b
}
