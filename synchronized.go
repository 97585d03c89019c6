// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

// Synchronized is a single-writer single-reader queue over shared memory.
//
// Writer and reader share the read pointer, so the writer never
// overwrites unread data: BeginWrite and Write return ErrWouldBlock when
// the queue lacks space. AvailableToRead() + AvailableToWrite() always
// equals QuantumCount().
//
// The writer and the reader may be different handles in different
// processes, attached through Descriptor. Only Synchronized queues offer
// blocking reads and writes.
type Synchronized[T any] struct {
	ring[T]
}

// NewSynchronized creates a Synchronized queue of count elements,
// optionally with an event flag word for WriteBlocking and ReadBlocking.
func NewSynchronized[T any](count int, eventFlag bool) (*Synchronized[T], error) {
	b := New(count)
	if eventFlag {
		b.EventFlag()
	}
	return BuildSynchronized[T](b)
}

// BuildSynchronized creates or attaches a Synchronized queue.
func BuildSynchronized[T any](b *Builder) (*Synchronized[T], error) {
	q := &Synchronized[T]{}
	if err := q.init(b, FlavorSynchronized, nil); err != nil {
		return nil, err
	}
	return q, nil
}
