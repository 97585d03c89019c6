// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

import "code.hybscloud.com/atomix"

// Unsynchronized is a single-writer queue with any number of independent
// readers.
//
// Every handle keeps its own read pointer in private memory; readers
// attach through Descriptor and never affect each other or the writer.
// The writer is never refused for lack of space and overwrites the oldest
// data. A reader that was lapped gets ErrOverflow from BeginRead,
// CommitRead or Read, is moved to the write pointer, and continues
// normally with the next call.
type Unsynchronized[T any] struct {
	ring[T]
	_           pad
	privateRead atomix.Uint64 // owned by this handle, never shared
	_           pad
}

// NewUnsynchronized creates an Unsynchronized queue of count elements.
func NewUnsynchronized[T any](count int) (*Unsynchronized[T], error) {
	return BuildUnsynchronized[T](New(count))
}

// BuildUnsynchronized creates or attaches an Unsynchronized queue.
func BuildUnsynchronized[T any](b *Builder) (*Unsynchronized[T], error) {
	q := &Unsynchronized[T]{}
	if err := q.init(b, FlavorUnsynchronized, &q.privateRead); err != nil {
		return nil, err
	}
	return q, nil
}
