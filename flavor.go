// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

//go:generate go tool stringer -type=Flavor -trimprefix=Flavor

// Flavor selects the reader discipline of a queue. It is fixed at
// construction and carried in the descriptor.
type Flavor uint32

const (
	// FlavorSynchronized: one writer, one reader sharing a read pointer.
	// The writer never overwrites unread data.
	FlavorSynchronized Flavor = iota + 1

	// FlavorUnsynchronized: one writer, any number of readers each with
	// a private read pointer. The writer may overwrite unread data.
	FlavorUnsynchronized
)
