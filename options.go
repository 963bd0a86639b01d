// Copyright 2025 The Nameset Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nameset

import "github.com/go-logr/logr"

// Option provides an interface to do work on a Set while it is being
// created.
type Option interface {
	apply(s *Set)
}

type hashOption struct {
	hash HashFunc
}

func (op hashOption) apply(s *Set) {
	s.hash = op.hash
}

// WithHash is an option to replace the default byte-sum hash. The table
// behaves correctly under any hash function, including a constant one;
// only probe-chain length is affected.
func WithHash(hash HashFunc) Option {
	return hashOption{hash}
}

// Allocator specifies an interface for allocating and releasing slot
// storage used by a Set. The default allocator utilizes Go's builtin
// make() and allows the GC to reclaim memory.
//
// If the allocator is manually managing memory then Set.Close must be
// called in order to ensure FreeSlots is called for the final storage.
type Allocator interface {
	// AllocSlots should return a slice equivalent to make([]Slot, n): n
	// slots, all in the empty state.
	AllocSlots(n int) []Slot

	// FreeSlots can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []Slot)
}

type defaultAllocator struct{}

func (defaultAllocator) AllocSlots(n int) []Slot {
	return make([]Slot, n)
}

func (defaultAllocator) FreeSlots(v []Slot) {
}

type allocatorOption struct {
	allocator Allocator
}

func (op allocatorOption) apply(s *Set) {
	s.allocator = op.allocator
}

// WithAllocator is an option to specify the Allocator to use for a Set.
func WithAllocator(allocator Allocator) Option {
	return allocatorOption{allocator}
}

type loggerOption struct {
	log logr.Logger
}

func (op loggerOption) apply(s *Set) {
	s.log = op.log
}

// WithLogger is an option to supply a logr.Logger for the Set's resize and
// teardown events (verbosity 1) and per-operation tracing (verbosity 2).
// By default events are discarded.
func WithLogger(log logr.Logger) Option {
	return loggerOption{log}
}
