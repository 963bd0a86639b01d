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

// Package nameset provides Set, an open-addressing hash set for strings
// using linear probing. If you're not familiar with open-addressing see
// https://en.wikipedia.org/wiki/Open_addressing.
//
// # Layout
//
// A Set is a single slice of slots. Each slot is in one of three states:
// empty (never held a key, or was reclaimed by a resize), occupied (holds
// exactly one key), or a tombstone (held a key that was since deleted).
// Tombstones are what make deletion safe under open addressing: a probe
// sequence must not terminate at a deleted slot, because the key being
// probed for may have been placed beyond it while the slot was still
// occupied. Only an empty slot terminates a probe.
//
// # Probing
//
// Probing starts at hash(key) mod capacity and advances one slot at a time,
// wrapping at the end of the table. The default hash is the wrapping sum of
// the key's bytes; it is deliberately simple and can be replaced via
// WithHash. Because the starting index is reduced modulo the current
// capacity, a key's address is only meaningful for one capacity: any change
// of capacity rehashes every key into fresh storage.
//
// # Growth
//
// Insert grows the table by doubling whenever the load factor (occupied
// slots over capacity) exceeds 0.7 after an insertion. The check runs after
// the insert rather than before because duplicates are rejected without
// raising the count, so only a successful insert can push the table over
// the threshold. Deletion never shrinks the table; tombstones accumulate
// until a resize rebuilds the storage without them.
//
// Unlike Go's builtin map, the Set stores keys only. Keys are Go strings
// and are therefore immutable copies by construction; the Set holds no
// references into caller-owned mutable storage.
//
// A Set is NOT goroutine-safe.
package nameset

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

const (
	// maxLoadFactor is the occupancy ceiling. After any Insert or Resize
	// returns, used/capacity is at or below this ratio. 0.7 keeps expected
	// probe chains short for linear probing.
	maxLoadFactor = 0.7

	// defaultCapacity is the capacity a zero-capacity Set is given by the
	// first Insert.
	defaultCapacity = 10
)

// SlotState describes the state of a single slot in the table.
type SlotState uint8

const (
	// SlotEmpty marks a slot that has never held a key, or whose storage
	// was rebuilt by a resize. It is the zero value so fresh slot storage
	// is all-empty without initialization.
	SlotEmpty SlotState = iota
	// SlotTombstone marks a slot whose key was deleted. Tombstones keep
	// probe chains intact and are reused by later inserts.
	SlotTombstone
	// SlotOccupied marks a slot holding a key.
	SlotOccupied
)

// String returns the state name, for diagnostics.
func (st SlotState) String() string {
	switch st {
	case SlotEmpty:
		return "empty"
	case SlotTombstone:
		return "tombstone"
	case SlotOccupied:
		return "occupied"
	default:
		return fmt.Sprintf("SlotState(%d)", uint8(st))
	}
}

// Slot is a single position in the table: a state tag plus, for occupied
// slots, the stored key. Tombstones and empty slots are distinguished by
// the tag alone, never by inspecting the key.
type Slot struct {
	state SlotState
	key   string
}

// State returns the slot's state.
func (s Slot) State() SlotState { return s.state }

// Key returns the stored key. It is only meaningful for occupied slots.
func (s Slot) Key() string { return s.key }

// HashFunc maps a key to an unreduced hash value. The Set reduces the
// result modulo its current capacity to pick the probe origin, so any
// distribution of uint64 values works.
type HashFunc func(key string) uint64

// SumHash is the default HashFunc: the sum of the key's bytes, with
// wrapping arithmetic on overflow. Overflow is an accepted approximation,
// not an error. The distribution is poor for short similar keys but the
// table is correct under any hash, including a constant one.
func SumHash(key string) uint64 {
	var sum uint64
	for i := 0; i < len(key); i++ {
		sum += uint64(key[i])
	}
	return sum
}

// Set is an open-addressing set of strings with Insert, Contains, Delete,
// Resize and Enumerate operations. The zero value is not usable; construct
// with New. A Set owns its slot storage and all bookkeeping; capacity is
// not observable or mutable except through the defined operations, since
// probe addressing depends on it.
type Set struct {
	// hash produces the unreduced hash for a key.
	hash HashFunc
	// allocator provides and releases slot storage.
	allocator Allocator
	// log receives resize and teardown events at V(1) and probe-level
	// tracing at V(2). Discarded by default.
	log logr.Logger
	// slots is the table. len(slots) is the capacity; it is zero until the
	// first Insert or successful Resize.
	slots []Slot
	// used is the number of occupied slots. Tombstones are not counted.
	used int
}

// New constructs a Set with the specified initial capacity. If
// initialCapacity is 0 the set starts with no storage and allocates
// lazily on the first Insert.
func New(initialCapacity int, options ...Option) *Set {
	s := &Set{
		hash:      SumHash,
		allocator: defaultAllocator{},
		log:       logr.Discard(),
	}
	for _, op := range options {
		op.apply(s)
	}
	if initialCapacity > 0 {
		s.Resize(initialCapacity)
	}
	return s
}

// Close releases the slot storage back to the configured allocator. It is
// unnecessary to close a set using the default allocator. It is invalid to
// use a Set after it has been closed, though Close itself is idempotent.
func (s *Set) Close() {
	if s.allocator == nil {
		return
	}
	if len(s.slots) > 0 {
		s.allocator.FreeSlots(s.slots)
	}
	s.log.V(1).Info("closed", "capacity", len(s.slots), "used", s.used)
	s.slots = nil
	s.used = 0
	s.allocator = nil
}

// Len returns the number of keys in the set.
func (s *Set) Len() int {
	return s.used
}

// Cap returns the current capacity of the table.
func (s *Set) Cap() int {
	return len(s.slots)
}

// Hash returns the slot index at which probing for key begins under the
// current capacity. The index is invalidated by any capacity change. Hash
// panics if the set has no capacity, as there is no index space to map
// into.
func (s *Set) Hash(key string) int {
	if len(s.slots) == 0 {
		panic("nameset: Hash on a set with no capacity")
	}
	return s.probeStart(key)
}

// probeStart reduces hash(key) into the current index space. Callers must
// guarantee the table has capacity.
func (s *Set) probeStart(key string) int {
	return int(s.hash(key) % uint64(len(s.slots)))
}

// next advances a probe index by one slot, wrapping at the end of the
// table.
func (s *Set) next(i int) int {
	if i++; i >= len(s.slots) {
		return 0
	}
	return i
}

// Insert adds key to the set and reports whether it was added; inserting a
// key that is already present is a no-op returning false. If the set has
// no capacity it is first given the default capacity. A successful insert
// that pushes the load factor over the ceiling doubles the capacity.
func (s *Set) Insert(key string) bool {
	if len(s.slots) == 0 {
		s.Resize(defaultCapacity)
	}

	// Insert before checking the load factor rather than after: duplicates
	// don't raise used, so the table is only over the threshold if the key
	// actually went in, and the ceiling guarantees there is a free slot for
	// it either way.
	if !s.insertNoGrow(key) {
		s.log.V(2).Info("insert rejected duplicate", "key", key)
		return false
	}

	if float64(s.used)/float64(len(s.slots)) > maxLoadFactor {
		s.Resize(2 * len(s.slots))
	}
	s.checkInvariants()
	return true
}

// insertNoGrow places key in the table without ever resizing. It is the
// primitive both Insert and Resize build on; Resize relies on it never
// growing so that a rebuild is a single pass with no recursion. Returns
// false if the key is already present.
func (s *Set) insertNoGrow(key string) bool {
	i := s.probeStart(key)
	tombstone := -1

	// Walk to the first empty slot. A remembered tombstone is a better
	// home for the key, but the walk must still reach an empty slot first:
	// the key could be stored anywhere up to there, and stopping early
	// would admit a duplicate. The walk is bounded by one full wrap so a
	// table holding only occupied and tombstone slots terminates.
	for n := len(s.slots); n > 0; n-- {
		sl := &s.slots[i]
		if sl.state == SlotEmpty {
			if tombstone >= 0 {
				i = tombstone
			}
			s.slots[i] = Slot{state: SlotOccupied, key: key}
			s.used++
			return true
		}
		if sl.state == SlotOccupied && sl.key == key {
			return false
		}
		if sl.state == SlotTombstone && tombstone < 0 {
			tombstone = i
		}
		i = s.next(i)
	}

	// Full wrap, no empty slot. The duplicate scan visited every slot, so
	// reusing the first tombstone is safe.
	if tombstone >= 0 {
		s.slots[tombstone] = Slot{state: SlotOccupied, key: key}
		s.used++
		return true
	}
	return false
}

// Resize changes the capacity of the table to newCapacity, rehashing every
// stored key into fresh storage and dropping tombstones. The resize is
// refused, returning false with no mutation, if newCapacity is less than 1
// or would leave the table over the load-factor ceiling. Growth from
// Insert uses this same path with double the current capacity.
func (s *Set) Resize(newCapacity int) bool {
	if newCapacity < 1 || float64(s.used)/float64(newCapacity) > maxLoadFactor {
		s.log.V(1).Info("resize refused",
			"capacity", len(s.slots), "used", s.used, "target", newCapacity)
		return false
	}

	old := s.slots
	s.slots = s.allocator.AllocSlots(newCapacity)
	s.used = 0
	for i := range old {
		if old[i].state == SlotOccupied {
			// Known not to be present in the new storage, and the refusal
			// check above guarantees room, so this never fails and never
			// needs to grow.
			s.insertNoGrow(old[i].key)
		}
	}
	if len(old) > 0 {
		s.allocator.FreeSlots(old)
	}

	s.log.V(1).Info("resized",
		"capacity", newCapacity, "previous", len(old), "used", s.used)
	s.checkInvariants()
	return true
}

// Contains reports whether key is in the set.
func (s *Set) Contains(key string) bool {
	return s.find(key) >= 0
}

// Delete removes key from the set, reporting whether it was present. The
// vacated slot becomes a tombstone rather than empty: marking it empty
// would terminate probe walks early and lose keys stored beyond it.
// Deletion never shrinks the table.
func (s *Set) Delete(key string) bool {
	i := s.find(key)
	if i < 0 {
		return false
	}
	s.slots[i] = Slot{state: SlotTombstone}
	s.used--
	s.checkInvariants()
	return true
}

// find returns the slot index holding key, or -1. Tombstones are skipped
// over as occupied-for-probing, not-a-match; only an empty slot ends the
// walk early.
func (s *Set) find(key string) int {
	if len(s.slots) == 0 {
		return -1
	}
	i := s.probeStart(key)
	for n := len(s.slots); n > 0; n-- {
		sl := &s.slots[i]
		if sl.state == SlotEmpty {
			return -1
		}
		if sl.state == SlotOccupied && sl.key == key {
			return i
		}
		i = s.next(i)
	}
	return -1
}

// Enumerate calls yield for every slot in table order, reporting its state
// and, for occupied slots, its key. It is a read-only diagnostic
// traversal; the set must not be mutated by yield. If yield returns false,
// enumeration stops.
func (s *Set) Enumerate(yield func(slot Slot) bool) {
	for i := range s.slots {
		if !yield(s.slots[i]) {
			return
		}
	}
}

// String returns a human-readable dump of the table, one slot per line.
func (s *Set) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d\n", len(s.slots), s.used)
	for i := range s.slots {
		switch sl := s.slots[i]; sl.state {
		case SlotEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case SlotTombstone:
			fmt.Fprintf(&buf, "  %4d: tombstone\n", i)
		default:
			fmt.Fprintf(&buf, "  %4d: %q\n", i, sl.key)
		}
	}
	return buf.String()
}

// checkInvariants verifies the table's bookkeeping when built with the
// invariants build tag, panicking with a table dump on violation.
func (s *Set) checkInvariants() {
	if !invariants {
		return
	}

	var used int
	for i := range s.slots {
		sl := s.slots[i]
		if sl.state != SlotOccupied {
			continue
		}
		used++
		// Every stored key must be reachable by probing from its own hash
		// before any empty slot.
		if j := s.find(sl.key); j != i {
			panic(fmt.Sprintf("invariant failed: slot(%d): %q found at %d\n%s",
				i, sl.key, j, s))
		}
	}
	if used != s.used {
		panic(fmt.Sprintf("invariant failed: found %d occupied slots, but used count is %d\n%s",
			used, s.used, s))
	}
	if len(s.slots) > 0 && float64(s.used)/float64(len(s.slots)) > maxLoadFactor {
		panic(fmt.Sprintf("invariant failed: load factor %d/%d over ceiling\n%s",
			s.used, len(s.slots), s))
	}
}
