// Package lfstack implements a bounded lock-free stack of pointers.
package lfstack

import (
	"errors"
	"sync/atomic"
)

// Stack is a bounded, lock-free LIFO of *T backed by a fixed array of slots.
//
// The approximate item count serves as the top-of-stack hint: pushes scan upward
// from it and pops scan downward from it, so ordering is LIFO on a best-effort
// basis only. Every operation visits each slot at most once; a push that finds no
// free slot discards the item and a pop that finds no item returns nil.
// A Stack is safe for concurrent use.
//
// Slots hold the pointers themselves, not linked nodes, so a stale CAS can never
// splice a popped item back into the stack (no ABA).
type Stack[T any] struct {
	slots []atomic.Pointer[T]
	count atomic.Int64 // Approximate number of occupied slots.
}

// New creates a stack that holds at most size items.
// It will panic if size is not positive.
func New[T any](size int) *Stack[T] {
	if size <= 0 {
		panic(errors.New("stack size must be positive"))
	}
	return &Stack[T]{slots: make([]atomic.Pointer[T], size)}
}

// Cap returns the maximum number of items the stack can hold.
func (s *Stack[T]) Cap() int {
	return len(s.slots)
}

// Len returns the approximate number of items in the stack.
func (s *Stack[T]) Len() int {
	return int(max(s.count.Load(), 0))
}

// Push adds v to the stack. It returns false if v is nil or no free slot
// could be claimed, in which case v is not retained.
func (s *Stack[T]) Push(v *T) bool {
	n := len(s.slots)
	top := s.count.Load()
	if v == nil || top >= int64(n) {
		return false // No-op; stack is full.
	}
	start := int(max(top, 0))
	for j := range n {
		i := (start + j) % n
		if s.slots[i].Load() == nil && s.slots[i].CompareAndSwap(nil, v) {
			s.count.Add(1)
			return true
		}
	}
	return false
}

// Pop removes and returns an item, or nil if none could be claimed.
func (s *Stack[T]) Pop() *T {
	n := len(s.slots)
	top := s.count.Load()
	if top <= 0 {
		return nil // No-op; stack is empty.
	}
	start := int(min(top, int64(n))) - 1
	for j := range n {
		i := (start - j + n) % n
		if v := s.slots[i].Load(); v != nil && s.slots[i].CompareAndSwap(v, nil) {
			s.count.Add(-1)
			return v
		}
	}
	return nil
}
