package lfstack

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestStackPushPop(t *testing.T) {
	t.Run("LIFO order for sequential use", func(t *testing.T) {
		s := New[int](4)
		values := []int{1, 2, 3}
		for i := range values {
			if !s.Push(&values[i]) {
				t.Fatalf("expected push of %d to succeed", values[i])
			}
		}
		if s.Len() != 3 {
			t.Fatalf("expected len 3, got %d", s.Len())
		}
		for i := len(values) - 1; i >= 0; i-- {
			v := s.Pop()
			if v == nil {
				t.Fatalf("expected item %d, got nil", values[i])
			}
			if *v != values[i] {
				t.Errorf("expected item %d, got %d", values[i], *v)
			}
		}
		if v := s.Pop(); v != nil {
			t.Errorf("expected empty stack, got %d", *v)
		}
	})

	t.Run("Push to full stack discards", func(t *testing.T) {
		s := New[int](2)
		a, b, c := 1, 2, 3
		s.Push(&a)
		s.Push(&b)
		if s.Push(&c) {
			t.Fatal("expected push to full stack to fail")
		}
		if s.Len() != s.Cap() {
			t.Errorf("expected len %d, got %d", s.Cap(), s.Len())
		}
	})

	t.Run("Push nil is rejected", func(t *testing.T) {
		s := New[int](1)
		if s.Push(nil) {
			t.Fatal("expected push of nil to fail")
		}
		if s.Len() != 0 {
			t.Errorf("expected empty stack, got len %d", s.Len())
		}
	})

	t.Run("Invalid size panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic for zero size")
			}
		}()
		New[int](0)
	})
}

func TestStackConcurrent(t *testing.T) {
	const (
		workers = 8
		rounds  = 2000
	)
	s := New[int](16)

	var (
		wg      sync.WaitGroup
		pushed  atomic.Int64
		popped  atomic.Int64
		mu      sync.Mutex
		holders = make(map[*int]bool)
	)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rounds {
				v := new(int)
				*v = w*rounds + i
				if s.Push(v) {
					pushed.Add(1)
				}
				if p := s.Pop(); p != nil {
					popped.Add(1)
					mu.Lock()
					if holders[p] {
						t.Errorf("item %d popped twice", *p)
					}
					holders[p] = true
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	remaining := 0
	for s.Pop() != nil {
		remaining++
	}
	if got := popped.Load() + int64(remaining); got != pushed.Load() {
		t.Errorf("expected %d items accounted for, got %d", pushed.Load(), got)
	}
}
