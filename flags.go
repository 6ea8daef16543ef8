package segstream

import "sync/atomic"

const (
	flagDisposed uint32 = 1 << 0
	flagOwner    uint32 = 1 << 1
)

// streamFlags holds the disposed and owner bits of a stream.
// Every read is an atomic load and every update a compare-and-swap, so another
// goroutine observing a concurrent Close sees either the old or the new state.
type streamFlags struct {
	v atomic.Uint32
}

func (f *streamFlags) disposed() bool {
	return f.v.Load()&flagDisposed != 0
}

func (f *streamFlags) owner() bool {
	return f.v.Load()&flagOwner != 0
}

// setOwner sets the owner bit; only called during construction.
func (f *streamFlags) setOwner() {
	for {
		old := f.v.Load()
		if f.v.CompareAndSwap(old, old|flagOwner) {
			return
		}
	}
}

// markDisposed sets the disposed bit and clears the owner bit.
// It returns false if the stream was already disposed.
func (f *streamFlags) markDisposed() bool {
	for {
		old := f.v.Load()
		if old&flagDisposed != 0 {
			return false
		}
		if f.v.CompareAndSwap(old, (old|flagDisposed)&^flagOwner) {
			return true
		}
	}
}
