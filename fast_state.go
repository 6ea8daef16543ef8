package segstream

// fastState caches the contiguous bytes available from the current stream position:
// the rest of the current segment, cut at the logical end of the stream.
// It is never authoritative; the stream rebuilds it whenever the position moves
// outside of it.
type fastState struct {
	seg    *Segment // Segment the window lies in; a locate hint for the slow path.
	window []byte
}

// remaining returns min(bytes left in the segment, bytes left before the stream length).
func (f *fastState) remaining() int {
	return len(f.window)
}

// tryRead copies dst from the window only if all of dst fits, and returns the
// number of bytes copied, which is either len(dst) or 0.
func (f *fastState) tryRead(dst []byte) int {
	if len(dst) == 0 || len(dst) > len(f.window) {
		return 0
	}
	n := copy(dst, f.window)
	f.window = f.window[n:]
	return n
}

// tryReadByte reads a single byte from the window.
func (f *fastState) tryReadByte() (byte, bool) {
	if len(f.window) == 0 {
		return 0, false
	}
	b := f.window[0]
	f.window = f.window[1:]
	return b, true
}

// tryWrite copies src into the window only if all of src fits.
func (f *fastState) tryWrite(src []byte) bool {
	if len(src) == 0 || len(src) > len(f.window) {
		return false
	}
	n := copy(f.window, src)
	f.window = f.window[n:]
	return true
}

func (f *fastState) tryWriteByte(b byte) bool {
	if len(f.window) == 0 {
		return false
	}
	f.window[0] = b
	f.window = f.window[1:]
	return true
}

// isZero reports whether the state holds no window and no hint.
func (f *fastState) isZero() bool {
	return f.seg == nil && f.window == nil
}

func (f *fastState) reset() {
	f.seg = nil
	f.window = nil
}
