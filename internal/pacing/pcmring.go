package pacing

import "sync/atomic"

// PCMRing is a lock-free SPSC ring of interleaved int16 PCM samples
// (stereo: two samples per frame). The emulation worker is the sole
// producer; the audio sink's read callback is the sole consumer.
type PCMRing struct {
	buf  []int16
	mask uint32

	head uint32 // consumer-owned, in samples
	tail uint32 // producer-owned, in samples
}

// NewPCMRing builds a ring sized to hold at least capacitySamples
// interleaved samples (rounded up to a power of two).
func NewPCMRing(capacitySamples uint32) *PCMRing {
	if capacitySamples == 0 {
		capacitySamples = 2 * 8192 // SAMPLE_BUFFER_SIZE worth of stereo frames
	}
	capacitySamples = nextPow2(capacitySamples)
	return &PCMRing{buf: make([]int16, capacitySamples), mask: capacitySamples - 1}
}

// Write copies as many samples from src as fit without overwriting
// unread data, returning the count actually written. The worker is
// expected to back off (sleep) when Write returns less than len(src).
func (r *PCMRing) Write(src []int16) int {
	head := atomic.LoadUint32(&r.head)
	tail := atomic.LoadUint32(&r.tail)
	free := uint32(len(r.buf)) - (tail - head)
	n := uint32(len(src))
	if n > free {
		n = free
	}
	for i := uint32(0); i < n; i++ {
		r.buf[(tail+i)&r.mask] = src[i]
	}
	atomic.StoreUint32(&r.tail, tail+n)
	return int(n)
}

// Read copies as many samples into dst as are available, returning the
// count actually read. Callers producing audio for a hardware callback
// should zero-fill the remainder of dst on underrun rather than leaving
// stale data in it.
func (r *PCMRing) Read(dst []int16) int {
	head := atomic.LoadUint32(&r.head)
	tail := atomic.LoadUint32(&r.tail)
	avail := tail - head
	n := uint32(len(dst))
	if n > avail {
		n = avail
	}
	for i := uint32(0); i < n; i++ {
		dst[i] = r.buf[(head+i)&r.mask]
	}
	atomic.StoreUint32(&r.head, head+n)
	return int(n)
}

// Available reports how many samples are currently queued for reading.
func (r *PCMRing) Available() int {
	return int(atomic.LoadUint32(&r.tail) - atomic.LoadUint32(&r.head))
}

// Capacity reports the ring's total sample capacity.
func (r *PCMRing) Capacity() int {
	return len(r.buf)
}

// Clear drops all buffered samples.
func (r *PCMRing) Clear() {
	tail := atomic.LoadUint32(&r.tail)
	atomic.StoreUint32(&r.head, tail)
}
