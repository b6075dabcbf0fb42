// Package pacing implements the lock-free single-producer/single-consumer
// rings that connect the three stages of the audio pipeline: protocol
// session (producer of SidWrite events), emulation worker (consumer of
// writes, producer of PCM), and audio sink (consumer of PCM).
package pacing

import "sync/atomic"

// Tuning constants. MaxCyclesInBuffer (~3s of PAL cycles) and half the
// ring's write-count capacity are the two ways HasMaxData trips;
// MinCyclesToDrain/MinWritesToDrain are the two ways HasMinData trips.
// AudioStreamLimit/AudioStreamMaxLimit are watermarks for the *PCM*
// ring (not the write queue) and CyclesPerSample is a per-tick cycle
// budget; the emulation worker uses none of these three: it renders the
// cycles each popped write owes and waits while the PCM ring is full.
const (
	WriteQueueCapacity = 65536

	MaxCyclesInBuffer = 63 * 312 * 50 * 3 // ~3s of PAL cycles
	MinCyclesToDrain  = 500000
	MinWritesToDrain  = 300

	AudioStreamLimit    = 10000
	AudioStreamMaxLimit = 55000
	CyclesPerSample     = 5000
)

// SidWrite is one queued register write: the register, the value, and
// the number of SID clock cycles that must elapse (relative to the
// previous queued write) before it is applied.
type SidWrite struct {
	Reg    uint8
	Data   uint8
	Cycles uint32
}

// WriteQueue is a lock-free SPSC ring of SidWrite events plus the
// atomic cycle-accounting state the protocol session and the emulation
// worker both need to coordinate back-pressure.
type WriteQueue struct {
	buf  []SidWrite
	mask uint32

	head uint32 // consumer-owned
	tail uint32 // producer-owned

	cyclesInBuffer int64
	started        int32
	aborted        int32
}

// NewWriteQueue builds a queue with the first power of two capacity at
// least as large as requested. A requested capacity of 0 uses the
// standard 65536-slot ring.
func NewWriteQueue(capacity uint32) *WriteQueue {
	if capacity == 0 {
		capacity = WriteQueueCapacity
	}
	capacity = nextPow2(capacity)
	return &WriteQueue{buf: make([]SidWrite, capacity), mask: capacity - 1}
}

func nextPow2(n uint32) uint32 {
	p := uint32(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Push enqueues a write. It returns false if the ring itself is full;
// callers are expected to additionally consult HasMaxData before
// calling Push, since the cycle/write-count limits are reached well
// before the ring's slot count typically would be.
func (q *WriteQueue) Push(w SidWrite) bool {
	head := atomic.LoadUint32(&q.head)
	tail := atomic.LoadUint32(&q.tail)
	if tail-head >= uint32(len(q.buf)) {
		return false
	}
	q.buf[tail&q.mask] = w
	atomic.AddInt64(&q.cyclesInBuffer, int64(w.Cycles))
	atomic.StoreUint32(&q.tail, tail+1)
	return true
}

// Pop dequeues the next write, if any. Consumer-only.
func (q *WriteQueue) Pop() (SidWrite, bool) {
	head := atomic.LoadUint32(&q.head)
	tail := atomic.LoadUint32(&q.tail)
	if head == tail {
		return SidWrite{}, false
	}
	w := q.buf[head&q.mask]
	atomic.StoreUint32(&q.head, head+1)
	return w, true
}

// Len reports the number of writes currently queued.
func (q *WriteQueue) Len() uint32 {
	return atomic.LoadUint32(&q.tail) - atomic.LoadUint32(&q.head)
}

// Capacity reports the ring's total slot count.
func (q *WriteQueue) Capacity() uint32 {
	return uint32(len(q.buf))
}

// CyclesInBuffer reports the sum of Cycles across every currently
// queued write.
func (q *WriteQueue) CyclesInBuffer() int64 {
	return atomic.LoadInt64(&q.cyclesInBuffer)
}

// ConsumeCycles subtracts n from the cycle total as the worker clocks
// the chip forward; it saturates at zero rather than going negative.
func (q *WriteQueue) ConsumeCycles(n uint32) {
	for {
		cur := atomic.LoadInt64(&q.cyclesInBuffer)
		next := cur - int64(n)
		if next < 0 {
			next = 0
		}
		if atomic.CompareAndSwapInt64(&q.cyclesInBuffer, cur, next) {
			return
		}
	}
}

// HasMaxData reports whether the queue is over its throttling
// threshold: cycles pending exceed MaxCyclesInBuffer, or the queue is
// over half full by write count. As a side effect, crossing this
// threshold marks the queue started, even if a client sends one huge
// burst before HasMinData would trip. The emulation worker does not
// wait for this latch: it drains whatever is queued.
func (q *WriteQueue) HasMaxData() bool {
	over := q.CyclesInBuffer() > MaxCyclesInBuffer || q.Len() > uint32(len(q.buf))/2
	if over {
		q.MarkStarted()
	}
	return over
}

// HasMinData reports whether enough data is queued to mark the queue
// started: either the cycle total or the write count is over its
// threshold. Callers call MarkStarted when this is true after a write
// batch; HasMinData itself has no side effect.
func (q *WriteQueue) HasMinData() bool {
	return q.CyclesInBuffer() > MinCyclesToDrain || q.Len() > MinWritesToDrain
}

// MarkStarted latches queue_started. It stays set until Clear.
func (q *WriteQueue) MarkStarted() {
	atomic.StoreInt32(&q.started, 1)
}

// Started reports the queue_started latch.
func (q *WriteQueue) Started() bool {
	return atomic.LoadInt32(&q.started) == 1
}

// SetAborted marks the queue aborted; the worker checks this each loop
// iteration and clears the ring instead of draining it normally.
func (q *WriteQueue) SetAborted(v bool) {
	if v {
		atomic.StoreInt32(&q.aborted, 1)
	} else {
		atomic.StoreInt32(&q.aborted, 0)
	}
}

// Aborted reports the current abort flag.
func (q *WriteQueue) Aborted() bool {
	return atomic.LoadInt32(&q.aborted) == 1
}

// Clear drops every pending write and resets cycle accounting and the
// started/aborted latches. Used on Flush, SetAudioDevice, SetSidCount
// and on abort.
func (q *WriteQueue) Clear() {
	tail := atomic.LoadUint32(&q.tail)
	atomic.StoreUint32(&q.head, tail)
	atomic.StoreInt64(&q.cyclesInBuffer, 0)
	atomic.StoreInt32(&q.started, 0)
	atomic.StoreInt32(&q.aborted, 0)
}
