package main

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
)

// idleSleep is how long the worker backs off when the shared queue has
// nothing to drain.
const idleSleep = 5 * time.Millisecond

// fullRingSleep is how long the worker backs off when the PCM ring is
// already comfortably full.
const fullRingSleep = time.Millisecond

// Worker is the single emulation worker driving every SidUnit a Player
// hosts: it drains the one shared write queue, answers read requests,
// and renders PCM into the shared ring.
type Worker struct {
	player *Player
	state  *DeviceState
	logger *log.Logger

	rng        *rand.Rand
	prevDither float64
}

// NewWorker builds a worker bound to player and state.
func NewWorker(player *Player, state *DeviceState, logger *log.Logger) *Worker {
	return &Worker{
		player: player,
		state:  state,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run drives the worker loop until ctx is cancelled or the device state
// signals quit: clear an aborted shared queue, else drain every write
// currently queued (rendering the audio each one owes before it lands),
// then service one read request so it observes everything drained ahead
// of it.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if w.state.Quit() {
			return
		}

		if w.player.queue.Aborted() {
			w.player.queue.Clear()
		}

		advanced := w.drainQueue()
		w.serviceRead()

		if !advanced {
			time.Sleep(idleSleep)
		}
	}
}

// drainQueue pops every write currently on the shared queue, in order.
// Each write first renders the cycles it owes against every unit (so a
// register change lands at the exact sample position its delay
// implies, per the device's cycle-accurate contract) and only then is
// applied to its target chip, selected by the write's reg>>5 SID index.
// It reports whether it drained anything at all.
func (w *Worker) drainQueue() bool {
	drained := false
	for {
		wr, ok := w.player.queue.Pop()
		if !ok {
			return drained
		}
		drained = true

		w.renderSegment(wr.Cycles)

		sidIndex := int(wr.Reg >> 5)
		offset := wr.Reg & 0x1f
		if unit, err := w.player.unit(sidIndex); err == nil {
			unit.mu.Lock()
			unit.chip.Write(uint32(offset), wr.Data)
			unit.mu.Unlock()
		}

		w.player.queue.ConsumeCycles(wr.Cycles)
		w.player.noteActivity()
	}
}

func (w *Worker) serviceRead() {
	select {
	case req := <-w.player.readReqs:
		w.drainQueue()
		unit, err := w.player.unit(req.sidIndex)
		if err != nil {
			req.resp <- 0
			return
		}
		unit.mu.Lock()
		v := unit.chip.Read(uint32(req.reg))
		unit.mu.Unlock()
		req.resp <- v
	default:
	}
}

// renderSegment advances every SID unit by cycles SID clock cycles,
// rendering each one's owed samples for that interval via sidcore's own
// fractional-cycle accounting, pans and sums them into a stereo mix,
// dithers, and writes the block into the shared PCM ring. Calling this
// once per popped write (rather than draining the whole queue first and
// rendering a disconnected fixed block afterward) is what keeps a
// register change audible at the right sample.
func (w *Worker) renderSegment(cycles uint32) {
	if cycles == 0 {
		return
	}
	units := w.player.Units()
	if len(units) == 0 {
		return
	}

	units[0].mu.Lock()
	cps := units[0].chip.CyclesPerSample()
	units[0].mu.Unlock()
	if cps <= 0 {
		return
	}
	capacity := int(math.Ceil(float64(cycles)/cps)) + 2

	mono := make([][]int16, len(units))
	frames := -1
	for i, u := range units {
		buf := make([]int16, capacity)
		u.mu.Lock()
		n, _ := u.chip.Sample(cycles, buf, 1)
		u.mu.Unlock()
		mono[i] = buf
		if frames == -1 || n < frames {
			frames = n
		}
	}
	if frames <= 0 {
		return
	}

	out := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		var left, right float64
		for ui, u := range units {
			lg, rg := panGains(int(u.pan.Load()))
			s := float64(mono[ui][i])
			left += s * lg
			right += s * rg
		}
		out[i*2] = w.ditherClamp(left)
		out[i*2+1] = w.ditherClamp(right)
	}

	w.writeRing(out)
}

func (w *Worker) writeRing(out []int16) {
	written := w.player.Ring().Write(out)
	for written < len(out) {
		time.Sleep(fullRingSleep)
		written += w.player.Ring().Write(out[written:])
	}
}

// panGains mirrors the original's asymmetric pan law: the channel a
// voice is panned toward stays at unattenuated 100, and only the
// opposite channel is attenuated, so neither channel ever exceeds unity
// gain (a pan value of -100/100 does not drive the far channel to 2x).
func panGains(pan int) (left, right float64) {
	if pan <= 0 {
		left = 1.0
	} else {
		left = float64(100-pan) / 100
	}
	if pan >= 0 {
		right = 1.0
	} else {
		right = float64(100+pan) / 100
	}
	return left, right
}

// ditherClamp applies a one-bit noise-shaped dither: the delta between
// the previous call's random bit and a fresh one is added to the
// sample before rounding, and the fresh bit is carried forward. This is
// a true 1-LSB dither, not a continuous random offset.
func (w *Worker) ditherClamp(v float64) int16 {
	newBit := float64(w.rng.Intn(2))
	delta := w.prevDither - newBit
	w.prevDither = newBit

	v += delta
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(math.Round(v))
}

// RunPauseMonitor polls the shared queue's idle state and the audio
// sink's health every stopPauseLatency: it pauses the stream once the
// queue has gone unserviced for pauseAudioIdleTime and resumes it the
// moment activity returns, and surfaces a fatal sink error to the
// device state so sessions close instead of serving writes that will
// never reach an output device.
func (w *Worker) RunPauseMonitor(ctx context.Context) {
	ticker := time.NewTicker(stopPauseLatency)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if w.state.Quit() {
			return
		}

		sink := w.player.Sink()
		if err := sink.Err(); err != nil {
			w.state.SetError(err.Error())
			continue
		}
		if w.player.ShouldPause() {
			if sink.IsStarted() && !sink.IsPaused() {
				sink.Pause()
			}
		} else if sink.IsPaused() {
			sink.Resume()
		}
	}
}
