package main

import (
	"testing"
	"time"

	"sidbridge/internal/pacing"
	"sidbridge/internal/sidcore"
)

// fakeSink is a no-op AudioSink for tests, avoiding any dependency on a
// real output device.
type fakeSink struct {
	started bool
	paused  bool
	ring    *pacing.PCMRing
}

func newFakeSink(sampleRate int, ring *pacing.PCMRing) (AudioSink, error) {
	return &fakeSink{ring: ring}, nil
}

func (f *fakeSink) Start()          { f.started = true }
func (f *fakeSink) Stop()           { f.started = false }
func (f *fakeSink) Close()          { f.started = false }
func (f *fakeSink) IsStarted() bool { return f.started }
func (f *fakeSink) Pause()          { f.paused = true }
func (f *fakeSink) Resume()         { f.paused = false }
func (f *fakeSink) IsPaused() bool  { return f.paused }
func (f *fakeSink) Err() error      { return nil }

func newTestPlayer(t *testing.T) *Player {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SidCount = 1
	bus := NewSettingsBus()
	p, err := NewPlayer(cfg, bus, newLogger("error"), newFakeSink)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	return p
}

func TestPlayerWriteToSidEnqueues(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.WriteToSid(0, 0x18, 0x0f, 10); err != nil {
		t.Fatalf("WriteToSid: %v", err)
	}
	if p.queue.Len() != 1 {
		t.Fatalf("expected one queued write, got %d", p.queue.Len())
	}
}

func TestPlayerWriteToSidOutOfRange(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.WriteToSid(5, 0, 0, 0); err != ErrSidOutOfRange {
		t.Fatalf("expected ErrSidOutOfRange, got %v", err)
	}
}

func TestPlayerReadFromSidServicedByWorker(t *testing.T) {
	p := newTestPlayer(t)
	state := NewDeviceState()
	w := NewWorker(p, state, newLogger("error"))

	// Voice 3's frequency, then a no-op write owing 1000 cycles: once
	// drained, voice 3's phase is 0x1000*1000 = 0x3e8000, so OSC3 reads
	// its top byte, 0x3e.
	if err := p.WriteToSid(0, sidRegVoice3FreqHiForTest, 0x10, 0); err != nil {
		t.Fatalf("WriteToSid: %v", err)
	}
	if err := p.WriteToSid(0, noOpRegisterOffset, 0, 1000); err != nil {
		t.Fatalf("WriteToSid: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for len(p.readReqs) == 0 {
			time.Sleep(time.Millisecond)
		}
		w.serviceRead()
		close(done)
	}()

	resp := make(chan uint8, 1)
	go func() {
		v, err := p.ReadFromSid(0, sidRegOsc3ForTest)
		if err != nil {
			t.Errorf("ReadFromSid: %v", err)
			return
		}
		resp <- v
	}()

	<-done
	select {
	case v := <-resp:
		if v != 0x3e {
			t.Fatalf("expected OSC3 readback 0x3e, got %#x", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for read response")
	}
}

func TestPlayerSetSidCountRebuildsUnits(t *testing.T) {
	p := newTestPlayer(t)
	p.SetSidCount(3)
	if p.SidCount() != 3 {
		t.Fatalf("expected 3 units, got %d", p.SidCount())
	}
}

func TestPlayerSetPositionClampsRange(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.SetPosition(0, 500); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	unit, _ := p.unit(0)
	if unit.pan.Load() != 100 {
		t.Fatalf("expected pan clamped to 100, got %d", unit.pan.Load())
	}
}

func TestPlayerResetUnitClearsChip(t *testing.T) {
	p := newTestPlayer(t)
	p.WriteToSid(0, 0x18, 0x0f, 0)
	unit, _ := p.unit(0)
	unit.mu.Lock()
	unit.chip.Write(uint32(sidRegVoice3FreqHiForTest), 0x10)
	unit.chip.ClockDelta(1000)
	before := unit.chip.Read(uint32(sidRegOsc3ForTest))
	unit.mu.Unlock()
	if before == 0 {
		t.Fatalf("expected OSC3 to move before reset")
	}

	if err := p.ResetUnit(0); err != nil {
		t.Fatalf("ResetUnit: %v", err)
	}
	unit.mu.Lock()
	v := unit.chip.Read(uint32(sidRegOsc3ForTest))
	unit.mu.Unlock()
	if v != 0 {
		t.Fatalf("expected OSC3 cleared after reset, got %#x", v)
	}
}

func TestPlayerConfigInfoReportsModel(t *testing.T) {
	p := newTestPlayer(t)
	info := p.configInfo(0)
	if info[0] != respInfo {
		t.Fatalf("expected respInfo header, got %#x", info[0])
	}
	if info[1] != modelBit(sidcore.MOS6581) {
		t.Fatalf("expected 6581 model bit, got %d", info[1])
	}
}

// These avoid importing sidcore's unexported register constants from
// outside the package: voice 3's frequency hi-byte is register 0x0f, and
// OSC3 (the top byte of voice 3's phase, one of the few registers that
// read back chip state) is register 0x1b.
const (
	sidRegVoice3FreqHiForTest = 0x0f
	sidRegOsc3ForTest         = 0x1b
)
