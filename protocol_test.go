package main

import (
	"context"
	"testing"
)

// TestDispatchGetVersion exercises the handshake byte sequence from the
// protocol scenarios: GetVersion with an empty payload answers
// [respVersion, protocolVersion].
func TestDispatchGetVersion(t *testing.T) {
	p := newTestPlayer(t)
	resp := dispatch(p, cmdGetVersion, 0, nil)
	want := []byte{respVersion, protocolVersion}
	assertBytes(t, resp, want)
}

// TestDispatchWriteThenRead mirrors the write+read scenario: a TryWrite
// for voice 1's control register (reg 0x04, sid 0) followed by a
// TryRead of the OSC3 register (reg 0x1b) returns a [respRead, value]
// reply once the running worker has drained the queued write.
func TestDispatchWriteThenRead(t *testing.T) {
	p := newTestPlayer(t)

	writePayload := []byte{0x00, 0x20, 0x04, 0x0f}
	resp := dispatch(p, cmdTryWrite, 0, writePayload)
	assertBytes(t, resp, []byte{respOK})

	state := NewDeviceState()
	w := NewWorker(p, state, newLogger("error"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	readPayload := []byte{0x00, 0x00, 0x1b}
	resp = dispatch(p, cmdTryRead, 0, readPayload)
	if len(resp) != 2 || resp[0] != respRead {
		t.Fatalf("expected [respRead, value], got %v", resp)
	}
}

// TestDispatchSetSidCountClearsQueue mirrors the SID count change
// scenario: changing the SID count rebuilds the unit list and aborts
// the shared queue, so the worker drops the writes queued before it.
func TestDispatchSetSidCountClearsQueue(t *testing.T) {
	p := newTestPlayer(t)
	resp := dispatch(p, cmdTrySetSidCount, 3, nil)
	assertBytes(t, resp, []byte{respOK})
	if p.SidCount() != 3 {
		t.Fatalf("expected 3 units after SetSidCount, got %d", p.SidCount())
	}
	if !p.queue.Aborted() {
		t.Fatalf("expected SetSidCount to abort the shared queue")
	}
}

func TestDispatchTrySetSidCountRejectsOutOfRange(t *testing.T) {
	p := newTestPlayer(t)
	resp := dispatch(p, cmdTrySetSidCount, 0, nil)
	assertBytes(t, resp, []byte{respError})

	resp = dispatch(p, cmdTrySetSidCount, 9, nil)
	assertBytes(t, resp, []byte{respError})
}

func TestDispatchFlushAnswersOK(t *testing.T) {
	p := newTestPlayer(t)
	resp := dispatch(p, cmdFlush, 0, nil)
	assertBytes(t, resp, []byte{respOK})
}

func TestDispatchUnknownCommandIsError(t *testing.T) {
	p := newTestPlayer(t)
	resp := dispatch(p, 200, 0, nil)
	assertBytes(t, resp, []byte{respError})
}

func TestDispatchGetConfigCount(t *testing.T) {
	p := newTestPlayer(t)
	resp := dispatch(p, cmdGetConfigCount, 0, nil)
	assertBytes(t, resp, []byte{respCount, deviceSidSocketCount})
}

func TestDispatchTryWriteRejectsMalformedPayload(t *testing.T) {
	p := newTestPlayer(t)
	resp := dispatch(p, cmdTryWrite, 0, []byte{0x00, 0x01, 0x02})
	assertBytes(t, resp, []byte{respError})
}

func TestDispatchTrySetSidModel(t *testing.T) {
	p := newTestPlayer(t)
	resp := dispatch(p, cmdTrySetSidModel, 0, []byte{1})
	assertBytes(t, resp, []byte{respOK})
}

func TestDispatchSetSidPositionClamps(t *testing.T) {
	p := newTestPlayer(t)
	resp := dispatch(p, cmdSetSidPosition, 0, []byte{0x7f})
	assertBytes(t, resp, []byte{respOK})
	unit, _ := p.unit(0)
	if unit.pan.Load() != 100 {
		t.Fatalf("expected pan clamped to 100, got %d", unit.pan.Load())
	}
}

func assertBytes(t *testing.T, got, want []byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
