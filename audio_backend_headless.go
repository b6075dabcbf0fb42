//go:build headless

// audio_backend_headless.go - no-op audio sink for tests and CI, where
// there is no real output device to open.

package main

import "sidbridge/internal/pacing"

type OtoPlayer struct {
	started bool
	paused  bool
	ring    *pacing.PCMRing
}

func NewOtoPlayer(sampleRate int, ring *pacing.PCMRing) (*OtoPlayer, error) {
	return &OtoPlayer{ring: ring}, nil
}

// Read drains the ring so the worker never blocks on a full PCM buffer,
// but discards the samples instead of handing them to a device.
func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	numSamples := len(p) / 2
	samples := make([]int16, numSamples)
	op.ring.Read(samples)
	return len(p), nil
}

func (op *OtoPlayer) Start() {
	op.started = true
}

func (op *OtoPlayer) Stop() {
	op.started = false
	op.paused = false
}

func (op *OtoPlayer) Close() {
	op.started = false
	op.paused = false
}

func (op *OtoPlayer) IsStarted() bool {
	return op.started
}

func (op *OtoPlayer) Pause() {
	if op.started {
		op.paused = true
	}
}

func (op *OtoPlayer) Resume() {
	op.paused = false
}

func (op *OtoPlayer) IsPaused() bool {
	return op.paused
}

// Err always reports healthy: there is no real device to fail.
func (op *OtoPlayer) Err() error {
	return nil
}
