//go:build !headless

// audio_backend_oto.go - OTO v3 audio output implementation

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later

Adapted for sidbridge: pulls interleaved stereo int16 PCM from a
pacing.PCMRing instead of pushing mono float32 samples read from a
SoundChip.
*/

package main

import (
	"sync"

	"github.com/ebitengine/oto/v3"

	"sidbridge/internal/pacing"
)

// OtoPlayer is the real-device audio sink: an oto.Player whose Read
// callback drains PCM frames produced by the emulation worker.
type OtoPlayer struct {
	ctx     *oto.Context
	player  *oto.Player
	ring    *pacing.PCMRing
	started bool
	paused  bool
	mutex   sync.Mutex // guards setup/control operations only, not Read
}

// NewOtoPlayer opens the platform's default output device at sampleRate,
// stereo, 16-bit signed PCM.
func NewOtoPlayer(sampleRate int, ring *pacing.PCMRing) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   4,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &OtoPlayer{
		ctx:     ctx,
		ring:    ring,
		started: false,
	}, nil
}

// Read implements io.Reader for oto: it is the audio callback's hot
// path, and must never block on the ring (underrun is filled with
// silence rather than waiting for the worker to catch up).
func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	numSamples := len(p) / 2 // 2 bytes per int16 sample
	samples := make([]int16, numSamples)

	read := op.ring.Read(samples)
	for i := read; i < numSamples; i++ {
		samples[i] = 0
	}

	for i, s := range samples {
		p[i*2] = byte(s)
		p[i*2+1] = byte(s >> 8)
	}
	return len(p), nil
}

func (op *OtoPlayer) Start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if !op.started {
		op.player = op.ctx.NewPlayer(op)
		op.player.Play()
		op.started = true
	}
}

func (op *OtoPlayer) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.started && op.player != nil {
		op.player.Close()
		op.player = nil
		op.started = false
		op.paused = false
	}
}

func (op *OtoPlayer) Close() {
	op.Stop()
}

func (op *OtoPlayer) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}

// Pause stops the underlying oto.Player from pulling PCM without
// tearing it down, used by the worker's idle-pause monitor after
// pauseAudioIdleTime of inactivity.
func (op *OtoPlayer) Pause() {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.started && op.player != nil && !op.paused {
		op.player.Pause()
		op.paused = true
	}
}

// Resume restarts playback after Pause, the moment the worker sees
// activity on the shared queue again.
func (op *OtoPlayer) Resume() {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.started && op.player != nil && op.paused {
		op.player.Play()
		op.paused = false
	}
}

func (op *OtoPlayer) IsPaused() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.paused
}

// Err reports the underlying oto.Player's last fatal playback error, if
// any, so the worker's pause monitor can surface it to DeviceState and
// have every session close rather than keep serving writes that will
// never produce sound.
func (op *OtoPlayer) Err() error {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.player == nil {
		return nil
	}
	return op.player.Err()
}
