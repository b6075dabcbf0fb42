package main

import (
	"sync"
	"sync/atomic"
)

// DeviceState is the process-wide status the supervisor loop and the
// server share: whether the device is ready to accept work, whether a
// restart has been requested, whether the process should quit, and the
// last fatal error (if any). All fields are safe for concurrent access
// without an external lock.
type DeviceState struct {
	deviceReady atomic.Bool
	restart     atomic.Bool
	quit        atomic.Bool
	errored     atomic.Bool

	errMu  sync.Mutex
	errMsg string

	connectionCount atomic.Int64
}

// NewDeviceState returns a DeviceState ready for the supervisor's first
// pass: restart armed, nothing else set.
func NewDeviceState() *DeviceState {
	ds := &DeviceState{}
	ds.restart.Store(true)
	return ds
}

// Init marks the device ready to accept connections.
func (d *DeviceState) Init() {
	d.deviceReady.Store(true)
}

// Reset re-arms the restart loop and clears quit/error, used by a
// control surface that wants the supervisor to bring the server back up
// after a fatal error.
func (d *DeviceState) Reset() {
	d.restart.Store(true)
	d.quit.Store(false)
	d.errored.Store(false)
	d.errMu.Lock()
	d.errMsg = ""
	d.errMu.Unlock()
}

// SetError records a fatal error and marks the device ready, so a
// status reader sees the error rather than a device still starting up.
func (d *DeviceState) SetError(msg string) {
	d.errored.Store(true)
	d.errMu.Lock()
	d.errMsg = msg
	d.errMu.Unlock()
	d.deviceReady.Store(true)
}

func (d *DeviceState) DeviceReady() bool { return d.deviceReady.Load() }
func (d *DeviceState) Restart() bool     { return d.restart.Load() }
func (d *DeviceState) Quit() bool        { return d.quit.Load() }
func (d *DeviceState) Errored() bool     { return d.errored.Load() }

// ErrorMessage returns the last recorded error, if any.
func (d *DeviceState) ErrorMessage() string {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.errMsg
}

func (d *DeviceState) SetRestart(v bool) { d.restart.Store(v) }
func (d *DeviceState) SetQuit(v bool)    { d.quit.Store(v) }

// IncConnections / DecConnections track the number of live client
// connections for logging and diagnostics.
func (d *DeviceState) IncConnections() int64 { return d.connectionCount.Add(1) }
func (d *DeviceState) DecConnections() int64 { return d.connectionCount.Add(-1) }
func (d *DeviceState) Connections() int64    { return d.connectionCount.Load() }
