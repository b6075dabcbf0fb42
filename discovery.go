package main

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
)

// discoveryPort is the well-known UDP port LAN clients broadcast their
// probe to.
const discoveryPort = 6581

// discoveryMagic is the ASCII probe payload a client sends; anything
// else is ignored.
const discoveryMagic = "SidDevice"

// pollTimeout bounds each ReadFromUDP call so the responder can notice
// DeviceState.Quit() without blocking forever.
const pollTimeout = 500 * time.Millisecond

// DiscoveryResponder answers LAN auto-discovery probes, gated on the
// configured AllowExternalConnections flag: a device that only accepts
// loopback clients has no business advertising itself on the LAN.
type DiscoveryResponder struct {
	cfg    *Config
	state  *DeviceState
	logger *log.Logger
}

// NewDiscoveryResponder builds a responder bound to cfg and state.
func NewDiscoveryResponder(cfg *Config, state *DeviceState, logger *log.Logger) *DiscoveryResponder {
	return &DiscoveryResponder{cfg: cfg, state: state, logger: logger}
}

// Run listens on 0.0.0.0:6581/udp until the device state signals quit.
// It is a no-op when AllowExternalConnections is false.
func (d *DiscoveryResponder) Run() error {
	if !d.cfg.AllowExternalConnections {
		d.logger.Debug("discovery responder disabled: external connections not allowed")
		return nil
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: discoveryPort})
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	defer conn.Close()

	d.logger.Info("discovery responder listening", "port", discoveryPort)

	buf := make([]byte, 64)
	for {
		if d.state.Quit() {
			return nil
		}
		conn.SetReadDeadline(time.Now().Add(pollTimeout))
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if d.state.Quit() {
				return nil
			}
			continue
		}
		if !bytes.Equal(buf[:n], []byte(discoveryMagic)) {
			continue
		}
		reply := d.announcement()
		if _, err := conn.WriteToUDP([]byte(reply), src); err != nil {
			d.logger.Debug("discovery reply failed", "err", err, "to", src)
		}
	}
}

// announcement builds the "SidDevice,<hostname>,<os>" reply string.
func (d *DiscoveryResponder) announcement() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s,%s,%s/%s", discoveryMagic, host, runtime.GOOS, runtime.Version())
}
