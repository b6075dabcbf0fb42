package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Server owns the TCP listener and hands each accepted connection to its
// own Session goroutine.
type Server struct {
	cfg    *Config
	player *Player
	state  *DeviceState
	bus    *SettingsBus
	logger *log.Logger

	listener net.Listener
}

// NewServer builds a Server bound to cfg's host and port; it does not
// start listening until Run is called.
func NewServer(cfg *Config, player *Player, state *DeviceState, bus *SettingsBus, logger *log.Logger) *Server {
	return &Server{cfg: cfg, player: player, state: state, bus: bus, logger: logger}
}

// Run binds the listener and accepts connections until the device state
// signals quit or a non-transient accept error occurs. A bind failure on
// an address already in use is reported with the device's diagnostic
// hint rather than the bare net error.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return s.describeBindError(err)
	}
	s.listener = ln
	s.logger.Info("listening", "addr", addr)

	defer ln.Close()
	for {
		if s.state.Quit() {
			return nil
		}
		if tl, ok := ln.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(200 * time.Millisecond))
		}
		conn, err := ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if s.state.Quit() {
				return nil
			}
			return err
		}
		sess := NewSession(conn, s.player, s.state, s.bus, s.logger)
		go sess.Serve()
	}
}

// Stop closes the listener, unblocking Run's Accept call.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
}

// describeBindError surfaces the same operator-facing hint as the
// original device for the two bind failures that matter in practice:
// the port already held by another instance, and insufficient
// privilege to bind a low port.
func (s *Server) describeBindError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "address already in use"):
		return fmt.Errorf("another SID device seems to be already running on port %d: %w", s.cfg.Port, err)
	case strings.Contains(msg, "permission denied"):
		return fmt.Errorf("insufficient privilege to bind port %d: %w", s.cfg.Port, err)
	default:
		return err
	}
}
