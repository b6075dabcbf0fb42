package main

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestServerAcceptsAndDispatchesConnection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0 // ephemeral; overwritten below once we know a free port

	p := newTestPlayer(t)
	state := NewDeviceState()
	bus := NewSettingsBus()
	logger := newLogger("error")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probe listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	cfg.Port = addr.Port
	ln.Close()

	server := NewServer(cfg, p, state, bus, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.DialTimeout("tcp", addr.String(), 50*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{cmdGetVersion, 0, 0, 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp := make([]byte, 2)
	if _, err := readFullTest(conn, resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp[0] != respVersion {
		t.Fatalf("got %v, want respVersion", resp)
	}

	state.SetQuit(true)
	server.Stop()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("server.Run did not return after Stop")
	}
}

func TestServerDescribeBindErrorAddrInUse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	p := newTestPlayer(t)
	state := NewDeviceState()
	bus := NewSettingsBus()
	server := NewServer(cfg, p, state, bus, newLogger("error"))

	err = server.Run()
	if err == nil {
		t.Fatalf("expected a bind error on an already-bound port")
	}
	if !strings.Contains(err.Error(), "already running on port") {
		t.Fatalf("expected the already-running hint, got %v", err)
	}
}
