package main

import (
	"net"
	"testing"
	"time"
)

func TestSessionHandshakeOverWire(t *testing.T) {
	p := newTestPlayer(t)
	state := NewDeviceState()
	bus := NewSettingsBus()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	sess := NewSession(serverConn, p, state, bus, newLogger("error"))
	go sess.Serve()

	// GetVersion: cmd=7, sid=0, len=0.
	if _, err := clientConn.Write([]byte{cmdGetVersion, 0, 0, 0}); err != nil {
		t.Fatalf("write: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp := make([]byte, 2)
	if _, err := readFullTest(clientConn, resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp[0] != respVersion || resp[1] != protocolVersion {
		t.Fatalf("got %v, want [respVersion, protocolVersion]", resp)
	}

	state.SetQuit(true)
}

func TestSessionMalformedLengthAnswersError(t *testing.T) {
	p := newTestPlayer(t)
	state := NewDeviceState()
	bus := NewSettingsBus()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	sess := NewSession(serverConn, p, state, bus, newLogger("error"))
	go sess.Serve()

	// TryWrite claiming a huge length but sending no payload: the
	// server's payload read times out and the session answers ERROR
	// without closing the connection.
	if _, err := clientConn.Write([]byte{cmdTryWrite, 0, 0xff, 0xff}); err != nil {
		t.Fatalf("write: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	resp := make([]byte, 1)
	if _, err := readFullTest(clientConn, resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp[0] != respError {
		t.Fatalf("got %v, want [respError]", resp)
	}

	state.SetQuit(true)
}

func readFullTest(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
