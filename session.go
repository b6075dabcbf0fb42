package main

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	frameHeaderSize = 4
	readTimeoutNet  = 100 * time.Millisecond
	writeTimeoutNet = 100 * time.Millisecond
)

// Session is one accepted TCP connection: it decodes frames, dispatches
// them against a Player, and writes back responses until the client
// disconnects, the device state signals quit, or a fatal audio error
// closes every session at once.
type Session struct {
	conn   net.Conn
	player *Player
	state  *DeviceState
	bus    <-chan SettingsCommand
	log    *log.Logger
	id     string
}

// NewSession wraps an accepted connection. Each session subscribes to
// the settings bus independently so it can observe reconfiguration
// events between frames.
func NewSession(conn net.Conn, player *Player, state *DeviceState, bus *SettingsBus, logger *log.Logger) *Session {
	id := uuid.NewString()[:8]
	return &Session{
		conn:   conn,
		player: player,
		state:  state,
		bus:    bus.Subscribe(),
		log:    logger,
		id:     id,
	}
}

// Serve runs the session loop until the connection closes or the
// device quits. It always closes the underlying connection before
// returning.
func (s *Session) Serve() {
	defer s.conn.Close()
	s.state.IncConnections()
	defer s.state.DecConnections()

	s.log.Info("session started", "sess", s.id, "addr", s.conn.RemoteAddr())

	for {
		if s.state.Quit() {
			return
		}
		if s.state.Errored() {
			s.log.Warn("device error, closing session", "sess", s.id, "err", s.state.ErrorMessage())
			return
		}
		select {
		case <-s.bus:
			// The Player applies each settings change itself before
			// publishing it. Sessions do not apply the commands they
			// receive; they only drain their subscription.
		default:
		}

		frame, err := s.readFrame()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if !errors.Is(err, io.EOF) {
				s.log.Debug("session read error", "sess", s.id, "err", err)
			}
			return
		}

		if frame == nil {
			// malformed header/length: answer ERROR, stay connected.
			s.writeResponse([]byte{respError})
			continue
		}

		resp := dispatch(s.player, frame.cmd, frame.sidNumber, frame.payload)
		if err := s.writeResponse(resp); err != nil {
			return
		}
	}
}

type decodedFrame struct {
	cmd       uint8
	sidNumber uint8
	payload   []byte
}

// readFrame reads one [cmd][sid][len_hi][len_lo][payload] frame. A
// header-read timeout is returned as-is so Serve can re-poll control
// signals; a successfully read header with a payload that cannot be
// fully read within the timeout is reported as a malformed frame
// (nil, nil) so the caller answers ERROR without tearing down the
// connection.
func (s *Session) readFrame() (*decodedFrame, error) {
	s.conn.SetReadDeadline(time.Now().Add(readTimeoutNet))
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(s.conn, header); err != nil {
		return nil, err
	}

	cmd := header[0]
	sidNumber := header[1]
	length := binary.BigEndian.Uint16(header[2:4])

	payload := make([]byte, length)
	if length > 0 {
		s.conn.SetReadDeadline(time.Now().Add(readTimeoutNet))
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			if isTimeout(err) && cmd != cmdFlush {
				return nil, nil
			}
			if isTimeout(err) {
				// Flush is exempt from the length/availability check:
				// proceed with whatever arrived.
				return &decodedFrame{cmd: cmd, sidNumber: sidNumber, payload: nil}, nil
			}
			return nil, err
		}
	}

	return &decodedFrame{cmd: cmd, sidNumber: sidNumber, payload: payload}, nil
}

func (s *Session) writeResponse(resp []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeoutNet))
	_, err := s.conn.Write(resp)
	return err
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
