package main

// Response byte constants (§6.1): the first byte of every reply.
const (
	respOK      = 0
	respBusy    = 1
	respError   = 2
	respRead    = 3
	respVersion = 4
	respCount   = 5
	respInfo    = 6
)

// Command opcodes, the first byte of every request frame.
const (
	cmdFlush          = 0
	cmdTrySetSidCount = 1
	cmdMute           = 2 // preserved, undispatched: falls through to OK
	cmdTryReset       = 3
	cmdTryDelay       = 4
	cmdTryWrite       = 5
	cmdTryRead        = 6
	cmdGetVersion     = 7
	cmdTrySetSampling = 8
	cmdTrySetClock    = 9
	cmdGetConfigCount = 10
	cmdGetConfigInfo  = 11
	cmdSetSidPosition = 12
	cmdSetSidLevel    = 13 // preserved, undispatched: falls through to OK
	cmdTrySetSidModel = 14
	cmdSetDelay       = 15
	cmdSetFadeIn      = 16
	cmdSetFadeOut     = 17
	cmdSetPsidHeader  = 18
)

const (
	protocolVersion      = 4
	deviceSidSocketCount = 2
	// noOpRegisterOffset is a register offset past the chip's real
	// register range (sidcore rejects writes at or above numRegisters);
	// used to synthesize a pure cycle-burning delay, per the wire
	// protocol's TryDelay and TryRead trailing-cycles semantics.
	noOpRegisterOffset = 0x1e
)

// writeChunk is one decoded (sid, reg, val, cycles) unit from a
// TryWrite/TryRead payload.
type writeChunk struct {
	sidIndex int
	offset   uint8
	data     uint8
	cycles   uint32
}

func decodeWriteChunks(payload []byte) []writeChunk {
	n := len(payload) / 4
	chunks := make([]writeChunk, n)
	for i := 0; i < n; i++ {
		b := payload[i*4 : i*4+4]
		cycles := uint32(b[0])<<8 | uint32(b[1])
		reg := b[2]
		chunks[i] = writeChunk{
			sidIndex: int(reg >> 5),
			offset:   reg & 0x1f,
			data:     b[3],
			cycles:   cycles,
		}
	}
	return chunks
}

// checkBusy reports whether the single shared write queue is currently
// over its back-pressure threshold. Every SID shares one queue and one
// cycle timeline (§4.1), so back-pressure is a property of the device,
// not of any one SID a batch happens to touch.
func checkBusy(p *Player) bool {
	return p.queue.HasMaxData()
}

// applyChunks pushes every chunk onto the shared queue in order and
// marks it started once it has enough data queued.
func applyChunks(p *Player, chunks []writeChunk) error {
	for _, c := range chunks {
		if err := p.WriteToSid(c.sidIndex, c.offset, c.data, c.cycles); err != nil {
			return err
		}
	}
	markStartedIfReady(p)
	return nil
}

func markStartedIfReady(p *Player) {
	if p.queue.HasMinData() {
		p.queue.MarkStarted()
	}
}

// dispatch decodes and applies one request frame against p, returning
// the bytes to write back to the client. It never blocks except inside
// ReadFromSid's bounded rendezvous wait.
func dispatch(p *Player, cmd uint8, sidNumber uint8, payload []byte) []byte {
	switch cmd {
	case cmdFlush:
		p.FlushAll()
		return []byte{respOK}

	case cmdTrySetSidCount:
		count := int(sidNumber)
		if count < 1 || count > 8 {
			return []byte{respError}
		}
		p.SetSidCount(count)
		return []byte{respOK}

	case cmdMute, cmdSetSidLevel:
		return []byte{respOK}

	case cmdTryReset:
		if len(payload) != 1 {
			return []byte{respError}
		}
		if checkBusy(p) {
			return []byte{respBusy}
		}
		if err := p.ResetUnit(int(sidNumber)); err != nil {
			return []byte{respError}
		}
		return []byte{respOK}

	case cmdTryDelay:
		if len(payload) != 2 {
			return []byte{respError}
		}
		cycles := uint32(payload[0])<<8 | uint32(payload[1])
		chunk := writeChunk{sidIndex: int(sidNumber), offset: noOpRegisterOffset, data: 0, cycles: cycles}
		if checkBusy(p) {
			return []byte{respBusy}
		}
		if err := applyChunks(p, []writeChunk{chunk}); err != nil {
			return []byte{respError}
		}
		return []byte{respOK}

	case cmdTryWrite:
		if len(payload)%4 != 0 {
			return []byte{respError}
		}
		chunks := decodeWriteChunks(payload)
		if len(chunks) == 0 {
			return []byte{respOK}
		}
		if checkBusy(p) {
			return []byte{respBusy}
		}
		if err := applyChunks(p, chunks); err != nil {
			return []byte{respError}
		}
		return []byte{respOK}

	case cmdTryRead:
		if len(payload) < 3 || (len(payload)-3)%4 != 0 {
			return []byte{respError}
		}
		n := (len(payload) - 3) / 4
		chunks := decodeWriteChunks(payload[:n*4])
		tail := payload[n*4:]
		cycles := uint32(tail[0])<<8 | uint32(tail[1])
		reg := tail[2]
		readSid := int(reg >> 5)
		readOffset := reg & 0x1f
		delayChunk := writeChunk{sidIndex: readSid, offset: noOpRegisterOffset, data: 0, cycles: cycles}

		all := append(append([]writeChunk{}, chunks...), delayChunk)
		if checkBusy(p) {
			return []byte{respBusy}
		}
		if err := applyChunks(p, all); err != nil {
			return []byte{respError}
		}
		value, err := p.ReadFromSid(readSid, readOffset)
		if err != nil {
			return []byte{respError}
		}
		return []byte{respRead, value}

	case cmdGetVersion:
		return []byte{respVersion, protocolVersion}

	case cmdTrySetSampling:
		if len(payload) != 1 {
			return []byte{respError}
		}
		if payload[0] == 0 {
			p.SetSamplingMethod(samplingInterpolate())
		} else {
			p.SetSamplingMethod(samplingResample())
		}
		return []byte{respOK}

	case cmdTrySetClock:
		if len(payload) != 1 {
			return []byte{respError}
		}
		if payload[0] == 0 {
			p.SetClock(clockPAL())
		} else {
			p.SetClock(clockNTSC())
		}
		return []byte{respOK}

	case cmdGetConfigCount:
		return []byte{respCount, deviceSidSocketCount}

	case cmdGetConfigInfo:
		return p.configInfo(int(sidNumber))

	case cmdSetSidPosition:
		if len(payload) != 1 {
			return []byte{respError}
		}
		position := int(int8(payload[0]))
		if err := p.SetPosition(int(sidNumber), position); err != nil {
			return []byte{respError}
		}
		return []byte{respOK}

	case cmdTrySetSidModel:
		if len(payload) != 1 {
			return []byte{respError}
		}
		model := modelFromByte(payload[0])
		if err := p.SetModel(int(sidNumber), model); err != nil {
			return []byte{respError}
		}
		return []byte{respOK}

	case cmdSetDelay, cmdSetFadeIn, cmdSetFadeOut, cmdSetPsidHeader:
		return []byte{respOK}

	default:
		return []byte{respError}
	}
}
