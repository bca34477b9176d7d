package telnet

import (
	"bytes"
	"log"
)

// OnRead feeds inbound transport bytes through the engine. Clean application
// data is flushed to the hooks at each IAC GA and at end of input; protocol
// sequences are negotiated inline. When an MCCPv2 stream is active the bytes
// are inflated first and the inflated output is parsed instead.
//
// The returned error is non-fatal: it reports a failed or finished inflate
// stream. The engine has already reverted to plain mode and the remainder of
// this chunk is dropped, matching the peer restarting plain-text output.
func (e *Engine) OnRead(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var clean bytes.Buffer
	clean.Grow(len(data))

	pos := 0
	for pos < len(data) {
		if e.inflateTelnet {
			if err := e.readInflate(data[pos:], &clean); err != nil {
				e.flush(&clean)
				return err
			}
			// The inflater consumed the rest of the chunk.
			break
		}

		c := data[pos]
		e.processByte(&clean, c)
		pos++

		if e.recvdCompress {
			// IAC SB COMPRESS2 IAC SE just finished; everything from the
			// next byte on is deflate stream.
			e.initCompress()
			e.recvdCompress = false
			continue
		}

		if e.recvdGA {
			e.hooks.SendToMapper(clean.Bytes(), true)
			clean.Reset()
			e.recvdGA = false
		}
	}

	e.flush(&clean)
	return nil
}

func (e *Engine) flush(clean *bytes.Buffer) {
	if clean.Len() > 0 {
		e.hooks.SendToMapper(clean.Bytes(), false)
		clean.Reset()
	}
}

// readInflate pushes raw bytes through the inflater and parses the output.
// Any inflate error (including a clean stream end) turns compression off.
func (e *Engine) readInflate(data []byte, clean *bytes.Buffer) error {
	out, err := e.inflater.Feed(data)
	e.stats.InflatedBytes += int64(len(out))

	for _, c := range out {
		e.processByte(clean, c)
		if e.recvdGA {
			e.hooks.SendToMapper(clean.Bytes(), true)
			clean.Reset()
			e.recvdGA = false
		}
	}

	if err != nil {
		if e.debug {
			log.Printf("telnet: ending compression: %v", err)
		}
		e.resetCompress()
		return err
	}

	if e.debug && len(out) > 0 {
		ratio := float64(len(out)) / float64(len(data))
		log.Printf("telnet: zlib compression ratio of %.1f:1", ratio)
	}
	return nil
}

func (e *Engine) initCompress() {
	e.inflateTelnet = true
	e.inflater = e.newInflater()
}

/*
 * normal telnet state
 * -------------------
 * x                                # forward 0-254
 * IAC IAC                          # forward 255
 * IAC (WILL | WONT | DO | DONT) x  # negotiate 0-255
 * IAC SB                           # begins subnegotiation
 * IAC SE                           # (error)
 * IAC x                            # exec command
 *
 * within a subnegotiation
 * -----------------------
 * x                                # appends 0-254 to option payload
 * IAC IAC                          # appends 255 to option payload
 * IAC (WILL | WONT | DO | DONT) x  # negotiate 0-255
 * IAC SB                           # (error)
 * IAC SE                           # ends subnegotiation
 * IAC x                            # exec command
 *
 * RFC 855 refers to IAC SE as a command rather than a delimiter, so embedded
 * commands (e.g. IAC GA) are still processed inside a subnegotiation.
 */
func (e *Engine) processByte(clean *bytes.Buffer, c byte) {
	switch e.state {
	case stateNormal:
		if c == IAC {
			e.state = stateIAC
			e.commandBuffer = append(e.commandBuffer, c)
		} else {
			clean.WriteByte(c)
		}

	case stateIAC:
		switch {
		case c == IAC:
			// doubled IAC is a literal 0xFF
			e.state = stateNormal
			clean.WriteByte(c)
			e.commandBuffer = e.commandBuffer[:0]
		case c == WILL || c == WONT || c == DO || c == DONT:
			e.state = stateCommand
			e.commandBuffer = append(e.commandBuffer, c)
		case c == SB:
			e.state = stateSubneg
			e.commandBuffer = e.commandBuffer[:0]
		case c == SE:
			// IAC SE without IAC SB - ignored
			e.state = stateNormal
			e.commandBuffer = e.commandBuffer[:0]
		default:
			e.state = stateNormal
			e.commandBuffer = append(e.commandBuffer, c)
			e.processTelnetCommand(e.commandBuffer)
			e.commandBuffer = e.commandBuffer[:0]
		}

	case stateCommand:
		// IAC DO/DONT/WILL/WONT <option>
		e.state = stateNormal
		e.commandBuffer = append(e.commandBuffer, c)
		e.processTelnetCommand(e.commandBuffer)
		e.commandBuffer = e.commandBuffer[:0]

	case stateSubneg:
		if c == IAC {
			e.state = stateSubnegIAC
			e.commandBuffer = append(e.commandBuffer, c)
		} else {
			e.subnegBuffer = append(e.subnegBuffer, c)
		}

	case stateSubnegIAC:
		switch {
		case c == IAC:
			// doubled IAC inside the payload
			e.state = stateSubneg
			e.subnegBuffer = append(e.subnegBuffer, c)
			e.commandBuffer = e.commandBuffer[:0]
		case c == WILL || c == WONT || c == DO || c == DONT:
			e.state = stateSubnegCommand
			e.commandBuffer = append(e.commandBuffer, c)
		case c == SE:
			e.state = stateNormal
			e.processSubnegotiation(e.subnegBuffer)
			e.commandBuffer = e.commandBuffer[:0]
			e.subnegBuffer = e.subnegBuffer[:0]
		case c == SB:
			// IAC SB within IAC SB - drop the subnegotiation
			e.state = stateNormal
			e.commandBuffer = e.commandBuffer[:0]
			e.subnegBuffer = e.subnegBuffer[:0]
		default:
			e.state = stateSubneg
			e.commandBuffer = append(e.commandBuffer, c)
			e.processTelnetCommand(e.commandBuffer)
			e.commandBuffer = e.commandBuffer[:0]
		}

	case stateSubnegCommand:
		// IAC DO/DONT/WILL/WONT <option>, still inside the subnegotiation
		e.state = stateSubneg
		e.commandBuffer = append(e.commandBuffer, c)
		e.processTelnetCommand(e.commandBuffer)
		e.commandBuffer = e.commandBuffer[:0]
	}
}
