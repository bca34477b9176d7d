package telnet

import (
	"bytes"
	"encoding/binary"
	"log"

	"github.com/crystal-mush/mudlink/pkg/gmcp"
)

// optionNegotiated reports whether the option is enabled on either side.
// Handlers act when the option was negotiated in either direction; servers
// disagree on which side "owns" TTYPE, CHARSET, NAWS and GMCP payloads.
func (e *Engine) optionNegotiated(opt byte) bool {
	return e.myOptionState[opt] || e.hisOptionState[opt]
}

// processSubnegotiation dispatches a complete SB payload (option byte
// followed by parameters) to the option handler. Unrecognized options are
// dropped.
func (e *Engine) processSubnegotiation(payload []byte) {
	if len(payload) == 0 {
		return
	}
	e.stats.SubnegotiationsProcessed++
	if e.debug {
		if len(payload) == 1 {
			log.Printf("telnet: processing subnegotiation %s", optionName(payload[0]))
		} else {
			log.Printf("telnet: processing subnegotiation %s %s",
				optionName(payload[0]), subnegName(payload[1]))
		}
	}

	switch payload[0] {
	case OptStatus:
		// deliberately lenient: some servers send STATUS SEND without a
		// negotiated STATUS option
		if len(payload) >= 2 && payload[1] == SubSend {
			// request to dump all enabled options; a STATUS IS from the
			// server is ignored since we never ask for one
			e.sendOptionStatus()
		}

	case OptTerminalType:
		if e.optionNegotiated(OptTerminalType) && len(payload) >= 2 {
			switch payload[1] {
			case SubSend:
				e.sendTerminalType(e.termType)
			case SubIS:
				// TERMINAL-TYPE IS <type>
				e.hooks.ReceiveTerminalType(payload[2:])
			}
		}

	case OptCharset:
		if e.optionNegotiated(OptCharset) {
			e.processCharsetSubneg(payload)
		}

	case OptCompress2:
		if e.hisOptionState[OptCompress2] {
			if e.inflateTelnet {
				if e.debug {
					log.Printf("telnet: compression was already enabled")
				}
				break
			}
			if e.debug {
				log.Printf("telnet: starting compression")
			}
			e.recvdCompress = true
		}

	case OptGMCP:
		if e.optionNegotiated(OptGMCP) {
			// Package[.SubPackages].Message <data>
			if len(payload) <= 1 {
				log.Printf("telnet: invalid GMCP received %q", payload)
				break
			}
			msg, err := gmcp.ParseMessage(payload[1:])
			if err != nil {
				log.Printf("telnet: corrupted GMCP received %q: %v", payload, err)
				break
			}
			if e.debug {
				log.Printf("telnet: received GMCP message %s", msg)
			}
			e.hooks.ReceiveGmcpMessage(msg)
		}

	case OptNAWS:
		if e.optionNegotiated(OptNAWS) {
			// NAWS <16-bit width> <16-bit height>
			if len(payload) == 5 {
				width := binary.BigEndian.Uint16(payload[1:3])
				height := binary.BigEndian.Uint16(payload[3:5])
				e.hooks.ReceiveWindowSize(width, height)
				break
			}
			log.Printf("telnet: corrupted NAWS received %q", payload)
		}

	default:
		// subnegotiations for options we never negotiated are dropped
	}
}

// processCharsetSubneg handles RFC 2066 CHARSET payloads.
func (e *Engine) processCharsetSubneg(payload []byte) {
	if len(payload) < 2 {
		return
	}
	switch payload[1] {
	case SubRequest:
		// CHARSET REQUEST <sep> <charset>{<sep><charset>}
		// The [TTABLE] variant is not supported.
		if len(payload) >= 4 && payload[2] != '[' {
			sep := payload[2]
			for _, cs := range bytes.Split(payload[3:], []byte{sep}) {
				name := string(cs)
				if e.codec.Supports(name) {
					e.codec.SetEncodingForName(name)
					e.sendCharsetAccepted(cs)
					return
				}
			}
			if e.debug {
				log.Printf("telnet: rejected charsets %q", payload[3:])
			}
		}
		e.sendCharsetRejected()

	case SubAccepted:
		if len(payload) > 3 {
			// CHARSET ACCEPTED <charset>
			e.codec.SetEncodingForName(string(payload[2:]))
		}

	case SubRejected:
		// the peer keeps its current encoding

	case SubTTableIS:
		// We never request a translation table, so a TTABLE-IS is a peer
		// bug; refuse it and carry on.
		log.Printf("telnet: unexpected CHARSET TTABLE-IS received, rejecting")
		e.sendCharsetRejected()
	}
}
