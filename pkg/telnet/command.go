package telnet

import (
	"log"

	"github.com/crystal-mush/mudlink/pkg/textcodec"
)

// supportedHisOption reports whether we accept the peer enabling the option
// on its side (reply to WILL with DO).
func supportedHisOption(opt byte) bool {
	switch opt {
	case OptSuppressGA, OptStatus, OptTerminalType, OptNAWS, OptEcho,
		OptCharset, OptCompress2, OptGMCP:
		return true
	}
	return false
}

// supportedMyOption reports whether we accept enabling the option on our
// side (reply to DO with WILL). COMPRESS2 is deliberately absent: MCCPv2 is
// server-initiated and this engine only inflates, never deflates.
func supportedMyOption(opt byte) bool {
	switch opt {
	case OptSuppressGA, OptStatus, OptTerminalType, OptNAWS, OptEcho,
		OptCharset, OptGMCP:
		return true
	}
	return false
}

// processTelnetCommand applies the RFC 854 negotiation rules to a complete
// IAC sequence: IAC <cmd> for simple commands, IAC <verb> <option> for the
// four-way WILL/WONT/DO/DONT handshake.
func (e *Engine) processTelnetCommand(command []byte) {
	if len(command) >= 2 {
		e.stats.CommandsProcessed++
	}
	switch len(command) {
	case 2:
		cmd := command[1]
		if cmd != GA && e.debug {
			log.Printf("telnet: processing command %s", commandName(cmd))
		}
		switch cmd {
		case AYT:
			e.sendAreYouThere()
		case GA:
			e.recvdGA = true // the flush happens back in the read loop
		}
		// NOP, DM, BRK, IP, AO, EC, EL are ignored

	case 3:
		cmd, option := command[1], command[2]
		if e.debug {
			log.Printf("telnet: processing command %s %s", commandName(cmd), optionName(option))
		}

		switch cmd {
		case WILL:
			// peer wants to enable an option on its side
			e.heAnnouncedState[option] = true
			if !e.hisOptionState[option] {
				// unrequested reaffirmation is a protocol error; tolerate it
				if !e.myOptionState[option] {
					if supportedHisOption(option) {
						e.SendTelnetOption(DO, option)
						e.hisOptionState[option] = true
						if option == OptEcho {
							e.hooks.ReceiveEchoMode(false)
						}
					} else {
						e.SendTelnetOption(DONT, option)
						e.hisOptionState[option] = false
					}
				} else if option == OptTerminalType {
					// both sides announced TERMINAL-TYPE; solicit theirs
					e.sendTerminalTypeRequest()
				}
			} else if e.debug {
				log.Printf("telnet: his option %s was already enabled", optionName(option))
			}

		case WONT:
			// peer refuses or disables an option
			if !e.myOptionState[option] {
				// send DONT if needed (see RFC 854)
				if e.hisOptionState[option] || !e.heAnnouncedState[option] {
					e.SendTelnetOption(DONT, option)
					e.hisOptionState[option] = false
					if option == OptEcho {
						e.hooks.ReceiveEchoMode(true)
					}
				}
			}
			e.heAnnouncedState[option] = true

		case DO:
			// peer wants us to enable an option
			if option == OptTimingMark {
				// one-shot, no state is kept
				e.SendTelnetOption(WILL, option)
			} else if !e.myOptionState[option] {
				if supportedMyOption(option) {
					e.SendTelnetOption(WILL, option)
					e.myOptionState[option] = true
					e.announcedState[option] = true
				} else {
					e.SendTelnetOption(WONT, option)
					e.myOptionState[option] = false
					e.announcedState[option] = true
				}
			} else if e.debug {
				log.Printf("telnet: my option %s was already enabled", optionName(option))
			}

			switch {
			case e.myOptionState[OptNAWS] && option == OptNAWS:
				e.SendWindowSizeChanged(e.width, e.height)
			case e.myOptionState[OptCharset] && option == OptCharset:
				e.sendCharsetRequest(textcodec.SupportedEncodings())
			case e.myOptionState[OptGMCP] && option == OptGMCP:
				e.hooks.OnGmcpEnabled()
			}

		case DONT:
			// only respond if the value changed or the option has not been
			// announced yet
			if e.myOptionState[option] || !e.announcedState[option] {
				e.SendTelnetOption(WONT, option)
				e.announcedState[option] = true
			}
			e.myOptionState[option] = false
		}

	default:
		// a lone IAC or an overlong buffer; nothing to do
	}
}
