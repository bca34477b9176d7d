package telnet

import (
	"bytes"
	"log"

	"github.com/crystal-mush/mudlink/pkg/gmcp"
)

// formatter builds outbound telnet sequences with IAC escaping applied to
// option parameters (RFC 855: a 255 parameter byte is doubled).
type formatter struct {
	buf []byte
}

func (f *formatter) addRaw(b byte) {
	f.buf = append(f.buf, b)
}

func (f *formatter) addEscaped(b byte) {
	f.buf = append(f.buf, b)
	if b == IAC {
		f.buf = append(f.buf, b)
	}
}

func (f *formatter) addTwoByteEscaped(n uint16) {
	// network order is big-endian
	f.addEscaped(byte(n >> 8))
	f.addEscaped(byte(n))
}

func (f *formatter) addClampedTwoByteEscaped(n int) {
	f.addTwoByteEscaped(uint16(min(max(n, 0), 65535)))
}

func (f *formatter) addEscapedBytes(s []byte) {
	for _, b := range s {
		f.addEscaped(b)
	}
}

func (f *formatter) addCommand(cmd byte) {
	f.addRaw(IAC)
	f.addRaw(cmd)
}

func (f *formatter) addSubnegBegin(opt byte) {
	f.addCommand(SB)
	f.addRaw(opt)
}

func (f *formatter) addSubnegEnd() {
	f.addCommand(SE)
}

// sendRaw hands finished wire bytes to the transport and keeps the counter.
func (e *Engine) sendRaw(data []byte) {
	e.sentBytes += int64(len(data))
	e.hooks.SendRawData(data)
}

// SubmitPayload sends application data over the connection, doubling IAC
// bytes. With goAhead set an IAC GA trailer is appended unless the peer
// suppresses go-aheads.
func (e *Engine) SubmitPayload(data []byte, goAhead bool) {
	var out []byte
	if bytes.IndexByte(data, IAC) >= 0 {
		var f formatter
		f.buf = make([]byte, 0, len(data)+8)
		f.addEscapedBytes(data)
		out = f.buf
	} else {
		out = append(out, data...)
	}

	if goAhead && !e.hisOptionState[OptSuppressGA] {
		out = append(out, IAC, GA)
	}

	e.sendRaw(out)
}

// SendTelnetOption emits IAC <type> <option>.
func (e *Engine) SendTelnetOption(cmd, opt byte) {
	if e.debug {
		log.Printf("telnet: sending command %s %s", commandName(cmd), optionName(opt))
	}
	e.sendRaw([]byte{IAC, cmd, opt})
}

// RequestTelnetOption marks the option as locally enabled and announced,
// then emits the command. Used by the host to open negotiation.
func (e *Engine) RequestTelnetOption(cmd, opt byte) {
	e.myOptionState[opt] = true
	e.announcedState[opt] = true
	e.SendTelnetOption(cmd, opt)
}

// SendWindowSizeChanged records the new window size and pushes a NAWS
// subnegotiation: IAC SB NAWS WIDTH[1] WIDTH[0] HEIGHT[1] HEIGHT[0] IAC SE.
func (e *Engine) SendWindowSizeChanged(width, height int) {
	if e.debug {
		log.Printf("telnet: sending NAWS %dx%d", width, height)
	}
	e.width = width
	e.height = height

	var f formatter
	f.addSubnegBegin(OptNAWS)
	f.addClampedTwoByteEscaped(width)
	f.addClampedTwoByteEscaped(height)
	f.addSubnegEnd()
	e.sendRaw(f.buf)
}

// SendGmcpMessage pushes a GMCP message to the peer.
func (e *Engine) SendGmcpMessage(msg gmcp.Message) {
	payload := msg.Encode()
	if e.debug {
		log.Printf("telnet: sending GMCP: %s", payload)
	}
	var f formatter
	f.addSubnegBegin(OptGMCP)
	f.addEscapedBytes(payload)
	f.addSubnegEnd()
	e.sendRaw(f.buf)
}

func (e *Engine) sendTerminalType(ttype []byte) {
	if e.debug {
		log.Printf("telnet: sending terminal type %q", ttype)
	}
	var f formatter
	f.addSubnegBegin(OptTerminalType)
	f.addEscaped(SubIS) // "IS" is zero and never actually escaped
	f.addEscapedBytes(ttype)
	f.addSubnegEnd()
	e.sendRaw(f.buf)
}

func (e *Engine) sendTerminalTypeRequest() {
	var f formatter
	f.addSubnegBegin(OptTerminalType)
	f.addEscaped(SubSend)
	f.addSubnegEnd()
	e.sendRaw(f.buf)
}

func (e *Engine) sendCharsetRequest(characterSets []string) {
	if e.debug {
		log.Printf("telnet: requesting charsets %v", characterSets)
	}
	const delimiter = ";"
	var f formatter
	f.addSubnegBegin(OptCharset)
	f.addRaw(SubRequest)
	for _, cs := range characterSets {
		f.addEscapedBytes([]byte(delimiter))
		f.addEscapedBytes([]byte(cs))
	}
	f.addSubnegEnd()
	e.sendRaw(f.buf)
}

func (e *Engine) sendCharsetAccepted(characterSet []byte) {
	if e.debug {
		log.Printf("telnet: accepted charset %q", characterSet)
	}
	var f formatter
	f.addSubnegBegin(OptCharset)
	f.addRaw(SubAccepted)
	f.addEscapedBytes(characterSet)
	f.addSubnegEnd()
	e.sendRaw(f.buf)
}

func (e *Engine) sendCharsetRejected() {
	var f formatter
	f.addSubnegBegin(OptCharset)
	f.addRaw(SubRejected)
	f.addSubnegEnd()
	e.sendRaw(f.buf)
}

// sendOptionStatus answers STATUS SEND with IAC SB STATUS IS, a WILL for
// every locally enabled option and a DO for every remotely enabled one.
func (e *Engine) sendOptionStatus() {
	buf := []byte{IAC, SB, OptStatus, SubIS}
	for i := 0; i < NumOpts; i++ {
		if e.myOptionState[i] {
			buf = append(buf, WILL, byte(i))
		}
		if e.hisOptionState[i] {
			buf = append(buf, DO, byte(i))
		}
	}
	buf = append(buf, IAC, SE)
	e.sendRaw(buf)
}

func (e *Engine) sendAreYouThere() {
	// The reply will likely be swallowed by the server, but an impatient
	// server asked for it.
	e.sendRaw([]byte("I'm here! Please be more patient!\r\n"))
}

// SubmitText encodes a string with the active codec and submits it.
func (e *Engine) SubmitText(s string, goAhead bool) {
	e.SubmitPayload(e.TextCodec().Encode(s), goAhead)
}
