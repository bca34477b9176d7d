package telnet

import (
	"bytes"
	"testing"

	"github.com/crystal-mush/mudlink/pkg/gmcp"
	"github.com/crystal-mush/mudlink/pkg/textcodec"
)

// flush records one SendToMapper delivery.
type flush struct {
	data    []byte
	goAhead bool
}

// hookRecorder captures every engine callback for assertions.
type hookRecorder struct {
	flushes     []flush
	wire        bytes.Buffer
	echoModes   []bool
	termTypes   []string
	windows     [][2]uint16
	gmcps       []gmcp.Message
	gmcpEnabled int
	encoding    textcodec.Encoding
}

func (h *hookRecorder) SendToMapper(data []byte, goAhead bool) {
	h.flushes = append(h.flushes, flush{data: append([]byte(nil), data...), goAhead: goAhead})
}

func (h *hookRecorder) SendRawData(data []byte) {
	h.wire.Write(data)
}

func (h *hookRecorder) ReceiveEchoMode(on bool) {
	h.echoModes = append(h.echoModes, on)
}

func (h *hookRecorder) ReceiveTerminalType(ttype []byte) {
	h.termTypes = append(h.termTypes, string(ttype))
}

func (h *hookRecorder) ReceiveWindowSize(width, height uint16) {
	h.windows = append(h.windows, [2]uint16{width, height})
}

func (h *hookRecorder) ReceiveGmcpMessage(msg gmcp.Message) {
	h.gmcps = append(h.gmcps, msg)
}

func (h *hookRecorder) OnGmcpEnabled() {
	h.gmcpEnabled++
}

func (h *hookRecorder) CharacterEncoding() textcodec.Encoding {
	return h.encoding
}

// cleanText concatenates all flushed segments.
func (h *hookRecorder) cleanText() []byte {
	var all []byte
	for _, f := range h.flushes {
		all = append(all, f.data...)
	}
	return all
}

func newTestEngine(t *testing.T) (*Engine, *hookRecorder) {
	t.Helper()
	h := &hookRecorder{}
	e := New(h, Options{TermType: "test-term", Width: 80, Height: 24})
	return e, h
}

func TestPlainTextPassesThrough(t *testing.T) {
	e, h := newTestEngine(t)
	e.OnRead([]byte("hello, world\r\n"))

	if len(h.flushes) != 1 {
		t.Fatalf("expected 1 flush, got %d", len(h.flushes))
	}
	if got := string(h.flushes[0].data); got != "hello, world\r\n" {
		t.Errorf("clean data = %q", got)
	}
	if h.flushes[0].goAhead {
		t.Error("flush should not be marked go-ahead")
	}
	if h.wire.Len() != 0 {
		t.Errorf("unexpected wire output: % x", h.wire.Bytes())
	}
}

func TestDoubledIACBecomesLiteral(t *testing.T) {
	e, h := newTestEngine(t)
	e.OnRead([]byte{'a', IAC, IAC, 'b'})

	if got := h.cleanText(); !bytes.Equal(got, []byte{'a', 0xFF, 'b'}) {
		t.Errorf("clean data = % x, want 61 ff 62", got)
	}
	if h.wire.Len() != 0 {
		t.Errorf("unexpected wire output: % x", h.wire.Bytes())
	}
}

func TestGoAheadSegmentsFlushes(t *testing.T) {
	e, h := newTestEngine(t)
	input := append([]byte("hi"), IAC, GA)
	input = append(input, []byte("bye")...)
	e.OnRead(input)

	if len(h.flushes) != 2 {
		t.Fatalf("expected 2 flushes, got %d", len(h.flushes))
	}
	if string(h.flushes[0].data) != "hi" || !h.flushes[0].goAhead {
		t.Errorf("first flush = %q goAhead=%v", h.flushes[0].data, h.flushes[0].goAhead)
	}
	if string(h.flushes[1].data) != "bye" || h.flushes[1].goAhead {
		t.Errorf("second flush = %q goAhead=%v", h.flushes[1].data, h.flushes[1].goAhead)
	}
}

func TestGoAheadIsPureSegmentation(t *testing.T) {
	// Concatenated flushes must equal the stream with GA bytes stripped.
	e, h := newTestEngine(t)
	input := []byte{'a', IAC, GA, 'b', 'c', IAC, GA, IAC, GA, 'd'}
	e.OnRead(input)

	if got := h.cleanText(); !bytes.Equal(got, []byte("abcd")) {
		t.Errorf("clean data = %q, want abcd", got)
	}
}

func TestFragmentedInputByteByByte(t *testing.T) {
	// The FSM must survive arbitrary fragmentation of a command sequence.
	e, h := newTestEngine(t)
	stream := []byte{'x', IAC, WILL, OptNAWS, 'y'}
	for _, b := range stream {
		e.OnRead([]byte{b})
	}

	if got := h.cleanText(); !bytes.Equal(got, []byte("xy")) {
		t.Errorf("clean data = %q, want xy", got)
	}
	if got := h.wire.Bytes(); !bytes.Equal(got, []byte{IAC, DO, OptNAWS}) {
		t.Errorf("wire = % x, want IAC DO NAWS", got)
	}
}

func TestStraySEIsIgnored(t *testing.T) {
	e, h := newTestEngine(t)
	e.OnRead([]byte{'a', IAC, SE, 'b'})

	if got := h.cleanText(); !bytes.Equal(got, []byte("ab")) {
		t.Errorf("clean data = %q, want ab", got)
	}
	if h.wire.Len() != 0 {
		t.Errorf("unexpected wire output: % x", h.wire.Bytes())
	}
}

func TestNestedSBDropsSubnegotiation(t *testing.T) {
	e, h := newTestEngine(t)
	e.OnRead([]byte{IAC, WILL, OptGMCP}) // enable GMCP so a payload would dispatch
	h.wire.Reset()

	e.OnRead([]byte{IAC, SB, OptGMCP, 'x', IAC, SB, 'a', 'b'})
	if len(h.gmcps) != 0 {
		t.Errorf("nested SB should drop the subnegotiation, got %v", h.gmcps)
	}
	// parser must be back in normal state: 'a' and 'b' are clean data
	if got := h.cleanText(); !bytes.Equal(got, []byte("ab")) {
		t.Errorf("clean data = %q, want ab", got)
	}
}

func TestEmbeddedCommandInsideSubnegotiation(t *testing.T) {
	// RFC 855: IAC GA inside IAC SB is still a command; the subnegotiation
	// continues afterwards.
	e, h := newTestEngine(t)
	e.OnRead([]byte{IAC, DO, OptGMCP})
	h.wire.Reset()

	var input []byte
	input = append(input, IAC, SB, OptGMCP)
	input = append(input, []byte("Core.Ping")...)
	input = append(input, IAC, GA)
	input = append(input, IAC, SE)
	e.OnRead(input)

	if len(h.gmcps) != 1 || h.gmcps[0].Name != "Core.Ping" {
		t.Fatalf("expected Core.Ping despite embedded GA, got %v", h.gmcps)
	}
	// the GA inside the subnegotiation is still a go-ahead signal; the
	// (empty) clean buffer is flushed with the marker
	if len(h.flushes) != 1 {
		t.Fatalf("expected 1 flush, got %d", len(h.flushes))
	}
	if len(h.flushes[0].data) != 0 || !h.flushes[0].goAhead {
		t.Errorf("flush = %+v, want empty go-ahead flush", h.flushes[0])
	}
}

func TestSubnegotiationIACTransparency(t *testing.T) {
	// A doubled IAC inside a subnegotiation payload arrives as one 0xFF.
	e, h := newTestEngine(t)
	e.OnRead([]byte{IAC, WILL, OptNAWS})
	h.windows = nil

	// width 0xFF50, height 0x0018; the 0xFF parameter byte is doubled
	e.OnRead([]byte{IAC, SB, OptNAWS, 0xFF, 0xFF, 0x50, 0x00, 0x18, IAC, SE})
	if len(h.windows) != 1 {
		t.Fatalf("expected one window size, got %d", len(h.windows))
	}
	if h.windows[0] != [2]uint16{0xFF50, 0x0018} {
		t.Errorf("window = %v, want [65360 24]", h.windows[0])
	}
}

func TestSubmitPayloadEscapesIAC(t *testing.T) {
	e, h := newTestEngine(t)
	e.SubmitPayload([]byte{'a', 0xFF, 'b'}, false)

	if got := h.wire.Bytes(); !bytes.Equal(got, []byte{'a', 0xFF, 0xFF, 'b'}) {
		t.Errorf("wire = % x, want 61 ff ff 62", got)
	}
}

func TestSubmitPayloadGoAhead(t *testing.T) {
	e, h := newTestEngine(t)
	e.SubmitPayload([]byte("look"), true)
	if got := h.wire.Bytes(); !bytes.Equal(got, append([]byte("look"), IAC, GA)) {
		t.Errorf("wire = % x, want look IAC GA", got)
	}

	// once the peer suppresses go-aheads the trailer is dropped
	h.wire.Reset()
	e.OnRead([]byte{IAC, WILL, OptSuppressGA})
	h.wire.Reset()
	e.SubmitPayload([]byte("look"), true)
	if got := h.wire.Bytes(); !bytes.Equal(got, []byte("look")) {
		t.Errorf("wire = % x, want bare payload", got)
	}
}

func TestDoubleIACRoundTrip(t *testing.T) {
	// Any payload escaped by the framer and fed back through the FSM comes
	// out identical, with no protocol events.
	payloads := [][]byte{
		{0xFF},
		{0xFF, 0xFF},
		[]byte("plain"),
		{'a', 0xFF, 'b', 0xFF, 0xFF, 'c'},
		{0x00, 0xFE, 0xFF, 0x01},
	}
	for _, payload := range payloads {
		sender, senderHooks := newTestEngine(t)
		sender.SubmitPayload(payload, false)

		receiver, receiverHooks := newTestEngine(t)
		receiver.OnRead(senderHooks.wire.Bytes())

		if got := receiverHooks.cleanText(); !bytes.Equal(got, payload) {
			t.Errorf("round trip of % x gave % x", payload, got)
		}
		if receiverHooks.wire.Len() != 0 {
			t.Errorf("round trip of % x emitted protocol replies % x",
				payload, receiverHooks.wire.Bytes())
		}
	}
}

func TestResetClearsState(t *testing.T) {
	e, _ := newTestEngine(t)
	e.OnRead([]byte{IAC, WILL, OptSuppressGA, IAC, DO, OptNAWS})
	if !e.HisOptionEnabled(OptSuppressGA) || !e.MyOptionEnabled(OptNAWS) {
		t.Fatal("options should be enabled before reset")
	}

	e.Reset()
	if e.HisOptionEnabled(OptSuppressGA) || e.MyOptionEnabled(OptNAWS) {
		t.Error("options should be cleared after reset")
	}
	if e.SentBytes() != 0 {
		t.Errorf("sentBytes = %d after reset", e.SentBytes())
	}

	// reset must be idempotent
	e.Reset()
	if e.HisOptionEnabled(OptSuppressGA) || e.MyOptionEnabled(OptNAWS) || e.SentBytes() != 0 {
		t.Error("second reset changed state")
	}

	// a half-parsed command must not leak across a reset
	e2, h2 := newTestEngine(t)
	e2.OnRead([]byte{IAC})
	e2.Reset()
	e2.OnRead([]byte("ok"))
	if got := h2.cleanText(); !bytes.Equal(got, []byte("ok")) {
		t.Errorf("clean data after reset = %q, want ok", got)
	}
}

func TestSentBytesCounter(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SubmitPayload([]byte("12345"), false)
	if e.SentBytes() != 5 {
		t.Errorf("sentBytes = %d, want 5", e.SentBytes())
	}
	e.SendTelnetOption(WILL, OptNAWS)
	if e.SentBytes() != 8 {
		t.Errorf("sentBytes = %d, want 8", e.SentBytes())
	}
}

func TestStatsCountProtocolWork(t *testing.T) {
	e, _ := newTestEngine(t)
	e.OnRead([]byte{IAC, WILL, OptNAWS}) // one command
	e.OnRead([]byte{IAC, AYT})           // another command
	e.OnRead(sb(OptNAWS, 0x00, 0x50, 0x00, 0x18))

	stats := e.Stats()
	if stats.CommandsProcessed != 2 {
		t.Errorf("CommandsProcessed = %d, want 2", stats.CommandsProcessed)
	}
	if stats.SubnegotiationsProcessed != 1 {
		t.Errorf("SubnegotiationsProcessed = %d, want 1", stats.SubnegotiationsProcessed)
	}
	if stats.InflatedBytes != 0 {
		t.Errorf("InflatedBytes = %d, want 0", stats.InflatedBytes)
	}

	e.Reset()
	if e.Stats() != (Stats{}) {
		t.Errorf("stats after reset = %+v", e.Stats())
	}
}

func TestReceiveGmcpModule(t *testing.T) {
	e, _ := newTestEngine(t)
	e.OnRead([]byte{IAC, DO, OptGMCP})

	mod := gmcp.Module{Name: "Char.Vitals", Version: 2}
	if err := e.ReceiveGmcpModule(mod, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !e.IsGmcpModuleEnabled(gmcp.ModuleChar) {
		t.Error("Char should be enabled")
	}
	if e.IsGmcpModuleEnabled(gmcp.ModuleRoom) {
		t.Error("Room should not be enabled")
	}

	if err := e.ReceiveGmcpModule(mod, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if e.IsGmcpModuleEnabled(gmcp.ModuleChar) {
		t.Error("Char should be disabled after removal")
	}
}

func TestReceiveGmcpModuleMissingVersion(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.ReceiveGmcpModule(gmcp.Module{Name: "Char"}, true)
	if err == nil || err.Error() != "missing version" {
		t.Fatalf("err = %v, want missing version", err)
	}
	if e.IsGmcpModuleEnabled(gmcp.ModuleChar) {
		t.Error("rejected module must not be enabled")
	}
}

func TestGmcpModulesRequireNegotiatedGmcp(t *testing.T) {
	e, _ := newTestEngine(t)
	e.ReceiveGmcpModule(gmcp.Module{Name: "Room", Version: 1}, true)
	if e.IsGmcpModuleEnabled(gmcp.ModuleRoom) {
		t.Error("modules must not report enabled before GMCP is negotiated")
	}
}

func TestResetDropsGmcpModules(t *testing.T) {
	e, _ := newTestEngine(t)
	e.OnRead([]byte{IAC, DO, OptGMCP})
	e.ReceiveGmcpModule(gmcp.Module{Name: "Group", Version: 1}, true)

	e.Reset()
	e.OnRead([]byte{IAC, DO, OptGMCP})
	if e.IsGmcpModuleEnabled(gmcp.ModuleGroup) {
		t.Error("reset must drop GMCP modules")
	}
}

func TestTextCodecFollowsConfigUntilNegotiated(t *testing.T) {
	e, h := newTestEngine(t)
	h.encoding = textcodec.Latin1
	if got := e.TextCodec().Encoding(); got != textcodec.Latin1 {
		t.Errorf("codec = %v, want Latin1 from config", got)
	}

	// once CHARSET is negotiated the config no longer applies
	e.OnRead([]byte{IAC, WILL, OptCharset})
	e.OnRead([]byte{IAC, SB, OptCharset, SubRequest, ';', 'U', 'T', 'F', '-', '8', IAC, SE})
	h.encoding = textcodec.ASCII
	if got := e.TextCodec().Encoding(); got != textcodec.UTF8 {
		t.Errorf("codec = %v, want negotiated UTF8", got)
	}
}
