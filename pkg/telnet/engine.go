package telnet

import (
	"errors"
	"log"

	"github.com/crystal-mush/mudlink/pkg/gmcp"
	"github.com/crystal-mush/mudlink/pkg/mccp"
	"github.com/crystal-mush/mudlink/pkg/textcodec"
)

// Hooks is the capability record the engine calls back into. Implementations
// may re-enter the engine from a hook only to submit outbound data
// (SubmitPayload and the other senders), never to feed inbound bytes.
type Hooks interface {
	// SendToMapper receives decoded clean bytes. goAhead marks a flush that
	// was triggered by IAC GA. The slice is only valid during the call.
	SendToMapper(data []byte, goAhead bool)
	// SendRawData writes bytes to the transport.
	SendRawData(data []byte)
	// ReceiveEchoMode reports whether the client should locally echo input.
	ReceiveEchoMode(on bool)
	// ReceiveTerminalType reports the peer's terminal type.
	ReceiveTerminalType(ttype []byte)
	// ReceiveWindowSize reports a NAWS update from the peer.
	ReceiveWindowSize(width, height uint16)
	// ReceiveGmcpMessage delivers a parsed inbound GMCP message.
	ReceiveGmcpMessage(msg gmcp.Message)
	// OnGmcpEnabled fires when the peer sends DO GMCP and GMCP is enabled
	// on our side.
	OnGmcpEnabled()
	// CharacterEncoding returns the configured encoding, consulted when
	// CHARSET was not negotiated.
	CharacterEncoding() textcodec.Encoding
}

// parseState is the byte FSM state.
type parseState int

const (
	stateNormal parseState = iota
	stateIAC
	stateCommand
	stateSubneg
	stateSubnegIAC
	stateSubnegCommand
)

// gmcpState tracks which GMCP modules the host asked the peer to enable.
type gmcpState struct {
	// supported holds the active version per recognized module type,
	// DefaultModuleVersion when the type is not enabled.
	supported map[gmcp.ModuleType]int
	// modules is every module added via ReceiveGmcpModule, keyed by name.
	modules map[string]gmcp.Module
}

// Options configures a new Engine.
type Options struct {
	// TermType is the terminal type reported to TERMINAL-TYPE SEND.
	TermType string
	// Width and Height seed the window size sent on DO NAWS.
	Width, Height int
	// Encoding is the initial text encoding.
	Encoding textcodec.Encoding
	// NewInflater overrides the MCCPv2 inflater factory; nil uses the real
	// zlib decoder.
	NewInflater func() mccp.Inflater
	// Debug enables protocol trace logging.
	Debug bool
}

// Engine is the telnet protocol engine between a raw byte transport and a
// line/GMCP consumer. One goroutine owns it: all inbound bytes must arrive
// through OnRead from the same reader task.
type Engine struct {
	hooks Hooks

	myOptionState    [NumOpts]bool // options enabled on our side
	hisOptionState   [NumOpts]bool // options enabled on the peer's side
	announcedState   [NumOpts]bool // we sent at least one WILL/WONT
	heAnnouncedState [NumOpts]bool // peer sent at least one WILL/WONT

	state         parseState
	commandBuffer []byte
	subnegBuffer  []byte
	recvdGA       bool

	defaultTermType string
	termType        []byte
	codec           *textcodec.Codec

	gmcp gmcpState

	newInflater   func() mccp.Inflater
	inflater      mccp.Inflater
	inflateTelnet bool
	recvdCompress bool

	width, height int
	sentBytes     int64
	stats         Stats
	debug         bool
}

// Stats counts protocol work done since the last Reset.
type Stats struct {
	CommandsProcessed        int64 // complete IAC command sequences
	SubnegotiationsProcessed int64 // complete SB payloads dispatched
	InflatedBytes            int64 // bytes produced by MCCPv2 inflation
}

// New creates an engine bound to the given hooks.
func New(hooks Hooks, opts Options) *Engine {
	if hooks == nil {
		panic("telnet: nil hooks")
	}
	if opts.TermType == "" {
		opts.TermType = "unknown"
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Height <= 0 {
		opts.Height = 24
	}
	e := &Engine{
		hooks:           hooks,
		defaultTermType: opts.TermType,
		codec:           textcodec.NewCodec(opts.Encoding),
		newInflater:     opts.NewInflater,
		width:           opts.Width,
		height:          opts.Height,
		debug:           opts.Debug,
	}
	if e.newInflater == nil {
		e.newInflater = mccp.NewInflater
	}
	e.Reset()
	return e
}

// Reset returns the engine to its initial state: all option tables cleared,
// FSM in NORMAL, buffers empty, compression off, GMCP modules dropped.
func (e *Engine) Reset() {
	for i := range e.myOptionState {
		e.myOptionState[i] = false
		e.hisOptionState[i] = false
		e.announcedState[i] = false
		e.heAnnouncedState[i] = false
	}

	e.state = stateNormal
	e.commandBuffer = e.commandBuffer[:0]
	e.subnegBuffer = e.subnegBuffer[:0]
	e.recvdGA = false
	e.termType = []byte(e.defaultTermType)
	e.sentBytes = 0
	e.stats = Stats{}
	e.resetGmcpModules()
	e.resetCompress()
}

func (e *Engine) resetGmcpModules() {
	if e.debug {
		log.Printf("telnet: clearing GMCP modules")
	}
	e.gmcp.supported = make(map[gmcp.ModuleType]int)
	for _, t := range gmcp.ModuleTypes() {
		e.gmcp.supported[t] = gmcp.DefaultModuleVersion
	}
	e.gmcp.modules = make(map[string]gmcp.Module)
}

func (e *Engine) resetCompress() {
	if e.inflater != nil {
		e.inflater.Close()
		e.inflater = nil
	}
	e.inflateTelnet = false
	e.recvdCompress = false
	e.hisOptionState[OptCompress2] = false
}

// ReceiveGmcpModule records a module the host wants tracked (enabled=true,
// from a Core.Supports.Set/Add) or dropped (enabled=false). Enabling a
// module without a version is rejected.
func (e *Engine) ReceiveGmcpModule(m gmcp.Module, enabled bool) error {
	if enabled {
		if !m.HasVersion() {
			return errors.New("missing version")
		}
		if e.debug {
			log.Printf("telnet: adding GMCP module %s", m)
		}
		e.gmcp.modules[m.Name] = m
		if m.IsSupported() {
			e.gmcp.supported[m.Type()] = m.Version
		}
		return nil
	}
	if e.debug {
		log.Printf("telnet: removing GMCP module %s", m)
	}
	delete(e.gmcp.modules, m.Name)
	if m.IsSupported() {
		e.gmcp.supported[m.Type()] = gmcp.DefaultModuleVersion
	}
	return nil
}

// IsGmcpModuleEnabled reports whether a module of the given type is active.
func (e *Engine) IsGmcpModuleEnabled(t gmcp.ModuleType) bool {
	if !e.myOptionState[OptGMCP] {
		return false
	}
	return e.gmcp.supported[t] != gmcp.DefaultModuleVersion
}

// TextCodec returns the active text codec. When CHARSET was not negotiated
// the codec follows the configured encoding.
func (e *Engine) TextCodec() *textcodec.Codec {
	if !e.hisOptionState[OptCharset] {
		if cfg := e.hooks.CharacterEncoding(); cfg != e.codec.Encoding() {
			e.codec.SetEncoding(cfg)
		}
	}
	return e.codec
}

// MyOptionEnabled reports whether we have the option enabled.
func (e *Engine) MyOptionEnabled(opt byte) bool {
	return e.myOptionState[opt]
}

// HisOptionEnabled reports whether the peer has the option enabled.
func (e *Engine) HisOptionEnabled(opt byte) bool {
	return e.hisOptionState[opt]
}

// CompressionActive reports whether an MCCPv2 inflate stream is running.
func (e *Engine) CompressionActive() bool {
	return e.inflateTelnet
}

// SentBytes returns the number of bytes written to the transport since the
// last Reset.
func (e *Engine) SentBytes() int64 {
	return e.sentBytes
}

// Stats returns the protocol counters accumulated since the last Reset.
func (e *Engine) Stats() Stats {
	return e.stats
}

// TerminalType returns the terminal type reported to the peer.
func (e *Engine) TerminalType() string {
	return string(e.termType)
}
