// Package proxy runs a client session against a MUD server: it owns the
// connection, feeds inbound bytes through the telnet engine and fans the
// decoded stream out to the event bus.
package proxy

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/crystal-mush/mudlink/pkg/events"
	"github.com/crystal-mush/mudlink/pkg/gmcp"
	"github.com/crystal-mush/mudlink/pkg/telnet"
	"github.com/crystal-mush/mudlink/pkg/textcodec"
)

// writeTimeout bounds a single transport write.
const writeTimeout = 5 * time.Second

// gmcpModules is the module set announced in Core.Supports.Set once the
// server enables GMCP.
var gmcpModules = []gmcp.Module{
	{Name: "Char", Version: 1},
	{Name: "Comm", Version: 1},
	{Name: "Room", Version: 1},
}

// Session binds one server connection to one telnet engine. The read loop
// is the only goroutine that touches the engine; outbound submissions are
// serialized through the write mutex.
type Session struct {
	conn    net.Conn
	engine  *telnet.Engine
	bus     *events.Bus
	metrics *Metrics

	cfgMu sync.RWMutex
	cfg   *Config

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool

	bytesSent int64
	bytesRecv int64
}

// NewSession wraps a server connection. The session implements the engine's
// hook interface itself.
func NewSession(conn net.Conn, cfg *Config, bus *events.Bus, metrics *Metrics) *Session {
	s := &Session{
		conn:    conn,
		bus:     bus,
		metrics: metrics,
		cfg:     cfg,
	}
	s.engine = telnet.New(s, telnet.Options{
		TermType: cfg.TerminalType,
		Width:    cfg.WindowWidth,
		Height:   cfg.WindowHeight,
		Encoding: cfg.Encoding(),
		Debug:    cfg.Debug,
	})
	return s
}

// Engine exposes the underlying protocol engine.
func (s *Session) Engine() *telnet.Engine {
	return s.engine
}

// UpdateConfig swaps in a reloaded config. The encoding change takes effect
// on the next codec read unless CHARSET negotiation pinned one.
func (s *Session) UpdateConfig(cfg *Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

// Run reads from the connection until it closes, driving the engine. The
// returned error is nil on a clean EOF.
func (s *Session) Run() error {
	defer s.Close()

	buf := make([]byte, 4096)
	wasCompressed := false
	var lastStats telnet.Stats
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.bytesRecv += int64(n)
			s.metrics.bytesReceived.Add(float64(n))
			if rerr := s.engine.OnRead(buf[:n]); rerr != nil {
				// compression failure or stream end; the engine already
				// reverted to plain mode
				log.Printf("proxy: %v", rerr)
			}
			stats := s.engine.Stats()
			s.metrics.commandsProcessed.Add(counterDelta(stats.CommandsProcessed, lastStats.CommandsProcessed))
			s.metrics.subnegotiations.Add(counterDelta(stats.SubnegotiationsProcessed, lastStats.SubnegotiationsProcessed))
			s.metrics.inflatedBytes.Add(counterDelta(stats.InflatedBytes, lastStats.InflatedBytes))
			lastStats = stats
			if active := s.engine.CompressionActive(); active != wasCompressed {
				wasCompressed = active
				if active {
					s.metrics.compressionActive.Set(1)
				} else {
					s.metrics.compressionActive.Set(0)
				}
				s.bus.Emit(events.Event{Kind: events.KindCompression, CompressionOn: active})
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// counterDelta returns the counter increment since the last observation,
// restarting from the new base if the engine was reset underneath us.
func counterDelta(cur, last int64) float64 {
	if cur < last {
		return float64(cur)
	}
	return float64(cur - last)
}

// SubmitLine encodes one line of user input and sends it with a go-ahead.
func (s *Session) SubmitLine(line string) {
	s.engine.SubmitText(line+"\r\n", true)
}

// Close shuts the connection down.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.closed = true
		s.writeMu.Unlock()
		s.conn.Close()
	})
}

// SendToMapper implements telnet.Hooks: decoded clean bytes arrive here.
func (s *Session) SendToMapper(data []byte, goAhead bool) {
	text := s.engine.TextCodec().Decode(data)
	s.metrics.textSegments.Inc()
	s.metrics.textBytes.Add(float64(len(data)))
	s.bus.Emit(events.TextEvent(text, goAhead))
}

// SendRawData implements telnet.Hooks: finished wire bytes go out here.
func (s *Session) SendRawData(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	n, err := s.conn.Write(data)
	s.bytesSent += int64(n)
	s.metrics.bytesSent.Add(float64(n))
	if err != nil {
		log.Printf("proxy: write error: %v", err)
	}
}

// ReceiveEchoMode implements telnet.Hooks.
func (s *Session) ReceiveEchoMode(on bool) {
	s.bus.Emit(events.Event{Kind: events.KindEchoMode, EchoOn: on})
}

// ReceiveTerminalType implements telnet.Hooks.
func (s *Session) ReceiveTerminalType(ttype []byte) {
	s.bus.Emit(events.Event{Kind: events.KindTerminalType, TerminalType: string(ttype)})
}

// ReceiveWindowSize implements telnet.Hooks.
func (s *Session) ReceiveWindowSize(width, height uint16) {
	s.bus.Emit(events.Event{Kind: events.KindWindowSize, Width: width, Height: height})
}

// ReceiveGmcpMessage implements telnet.Hooks.
func (s *Session) ReceiveGmcpMessage(msg gmcp.Message) {
	s.metrics.gmcpMessages.Inc()
	s.bus.Emit(events.GmcpEvent(msg))
}

// OnGmcpEnabled implements telnet.Hooks: greet the server and announce the
// supported modules.
func (s *Session) OnGmcpEnabled() {
	s.engine.SendGmcpMessage(gmcp.Hello("mudlink", Version))
	s.engine.SendGmcpMessage(gmcp.SupportsSet(gmcpModules))
	for _, m := range gmcpModules {
		if err := s.engine.ReceiveGmcpModule(m, true); err != nil {
			log.Printf("proxy: gmcp module %s: %v", m, err)
		}
	}
}

// CharacterEncoding implements telnet.Hooks: the configured encoding backs
// the codec when CHARSET was not negotiated.
func (s *Session) CharacterEncoding() textcodec.Encoding {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Encoding()
}
