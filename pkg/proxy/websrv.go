package proxy

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crystal-mush/mudlink/pkg/events"
)

// WebServer exposes the metrics endpoint and a WebSocket bridge that streams
// decoded session events to browser clients.
type WebServer struct {
	bus      *events.Bus
	httpSrv  *http.Server
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// NewWebServer creates a web server bound to the given bus and metrics.
func NewWebServer(addr string, bus *events.Bus, metrics *Metrics) *WebServer {
	ws := &WebServer{
		bus: bus,
		mux: http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	ws.mux.Handle("GET /metrics", metrics.Handler())
	ws.mux.HandleFunc("GET /ws", ws.handleWebSocket)
	ws.httpSrv = &http.Server{Addr: addr, Handler: ws.mux}
	return ws
}

// Start serves until Shutdown.
func (ws *WebServer) Start() error {
	log.Printf("web: listening on %s", ws.httpSrv.Addr)
	err := ws.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.httpSrv.Shutdown(ctx)
}

func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: upgrade failed: %v", err)
		return
	}

	client := newWSClient(conn)
	ws.bus.Subscribe(client)
	defer ws.bus.Unsubscribe(client)

	log.Printf("web: client connected from %s", conn.RemoteAddr())
	client.writeLoop()
	log.Printf("web: client disconnected from %s", conn.RemoteAddr())
}

// wsClient adapts one websocket connection to an events.Subscriber. Events
// are buffered on a channel so a slow browser cannot stall the session; a
// full buffer drops the client.
type wsClient struct {
	conn   *websocket.Conn
	queue  chan events.Event
	mu     sync.Mutex
	closed bool
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn:  conn,
		queue: make(chan events.Event, 256),
	}
}

// Receive implements events.Subscriber.
func (c *wsClient) Receive(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.queue <- ev:
	default:
		log.Printf("web: client %s too slow, dropping", c.conn.RemoteAddr())
		c.closed = true
		close(c.queue)
	}
}

// Closed implements events.Subscriber.
func (c *wsClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

// writeLoop ships queued events as JSON until the client goes away.
func (c *wsClient) writeLoop() {
	defer c.conn.Close()
	for ev := range c.queue {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			c.close()
			return
		}
	}
}
