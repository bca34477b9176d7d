package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/crystal-mush/mudlink/pkg/events"
	"github.com/crystal-mush/mudlink/pkg/proxy"
	"github.com/crystal-mush/mudlink/pkg/transcript"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("MUDLINK_CONF", ""), "Path to YAML config file (env: MUDLINK_CONF)")
	server := flag.String("server", envDefault("MUDLINK_SERVER", ""), "MUD server address host:port, overrides config (env: MUDLINK_SERVER)")
	webAddr := flag.String("web", envDefault("MUDLINK_WEB", ""), "Metrics/WebSocket listen address, overrides config (env: MUDLINK_WEB)")
	debug := flag.Bool("debug", os.Getenv("MUDLINK_DEBUG") == "true", "Enable protocol trace logging (env: MUDLINK_DEBUG)")
	flag.Parse()

	log.Printf("mudlink %s", proxy.Version)

	cfg := proxy.DefaultConfig()
	if *confFile != "" {
		loaded, err := proxy.LoadConfig(*confFile)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}
	if *server != "" {
		cfg.Server = *server
	}
	if *webAddr != "" {
		cfg.WebAddr = *webAddr
	}
	if *debug {
		cfg.Debug = true
	}
	if cfg.Server == "" {
		fmt.Fprintln(os.Stderr, "Usage: mudlink -server <host:port> [-conf <config.yaml>] [-web <addr>]")
		os.Exit(2)
	}

	bus := events.NewBus()
	metrics := proxy.NewMetrics()

	if cfg.TranscriptPath != "" {
		store, err := transcript.Open(cfg.TranscriptPath)
		if err != nil {
			log.Fatalf("transcript: %v", err)
		}
		defer store.Close()
		session := time.Now().Format("2006-01-02T15:04:05") + " " + cfg.Server
		writer := transcript.NewWriter(store, session, bus)
		defer writer.Close()
	}

	if cfg.WebAddr != "" {
		websrv := proxy.NewWebServer(cfg.WebAddr, bus, metrics)
		go func() {
			if err := websrv.Start(); err != nil {
				log.Printf("web: %v", err)
			}
		}()
	}

	conn, err := net.Dial("tcp", cfg.Server)
	if err != nil {
		log.Fatalf("connect to %s: %v", cfg.Server, err)
	}
	log.Printf("connected to %s", cfg.Server)

	session := proxy.NewSession(conn, cfg, bus, metrics)

	if *confFile != "" {
		stop, err := proxy.WatchConfig(*confFile, session.UpdateConfig)
		if err != nil {
			log.Printf("config: watch disabled: %v", err)
		} else {
			defer stop()
		}
	}

	console := newConsole()
	bus.Subscribe(console)

	// stdin → server
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			session.SubmitLine(scanner.Text())
		}
		session.Close()
	}()

	if err := session.Run(); err != nil {
		log.Fatalf("session: %v", err)
	}
	log.Printf("connection closed")
}

// console prints decoded text events to stdout.
type console struct {
	mu     sync.Mutex
	closed bool
}

func newConsole() *console {
	return &console{}
}

// Receive implements events.Subscriber.
func (c *console) Receive(ev events.Event) {
	switch ev.Kind {
	case events.KindText:
		os.Stdout.WriteString(ev.Text)
	case events.KindEchoMode:
		if !ev.EchoOn {
			os.Stdout.WriteString("\n[server echo: input hidden]\n")
		}
	case events.KindCompression:
		if ev.CompressionOn {
			log.Printf("MCCPv2 compression enabled")
		} else {
			log.Printf("MCCPv2 compression ended")
		}
	}
}

// Closed implements events.Subscriber.
func (c *console) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
