package proxy

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/crystal-mush/mudlink/pkg/textcodec"
)

// Config holds client configuration.
type Config struct {
	// Server is the MUD server address, host:port.
	Server string `yaml:"server"`

	// TerminalType is reported in TERMINAL-TYPE IS replies.
	TerminalType string `yaml:"terminal_type"`

	// CharacterEncoding is used when CHARSET is not negotiated:
	// UTF-8, ISO-8859-1 or US-ASCII.
	CharacterEncoding string `yaml:"character_encoding"`

	// Initial window size pushed over NAWS.
	WindowWidth  int `yaml:"window_width"`
	WindowHeight int `yaml:"window_height"`

	// WebAddr serves the metrics endpoint and the WebSocket bridge when
	// non-empty, e.g. "127.0.0.1:8080".
	WebAddr string `yaml:"web_addr"`

	// TranscriptPath enables session recording to a bbolt file.
	TranscriptPath string `yaml:"transcript_path"`

	// Debug enables protocol trace logging.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		TerminalType:      "mudlink",
		CharacterEncoding: "UTF-8",
		WindowWidth:       80,
		WindowHeight:      24,
	}
}

// LoadConfig reads a YAML config file, applying defaults for unset fields.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for values the client cannot run with.
func (c *Config) Validate() error {
	if _, ok := textcodec.EncodingForName(c.CharacterEncoding); !ok {
		return fmt.Errorf("unsupported character_encoding %q", c.CharacterEncoding)
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return fmt.Errorf("bad window size %dx%d", c.WindowWidth, c.WindowHeight)
	}
	return nil
}

// Encoding resolves the configured character encoding.
func (c *Config) Encoding() textcodec.Encoding {
	e, _ := textcodec.EncodingForName(c.CharacterEncoding)
	return e
}

// WatchConfig reloads the config file on change and calls onChange with each
// valid new config. Returns a stop function.
func WatchConfig(path string, onChange func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// watch the directory: editors replace the file, which drops a watch
	// on the file itself
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					log.Printf("config: reload failed: %v", err)
					continue
				}
				log.Printf("config: reloaded %s", path)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("config: watch error: %v", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
