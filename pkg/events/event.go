package events

import (
	"encoding/json"

	"github.com/crystal-mush/mudlink/pkg/gmcp"
)

// Kind classifies decoded-stream events for transport-specific encoding.
type Kind int

const (
	KindText         Kind = iota // Decoded clean text segment
	KindEchoMode                 // Server toggled local echo
	KindWindowSize               // Peer reported a window size
	KindTerminalType             // Peer reported its terminal type
	KindGmcp                     // Inbound GMCP message
	KindCompression              // MCCPv2 stream started or ended
)

// String returns a human-readable name for the event kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindEchoMode:
		return "echo_mode"
	case KindWindowSize:
		return "window_size"
	case KindTerminalType:
		return "terminal_type"
	case KindGmcp:
		return "gmcp"
	case KindCompression:
		return "compression"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its string name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Event is a structured protocol event that flows from the session to its
// sinks. Sinks decide how to encode each event: the console uses Text, the
// WebSocket bridge ships the full structure as JSON.
type Event struct {
	Kind          Kind         `json:"kind"`
	Text          string       `json:"text,omitempty"`
	GoAhead       bool         `json:"go_ahead,omitempty"`
	EchoOn        bool         `json:"echo_on,omitempty"`
	Width         uint16       `json:"width,omitempty"`
	Height        uint16       `json:"height,omitempty"`
	TerminalType  string       `json:"terminal_type,omitempty"`
	GmcpName      string       `json:"gmcp_name,omitempty"`
	GmcpJSON      string       `json:"gmcp_json,omitempty"`
	CompressionOn bool         `json:"compression_on,omitempty"`
}

// GmcpEvent wraps an inbound GMCP message as an event.
func GmcpEvent(msg gmcp.Message) Event {
	return Event{Kind: KindGmcp, GmcpName: msg.Name, GmcpJSON: string(msg.JSON)}
}

// TextEvent wraps a decoded text segment as an event.
func TextEvent(text string, goAhead bool) Event {
	return Event{Kind: KindText, Text: text, GoAhead: goAhead}
}
