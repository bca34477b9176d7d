// Package gmcp models Generic MUD Communication Protocol messages and the
// Core.Supports module bookkeeping. A GMCP message travels inside a telnet
// subnegotiation (option 201) as an ASCII package name optionally followed
// by a space and a JSON document.
package gmcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Message is a single GMCP message: a dotted package name and an optional
// JSON body. JSON is nil when the message carried no body.
type Message struct {
	Name string
	JSON []byte
}

// ParseMessage parses the raw subnegotiation payload (after the option byte)
// into a Message. The format is "Package.Sub[.More] [json]".
func ParseMessage(data []byte) (Message, error) {
	name := data
	var body []byte
	if i := bytes.IndexByte(data, ' '); i >= 0 {
		name = data[:i]
		body = data[i+1:]
	}
	if len(name) == 0 {
		return Message{}, errors.New("empty message name")
	}
	for _, c := range name {
		if c <= ' ' || c > '~' {
			return Message{}, fmt.Errorf("invalid byte %#x in message name", c)
		}
	}
	if body != nil && !json.Valid(body) {
		return Message{}, fmt.Errorf("malformed JSON in %q message", string(name))
	}
	msg := Message{Name: string(name)}
	if body != nil {
		msg.JSON = append([]byte(nil), body...)
	}
	return msg, nil
}

// NewMessage builds a message with v marshaled as the JSON body.
// A nil v produces a bodyless message.
func NewMessage(name string, v any) (Message, error) {
	if v == nil {
		return Message{Name: name}, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Name: name, JSON: body}, nil
}

// Encode renders the message as raw subnegotiation payload bytes.
func (m Message) Encode() []byte {
	if m.JSON == nil {
		return []byte(m.Name)
	}
	buf := make([]byte, 0, len(m.Name)+1+len(m.JSON))
	buf = append(buf, m.Name...)
	buf = append(buf, ' ')
	buf = append(buf, m.JSON...)
	return buf
}

// Unmarshal decodes the JSON body into v.
func (m Message) Unmarshal(v any) error {
	if m.JSON == nil {
		return fmt.Errorf("%s message has no body", m.Name)
	}
	return json.Unmarshal(m.JSON, v)
}

func (m Message) String() string {
	if m.JSON == nil {
		return m.Name
	}
	return m.Name + " " + string(m.JSON)
}

// IsNamed reports whether the message name matches, ignoring case
// (GMCP package names are case-insensitive by convention).
func (m Message) IsNamed(name string) bool {
	return strings.EqualFold(m.Name, name)
}
