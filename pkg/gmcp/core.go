package gmcp

// Well-known Core package message names.
const (
	CoreHello          = "Core.Hello"
	CoreSupportsSet    = "Core.Supports.Set"
	CoreSupportsAdd    = "Core.Supports.Add"
	CoreSupportsRemove = "Core.Supports.Remove"
	CoreGoodbye        = "Core.Goodbye"
	CorePing           = "Core.Ping"
)

// Hello builds the Core.Hello handshake message a client sends once the
// server enables GMCP.
func Hello(client, version string) Message {
	msg, _ := NewMessage(CoreHello, map[string]string{
		"client":  client,
		"version": version,
	})
	return msg
}

// SupportsSet builds a Core.Supports.Set message listing the given modules.
func SupportsSet(modules []Module) Message {
	entries := make([]string, 0, len(modules))
	for _, m := range modules {
		entries = append(entries, m.String())
	}
	msg, _ := NewMessage(CoreSupportsSet, entries)
	return msg
}
