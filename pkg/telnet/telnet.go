package telnet

import "strconv"

// Telnet protocol constants. See RFC 854 (protocol), RFC 855 (option
// subnegotiation), RFC 1073 (NAWS), RFC 1091 (terminal type), RFC 2066
// (charset), plus the MUD extensions MCCPv2 (option 86) and GMCP (option 201).
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Subnegotiation Begin
	GA   byte = 249 // Go Ahead
	EL   byte = 248 // Erase Line
	EC   byte = 247 // Erase Character
	AYT  byte = 246 // Are You There?
	AO   byte = 245 // Abort Output
	IP   byte = 244 // Interrupt Process
	BRK  byte = 243 // Break
	DM   byte = 242 // Data Mark
	NOP  byte = 241
	SE   byte = 240 // Subnegotiation End
)

// Telnet options negotiated by the engine.
const (
	OptEcho         byte = 1   // RFC 857
	OptSuppressGA   byte = 3   // RFC 858
	OptStatus       byte = 5   // RFC 859
	OptTimingMark   byte = 6   // RFC 860
	OptTerminalType byte = 24  // RFC 1091
	OptNAWS         byte = 31  // RFC 1073
	OptCharset      byte = 42  // RFC 2066
	OptCompress2    byte = 86  // MCCPv2
	OptGMCP         byte = 201 // Generic MUD Communication Protocol
)

// Subnegotiation command bytes shared by TERMINAL-TYPE (RFC 1091) and
// CHARSET (RFC 2066). REQUEST and SEND collide on the value 1.
const (
	SubIS       byte = 0
	SubSend     byte = 1
	SubRequest  byte = 1
	SubAccepted byte = 2
	SubRejected byte = 3
	SubTTableIS byte = 4
)

// NumOpts is the size of the telnet option space.
const NumOpts = 256

// commandNames maps telnet command bytes to their RFC names for debug logging.
var commandNames = map[byte]string{
	IAC:  "IAC",
	DONT: "DONT",
	DO:   "DO",
	WONT: "WONT",
	WILL: "WILL",
	SB:   "SB",
	GA:   "GA",
	EL:   "EL",
	EC:   "EC",
	AYT:  "AYT",
	AO:   "AO",
	IP:   "IP",
	BRK:  "BRK",
	DM:   "DM",
	NOP:  "NOP",
	SE:   "SE",
}

// optionNames maps the options the engine knows about to their names.
var optionNames = map[byte]string{
	OptEcho:         "ECHO",
	OptSuppressGA:   "SUPPRESS-GA",
	OptStatus:       "STATUS",
	OptTimingMark:   "TIMING-MARK",
	OptTerminalType: "TERMINAL-TYPE",
	OptNAWS:         "NAWS",
	OptCharset:      "CHARSET",
	OptCompress2:    "COMPRESS2",
	OptGMCP:         "GMCP",
}

var subnegNames = map[byte]string{
	SubIS:       "IS",
	SubSend:     "SEND/REQUEST",
	SubAccepted: "ACCEPTED",
	SubRejected: "REJECTED",
	SubTTableIS: "TTABLE-IS",
}

func commandName(c byte) string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

func optionName(o byte) string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return strconv.Itoa(int(o))
}

func subnegName(c byte) string {
	if name, ok := subnegNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}
