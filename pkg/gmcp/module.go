package gmcp

import (
	"fmt"
	"strconv"
	"strings"
)

// ModuleType classifies a module by its top-level package. The engine tracks
// a version per recognized type; everything else is ModuleUnknown.
type ModuleType int

const (
	ModuleUnknown ModuleType = iota
	ModuleChar
	ModuleComm
	ModuleEvent
	ModuleExternalDiscord
	ModuleGroup
	ModuleRoom
)

// DefaultModuleVersion marks a module type as not enabled.
const DefaultModuleVersion = 0

// moduleTypePrefixes maps normalized name prefixes to module types.
// External.Discord is the one two-segment prefix.
var moduleTypePrefixes = []struct {
	prefix string
	typ    ModuleType
}{
	{"char", ModuleChar},
	{"comm", ModuleComm},
	{"event", ModuleEvent},
	{"external.discord", ModuleExternalDiscord},
	{"group", ModuleGroup},
	{"room", ModuleRoom},
}

// ModuleTypes returns all recognized module types.
func ModuleTypes() []ModuleType {
	types := make([]ModuleType, 0, len(moduleTypePrefixes))
	for _, p := range moduleTypePrefixes {
		types = append(types, p.typ)
	}
	return types
}

func (t ModuleType) String() string {
	switch t {
	case ModuleChar:
		return "Char"
	case ModuleComm:
		return "Comm"
	case ModuleEvent:
		return "Event"
	case ModuleExternalDiscord:
		return "External.Discord"
	case ModuleGroup:
		return "Group"
	case ModuleRoom:
		return "Room"
	default:
		return "Unknown"
	}
}

// Module is a GMCP module name with an optional version, as exchanged in
// Core.Supports.Set/Add entries like "Char 1".
type Module struct {
	Name    string
	Version int
}

// ParseModule parses a Core.Supports entry of the form "Name[ Version]".
func ParseModule(s string) (Module, error) {
	name, ver, found := strings.Cut(strings.TrimSpace(s), " ")
	if name == "" {
		return Module{}, fmt.Errorf("empty module entry %q", s)
	}
	m := Module{Name: name}
	if found {
		v, err := strconv.Atoi(strings.TrimSpace(ver))
		if err != nil || v < 0 {
			return Module{}, fmt.Errorf("bad version in module entry %q", s)
		}
		m.Version = v
	}
	return m, nil
}

// HasVersion reports whether the module carries a version above
// DefaultModuleVersion; an entry such as "Char 0" counts as unversioned.
func (m Module) HasVersion() bool {
	return m.Version > DefaultModuleVersion
}

// Type returns the recognized top-level type of the module name.
func (m Module) Type() ModuleType {
	lower := strings.ToLower(m.Name)
	for _, p := range moduleTypePrefixes {
		if lower == p.prefix || strings.HasPrefix(lower, p.prefix+".") {
			return p.typ
		}
	}
	return ModuleUnknown
}

// IsSupported reports whether the module belongs to a recognized type.
func (m Module) IsSupported() bool {
	return m.Type() != ModuleUnknown
}

func (m Module) String() string {
	if m.HasVersion() {
		return m.Name + " " + strconv.Itoa(m.Version)
	}
	return m.Name
}
