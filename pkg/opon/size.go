package opon

import (
	"fmt"
	"strings"
)

// Size is a memory preset chosen with an #opon directive.
type Size int

const (
	Kekere  Size = iota // small: 256 slots
	Arinrin             // medium: 4096 slots
	Nla                 // large: 65536 slots
	Ailopin             // unlimited
)

// Unlimited is the slot limit of the Ailopin preset.
const Unlimited = -1

var sizeAliases = map[string]Size{
	"kekere":   Kekere,
	"kẹ́kẹ́rẹ́":  Kekere,
	"small":    Kekere,
	"tiny":     Kekere,
	"embedded": Kekere,
	"micro":    Kekere,

	"arinrin":  Arinrin,
	"àrínrin":  Arinrin,
	"medium":   Arinrin,
	"standard": Arinrin,
	"default":  Arinrin,
	"normal":   Arinrin,

	"nla":   Nla,
	"nlá":   Nla,
	"large": Nla,
	"big":   Nla,
	"mega":  Nla,
	"xl":    Nla,

	"ailopin":   Ailopin,
	"àìlópin":   Ailopin,
	"unlimited": Ailopin,
	"dynamic":   Ailopin,
	"infinite":  Ailopin,
	"max":       Ailopin,
}

// ParseSize resolves a preset name. Yoruba and English aliases are accepted
// case-insensitively.
func ParseSize(name string) (Size, error) {
	if s, ok := sizeAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("unknown opon size %q", name)
}

// Slots returns the slot limit of the preset, or Unlimited.
func (s Size) Slots() int {
	switch s {
	case Kekere:
		return 256
	case Arinrin:
		return 4096
	case Nla:
		return 65536
	}
	return Unlimited
}

func (s Size) String() string {
	switch s {
	case Kekere:
		return "kekere"
	case Arinrin:
		return "arinrin"
	case Nla:
		return "nla"
	case Ailopin:
		return "ailopin"
	}
	return fmt.Sprintf("Size(%d)", int(s))
}
