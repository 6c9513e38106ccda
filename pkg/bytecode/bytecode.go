package bytecode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"slices"
)

// FormatVersion is the current .ifab format version.
// Increment when making incompatible changes to the format.
const FormatVersion uint16 = 1

// Magic bytes for bytecode files: "IFAB" (Ifá Bytecode)
var Magic = []byte{'I', 'F', 'A', 'B'}

// Serialization errors.
var (
	ErrBadMagic           = errors.New("invalid bytecode magic")
	ErrUnsupportedVersion = errors.New("unsupported bytecode version")
	ErrTruncated          = errors.New("unexpected end of bytecode")
)

// Flags describes optional sections of a serialized artifact.
type Flags uint16

const (
	// FlagLines indicates the line table is present.
	FlagLines Flags = 1 << 0
)

// StringIndex addresses an entry of the string pool.
type StringIndex uint16

// LocalSlot addresses a local variable relative to the frame base.
type LocalSlot uint16

// GlobalName names a global variable.
type GlobalName string

// MaxStrings is the capacity of the string pool; the count is stored as a u16.
const MaxStrings = 1<<16 - 1

// MaxLocals is the number of addressable local slots per frame.
const MaxLocals = 1 << 16

// LineEntry maps a code offset to the source line that produced it.
type LineEntry struct {
	Offset uint32
	Line   uint32
}

// Bytecode is a compiled program: code, string pool and debug metadata.
// A Bytecode is not modified after compilation or loading and may be shared
// by any number of VMs.
type Bytecode struct {
	Version    uint16
	SourceName string
	Opon       string // memory preset requested by an #opon directive
	Code       []byte
	Strings    []string
	Lines      []LineEntry
}

// String returns the pool entry at idx.
func (b *Bytecode) String(idx StringIndex) (string, bool) {
	if int(idx) >= len(b.Strings) {
		return "", false
	}
	return b.Strings[idx], true
}

// LineAt returns the source line of the instruction at offset, or 0.
func (b *Bytecode) LineAt(offset int) int {
	line := 0
	for _, e := range b.Lines {
		if int(e.Offset) > offset {
			break
		}
		line = int(e.Line)
	}
	return line
}

// Equal reports whether two artifacts are identical in every field.
func (b *Bytecode) Equal(other *Bytecode) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Version == other.Version &&
		b.SourceName == other.SourceName &&
		b.Opon == other.Opon &&
		bytes.Equal(b.Code, other.Code) &&
		slices.Equal(b.Strings, other.Strings) &&
		slices.Equal(b.Lines, other.Lines)
}

// Marshal encodes the artifact in the .ifab format.
//
// Layout (all integers big-endian):
//
//	magic "IFAB" | version u16 | flags u16
//	source name: u16 len + bytes
//	opon directive: u8 len + bytes
//	code: u32 len + bytes
//	strings: u16 count, each u32 len + bytes
//	lines (FlagLines): u32 count, each u32 offset + u32 line
func (b *Bytecode) Marshal() ([]byte, error) {
	if len(b.SourceName) > 0xFFFF {
		return nil, fmt.Errorf("source name too long: %d bytes", len(b.SourceName))
	}
	if len(b.Opon) > 0xFF {
		return nil, fmt.Errorf("opon directive too long: %d bytes", len(b.Opon))
	}
	if len(b.Strings) > MaxStrings {
		return nil, fmt.Errorf("too many strings: %d", len(b.Strings))
	}

	size := 8 + 2 + len(b.SourceName) + 1 + len(b.Opon) + 4 + len(b.Code) + 2
	for _, s := range b.Strings {
		size += 4 + len(s)
	}
	var flags Flags
	if len(b.Lines) > 0 {
		flags |= FlagLines
		size += 4 + 8*len(b.Lines)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, Magic...)
	buf = binary.BigEndian.AppendUint16(buf, FormatVersion)
	buf = binary.BigEndian.AppendUint16(buf, uint16(flags))

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(b.SourceName)))
	buf = append(buf, b.SourceName...)

	buf = append(buf, byte(len(b.Opon)))
	buf = append(buf, b.Opon...)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b.Code)))
	buf = append(buf, b.Code...)

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(b.Strings)))
	for _, s := range b.Strings {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
		buf = append(buf, s...)
	}

	if flags&FlagLines != 0 {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(b.Lines)))
		for _, e := range b.Lines {
			buf = binary.BigEndian.AppendUint32(buf, e.Offset)
			buf = binary.BigEndian.AppendUint32(buf, e.Line)
		}
	}

	return buf, nil
}

// reader walks a serialized artifact with bounds checks.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) take(n int, what string) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w reading %s at pos %d", ErrTruncated, what, r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u8(what string) (uint8, error) {
	b, err := r.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16(what string) (uint16, error) {
	b, err := r.take(2, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u32(what string) (uint32, error) {
	b, err := r.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Unmarshal decodes an artifact produced by Marshal.
func Unmarshal(data []byte) (*Bytecode, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: need at least 8 bytes, got %d", ErrTruncated, len(data))
	}
	if !bytes.Equal(data[0:4], Magic) {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrBadMagic, Magic, data[0:4])
	}

	b := &Bytecode{Version: binary.BigEndian.Uint16(data[4:6])}
	if b.Version == 0 || b.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %d (supported: %d)", ErrUnsupportedVersion, b.Version, FormatVersion)
	}
	flags := Flags(binary.BigEndian.Uint16(data[6:8]))
	r := &reader{data: data, pos: 8}

	nameLen, err := r.u16("source name length")
	if err != nil {
		return nil, err
	}
	name, err := r.take(int(nameLen), "source name")
	if err != nil {
		return nil, err
	}
	b.SourceName = string(name)

	oponLen, err := r.u8("opon directive length")
	if err != nil {
		return nil, err
	}
	opon, err := r.take(int(oponLen), "opon directive")
	if err != nil {
		return nil, err
	}
	b.Opon = string(opon)

	codeLen, err := r.u32("code length")
	if err != nil {
		return nil, err
	}
	code, err := r.take(int(codeLen), "code section")
	if err != nil {
		return nil, err
	}
	b.Code = bytes.Clone(code)
	if b.Code == nil {
		b.Code = []byte{}
	}

	count, err := r.u16("string count")
	if err != nil {
		return nil, err
	}
	b.Strings = make([]string, count)
	for i := range b.Strings {
		n, err := r.u32(fmt.Sprintf("string %d length", i))
		if err != nil {
			return nil, err
		}
		s, err := r.take(int(n), fmt.Sprintf("string %d", i))
		if err != nil {
			return nil, err
		}
		b.Strings[i] = string(s)
	}

	if flags&FlagLines != 0 {
		n, err := r.u32("line count")
		if err != nil {
			return nil, err
		}
		if uint64(n)*8 > uint64(len(data)-r.pos) {
			return nil, fmt.Errorf("%w reading line table of %d entries", ErrTruncated, n)
		}
		b.Lines = make([]LineEntry, n)
		for i := range b.Lines {
			b.Lines[i].Offset, _ = r.u32("line offset")
			b.Lines[i].Line, _ = r.u32("line number")
		}
	}

	if r.pos != len(data) {
		return nil, fmt.Errorf("trailing data after bytecode: %d bytes", len(data)-r.pos)
	}
	return b, nil
}

// WriteFile serializes the artifact to path.
func (b *Bytecode) WriteFile(path string) error {
	data, err := b.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads an artifact from path.
func ReadFile(path string) (*Bytecode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	b, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("cannot load %s: %w", path, err)
	}
	return b, nil
}
