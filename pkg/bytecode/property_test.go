package bytecode

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestPropertyMarshalRoundTrip checks that any artifact survives
// serialization unchanged.
func TestPropertyMarshalRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("unmarshal(marshal(b)) equals b", prop.ForAll(
		func(code []uint8, strs []string, name string, lines []uint32) bool {
			bc := &Bytecode{
				Version:    FormatVersion,
				SourceName: name,
				Code:       code,
				Strings:    strs,
			}
			for i, l := range lines {
				bc.Lines = append(bc.Lines, LineEntry{Offset: uint32(i), Line: l})
			}
			data, err := bc.Marshal()
			if err != nil {
				return false
			}
			got, err := Unmarshal(data)
			if err != nil {
				return false
			}
			return got.Equal(bc)
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.AnyString()),
		gen.AlphaString(),
		gen.SliceOf(gen.UInt32()),
	))

	properties.Property("any strict prefix fails to load", prop.ForAll(
		func(code []uint8, cut int) bool {
			bc := &Bytecode{Version: FormatVersion, Code: code, Strings: []string{"a"}}
			data, _ := bc.Marshal()
			n := cut % len(data)
			_, err := Unmarshal(data[:n])
			return err != nil
		},
		gen.SliceOf(gen.UInt8()),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t)
}

// TestPropertyJumpPatching checks that a patched forward jump lands exactly
// on the offset current at patch time.
func TestPropertyJumpPatching(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("patched jump targets the patch offset", prop.ForAll(
		func(before, body int) bool {
			b := NewBuilder("")
			for i := 0; i < before; i++ {
				b.Op(OpPop)
			}
			j := b.EmitJump(OpJumpIfTrue)
			for i := 0; i < body; i++ {
				b.PushInt(int64(i))
			}
			target := b.Offset()
			if err := b.PatchJump(j); err != nil {
				return false
			}
			bc := b.Finish()
			n := OpJumpIfTrue.InstructionLen()
			disp := int(int16(uint16(bc.Code[before+1])<<8 | uint16(bc.Code[before+2])))
			return before+n+disp == target
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
