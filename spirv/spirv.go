// Package spirv reads and writes the subset of SPIR-V binary modules the
// device program loader needs: the header, capabilities and the entry point
// table.
//
// The format reference is the Khronos "SPIR-V Specification", section 2.3
// "Physical Layout of a SPIR-V Module and Instruction".
package spirv

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Magic is the first word of every SPIR-V module.
const Magic uint32 = 0x07230203

// Version1_0 is the version word for SPIR-V 1.0.
const Version1_0 uint32 = 0x00010000

// Generator is the generator magic written by Assemble.
const Generator uint32 = 0x7a650001

const headerWords = 5

// Opcodes used by Assemble and Parse.
const (
	OpName         uint16 = 5
	OpMemoryModel  uint16 = 14
	OpEntryPoint   uint16 = 15
	OpCapability   uint16 = 17
	OpTypeVoid     uint16 = 19
	OpTypeFunction uint16 = 33
	OpFunction     uint16 = 54
	OpFunctionEnd  uint16 = 56
	OpLabel        uint16 = 248
	OpReturn       uint16 = 253
)

// ExecutionModel of an entry point.
type ExecutionModel uint32

const (
	ExecutionModelGLCompute ExecutionModel = 5
	ExecutionModelKernel    ExecutionModel = 6
)

// Capability declared by a module.
type Capability uint32

const (
	CapabilityAddresses Capability = 4
	CapabilityKernel    Capability = 6
)

// ErrInvalidModule is the cause of every Parse failure.
var ErrInvalidModule = errors.New("spirv: invalid module")

// EntryPoint is one OpEntryPoint instruction.
type EntryPoint struct {
	Model ExecutionModel
	ID    uint32
	Name  string
}

// Module is the parsed header and entry point table of a SPIR-V binary.
type Module struct {
	Version      uint32
	Generator    uint32
	Bound        uint32
	Capabilities []Capability
	EntryPoints  []EntryPoint
}

// VersionString returns the version as "major.minor".
func (m *Module) VersionString() string {
	return fmt.Sprintf("%d.%d", (m.Version>>16)&0xff, (m.Version>>8)&0xff)
}

// EntryPoint returns the entry point with the given name.
func (m *Module) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range m.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// HasCapability reports whether the module declares c.
func (m *Module) HasCapability(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Parse decodes the header and entry points of a SPIR-V binary. Both byte
// orders are accepted, as the specification requires.
func Parse(blob []byte) (*Module, error) {
	if len(blob)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidModule, "size %d is not a multiple of 4", len(blob))
	}
	if len(blob) < headerWords*4 {
		return nil, errors.Wrapf(ErrInvalidModule, "size %d is shorter than the header", len(blob))
	}
	var order binary.ByteOrder = binary.LittleEndian
	switch {
	case binary.LittleEndian.Uint32(blob) == Magic:
	case binary.BigEndian.Uint32(blob) == Magic:
		order = binary.BigEndian
	default:
		return nil, errors.Wrapf(ErrInvalidModule, "bad magic number 0x%08x", binary.LittleEndian.Uint32(blob))
	}
	words := make([]uint32, len(blob)/4)
	for i := range words {
		words[i] = order.Uint32(blob[i*4:])
	}

	m := &Module{
		Version:   words[1],
		Generator: words[2],
		Bound:     words[3],
	}
	if m.Version&0xff0000ff != 0 || m.Version>>16 != 1 {
		return nil, errors.Wrapf(ErrInvalidModule, "unsupported version word 0x%08x", m.Version)
	}
	if m.Bound == 0 {
		return nil, errors.Wrap(ErrInvalidModule, "id bound is zero")
	}

	for pos := headerWords; pos < len(words); {
		count := int(words[pos] >> 16)
		opcode := uint16(words[pos])
		if count == 0 || pos+count > len(words) {
			return nil, errors.Wrapf(ErrInvalidModule, "instruction at word %d has bad word count %d", pos, count)
		}
		operands := words[pos+1 : pos+count]
		switch opcode {
		case OpCapability:
			if len(operands) != 1 {
				return nil, errors.Wrapf(ErrInvalidModule, "OpCapability at word %d has %d operands", pos, len(operands))
			}
			m.Capabilities = append(m.Capabilities, Capability(operands[0]))
		case OpEntryPoint:
			if len(operands) < 3 {
				return nil, errors.Wrapf(ErrInvalidModule, "OpEntryPoint at word %d has %d operands", pos, len(operands))
			}
			name, err := decodeString(operands[2:])
			if err != nil {
				return nil, errors.Wrapf(err, "OpEntryPoint at word %d", pos)
			}
			if operands[1] >= m.Bound {
				return nil, errors.Wrapf(ErrInvalidModule, "entry point %q id %d exceeds bound %d", name, operands[1], m.Bound)
			}
			m.EntryPoints = append(m.EntryPoints, EntryPoint{
				Model: ExecutionModel(operands[0]),
				ID:    operands[1],
				Name:  name,
			})
		}
		pos += count
	}
	return m, nil
}

// decodeString reads a nul-terminated literal string packed little-endian
// into words.
func decodeString(words []uint32) (string, error) {
	var buf bytes.Buffer
	for _, w := range words {
		for i := 0; i < 4; i++ {
			b := byte(w >> (8 * i))
			if b == 0 {
				return buf.String(), nil
			}
			buf.WriteByte(b)
		}
	}
	return "", errors.Wrap(ErrInvalidModule, "unterminated literal string")
}

// encodeString packs s, with its nul terminator, into words.
func encodeString(s string) []uint32 {
	n := len(s)/4 + 1
	words := make([]uint32, n)
	for i := 0; i < len(s); i++ {
		words[i/4] |= uint32(s[i]) << (8 * (i % 4))
	}
	return words
}

// Assemble builds a little-endian SPIR-V 1.0 module declaring one Kernel
// entry point per name, each an empty void function.
func Assemble(names ...string) []byte {
	const (
		idVoid   = 1
		idFnType = 2
		idFirst  = 3
	)
	bound := uint32(idFirst + 2*len(names))
	words := []uint32{Magic, Version1_0, Generator, bound, 0}
	emit := func(op uint16, operands ...uint32) {
		words = append(words, uint32(len(operands)+1)<<16|uint32(op))
		words = append(words, operands...)
	}

	emit(OpCapability, uint32(CapabilityAddresses))
	emit(OpCapability, uint32(CapabilityKernel))
	emit(OpMemoryModel, 2, 2) // Physical64, OpenCL
	for i, name := range names {
		emit(OpEntryPoint, append([]uint32{uint32(ExecutionModelKernel), uint32(idFirst + 2*i)}, encodeString(name)...)...)
	}
	for i, name := range names {
		emit(OpName, append([]uint32{uint32(idFirst + 2*i)}, encodeString(name)...)...)
	}
	emit(OpTypeVoid, idVoid)
	emit(OpTypeFunction, idFnType, idVoid)
	for i := range names {
		fn := uint32(idFirst + 2*i)
		emit(OpFunction, idVoid, fn, 0, idFnType)
		emit(OpLabel, fn+1)
		emit(OpReturn)
		emit(OpFunctionEnd)
	}

	blob := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(blob[i*4:], w)
	}
	return blob
}
