package spirv

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleParse(t *testing.T) {
	names := []string{"sgemm_kernel", "sgemm_kernel_am", "abc", "abcd", "hello_world"}
	m, err := Parse(Assemble(names...))
	require.NoError(t, err)

	assert.Equal(t, Version1_0, m.Version)
	assert.Equal(t, "1.0", m.VersionString())
	assert.Equal(t, Generator, m.Generator)
	assert.True(t, m.HasCapability(CapabilityKernel))
	require.Len(t, m.EntryPoints, len(names))
	for i, name := range names {
		ep, ok := m.EntryPoint(name)
		require.True(t, ok, "entry point %q", name)
		assert.Equal(t, ExecutionModelKernel, ep.Model)
		assert.Equal(t, uint32(3+2*i), ep.ID)
	}
	_, ok := m.EntryPoint("missing")
	assert.False(t, ok)
}

func TestParseBigEndian(t *testing.T) {
	le := Assemble("k")
	be := make([]byte, len(le))
	for i := 0; i < len(le); i += 4 {
		binary.BigEndian.PutUint32(be[i:], binary.LittleEndian.Uint32(le[i:]))
	}
	m, err := Parse(be)
	require.NoError(t, err)
	require.Len(t, m.EntryPoints, 1)
	assert.Equal(t, "k", m.EntryPoints[0].Name)
}

func TestParseRejects(t *testing.T) {
	valid := Assemble("k")

	truncated := append([]byte(nil), valid...)
	truncated = binary.LittleEndian.AppendUint32(truncated, 3<<16|uint32(OpName))
	badCount := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(badCount[headerWords*4:], 0)
	badVersion := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(badVersion[4:], 0x00020000)

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", nil},
		{"unaligned", valid[:len(valid)-1]},
		{"short header", valid[:12]},
		{"bad magic", append([]byte{0xde, 0xad, 0xbe, 0xef}, valid[4:]...)},
		{"truncated instruction", truncated},
		{"zero word count", badCount},
		{"bad version", badVersion},
		{"text", []byte("this is not a kernel binary....")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.blob)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidModule), "got %v", err)
		})
	}
}

func TestEncodeString(t *testing.T) {
	for _, s := range []string{"", "a", "abc", "abcd", "abcde"} {
		words := encodeString(s)
		assert.Len(t, words, len(s)/4+1)
		got, err := decodeString(words)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}
