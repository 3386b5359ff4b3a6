package common

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"salt sized", 16},
		{"session secret", 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := MakeRandHexString(tt.size)
			require.NoError(t, err)
			assert.Len(t, s, 2*tt.size)

			raw, err := hex.DecodeString(s)
			require.NoError(t, err)
			assert.Len(t, raw, tt.size)
		})
	}
}

func TestMakeRandHexString_SecretsDiffer(t *testing.T) {
	a, err := MakeRandHexString(32)
	require.NoError(t, err)
	b, err := MakeRandHexString(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestGenerateRandByteArray(t *testing.T) {
	for _, n := range []int{0, 1, 16, 64} {
		buf := GenerateRandByteArray(n)
		require.NotNil(t, buf)
		assert.Len(t, buf, n)
	}
}

func TestGenerateRandByteArray_NotZeroedAndDistinct(t *testing.T) {
	a := GenerateRandByteArray(32)
	b := GenerateRandByteArray(32)

	assert.False(t, bytes.Equal(a, make([]byte, 32)), "32 random bytes came back all zero")
	assert.False(t, bytes.Equal(a, b), "two draws of 32 random bytes are equal")
}

func TestWipeByteArray(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"password", []byte("pw-Luffy-123")},
		{"random", GenerateRandByteArray(16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := len(tt.in)
			assert.NotPanics(t, func() { WipeByteArray(tt.in) })
			assert.Len(t, tt.in, n)
			assert.Equal(t, make([]byte, n), append([]byte{}, tt.in...))
		})
	}
}

func TestWipeByteArray_SharesBackingArray(t *testing.T) {
	backing := []byte("old-password|rest")
	WipeByteArray(backing[:12])

	assert.Equal(t, make([]byte, 12), backing[:12])
	assert.Equal(t, "|rest", string(backing[12:]))
}
