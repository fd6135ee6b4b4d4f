package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gosymbol/internal/metadata"
)

func TestCountInstructions(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want int
	}{
		{"empty", nil, 0},
		{"ret", []byte{0x2A}, 1},
		{"ldc.i4 ret", []byte{0x20, 1, 2, 3, 4, 0x2A}, 2},
		{"ldc.i8 ret", []byte{0x21, 1, 2, 3, 4, 5, 6, 7, 8, 0x2A}, 2},
		{"short branch", []byte{0x2B, 0x00, 0x2A}, 2},
		{"ceq", []byte{0x02, 0x03, 0xFE, 0x01, 0x2A}, 4},
		{"tail call prefix", []byte{0xFE, 0x14, 0x28, 1, 0, 0, 0x0A, 0x2A}, 3},
		{"ldarg long form", []byte{0xFE, 0x09, 0x01, 0x00, 0x2A}, 2},
		{"switch", []byte{0x02, 0x45, 2, 0, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0, 0x2A}, 3},
		{"empty switch", []byte{0x45, 0, 0, 0, 0, 0x2A}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := metadata.CountInstructions(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestCountInstructions_Malformed(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"dangling prefix", []byte{0x2A, 0xFE}},
		{"operand past end", []byte{0x20, 0x01}},
		{"invalid one-byte opcode", []byte{0xA6}},
		{"invalid two-byte opcode", []byte{0xFE, 0x08}},
		{"truncated switch count", []byte{0x45, 0x01}},
		{"switch targets past end", []byte{0x45, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := metadata.CountInstructions(tt.code)
			assert.Error(t, err)
		})
	}
}
