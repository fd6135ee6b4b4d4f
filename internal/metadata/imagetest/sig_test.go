package imagetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompressed(t *testing.T) {
	assert.Equal(t, []byte{0x03}, Compressed(0x03))
	assert.Equal(t, []byte{0x80, 0x80}, Compressed(0x80))
	assert.Equal(t, []byte{0xBF, 0xFF}, Compressed(0x3FFF))
	assert.Equal(t, []byte{0xC0, 0x00, 0x40, 0x00}, Compressed(0x4000))
}

func TestCompressedSigned(t *testing.T) {
	assert.Equal(t, []byte{0x06}, CompressedSigned(3))
	assert.Equal(t, []byte{0x7F}, CompressedSigned(-1))
	assert.Equal(t, []byte{0x80, 0x80}, CompressedSigned(64))
}

func TestSigEncoding(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x02, 0x08, 0x08, 0x08}, MethodSig(false, Int32, Int32, Int32))
	assert.Equal(t, []byte{0x30, 0x01, 0x00, 0x01, 0x1E, 0x00}, GenericMethodSig(true, 1, Void, MVar(0)))
	assert.Equal(t, Sig{0x14, 0x08, 0x02, 0x00, 0x02, 0x00, 0x00}, Array(Int32, 2, nil, []int32{0, 0}))
	assert.Equal(t, Sig{0x15, 0x12, 0x05, 0x01, 0x0E}, GenericInst(false, TypeRefToken(1), String))
}
