package data

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestBitfieldLayout(t *testing.T) {
	bf := &Bitfield{}
	bf.SetBit(0, true)
	bf.SetBit(9, true)
	assert.Equal(t, byte(0x01), bf[0])
	assert.Equal(t, byte(0x02), bf[1])
	assert.True(t, bf.Bit(0))
	assert.False(t, bf.Bit(1))
	assert.True(t, bf.Bit(9))
	bf.SetBit(9, false)
	assert.Equal(t, byte(0x00), bf[1])
}

func TestBitByteCount(t *testing.T) {
	assert.Equal(t, 0, BitByteCount(0))
	assert.Equal(t, 1, BitByteCount(1))
	assert.Equal(t, 1, BitByteCount(8))
	assert.Equal(t, 2, BitByteCount(9))
	assert.Equal(t, 250, BitByteCount(2000))
}

func TestBitfieldRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.Bool(), 0, MaxReadBits).Draw(t, "values")
		bf := BitfieldFromBools(values)
		back := bf.Bools(len(values))
		if !cmp.Equal(values, back, cmpopts.EquateEmpty()) {
			t.Errorf("round trip mismatch: %s", cmp.Diff(values, back))
		}
	})
}
