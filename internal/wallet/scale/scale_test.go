package scale_test

import (
	"encoding/hex"
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/fixedbuf"
	"github/chapool/dot-wallet/internal/wallet/scale"
)

var compactVectors = []struct {
	value   uint64
	encoded string
}{
	{0, "00"},
	{1, "04"},
	{42, "a8"},
	{63, "fc"},
	{64, "0101"},
	{69, "1501"},
	{16383, "fdff"},
	{16384, "02000100"},
	{65535, "feff0300"},
	{1073741823, "feffffff"},
	{1073741824, "0300000040"},
	{2147483648, "0300000080"},
	{100000000000000, "0b00407a10f35a"},
	{math.MaxUint64, "13ffffffffffffffff"},
}

func TestAppendCompactVectors(t *testing.T) {
	for _, tt := range compactVectors {
		got := scale.AppendCompact(nil, tt.value)
		assert.Equal(t, tt.encoded, hex.EncodeToString(got), "value %d", tt.value)
		assert.Equal(t, len(got), scale.CompactLen(tt.value))

		big := scale.AppendCompactBig(nil, uint256.NewInt(tt.value))
		assert.Equal(t, got, big)
	}
}

func TestCompactBigBeyond64Bits(t *testing.T) {
	u128max := new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)
	assert.Equal(t, "33ffffffffffffffffffffffffffffffff", hex.EncodeToString(scale.AppendCompactBig(nil, u128max)))

	two64 := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	assert.Equal(t, "17000000000000000001", hex.EncodeToString(scale.AppendCompactBig(nil, two64)))

	dec := scale.NewDecoder(scale.AppendCompactBig(nil, u128max))
	v, err := dec.CompactBig()
	require.NoError(t, err)
	assert.True(t, v.Eq(u128max))
	assert.Zero(t, dec.Remaining())
}

func TestDecodeCompactVectors(t *testing.T) {
	for _, tt := range compactVectors {
		raw, err := hex.DecodeString(tt.encoded)
		require.NoError(t, err)

		dec := scale.NewDecoder(raw)
		v, err := dec.Compact()
		require.NoError(t, err, "value %d", tt.value)
		assert.Equal(t, tt.value, v)
		assert.Equal(t, len(raw), dec.Offset())
	}
}

func TestDecodeRejectsNonCanonical(t *testing.T) {
	for _, encoded := range []string{
		"0100",         // 0 in two-byte mode
		"fd00",         // 63 in two-byte mode
		"02000000",     // 0 in four-byte mode
		"feff0000",     // 16383 in four-byte mode
		"03ffffff3f",   // 2^30-1 in big mode
		"070000000100", // zero top byte
	} {
		raw, err := hex.DecodeString(encoded)
		require.NoError(t, err)

		_, err = scale.NewDecoder(raw).Compact()
		assert.ErrorIs(t, err, errs.ErrNonCanonical, encoded)
	}
}

func TestDecodeTruncated(t *testing.T) {
	for _, encoded := range []string{"", "01", "020000", "03000000"} {
		raw, err := hex.DecodeString(encoded)
		require.NoError(t, err)

		_, err = scale.NewDecoder(raw).Compact()
		assert.ErrorIs(t, err, errs.ErrTruncated, encoded)
		assert.ErrorIs(t, err, errs.ErrEncoding)
	}
}

func TestDecodeCompactOverflow(t *testing.T) {
	raw := scale.AppendCompactBig(nil, new(uint256.Int).Lsh(uint256.NewInt(1), 64))

	_, err := scale.NewDecoder(raw).Compact()
	assert.ErrorIs(t, err, errs.ErrAmountOverflow)
}

func TestEncoderFixedWidthAndStickyError(t *testing.T) {
	var backing [16]byte
	buf := fixedbuf.New(backing[:])
	enc := scale.NewEncoder(&buf)

	enc.Byte(0x84)
	enc.U16(0x0102)
	enc.U32(268)
	enc.U64(1)
	require.NoError(t, enc.Err())
	assert.Equal(t, "840201"+"0c010000"+"0100000000000000", hex.EncodeToString(buf.Bytes()))

	enc.Raw(make([]byte, 2))
	assert.ErrorIs(t, enc.Err(), errs.ErrCapacity)

	enc.Byte(0)
	assert.Equal(t, 15, buf.Len())
}

func TestDecoderFixedWidth(t *testing.T) {
	raw, err := hex.DecodeString("84" + "0201" + "0c010000" + "0100000000000000")
	require.NoError(t, err)

	dec := scale.NewDecoder(raw)

	b, err := dec.Byte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x84), b)

	u16, err := dec.U16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), u16)

	u32, err := dec.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(268), u32)

	u64, err := dec.U64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), u64)

	_, err = dec.Byte()
	assert.ErrorIs(t, err, errs.ErrTruncated)
}
