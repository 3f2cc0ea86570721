package tact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHexEncodeZeroPadded(t *testing.T) {
	b := []byte{0x00, 0x17, 0xa4, 0x02, 0xf5, 0x56, 0xfb, 0xec, 0xe4, 0x6c, 0x38, 0xdc, 0x43, 0x1a, 0x2c, 0x9b}
	require.Equal(t, "0017a402f556fbece46c38dc431a2c9b", hexEncode(b))
}

func TestKeyRoundTrip(t *testing.T) {
	const s = "0017a402f556fbece46c38dc431a2c9b"
	k, err := ParseEKey(s)
	require.NoError(t, err)
	require.Equal(t, s, k.String())

	ck, err := ParseCKey(s)
	require.NoError(t, err)
	require.Equal(t, s, ck.String())
}

func TestParseKeyRejectsWrongLength(t *testing.T) {
	_, err := ParseEKey("abcd")
	require.Error(t, err)
}

func TestParseKeyRejectsNonHex(t *testing.T) {
	_, err := ParseEKey("zz17a402f556fbece46c38dc431a2c9b")
	require.Error(t, err)
}

func TestNullEKeyIsZero(t *testing.T) {
	require.True(t, NullEKey.IsZero())
	k, _ := ParseEKey("0017a402f556fbece46c38dc431a2c9b")
	require.False(t, k.IsZero())
}
