package can

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameString(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{"standard data", Frame{ID: 0x123, Data: []byte{0xde, 0xad}}, "t1232dead"},
		{"standard empty", Frame{ID: 0x7ff}, "t7ff0"},
		{"extended data", Frame{ID: 0x1abcdef, Extended: true, Data: []byte{1, 2, 3}}, "T01abcdef3010203"},
		{"standard remote", Frame{ID: 0x100, RTR: true}, "r1000"},
		{"extended remote", Frame{ID: 0x100, Extended: true, RTR: true}, "R000001000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.frame.String())
		})
	}
}

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame("  T1ABCDEF3A0B0C0\r\n")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1abcdef), f.ID)
	assert.True(t, f.Extended)
	assert.False(t, f.RTR)
	assert.Equal(t, []byte{0xa0, 0xb0, 0xc0}, f.Data)

	f, err = ParseFrame("r1230")
	require.NoError(t, err)
	assert.True(t, f.RTR)
	assert.Empty(t, f.Data)

	// Length digit of a remote request is informational only.
	f, err = ParseFrame("r1234")
	require.NoError(t, err)
	assert.Empty(t, f.Data)
}

func TestParseFrameRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"unknown type", "x1230"},
		{"short", "t12"},
		{"bad id", "tzz10"},
		{"bad length", "t1239"},
		{"length mismatch", "t1232aa"},
		{"bad data", "t1231zz"},
		{"remote with data", "r1231aa"},
		{"standard id too large", "t8000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestParseFrameRoundTrip(t *testing.T) {
	for _, s := range []string{"t0000", "t7ff80102030405060708", "T1fffffff0", "r0010", "R000000010"} {
		f, err := ParseFrame(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, f.String())
	}
}

func TestFromFields(t *testing.T) {
	f, err := FromFields("123", []string{"01", "ff"}, false, false)
	require.NoError(t, err)
	assert.Equal(t, "t123201ff", f.String())

	// Identifier above 0x7ff promotes to extended.
	f, err = FromFields("800", nil, false, false)
	require.NoError(t, err)
	assert.True(t, f.Extended)

	// Garbage reads as zero.
	f, err = FromFields("xyz", []string{"qq"}, false, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), f.ID)
	assert.Equal(t, []byte{0}, f.Data)

	// Remote requests drop data fields.
	f, err = FromFields("10", []string{"01"}, false, true)
	require.NoError(t, err)
	assert.Empty(t, f.Data)

	_, err = FromFields("1", make([]string, 9), false, false)
	assert.ErrorIs(t, err, ErrDataLength)

	_, err = FromFields("20000000", nil, true, false)
	assert.ErrorIs(t, err, ErrInvalidID)
}
