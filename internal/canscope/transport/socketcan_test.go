package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	einride "go.einride.tech/can"
)

func TestSocketCANFrameConversion(t *testing.T) {
	tests := []string{"t1232aabb", "t0000", "T1fffffff80102030405060708", "r7ff0", "R000004000"}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			f := mustFrame(t, text)

			w, err := toWire(f)
			require.NoError(t, err)
			assert.Equal(t, f.Extended, w.IsExtended)
			assert.Equal(t, f.RTR, w.IsRemote)

			back, err := fromWire(w)
			require.NoError(t, err)
			assert.True(t, f.Equal(back), "%s != %s", f, back)
		})
	}
}

func TestSocketCANRemoteLengthDropped(t *testing.T) {
	f, err := fromWire(einride.Frame{ID: 0x10, Length: 4, IsRemote: true})
	require.NoError(t, err)
	assert.Empty(t, f.Data)
}
