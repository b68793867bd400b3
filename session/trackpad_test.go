package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testSubText = 1471545639

func TestDeriveTrackpadKeyGolden(t *testing.T) {
	cases := []struct {
		cmte       string
		key        uint32
		startBytes [4]byte
	}{
		{"51234,1,0", 0x05c9b657, [4]byte{0x05, 0xc9, 0xb6, 0x77}},
		{"34999", 0x9089b657, [4]byte{0x90, 0x89, 0xb6, 0x77}},
		{"12345,0", 0x1e31b657, [4]byte{0x1e, 0x31, 0xb6, 0x77}},
	}
	for _, tc := range cases {
		pad, err := NegotiateTrackpad(testSubText, tc.cmte)
		require.NoError(t, err, tc.cmte)
		require.Equal(t, tc.key, pad.Key, tc.cmte)
		require.Equal(t, tc.startBytes, pad.StartBytes, tc.cmte)
		require.Equal(t, tc.cmte, pad.Cmte)
	}
}

func TestParseCmteField(t *testing.T) {
	n, err := ParseCmteField("51234,1,0")
	require.NoError(t, err)
	require.EqualValues(t, 51234, n)

	n, err = ParseCmteField(" 7 ")
	require.NoError(t, err)
	require.EqualValues(t, 7, n)

	_, err = ParseCmteField("port,1")
	require.Error(t, err)
	_, err = ParseCmteField("")
	require.Error(t, err)
	_, err = ParseCmteField("99999999999")
	require.Error(t, err)
}

func TestApplyMarksSessionNegotiated(t *testing.T) {
	pad, err := NegotiateTrackpad(testSubText, "51234")
	require.NoError(t, err)

	var sess Session
	pad.Apply(&sess)
	require.True(t, sess.Negotiated)
	require.Equal(t, "51234", sess.Cmte)
	require.Equal(t, pad.Key, sess.TrackpadKey)
	require.Equal(t, pad.StartBytes, sess.StartBytes)
}
