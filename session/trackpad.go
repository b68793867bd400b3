package session

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// startWord is XORed with the trackpad key to form the first word a client
// sends on the Arrow connection.
const startWord = 32

// ParseCmteField returns the first comma-separated field of a port-info
// string such as "51234,1,0".
func ParseCmteField(cmte string) (uint32, error) {
	field, _, _ := strings.Cut(cmte, ",")
	n, err := strconv.ParseUint(strings.TrimSpace(field), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse cmte field %q: %w", field, err)
	}
	return uint32(n), nil
}

// DeriveTrackpadKey combines the advertised sub-text with the client's
// port-info field. Clients apply the XOR result in little-endian order,
// so the key is its byte-swapped value.
func DeriveTrackpadKey(subText, cmteField uint32) uint32 {
	return bits.ReverseBytes32(subText ^ cmteField)
}

// ExpectedStartBytes is the encrypted form of the first word of every
// Arrow chunk for key.
func ExpectedStartBytes(key uint32) [4]byte {
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], startWord^key)
	return out
}

// Trackpad is the outcome of a port-info exchange.
type Trackpad struct {
	Cmte       string
	Key        uint32
	StartBytes [4]byte
}

// NegotiateTrackpad derives the trackpad key for a client port-info string.
func NegotiateTrackpad(subText uint32, cmte string) (Trackpad, error) {
	field, err := ParseCmteField(cmte)
	if err != nil {
		return Trackpad{}, err
	}
	key := DeriveTrackpadKey(subText, field)
	return Trackpad{
		Cmte:       cmte,
		Key:        key,
		StartBytes: ExpectedStartBytes(key),
	}, nil
}

// Apply stores the negotiated values on sess.
func (t Trackpad) Apply(sess *Session) {
	sess.Cmte = t.Cmte
	sess.TrackpadKey = t.Key
	sess.StartBytes = t.StartBytes
	sess.Negotiated = true
}
