package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// TicketHashBytes is the amount of randomness behind a ticket hash.  The
// hex form is twice as long.
const TicketHashBytes = 16

// NewTicketHash returns an opaque 32-character hex ticket hash.
func NewTicketHash() (string, error) {
	return randomHex(TicketHashBytes)
}

// randomHex returns n bytes of cryptographically secure random data, hex
// encoded.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
