package smsretry

import (
	"crypto/rand"
	"encoding/hex"
)

// randomEngineID generates a short identifier that prefixes an Engine's log
// lines, so lines from different Engine instances in one process can be
// told apart.
func randomEngineID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "engine-unknown"
	}
	return "engine-" + hex.EncodeToString(buf[:])
}
