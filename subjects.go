package chanstream

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/nats-io/nuid"
)

// newGUID returns a fresh per-publish identifier: 16 random bytes,
// lowercase hex encoded, per spec §3.
func newGUID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is exceptionally rare (kernel entropy source
		// gone); fall back to nuid so publishes can still proceed with a
		// unique, if not cryptographically random, id.
		return nuid.Next()
	}
	return hex.EncodeToString(b)
}

// newSessionSubject builds a private per-session subject the way the
// server side of this protocol builds its own prefixed subjects (see the
// teacher's nuid.Next() use for pubPrefix/subRequests/...): a fixed
// prefix plus a short unique suffix.
func newSessionSubject(prefix string) string {
	return prefix + "." + nuid.Next()
}
