package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives a stable client fingerprint from request attributes.
//
// The fingerprint narrows the client-block scope below a bare IP so that
// devices sharing a NAT address do not trip each other's blocks. It is
// defence in depth only: all inputs are attacker-controlled, so it never
// relaxes a decision, it only partitions the failure counters.
func Fingerprint(ip, userAgent, acceptLanguage string) string {
	h := sha256.New()
	h.Write([]byte(ip))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))
	h.Write([]byte{0})
	h.Write([]byte(acceptLanguage))
	return hex.EncodeToString(h.Sum(nil))
}
