package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainEvent          = "netsync/event/v1"
	DomainReconciliation = "netsync/reconciliation/v1"
	DomainState          = "netsync/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentID hashes the canonical form of v under the given domain.
// The result is stable across processes for equal inputs.
func ContentID(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("content id: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}
