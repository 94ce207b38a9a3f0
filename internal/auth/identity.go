package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// identityDomain separates identity hashes from any other BLAKE2b use of the
// same input.
const identityDomain = "indie-arcade/identity/v1:"

// HashIdentity maps an identity provider's subject id to the stable value
// stored in users.hashed_identity.
//
// The result is the hex encoding of BLAKE2b-256 over a fixed domain prefix
// plus the id: deterministic across restarts and collision-resistant for any
// realistic user population. The raw subject id is never stored.
//
// Precondition: externalID is the opaque, non-empty subject identifier issued
// by the provider. The OAuth layer rejects empty ids before calling this.
func HashIdentity(externalID string) string {
	sum := blake2b.Sum256([]byte(identityDomain + externalID))
	return hex.EncodeToString(sum[:])
}

// LocalIdentity is the external id used for accounts created in local
// (username-only) mode, so every user row has a unique identity hash.
func LocalIdentity(username string) string {
	return "local:" + username
}
