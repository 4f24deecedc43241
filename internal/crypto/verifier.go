// Package crypto implements the credential verifier: a one-way, salted,
// deliberately slow representation of a user secret. Verifiers are opaque
// blobs (salt followed by the argon2id digest) and are never reversible.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
	digestLen    = 32
	saltLen      = 32

	// VerifierLen is the total length of a stored credential verifier.
	VerifierLen = saltLen + digestLen
)

// deriveDigest runs argon2id over the secret with the given salt.
func deriveDigest(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, digestLen)
}

// newSalt returns saltLen random bytes.
func newSalt() []byte {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return salt
}

// HashSecret derives a fresh verifier for a secret. Two calls with the same
// secret produce different verifiers because each draws its own salt.
func HashSecret(secret string) []byte {
	salt := newSalt()
	digest := deriveDigest(secret, salt)
	verifier := make([]byte, 0, VerifierLen)
	verifier = append(verifier, salt...)
	verifier = append(verifier, digest...)
	return verifier
}

// MatchesSecret reports whether secret is the one the verifier was derived
// from. Comparison is constant-time; malformed verifiers never match.
func MatchesSecret(secret string, verifier []byte) bool {
	if len(verifier) != VerifierLen {
		return false
	}
	salt := verifier[:saltLen]
	digest := verifier[saltLen:]
	return hmac.Equal(digest, deriveDigest(secret, salt))
}
