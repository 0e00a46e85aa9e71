package authserver

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// PKCE code challenge method constant. Only S256 is supported; the "plain"
// method is rejected per OAuth 2.1.
const pkceMethodS256 = "S256"

// verifyPKCE checks that the presented code verifier derives to the
// challenge stored on the authorization code (RFC 7636 Section 4.6).
// The comparison is constant-time to avoid leaking the challenge.
func verifyPKCE(codeChallenge, codeChallengeMethod, codeVerifier string) error {
	if codeChallengeMethod != pkceMethodS256 {
		return fmt.Errorf("unsupported code_challenge_method: %s (only S256 is supported)", codeChallengeMethod)
	}
	if codeVerifier == "" {
		return fmt.Errorf("code_verifier is required")
	}

	hash := sha256.Sum256([]byte(codeVerifier))
	computed := base64.RawURLEncoding.EncodeToString(hash[:])

	if subtle.ConstantTimeCompare([]byte(computed), []byte(codeChallenge)) != 1 {
		return fmt.Errorf("code_verifier does not match code_challenge")
	}
	return nil
}
