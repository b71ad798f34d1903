package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// CleanupCredential authorizes the beacon-driven cleanup of a provisional
// product. It travels in the request body because sendBeacon cannot set
// headers. The credential is a static HMAC and intentionally replayable:
// repeat cleanup of already-deleted state must still succeed.
func CleanupCredential(secret string, productID string, ownerID string) string {
	return signParts(secret, "cleanup", productID, ownerID)
}

func VerifyCleanupCredential(secret string, productID string, ownerID string, credential string) bool {
	expected := CleanupCredential(secret, productID, ownerID)
	return hmac.Equal([]byte(expected), []byte(credential))
}

func signParts(secret string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts, ":")))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
