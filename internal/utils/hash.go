package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashHeader carries the signature of a request or response body.
const HashHeader = "HashSHA256"

// CalculateHash returns the hex HMAC-SHA256 of body under key.
func CalculateHash(body []byte, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHash reports whether hash is the signature of body under key.
func VerifyHash(body []byte, key, hash string) bool {
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(key))
	h.Write(body)
	return hmac.Equal(h.Sum(nil), want)
}
