package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
)

const slugAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandToken returns a URL-safe, unpadded base64 string of n random bytes.
func RandToken(n int) (string, error) {
	b, err := RandBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RandDigits returns n uniformly random decimal digits (leading zeros kept).
func RandDigits(n int) (string, error) {
	return randFrom("0123456789", n)
}

// RandSlug returns an n-character public id drawn from 0-9A-Z.
func RandSlug(n int) (string, error) {
	return randFrom(slugAlphabet, n)
}

func randFrom(alphabet string, n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	lim := big.NewInt(int64(len(alphabet)))
	for range n {
		i, err := rand.Int(rand.Reader, lim)
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[i.Int64()])
	}
	return sb.String(), nil
}

// HashToken returns the hex digest under which a refresh token is stored:
// HMAC-SHA256 when key is set, plain SHA-256 otherwise.
func HashToken(token string, key []byte) string {
	if len(key) == 0 {
		sum := sha256.Sum256([]byte(token))
		return hex.EncodeToString(sum[:])
	}
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(token))
	return hex.EncodeToString(m.Sum(nil))
}
