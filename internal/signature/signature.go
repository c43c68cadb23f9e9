// Package signature computes and checks the HMAC digests payment
// providers use to authenticate requests and callbacks.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"
	"strings"
)

type Algorithm string

const (
	HMACSHA512 Algorithm = "HMAC-SHA512"
	HMACSHA256 Algorithm = "HMAC-SHA256"
)

var ErrUnknownAlgorithm = errors.New("unknown signature algorithm")

// Sign returns the lowercase hex HMAC of data keyed by secret.
// The data must already be in the provider's canonical form.
func Sign(alg Algorithm, data, secret string) (string, error) {
	h, err := newHash(alg)
	if err != nil {
		return "", err
	}

	mac := hmac.New(h, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// SHA512 is Sign with HMACSHA512.
func SHA512(data, secret string) string {
	s, _ := Sign(HMACSHA512, data, secret)
	return s
}

// SHA256 is Sign with HMACSHA256.
func SHA256(data, secret string) string {
	s, _ := Sign(HMACSHA256, data, secret)
	return s
}

// Verify recomputes the digest and compares it with got in constant time.
// Hex case in got is ignored.
func Verify(alg Algorithm, data, secret, got string) bool {
	want, err := Sign(alg, data, secret)
	if err != nil || got == "" {
		return false
	}

	wantRaw, _ := hex.DecodeString(want)
	gotRaw, err := hex.DecodeString(strings.ToLower(got))
	if err != nil {
		return false
	}
	return hmac.Equal(wantRaw, gotRaw)
}

func newHash(alg Algorithm) (func() hash.Hash, error) {
	switch alg {
	case HMACSHA512:
		return sha512.New, nil
	case HMACSHA256:
		return sha256.New, nil
	}
	return nil, ErrUnknownAlgorithm
}
