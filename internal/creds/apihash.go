package creds

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// urlsafe alphabet, no padding characters. 64 symbols so modulo indexing
// stays unbiased.
const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

const nonceLength = 16

// APIHash computes the s2 REST authentication artifact:
// "s2/" + nonce + "/" + hex(sha256(key + nonce + secret)). A fresh nonce is
// generated on every call.
func APIHash(key, secret string) string {
	nonce := newNonce()
	digest := sha256.Sum256([]byte(key + nonce + secret))
	return "s2/" + nonce + "/" + hex.EncodeToString(digest[:])
}

// BasicAuth composes the Authorization header value for REST calls: the
// source key is the username and the API-hash is the password.
func BasicAuth(key, apiHash string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"+apiHash))
}

func newNonce() string {
	buf := make([]byte, nonceLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	for i, b := range buf {
		buf[i] = nonceAlphabet[int(b)%len(nonceAlphabet)]
	}
	return string(buf)
}
