// Package auth derives the authentication string sent in an Identify message.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	obserrors "github.com/tsarna/obsws/pkg/obsws/errors"
)

// SignatureFunc derives the authentication string from the password and the
// challenge and salt announced in Hello.
type SignatureFunc func(password, challenge, salt string) (string, error)

// ComputeSignature proves knowledge of password without sending it.
//
// challenge and salt are base64 and are decoded first. The password and the
// salt bytes are hashed into a base64 secret, which then keys an HMAC-SHA256
// over the challenge bytes:
//
//	secret    = base64(sha256(password ++ salt))
//	signature = base64(hmac_sha256(key=secret, msg=challenge))
func ComputeSignature(password, challenge, salt string) (string, error) {
	challengeBytes, err := decode("challenge", challenge)
	if err != nil {
		return "", err
	}
	saltBytes, err := decode("salt", salt)
	if err != nil {
		return "", err
	}

	secret := secretFor(password, saltBytes)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(challengeBytes)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// ComputeSignatureV5 is the derivation published for obs-websocket 5.x
// servers. Salt and challenge are concatenated as their base64 text:
//
//	secret    = base64(sha256(password ++ salt))
//	signature = base64(sha256(secret ++ challenge))
//
// Both are still checked for valid base64 so malformed Hello messages are
// rejected the same way as with ComputeSignature.
func ComputeSignatureV5(password, challenge, salt string) (string, error) {
	if _, err := decode("challenge", challenge); err != nil {
		return "", err
	}
	if _, err := decode("salt", salt); err != nil {
		return "", err
	}

	secret := secretFor(password, []byte(salt))

	sum := sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// Lookup returns the SignatureFunc registered under name.
// "hmac" (or "") selects ComputeSignature and "v5" selects ComputeSignatureV5.
func Lookup(name string) (SignatureFunc, error) {
	switch name {
	case "", "hmac":
		return ComputeSignature, nil
	case "v5":
		return ComputeSignatureV5, nil
	default:
		return nil, fmt.Errorf("unknown auth scheme %q", name)
	}
}

func secretFor(password string, salt []byte) string {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write(salt)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func decode(field, value string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", obserrors.ErrInvalidEncoding, field, err)
	}
	return b, nil
}
